// Package transfer maps a scalar field defined on a source point set onto the
// coordinates of a target point set. In 2-D mode values are linearly
// interpolated over a Delaunay triangulation of the source, falling back to
// the nearest source point outside the convex hull. In 3-D mode values are
// blended from the k nearest source points by inverse-distance weighting.
package transfer

import (
	"errors"
	"fmt"
	"math"

	"github.com/fogleman/delaunay"

	"github.com/san-kum/cosim/internal/pointset"
)

var (
	ErrEmptySource       = errors.New("empty source set")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrValueCount        = errors.New("value count does not match source set")
	ErrNoNeighbors       = errors.New("no neighbor within maximum distance")
)

// Mode selects the interpolation dimensionality. It is explicit configuration,
// never inferred from coordinate degeneracy.
type Mode int

const (
	// Mode2D triangulates over (x, y); z is carried through untouched.
	Mode2D Mode = iota
	// Mode3D uses inverse-distance weighting over the k nearest neighbors
	// in (x, y, z).
	Mode3D
)

func (m Mode) String() string {
	switch m {
	case Mode2D:
		return "2d"
	case Mode3D:
		return "3d"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// DefaultNeighbors is the neighbor count used by Mode3D when none is set.
const DefaultNeighbors = 10

const (
	planarTol     = 1e-9
	baryTol       = 1e-9
	coincidentTol = 1e-12
)

// Options configure one transfer.
type Options struct {
	Mode Mode
	// Rigid, when set, is applied to the source coordinates before
	// interpolation.
	Rigid *Rigid
	// Neighbors is the k for Mode3D. Zero means DefaultNeighbors.
	Neighbors int
	// MaxDistance, when positive, excludes Mode3D neighbors farther away.
	// A target point left with no neighbor is an error, never a default.
	MaxDistance float64
}

// Transfer computes field values at the target coordinates from values given
// in source point order. The result is in target point order. Transfer holds
// no state and retains no references to either set.
func Transfer(src *pointset.Set, values []float64, dst *pointset.Set, opts Options) ([]float64, error) {
	if src.Len() == 0 {
		return nil, ErrEmptySource
	}
	if len(values) != src.Len() {
		return nil, fmt.Errorf("%d values for %d source points: %w", len(values), src.Len(), ErrValueCount)
	}

	srcPts := src.Points()
	coords := make([]pointset.Coord, len(srcPts))
	for i, p := range srcPts {
		coords[i] = opts.Rigid.Apply(p.Coord)
	}
	targets := dst.Coords()

	switch opts.Mode {
	case Mode2D:
		if !planar(coords) {
			return nil, fmt.Errorf("source set is not planar in z: %w", ErrDimensionMismatch)
		}
		if !planar(targets) {
			return nil, fmt.Errorf("target set is not planar in z: %w", ErrDimensionMismatch)
		}
		return linear2D(srcPts, coords, values, targets), nil
	case Mode3D:
		return idw3D(srcPts, coords, values, targets, opts.Neighbors, opts.MaxDistance)
	default:
		return nil, fmt.Errorf("unknown interpolation mode %d: %w", int(opts.Mode), ErrDimensionMismatch)
	}
}

func planar(coords []pointset.Coord) bool {
	if len(coords) == 0 {
		return true
	}
	z := coords[0].Z
	for _, c := range coords {
		if math.Abs(c.Z-z) > planarTol {
			return false
		}
	}
	return true
}

func linear2D(pts []pointset.Point, coords []pointset.Coord, values []float64, targets []pointset.Coord) []float64 {
	nn := newNNIndex(pts, coords)
	out := make([]float64, len(targets))

	// Under-determined geometry (fewer than three points, or all collinear)
	// degrades to nearest neighbor for every target without triangulating.
	var tri *delaunay.Triangulation
	if len(coords) >= 3 {
		dpts := make([]delaunay.Point, len(coords))
		for i, c := range coords {
			dpts[i] = delaunay.Point{X: c.X, Y: c.Y}
		}
		if t, err := delaunay.Triangulate(dpts); err == nil && len(t.Triangles) > 0 {
			tri = t
		}
	}

	for i, tc := range targets {
		if tri != nil {
			if v, ok := interpolate(tri, values, tc); ok {
				out[i] = v
				continue
			}
		}
		idx, _ := nn.nearest(tc)
		out[i] = values[idx]
	}
	return out
}

// interpolate evaluates the field at c by barycentric weighting over the
// enclosing triangle. The second return is false when c lies outside the
// convex hull.
func interpolate(tri *delaunay.Triangulation, values []float64, c pointset.Coord) (float64, bool) {
	ts := tri.Triangles
	for i := 0; i < len(ts); i += 3 {
		a, b, d := tri.Points[ts[i]], tri.Points[ts[i+1]], tri.Points[ts[i+2]]
		det := (b.Y-d.Y)*(a.X-d.X) + (d.X-b.X)*(a.Y-d.Y)
		if det == 0 {
			continue
		}
		w0 := ((b.Y-d.Y)*(c.X-d.X) + (d.X-b.X)*(c.Y-d.Y)) / det
		w1 := ((d.Y-a.Y)*(c.X-d.X) + (a.X-d.X)*(c.Y-d.Y)) / det
		w2 := 1 - w0 - w1
		if w0 < -baryTol || w1 < -baryTol || w2 < -baryTol {
			continue
		}
		return w0*values[ts[i]] + w1*values[ts[i+1]] + w2*values[ts[i+2]], true
	}
	return 0, false
}

func idw3D(pts []pointset.Point, coords []pointset.Coord, values []float64, targets []pointset.Coord, k int, maxDist float64) ([]float64, error) {
	if k <= 0 {
		k = DefaultNeighbors
	}
	if k > len(pts) {
		k = len(pts)
	}

	nn := newNNIndex(pts, coords)
	out := make([]float64, len(targets))

	for i, tc := range targets {
		nbs := nn.kNearest(tc, k)

		// A coincident source point is exact.
		if nbs[0].dist <= coincidentTol {
			out[i] = values[nbs[0].idx]
			continue
		}

		var wsum, vsum float64
		for _, nb := range nbs {
			if maxDist > 0 && nb.dist > maxDist {
				continue
			}
			w := 1 / nb.dist
			wsum += w
			vsum += w * values[nb.idx]
		}
		if wsum == 0 {
			return nil, fmt.Errorf("target point %d at (%g, %g, %g): %w", i, tc.X, tc.Y, tc.Z, ErrNoNeighbors)
		}
		out[i] = vsum / wsum
	}
	return out, nil
}
