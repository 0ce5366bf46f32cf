package transfer

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/san-kum/cosim/internal/pointset"
)

// srcPoint is one source point in the k-d tree. It carries the position in
// point order and the identifier so equidistant candidates can be broken by
// lowest identifier.
type srcPoint struct {
	c   [3]float64
	idx int
	id  int
}

func (p srcPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(srcPoint)
	return p.c[d] - q.c[d]
}

func (p srcPoint) Dims() int { return 3 }

// Distance is the squared Euclidean distance.
func (p srcPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(srcPoint)
	dx := p.c[0] - q.c[0]
	dy := p.c[1] - q.c[1]
	dz := p.c[2] - q.c[2]
	return dx*dx + dy*dy + dz*dz
}

type srcPoints []srcPoint

func (p srcPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p srcPoints) Len() int                      { return len(p) }
func (p srcPoints) Pivot(d kdtree.Dim) int        { return srcPlane{srcPoints: p, Dim: d}.Pivot() }
func (p srcPoints) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}

type srcPlane struct {
	kdtree.Dim
	srcPoints
}

func (p srcPlane) Less(i, j int) bool {
	return p.srcPoints[i].c[p.Dim] < p.srcPoints[j].c[p.Dim]
}
func (p srcPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p srcPlane) Slice(start, end int) kdtree.SortSlicer {
	p.srcPoints = p.srcPoints[start:end]
	return p
}
func (p srcPlane) Swap(i, j int) {
	p.srcPoints[i], p.srcPoints[j] = p.srcPoints[j], p.srcPoints[i]
}

type neighbor struct {
	idx  int
	id   int
	dist float64
}

type nnIndex struct {
	tree *kdtree.Tree
}

func newNNIndex(pts []pointset.Point, coords []pointset.Coord) *nnIndex {
	data := make(srcPoints, len(pts))
	for i, c := range coords {
		data[i] = srcPoint{c: [3]float64{c.X, c.Y, c.Z}, idx: i, id: pts[i].ID}
	}
	return &nnIndex{tree: kdtree.New(data, false)}
}

// nearest returns the closest source point. Ties are broken by the lowest
// source identifier.
func (n *nnIndex) nearest(c pointset.Coord) (int, float64) {
	q := srcPoint{c: [3]float64{c.X, c.Y, c.Z}, idx: -1, id: -1}
	got, d2 := n.tree.Nearest(q)
	best := got.(srcPoint)

	keep := kdtree.NewDistKeeper(d2 + 1e-12)
	n.tree.NearestSet(keep, q)
	for _, cd := range keep.Heap {
		if cd.Comparable == nil {
			continue
		}
		p := cd.Comparable.(srcPoint)
		if p.id < best.id {
			best = p
		}
	}
	return best.idx, math.Sqrt(d2)
}

// kNearest returns up to k closest source points ordered by distance, ties by
// lowest identifier.
func (n *nnIndex) kNearest(c pointset.Coord, k int) []neighbor {
	q := srcPoint{c: [3]float64{c.X, c.Y, c.Z}, idx: -1, id: -1}
	keep := kdtree.NewNKeeper(k)
	n.tree.NearestSet(keep, q)

	nbs := make([]neighbor, 0, k)
	for _, cd := range keep.Heap {
		if cd.Comparable == nil {
			continue
		}
		p := cd.Comparable.(srcPoint)
		nbs = append(nbs, neighbor{idx: p.idx, id: p.id, dist: math.Sqrt(cd.Dist)})
	}
	sort.Slice(nbs, func(i, j int) bool {
		if nbs[i].dist != nbs[j].dist {
			return nbs[i].dist < nbs[j].dist
		}
		return nbs[i].id < nbs[j].id
	})
	return nbs
}
