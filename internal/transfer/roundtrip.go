package transfer

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/cosim/internal/pointset"
)

// RoundTrip summarizes the deviation of a source→target→source transfer.
// The deviation is bounded by the interpolation error on the two geometries,
// not required to be zero.
type RoundTrip struct {
	Sources int
	Targets int
	MeanAbs float64
	StdAbs  float64
	MaxAbs  float64
}

// Validate transfers values from src to dst and back, comparing the result
// against the original values. The rigid transform is inverted for the return
// leg.
func Validate(src *pointset.Set, values []float64, dst *pointset.Set, opts Options) (RoundTrip, error) {
	fwd, err := Transfer(src, values, dst, opts)
	if err != nil {
		return RoundTrip{}, err
	}

	back := opts
	back.Rigid = opts.Rigid.Inverse()
	re, err := Transfer(dst, fwd, src, back)
	if err != nil {
		return RoundTrip{}, err
	}

	diff := make([]float64, len(values))
	for i := range values {
		diff[i] = math.Abs(values[i] - re[i])
	}
	return RoundTrip{
		Sources: src.Len(),
		Targets: dst.Len(),
		MeanAbs: stat.Mean(diff, nil),
		StdAbs:  stat.StdDev(diff, nil),
		MaxAbs:  floats.Max(diff),
	}, nil
}

// NeighborStats summarizes the nearest-neighbor distances from every target
// point to the source set, used to judge how well two discretizations fit
// before committing to a coupling run.
type NeighborStats struct {
	Count int
	Mean  float64
	Std   float64
	Min   float64
	Max   float64
}

// Neighbors computes distance statistics over the k nearest source points of
// every target point.
func Neighbors(src, dst *pointset.Set, k int, rigid *Rigid) (NeighborStats, error) {
	if src.Len() == 0 {
		return NeighborStats{}, ErrEmptySource
	}
	if k <= 0 {
		k = DefaultNeighbors
	}
	if k > src.Len() {
		k = src.Len()
	}

	srcPts := src.Points()
	coords := make([]pointset.Coord, len(srcPts))
	for i, p := range srcPts {
		coords[i] = rigid.Apply(p.Coord)
	}
	nn := newNNIndex(srcPts, coords)

	var dists []float64
	for _, tc := range dst.Coords() {
		for _, nb := range nn.kNearest(tc, k) {
			dists = append(dists, nb.dist)
		}
	}
	if len(dists) == 0 {
		return NeighborStats{}, nil
	}
	return NeighborStats{
		Count: len(dists),
		Mean:  stat.Mean(dists, nil),
		Std:   stat.StdDev(dists, nil),
		Min:   floats.Min(dists),
		Max:   floats.Max(dists),
	}, nil
}
