package transfer

import (
	"math"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/san-kum/cosim/internal/pointset"
)

func denseGrid(t *testing.T, n int, spacing float64) *pointset.Set {
	t.Helper()
	var defs []pointset.Def
	id := 1
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			defs = append(defs, pointset.Def{
				ID:    id,
				Coord: pointset.Coord{X: float64(i) * spacing, Y: float64(j) * spacing},
			})
			id++
		}
	}
	s, err := pointset.New(defs)
	if err != nil {
		t.Fatalf("building grid: %v", err)
	}
	return s
}

func TestValidateIdenticalGeometryIsLossless(t *testing.T) {
	g := NewWithT(t)

	src := denseGrid(t, 4, 1)
	dst := src.CloneGeometry()
	values := make([]float64, src.Len())
	for i, c := range src.Coords() {
		values[i] = c.X + 2*c.Y
	}

	rt, err := Validate(src, values, dst, Options{Mode: Mode2D})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(rt.Sources).To(Equal(16))
	g.Expect(rt.Targets).To(Equal(16))
	g.Expect(rt.MeanAbs).To(BeNumerically("~", 0, 1e-12))
	g.Expect(rt.MaxAbs).To(BeNumerically("~", 0, 1e-12))
}

func TestValidateSmoothFieldRoundTripBounded(t *testing.T) {
	g := NewWithT(t)

	// fine source, coarse target; a linear field interpolates exactly inside
	// the hull, so the round trip only loses at the coarse boundary
	src := denseGrid(t, 9, 0.5)
	dst := denseGrid(t, 5, 1)
	values := make([]float64, src.Len())
	for i, c := range src.Coords() {
		values[i] = math.Sin(c.X) + c.Y
	}

	rt, err := Validate(src, values, dst, Options{Mode: Mode2D})
	g.Expect(err).NotTo(HaveOccurred())
	// empirical bound: the coarse grid spacing limits interpolation error
	g.Expect(rt.MaxAbs).To(BeNumerically("<", 0.5))
	g.Expect(rt.MeanAbs).To(BeNumerically("<", 0.1))
}

func TestNeighborsStatistics(t *testing.T) {
	g := NewWithT(t)

	src := denseGrid(t, 3, 1)
	dst := mkSet(t, pointset.Coord{X: 0.5, Y: 0.5})

	ns, err := Neighbors(src, dst, 4, nil)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(ns.Count).To(Equal(4))
	// the four surrounding grid points are equidistant
	g.Expect(ns.Min).To(BeNumerically("~", math.Sqrt2/2, 1e-12))
	g.Expect(ns.Max).To(BeNumerically("~", math.Sqrt2/2, 1e-12))
	g.Expect(ns.Std).To(BeNumerically("~", 0, 1e-12))
}

func TestNeighborsEmptySource(t *testing.T) {
	g := NewWithT(t)

	src := mkSet(t)
	dst := denseGrid(t, 2, 1)

	_, err := Neighbors(src, dst, 3, nil)
	g.Expect(err).To(MatchError(ErrEmptySource))
}
