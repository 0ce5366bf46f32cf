package transfer

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/cosim/internal/pointset"
)

// Rigid reconciles two engines' coordinate frames: the rotation is applied
// first, then the translation.
type Rigid struct {
	Rotation    *mat.Dense // 3x3; nil means identity
	Translation [3]float64
}

// Apply maps a coordinate into the target frame. A nil receiver is the
// identity transform.
func (r *Rigid) Apply(c pointset.Coord) pointset.Coord {
	if r == nil {
		return c
	}
	x, y, z := c.X, c.Y, c.Z
	if r.Rotation != nil {
		var out mat.VecDense
		out.MulVec(r.Rotation, mat.NewVecDense(3, []float64{x, y, z}))
		x, y, z = out.AtVec(0), out.AtVec(1), out.AtVec(2)
	}
	return pointset.Coord{
		X: x + r.Translation[0],
		Y: y + r.Translation[1],
		Z: z + r.Translation[2],
	}
}

// Inverse returns the transform mapping target-frame coordinates back into
// the source frame. Rotations are orthonormal, so the inverse rotation is the
// transpose.
func (r *Rigid) Inverse() *Rigid {
	if r == nil {
		return nil
	}
	t := r.Translation
	if r.Rotation == nil {
		return &Rigid{Translation: [3]float64{-t[0], -t[1], -t[2]}}
	}
	var rt mat.Dense
	rt.CloneFrom(r.Rotation.T())
	var v mat.VecDense
	v.MulVec(&rt, mat.NewVecDense(3, []float64{t[0], t[1], t[2]}))
	return &Rigid{
		Rotation:    &rt,
		Translation: [3]float64{-v.AtVec(0), -v.AtVec(1), -v.AtVec(2)},
	}
}

// RotationZ builds a rotation matrix for an angle (radians) about the z axis.
func RotationZ(theta float64) *mat.Dense {
	c, s := math.Cos(theta), math.Sin(theta)
	return mat.NewDense(3, 3, []float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	})
}
