package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Identity4 returns the 4x4 identity transform.
func Identity4() *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
}

// NewHomogeneous builds the 4x4 transform [R t; 0 1].
func NewHomogeneous(rotation mat.Matrix, translation r3.Vector) *mat.Dense {
	h := Identity4()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			h.Set(i, j, rotation.At(i, j))
		}
	}
	h.Set(0, 3, translation.X)
	h.Set(1, 3, translation.Y)
	h.Set(2, 3, translation.Z)
	return h
}

// Compose returns a*b.
func Compose(a, b mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Mul(a, b)
	return &out
}

// RotationBlock copies the upper-left 3x3 block of a transform.
func RotationBlock(h mat.Matrix) *mat.Dense {
	rot := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rot.Set(i, j, h.At(i, j))
		}
	}
	return rot
}

// TranslationOf returns the translation column of a transform.
func TranslationOf(h mat.Matrix) r3.Vector {
	return r3.Vector{X: h.At(0, 3), Y: h.At(1, 3), Z: h.At(2, 3)}
}

// TransformPoint applies a transform to a point.
func TransformPoint(h mat.Matrix, p r3.Vector) r3.Vector {
	return r3.Vector{
		X: h.At(0, 0)*p.X + h.At(0, 1)*p.Y + h.At(0, 2)*p.Z + h.At(0, 3),
		Y: h.At(1, 0)*p.X + h.At(1, 1)*p.Y + h.At(1, 2)*p.Z + h.At(1, 3),
		Z: h.At(2, 0)*p.X + h.At(2, 1)*p.Y + h.At(2, 2)*p.Z + h.At(2, 3),
	}
}

// InvertRigid returns the inverse of a rigid transform, [R^T -R^T t; 0 1].
func InvertRigid(h mat.Matrix) *mat.Dense {
	rot := RotationBlock(h)
	t := TranslationOf(h)
	var rotT mat.Dense
	rotT.CloneFrom(rot.T())
	inv := TransformPoint(NewHomogeneous(&rotT, r3.Vector{}), t)
	return NewHomogeneous(&rotT, inv.Mul(-1))
}

// RotationAngle returns the angle in radians of a rotation matrix, arccos((tr R - 1) / 2) with the
// cosine clipped to [-1, 1].
func RotationAngle(rot mat.Matrix) float64 {
	trace := rot.At(0, 0) + rot.At(1, 1) + rot.At(2, 2)
	c := (trace - 1) / 2
	return math.Acos(math.Max(-1, math.Min(1, c)))
}

// IsRotation reports whether rot is orthonormal with determinant 1 within tol.
func IsRotation(rot mat.Matrix, tol float64) bool {
	if r, c := rot.Dims(); r != 3 || c != 3 {
		return false
	}
	var rtr mat.Dense
	rtr.Mul(rot.T(), rot)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(rtr.At(i, j)-want) > tol {
				return false
			}
		}
	}
	return math.Abs(mat.Det(rot)-1) <= tol
}
