package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Convention: for correspondences (x1, x2) between a first and a second view, a fundamental or
// essential matrix M satisfies x2^T M x1 = 0.

// EstimateFundamentalMatrixAllPoints computes the fundamental matrix from all correspondences with
// the normalized 8-point algorithm. The result has rank 2 and unit Frobenius norm.
func EstimateFundamentalMatrixAllPoints(pts1, pts2 []r2.Point) (*mat.Dense, error) {
	if len(pts1) != len(pts2) {
		return nil, errors.New("sets of points pts1 and pts2 must have the same number of elements")
	}
	if len(pts1) < 8 {
		return nil, errors.Wrap(ErrNotEnoughPoints, "the 8-point algorithm needs at least 8 correspondences")
	}
	points1, t1 := normalizePoints(pts1)
	points2, t2 := normalizePoints(pts2)

	m := mat.NewDense(len(points1), 9, nil)
	for i := range points1 {
		v1 := points1[i]
		v2 := points2[i]
		m.SetRow(i, []float64{
			v2.X * v1.X, v2.X * v1.Y, v2.X,
			v2.Y * v1.X, v2.Y * v1.Y, v2.Y,
			v1.X, v1.Y, 1,
		})
	}

	mats := performSVD(m)
	if mats == nil {
		return nil, errors.New("failed to factorize the 8-point system")
	}
	f := mat.NewDense(3, 3, mat.Col(nil, 8, mats.V))

	// enforce rank 2
	mats = performSVD(f)
	if mats == nil {
		return nil, errors.New("failed to factorize F")
	}
	mats.S.Set(2, 2, 0)
	f.Mul(mats.U, mats.S)
	f.Mul(f, mats.VT)

	// undo the normalization: T2^T @ F @ T1
	f.Mul(t2.T(), f)
	f.Mul(f, t1)
	return normalizeFrobenius(f)
}

// EssentialFromFundamentalShape projects a matrix onto the essential manifold: two equal singular
// values and one zero.
func EssentialFromFundamentalShape(m *mat.Dense) (*mat.Dense, error) {
	mats := performSVD(m)
	if mats == nil {
		return nil, errors.New("failed to factorize essential matrix")
	}
	s := eye(3)
	s.Set(2, 2, 0)
	var essMat mat.Dense
	essMat.Mul(mats.U, s)
	essMat.Mul(&essMat, mats.VT)
	return normalizeFrobenius(&essMat)
}

// DecomposeEssentialMatrix decomposes the Essential matrix into 2 possible 3D rotations and a 3D
// unit translation. The four pose candidates are (R1, t), (R1, -t), (R2, t), (R2, -t).
func DecomposeEssentialMatrix(essMat *mat.Dense) (*mat.Dense, *mat.Dense, *mat.Dense, error) {
	mats := performSVD(essMat)
	if mats == nil {
		return nil, nil, nil, errors.New("failed to factorize essential matrix")
	}
	// proper rotations need det(U) = det(V) = 1
	if mat.Det(mats.U) < 0 {
		mats.U.Scale(-1, mats.U)
	}
	if mat.Det(mats.VT) < 0 {
		mats.VT.Scale(-1, mats.VT)
	}
	w := mat.NewDense(3, 3, []float64{
		0, 1, 0,
		-1, 0, 0,
		0, 0, 1,
	})
	// UWV^T
	var rot1, rot2 mat.Dense
	rot1.Mul(mats.U, w)
	rot1.Mul(&rot1, mats.VT)
	// UW^TV^T
	rot2.Mul(mats.U, w.T())
	rot2.Mul(&rot2, mats.VT)
	t := mat.NewDense(3, 1, mat.Col(nil, 2, mats.U))
	return &rot1, &rot2, t, nil
}

// SampsonError returns the squared first-order geometric error of a correspondence under m.
func SampsonError(m *mat.Dense, p1, p2 r2.Point) float64 {
	// m x1 and m^T x2
	a0 := m.At(0, 0)*p1.X + m.At(0, 1)*p1.Y + m.At(0, 2)
	a1 := m.At(1, 0)*p1.X + m.At(1, 1)*p1.Y + m.At(1, 2)
	a2 := m.At(2, 0)*p1.X + m.At(2, 1)*p1.Y + m.At(2, 2)
	b0 := m.At(0, 0)*p2.X + m.At(1, 0)*p2.Y + m.At(2, 0)
	b1 := m.At(0, 1)*p2.X + m.At(1, 1)*p2.Y + m.At(2, 1)
	c := p2.X*a0 + p2.Y*a1 + a2
	den := a0*a0 + a1*a1 + b0*b0 + b1*b1
	if den == 0 {
		return math.Inf(1)
	}
	return c * c / den
}

// EpipolarLineError returns the larger of the two squared point-to-epipolar-line distances of a
// correspondence under m.
func EpipolarLineError(m *mat.Dense, p1, p2 r2.Point) float64 {
	a0 := m.At(0, 0)*p1.X + m.At(0, 1)*p1.Y + m.At(0, 2)
	a1 := m.At(1, 0)*p1.X + m.At(1, 1)*p1.Y + m.At(1, 2)
	a2 := m.At(2, 0)*p1.X + m.At(2, 1)*p1.Y + m.At(2, 2)
	b0 := m.At(0, 0)*p2.X + m.At(1, 0)*p2.Y + m.At(2, 0)
	b1 := m.At(0, 1)*p2.X + m.At(1, 1)*p2.Y + m.At(2, 1)
	c := p2.X*a0 + p2.Y*a1 + a2
	c2 := c * c
	s2 := a0*a0 + a1*a1
	s1 := b0*b0 + b1*b1
	if s1 == 0 || s2 == 0 {
		return math.Inf(1)
	}
	return math.Max(c2/s1, c2/s2)
}

// normalizeFrobenius scales m to unit Frobenius norm.
func normalizeFrobenius(m *mat.Dense) (*mat.Dense, error) {
	norm := mat.Norm(m, 2)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, errors.New("degenerate matrix")
	}
	m.Scale(1/norm, m)
	return m, nil
}

// normalizePoints normalizes points as described in Multiple View Geometry, Alg 11.1.
func normalizePoints(pts []r2.Point) ([]r2.Point, *mat.Dense) {
	nPoints := float64(len(pts))
	mu := r2.Point{}
	for _, pt := range pts {
		mu = mu.Add(pt)
	}
	mu = mu.Mul(1 / nPoints)
	d := 0.0
	for _, pt := range pts {
		d += pt.Sub(mu).Norm() / nPoints
	}
	scale := 1.0
	if d > 0 {
		scale = math.Sqrt2 / d
	}
	transform := mat.NewDense(3, 3, []float64{
		scale, 0, -scale * mu.X,
		0, scale, -scale * mu.Y,
		0, 0, 1,
	})
	out := make([]r2.Point, len(pts))
	for i, pt := range pts {
		out[i] = pt.Sub(mu).Mul(scale)
	}
	return out, transform
}

// eye create an identity matrix of size nxn.
func eye(n int) *mat.Dense {
	if n <= 0 {
		return nil
	}
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// matsSVD stores the matrices from SVD decomposition.
type matsSVD struct {
	U  *mat.Dense
	V  *mat.Dense
	VT *mat.Dense
	S  *mat.Dense
}

// performSVD performs SVD on inputMatrix and returns matrices U, Sigma and V from the
// decomposition, or nil if the factorization fails.
func performSVD(inputMatrix mat.Matrix) *matsSVD {
	var svd mat.SVD
	if ok := svd.Factorize(inputMatrix, mat.SVDFull); !ok {
		return nil
	}
	u, v, vt := &mat.Dense{}, &mat.Dense{}, &mat.Dense{}
	svd.UTo(u)
	svd.VTo(v)
	vt.CloneFrom(v.T())

	singularValues := svd.Values(nil)
	r, c := inputMatrix.Dims()
	sigma := mat.NewDense(min(r, c), min(r, c), nil)
	for i, s := range singularValues {
		sigma.Set(i, i, s)
	}
	return &matsSVD{u, v, vt, sigma}
}
