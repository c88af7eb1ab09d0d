package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// CamPose stores the 3x4 pose matrix [R|t] as well as the rotation and translation. A point X1
// in the first camera frame maps to R*X1 + t in the second.
type CamPose struct {
	PoseMat     *mat.Dense
	Rotation    *mat.Dense
	Translation *mat.Dense
}

// NewCamPose assembles a CamPose from a 3x3 rotation and a 3x1 translation.
func NewCamPose(rotation, translation *mat.Dense) *CamPose {
	var pose mat.Dense
	pose.Augment(rotation, translation)
	return &CamPose{
		PoseMat:     &pose,
		Rotation:    mat.DenseCopyOf(rotation),
		Translation: mat.DenseCopyOf(translation),
	}
}

// TranslationVector returns the translation as a vector.
func (cp *CamPose) TranslationVector() r3.Vector {
	return r3.Vector{X: cp.Translation.At(0, 0), Y: cp.Translation.At(1, 0), Z: cp.Translation.At(2, 0)}
}

// GetProjectionMatrix returns K[R|t].
func GetProjectionMatrix(k, rotation, translation *mat.Dense) *mat.Dense {
	var rt, p mat.Dense
	rt.Augment(rotation, translation)
	p.Mul(k, &rt)
	return &p
}

// triangulateHomogeneous solves the linear DLT system of one correspondence under the 3x4
// projection matrices p1 and p2 and returns the homogeneous point.
func triangulateHomogeneous(p1, p2 *mat.Dense, x1, x2 r2.Point) (*mat.VecDense, bool) {
	a := mat.NewDense(4, 4, nil)
	for c := 0; c < 4; c++ {
		a.Set(0, c, x1.X*p1.At(2, c)-p1.At(0, c))
		a.Set(1, c, x1.Y*p1.At(2, c)-p1.At(1, c))
		a.Set(2, c, x2.X*p2.At(2, c)-p2.At(0, c))
		a.Set(3, c, x2.Y*p2.At(2, c)-p2.At(1, c))
	}
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return nil, false
	}
	var v mat.Dense
	svd.VTo(&v)
	return mat.NewVecDense(4, mat.Col(nil, 3, &v)), true
}

// TriangulatePoints computes 3D points from pixel correspondences pts1 -> pts2 under the 3x4
// projection matrices p1 and p2 with the linear DLT method. Points at infinity or whose system
// cannot be solved are reported false in the returned mask.
func TriangulatePoints(p1, p2 *mat.Dense, pts1, pts2 []r2.Point) ([]r3.Vector, []bool, error) {
	if len(pts1) != len(pts2) {
		return nil, nil, errors.New("sets of points pts1 and pts2 must have the same number of elements")
	}
	if r, c := p1.Dims(); r != 3 || c != 4 {
		return nil, nil, errors.Errorf("projection matrix must be 3x4, got %dx%d", r, c)
	}
	if r, c := p2.Dims(); r != 3 || c != 4 {
		return nil, nil, errors.Errorf("projection matrix must be 3x4, got %dx%d", r, c)
	}
	pts3d := make([]r3.Vector, len(pts1))
	valid := make([]bool, len(pts1))
	for i := range pts1 {
		q, ok := triangulateHomogeneous(p1, p2, pts1[i], pts2[i])
		if !ok || math.Abs(q.AtVec(3)) < 1e-12 {
			continue
		}
		w := q.AtVec(3)
		pts3d[i] = r3.Vector{X: q.AtVec(0) / w, Y: q.AtVec(1) / w, Z: q.AtVec(2) / w}
		valid[i] = true
	}
	return pts3d, valid, nil
}

// RecoverPose picks, among the four decompositions of the essential matrix, the pose [R|t] with
// the most correspondences triangulating in front of both cameras and closer than distanceThresh
// (in units of the unit baseline). Only correspondences set in mask are considered; a nil mask
// considers all. It returns the pose, the cheirality mask and its count.
func RecoverPose(
	essMat *mat.Dense,
	pts1, pts2 []r2.Point,
	intrinsics *PinholeCameraIntrinsics,
	mask []bool,
	distanceThresh float64,
) (*CamPose, []bool, int, error) {
	if len(pts1) != len(pts2) {
		return nil, nil, 0, errors.New("sets of points pts1 and pts2 must have the same number of elements")
	}
	if mask != nil && len(mask) != len(pts1) {
		return nil, nil, 0, errors.New("mask length must match the number of points")
	}
	if err := intrinsics.CheckValid(); err != nil {
		return nil, nil, 0, err
	}
	rotA, rotB, t, err := DecomposeEssentialMatrix(essMat)
	if err != nil {
		return nil, nil, 0, err
	}
	var tOpp mat.Dense
	tOpp.Scale(-1, t)

	n1 := intrinsics.Normalize(pts1)
	n2 := intrinsics.Normalize(pts2)
	p0 := GetProjectionMatrix(eye(3), eye(3), mat.NewDense(3, 1, nil))

	candidates := []*CamPose{
		NewCamPose(rotA, t),
		NewCamPose(rotB, t),
		NewCamPose(rotA, &tOpp),
		NewCamPose(rotB, &tOpp),
	}
	var best *CamPose
	var bestMask []bool
	bestCount := -1
	for _, candidate := range candidates {
		good := make([]bool, len(pts1))
		count := 0
		for i := range n1 {
			if mask != nil && !mask[i] {
				continue
			}
			q, ok := triangulateHomogeneous(p0, candidate.PoseMat, n1[i], n2[i])
			if !ok || q.AtVec(2)*q.AtVec(3) <= 0 {
				continue
			}
			w := q.AtVec(3)
			x := r3.Vector{X: q.AtVec(0) / w, Y: q.AtVec(1) / w, Z: q.AtVec(2) / w}
			if x.Z >= distanceThresh {
				continue
			}
			z2 := candidate.Rotation.At(2, 0)*x.X + candidate.Rotation.At(2, 1)*x.Y +
				candidate.Rotation.At(2, 2)*x.Z + candidate.Translation.At(2, 0)
			if z2 <= 0 || z2 >= distanceThresh {
				continue
			}
			good[i] = true
			count++
		}
		if count > bestCount {
			best, bestMask, bestCount = candidate, good, count
		}
	}
	return best, bestMask, bestCount, nil
}
