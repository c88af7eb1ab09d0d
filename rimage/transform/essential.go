package transform

import (
	"math/rand"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// essentialModel fits essential matrices to correspondences in normalized image coordinates.
type essentialModel struct {
	pts1, pts2 []r2.Point
}

func (m *essentialModel) SampleSize() int { return 8 }

func (m *essentialModel) Fit(idx []int) (*mat.Dense, bool) {
	p1 := make([]r2.Point, len(idx))
	p2 := make([]r2.Point, len(idx))
	for i, j := range idx {
		p1[i], p2[i] = m.pts1[j], m.pts2[j]
	}
	f, err := EstimateFundamentalMatrixAllPoints(p1, p2)
	if err != nil {
		return nil, false
	}
	e, err := EssentialFromFundamentalShape(f)
	if err != nil {
		return nil, false
	}
	return e, true
}

func (m *essentialModel) Errors(model *mat.Dense, errs []float64) {
	for i := range m.pts1 {
		errs[i] = SampsonError(model, m.pts1[i], m.pts2[i])
	}
}

// EstimateEssentialMatrix robustly estimates the essential matrix E with x2^T E x1 = 0 from
// pixel correspondences pts1 -> pts2 seen by a camera with the given intrinsics. The returned mask
// flags correspondences whose Sampson error is within cfg.Threshold pixels.
func EstimateEssentialMatrix(
	pts1, pts2 []r2.Point,
	intrinsics *PinholeCameraIntrinsics,
	cfg RANSACConfig,
	rng *rand.Rand,
) (*mat.Dense, []bool, error) {
	if len(pts1) != len(pts2) {
		return nil, nil, errors.New("sets of points pts1 and pts2 must have the same number of elements")
	}
	if err := intrinsics.CheckValid(); err != nil {
		return nil, nil, err
	}
	model := &essentialModel{pts1: intrinsics.Normalize(pts1), pts2: intrinsics.Normalize(pts2)}
	threshold := cfg.Threshold / intrinsics.MeanFocal()
	e, mask, err := runRANSAC(len(pts1), model, threshold*threshold, cfg.Confidence, cfg.MaxIterations, rng)
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot estimate essential matrix")
	}
	return e, mask, nil
}
