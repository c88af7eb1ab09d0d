package transform

import (
	"math/rand"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// fundamentalModel fits fundamental matrices to pixel correspondences.
type fundamentalModel struct {
	pts1, pts2 []r2.Point
}

func (m *fundamentalModel) SampleSize() int { return 8 }

func (m *fundamentalModel) Fit(idx []int) (*mat.Dense, bool) {
	p1 := make([]r2.Point, len(idx))
	p2 := make([]r2.Point, len(idx))
	for i, j := range idx {
		p1[i], p2[i] = m.pts1[j], m.pts2[j]
	}
	f, err := EstimateFundamentalMatrixAllPoints(p1, p2)
	if err != nil {
		return nil, false
	}
	return f, true
}

func (m *fundamentalModel) Errors(model *mat.Dense, errs []float64) {
	for i := range m.pts1 {
		errs[i] = EpipolarLineError(model, m.pts1[i], m.pts2[i])
	}
}

// FindFundamentalMatrix robustly estimates the fundamental matrix F with x2^T F x1 = 0. A
// correspondence is an inlier when both points lie within cfg.Threshold pixels of their epipolar
// lines. F is scaled to unit Frobenius norm so that degenerate geometry, such as two identical
// views, still yields finite entries.
func FindFundamentalMatrix(pts1, pts2 []r2.Point, cfg RANSACConfig, rng *rand.Rand) (*mat.Dense, []bool, error) {
	if len(pts1) != len(pts2) {
		return nil, nil, errors.New("sets of points pts1 and pts2 must have the same number of elements")
	}
	model := &fundamentalModel{pts1: pts1, pts2: pts2}
	f, mask, err := runRANSAC(len(pts1), model, cfg.Threshold*cfg.Threshold, cfg.Confidence, cfg.MaxIterations, rng)
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot estimate fundamental matrix")
	}
	return f, mask, nil
}
