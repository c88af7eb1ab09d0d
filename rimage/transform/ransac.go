package transform

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// RANSACConfig controls a robust model search.
type RANSACConfig struct {
	// Confidence is the probability that at least one sample is outlier free.
	Confidence float64 `json:"confidence" yaml:"confidence"`
	// Threshold is the inlier distance in pixels.
	Threshold float64 `json:"threshold_px" yaml:"threshold_px"`
	// MaxIterations caps the number of samples drawn.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`
}

// CheckValid returns an error describing the first invalid field.
func (cfg RANSACConfig) CheckValid() error {
	if cfg.Confidence <= 0 || cfg.Confidence >= 1 {
		return errors.Errorf("confidence must be in (0, 1), got %v", cfg.Confidence)
	}
	if cfg.Threshold <= 0 {
		return errors.Errorf("threshold_px must be positive, got %v", cfg.Threshold)
	}
	if cfg.MaxIterations <= 0 {
		return errors.Errorf("max_iterations must be positive, got %v", cfg.MaxIterations)
	}
	return nil
}

// ErrNotEnoughPoints is returned when a model is requested from fewer correspondences than its
// minimal sample.
var ErrNotEnoughPoints = errors.New("not enough correspondences")

// ErrNoModel is returned when no sample produced a model with any inliers.
var ErrNoModel = errors.New("no model found")

// ransacModel fits a 3x3 model to correspondences.
type ransacModel interface {
	SampleSize() int
	// Fit estimates a model from the indexed correspondences. It reports false on degenerate
	// input.
	Fit(idx []int) (*mat.Dense, bool)
	// Errors writes the squared error of every correspondence under model.
	Errors(model *mat.Dense, errs []float64)
}

// runRANSAC searches for the model with the most correspondences whose squared error is below
// threshold2, adapting the number of samples to the inlier ratio found so far. The winner is
// refit on all of its inliers when that does not lose inliers.
func runRANSAC(n int, model ransacModel, threshold2, confidence float64, maxIters int, rng *rand.Rand) (*mat.Dense, []bool, error) {
	sampleSize := model.SampleSize()
	if n < sampleSize {
		return nil, nil, errors.Wrapf(ErrNotEnoughPoints, "need %d, have %d", sampleSize, n)
	}

	errs := make([]float64, n)
	var best *mat.Dense
	bestCount := 0
	sample := make([]int, sampleSize)
	iters := maxIters
	for i := 0; i < iters; i++ {
		drawSample(rng, n, sample)
		candidate, ok := model.Fit(sample)
		if !ok {
			continue
		}
		model.Errors(candidate, errs)
		count := countBelow(errs, threshold2)
		if count > bestCount {
			best, bestCount = candidate, count
			iters = updateNumIters(confidence, float64(n-count)/float64(n), sampleSize, maxIters)
		}
	}
	if best == nil || bestCount == 0 {
		return nil, nil, ErrNoModel
	}

	model.Errors(best, errs)
	mask := thresholdMask(errs, threshold2)
	if bestCount > sampleSize {
		if refit, ok := model.Fit(maskIndices(mask)); ok {
			model.Errors(refit, errs)
			if countBelow(errs, threshold2) >= bestCount {
				return refit, thresholdMask(errs, threshold2), nil
			}
		}
	}
	return best, mask, nil
}

// updateNumIters returns the number of samples needed to draw one outlier-free sample with the
// given confidence, never more than maxIters.
func updateNumIters(confidence, outlierRatio float64, sampleSize, maxIters int) int {
	num := math.Max(1-confidence, math.SmallestNonzeroFloat64)
	denom := 1 - math.Pow(1-outlierRatio, float64(sampleSize))
	if denom < math.SmallestNonzeroFloat64 {
		return 0
	}
	num = math.Log(num)
	denom = math.Log(denom)
	if denom >= 0 || -num >= float64(maxIters)*(-denom) {
		return maxIters
	}
	return int(math.Round(num / denom))
}

// drawSample fills sample with distinct indices in [0, n).
func drawSample(rng *rand.Rand, n int, sample []int) {
	for i := range sample {
	retry:
		for {
			idx := rng.Intn(n)
			for _, prev := range sample[:i] {
				if prev == idx {
					continue retry
				}
			}
			sample[i] = idx
			break
		}
	}
}

func countBelow(errs []float64, threshold2 float64) int {
	count := 0
	for _, e := range errs {
		if e <= threshold2 {
			count++
		}
	}
	return count
}

func thresholdMask(errs []float64, threshold2 float64) []bool {
	mask := make([]bool, len(errs))
	for i, e := range errs {
		mask[i] = e <= threshold2
	}
	return mask
}

func maskIndices(mask []bool) []int {
	idx := make([]int, 0, len(mask))
	for i, in := range mask {
		if in {
			idx = append(idx, i)
		}
	}
	return idx
}

// CountInliers returns the number of set entries in mask.
func CountInliers(mask []bool) int {
	return len(maskIndices(mask))
}
