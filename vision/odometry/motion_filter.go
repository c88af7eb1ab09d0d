package odometry

import (
	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"

	"go.viam.com/vslam/utils"
)

// nearZeroTranslation is the length below which a recovered translation is treated as none.
const nearZeroTranslation = 1e-6

// ScaleTranslation gives a unit translation its empirical scale and clamps its length.
func ScaleTranslation(t r3.Vector, cfg ScaleConfig) r3.Vector {
	if t.Norm() < nearZeroTranslation {
		return r3.Vector{}
	}
	scaled := t.Mul(cfg.Factor)
	if n := scaled.Norm(); n > cfg.MaxStep {
		scaled = scaled.Mul(cfg.MaxStep / n)
	}
	return scaled
}

// MotionFilter rejects translations that disagree with the recent history and smooths the rest
// with an exponential moving average. It is not safe for concurrent use.
type MotionFilter struct {
	cfg      MotionFilterConfig
	history  *utils.Ring[r3.Vector]
	smoothed r3.Vector
}

// NewMotionFilter returns an empty filter.
func NewMotionFilter(cfg MotionFilterConfig) *MotionFilter {
	return &MotionFilter{cfg: cfg, history: utils.NewRing[r3.Vector](cfg.HistorySize)}
}

// Update records t and returns the smoothed translation with ReasonNone when t is accepted, or
// the reason it was rejected. Rejected samples stay in the history.
func (f *MotionFilter) Update(t r3.Vector) (r3.Vector, Reason) {
	f.history.Push(t)
	if f.history.Len() < f.cfg.MinSamples {
		return r3.Vector{}, ReasonHistoryWarmup
	}

	samples := f.history.Slice()
	median := medianVector(samples)
	dists := make([]float64, len(samples))
	for i, s := range samples {
		dists[i] = s.Sub(median).Norm()
	}
	mad, err := stats.Median(dists)
	if err != nil {
		return r3.Vector{}, ReasonTranslationOutlier
	}
	if t.Sub(median).Norm() > f.cfg.MADFactor*mad+f.cfg.MADEpsilon {
		return r3.Vector{}, ReasonTranslationOutlier
	}

	f.smoothed = t.Mul(f.cfg.Alpha).Add(f.smoothed.Mul(1 - f.cfg.Alpha))
	if f.smoothed.Norm() < f.cfg.MinMotion {
		return r3.Vector{}, ReasonBelowMinMotion
	}
	return f.smoothed, ReasonNone
}

// Smoothed returns the current moving average.
func (f *MotionFilter) Smoothed() r3.Vector {
	return f.smoothed
}

// Reset clears the history and the moving average.
func (f *MotionFilter) Reset() {
	f.history.Clear()
	f.smoothed = r3.Vector{}
}

// medianVector is the per-axis median of vs.
func medianVector(vs []r3.Vector) r3.Vector {
	xs := make([]float64, len(vs))
	ys := make([]float64, len(vs))
	zs := make([]float64, len(vs))
	for i, v := range vs {
		xs[i], ys[i], zs[i] = v.X, v.Y, v.Z
	}
	// Median only fails on empty input.
	x, _ := stats.Median(xs)
	y, _ := stats.Median(ys)
	z, _ := stats.Median(zs)
	return r3.Vector{X: x, Y: y, Z: z}
}
