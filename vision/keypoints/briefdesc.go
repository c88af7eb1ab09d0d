package keypoints

import (
	"image"
	"math"
	"math/rand"

	"github.com/pkg/errors"

	"go.viam.com/vslam/rimage"
)

// SamplePairs are N pairs of points used to create the BRIEF Descriptors of a patch.
type SamplePairs struct {
	P0 []image.Point
	P1 []image.Point
	N  int
}

// BRIEFConfig stores the parameters of the BRIEF descriptor.
type BRIEFConfig struct {
	// N is the number of binary tests, a multiple of 64.
	N int `json:"n" yaml:"n"`
	// PatchSize is the side of the square patch the tests are drawn in.
	PatchSize int `json:"patch_size" yaml:"patch_size"`
	// UseOrientation steers the tests by the keypoint orientation.
	UseOrientation bool `json:"use_orientation" yaml:"use_orientation"`
	// Seed makes the sampling pattern reproducible. Descriptors are only comparable when they
	// share a pattern.
	Seed int64 `json:"seed" yaml:"seed"`
}

// CheckValid returns an error describing the first invalid field.
func (cfg BRIEFConfig) CheckValid() error {
	if cfg.N < 64 || cfg.N%64 != 0 {
		return errors.New("n should be a positive multiple of 64")
	}
	if cfg.PatchSize < 5 {
		return errors.New("patch_size should be >= 5")
	}
	return nil
}

// GenerateSamplePairs draws n test pairs from an isotropic gaussian of standard deviation
// patchSize/5 centered on the patch, clipped to the patch.
func GenerateSamplePairs(n, patchSize int, seed int64) *SamplePairs {
	rng := rand.New(rand.NewSource(seed))
	half := (patchSize - 1) / 2
	sigma := float64(patchSize) / 5
	sample := func() int {
		for {
			v := int(math.Round(rng.NormFloat64() * sigma))
			if v >= -half && v <= half {
				return v
			}
		}
	}
	sp := &SamplePairs{P0: make([]image.Point, n), P1: make([]image.Point, n), N: n}
	for i := 0; i < n; i++ {
		sp.P0[i] = image.Point{X: sample(), Y: sample()}
		sp.P1[i] = image.Point{X: sample(), Y: sample()}
		for sp.P1[i] == sp.P0[i] {
			sp.P1[i] = image.Point{X: sample(), Y: sample()}
		}
	}
	return sp
}

// ComputeBRIEFDescriptors computes BRIEF descriptors on a smoothed image at keypoints kps. Bit i
// is set when the first sample of pair i is brighter than the second. Samples falling outside the
// image read the nearest border pixel.
func ComputeBRIEFDescriptors(blurred *rimage.FloatImage, sp *SamplePairs, kps *OrientedKeypoints, cfg BRIEFConfig) Descriptors {
	descs := make(Descriptors, len(kps.Points))
	for k, kp := range kps.Points {
		cosTheta, sinTheta := 1.0, 0.0
		if cfg.UseOrientation && kps.Orientations != nil {
			angle := kps.Orientations[k]
			cosTheta = math.Cos(angle)
			sinTheta = math.Sin(angle)
		}
		descriptor := make(Descriptor, sp.N/64)
		for i := 0; i < sp.N; i++ {
			x0, y0 := float64(sp.P0[i].X), float64(sp.P0[i].Y)
			x1, y1 := float64(sp.P1[i].X), float64(sp.P1[i].Y)
			outx0 := int(math.Round(cosTheta*x0 - sinTheta*y0))
			outy0 := int(math.Round(sinTheta*x0 + cosTheta*y0))
			outx1 := int(math.Round(cosTheta*x1 - sinTheta*y1))
			outy1 := int(math.Round(sinTheta*x1 + cosTheta*y1))
			if blurred.At(kp.X+outx0, kp.Y+outy0) > blurred.At(kp.X+outx1, kp.Y+outy1) {
				descriptor[i/64] |= 1 << (i % 64)
			}
		}
		descs[k] = descriptor
	}
	return descs
}
