package keypoints

import (
	"encoding/json"
	"image"
	"math"
	"os"
	"path/filepath"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/vslam/rimage"
)

// ORBConfig contains the parameters / configs needed to compute ORB features.
type ORBConfig struct {
	NFeatures       int         `json:"n_features" yaml:"n_features"`
	Layers          int         `json:"n_layers" yaml:"n_layers"`
	ScaleFactor     float64     `json:"scale_factor" yaml:"scale_factor"`
	EdgeThreshold   int         `json:"edge_threshold" yaml:"edge_threshold"`
	HarrisBlockSize int         `json:"harris_block_size" yaml:"harris_block_size"`
	FastConf        FASTConfig  `json:"fast" yaml:"fast"`
	BRIEFConf       BRIEFConfig `json:"brief" yaml:"brief"`
}

// DefaultORBConfig returns the loop detector's ORB settings: 500 features over a 3 level
// pyramid of scale 2, FAST-9 at threshold 20 and 256 bit steered BRIEF.
func DefaultORBConfig() ORBConfig {
	return ORBConfig{
		NFeatures:       500,
		Layers:          3,
		ScaleFactor:     2,
		EdgeThreshold:   31,
		HarrisBlockSize: 7,
		FastConf:        FASTConfig{Threshold: 20, NMatchesCircle: 9, NMSWinSize: 3},
		BRIEFConf:       BRIEFConfig{N: 256, PatchSize: 31, UseOrientation: true, Seed: 1},
	}
}

// harrisK is the Harris detector free parameter.
const harrisK = 0.04

// LoadORBConfiguration loads an ORBConfig from a json file, starting from the defaults.
func LoadORBConfiguration(file string) (*ORBConfig, error) {
	config := DefaultORBConfig()
	configFile, err := os.Open(filepath.Clean(file))
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(configFile.Close)
	if err := json.NewDecoder(configFile).Decode(&config); err != nil {
		return nil, errors.Wrap(err, "error parsing ORB config")
	}
	if err := config.Validate(file); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate ensures all parts of the ORBConfig are valid.
func (config *ORBConfig) Validate(path string) error {
	if config.NFeatures < 1 {
		return utils.NewConfigValidationError(path, errors.New("n_features should be >= 1"))
	}
	if config.Layers < 1 {
		return utils.NewConfigValidationError(path, errors.New("n_layers should be >= 1"))
	}
	if config.ScaleFactor <= 1 {
		return utils.NewConfigValidationError(path, errors.New("scale_factor should be greater than 1"))
	}
	if config.EdgeThreshold < config.BRIEFConf.PatchSize/2 {
		return utils.NewConfigValidationError(path, errors.New("edge_threshold should be >= patch_size/2"))
	}
	if config.HarrisBlockSize < 3 || config.HarrisBlockSize%2 == 0 {
		return utils.NewConfigValidationError(path, errors.New("harris_block_size should be an odd number >= 3"))
	}
	if err := config.FastConf.CheckValid(); err != nil {
		return utils.NewConfigValidationError(path+".fast", err)
	}
	if err := config.BRIEFConf.CheckValid(); err != nil {
		return utils.NewConfigValidationError(path+".brief", err)
	}
	return nil
}

// ORBFeatures are keypoints in full resolution pixel coordinates with their descriptors.
type ORBFeatures struct {
	Points      []r2.Point
	Descriptors Descriptors
}

// Len returns the number of features.
func (f *ORBFeatures) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Points)
}

// ORB computes ORB features with a fixed BRIEF sampling pattern.
type ORB struct {
	cfg   ORBConfig
	pairs *SamplePairs
}

// NewORB validates cfg and draws the BRIEF pattern.
func NewORB(cfg ORBConfig) (*ORB, error) {
	if err := cfg.Validate("orb"); err != nil {
		return nil, err
	}
	return &ORB{
		cfg:   cfg,
		pairs: GenerateSamplePairs(cfg.BRIEFConf.N, cfg.BRIEFConf.PatchSize, cfg.BRIEFConf.Seed),
	}, nil
}

// featuresPerLevel splits n features over the pyramid proportionally to each level's area
// share, giving the remainder to the coarsest level.
func featuresPerLevel(n, levels int, scaleFactor float64) []int {
	factor := 1 / scaleFactor
	perLevel := make([]int, levels)
	desired := float64(n) * (1 - factor) / (1 - math.Pow(factor, float64(levels)))
	sum := 0
	for level := 0; level < levels-1; level++ {
		perLevel[level] = int(math.Round(desired))
		sum += perLevel[level]
		desired *= factor
	}
	perLevel[levels-1] = max(n-sum, 0)
	return perLevel
}

// Compute detects and describes up to NFeatures ORB features in a gray image.
func (o *ORB) Compute(gray *image.Gray) *ORBFeatures {
	base := rimage.NewFloatImageFromGray(gray)
	perLevel := featuresPerLevel(o.cfg.NFeatures, o.cfg.Layers, o.cfg.ScaleFactor)
	features := &ORBFeatures{}

	level := base
	levelGray := rimage.MakeGray(gray)
	scale := 1.0
	for l := 0; l < o.cfg.Layers; l++ {
		if l > 0 {
			level = rimage.Resize(level, 1/o.cfg.ScaleFactor)
			levelGray = level.ToGray()
			scale *= o.cfg.ScaleFactor
		}
		if level.Width <= 2*o.cfg.EdgeThreshold || level.Height <= 2*o.cfg.EdgeThreshold {
			break
		}
		fast := NewFASTKeypointsFromImage(levelGray, o.cfg.FastConf, o.cfg.EdgeThreshold)
		fastScores := make([]float64, len(fast.Scores))
		for i, s := range fast.Scores {
			fastScores[i] = float64(s)
		}
		kps, _ := retainBest(fast.Points, fastScores, 2*perLevel[l])
		kps, _ = retainBest(kps, HarrisScores(levelGray, kps, o.cfg.HarrisBlockSize, harrisK), perLevel[l])

		oriented := GetOrientedKeyPointsFromKeyPoints(levelGray, kps)
		blurred := rimage.GaussianBlur(level, 7, 2)
		descs := ComputeBRIEFDescriptors(blurred, o.pairs, oriented, o.cfg.BRIEFConf)
		for i, kp := range kps {
			features.Points = append(features.Points, r2.Point{
				X: (float64(kp.X)+0.5)*scale - 0.5,
				Y: (float64(kp.Y)+0.5)*scale - 0.5,
			})
			features.Descriptors = append(features.Descriptors, descs[i])
		}
	}
	return features
}

// ComputeORBKeypoints computes ORB features on a gray image.
func ComputeORBKeypoints(im *image.Gray, cfg ORBConfig) (*ORBFeatures, error) {
	orb, err := NewORB(cfg)
	if err != nil {
		return nil, err
	}
	return orb.Compute(im), nil
}
