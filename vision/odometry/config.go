package odometry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"gopkg.in/yaml.v3"

	"go.viam.com/vslam/rimage/transform"
	"go.viam.com/vslam/vision/keypoints"
	"go.viam.com/vslam/vision/opticalflow"
)

// ScaleConfig fixes the scale of the unit translation recovered from the essential matrix.
type ScaleConfig struct {
	// Factor multiplies the unit translation.
	Factor float64 `json:"factor" yaml:"factor"`
	// MaxStep clamps the magnitude of the scaled translation.
	MaxStep float64 `json:"max_step" yaml:"max_step"`
}

// MotionFilterConfig parameterizes the translation outlier rejection and smoothing.
type MotionFilterConfig struct {
	HistorySize int `json:"history_size" yaml:"history_size"`
	MinSamples  int `json:"min_samples" yaml:"min_samples"`
	// A sample further than MADFactor * MAD + MADEpsilon from the history median is an outlier.
	MADFactor  float64 `json:"mad_factor" yaml:"mad_factor"`
	MADEpsilon float64 `json:"mad_epsilon" yaml:"mad_epsilon"`
	// Alpha is the weight of the newest sample in the moving average.
	Alpha float64 `json:"alpha" yaml:"alpha"`
	// MinMotion rejects smoothed translations shorter than this.
	MinMotion float64 `json:"min_motion" yaml:"min_motion"`
}

// LoopConfig parameterizes keyframes, loop closure checks and relocalization.
type LoopConfig struct {
	KeyframeInterval  int `json:"keyframe_interval" yaml:"keyframe_interval"`
	MaxKeyframes      int `json:"max_keyframes" yaml:"max_keyframes"`
	CheckInterval     int `json:"check_interval" yaml:"check_interval"`
	MinKeyframes      int `json:"min_keyframes" yaml:"min_keyframes"`
	Candidates        int `json:"candidates" yaml:"candidates"`
	MinMatches        int `json:"min_matches" yaml:"min_matches"`
	MinInliers        int `json:"min_inliers" yaml:"min_inliers"`
	MaxDescriptorDist int `json:"max_descriptor_dist" yaml:"max_descriptor_dist"`
}

// Config contains every tunable of the engine.
type Config struct {
	Intrinsics  transform.PinholeCameraIntrinsics `json:"intrinsic_parameters" yaml:"intrinsic_parameters"`
	Corners     keypoints.CornerConfig            `json:"corners" yaml:"corners"`
	OpticalFlow opticalflow.LKConfig              `json:"optical_flow" yaml:"optical_flow"`
	ORB         keypoints.ORBConfig               `json:"orb" yaml:"orb"`
	Essential   transform.RANSACConfig            `json:"essential" yaml:"essential"`
	Fundamental transform.RANSACConfig            `json:"fundamental" yaml:"fundamental"`

	// MinTrackedPoints is the fewest points worth tracking or estimating motion from.
	MinTrackedPoints int `json:"min_tracked_points" yaml:"min_tracked_points"`
	// MinFlow and MaxFlow bound the mean optical flow, in pixels, of a usable frame.
	MinFlow float64 `json:"min_flow_px" yaml:"min_flow_px"`
	MaxFlow float64 `json:"max_flow_px" yaml:"max_flow_px"`
	// MinPoseInliers is the fewest correspondences passing the cheirality check.
	MinPoseInliers int `json:"min_pose_inliers" yaml:"min_pose_inliers"`
	// MaxRotation is the largest accepted rotation between frames, in radians.
	MaxRotation float64 `json:"max_rotation_rad" yaml:"max_rotation_rad"`
	// CheiralityDistance discards triangulated points further than this many baselines.
	CheiralityDistance float64 `json:"cheirality_distance" yaml:"cheirality_distance"`

	Scale  ScaleConfig        `json:"scale" yaml:"scale"`
	Filter MotionFilterConfig `json:"motion_filter" yaml:"motion_filter"`
	Loop   LoopConfig         `json:"loop" yaml:"loop"`

	MaxTrajectory    int `json:"max_trajectory" yaml:"max_trajectory"`
	MaxCloudChunks   int `json:"max_cloud_chunks" yaml:"max_cloud_chunks"`
	MaxSampledPoints int `json:"max_sampled_points" yaml:"max_sampled_points"`

	// Seed makes RANSAC reproducible.
	Seed int64 `json:"seed" yaml:"seed"`
}

// DefaultConfig returns the default engine configuration for a 640x480 camera.
func DefaultConfig() Config {
	fundamental := transform.RANSACConfig{Confidence: 0.99, Threshold: 3, MaxIterations: 1000}
	return Config{
		Intrinsics:  *transform.DefaultIntrinsics(),
		Corners:     keypoints.DefaultCornerConfig(),
		OpticalFlow: opticalflow.DefaultLKConfig(),
		ORB:         keypoints.DefaultORBConfig(),
		Essential:   transform.RANSACConfig{Confidence: 0.999, Threshold: 0.5, MaxIterations: 1000},
		Fundamental: fundamental,

		MinTrackedPoints:   8,
		MinFlow:            0.5,
		MaxFlow:            50,
		MinPoseInliers:     30,
		MaxRotation:        0.15,
		CheiralityDistance: 50,

		Scale: ScaleConfig{Factor: 0.05, MaxStep: 0.1},
		Filter: MotionFilterConfig{
			HistorySize: 5,
			MinSamples:  3,
			MADFactor:   3,
			MADEpsilon:  0.01,
			Alpha:       0.3,
			MinMotion:   0.002,
		},
		Loop: LoopConfig{
			KeyframeInterval: 10,
			MaxKeyframes:     50,
			CheckInterval:    20,
			MinKeyframes:     5,
			Candidates:       5,
			MinMatches:       20,
			MinInliers:       15,
		},

		MaxTrajectory:    1000,
		MaxCloudChunks:   100,
		MaxSampledPoints: 1000,
		Seed:             1,
	}
}

// LoadConfig reads a JSON or YAML (by extension) configuration file. Fields missing from the
// file keep their default value.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing config %q", path)
	}
	if err := config.Validate(path); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate returns every problem of the config, each qualified by path.
func (config *Config) Validate(path string) error {
	var errs error
	check := func(field string, err error) {
		if err != nil {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path+"."+field, err))
		}
	}
	positive := func(field string, v float64) {
		if v <= 0 {
			check(field, errors.New("should be positive"))
		}
	}
	atLeast := func(field string, v, lo int) {
		if v < lo {
			check(field, errors.Errorf("should be >= %d", lo))
		}
	}

	check("intrinsic_parameters", config.Intrinsics.CheckValid())
	check("corners", config.Corners.CheckValid())
	check("optical_flow", config.OpticalFlow.CheckValid())
	check("essential", config.Essential.CheckValid())
	check("fundamental", config.Fundamental.CheckValid())
	if err := config.ORB.Validate(path + ".orb"); err != nil {
		errs = multierr.Append(errs, err)
	}

	atLeast("min_tracked_points", config.MinTrackedPoints, 8)
	atLeast("min_pose_inliers", config.MinPoseInliers, 1)
	if config.MinFlow < 0 || config.MaxFlow <= config.MinFlow {
		check("max_flow_px", errors.New("should be greater than min_flow_px >= 0"))
	}
	positive("max_rotation_rad", config.MaxRotation)
	positive("cheirality_distance", config.CheiralityDistance)

	positive("scale.factor", config.Scale.Factor)
	positive("scale.max_step", config.Scale.MaxStep)

	atLeast("motion_filter.history_size", config.Filter.HistorySize, 1)
	atLeast("motion_filter.min_samples", config.Filter.MinSamples, 1)
	if config.Filter.MinSamples > config.Filter.HistorySize {
		check("motion_filter.min_samples", errors.New("should not exceed history_size"))
	}
	if config.Filter.Alpha <= 0 || config.Filter.Alpha > 1 {
		check("motion_filter.alpha", errors.New("should be in (0, 1]"))
	}
	if config.Filter.MADFactor < 0 || config.Filter.MADEpsilon < 0 || config.Filter.MinMotion < 0 {
		check("motion_filter", errors.New("mad_factor, mad_epsilon and min_motion should be >= 0"))
	}

	atLeast("loop.keyframe_interval", config.Loop.KeyframeInterval, 1)
	atLeast("loop.max_keyframes", config.Loop.MaxKeyframes, 1)
	atLeast("loop.check_interval", config.Loop.CheckInterval, 1)
	atLeast("loop.min_keyframes", config.Loop.MinKeyframes, 1)
	atLeast("loop.candidates", config.Loop.Candidates, 1)
	atLeast("loop.min_matches", config.Loop.MinMatches, 8)
	atLeast("loop.min_inliers", config.Loop.MinInliers, 8)

	atLeast("max_trajectory", config.MaxTrajectory, 1)
	atLeast("max_cloud_chunks", config.MaxCloudChunks, 1)
	atLeast("max_sampled_points", config.MaxSampledPoints, 1)
	return errs
}
