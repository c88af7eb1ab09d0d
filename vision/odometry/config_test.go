package odometry

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	test.That(t, cfg.Validate("odometry"), test.ShouldBeNil)
	test.That(t, cfg.Intrinsics.Fx, test.ShouldEqual, 713.8)
	test.That(t, cfg.Intrinsics.Ppx, test.ShouldEqual, 319.5)
	test.That(t, cfg.Corners.MaxCorners, test.ShouldEqual, 2000)
	test.That(t, cfg.OpticalFlow.WindowSize, test.ShouldEqual, 21)
	test.That(t, cfg.Essential.Threshold, test.ShouldEqual, 0.5)
	test.That(t, cfg.MaxRotation, test.ShouldEqual, 0.15)
	test.That(t, cfg.Loop.CheckInterval, test.ShouldEqual, 20)
}

func writeConfig(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	test.That(t, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
	return path
}

func TestLoadConfigJSON(t *testing.T) {
	path := writeConfig(t, "vo.json", `{
		"intrinsic_parameters": {"width_px": 320, "height_px": 240, "fx": 356.9, "fy": 356.9, "ppx": 159.5, "ppy": 119.5},
		"min_pose_inliers": 40,
		"motion_filter": {"alpha": 0.5}
	}`)
	cfg, err := LoadConfig(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Intrinsics.Width, test.ShouldEqual, 320)
	test.That(t, cfg.MinPoseInliers, test.ShouldEqual, 40)
	test.That(t, cfg.Filter.Alpha, test.ShouldEqual, 0.5)
	// Unset fields keep their defaults.
	test.That(t, cfg.Filter.HistorySize, test.ShouldEqual, 5)
	test.That(t, cfg.MaxFlow, test.ShouldEqual, 50.0)
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfig(t, "vo.yaml", `
max_rotation_rad: 0.2
scale:
  factor: 0.1
loop:
  candidates: 3
optical_flow:
  max_level: 3
`)
	cfg, err := LoadConfig(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.MaxRotation, test.ShouldEqual, 0.2)
	test.That(t, cfg.Scale.Factor, test.ShouldEqual, 0.1)
	test.That(t, cfg.Scale.MaxStep, test.ShouldEqual, 0.1)
	test.That(t, cfg.Loop.Candidates, test.ShouldEqual, 3)
	test.That(t, cfg.Loop.MinMatches, test.ShouldEqual, 20)
	test.That(t, cfg.OpticalFlow.MaxLevel, test.ShouldEqual, 3)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = LoadConfig(writeConfig(t, "bad.json", `{"min_flow_px": `))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "error parsing config")

	_, err = LoadConfig(writeConfig(t, "invalid.yml", "scale:\n  factor: -1\n"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "scale.factor")
}

func TestConfigValidateCollectsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTrackedPoints = 4
	cfg.MaxFlow = 0.1
	cfg.Filter.MinSamples = 9
	cfg.Filter.Alpha = 0
	cfg.Loop.Candidates = 0
	cfg.Essential.Confidence = 1
	cfg.Intrinsics.Fx = 0

	err := cfg.Validate("vo")
	test.That(t, err, test.ShouldNotBeNil)
	for _, field := range []string{
		"min_tracked_points",
		"max_flow_px",
		"motion_filter.min_samples",
		"motion_filter.alpha",
		"loop.candidates",
		"essential",
		"intrinsic_parameters",
	} {
		test.That(t, err.Error(), test.ShouldContainSubstring, "vo."+field)
	}
}
