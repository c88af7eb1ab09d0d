package keypoints

import (
	"image"
	"image/color"
	"image/draw"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

// randomRectangles draws overlapping gray rectangles, a scene rich in corners.
func randomRectangles(w, h int, seed int64) *image.Gray {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.Gray{Y: 128}}, image.Point{}, draw.Src)
	for i := 0; i < 150; i++ {
		x, y := rng.Intn(w), rng.Intn(h)
		r := image.Rect(x, y, x+10+rng.Intn(60), y+10+rng.Intn(60))
		draw.Draw(img, r, &image.Uniform{color.Gray{Y: uint8(rng.Intn(256))}}, image.Point{}, draw.Src)
	}
	return img
}

func TestFeaturesPerLevel(t *testing.T) {
	test.That(t, featuresPerLevel(500, 3, 2), test.ShouldResemble, []int{286, 143, 71})
	test.That(t, featuresPerLevel(10, 1, 2), test.ShouldResemble, []int{10})
}

func TestORBSelfMatch(t *testing.T) {
	img := randomRectangles(640, 480, 3)
	features, err := ComputeORBKeypoints(img, DefaultORBConfig())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, features.Len(), test.ShouldBeGreaterThan, 100)
	test.That(t, features.Len(), test.ShouldBeLessThanOrEqualTo, 500)
	test.That(t, len(features.Descriptors), test.ShouldEqual, features.Len())
	for _, p := range features.Points {
		test.That(t, p.X, test.ShouldBeBetween, 0, 640)
		test.That(t, p.Y, test.ShouldBeBetween, 0, 480)
	}

	// Same image, same pattern: identical descriptors.
	again, err := ComputeORBKeypoints(img, DefaultORBConfig())
	test.That(t, err, test.ShouldBeNil)
	matches, err := MatchDescriptors(features.Descriptors, again.Descriptors, MatchingConfig{DoCrossCheck: true})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(matches), test.ShouldBeGreaterThanOrEqualTo, features.Len()*9/10)
	for _, m := range matches {
		test.That(t, m.Distance, test.ShouldEqual, 0)
	}
}

func TestORBShiftedImage(t *testing.T) {
	img := randomRectangles(660, 480, 11)
	left := image.NewGray(image.Rect(0, 0, 640, 480))
	right := image.NewGray(image.Rect(0, 0, 640, 480))
	draw.Draw(left, left.Bounds(), img, image.Point{}, draw.Src)
	draw.Draw(right, right.Bounds(), img, image.Point{X: 12}, draw.Src)

	orb, err := NewORB(DefaultORBConfig())
	test.That(t, err, test.ShouldBeNil)
	f1 := orb.Compute(left)
	f2 := orb.Compute(right)
	matches, err := MatchDescriptors(f1.Descriptors, f2.Descriptors, MatchingConfig{DoCrossCheck: true})
	test.That(t, err, test.ShouldBeNil)
	pts1, pts2, err := GetMatchingKeyPoints(matches, f1.Points, f2.Points)
	test.That(t, err, test.ShouldBeNil)

	// Most matches agree with the 12 pixel shift.
	agree := 0
	for i := range pts1 {
		if d := pts1[i].Sub(pts2[i]); d.X > 10 && d.X < 14 && d.Y > -2 && d.Y < 2 {
			agree++
		}
	}
	test.That(t, agree, test.ShouldBeGreaterThan, 50)
	test.That(t, agree, test.ShouldBeGreaterThan, len(matches)/2)
}

func TestORBUniformImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 640, 480))
	features, err := ComputeORBKeypoints(img, DefaultORBConfig())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, features.Len(), test.ShouldEqual, 0)
}

func TestORBConfigValidate(t *testing.T) {
	cfg := DefaultORBConfig()
	test.That(t, cfg.Validate("orb"), test.ShouldBeNil)
	cfg.ScaleFactor = 1
	test.That(t, cfg.Validate("orb"), test.ShouldNotBeNil)
	cfg = DefaultORBConfig()
	cfg.BRIEFConf.N = 100
	test.That(t, cfg.Validate("orb"), test.ShouldNotBeNil)
	_, err := NewORB(cfg)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoadORBConfiguration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orb.json")
	err := os.WriteFile(path, []byte(`{"n_features": 200, "fast": {"threshold": 30}}`), 0o600)
	test.That(t, err, test.ShouldBeNil)
	cfg, err := LoadORBConfiguration(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.NFeatures, test.ShouldEqual, 200)
	test.That(t, cfg.FastConf.Threshold, test.ShouldEqual, 30)
	test.That(t, cfg.FastConf.NMatchesCircle, test.ShouldEqual, 9)
	test.That(t, cfg.Layers, test.ShouldEqual, 3)

	_, err = LoadORBConfiguration(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}
