package opticalflow

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

// texture renders a smooth pattern shifted by (dx, dy).
func texture(w, h int, dx, dy float64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			u := float64(x) - dx
			v := float64(y) - dy
			val := 128 + 50*math.Sin(u/7)*math.Cos(v/9) + 40*math.Sin((u+v)/13)
			img.SetGray(x, y, color.Gray{Y: uint8(math.Round(val))})
		}
	}
	return img
}

func gridPoints(w, h, margin, step int) []r2.Point {
	var pts []r2.Point
	for y := margin; y < h-margin; y += step {
		for x := margin; x < w-margin; x += step {
			pts = append(pts, r2.Point{X: float64(x), Y: float64(y)})
		}
	}
	return pts
}

func checkShift(t *testing.T, dx, dy, tol float64) {
	t.Helper()
	tracker, err := NewTracker(DefaultLKConfig())
	test.That(t, err, test.ShouldBeNil)
	prev := texture(320, 240, 0, 0)
	cur := texture(320, 240, dx, dy)
	pts := gridPoints(320, 240, 40, 20)

	next, status, err := tracker.TrackImages(context.Background(), prev, cur, pts)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, next, test.ShouldHaveLength, len(pts))
	for i, p := range pts {
		test.That(t, status[i], test.ShouldBeTrue)
		test.That(t, next[i].X, test.ShouldAlmostEqual, p.X+dx, tol)
		test.That(t, next[i].Y, test.ShouldAlmostEqual, p.Y+dy, tol)
	}
}

func TestTrackSmallShift(t *testing.T) {
	checkShift(t, 2, 1, 0.25)
}

func TestTrackLargeShift(t *testing.T) {
	checkShift(t, 6, -4, 0.3)
}

func TestTrackUniformImageLosesPoints(t *testing.T) {
	tracker, err := NewTracker(DefaultLKConfig())
	test.That(t, err, test.ShouldBeNil)
	flat := image.NewGray(image.Rect(0, 0, 160, 120))
	_, status, err := tracker.TrackImages(context.Background(), flat, flat, []r2.Point{{X: 80, Y: 60}, {X: 30, Y: 30}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, status, test.ShouldResemble, []bool{false, false})
}

func TestTrackOutsidePoint(t *testing.T) {
	tracker, err := NewTracker(DefaultLKConfig())
	test.That(t, err, test.ShouldBeNil)
	img := texture(160, 120, 0, 0)
	_, status, err := tracker.TrackImages(context.Background(), img, img, []r2.Point{{X: -200, Y: -200}, {X: 80, Y: 60}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, status, test.ShouldResemble, []bool{false, true})
}

func TestTrackErrors(t *testing.T) {
	tracker, err := NewTracker(DefaultLKConfig())
	test.That(t, err, test.ShouldBeNil)

	_, _, err = tracker.TrackImages(context.Background(), texture(160, 120, 0, 0), texture(100, 120, 0, 0), nil)
	test.That(t, err, test.ShouldNotBeNil)

	_, _, err = tracker.Track(context.Background(), nil, nil, nil)
	test.That(t, err, test.ShouldNotBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	img := texture(160, 120, 0, 0)
	_, _, err = tracker.TrackImages(ctx, img, img, []r2.Point{{X: 80, Y: 60}})
	test.That(t, err, test.ShouldEqual, context.Canceled)

	next, status, err := tracker.TrackImages(context.Background(), img, img, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, next, test.ShouldBeEmpty)
	test.That(t, status, test.ShouldBeEmpty)
}

func TestNewPyramidLevels(t *testing.T) {
	tracker, err := NewTracker(DefaultLKConfig())
	test.That(t, err, test.ShouldBeNil)
	pyr := tracker.NewPyramid(texture(640, 480, 0, 0))
	test.That(t, pyr.Levels, test.ShouldHaveLength, 3)
	test.That(t, pyr.Gradients, test.ShouldHaveLength, 3)
	test.That(t, pyr.Levels[2].Width, test.ShouldEqual, 160)
	test.That(t, pyr.Size(), test.ShouldResemble, image.Point{640, 480})

	// too small for the window: base level only
	pyr = tracker.NewPyramid(texture(30, 30, 0, 0))
	test.That(t, pyr.Levels, test.ShouldHaveLength, 1)
}

func TestLKConfigCheckValid(t *testing.T) {
	test.That(t, DefaultLKConfig().CheckValid(), test.ShouldBeNil)
	cfg := DefaultLKConfig()
	cfg.WindowSize = 20
	test.That(t, cfg.CheckValid(), test.ShouldNotBeNil)
	_, err := NewTracker(cfg)
	test.That(t, err, test.ShouldNotBeNil)
	cfg = DefaultLKConfig()
	cfg.Epsilon = 0
	test.That(t, cfg.CheckValid(), test.ShouldNotBeNil)
}
