package keypoints

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"go.viam.com/test"
)

func createTestImage() *image.Gray {
	rectImage := image.NewGray(image.Rect(0, 0, 300, 200))
	whiteRect := image.Rect(50, 30, 100, 150)
	draw.Draw(rectImage, rectImage.Bounds(), &image.Uniform{color.Gray{0}}, image.Point{}, draw.Src)
	draw.Draw(rectImage, whiteRect, &image.Uniform{color.Gray{255}}, image.Point{}, draw.Src)
	return rectImage
}

func TestFASTOnRectangle(t *testing.T) {
	img := createTestImage()
	cfg := DefaultORBConfig().FastConf
	test.That(t, cfg.CheckValid(), test.ShouldBeNil)

	kps := NewFASTKeypointsFromImage(img, cfg, 3)
	test.That(t, len(kps.Points), test.ShouldEqual, len(kps.Scores))
	corners := []image.Point{{50, 30}, {99, 30}, {50, 149}, {99, 149}}
	found := make([]bool, len(corners))
	for _, kp := range kps.Points {
		near := false
		for i, c := range corners {
			d := kp.Sub(c)
			if abs(d.X) <= 4 && abs(d.Y) <= 4 {
				found[i] = true
				near = true
			}
		}
		test.That(t, near, test.ShouldBeTrue)
	}
	for _, f := range found {
		test.That(t, f, test.ShouldBeTrue)
	}
}

func TestFASTScore(t *testing.T) {
	cfg := FASTConfig{Threshold: 20, NMatchesCircle: 9, NMSWinSize: 3}
	uniform := image.NewGray(image.Rect(0, 0, 9, 9))
	test.That(t, fastScore(uniform, 4, 4, cfg), test.ShouldEqual, 0)

	// A bright pixel on a dark background passes with all 16 circle pixels darker.
	uniform.SetGray(4, 4, color.Gray{Y: 200})
	test.That(t, fastScore(uniform, 4, 4, cfg), test.ShouldEqual, 16*(200-20))

	test.That(t, FASTConfig{Threshold: 0, NMatchesCircle: 9}.CheckValid(), test.ShouldNotBeNil)
	test.That(t, FASTConfig{Threshold: 10, NMatchesCircle: 17}.CheckValid(), test.ShouldNotBeNil)
}

func TestFASTSmallImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	kps := NewFASTKeypointsFromImage(img, DefaultORBConfig().FastConf, 31)
	test.That(t, kps.Points, test.ShouldBeEmpty)
}

func TestHarrisScores(t *testing.T) {
	img := createTestImage()
	scores := HarrisScores(img, KeyPoints{{50, 30}, {75, 30}, {75, 90}}, 7, harrisK)
	// corner > flat, edge is negative
	test.That(t, scores[0], test.ShouldBeGreaterThan, 0)
	test.That(t, scores[1], test.ShouldBeLessThan, 0)
	test.That(t, scores[2], test.ShouldEqual, 0.0)
}

func TestRetainBest(t *testing.T) {
	kps := KeyPoints{{0, 0}, {1, 1}, {2, 2}, {3, 3}}
	best, scores := retainBest(kps, []float64{1, 5, 3, 5}, 3)
	test.That(t, best, test.ShouldResemble, KeyPoints{{1, 1}, {3, 3}, {2, 2}})
	test.That(t, scores, test.ShouldResemble, []float64{5, 5, 3})

	same, _ := retainBest(kps, []float64{1, 2, 3, 4}, 10)
	test.That(t, same, test.ShouldResemble, kps)
}
