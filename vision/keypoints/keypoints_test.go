package keypoints

import (
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestOrientations(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(2 * x)})
		}
	}
	oriented := GetOrientedKeyPointsFromKeyPoints(img, KeyPoints{{32, 32}})
	test.That(t, oriented.Orientations[0], test.ShouldAlmostEqual, 0, 1e-9)

	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(2 * y)})
		}
	}
	oriented = GetOrientedKeyPointsFromKeyPoints(img, KeyPoints{{32, 32}})
	test.That(t, oriented.Orientations[0], test.ShouldAlmostEqual, math.Pi/2, 1e-9)
}

func TestGenerateSamplePairs(t *testing.T) {
	sp := GenerateSamplePairs(256, 31, 1)
	test.That(t, sp.N, test.ShouldEqual, 256)
	test.That(t, sp.P0, test.ShouldHaveLength, 256)
	for i := range sp.P0 {
		for _, p := range []image.Point{sp.P0[i], sp.P1[i]} {
			test.That(t, p.X, test.ShouldBeBetweenOrEqual, -15, 15)
			test.That(t, p.Y, test.ShouldBeBetweenOrEqual, -15, 15)
		}
		test.That(t, sp.P0[i], test.ShouldNotResemble, sp.P1[i])
	}
	test.That(t, GenerateSamplePairs(256, 31, 1), test.ShouldResemble, sp)
	test.That(t, GenerateSamplePairs(256, 31, 2), test.ShouldNotResemble, sp)
}

func TestPlotKeypoints(t *testing.T) {
	img := createTestImage()
	drawn := DrawKeypoints(img, []r2.Point{{X: 50, Y: 30}}, color.NRGBA{R: 255, A: 255})
	test.That(t, drawn.Bounds(), test.ShouldResemble, img.Bounds())
	r, _, _, _ := drawn.At(50, 30).RGBA()
	test.That(t, r, test.ShouldBeGreaterThan, 0)

	out := filepath.Join(t.TempDir(), "kps.png")
	test.That(t, PlotKeypoints(img, []r2.Point{{X: 50, Y: 30}}, out), test.ShouldBeNil)
	_, err := os.Stat(out)
	test.That(t, err, test.ShouldBeNil)
}
