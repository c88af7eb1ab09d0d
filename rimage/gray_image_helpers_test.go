package rimage

import (
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"
)

func TestMakeGray(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 20, 14, 23))
	src.Set(10, 20, color.RGBA{255, 255, 255, 255})
	src.Set(13, 22, color.RGBA{255, 0, 0, 255})

	gray := MakeGray(src)
	test.That(t, gray.Bounds(), test.ShouldResemble, image.Rect(0, 0, 4, 3))
	test.That(t, gray.GrayAt(0, 0).Y, test.ShouldEqual, uint8(255))
	test.That(t, gray.GrayAt(1, 1).Y, test.ShouldEqual, uint8(0))
	// Luminance of pure red.
	test.That(t, gray.GrayAt(3, 2).Y, test.ShouldEqual, uint8(76))

	// Gray input is copied.
	again := MakeGray(gray)
	again.SetGray(0, 0, color.Gray{Y: 1})
	test.That(t, gray.GrayAt(0, 0).Y, test.ShouldEqual, uint8(255))
}

func TestGrayMeanAbsDiff(t *testing.T) {
	a := image.NewGray(image.Rect(0, 0, 2, 2))
	b := image.NewGray(image.Rect(0, 0, 2, 2))
	test.That(t, GrayMeanAbsDiff(a, b), test.ShouldEqual, 0.0)
	b.SetGray(1, 1, color.Gray{Y: 8})
	test.That(t, GrayMeanAbsDiff(a, b), test.ShouldEqual, 2.0)
	test.That(t, GrayMeanAbsDiff(a, image.NewGray(image.Rect(0, 0, 3, 2))), test.ShouldEqual, -1.0)
}
