package rimage

import (
	"testing"

	"go.viam.com/test"
)

func TestSobelOnStep(t *testing.T) {
	img := NewFloatImage(10, 10)
	for y := 0; y < 10; y++ {
		for x := 5; x < 10; x++ {
			img.Set(x, y, 80)
		}
	}
	grads := SobelGradients(img)
	test.That(t, grads.X.At(4, 5), test.ShouldAlmostEqual, 40)
	test.That(t, grads.X.At(5, 5), test.ShouldAlmostEqual, 40)
	test.That(t, grads.X.At(2, 5), test.ShouldEqual, float32(0))
	test.That(t, grads.Y.At(5, 5), test.ShouldEqual, float32(0))
}
