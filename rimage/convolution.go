package rimage

import (
	"math"

	"go.viam.com/vslam/utils"
)

// Kernel is a square convolution kernel of odd size, stored row-major.
type Kernel struct {
	Size    int
	Weights []float64
}

// At returns the weight at column x, row y.
func (k Kernel) At(x, y int) float64 {
	return k.Weights[y*k.Size+x]
}

// GetSobelX returns the Sobel kernel in the x direction.
func GetSobelX() Kernel {
	return Kernel{Size: 3, Weights: []float64{
		-1, 0, 1,
		-2, 0, 2,
		-1, 0, 1,
	}}
}

// GetSobelY returns the Sobel kernel in the y direction.
func GetSobelY() Kernel {
	return Kernel{Size: 3, Weights: []float64{
		-1, -2, -1,
		0, 0, 0,
		1, 2, 1,
	}}
}

// GetScharrX returns the Scharr kernel in the x direction.
func GetScharrX() Kernel {
	return Kernel{Size: 3, Weights: []float64{
		-3, 0, 3,
		-10, 0, 10,
		-3, 0, 3,
	}}
}

// GetScharrY returns the Scharr kernel in the y direction.
func GetScharrY() Kernel {
	return Kernel{Size: 3, Weights: []float64{
		-3, -10, -3,
		0, 0, 0,
		3, 10, 3,
	}}
}

// Convolve applies kernel centered on every pixel, replicating borders, and multiplies the
// result by scale.
func Convolve(img *FloatImage, kernel Kernel, scale float64) *FloatImage {
	out := NewFloatImage(img.Width, img.Height)
	half := kernel.Size / 2
	utils.ParallelForEachRow(img.Height, func(y int) {
		for x := 0; x < img.Width; x++ {
			var sum float64
			for ky := 0; ky < kernel.Size; ky++ {
				for kx := 0; kx < kernel.Size; kx++ {
					w := kernel.At(kx, ky)
					if w == 0 {
						continue
					}
					sum += w * float64(img.At(x+kx-half, y+ky-half))
				}
			}
			out.Pix[y*img.Width+x] = float32(sum * scale)
		}
	})
	return out
}

// SeparableFilter convolves rows with kx and then columns with ky, replicating borders. Both
// kernels must have odd length.
func SeparableFilter(img *FloatImage, kx, ky []float64) *FloatImage {
	tmp := NewFloatImage(img.Width, img.Height)
	hx := len(kx) / 2
	utils.ParallelForEachRow(img.Height, func(y int) {
		for x := 0; x < img.Width; x++ {
			var sum float64
			for i, w := range kx {
				sum += w * float64(img.At(x+i-hx, y))
			}
			tmp.Pix[y*img.Width+x] = float32(sum)
		}
	})
	out := NewFloatImage(img.Width, img.Height)
	hy := len(ky) / 2
	utils.ParallelForEachRow(img.Height, func(y int) {
		for x := 0; x < img.Width; x++ {
			var sum float64
			for i, w := range ky {
				sum += w * float64(tmp.At(x, y+i-hy))
			}
			out.Pix[y*img.Width+x] = float32(sum)
		}
	})
	return out
}

// GaussianKernel1D returns a normalized gaussian of the given odd size. A non-positive sigma is
// derived from the size the way OpenCV does.
func GaussianKernel1D(size int, sigma float64) []float64 {
	if size%2 == 0 {
		size++
	}
	if sigma <= 0 {
		sigma = 0.3*(float64(size-1)*0.5-1) + 0.8
	}
	half := size / 2
	k := make([]float64, size)
	var sum float64
	for i := range k {
		d := float64(i - half)
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// GaussianBlur smooths img with a size x size gaussian.
func GaussianBlur(img *FloatImage, size int, sigma float64) *FloatImage {
	k := GaussianKernel1D(size, sigma)
	return SeparableFilter(img, k, k)
}

// BoxSum returns, for every pixel, the sum of src over the size x size window centered on it.
func BoxSum(img *FloatImage, size int) *FloatImage {
	k := make([]float64, size)
	for i := range k {
		k[i] = 1
	}
	return SeparableFilter(img, k, k)
}
