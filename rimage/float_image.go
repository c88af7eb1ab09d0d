package rimage

import (
	"image"
	"image/color"
	"math"
)

// FloatImage is a single channel image of float32 intensities, stored row-major. Reads outside
// the image replicate the nearest border pixel.
type FloatImage struct {
	Width  int
	Height int
	Pix    []float32
}

// NewFloatImage returns a zeroed width x height image.
func NewFloatImage(width, height int) *FloatImage {
	return &FloatImage{Width: width, Height: height, Pix: make([]float32, width*height)}
}

// NewFloatImageFromGray converts a gray image to intensities in [0, 255].
func NewFloatImageFromGray(gray *image.Gray) *FloatImage {
	b := gray.Bounds()
	out := NewFloatImage(b.Dx(), b.Dy())
	for y := 0; y < out.Height; y++ {
		start := gray.PixOffset(b.Min.X, b.Min.Y+y)
		row := gray.Pix[start : start+out.Width]
		dst := out.Pix[y*out.Width : (y+1)*out.Width]
		for x, v := range row {
			dst[x] = float32(v)
		}
	}
	return out
}

// Bounds returns the image rectangle.
func (f *FloatImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// In reports whether (x, y) lies inside the image.
func (f *FloatImage) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < f.Width && y < f.Height
}

// At returns the pixel at (x, y), clamping the coordinates to the image.
func (f *FloatImage) At(x, y int) float32 {
	x = clampInt(x, 0, f.Width-1)
	y = clampInt(y, 0, f.Height-1)
	return f.Pix[y*f.Width+x]
}

// Set writes the pixel at (x, y). Out of range writes are ignored.
func (f *FloatImage) Set(x, y int, v float32) {
	if !f.In(x, y) {
		return
	}
	f.Pix[y*f.Width+x] = v
}

// Bilinear samples the image at a sub-pixel position.
func (f *FloatImage) Bilinear(x, y float64) float64 {
	x0 := math.Floor(x)
	y0 := math.Floor(y)
	ax := x - x0
	ay := y - y0
	ix, iy := int(x0), int(y0)
	p00 := float64(f.At(ix, iy))
	p10 := float64(f.At(ix+1, iy))
	p01 := float64(f.At(ix, iy+1))
	p11 := float64(f.At(ix+1, iy+1))
	return (1-ay)*((1-ax)*p00+ax*p10) + ay*((1-ax)*p01+ax*p11)
}

// ToGray converts back to 8 bits, clamping to [0, 255].
func (f *FloatImage) ToGray() *image.Gray {
	out := image.NewGray(f.Bounds())
	for i, v := range f.Pix {
		out.Pix[i] = color.Gray{Y: uint8(math.Round(clampF64(float64(v), 0, 255)))}.Y
	}
	return out
}

// MaxValue returns the largest pixel, or 0 for an empty image.
func (f *FloatImage) MaxValue() float32 {
	if len(f.Pix) == 0 {
		return 0
	}
	m := f.Pix[0]
	for _, v := range f.Pix[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampF64(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
