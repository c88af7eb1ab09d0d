package rimage

import (
	"image"
	"image/draw"
)

// SameImgSize compares two images to see if they're the same size.
func SameImgSize(g1, g2 image.Image) bool {
	return g1.Bounds().Size() == g2.Bounds().Size()
}

// MakeGray converts any image to an 8-bit luminance image with bounds starting at the origin.
// Gray images are copied so callers can keep the result after the source is recycled.
func MakeGray(pic image.Image) *image.Gray {
	size := pic.Bounds().Size()
	result := image.NewGray(image.Rect(0, 0, size.X, size.Y))
	draw.Draw(result, result.Bounds(), pic, pic.Bounds().Min, draw.Src)
	return result
}

// GrayMeanAbsDiff returns the mean absolute per-pixel difference of two same-sized gray images,
// or -1 if their sizes differ.
func GrayMeanAbsDiff(g1, g2 *image.Gray) float64 {
	if !SameImgSize(g1, g2) {
		return -1
	}
	size := g1.Bounds().Size()
	if size.X == 0 || size.Y == 0 {
		return 0
	}
	var sum int64
	for y := 0; y < size.Y; y++ {
		row1 := g1.Pix[y*g1.Stride : y*g1.Stride+size.X]
		row2 := g2.Pix[y*g2.Stride : y*g2.Stride+size.X]
		for x := range row1 {
			d := int64(row1[x]) - int64(row2[x])
			if d < 0 {
				d = -d
			}
			sum += d
		}
	}
	return float64(sum) / float64(size.X*size.Y)
}
