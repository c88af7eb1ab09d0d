package rimage

// pyramidKernel is the 5-tap binomial filter used before decimation.
var pyramidKernel = []float64{1.0 / 16, 4.0 / 16, 6.0 / 16, 4.0 / 16, 1.0 / 16}

// PyrDown blurs img and drops every other row and column. The result is ceil(w/2) x ceil(h/2).
func PyrDown(img *FloatImage) *FloatImage {
	blurred := SeparableFilter(img, pyramidKernel, pyramidKernel)
	out := NewFloatImage((img.Width+1)/2, (img.Height+1)/2)
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			out.Pix[y*out.Width+x] = blurred.Pix[2*y*img.Width+2*x]
		}
	}
	return out
}

// Resize scales img by factor (< 1 shrinks) with bilinear sampling at pixel centers.
func Resize(img *FloatImage, factor float64) *FloatImage {
	w := int(float64(img.Width)*factor + 0.5)
	h := int(float64(img.Height)*factor + 0.5)
	out := NewFloatImage(w, h)
	inv := 1 / factor
	for y := 0; y < h; y++ {
		sy := (float64(y)+0.5)*inv - 0.5
		for x := 0; x < w; x++ {
			sx := (float64(x)+0.5)*inv - 0.5
			out.Pix[y*w+x] = float32(img.Bilinear(sx, sy))
		}
	}
	return out
}

// Pyramid returns img followed by levels successive PyrDown reductions. Reduction stops early
// once an image dimension would drop below minSize.
func Pyramid(img *FloatImage, levels, minSize int) []*FloatImage {
	out := []*FloatImage{img}
	for i := 0; i < levels; i++ {
		last := out[len(out)-1]
		if (last.Width+1)/2 < minSize || (last.Height+1)/2 < minSize {
			break
		}
		out = append(out, PyrDown(last))
	}
	return out
}
