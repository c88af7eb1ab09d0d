package rimage

// Gradients holds the horizontal and vertical derivatives of an image.
type Gradients struct {
	X *FloatImage
	Y *FloatImage
}

// SobelGradients computes 3x3 Sobel derivatives, normalized to intensity units per pixel.
func SobelGradients(img *FloatImage) Gradients {
	const norm = 1.0 / 8
	return Gradients{
		X: Convolve(img, GetSobelX(), norm),
		Y: Convolve(img, GetSobelY(), norm),
	}
}

// ScharrGradients computes 3x3 Scharr derivatives, normalized to intensity units per pixel.
// Scharr has better rotational symmetry than Sobel, which matters for optical flow.
func ScharrGradients(img *FloatImage) Gradients {
	const norm = 1.0 / 32
	return Gradients{
		X: Convolve(img, GetScharrX(), norm),
		Y: Convolve(img, GetScharrY(), norm),
	}
}
