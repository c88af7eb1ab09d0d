package imagesource

import (
	"context"
	"image"

	"github.com/disintegration/imaging"
)

// RotateSource rotates every image of a source by 180 degrees, for cameras mounted upside down.
type RotateSource struct {
	Original ImageSource
}

// Next returns the rotated next image of the original source.
func (rs *RotateSource) Next(ctx context.Context) (image.Image, func(), error) {
	orig, release, err := rs.Original.Next(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer release()
	return imaging.Rotate180(orig), func() {}, nil
}

// Close closes the original source.
func (rs *RotateSource) Close() error {
	return rs.Original.Close()
}

// ResizeSource resizes every image of a source.
type ResizeSource struct {
	Original      ImageSource
	Width, Height int
}

// Next returns the resized next image of the original source.
func (rs ResizeSource) Next(ctx context.Context) (image.Image, func(), error) {
	orig, release, err := rs.Original.Next(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer release()
	return imaging.Resize(orig, rs.Width, rs.Height, imaging.Linear), func() {}, nil
}

// Close closes the original source.
func (rs ResizeSource) Close() error {
	return rs.Original.Close()
}
