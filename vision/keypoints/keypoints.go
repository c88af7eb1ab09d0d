// Package keypoints contains the implementation of keypoints in an image:
//   - Shi-Tomasi corners for tracking
//   - FAST keypoints with Harris ranking
//   - ORB features (oriented FAST and rotated BRIEF) with brute-force matching
package keypoints

import (
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"
)

// KeyPoints is a slice of integer keypoint coordinates.
type KeyPoints []image.Point

// OrientedKeypoints contains keypoints and their corresponding orientations.
type OrientedKeypoints struct {
	Points       KeyPoints
	Orientations []float64
}

// orientationRadius is the radius of the disc used for intensity-centroid orientation.
const orientationRadius = 15

// computeMaskOrientationFAST creates the circular mask used to compute orientations of corners.
// Row i of the disc spans columns -halfWidth[|i|]..halfWidth[|i|].
func computeMaskOrientationFAST() []int {
	halfWidth := make([]int, orientationRadius+1)
	for dy := 0; dy <= orientationRadius; dy++ {
		halfWidth[dy] = int(math.Round(math.Sqrt(float64(orientationRadius*orientationRadius - dy*dy))))
	}
	return halfWidth
}

// computeKeypointsOrientations returns, for every keypoint, the angle of the vector from the
// keypoint to the intensity centroid of the surrounding disc. Pixels outside the image count
// as zero.
func computeKeypointsOrientations(img *image.Gray, kps KeyPoints) []float64 {
	halfWidth := computeMaskOrientationFAST()
	bounds := img.Bounds()
	orientations := make([]float64, len(kps))
	for i, kp := range kps {
		m01, m10 := 0, 0
		for dy := -orientationRadius; dy <= orientationRadius; dy++ {
			hw := halfWidth[abs(dy)]
			rowSum := 0
			for dx := -hw; dx <= hw; dx++ {
				p := image.Point{X: kp.X + dx, Y: kp.Y + dy}
				if !p.In(bounds) {
					continue
				}
				v := int(img.GrayAt(p.X, p.Y).Y)
				m10 += v * dx
				rowSum += v
			}
			m01 += rowSum * dy
		}
		orientations[i] = math.Atan2(float64(m01), float64(m10))
	}
	return orientations
}

// GetOrientedKeyPointsFromKeyPoints computes the orientation of keypoints in the corresponding image
// and return kps and corresponding orientations in a OrientedKeypoints struct.
func GetOrientedKeyPointsFromKeyPoints(img *image.Gray, kps KeyPoints) *OrientedKeypoints {
	return &OrientedKeypoints{
		Points:       kps,
		Orientations: computeKeypointsOrientations(img, kps),
	}
}

// DrawKeypoints returns a copy of img with a translucent dot on every point.
func DrawKeypoints(img image.Image, pts []r2.Point, c color.Color) image.Image {
	size := img.Bounds().Size()
	dc := gg.NewContext(size.X, size.Y)
	dc.DrawImage(img, -img.Bounds().Min.X, -img.Bounds().Min.Y)
	dc.SetColor(c)
	for _, p := range pts {
		dc.DrawCircle(p.X, p.Y, 3.0)
		dc.Fill()
	}
	return dc.Image()
}

// PlotKeypoints draws points on img and saves the result as a PNG.
func PlotKeypoints(img image.Image, pts []r2.Point, outName string) error {
	drawn := DrawKeypoints(img, pts, color.NRGBA{R: 0, G: 0, B: 255, A: 128})
	return gg.SavePNG(outName, drawn)
}

// ToR2Points converts integer keypoints to r2 points scaled by scale.
func ToR2Points(kps KeyPoints, scale float64) []r2.Point {
	out := make([]r2.Point, len(kps))
	for i, kp := range kps {
		out[i] = r2.Point{X: float64(kp.X) * scale, Y: float64(kp.Y) * scale}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
