package odometry

import (
	"context"
	"image"
	"math"
	"math/rand"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/vslam/rimage/transform"
	"go.viam.com/vslam/vision/keypoints"
)

// syntheticScene is a set of world points seen by a moving pinhole camera. Frame n is a tiny gray
// image with n encoded in its first two pixels; the fake tracker below looks the frame up instead
// of reading its pixels.
type syntheticScene struct {
	intrinsics *transform.PinholeCameraIntrinsics
	points     []r3.Vector
	// center is the camera position of frame n.
	center func(n int) r3.Vector
	// roll is the camera rotation about its optical axis per frame.
	roll float64
}

// awayFrame and later frames are taken far from every scene point.
const awayFrame = 1000

// newOrbitScene moves the camera, without rotating it, around a circle of 40 steps of 0.1 in
// front of points 3 to 4 units deep. Every point stays in view from every position.
func newOrbitScene() *syntheticScene {
	//nolint:gosec
	rng := rand.New(rand.NewSource(7))
	points := make([]r3.Vector, 500)
	for i := range points {
		points[i] = r3.Vector{
			X: -0.7 + 1.4*rng.Float64(),
			Y: -0.35 + 0.7*rng.Float64(),
			Z: 3 + rng.Float64(),
		}
	}
	const steps = 40
	radius := 0.1 / (2 * math.Sin(math.Pi/steps))
	return &syntheticScene{
		intrinsics: transform.DefaultIntrinsics(),
		points:     points,
		center: func(n int) r3.Vector {
			if n >= awayFrame {
				return r3.Vector{X: 100}
			}
			sin, cos := math.Sincos(2 * math.Pi * float64(n) / steps)
			return r3.Vector{X: radius * cos, Y: radius * sin}
		},
	}
}

// newRollingScene rolls the camera by 0.2 rad per frame while it drifts sideways.
func newRollingScene() *syntheticScene {
	//nolint:gosec
	rng := rand.New(rand.NewSource(9))
	points := make([]r3.Vector, 400)
	for i := range points {
		points[i] = r3.Vector{
			X: -0.3 + 0.6*rng.Float64(),
			Y: -0.3 + 0.6*rng.Float64(),
			Z: 2 + 0.8*rng.Float64(),
		}
	}
	return &syntheticScene{
		intrinsics: transform.DefaultIntrinsics(),
		points:     points,
		center: func(n int) r3.Vector {
			return r3.Vector{X: 0.06 * float64(n)}
		},
		roll: 0.2,
	}
}

func (s *syntheticScene) frame(n int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	img.Pix[0] = uint8(n & 0xff)
	img.Pix[1] = uint8(n >> 8)
	return img
}

func frameIndex(gray *image.Gray) int {
	return int(gray.Pix[0]) | int(gray.Pix[1])<<8
}

// project returns the pixel of every world point in frame n and whether it is in view.
func (s *syntheticScene) project(n int) ([]r2.Point, []bool) {
	center := s.center(n)
	sin, cos := math.Sincos(s.roll * float64(n))
	pixels := make([]r2.Point, len(s.points))
	visible := make([]bool, len(s.points))
	for i, p := range s.points {
		d := p.Sub(center)
		// Inverse roll about z.
		x := cos*d.X + sin*d.Y
		y := -sin*d.X + cos*d.Y
		if d.Z <= 0.1 {
			continue
		}
		u := s.intrinsics.Fx*x/d.Z + s.intrinsics.Ppx
		v := s.intrinsics.Fy*y/d.Z + s.intrinsics.Ppy
		pixels[i] = r2.Point{X: u, Y: v}
		visible[i] = u >= 0 && v >= 0 && u < float64(s.intrinsics.Width) && v < float64(s.intrinsics.Height)
	}
	return pixels, visible
}

// sceneTracker is a FeatureTracker with perfect correspondences.
type sceneTracker struct {
	scene *syntheticScene
	// failOn makes Track fail when the current frame has this index.
	failOn  int
	onTrack func()
}

func newSceneTracker(scene *syntheticScene) *sceneTracker {
	return &sceneTracker{scene: scene, failOn: -1}
}

func (st *sceneTracker) Detect(gray *image.Gray) []r2.Point {
	pixels, visible := st.scene.project(frameIndex(gray))
	var out []r2.Point
	for i, ok := range visible {
		if ok {
			out = append(out, pixels[i])
		}
	}
	return out
}

func (st *sceneTracker) Track(ctx context.Context, prev, cur *image.Gray, pts []r2.Point) ([]r2.Point, []bool, error) {
	if st.onTrack != nil {
		st.onTrack()
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if frameIndex(cur) == st.failOn {
		return nil, nil, errors.New("flow diverged")
	}
	prevPixels, prevVisible := st.scene.project(frameIndex(prev))
	lookup := make(map[r2.Point]int, len(prevPixels))
	for i, p := range prevPixels {
		if prevVisible[i] {
			lookup[p] = i
		}
	}
	curPixels, curVisible := st.scene.project(frameIndex(cur))
	tracked := make([]r2.Point, len(pts))
	found := make([]bool, len(pts))
	for i, p := range pts {
		idx, ok := lookup[p]
		if !ok || !curVisible[idx] {
			continue
		}
		tracked[i] = curPixels[idx]
		found[i] = true
	}
	return tracked, found, nil
}

// stubLoopDetector matches every pair when match is set and counts descriptions.
type stubLoopDetector struct {
	match     bool
	described int
}

func (d *stubLoopDetector) Describe(gray *image.Gray) *keypoints.ORBFeatures {
	d.described++
	return &keypoints.ORBFeatures{Points: []r2.Point{{X: float64(frameIndex(gray))}}}
}

func (d *stubLoopDetector) Match(current, keyframe *keypoints.ORBFeatures) (LoopMatch, bool) {
	if !d.match {
		return LoopMatch{}, false
	}
	return LoopMatch{Matches: 40, Inliers: 30}, true
}
