// Package opticalflow tracks sparse points between frames with pyramidal Lucas-Kanade.
package opticalflow

import (
	"context"
	"image"
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"go.viam.com/vslam/rimage"
	"go.viam.com/vslam/utils"
)

// LKConfig holds the Lucas-Kanade parameters.
type LKConfig struct {
	// WindowSize is the side of the square integration window, an odd number.
	WindowSize int `json:"window_size" yaml:"window_size"`
	// MaxLevel is the number of pyramid levels above the full resolution image.
	MaxLevel int `json:"max_level" yaml:"max_level"`
	// MaxIterations bounds the Newton iterations per level.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`
	// Epsilon stops iterating once the update is shorter than this many pixels.
	Epsilon float64 `json:"epsilon" yaml:"epsilon"`
	// MinEigThreshold marks a point lost when the smallest eigenvalue of its normalized spatial
	// gradient matrix is below it.
	MinEigThreshold float64 `json:"min_eig_threshold" yaml:"min_eig_threshold"`
}

// DefaultLKConfig returns a 21x21 window over 3 pyramid images, at most 10 iterations or 0.03 px.
func DefaultLKConfig() LKConfig {
	return LKConfig{
		WindowSize:      21,
		MaxLevel:        2,
		MaxIterations:   10,
		Epsilon:         0.03,
		MinEigThreshold: 1e-4,
	}
}

// CheckValid returns an error describing the first invalid field.
func (cfg LKConfig) CheckValid() error {
	if cfg.WindowSize < 3 || cfg.WindowSize%2 == 0 {
		return errors.New("window_size should be an odd number >= 3")
	}
	if cfg.MaxLevel < 0 {
		return errors.New("max_level should be >= 0")
	}
	if cfg.MaxIterations < 1 {
		return errors.New("max_iterations should be >= 1")
	}
	if cfg.Epsilon <= 0 {
		return errors.New("epsilon should be positive")
	}
	if cfg.MinEigThreshold < 0 {
		return errors.New("min_eig_threshold should be >= 0")
	}
	return nil
}

// Pyramid is a frame prepared for tracking: its image pyramid and the gradients of every level.
type Pyramid struct {
	Levels    []*rimage.FloatImage
	Gradients []rimage.Gradients
}

// Size returns the full resolution size.
func (p *Pyramid) Size() image.Point {
	return p.Levels[0].Bounds().Size()
}

// Tracker tracks points between pyramids.
type Tracker struct {
	cfg LKConfig
}

// NewTracker returns a tracker for cfg.
func NewTracker(cfg LKConfig) (*Tracker, error) {
	if err := cfg.CheckValid(); err != nil {
		return nil, errors.Wrap(err, "invalid optical flow config")
	}
	return &Tracker{cfg: cfg}, nil
}

// Config returns the tracker parameters.
func (t *Tracker) Config() LKConfig {
	return t.cfg
}

// NewPyramid builds the pyramid of a gray frame. Levels whose size would drop below the window
// are not built.
func (t *Tracker) NewPyramid(gray *image.Gray) *Pyramid {
	levels := rimage.Pyramid(rimage.NewFloatImageFromGray(gray), t.cfg.MaxLevel, t.cfg.WindowSize)
	grads := make([]rimage.Gradients, len(levels))
	for i, level := range levels {
		grads[i] = rimage.ScharrGradients(level)
	}
	return &Pyramid{Levels: levels, Gradients: grads}
}

// TrackImages builds both pyramids and tracks pts from prev into cur.
func (t *Tracker) TrackImages(ctx context.Context, prev, cur *image.Gray, pts []r2.Point) ([]r2.Point, []bool, error) {
	return t.Track(ctx, t.NewPyramid(prev), t.NewPyramid(cur), pts)
}

// Track finds every point of pts, given in prev, in cur. It returns the new positions and whether
// each point was found. Points are tracked concurrently.
func (t *Tracker) Track(ctx context.Context, prev, cur *Pyramid, pts []r2.Point) ([]r2.Point, []bool, error) {
	if prev == nil || cur == nil || len(prev.Levels) == 0 || len(cur.Levels) == 0 {
		return nil, nil, errors.New("missing pyramid")
	}
	if prev.Size() != cur.Size() {
		return nil, nil, errors.Errorf("frame sizes differ: %v != %v", prev.Size(), cur.Size())
	}
	levels := min(len(prev.Levels), len(cur.Levels), t.cfg.MaxLevel+1)

	next := make([]r2.Point, len(pts))
	status := make([]bool, len(pts))
	if len(pts) == 0 {
		return next, status, nil
	}

	chunks := min(utils.ParallelFactor, len(pts))
	chunkSize := (len(pts) + chunks - 1) / chunks
	group, groupCtx := errgroup.WithContext(ctx)
	for from := 0; from < len(pts); from += chunkSize {
		start, end := from, min(from+chunkSize, len(pts))
		group.Go(func() error {
			win := newWindow(t.cfg.WindowSize)
			for i := start; i < end; i++ {
				if err := groupCtx.Err(); err != nil {
					return err
				}
				next[i], status[i] = t.trackPoint(prev, cur, levels, pts[i], win)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}
	return next, status, nil
}

// window holds the template and its gradients sampled around a point.
type window struct {
	size   int
	half   float64
	values []float64
	gradX  []float64
	gradY  []float64
}

func newWindow(size int) *window {
	n := size * size
	return &window{
		size:   size,
		half:   float64(size-1) / 2,
		values: make([]float64, n),
		gradX:  make([]float64, n),
		gradY:  make([]float64, n),
	}
}

// outside reports whether the window centered on p misses img entirely.
func (w *window) outside(img *rimage.FloatImage, p r2.Point) bool {
	x := math.Floor(p.X - w.half)
	y := math.Floor(p.Y - w.half)
	return x < -float64(w.size) || y < -float64(w.size) || x >= float64(img.Width) || y >= float64(img.Height)
}

func (t *Tracker) trackPoint(prev, cur *Pyramid, levels int, pt r2.Point, win *window) (r2.Point, bool) {
	var flow r2.Point
	found := true
	for level := levels - 1; level >= 0; level-- {
		scale := math.Ldexp(1, -level)
		p := pt.Mul(scale)
		var ok bool
		flow, ok = t.trackLevel(prev.Levels[level], prev.Gradients[level], cur.Levels[level], p, flow, win)
		if level == 0 {
			found = ok
		} else {
			flow = flow.Mul(2)
		}
	}
	out := pt.Add(flow)
	if math.IsNaN(out.X) || math.IsNaN(out.Y) {
		return pt, false
	}
	return out, found
}

// trackLevel refines the flow guess of p at one pyramid level by Gauss-Newton iterations on the
// window's brightness difference.
func (t *Tracker) trackLevel(
	prevImg *rimage.FloatImage,
	grads rimage.Gradients,
	curImg *rimage.FloatImage,
	p, guess r2.Point,
	win *window,
) (r2.Point, bool) {
	if win.outside(prevImg, p) {
		return guess, false
	}

	var a, b, c float64
	k := 0
	for wy := 0; wy < win.size; wy++ {
		y := p.Y - win.half + float64(wy)
		for wx := 0; wx < win.size; wx++ {
			x := p.X - win.half + float64(wx)
			win.values[k] = prevImg.Bilinear(x, y)
			gx := grads.X.Bilinear(x, y)
			gy := grads.Y.Bilinear(x, y)
			win.gradX[k] = gx
			win.gradY[k] = gy
			a += gx * gx
			b += gx * gy
			c += gy * gy
			k++
		}
	}

	area := float64(win.size * win.size)
	det := a*c - b*b
	minEig := (a + c - math.Sqrt((a-c)*(a-c)+4*b*b)) / (2 * area)
	if minEig < t.cfg.MinEigThreshold || det < 1e-9 {
		return guess, false
	}

	next := p.Add(guess)
	var prevDelta r2.Point
	eps2 := t.cfg.Epsilon * t.cfg.Epsilon
	for iter := 0; iter < t.cfg.MaxIterations; iter++ {
		if win.outside(curImg, next) {
			return next.Sub(p), false
		}
		var b1, b2 float64
		k = 0
		for wy := 0; wy < win.size; wy++ {
			y := next.Y - win.half + float64(wy)
			for wx := 0; wx < win.size; wx++ {
				diff := curImg.Bilinear(next.X-win.half+float64(wx), y) - win.values[k]
				b1 += diff * win.gradX[k]
				b2 += diff * win.gradY[k]
				k++
			}
		}
		delta := r2.Point{X: (b*b2 - c*b1) / det, Y: (b*b1 - a*b2) / det}
		next = next.Add(delta)
		if delta.Dot(delta) <= eps2 {
			break
		}
		// oscillating between two positions: settle in the middle
		if iter > 0 && math.Abs(delta.X+prevDelta.X) < 0.01 && math.Abs(delta.Y+prevDelta.Y) < 0.01 {
			next = next.Sub(delta.Mul(0.5))
			break
		}
		prevDelta = delta
	}
	return next.Sub(p), true
}
