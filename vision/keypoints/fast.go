package keypoints

import (
	"image"
	"sort"

	"github.com/pkg/errors"
)

// FASTConfig holds the parameters of the FAST segment test.
type FASTConfig struct {
	// Threshold is the minimum intensity difference to the center pixel.
	Threshold int `json:"threshold" yaml:"threshold"`
	// NMatchesCircle is the number of contiguous circle pixels that must all be brighter or all
	// be darker than the center.
	NMatchesCircle int `json:"n_matches" yaml:"n_matches"`
	// NMSWinSize is the side of the non maximum suppression window, 0 to disable.
	NMSWinSize int `json:"nms_win_size" yaml:"nms_win_size"`
}

// CheckValid returns an error describing the first invalid field.
func (cfg FASTConfig) CheckValid() error {
	if cfg.Threshold < 1 {
		return errors.New("threshold should be >= 1")
	}
	if cfg.NMatchesCircle < 9 || cfg.NMatchesCircle > 16 {
		return errors.New("n_matches should be in [9, 16]")
	}
	if cfg.NMSWinSize < 0 {
		return errors.New("nms_win_size should be >= 0")
	}
	return nil
}

// CircleIdx is the 16 pixel Bresenham circle of radius 3 used by FAST, clockwise from the top.
var CircleIdx = []image.Point{
	{0, -3}, {1, -3}, {2, -2}, {3, -1}, {3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1}, {-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

// FASTKeypoints are the corners found by the segment test with their scores.
type FASTKeypoints struct {
	Points KeyPoints
	Scores []int
}

// fastScore returns the FAST score of the pixel at (x, y), or 0 if the segment test fails. The
// score is the summed excess over the threshold of the best contiguous arc.
func fastScore(img *image.Gray, x, y int, cfg FASTConfig) int {
	center := int(img.Pix[y*img.Stride+x])
	var diffs [16]int
	for i, off := range CircleIdx {
		diffs[i] = int(img.Pix[(y+off.Y)*img.Stride+x+off.X]) - center
	}

	// Quick rejection on the compass points: an arc of 9 covers at least 2 of them.
	brighter, darker := 0, 0
	for _, i := range []int{0, 4, 8, 12} {
		if diffs[i] > cfg.Threshold {
			brighter++
		} else if diffs[i] < -cfg.Threshold {
			darker++
		}
	}
	if brighter < 2 && darker < 2 {
		return 0
	}

	best := 0
	for _, sign := range []int{1, -1} {
		run, runScore := 0, 0
		// Walk twice around the circle to catch arcs wrapping through index 0.
		for k := 0; k < 32; k++ {
			d := sign * diffs[k%16]
			if d > cfg.Threshold {
				run++
				runScore += d - cfg.Threshold
				if run >= cfg.NMatchesCircle && runScore > best {
					best = runScore
				}
				if run == 16 {
					break
				}
			} else {
				run, runScore = 0, 0
			}
		}
	}
	return best
}

// NewFASTKeypointsFromImage runs the FAST segment test on every pixel at least border pixels
// away from the image edges and applies non maximum suppression on the scores. The image bounds
// must start at the origin.
func NewFASTKeypointsFromImage(img *image.Gray, cfg FASTConfig, border int) *FASTKeypoints {
	const circleRadius = 3
	if border < circleRadius {
		border = circleRadius
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 2*border || h <= 2*border {
		return &FASTKeypoints{}
	}
	scores := make([]int, w*h)
	for y := border; y < h-border; y++ {
		for x := border; x < w-border; x++ {
			scores[y*w+x] = fastScore(img, x, y, cfg)
		}
	}

	half := cfg.NMSWinSize / 2
	kps := &FASTKeypoints{}
	for y := border; y < h-border; y++ {
		for x := border; x < w-border; x++ {
			s := scores[y*w+x]
			if s == 0 || !isScoreMax(scores, w, h, x, y, half, s) {
				continue
			}
			kps.Points = append(kps.Points, image.Point{X: x, Y: y})
			kps.Scores = append(kps.Scores, s)
		}
	}
	return kps
}

// isScoreMax reports whether s beats every neighbor within half pixels, ties going to the
// earliest pixel in raster order.
func isScoreMax(scores []int, w, h, x, y, half, s int) bool {
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			nx, ny := x+dx, y+dy
			if (dx == 0 && dy == 0) || nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			n := scores[ny*w+nx]
			if n > s || (n == s && (dy < 0 || (dy == 0 && dx < 0))) {
				return false
			}
		}
	}
	return true
}

// retainBest keeps the n highest scoring points, stable on ties.
func retainBest(kps KeyPoints, scores []float64, n int) (KeyPoints, []float64) {
	if len(kps) <= n {
		return kps, scores
	}
	order := make([]int, len(kps))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return scores[order[i]] > scores[order[j]] })
	outKps := make(KeyPoints, n)
	outScores := make([]float64, n)
	for i := 0; i < n; i++ {
		outKps[i] = kps[order[i]]
		outScores[i] = scores[order[i]]
	}
	return outKps, outScores
}

// HarrisScores returns the Harris corner response det(M) - k tr(M)^2 of every keypoint, with M
// the gradient structure tensor over a blockSize window centered on the keypoint. Keypoints must
// be at least blockSize/2+1 pixels away from the image edges.
func HarrisScores(img *image.Gray, kps KeyPoints, blockSize int, k float64) []float64 {
	half := blockSize / 2
	scale := 1.0 / (4.0 * float64(blockSize) * 255.0)
	scores := make([]float64, len(kps))
	at := func(x, y int) float64 { return float64(img.Pix[y*img.Stride+x]) }
	for i, kp := range kps {
		var a, b, c float64
		for y := kp.Y - half; y <= kp.Y+half; y++ {
			for x := kp.X - half; x <= kp.X+half; x++ {
				dx := (at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
					at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)) * scale
				dy := (at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
					at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)) * scale
				a += dx * dx
				b += dy * dy
				c += dx * dy
			}
		}
		scores[i] = a*b - c*c - k*(a+b)*(a+b)
	}
	return scores
}
