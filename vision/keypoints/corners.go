package keypoints

import (
	"image"
	"math"
	"sort"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/vslam/rimage"
	"go.viam.com/vslam/utils"
)

// CornerConfig parameterizes Shi-Tomasi corner detection.
type CornerConfig struct {
	// MaxCorners caps the number of returned corners, strongest first.
	MaxCorners int `json:"max_corners" yaml:"max_corners"`
	// QualityLevel is the minimal accepted response relative to the strongest one.
	QualityLevel float64 `json:"quality_level" yaml:"quality_level"`
	// MinDistance is the minimal euclidean distance in pixels between returned corners.
	MinDistance float64 `json:"min_distance" yaml:"min_distance"`
	// BlockSize is the side of the window the structure tensor is summed over.
	BlockSize int `json:"block_size" yaml:"block_size"`
}

// DefaultCornerConfig returns the tracker's corner settings.
func DefaultCornerConfig() CornerConfig {
	return CornerConfig{MaxCorners: 2000, QualityLevel: 0.15, MinDistance: 7, BlockSize: 7}
}

// CheckValid returns an error describing the first invalid field.
func (cfg CornerConfig) CheckValid() error {
	if cfg.MaxCorners < 1 {
		return errors.New("max_corners should be >= 1")
	}
	if cfg.QualityLevel <= 0 || cfg.QualityLevel >= 1 {
		return errors.New("quality_level should be in (0, 1)")
	}
	if cfg.MinDistance < 0 {
		return errors.New("min_distance should be >= 0")
	}
	if cfg.BlockSize < 3 || cfg.BlockSize%2 == 0 {
		return errors.New("block_size should be an odd number >= 3")
	}
	return nil
}

type cornerCandidate struct {
	pt       image.Point
	response float32
}

// MinEigenvalueMap returns, for every pixel, the smaller eigenvalue of the gradient structure
// tensor summed over a blockSize window.
func MinEigenvalueMap(img *rimage.FloatImage, blockSize int) *rimage.FloatImage {
	grads := rimage.SobelGradients(img)
	ixx := rimage.NewFloatImage(img.Width, img.Height)
	ixy := rimage.NewFloatImage(img.Width, img.Height)
	iyy := rimage.NewFloatImage(img.Width, img.Height)
	for i := range img.Pix {
		gx, gy := grads.X.Pix[i], grads.Y.Pix[i]
		ixx.Pix[i] = gx * gx
		ixy.Pix[i] = gx * gy
		iyy.Pix[i] = gy * gy
	}
	sxx := rimage.BoxSum(ixx, blockSize)
	sxy := rimage.BoxSum(ixy, blockSize)
	syy := rimage.BoxSum(iyy, blockSize)

	out := rimage.NewFloatImage(img.Width, img.Height)
	utils.ParallelForEachRow(img.Height, func(y int) {
		for x := 0; x < img.Width; x++ {
			i := y*img.Width + x
			a, b, c := float64(sxx.Pix[i]), float64(sxy.Pix[i]), float64(syy.Pix[i])
			half := (a - c) / 2
			out.Pix[i] = float32((a+c)/2 - math.Sqrt(half*half+b*b))
		}
	})
	return out
}

// GoodFeaturesToTrack detects Shi-Tomasi corners: local maxima of the minimum eigenvalue map
// whose response is at least QualityLevel times the strongest one, strongest first, no two closer
// than MinDistance, at most MaxCorners.
func GoodFeaturesToTrack(gray *image.Gray, cfg CornerConfig) []r2.Point {
	img := rimage.NewFloatImageFromGray(gray)
	if img.Width == 0 || img.Height == 0 {
		return nil
	}
	eig := MinEigenvalueMap(img, cfg.BlockSize)
	maxResponse := eig.MaxValue()
	if maxResponse <= 0 {
		return nil
	}
	threshold := float32(cfg.QualityLevel) * maxResponse

	var candidates []cornerCandidate
	for y := 0; y < eig.Height; y++ {
		for x := 0; x < eig.Width; x++ {
			v := eig.Pix[y*eig.Width+x]
			if v <= threshold || !isLocalMax3x3(eig, x, y, v) {
				continue
			}
			candidates = append(candidates, cornerCandidate{image.Point{X: x, Y: y}, v})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].response > candidates[j].response
	})

	grid := newDistanceGrid(eig.Width, eig.Height, cfg.MinDistance)
	corners := make([]r2.Point, 0, min(len(candidates), cfg.MaxCorners))
	for _, c := range candidates {
		p := r2.Point{X: float64(c.pt.X), Y: float64(c.pt.Y)}
		if !grid.tryInsert(p) {
			continue
		}
		corners = append(corners, p)
		if len(corners) == cfg.MaxCorners {
			break
		}
	}
	return corners
}

func isLocalMax3x3(img *rimage.FloatImage, x, y int, v float32) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if (dx != 0 || dy != 0) && img.At(x+dx, y+dy) > v {
				return false
			}
		}
	}
	return true
}

// distanceGrid buckets accepted points into cells of side minDist so that a proximity query
// only visits the 3x3 neighboring cells.
type distanceGrid struct {
	minDist2   float64
	cell       float64
	cols, rows int
	cells      [][]r2.Point
}

func newDistanceGrid(width, height int, minDist float64) *distanceGrid {
	cell := math.Max(minDist, 1)
	cols := int(math.Ceil(float64(width)/cell)) + 1
	rows := int(math.Ceil(float64(height)/cell)) + 1
	return &distanceGrid{
		minDist2: minDist * minDist,
		cell:     cell,
		cols:     cols,
		rows:     rows,
		cells:    make([][]r2.Point, cols*rows),
	}
}

// tryInsert adds p unless an accepted point lies closer than the minimum distance.
func (g *distanceGrid) tryInsert(p r2.Point) bool {
	cx, cy := int(p.X/g.cell), int(p.Y/g.cell)
	for y := cy - 1; y <= cy+1; y++ {
		for x := cx - 1; x <= cx+1; x++ {
			if x < 0 || y < 0 || x >= g.cols || y >= g.rows {
				continue
			}
			for _, q := range g.cells[y*g.cols+x] {
				d := p.Sub(q)
				if d.Dot(d) < g.minDist2 {
					return false
				}
			}
		}
	}
	g.cells[cy*g.cols+cx] = append(g.cells[cy*g.cols+cx], p)
	return true
}
