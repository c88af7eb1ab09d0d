package keypoints

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// MatchingConfig contains the parameters for matching descriptors.
type MatchingConfig struct {
	DoCrossCheck bool `json:"do_cross_check" yaml:"do_cross_check"`
	// MaxDist rejects matches at or above this Hamming distance when positive.
	MaxDist int `json:"max_dist" yaml:"max_dist"`
}

// DescriptorMatch contains the index of a match in the first and second set of descriptors.
type DescriptorMatch struct {
	Idx1     int
	Idx2     int
	Distance int
}

// argMinPerRow returns the column of the smallest entry of every row, first on ties.
func argMinPerRow(distances [][]int) []int {
	out := make([]int, len(distances))
	for i, row := range distances {
		best := 0
		for j, d := range row {
			if d < row[best] {
				best = j
			}
		}
		out[i] = best
	}
	return out
}

// argMinPerColumn returns the row of the smallest entry of every column, first on ties.
func argMinPerColumn(distances [][]int, cols int) []int {
	out := make([]int, cols)
	for j := 0; j < cols; j++ {
		best := 0
		for i := range distances {
			if distances[i][j] < distances[best][j] {
				best = i
			}
		}
		out[j] = best
	}
	return out
}

// MatchDescriptors brute-force matches every descriptor of desc1 to its nearest neighbor in
// desc2. With cross-check, a match is kept only when it is also the nearest neighbor the other
// way. Matches are sorted by increasing distance.
func MatchDescriptors(desc1, desc2 Descriptors, cfg MatchingConfig) ([]DescriptorMatch, error) {
	if len(desc1) == 0 || len(desc2) == 0 {
		return nil, nil
	}
	distances, err := DescriptorsHammingDistance(desc1, desc2)
	if err != nil {
		return nil, err
	}
	nearest := argMinPerRow(distances)
	var reverse []int
	if cfg.DoCrossCheck {
		reverse = argMinPerColumn(distances, len(desc2))
	}

	var matches []DescriptorMatch
	for i, j := range nearest {
		if cfg.DoCrossCheck && reverse[j] != i {
			continue
		}
		d := distances[i][j]
		if cfg.MaxDist > 0 && d >= cfg.MaxDist {
			continue
		}
		matches = append(matches, DescriptorMatch{Idx1: i, Idx2: j, Distance: d})
	}

	dists := make([]float64, len(matches))
	for i, m := range matches {
		dists[i] = float64(m.Distance)
	}
	order := make([]int, len(matches))
	floats.Argsort(dists, order)
	sorted := make([]DescriptorMatch, len(matches))
	for i, idx := range order {
		sorted[i] = matches[idx]
	}
	return sorted, nil
}

// GetMatchingKeyPoints takes the matches and the keypoints and returns the corresponding keypoints
// that are matched.
func GetMatchingKeyPoints(matches []DescriptorMatch, kps1, kps2 []r2.Point) ([]r2.Point, []r2.Point, error) {
	matched1 := make([]r2.Point, len(matches))
	matched2 := make([]r2.Point, len(matches))
	for i, match := range matches {
		if match.Idx1 >= len(kps1) || match.Idx2 >= len(kps2) {
			return nil, nil, errors.Errorf("match %d references a keypoint out of range", i)
		}
		matched1[i] = kps1[match.Idx1]
		matched2[i] = kps2[match.Idx2]
	}
	return matched1, matched2, nil
}
