package keypoints

import (
	"math/bits"

	"github.com/pkg/errors"
)

// Descriptor is a binary descriptor stored 64 bits per word.
type Descriptor []uint64

// Descriptors is a set of descriptors aligned with a set of keypoints.
type Descriptors []Descriptor

// HammingDistance returns the number of differing bits between two descriptors of equal length.
func HammingDistance(d1, d2 Descriptor) (int, error) {
	if len(d1) != len(d2) {
		return 0, errors.Errorf("descriptors have different lengths (%d != %d)", len(d1), len(d2))
	}
	dist := 0
	for i := range d1 {
		dist += bits.OnesCount64(d1[i] ^ d2[i])
	}
	return dist, nil
}

// DescriptorsHammingDistance returns the distance between every pair of descriptors, indexed
// [i][j] for desc1[i] and desc2[j].
func DescriptorsHammingDistance(desc1, desc2 Descriptors) ([][]int, error) {
	distances := make([][]int, len(desc1))
	for i, d1 := range desc1 {
		distances[i] = make([]int, len(desc2))
		for j, d2 := range desc2 {
			d, err := HammingDistance(d1, d2)
			if err != nil {
				return nil, err
			}
			distances[i][j] = d
		}
	}
	return distances, nil
}
