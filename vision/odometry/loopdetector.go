package odometry

import (
	"image"
	"math/rand"

	"github.com/pkg/errors"

	"go.viam.com/vslam/rimage/transform"
	"go.viam.com/vslam/vision/keypoints"
)

// LoopMatch describes the comparison of two frames.
type LoopMatch struct {
	// Matches is the number of cross-checked descriptor matches.
	Matches int
	// Inliers is the number of matches consistent with a fundamental matrix.
	Inliers int
}

// LoopDetector decides whether two frames show the same place.
type LoopDetector interface {
	// Describe extracts the features of a frame. Keyframes are described once when stored.
	Describe(gray *image.Gray) *keypoints.ORBFeatures
	// Match compares the features of the current frame to those of a keyframe.
	Match(current, keyframe *keypoints.ORBFeatures) (LoopMatch, bool)
}

// ORBLoopDetector matches ORB features with cross-checked Hamming matching and verifies them
// with a RANSAC fundamental matrix.
type ORBLoopDetector struct {
	orb         *keypoints.ORB
	matching    keypoints.MatchingConfig
	fundamental transform.RANSACConfig
	minMatches  int
	minInliers  int
	seed        int64
}

// NewORBLoopDetector builds a loop detector from the engine config.
func NewORBLoopDetector(cfg Config) (*ORBLoopDetector, error) {
	orb, err := keypoints.NewORB(cfg.ORB)
	if err != nil {
		return nil, err
	}
	if err := cfg.Fundamental.CheckValid(); err != nil {
		return nil, errors.Wrap(err, "invalid fundamental matrix config")
	}
	return &ORBLoopDetector{
		orb:         orb,
		matching:    keypoints.MatchingConfig{DoCrossCheck: true, MaxDist: cfg.Loop.MaxDescriptorDist},
		fundamental: cfg.Fundamental,
		minMatches:  cfg.Loop.MinMatches,
		minInliers:  cfg.Loop.MinInliers,
		seed:        cfg.Seed,
	}, nil
}

// Describe computes the ORB features of a frame.
func (d *ORBLoopDetector) Describe(gray *image.Gray) *keypoints.ORBFeatures {
	return d.orb.Compute(gray)
}

// Match reports whether enough descriptor matches agree with one epipolar geometry. Every call
// draws its RANSAC samples from a generator seeded the same way, so a comparison does not depend
// on the ones before it.
func (d *ORBLoopDetector) Match(current, keyframe *keypoints.ORBFeatures) (LoopMatch, bool) {
	var result LoopMatch
	if current.Len() == 0 || keyframe.Len() == 0 {
		return result, false
	}
	matches, err := keypoints.MatchDescriptors(current.Descriptors, keyframe.Descriptors, d.matching)
	if err != nil {
		return result, false
	}
	result.Matches = len(matches)
	if result.Matches < d.minMatches {
		return result, false
	}
	pts1, pts2, err := keypoints.GetMatchingKeyPoints(matches, current.Points, keyframe.Points)
	if err != nil {
		return result, false
	}
	//nolint:gosec
	rng := rand.New(rand.NewSource(d.seed))
	_, mask, err := transform.FindFundamentalMatrix(pts1, pts2, d.fundamental, rng)
	if err != nil {
		return result, false
	}
	result.Inliers = transform.CountInliers(mask)
	return result, result.Inliers >= d.minInliers
}
