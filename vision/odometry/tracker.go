package odometry

import (
	"context"
	"image"

	"github.com/golang/geo/r2"

	"go.viam.com/vslam/vision/keypoints"
	"go.viam.com/vslam/vision/opticalflow"
)

// FeatureTracker detects trackable points and follows them between frames.
type FeatureTracker interface {
	// Detect returns fresh points to track in a frame.
	Detect(gray *image.Gray) []r2.Point
	// Track follows pts from prev into cur, returning the new positions and whether each point
	// was found.
	Track(ctx context.Context, prev, cur *image.Gray, pts []r2.Point) ([]r2.Point, []bool, error)
}

// lkFeatureTracker detects Shi-Tomasi corners and tracks them with pyramidal Lucas-Kanade. It
// keeps the pyramid of the last frame it saw so that consecutive calls build each pyramid once.
// It is meant for a single producer.
type lkFeatureTracker struct {
	corners keypoints.CornerConfig
	flow    *opticalflow.Tracker

	lastGray    *image.Gray
	lastPyramid *opticalflow.Pyramid
}

// NewFeatureTracker returns the default corner detector and optical flow tracker.
func NewFeatureTracker(corners keypoints.CornerConfig, flow opticalflow.LKConfig) (FeatureTracker, error) {
	if err := corners.CheckValid(); err != nil {
		return nil, err
	}
	tracker, err := opticalflow.NewTracker(flow)
	if err != nil {
		return nil, err
	}
	return &lkFeatureTracker{corners: corners, flow: tracker}, nil
}

func (t *lkFeatureTracker) Detect(gray *image.Gray) []r2.Point {
	return keypoints.GoodFeaturesToTrack(gray, t.corners)
}

func (t *lkFeatureTracker) pyramid(gray *image.Gray) *opticalflow.Pyramid {
	if gray == t.lastGray && t.lastPyramid != nil {
		return t.lastPyramid
	}
	return t.flow.NewPyramid(gray)
}

func (t *lkFeatureTracker) Track(ctx context.Context, prev, cur *image.Gray, pts []r2.Point) ([]r2.Point, []bool, error) {
	prevPyr := t.pyramid(prev)
	curPyr := t.flow.NewPyramid(cur)
	t.lastGray, t.lastPyramid = cur, curPyr
	return t.flow.Track(ctx, prevPyr, curPyr, pts)
}
