package odometry

import (
	"image"

	"github.com/samber/lo"

	"go.viam.com/vslam/utils"
	"go.viam.com/vslam/vision/keypoints"
)

// Keyframe is a stored frame used for loop closure and relocalization.
type Keyframe struct {
	// Index is the frame count at which the keyframe was stored.
	Index    int
	Image    *image.Gray
	Features *keypoints.ORBFeatures
}

// keyframeRing is the bounded keyframe store. Keyframes are immutable once stored, so snapshots
// can be read without the engine lock.
type keyframeRing struct {
	ring *utils.Ring[*Keyframe]
}

func newKeyframeRing(capacity int) *keyframeRing {
	return &keyframeRing{ring: utils.NewRing[*Keyframe](capacity)}
}

func (kr *keyframeRing) add(kf *Keyframe) {
	kr.ring.Push(kf)
}

func (kr *keyframeRing) len() int {
	return kr.ring.Len()
}

// recent returns up to n keyframes, newest first.
func (kr *keyframeRing) recent(n int) []*Keyframe {
	return lo.Reverse(kr.ring.Newest(n))
}

func (kr *keyframeRing) indices() []int {
	return lo.Map(kr.ring.Slice(), func(kf *Keyframe, _ int) int { return kf.Index })
}

func (kr *keyframeRing) clear() {
	kr.ring.Clear()
}
