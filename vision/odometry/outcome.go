package odometry

import (
	"fmt"
	"time"
)

// Status is the coarse result of processing one frame.
type Status int

const (
	// StatusBootstrap means the frame initialized tracking.
	StatusBootstrap Status = iota
	// StatusTrackingLost means the tracked points could not be followed into the frame.
	StatusTrackingLost
	// StatusMotionImplausible means the frame was tracked but its motion could not be trusted.
	StatusMotionImplausible
	// StatusMotionRejected means a motion was estimated but filtered out.
	StatusMotionRejected
	// StatusUpdated means the pose and trajectory were updated.
	StatusUpdated
)

func (s Status) String() string {
	switch s {
	case StatusBootstrap:
		return "bootstrap"
	case StatusTrackingLost:
		return "tracking_lost"
	case StatusMotionImplausible:
		return "motion_implausible"
	case StatusMotionRejected:
		return "motion_rejected"
	case StatusUpdated:
		return "updated"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Reason refines a Status.
type Reason int

const (
	// ReasonNone accompanies StatusUpdated.
	ReasonNone Reason = iota
	// ReasonNoFrame is a nil or empty frame.
	ReasonNoFrame
	// ReasonFirstFrame is the first frame after construction or reset.
	ReasonFirstFrame
	// ReasonTooFewKeypoints means the previous frame had too few points to track.
	ReasonTooFewKeypoints
	// ReasonFlowFailed means optical flow returned no result.
	ReasonFlowFailed
	// ReasonTooFewMatches means too few points were found and relocalization failed.
	ReasonTooFewMatches
	// ReasonRelocalized means tracking was reseeded from a matching keyframe.
	ReasonRelocalized
	// ReasonStaticFlow means the mean flow was too small to estimate motion.
	ReasonStaticFlow
	// ReasonErraticFlow means the mean flow was too large to be reliable.
	ReasonErraticFlow
	// ReasonNoEssentialMatrix means the two-view geometry could not be estimated.
	ReasonNoEssentialMatrix
	// ReasonTooFewInliers means too few correspondences passed the cheirality check.
	ReasonTooFewInliers
	// ReasonExcessiveRotation means the rotation between frames was too large.
	ReasonExcessiveRotation
	// ReasonHistoryWarmup means the translation history is still filling.
	ReasonHistoryWarmup
	// ReasonTranslationOutlier means the translation disagreed with the recent history.
	ReasonTranslationOutlier
	// ReasonBelowMinMotion means the smoothed translation was too short.
	ReasonBelowMinMotion
	// ReasonReset means the engine was reset while the frame was processed.
	ReasonReset
	// ReasonCanceled means the context was canceled while the frame was processed.
	ReasonCanceled
)

var reasonNames = map[Reason]string{
	ReasonNone:               "none",
	ReasonNoFrame:            "no_frame",
	ReasonFirstFrame:         "first_frame",
	ReasonTooFewKeypoints:    "too_few_keypoints",
	ReasonFlowFailed:         "flow_failed",
	ReasonTooFewMatches:      "too_few_matches",
	ReasonRelocalized:        "relocalized",
	ReasonStaticFlow:         "static_flow",
	ReasonErraticFlow:        "erratic_flow",
	ReasonNoEssentialMatrix:  "no_essential_matrix",
	ReasonTooFewInliers:      "too_few_inliers",
	ReasonExcessiveRotation:  "excessive_rotation",
	ReasonHistoryWarmup:      "history_warmup",
	ReasonTranslationOutlier: "translation_outlier",
	ReasonBelowMinMotion:     "below_min_motion",
	ReasonReset:              "reset",
	ReasonCanceled:           "canceled",
}

func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// Outcome is the result of ProcessFrame.
type Outcome struct {
	Status Status
	Reason Reason
	// Elapsed is the time since the previous frame, clamped to (0, 1s] and defaulting to 100ms.
	Elapsed time.Duration
}

// Updated reports whether the frame updated the pose.
func (o Outcome) Updated() bool {
	return o.Status == StatusUpdated
}

func (o Outcome) String() string {
	if o.Updated() {
		return o.Status.String()
	}
	return o.Status.String() + ": " + o.Reason.String()
}
