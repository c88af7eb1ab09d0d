// Package odometry implements a monocular visual odometry and sparse mapping engine. Frames are
// fed in order to an Engine, which tracks corners between consecutive frames, estimates the
// relative camera motion from the essential matrix, accumulates a camera pose and trajectory, and
// triangulates a bounded point cloud. Keyframes are kept to detect loop closures and to
// relocalize after tracking is lost.
package odometry

import (
	"context"
	"image"
	"math/rand"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/vslam/logging"
	"go.viam.com/vslam/pointcloud"
	"go.viam.com/vslam/rimage"
	"go.viam.com/vslam/rimage/transform"
	"go.viam.com/vslam/spatialmath"
	"go.viam.com/vslam/utils"
	"go.viam.com/vslam/vision/keypoints"
)

const (
	defaultElapsed = 100 * time.Millisecond
	maxElapsed     = time.Second
)

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used to time frames.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithFeatureTracker replaces the default corner tracker.
func WithFeatureTracker(tracker FeatureTracker) Option {
	return func(e *Engine) {
		e.tracker = tracker
	}
}

// WithLoopDetector replaces the default ORB loop detector.
func WithLoopDetector(detector LoopDetector) Option {
	return func(e *Engine) {
		e.loops = detector
	}
}

// Engine estimates the camera motion of a frame stream. ProcessFrame must be called by a single
// producer; Data, Status, Pose and Reset may be called concurrently from any goroutine.
type Engine struct {
	cfg     Config
	logger  logging.Logger
	clock   clock.Clock
	tracker FeatureTracker
	loops   LoopDetector
	mapper  *MapBuilder

	mu         sync.Mutex
	generation uint64
	pose       *mat.Dense
	trajectory *utils.Ring[r3.Vector]
	// cloud counts its points over its lifetime; eviction does not lower the total.
	cloud        *pointcloud.ChunkedCloud
	keyframes    *keyframeRing
	filter       *MotionFilter
	frameCount   int
	loopClosures int

	// Owned by the producer. A reset is noticed through generation and clears them.
	producerGeneration uint64
	prevFrame          *image.Gray
	prevPoints         []r2.Point
	lastFrameTime      time.Time
	rng                *rand.Rand
}

// NewEngine returns an engine at the identity pose.
func NewEngine(cfg Config, logger logging.Logger, opts ...Option) (*Engine, error) {
	if err := cfg.Validate("odometry"); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:        cfg,
		logger:     logger,
		clock:      clock.New(),
		mapper:     NewMapBuilder(&cfg.Intrinsics),
		pose:       spatialmath.Identity4(),
		trajectory: utils.NewRing[r3.Vector](cfg.MaxTrajectory),
		cloud:      pointcloud.NewChunkedCloud(cfg.MaxCloudChunks),
		keyframes:  newKeyframeRing(cfg.Loop.MaxKeyframes),
		filter:     NewMotionFilter(cfg.Filter),
		//nolint:gosec
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracker == nil {
		tracker, err := NewFeatureTracker(cfg.Corners, cfg.OpticalFlow)
		if err != nil {
			return nil, err
		}
		e.tracker = tracker
	}
	if e.loops == nil {
		loops, err := NewORBLoopDetector(cfg)
		if err != nil {
			return nil, err
		}
		e.loops = loops
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// ProcessFrame processes the next frame of the stream.
func (e *Engine) ProcessFrame(img image.Image) Outcome {
	return e.ProcessFrameContext(context.Background(), img)
}

// ProcessFrameContext processes the next frame of the stream. Cancelling ctx abandons the frame
// and leaves the engine as if it had not been submitted.
func (e *Engine) ProcessFrameContext(ctx context.Context, img image.Image) Outcome {
	if img == nil || img.Bounds().Empty() {
		return Outcome{Status: StatusTrackingLost, Reason: ReasonNoFrame}
	}
	if ctx.Err() != nil {
		return Outcome{Status: StatusTrackingLost, Reason: ReasonCanceled}
	}
	e.syncGeneration()
	elapsed := e.tick()
	out := e.processFrame(ctx, rimage.MakeGray(img))
	out.Elapsed = elapsed
	if out.Updated() {
		e.logger.Debugw("pose updated", "position", spatialmath.TranslationOf(e.Pose()))
	} else {
		e.logger.Debugw("frame not used", "status", out.Status, "reason", out.Reason)
	}
	return out
}

// syncGeneration drops the producer state when a reset happened since the last frame.
func (e *Engine) syncGeneration() {
	e.mu.Lock()
	generation := e.generation
	e.mu.Unlock()
	if generation == e.producerGeneration {
		return
	}
	e.producerGeneration = generation
	e.prevFrame = nil
	e.prevPoints = nil
	e.lastFrameTime = time.Time{}
	//nolint:gosec
	e.rng = rand.New(rand.NewSource(e.cfg.Seed))
}

// tick returns the time since the previous frame, or the default when it is out of range.
func (e *Engine) tick() time.Duration {
	now := e.clock.Now()
	elapsed := defaultElapsed
	if !e.lastFrameTime.IsZero() {
		if dt := now.Sub(e.lastFrameTime); dt > 0 && dt <= maxElapsed {
			elapsed = dt
		}
	}
	e.lastFrameTime = now
	return elapsed
}

func (e *Engine) processFrame(ctx context.Context, gray *image.Gray) Outcome {
	if e.prevFrame == nil {
		e.reseed(gray)
		return Outcome{Status: StatusBootstrap, Reason: ReasonFirstFrame}
	}
	if len(e.prevPoints) < e.cfg.MinTrackedPoints {
		e.reseed(gray)
		return Outcome{Status: StatusTrackingLost, Reason: ReasonTooFewKeypoints}
	}

	tracked, found, err := e.tracker.Track(ctx, e.prevFrame, gray, e.prevPoints)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{Status: StatusTrackingLost, Reason: ReasonCanceled}
		}
		e.logger.Debugw("optical flow failed", "error", err)
		e.reseed(gray)
		return Outcome{Status: StatusTrackingLost, Reason: ReasonFlowFailed}
	}
	var goodPrev, goodNew []r2.Point
	for i, ok := range found {
		if ok {
			goodPrev = append(goodPrev, e.prevPoints[i])
			goodNew = append(goodNew, tracked[i])
		}
	}
	if len(goodNew) < e.cfg.MinTrackedPoints {
		if e.relocalize(gray) {
			return Outcome{Status: StatusTrackingLost, Reason: ReasonRelocalized}
		}
		e.reseed(gray)
		return Outcome{Status: StatusTrackingLost, Reason: ReasonTooFewMatches}
	}

	if !e.manageKeyframes(gray) {
		return Outcome{Status: StatusTrackingLost, Reason: ReasonReset}
	}

	// Whatever happens to the motion, the next frame is tracked from this one.
	e.prevFrame = gray
	e.prevPoints = goodNew

	flow := meanFlow(goodPrev, goodNew)
	if flow < e.cfg.MinFlow {
		return Outcome{Status: StatusMotionImplausible, Reason: ReasonStaticFlow}
	}
	if flow > e.cfg.MaxFlow {
		return Outcome{Status: StatusMotionImplausible, Reason: ReasonErraticFlow}
	}

	// With the new points first, X_prev = R*X_new + t.
	essential, inlierMask, err := transform.EstimateEssentialMatrix(goodNew, goodPrev, &e.cfg.Intrinsics, e.cfg.Essential, e.rng)
	if err != nil {
		e.logger.Debugw("essential matrix failed", "error", err)
		return Outcome{Status: StatusMotionImplausible, Reason: ReasonNoEssentialMatrix}
	}
	motion, _, poseInliers, err := transform.RecoverPose(
		essential, goodNew, goodPrev, &e.cfg.Intrinsics, inlierMask, e.cfg.CheiralityDistance)
	if err != nil {
		e.logger.Debugw("pose recovery failed", "error", err)
		return Outcome{Status: StatusMotionImplausible, Reason: ReasonNoEssentialMatrix}
	}
	if poseInliers < e.cfg.MinPoseInliers {
		return Outcome{Status: StatusMotionImplausible, Reason: ReasonTooFewInliers}
	}
	if angle := spatialmath.RotationAngle(motion.Rotation); angle > e.cfg.MaxRotation {
		return Outcome{Status: StatusMotionImplausible, Reason: ReasonExcessiveRotation}
	}
	scaled := ScaleTranslation(motion.TranslationVector(), e.cfg.Scale)

	pose, step, reason := e.updatePose(motion.Rotation, scaled)
	if reason != ReasonNone {
		if reason == ReasonReset {
			return Outcome{Status: StatusTrackingLost, Reason: ReasonReset}
		}
		return Outcome{Status: StatusMotionRejected, Reason: reason}
	}

	var inliersNew, inliersPrev []r2.Point
	for i, ok := range inlierMask {
		if ok {
			inliersNew = append(inliersNew, goodNew[i])
			inliersPrev = append(inliersPrev, goodPrev[i])
		}
	}
	e.prevPoints = inliersNew

	chunk, err := e.mapper.Build(inliersNew, inliersPrev, motion.Rotation, step, pose, gray)
	if err != nil {
		e.logger.Debugw("triangulation failed", "error", err)
		return Outcome{Status: StatusUpdated}
	}
	if !e.addChunk(chunk) {
		return Outcome{Status: StatusTrackingLost, Reason: ReasonReset}
	}
	return Outcome{Status: StatusUpdated}
}

// reseed restarts tracking from fresh corners of gray.
func (e *Engine) reseed(gray *image.Gray) {
	e.prevFrame = gray
	e.prevPoints = e.tracker.Detect(gray)
}

func meanFlow(prev, cur []r2.Point) float64 {
	if len(prev) == 0 {
		return 0
	}
	var sum float64
	for i := range prev {
		sum += cur[i].Sub(prev[i]).Norm()
	}
	return sum / float64(len(prev))
}

// manageKeyframes counts the frame, checks it for a loop closure and stores it as a keyframe, by
// cadence. The loop check only sees the keyframes stored before this frame. It reports false when
// a reset interrupted it.
func (e *Engine) manageKeyframes(gray *image.Gray) bool {
	loopCfg := e.cfg.Loop

	e.mu.Lock()
	if e.generation != e.producerGeneration {
		e.mu.Unlock()
		return false
	}
	e.frameCount++
	frameIndex := e.frameCount
	var candidates []*Keyframe
	if frameIndex%loopCfg.CheckInterval == 0 && e.keyframes.len() >= loopCfg.MinKeyframes {
		candidates = e.keyframes.recent(loopCfg.Candidates)
	}
	e.mu.Unlock()

	var features *keypoints.ORBFeatures
	describe := func() *keypoints.ORBFeatures {
		if features == nil {
			features = e.loops.Describe(gray)
		}
		return features
	}

	for _, kf := range candidates {
		match, ok := e.loops.Match(describe(), kf.Features)
		if !ok {
			continue
		}
		e.mu.Lock()
		if e.generation != e.producerGeneration {
			e.mu.Unlock()
			return false
		}
		e.loopClosures++
		closures := e.loopClosures
		e.mu.Unlock()
		e.logger.Infow("loop closure detected",
			"frame", frameIndex, "keyframe", kf.Index, "matches", match.Matches, "inliers", match.Inliers,
			"loop_closures", closures)
		break
	}

	if frameIndex%loopCfg.KeyframeInterval == 0 {
		kf := &Keyframe{Index: frameIndex, Image: gray, Features: describe()}
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.generation != e.producerGeneration {
			return false
		}
		e.keyframes.add(kf)
	}
	return true
}

// relocalize looks for a recent keyframe showing the same place as gray. On a match, tracking
// resumes from gray with the corners of that keyframe. It needs as many keyframes as a loop check.
func (e *Engine) relocalize(gray *image.Gray) bool {
	e.mu.Lock()
	var candidates []*Keyframe
	if e.keyframes.len() >= e.cfg.Loop.MinKeyframes {
		candidates = e.keyframes.recent(e.cfg.Loop.Candidates)
	}
	e.mu.Unlock()
	if len(candidates) == 0 {
		return false
	}

	features := e.loops.Describe(gray)
	for _, kf := range candidates {
		match, ok := e.loops.Match(features, kf.Features)
		if !ok {
			continue
		}
		points := e.tracker.Detect(kf.Image)
		if len(points) == 0 {
			continue
		}
		e.prevFrame = gray
		e.prevPoints = points
		e.logger.Infow("relocalized", "keyframe", kf.Index, "matches", match.Matches, "inliers", match.Inliers)
		return true
	}
	return false
}

// updatePose runs the motion filter and, when the translation is accepted, composes the motion
// onto the pose. It returns a copy of the new pose and the smoothed translation composed.
func (e *Engine) updatePose(rotation *mat.Dense, translation r3.Vector) (*mat.Dense, r3.Vector, Reason) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation != e.producerGeneration {
		return nil, r3.Vector{}, ReasonReset
	}
	smoothed, reason := e.filter.Update(translation)
	if reason != ReasonNone {
		return nil, r3.Vector{}, reason
	}
	e.pose = spatialmath.Compose(e.pose, spatialmath.NewHomogeneous(rotation, smoothed))
	e.trajectory.Push(spatialmath.TranslationOf(e.pose))
	return mat.DenseCopyOf(e.pose), smoothed, ReasonNone
}

func (e *Engine) addChunk(chunk pointcloud.Chunk) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation != e.producerGeneration {
		return false
	}
	e.cloud.AddChunk(chunk)
	return true
}

// Reset returns the engine to its initial state. A frame being processed concurrently is
// discarded, and the next frame bootstraps tracking.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	e.pose = spatialmath.Identity4()
	e.trajectory.Clear()
	e.cloud.Clear()
	e.keyframes.clear()
	e.filter.Reset()
	e.frameCount = 0
	e.loopClosures = 0
	e.logger.Info("engine reset")
}

// Pose returns a copy of the 4x4 camera to world transform.
func (e *Engine) Pose() *mat.Dense {
	e.mu.Lock()
	defer e.mu.Unlock()
	return mat.DenseCopyOf(e.pose)
}

// Status returns the engine counters.
func (e *Engine) Status() EngineStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EngineStatus{
		FrameCount:       e.frameCount,
		TrajectoryLength: e.trajectory.Len(),
		TotalPoints:      e.cloud.TotalPoints(),
		Keyframes:        e.keyframes.len(),
		LoopClosures:     e.loopClosures,
	}
}

// Data returns a snapshot of the trajectory and map. The point cloud is subsampled to at most
// MaxSampledPoints points.
func (e *Engine) Data() *MapData {
	e.mu.Lock()
	defer e.mu.Unlock()
	return &MapData{
		Trajectory:   e.trajectory.Slice(),
		PointCloud:   e.cloud.Sample(e.cfg.MaxSampledPoints),
		Pose:         spatialmath.TranslationOf(e.pose),
		FrameCount:   e.frameCount,
		TotalPoints:  e.cloud.TotalPoints(),
		LoopClosures: e.loopClosures,
	}
}

// Map returns a copy of the full point cloud currently held.
func (e *Engine) Map() *pointcloud.ChunkedCloud {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cloud.Clone()
}

// KeyframeIndices returns the frame index of every stored keyframe, oldest first.
func (e *Engine) KeyframeIndices() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.keyframes.indices()
}
