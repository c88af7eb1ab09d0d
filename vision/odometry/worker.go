package odometry

import (
	"context"
	"image"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	goutils "go.viam.com/utils"

	"go.viam.com/vslam/logging"
	"go.viam.com/vslam/rimage/imagesource"
	"go.viam.com/vslam/utils"
)

// WorkerStats counts the frames seen by a FrameWorker.
type WorkerStats struct {
	Submitted int64 `json:"submitted"`
	Processed int64 `json:"processed"`
	Dropped   int64 `json:"dropped"`
	Updated   int64 `json:"updated"`
}

type pendingFrame struct {
	img     image.Image
	release func()
}

// FrameWorker feeds an Engine from a background goroutine. It holds at most one pending frame:
// a frame submitted while another is waiting replaces it, so a slow engine always processes the
// newest frame.
type FrameWorker struct {
	engine    *Engine
	logger    logging.Logger
	onOutcome func(Outcome)
	mailbox   chan pendingFrame
	workers   utils.StoppableWorkers

	submitted atomic.Int64
	processed atomic.Int64
	dropped   atomic.Int64
	updated   atomic.Int64

	// pending counts frames accepted by the mailbox that are not yet processed or dropped.
	pending atomic.Int64
}

// NewFrameWorker starts a worker for engine. onOutcome, if not nil, is called from the worker
// goroutine after every processed frame.
func NewFrameWorker(engine *Engine, logger logging.Logger, onOutcome func(Outcome)) *FrameWorker {
	fw := &FrameWorker{
		engine:    engine,
		logger:    logger,
		onOutcome: onOutcome,
		mailbox:   make(chan pendingFrame, 1),
	}
	fw.workers = utils.NewStoppableWorkers(fw.processLoop)
	return fw
}

func (fw *FrameWorker) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-fw.mailbox:
			out := fw.engine.ProcessFrameContext(ctx, frame.img)
			frame.release()
			if out.Reason == ReasonCanceled {
				fw.pending.Dec()
				return
			}
			fw.processed.Inc()
			if out.Updated() {
				fw.updated.Inc()
			}
			if fw.onOutcome != nil {
				fw.onOutcome(out)
			}
			fw.pending.Dec()
		}
	}
}

// Submit hands a frame to the worker without blocking. A frame still waiting is dropped.
func (fw *FrameWorker) Submit(img image.Image) {
	fw.submit(pendingFrame{img: img, release: func() {}})
}

func (fw *FrameWorker) submit(frame pendingFrame) {
	fw.submitted.Inc()
	fw.pending.Inc()
	for {
		select {
		case fw.mailbox <- frame:
			return
		default:
		}
		select {
		case stale := <-fw.mailbox:
			stale.release()
			fw.dropped.Inc()
			fw.pending.Dec()
		default:
		}
	}
}

// Run submits the frames of src, one every interval when interval is positive, until src is
// exhausted or ctx is done.
func (fw *FrameWorker) Run(ctx context.Context, src imagesource.ImageSource, interval time.Duration) error {
	for {
		img, release, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "cannot read frame")
		}
		fw.submit(pendingFrame{img: img, release: release})
		if interval > 0 && !goutils.SelectContextOrWait(ctx, interval) {
			return nil
		}
	}
}

// Idle reports whether no frame is waiting or being processed.
func (fw *FrameWorker) Idle() bool {
	return fw.pending.Load() == 0
}

// Stats returns the frame counters.
func (fw *FrameWorker) Stats() WorkerStats {
	return WorkerStats{
		Submitted: fw.submitted.Load(),
		Processed: fw.processed.Load(),
		Dropped:   fw.dropped.Load(),
		Updated:   fw.updated.Load(),
	}
}

// Stop abandons the frame being processed, drops the waiting one and waits for the worker to
// exit.
func (fw *FrameWorker) Stop() {
	fw.workers.Stop()
	select {
	case frame := <-fw.mailbox:
		frame.release()
		fw.dropped.Inc()
		fw.pending.Dec()
	default:
	}
	stats := fw.Stats()
	fw.logger.Debugw("frame worker stopped",
		"submitted", stats.Submitted, "processed", stats.Processed, "dropped", stats.Dropped, "updated", stats.Updated)
}
