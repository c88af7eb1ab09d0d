package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
	goutils "go.viam.com/utils"

	"go.viam.com/vslam/logging"
	"go.viam.com/vslam/rimage/imagesource"
	"go.viam.com/vslam/rimage/transform"
	"go.viam.com/vslam/vision/odometry"
)

// statusEvery is how many processed frames pass between status lines.
const statusEvery = 30

func newApp() *cli.App {
	return &cli.App{
		Name:            "vo",
		Usage:           "monocular visual odometry and sparse mapping",
		HideHelpCommand: true,
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "track a frame stream and write its trajectory and map",
				UsageText: "vo run (--images DIR | --url URL) [options]",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: flagImages, Usage: "read frames from the image files in `DIR`"},
					&cli.StringFlag{Name: flagURL, Usage: "read frames from snapshots served at `URL`"},
					&cli.PathFlag{Name: flagConfig, Aliases: []string{"c"}, Usage: "load engine configuration from `FILE` (json or yaml)"},
					&cli.PathFlag{Name: flagIntrinsics, Usage: "override the camera intrinsics with a calibration `FILE` (json)"},
					&cli.Float64Flag{Name: flagFPS, Usage: "frames per second to read; 0 reads as fast as possible"},
					&cli.BoolFlag{Name: flagLoop, Usage: "restart from the first image after the last one"},
					&cli.PathFlag{Name: flagOut, Value: "vo-runs", Usage: "write results to a new directory under `DIR`"},
					&cli.BoolFlag{Name: flagPlot, Usage: "also write trajectory.png and keypoints.png"},
					&cli.BoolFlag{Name: flagDebug, Usage: "enable debug logging"},
					&cli.PathFlag{Name: flagLogFile, Usage: "also log to `FILE`, rotated by size"},
				},
				Action: runAction,
			},
			{
				Name:  "intrinsics",
				Usage: "print the camera matrix of a configuration",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: flagConfig, Aliases: []string{"c"}, Usage: "load configuration from `FILE`"},
					&cli.PathFlag{Name: flagIntrinsics, Usage: "override the camera intrinsics with a calibration `FILE` (json)"},
				},
				Action: intrinsicsAction,
			},
		},
	}
}

func newLogger(c *cli.Context) logging.Logger {
	level := zapcore.InfoLevel
	if c.Bool(flagDebug) {
		level = zapcore.DebugLevel
	}
	if path := c.Path(flagLogFile); path != "" {
		return logging.NewRotatingFileLogger("vo", path, level)
	}
	if level == zapcore.DebugLevel {
		return logging.NewDebugLogger("vo")
	}
	return logging.NewLogger("vo")
}

func loadConfig(c *cli.Context) (*odometry.Config, error) {
	cfg := odometry.DefaultConfig()
	if path := c.Path(flagConfig); path != "" {
		loaded, err := odometry.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}
	if path := c.Path(flagIntrinsics); path != "" {
		intrinsics, err := transform.NewPinholeCameraIntrinsicsFromJSONFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot load intrinsics from %q", path)
		}
		cfg.Intrinsics = *intrinsics
	}
	return &cfg, nil
}

func newSource(c *cli.Context, cfg *odometry.Config) (imagesource.ImageSource, error) {
	dir, url := c.Path(flagImages), c.String(flagURL)
	switch {
	case dir != "" && url != "":
		return nil, errors.Errorf("--%s and --%s are exclusive", flagImages, flagURL)
	case dir != "":
		opts := []imagesource.DirSourceOption{imagesource.WithResize(cfg.Intrinsics.Width, cfg.Intrinsics.Height)}
		if c.Bool(flagLoop) {
			opts = append(opts, imagesource.WithLoop())
		}
		return imagesource.NewDirSource(dir, opts...)
	case url != "":
		return imagesource.ResizeSource{
			Original: imagesource.NewHTTPSource(url),
			Width:    cfg.Intrinsics.Width,
			Height:   cfg.Intrinsics.Height,
		}, nil
	default:
		return nil, errors.Errorf("one of --%s or --%s is required", flagImages, flagURL)
	}
}

// lastFrameSource remembers the last frame read from a source.
type lastFrameSource struct {
	imagesource.ImageSource

	mu   sync.Mutex
	last image.Image
}

func (s *lastFrameSource) Next(ctx context.Context) (image.Image, func(), error) {
	img, release, err := s.ImageSource.Next(ctx)
	if err == nil {
		s.mu.Lock()
		s.last = img
		s.mu.Unlock()
	}
	return img, release, err
}

func (s *lastFrameSource) lastFrame() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func runAction(c *cli.Context) (err error) {
	logger := newLogger(c)
	defer func() {
		//nolint:errcheck
		logger.Sync()
	}()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	src, err := newSource(c, cfg)
	if err != nil {
		return err
	}
	recorder := &lastFrameSource{ImageSource: src}
	defer func() {
		err = multierr.Combine(err, recorder.Close())
	}()

	engine, err := odometry.NewEngine(*cfg, logger.Sublogger("odometry"))
	if err != nil {
		return err
	}
	var processed int
	worker := odometry.NewFrameWorker(engine, logger.Sublogger("worker"), func(out odometry.Outcome) {
		processed++
		if processed%statusEvery == 0 {
			status := engine.Status()
			logger.Infow("status",
				"frames", status.FrameCount,
				"trajectory", status.TrajectoryLength,
				"points", status.TotalPoints,
				"keyframes", status.Keyframes,
				"loop_closures", status.LoopClosures,
				"last", out.String())
		}
	})

	var interval time.Duration
	if fps := c.Float64(flagFPS); fps > 0 {
		interval = time.Duration(float64(time.Second) / fps)
	}
	start := time.Now()
	runErr := worker.Run(c.Context, recorder, interval)
	waitForWorker(c.Context, worker)
	worker.Stop()
	if runErr != nil {
		return runErr
	}

	stats := worker.Stats()
	logger.Infow("run finished",
		"duration", time.Since(start),
		"submitted", stats.Submitted,
		"processed", stats.Processed,
		"dropped", stats.Dropped,
		"updated", stats.Updated)

	dir := filepath.Join(c.Path(flagOut), uuid.NewString())
	if err := writeRunOutputs(dir, engine, cfg, c.Bool(flagPlot), recorder.lastFrame()); err != nil {
		return err
	}
	logger.Infow("results written", "dir", dir)
	return nil
}

// waitForWorker waits until every submitted frame was processed or dropped.
func waitForWorker(ctx context.Context, worker *odometry.FrameWorker) {
	for ctx.Err() == nil {
		if worker.Idle() {
			return
		}
		if !goutils.SelectContextOrWait(ctx, 10*time.Millisecond) {
			return
		}
	}
}

func intrinsicsAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	k := cfg.Intrinsics.GetCameraMatrix()
	for i := 0; i < 3; i++ {
		fmt.Fprintf(c.App.Writer, "%10.3f %10.3f %10.3f\n", k.At(i, 0), k.At(i, 1), k.At(i, 2))
	}
	encoded, err := json.MarshalIndent(cfg.Intrinsics, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(encoded))
	return nil
}
