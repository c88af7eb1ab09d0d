// Package main is the vo command, which runs the visual odometry engine over a stream of frames
// and writes the trajectory and map it builds.
package main

import (
	"context"
	"os"
	"os/signal"

	"go.viam.com/vslam/logging"
)

const (
	flagImages     = "images"
	flagURL        = "url"
	flagConfig     = "config"
	flagIntrinsics = "intrinsics"
	flagFPS        = "fps"
	flagLoop       = "loop"
	flagOut        = "out"
	flagPlot       = "plot"
	flagDebug      = "debug"
	flagLogFile    = "log-file"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newApp().RunContext(ctx, os.Args)
	cancel()
	if err != nil {
		logging.NewLogger("vo").Error(err)
		os.Exit(1)
	}
}
