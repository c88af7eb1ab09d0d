package main

import (
	"bufio"
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"go.viam.com/vslam/pointcloud"
	"go.viam.com/vslam/rimage"
	"go.viam.com/vslam/vision/keypoints"
	"go.viam.com/vslam/vision/odometry"
)

const (
	trajectoryCSV  = "trajectory.csv"
	mapPCD         = "map.pcd"
	dataJSON       = "data.json"
	trajectoryPlot = "trajectory.png"
	keypointsPlot  = "keypoints.png"
)

// writeRunOutputs writes the results of a run into a new directory.
func writeRunOutputs(dir string, engine *odometry.Engine, cfg *odometry.Config, withPlots bool, lastFrame image.Image) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	data := engine.Data()

	if err := writeFile(filepath.Join(dir, trajectoryCSV), func(w *bufio.Writer) error {
		return odometry.WriteTrajectoryCSV(w, data.Trajectory)
	}); err != nil {
		return err
	}
	if err := pointcloud.WriteToPCDFile(engine.Map(), filepath.Join(dir, mapPCD), pointcloud.PCDBinary); err != nil {
		return errors.Wrap(err, "cannot write map")
	}
	if err := writeFile(filepath.Join(dir, dataJSON), func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Data   *odometry.MapData     `json:"data"`
			Status odometry.EngineStatus `json:"status"`
		}{data, engine.Status()})
	}); err != nil {
		return err
	}
	if !withPlots {
		return nil
	}

	if err := plotTrajectory(data, filepath.Join(dir, trajectoryPlot)); err != nil {
		return err
	}
	if lastFrame == nil {
		return nil
	}
	tracker, err := odometry.NewFeatureTracker(cfg.Corners, cfg.OpticalFlow)
	if err != nil {
		return err
	}
	corners := tracker.Detect(rimage.MakeGray(lastFrame))
	return keypoints.PlotKeypoints(lastFrame, corners, filepath.Join(dir, keypointsPlot))
}

func writeFile(path string, write func(w *bufio.Writer) error) (err error) {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		return err
	}
	return w.Flush()
}

// plotTrajectory draws the top view (x against z) of the trajectory and the sampled map.
func plotTrajectory(data *odometry.MapData, path string) error {
	p := plot.New()
	p.Title.Text = "Trajectory"
	p.X.Label.Text = "x"
	p.Y.Label.Text = "z"

	mapPts := make(plotter.XYs, 0, len(data.PointCloud))
	for _, pt := range data.PointCloud {
		mapPts = append(mapPts, plotter.XY{X: pt.X, Y: pt.Z})
	}
	if len(mapPts) > 0 {
		scatter, err := plotter.NewScatter(mapPts)
		if err != nil {
			return err
		}
		scatter.GlyphStyle.Radius = vg.Points(1)
		scatter.GlyphStyle.Color = color.Gray{Y: 160}
		p.Add(scatter)
	}

	trajPts := make(plotter.XYs, 0, len(data.Trajectory))
	for _, pos := range data.Trajectory {
		trajPts = append(trajPts, plotter.XY{X: pos.X, Y: pos.Z})
	}
	if len(trajPts) > 0 {
		line, err := plotter.NewLine(trajPts)
		if err != nil {
			return err
		}
		line.Width = vg.Points(1)
		line.Color = color.RGBA{R: 200, A: 255}
		p.Add(line)
		p.Legend.Add("camera", line)
	}
	return p.Save(8*vg.Inch, 8*vg.Inch, path)
}
