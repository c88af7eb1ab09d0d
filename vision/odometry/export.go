package odometry

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/vslam/pointcloud"
)

var trajectoryHeader = []string{"index", "x", "y", "z"}

// WriteTrajectoryCSV writes one row per trajectory position.
func WriteTrajectoryCSV(out io.Writer, trajectory []r3.Vector) error {
	w := csv.NewWriter(out)
	if err := w.Write(trajectoryHeader); err != nil {
		return err
	}
	format := func(v float64) string {
		return strconv.FormatFloat(v, 'f', 6, 64)
	}
	for i, p := range trajectory {
		if err := w.Write([]string{strconv.Itoa(i), format(p.X), format(p.Y), format(p.Z)}); err != nil {
			return err
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "cannot write trajectory")
}

// PointCloudPCD writes the sampled points of the snapshot as a PCD file.
func (md *MapData) PointCloudPCD(out io.Writer, pcdType pointcloud.PCDType) error {
	cloud := pointcloud.NewWithPrealloc(len(md.PointCloud))
	for _, p := range md.PointCloud {
		cloud.Set(p, pointcloud.NewBasicData())
	}
	return pointcloud.ToPCD(cloud, out, pcdType)
}

// WriteMapPCD writes every point currently held by the engine, with its intensity, as a PCD file.
func (e *Engine) WriteMapPCD(out io.Writer, pcdType pointcloud.PCDType) error {
	return pointcloud.ToPCD(e.Map(), out, pcdType)
}
