package odometry

import (
	"encoding/json"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"
)

// EngineStatus holds the engine counters.
type EngineStatus struct {
	FrameCount       int `json:"frame_count"`
	TrajectoryLength int `json:"trajectory_length"`
	TotalPoints      int `json:"total_points"`
	Keyframes        int `json:"keyframes"`
	LoopClosures     int `json:"loop_closures"`
}

// MapData is a snapshot of the trajectory and the map.
type MapData struct {
	// Trajectory holds the camera positions after each accepted motion, oldest first.
	Trajectory []r3.Vector
	// PointCloud is a subsample of the map points.
	PointCloud []r3.Vector
	// Pose is the current camera position.
	Pose         r3.Vector
	FrameCount   int
	TotalPoints  int
	LoopClosures int
}

type mapDataJSON struct {
	Trajectory   [][3]float64 `json:"trajectory"`
	PointCloud   [][3]float64 `json:"point_cloud"`
	Pose         [3]float64   `json:"pose"`
	FrameCount   int          `json:"frame_count"`
	TotalPoints  int          `json:"total_points"`
	LoopClosures int          `json:"loop_closures"`
}

func toArray(v r3.Vector, _ int) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

func fromArray(a [3]float64, _ int) r3.Vector {
	return r3.Vector{X: a[0], Y: a[1], Z: a[2]}
}

// MarshalJSON encodes vectors as [x, y, z] arrays.
func (md MapData) MarshalJSON() ([]byte, error) {
	return json.Marshal(mapDataJSON{
		Trajectory:   lo.Map(md.Trajectory, toArray),
		PointCloud:   lo.Map(md.PointCloud, toArray),
		Pose:         toArray(md.Pose, 0),
		FrameCount:   md.FrameCount,
		TotalPoints:  md.TotalPoints,
		LoopClosures: md.LoopClosures,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (md *MapData) UnmarshalJSON(data []byte) error {
	var raw mapDataJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*md = MapData{
		Trajectory:   lo.Map(raw.Trajectory, fromArray),
		PointCloud:   lo.Map(raw.PointCloud, fromArray),
		Pose:         fromArray(raw.Pose, 0),
		FrameCount:   raw.FrameCount,
		TotalPoints:  raw.TotalPoints,
		LoopClosures: raw.LoopClosures,
	}
	return nil
}
