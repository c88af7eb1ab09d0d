package odometry

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/vslam/pointcloud"
)

func TestMapDataJSON(t *testing.T) {
	data := MapData{
		Trajectory:   []r3.Vector{{X: 0.01}, {X: 0.02, Y: -0.5}},
		PointCloud:   []r3.Vector{{X: 1, Y: 2, Z: 3}},
		Pose:         r3.Vector{X: 0.02, Y: -0.5},
		FrameCount:   12,
		TotalPoints:  340,
		LoopClosures: 1,
	}
	encoded, err := json.Marshal(data)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(encoded), test.ShouldContainSubstring, `"trajectory":[[0.01,0,0],[0.02,-0.5,0]]`)
	test.That(t, string(encoded), test.ShouldContainSubstring, `"point_cloud":[[1,2,3]]`)
	test.That(t, string(encoded), test.ShouldContainSubstring, `"pose":[0.02,-0.5,0]`)
	test.That(t, string(encoded), test.ShouldContainSubstring, `"total_points":340`)

	var decoded MapData
	test.That(t, json.Unmarshal(encoded, &decoded), test.ShouldBeNil)
	test.That(t, decoded, test.ShouldResemble, data)

	status, err := json.Marshal(EngineStatus{FrameCount: 3, Keyframes: 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(status), test.ShouldEqual,
		`{"frame_count":3,"trajectory_length":0,"total_points":0,"keyframes":1,"loop_closures":0}`)
}

func TestWriteTrajectoryCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTrajectoryCSV(&buf, []r3.Vector{{X: 0.015}, {X: 0.04, Y: 0.001, Z: -0.25}})
	test.That(t, err, test.ShouldBeNil)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	test.That(t, lines, test.ShouldResemble, []string{
		"index,x,y,z",
		"0,0.015000,0.000000,0.000000",
		"1,0.040000,0.001000,-0.250000",
	})
}

func TestPointCloudExports(t *testing.T) {
	data := &MapData{PointCloud: []r3.Vector{{X: 1, Y: 2, Z: 3}, {X: -1, Y: 0, Z: 5}}}
	var buf bytes.Buffer
	test.That(t, data.PointCloudPCD(&buf, pointcloud.PCDAscii), test.ShouldBeNil)
	cloud, err := pointcloud.ReadPCD(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldEqual, 2)
	test.That(t, cloud.MetaData().HasColor, test.ShouldBeFalse)

	scene := newOrbitScene()
	engine, _, _ := newSceneEngine(t, DefaultConfig(), scene)
	runFrames(engine, scene, 0, 6)
	buf.Reset()
	test.That(t, engine.WriteMapPCD(&buf, pointcloud.PCDBinary), test.ShouldBeNil)
	cloud, err = pointcloud.ReadPCD(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldEqual, engine.Map().Size())
	test.That(t, cloud.Size(), test.ShouldBeGreaterThan, 0)
	// Scene frames are too small to color the points.
	test.That(t, cloud.MetaData().HasColor, test.ShouldBeFalse)
}
