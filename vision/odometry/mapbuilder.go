package odometry

import (
	"image"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/vslam/pointcloud"
	"go.viam.com/vslam/rimage/transform"
	"go.viam.com/vslam/spatialmath"
)

// MapBuilder triangulates the correspondences of an accepted motion into world points.
type MapBuilder struct {
	k      *mat.Dense
	bounds image.Rectangle
}

// NewMapBuilder returns a map builder for a camera.
func NewMapBuilder(intrinsics *transform.PinholeCameraIntrinsics) *MapBuilder {
	return &MapBuilder{
		k:      intrinsics.GetCameraMatrix(),
		bounds: image.Rect(0, 0, intrinsics.Width, intrinsics.Height),
	}
}

// Build triangulates newPts, seen by the camera K[I|0], against prevPts, seen by K[R|t], where
// X_prev = R*X_new + t. Points behind the new camera are dropped and the rest are moved to the
// world with pose, the world pose of the new camera. Points are colored by the intensity of gray
// at their pixel when gray is given.
func (mb *MapBuilder) Build(
	newPts, prevPts []r2.Point,
	rotation mat.Matrix,
	translation r3.Vector,
	pose mat.Matrix,
	gray *image.Gray,
) (pointcloud.Chunk, error) {
	var chunk pointcloud.Chunk
	if len(newPts) == 0 {
		return chunk, nil
	}
	p1 := transform.GetProjectionMatrix(mb.k, eye3(), mat.NewDense(3, 1, nil))
	p2 := transform.GetProjectionMatrix(mb.k, mat.DenseCopyOf(rotation),
		mat.NewDense(3, 1, []float64{translation.X, translation.Y, translation.Z}))
	pts, valid, err := transform.TriangulatePoints(p1, p2, newPts, prevPts)
	if err != nil {
		return chunk, err
	}
	for i, p := range pts {
		if !valid[i] || p.Z <= 0 {
			continue
		}
		chunk.Points = append(chunk.Points, spatialmath.TransformPoint(pose, p))
		if gray != nil {
			chunk.Data = append(chunk.Data, pixelData(gray, newPts[i]))
		}
	}
	return chunk, nil
}

func pixelData(gray *image.Gray, p r2.Point) pointcloud.Data {
	pt := image.Pt(int(p.X+0.5), int(p.Y+0.5))
	if !pt.In(gray.Bounds()) {
		return pointcloud.NewBasicData()
	}
	return pointcloud.NewGrayData(gray.GrayAt(pt.X, pt.Y).Y)
}

func eye3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}
