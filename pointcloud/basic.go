package pointcloud

import (
	"github.com/golang/geo/r3"
)

// PointAndData is a point and its data.
type PointAndData struct {
	P r3.Vector
	D Data
}

// BasicPointCloud is an append-only PointCloud backed by a slice.
type BasicPointCloud struct {
	points []PointAndData
	meta   MetaData
}

// New returns an empty BasicPointCloud.
func New() *BasicPointCloud {
	return NewWithPrealloc(0)
}

// NewWithPrealloc returns an empty, preallocated BasicPointCloud.
func NewWithPrealloc(size int) *BasicPointCloud {
	return &BasicPointCloud{
		points: make([]PointAndData, 0, size),
		meta:   NewMetaData(),
	}
}

// Size returns the number of points.
func (cloud *BasicPointCloud) Size() int {
	return len(cloud.points)
}

// MetaData returns the bounds of the cloud.
func (cloud *BasicPointCloud) MetaData() MetaData {
	return cloud.meta
}

// Set appends a point to the cloud.
func (cloud *BasicPointCloud) Set(p r3.Vector, d Data) {
	cloud.points = append(cloud.points, PointAndData{P: p, D: d})
	cloud.meta.Merge(p, d)
}

// Iterate visits the points in insertion order.
func (cloud *BasicPointCloud) Iterate(fn func(p r3.Vector, d Data) bool) {
	for _, pd := range cloud.points {
		if !fn(pd.P, pd.D) {
			return
		}
	}
}
