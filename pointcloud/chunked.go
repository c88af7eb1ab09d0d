package pointcloud

import (
	"github.com/golang/geo/r3"

	"go.viam.com/vslam/utils"
)

// Chunk is the group of points triangulated from one frame pair.
type Chunk struct {
	Points []r3.Vector
	// Data is either nil or aligned with Points.
	Data []Data
}

// Len returns the number of points in the chunk.
func (c Chunk) Len() int {
	return len(c.Points)
}

// ChunkedCloud keeps the most recent chunks up to a capacity, evicting the oldest chunk on
// overflow. It also counts every point ever added, evicted or not. It is not safe for
// concurrent use.
type ChunkedCloud struct {
	chunks      *utils.Ring[Chunk]
	size        int
	totalPoints int
}

// NewChunkedCloud returns an empty cloud holding at most maxChunks chunks.
func NewChunkedCloud(maxChunks int) *ChunkedCloud {
	return &ChunkedCloud{chunks: utils.NewRing[Chunk](maxChunks)}
}

// AddChunk appends a chunk and reports whether the oldest chunk was evicted to make room.
// Empty chunks are ignored.
func (cc *ChunkedCloud) AddChunk(chunk Chunk) bool {
	if chunk.Len() == 0 {
		return false
	}
	var oldest Chunk
	full := cc.chunks.Len() == cc.chunks.Cap()
	if full {
		oldest = cc.chunks.At(0)
	}
	evicted := cc.chunks.Push(chunk)
	if evicted && full {
		cc.size -= oldest.Len()
	}
	cc.size += chunk.Len()
	cc.totalPoints += chunk.Len()
	return evicted
}

// Size returns the number of points currently held.
func (cc *ChunkedCloud) Size() int {
	return cc.size
}

// TotalPoints returns the number of points ever added. Eviction does not decrease it.
func (cc *ChunkedCloud) TotalPoints() int {
	return cc.totalPoints
}

// NumChunks returns the number of chunks currently held.
func (cc *ChunkedCloud) NumChunks() int {
	return cc.chunks.Len()
}

// MetaData computes the bounds of the held points.
func (cc *ChunkedCloud) MetaData() MetaData {
	meta := NewMetaData()
	cc.Iterate(func(p r3.Vector, d Data) bool {
		meta.Merge(p, d)
		return true
	})
	return meta
}

// Iterate visits the held points from the oldest chunk to the newest.
func (cc *ChunkedCloud) Iterate(fn func(p r3.Vector, d Data) bool) {
	for i := 0; i < cc.chunks.Len(); i++ {
		chunk := cc.chunks.At(i)
		for j, p := range chunk.Points {
			var d Data
			if chunk.Data != nil {
				d = chunk.Data[j]
			}
			if !fn(p, d) {
				return
			}
		}
	}
}

// Sample returns at most n of the held points, taken at a regular stride over the whole cloud
// so that old and new chunks are both represented. n <= 0 returns every point.
func (cc *ChunkedCloud) Sample(n int) []r3.Vector {
	if n <= 0 || cc.size <= n {
		return Points(cc)
	}
	stride := float64(cc.size) / float64(n)
	out := make([]r3.Vector, 0, n)
	next := 0.0
	idx := 0
	cc.Iterate(func(p r3.Vector, _ Data) bool {
		if float64(idx) >= next {
			out = append(out, p)
			next += stride
		}
		idx++
		return len(out) < n
	})
	return out
}

// Clone returns an independent copy of the cloud. Chunks are shared since they are never
// modified once added.
func (cc *ChunkedCloud) Clone() *ChunkedCloud {
	out := NewChunkedCloud(cc.chunks.Cap())
	for _, chunk := range cc.chunks.Slice() {
		out.chunks.Push(chunk)
	}
	out.size = cc.size
	out.totalPoints = cc.totalPoints
	return out
}

// Clear drops every chunk and resets the lifetime count.
func (cc *ChunkedCloud) Clear() {
	cc.chunks.Clear()
	cc.size = 0
	cc.totalPoints = 0
}
