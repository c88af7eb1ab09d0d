package utils

import (
	"image"
	"sync/atomic"
	"testing"

	"go.viam.com/test"
)

func TestParallelForEachRow(t *testing.T) {
	for _, rows := range []int{0, 1, 7, 480} {
		seen := make([]int32, rows)
		ParallelForEachRow(rows, func(y int) {
			atomic.AddInt32(&seen[y], 1)
		})
		for _, count := range seen {
			test.That(t, count, test.ShouldEqual, 1)
		}
	}
}

func TestParallelForEachPixel(t *testing.T) {
	size := image.Pt(13, 9)
	var total int64
	ParallelForEachPixel(size, func(x, y int) {
		atomic.AddInt64(&total, int64(y*size.X+x))
	})
	n := int64(size.X * size.Y)
	test.That(t, total, test.ShouldEqual, n*(n-1)/2)
}
