package utils

import (
	"image"
	"runtime"
	"sync"

	goutils "go.viam.com/utils"
)

// ParallelFactor controls the max level of parallelization. Tests may lower it.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
}

// ParallelForEachRow splits [0, rows) into contiguous bands, one goroutine per band, and calls f
// for every row of each band. It returns once all rows are done.
func ParallelForEachRow(rows int, f func(y int)) {
	if rows <= 0 {
		return
	}
	bands := ParallelFactor
	if bands > rows {
		bands = rows
	}
	bandSize := rows / bands
	extra := rows % bands

	var wait sync.WaitGroup
	wait.Add(bands)
	from := 0
	for band := 0; band < bands; band++ {
		to := from + bandSize
		if band < extra {
			to++
		}
		start, end := from, to
		goutils.PanicCapturingGo(func() {
			defer wait.Done()
			for y := start; y < end; y++ {
				f(y)
			}
		})
		from = to
	}
	wait.Wait()
}

// ParallelForEachPixel loops through the image and calls f for each [x, y] position, one
// goroutine per band of rows.
func ParallelForEachPixel(size image.Point, f func(x, y int)) {
	ParallelForEachRow(size.Y, func(y int) {
		for x := 0; x < size.X; x++ {
			f(x, y)
		}
	})
}
