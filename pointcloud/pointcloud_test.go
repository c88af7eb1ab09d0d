package pointcloud

import (
	"bytes"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func chunkOf(n int, base float64) Chunk {
	pts := make([]r3.Vector, n)
	for i := range pts {
		pts[i] = r3.Vector{X: base + float64(i), Y: base, Z: 1}
	}
	return Chunk{Points: pts}
}

func TestBasicPointCloud(t *testing.T) {
	pc := New()
	test.That(t, pc.Size(), test.ShouldEqual, 0)
	test.That(t, pc.MetaData().Center(), test.ShouldResemble, r3.Vector{})

	pc.Set(NewVector(0, 0, 0), NewBasicData())
	pc.Set(NewVector(2, -4, 6), NewGrayData(30))
	pc.Set(NewVector(2, -4, 6), nil)
	test.That(t, pc.Size(), test.ShouldEqual, 3)

	meta := pc.MetaData()
	test.That(t, meta.HasColor, test.ShouldBeTrue)
	test.That(t, meta.MinY, test.ShouldEqual, -4.0)
	test.That(t, meta.MaxZ, test.ShouldEqual, 6.0)
	test.That(t, meta.Center(), test.ShouldResemble, r3.Vector{X: 1, Y: -2, Z: 3})

	count := 0
	pc.Iterate(func(p r3.Vector, d Data) bool {
		count++
		return count < 2
	})
	test.That(t, count, test.ShouldEqual, 2)
	test.That(t, Points(pc), test.ShouldHaveLength, 3)
}

func TestChunkedCloudEviction(t *testing.T) {
	cc := NewChunkedCloud(3)
	test.That(t, cc.AddChunk(Chunk{}), test.ShouldBeFalse)
	test.That(t, cc.NumChunks(), test.ShouldEqual, 0)

	for i := 0; i < 3; i++ {
		test.That(t, cc.AddChunk(chunkOf(10, float64(100*i))), test.ShouldBeFalse)
	}
	test.That(t, cc.Size(), test.ShouldEqual, 30)
	test.That(t, cc.TotalPoints(), test.ShouldEqual, 30)

	test.That(t, cc.AddChunk(chunkOf(4, 300)), test.ShouldBeTrue)
	test.That(t, cc.NumChunks(), test.ShouldEqual, 3)
	test.That(t, cc.Size(), test.ShouldEqual, 24)
	test.That(t, cc.TotalPoints(), test.ShouldEqual, 34)

	pts := Points(cc)
	test.That(t, pts, test.ShouldHaveLength, 24)
	test.That(t, pts[0].X, test.ShouldEqual, 100.0)
	test.That(t, pts[23].X, test.ShouldEqual, 303.0)

	clone := cc.Clone()
	cc.Clear()
	test.That(t, cc.Size(), test.ShouldEqual, 0)
	test.That(t, cc.TotalPoints(), test.ShouldEqual, 0)
	test.That(t, clone.Size(), test.ShouldEqual, 24)
	test.That(t, clone.TotalPoints(), test.ShouldEqual, 34)
}

func TestChunkedCloudSample(t *testing.T) {
	cc := NewChunkedCloud(100)
	for i := 0; i < 30; i++ {
		cc.AddChunk(chunkOf(100, float64(1000*i)))
	}
	sample := cc.Sample(1000)
	test.That(t, sample, test.ShouldHaveLength, 1000)
	test.That(t, sample[0].X, test.ShouldEqual, 0.0)
	// the stride reaches the newest chunk
	test.That(t, sample[999].X, test.ShouldBeGreaterThanOrEqualTo, 29000)

	test.That(t, cc.Sample(0), test.ShouldHaveLength, 3000)
	small := NewChunkedCloud(2)
	small.AddChunk(chunkOf(5, 0))
	test.That(t, small.Sample(1000), test.ShouldHaveLength, 5)
}

func TestPCDRoundTrip(t *testing.T) {
	for _, pcdType := range []PCDType{PCDAscii, PCDBinary} {
		pc := New()
		pc.Set(NewVector(1.5, -2.25, 3), NewColoredData(color.NRGBA{10, 20, 30, 255}))
		pc.Set(NewVector(0, 0.5, 10), NewColoredData(color.NRGBA{200, 0, 1, 255}))

		var buf bytes.Buffer
		test.That(t, ToPCD(pc, &buf, pcdType), test.ShouldBeNil)
		got, err := ReadPCD(&buf)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got.Size(), test.ShouldEqual, 2)
		test.That(t, Points(got), test.ShouldResemble, Points(pc))
		test.That(t, got.MetaData().HasColor, test.ShouldBeTrue)
		var colors []color.Color
		got.Iterate(func(_ r3.Vector, d Data) bool {
			colors = append(colors, d.Color())
			return true
		})
		r, g, b, _ := colors[0].RGBA()
		test.That(t, []uint32{r >> 8, g >> 8, b >> 8}, test.ShouldResemble, []uint32{10, 20, 30})
	}
}

func TestPCDNoColor(t *testing.T) {
	cc := NewChunkedCloud(2)
	cc.AddChunk(chunkOf(3, 0))
	var buf bytes.Buffer
	test.That(t, ToPCD(cc, &buf, PCDAscii), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldContainSubstring, "FIELDS x y z\n")
	test.That(t, buf.String(), test.ShouldContainSubstring, "POINTS 3\n")
	got, err := ReadPCD(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.MetaData().HasColor, test.ShouldBeFalse)
	test.That(t, Points(got), test.ShouldResemble, Points(cc))

	test.That(t, ToPCD(cc, &buf, PCDCompressed), test.ShouldNotBeNil)
}

func TestReadPCDErrors(t *testing.T) {
	_, err := ReadPCD(bytes.NewBufferString("VERSION .6\n"))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ReadPCD(bytes.NewBufferString("VERSION .7\nFIELDS x y\n"))
	test.That(t, err, test.ShouldNotBeNil)

	truncated := "VERSION .7\nFIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\n" +
		"WIDTH 2\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS 2\nDATA ascii\n1 2 3\n"
	_, err = ReadPCD(bytes.NewBufferString(truncated))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestWriteToPCDFile(t *testing.T) {
	pc := New()
	pc.Set(NewVector(1, 2, 3), nil)
	fn := filepath.Join(t.TempDir(), "map.pcd")
	test.That(t, WriteToPCDFile(pc, fn, PCDBinary), test.ShouldBeNil)
	f, err := os.Open(fn)
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()
	got, err := ReadPCD(f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, Points(got), test.ShouldResemble, []r3.Vector{{X: 1, Y: 2, Z: 3}})
}
