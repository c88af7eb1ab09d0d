package utils

import (
	"testing"

	"go.viam.com/test"
)

func TestRing(t *testing.T) {
	r := NewRing[int](3)
	test.That(t, r.Cap(), test.ShouldEqual, 3)
	_, ok := r.Last()
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, r.Slice(), test.ShouldBeEmpty)

	test.That(t, r.Push(1), test.ShouldBeFalse)
	test.That(t, r.Push(2), test.ShouldBeFalse)
	test.That(t, r.Push(3), test.ShouldBeFalse)
	test.That(t, r.Slice(), test.ShouldResemble, []int{1, 2, 3})

	test.That(t, r.Push(4), test.ShouldBeTrue)
	test.That(t, r.Push(5), test.ShouldBeTrue)
	test.That(t, r.Len(), test.ShouldEqual, 3)
	test.That(t, r.Slice(), test.ShouldResemble, []int{3, 4, 5})
	test.That(t, r.At(0), test.ShouldEqual, 3)
	test.That(t, r.Newest(2), test.ShouldResemble, []int{4, 5})
	test.That(t, r.Newest(10), test.ShouldResemble, []int{3, 4, 5})
	last, ok := r.Last()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, last, test.ShouldEqual, 5)

	r.Clear()
	test.That(t, r.Len(), test.ShouldEqual, 0)
	r.Push(6)
	test.That(t, r.Slice(), test.ShouldResemble, []int{6})
}

func TestRingZeroCapacity(t *testing.T) {
	r := NewRing[string](0)
	test.That(t, r.Cap(), test.ShouldEqual, 1)
	r.Push("a")
	r.Push("b")
	test.That(t, r.Slice(), test.ShouldResemble, []string{"b"})
}
