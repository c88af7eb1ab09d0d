package odometry

import (
	"testing"

	"go.viam.com/test"
)

func TestKeyframeRing(t *testing.T) {
	kr := newKeyframeRing(3)
	test.That(t, kr.recent(5), test.ShouldBeEmpty)
	for i := 1; i <= 4; i++ {
		kr.add(&Keyframe{Index: 10 * i})
	}
	test.That(t, kr.len(), test.ShouldEqual, 3)
	test.That(t, kr.indices(), test.ShouldResemble, []int{20, 30, 40})

	recent := kr.recent(2)
	test.That(t, recent, test.ShouldHaveLength, 2)
	test.That(t, recent[0].Index, test.ShouldEqual, 40)
	test.That(t, recent[1].Index, test.ShouldEqual, 30)
	test.That(t, kr.recent(10), test.ShouldHaveLength, 3)

	kr.clear()
	test.That(t, kr.len(), test.ShouldEqual, 0)
}
