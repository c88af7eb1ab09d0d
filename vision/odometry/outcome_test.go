package odometry

import (
	"testing"

	"go.viam.com/test"
)

func TestOutcomeString(t *testing.T) {
	test.That(t, Outcome{Status: StatusUpdated}.String(), test.ShouldEqual, "updated")
	test.That(t, Outcome{Status: StatusUpdated}.Updated(), test.ShouldBeTrue)

	out := Outcome{Status: StatusMotionRejected, Reason: ReasonTranslationOutlier}
	test.That(t, out.Updated(), test.ShouldBeFalse)
	test.That(t, out.String(), test.ShouldEqual, "motion_rejected: translation_outlier")

	test.That(t, Status(42).String(), test.ShouldEqual, "status(42)")
	test.That(t, Reason(99).String(), test.ShouldEqual, "reason(99)")
	for r := ReasonNone; r <= ReasonCanceled; r++ {
		test.That(t, reasonNames, test.ShouldContainKey, r)
	}
}
