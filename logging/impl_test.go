package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

func TestSubloggerNames(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	odom := logger.Sublogger("odometry")
	loop := odom.Sublogger("loop")

	odom.Info("tracking")
	loop.Infow("closure", "keyframe", 40)

	entries := observed.All()
	test.That(t, entries, test.ShouldHaveLength, 2)
	test.That(t, entries[0].LoggerName, test.ShouldEqual, "odometry")
	test.That(t, entries[1].LoggerName, test.ShouldEqual, "odometry.loop")
	test.That(t, entries[1].ContextMap()["keyframe"], test.ShouldEqual, int64(40))
}

func TestLevelFiltering(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	logger.SetLevel(zapcore.WarnLevel)

	logger.Debugf("dropped %d", 1)
	logger.Info("dropped")
	logger.Warnf("kept %d", 2)
	logger.Errorw("kept", "reason", "too few inliers")

	test.That(t, observed.Len(), test.ShouldEqual, 2)
	test.That(t, observed.FilterMessage("kept 2").Len(), test.ShouldEqual, 1)
	test.That(t, observed.FilterField(zap.String("reason", "too few inliers")).Len(), test.ShouldEqual, 1)

	// A sublogger starts at its parent's level but is independent afterwards.
	sub := logger.Sublogger("sub")
	test.That(t, sub.Level(), test.ShouldEqual, zapcore.WarnLevel)
	sub.SetLevel(zapcore.DebugLevel)
	sub.Debug("visible")
	logger.Debug("hidden")
	test.That(t, observed.FilterMessage("visible").Len(), test.ShouldEqual, 1)
	test.That(t, observed.FilterMessage("hidden").Len(), test.ShouldEqual, 0)
}

func TestUnpairedKey(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	logger.Infow("msg", "lonely")
	entries := observed.All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].ContextMap()["lonely"], test.ShouldNotBeNil)
}

func TestAsZap(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	zlogger := logger.Sublogger("zap").AsZap()
	zlogger.With("frame", 3).Infow("converted", "inliers", 42)

	entries := observed.All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].LoggerName, test.ShouldEqual, "zap")
	test.That(t, entries[0].ContextMap()["frame"], test.ShouldEqual, int64(3))
	test.That(t, entries[0].ContextMap()["inliers"], test.ShouldEqual, int64(42))
}

func TestFileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vo.log")
	logger := NewBlankLogger("file")
	logger.AddAppender(NewFileAppender(path))

	logger.Infow("pose updated", "x", 0.25)
	test.That(t, logger.Sync(), test.ShouldBeNil)

	//nolint:gosec
	contents, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	lines := strings.Split(strings.TrimSpace(string(contents)), "\n")
	test.That(t, lines, test.ShouldHaveLength, 1)
	test.That(t, lines[0], test.ShouldContainSubstring, "INFO")
	test.That(t, lines[0], test.ShouldContainSubstring, "file")
	test.That(t, lines[0], test.ShouldContainSubstring, "impl_test.go")
	test.That(t, lines[0], test.ShouldContainSubstring, "pose updated")
	test.That(t, lines[0], test.ShouldContainSubstring, `{"x": 0.25}`)
}
