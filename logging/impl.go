package logging

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type impl struct {
	name  string
	level zap.AtomicLevel
	inUTC bool

	appenders []Appender
}

func newImpl(name string, level zapcore.Level, inUTC bool, appenders ...Appender) *impl {
	return &impl{
		name:      name,
		level:     zap.NewAtomicLevelAt(level),
		inUTC:     inUTC,
		appenders: appenders,
	}
}

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) SetLevel(level zapcore.Level) {
	imp.level.SetLevel(level)
}

func (imp *impl) Level() zapcore.Level {
	return imp.level.Level()
}

func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = fmt.Sprintf("%s.%s", imp.name, subname)
	}

	return &impl{
		name:      newName,
		level:     zap.NewAtomicLevelAt(imp.level.Level()),
		inUTC:     imp.inUTC,
		appenders: imp.appenders,
	}
}

func (imp *impl) Sync() error {
	var errs error
	for _, appender := range imp.appenders {
		errs = multierr.Combine(errs, appender.Sync())
	}
	return errs
}

func (imp *impl) AsZap() *zap.SugaredLogger {
	var cores []zapcore.Core
	for _, appender := range imp.appenders {
		cores = append(cores, &appenderCore{LevelEnabler: imp.level, appender: appender})
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()).Sugar().Named(imp.name)
}

func (imp *impl) shouldLog(level zapcore.Level) bool {
	return imp.level.Enabled(level)
}

func (imp *impl) newEntry(level zapcore.Level, msg string) zapcore.Entry {
	entry := zapcore.Entry{
		Level:      level,
		Time:       time.Now(),
		LoggerName: imp.name,
		Message:    msg,
		Caller:     getCaller(),
	}
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}
	return entry
}

func (imp *impl) log(entry zapcore.Entry, fields []zapcore.Field) {
	for _, appender := range imp.appenders {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func (imp *impl) logs(level zapcore.Level, args ...interface{}) {
	if !imp.shouldLog(level) {
		return
	}
	imp.log(imp.newEntry(level, fmt.Sprint(args...)), nil)
}

func (imp *impl) logf(level zapcore.Level, template string, args ...interface{}) {
	if !imp.shouldLog(level) {
		return
	}
	imp.log(imp.newEntry(level, fmt.Sprintf(template, args...)), nil)
}

// Turns `keysAndValues` into fields where the odd elements are the keys and their following
// even counterpart is the value.
func (imp *impl) logw(level zapcore.Level, msg string, keysAndValues ...interface{}) {
	if !imp.shouldLog(level) {
		return
	}
	fields := make([]zapcore.Field, 0, len(keysAndValues)/2)
	for keyIdx := 0; keyIdx < len(keysAndValues); keyIdx += 2 {
		var keyStr string
		if stringer, ok := keysAndValues[keyIdx].(fmt.Stringer); ok {
			keyStr = stringer.String()
		} else {
			keyStr = fmt.Sprintf("%v", keysAndValues[keyIdx])
		}

		if keyIdx+1 < len(keysAndValues) {
			fields = append(fields, zap.Any(keyStr, keysAndValues[keyIdx+1]))
		} else {
			fields = append(fields, zap.Any(keyStr, errors.New("unpaired log key")))
		}
	}
	imp.log(imp.newEntry(level, msg), fields)
}

func (imp *impl) Debug(args ...interface{}) { imp.logs(zapcore.DebugLevel, args...) }

func (imp *impl) Debugf(template string, args ...interface{}) {
	imp.logf(zapcore.DebugLevel, template, args...)
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.logw(zapcore.DebugLevel, msg, keysAndValues...)
}

func (imp *impl) Info(args ...interface{}) { imp.logs(zapcore.InfoLevel, args...) }

func (imp *impl) Infof(template string, args ...interface{}) {
	imp.logf(zapcore.InfoLevel, template, args...)
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.logw(zapcore.InfoLevel, msg, keysAndValues...)
}

func (imp *impl) Warn(args ...interface{}) { imp.logs(zapcore.WarnLevel, args...) }

func (imp *impl) Warnf(template string, args ...interface{}) {
	imp.logf(zapcore.WarnLevel, template, args...)
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.logw(zapcore.WarnLevel, msg, keysAndValues...)
}

func (imp *impl) Error(args ...interface{}) { imp.logs(zapcore.ErrorLevel, args...) }

func (imp *impl) Errorf(template string, args ...interface{}) {
	imp.logf(zapcore.ErrorLevel, template, args...)
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.logw(zapcore.ErrorLevel, msg, keysAndValues...)
}

// getCaller reports the first frame outside this package.
func getCaller() zapcore.EntryCaller {
	// Skip getCaller, newEntry, logs/logf/logw and the exported method.
	const framesToSkip = 4
	pc, file, line, ok := runtime.Caller(framesToSkip)
	if !ok {
		return zapcore.EntryCaller{}
	}
	return zapcore.NewEntryCaller(pc, file, line, ok)
}

// appenderCore adapts an Appender back into a zapcore.Core for AsZap.
type appenderCore struct {
	zapcore.LevelEnabler
	appender Appender
	fields   []zapcore.Field
}

func (c *appenderCore) With(fields []zapcore.Field) zapcore.Core {
	return &appenderCore{
		LevelEnabler: c.LevelEnabler,
		appender:     c.appender,
		fields:       append(append([]zapcore.Field{}, c.fields...), fields...),
	}
}

func (c *appenderCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *appenderCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return c.appender.Write(entry, append(append([]zapcore.Field{}, c.fields...), fields...))
}

func (c *appenderCore) Sync() error {
	return c.appender.Sync()
}
