package logging

import (
	"os"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Appender is an output for log entries. Every zapcore.Core is an Appender.
type Appender interface {
	Write(zapcore.Entry, []zapcore.Field) error
	Sync() error
}

// ConsoleAppender writes entries with a console encoder.
type ConsoleAppender struct {
	encoder zapcore.Encoder
	writer  zapcore.WriteSyncer
}

// NewStdoutAppender writes colored console lines to stdout.
func NewStdoutAppender() ConsoleAppender {
	return ConsoleAppender{
		encoder: zapcore.NewConsoleEncoder(newEncoderConfig(zapcore.CapitalColorLevelEncoder)),
		writer:  zapcore.Lock(os.Stdout),
	}
}

// Rotation limits for NewFileAppender.
const (
	fileMaxSizeMB  = 64
	fileMaxBackups = 5
	fileMaxAgeDays = 14
)

// NewFileAppender writes uncolored console lines to path, rotating the file by size.
func NewFileAppender(path string) ConsoleAppender {
	return ConsoleAppender{
		encoder: zapcore.NewConsoleEncoder(newEncoderConfig(zapcore.CapitalLevelEncoder)),
		writer: zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    fileMaxSizeMB,
			MaxBackups: fileMaxBackups,
			MaxAge:     fileMaxAgeDays,
		}),
	}
}

// Write encodes the entry and writes it out.
func (appender ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	buf, err := appender.encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()
	_, err = appender.writer.Write(buf.Bytes())
	return err
}

// Sync flushes the underlying writer.
func (appender ConsoleAppender) Sync() error {
	return appender.writer.Sync()
}
