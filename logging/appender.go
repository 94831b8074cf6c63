package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap/zapcore"
)

// DefaultTimeFormatStr is the timestamp layout used by the console and test appenders.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// Appender is an output for log entries.
type Appender interface {
	Write(zapcore.Entry, []zapcore.Field) error
	Sync() error
}

// ConsoleAppender writes tab separated log lines to an io.Writer.
type ConsoleAppender struct {
	io.Writer
	encoder zapcore.Encoder
}

// NewStdoutAppender returns an appender writing to stdout.
func NewStdoutAppender() ConsoleAppender {
	return NewWriterAppender(os.Stdout)
}

// NewWriterAppender returns an appender writing to w.
func NewWriterAppender(w io.Writer) ConsoleAppender {
	cfg := NewLoggerConfig().EncoderConfig
	// no color codes outside of a terminal
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(DefaultTimeFormatStr)
	return ConsoleAppender{Writer: w, encoder: zapcore.NewConsoleEncoder(cfg)}
}

// Write encodes the entry and fields as a single line.
func (appender ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	buf, err := appender.encoder.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	defer buf.Free()
	_, err = appender.Writer.Write(buf.Bytes())
	return err
}

// Sync flushes the writer when it supports it.
func (appender ConsoleAppender) Sync() error {
	if syncer, ok := appender.Writer.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil && appender.Writer != os.Stdout {
			return err
		}
	}
	return nil
}

func callerToString(caller *zapcore.EntryCaller) string {
	return fmt.Sprintf("%s:%d", caller.TrimmedPath(), caller.Line)
}
