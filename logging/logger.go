package logging

import (
	"go.uber.org/zap"
)

// Logger is the logging interface used throughout the calibration packages.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	Name() string
	// Sublogger returns a logger named "<parent>.<subname>" writing to the same appenders.
	Sublogger(subname string) Logger
	SetLevel(level Level)
	GetLevel() Level
	AddAppender(appender Appender)
	// AsZap returns a zap logger writing to every appender that is also a zapcore.Core.
	AsZap() *zap.SugaredLogger
	Sync() error
}
