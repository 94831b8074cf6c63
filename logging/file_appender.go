package logging

import (
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileAppender writes console formatted log lines to a size-rotated file.
type FileAppender struct {
	ConsoleAppender
	file *lumberjack.Logger
}

// NewFileAppender returns an appender writing to path. The file is rotated once it grows past
// maxSizeMB megabytes, keeping at most maxBackups old files. A zero maxSizeMB selects
// lumberjack's default of 100.
func NewFileAppender(path string, maxSizeMB, maxBackups int) *FileAppender {
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}
	return &FileAppender{
		ConsoleAppender: NewWriterAppender(file),
		file:            file,
	}
}

// Sync is a no-op; lumberjack writes straight through to the file.
func (appender *FileAppender) Sync() error {
	return nil
}

// Close closes the current log file.
func (appender *FileAppender) Close() error {
	return appender.file.Close()
}
