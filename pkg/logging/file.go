package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Format represents the log output format
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// FileLoggerConfig holds configuration for file logging
type FileLoggerConfig struct {
	// Path is the log file path
	Path string
	// Format is the output format (json or text)
	Format Format
	// Level is the minimum log level
	Level Level
	// MaxSizeMB is the size in megabytes that triggers rotation
	MaxSizeMB int
	// MaxBackups is the maximum number of rotated files to keep (0 = all)
	MaxBackups int
	// MaxAgeDays removes rotated files older than this (0 = never)
	MaxAgeDays int
	// Compress gzips rotated files
	Compress bool
}

// sink is shared by a logger and every logger derived with WithFields
type sink struct {
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

// FileLogger implements Logger with JSON or text lines
type FileLogger struct {
	format Format
	level  Level
	out    *sink
	fields Fields
}

// NewFileLogger creates a logger writing to a rotating file
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("log file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	lj := &lumberjack.Logger{
		Filename:   config.Path,
		MaxSize:    config.MaxSizeMB,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAgeDays,
		Compress:   config.Compress,
	}
	return &FileLogger{
		format: config.Format,
		level:  config.Level,
		out:    &sink{w: lj, c: lj},
	}, nil
}

// NewWriterLogger creates a logger writing to w. Close does not close w.
func NewWriterLogger(w io.Writer, format Format, level Level) *FileLogger {
	return &FileLogger{
		format: format,
		level:  level,
		out:    &sink{w: w},
	}
}

// Debug logs a debug message
func (l *FileLogger) Debug(ctx context.Context, msg string, fields Fields) {
	l.log(DebugLevel, msg, nil, fields)
}

// Info logs an info message
func (l *FileLogger) Info(ctx context.Context, msg string, fields Fields) {
	l.log(InfoLevel, msg, nil, fields)
}

// Warn logs a warning message
func (l *FileLogger) Warn(ctx context.Context, msg string, fields Fields) {
	l.log(WarnLevel, msg, nil, fields)
}

// Error logs an error message
func (l *FileLogger) Error(ctx context.Context, msg string, err error, fields Fields) {
	l.log(ErrorLevel, msg, err, fields)
}

// WithFields returns a logger with additional fields
func (l *FileLogger) WithFields(fields Fields) Logger {
	return &FileLogger{
		format: l.format,
		level:  l.level,
		out:    l.out,
		fields: merge(l.fields, fields),
	}
}

// Close flushes and closes the logger
func (l *FileLogger) Close() error {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	if l.out.c != nil {
		err := l.out.c.Close()
		l.out.c = nil
		return err
	}
	return nil
}

func (l *FileLogger) log(level Level, msg string, err error, fields Fields) {
	if level < l.level {
		return
	}

	all := merge(l.fields, fields)
	var line []byte
	if l.format == FormatJSON {
		var jerr error
		line, jerr = formatJSON(level, msg, err, all)
		if jerr != nil {
			return
		}
	} else {
		line = formatText(level, msg, err, all)
	}

	l.out.mu.Lock()
	l.out.w.Write(line)
	l.out.mu.Unlock()
}

func merge(base, extra Fields) Fields {
	all := make(Fields, len(base)+len(extra))
	for k, v := range base {
		all[k] = v
	}
	for k, v := range extra {
		all[k] = v
	}
	return all
}

func formatJSON(level Level, msg string, err error, fields Fields) ([]byte, error) {
	entry := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"level":     level.String(),
		"message":   msg,
	}
	if err != nil {
		entry["error"] = err.Error()
	}
	for k, v := range fields {
		entry[k] = v
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func formatText(level Level, msg string, err error, fields Fields) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", time.Now().UTC().Format("2006-01-02T15:04:05.000Z"), level, msg)
	if err != nil {
		fmt.Fprintf(&b, " error=%q", err.Error())
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	b.WriteByte('\n')
	return []byte(b.String())
}
