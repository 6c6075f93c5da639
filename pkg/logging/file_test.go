package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestNewFileLogger(t *testing.T) {
	t.Run("CreatesDirectoryAndFile", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "nested", "dir", "test.log")
		logger, err := NewFileLogger(FileLoggerConfig{
			Path:       logPath,
			Format:     FormatText,
			Level:      InfoLevel,
			MaxSizeMB:  1,
			MaxBackups: 3,
			Compress:   true,
		})
		if err != nil {
			t.Fatalf("NewFileLogger() error = %v", err)
		}

		logger.Info(context.Background(), "hello", nil)
		if err := logger.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}

		content, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("log file not written: %v", err)
		}
		if !strings.Contains(string(content), "[INFO] hello") {
			t.Errorf("log content = %q", content)
		}
	})

	t.Run("EmptyPath", func(t *testing.T) {
		if _, err := NewFileLogger(FileLoggerConfig{}); err == nil {
			t.Error("NewFileLogger() should fail with an empty path")
		}
	})
}

func TestFileLogger_LogLevels(t *testing.T) {
	tests := []struct {
		level   Level
		present []string
		absent  []string
	}{
		{InfoLevel, []string{"info message", "warn message", "error message"}, []string{"debug message"}},
		{DebugLevel, []string{"debug message", "info message"}, nil},
		{ErrorLevel, []string{"error message"}, []string{"info message", "warn message"}},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWriterLogger(&buf, FormatText, tt.level)
			ctx := context.Background()

			logger.Debug(ctx, "debug message", nil)
			logger.Info(ctx, "info message", nil)
			logger.Warn(ctx, "warn message", nil)
			logger.Error(ctx, "error message", nil, nil)

			out := buf.String()
			for _, s := range tt.present {
				if !strings.Contains(out, s) {
					t.Errorf("%q should be logged", s)
				}
			}
			for _, s := range tt.absent {
				if strings.Contains(out, s) {
					t.Errorf("%q should be filtered", s)
				}
			}
		})
	}
}

func TestFileLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, FormatText, DebugLevel)

	logger.Error(context.Background(), "copy failed", errors.New("disk full"), Fields{"path": "a/b.txt", "bytes": 12})

	out := buf.String()
	for _, want := range []string{"[ERROR] copy failed", `error="disk full"`, "bytes=12 path=a/b.txt"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestFileLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, FormatJSON, DebugLevel)

	logger.Warn(context.Background(), "index malformed", Fields{"dir": "sub"})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["level"] != "WARN" || entry["message"] != "index malformed" || entry["dir"] != "sub" {
		t.Errorf("entry = %v", entry)
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("timestamp missing")
	}
}

func TestFileLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewWriterLogger(&buf, FormatText, InfoLevel)
	child := base.WithFields(Fields{"pass": "p1"})

	child.Info(context.Background(), "from child", Fields{"n": 1})
	base.Info(context.Background(), "from base", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "n=1 pass=p1") {
		t.Errorf("child line = %q", lines[0])
	}
	if strings.Contains(lines[1], "pass=") {
		t.Errorf("base logger should not inherit child fields: %q", lines[1])
	}
}

func TestFileLogger_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, FormatJSON, InfoLevel)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			l := logger.WithFields(Fields{"worker": id})
			for j := 0; j < 100; j++ {
				l.Info(context.Background(), "tick", nil)
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1000 {
		t.Errorf("got %d lines, want 1000", len(lines))
	}
	for _, line := range lines {
		if !json.Valid([]byte(line)) {
			t.Fatalf("interleaved line: %q", line)
		}
	}
}

func TestNullLogger(t *testing.T) {
	var logger Logger = NewNullLogger()
	ctx := context.Background()
	logger.Debug(ctx, "x", nil)
	logger.Error(ctx, "x", errors.New("e"), nil)
	if logger.WithFields(Fields{"a": 1}) != logger {
		t.Error("WithFields() should return the same null logger")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{"info", InfoLevel},
		{"Warning", WarnLevel},
		{"error", ErrorLevel},
		{"bogus", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
