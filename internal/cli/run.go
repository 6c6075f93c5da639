package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sdejongh/treewarden/internal/platform"
	"github.com/sdejongh/treewarden/pkg/config"
	"github.com/sdejongh/treewarden/pkg/history"
	"github.com/sdejongh/treewarden/pkg/logging"
	"github.com/sdejongh/treewarden/pkg/models"
	"github.com/sdejongh/treewarden/pkg/output"
	"github.com/sdejongh/treewarden/pkg/scheduler"
)

// ExitError carries the process exit code of a failed command
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code for err: 0 for nil, the code of an
// ExitError, 1 otherwise
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// session holds what outlives a single pass
type session struct {
	cfg          *config.Config
	stdout       io.Writer
	logger       logging.Logger
	recorder     *history.Recorder
	reportFormat string
}

func newSession(cfg *config.Config, stdout io.Writer) (*session, error) {
	logger, err := createLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	s := &session{cfg: cfg, stdout: stdout, logger: logger}
	if cfg.History.Enabled {
		path := cfg.History.Path
		if path == "" {
			if path, err = platform.DefaultHistoryPath(); err != nil {
				logger.Close()
				return nil, err
			}
		}
		if s.recorder, err = history.Open(path); err != nil {
			logger.Close()
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
	}
	return s, nil
}

func (s *session) Close() error {
	var errs []error
	if s.recorder != nil {
		errs = append(errs, s.recorder.Close())
	}
	errs = append(errs, s.logger.Close())
	return errors.Join(errs...)
}

// repeat runs pass once, or on the configured schedule until ctx ends.
// A fatal error of a single pass becomes an ExitError.
func (s *session) repeat(ctx context.Context, pass scheduler.Pass) error {
	delay, err := config.ParseDelay(s.cfg.Schedule.Delay)
	if err != nil {
		return err
	}
	if err := scheduler.Run(ctx, delay, pass, s.logger); err != nil {
		return &ExitError{Code: models.StatusFailed.ExitCode(), Err: err}
	}
	return nil
}

// record appends a finished pass to the history database. Failures are
// logged only.
func (s *session) record(ctx context.Context, rec history.PassRecord) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, rec); err != nil {
		s.logger.Error(ctx, "failed to record pass history", err, logging.Fields{"pass_id": rec.PassID})
	}
}

// createLogger creates a logger based on configuration
func createLogger(cfg config.LoggingConfig) (logging.Logger, error) {
	if !cfg.Enabled {
		return logging.NewNullLogger(), nil
	}

	path := cfg.File
	if path == "" {
		var err error
		if path, err = platform.DefaultLogPath(); err != nil {
			return nil, err
		}
	}

	var format logging.Format
	switch cfg.Format {
	case "text":
		format = logging.FormatText
	default:
		format = logging.FormatJSON
	}

	return logging.NewFileLogger(logging.FileLoggerConfig{
		Path:       path,
		Format:     format,
		Level:      logging.ParseLevel(cfg.Level),
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
}

// createFormatter creates the console formatter for one pass
func createFormatter(cfg config.OutputConfig, w io.Writer) output.Formatter {
	terminal := output.IsTerminal(w)
	useColor := cfg.Color && terminal

	switch {
	case cfg.Format == "json":
		return output.NewJSONFormatter(w)
	case cfg.Quiet:
		return output.NewHumanFormatter(io.Discard, false, false)
	case cfg.Progress && terminal:
		return output.NewProgressFormatter(w, useColor)
	default:
		return output.NewHumanFormatter(w, useColor, globalFlags.Verbose)
	}
}

// stdout is replaced in tests
var stdout io.Writer = os.Stdout
