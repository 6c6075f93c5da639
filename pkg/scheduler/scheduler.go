// Package scheduler repeats a pass at a fixed interval measured from the
// start of each pass.
package scheduler

import (
	"context"
	"time"

	"github.com/sdejongh/treewarden/pkg/logging"
)

// Pass is one run of an engine
type Pass func(ctx context.Context) error

// Scheduler runs a pass once or repeatedly
type Scheduler struct {
	delay  time.Duration
	logger logging.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// New creates a scheduler. A delay of zero or less runs a single pass.
func New(delay time.Duration, logger logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Scheduler{
		delay:  delay,
		logger: logger,
		now:    time.Now,
		after:  time.After,
	}
}

// Run executes pass once, or until ctx is cancelled when a delay is set.
// A pass is never interrupted: it receives a context that is not
// cancelled with ctx.
//
// Each wake time is computed when a pass starts, so a pass that takes
// longer than the delay is followed immediately by the next one and pass
// duration never accumulates as drift. While repeating, a failed pass is
// logged and the next one still runs; cancellation is the only way out
// and returns nil. A single pass returns its own error.
func (s *Scheduler) Run(ctx context.Context, pass Pass) error {
	passCtx := context.WithoutCancel(ctx)
	if s.delay <= 0 {
		return pass(passCtx)
	}

	for n := 1; ; n++ {
		start := s.now()
		wake := start.Add(s.delay)

		if err := pass(passCtx); err != nil {
			s.logger.Error(ctx, "pass failed, retrying at next wake time", err, logging.Fields{
				"pass": n,
				"wake": wake.Format(time.RFC3339),
			})
		}

		remaining := wake.Sub(s.now())
		if remaining < 0 {
			remaining = 0
		}
		s.logger.Debug(ctx, "sleeping until next pass", logging.Fields{
			"pass":  n,
			"sleep": remaining.String(),
		})

		if ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-s.after(remaining):
		}
	}
}

// Run is a shorthand for New(delay, logger).Run(ctx, pass)
func Run(ctx context.Context, delay time.Duration, pass Pass, logger logging.Logger) error {
	return New(delay, logger).Run(ctx, pass)
}
