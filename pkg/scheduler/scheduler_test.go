package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeClock advances only when a pass runs or the scheduler sleeps
type fakeClock struct {
	t      time.Time
	sleeps []time.Duration
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) after(d time.Duration) <-chan time.Time {
	c.sleeps = append(c.sleeps, d)
	c.t = c.t.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.t
	return ch
}

func newFake(delay time.Duration) (*Scheduler, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := New(delay, nil)
	s.now = clock.now
	s.after = clock.after
	return s, clock
}

func TestRunOnce(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := Run(context.Background(), 0, func(ctx context.Context) error {
		calls++
		return boom
	}, nil)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRunSleepsOnlyRemainder(t *testing.T) {
	s, clock := newFake(10 * time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	durations := []time.Duration{3 * time.Minute, 12 * time.Minute, 0}
	calls := 0
	err := s.Run(ctx, func(ctx context.Context) error {
		clock.t = clock.t.Add(durations[calls])
		calls++
		if calls == len(durations) {
			cancel()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// 10m-3m, then an overrun pass starts the next one immediately
	want := []time.Duration{7 * time.Minute, 0}
	if len(clock.sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", clock.sleeps, want)
	}
	for i := range want {
		if clock.sleeps[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, clock.sleeps[i], want[i])
		}
	}
}

func TestRunContinuesAfterFailure(t *testing.T) {
	s, _ := newFake(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	err := s.Run(ctx, func(ctx context.Context) error {
		calls++
		if calls == 3 {
			cancel()
			return nil
		}
		return errors.New("scan failed")
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRunInterruptedWhileSleeping(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	started := make(chan struct{}, 1)

	go func() {
		done <- Run(ctx, time.Hour, func(ctx context.Context) error {
			started <- struct{}{}
			return nil
		}, nil)
	}()

	<-started
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestPassNotCancelled(t *testing.T) {
	s, _ := newFake(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	var passErr error
	s.Run(ctx, func(pctx context.Context) error {
		cancel()
		passErr = pctx.Err()
		return nil
	})
	if passErr != nil {
		t.Errorf("pass context cancelled with the run: %v", passErr)
	}
}
