package output

import (
	"sync"
	"time"
)

const defaultRenderInterval = 100 * time.Millisecond

// Tracker owns the progress counters of a pass and forwards events to a
// Formatter. Workers call it concurrently; each call holds the lock only
// for its own update.
type Tracker struct {
	mu       sync.Mutex
	f        Formatter
	interval time.Duration
	last     time.Time

	doneItems  int
	totalItems int
	doneBytes  int64
	totalBytes int64
}

// NewTracker creates a tracker; f may be nil
func NewTracker(f Formatter) *Tracker {
	return &Tracker{f: f, interval: defaultRenderInterval}
}

// SetTotals sets the amount of work expected
func (t *Tracker) SetTotals(items int, bytes int64) {
	t.mu.Lock()
	t.totalItems, t.totalBytes = items, bytes
	t.mu.Unlock()
}

// Shrink removes work that will not be done, e.g. after a failure
func (t *Tracker) Shrink(items int, bytes int64) {
	t.mu.Lock()
	t.totalItems -= items
	t.totalBytes -= bytes
	t.mu.Unlock()
}

// Emit forwards an event stamped with the current counters
func (t *Tracker) Emit(u ProgressUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return
	}
	t.stamp(&u)
	t.f.Progress(u)
}

// Advance records finished work and renders the counters at most once
// per interval.
func (t *Tracker) Advance(items int, bytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.doneItems += items
	t.doneBytes += bytes
	if t.f == nil {
		return
	}
	now := time.Now()
	if now.Sub(t.last) < t.interval {
		return
	}
	t.last = now
	u := ProgressUpdate{Type: EventProgress}
	t.stamp(&u)
	t.f.Progress(u)
}

// Flush renders the final counters
func (t *Tracker) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return
	}
	u := ProgressUpdate{Type: EventProgress}
	t.stamp(&u)
	t.f.Progress(u)
}

// Done returns the finished items and bytes
func (t *Tracker) Done() (int, int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doneItems, t.doneBytes
}

func (t *Tracker) stamp(u *ProgressUpdate) {
	u.DoneItems, u.TotalItems = t.doneItems, t.totalItems
	u.DoneBytes, u.TotalBytes = t.doneBytes, t.totalBytes
}
