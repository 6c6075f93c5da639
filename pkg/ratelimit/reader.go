// Package ratelimit shares one bandwidth budget between every reader of a
// backup pass.
package ratelimit

import (
	"context"
	"io"
	"sync"
	"time"
)

const minBucket = 64 * 1024

// Limiter is a token bucket measured in bytes
type Limiter struct {
	bytesPerSecond int64
	bucketSize     int64

	mu         sync.Mutex
	tokens     int64
	lastUpdate time.Time
}

// NewLimiter returns nil (no limiting) for a non-positive rate
func NewLimiter(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}

	// one second of data, never below 64KB
	bucketSize := bytesPerSecond
	if bucketSize < minBucket {
		bucketSize = minBucket
	}

	return &Limiter{
		bytesPerSecond: bytesPerSecond,
		bucketSize:     bucketSize,
		tokens:         bucketSize,
		lastUpdate:     time.Now(),
	}
}

// Rate returns the configured bytes per second
func (l *Limiter) Rate() int64 {
	if l == nil {
		return 0
	}
	return l.bytesPerSecond
}

// wait blocks until n tokens are available or ctx is done
func (l *Limiter) wait(ctx context.Context, n int64) error {
	for {
		l.mu.Lock()
		l.refill()
		if l.tokens >= n {
			l.tokens -= n
			l.mu.Unlock()
			return nil
		}
		deficit := n - l.tokens
		l.mu.Unlock()

		delay := time.Duration(float64(deficit) / float64(l.bytesPerSecond) * float64(time.Second))
		if delay < time.Millisecond {
			delay = time.Millisecond
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// giveBack returns tokens reserved for bytes that were not read.
func (l *Limiter) giveBack(n int64) {
	if n <= 0 {
		return
	}
	l.mu.Lock()
	l.tokens += n
	if l.tokens > l.bucketSize {
		l.tokens = l.bucketSize
	}
	l.mu.Unlock()
}

// refill must be called with mu held
func (l *Limiter) refill() {
	now := time.Now()
	add := int64(float64(now.Sub(l.lastUpdate)) / float64(time.Second) * float64(l.bytesPerSecond))
	if add > 0 {
		l.tokens += add
		if l.tokens > l.bucketSize {
			l.tokens = l.bucketSize
		}
		l.lastUpdate = now
	}
}

// Reader wraps an io.Reader with bandwidth limiting
type Reader struct {
	ctx     context.Context
	reader  io.Reader
	limiter *Limiter
}

// NewReader returns reader unchanged when limiter is nil
func NewReader(ctx context.Context, reader io.Reader, limiter *Limiter) io.Reader {
	if limiter == nil {
		return reader
	}
	return &Reader{ctx: ctx, reader: reader, limiter: limiter}
}

// Read reserves tokens for at most one bucket, then reads
func (r *Reader) Read(p []byte) (int, error) {
	want := int64(len(p))
	if want > r.limiter.bucketSize {
		want = r.limiter.bucketSize
	}
	if err := r.limiter.wait(r.ctx, want); err != nil {
		return 0, err
	}

	n, err := r.reader.Read(p[:want])
	r.limiter.giveBack(want - int64(n))
	return n, err
}

// ReadCloser wraps an io.ReadCloser with rate limiting
type ReadCloser struct {
	Reader
	closer io.Closer
}

// NewReadCloser returns rc unchanged when limiter is nil
func NewReadCloser(ctx context.Context, rc io.ReadCloser, limiter *Limiter) io.ReadCloser {
	if limiter == nil {
		return rc
	}
	return &ReadCloser{
		Reader: Reader{ctx: ctx, reader: rc, limiter: limiter},
		closer: rc,
	}
}

// Close implements io.Closer
func (rc *ReadCloser) Close() error {
	return rc.closer.Close()
}

// Wrapper returns a function that limits every reader it wraps with the
// same shared budget. It returns nil when limiter is nil.
func Wrapper(ctx context.Context, limiter *Limiter) func(io.ReadCloser) io.ReadCloser {
	if limiter == nil {
		return nil
	}
	return func(rc io.ReadCloser) io.ReadCloser {
		return NewReadCloser(ctx, rc, limiter)
	}
}
