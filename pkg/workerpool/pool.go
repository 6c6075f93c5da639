// Package workerpool runs one unit of work per entry on a bounded number of
// goroutines and provides the single join point of a pass.
package workerpool

import (
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/sdejongh/treewarden/pkg/models"
)

// ClampWorkers bounds a configured worker count to 1..16
func ClampWorkers(n int) int {
	if n < models.MinWorkers {
		return models.MinWorkers
	}
	if n > models.MaxWorkers {
		return models.MaxWorkers
	}
	return n
}

// Pool is a bounded worker pool. Go blocks while every slot is busy, so
// the dispatcher never runs ahead of the workers.
type Pool struct {
	g         errgroup.Group
	workers   int
	submitted atomic.Int64
	completed atomic.Int64
}

// New creates a pool with the clamped worker count
func New(workers int) *Pool {
	p := &Pool{workers: ClampWorkers(workers)}
	p.g.SetLimit(p.workers)
	return p
}

// Workers returns the effective pool size
func (p *Pool) Workers() int {
	return p.workers
}

// Go schedules fn, waiting for a free slot. A non-nil error does not stop
// other work; the first one is returned by Wait.
func (p *Pool) Go(fn func() error) {
	p.submitted.Add(1)
	p.g.Go(func() error {
		defer p.completed.Add(1)
		return fn()
	})
}

// Wait blocks until every scheduled unit has finished
func (p *Pool) Wait() error {
	return p.g.Wait()
}

// Pending returns the number of scheduled units not yet finished
func (p *Pool) Pending() int64 {
	return p.submitted.Load() - p.completed.Load()
}
