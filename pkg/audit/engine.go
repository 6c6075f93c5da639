// Package audit maintains a hierarchical digest index of a tree and reports
// new, changed and deleted entries against it or against a second tree.
package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sdejongh/treewarden/pkg/digest"
	"github.com/sdejongh/treewarden/pkg/index"
	"github.com/sdejongh/treewarden/pkg/logging"
	"github.com/sdejongh/treewarden/pkg/models"
	"github.com/sdejongh/treewarden/pkg/output"
	"github.com/sdejongh/treewarden/pkg/storage"
)

// Engine runs integrity passes for one operation. It holds no state
// between passes; Run may be called repeatedly.
type Engine struct {
	op        *models.AuditOperation
	store     *index.Store
	logger    logging.Logger
	formatter output.Formatter
	hashers   sync.Pool

	// open reads file content for hashing
	open func(path string) (io.ReadCloser, error)
	// shuffle, when set, permutes the dispatch order of a pass
	shuffle func(n int, swap func(i, j int))
}

// NewEngine validates op and prepares the index store
func NewEngine(op *models.AuditOperation, logger logging.Logger, formatter output.Formatter) (*Engine, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	if _, err := digest.New(op.Algorithm); err != nil {
		return nil, err
	}
	store, err := index.NewStore(op.Algorithm, index.Options{Legacy: op.LegacyIndex, Logger: logger})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		op:        op,
		store:     store,
		logger:    logger,
		formatter: formatter,
		open: func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
	e.hashers.New = func() interface{} {
		c, _ := digest.New(op.Algorithm)
		return c
	}
	return e, nil
}

// pass holds the state of one Run
type pass struct {
	report  *models.AuditReport
	tracker *output.Tracker

	mu      sync.Mutex
	changes []models.ChangeLogEntry
	errors  []models.PassError
	hashed  int
	bytes   int64
	failed  int
	missing int
}

func (p *pass) change(t models.ChangeType, rel string) {
	p.mu.Lock()
	p.changes = append(p.changes, models.ChangeLogEntry{Type: t, Path: rel})
	p.mu.Unlock()
	p.tracker.Emit(output.ProgressUpdate{Type: output.EventChange, Change: t, Path: rel})
}

func (p *pass) fail(rel, operation string, err error) {
	p.mu.Lock()
	p.errors = append(p.errors, models.NewPassError(rel, operation, err))
	p.mu.Unlock()
	p.tracker.Emit(output.ProgressUpdate{Type: output.EventError, Path: rel, Error: err})
}

func (p *pass) notFound(string) {
	p.mu.Lock()
	p.missing++
	p.mu.Unlock()
}

// Run executes one pass. A returned error is fatal to the pass; entry-local
// failures are recorded in the report instead.
func (e *Engine) Run(ctx context.Context) (*models.AuditReport, error) {
	algorithm, _ := digest.Canonical(e.op.Algorithm)
	report := &models.AuditReport{
		PassID:      e.op.ID,
		RootPath:    e.op.RootPath,
		ComparePath: e.op.ComparePath,
		Mode:        e.op.Mode,
		Algorithm:   algorithm,
		StartTime:   time.Now(),
	}
	p := &pass{report: report, tracker: output.NewTracker(e.formatter)}
	logger := e.logger.WithFields(logging.Fields{"pass_id": e.op.ID, "mode": string(e.op.Mode)})

	logger.Info(ctx, "integrity pass started", logging.Fields{
		"root":      e.op.RootPath,
		"algorithm": algorithm,
		"update":    e.op.Update,
	})

	var err error
	if e.op.Mode == models.AuditCompare {
		err = e.compare(ctx, p, logger)
	} else {
		err = e.build(ctx, p, logger)
	}
	if err != nil {
		report.Status = models.StatusFailed
		report.EndTime = time.Now()
		report.Duration = report.EndTime.Sub(report.StartTime)
		logger.Error(ctx, "integrity pass failed", err, nil)
		if e.formatter != nil {
			e.formatter.Error(err)
		}
		return report, err
	}

	p.tracker.Flush()
	report.Changes = p.changes
	report.Errors = p.errors
	report.Stats.FilesHashed = p.hashed
	report.Stats.BytesHashed = p.bytes
	report.Stats.HashFailures = p.failed
	report.Stats.IndexesMissing = p.missing
	report.Finish()

	logger.Info(ctx, "integrity pass finished", logging.Fields{
		"new_files":       report.Count(models.ChangeNewFile),
		"new_folders":     report.Count(models.ChangeNewFolder),
		"different_hash":  report.Count(models.ChangeDifferentHash),
		"deleted_files":   report.Count(models.ChangeDeletedFile),
		"deleted_folders": report.Count(models.ChangeDeletedFolder),
		"bytes_hashed":    report.Stats.BytesHashed,
		"errors":          len(report.Errors),
		"duration":        report.Duration.String(),
	})
	if e.formatter != nil {
		e.formatter.CompleteAudit(report)
	}
	return report, nil
}

func openRoot(path string) (*storage.Local, error) {
	backend, err := storage.NewLocal(path)
	if err != nil {
		return nil, fmt.Errorf("root %s: %w", path, err)
	}
	return backend, nil
}
