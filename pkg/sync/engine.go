// Package sync replicates a source tree into a destination: it diffs the
// two snapshots, copies what is new or different and removes (or
// quarantines) what no longer exists in the source.
package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sdejongh/treewarden/pkg/archive"
	"github.com/sdejongh/treewarden/pkg/compare"
	"github.com/sdejongh/treewarden/pkg/logging"
	"github.com/sdejongh/treewarden/pkg/models"
	"github.com/sdejongh/treewarden/pkg/output"
	"github.com/sdejongh/treewarden/pkg/ratelimit"
	"github.com/sdejongh/treewarden/pkg/snapshot"
	"github.com/sdejongh/treewarden/pkg/storage"
)

// ErrPrepareFolder is returned when the destination or quarantine folder
// cannot be created
var ErrPrepareFolder = errors.New("cannot prepare folder")

// Engine orchestrates backup passes for one operation
type Engine struct {
	op        *models.BackupOperation
	formatter output.Formatter
	logger    logging.Logger
}

// NewEngine creates a new backup engine
func NewEngine(op *models.BackupOperation, logger logging.Logger, formatter output.Formatter) (*Engine, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Engine{op: op, formatter: formatter, logger: logger}, nil
}

// Run executes one backup pass. A returned error is fatal to the pass.
func (e *Engine) Run(ctx context.Context) (*models.BackupReport, error) {
	report := &models.BackupReport{
		PassID:         e.op.ID,
		SourcePath:     e.op.SourcePath,
		DestPath:       e.op.DestPath,
		QuarantinePath: e.op.QuarantinePath,
		StartTime:      time.Now(),
	}
	logger := e.logger.WithFields(logging.Fields{"pass_id": e.op.ID})
	logger.Info(ctx, "backup pass started", logging.Fields{
		"source":      e.op.SourcePath,
		"destination": e.op.DestPath,
		"quarantine":  e.op.QuarantinePath,
	})

	if err := e.run(ctx, report, logger); err != nil {
		report.Status = models.StatusFailed
		report.EndTime = time.Now()
		report.Duration = report.EndTime.Sub(report.StartTime)
		logger.Error(ctx, "backup pass failed", err, nil)
		if e.formatter != nil {
			e.formatter.Error(err)
		}
		return report, err
	}

	report.Finish()
	logger.Info(ctx, "backup pass finished", logging.Fields{
		"files_copied":    report.Stats.FilesCopied,
		"folders_copied":  report.Stats.FoldersCopied,
		"bytes_copied":    report.Stats.BytesCopied,
		"files_removed":   report.Stats.FilesRemoved,
		"folders_removed": report.Stats.FoldersRemoved,
		"bytes_removed":   report.Stats.BytesRemoved,
		"errors":          len(report.Errors),
		"duration":        report.Duration.String(),
	})
	if e.formatter != nil {
		e.formatter.CompleteBackup(report)
	}
	return report, nil
}

func (e *Engine) run(ctx context.Context, report *models.BackupReport, logger logging.Logger) error {
	source, err := storage.NewLocal(e.op.SourcePath)
	if err != nil {
		return fmt.Errorf("source %s: %w", e.op.SourcePath, err)
	}
	defer source.Close()
	for _, dir := range []string{e.op.DestPath, e.op.QuarantinePath} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrPrepareFolder, dir, err)
		}
	}
	dest, err := storage.NewLocal(e.op.DestPath)
	if err != nil {
		return fmt.Errorf("destination %s: %w", e.op.DestPath, err)
	}
	defer dest.Close()

	var quarantine storage.Backend
	if e.op.QuarantinePath != "" {
		q, err := storage.NewLocal(e.op.QuarantinePath)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrPrepareFolder, e.op.QuarantinePath, err)
		}
		defer q.Close()
		quarantine = q
	}

	src, err := snapshot.Build(ctx, source)
	if err != nil {
		return err
	}
	dst, err := snapshot.Build(ctx, dest)
	if err != nil {
		return err
	}
	report.Stats.SourceEntries = len(src)
	report.Stats.DestEntries = len(dst)

	limiter := ratelimit.NewLimiter(e.op.BandwidthLimit)
	comparator := compare.NewBinaryComparator(e.op.BufferSize)
	comparator.SetReaderWrapper(ratelimit.Wrapper(ctx, limiter))

	plan, err := Diff(ctx, src, dst, PlanOptions{
		ContentCheck: e.op.ContentCheck,
		Comparator:   comparator,
		Workers:      e.op.MaxWorkers,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	report.ToCopy = plan.ToCopy
	report.ToRemove = append(append([]models.Decision(nil), plan.FilesToRemove...), plan.FoldersToRemove...)
	report.Stats.ComparisonFailures = len(plan.Failures)
	report.Errors = append(report.Errors, plan.Failures...)

	copyFiles, copyFolders, copyBytes, removeFiles, removeFolders, _ := plan.Totals()
	if e.formatter != nil {
		e.formatter.Start("Backing up "+source.Root()+" to "+dest.Root(),
			copyFiles+copyFolders+removeFiles+removeFolders, copyBytes, e.op.MaxWorkers)
	}

	tracker := output.NewTracker(e.formatter)
	for _, d := range report.ToCopy {
		logger.Debug(ctx, "selected for copy", logging.Fields{"path": d.Entry.RelativePath, "reason": string(d.Reason)})
		tracker.Emit(output.ProgressUpdate{Type: output.EventDecision, Path: d.Entry.RelativePath, Reason: d.Reason, Bytes: d.Entry.Size})
	}
	for _, d := range report.ToRemove {
		logger.Debug(ctx, "selected for removal", logging.Fields{"path": d.Entry.RelativePath})
		tracker.Emit(output.ProgressUpdate{Type: output.EventDecision, Path: d.Entry.RelativePath, Reason: d.Reason, Bytes: d.Entry.Size})
	}

	executor := NewExecutor(source, dest, ExecutorConfig{
		Quarantine: quarantine,
		Limiter:    limiter,
		Workers:    e.op.MaxWorkers,
		Logger:     logger,
		Tracker:    tracker,
	})
	report.Errors = append(report.Errors, executor.Execute(ctx, plan, &report.Stats)...)
	tracker.Flush()

	if e.op.Archive {
		path, size, err := archive.CreateZip(ctx, source.Root(), archive.TargetDir(dest.Root()), time.Now())
		if err != nil {
			logger.Error(ctx, "archive failed", err, nil)
			report.Errors = append(report.Errors, models.NewPassError("", "archive", err))
		} else {
			report.ArchivePath = path
			logger.Info(ctx, "archive created", logging.Fields{"path": path, "bytes": size})
		}
	}
	return nil
}
