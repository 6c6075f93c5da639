package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	stdsync "sync"

	"github.com/sdejongh/treewarden/pkg/logging"
	"github.com/sdejongh/treewarden/pkg/models"
	"github.com/sdejongh/treewarden/pkg/output"
	"github.com/sdejongh/treewarden/pkg/ratelimit"
	"github.com/sdejongh/treewarden/pkg/storage"
	"github.com/sdejongh/treewarden/pkg/workerpool"
)

// Executor applies a Plan to the destination
type Executor struct {
	source     storage.Backend
	dest       storage.Backend
	quarantine storage.Backend // nil means delete permanently
	limiter    *ratelimit.Limiter
	workers    int
	logger     logging.Logger
	tracker    *output.Tracker

	mu     stdsync.Mutex
	stats  *models.BackupStatistics
	errors []models.PassError
}

// ExecutorConfig holds the optional collaborators of an Executor
type ExecutorConfig struct {
	Quarantine storage.Backend
	Limiter    *ratelimit.Limiter
	Workers    int
	Logger     logging.Logger
	Tracker    *output.Tracker
}

// NewExecutor creates an executor copying from source into dest
func NewExecutor(source, dest storage.Backend, cfg ExecutorConfig) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = output.NewTracker(nil)
	}
	return &Executor{
		source:     source,
		dest:       dest,
		quarantine: cfg.Quarantine,
		limiter:    cfg.Limiter,
		workers:    cfg.Workers,
		logger:     logger,
		tracker:    tracker,
	}
}

// Execute copies then removes everything in plan. The "to copy" and "to
// remove" counters in stats start at the planned totals and are lowered
// for every entry that fails, so they always equal the completed work.
// Entry-local failures are returned; they never stop the pass.
func (x *Executor) Execute(ctx context.Context, plan *Plan, stats *models.BackupStatistics) []models.PassError {
	x.stats = stats
	x.errors = nil

	copyFiles, copyFolders, copyBytes, removeFiles, removeFolders, removeBytes := plan.Totals()
	stats.FilesToCopy, stats.FoldersToCopy, stats.BytesToCopy = copyFiles, copyFolders, copyBytes
	stats.FilesToRemove, stats.FoldersToRemove, stats.BytesToRemove = removeFiles, removeFolders, removeBytes
	x.tracker.SetTotals(copyFiles+copyFolders+removeFiles+removeFolders, copyBytes)

	// an entry whose kind changed must leave before its replacement arrives
	replaced := make(map[string]bool)
	for _, d := range plan.ToCopy {
		replaced[d.Entry.RelativePath] = true
	}
	var gone []string
	for _, d := range plan.FoldersToRemove {
		if replaced[d.Entry.RelativePath] && x.remove(ctx, d.Entry) {
			gone = append(gone, d.Entry.RelativePath+"/")
		}
	}
	for _, d := range plan.FilesToRemove {
		if replaced[d.Entry.RelativePath] {
			x.remove(ctx, d.Entry)
		}
	}

	// descendants of a replaced folder left together with it
	var files, folders []models.Decision
	for _, d := range plan.FilesToRemove {
		switch {
		case replaced[d.Entry.RelativePath]:
		case under(d.Entry.RelativePath, gone):
			x.removed(d.Entry)
		default:
			files = append(files, d)
		}
	}
	for _, d := range plan.FoldersToRemove {
		switch {
		case replaced[d.Entry.RelativePath]:
		case under(d.Entry.RelativePath, gone):
			x.removed(d.Entry)
		default:
			folders = append(folders, d)
		}
	}

	x.copyAll(ctx, plan.ToCopy)

	for _, d := range files {
		x.remove(ctx, d.Entry)
	}
	for _, d := range folders {
		x.remove(ctx, d.Entry)
	}

	models.SortPassErrors(x.errors)
	return x.errors
}

// copyAll creates folders in order, then copies files on the pool
func (x *Executor) copyAll(ctx context.Context, decisions []models.Decision) {
	pool := workerpool.New(x.workers)
	for _, d := range decisions {
		e := d.Entry
		if e.IsFolder {
			if err := x.dest.MkdirAll(ctx, e.RelativePath); err != nil {
				x.fail(ctx, e, "mkdir", err)
				continue
			}
			x.mu.Lock()
			x.stats.FoldersCopied++
			x.mu.Unlock()
			x.tracker.Advance(1, 0)
			continue
		}
		pool.Go(func() error {
			if err := x.copyFile(ctx, e); err != nil {
				x.fail(ctx, e, "copy", err)
				return nil
			}
			x.mu.Lock()
			x.stats.FilesCopied++
			x.stats.BytesCopied += e.Size
			x.mu.Unlock()
			x.tracker.Advance(1, e.Size)
			x.tracker.Emit(output.ProgressUpdate{Type: output.EventCopied, Path: e.RelativePath, Bytes: e.Size})
			return nil
		})
	}
	pool.Wait()
}

func (x *Executor) copyFile(ctx context.Context, e *models.Entry) error {
	if e.IsLink() {
		return x.dest.Symlink(ctx, e.RelativePath, e.LinkTarget)
	}

	reader, err := x.source.Read(ctx, e.RelativePath)
	if err != nil {
		return err
	}
	reader = ratelimit.NewReadCloser(ctx, reader, x.limiter)
	defer reader.Close()

	return x.dest.Write(ctx, e.RelativePath, reader, e.Size, &storage.FileInfo{
		ModTime:     e.ModTime,
		Permissions: e.Permissions,
	})
}

// remove quarantines or deletes one destination entry
func (x *Executor) remove(ctx context.Context, e *models.Entry) bool {
	var err error
	if x.quarantine == nil {
		err = x.dest.Delete(ctx, e.RelativePath)
	} else {
		err = x.moveToQuarantine(ctx, e)
	}
	if err != nil {
		x.fail(ctx, e, "remove", err)
		return false
	}
	x.removed(e)
	return true
}

func (x *Executor) removed(e *models.Entry) {
	x.mu.Lock()
	if e.IsFolder {
		x.stats.FoldersRemoved++
	} else {
		x.stats.FilesRemoved++
		x.stats.BytesRemoved += e.Size
	}
	x.mu.Unlock()
	x.tracker.Advance(1, 0)
	x.tracker.Emit(output.ProgressUpdate{Type: output.EventRemoved, Path: e.RelativePath, Bytes: e.Size})
}

func under(rel string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(rel, p) {
			return true
		}
	}
	return false
}

// moveToQuarantine moves e below the quarantine folder, keeping its
// relative path. A failed move is retried once after creating the parent
// folders.
func (x *Executor) moveToQuarantine(ctx context.Context, e *models.Entry) error {
	target := filepath.Join(x.quarantine.Root(), filepath.FromSlash(e.RelativePath))
	err := x.dest.Move(ctx, e.RelativePath, target)
	if err == nil {
		return nil
	}

	if mkErr := x.quarantine.MkdirAll(ctx, e.Dir()); mkErr != nil {
		return fmt.Errorf("%w (creating quarantine parent: %v)", err, mkErr)
	}
	err = x.dest.Move(ctx, e.RelativePath, target)
	if err == nil || !e.IsFolder {
		return err
	}

	// the quarantine already holds this folder because its files were
	// moved one by one; only the now empty original is left
	if info, serr := x.quarantine.Stat(ctx, e.RelativePath); serr == nil && info.IsDir {
		if rerr := os.Remove(filepath.Join(x.dest.Root(), filepath.FromSlash(e.RelativePath))); rerr == nil {
			return nil
		}
	}
	return err
}

func (x *Executor) fail(ctx context.Context, e *models.Entry, operation string, err error) {
	x.logger.Error(ctx, operation+" failed", err, logging.Fields{"path": e.RelativePath})

	x.mu.Lock()
	switch {
	case operation == "remove" && e.IsFolder:
		x.stats.FoldersToRemove--
	case operation == "remove":
		x.stats.FilesToRemove--
		x.stats.BytesToRemove -= e.Size
	case e.IsFolder:
		x.stats.FoldersToCopy--
	default:
		x.stats.FilesToCopy--
		x.stats.BytesToCopy -= e.Size
	}
	x.errors = append(x.errors, models.NewPassError(e.RelativePath, operation, err))
	x.mu.Unlock()

	if operation == "remove" {
		x.tracker.Shrink(1, 0)
	} else {
		x.tracker.Shrink(1, e.Size)
	}
	x.tracker.Emit(output.ProgressUpdate{Type: output.EventError, Path: e.RelativePath, Error: err})
}
