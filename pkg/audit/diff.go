package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/sdejongh/treewarden/pkg/digest"
	"github.com/sdejongh/treewarden/pkg/index"
	"github.com/sdejongh/treewarden/pkg/logging"
	"github.com/sdejongh/treewarden/pkg/models"
	"github.com/sdejongh/treewarden/pkg/snapshot"
	"github.com/sdejongh/treewarden/pkg/workerpool"
)

// build runs the build/update and skip modes: hash the live tree, diff it
// against the loaded index and optionally persist the result.
//
// Two views of the loaded index are kept. current receives new digests;
// remaining is depleted as live entries are matched, so whatever is left
// afterwards has been deleted from the tree.
func (e *Engine) build(ctx context.Context, p *pass, logger logging.Logger) error {
	backend, err := openRoot(e.op.RootPath)
	if err != nil {
		return err
	}
	defer backend.Close()
	snap, err := snapshot.Build(ctx, backend)
	if err != nil {
		return err
	}
	root := backend.Root()

	loaded, err := e.store.LoadTree(ctx, root, snap.Folders(), e.op.MaxWorkers, p.notFound)
	if err != nil {
		return err
	}
	current := index.NewShared(loaded)
	remaining := index.NewShared(loaded.Clone())

	paths := snap.SortedPaths()
	p.report.Stats.EntriesScanned = len(paths)

	type job struct {
		entry     *models.Entry
		dir, name string
	}
	var folders, jobs []job
	var totalBytes int64

	for _, rel := range paths {
		entry := snap[rel]
		dir, name := models.SplitRelative(rel)
		if !entry.IsFolder && index.IsSidecar(name) {
			continue
		}
		if !entry.IsFolder && !e.op.Extensions.Matches(entry.Extension) {
			remaining.Remove(dir, name)
			p.report.Stats.Skipped++
			continue
		}
		if e.op.Mode == models.AuditSkip {
			if _, ok := current.Get(dir, name); ok {
				remaining.Remove(dir, name)
				p.report.Stats.Skipped++
				continue
			}
		}
		if entry.IsFolder {
			folders = append(folders, job{entry: entry, dir: dir, name: name})
			continue
		}
		jobs = append(jobs, job{entry: entry, dir: dir, name: name})
		totalBytes += entry.Size
	}

	if e.shuffle != nil {
		e.shuffle(len(folders), func(i, j int) { folders[i], folders[j] = folders[j], folders[i] })
		e.shuffle(len(jobs), func(i, j int) { jobs[i], jobs[j] = jobs[j], jobs[i] })
	}

	p.report.Stats.FilesToHash = len(jobs)
	p.report.Stats.BytesToHash = totalBytes
	p.tracker.SetTotals(len(jobs), totalBytes)
	if e.formatter != nil {
		e.formatter.Start("Hashing "+root, len(jobs), totalBytes, workerpool.ClampWorkers(e.op.MaxWorkers))
	}

	// folders carry the empty marker and need no hashing
	for _, f := range folders {
		remaining.Remove(f.dir, f.name)
		e.apply(p, current, f.dir, f.name, "", true)
	}

	pool := workerpool.New(e.op.MaxWorkers)
	for _, j := range jobs {
		j := j
		pool.Go(func() error {
			e.hashOne(ctx, p, current, remaining, logger, j.entry, j.dir, j.name)
			return nil
		})
	}
	pool.Wait()

	for dir, m := range remaining.Snapshot() {
		for name, stored := range m {
			p.change(models.DeletedChange(stored), models.JoinRelative(dir, name))
			current.Remove(dir, name)
		}
	}

	if !e.op.Update {
		return nil
	}
	saved, err := e.store.SaveTree(ctx, root, current.Snapshot())
	p.report.Stats.IndexesSaved = saved
	p.report.Updated = err == nil
	if err != nil {
		p.fail("", "save_index", err)
	}
	return nil
}

// hashOne runs on a pool worker. No lock is held while the file is read.
func (e *Engine) hashOne(ctx context.Context, p *pass, current, remaining *index.Shared, logger logging.Logger, entry *models.Entry, dir, name string) {
	c := e.hashers.Get().(*digest.Computer)
	sum, err := e.digestOf(c, entry)
	e.hashers.Put(c)

	// matched either way: a file that exists is never reported deleted
	remaining.Remove(dir, name)

	if err != nil {
		logger.Error(ctx, "hash failed", err, logging.Fields{"path": entry.RelativePath})
		p.mu.Lock()
		p.failed++
		p.mu.Unlock()
		p.fail(entry.RelativePath, "hash", err)
		p.tracker.Shrink(1, entry.Size)
		return
	}

	p.mu.Lock()
	p.hashed++
	p.bytes += entry.Size
	p.mu.Unlock()
	p.tracker.Advance(1, entry.Size)

	e.apply(p, current, dir, name, sum, false)
}

// digestOf hashes the content of a file, or the target text of a link.
// Links are never followed.
func (e *Engine) digestOf(c *digest.Computer, entry *models.Entry) (string, error) {
	if entry.IsLink() {
		return c.HashReader(strings.NewReader(entry.LinkTarget))
	}
	f, err := e.open(entry.AbsolutePath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", digest.ErrHashFailure, err)
	}
	defer f.Close()
	return c.HashReader(f)
}

// apply stores a digest and records the resulting change, if any
func (e *Engine) apply(p *pass, current *index.Shared, dir, name, sum string, isFolder bool) {
	switch current.CompareAndUpdate(dir, name, sum) {
	case index.Added:
		p.change(models.NewChange(isFolder), models.JoinRelative(dir, name))
	case index.Replaced:
		p.change(models.ChangeDifferentHash, models.JoinRelative(dir, name))
	}
}
