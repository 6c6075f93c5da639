package sync

import (
	"context"
	stdsync "sync"

	"github.com/sdejongh/treewarden/pkg/compare"
	"github.com/sdejongh/treewarden/pkg/logging"
	"github.com/sdejongh/treewarden/pkg/models"
	"github.com/sdejongh/treewarden/pkg/workerpool"
)

// PlanOptions configures the copy/remove diff
type PlanOptions struct {
	// ContentCheck selects the extensions compared byte-for-byte when
	// sizes match. An empty filter compares sizes only.
	ContentCheck models.ExtensionFilter
	Comparator   compare.Comparator
	Workers      int
	Logger       logging.Logger
}

// Plan is the result of the copy/remove diff
type Plan struct {
	// ToCopy is in source path order, so folders precede their contents
	ToCopy []models.Decision
	// FilesToRemove are destination files with no source counterpart
	FilesToRemove []models.Decision
	// FoldersToRemove are ordered deepest first
	FoldersToRemove []models.Decision
	// Compared counts byte-level comparisons that ran
	Compared int
	// Failures are comparisons that could not complete; those entries are
	// not copied
	Failures []models.PassError
}

// Diff decides which source entries must be copied and which destination
// entries must be removed. Neither snapshot is modified.
func Diff(ctx context.Context, src, dst models.Snapshot, opts PlanOptions) (*Plan, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	cmp := opts.Comparator
	if cmp == nil {
		cmp = compare.NewBinaryComparator(0)
	}

	paths := src.SortedPaths()
	reasons := make([]models.DiffReason, len(paths))
	remaining := dst.Clone()
	plan := &Plan{}

	var mu stdsync.Mutex
	pool := workerpool.New(opts.Workers)

	for i, rel := range paths {
		s := src[rel]
		d, ok := dst[rel]
		if !ok {
			reasons[i] = models.ReasonNotInDestination
			continue
		}
		if s.IsFolder != d.IsFolder || s.IsLink() != d.IsLink() {
			// kind changed: the destination entry goes, the source entry is new
			reasons[i] = models.ReasonNotInDestination
			continue
		}
		delete(remaining, rel)

		if s.IsFolder {
			continue
		}
		if s.IsLink() {
			if s.LinkTarget != d.LinkTarget {
				reasons[i] = models.ReasonLinkDiffers
			}
			continue
		}
		if s.Size != d.Size {
			reasons[i] = models.ReasonSizeDiffers
			continue
		}
		if !opts.ContentCheck.Matches(s.Extension) {
			continue
		}

		i, s, d := i, s, d
		plan.Compared++
		pool.Go(func() error {
			equal, err := cmp.Equal(ctx, s.AbsolutePath, d.AbsolutePath)
			if err != nil {
				logger.Error(ctx, "content comparison failed", err, logging.Fields{"path": s.RelativePath})
				mu.Lock()
				plan.Failures = append(plan.Failures, models.NewPassError(s.RelativePath, "compare", err))
				mu.Unlock()
				return nil
			}
			if !equal {
				// each worker owns its own slot
				reasons[i] = models.ReasonContentDiffers
			}
			return nil
		})
	}
	pool.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, rel := range paths {
		if reasons[i] != "" {
			plan.ToCopy = append(plan.ToCopy, models.Decision{Entry: src[rel], Reason: reasons[i]})
		}
	}

	leftover := remaining.SortedPaths()
	for _, rel := range leftover {
		if e := remaining[rel]; !e.IsFolder {
			plan.FilesToRemove = append(plan.FilesToRemove, models.Decision{Entry: e, Reason: models.ReasonToRemove})
		}
	}
	for i := len(leftover) - 1; i >= 0; i-- {
		if e := remaining[leftover[i]]; e.IsFolder {
			plan.FoldersToRemove = append(plan.FoldersToRemove, models.Decision{Entry: e, Reason: models.ReasonToRemove})
		}
	}

	models.SortPassErrors(plan.Failures)
	return plan, nil
}

// Totals returns counts and bytes of the planned work
func (p *Plan) Totals() (copyFiles, copyFolders int, copyBytes int64, removeFiles, removeFolders int, removeBytes int64) {
	for _, d := range p.ToCopy {
		if d.Entry.IsFolder {
			copyFolders++
			continue
		}
		copyFiles++
		copyBytes += d.Entry.Size
	}
	for _, d := range p.FilesToRemove {
		removeFiles++
		removeBytes += d.Entry.Size
	}
	removeFolders = len(p.FoldersToRemove)
	return
}
