// Package snapshot builds the in-memory view of one tree for one pass.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/sdejongh/treewarden/pkg/models"
	"github.com/sdejongh/treewarden/pkg/storage"
)

// ErrScanFailure is returned when the root cannot be enumerated
var ErrScanFailure = errors.New("scan failure")

// Build recursively lists every entry under the backend root, hidden
// entries included. Any enumeration error is fatal to the pass.
func Build(ctx context.Context, backend storage.Backend) (models.Snapshot, error) {
	files, err := backend.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrScanFailure, backend.Root(), err)
	}

	snap := make(models.Snapshot, len(files))
	for _, f := range files {
		e := &models.Entry{
			RelativePath: f.RelativePath,
			AbsolutePath: f.Path,
			IsFolder:     f.IsDir,
			Size:         f.Size,
			ModTime:      f.ModTime,
			Permissions:  f.Permissions,
			LinkTarget:   f.LinkTarget,
		}
		if !f.IsDir {
			e.Extension = path.Ext(f.RelativePath)
		}
		snap[f.RelativePath] = e
	}
	return snap, nil
}
