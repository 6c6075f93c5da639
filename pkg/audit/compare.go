package audit

import (
	"context"
	"sort"

	"github.com/sdejongh/treewarden/pkg/index"
	"github.com/sdejongh/treewarden/pkg/logging"
	"github.com/sdejongh/treewarden/pkg/models"
	"github.com/sdejongh/treewarden/pkg/snapshot"
)

// compare diffs the recorded indexes of two roots. Neither tree is hashed
// and no index is written.
func (e *Engine) compare(ctx context.Context, p *pass, logger logging.Logger) error {
	left, err := e.loadFlat(ctx, p, e.op.RootPath)
	if err != nil {
		return err
	}
	right, err := e.loadFlat(ctx, p, e.op.ComparePath)
	if err != nil {
		return err
	}

	if e.formatter != nil {
		e.formatter.Start("Comparing "+e.op.RootPath+" with "+e.op.ComparePath, 0, 0, 1)
	}

	for _, rel := range sortedKeys(left) {
		theirs, ok := right[rel]
		switch {
		case !ok:
			p.change(models.NewChange(left[rel] == ""), rel)
		case theirs != left[rel]:
			p.change(models.ChangeDifferentHash, rel)
		}
	}
	for _, rel := range sortedKeys(right) {
		if _, ok := left[rel]; !ok {
			p.change(models.DeletedChange(right[rel]), rel)
		}
	}

	logger.Debug(ctx, "indexes compared", logging.Fields{
		"left_entries":  len(left),
		"right_entries": len(right),
	})
	return nil
}

// loadFlat lists the folders of root and flattens their indexes into a
// root-relative path to digest map.
func (e *Engine) loadFlat(ctx context.Context, p *pass, root string) (map[string]string, error) {
	backend, err := openRoot(root)
	if err != nil {
		return nil, err
	}
	defer backend.Close()
	snap, err := snapshot.Build(ctx, backend)
	if err != nil {
		return nil, err
	}
	p.report.Stats.EntriesScanned += len(snap)

	tree, err := e.store.LoadTree(ctx, backend.Root(), snap.Folders(), e.op.MaxWorkers, p.notFound)
	if err != nil {
		return nil, err
	}
	return flatten(tree), nil
}

func flatten(tree index.Tree) map[string]string {
	flat := make(map[string]string, tree.Len())
	for dir, m := range tree {
		for name, sum := range m {
			flat[models.JoinRelative(dir, name)] = sum
		}
	}
	return flat
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
