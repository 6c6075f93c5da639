package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sdejongh/treewarden/pkg/models"
	"github.com/sdejongh/treewarden/pkg/snapshot"
	"github.com/sdejongh/treewarden/pkg/storage"
)

// testTree is a temporary directory used as a source, destination or
// quarantine root
type testTree struct {
	t    *testing.T
	root string
}

func newTestTree(t *testing.T) *testTree {
	t.Helper()
	return &testTree{t: t, root: t.TempDir()}
}

func (tt *testTree) path(rel string) string {
	return filepath.Join(tt.root, filepath.FromSlash(rel))
}

func (tt *testTree) write(rel, content string) {
	tt.t.Helper()
	p := tt.path(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		tt.t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		tt.t.Fatal(err)
	}
}

func (tt *testTree) mkdir(rel string) {
	tt.t.Helper()
	if err := os.MkdirAll(tt.path(rel), 0755); err != nil {
		tt.t.Fatal(err)
	}
}

// symlink creates a link at rel, skipping the test where links are unavailable
func (tt *testTree) symlink(rel, target string) {
	tt.t.Helper()
	p := tt.path(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		tt.t.Fatal(err)
	}
	if err := os.Symlink(target, p); err != nil {
		tt.t.Skipf("symlinks unsupported: %v", err)
	}
}

func (tt *testTree) readlink(rel string) string {
	tt.t.Helper()
	target, err := os.Readlink(tt.path(rel))
	if err != nil {
		tt.t.Fatalf("readlink %s: %v", rel, err)
	}
	return target
}

func (tt *testTree) read(rel string) string {
	tt.t.Helper()
	data, err := os.ReadFile(tt.path(rel))
	if err != nil {
		tt.t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}

func (tt *testTree) exists(rel string) bool {
	_, err := os.Lstat(tt.path(rel))
	return err == nil
}

func (tt *testTree) backend() *storage.Local {
	tt.t.Helper()
	b, err := storage.NewLocal(tt.root)
	if err != nil {
		tt.t.Fatal(err)
	}
	return b
}

func (tt *testTree) snapshot() models.Snapshot {
	tt.t.Helper()
	s, err := snapshot.Build(context.Background(), tt.backend())
	if err != nil {
		tt.t.Fatal(err)
	}
	return s
}

// touch sets the same modification time on a path in two trees
func touch(t *testing.T, when time.Time, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if err := os.Chtimes(p, when, when); err != nil {
			t.Fatal(err)
		}
	}
}

func decisionPaths(ds []models.Decision) []string {
	paths := make([]string, 0, len(ds))
	for _, d := range ds {
		paths = append(paths, d.Entry.RelativePath)
	}
	return paths
}
