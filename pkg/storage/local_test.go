package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

func newTestLocal(t *testing.T) (*Local, string) {
	t.Helper()
	dir := t.TempDir()
	local, err := NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	return local, local.Root()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestNewLocal(t *testing.T) {
	t.Run("ValidDirectory", func(t *testing.T) {
		local, _ := newTestLocal(t)
		if !filepath.IsAbs(local.Root()) {
			t.Errorf("Root() = %s, want absolute path", local.Root())
		}
	})

	t.Run("NonExistentPath", func(t *testing.T) {
		if _, err := NewLocal("/nonexistent/path/that/does/not/exist"); err == nil {
			t.Error("NewLocal() should fail for non-existent path")
		}
	})

	t.Run("FileNotDirectory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file")
		writeFile(t, path, "x")
		if _, err := NewLocal(path); err == nil {
			t.Error("NewLocal() should fail for file path (not directory)")
		}
	})
}

func TestLocalList(t *testing.T) {
	local, root := newTestLocal(t)
	ctx := context.Background()

	writeFile(t, filepath.Join(root, "a.txt"), "x")
	writeFile(t, filepath.Join(root, ".hidden"), "h")
	writeFile(t, filepath.Join(root, "dir", "b.txt"), "yy")
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0755); err != nil {
		t.Fatal(err)
	}

	t.Run("ListAll", func(t *testing.T) {
		files, err := local.List(ctx, "")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}

		var paths []string
		for _, f := range files {
			paths = append(paths, f.RelativePath)
			if f.IsDir && f.Size != 0 {
				t.Errorf("folder %s has size %d", f.RelativePath, f.Size)
			}
		}
		sort.Strings(paths)
		want := []string{".hidden", "a.txt", "dir", "dir/b.txt", "empty"}
		if len(paths) != len(want) {
			t.Fatalf("List() = %v, want %v", paths, want)
		}
		for i := range want {
			if paths[i] != want[i] {
				t.Errorf("List()[%d] = %s, want %s", i, paths[i], want[i])
			}
		}
	})

	t.Run("ListSubdir", func(t *testing.T) {
		files, err := local.List(ctx, "dir")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(files) != 1 || files[0].RelativePath != "dir/b.txt" {
			t.Errorf("List(dir) = %+v", files)
		}
	})

	t.Run("ContextCancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := local.List(cctx, ""); err == nil {
			t.Error("List() should fail with cancelled context")
		}
	})
}

func TestLocalReadWrite(t *testing.T) {
	local, root := newTestLocal(t)
	ctx := context.Background()

	t.Run("WriteWithSubdirAndMetadata", func(t *testing.T) {
		modTime := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
		content := []byte("hello")
		meta := &FileInfo{ModTime: modTime, Permissions: 0600}

		if err := local.Write(ctx, "sub/dir/f.txt", bytes.NewReader(content), int64(len(content)), meta); err != nil {
			t.Fatalf("Write() error = %v", err)
		}

		info, err := os.Stat(filepath.Join(root, "sub", "dir", "f.txt"))
		if err != nil {
			t.Fatal(err)
		}
		if !info.ModTime().Equal(modTime) {
			t.Errorf("ModTime = %v, want %v", info.ModTime(), modTime)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("Permissions = %o, want 600", info.Mode().Perm())
		}

		r, err := local.Read(ctx, "sub/dir/f.txt")
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		defer r.Close()
		got, _ := io.ReadAll(r)
		if !bytes.Equal(got, content) {
			t.Errorf("Read() = %q, want %q", got, content)
		}
	})

	t.Run("IncompleteWrite", func(t *testing.T) {
		if err := local.Write(ctx, "short.txt", bytes.NewReader([]byte("ab")), 10, nil); err == nil {
			t.Error("Write() should fail when fewer bytes than size are written")
		}
	})

	t.Run("ReadNonExistentFile", func(t *testing.T) {
		if _, err := local.Read(ctx, "missing.txt"); err == nil {
			t.Error("Read() should fail for missing file")
		}
	})
}

func TestLocalMove(t *testing.T) {
	local, root := newTestLocal(t)
	ctx := context.Background()
	quarantine := t.TempDir()

	writeFile(t, filepath.Join(root, "dir", "f.txt"), "x")

	t.Run("MoveFile", func(t *testing.T) {
		target := filepath.Join(quarantine, "f.txt")
		if err := local.Move(ctx, "dir/f.txt", target); err != nil {
			t.Fatalf("Move() error = %v", err)
		}
		if _, err := os.Stat(target); err != nil {
			t.Errorf("target missing: %v", err)
		}
		if _, err := os.Lstat(filepath.Join(root, "dir", "f.txt")); err == nil {
			t.Error("source still exists after move")
		}
	})

	t.Run("MissingParentFails", func(t *testing.T) {
		writeFile(t, filepath.Join(root, "g.txt"), "g")
		target := filepath.Join(quarantine, "no", "such", "g.txt")
		if err := local.Move(ctx, "g.txt", target); err == nil {
			t.Error("Move() should fail when target parent is missing")
		}
	})

	t.Run("MoveFolder", func(t *testing.T) {
		target := filepath.Join(quarantine, "dir")
		if err := local.Move(ctx, "dir", target); err != nil {
			t.Fatalf("Move() error = %v", err)
		}
		if info, err := os.Stat(target); err != nil || !info.IsDir() {
			t.Errorf("target folder missing: %v", err)
		}
	})
}

func TestLocalDeleteStat(t *testing.T) {
	local, root := newTestLocal(t)
	ctx := context.Background()
	writeFile(t, filepath.Join(root, "dir", "f.txt"), "abc")

	info, err := local.Stat(ctx, "dir/f.txt")
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Size != 3 || info.IsDir || info.RelativePath != "dir/f.txt" {
		t.Errorf("Stat() = %+v", info)
	}

	if info, err := local.Stat(ctx, "dir"); err != nil || !info.IsDir {
		t.Errorf("Stat(dir) = %+v, %v", info, err)
	}

	if err := local.Delete(ctx, "dir"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := local.Stat(ctx, "dir/f.txt"); err == nil {
		t.Error("file still exists after deleting its folder")
	}
	if err := local.Delete(ctx, "dir"); err != nil {
		t.Errorf("Delete() of missing path error = %v, want nil", err)
	}

	if err := local.MkdirAll(ctx, "a/b/c"); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if info, err := local.Stat(ctx, "a/b/c"); err != nil || !info.IsDir {
		t.Error("MkdirAll() did not create nested folders")
	}
}

func TestLocalSymlinks(t *testing.T) {
	local, root := newTestLocal(t)
	ctx := context.Background()
	writeFile(t, filepath.Join(root, "real.txt"), "0123456789")
	if err := os.MkdirAll(filepath.Join(root, "realdir"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, "realdir", "inside.txt"), "x")
	if err := os.Symlink("real.txt", filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink("realdir", filepath.Join(root, "dirlink")); err != nil {
		t.Fatal(err)
	}

	t.Run("ListDoesNotFollow", func(t *testing.T) {
		files, err := local.List(ctx, "")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		byPath := map[string]FileInfo{}
		for _, f := range files {
			byPath[f.RelativePath] = f
		}
		if f := byPath["link.txt"]; f.LinkTarget != "real.txt" || f.Size != 0 || f.IsDir {
			t.Errorf("link.txt = %+v", f)
		}
		if f := byPath["dirlink"]; f.LinkTarget != "realdir" || f.IsDir {
			t.Errorf("dirlink = %+v", f)
		}
		if _, ok := byPath["dirlink/inside.txt"]; ok {
			t.Error("List() descended into a linked folder")
		}
		if f := byPath["real.txt"]; f.LinkTarget != "" || f.Size != 10 {
			t.Errorf("real.txt = %+v", f)
		}
	})

	t.Run("SymlinkReplaces", func(t *testing.T) {
		writeFile(t, filepath.Join(root, "sub", "l"), "plain file in the way")
		for _, target := range []string{"../real.txt", "../realdir"} {
			if err := local.Symlink(ctx, "sub/l", target); err != nil {
				t.Fatalf("Symlink(%s) error = %v", target, err)
			}
			info, err := local.Stat(ctx, "sub/l")
			if err != nil || info.LinkTarget != target {
				t.Errorf("Stat(sub/l) = %+v, %v; want link to %s", info, err, target)
			}
		}
	})

	t.Run("MoveLink", func(t *testing.T) {
		target := filepath.Join(t.TempDir(), "moved")
		if err := local.Move(ctx, "dirlink", target); err != nil {
			t.Fatalf("Move() error = %v", err)
		}
		if got, err := os.Readlink(target); err != nil || got != "realdir" {
			t.Errorf("moved link = %q, %v", got, err)
		}
		if _, err := os.Stat(filepath.Join(root, "realdir", "inside.txt")); err != nil {
			t.Errorf("link target disturbed: %v", err)
		}
	})
}

// TestBackendInterface verifies Local implements Backend
func TestBackendInterface(t *testing.T) {
	var _ Backend = (*Local)(nil)
}
