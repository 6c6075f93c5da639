package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// Local is a filesystem-based storage backend
type Local struct {
	rootPath string
}

// NewLocal creates a new local filesystem backend
func NewLocal(rootPath string) (*Local, error) {
	absPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to access path: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", absPath)
	}

	return &Local{rootPath: absPath}, nil
}

// Root returns the absolute root path
func (l *Local) Root() string {
	return l.rootPath
}

func (l *Local) abs(path string) string {
	return filepath.Join(l.rootPath, filepath.FromSlash(path))
}

// List returns all entries below path recursively. Symbolic links are
// reported with their target and never followed.
func (l *Local) List(ctx context.Context, path string) ([]FileInfo, error) {
	fullPath := l.abs(path)
	var files []FileInfo

	err := filepath.WalkDir(fullPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if p == fullPath {
			return nil
		}

		relPath, err := filepath.Rel(l.rootPath, p)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		fi := FileInfo{
			Path:         p,
			RelativePath: filepath.ToSlash(relPath),
			ModTime:      info.ModTime(),
			IsDir:        info.IsDir(),
			Permissions:  uint32(info.Mode().Perm()),
		}
		switch {
		case info.Mode()&fs.ModeSymlink != 0:
			if fi.LinkTarget, err = os.Readlink(p); err != nil {
				return err
			}
		case !fi.IsDir:
			fi.Size = info.Size()
		}
		files = append(files, fi)

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return files, nil
}

// Read opens a file for reading
func (l *Local) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	file, err := os.Open(l.abs(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Write creates or overwrites a file
func (l *Local) Write(ctx context.Context, path string, reader io.Reader, size int64, metadata *FileInfo) error {
	fullPath := l.abs(path)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	written, err := io.Copy(file, reader)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	if size >= 0 && written != size {
		return fmt.Errorf("incomplete write: expected %d bytes, wrote %d", size, written)
	}

	if metadata != nil {
		if !metadata.ModTime.IsZero() {
			if err := os.Chtimes(fullPath, metadata.ModTime, metadata.ModTime); err != nil {
				return fmt.Errorf("failed to set modification time: %w", err)
			}
		}
		if metadata.Permissions != 0 {
			if err := os.Chmod(fullPath, os.FileMode(metadata.Permissions)); err != nil {
				return fmt.Errorf("failed to set permissions: %w", err)
			}
		}
	}

	return nil
}

// Delete removes a file or directory tree
func (l *Local) Delete(ctx context.Context, path string) error {
	if err := os.RemoveAll(l.abs(path)); err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	return nil
}

// Move renames the entry at path to target. Files and links crossing a
// device boundary are copied then removed.
func (l *Local) Move(ctx context.Context, path, target string) error {
	src := l.abs(path)
	err := os.Rename(src, target)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("failed to move: %w", err)
	}

	info, serr := os.Lstat(src)
	if serr != nil || info.IsDir() {
		return fmt.Errorf("failed to move: %w", err)
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		err = copyLink(src, target)
	} else {
		err = copyFile(src, target, info)
	}
	if err != nil {
		return fmt.Errorf("failed to move across devices: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("failed to remove moved file: %w", err)
	}
	return nil
}

func copyFile(src, dst string, info os.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

func copyLink(src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return err
	}
	return os.Symlink(target, dst)
}

// Symlink creates a link at path pointing at target
func (l *Local) Symlink(ctx context.Context, path, target string) error {
	fullPath := l.abs(path)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to replace existing entry: %w", err)
	}
	if err := os.Symlink(target, fullPath); err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}
	return nil
}

// Stat returns file metadata; links are not followed
func (l *Local) Stat(ctx context.Context, path string) (*FileInfo, error) {
	fullPath := l.abs(path)

	info, err := os.Lstat(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	relPath, err := filepath.Rel(l.rootPath, fullPath)
	if err != nil {
		return nil, err
	}

	fi := &FileInfo{
		Path:         fullPath,
		RelativePath: filepath.ToSlash(relPath),
		ModTime:      info.ModTime(),
		IsDir:        info.IsDir(),
		Permissions:  uint32(info.Mode().Perm()),
	}
	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		if fi.LinkTarget, err = os.Readlink(fullPath); err != nil {
			return nil, fmt.Errorf("failed to read link: %w", err)
		}
	case !fi.IsDir:
		fi.Size = info.Size()
	}
	return fi, nil
}

// MkdirAll creates a directory and all necessary parents
func (l *Local) MkdirAll(ctx context.Context, path string) error {
	if err := os.MkdirAll(l.abs(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// Close releases resources (no-op for local filesystem)
func (l *Local) Close() error {
	return nil
}
