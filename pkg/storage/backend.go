package storage

import (
	"context"
	"io"
	"time"
)

// FileInfo represents metadata about a file or folder under a backend root
type FileInfo struct {
	Path         string // absolute path
	RelativePath string // root-relative, forward slashes
	Size         int64
	ModTime      time.Time
	IsDir        bool
	Permissions  uint32
	LinkTarget   string // set for symbolic links only
}

// Backend defines the storage operations the snapshot builder and the
// reconciliation executor need. All paths are root-relative with forward
// slashes unless stated otherwise.
type Backend interface {
	// Root returns the absolute root path
	Root() string

	// List returns every entry under path recursively, hidden entries
	// included. The directory at path itself is not returned.
	List(ctx context.Context, path string) ([]FileInfo, error)

	// Read opens a file for reading
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write creates or overwrites a file with the given content
	// If metadata is provided, attempts to preserve timestamps and permissions
	Write(ctx context.Context, path string, reader io.Reader, size int64, metadata *FileInfo) error

	// Delete removes a file or directory tree
	Delete(ctx context.Context, path string) error

	// Move renames the entry at path to the absolute target path
	Move(ctx context.Context, path, target string) error

	// Symlink creates a symbolic link at path, replacing any file or link
	// already there. target is stored verbatim.
	Symlink(ctx context.Context, path, target string) error

	// Stat returns metadata of the entry at path without following links
	Stat(ctx context.Context, path string) (*FileInfo, error)

	// MkdirAll creates a directory and all necessary parents
	MkdirAll(ctx context.Context, path string) error

	// Close releases any resources held by the backend
	Close() error
}
