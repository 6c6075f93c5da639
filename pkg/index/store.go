// Package index persists per-directory digest indexes as JSON sidecar
// files. Each sidecar maps a file name to its digest; the empty string
// marks a subfolder.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sdejongh/treewarden/pkg/digest"
	"github.com/sdejongh/treewarden/pkg/logging"
	"github.com/sdejongh/treewarden/pkg/workerpool"
)

const (
	filePrefix = "integrity-utility.index"
	fileSuffix = ".json"

	// LegacyFileName is the algorithm-less name written by older versions
	LegacyFileName = filePrefix + fileSuffix
)

// ErrIndexRead is returned when an existing index cannot be read
var ErrIndexRead = errors.New("index read failure")

// Map is one directory's index: file name to digest ("" for subfolders)
type Map map[string]string

// Clone returns a copy of m
func (m Map) Clone() Map {
	c := make(Map, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Tree maps a root-relative directory ("" for the root) to its index
type Tree map[string]Map

// Clone returns a deep copy of t
func (t Tree) Clone() Tree {
	c := make(Tree, len(t))
	for dir, m := range t {
		c[dir] = m.Clone()
	}
	return c
}

// Len returns the total number of entries across all directories
func (t Tree) Len() int {
	n := 0
	for _, m := range t {
		n += len(m)
	}
	return n
}

// IsSidecar reports whether name is an index file of any algorithm,
// including a temporary file left by an interrupted save.
func IsSidecar(name string) bool {
	return strings.HasPrefix(name, filePrefix) &&
		(strings.HasSuffix(name, fileSuffix) || strings.HasSuffix(name, fileSuffix+".tmp"))
}

// FileName returns the sidecar name for a canonical algorithm name
func FileName(algorithm string) string {
	return filePrefix + "." + algorithm + fileSuffix
}

// Options configures a Store
type Options struct {
	// Legacy reads LegacyFileName when the algorithm-qualified file is absent
	Legacy bool
	Logger logging.Logger
}

// Store loads and saves sidecar files for one algorithm
type Store struct {
	fileName string
	legacy   bool
	logger   logging.Logger
}

// NewStore creates a store for the named digest algorithm
func NewStore(algorithm string, opts Options) (*Store, error) {
	name, err := digest.Canonical(algorithm)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Store{
		fileName: FileName(name),
		legacy:   opts.Legacy,
		logger:   logger,
	}, nil
}

// FileName returns the sidecar file name used by this store
func (s *Store) FileName() string {
	return s.fileName
}

// Load reads the index of the directory at the absolute path dir.
// A missing index yields an empty map and calls notFound (if non-nil);
// a malformed one yields an empty map and a warning. Any other failure
// wraps ErrIndexRead.
func (s *Store) Load(ctx context.Context, dir string, notFound func(dir string)) (Map, error) {
	data, err := os.ReadFile(filepath.Join(dir, s.fileName))
	if errors.Is(err, fs.ErrNotExist) && s.legacy {
		data, err = os.ReadFile(filepath.Join(dir, LegacyFileName))
	}
	if errors.Is(err, fs.ErrNotExist) {
		if notFound != nil {
			notFound(dir)
		}
		return Map{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIndexRead, dir, err)
	}

	m := Map{}
	if err := json.Unmarshal(data, &m); err != nil {
		s.logger.Warn(ctx, "malformed index ignored", logging.Fields{
			"dir":   dir,
			"error": err.Error(),
		})
		return Map{}, nil
	}
	if m == nil {
		m = Map{}
	}
	return m, nil
}

// Save replaces the index of the directory at the absolute path dir
func (s *Store) Save(dir string, m Map) error {
	if m == nil {
		m = Map{}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	path := filepath.Join(dir, s.fileName)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize index: %w", err)
	}
	return nil
}

// LoadTree loads the index of every listed root-relative directory under
// root in parallel. notFound may be called concurrently. The first read
// failure is returned.
func (s *Store) LoadTree(ctx context.Context, root string, dirs []string, workers int, notFound func(dir string)) (Tree, error) {
	tree := make(Tree, len(dirs))
	var mu sync.Mutex

	pool := workerpool.New(workers)
	for _, dir := range dirs {
		dir := dir
		pool.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := s.Load(ctx, filepath.Join(root, filepath.FromSlash(dir)), notFound)
			if err != nil {
				return err
			}
			mu.Lock()
			tree[dir] = m
			mu.Unlock()
			return nil
		})
	}
	if err := pool.Wait(); err != nil {
		return nil, err
	}
	return tree, nil
}

// SaveTree writes one sidecar per directory in tree. A failing directory is
// logged and does not prevent the others from being saved; the joined
// failures are returned.
func (s *Store) SaveTree(ctx context.Context, root string, tree Tree) (saved int, err error) {
	var errs []error
	for dir, m := range tree {
		if serr := s.Save(filepath.Join(root, filepath.FromSlash(dir)), m); serr != nil {
			s.logger.Error(ctx, "failed to save index", serr, logging.Fields{"dir": dir})
			errs = append(errs, fmt.Errorf("%s: %w", dir, serr))
			continue
		}
		saved++
	}
	return saved, errors.Join(errs...)
}
