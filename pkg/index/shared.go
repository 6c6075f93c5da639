package index

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// numShards must be a power of two
const numShards = 32

type shard struct {
	mu   sync.Mutex
	dirs map[string]Map
}

// Shared is a Tree that workers update concurrently. Directories are
// spread over lock shards; every method holds one shard lock for a single
// read-modify-write and never across I/O.
type Shared struct {
	shards [numShards]*shard
}

// Outcome describes what CompareAndUpdate found
type Outcome int

const (
	// Added means the name had no prior entry
	Added Outcome = iota
	// Unchanged means the stored digest already matched
	Unchanged
	// Replaced means a different digest was stored and has been replaced
	Replaced
)

// NewShared takes ownership of tree
func NewShared(tree Tree) *Shared {
	s := &Shared{}
	for i := range s.shards {
		s.shards[i] = &shard{dirs: make(map[string]Map)}
	}
	for dir, m := range tree {
		s.shard(dir).dirs[dir] = m
	}
	return s
}

func (s *Shared) shard(dir string) *shard {
	return s.shards[xxhash.Sum64String(dir)&(numShards-1)]
}

// Get returns the stored digest of name in dir
func (s *Shared) Get(dir, name string) (string, bool) {
	sh := s.shard(dir)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v, ok := sh.dirs[dir][name]
	return v, ok
}

// CompareAndUpdate stores digest for name in dir and reports the prior state
func (s *Shared) CompareAndUpdate(dir, name, digest string) Outcome {
	sh := s.shard(dir)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	m, ok := sh.dirs[dir]
	if !ok {
		m = Map{}
		sh.dirs[dir] = m
	}
	prev, found := m[name]
	m[name] = digest
	switch {
	case !found:
		return Added
	case prev == digest:
		return Unchanged
	default:
		return Replaced
	}
}

// Remove deletes name from dir, returning the removed digest
func (s *Shared) Remove(dir, name string) (string, bool) {
	sh := s.shard(dir)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	m, ok := sh.dirs[dir]
	if !ok {
		return "", false
	}
	v, found := m[name]
	if found {
		delete(m, name)
	}
	return v, found
}

// RemoveDir drops a whole directory, returning its entries
func (s *Shared) RemoveDir(dir string) (Map, bool) {
	sh := s.shard(dir)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	m, ok := sh.dirs[dir]
	delete(sh.dirs, dir)
	return m, ok
}

// Snapshot returns a deep copy of the current tree
func (s *Shared) Snapshot() Tree {
	t := make(Tree)
	for _, sh := range s.shards {
		sh.mu.Lock()
		for dir, m := range sh.dirs {
			t[dir] = m.Clone()
		}
		sh.mu.Unlock()
	}
	return t
}
