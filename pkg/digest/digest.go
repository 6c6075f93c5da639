// Package digest computes lowercase hex content digests with a selectable
// hash algorithm. A Computer is stateful and must not be shared by
// concurrent hash operations; create one per worker.
package digest

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// DefaultAlgorithm is used when no algorithm is configured
const DefaultAlgorithm = "SHA3-512"

var (
	// ErrUnsupportedAlgorithm is returned for unknown algorithm names
	ErrUnsupportedAlgorithm = errors.New("unsupported digest algorithm")
	// ErrHashFailure wraps read failures while hashing one file
	ErrHashFailure = errors.New("hash failure")
	// ErrEmptyDigest guards the folder-marker sentinel: no algorithm may produce ""
	ErrEmptyDigest = errors.New("algorithm produced an empty digest")
)

type factory func() (hash.Hash, error)

var algorithms = map[string]factory{
	"SHA-256":  func() (hash.Hash, error) { return sha256.New(), nil },
	"SHA-512":  func() (hash.Hash, error) { return sha512.New(), nil },
	"SHA3-256": func() (hash.Hash, error) { return sha3.New256(), nil },
	"SHA3-512": func() (hash.Hash, error) { return sha3.New512(), nil },
	"BLAKE2B-512": func() (hash.Hash, error) {
		return blake2b.New512(nil)
	},
	"BLAKE3": func() (hash.Hash, error) { return blake3.New(), nil },
}

// display names keyed by lookup key
var canonical = map[string]string{
	"SHA-256":     "SHA-256",
	"SHA-512":     "SHA-512",
	"SHA3-256":    "SHA3-256",
	"SHA3-512":    "SHA3-512",
	"BLAKE2B-512": "BLAKE2b-512",
	"BLAKE3":      "BLAKE3",
}

const bufferSize = 64 * 1024

var bufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, bufferSize)
		return &buf
	},
}

// Supports reports whether name is a known algorithm (case-insensitive)
func Supports(name string) bool {
	_, ok := algorithms[strings.ToUpper(name)]
	return ok
}

// Canonical returns the display spelling of an algorithm name, the form
// embedded in index file names.
func Canonical(name string) (string, error) {
	c, ok := canonical[strings.ToUpper(name)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}
	return c, nil
}

// Algorithms lists every supported algorithm in canonical spelling
func Algorithms() []string {
	names := make([]string, 0, len(canonical))
	for _, c := range canonical {
		names = append(names, c)
	}
	sort.Strings(names)
	return names
}

// Computer hashes files with one algorithm instance
type Computer struct {
	name string
	h    hash.Hash
}

// New creates a Computer for the named algorithm
func New(name string) (*Computer, error) {
	f, ok := algorithms[strings.ToUpper(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}
	h, err := f()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s: %w", name, err)
	}
	if h.Size() == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptyDigest)
	}
	return &Computer{name: canonical[strings.ToUpper(name)], h: h}, nil
}

// Algorithm returns the canonical algorithm name
func (c *Computer) Algorithm() string {
	return c.name
}

// Hash streams the file at path and returns its hex digest.
// On failure the digest is empty and the error wraps ErrHashFailure.
func (c *Computer) Hash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashFailure, err)
	}
	defer f.Close()
	return c.HashReader(f)
}

// HashReader digests everything r yields
func (c *Computer) HashReader(r io.Reader) (string, error) {
	bufPtr := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bufPtr)

	c.h.Reset()
	if _, err := io.CopyBuffer(c.h, r, *bufPtr); err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashFailure, err)
	}
	sum := hex.EncodeToString(c.h.Sum(nil))
	if sum == "" {
		return "", ErrEmptyDigest
	}
	return sum, nil
}
