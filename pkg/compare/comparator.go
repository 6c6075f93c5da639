// Package compare decides whether two files hold the same bytes.
package compare

import (
	"context"
	"io"
)

// ReaderWrapper wraps a reader, e.g. for rate limiting
type ReaderWrapper func(io.ReadCloser) io.ReadCloser

// Comparator defines the interface for content comparison
type Comparator interface {
	// Equal reports whether the files at the two absolute paths are identical
	Equal(ctx context.Context, a, b string) (bool, error)

	// Name returns the name of the comparison method
	Name() string
}
