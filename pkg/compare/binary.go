package compare

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// BinaryComparator compares files byte-by-byte, stopping at the first
// mismatch or at the simultaneous end of both streams.
type BinaryComparator struct {
	bufferSize    int
	bufferPool    *sync.Pool
	readerWrapper ReaderWrapper
}

// NewBinaryComparator creates a new byte-by-byte comparator
func NewBinaryComparator(bufferSize int) *BinaryComparator {
	if bufferSize < 4096 {
		bufferSize = 4096
	}
	return &BinaryComparator{
		bufferSize: bufferSize,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, bufferSize)
				return &buf
			},
		},
	}
}

// SetReaderWrapper sets a function to wrap readers (e.g., for rate limiting)
func (c *BinaryComparator) SetReaderWrapper(wrapper ReaderWrapper) {
	c.readerWrapper = wrapper
}

func (c *BinaryComparator) open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if c.readerWrapper != nil {
		return c.readerWrapper(f), nil
	}
	return f, nil
}

// Equal streams both files and reports whether their contents match.
// Any read failure is returned as an error; callers decide what an
// ambiguous comparison means.
func (c *BinaryComparator) Equal(ctx context.Context, a, b string) (bool, error) {
	ra, err := c.open(a)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", a, err)
	}
	defer ra.Close()

	rb, err := c.open(b)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", b, err)
	}
	defer rb.Close()

	bufAPtr := c.bufferPool.Get().(*[]byte)
	defer c.bufferPool.Put(bufAPtr)
	bufBPtr := c.bufferPool.Get().(*[]byte)
	defer c.bufferPool.Put(bufBPtr)
	bufA, bufB := *bufAPtr, *bufBPtr

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		na, errA := io.ReadFull(ra, bufA)
		nb, errB := io.ReadFull(rb, bufB)
		if errA != nil && errA != io.EOF && errA != io.ErrUnexpectedEOF {
			return false, fmt.Errorf("failed to read %s at offset %d: %w", a, offset, errA)
		}
		if errB != nil && errB != io.EOF && errB != io.ErrUnexpectedEOF {
			return false, fmt.Errorf("failed to read %s at offset %d: %w", b, offset, errB)
		}

		if na != nb || !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		offset += int64(na)

		// a short read means both streams ended together
		if errA != nil || errB != nil {
			return errA != nil && errB != nil, nil
		}
	}
}

// Name returns the comparator name
func (c *BinaryComparator) Name() string {
	return "binary"
}
