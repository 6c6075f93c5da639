// Package archive writes compressed zip snapshots of a tree.
package archive

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// TimestampLayout names archives YYYY-MM-DD_hh.mm.ss.mmm
const TimestampLayout = "2006-01-02_15.04.05.000"

const ioBufferSize = 256 * 1024

// TargetDir returns the folder holding the archives of a destination:
// a sibling of it with a "-backups" suffix
func TargetDir(destRoot string) string {
	return filepath.Clean(destRoot) + "-backups"
}

// FileName returns the archive name for a pass started at now
func FileName(now time.Time) string {
	return now.Format(TimestampLayout) + ".zip"
}

// CreateZip compresses every file and folder under srcRoot into
// targetDir/FileName(now). The archive is written to a temporary file and
// renamed into place, so a failed pass never leaves a truncated zip. It
// returns the archive path and its size.
func CreateZip(ctx context.Context, srcRoot, targetDir string, now time.Time) (path string, size int64, retErr error) {
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create archive folder: %w", err)
	}
	path = filepath.Join(targetDir, FileName(now))

	tmp, err := os.CreateTemp(targetDir, ".treewarden-*.tmp")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp archive: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if retErr != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := writeZip(ctx, srcRoot, tmp); err != nil {
		return "", 0, err
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to close temp archive: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", 0, fmt.Errorf("failed to rename temp archive: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return path, 0, nil
	}
	return path, info.Size(), nil
}

func writeZip(ctx context.Context, srcRoot string, out io.Writer) (retErr error) {
	bw := bufio.NewWriterSize(out, ioBufferSize)
	zw := zip.NewWriter(bw)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})
	defer func() {
		if err := zw.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("zip writer close failed: %w", err)
		}
		if err := bw.Flush(); err != nil && retErr == nil {
			retErr = fmt.Errorf("buffer flush failed: %w", err)
		}
	}()

	buf := make([]byte, ioBufferSize)
	return filepath.WalkDir(srcRoot, func(abs string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			return walkErr
		}
		if abs == srcRoot {
			return nil
		}
		rel, err := filepath.Rel(srcRoot, abs)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", rel, err)
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return writeLink(zw, abs, rel, info)
		}
		if !info.Mode().IsRegular() && !info.IsDir() {
			return nil
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return fmt.Errorf("failed to create zip header for %s: %w", rel, err)
		}
		header.Name = rel
		if info.IsDir() {
			header.Name += "/"
			header.Method = zip.Store
			_, err = zw.CreateHeader(header)
			return err
		}
		header.Method = zip.Deflate

		w, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("failed to write zip header for %s: %w", rel, err)
		}
		f, err := os.Open(abs)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", rel, err)
		}
		defer f.Close()
		if _, err := io.CopyBuffer(w, f, buf); err != nil {
			return fmt.Errorf("failed to compress %s: %w", rel, err)
		}
		return nil
	})
}

// writeLink stores a symbolic link as its target path, the way zip tools
// record links
func writeLink(zw *zip.Writer, abs, rel string, info fs.FileInfo) error {
	target, err := os.Readlink(abs)
	if err != nil {
		return fmt.Errorf("failed to read link %s: %w", rel, err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to create zip header for %s: %w", rel, err)
	}
	header.Name = rel
	header.Method = zip.Store
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to write zip header for %s: %w", rel, err)
	}
	_, err = io.WriteString(w, target)
	return err
}
