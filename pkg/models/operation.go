package models

import (
	"path/filepath"
	"strings"
	"time"
)

// AuditMode selects how the index diff treats already indexed entries
type AuditMode string

const (
	// AuditBuild hashes every entry and updates the index in memory
	AuditBuild AuditMode = "build"
	// AuditSkip does not re-hash entries that already have an index entry
	AuditSkip AuditMode = "skip"
	// AuditCompare diffs the stored index of the root against a second root
	AuditCompare AuditMode = "compare"
)

// Worker bounds shared by both engines
const (
	MinWorkers     = 1
	MaxWorkers     = 16
	DefaultWorkers = 4
)

// BackupOperation describes one backup synchronizer run
type BackupOperation struct {
	ID             string
	SourcePath     string
	DestPath       string
	QuarantinePath string          // empty = removed entries are deleted permanently
	ContentCheck   ExtensionFilter // extensions compared byte-for-byte when sizes match
	MaxWorkers     int
	BufferSize     int
	BandwidthLimit int64 // bytes per second, 0 = unlimited
	Archive        bool  // zip the source after each pass
	CreatedAt      time.Time
}

// Validate checks if the operation configuration is valid
func (op *BackupOperation) Validate() error {
	if op.SourcePath == "" {
		return &ValidationError{Field: "SourcePath", Message: "source path is required"}
	}
	if op.DestPath == "" {
		return &ValidationError{Field: "DestPath", Message: "destination path is required"}
	}
	if op.SourcePath == op.DestPath {
		return &ValidationError{Field: "DestPath", Message: "source and destination cannot be the same"}
	}
	if op.QuarantinePath != "" && (within(op.QuarantinePath, op.SourcePath) || within(op.QuarantinePath, op.DestPath)) {
		return &ValidationError{Field: "QuarantinePath", Message: "quarantine folder must be outside source and destination"}
	}
	return validatePerformance(op.MaxWorkers, op.BufferSize)
}

// AuditOperation describes one integrity auditor run
type AuditOperation struct {
	ID          string
	RootPath    string
	ComparePath string // second root, required in compare mode
	Algorithm   string
	Mode        AuditMode
	Update      bool // persist the updated index (build and skip modes)
	Extensions  ExtensionFilter
	LegacyIndex bool // fall back to the algorithm-less index file name
	MaxWorkers  int
	BufferSize  int
	CreatedAt   time.Time
}

// Validate checks if the operation configuration is valid
func (op *AuditOperation) Validate() error {
	if op.RootPath == "" {
		return &ValidationError{Field: "RootPath", Message: "root path is required"}
	}
	if op.Algorithm == "" {
		return &ValidationError{Field: "Algorithm", Message: "digest algorithm is required"}
	}
	switch op.Mode {
	case AuditBuild, AuditSkip:
	case AuditCompare:
		if op.ComparePath == "" {
			return &ValidationError{Field: "ComparePath", Message: "compare mode requires a second root"}
		}
		if op.ComparePath == op.RootPath {
			return &ValidationError{Field: "ComparePath", Message: "cannot compare a root with itself"}
		}
		if op.Update {
			return &ValidationError{Field: "Update", Message: "compare mode never updates the index"}
		}
	default:
		return &ValidationError{Field: "Mode", Message: "mode must be build, skip or compare"}
	}
	return validatePerformance(op.MaxWorkers, op.BufferSize)
}

// within reports whether path equals root or lies below it
func within(path, root string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func validatePerformance(workers, bufferSize int) error {
	if workers < MinWorkers || workers > MaxWorkers {
		return &ValidationError{Field: "MaxWorkers", Message: "max workers must be between 1 and 16"}
	}
	if bufferSize < 1024 {
		return &ValidationError{Field: "BufferSize", Message: "buffer size must be at least 1024 bytes"}
	}
	return nil
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
