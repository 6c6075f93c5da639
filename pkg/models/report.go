package models

import (
	"sort"
	"time"
)

// PassStatus represents the overall result of one pass
type PassStatus string

const (
	// StatusSuccess indicates all operations completed successfully
	StatusSuccess PassStatus = "success"
	// StatusPartial indicates some entries failed but the pass completed
	StatusPartial PassStatus = "partial"
	// StatusFailed indicates the pass was aborted by a fatal error
	StatusFailed PassStatus = "failed"
)

// ExitCode returns the process exit code for the status.
// Entry-local failures never make the process fail.
func (s PassStatus) ExitCode() int {
	switch s {
	case StatusSuccess, StatusPartial:
		return 0
	default:
		return 2
	}
}

// PassError represents an entry-local failure during a pass
type PassError struct {
	Path      string    `json:"path"`
	Operation string    `json:"operation"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// NewPassError builds a PassError stamped with the current time
func NewPassError(path, operation string, err error) PassError {
	return PassError{
		Path:      path,
		Operation: operation,
		Error:     err.Error(),
		Timestamp: time.Now(),
	}
}

// BackupStatistics holds backup pass counters. The "to" counters are
// decremented when an entry fails so they always match completed work.
type BackupStatistics struct {
	SourceEntries int `json:"source_entries"`
	DestEntries   int `json:"dest_entries"`

	FilesToCopy   int   `json:"files_to_copy"`
	FoldersToCopy int   `json:"folders_to_copy"`
	BytesToCopy   int64 `json:"bytes_to_copy"`
	FilesCopied   int   `json:"files_copied"`
	FoldersCopied int   `json:"folders_copied"`
	BytesCopied   int64 `json:"bytes_copied"`

	FilesToRemove   int   `json:"files_to_remove"`
	FoldersToRemove int   `json:"folders_to_remove"`
	BytesToRemove   int64 `json:"bytes_to_remove"`
	FilesRemoved    int   `json:"files_removed"`
	FoldersRemoved  int   `json:"folders_removed"`
	BytesRemoved    int64 `json:"bytes_removed"`

	ComparisonFailures int `json:"comparison_failures"`
}

// Delta returns copied bytes minus removed bytes
func (s BackupStatistics) Delta() int64 {
	return s.BytesCopied - s.BytesRemoved
}

// BackupReport represents the results of one backup pass
type BackupReport struct {
	PassID         string
	SourcePath     string
	DestPath       string
	QuarantinePath string

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	ToCopy   []Decision
	ToRemove []Decision

	Stats       BackupStatistics
	Errors      []PassError
	ArchivePath string
	Status      PassStatus
}

// Finish stamps the end time and derives the status
func (r *BackupReport) Finish() {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	r.Status = StatusSuccess
	if len(r.Errors) > 0 {
		r.Status = StatusPartial
	}
}

// AuditStatistics holds integrity pass counters
type AuditStatistics struct {
	EntriesScanned int   `json:"entries_scanned"`
	FilesToHash    int   `json:"files_to_hash"`
	BytesToHash    int64 `json:"bytes_to_hash"`
	FilesHashed    int   `json:"files_hashed"`
	BytesHashed    int64 `json:"bytes_hashed"`
	Skipped        int   `json:"skipped"` // excluded by extension or already indexed in skip mode
	HashFailures   int   `json:"hash_failures"`
	IndexesSaved   int   `json:"indexes_saved"`
	IndexesMissing int   `json:"indexes_missing"`
}

// AuditReport represents the results of one integrity pass
type AuditReport struct {
	PassID      string
	RootPath    string
	ComparePath string
	Mode        AuditMode
	Algorithm   string
	Updated     bool

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Changes []ChangeLogEntry
	Stats   AuditStatistics
	Errors  []PassError
	Status  PassStatus
}

// Count returns the number of changes of the given type
func (r *AuditReport) Count(t ChangeType) int {
	n := 0
	for _, c := range r.Changes {
		if c.Type == t {
			n++
		}
	}
	return n
}

// Finish sorts the changes, stamps the end time and derives the status
func (r *AuditReport) Finish() {
	SortChanges(r.Changes)
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	r.Status = StatusSuccess
	if len(r.Errors) > 0 {
		r.Status = StatusPartial
	}
}

// SortPassErrors orders errors by path, then operation
func SortPassErrors(errs []PassError) {
	sort.Slice(errs, func(i, j int) bool {
		if errs[i].Path != errs[j].Path {
			return errs[i].Path < errs[j].Path
		}
		return errs[i].Operation < errs[j].Operation
	})
}
