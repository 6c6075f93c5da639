package output

import (
	"github.com/sdejongh/treewarden/pkg/models"
)

// EventType tags a ProgressUpdate
type EventType string

const (
	EventDecision EventType = "decision" // entry selected by the copy/remove diff
	EventChange   EventType = "change"   // change detected by the index diff
	EventCopied   EventType = "copied"
	EventRemoved  EventType = "removed"
	EventError    EventType = "error"
	EventProgress EventType = "progress" // throttled counters only
)

// ProgressUpdate represents a notification during a pass
type ProgressUpdate struct {
	Type   EventType
	Path   string
	Reason models.DiffReason
	Change models.ChangeType
	Bytes  int64
	Error  error

	DoneItems  int
	TotalItems int
	DoneBytes  int64
	TotalBytes int64
}

// Formatter renders the events and summary of a pass. Calls are
// serialized by the Tracker, so implementations need no locking.
type Formatter interface {
	// Start initializes the formatter for a new pass
	Start(title string, totalItems int, totalBytes int64, workers int) error

	// Progress reports an event or updated counters
	Progress(update ProgressUpdate) error

	// CompleteBackup displays the summary of a backup pass
	CompleteBackup(report *models.BackupReport) error

	// CompleteAudit displays the summary of an integrity pass
	CompleteAudit(report *models.AuditReport) error

	// Error reports a fatal error
	Error(err error) error

	// Name returns the formatter name
	Name() string
}
