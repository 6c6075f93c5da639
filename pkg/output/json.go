package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/sdejongh/treewarden/pkg/models"
)

// JSONFormatter writes one JSON document per pass for automation and
// scripting. Events are accumulated and included in the final document.
type JSONFormatter struct {
	writer io.Writer
	title  string
	start  time.Time
	events []JSONEvent
}

// JSONEvent represents a single event in the JSON output
type JSONEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Path      string    `json:"path,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Bytes     int64     `json:"bytes,omitempty"`
}

// JSONDecision is one entry selected by the copy/remove diff
type JSONDecision struct {
	Path   string `json:"path"`
	Folder bool   `json:"folder,omitempty"`
	Size   int64  `json:"size"`
	Reason string `json:"reason"`
}

// JSONBackupReport is the document written after a backup pass
type JSONBackupReport struct {
	PassID      string                  `json:"pass_id"`
	Source      string                  `json:"source"`
	Destination string                  `json:"destination"`
	Quarantine  string                  `json:"quarantine,omitempty"`
	Status      string                  `json:"status"`
	Duration    string                  `json:"duration"`
	DurationMs  int64                   `json:"duration_ms"`
	Stats       models.BackupStatistics `json:"stats"`
	ToCopy      []JSONDecision          `json:"to_copy"`
	ToRemove    []JSONDecision          `json:"to_remove"`
	Archive     string                  `json:"archive,omitempty"`
	Errors      []models.PassError      `json:"errors,omitempty"`
	Events      []JSONEvent             `json:"events,omitempty"`
}

// JSONAuditReport is the document written after an integrity pass
type JSONAuditReport struct {
	PassID     string                  `json:"pass_id"`
	Root       string                  `json:"root"`
	Compare    string                  `json:"compare,omitempty"`
	Mode       string                  `json:"mode"`
	Algorithm  string                  `json:"algorithm"`
	Updated    bool                    `json:"updated"`
	Status     string                  `json:"status"`
	Duration   string                  `json:"duration"`
	DurationMs int64                   `json:"duration_ms"`
	Stats      models.AuditStatistics  `json:"stats"`
	Counts     map[string]int          `json:"counts"`
	Changes    []models.ChangeLogEntry `json:"changes"`
	Errors     []models.PassError      `json:"errors,omitempty"`
}

// NewJSONFormatter creates a new JSON formatter writing to w
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// Start initializes the formatter
func (f *JSONFormatter) Start(title string, totalItems int, totalBytes int64, workers int) error {
	f.title = title
	f.start = time.Now()
	f.events = f.events[:0]
	return nil
}

// Progress records events; throttled counter updates are dropped to keep
// the output parseable
func (f *JSONFormatter) Progress(update ProgressUpdate) error {
	ev := JSONEvent{Timestamp: time.Now(), Type: string(update.Type), Path: update.Path, Bytes: update.Bytes}
	switch update.Type {
	case EventProgress, EventDecision, EventChange:
		// decisions and changes are part of the report itself
		return nil
	case EventError:
		if update.Error != nil {
			ev.Detail = update.Error.Error()
		}
	}
	f.events = append(f.events, ev)
	return nil
}

// CompleteBackup writes the backup document
func (f *JSONFormatter) CompleteBackup(report *models.BackupReport) error {
	return encodeJSON(f.writer, backupDocument(report, f.events))
}

// CompleteAudit writes the integrity document
func (f *JSONFormatter) CompleteAudit(report *models.AuditReport) error {
	return encodeJSON(f.writer, auditDocument(report))
}

// Error writes a minimal document for a fatal error
func (f *JSONFormatter) Error(err error) error {
	return encodeJSON(f.writer, map[string]string{
		"status": string(models.StatusFailed),
		"error":  err.Error(),
	})
}

// Name returns the formatter name
func (f *JSONFormatter) Name() string {
	return "json"
}

func backupDocument(report *models.BackupReport, events []JSONEvent) JSONBackupReport {
	return JSONBackupReport{
		PassID:      report.PassID,
		Source:      report.SourcePath,
		Destination: report.DestPath,
		Quarantine:  report.QuarantinePath,
		Status:      string(report.Status),
		Duration:    report.Duration.Round(time.Millisecond).String(),
		DurationMs:  report.Duration.Milliseconds(),
		Stats:       report.Stats,
		ToCopy:      jsonDecisions(report.ToCopy),
		ToRemove:    jsonDecisions(report.ToRemove),
		Archive:     report.ArchivePath,
		Errors:      report.Errors,
		Events:      events,
	}
}

func auditDocument(report *models.AuditReport) JSONAuditReport {
	counts := make(map[string]int, len(models.ChangeTypes))
	for _, t := range models.ChangeTypes {
		counts[string(t)] = report.Count(t)
	}
	changes := report.Changes
	if changes == nil {
		changes = []models.ChangeLogEntry{}
	}
	return JSONAuditReport{
		PassID:     report.PassID,
		Root:       report.RootPath,
		Compare:    report.ComparePath,
		Mode:       string(report.Mode),
		Algorithm:  report.Algorithm,
		Updated:    report.Updated,
		Status:     string(report.Status),
		Duration:   report.Duration.Round(time.Millisecond).String(),
		DurationMs: report.Duration.Milliseconds(),
		Stats:      report.Stats,
		Counts:     counts,
		Changes:    changes,
		Errors:     report.Errors,
	}
}

func jsonDecisions(ds []models.Decision) []JSONDecision {
	out := make([]JSONDecision, 0, len(ds))
	for _, d := range ds {
		out = append(out, JSONDecision{
			Path:   d.Entry.RelativePath,
			Folder: d.Entry.IsFolder,
			Size:   d.Entry.Size,
			Reason: string(d.Reason),
		})
	}
	return out
}

func encodeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
