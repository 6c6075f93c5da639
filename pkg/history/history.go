// Package history keeps a SQLite log of finished passes.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sdejongh/treewarden/pkg/models"
)

// Pass kinds
const (
	KindBackup = "backup"
	KindAudit  = "audit"
)

// PassRecord is one finished pass
type PassRecord struct {
	ID        int64
	PassID    string
	Kind      string // backup or audit
	Mode      string // audit mode, empty for backups
	Root      string // source or audited root
	Target    string // destination or compared root
	StartTime time.Time
	EndTime   time.Time
	Status    models.PassStatus
	Copied    int // files copied, or new entries
	Removed   int // files removed, or deleted entries
	Changed   int // different hashes; zero for backups
	Bytes     int64
	Errors    int
	Error     string // fatal error, if any
}

// Recorder stores pass records
type Recorder struct {
	db *sql.DB
}

// Open opens or creates the history database at path
func Open(path string) (*Recorder, error) {
	if path == "" {
		return nil, fmt.Errorf("history path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// a single connection avoids "database is locked" between concurrent passes
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode and busy timeout: %w", err)
	}

	r := &Recorder{db: db}
	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return r, nil
}

func (r *Recorder) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS passes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pass_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		mode TEXT,
		root TEXT NOT NULL,
		target TEXT,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		copied INTEGER DEFAULT 0,
		removed INTEGER DEFAULT 0,
		changed INTEGER DEFAULT 0,
		bytes INTEGER DEFAULT 0,
		errors INTEGER DEFAULT 0,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_passes_start ON passes(start_time DESC);
	CREATE INDEX IF NOT EXISTS idx_passes_root ON passes(root, start_time DESC);
	`
	_, err := r.db.Exec(schema)
	return err
}

// Record appends a pass record
func (r *Recorder) Record(ctx context.Context, rec PassRecord) error {
	switch rec.Status {
	case models.StatusSuccess, models.StatusPartial, models.StatusFailed:
	default:
		return fmt.Errorf("invalid status: %q", rec.Status)
	}
	if rec.Kind != KindBackup && rec.Kind != KindAudit {
		return fmt.Errorf("invalid kind: %q", rec.Kind)
	}

	query := `
		INSERT INTO passes (pass_id, kind, mode, root, target, start_time, end_time, status,
			copied, removed, changed, bytes, errors, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.PassID,
		rec.Kind,
		rec.Mode,
		rec.Root,
		rec.Target,
		rec.StartTime,
		rec.EndTime,
		string(rec.Status),
		rec.Copied,
		rec.Removed,
		rec.Changed,
		rec.Bytes,
		rec.Errors,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save pass record: %w", err)
	}
	return nil
}

// Recent returns the last n passes, newest first
func (r *Recorder) Recent(ctx context.Context, n int) ([]PassRecord, error) {
	if n <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", n)
	}

	query := `
		SELECT id, pass_id, kind, mode, root, target, start_time, end_time, status,
			copied, removed, changed, bytes, errors, error
		FROM passes
		ORDER BY start_time DESC, id DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []PassRecord
	for rows.Next() {
		var rec PassRecord
		var mode, target, errText sql.NullString
		var status string
		err := rows.Scan(
			&rec.ID,
			&rec.PassID,
			&rec.Kind,
			&mode,
			&rec.Root,
			&target,
			&rec.StartTime,
			&rec.EndTime,
			&status,
			&rec.Copied,
			&rec.Removed,
			&rec.Changed,
			&rec.Bytes,
			&rec.Errors,
			&errText,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.Mode, rec.Target, rec.Error = mode.String, target.String, errText.String
		rec.Status = models.PassStatus(status)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

// Close closes the database
func (r *Recorder) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// FromBackup builds a record from a backup report. fatal is the error
// returned by the engine, if any.
func FromBackup(report *models.BackupReport, fatal error) PassRecord {
	rec := PassRecord{
		PassID:    report.PassID,
		Kind:      KindBackup,
		Root:      report.SourcePath,
		Target:    report.DestPath,
		StartTime: report.StartTime,
		EndTime:   report.EndTime,
		Status:    report.Status,
		Copied:    report.Stats.FilesCopied,
		Removed:   report.Stats.FilesRemoved,
		Bytes:     report.Stats.BytesCopied,
		Errors:    len(report.Errors),
	}
	if fatal != nil {
		rec.Error = fatal.Error()
	}
	return rec
}

// FromAudit builds a record from an integrity report
func FromAudit(report *models.AuditReport, fatal error) PassRecord {
	rec := PassRecord{
		PassID:    report.PassID,
		Kind:      KindAudit,
		Mode:      string(report.Mode),
		Root:      report.RootPath,
		Target:    report.ComparePath,
		StartTime: report.StartTime,
		EndTime:   report.EndTime,
		Status:    report.Status,
		Copied:    report.Count(models.ChangeNewFile) + report.Count(models.ChangeNewFolder),
		Removed:   report.Count(models.ChangeDeletedFile) + report.Count(models.ChangeDeletedFolder),
		Changed:   report.Count(models.ChangeDifferentHash),
		Bytes:     report.Stats.BytesHashed,
		Errors:    len(report.Errors),
	}
	if fatal != nil {
		rec.Error = fatal.Error()
	}
	return rec
}
