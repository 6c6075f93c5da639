package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sdejongh/treewarden/pkg/models"
)

func openTest(t *testing.T) *Recorder {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRecordAndRecent(t *testing.T) {
	r := openTest(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		rec := PassRecord{
			PassID:    string(rune('a' + i)),
			Kind:      KindBackup,
			Root:      "/src",
			Target:    "/dst",
			StartTime: base.Add(time.Duration(i) * time.Hour),
			EndTime:   base.Add(time.Duration(i)*time.Hour + time.Minute),
			Status:    models.StatusSuccess,
			Copied:    i,
			Bytes:     int64(i * 100),
		}
		if err := r.Record(ctx, rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	recent, err := r.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d records, want 2", len(recent))
	}
	if recent[0].PassID != "c" || recent[1].PassID != "b" {
		t.Errorf("order = %s, %s; want c, b", recent[0].PassID, recent[1].PassID)
	}
	if recent[0].Copied != 2 || recent[0].Bytes != 200 || recent[0].Target != "/dst" {
		t.Errorf("record = %+v", recent[0])
	}
	if !recent[0].StartTime.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("start = %v", recent[0].StartTime)
	}
}

func TestRecordValidation(t *testing.T) {
	r := openTest(t)
	ctx := context.Background()
	tests := []struct {
		name string
		rec  PassRecord
	}{
		{"bad status", PassRecord{Kind: KindAudit, Status: "weird"}},
		{"bad kind", PassRecord{Kind: "restore", Status: models.StatusSuccess}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Record(ctx, tt.rec); err == nil {
				t.Error("expected an error")
			}
		})
	}
	if _, err := r.Recent(ctx, 0); err == nil {
		t.Error("expected an error for a zero limit")
	}
}

func TestFromReports(t *testing.T) {
	audit := &models.AuditReport{
		PassID: "x",
		Mode:   models.AuditSkip,
		Changes: []models.ChangeLogEntry{
			{Type: models.ChangeNewFile, Path: "a"},
			{Type: models.ChangeNewFolder, Path: "d"},
			{Type: models.ChangeDeletedFile, Path: "b"},
			{Type: models.ChangeDifferentHash, Path: "c"},
		},
		Status: models.StatusSuccess,
	}
	rec := FromAudit(audit, nil)
	if rec.Kind != KindAudit || rec.Mode != "skip" || rec.Copied != 2 || rec.Removed != 1 || rec.Changed != 1 {
		t.Errorf("audit record = %+v", rec)
	}

	backup := &models.BackupReport{PassID: "y", Status: models.StatusFailed}
	rec = FromBackup(backup, errors.New("scan failed"))
	if rec.Kind != KindBackup || rec.Error != "scan failed" {
		t.Errorf("backup record = %+v", rec)
	}

	r := openTest(t)
	if err := r.Record(context.Background(), rec); err != nil {
		t.Fatalf("Record: %v", err)
	}
}
