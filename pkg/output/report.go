package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/pgzip"

	"github.com/sdejongh/treewarden/pkg/models"
)

// WriteBackupReport writes the copy/remove decisions of a pass to path.
// Format can be "human" or "json"; a ".gz" suffix compresses the file.
func WriteBackupReport(report *models.BackupReport, path, format string) error {
	return writeReport(path, func(w io.Writer) error {
		if format == "json" {
			return encodeJSON(w, backupDocument(report, nil))
		}
		return writeBackupHuman(report, w)
	})
}

// WriteAuditReport writes the change log of a pass to path.
// Format can be "human" or "json"; a ".gz" suffix compresses the file.
func WriteAuditReport(report *models.AuditReport, path, format string) error {
	return writeReport(path, func(w io.Writer) error {
		if format == "json" {
			return encodeJSON(w, auditDocument(report))
		}
		return writeAuditHuman(report, w)
	})
}

func writeReport(path string, write func(io.Writer) error) (retErr error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("failed to close report file: %w", err)
		}
	}()

	bw := bufio.NewWriter(file)
	var w io.Writer = bw
	var gz *pgzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = pgzip.NewWriter(bw)
		w = gz
	}

	if err := write(w); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("failed to compress report: %w", err)
		}
	}
	return bw.Flush()
}

func writeBackupHuman(report *models.BackupReport, w io.Writer) error {
	fmt.Fprintf(w, "Backup Report\n")
	fmt.Fprintf(w, "=============\n\n")
	fmt.Fprintf(w, "Pass:        %s\n", report.PassID)
	fmt.Fprintf(w, "Generated:   %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(w, "Source:      %s\n", report.SourcePath)
	fmt.Fprintf(w, "Destination: %s\n", report.DestPath)
	if report.QuarantinePath != "" {
		fmt.Fprintf(w, "Quarantine:  %s\n", report.QuarantinePath)
	}
	fmt.Fprintf(w, "Status:      %s\n\n", report.Status)

	section(w, "To Copy", len(report.ToCopy))
	for _, d := range report.ToCopy {
		fmt.Fprintf(w, "  %-16s %s (%s)\n", d.Reason, d.Entry.RelativePath, formatBytes(d.Entry.Size))
	}
	section(w, "To Remove", len(report.ToRemove))
	for _, d := range report.ToRemove {
		fmt.Fprintf(w, "  %s\n", d.Entry.RelativePath)
	}
	return writeErrors(w, report.Errors)
}

func writeAuditHuman(report *models.AuditReport, w io.Writer) error {
	fmt.Fprintf(w, "Integrity Report\n")
	fmt.Fprintf(w, "================\n\n")
	fmt.Fprintf(w, "Pass:      %s\n", report.PassID)
	fmt.Fprintf(w, "Generated: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(w, "Root:      %s\n", report.RootPath)
	if report.ComparePath != "" {
		fmt.Fprintf(w, "Compared:  %s\n", report.ComparePath)
	}
	fmt.Fprintf(w, "Mode:      %s\n", report.Mode)
	fmt.Fprintf(w, "Algorithm: %s\n", report.Algorithm)
	fmt.Fprintf(w, "Status:    %s\n\n", report.Status)

	byType := make(map[models.ChangeType][]string)
	for _, c := range report.Changes {
		byType[c.Type] = append(byType[c.Type], c.Path)
	}
	for _, t := range models.ChangeTypes {
		paths := byType[t]
		if len(paths) == 0 {
			continue
		}
		section(w, strings.ToUpper(changeLabel(t)[:1])+changeLabel(t)[1:], len(paths))
		for _, p := range paths {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
	return writeErrors(w, report.Errors)
}

func section(w io.Writer, title string, n int) {
	label := fmt.Sprintf("%s (%d)", title, n)
	fmt.Fprintf(w, "\n%s\n%s\n", label, strings.Repeat("-", len(label)))
}

func writeErrors(w io.Writer, errs []models.PassError) error {
	if len(errs) == 0 {
		return nil
	}
	section(w, "Errors", len(errs))
	for _, e := range errs {
		if _, err := fmt.Fprintf(w, "  %s (%s): %s\n", e.Path, e.Operation, e.Error); err != nil {
			return err
		}
	}
	return nil
}
