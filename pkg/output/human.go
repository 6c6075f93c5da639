package output

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/sdejongh/treewarden/pkg/models"
)

// HumanFormatter prints timestamped, colored lines for every event and a
// summary at the end of a pass
type HumanFormatter struct {
	writer  io.Writer
	verbose bool // also print decisions and copied/removed entries
	start   time.Time
	now     func() time.Time

	stamp   *color.Color
	success *color.Color
	info    *color.Color
	warning *color.Color
	failure *color.Color
}

// NewHumanFormatter creates a human-readable formatter writing to w.
// Colors are used only when useColor is set.
func NewHumanFormatter(w io.Writer, useColor, verbose bool) *HumanFormatter {
	f := &HumanFormatter{
		writer:  w,
		verbose: verbose,
		now:     time.Now,
		stamp:   color.New(color.FgHiBlack),
		success: color.New(color.FgGreen),
		info:    color.New(color.FgCyan),
		warning: color.New(color.FgYellow),
		failure: color.New(color.FgRed),
	}
	for _, c := range []*color.Color{f.stamp, f.success, f.info, f.warning, f.failure} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return f
}

// line writes "[hh:mm:ss.mmm] (Tag) message"
func (f *HumanFormatter) line(tag *color.Color, label, format string, args ...any) {
	fmt.Fprintf(f.writer, "%s%s %s\n",
		f.stamp.Sprintf("[%s] ", f.now().Format("15:04:05.000")),
		tag.Sprintf("(%s)", label),
		fmt.Sprintf(format, args...))
}

// Start initializes the formatter
func (f *HumanFormatter) Start(title string, totalItems int, totalBytes int64, workers int) error {
	f.start = f.now()
	if totalBytes > 0 {
		f.line(f.info, "Info", "%s: %d entries, %s, %d workers", title, totalItems, formatBytes(totalBytes), workers)
	} else {
		f.line(f.info, "Info", "%s: %d entries, %d workers", title, totalItems, workers)
	}
	return nil
}

// Progress reports one event
func (f *HumanFormatter) Progress(update ProgressUpdate) error {
	switch update.Type {
	case EventChange:
		f.line(f.changeColor(update.Change), "Change", "%s %s", changeLabel(update.Change), update.Path)
	case EventError:
		f.line(f.failure, "Error", "%s: %v", update.Path, update.Error)
	case EventDecision:
		if f.verbose {
			f.line(f.info, "Info", "%s %s (%s)", reasonLabel(update.Reason), update.Path, formatBytes(update.Bytes))
		}
	case EventCopied:
		if f.verbose {
			f.line(f.success, "Success", "copied %s (%s)", update.Path, formatBytes(update.Bytes))
		}
	case EventRemoved:
		if f.verbose {
			f.line(f.success, "Success", "removed %s", update.Path)
		}
	}
	return nil
}

func (f *HumanFormatter) changeColor(t models.ChangeType) *color.Color {
	switch t {
	case models.ChangeDifferentHash:
		return f.failure
	case models.ChangeDeletedFile, models.ChangeDeletedFolder:
		return f.warning
	default:
		return f.info
	}
}

// CompleteBackup displays the backup summary
func (f *HumanFormatter) CompleteBackup(report *models.BackupReport) error {
	s := report.Stats
	w := f.writer
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Backup completed in %s\n", report.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Summary:\n")
	fmt.Fprintf(w, "  Scanned:\n")
	fmt.Fprintf(w, "    Source:         %d entries\n", s.SourceEntries)
	fmt.Fprintf(w, "    Destination:    %d entries\n", s.DestEntries)
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Operations:\n")
	fmt.Fprintf(w, "    Files copied:       %d/%d (%s)\n", s.FilesCopied, s.FilesToCopy, formatBytes(s.BytesCopied))
	fmt.Fprintf(w, "    Folders created:    %d/%d\n", s.FoldersCopied, s.FoldersToCopy)
	fmt.Fprintf(w, "    Files removed:      %d/%d (%s)\n", s.FilesRemoved, s.FilesToRemove, formatBytes(s.BytesRemoved))
	fmt.Fprintf(w, "    Folders removed:    %d/%d\n", s.FoldersRemoved, s.FoldersToRemove)
	if report.QuarantinePath != "" {
		fmt.Fprintf(w, "    Quarantine:         %s\n", report.QuarantinePath)
	}
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Transfer:\n")
	fmt.Fprintf(w, "    Delta:          %s\n", formatDelta(s.Delta()))
	if report.Duration.Seconds() > 0 {
		avgSpeed := float64(s.BytesCopied) / report.Duration.Seconds()
		fmt.Fprintf(w, "    Average speed:  %s/s\n", formatBytes(int64(avgSpeed)))
	}
	if report.ArchivePath != "" {
		fmt.Fprintf(w, "    Archive:        %s\n", report.ArchivePath)
	}

	f.status(report.Status, report.Errors)
	return nil
}

// CompleteAudit displays the integrity summary
func (f *HumanFormatter) CompleteAudit(report *models.AuditReport) error {
	s := report.Stats
	w := f.writer
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Integrity pass (%s, %s) completed in %s\n", report.Mode, report.Algorithm, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Summary:\n")
	fmt.Fprintf(w, "  Scanned:          %d entries\n", s.EntriesScanned)
	fmt.Fprintf(w, "  Hashed:           %d/%d files (%s)\n", s.FilesHashed, s.FilesToHash, formatBytes(s.BytesHashed))
	fmt.Fprintf(w, "  Skipped:          %d\n", s.Skipped)
	if report.Updated {
		fmt.Fprintf(w, "  Indexes saved:    %d\n", s.IndexesSaved)
	}
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Changes:\n")
	for _, t := range models.ChangeTypes {
		fmt.Fprintf(w, "    %-18s %d\n", changeLabel(t)+":", report.Count(t))
	}

	f.status(report.Status, report.Errors)
	return nil
}

func (f *HumanFormatter) status(status models.PassStatus, errs []models.PassError) {
	c := f.success
	switch status {
	case models.StatusPartial:
		c = f.warning
	case models.StatusFailed:
		c = f.failure
	}
	fmt.Fprintf(f.writer, "\nStatus: %s\n", c.Sprint(status))

	if len(errs) > 0 {
		fmt.Fprintf(f.writer, "\nErrors:\n")
		for _, e := range errs {
			fmt.Fprintf(f.writer, "  %s (%s): %s\n", e.Path, e.Operation, e.Error)
		}
	}
}

// Error reports a fatal error
func (f *HumanFormatter) Error(err error) error {
	f.line(f.failure, "Error", "%v", err)
	return nil
}

// Name returns the formatter name
func (f *HumanFormatter) Name() string {
	return "human"
}

func changeLabel(t models.ChangeType) string {
	switch t {
	case models.ChangeNewFile:
		return "new file"
	case models.ChangeNewFolder:
		return "new folder"
	case models.ChangeDeletedFile:
		return "deleted file"
	case models.ChangeDeletedFolder:
		return "deleted folder"
	case models.ChangeDifferentHash:
		return "different hash"
	}
	return string(t)
}

func reasonLabel(r models.DiffReason) string {
	switch r {
	case models.ReasonNotInDestination:
		return "copy (missing)"
	case models.ReasonSizeDiffers:
		return "copy (size)"
	case models.ReasonContentDiffers:
		return "copy (content)"
	case models.ReasonLinkDiffers:
		return "copy (link)"
	case models.ReasonToRemove:
		return "remove"
	}
	return string(r)
}

// formatBytes formats bytes in human-readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func formatDelta(delta int64) string {
	if delta < 0 {
		return "-" + formatBytes(-delta)
	}
	return "+" + formatBytes(delta)
}
