package output

import (
	"io"
	"os"
	"runtime"
	"time"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/term"

	"github.com/sdejongh/treewarden/pkg/models"
)

const progressTemplate = `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{speed . }} {{rtime . "ETA %s"}}`

// updateInterval returns the bar refresh interval based on OS.
// Windows terminals have higher latency with ANSI sequences.
func updateInterval() time.Duration {
	if runtime.GOOS == "windows" {
		return 300 * time.Millisecond
	}
	return 100 * time.Millisecond
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// ProgressFormatter draws a progress bar while a pass runs and prints the
// human summary once it completes. Events that would garble the bar are
// held back and printed after it finishes.
type ProgressFormatter struct {
	writer  io.Writer
	human   *HumanFormatter
	bar     *pb.ProgressBar
	bytes   bool // bar counts bytes rather than entries
	pending []ProgressUpdate
}

// NewProgressFormatter creates a progress bar formatter writing to w
func NewProgressFormatter(w io.Writer, useColor bool) *ProgressFormatter {
	return &ProgressFormatter{
		writer: w,
		human:  NewHumanFormatter(w, useColor, false),
	}
}

// Start initializes the bar for a new pass
func (f *ProgressFormatter) Start(title string, totalItems int, totalBytes int64, workers int) error {
	f.finish()
	f.pending = f.pending[:0]
	f.human.Start(title, totalItems, totalBytes, workers)

	f.bytes = totalBytes > 0
	total := int64(totalItems)
	if f.bytes {
		total = totalBytes
	}
	bar := pb.New64(total)
	bar.SetTemplateString(progressTemplate)
	bar.SetWriter(f.writer)
	bar.SetRefreshRate(updateInterval())
	bar.Set(pb.Bytes, f.bytes)
	bar.Set(pb.Terminal, IsTerminal(f.writer))
	bar.Set("prefix", "")
	f.bar = bar.Start()
	return nil
}

// Progress moves the bar and holds back events
func (f *ProgressFormatter) Progress(update ProgressUpdate) error {
	switch update.Type {
	case EventProgress:
		if f.bar == nil {
			return nil
		}
		if f.bytes {
			f.bar.SetTotal(update.TotalBytes)
			f.bar.SetCurrent(update.DoneBytes)
		} else {
			f.bar.SetTotal(int64(update.TotalItems))
			f.bar.SetCurrent(int64(update.DoneItems))
		}
	case EventChange, EventError:
		f.pending = append(f.pending, update)
	}
	return nil
}

func (f *ProgressFormatter) finish() {
	if f.bar == nil {
		return
	}
	f.bar.Finish()
	f.bar = nil
	for _, u := range f.pending {
		f.human.Progress(u)
	}
	f.pending = f.pending[:0]
}

// CompleteBackup stops the bar and displays the summary
func (f *ProgressFormatter) CompleteBackup(report *models.BackupReport) error {
	f.finish()
	return f.human.CompleteBackup(report)
}

// CompleteAudit stops the bar and displays the summary
func (f *ProgressFormatter) CompleteAudit(report *models.AuditReport) error {
	f.finish()
	return f.human.CompleteAudit(report)
}

// Error stops the bar and reports a fatal error
func (f *ProgressFormatter) Error(err error) error {
	f.finish()
	return f.human.Error(err)
}

// Name returns the formatter name
func (f *ProgressFormatter) Name() string {
	return "progress"
}
