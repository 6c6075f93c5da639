package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sdejongh/treewarden/pkg/history"
	"github.com/sdejongh/treewarden/pkg/logging"
	"github.com/sdejongh/treewarden/pkg/models"
	"github.com/sdejongh/treewarden/pkg/output"
	"github.com/sdejongh/treewarden/pkg/sync"
)

// BackupFlags holds backup command flags
type BackupFlags struct {
	Source     string
	Dest       string
	Quarantine string
	Archive    bool
	Bandwidth  string
	PassFlags
}

var backupFlags BackupFlags

// NewBackupCommand creates the backup command
func NewBackupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Mirror a source tree into a destination",
		Long: `Copy new and changed entries from source to destination and remove
destination entries that no longer exist in source. Removed entries are
moved to the quarantine folder when one is set.`,
		RunE: runBackup,
	}

	// Required flags
	cmd.Flags().StringVarP(&backupFlags.Source, "source", "s", "", "source directory path (required)")
	cmd.Flags().StringVarP(&backupFlags.Dest, "dest", "d", "", "destination directory path (required)")
	cmd.MarkFlagRequired("source")
	cmd.MarkFlagRequired("dest")

	// Optional flags
	cmd.Flags().StringVar(&backupFlags.Quarantine, "quarantine", "", "move removed entries here instead of deleting them")
	cmd.Flags().BoolVar(&backupFlags.Archive, "archive", false, "zip the source into <dest>-backups after each pass")
	cmd.Flags().StringVarP(&backupFlags.Bandwidth, "bandwidth", "b", "", "bandwidth limit (e.g., \"10M\", \"1G\")")
	addPassFlags(cmd, &backupFlags.PassFlags)

	return cmd
}

func runBackup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with command-line flags
	if err := applyBackupFlags(cfg, &backupFlags, cmd.Flags()); err != nil {
		return err
	}

	// Create backup operation
	operation, err := createBackupOperation(cfg, &backupFlags)
	if err != nil {
		return fmt.Errorf("failed to create backup operation: %w", err)
	}

	s, err := newSession(cfg, stdout)
	if err != nil {
		return err
	}
	defer s.Close()
	s.reportFormat = backupFlags.ReportFormat

	return s.repeat(ctx, func(ctx context.Context) error {
		return s.backupPass(ctx, operation)
	})
}

// backupPass runs one backup pass under a fresh pass id
func (s *session) backupPass(ctx context.Context, template *models.BackupOperation) error {
	op := *template
	op.ID = uuid.New().String()

	engine, err := sync.NewEngine(&op, s.logger, createFormatter(s.cfg.Output, s.stdout))
	if err != nil {
		return err
	}

	report, runErr := engine.Run(ctx)
	s.record(ctx, history.FromBackup(report, runErr))

	if path := s.cfg.Backup.Report; path != "" {
		if err := output.WriteBackupReport(report, path, s.reportFormat); err != nil {
			s.logger.Error(ctx, "failed to write report", err, logging.Fields{"path": path})
		}
	}
	return runErr
}
