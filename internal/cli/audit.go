package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sdejongh/treewarden/pkg/audit"
	"github.com/sdejongh/treewarden/pkg/digest"
	"github.com/sdejongh/treewarden/pkg/history"
	"github.com/sdejongh/treewarden/pkg/logging"
	"github.com/sdejongh/treewarden/pkg/models"
	"github.com/sdejongh/treewarden/pkg/output"
)

// AuditFlags holds audit command flags
type AuditFlags struct {
	Root        string
	Compare     string
	Algorithm   string
	Mode        string
	Update      bool
	LegacyIndex bool
	PassFlags
}

var auditFlags AuditFlags

// NewAuditCommand creates the audit command
func NewAuditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check a tree against its digest index",
		Long: fmt.Sprintf(`Hash every file under root and report new, changed and deleted entries
against the per-directory digest index. With --compare, the stored index of
root is checked against the live content of a second tree instead.

Supported algorithms: %v`, digest.Algorithms()),
		RunE: runAudit,
	}

	// Required flags
	cmd.Flags().StringVarP(&auditFlags.Root, "root", "r", "", "directory to audit (required)")
	cmd.MarkFlagRequired("root")

	// Optional flags
	cmd.Flags().StringVarP(&auditFlags.Compare, "compare", "c", "", "second tree checked against the index of root")
	cmd.Flags().StringVarP(&auditFlags.Algorithm, "algorithm", "a", "", "digest algorithm (default from config: SHA3-512)")
	cmd.Flags().StringVarP(&auditFlags.Mode, "mode", "m", "", "audit mode: build, skip, compare")
	cmd.Flags().BoolVarP(&auditFlags.Update, "update", "u", true, "write the updated index back to disk")
	cmd.Flags().BoolVar(&auditFlags.LegacyIndex, "legacy-index", false, "also read index files without the algorithm in their name")
	addPassFlags(cmd, &auditFlags.PassFlags)

	return cmd
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := applyAuditFlags(cfg, &auditFlags, cmd.Flags()); err != nil {
		return err
	}

	operation, err := createAuditOperation(cfg, &auditFlags)
	if err != nil {
		return fmt.Errorf("failed to create audit operation: %w", err)
	}

	s, err := newSession(cfg, stdout)
	if err != nil {
		return err
	}
	defer s.Close()
	s.reportFormat = auditFlags.ReportFormat

	return s.repeat(ctx, func(ctx context.Context) error {
		return s.auditPass(ctx, operation)
	})
}

// auditPass runs one integrity pass under a fresh pass id
func (s *session) auditPass(ctx context.Context, template *models.AuditOperation) error {
	op := *template
	op.ID = uuid.New().String()

	engine, err := audit.NewEngine(&op, s.logger, createFormatter(s.cfg.Output, s.stdout))
	if err != nil {
		return err
	}

	report, runErr := engine.Run(ctx)
	s.record(ctx, history.FromAudit(report, runErr))

	if path := s.cfg.Audit.Report; path != "" {
		if err := output.WriteAuditReport(report, path, s.reportFormat); err != nil {
			s.logger.Error(ctx, "failed to write report", err, logging.Fields{"path": path})
		}
	}
	return runErr
}
