package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/sdejongh/treewarden/internal/platform"
	"github.com/sdejongh/treewarden/pkg/config"
	"github.com/sdejongh/treewarden/pkg/digest"
	"github.com/sdejongh/treewarden/pkg/models"
)

// loadConfig loads configuration from file or returns default
func loadConfig() (*config.Config, error) {
	return config.Load(globalFlags.ConfigFile)
}

// applyPassFlags overrides config values with the shared pass flags
func applyPassFlags(cfg *config.Config, f *PassFlags) {
	// Workers; the range check happens in Validate
	if f.Threads != 0 {
		cfg.Performance.MaxWorkers = f.Threads
	}

	if f.Delay != "" {
		cfg.Schedule.Delay = f.Delay
	}

	// Output format
	if f.Output != "" {
		cfg.Output.Format = f.Output
	}

	if f.History {
		cfg.History.Enabled = true
	}

	// A log file on the command line enables logging
	if f.LogFile != "" {
		cfg.Logging.Enabled = true
		cfg.Logging.File = f.LogFile
	}
	if f.LogFormat != "" {
		cfg.Logging.Format = f.LogFormat
	}
	if f.LogLevel != "" {
		cfg.Logging.Level = f.LogLevel
	}

	// Disable progress in quiet mode
	if globalFlags.Quiet {
		cfg.Output.Progress = false
		cfg.Output.Quiet = true
	}

	// Verbose mode lists every decision, which a progress bar would hide
	if globalFlags.Verbose {
		cfg.Output.Progress = false
	}

	if globalFlags.NoColor {
		cfg.Output.Color = false
	}
}

// applyBackupFlags overrides the backup section with command-line flags
func applyBackupFlags(cfg *config.Config, f *BackupFlags, flags *pflag.FlagSet) error {
	applyPassFlags(cfg, &f.PassFlags)

	if f.Quarantine != "" {
		cfg.Backup.Quarantine = f.Quarantine
	}
	if flags.Changed("archive") {
		cfg.Backup.Archive = f.Archive
	}
	if f.Bandwidth != "" {
		limit, err := config.ParseBandwidth(f.Bandwidth)
		if err != nil {
			return err
		}
		cfg.Performance.BandwidthLimit = limit
	}
	if len(f.Extensions) > 0 {
		cfg.Backup.Extensions = f.Extensions
	}
	if f.ExtensionsFile != "" {
		cfg.Backup.ExtensionsFile = f.ExtensionsFile
	}
	if f.Report != "" {
		cfg.Backup.Report = f.Report
	}

	return cfg.Validate()
}

// applyAuditFlags overrides the digest and audit sections with command-line flags
func applyAuditFlags(cfg *config.Config, f *AuditFlags, flags *pflag.FlagSet) error {
	applyPassFlags(cfg, &f.PassFlags)

	if f.Algorithm != "" {
		cfg.Digest.Algorithm = f.Algorithm
	}
	if flags.Changed("legacy-index") {
		cfg.Digest.LegacyIndex = f.LegacyIndex
	}

	// A second root implies compare mode, which never writes the index
	switch {
	case f.Mode != "":
		cfg.Audit.Mode = models.AuditMode(strings.ToLower(f.Mode))
	case f.Compare != "":
		cfg.Audit.Mode = models.AuditCompare
	}
	if flags.Changed("update") {
		cfg.Audit.Update = f.Update
	} else if cfg.Audit.Mode == models.AuditCompare {
		cfg.Audit.Update = false
	}

	if len(f.Extensions) > 0 {
		cfg.Audit.Extensions = f.Extensions
	}
	if f.ExtensionsFile != "" {
		cfg.Audit.ExtensionsFile = f.ExtensionsFile
	}
	if f.Report != "" {
		cfg.Audit.Report = f.Report
	}

	return cfg.Validate()
}

// createBackupOperation creates a backup operation from configuration
func createBackupOperation(cfg *config.Config, f *BackupFlags) (*models.BackupOperation, error) {
	source, err := platform.ResolveRoot(f.Source)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}

	// The destination is created by the engine when missing
	dest, err := platform.Absolute(f.Dest)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}
	if platform.Nested(source, dest) {
		return nil, fmt.Errorf("source and destination cannot contain each other: %s, %s", source, dest)
	}

	var quarantine string
	if cfg.Backup.Quarantine != "" {
		if quarantine, err = platform.Absolute(cfg.Backup.Quarantine); err != nil {
			return nil, fmt.Errorf("quarantine: %w", err)
		}
	}

	extensions, err := config.LoadExtensions(cfg.Backup.Extensions, cfg.Backup.ExtensionsFile)
	if err != nil {
		return nil, err
	}

	operation := &models.BackupOperation{
		ID:             uuid.New().String(),
		SourcePath:     source,
		DestPath:       dest,
		QuarantinePath: quarantine,
		ContentCheck:   extensions,
		MaxWorkers:     cfg.Performance.MaxWorkers,
		BufferSize:     cfg.Performance.BufferSize,
		BandwidthLimit: cfg.Performance.BandwidthLimit,
		Archive:        cfg.Backup.Archive,
		CreatedAt:      time.Now(),
	}

	if err := operation.Validate(); err != nil {
		return nil, err
	}

	return operation, nil
}

// createAuditOperation creates an integrity operation from configuration
func createAuditOperation(cfg *config.Config, f *AuditFlags) (*models.AuditOperation, error) {
	root, err := platform.ResolveRoot(f.Root)
	if err != nil {
		return nil, fmt.Errorf("root: %w", err)
	}

	var compareRoot string
	if f.Compare != "" {
		if compareRoot, err = platform.ResolveRoot(f.Compare); err != nil {
			return nil, fmt.Errorf("compare root: %w", err)
		}
	}

	algorithm, err := digest.Canonical(cfg.Digest.Algorithm)
	if err != nil {
		return nil, err
	}

	// An empty allow-list audits every file
	extensions, err := config.LoadExtensions(cfg.Audit.Extensions, cfg.Audit.ExtensionsFile)
	if err != nil {
		return nil, err
	}
	if extensions.IsEmpty() {
		extensions = models.AllExtensions()
	}

	operation := &models.AuditOperation{
		ID:          uuid.New().String(),
		RootPath:    root,
		ComparePath: compareRoot,
		Algorithm:   algorithm,
		Mode:        cfg.Audit.Mode,
		Update:      cfg.Audit.Update,
		Extensions:  extensions,
		LegacyIndex: cfg.Digest.LegacyIndex,
		MaxWorkers:  cfg.Performance.MaxWorkers,
		BufferSize:  cfg.Performance.BufferSize,
		CreatedAt:   time.Now(),
	}

	if err := operation.Validate(); err != nil {
		return nil, err
	}

	return operation, nil
}
