package config

import (
	"strings"

	"github.com/sdejongh/treewarden/pkg/digest"
	"github.com/sdejongh/treewarden/pkg/models"
)

// Config represents the application configuration
type Config struct {
	Digest      DigestConfig      `yaml:"digest" mapstructure:"digest"`
	Performance PerformanceConfig `yaml:"performance" mapstructure:"performance"`
	Backup      BackupConfig      `yaml:"backup" mapstructure:"backup"`
	Audit       AuditConfig       `yaml:"audit" mapstructure:"audit"`
	Schedule    ScheduleConfig    `yaml:"schedule" mapstructure:"schedule"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
	Logging     LoggingConfig     `yaml:"logging" mapstructure:"logging"`
	History     HistoryConfig     `yaml:"history" mapstructure:"history"`
}

// DigestConfig selects the hash algorithm of the integrity index
type DigestConfig struct {
	Algorithm   string `yaml:"algorithm" mapstructure:"algorithm"`
	LegacyIndex bool   `yaml:"legacy_index" mapstructure:"legacy_index"` // also read the algorithm-less sidecar name
}

// PerformanceConfig holds performance-related settings
type PerformanceConfig struct {
	MaxWorkers     int   `yaml:"max_workers" mapstructure:"max_workers"`
	BufferSize     int   `yaml:"buffer_size" mapstructure:"buffer_size"`
	BandwidthLimit int64 `yaml:"bandwidth_limit" mapstructure:"bandwidth_limit"` // bytes per second, 0 = unlimited
}

// BackupConfig holds backup-related settings
type BackupConfig struct {
	Quarantine     string   `yaml:"quarantine" mapstructure:"quarantine"`
	Extensions     []string `yaml:"extensions" mapstructure:"extensions"`           // compared byte-for-byte when sizes match
	ExtensionsFile string   `yaml:"extensions_file" mapstructure:"extensions_file"` // one extension per line
	Archive        bool     `yaml:"archive" mapstructure:"archive"`
	Report         string   `yaml:"report" mapstructure:"report"`
}

// AuditConfig holds integrity-related settings
type AuditConfig struct {
	Mode           models.AuditMode `yaml:"mode" mapstructure:"mode"`
	Update         bool             `yaml:"update" mapstructure:"update"`
	Extensions     []string         `yaml:"extensions" mapstructure:"extensions"`
	ExtensionsFile string           `yaml:"extensions_file" mapstructure:"extensions_file"`
	Report         string           `yaml:"report" mapstructure:"report"`
}

// ScheduleConfig holds the repeat delay, e.g. "100", "100s", "15m", "7h"
type ScheduleConfig struct {
	Delay string `yaml:"delay" mapstructure:"delay"`
}

// OutputConfig holds output-related settings
type OutputConfig struct {
	Format   string `yaml:"format" mapstructure:"format"`     // "human" or "json"
	Progress bool   `yaml:"progress" mapstructure:"progress"` // Show progress bars
	Quiet    bool   `yaml:"quiet" mapstructure:"quiet"`       // Suppress non-error output
	Color    bool   `yaml:"color" mapstructure:"color"`
}

// LoggingConfig holds logging-related settings
type LoggingConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	Format     string `yaml:"format" mapstructure:"format"` // "json" or "text"
	Level      string `yaml:"level" mapstructure:"level"`   // "debug", "info", "warn", "error"
	File       string `yaml:"file" mapstructure:"file"`     // Log file path (empty = platform default)
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// HistoryConfig holds the pass history database settings
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"` // empty = platform default
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Digest: DigestConfig{
			Algorithm: digest.DefaultAlgorithm,
		},
		Performance: PerformanceConfig{
			MaxWorkers:     models.DefaultWorkers,
			BufferSize:     65536,
			BandwidthLimit: 0,
		},
		Backup: BackupConfig{
			Extensions: []string{},
		},
		Audit: AuditConfig{
			Mode:       models.AuditBuild,
			Update:     true,
			Extensions: []string{"all"},
		},
		Output: OutputConfig{
			Format:   "human",
			Progress: true,
			Quiet:    false,
			Color:    true,
		},
		Logging: LoggingConfig{
			Enabled:    false,
			Format:     "json",
			Level:      "info",
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		History: HistoryConfig{
			Enabled: false,
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !digest.Supports(c.Digest.Algorithm) {
		return &models.ValidationError{
			Field:   "digest.algorithm",
			Message: "must be one of " + strings.Join(digest.Algorithms(), ", "),
		}
	}

	if c.Performance.MaxWorkers < models.MinWorkers || c.Performance.MaxWorkers > models.MaxWorkers {
		return &models.ValidationError{
			Field:   "performance.max_workers",
			Message: "must be between 1 and 16",
		}
	}

	if c.Performance.BufferSize < 1024 {
		return &models.ValidationError{
			Field:   "performance.buffer_size",
			Message: "must be at least 1024 bytes",
		}
	}

	if c.Performance.BandwidthLimit < 0 {
		return &models.ValidationError{
			Field:   "performance.bandwidth_limit",
			Message: "must not be negative",
		}
	}

	switch c.Audit.Mode {
	case models.AuditBuild, models.AuditSkip, models.AuditCompare:
	default:
		return &models.ValidationError{
			Field:   "audit.mode",
			Message: "must be 'build', 'skip', or 'compare'",
		}
	}

	if _, err := ParseDelay(c.Schedule.Delay); err != nil {
		return &models.ValidationError{
			Field:   "schedule.delay",
			Message: err.Error(),
		}
	}

	validFormats := map[string]bool{"human": true, "json": true}
	if !validFormats[c.Output.Format] {
		return &models.ValidationError{
			Field:   "output.format",
			Message: "must be 'human' or 'json'",
		}
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return &models.ValidationError{
			Field:   "logging.format",
			Message: "must be 'json' or 'text'",
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return &models.ValidationError{
			Field:   "logging.level",
			Message: "must be 'debug', 'info', 'warn', or 'error'",
		}
	}

	return nil
}
