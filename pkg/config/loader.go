package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sdejongh/treewarden/pkg/models"
)

// EnvPrefix prefixes the environment variables overriding configuration
// keys, e.g. TREEWARDEN_PERFORMANCE_MAX_WORKERS
const EnvPrefix = "TREEWARDEN"

// Load reads configuration from path, or from the default location when
// path is empty. A missing default file yields the defaults; environment
// variables are applied in both cases.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFromFile(path)
	}
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return load(newViper())
	}
	return LoadFromFile(path)
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return load(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())
	return v
}

// setDefaults registers every key so environment variables can override
// keys absent from the file
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("digest.algorithm", d.Digest.Algorithm)
	v.SetDefault("digest.legacy_index", d.Digest.LegacyIndex)

	v.SetDefault("performance.max_workers", d.Performance.MaxWorkers)
	v.SetDefault("performance.buffer_size", d.Performance.BufferSize)
	v.SetDefault("performance.bandwidth_limit", d.Performance.BandwidthLimit)

	v.SetDefault("backup.quarantine", d.Backup.Quarantine)
	v.SetDefault("backup.extensions", d.Backup.Extensions)
	v.SetDefault("backup.extensions_file", d.Backup.ExtensionsFile)
	v.SetDefault("backup.archive", d.Backup.Archive)
	v.SetDefault("backup.report", d.Backup.Report)

	v.SetDefault("audit.mode", string(d.Audit.Mode))
	v.SetDefault("audit.update", d.Audit.Update)
	v.SetDefault("audit.extensions", d.Audit.Extensions)
	v.SetDefault("audit.extensions_file", d.Audit.ExtensionsFile)
	v.SetDefault("audit.report", d.Audit.Report)

	v.SetDefault("schedule.delay", d.Schedule.Delay)

	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.progress", d.Output.Progress)
	v.SetDefault("output.quiet", d.Output.Quiet)
	v.SetDefault("output.color", d.Output.Color)

	v.SetDefault("logging.enabled", d.Logging.Enabled)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)

	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)
}

func load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration to a YAML file
func SaveToFile(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default configuration file path
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".config", "treewarden", "config.yaml"), nil
}

// ParseDelay converts a repeat delay to a duration. A bare number counts
// seconds; the suffixes s, m and h select seconds, minutes and hours. An
// empty string means no repeat.
func ParseDelay(s string) (time.Duration, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, nil
	}
	s = raw

	unit := time.Second
	switch s[len(s)-1] {
	case 's':
		s = s[:len(s)-1]
	case 'm':
		unit = time.Minute
		s = s[:len(s)-1]
	case 'h':
		unit = time.Hour
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid delay %q: expected a number optionally followed by s, m or h", raw)
	}
	return time.Duration(n) * unit, nil
}

// ParseBandwidth converts a limit such as "512K", "10M" or "1G" to bytes
// per second. Units are powers of 1024; a bare number counts bytes and an
// empty string means unlimited.
func ParseBandwidth(s string) (int64, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, nil
	}
	s = strings.TrimSuffix(strings.ToUpper(raw), "B")

	var unit int64 = 1
	if s != "" {
		switch s[len(s)-1] {
		case 'K':
			unit = 1 << 10
		case 'M':
			unit = 1 << 20
		case 'G':
			unit = 1 << 30
		}
		if unit > 1 {
			s = s[:len(s)-1]
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid bandwidth %q: expected a number optionally followed by K, M or G", raw)
	}
	return n * unit, nil
}

// LoadExtensions builds an extension filter from an inline list and an
// optional file holding one extension per line. Blank lines and lines
// starting with # are ignored; "all" matches every extension.
func LoadExtensions(inline []string, file string) (models.ExtensionFilter, error) {
	list := append([]string(nil), inline...)
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return models.ExtensionFilter{}, fmt.Errorf("failed to open extension list: %w", err)
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			list = append(list, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return models.ExtensionFilter{}, fmt.Errorf("failed to read extension list: %w", err)
		}
	}
	return models.NewExtensionFilter(list), nil
}
