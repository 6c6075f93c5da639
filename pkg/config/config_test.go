package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sdejongh/treewarden/pkg/models"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default configuration invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"unknown algorithm", func(c *Config) { c.Digest.Algorithm = "MD5" }, "digest.algorithm"},
		{"lowercase algorithm", func(c *Config) { c.Digest.Algorithm = "sha-256" }, ""},
		{"zero workers", func(c *Config) { c.Performance.MaxWorkers = 0 }, "performance.max_workers"},
		{"too many workers", func(c *Config) { c.Performance.MaxWorkers = 17 }, "performance.max_workers"},
		{"small buffer", func(c *Config) { c.Performance.BufferSize = 100 }, "performance.buffer_size"},
		{"bad mode", func(c *Config) { c.Audit.Mode = "rebuild" }, "audit.mode"},
		{"bad delay", func(c *Config) { c.Schedule.Delay = "5d" }, "schedule.delay"},
		{"bad output", func(c *Config) { c.Output.Format = "xml" }, "output.format"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *models.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %s, want %s", verr.Field, tt.field)
			}
		})
	}
}

func TestParseDelay(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"100", 100 * time.Second, false},
		{"100s", 100 * time.Second, false},
		{"15m", 15 * time.Minute, false},
		{"7h", 7 * time.Hour, false},
		{" 3m ", 3 * time.Minute, false},
		{"5d", 0, true},
		{"m", 0, true},
		{"-5", 0, true},
		{"1.5h", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDelay(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDelay(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDelay(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseBandwidth(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"2048", 2048, false},
		{"512K", 512 << 10, false},
		{"10M", 10 << 20, false},
		{"10mb", 10 << 20, false},
		{"1G", 1 << 30, false},
		{"B", 0, true},
		{"fast", 0, true},
		{"-1M", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBandwidth(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBandwidth(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseBandwidth(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Digest.Algorithm = "BLAKE3"
	cfg.Performance.MaxWorkers = 8
	cfg.Backup.Extensions = []string{".jpg", ".png"}
	cfg.Schedule.Delay = "15m"

	if err := SaveToFile(cfg, path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}
	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if loaded.Digest.Algorithm != "BLAKE3" || loaded.Performance.MaxWorkers != 8 || loaded.Schedule.Delay != "15m" {
		t.Errorf("loaded = %+v", loaded)
	}
	if len(loaded.Backup.Extensions) != 2 || loaded.Backup.Extensions[1] != ".png" {
		t.Errorf("extensions = %v", loaded.Backup.Extensions)
	}
	if loaded.Audit.Mode != models.AuditBuild || !loaded.Audit.Update {
		t.Errorf("audit defaults lost: %+v", loaded.Audit)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "performance:\n  max_workers: 2\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Performance.MaxWorkers != 2 {
		t.Errorf("max_workers = %d", cfg.Performance.MaxWorkers)
	}
	if cfg.Performance.BufferSize != 65536 || cfg.Output.Format != "human" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadEnvironmentOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("performance:\n  max_workers: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TREEWARDEN_PERFORMANCE_MAX_WORKERS", "12")
	t.Setenv("TREEWARDEN_DIGEST_ALGORITHM", "SHA-512")

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Performance.MaxWorkers != 12 {
		t.Errorf("max_workers = %d, want 12 from environment", cfg.Performance.MaxWorkers)
	}
	if cfg.Digest.Algorithm != "SHA-512" {
		t.Errorf("algorithm = %s", cfg.Digest.Algorithm)
	}
}

func TestLoadMissingDefault(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Digest.Algorithm != Default().Digest.Algorithm {
		t.Errorf("algorithm = %s", cfg.Digest.Algorithm)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("performance:\n  max_workers: 99\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected a validation error")
	}
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing explicit file")
	}
}

func TestLoadExtensions(t *testing.T) {
	file := filepath.Join(t.TempDir(), "ext.txt")
	content := "# media\n.JPG\n\npng\n"
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := LoadExtensions([]string{"txt"}, file)
	if err != nil {
		t.Fatalf("LoadExtensions: %v", err)
	}
	for _, ext := range []string{".txt", ".jpg", ".PNG"} {
		if !f.Matches(ext) {
			t.Errorf("%s should match", ext)
		}
	}
	if f.Matches(".gif") {
		t.Error(".gif should not match")
	}

	all, err := LoadExtensions([]string{"all"}, "")
	if err != nil || !all.IsAll() {
		t.Errorf("all filter = %v, %v", all, err)
	}

	if _, err := LoadExtensions(nil, filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected an error for a missing list file")
	}
}
