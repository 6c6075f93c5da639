package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const appName = "treewarden"

// NormalizePath normalizes a path for the current platform
func NormalizePath(path string) string {
	// Convert to platform-specific separators
	normalized := filepath.Clean(path)

	// On Windows, ensure UNC paths are preserved
	if runtime.GOOS == "windows" {
		if strings.HasPrefix(path, "\\\\") && !strings.HasPrefix(normalized, "\\\\") {
			normalized = "\\\\" + normalized
		}
	}

	return normalized
}

// IsUNCPath checks if a path is a UNC path (Windows network share)
func IsUNCPath(path string) bool {
	if runtime.GOOS != "windows" {
		return false
	}
	return strings.HasPrefix(path, "\\\\") || strings.HasPrefix(path, "//")
}

// Absolute resolves path against the working directory unless it is
// already absolute or a UNC path
func Absolute(path string) (string, error) {
	if err := ValidatePath(path); err != nil {
		return "", err
	}
	if IsUNCPath(path) {
		return NormalizePath(path), nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &PathError{Path: path, Message: err.Error()}
	}
	return NormalizePath(abs), nil
}

// ResolveRoot returns the absolute form of a root that must exist and be a
// directory
func ResolveRoot(path string) (string, error) {
	abs, err := Absolute(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return "", &PathError{Path: path, Message: "does not exist"}
	}
	if err != nil {
		return "", &PathError{Path: path, Message: err.Error()}
	}
	if !info.IsDir() {
		return "", &PathError{Path: path, Message: "is not a directory"}
	}
	return abs, nil
}

// Nested reports whether one of two absolute paths contains the other
func Nested(a, b string) bool {
	a, b = NormalizePath(a), NormalizePath(b)
	if a == b {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(a, strings.TrimSuffix(b, sep)+sep) ||
		strings.HasPrefix(b, strings.TrimSuffix(a, sep)+sep)
}

// DataDir returns the per-user directory holding logs and history
func DataDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(dir, appName), nil
}

// DefaultLogPath returns the log file used when logging is enabled without
// an explicit file
func DefaultLogPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs", appName+".log"), nil
}

// DefaultHistoryPath returns the pass history database location
func DefaultHistoryPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// ValidatePath checks if a path is valid for the current platform
func ValidatePath(path string) error {
	if path == "" {
		return &PathError{Path: path, Message: "path is empty"}
	}

	// Check for invalid characters based on OS
	if runtime.GOOS == "windows" {
		invalidChars := []string{"<", ">", "\"", "|", "?", "*"}
		for _, char := range invalidChars {
			if strings.Contains(path, char) && !IsUNCPath(path) {
				return &PathError{Path: path, Message: "path contains invalid character: " + char}
			}
		}
	}

	return nil
}

// PathError represents a path validation error
type PathError struct {
	Path    string
	Message string
}

func (e *PathError) Error() string {
	return "invalid path '" + e.Path + "': " + e.Message
}
