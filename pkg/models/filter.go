package models

import (
	"sort"
	"strings"
)

// ExtensionFilter is an allow-list of file extensions.
// The zero value matches nothing.
type ExtensionFilter struct {
	all  bool
	exts map[string]struct{}
}

// AllExtensions returns a filter matching every extension
func AllExtensions() ExtensionFilter {
	return ExtensionFilter{all: true}
}

// NewExtensionFilter builds a filter from a list such as [".txt", "jpg"].
// The word "all" anywhere in the list matches every extension.
// Matching ignores case and the leading dot is optional.
func NewExtensionFilter(list []string) ExtensionFilter {
	f := ExtensionFilter{exts: make(map[string]struct{})}
	for _, raw := range list {
		ext := strings.TrimSpace(raw)
		if ext == "" || strings.HasPrefix(ext, "#") {
			continue
		}
		if strings.EqualFold(ext, "all") {
			return AllExtensions()
		}
		f.exts[normalizeExt(ext)] = struct{}{}
	}
	return f
}

// Matches reports whether ext is allowed
func (f ExtensionFilter) Matches(ext string) bool {
	if f.all {
		return true
	}
	if len(f.exts) == 0 {
		return false
	}
	_, ok := f.exts[normalizeExt(ext)]
	return ok
}

// IsAll reports whether the filter matches every extension
func (f ExtensionFilter) IsAll() bool {
	return f.all
}

// IsEmpty reports whether the filter matches nothing
func (f ExtensionFilter) IsEmpty() bool {
	return !f.all && len(f.exts) == 0
}

// String renders the filter for logs
func (f ExtensionFilter) String() string {
	if f.all {
		return "all"
	}
	if len(f.exts) == 0 {
		return "none"
	}
	list := make([]string, 0, len(f.exts))
	for e := range f.exts {
		list = append(list, e)
	}
	sort.Strings(list)
	return strings.Join(list, ",")
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
