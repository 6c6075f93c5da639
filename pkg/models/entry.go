package models

import (
	"path"
	"sort"
	"time"
)

// Entry represents one filesystem object observed during a snapshot.
// Entries are never mutated after the snapshot builder creates them.
type Entry struct {
	// RelativePath is the root-relative path, always using forward slashes
	RelativePath string

	// AbsolutePath is the full path on the filesystem
	AbsolutePath string

	// IsFolder indicates if this is a directory
	IsFolder bool

	// Size in bytes (zero for folders)
	Size int64

	// ModTime is the last modification time
	ModTime time.Time

	// Permissions are the file mode bits
	Permissions uint32

	// Extension is the file extension including the leading dot, empty if none
	Extension string

	// LinkTarget is the target of a symbolic link, empty for anything else.
	// Links are recorded as links and never followed.
	LinkTarget string
}

// IsLink reports whether the entry is a symbolic link
func (e *Entry) IsLink() bool {
	return e.LinkTarget != ""
}

// Dir returns the root-relative directory holding the entry ("" for the root)
func (e *Entry) Dir() string {
	dir, _ := SplitRelative(e.RelativePath)
	return dir
}

// Name returns the last element of the relative path
func (e *Entry) Name() string {
	_, name := SplitRelative(e.RelativePath)
	return name
}

// SplitRelative splits a root-relative path into its directory and name.
// Entries directly under the root have an empty directory.
func SplitRelative(rel string) (dir, name string) {
	dir, name = path.Split(rel)
	if len(dir) > 0 {
		dir = dir[:len(dir)-1]
	}
	return dir, name
}

// JoinRelative is the inverse of SplitRelative
func JoinRelative(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// Snapshot maps relative path to entry for one tree at one point in time
type Snapshot map[string]*Entry

// SortedPaths returns every relative path in lexical order.
// Parents always sort before their children.
func (s Snapshot) SortedPaths() []string {
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Folders returns the relative paths of all folders plus the root ("")
func (s Snapshot) Folders() []string {
	dirs := []string{""}
	for _, p := range s.SortedPaths() {
		if s[p].IsFolder {
			dirs = append(dirs, p)
		}
	}
	return dirs
}

// Clone returns a shallow copy; entries are shared since they are immutable
func (s Snapshot) Clone() Snapshot {
	c := make(Snapshot, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

// Counts returns the number of files and folders and the total file size
func (s Snapshot) Counts() (files, folders int, bytes int64) {
	for _, e := range s {
		if e.IsFolder {
			folders++
			continue
		}
		files++
		bytes += e.Size
	}
	return files, folders, bytes
}
