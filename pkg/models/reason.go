package models

import "sort"

// DiffReason explains why the copy/remove diff selected an entry
type DiffReason string

const (
	// ReasonNotInDestination indicates the source entry is absent from the destination
	ReasonNotInDestination DiffReason = "not_in_destination"
	// ReasonSizeDiffers indicates both files exist with different sizes
	ReasonSizeDiffers DiffReason = "size_differs"
	// ReasonContentDiffers indicates equal sizes but different bytes
	ReasonContentDiffers DiffReason = "content_differs"
	// ReasonLinkDiffers indicates two symbolic links pointing at different targets
	ReasonLinkDiffers DiffReason = "link_differs"
	// ReasonToRemove indicates a destination entry with no source counterpart
	ReasonToRemove DiffReason = "to_remove"
)

// Decision is one entry selected by the copy/remove diff
type Decision struct {
	Entry  *Entry
	Reason DiffReason
}

// ChangeType tags a change detected by the index diff
type ChangeType string

const (
	ChangeNewFile       ChangeType = "new_file"
	ChangeNewFolder     ChangeType = "new_folder"
	ChangeDeletedFile   ChangeType = "deleted_file"
	ChangeDeletedFolder ChangeType = "deleted_folder"
	ChangeDifferentHash ChangeType = "different_hash"
)

// ChangeTypes lists every change type in display order
var ChangeTypes = []ChangeType{
	ChangeNewFolder,
	ChangeNewFile,
	ChangeDifferentHash,
	ChangeDeletedFolder,
	ChangeDeletedFile,
}

// ChangeLogEntry is one change reported by the index diff
type ChangeLogEntry struct {
	Type ChangeType `json:"type"`
	Path string     `json:"path"`
}

// NewChange returns the "new" change type for a file or folder
func NewChange(isFolder bool) ChangeType {
	if isFolder {
		return ChangeNewFolder
	}
	return ChangeNewFile
}

// DeletedChange returns the "deleted" change type for a stored index value.
// An empty stored value marks a folder.
func DeletedChange(stored string) ChangeType {
	if stored == "" {
		return ChangeDeletedFolder
	}
	return ChangeDeletedFile
}

// SortChanges orders changes by path, then type, so reports are stable
// regardless of the order workers produced them.
func SortChanges(changes []ChangeLogEntry) {
	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Path != changes[j].Path {
			return changes[i].Path < changes[j].Path
		}
		return changes[i].Type < changes[j].Type
	})
}
