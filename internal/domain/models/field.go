package models

import "time"

// NodeField names a single column group of FolderNode that can be rewritten in place
type NodeField int

const (
	FieldName NodeField = iota
	FieldParent
	FieldIdentifier
	FieldLastModified // last_modified together with modified_by
)

func (f NodeField) String() string {
	switch f {
	case FieldName:
		return "name"
	case FieldParent:
		return "parent"
	case FieldIdentifier:
		return "identifier"
	case FieldLastModified:
		return "last_modified"
	default:
		return "unknown"
	}
}

// FieldUpdate is a targeted single-field rewrite of one node.
// Only the value matching Field is read.
type FieldUpdate struct {
	Field        NodeField
	Value        string // New name, parent or identifier
	LastModified time.Time
	ModifiedBy   int
}

// SetName renames a node
func SetName(name string) FieldUpdate {
	return FieldUpdate{Field: FieldName, Value: name}
}

// SetParent moves a node under another parent
func SetParent(parentID string) FieldUpdate {
	return FieldUpdate{Field: FieldParent, Value: parentID}
}

// SetIdentifier changes a node's identifier without touching its descendants
func SetIdentifier(folderID string) FieldUpdate {
	return FieldUpdate{Field: FieldIdentifier, Value: folderID}
}

// SetLastModified stamps a node's modification time and author
func SetLastModified(at time.Time, by int) FieldUpdate {
	return FieldUpdate{Field: FieldLastModified, LastModified: at, ModifiedBy: by}
}
