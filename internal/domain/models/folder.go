package models

import (
	"fmt"
	"strconv"
	"time"
)

// RootID is the parent identifier of top-level folders
const RootID = "0"

// StorageType selects the live overlay or its archive
type StorageType int

const (
	// StorageWorking is the live overlay
	StorageWorking StorageType = iota
	// StorageBackup holds rows archived by a backup delete
	StorageBackup
)

func (s StorageType) String() string {
	switch s {
	case StorageWorking:
		return "working"
	case StorageBackup:
		return "backup"
	default:
		return fmt.Sprintf("storage(%d)", int(s))
	}
}

// ScopeKey identifies one logical folder-tree instance
type ScopeKey struct {
	ContextID int         `json:"context_id" yaml:"context_id"`
	TreeID    int         `json:"tree_id" yaml:"tree_id"`
	UserID    int         `json:"user_id" yaml:"user_id"`
	Storage   StorageType `json:"storage" yaml:"storage"`
}

// Working returns the same scope targeting the live overlay
func (k ScopeKey) Working() ScopeKey {
	k.Storage = StorageWorking
	return k
}

// Backup returns the same scope targeting the archive
func (k ScopeKey) Backup() ScopeKey {
	k.Storage = StorageBackup
	return k
}

func (k ScopeKey) String() string {
	return fmt.Sprintf("%d/%d/%d/%s", k.ContextID, k.TreeID, k.UserID, k.Storage)
}

// IsGlobal reports whether folderID addresses a folder shared by all users
// of a tree. Global folders carry positive integer identifiers.
func IsGlobal(folderID string) bool {
	n, err := strconv.Atoi(folderID)
	return err == nil && n > 0
}

// SharedUserID is the user column of every row that belongs to a global folder
const SharedUserID = 0

// Owner returns the user column that stores folderID's rows in this scope
func (k ScopeKey) Owner(folderID string) int {
	if IsGlobal(folderID) {
		return SharedUserID
	}
	return k.UserID
}

// ForUser returns the same scope acting for userID
func (k ScopeKey) ForUser(userID int) ScopeKey {
	k.UserID = userID
	return k
}

// FolderNode is one row of the virtual tree
type FolderNode struct {
	FolderID     string     `json:"folder_id" db:"folder_id"`
	ParentID     string     `json:"parent_id" db:"parent_id"` // RootID = top level
	Name         string     `json:"name" db:"name"`
	LastModified *time.Time `json:"last_modified,omitempty" db:"last_modified"`
	ModifiedBy   *int       `json:"modified_by,omitempty" db:"modified_by"`
	ShadowID     string     `json:"shadow_id" db:"shadow"` // Reserved, always empty
	SortNum      *int       `json:"sort_num,omitempty" db:"sort_num"`
}

// PermissionEntry grants an entity access to a folder
type PermissionEntry struct {
	Entity           int  `json:"entity" db:"entity"`
	Group            bool `json:"group" db:"group_flag"`
	FolderPermission int  `json:"folder_permission" db:"fp"`
	ReadPermission   int  `json:"read_permission" db:"orp"`
	WritePermission  int  `json:"write_permission" db:"owp"`
	DeletePermission int  `json:"delete_permission" db:"odp"`
	Admin            bool `json:"admin" db:"admin_flag"`
	System           bool `json:"system" db:"system"`
}

// SubscriptionEntry is the per-folder subscription flag. A missing row means subscribed.
type SubscriptionEntry struct {
	FolderID   string `json:"folder_id" db:"folder_id"`
	Subscribed bool   `json:"subscribed" db:"subscribed"`
}

// Folder is a node together with the rows it owns
type Folder struct {
	Node        FolderNode        `json:"node"`
	Permissions []PermissionEntry `json:"permissions"`
	Subscribed  *bool             `json:"subscribed,omitempty"` // nil = leave subscription row untouched
}

// ChildRef is a child folder as seen by listing and ordering
type ChildRef struct {
	ID   string `json:"id"`
	Name string `json:"name"` // Localized display name for external children
}

// DeleteOptions controls the cascading delete
type DeleteOptions struct {
	Recursive bool
	Backup    bool
}

// DeleteOutcome is the result of a delete
type DeleteOutcome int

const (
	// OutcomeNotFound means no tree row was removed
	OutcomeNotFound DeleteOutcome = iota
	// OutcomeDeleted means the rows were removed (and archived when requested)
	OutcomeDeleted
	// OutcomeDeletedArchiveFailed means the rows were removed but copying
	// at least one of them into the backup tables failed
	OutcomeDeletedArchiveFailed
)

// Deleted reports whether a tree row was actually removed
func (o DeleteOutcome) Deleted() bool {
	return o != OutcomeNotFound
}

func (o DeleteOutcome) String() string {
	switch o {
	case OutcomeNotFound:
		return "not_found"
	case OutcomeDeleted:
		return "deleted"
	case OutcomeDeletedArchiveFailed:
		return "deleted_archive_failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}
