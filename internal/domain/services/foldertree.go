package services

import (
	"context"

	"golang.org/x/text/language"

	"foldertree/internal/domain/models"
)

// FolderTreeService is the entry point used by the folder storage layer
type FolderTreeService interface {
	// CreateFolder stores a new virtual folder with its permissions and subscription
	CreateFolder(ctx context.Context, scope models.ScopeKey, req *CreateFolderRequest) (*models.Folder, error)

	// GetFolder loads a folder with its permissions and subscription flag
	GetFolder(ctx context.Context, scope models.ScopeKey, folderID string) (*models.Folder, error)

	// UpdateFolder applies a rename, move, identifier change and/or subscription change atomically
	UpdateFolder(ctx context.Context, scope models.ScopeKey, folderID string, req *UpdateFolderRequest) (*models.FolderNode, error)

	// ReplaceFolder deletes the folder row set and inserts folder in its place
	ReplaceFolder(ctx context.Context, scope models.ScopeKey, folder *models.Folder) error

	// DeleteFolder removes a folder, optionally with its subtree and an archive copy
	DeleteFolder(ctx context.Context, scope models.ScopeKey, folderID string, opts models.DeleteOptions) (models.DeleteOutcome, error)

	// HardDeleteFolder removes one folder in an independent transaction
	HardDeleteFolder(ctx context.Context, scope models.ScopeKey, folderID string) (bool, error)

	// ListChildren merges stored children of parentID with external ones and orders them for locale
	ListChildren(ctx context.Context, scope models.ScopeKey, parentID string, locale language.Tag, external []models.ChildRef) ([]string, error)

	// ResolveDuplicates removes same-name siblings and reports removed ids by name
	ResolveDuplicates(ctx context.Context, scope models.ScopeKey) (map[string][]string, error)
}

// CreateFolderRequest represents a folder creation request
type CreateFolderRequest struct {
	FolderID    string                   `json:"folder_id"`
	ParentID    string                   `json:"parent_id"` // models.RootID for top level
	Name        string                   `json:"name"`
	ModifiedBy  *int                     `json:"modified_by,omitempty"`
	Permissions []models.PermissionEntry `json:"permissions,omitempty"`
	Subscribed  *bool                    `json:"subscribed,omitempty"`
}

// UpdateFolderRequest represents a folder update request. Nil fields are left alone.
type UpdateFolderRequest struct {
	Name       *string `json:"name,omitempty"`      // rename
	ParentID   *string `json:"parent_id,omitempty"` // move
	NewID      *string `json:"new_id,omitempty"`    // identifier change, cascades to descendants
	Subscribed *bool   `json:"subscribed,omitempty"`
	ModifiedBy int     `json:"modified_by"`
}
