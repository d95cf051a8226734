package repositories

import (
	"context"

	"foldertree/internal/domain/models"
)

// Every operation comes in two forms. The plain form owns its connection
// (and transaction, for writes). The Tx form joins the caller's transaction
// and never commits or rolls back.

// NodeStore defines data access operations for virtual tree rows
type NodeStore interface {
	// Fetch retrieves a node; a missing node yields domain.ErrNotFound
	Fetch(ctx context.Context, scope models.ScopeKey, folderID string) (*models.FolderNode, error)
	FetchTx(ctx context.Context, tx DBTX, scope models.ScopeKey, folderID string) (*models.FolderNode, error)

	// FetchChildren lists the direct children of parentID in no particular order
	FetchChildren(ctx context.Context, scope models.ScopeKey, parentID string) ([]models.ChildRef, error)
	FetchChildrenTx(ctx context.Context, tx DBTX, scope models.ScopeKey, parentID string) ([]models.ChildRef, error)

	Exists(ctx context.Context, scope models.ScopeKey, folderID string) (bool, error)
	ExistsTx(ctx context.Context, tx DBTX, scope models.ScopeKey, folderID string) (bool, error)

	// ExistsBatch reports existence per id, in input order
	ExistsBatch(ctx context.Context, scope models.ScopeKey, folderIDs []string) ([]bool, error)
	ExistsBatchTx(ctx context.Context, tx DBTX, scope models.ScopeKey, folderIDs []string) ([]bool, error)

	// FindByName looks up a child of parentID by exact name
	FindByName(ctx context.Context, scope models.ScopeKey, parentID, name string) (string, bool, error)
	FindByNameTx(ctx context.Context, tx DBTX, scope models.ScopeKey, parentID, name string) (string, bool, error)

	// Insert stores a node, updating the existing row on a key collision
	Insert(ctx context.Context, scope models.ScopeKey, node *models.FolderNode) error
	InsertTx(ctx context.Context, tx DBTX, scope models.ScopeKey, node *models.FolderNode) error

	// InsertFolder stores a node with its permissions and subscription flag
	InsertFolder(ctx context.Context, scope models.ScopeKey, folder *models.Folder) error
	InsertFolderTx(ctx context.Context, tx DBTX, scope models.ScopeKey, folder *models.Folder) error

	// UpdateField rewrites one field of one node without cascading
	UpdateField(ctx context.Context, scope models.ScopeKey, folderID string, update models.FieldUpdate) error
	UpdateFieldTx(ctx context.Context, tx DBTX, scope models.ScopeKey, folderID string, update models.FieldUpdate) error

	UpdateSubscribed(ctx context.Context, scope models.ScopeKey, folderID string, subscribed bool) error
	UpdateSubscribedTx(ctx context.Context, tx DBTX, scope models.ScopeKey, folderID string, subscribed bool) error

	// ListFolderIDs returns every folder id stored for the scope's user
	ListFolderIDs(ctx context.Context, scope models.ScopeKey) ([]string, error)
}

// PermissionStore reads permission and subscription rows
type PermissionStore interface {
	// FetchPermissions returns an empty slice when the folder has no entries
	FetchPermissions(ctx context.Context, scope models.ScopeKey, folderID string) ([]models.PermissionEntry, error)
	FetchPermissionsTx(ctx context.Context, tx DBTX, scope models.ScopeKey, folderID string) ([]models.PermissionEntry, error)

	// FetchSubscribed defaults to true when no row exists
	FetchSubscribed(ctx context.Context, scope models.ScopeKey, folderID string) (bool, error)
	FetchSubscribedTx(ctx context.Context, tx DBTX, scope models.ScopeKey, folderID string) (bool, error)

	// HasSubscribedDescendant reports whether any child of parentID is not explicitly unsubscribed
	HasSubscribedDescendant(ctx context.Context, scope models.ScopeKey, parentID string) (bool, error)
	HasSubscribedDescendantTx(ctx context.Context, tx DBTX, scope models.ScopeKey, parentID string) (bool, error)
}

// RenamePropagator rewrites an identifier across a path-encoded subtree
type RenamePropagator interface {
	UpdateIdentifierAndCascade(ctx context.Context, scope models.ScopeKey, newID, oldID, delimiter string) error
	UpdateIdentifierAndCascadeTx(ctx context.Context, tx DBTX, scope models.ScopeKey, newID, oldID, delimiter string) error
}

// DeleteEngine removes nodes together with their permission and subscription rows
type DeleteEngine interface {
	Delete(ctx context.Context, scope models.ScopeKey, folderID string, opts models.DeleteOptions) (models.DeleteOutcome, error)
	DeleteTx(ctx context.Context, tx DBTX, scope models.ScopeKey, folderID string, opts models.DeleteOptions) (models.DeleteOutcome, error)

	// HardDelete removes a single node in its own transaction on its own
	// connection. It deliberately has no Tx form.
	HardDelete(ctx context.Context, scope models.ScopeKey, folderID string) (bool, error)
}

// DuplicateResolver removes same-parent same-name collisions
type DuplicateResolver interface {
	// ResolveDuplicates returns the removed folder ids keyed by folder name
	ResolveDuplicates(ctx context.Context, scope models.ScopeKey) (map[string][]string, error)
	ResolveDuplicatesTx(ctx context.Context, tx DBTX, scope models.ScopeKey) (map[string][]string, error)
}
