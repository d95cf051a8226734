package sqlstore

import (
	"fmt"

	"foldertree/internal/domain/models"
)

// TableNames holds dynamically prefixed table names for both storage families
type TableNames struct {
	Tree                string
	Permissions         string
	Subscriptions       string
	BackupTree          string
	BackupPermissions   string
	BackupSubscriptions string
}

// NewTableNames creates table names with the given prefix
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Tree:                fmt.Sprintf("%svirtual_tree", prefix),
		Permissions:         fmt.Sprintf("%svirtual_permission", prefix),
		Subscriptions:       fmt.Sprintf("%svirtual_subscription", prefix),
		BackupTree:          fmt.Sprintf("%svirtual_backup_tree", prefix),
		BackupPermissions:   fmt.Sprintf("%svirtual_backup_permission", prefix),
		BackupSubscriptions: fmt.Sprintf("%svirtual_backup_subscription", prefix),
	}
}

// tableFamily is the tree/permission/subscription triple of one storage type
type tableFamily struct {
	tree, permissions, subscriptions string
}

func (t *TableNames) family(s models.StorageType) tableFamily {
	if s == models.StorageBackup {
		return tableFamily{t.BackupTree, t.BackupPermissions, t.BackupSubscriptions}
	}
	return tableFamily{t.Tree, t.Permissions, t.Subscriptions}
}

// scopeWhere builds the scope predicate for rows addressed by a folder id.
// Rows of global folders are shared, so the user column is skipped for them.
// Otherwise the user sees its own rows and the shared ones.
func scopeWhere(scope models.ScopeKey, global bool) (string, []interface{}) {
	if global {
		return "cid = ? AND tree = ?", []interface{}{scope.ContextID, scope.TreeID}
	}
	return "cid = ? AND tree = ? AND user_id IN (?, ?)",
		[]interface{}{scope.ContextID, scope.TreeID, scope.UserID, models.SharedUserID}
}
