package sqlstore

import (
	"context"

	"foldertree/internal/domain"
	"foldertree/internal/domain/models"
	"foldertree/internal/domain/repositories"
)

const permissionColumns = "entity, group_flag, fp, orp, owp, odp, admin_flag, system"

// PermissionRepository implements the PermissionStore interface
type PermissionRepository struct {
	base
}

// NewPermissionRepository creates a new permission repository
func NewPermissionRepository(config *RepositoryConfig) *PermissionRepository {
	return &PermissionRepository{base: newBase(config)}
}

var _ repositories.PermissionStore = (*PermissionRepository)(nil)

// FetchPermissions returns the permission entries of a folder
func (r *PermissionRepository) FetchPermissions(ctx context.Context, scope models.ScopeKey, folderID string) ([]models.PermissionEntry, error) {
	var entries []models.PermissionEntry
	err := r.read(ctx, scope, func(db repositories.DBTX) error {
		var err error
		entries, err = r.FetchPermissionsTx(ctx, db, scope, folderID)
		return err
	})
	return entries, err
}

// FetchPermissionsTx returns the permission entries of a folder on the caller's connection
func (r *PermissionRepository) FetchPermissionsTx(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey, folderID string) ([]models.PermissionEntry, error) {
	where, args := scopeWhere(scope, models.IsGlobal(folderID))
	query := r.q(`
		SELECT `+permissionColumns+`
		FROM %s
		WHERE `+where+` AND folder_id = ?
		ORDER BY entity
	`, r.tables.family(scope.Storage).permissions)

	rows, err := tx.QueryContext(ctx, query, appendArgs(args, folderID)...)
	if err != nil {
		return nil, domain.Storage("get permissions", err)
	}
	defer rows.Close()

	entries := []models.PermissionEntry{}
	for rows.Next() {
		var p models.PermissionEntry
		if err := rows.Scan(
			&p.Entity,
			&p.Group,
			&p.FolderPermission,
			&p.ReadPermission,
			&p.WritePermission,
			&p.DeletePermission,
			&p.Admin,
			&p.System,
		); err != nil {
			return nil, domain.Storage("scan permission", err)
		}
		entries = append(entries, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage("iterate permissions", err)
	}
	return entries, nil
}

// FetchSubscribed returns a folder's subscription flag
func (r *PermissionRepository) FetchSubscribed(ctx context.Context, scope models.ScopeKey, folderID string) (bool, error) {
	var subscribed bool
	err := r.read(ctx, scope, func(db repositories.DBTX) error {
		var err error
		subscribed, err = r.FetchSubscribedTx(ctx, db, scope, folderID)
		return err
	})
	return subscribed, err
}

// FetchSubscribedTx returns a folder's subscription flag; no row means subscribed
func (r *PermissionRepository) FetchSubscribedTx(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey, folderID string) (bool, error) {
	where, args := scopeWhere(scope, models.IsGlobal(folderID))
	query := r.q(`
		SELECT subscribed FROM %s
		WHERE `+where+` AND folder_id = ?
	`, r.tables.family(scope.Storage).subscriptions)

	var subscribed bool
	err := tx.QueryRowContext(ctx, query, appendArgs(args, folderID)...).Scan(&subscribed)
	if err != nil {
		if IsNoRowsError(err) {
			return true, nil
		}
		return false, domain.Storage("get subscription", err)
	}
	return subscribed, nil
}

// HasSubscribedDescendant reports whether a child of parentID is not explicitly unsubscribed
func (r *PermissionRepository) HasSubscribedDescendant(ctx context.Context, scope models.ScopeKey, parentID string) (bool, error) {
	var has bool
	err := r.read(ctx, scope, func(db repositories.DBTX) error {
		var err error
		has, err = r.HasSubscribedDescendantTx(ctx, db, scope, parentID)
		return err
	})
	return has, err
}

// HasSubscribedDescendantTx is HasSubscribedDescendant on the caller's connection
func (r *PermissionRepository) HasSubscribedDescendantTx(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey, parentID string) (bool, error) {
	fam := r.tables.family(scope.Storage)
	args := []interface{}{scope.ContextID, scope.TreeID}
	userFilter := ""
	if !models.IsGlobal(parentID) {
		userFilter = " AND t.user_id IN (?, ?)"
		args = append(args, scope.UserID, models.SharedUserID)
	}
	query := r.q(`
		SELECT COUNT(*)
		FROM %s t
		LEFT JOIN %s s
			ON s.cid = t.cid AND s.tree = t.tree AND s.user_id = t.user_id AND s.folder_id = t.folder_id
		WHERE t.cid = ? AND t.tree = ?`+userFilter+` AND t.parent_id = ?
			AND (s.subscribed IS NULL OR s.subscribed = ?)
	`, fam.tree, fam.subscriptions)

	var count int
	if err := tx.QueryRowContext(ctx, query, append(args, parentID, true)...).Scan(&count); err != nil {
		return false, domain.Storage("check subscribed children", err)
	}
	return count > 0, nil
}

// replacePermissionsTx swaps the permission rows of a folder for entries
func (r *PermissionRepository) replacePermissionsTx(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey, folderID string, entries []models.PermissionEntry) error {
	table := r.tables.family(scope.Storage).permissions
	where, args := scopeWhere(scope, models.IsGlobal(folderID))
	del := r.q(`DELETE FROM %s WHERE `+where+` AND folder_id = ?`, table)
	if _, err := tx.ExecContext(ctx, del, appendArgs(args, folderID)...); err != nil {
		return domain.Storage("clear permissions", err)
	}

	insert := r.q(`
		INSERT INTO %s (cid, tree, user_id, folder_id, `+permissionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, table)
	for _, p := range entries {
		if _, err := tx.ExecContext(ctx, insert,
			scope.ContextID,
			scope.TreeID,
			scope.Owner(folderID),
			folderID,
			p.Entity,
			p.Group,
			p.FolderPermission,
			p.ReadPermission,
			p.WritePermission,
			p.DeletePermission,
			p.Admin,
			p.System,
		); err != nil {
			return domain.Storage("insert permission", err)
		}
	}
	return nil
}

// upsertSubscriptionTx writes a subscription flag, inserting the row if needed
func (r *PermissionRepository) upsertSubscriptionTx(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey, folderID string, subscribed bool) error {
	table := r.tables.family(scope.Storage).subscriptions
	where, args := scopeWhere(scope, models.IsGlobal(folderID))
	update := r.q(`UPDATE %s SET subscribed = ? WHERE `+where+` AND folder_id = ?`, table)

	result, err := tx.ExecContext(ctx, update, append(appendArgs([]interface{}{subscribed}, args...), folderID)...)
	if err != nil {
		return domain.Storage("update subscription", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return domain.Storage("update subscription", err)
	} else if n > 0 {
		return nil
	}

	insert := r.q(`
		INSERT INTO %s (cid, tree, user_id, folder_id, subscribed)
		VALUES (?, ?, ?, ?, ?)
	`, table)
	if _, err := tx.ExecContext(ctx, insert, scope.ContextID, scope.TreeID, scope.Owner(folderID), folderID, subscribed); err != nil {
		return domain.Storage("insert subscription", err)
	}
	return nil
}
