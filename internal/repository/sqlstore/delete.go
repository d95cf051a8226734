package sqlstore

import (
	"context"
	"fmt"

	"foldertree/internal/domain"
	"foldertree/internal/domain/models"
	"foldertree/internal/domain/repositories"
)

// DeleteRepository implements the DeleteEngine interface
type DeleteRepository struct {
	base
	nodes *NodeRepository
}

// NewDeleteRepository creates a new delete engine
func NewDeleteRepository(config *RepositoryConfig) *DeleteRepository {
	return &DeleteRepository{
		base:  newBase(config),
		nodes: NewNodeRepository(config),
	}
}

var _ repositories.DeleteEngine = (*DeleteRepository)(nil)

// Delete removes a folder (and its subtree when recursive) in one transaction
func (r *DeleteRepository) Delete(ctx context.Context, scope models.ScopeKey, folderID string, opts models.DeleteOptions) (models.DeleteOutcome, error) {
	var outcome models.DeleteOutcome
	err := r.write(ctx, scope, func(ctx context.Context, tx repositories.DBTX) error {
		var err error
		outcome, err = r.DeleteTx(ctx, tx, scope, folderID, opts)
		return err
	})
	if err != nil {
		return models.OutcomeNotFound, err
	}
	return outcome, nil
}

// DeleteTx removes a folder on the caller's transaction
func (r *DeleteRepository) DeleteTx(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey, folderID string, opts models.DeleteOptions) (models.DeleteOutcome, error) {
	if opts.Backup && scope.Storage == models.StorageBackup {
		r.logger.Debug("backup requested while deleting from backup storage, ignoring",
			scopeOf(scope), "folder_id", folderID)
		opts.Backup = false
	}
	return r.deleteFolder(ctx, tx, scope, folderID, models.IsGlobal(folderID), opts, map[folderRef]bool{})
}

// folderRef names one stored folder: private identifiers repeat across users
type folderRef struct {
	folderID string
	userID   int
}

// deleteFolder removes children before the folder itself so that no archived
// child outlives an unarchived parent
func (r *DeleteRepository) deleteFolder(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey, folderID string, global bool, opts models.DeleteOptions, visited map[folderRef]bool) (models.DeleteOutcome, error) {
	archiveFailed := false
	visited[folderRef{folderID, scope.Owner(folderID)}] = true

	if opts.Recursive {
		children, err := r.children(ctx, tx, scope, folderID, global)
		if err != nil {
			return models.OutcomeNotFound, err
		}
		for _, child := range children {
			if visited[child] {
				r.logger.Warn("parent cycle in folder tree", scopeOf(scope), "folder_id", child.folderID)
				continue
			}
			// A global folder has children of every user, each deleted in
			// its owner's scope. A private folder may parent a shared one,
			// so the flag is per child.
			owner := scope
			if child.userID != models.SharedUserID {
				owner = scope.ForUser(child.userID)
			}
			outcome, err := r.deleteFolder(ctx, tx, owner, child.folderID, models.IsGlobal(child.folderID), opts, visited)
			if err != nil {
				return models.OutcomeNotFound, err
			}
			if outcome == models.OutcomeDeletedArchiveFailed {
				archiveFailed = true
			}
		}
	}

	if opts.Backup {
		if err := r.backupTx(ctx, tx, scope, folderID, global); err != nil {
			r.logger.Warn("folder backup failed, deleting anyway",
				scopeOf(scope),
				"folder_id", folderID,
				"error", err,
			)
			archiveFailed = true
		}
	}

	deleted, err := r.deleteRowsTx(ctx, tx, scope, folderID, global)
	if err != nil {
		return models.OutcomeNotFound, err
	}

	switch {
	case !deleted:
		return models.OutcomeNotFound, nil
	case archiveFailed:
		return models.OutcomeDeletedArchiveFailed, nil
	default:
		return models.OutcomeDeleted, nil
	}
}

func (r *DeleteRepository) children(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey, parentID string, global bool) ([]folderRef, error) {
	where, args := scopeWhere(scope, global)
	query := r.q(`
		SELECT folder_id, user_id FROM %s
		WHERE `+where+` AND parent_id = ?
		ORDER BY folder_id, user_id
	`, r.tables.family(scope.Storage).tree)

	rows, err := tx.QueryContext(ctx, query, appendArgs(args, parentID)...)
	if err != nil {
		return nil, domain.Storage("list folder children", err)
	}
	defer rows.Close()

	var refs []folderRef
	for rows.Next() {
		var ref folderRef
		if err := rows.Scan(&ref.folderID, &ref.userID); err != nil {
			return nil, domain.Storage("scan folder child", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage("iterate folder children", err)
	}
	return refs, nil
}

// deleteRowsTx deletes subscription, permission and tree rows, in that order,
// and reports whether a tree row was removed
func (r *DeleteRepository) deleteRowsTx(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey, folderID string, global bool) (bool, error) {
	fam := r.tables.family(scope.Storage)
	where, args := scopeWhere(scope, global)
	args = appendArgs(args, folderID)

	for _, table := range []string{fam.subscriptions, fam.permissions} {
		query := r.q(`DELETE FROM %s WHERE `+where+` AND folder_id = ?`, table)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return false, domain.Storage("delete folder rows", err)
		}
	}

	query := r.q(`DELETE FROM %s WHERE `+where+` AND folder_id = ?`, fam.tree)
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, domain.Storage("delete folder", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, domain.Storage("delete folder", err)
	}
	return n > 0, nil
}

// backupTx copies the working rows of one folder into the backup tables,
// replacing any earlier archive of the same folder. It runs inside a
// savepoint so a failure leaves the surrounding transaction usable.
func (r *DeleteRepository) backupTx(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey, folderID string, global bool) error {
	exists, err := r.nodes.ExistsTx(ctx, tx, scope, folderID)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	working := r.tables.family(models.StorageWorking)
	backup := r.tables.family(models.StorageBackup)
	where, args := scopeWhere(scope, global)
	args = appendArgs(args, folderID)

	return withSavepoint(ctx, tx, "folder_backup", func() error {
		for _, table := range []string{backup.subscriptions, backup.permissions, backup.tree} {
			query := r.q(`DELETE FROM %s WHERE `+where+` AND folder_id = ?`, table)
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("clear backup of %s: %w", folderID, err)
			}
		}

		copies := []struct{ to, from, columns string }{
			{backup.tree, working.tree, "cid, tree, user_id, " + nodeColumns},
			{backup.permissions, working.permissions, "cid, tree, user_id, folder_id, " + permissionColumns},
			{backup.subscriptions, working.subscriptions, "cid, tree, user_id, folder_id, subscribed"},
		}
		for _, c := range copies {
			query := r.q(`
				INSERT INTO %s (`+c.columns+`)
				SELECT `+c.columns+` FROM %s
				WHERE `+where+` AND folder_id = ?
			`, c.to, c.from)
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("copy %s into backup: %w", folderID, err)
			}
		}
		return nil
	})
}

// HardDelete removes a single folder without recursion or backup. It always
// acquires its own connection and commits its own transaction, independent
// of any transaction the caller may hold.
func (r *DeleteRepository) HardDelete(ctx context.Context, scope models.ScopeKey, folderID string) (bool, error) {
	var deleted bool
	err := r.write(ctx, scope, func(ctx context.Context, tx repositories.DBTX) error {
		var err error
		deleted, err = r.deleteRowsTx(ctx, tx, scope, folderID, models.IsGlobal(folderID))
		return err
	})
	if err != nil {
		return false, err
	}
	r.logger.Info("folder hard deleted",
		scopeOf(scope),
		"folder_id", folderID,
		"deleted", deleted,
	)
	return deleted, nil
}
