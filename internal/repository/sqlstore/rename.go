package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"foldertree/internal/domain"
	"foldertree/internal/domain/models"
	"foldertree/internal/domain/repositories"
	"foldertree/internal/events"
	"foldertree/internal/utils"
)

// RenameRepository implements the RenamePropagator interface
type RenameRepository struct {
	base
	nodes *NodeRepository
}

// NewRenameRepository creates a new rename propagator
func NewRenameRepository(config *RepositoryConfig) *RenameRepository {
	return &RenameRepository{
		base:  newBase(config),
		nodes: NewNodeRepository(config),
	}
}

var _ repositories.RenamePropagator = (*RenameRepository)(nil)

// UpdateIdentifierAndCascade renames oldID to newID and rewrites every
// descendant encoded under oldID+delimiter, all in one transaction
func (r *RenameRepository) UpdateIdentifierAndCascade(ctx context.Context, scope models.ScopeKey, newID, oldID, delimiter string) error {
	return r.write(ctx, scope, func(ctx context.Context, tx repositories.DBTX) error {
		return r.UpdateIdentifierAndCascadeTx(ctx, tx, scope, newID, oldID, delimiter)
	})
}

// UpdateIdentifierAndCascadeTx is UpdateIdentifierAndCascade on the caller's transaction.
//
// The node itself is renamed when present, children pointing at oldID are
// re-parented to newID, and every row whose identifier or parent starts with
// oldID+delimiter gets that prefix replaced by newID+delimiter. One
// FolderChanged event carrying the old identifier is posted per rewritten
// descendant.
func (r *RenameRepository) UpdateIdentifierAndCascadeTx(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey, newID, oldID, delimiter string) error {
	if delimiter == "" {
		return &domain.ValidationError{Message: "delimiter must not be empty"}
	}
	if oldID == "" || newID == "" {
		return &domain.ValidationError{Message: "folder identifiers must not be empty"}
	}
	if newID == oldID {
		return nil
	}
	if utils.IsBelow(newID, oldID, delimiter) {
		return &domain.ValidationError{Message: fmt.Sprintf("cannot rename %s below itself", oldID)}
	}

	if _, err := r.nodes.renameRowsTx(ctx, tx, scope, oldID, newID); err != nil {
		return err
	}

	global := models.IsGlobal(oldID)
	tree := r.tables.family(scope.Storage).tree
	where, args := scopeWhere(scope, global)
	reparent := r.q(`
		UPDATE %s
		SET parent_id = ?
		WHERE `+where+` AND parent_id = ?
	`, tree)
	if _, err := tx.ExecContext(ctx, reparent, append(appendArgs([]interface{}{newID}, args...), oldID)...); err != nil {
		return domain.Storage("update parent identifier", err)
	}

	// Below a global folder every user's descendants move, like its children
	descendants, err := r.descendantsTx(ctx, tx, scope, oldID+delimiter, global)
	if err != nil {
		return err
	}

	for _, d := range descendants {
		owner := scope.ForUser(d.userID)
		newFolderID, _ := utils.Rebase(d.folderID, oldID, newID, delimiter)
		newParentID, _ := utils.Rebase(d.parentID, oldID, newID, delimiter)

		if newParentID != d.parentID {
			if err := r.nodes.UpdateFieldTx(ctx, tx, owner, d.folderID, models.SetParent(newParentID)); err != nil {
				return err
			}
		}
		if newFolderID != d.folderID {
			if _, err := r.nodes.renameRowsTx(ctx, tx, owner, d.folderID, newFolderID); err != nil {
				return err
			}
		}

		if d.userID == models.SharedUserID {
			owner = scope
		}
		r.notify(ctx, owner, d.folderID)
	}

	r.logger.Info("folder identifier cascaded",
		scopeOf(scope),
		"old_id", oldID,
		"new_id", newID,
		"descendants", len(descendants),
	)
	return nil
}

type descendant struct {
	folderID, parentID string
	userID             int
}

// descendantsTx loads every row whose identifier or parent starts with prefix.
// allUsers drops the user predicate.
func (r *RenameRepository) descendantsTx(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey, prefix string, allUsers bool) ([]descendant, error) {
	where, args := scopeWhere(scope, allUsers)
	pattern := likePrefix(prefix)
	query := r.q(`
		SELECT folder_id, parent_id, user_id
		FROM %s
		WHERE `+where+` AND (folder_id LIKE ? ESCAPE '\' OR parent_id LIKE ? ESCAPE '\')
		ORDER BY folder_id, user_id
	`, r.tables.family(scope.Storage).tree)

	rows, err := tx.QueryContext(ctx, query, appendArgs(args, pattern, pattern)...)
	if err != nil {
		return nil, domain.Storage("list descendants", err)
	}
	defer rows.Close()

	var out []descendant
	for rows.Next() {
		var d descendant
		if err := rows.Scan(&d.folderID, &d.parentID, &d.userID); err != nil {
			return nil, domain.Storage("scan descendant", err)
		}
		// LIKE is case-insensitive on some backends
		if strings.HasPrefix(d.folderID, prefix) || strings.HasPrefix(d.parentID, prefix) {
			out = append(out, d)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage("iterate descendants", err)
	}
	return out, nil
}

// notify posts the change event; failures are logged and never propagate
func (r *RenameRepository) notify(ctx context.Context, scope models.ScopeKey, oldFolderID string) {
	e := events.FolderChanged(scope.ContextID, scope.UserID, oldFolderID)
	if err := events.PostSafely(ctx, r.events, e); err != nil {
		r.logger.Warn("folder change notification failed",
			scopeOf(scope),
			"folder_id", oldFolderID,
			"error", err,
		)
	}
}
