package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"foldertree/internal/domain"
	"foldertree/internal/domain/models"
	"foldertree/internal/domain/repositories"
)

// existsBatchSize bounds the IN list of a single existence query
const existsBatchSize = 256

const nodeColumns = "folder_id, parent_id, name, last_modified, modified_by, shadow, sort_num"

// NodeRepository implements the NodeStore interface
type NodeRepository struct {
	base
	perms *PermissionRepository
}

// NewNodeRepository creates a new node repository
func NewNodeRepository(config *RepositoryConfig) *NodeRepository {
	return &NodeRepository{
		base:  newBase(config),
		perms: NewPermissionRepository(config),
	}
}

var _ repositories.NodeStore = (*NodeRepository)(nil)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNode(row rowScanner) (*models.FolderNode, error) {
	var node models.FolderNode
	var lastModified, modifiedBy, sortNum sql.NullInt64
	if err := row.Scan(
		&node.FolderID,
		&node.ParentID,
		&node.Name,
		&lastModified,
		&modifiedBy,
		&node.ShadowID,
		&sortNum,
	); err != nil {
		return nil, err
	}
	if lastModified.Valid {
		t := time.UnixMilli(lastModified.Int64).UTC()
		node.LastModified = &t
	}
	if modifiedBy.Valid {
		v := int(modifiedBy.Int64)
		node.ModifiedBy = &v
	}
	if sortNum.Valid {
		v := int(sortNum.Int64)
		node.SortNum = &v
	}
	return &node, nil
}

// Fetch retrieves a node by id
func (r *NodeRepository) Fetch(ctx context.Context, scope models.ScopeKey, folderID string) (*models.FolderNode, error) {
	var node *models.FolderNode
	err := r.read(ctx, scope, func(db repositories.DBTX) error {
		var err error
		node, err = r.FetchTx(ctx, db, scope, folderID)
		return err
	})
	return node, err
}

// FetchTx retrieves a node by id on the caller's connection
func (r *NodeRepository) FetchTx(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey, folderID string) (*models.FolderNode, error) {
	where, args := scopeWhere(scope, models.IsGlobal(folderID))
	query := r.q(`
		SELECT `+nodeColumns+`
		FROM %s
		WHERE `+where+` AND folder_id = ?
	`, r.tables.family(scope.Storage).tree)

	node, err := scanNode(tx.QueryRowContext(ctx, query, appendArgs(args, folderID)...))
	if err != nil {
		if IsNoRowsError(err) {
			return nil, &domain.NotFoundError{Message: fmt.Sprintf("folder %s", folderID)}
		}
		return nil, domain.Storage("get folder", err)
	}
	return node, nil
}

// FetchChildren lists the direct children of parentID
func (r *NodeRepository) FetchChildren(ctx context.Context, scope models.ScopeKey, parentID string) ([]models.ChildRef, error) {
	var children []models.ChildRef
	err := r.read(ctx, scope, func(db repositories.DBTX) error {
		var err error
		children, err = r.FetchChildrenTx(ctx, db, scope, parentID)
		return err
	})
	return children, err
}

// FetchChildrenTx lists the direct children of parentID on the caller's connection
func (r *NodeRepository) FetchChildrenTx(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey, parentID string) ([]models.ChildRef, error) {
	where, args := scopeWhere(scope, models.IsGlobal(parentID))
	query := r.q(`
		SELECT folder_id, name
		FROM %s
		WHERE `+where+` AND parent_id = ?
	`, r.tables.family(scope.Storage).tree)

	rows, err := tx.QueryContext(ctx, query, appendArgs(args, parentID)...)
	if err != nil {
		return nil, domain.Storage("list folder children", err)
	}
	defer rows.Close()

	children := []models.ChildRef{}
	for rows.Next() {
		var child models.ChildRef
		if err := rows.Scan(&child.ID, &child.Name); err != nil {
			return nil, domain.Storage("scan folder", err)
		}
		children = append(children, child)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage("iterate folders", err)
	}
	return children, nil
}

// Exists checks whether a node is stored
func (r *NodeRepository) Exists(ctx context.Context, scope models.ScopeKey, folderID string) (bool, error) {
	var exists bool
	err := r.read(ctx, scope, func(db repositories.DBTX) error {
		var err error
		exists, err = r.ExistsTx(ctx, db, scope, folderID)
		return err
	})
	return exists, err
}

// ExistsTx checks whether a node is stored, on the caller's connection
func (r *NodeRepository) ExistsTx(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey, folderID string) (bool, error) {
	where, args := scopeWhere(scope, models.IsGlobal(folderID))
	query := r.q(`
		SELECT 1 FROM %s
		WHERE `+where+` AND folder_id = ?
	`, r.tables.family(scope.Storage).tree)

	var one int
	err := tx.QueryRowContext(ctx, query, appendArgs(args, folderID)...).Scan(&one)
	if err != nil {
		if IsNoRowsError(err) {
			return false, nil
		}
		return false, domain.Storage("check folder", err)
	}
	return true, nil
}

// ExistsBatch checks many ids at once; the result follows input order
func (r *NodeRepository) ExistsBatch(ctx context.Context, scope models.ScopeKey, folderIDs []string) ([]bool, error) {
	var result []bool
	err := r.read(ctx, scope, func(db repositories.DBTX) error {
		var err error
		result, err = r.ExistsBatchTx(ctx, db, scope, folderIDs)
		return err
	})
	return result, err
}

// ExistsBatchTx checks many ids at once on the caller's connection
func (r *NodeRepository) ExistsBatchTx(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey, folderIDs []string) ([]bool, error) {
	var global, private []string
	for _, id := range folderIDs {
		if models.IsGlobal(id) {
			global = append(global, id)
		} else {
			private = append(private, id)
		}
	}

	found := make(map[string]bool, len(folderIDs))
	for _, group := range []struct {
		global bool
		ids    []string
	}{{true, global}, {false, private}} {
		for start := 0; start < len(group.ids); start += existsBatchSize {
			end := min(start+existsBatchSize, len(group.ids))
			chunk := group.ids[start:end]

			where, args := scopeWhere(scope, group.global)
			query := r.q(`
				SELECT folder_id FROM %s
				WHERE `+where+` AND folder_id IN (`+placeholders(len(chunk))+`)
			`, r.tables.family(scope.Storage).tree)
			for _, id := range chunk {
				args = append(args, id)
			}

			rows, err := tx.QueryContext(ctx, query, args...)
			if err != nil {
				return nil, domain.Storage("check folders", err)
			}
			ids, err := collectStrings(rows)
			if err != nil {
				return nil, domain.Storage("iterate folders", err)
			}
			for _, id := range ids {
				found[id] = true
			}
		}
	}

	result := make([]bool, len(folderIDs))
	for i, id := range folderIDs {
		result[i] = found[id]
	}
	return result, nil
}

// FindByName looks up a child of parentID by name
func (r *NodeRepository) FindByName(ctx context.Context, scope models.ScopeKey, parentID, name string) (string, bool, error) {
	var id string
	var ok bool
	err := r.read(ctx, scope, func(db repositories.DBTX) error {
		var err error
		id, ok, err = r.FindByNameTx(ctx, db, scope, parentID, name)
		return err
	})
	return id, ok, err
}

// FindByNameTx looks up a child of parentID by name on the caller's connection
func (r *NodeRepository) FindByNameTx(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey, parentID, name string) (string, bool, error) {
	where, args := scopeWhere(scope, models.IsGlobal(parentID))
	query := r.q(`
		SELECT folder_id FROM %s
		WHERE `+where+` AND parent_id = ? AND name = ?
		ORDER BY folder_id
		LIMIT 1
	`, r.tables.family(scope.Storage).tree)

	var id string
	err := tx.QueryRowContext(ctx, query, appendArgs(args, parentID, name)...).Scan(&id)
	if err != nil {
		if IsNoRowsError(err) {
			return "", false, nil // Not found, not an error
		}
		return "", false, domain.Storage("get folder by name and parent", err)
	}
	return id, true, nil
}

// Insert stores a node in its own transaction
func (r *NodeRepository) Insert(ctx context.Context, scope models.ScopeKey, node *models.FolderNode) error {
	return r.write(ctx, scope, func(ctx context.Context, tx repositories.DBTX) error {
		return r.InsertTx(ctx, tx, scope, node)
	})
}

// InsertTx stores a node. An existing row with the same key is updated instead.
// Global folders are stored once per tree under the shared user.
func (r *NodeRepository) InsertTx(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey, node *models.FolderNode) error {
	query := r.q(`
		INSERT INTO %s (cid, tree, user_id, `+nodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.tables.family(scope.Storage).tree)

	err := withSavepoint(ctx, tx, "folder_insert", func() error {
		_, err := tx.ExecContext(ctx, query,
			scope.ContextID,
			scope.TreeID,
			scope.Owner(node.FolderID),
			node.FolderID,
			node.ParentID,
			node.Name,
			nullMillis(node.LastModified),
			nullInt(node.ModifiedBy),
			"", // shadow is reserved
			nullInt(node.SortNum),
		)
		return err
	})
	if err == nil {
		return nil
	}
	if !IsIntegrityViolation(err) {
		return domain.Storage("insert folder", err)
	}

	r.logger.Debug("folder already stored, updating",
		scopeOf(scope),
		"folder_id", node.FolderID,
	)
	return r.updateNodeTx(ctx, tx, scope, node)
}

// updateNodeTx overwrites every mutable column of an existing node
func (r *NodeRepository) updateNodeTx(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey, node *models.FolderNode) error {
	where, args := scopeWhere(scope, models.IsGlobal(node.FolderID))
	query := r.q(`
		UPDATE %s
		SET parent_id = ?, name = ?, last_modified = ?, modified_by = ?, sort_num = ?
		WHERE `+where+` AND folder_id = ?
	`, r.tables.family(scope.Storage).tree)

	args = append([]interface{}{
		node.ParentID,
		node.Name,
		nullMillis(node.LastModified),
		nullInt(node.ModifiedBy),
		nullInt(node.SortNum),
	}, args...)
	if _, err := tx.ExecContext(ctx, query, append(args, node.FolderID)...); err != nil {
		return domain.Storage("update folder", err)
	}
	return nil
}

// InsertFolder stores a node with its permissions and subscription in one transaction
func (r *NodeRepository) InsertFolder(ctx context.Context, scope models.ScopeKey, folder *models.Folder) error {
	return r.write(ctx, scope, func(ctx context.Context, tx repositories.DBTX) error {
		return r.InsertFolderTx(ctx, tx, scope, folder)
	})
}

// InsertFolderTx stores a node with its permissions and subscription on the caller's transaction
func (r *NodeRepository) InsertFolderTx(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey, folder *models.Folder) error {
	if err := r.InsertTx(ctx, tx, scope, &folder.Node); err != nil {
		return err
	}
	if err := r.perms.replacePermissionsTx(ctx, tx, scope, folder.Node.FolderID, folder.Permissions); err != nil {
		return err
	}
	if folder.Subscribed != nil {
		if err := r.perms.upsertSubscriptionTx(ctx, tx, scope, folder.Node.FolderID, *folder.Subscribed); err != nil {
			return err
		}
	}
	return nil
}

// UpdateField rewrites one field of one node in its own transaction
func (r *NodeRepository) UpdateField(ctx context.Context, scope models.ScopeKey, folderID string, update models.FieldUpdate) error {
	return r.write(ctx, scope, func(ctx context.Context, tx repositories.DBTX) error {
		return r.UpdateFieldTx(ctx, tx, scope, folderID, update)
	})
}

// UpdateFieldTx rewrites one field of one node. Descendants are not touched.
func (r *NodeRepository) UpdateFieldTx(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey, folderID string, update models.FieldUpdate) error {
	if update.Field == models.FieldIdentifier {
		n, err := r.renameRowsTx(ctx, tx, scope, folderID, update.Value)
		if err != nil {
			return err
		}
		if n == 0 {
			return &domain.NotFoundError{Message: fmt.Sprintf("folder %s", folderID)}
		}
		return nil
	}

	var set string
	var values []interface{}
	switch update.Field {
	case models.FieldName:
		set, values = "name = ?", []interface{}{update.Value}
	case models.FieldParent:
		set, values = "parent_id = ?", []interface{}{update.Value}
	case models.FieldLastModified:
		set, values = "last_modified = ?, modified_by = ?", []interface{}{update.LastModified.UnixMilli(), update.ModifiedBy}
	default:
		return &domain.ValidationError{Message: fmt.Sprintf("unsupported folder field %d", update.Field)}
	}

	where, args := scopeWhere(scope, models.IsGlobal(folderID))
	query := r.q(`
		UPDATE %s
		SET `+set+`
		WHERE `+where+` AND folder_id = ?
	`, r.tables.family(scope.Storage).tree)

	args = append(values, args...)
	result, err := tx.ExecContext(ctx, query, append(args, folderID)...)
	if err != nil {
		return domain.Storage("update folder "+update.Field.String(), err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return domain.Storage("update folder "+update.Field.String(), err)
	}
	if n == 0 {
		return &domain.NotFoundError{Message: fmt.Sprintf("folder %s", folderID)}
	}
	return nil
}

// renameRowsTx moves the tree, permission and subscription rows of one node
// from oldID to newID and returns the number of tree rows changed. The rows
// change owner when the node turns global or private.
func (r *NodeRepository) renameRowsTx(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey, oldID, newID string) (int64, error) {
	fam := r.tables.family(scope.Storage)
	where, args := scopeWhere(scope, models.IsGlobal(oldID))
	set := []interface{}{newID, scope.Owner(newID)}

	var treeRows int64
	for i, table := range []string{fam.tree, fam.permissions, fam.subscriptions} {
		query := r.q(`
			UPDATE %s
			SET folder_id = ?, user_id = ?
			WHERE `+where+` AND folder_id = ?
		`, table)
		result, err := tx.ExecContext(ctx, query, append(appendArgs(set, args...), oldID)...)
		if err != nil {
			if IsIntegrityViolation(err) {
				return 0, &domain.ConflictError{
					Message:    fmt.Sprintf("folder %s already exists", newID),
					ResourceID: newID,
				}
			}
			return 0, domain.Storage("update folder identifier", err)
		}
		if i == 0 {
			if treeRows, err = result.RowsAffected(); err != nil {
				return 0, domain.Storage("update folder identifier", err)
			}
		}
	}
	return treeRows, nil
}

// UpdateSubscribed sets a folder's subscription flag in its own transaction
func (r *NodeRepository) UpdateSubscribed(ctx context.Context, scope models.ScopeKey, folderID string, subscribed bool) error {
	return r.write(ctx, scope, func(ctx context.Context, tx repositories.DBTX) error {
		return r.UpdateSubscribedTx(ctx, tx, scope, folderID, subscribed)
	})
}

// UpdateSubscribedTx sets a folder's subscription flag on the caller's transaction
func (r *NodeRepository) UpdateSubscribedTx(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey, folderID string, subscribed bool) error {
	return r.perms.upsertSubscriptionTx(ctx, tx, scope, folderID, subscribed)
}

// ListFolderIDs returns every folder id visible to the scope's user: its own
// folders and the global ones
func (r *NodeRepository) ListFolderIDs(ctx context.Context, scope models.ScopeKey) ([]string, error) {
	where, args := scopeWhere(scope, false)
	query := r.q(`
		SELECT folder_id FROM %s
		WHERE `+where+`
		ORDER BY folder_id
	`, r.tables.family(scope.Storage).tree)

	var ids []string
	err := r.read(ctx, scope, func(db repositories.DBTX) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return domain.Storage("list folders", err)
		}
		if ids, err = collectStrings(rows); err != nil {
			return domain.Storage("iterate folders", err)
		}
		return nil
	})
	return ids, err
}
