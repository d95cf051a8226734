package sqlstore

import (
	"context"
	"fmt"

	"foldertree/internal/domain/repositories"
)

// Schema returns the bootstrap DDL for both storage families. It is meant for
// development and test databases; production schemas are managed elsewhere.
func Schema(t *TableNames) []string {
	var stmts []string
	for _, f := range []tableFamily{
		{t.Tree, t.Permissions, t.Subscriptions},
		{t.BackupTree, t.BackupPermissions, t.BackupSubscriptions},
	} {
		stmts = append(stmts,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	cid INTEGER NOT NULL,
	tree INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	folder_id VARCHAR(192) NOT NULL,
	parent_id VARCHAR(192) NOT NULL,
	name VARCHAR(384) NOT NULL,
	last_modified BIGINT,
	modified_by INTEGER,
	shadow VARCHAR(192) NOT NULL DEFAULT '',
	sort_num INTEGER,
	PRIMARY KEY (cid, tree, user_id, folder_id)
)`, f.tree),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_parent_idx ON %s (cid, tree, user_id, parent_id)`, f.tree, f.tree),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	cid INTEGER NOT NULL,
	tree INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	folder_id VARCHAR(192) NOT NULL,
	entity INTEGER NOT NULL,
	group_flag BOOLEAN NOT NULL,
	fp INTEGER NOT NULL,
	orp INTEGER NOT NULL,
	owp INTEGER NOT NULL,
	odp INTEGER NOT NULL,
	admin_flag BOOLEAN NOT NULL,
	system BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (cid, tree, user_id, folder_id, entity)
)`, f.permissions),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	cid INTEGER NOT NULL,
	tree INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	folder_id VARCHAR(192) NOT NULL,
	subscribed BOOLEAN NOT NULL,
	PRIMARY KEY (cid, tree, user_id, folder_id)
)`, f.subscriptions),
		)
	}
	return stmts
}

// ApplySchema creates any missing tables
func ApplySchema(ctx context.Context, db repositories.DBTX, t *TableNames) error {
	for _, stmt := range Schema(t) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
