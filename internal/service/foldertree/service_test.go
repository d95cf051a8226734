package foldertree

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"foldertree/internal/domain"
	"foldertree/internal/domain/models"
	"foldertree/internal/domain/services"
	"foldertree/internal/events"
	"foldertree/internal/repository/sqlstore"
)

var scope = models.ScopeKey{ContextID: 1, TreeID: 1, UserID: 7}

type fixture struct {
	svc   services.FolderTreeService
	nodes *sqlstore.NodeRepository
	bus   *events.Bus
	feed  <-chan events.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "tree.db"), "", sqlstore.PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	tables := sqlstore.NewTableNames("")
	require.NoError(t, sqlstore.ApplySchema(ctx, db.Provider.DB(), tables))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := events.NewBus(logger)
	t.Cleanup(bus.Close)
	feed, _ := bus.Subscribe(64)

	config := &sqlstore.RepositoryConfig{
		Provider: db.Provider,
		Tables:   tables,
		Dialect:  db.Dialect,
		Events:   bus,
		Logger:   logger,
	}
	nodes := sqlstore.NewNodeRepository(config)
	svc := NewFolderTreeService(Dependencies{
		Nodes:       nodes,
		Permissions: sqlstore.NewPermissionRepository(config),
		Renamer:     sqlstore.NewRenameRepository(config),
		Deleter:     sqlstore.NewDeleteRepository(config),
		Duplicates:  sqlstore.NewDuplicateRepository(config, language.English),
		TxManager:   sqlstore.NewTransactionManager(db.Provider, logger),
	}, "/", logger)

	return &fixture{svc: svc, nodes: nodes, bus: bus, feed: feed}
}

func (f *fixture) create(t *testing.T, id, parent, name string) {
	t.Helper()
	_, err := f.svc.CreateFolder(context.Background(), scope, &services.CreateFolderRequest{
		FolderID: id,
		ParentID: parent,
		Name:     name,
	})
	require.NoError(t, err)
}

func strPtr(s string) *string { return &s }

// ============================================================================
// CREATE / GET
// ============================================================================

func TestCreateFolder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	by := 42
	subscribed := false

	created, err := f.svc.CreateFolder(ctx, scope, &services.CreateFolderRequest{
		FolderID:    "1/work",
		ParentID:    "1",
		Name:        "Work",
		ModifiedBy:  &by,
		Permissions: []models.PermissionEntry{{Entity: 7, FolderPermission: 8, Admin: true}},
		Subscribed:  &subscribed,
	})
	require.NoError(t, err)
	require.NotNil(t, created.Node.LastModified)

	got, err := f.svc.GetFolder(ctx, scope, "1/work")
	require.NoError(t, err)
	assert.Equal(t, created.Node, got.Node)
	assert.Equal(t, created.Permissions, got.Permissions)
	require.NotNil(t, got.Subscribed)
	assert.False(t, *got.Subscribed)
}

func TestCreateFolder_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *services.CreateFolderRequest
	}{
		{"nil request", nil},
		{"missing id", &services.CreateFolderRequest{ParentID: "1", Name: "A"}},
		{"root id", &services.CreateFolderRequest{FolderID: models.RootID, ParentID: "1", Name: "A"}},
		{"missing name", &services.CreateFolderRequest{FolderID: "1/a", ParentID: "1"}},
		{"missing parent", &services.CreateFolderRequest{FolderID: "1/a", Name: "A"}},
		{"own parent", &services.CreateFolderRequest{FolderID: "1/a", ParentID: "1/a", Name: "A"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateFolder(ctx, scope, tt.req)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestCreateFolder_DuplicateSiblingName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "1/a", "1", "Work")

	_, err := f.svc.CreateFolder(ctx, scope, &services.CreateFolderRequest{
		FolderID: "1/b",
		ParentID: "1",
		Name:     "Work",
	})
	assert.ErrorIs(t, err, domain.ErrConflict)

	// Same name under another parent is fine
	f.create(t, "2/a", "2", "Work")
}

func TestGetFolder_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetFolder(context.Background(), scope, "1/missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ============================================================================
// UPDATE
// ============================================================================

func TestUpdateFolder_RenameMoveAndStamp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "1/a", "1", "A")

	before := time.Now().Add(-time.Second)
	node, err := f.svc.UpdateFolder(ctx, scope, "1/a", &services.UpdateFolderRequest{
		Name:       strPtr("Renamed"),
		ParentID:   strPtr("2"),
		Subscribed: new(bool),
		ModifiedBy: 9,
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", node.Name)
	assert.Equal(t, "2", node.ParentID)
	require.NotNil(t, node.LastModified)
	assert.True(t, node.LastModified.After(before))
	require.NotNil(t, node.ModifiedBy)
	assert.Equal(t, 9, *node.ModifiedBy)

	got, err := f.svc.GetFolder(ctx, scope, "1/a")
	require.NoError(t, err)
	assert.False(t, *got.Subscribed)
}

func TestUpdateFolder_IdentifierCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "1/a", "1", "A")
	f.create(t, "1/a/b", "1/a", "B")
	f.create(t, "1/a/b/c", "1/a/b", "C")

	node, err := f.svc.UpdateFolder(ctx, scope, "1/a", &services.UpdateFolderRequest{
		NewID:      strPtr("1/z"),
		Name:       strPtr("Z"),
		ModifiedBy: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, "1/z", node.FolderID)
	assert.Equal(t, "Z", node.Name)

	ids, err := f.nodes.ListFolderIDs(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, []string{"1/z", "1/z/b", "1/z/b/c"}, ids)

	c, err := f.svc.GetFolder(ctx, scope, "1/z/b/c")
	require.NoError(t, err)
	assert.Equal(t, "1/z/b", c.Node.ParentID)

	var changed []string
	for len(changed) < 2 {
		select {
		case e := <-f.feed:
			changed = append(changed, e.FolderID)
		case <-time.After(time.Second):
			t.Fatalf("missing change events, got %v", changed)
		}
	}
	assert.ElementsMatch(t, []string{"1/a/b", "1/a/b/c"}, changed)
}

func TestUpdateFolder_FailureRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "1/a", "1", "A")
	f.create(t, "1/b", "1", "B")

	_, err := f.svc.UpdateFolder(ctx, scope, "1/a", &services.UpdateFolderRequest{
		Name:  strPtr("Changed"),
		NewID: strPtr("1/b"),
	})
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := f.svc.GetFolder(ctx, scope, "1/a")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Node.Name, "rename rolled back with the failed identifier change")
}

func TestUpdateFolder_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "1/a", "1", "A")

	_, err := f.svc.UpdateFolder(ctx, scope, "1/a", &services.UpdateFolderRequest{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.UpdateFolder(ctx, scope, "1/a", &services.UpdateFolderRequest{Name: strPtr("")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.UpdateFolder(ctx, scope, "1/a", &services.UpdateFolderRequest{ParentID: strPtr("1/a")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.UpdateFolder(ctx, scope, "1/missing", &services.UpdateFolderRequest{Name: strPtr("X")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateFolder_SiblingNameConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "1/a", "1", "A")
	f.create(t, "1/b", "1", "B")
	f.create(t, "2/b", "2", "B")

	tests := []struct {
		name string
		req  *services.UpdateFolderRequest
	}{
		{"rename onto a sibling", &services.UpdateFolderRequest{Name: strPtr("B")}},
		{"move next to a namesake", &services.UpdateFolderRequest{ParentID: strPtr("2"), Name: strPtr("B")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UpdateFolder(ctx, scope, "1/a", tt.req)
			assert.ErrorIs(t, err, domain.ErrConflict)

			got, err := f.svc.GetFolder(ctx, scope, "1/a")
			require.NoError(t, err)
			assert.Equal(t, "A", got.Node.Name)
			assert.Equal(t, "1", got.Node.ParentID)
		})
	}

	// Keeping its own name is not a conflict
	node, err := f.svc.UpdateFolder(ctx, scope, "1/b", &services.UpdateFolderRequest{Name: strPtr("B"), ParentID: strPtr("1")})
	require.NoError(t, err)
	assert.Equal(t, "B", node.Name)
}

func TestGetFolder_SharedFolderSeenByEveryUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := scope.ForUser(8)
	subscribed := false

	f.create(t, "5", models.RootID, "Mine")
	err := f.svc.ReplaceFolder(ctx, other, &models.Folder{
		Node:        models.FolderNode{FolderID: "5", ParentID: models.RootID, Name: "Theirs"},
		Permissions: []models.PermissionEntry{{Entity: 8, FolderPermission: 2}},
		Subscribed:  &subscribed,
	})
	require.NoError(t, err)

	for _, s := range []models.ScopeKey{scope, other} {
		got, err := f.svc.GetFolder(ctx, s, "5")
		require.NoError(t, err)
		assert.Equal(t, "Theirs", got.Node.Name)
		assert.Equal(t, []models.PermissionEntry{{Entity: 8, FolderPermission: 2}}, got.Permissions)
		assert.False(t, *got.Subscribed)
	}
}

// ============================================================================
// REPLACE / DELETE
// ============================================================================

func TestReplaceFolder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "1/a", "1", "A")
	f.create(t, "1/a/child", "1/a", "Child")

	err := f.svc.ReplaceFolder(ctx, scope, &models.Folder{
		Node:        models.FolderNode{FolderID: "1/a", ParentID: "2", Name: "Replaced"},
		Permissions: []models.PermissionEntry{{Entity: 3, FolderPermission: 2}},
	})
	require.NoError(t, err)

	got, err := f.svc.GetFolder(ctx, scope, "1/a")
	require.NoError(t, err)
	assert.Equal(t, "Replaced", got.Node.Name)
	assert.Equal(t, "2", got.Node.ParentID)
	assert.Equal(t, []models.PermissionEntry{{Entity: 3, FolderPermission: 2}}, got.Permissions)

	_, err = f.svc.GetFolder(ctx, scope, "1/a/child")
	assert.NoError(t, err, "children survive a replace")
}

func TestDeleteFolder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "1/a", "1", "A")
	f.create(t, "1/a/b", "1/a", "B")
	f.create(t, "1/c", "1", "C")

	outcome, err := f.svc.DeleteFolder(ctx, scope, "1/a", models.DeleteOptions{Recursive: true, Backup: true})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDeleted, outcome)

	ids, err := f.nodes.ListFolderIDs(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, []string{"1/c"}, ids)

	archived, err := f.svc.GetFolder(ctx, scope.Backup(), "1/a/b")
	require.NoError(t, err)
	assert.Equal(t, "B", archived.Node.Name)

	outcome, err = f.svc.DeleteFolder(ctx, scope, "1/a", models.DeleteOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeNotFound, outcome)
}

func TestHardDeleteFolder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "1/a", "1", "A")

	deleted, err := f.svc.HardDeleteFolder(ctx, scope, "1/a")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = f.svc.HardDeleteFolder(ctx, scope, "1/a")
	require.NoError(t, err)
	assert.False(t, deleted)
}

// ============================================================================
// LISTING / DUPLICATES
// ============================================================================

func TestListChildren(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "1/b", "1", "banana")
	f.create(t, "1/a", "1", "Apple")

	ids, err := f.svc.ListChildren(ctx, scope, "1", language.English, []models.ChildRef{
		{ID: "mail/banana", Name: "Banana"},
		{ID: "mail/cherry", Name: "cherry"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1/a", "mail/banana", "1/b", "mail/cherry"}, ids)
}

func TestListChildren_ReadsWorkingStorage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "1/a", "1", "A")

	ids, err := f.svc.ListChildren(ctx, scope.Backup(), "1", language.English, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"1/a"}, ids)
}

func TestResolveDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Racing writers bypass the sibling-name check
	for _, id := range []string{"1/x10", "1/x2"} {
		require.NoError(t, f.nodes.Insert(ctx, scope, &models.FolderNode{FolderID: id, ParentID: "1", Name: "Dup"}))
	}

	removed, err := f.svc.ResolveDuplicates(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"Dup": {"1/x10"}}, removed)

	_, err = f.svc.GetFolder(ctx, scope, "1/x2")
	assert.NoError(t, err)
}

func TestInvalidScope(t *testing.T) {
	f := newFixture(t)
	bad := models.ScopeKey{ContextID: -1, TreeID: 1, UserID: 1}

	_, err := f.svc.GetFolder(context.Background(), bad, "1/a")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
