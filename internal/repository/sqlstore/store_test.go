package sqlstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"foldertree/internal/domain/models"
	"foldertree/internal/events"
)

// recordingSink keeps every posted event
type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) Post(_ context.Context, e events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) folderIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.events))
	for i, e := range s.events {
		ids[i] = e.FolderID
	}
	return ids
}

type testStore struct {
	db         *Database
	tables     *TableNames
	sink       *recordingSink
	txm        *TransactionManager
	nodes      *NodeRepository
	perms      *PermissionRepository
	rename     *RenameRepository
	deleter    *DeleteRepository
	duplicates *DuplicateRepository
}

var testScope = models.ScopeKey{ContextID: 1, TreeID: 1, UserID: 7}

// openTestStore creates a file-backed SQLite database with the schema applied
func openTestStore(t *testing.T) *testStore {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "tree.db"), "", PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	tables := NewTableNames("test_")
	require.NoError(t, ApplySchema(ctx, db.Provider.DB(), tables))

	sink := &recordingSink{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	config := &RepositoryConfig{
		Provider: db.Provider,
		Tables:   tables,
		Dialect:  db.Dialect,
		Events:   sink,
		Logger:   logger,
	}

	return &testStore{
		db:         db,
		tables:     tables,
		sink:       sink,
		txm:        NewTransactionManager(db.Provider, logger),
		nodes:      NewNodeRepository(config),
		perms:      NewPermissionRepository(config),
		rename:     NewRenameRepository(config),
		deleter:    NewDeleteRepository(config),
		duplicates: NewDuplicateRepository(config, language.English),
	}
}

// seed inserts nodes given as id, parent, name triples
func (s *testStore) seed(t *testing.T, scope models.ScopeKey, rows ...[3]string) {
	t.Helper()
	for _, r := range rows {
		require.NoError(t, s.nodes.Insert(context.Background(), scope, &models.FolderNode{
			FolderID: r[0],
			ParentID: r[1],
			Name:     r[2],
		}))
	}
}

func (s *testStore) exists(t *testing.T, scope models.ScopeKey, folderID string) bool {
	t.Helper()
	ok, err := s.nodes.Exists(context.Background(), scope, folderID)
	require.NoError(t, err)
	return ok
}

func millis(t time.Time) *time.Time {
	t = t.UTC().Truncate(time.Millisecond)
	return &t
}

func intPtr(v int) *int { return &v }

func boolPtr(v bool) *bool { return &v }
