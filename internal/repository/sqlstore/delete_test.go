package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foldertree/internal/domain/models"
)

func TestDeleteRepository_Delete(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		opts      models.DeleteOptions
		want      models.DeleteOutcome
		remaining []string
	}{
		{
			name:      "single folder leaves children",
			target:    "5",
			want:      models.OutcomeDeleted,
			remaining: []string{"5/a", "5/a/b", "6"},
		},
		{
			name:      "recursive removes the subtree only",
			target:    "5",
			opts:      models.DeleteOptions{Recursive: true},
			want:      models.OutcomeDeleted,
			remaining: []string{"6"},
		},
		{
			name:      "recursive from the middle",
			target:    "5/a",
			opts:      models.DeleteOptions{Recursive: true},
			want:      models.OutcomeDeleted,
			remaining: []string{"5", "6"},
		},
		{
			name:      "missing folder",
			target:    "u:missing",
			opts:      models.DeleteOptions{Recursive: true},
			want:      models.OutcomeNotFound,
			remaining: []string{"5", "5/a", "5/a/b", "6"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestStore(t)
			ctx := context.Background()
			s.seed(t, testScope,
				[3]string{"5", "0", "Five"},
				[3]string{"5/a", "5", "A"},
				[3]string{"5/a/b", "5/a", "B"},
				[3]string{"6", "0", "Six"},
			)

			got, err := s.deleter.Delete(ctx, testScope, tt.target, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			ids, err := s.nodes.ListFolderIDs(ctx, testScope)
			require.NoError(t, err)
			assert.Equal(t, tt.remaining, ids)
		})
	}
}

func TestDeleteRepository_RemovesOwnedRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"u:a", "u:a/child", "u:sibling"} {
		parent := "1"
		if id == "u:a/child" {
			parent = "u:a"
		}
		require.NoError(t, s.nodes.InsertFolder(ctx, testScope, &models.Folder{
			Node:        models.FolderNode{FolderID: id, ParentID: parent, Name: id},
			Permissions: []models.PermissionEntry{{Entity: 7, FolderPermission: 8}},
			Subscribed:  boolPtr(false),
		}))
	}

	outcome, err := s.deleter.Delete(ctx, testScope, "u:a", models.DeleteOptions{Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDeleted, outcome)

	for _, id := range []string{"u:a", "u:a/child"} {
		perms, err := s.perms.FetchPermissions(ctx, testScope, id)
		require.NoError(t, err)
		assert.Empty(t, perms, id)
	}

	// The sibling keeps every row
	perms, err := s.perms.FetchPermissions(ctx, testScope, "u:sibling")
	require.NoError(t, err)
	assert.Len(t, perms, 1)
	subscribed, err := s.perms.FetchSubscribed(ctx, testScope, "u:sibling")
	require.NoError(t, err)
	assert.False(t, subscribed)

	subscribed, err = s.perms.FetchSubscribed(ctx, testScope, "u:a/child")
	require.NoError(t, err)
	assert.True(t, subscribed, "subscription row is gone")
}

func TestDeleteRepository_BackupCopiesRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	folder := &models.Folder{
		Node: models.FolderNode{
			FolderID:     "u:a",
			ParentID:     "1",
			Name:         "A",
			LastModified: millis(time.Date(2023, 6, 1, 8, 0, 0, 0, time.UTC)),
			ModifiedBy:   intPtr(7),
		},
		Permissions: []models.PermissionEntry{{Entity: 7, FolderPermission: 8, Admin: true}},
		Subscribed:  boolPtr(false),
	}
	require.NoError(t, s.nodes.InsertFolder(ctx, testScope, folder))
	s.seed(t, testScope, [3]string{"u:a/child", "u:a", "Child"})

	outcome, err := s.deleter.Delete(ctx, testScope, "u:a", models.DeleteOptions{Recursive: true, Backup: true})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDeleted, outcome)

	assert.False(t, s.exists(t, testScope, "u:a"))
	assert.False(t, s.exists(t, testScope, "u:a/child"))

	backup := testScope.Backup()
	archived, err := s.nodes.Fetch(ctx, backup, "u:a")
	require.NoError(t, err)
	assert.Equal(t, &folder.Node, archived)
	assert.True(t, s.exists(t, backup, "u:a/child"))

	perms, err := s.perms.FetchPermissions(ctx, backup, "u:a")
	require.NoError(t, err)
	assert.Equal(t, folder.Permissions, perms)
	subscribed, err := s.perms.FetchSubscribed(ctx, backup, "u:a")
	require.NoError(t, err)
	assert.False(t, subscribed)
}

func TestDeleteRepository_BackupReplacesEarlierArchive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	opts := models.DeleteOptions{Backup: true}

	s.seed(t, testScope, [3]string{"u:a", "1", "First"})
	_, err := s.deleter.Delete(ctx, testScope, "u:a", opts)
	require.NoError(t, err)

	s.seed(t, testScope, [3]string{"u:a", "1", "Second"})
	outcome, err := s.deleter.Delete(ctx, testScope, "u:a", opts)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDeleted, outcome)

	archived, err := s.nodes.Fetch(ctx, testScope.Backup(), "u:a")
	require.NoError(t, err)
	assert.Equal(t, "Second", archived.Name)
}

func TestDeleteRepository_ArchiveFailureStillDeletes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.seed(t, testScope, [3]string{"u:a", "1", "A"})

	_, err := s.db.Provider.DB().ExecContext(ctx, "DROP TABLE "+s.tables.BackupTree)
	require.NoError(t, err)

	outcome, err := s.deleter.Delete(ctx, testScope, "u:a", models.DeleteOptions{Backup: true})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDeletedArchiveFailed, outcome)
	assert.True(t, outcome.Deleted())
	assert.False(t, s.exists(t, testScope, "u:a"))
}

func TestDeleteRepository_BackupIgnoredForBackupStorage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	backup := testScope.Backup()
	s.seed(t, backup, [3]string{"u:a", "1", "A"})

	outcome, err := s.deleter.Delete(ctx, backup, "u:a", models.DeleteOptions{Backup: true})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDeleted, outcome)
	assert.False(t, s.exists(t, backup, "u:a"))
}

func TestDeleteRepository_HardDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.seed(t, testScope,
		[3]string{"u:a", "1", "A"},
		[3]string{"u:a/b", "u:a", "B"},
	)

	deleted, err := s.deleter.HardDelete(ctx, testScope, "u:a")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.True(t, s.exists(t, testScope, "u:a/b"), "never recursive")

	deleted, err = s.deleter.HardDelete(ctx, testScope, "u:a")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDeleteRepository_GlobalFolderRemovesEveryUsersChildren(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	other := testScope.ForUser(8)

	s.seed(t, testScope,
		[3]string{"25", "0", "Shared"},
		[3]string{"u:mine", "25", "Mine"},
	)
	s.seed(t, other,
		[3]string{"u:mine", "25", "Same id, other user"},
		[3]string{"u:mine/deep", "u:mine", "Deep"},
	)
	require.NoError(t, s.nodes.UpdateSubscribed(ctx, other, "u:mine", false))

	outcome, err := s.deleter.Delete(ctx, testScope, "25", models.DeleteOptions{Recursive: true, Backup: true})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDeleted, outcome)

	for _, scope := range []models.ScopeKey{testScope, other} {
		ids, err := s.nodes.ListFolderIDs(ctx, scope)
		require.NoError(t, err)
		assert.Empty(t, ids, scope.String())
	}

	// Each user's rows are archived under that user
	archived, err := s.nodes.Fetch(ctx, other.Backup(), "u:mine")
	require.NoError(t, err)
	assert.Equal(t, "Same id, other user", archived.Name)
	assert.True(t, s.exists(t, other.Backup(), "u:mine/deep"))
	subscribed, err := s.perms.FetchSubscribed(ctx, other.Backup(), "u:mine")
	require.NoError(t, err)
	assert.False(t, subscribed)

	archived, err = s.nodes.Fetch(ctx, testScope.Backup(), "u:mine")
	require.NoError(t, err)
	assert.Equal(t, "Mine", archived.Name)
}
