package foldertree

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/text/language"

	"foldertree/internal/domain"
	"foldertree/internal/domain/models"
	"foldertree/internal/domain/repositories"
	"foldertree/internal/domain/services"
)

// Dependencies groups the repositories the service drives
type Dependencies struct {
	Nodes       repositories.NodeStore
	Permissions repositories.PermissionStore
	Renamer     repositories.RenamePropagator
	Deleter     repositories.DeleteEngine
	Duplicates  repositories.DuplicateResolver
	TxManager   repositories.TransactionManager
}

type folderTreeService struct {
	nodes      repositories.NodeStore
	perms      repositories.PermissionStore
	renamer    repositories.RenamePropagator
	deleter    repositories.DeleteEngine
	duplicates repositories.DuplicateResolver
	txManager  repositories.TransactionManager
	delimiter  string
	logger     *slog.Logger
	now        func() time.Time
}

// NewFolderTreeService creates a new folder tree service
func NewFolderTreeService(deps Dependencies, delimiter string, logger *slog.Logger) services.FolderTreeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &folderTreeService{
		nodes:      deps.Nodes,
		perms:      deps.Permissions,
		renamer:    deps.Renamer,
		deleter:    deps.Deleter,
		duplicates: deps.Duplicates,
		txManager:  deps.TxManager,
		delimiter:  delimiter,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateFolder stores a new virtual folder. A sibling with the same name is a conflict.
func (s *folderTreeService) CreateFolder(ctx context.Context, scope models.ScopeKey, req *services.CreateFolderRequest) (*models.Folder, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	if err := validateCreateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	folder := &models.Folder{
		Node: models.FolderNode{
			FolderID:     req.FolderID,
			ParentID:     req.ParentID,
			Name:         req.Name,
			LastModified: &now,
			ModifiedBy:   req.ModifiedBy,
		},
		Permissions: req.Permissions,
		Subscribed:  req.Subscribed,
	}
	if folder.Permissions == nil {
		folder.Permissions = []models.PermissionEntry{}
	}

	err := s.txManager.ExecTx(ctx, scope.ContextID, func(ctx context.Context, tx repositories.DBTX) error {
		if err := s.checkSiblingName(ctx, tx, scope, req.FolderID, req.ParentID, req.Name); err != nil {
			return err
		}
		return s.nodes.InsertFolderTx(ctx, tx, scope, folder)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("folder created",
		"context_id", scope.ContextID,
		"tree_id", scope.TreeID,
		"user_id", scope.UserID,
		"folder_id", folder.Node.FolderID,
		"parent_id", folder.Node.ParentID,
		"name", folder.Node.Name,
	)
	return folder, nil
}

// GetFolder loads a folder with its permissions and subscription flag
func (s *folderTreeService) GetFolder(ctx context.Context, scope models.ScopeKey, folderID string) (*models.Folder, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}

	folder := &models.Folder{}
	err := s.txManager.ReadTx(ctx, scope.ContextID, func(ctx context.Context, tx repositories.DBTX) error {
		node, err := s.nodes.FetchTx(ctx, tx, scope, folderID)
		if err != nil {
			return err
		}
		folder.Node = *node
		if folder.Permissions, err = s.perms.FetchPermissionsTx(ctx, tx, scope, folderID); err != nil {
			return err
		}
		subscribed, err := s.perms.FetchSubscribedTx(ctx, tx, scope, folderID)
		if err != nil {
			return err
		}
		folder.Subscribed = &subscribed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return folder, nil
}

// UpdateFolder applies the requested changes in one transaction. The
// identifier change runs last and cascades to path-encoded descendants.
func (s *folderTreeService) UpdateFolder(ctx context.Context, scope models.ScopeKey, folderID string, req *services.UpdateFolderRequest) (*models.FolderNode, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	if err := validateUpdateRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	finalID := folderID
	if req.NewID != nil {
		finalID = *req.NewID
	}

	var node *models.FolderNode
	err := s.txManager.ExecTx(ctx, scope.ContextID, func(ctx context.Context, tx repositories.DBTX) error {
		current, err := s.nodes.FetchTx(ctx, tx, scope, folderID)
		if err != nil {
			return err
		}

		parentID, name := current.ParentID, current.Name
		if req.ParentID != nil {
			parentID = *req.ParentID
		}
		if req.Name != nil {
			name = *req.Name
		}
		if parentID != current.ParentID || name != current.Name {
			if err := s.checkSiblingName(ctx, tx, scope, folderID, parentID, name); err != nil {
				return err
			}
		}

		if req.ParentID != nil && *req.ParentID != current.ParentID {
			if *req.ParentID == folderID {
				return &domain.ValidationError{Message: "cannot move folder to be its own parent"}
			}
			if err := s.nodes.UpdateFieldTx(ctx, tx, scope, folderID, models.SetParent(*req.ParentID)); err != nil {
				return err
			}
		}
		if req.Name != nil && *req.Name != current.Name {
			if err := s.nodes.UpdateFieldTx(ctx, tx, scope, folderID, models.SetName(*req.Name)); err != nil {
				return err
			}
		}
		if req.Subscribed != nil {
			if err := s.nodes.UpdateSubscribedTx(ctx, tx, scope, folderID, *req.Subscribed); err != nil {
				return err
			}
		}
		stamp := models.SetLastModified(s.now().UTC(), req.ModifiedBy)
		if err := s.nodes.UpdateFieldTx(ctx, tx, scope, folderID, stamp); err != nil {
			return err
		}
		if finalID != folderID {
			if err := s.renamer.UpdateIdentifierAndCascadeTx(ctx, tx, scope, finalID, folderID, s.delimiter); err != nil {
				return err
			}
		}

		node, err = s.nodes.FetchTx(ctx, tx, scope, finalID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("folder updated",
		"context_id", scope.ContextID,
		"tree_id", scope.TreeID,
		"user_id", scope.UserID,
		"folder_id", folderID,
		"new_id", finalID,
	)
	return node, nil
}

// checkSiblingName fails when a folder other than folderID is named name under parentID
func (s *folderTreeService) checkSiblingName(ctx context.Context, tx repositories.DBTX, scope models.ScopeKey, folderID, parentID, name string) error {
	existing, found, err := s.nodes.FindByNameTx(ctx, tx, scope, parentID, name)
	if err != nil {
		return err
	}
	if found && existing != folderID {
		return &domain.ConflictError{
			Message:    fmt.Sprintf("a folder named %q already exists in this location", name),
			ResourceID: existing,
		}
	}
	return nil
}

// ReplaceFolder swaps a folder's rows for folder in one transaction
func (s *folderTreeService) ReplaceFolder(ctx context.Context, scope models.ScopeKey, folder *models.Folder) error {
	if err := validateScope(scope); err != nil {
		return err
	}
	if err := validateNode(&folder.Node); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	return s.txManager.ExecTx(ctx, scope.ContextID, func(ctx context.Context, tx repositories.DBTX) error {
		if _, err := s.deleter.DeleteTx(ctx, tx, scope, folder.Node.FolderID, models.DeleteOptions{}); err != nil {
			return err
		}
		return s.nodes.InsertFolderTx(ctx, tx, scope, folder)
	})
}

// DeleteFolder removes a folder according to opts
func (s *folderTreeService) DeleteFolder(ctx context.Context, scope models.ScopeKey, folderID string, opts models.DeleteOptions) (models.DeleteOutcome, error) {
	if err := validateScope(scope); err != nil {
		return models.OutcomeNotFound, err
	}

	outcome, err := s.deleter.Delete(ctx, scope, folderID, opts)
	if err != nil {
		return models.OutcomeNotFound, err
	}

	level := slog.LevelInfo
	if outcome == models.OutcomeDeletedArchiveFailed {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "folder deleted",
		"context_id", scope.ContextID,
		"tree_id", scope.TreeID,
		"user_id", scope.UserID,
		"folder_id", folderID,
		"recursive", opts.Recursive,
		"backup", opts.Backup,
		"outcome", outcome.String(),
	)
	return outcome, nil
}

// HardDeleteFolder removes one folder in an independent transaction
func (s *folderTreeService) HardDeleteFolder(ctx context.Context, scope models.ScopeKey, folderID string) (bool, error) {
	if err := validateScope(scope); err != nil {
		return false, err
	}
	return s.deleter.HardDelete(ctx, scope, folderID)
}

// ListChildren orders the stored children of parentID together with external ones
func (s *folderTreeService) ListChildren(ctx context.Context, scope models.ScopeKey, parentID string, locale language.Tag, external []models.ChildRef) ([]string, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	virtual, err := s.nodes.FetchChildren(ctx, scope.Working(), parentID)
	if err != nil {
		return nil, err
	}
	return OrderChildren(parentID, locale, virtual, external), nil
}

// ResolveDuplicates removes same-name siblings of the working tree
func (s *folderTreeService) ResolveDuplicates(ctx context.Context, scope models.ScopeKey) (map[string][]string, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	removed, err := s.duplicates.ResolveDuplicates(ctx, scope.Working())
	if err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		s.logger.Warn("duplicate folders resolved",
			"context_id", scope.ContextID,
			"tree_id", scope.TreeID,
			"user_id", scope.UserID,
			"names", len(removed),
		)
	}
	return removed, nil
}
