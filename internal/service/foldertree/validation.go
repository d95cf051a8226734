package foldertree

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"foldertree/internal/config"
	"foldertree/internal/domain"
	"foldertree/internal/domain/models"
	"foldertree/internal/domain/services"
)

var errRootID = errors.New("the root identifier is reserved")

func notRoot(value interface{}) error {
	v, _ := validation.Indirect(value)
	id, _ := v.(string)
	if id == models.RootID {
		return errRootID
	}
	return nil
}

var folderIDRules = []validation.Rule{
	validation.Required,
	validation.Length(1, config.MaxFolderIDLength),
	validation.By(notRoot),
}

var nameRules = []validation.Rule{
	validation.Required,
	validation.Length(1, config.MaxFolderNameLength),
}

// validateScope rejects keys that cannot address any row
func validateScope(scope models.ScopeKey) error {
	if scope.ContextID < 0 || scope.TreeID < 0 || scope.UserID < 0 {
		return &domain.ValidationError{Message: fmt.Sprintf("invalid scope %s", scope)}
	}
	if scope.Storage != models.StorageWorking && scope.Storage != models.StorageBackup {
		return &domain.ValidationError{Message: fmt.Sprintf("unknown storage %d", scope.Storage)}
	}
	return nil
}

// validateCreateRequest validates a folder creation request
func validateCreateRequest(req *services.CreateFolderRequest) error {
	if req == nil {
		return errors.New("request is required")
	}
	if req.FolderID == req.ParentID {
		return errors.New("a folder cannot be its own parent")
	}
	return validation.ValidateStruct(req,
		validation.Field(&req.FolderID, folderIDRules...),
		validation.Field(&req.ParentID, validation.Required, validation.Length(1, config.MaxFolderIDLength)),
		validation.Field(&req.Name, nameRules...),
	)
}

// validateUpdateRequest validates a folder update request
func validateUpdateRequest(req *services.UpdateFolderRequest) error {
	if req == nil {
		return errors.New("request is required")
	}
	// At least one field must be provided
	if req.Name == nil && req.ParentID == nil && req.NewID == nil && req.Subscribed == nil {
		return errors.New("at least one field must be provided")
	}

	var rules []*validation.FieldRules
	if req.Name != nil {
		rules = append(rules, validation.Field(&req.Name, nameRules...))
	}
	if req.ParentID != nil {
		rules = append(rules, validation.Field(&req.ParentID,
			validation.Required,
			validation.Length(1, config.MaxFolderIDLength),
		))
	}
	if req.NewID != nil {
		rules = append(rules, validation.Field(&req.NewID, folderIDRules...))
	}
	if len(rules) == 0 {
		return nil
	}
	return validation.ValidateStruct(req, rules...)
}

func validateNode(node *models.FolderNode) error {
	return validation.ValidateStruct(node,
		validation.Field(&node.FolderID, folderIDRules...),
		validation.Field(&node.ParentID, validation.Required, validation.Length(1, config.MaxFolderIDLength)),
		validation.Field(&node.Name, nameRules...),
	)
}
