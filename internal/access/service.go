package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/audit"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// RoleGrant describes one role and the permissions it carries.
type RoleGrant struct {
	Role        enums.Role         `json:"role"`
	Permissions []enums.Permission `json:"permissions"`
}

// Service resolves request capabilities and manages role grants.
type Service interface {
	Resolve(ctx context.Context, userID uuid.UUID) (Capabilities, error)
	ListRoles() []RoleGrant
	UserRoles(ctx context.Context, userID uuid.UUID) ([]enums.Role, error)
	AssignRole(ctx context.Context, actor Capabilities, userID uuid.UUID, role enums.Role) error
	RemoveRole(ctx context.Context, actor Capabilities, userID uuid.UUID, role enums.Role) error
}

type service struct {
	repo  Repository
	audit audit.Recorder
}

// NewService builds the access gate service.
func NewService(repo Repository, recorder audit.Recorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("access repository required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	return &service{repo: repo, audit: recorder}, nil
}

func (s *service) Resolve(ctx context.Context, userID uuid.UUID) (Capabilities, error) {
	if userID == uuid.Nil {
		return Capabilities{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	user, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Capabilities{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user not found")
		}
		return Capabilities{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if !user.IsActive {
		return Capabilities{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user is inactive")
	}
	roles, err := s.repo.ListRoles(ctx, userID)
	if err != nil {
		return Capabilities{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user roles")
	}
	return NewCapabilities(userID, roles...), nil
}

func (s *service) ListRoles() []RoleGrant {
	roles := enums.Roles()
	out := make([]RoleGrant, 0, len(roles))
	for _, role := range roles {
		out = append(out, RoleGrant{Role: role, Permissions: PermissionsFor(role)})
	}
	return out
}

func (s *service) UserRoles(ctx context.Context, userID uuid.UUID) ([]enums.Role, error) {
	if _, err := s.findUser(ctx, userID); err != nil {
		return nil, err
	}
	roles, err := s.repo.ListRoles(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user roles")
	}
	return roles, nil
}

func (s *service) AssignRole(ctx context.Context, actor Capabilities, userID uuid.UUID, role enums.Role) error {
	if !actor.IsAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only admins may assign roles")
	}
	if !role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown role")
	}
	if _, err := s.findUser(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.InsertRole(ctx, userID, role); err != nil {
		if db.IsUniqueViolation(err, "user_roles") {
			return pkgerrors.New(pkgerrors.CodeConflict, "user already has role").
				WithDetails(map[string]any{"role": role})
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign role")
	}

	s.audit.Record(ctx, audit.Entry{
		UserID:   &actor.UserID,
		Action:   enums.AuditUserRoleAssigned,
		Entity:   enums.AuditEntityUser,
		EntityID: userID.String(),
		NewValue: map[string]any{"role": role},
	})
	return nil
}

func (s *service) RemoveRole(ctx context.Context, actor Capabilities, userID uuid.UUID, role enums.Role) error {
	if !actor.IsAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only admins may remove roles")
	}
	if !role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown role")
	}
	if _, err := s.findUser(ctx, userID); err != nil {
		return err
	}
	removed, err := s.repo.DeleteRole(ctx, userID, role)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove role")
	}
	if removed == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user does not have role")
	}

	s.audit.Record(ctx, audit.Entry{
		UserID:   &actor.UserID,
		Action:   enums.AuditUserRoleRemoved,
		Entity:   enums.AuditEntityUser,
		EntityID: userID.String(),
		OldValue: map[string]any{"role": role},
	})
	return nil
}

func (s *service) findUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}
