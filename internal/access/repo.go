package access

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository reads and writes user role grants.
type Repository interface {
	FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	ListRoles(ctx context.Context, userID uuid.UUID) ([]enums.Role, error)
	InsertRole(ctx context.Context, userID uuid.UUID, role enums.Role) error
	DeleteRole(ctx context.Context, userID uuid.UUID, role enums.Role) (int64, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds the role repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) ListRoles(ctx context.Context, userID uuid.UUID) ([]enums.Role, error) {
	var rows []models.UserRole
	if err := r.DB(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	roles := make([]enums.Role, 0, len(rows))
	for _, row := range rows {
		roles = append(roles, row.Role)
	}
	return roles, nil
}

func (r *repository) InsertRole(ctx context.Context, userID uuid.UUID, role enums.Role) error {
	return r.DB(ctx).Create(&models.UserRole{UserID: userID, Role: role}).Error
}

func (r *repository) DeleteRole(ctx context.Context, userID uuid.UUID, role enums.Role) (int64, error) {
	res := r.DB(ctx).Where("user_id = ? AND role = ?", userID, role).Delete(&models.UserRole{})
	return res.RowsAffected, res.Error
}
