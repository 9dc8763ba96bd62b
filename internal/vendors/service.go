package vendors

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Lookup resolves the vendor profile owned by a user.
type Lookup interface {
	ForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Vendor, error)
}

// Service reads vendor profiles.
type Service struct {
	base repo.Base
}

// NewService builds the vendor lookup.
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("vendors db required")
	}
	return &Service{base: repo.NewBase(db)}, nil
}

// ForUser returns the vendor owned by userID, reading through tx when given.
// Users without a profile get VENDOR_NOT_FOUND.
func (s *Service) ForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	err := s.base.WithTx(tx).DB(ctx).Where("user_id = ?", userID).First(&vendor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vendor profile not found").WithReason(pkgerrors.ReasonVendorNotFound)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor")
	}
	return &vendor, nil
}
