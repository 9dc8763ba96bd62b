package address

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages a user's delivery addresses.
type Service interface {
	Add(ctx context.Context, userID uuid.UUID, input Input) (*View, error)
	List(ctx context.Context, userID uuid.UUID) ([]View, error)
}

type service struct {
	base repo.Base
	tx   txRunner
}

func NewService(db *gorm.DB, tx txRunner) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("address db required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{base: repo.NewBase(db), tx: tx}, nil
}

// Add stores a new address. A default address unsets the user's previous
// default; a user's first address is always the default.
func (s *service) Add(ctx context.Context, userID uuid.UUID, input Input) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	input.normalize()
	if err := input.validate(); err != nil {
		return nil, err
	}

	row := input.toModel(userID)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		conn := s.base.WithTx(tx).DB(ctx)

		var existing int64
		if err := conn.Model(&models.Address{}).Where("user_id = ?", userID).Count(&existing).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count addresses")
		}
		if existing == 0 {
			row.IsDefault = true
		}
		if row.IsDefault && existing > 0 {
			err := conn.Model(&models.Address{}).
				Where("user_id = ? AND is_default = ?", userID, true).
				Update("is_default", false).Error
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset default address")
			}
		}
		if err := conn.Create(row).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create address")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	view := toView(*row)
	return &view, nil
}

// List returns the user's addresses, default first then newest.
func (s *service) List(ctx context.Context, userID uuid.UUID) ([]View, error) {
	var rows []models.Address
	err := s.base.DB(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC").
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	out := make([]View, 0, len(rows))
	for _, row := range rows {
		out = append(out, toView(row))
	}
	return out, nil
}

func (in *Input) normalize() {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Line1 = strings.TrimSpace(in.Line1)
	in.City = strings.TrimSpace(in.City)
	in.State = strings.TrimSpace(in.State)
	in.PostalCode = strings.TrimSpace(in.PostalCode)
	in.Country = strings.ToUpper(strings.TrimSpace(in.Country))
	if in.Line2 != nil {
		trimmed := strings.TrimSpace(*in.Line2)
		if trimmed == "" {
			in.Line2 = nil
		} else {
			in.Line2 = &trimmed
		}
	}
}

func (in Input) validate() error {
	missing := []string{}
	for field, value := range map[string]string{
		"full_name":   in.FullName,
		"phone":       in.Phone,
		"line1":       in.Line1,
		"city":        in.City,
		"state":       in.State,
		"postal_code": in.PostalCode,
		"country":     in.Country,
	} {
		if value == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "address is incomplete").
			WithDetails(map[string]any{"missing": missing})
	}
	return nil
}
