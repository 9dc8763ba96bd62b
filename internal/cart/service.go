package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Clearer removes cart items inside another operation's transaction.
type Clearer interface {
	ClearItems(ctx context.Context, tx *gorm.DB, userID uuid.UUID, productIDs []uuid.UUID) error
}

// Service exposes the buyer's cart.
type Service interface {
	Clearer
	Get(ctx context.Context, userID uuid.UUID) (*View, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*View, error)
	UpdateItem(ctx context.Context, userID, itemID uuid.UUID, input UpdateItemInput) (*View, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*View, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo  Repository
	tx    txRunner
	stock inventory.Reader
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, tx txRunner, stock inventory.Reader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if stock == nil {
		return nil, fmt.Errorf("inventory reader required")
	}
	return &service{repo: repo, tx: tx, stock: stock}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if _, err := s.repo.GetOrCreate(ctx, userID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return s.load(ctx, s.repo, userID)
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		product, err := repo.FindProduct(ctx, input.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").WithReason(pkgerrors.ReasonProductNotFound)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !product.IsActive {
			return inactiveProduct(product)
		}

		cart, err := repo.GetOrCreate(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		existing, err := repo.FindItemByProduct(ctx, cart.ID, product.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		wanted := input.Quantity
		if existing != nil {
			wanted += existing.Quantity
		}
		if err := s.ensureStock(ctx, product, wanted); err != nil {
			return err
		}

		if existing != nil {
			err = repo.UpdateItemQuantity(ctx, existing.ID, wanted)
		} else {
			err = repo.CreateItem(ctx, &models.CartItem{CartID: cart.ID, ProductID: product.ID, Quantity: wanted})
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
		}

		view, err = s.load(ctx, repo, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, input UpdateItemInput) (*View, error) {
	if input.Quantity <= 0 {
		return s.RemoveItem(ctx, userID, itemID)
	}

	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, item, err := s.findOwnedItem(ctx, repo, userID, itemID)
		if err != nil {
			return err
		}
		if item.Product == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").WithReason(pkgerrors.ReasonProductNotFound)
		}
		if err := s.ensureStock(ctx, item.Product, input.Quantity); err != nil {
			return err
		}
		if err := repo.UpdateItemQuantity(ctx, item.ID, input.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		view, err = s.load(ctx, repo, cart.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*View, error) {
	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, item, err := s.findOwnedItem(ctx, repo, userID, itemID)
		if err != nil {
			return err
		}
		if _, err := repo.DeleteItem(ctx, cart.ID, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
		}
		view, err = s.load(ctx, repo, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.ClearItems(ctx, tx, userID, nil)
	})
}

// ClearItems deletes the listed products from the user's cart, or the whole
// cart when productIDs is nil. A user without a cart is a no-op.
func (s *service) ClearItems(ctx context.Context, tx *gorm.DB, userID uuid.UUID, productIDs []uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	cart, err := repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if err := repo.DeleteItems(ctx, cart.ID, productIDs); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) findOwnedItem(ctx context.Context, repo Repository, userID, itemID uuid.UUID) (*models.Cart, *models.CartItem, error) {
	cart, err := repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	item, err := repo.FindItem(ctx, cart.ID, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	return cart, item, nil
}

// ensureStock is an advisory pre-check. The binding check is the ledger
// reservation at order creation.
func (s *service) ensureStock(ctx context.Context, product *models.Product, wanted int) error {
	available, err := s.stock.Available(ctx, product.ID)
	if err != nil {
		return err
	}
	if available < wanted {
		return inventory.InsufficientStock(product.Title, available, wanted)
	}
	return nil
}

func (s *service) load(ctx context.Context, repo Repository, userID uuid.UUID) (*View, error) {
	cart, err := repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return toView(cart), nil
}

func inactiveProduct(product *models.Product) error {
	return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("product %s is not available", product.Title)).
		WithReason(pkgerrors.ReasonInactiveProduct).
		WithDetails(map[string]any{"product_id": product.ID, "product_title": product.Title})
}
