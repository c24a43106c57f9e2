package application

import (
	"context"

	"github.com/google/uuid"

	"marketplace-backend/internal/cart/domain"
	catalog "marketplace-backend/internal/catalog/domain"
)

type CartRepository interface {
	// Get returns domain.ErrCartNotFound when the user has no cart yet.
	Get(ctx context.Context, userID string) (domain.Cart, error)
	// GetOrCreate lazily creates an empty cart; concurrent first access for
	// the same user must yield a single cart.
	GetOrCreate(ctx context.Context, userID string) (domain.Cart, error)
	// Save persists the cart iff its version still matches the stored row,
	// returning domain.ErrConcurrentModification otherwise.
	Save(ctx context.Context, c domain.Cart) error
}

type ProductReader interface {
	Product(ctx context.Context, id uuid.UUID) (catalog.Product, error)
}
