package application

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"marketplace-backend/internal/cart/domain"
)

// Service is the only entry point for stock-aware cart mutations. Writes go
// through an optimistic version check; on domain.ErrConcurrentModification
// the caller retries with a fresh read.
type Service struct {
	log      *slog.Logger
	carts    CartRepository
	products ProductReader
}

func NewService(log *slog.Logger, carts CartRepository, products ProductReader) *Service {
	return &Service{log: log, carts: carts, products: products}
}

func (s *Service) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	return s.carts.GetOrCreate(ctx, userID)
}

func (s *Service) AddItem(ctx context.Context, userID string, productID uuid.UUID, qty int) (domain.Cart, error) {
	cart, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	product, err := s.products.Product(ctx, productID)
	if err != nil {
		return domain.Cart{}, err
	}
	if err := cart.AddItem(product, qty); err != nil {
		return domain.Cart{}, err
	}
	if err := s.carts.Save(ctx, cart); err != nil {
		return domain.Cart{}, err
	}
	s.log.Info("cart item added", "user_id", userID, "product_id", productID, "qty", qty, "total", cart.TotalPrice)
	return cart, nil
}

func (s *Service) ChangeQuantity(ctx context.Context, userID string, productID uuid.UUID, delta int) (domain.Cart, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	product, err := s.products.Product(ctx, productID)
	if err != nil {
		return domain.Cart{}, err
	}
	if err := cart.ChangeQuantity(product, delta); err != nil {
		return domain.Cart{}, err
	}
	if err := s.carts.Save(ctx, cart); err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

func (s *Service) RemoveItem(ctx context.Context, userID string, productID uuid.UUID) (domain.Cart, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	if err := cart.RemoveItem(productID); err != nil {
		return domain.Cart{}, err
	}
	if err := s.carts.Save(ctx, cart); err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}
