package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	catalog "marketplace-backend/internal/catalog/domain"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrItemNotFound    = errors.New("cart item not found")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrEmptyCart       = errors.New("cart is empty")

	// ErrConcurrentModification is an optimistic-lock conflict: another writer
	// committed between this cart's load and save. Callers retry.
	ErrConcurrentModification = errors.New("cart was modified concurrently")
)

// CartItem carries price and discount snapshots taken when the product was
// added, decoupling the cart total from later catalog price changes.
type CartItem struct {
	ProductID        uuid.UUID
	Quantity         int
	PriceSnapshot    decimal.Decimal
	DiscountSnapshot decimal.Decimal
}

// LineTotal is this row's contribution to the cart total.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.PriceSnapshot.Mul(decimal.NewFromInt(int64(i.Quantity))).Round(2)
}

// Cart is the per-user aggregate. TotalPrice is maintained incrementally by
// each mutation and always equals the sum of line totals. Version backs the
// compare-and-swap on save.
type Cart struct {
	ID         uuid.UUID
	UserID     string
	Items      []CartItem
	TotalPrice decimal.Decimal
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func New(userID string) Cart {
	now := time.Now().UTC()
	return Cart{
		ID:         uuid.New(),
		UserID:     userID,
		TotalPrice: decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// AddItem merges qty units of the product into the cart. Stock is validated
// against the full resulting quantity when the product is already present.
func (c *Cart) AddItem(p catalog.Product, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidQuantity, qty)
	}
	if p.Quantity == 0 {
		return fmt.Errorf("%w: %s", catalog.ErrOutOfStock, p.Name)
	}

	idx := c.find(p.ID)
	if idx >= 0 {
		target := c.Items[idx].Quantity + qty
		if !p.HasStock(target) {
			return fmt.Errorf("%w: %s has %d available, cart would hold %d",
				catalog.ErrInsufficientStock, p.Name, p.Quantity, target)
		}
		c.Items[idx].Quantity = target
		c.applyDelta(c.Items[idx].PriceSnapshot, qty)
		return nil
	}

	if !p.HasStock(qty) {
		return fmt.Errorf("%w: %s has %d available, requested %d",
			catalog.ErrInsufficientStock, p.Name, p.Quantity, qty)
	}
	c.Items = append(c.Items, CartItem{
		ProductID:        p.ID,
		Quantity:         qty,
		PriceSnapshot:    p.SpecialPrice,
		DiscountSnapshot: p.Discount,
	})
	c.applyDelta(p.SpecialPrice, qty)
	return nil
}

// ChangeQuantity adjusts an existing row by delta. A resulting quantity of
// zero removes the row; a negative result is rejected.
func (c *Cart) ChangeQuantity(p catalog.Product, delta int) error {
	idx := c.find(p.ID)
	if idx < 0 {
		return fmt.Errorf("%w: product %s", ErrItemNotFound, p.ID)
	}

	target := c.Items[idx].Quantity + delta
	switch {
	case target < 0:
		return fmt.Errorf("%w: resulting quantity would be negative", ErrInvalidQuantity)
	case target == 0:
		return c.RemoveItem(p.ID)
	}

	if p.Quantity == 0 {
		return fmt.Errorf("%w: %s", catalog.ErrOutOfStock, p.Name)
	}
	if !p.HasStock(target) {
		return fmt.Errorf("%w: %s has %d available, cart would hold %d",
			catalog.ErrInsufficientStock, p.Name, p.Quantity, target)
	}

	c.Items[idx].Quantity = target
	c.applyDelta(c.Items[idx].PriceSnapshot, delta)
	return nil
}

// RemoveItem drops the row and subtracts its contribution from the total.
func (c *Cart) RemoveItem(productID uuid.UUID) error {
	idx := c.find(productID)
	if idx < 0 {
		return fmt.Errorf("%w: product %s", ErrItemNotFound, productID)
	}
	c.applyDelta(c.Items[idx].PriceSnapshot, -c.Items[idx].Quantity)
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	return nil
}

// Item returns the row for productID, if present.
func (c *Cart) Item(productID uuid.UUID) (CartItem, bool) {
	if idx := c.find(productID); idx >= 0 {
		return c.Items[idx], true
	}
	return CartItem{}, false
}

func (c *Cart) find(productID uuid.UUID) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) applyDelta(price decimal.Decimal, qtyDelta int) {
	delta := price.Mul(decimal.NewFromInt(int64(qtyDelta))).Round(2)
	c.TotalPrice = c.TotalPrice.Add(delta).Round(2)
	c.UpdatedAt = time.Now().UTC()
}
