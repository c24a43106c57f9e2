package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrAddressNotFound = errors.New("address not found")

	// ErrOutOfStock means the product has zero units available.
	ErrOutOfStock = errors.New("product out of stock")
	// ErrInsufficientStock means fewer units are available than requested.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Product is the read model the cart and placement consume. SellerID is empty
// when no owning seller is on record.
type Product struct {
	ID           uuid.UUID
	Name         string
	SellerID     string
	Price        decimal.Decimal
	SpecialPrice decimal.Decimal
	Discount     decimal.Decimal
	Quantity     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasStock reports whether qty units can be taken right now.
func (p Product) HasStock(qty int) bool {
	return p.Quantity >= qty
}
