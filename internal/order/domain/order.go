package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrAlreadyDelivered  = errors.New("order already delivered")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrValidation        = errors.New("validation failed")

	// ErrUnresolvedSeller rejects placement of a cart item whose product has
	// no owning seller on record.
	ErrUnresolvedSeller = errors.New("product has no resolvable seller")

	// ErrConcurrentModification is an optimistic-lock conflict: the order's
	// status changed between this caller's read and write. Callers re-read.
	ErrConcurrentModification = errors.New("order was modified concurrently")
)

type OrderStatus string

const (
	StatusAccepted   OrderStatus = "ACCEPTED"
	StatusProcessing OrderStatus = "PROCESSING"
	StatusShipped    OrderStatus = "SHIPPED"
	StatusDelivered  OrderStatus = "DELIVERED"
	StatusCancelled  OrderStatus = "CANCELLED"
)

func ParseStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case StatusAccepted, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return OrderStatus(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Payment holds the method plus the gateway's echo fields, stored opaquely.
type Payment struct {
	Method            string
	PGPaymentID       string
	PGStatus          string
	PGResponseMessage string
	PGName            string
}

// OrderItem is immutable once the order is placed. OrderedPrice is the unit
// price snapshot frozen from the cart, not the live catalog price.
type OrderItem struct {
	ProductID    uuid.UUID
	Quantity     int
	Discount     decimal.Decimal
	OrderedPrice decimal.Decimal
}

// Order is one seller's slice of a placement. Structure is frozen at
// creation; only the status and, once, the two commission fields change.
type Order struct {
	ID               uuid.UUID
	BuyerID          string
	SellerID         string
	Items            []OrderItem
	TotalAmount      decimal.Decimal
	Status           OrderStatus
	AddressID        uuid.UUID
	Payment          Payment
	CommissionAmount *decimal.Decimal
	SellerEarning    *decimal.Decimal
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// New builds an accepted order, computing the total from the frozen item
// prices.
func New(buyerID, sellerID string, addressID uuid.UUID, items []OrderItem, payment Payment) Order {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.OrderedPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	now := time.Now().UTC()
	return Order{
		ID:          uuid.New(),
		BuyerID:     buyerID,
		SellerID:    sellerID,
		Items:       items,
		TotalAmount: total.Round(2),
		Status:      StatusAccepted,
		AddressID:   addressID,
		Payment:     payment,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TransitionTo validates and applies a status change. Delivered and Cancelled
// are terminal; re-entering Delivered in particular is rejected so commission
// cannot be applied twice.
func (o *Order) TransitionTo(next OrderStatus) error {
	if o.Status == StatusDelivered {
		return fmt.Errorf("%w: order %s", ErrAlreadyDelivered, o.ID)
	}
	if o.Status == StatusCancelled {
		return fmt.Errorf("%w: order %s is cancelled", ErrInvalidTransition, o.ID)
	}
	if next == o.Status {
		return fmt.Errorf("%w: order %s is already %s", ErrInvalidTransition, o.ID, next)
	}
	o.Status = next
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// HasSeller reports whether this order credits anyone on completion.
func (o *Order) HasSeller() bool {
	return o.SellerID != ""
}
