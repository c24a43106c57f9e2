package application

import (
	"context"

	"github.com/google/uuid"

	cart "marketplace-backend/internal/cart/domain"
	catalog "marketplace-backend/internal/catalog/domain"
	"marketplace-backend/internal/order/domain"
)

// Placement is everything one placeOrder call commits: the per-seller orders,
// the cart rows to clear (guarded by the cart's version), and the wallet
// debit to apply when paying from the internal wallet.
type Placement struct {
	BuyerID string
	Cart    cart.Cart
	Orders  []domain.Order
	// DebitWallet is true for the WALLET payment method; each order's
	// TotalAmount is then debited from the buyer inside the transaction.
	DebitWallet bool
}

// OrderStore persists placements and status changes. Place commits every
// effect of a placement (stock re-validation and decrement, orders, items,
// payments, wallet debit, cart clearing, outbox events) as one transaction.
type OrderStore interface {
	Get(ctx context.Context, orderID uuid.UUID) (domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)
	ListBySeller(ctx context.Context, sellerID string) ([]domain.Order, error)
	Place(ctx context.Context, p Placement) error
	// UpdateStatus persists o's already-transitioned status under a
	// compare-and-swap on the status the caller read: from must still match
	// the stored row, or the write is rejected with
	// domain.ErrAlreadyDelivered (row reached DELIVERED) or
	// domain.ErrConcurrentModification (another writer got there first). A
	// non-nil split credits the seller (earning) and platform (commission)
	// wallets in the same transaction.
	UpdateStatus(ctx context.Context, o domain.Order, from domain.OrderStatus, split *domain.CommissionSplit, platformAccountID string) error
}

type CartReader interface {
	Get(ctx context.Context, userID string) (cart.Cart, error)
}

type ProductReader interface {
	Products(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error)
}

type AddressReader interface {
	Address(ctx context.Context, id uuid.UUID) (catalog.Address, error)
}
