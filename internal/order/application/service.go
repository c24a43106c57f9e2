package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cartdomain "marketplace-backend/internal/cart/domain"
	catalog "marketplace-backend/internal/catalog/domain"
	"marketplace-backend/internal/order/domain"
)

// PaymentMethodWallet pays from the buyer's internal wallet; every other
// method is an external gateway whose echo fields are stored as-is.
const PaymentMethodWallet = "WALLET"

type PlaceOrderRequest struct {
	PaymentMethod     string
	AddressID         uuid.UUID
	PGPaymentID       string
	PGStatus          string
	PGResponseMessage string
	PGName            string
}

// Service converts carts into per-seller orders and drives order status,
// splitting revenue on delivery.
type Service struct {
	log               *slog.Logger
	store             OrderStore
	carts             CartReader
	products          ProductReader
	addresses         AddressReader
	commissionRate    decimal.Decimal
	platformAccountID string
}

func NewService(log *slog.Logger, store OrderStore, carts CartReader, products ProductReader, addresses AddressReader, commissionRate decimal.Decimal, platformAccountID string) *Service {
	return &Service{
		log:               log,
		store:             store,
		carts:             carts,
		products:          products,
		addresses:         addresses,
		commissionRate:    commissionRate,
		platformAccountID: platformAccountID,
	}
}

// PlaceOrder turns the buyer's cart into one order per distinct seller and
// commits everything atomically: the store either applies all effects (stock
// decrement, orders, payments, wallet debit, cart clearing) or none.
func (s *Service) PlaceOrder(ctx context.Context, buyerID string, req PlaceOrderRequest) ([]domain.Order, error) {
	if req.PaymentMethod == "" {
		return nil, fmt.Errorf("%w: payment method is required", domain.ErrValidation)
	}

	cart, err := s.carts.Get(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, fmt.Errorf("%w: cannot place order", cartdomain.ErrEmptyCart)
	}

	address, err := s.addresses.Address(ctx, req.AddressID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.products.Products(ctx, ids)
	if err != nil {
		return nil, err
	}

	groups, sellers, err := groupBySeller(cart.Items, products)
	if err != nil {
		return nil, err
	}

	payment := domain.Payment{
		Method:            req.PaymentMethod,
		PGPaymentID:       req.PGPaymentID,
		PGStatus:          req.PGStatus,
		PGResponseMessage: req.PGResponseMessage,
		PGName:            req.PGName,
	}
	debitWallet := req.PaymentMethod == PaymentMethodWallet
	if debitWallet {
		payment.PGStatus = "SUCCESS"
		payment.PGResponseMessage = "Wallet payment successful"
	}

	orders := make([]domain.Order, 0, len(sellers))
	for _, sellerID := range sellers {
		items := make([]domain.OrderItem, 0, len(groups[sellerID]))
		for _, ci := range groups[sellerID] {
			items = append(items, domain.OrderItem{
				ProductID:    ci.ProductID,
				Quantity:     ci.Quantity,
				Discount:     ci.DiscountSnapshot,
				OrderedPrice: ci.PriceSnapshot,
			})
		}
		orders = append(orders, domain.New(buyerID, sellerID, address.ID, items, payment))
	}

	placement := Placement{
		BuyerID:     buyerID,
		Cart:        cart,
		Orders:      orders,
		DebitWallet: debitWallet,
	}
	if err := s.store.Place(ctx, placement); err != nil {
		return nil, err
	}

	s.log.Info("order placed", "buyer_id", buyerID, "orders", len(orders), "method", req.PaymentMethod)
	return orders, nil
}

// UpdateOrderStatus applies a status transition. Moving into DELIVERED splits
// the order total between the seller and the platform wallet exactly once; a
// second delivery attempt fails with domain.ErrAlreadyDelivered.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status string) (domain.Order, error) {
	next, err := domain.ParseStatus(status)
	if err != nil {
		return domain.Order{}, err
	}

	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	from := o.Status
	if err := o.TransitionTo(next); err != nil {
		return domain.Order{}, err
	}

	var split *domain.CommissionSplit
	if next == domain.StatusDelivered && o.HasSeller() {
		cs := domain.SplitCommission(o.TotalAmount, s.commissionRate)
		o.CommissionAmount = &cs.Commission
		o.SellerEarning = &cs.SellerEarning
		split = &cs
	}

	if err := s.store.UpdateStatus(ctx, o, from, split, s.platformAccountID); err != nil {
		return domain.Order{}, err
	}

	if split != nil {
		s.log.Info("commission settled",
			"order_id", o.ID, "seller_id", o.SellerID,
			"commission", split.Commission, "seller_earning", split.SellerEarning)
	}
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID) (domain.Order, error) {
	return s.store.Get(ctx, orderID)
}

func (s *Service) BuyerOrders(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return s.store.ListByBuyer(ctx, buyerID)
}

func (s *Service) SellerOrders(ctx context.Context, sellerID string) ([]domain.Order, error) {
	return s.store.ListBySeller(ctx, sellerID)
}

// groupBySeller partitions cart items by the owning seller of each product,
// preserving first-seen seller order. An item whose product is missing or has
// no seller rejects the whole placement.
func groupBySeller(items []cartdomain.CartItem, products map[uuid.UUID]catalog.Product) (map[string][]cartdomain.CartItem, []string, error) {
	groups := make(map[string][]cartdomain.CartItem, len(items))
	sellers := make([]string, 0, len(items))

	for _, item := range items {
		p, ok := products[item.ProductID]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", catalog.ErrProductNotFound, item.ProductID)
		}
		if p.SellerID == "" {
			return nil, nil, fmt.Errorf("%w: product %s", domain.ErrUnresolvedSeller, p.Name)
		}
		if _, seen := groups[p.SellerID]; !seen {
			sellers = append(sellers, p.SellerID)
		}
		groups[p.SellerID] = append(groups[p.SellerID], item)
	}
	return groups, sellers, nil
}
