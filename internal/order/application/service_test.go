package application

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cartdomain "marketplace-backend/internal/cart/domain"
	catalog "marketplace-backend/internal/catalog/domain"
	"marketplace-backend/internal/order/domain"
	"marketplace-backend/pkg/logging"
)

type recordedCredit struct {
	userID  string
	amount  decimal.Decimal
	typ     string
	orderID uuid.UUID
}

// memStore records placements and mimics the status compare-and-swap of the
// real store: a write whose read is stale is rejected, not re-applied.
// staleGet, when set, makes Get serve an outdated snapshot to simulate a
// racing writer.
type memStore struct {
	orders     map[uuid.UUID]domain.Order
	placements []Placement
	credits    []recordedCredit
	placeErr   error
	staleGet   *domain.Order
}

func newMemStore() *memStore {
	return &memStore{orders: make(map[uuid.UUID]domain.Order)}
}

func (s *memStore) Get(_ context.Context, orderID uuid.UUID) (domain.Order, error) {
	if s.staleGet != nil && s.staleGet.ID == orderID {
		return *s.staleGet, nil
	}
	o, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (s *memStore) ListByBuyer(_ context.Context, buyerID string) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range s.orders {
		if o.BuyerID == buyerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memStore) ListBySeller(_ context.Context, sellerID string) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range s.orders {
		if o.SellerID == sellerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memStore) Place(_ context.Context, p Placement) error {
	if s.placeErr != nil {
		return s.placeErr
	}
	s.placements = append(s.placements, p)
	for _, o := range p.Orders {
		s.orders[o.ID] = o
	}
	return nil
}

func (s *memStore) UpdateStatus(_ context.Context, o domain.Order, from domain.OrderStatus, split *domain.CommissionSplit, platformAccountID string) error {
	stored, ok := s.orders[o.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if stored.Status == domain.StatusDelivered {
		return domain.ErrAlreadyDelivered
	}
	if stored.Status != from {
		return domain.ErrConcurrentModification
	}
	s.orders[o.ID] = o
	if split != nil {
		s.credits = append(s.credits,
			recordedCredit{userID: o.SellerID, amount: split.SellerEarning, typ: "CREDIT", orderID: o.ID},
			recordedCredit{userID: platformAccountID, amount: split.Commission, typ: "COMMISSION", orderID: o.ID},
		)
	}
	return nil
}

type memCarts struct {
	carts map[string]cartdomain.Cart
}

func (m *memCarts) Get(_ context.Context, userID string) (cartdomain.Cart, error) {
	c, ok := m.carts[userID]
	if !ok {
		return cartdomain.Cart{}, cartdomain.ErrCartNotFound
	}
	return c, nil
}

type memProducts struct {
	products map[uuid.UUID]catalog.Product
}

func (m *memProducts) Products(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error) {
	out := make(map[uuid.UUID]catalog.Product)
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type memAddresses struct {
	addresses map[uuid.UUID]catalog.Address
}

func (m *memAddresses) Address(_ context.Context, id uuid.UUID) (catalog.Address, error) {
	a, ok := m.addresses[id]
	if !ok {
		return catalog.Address{}, catalog.ErrAddressNotFound
	}
	return a, nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	svc       *Service
	store     *memStore
	carts     *memCarts
	products  *memProducts
	addresses *memAddresses
	addressID uuid.UUID
}

func newFixture() *fixture {
	store := newMemStore()
	carts := &memCarts{carts: make(map[string]cartdomain.Cart)}
	products := &memProducts{products: make(map[uuid.UUID]catalog.Product)}
	addressID := uuid.New()
	addresses := &memAddresses{addresses: map[uuid.UUID]catalog.Address{
		addressID: {ID: addressID, UserID: "buyer-1", City: "Pune", Country: "IN"},
	}}

	svc := NewService(logging.New("order-test"), store, carts, products, addresses,
		domain.DefaultCommissionRate, "platform")
	return &fixture{svc: svc, store: store, carts: carts, products: products, addresses: addresses, addressID: addressID}
}

func (f *fixture) addProduct(name, sellerID, price string, stock int) catalog.Product {
	p := catalog.Product{
		ID:           uuid.New(),
		Name:         name,
		SellerID:     sellerID,
		Price:        dec(price),
		SpecialPrice: dec(price),
		Quantity:     stock,
	}
	f.products.products[p.ID] = p
	return p
}

func (f *fixture) cartWith(userID string, entries ...struct {
	p   catalog.Product
	qty int
}) {
	c := cartdomain.New(userID)
	for _, e := range entries {
		if err := c.AddItem(e.p, e.qty); err != nil {
			panic(err)
		}
	}
	f.carts.carts[userID] = c
}

func entry(p catalog.Product, qty int) struct {
	p   catalog.Product
	qty int
} {
	return struct {
		p   catalog.Product
		qty int
	}{p, qty}
}

func TestPlaceOrderSplitsCartBySeller(t *testing.T) {
	f := newFixture()
	keyboard := f.addProduct("keyboard", "seller-a", "25.00", 10)
	mouse := f.addProduct("mouse", "seller-b", "10.00", 10)
	f.cartWith("buyer-1", entry(keyboard, 2), entry(mouse, 3))

	orders, err := f.svc.PlaceOrder(context.Background(), "buyer-1", PlaceOrderRequest{
		PaymentMethod: "COD",
		AddressID:     f.addressID,
	})
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, "seller-a", orders[0].SellerID)
	assert.True(t, orders[0].TotalAmount.Equal(dec("50.00")), "total %s", orders[0].TotalAmount)
	assert.Equal(t, "seller-b", orders[1].SellerID)
	assert.True(t, orders[1].TotalAmount.Equal(dec("30.00")), "total %s", orders[1].TotalAmount)

	require.Len(t, f.store.placements, 1)
	p := f.store.placements[0]
	assert.False(t, p.DebitWallet)
	assert.Equal(t, "buyer-1", p.BuyerID)
	assert.Len(t, p.Cart.Items, 2)
}

func TestPlaceOrderGroupsOneSellersItemsTogether(t *testing.T) {
	f := newFixture()
	keyboard := f.addProduct("keyboard", "seller-a", "25.00", 10)
	mouse := f.addProduct("mouse", "seller-a", "10.00", 10)
	f.cartWith("buyer-1", entry(keyboard, 1), entry(mouse, 1))

	orders, err := f.svc.PlaceOrder(context.Background(), "buyer-1", PlaceOrderRequest{
		PaymentMethod: "COD",
		AddressID:     f.addressID,
	})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Len(t, orders[0].Items, 2)
	assert.True(t, orders[0].TotalAmount.Equal(dec("35.00")))
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	f := newFixture()
	f.cartWith("buyer-1")

	_, err := f.svc.PlaceOrder(context.Background(), "buyer-1", PlaceOrderRequest{
		PaymentMethod: "COD",
		AddressID:     f.addressID,
	})
	assert.ErrorIs(t, err, cartdomain.ErrEmptyCart)
	assert.Empty(t, f.store.placements)
}

func TestPlaceOrderMissingCart(t *testing.T) {
	f := newFixture()
	_, err := f.svc.PlaceOrder(context.Background(), "buyer-1", PlaceOrderRequest{
		PaymentMethod: "COD",
		AddressID:     f.addressID,
	})
	assert.ErrorIs(t, err, cartdomain.ErrCartNotFound)
}

func TestPlaceOrderMissingAddress(t *testing.T) {
	f := newFixture()
	keyboard := f.addProduct("keyboard", "seller-a", "25.00", 10)
	f.cartWith("buyer-1", entry(keyboard, 1))

	_, err := f.svc.PlaceOrder(context.Background(), "buyer-1", PlaceOrderRequest{
		PaymentMethod: "COD",
		AddressID:     uuid.New(),
	})
	assert.ErrorIs(t, err, catalog.ErrAddressNotFound)
	assert.Empty(t, f.store.placements)
}

func TestPlaceOrderRejectsUnresolvedSeller(t *testing.T) {
	f := newFixture()
	orphan := f.addProduct("orphan", "", "5.00", 10)
	f.cartWith("buyer-1", entry(orphan, 1))

	_, err := f.svc.PlaceOrder(context.Background(), "buyer-1", PlaceOrderRequest{
		PaymentMethod: "COD",
		AddressID:     f.addressID,
	})
	assert.ErrorIs(t, err, domain.ErrUnresolvedSeller)
	assert.Empty(t, f.store.placements)
}

func TestPlaceOrderWalletMethod(t *testing.T) {
	f := newFixture()
	keyboard := f.addProduct("keyboard", "seller-a", "25.00", 10)
	f.cartWith("buyer-1", entry(keyboard, 2))

	orders, err := f.svc.PlaceOrder(context.Background(), "buyer-1", PlaceOrderRequest{
		PaymentMethod: PaymentMethodWallet,
		AddressID:     f.addressID,
	})
	require.NoError(t, err)
	require.Len(t, orders, 1)

	assert.Equal(t, "SUCCESS", orders[0].Payment.PGStatus)
	require.Len(t, f.store.placements, 1)
	assert.True(t, f.store.placements[0].DebitWallet)
}

func TestPlaceOrderStoreFailureReturnsNothing(t *testing.T) {
	f := newFixture()
	keyboard := f.addProduct("keyboard", "seller-a", "25.00", 10)
	f.cartWith("buyer-1", entry(keyboard, 2))
	f.store.placeErr = catalog.ErrInsufficientStock

	orders, err := f.svc.PlaceOrder(context.Background(), "buyer-1", PlaceOrderRequest{
		PaymentMethod: "COD",
		AddressID:     f.addressID,
	})
	assert.ErrorIs(t, err, catalog.ErrInsufficientStock)
	assert.Nil(t, orders)
	assert.Empty(t, f.store.placements)
}

func TestUpdateOrderStatusDeliveredSettlesCommissionOnce(t *testing.T) {
	f := newFixture()
	keyboard := f.addProduct("keyboard", "seller-a", "99.99", 10)
	f.cartWith("buyer-1", entry(keyboard, 1))

	orders, err := f.svc.PlaceOrder(context.Background(), "buyer-1", PlaceOrderRequest{
		PaymentMethod: "COD",
		AddressID:     f.addressID,
	})
	require.NoError(t, err)
	orderID := orders[0].ID

	o, err := f.svc.UpdateOrderStatus(context.Background(), orderID, "DELIVERED")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, o.Status)
	require.NotNil(t, o.CommissionAmount)
	require.NotNil(t, o.SellerEarning)
	assert.True(t, o.CommissionAmount.Equal(dec("10.00")), "commission %s", o.CommissionAmount)
	assert.True(t, o.SellerEarning.Equal(dec("89.99")), "earning %s", o.SellerEarning)

	require.Len(t, f.store.credits, 2)
	assert.Equal(t, "seller-a", f.store.credits[0].userID)
	assert.Equal(t, "CREDIT", f.store.credits[0].typ)
	assert.Equal(t, orderID, f.store.credits[0].orderID)
	assert.True(t, f.store.credits[0].amount.Equal(dec("89.99")))
	assert.Equal(t, "platform", f.store.credits[1].userID)
	assert.Equal(t, "COMMISSION", f.store.credits[1].typ)
	assert.True(t, f.store.credits[1].amount.Equal(dec("10.00")))

	// The second delivery attempt fails and must not credit again.
	_, err = f.svc.UpdateOrderStatus(context.Background(), orderID, "DELIVERED")
	assert.ErrorIs(t, err, domain.ErrAlreadyDelivered)
	assert.Len(t, f.store.credits, 2)
}

func TestUpdateOrderStatusStaleReadRejected(t *testing.T) {
	f := newFixture()
	keyboard := f.addProduct("keyboard", "seller-a", "20.00", 5)
	f.cartWith("buyer-1", entry(keyboard, 1))

	orders, err := f.svc.PlaceOrder(context.Background(), "buyer-1", PlaceOrderRequest{
		PaymentMethod: "COD",
		AddressID:     f.addressID,
	})
	require.NoError(t, err)
	orderID := orders[0].ID

	// Another caller cancels after this caller's read; the stale DELIVERED
	// write must not override the cancellation and must not credit anyone.
	stale := f.store.orders[orderID]
	cancelled := stale
	require.NoError(t, cancelled.TransitionTo(domain.StatusCancelled))
	f.store.orders[orderID] = cancelled
	f.store.staleGet = &stale

	_, err = f.svc.UpdateOrderStatus(context.Background(), orderID, "DELIVERED")
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
	assert.Equal(t, domain.StatusCancelled, f.store.orders[orderID].Status)
	assert.Empty(t, f.store.credits)
}

func TestUpdateOrderStatusNoSellerSkipsCommission(t *testing.T) {
	f := newFixture()
	o := domain.New("buyer-1", "", f.addressID, []domain.OrderItem{{ProductID: uuid.New(), Quantity: 1, OrderedPrice: dec("10.00")}}, domain.Payment{Method: "COD"})
	f.store.orders[o.ID] = o

	updated, err := f.svc.UpdateOrderStatus(context.Background(), o.ID, "DELIVERED")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, updated.Status)
	assert.Nil(t, updated.CommissionAmount)
	assert.Empty(t, f.store.credits)
}

func TestUpdateOrderStatusValidation(t *testing.T) {
	f := newFixture()

	_, err := f.svc.UpdateOrderStatus(context.Background(), uuid.New(), "TELEPORTED")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.svc.UpdateOrderStatus(context.Background(), uuid.New(), "SHIPPED")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
