package application

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-backend/internal/cart/domain"
	catalog "marketplace-backend/internal/catalog/domain"
	"marketplace-backend/pkg/logging"
)

type memCarts struct {
	carts   map[string]domain.Cart
	saveErr error
	saved   int
}

func newMemCarts() *memCarts {
	return &memCarts{carts: make(map[string]domain.Cart)}
}

func (m *memCarts) Get(_ context.Context, userID string) (domain.Cart, error) {
	c, ok := m.carts[userID]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return c, nil
}

func (m *memCarts) GetOrCreate(_ context.Context, userID string) (domain.Cart, error) {
	if c, ok := m.carts[userID]; ok {
		return c, nil
	}
	c := domain.New(userID)
	m.carts[userID] = c
	return c, nil
}

func (m *memCarts) Save(_ context.Context, c domain.Cart) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	c.Version++
	m.carts[c.UserID] = c
	m.saved++
	return nil
}

type memProducts struct {
	products map[uuid.UUID]catalog.Product
}

func (m *memProducts) Product(_ context.Context, id uuid.UUID) (catalog.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestService() (*Service, *memCarts, *memProducts) {
	carts := newMemCarts()
	products := &memProducts{products: make(map[uuid.UUID]catalog.Product)}
	return NewService(logging.New("cart-test"), carts, products), carts, products
}

func seedProduct(products *memProducts, name, price string, stock int) catalog.Product {
	p := catalog.Product{
		ID:           uuid.New(),
		Name:         name,
		SellerID:     "seller-1",
		Price:        dec(price),
		SpecialPrice: dec(price),
		Quantity:     stock,
	}
	products.products[p.ID] = p
	return p
}

func TestAddItemCreatesCartAndSaves(t *testing.T) {
	svc, carts, products := newTestService()
	p := seedProduct(products, "keyboard", "25.00", 10)

	cart, err := svc.AddItem(context.Background(), "buyer-1", p.ID, 2)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.True(t, cart.TotalPrice.Equal(dec("50.00")), "total %s", cart.TotalPrice)
	assert.Equal(t, 1, carts.saved)

	stored, err := carts.Get(context.Background(), "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
}

func TestAddItemUnknownProduct(t *testing.T) {
	svc, carts, _ := newTestService()

	_, err := svc.AddItem(context.Background(), "buyer-1", uuid.New(), 1)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	assert.Zero(t, carts.saved)
}

func TestAddItemSaveConflictPropagates(t *testing.T) {
	svc, carts, products := newTestService()
	p := seedProduct(products, "keyboard", "25.00", 10)
	carts.saveErr = domain.ErrConcurrentModification

	_, err := svc.AddItem(context.Background(), "buyer-1", p.ID, 1)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
}

func TestChangeQuantityRequiresExistingCart(t *testing.T) {
	svc, _, products := newTestService()
	p := seedProduct(products, "keyboard", "25.00", 10)

	_, err := svc.ChangeQuantity(context.Background(), "buyer-1", p.ID, 1)
	assert.ErrorIs(t, err, domain.ErrCartNotFound)
}

func TestChangeQuantityRevalidatesStock(t *testing.T) {
	svc, _, products := newTestService()
	p := seedProduct(products, "scarce", "5.00", 3)

	_, err := svc.AddItem(context.Background(), "buyer-1", p.ID, 3)
	require.NoError(t, err)

	// Stock dropped since the item was added.
	p.Quantity = 2
	products.products[p.ID] = p

	_, err = svc.ChangeQuantity(context.Background(), "buyer-1", p.ID, 1)
	assert.ErrorIs(t, err, catalog.ErrInsufficientStock)
}

func TestRemoveItem(t *testing.T) {
	svc, carts, products := newTestService()
	p := seedProduct(products, "keyboard", "25.00", 10)

	_, err := svc.AddItem(context.Background(), "buyer-1", p.ID, 2)
	require.NoError(t, err)

	cart, err := svc.RemoveItem(context.Background(), "buyer-1", p.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.TotalPrice.IsZero())
	assert.Equal(t, 2, carts.saved)
}

func TestRemoveMissingItem(t *testing.T) {
	svc, carts, products := newTestService()
	seedProduct(products, "keyboard", "25.00", 10)
	_, err := carts.GetOrCreate(context.Background(), "buyer-1")
	require.NoError(t, err)

	_, err = svc.RemoveItem(context.Background(), "buyer-1", uuid.New())
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
	assert.Zero(t, carts.saved)
}
