package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	cartdomain "marketplace-backend/internal/cart/domain"
	catalog "marketplace-backend/internal/catalog/domain"
	"marketplace-backend/internal/order/application"
	orderdomain "marketplace-backend/internal/order/domain"
	walletdomain "marketplace-backend/internal/wallet/domain"
	walletpg "marketplace-backend/internal/wallet/infrastructure/postgres"
	"marketplace-backend/pkg/outbox"
	"marketplace-backend/pkg/tracing"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// Place commits one placement as a single transaction: stock rows are locked
// and re-validated at commit time, decremented, orders with their immutable
// items and payments inserted, the buyer's wallet debited for WALLET
// payments, the cart cleared under its version check, and one OrderPlaced
// outbox row written per order. Any failure rolls all of it back.
func (r *Repository) Place(ctx context.Context, p application.Placement) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := r.takeStock(ctx, tx, p.Orders); err != nil {
		return err
	}

	for _, o := range p.Orders {
		if err := insertOrder(ctx, tx, o); err != nil {
			return err
		}
		if p.DebitWallet {
			orderID := o.ID
			desc := fmt.Sprintf("Payment for order #%s", o.ID)
			if _, err := walletpg.DebitTx(ctx, tx, p.BuyerID, o.TotalAmount, &orderID, desc); err != nil {
				return err
			}
		}
		if err := r.queueEvent(ctx, tx, "OrderPlaced", o.ID, orderdomain.OrderPlaced{
			OrderID:     o.ID,
			BuyerID:     o.BuyerID,
			SellerID:    o.SellerID,
			TotalAmount: o.TotalAmount,
			Items:       o.Items,
		}); err != nil {
			return err
		}
	}

	if err := clearCart(ctx, tx, p.Cart); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpdateStatus persists a status change. The guard lives in the WHERE
// clause: the row must still hold the status the caller read, so a racing
// writer (a cancellation racing a delivery, or a duplicate delivery) matches
// nothing instead of overwriting the other transition or re-crediting
// wallets.
func (r *Repository) UpdateStatus(ctx context.Context, o orderdomain.Order, from orderdomain.OrderStatus, split *orderdomain.CommissionSplit, platformAccountID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $2, commission_amount = $3, seller_earning = $4, updated_at = $5
		WHERE id = $1 AND status = $6
	`, o.ID, o.Status, o.CommissionAmount, o.SellerEarning, o.UpdatedAt, from)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return statusConflict(ctx, tx, o.ID)
	}

	if split != nil {
		orderID := o.ID
		if _, err := walletpg.CreditTx(ctx, tx, o.SellerID, split.SellerEarning,
			walletdomain.TypeCredit, &orderID,
			fmt.Sprintf("Payment for order #%s", o.ID)); err != nil {
			return err
		}
		if _, err := walletpg.CreditTx(ctx, tx, platformAccountID, split.Commission,
			walletdomain.TypeCommission, &orderID,
			fmt.Sprintf("Commission from order #%s", o.ID)); err != nil {
			return err
		}
	}

	if o.Status == orderdomain.StatusDelivered {
		ev := orderdomain.OrderDelivered{OrderID: o.ID, SellerID: o.SellerID, TotalAmount: o.TotalAmount}
		if split != nil {
			ev.Commission = split.Commission
			ev.SellerEarning = split.SellerEarning
		}
		if err := r.queueEvent(ctx, tx, "OrderDelivered", o.ID, ev); err != nil {
			return err
		}
	} else {
		if err := r.queueEvent(ctx, tx, "OrderStatusChanged", o.ID, orderdomain.OrderStatusChanged{
			OrderID: o.ID,
			Status:  o.Status,
		}); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// statusConflict classifies a failed status compare-and-swap by re-reading
// the row inside the same transaction.
func statusConflict(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error {
	var current orderdomain.OrderStatus
	err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", orderdomain.ErrOrderNotFound, orderID)
		}
		return err
	}
	if current == orderdomain.StatusDelivered {
		return fmt.Errorf("%w: order %s", orderdomain.ErrAlreadyDelivered, orderID)
	}
	return fmt.Errorf("%w: order %s is now %s", orderdomain.ErrConcurrentModification, orderID, current)
}

func (r *Repository) Get(ctx context.Context, orderID uuid.UUID) (orderdomain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, selectOrder+` WHERE o.id = $1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return orderdomain.Order{}, orderdomain.ErrOrderNotFound
		}
		return orderdomain.Order{}, err
	}
	items, err := r.items(ctx, orderID)
	if err != nil {
		return orderdomain.Order{}, err
	}
	o.Items = items
	return o, nil
}

func (r *Repository) ListByBuyer(ctx context.Context, buyerID string) ([]orderdomain.Order, error) {
	return r.list(ctx, selectOrder+` WHERE o.buyer_id = $1 ORDER BY o.created_at DESC`, buyerID)
}

func (r *Repository) ListBySeller(ctx context.Context, sellerID string) ([]orderdomain.Order, error) {
	return r.list(ctx, selectOrder+` WHERE o.seller_id = $1 ORDER BY o.created_at DESC`, sellerID)
}

// takeStock locks every product row in a stable order, re-validates the
// requested quantities against current stock, and decrements. Sorting the
// ids keeps concurrent placements from deadlocking each other.
func (r *Repository) takeStock(ctx context.Context, tx pgx.Tx, orders []orderdomain.Order) error {
	needed := make(map[uuid.UUID]int)
	for _, o := range orders {
		for _, item := range o.Items {
			needed[item.ProductID] += item.Quantity
		}
	}
	ids := make([]uuid.UUID, 0, len(needed))
	for id := range needed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	for _, id := range ids {
		var name string
		var available int
		err := tx.QueryRow(ctx, `
			SELECT name, quantity FROM products WHERE id = $1 FOR UPDATE
		`, id).Scan(&name, &available)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: %s", catalog.ErrProductNotFound, id)
			}
			return err
		}
		if available < needed[id] {
			return fmt.Errorf("%w: %s has %d available, ordered %d",
				catalog.ErrInsufficientStock, name, available, needed[id])
		}
		if _, err := tx.Exec(ctx, `
			UPDATE products SET quantity = quantity - $2, updated_at = now() WHERE id = $1
		`, id, needed[id]); err != nil {
			return err
		}
	}
	return nil
}

func insertOrder(ctx context.Context, tx pgx.Tx, o orderdomain.Order) error {
	var sellerID any
	if o.HasSeller() {
		sellerID = o.SellerID
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO orders (id, buyer_id, seller_id, address_id, status, total_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, o.ID, o.BuyerID, sellerID, o.AddressID, o.Status, o.TotalAmount, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, item := range o.Items {
		batch.Queue(`
			INSERT INTO order_items (order_id, product_id, quantity, discount, ordered_price)
			VALUES ($1, $2, $3, $4, $5)
		`, o.ID, item.ProductID, item.Quantity, item.Discount, item.OrderedPrice)
	}
	batch.Queue(`
		INSERT INTO payments (order_id, method, pg_payment_id, pg_status, pg_response_message, pg_name)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, o.ID, o.Payment.Method, o.Payment.PGPaymentID, o.Payment.PGStatus, o.Payment.PGResponseMessage, o.Payment.PGName)
	return tx.SendBatch(ctx, batch).Close()
}

// clearCart removes the purchased rows and bumps the cart version under the
// same compare-and-swap the cart service uses, so a cart mutation racing the
// placement aborts the whole placement.
func clearCart(ctx context.Context, tx pgx.Tx, c cartdomain.Cart) error {
	ct, err := tx.Exec(ctx, `
		UPDATE carts
		SET total_price = 0, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2
	`, c.ID, c.Version)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return cartdomain.ErrConcurrentModification
	}
	_, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, c.ID)
	return err
}

func (r *Repository) queueEvent(ctx context.Context, tx pgx.Tx, eventType string, orderID uuid.UUID, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ('order', $1, $2, $3, $4, $5, $6)
	`, orderID, eventType, payload, map[string]string{"source": "marketplace-service"}, tracing.Traceparent(ctx), outbox.StatusPending)
	return err
}

const selectOrder = `
	SELECT o.id, o.buyer_id, o.seller_id, o.address_id, o.status, o.total_amount,
	       o.commission_amount, o.seller_earning, o.created_at, o.updated_at,
	       p.method, p.pg_payment_id, p.pg_status, p.pg_response_message, p.pg_name
	FROM orders o
	JOIN payments p ON p.order_id = o.id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (orderdomain.Order, error) {
	var o orderdomain.Order
	var sellerID sql.NullString
	err := row.Scan(&o.ID, &o.BuyerID, &sellerID, &o.AddressID, &o.Status, &o.TotalAmount,
		&o.CommissionAmount, &o.SellerEarning, &o.CreatedAt, &o.UpdatedAt,
		&o.Payment.Method, &o.Payment.PGPaymentID, &o.Payment.PGStatus,
		&o.Payment.PGResponseMessage, &o.Payment.PGName)
	if err != nil {
		return orderdomain.Order{}, err
	}
	o.SellerID = sellerID.String
	return o, nil
}

func (r *Repository) list(ctx context.Context, query string, arg any) ([]orderdomain.Order, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []orderdomain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := r.items(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (r *Repository) items(ctx context.Context, orderID uuid.UUID) ([]orderdomain.OrderItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT product_id, quantity, discount, ordered_price
		FROM order_items
		WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []orderdomain.OrderItem
	for rows.Next() {
		var item orderdomain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.Discount, &item.OrderedPrice); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
