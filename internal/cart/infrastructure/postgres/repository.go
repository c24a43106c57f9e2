package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace-backend/internal/cart/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	var c domain.Cart
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, total_price, version, created_at, updated_at
		FROM carts
		WHERE user_id = $1
	`, userID).Scan(&c.ID, &c.UserID, &c.TotalPrice, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Cart{}, domain.ErrCartNotFound
		}
		return domain.Cart{}, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT product_id, quantity, price_snapshot, discount_snapshot
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY position
	`, c.ID)
	if err != nil {
		return domain.Cart{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.PriceSnapshot, &item.DiscountSnapshot); err != nil {
			return domain.Cart{}, err
		}
		c.Items = append(c.Items, item)
	}
	return c, rows.Err()
}

func (r *Repository) GetOrCreate(ctx context.Context, userID string) (domain.Cart, error) {
	c := domain.New(userID)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO carts (id, user_id, total_price, version, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $5)
		ON CONFLICT (user_id) DO NOTHING
	`, c.ID, c.UserID, c.TotalPrice, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return domain.Cart{}, err
	}
	return r.Get(ctx, userID)
}

// Save writes the cart back under a compare-and-swap on version. Item rows
// are replaced explicitly inside the same transaction; there is no cascade.
func (r *Repository) Save(ctx context.Context, c domain.Cart) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `
		UPDATE carts
		SET total_price = $2, version = version + 1, updated_at = $3
		WHERE id = $1 AND version = $4
	`, c.ID, c.TotalPrice, c.UpdatedAt, c.Version)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrConcurrentModification
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, c.ID); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, item := range c.Items {
		batch.Queue(`
			INSERT INTO cart_items (cart_id, product_id, quantity, price_snapshot, discount_snapshot, position)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, c.ID, item.ProductID, item.Quantity, item.PriceSnapshot, item.DiscountSnapshot, i)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
