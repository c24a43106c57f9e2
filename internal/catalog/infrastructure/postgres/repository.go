package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace-backend/internal/catalog/domain"
)

// Repository reads the product and address rows the cart and placement
// consume. Stock mutation happens inside the placement transaction, not here.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Product(ctx context.Context, id uuid.UUID) (domain.Product, error) {
	var p domain.Product
	var sellerID sql.NullString
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, seller_id, price, special_price, discount, quantity, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &sellerID, &p.Price, &p.SpecialPrice, &p.Discount, &p.Quantity, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, err
	}
	p.SellerID = sellerID.String
	return p, nil
}

func (r *Repository) Products(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, seller_id, price, special_price, discount, quantity, created_at, updated_at
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make(map[uuid.UUID]domain.Product, len(ids))
	for rows.Next() {
		var p domain.Product
		var sellerID sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &sellerID, &p.Price, &p.SpecialPrice, &p.Discount, &p.Quantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.SellerID = sellerID.String
		products[p.ID] = p
	}
	return products, rows.Err()
}

func (r *Repository) Address(ctx context.Context, id uuid.UUID) (domain.Address, error) {
	var a domain.Address
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, street, city, state, pincode, country
		FROM addresses
		WHERE id = $1
	`, id).Scan(&a.ID, &a.UserID, &a.Street, &a.City, &a.State, &a.Pincode, &a.Country)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Address{}, domain.ErrAddressNotFound
		}
		return domain.Address{}, err
	}
	return a, nil
}
