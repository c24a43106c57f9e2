package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"marketplace-backend/internal/wallet/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) GetOrCreate(ctx context.Context, userID string) (domain.Wallet, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Wallet{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	w, err := GetOrCreateTx(ctx, tx, userID)
	if err != nil {
		return domain.Wallet{}, err
	}
	return w, tx.Commit(ctx)
}

func (r *Repository) Credit(ctx context.Context, userID string, amount decimal.Decimal, typ domain.TransactionType, orderID *uuid.UUID, description string) (domain.Wallet, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Wallet{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	w, err := CreditTx(ctx, tx, userID, amount, typ, orderID, description)
	if err != nil {
		return domain.Wallet{}, err
	}
	return w, tx.Commit(ctx)
}

func (r *Repository) Debit(ctx context.Context, userID string, amount decimal.Decimal, orderID *uuid.UUID, description string) (domain.Wallet, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Wallet{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	w, err := DebitTx(ctx, tx, userID, amount, orderID, description)
	if err != nil {
		return domain.Wallet{}, err
	}
	return w, tx.Commit(ctx)
}

func (r *Repository) Transactions(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, wallet_id, amount, type, status, order_id, description, created_at
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC, id DESC
	`, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Amount, &t.Type, &t.Status, &t.OrderID, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// GetOrCreateTx upserts the wallet row and returns it locked FOR UPDATE. The
// unique user_id index plus the upsert make concurrent first access yield a
// single wallet.
func GetOrCreateTx(ctx context.Context, tx pgx.Tx, userID string) (domain.Wallet, error) {
	w := domain.New(userID)
	_, err := tx.Exec(ctx, `
		INSERT INTO wallets (id, user_id, balance, total_earnings, pending_balance, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO NOTHING
	`, w.ID, w.UserID, w.Balance, w.TotalEarnings, w.PendingBalance, w.LastUpdated)
	if err != nil {
		return domain.Wallet{}, err
	}

	err = tx.QueryRow(ctx, `
		SELECT id, user_id, balance, total_earnings, pending_balance, last_updated
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(&w.ID, &w.UserID, &w.Balance, &w.TotalEarnings, &w.PendingBalance, &w.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Wallet{}, domain.ErrWalletNotFound
		}
		return domain.Wallet{}, err
	}
	return w, nil
}

// CreditTx applies a credit inside the caller's transaction. The wallet row
// stays locked until that transaction ends.
func CreditTx(ctx context.Context, tx pgx.Tx, userID string, amount decimal.Decimal, typ domain.TransactionType, orderID *uuid.UUID, description string) (domain.Wallet, error) {
	w, err := GetOrCreateTx(ctx, tx, userID)
	if err != nil {
		return domain.Wallet{}, err
	}
	txn, err := w.Credit(amount, typ, orderID, description)
	if err != nil {
		return domain.Wallet{}, err
	}
	return w, write(ctx, tx, w, txn)
}

// DebitTx applies a debit inside the caller's transaction. The balance check
// runs against the FOR UPDATE row, so it cannot race a concurrent debit.
func DebitTx(ctx context.Context, tx pgx.Tx, userID string, amount decimal.Decimal, orderID *uuid.UUID, description string) (domain.Wallet, error) {
	w, err := GetOrCreateTx(ctx, tx, userID)
	if err != nil {
		return domain.Wallet{}, err
	}
	txn, err := w.Debit(amount, orderID, description)
	if err != nil {
		return domain.Wallet{}, err
	}
	return w, write(ctx, tx, w, txn)
}

func write(ctx context.Context, tx pgx.Tx, w domain.Wallet, txn domain.Transaction) error {
	_, err := tx.Exec(ctx, `
		UPDATE wallets
		SET balance = $2, total_earnings = $3, pending_balance = $4, last_updated = $5
		WHERE id = $1
	`, w.ID, w.Balance, w.TotalEarnings, w.PendingBalance, w.LastUpdated)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO wallet_transactions (wallet_id, amount, type, status, order_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, txn.WalletID, txn.Amount, txn.Type, txn.Status, txn.OrderID, txn.Description, txn.CreatedAt)
	return err
}
