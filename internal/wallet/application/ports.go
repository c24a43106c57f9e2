package application

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"marketplace-backend/internal/wallet/domain"
)

// WalletRepository serialises all balance-changing operations per wallet: the
// implementation holds an exclusive lock on the target wallet for the whole
// check-then-write span, so two concurrent debits cannot both pass the
// balance check against a stale value.
type WalletRepository interface {
	GetOrCreate(ctx context.Context, userID string) (domain.Wallet, error)
	Credit(ctx context.Context, userID string, amount decimal.Decimal, typ domain.TransactionType, orderID *uuid.UUID, description string) (domain.Wallet, error)
	Debit(ctx context.Context, userID string, amount decimal.Decimal, orderID *uuid.UUID, description string) (domain.Wallet, error)
	Transactions(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error)
}
