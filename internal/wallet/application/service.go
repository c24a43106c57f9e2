package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"marketplace-backend/internal/wallet/domain"
)

type Service struct {
	log     *slog.Logger
	wallets WalletRepository
}

func NewService(log *slog.Logger, wallets WalletRepository) *Service {
	return &Service{log: log, wallets: wallets}
}

// GetWallet returns the user's wallet, creating a zero-balance one on first
// access.
func (s *Service) GetWallet(ctx context.Context, userID string) (domain.Wallet, error) {
	return s.wallets.GetOrCreate(ctx, userID)
}

func (s *Service) Credit(ctx context.Context, userID string, amount decimal.Decimal, orderID *uuid.UUID, description string) (domain.Wallet, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return domain.Wallet{}, fmt.Errorf("%w: got %s", domain.ErrInvalidAmount, amount)
	}
	w, err := s.wallets.Credit(ctx, userID, amount, domain.TypeCredit, orderID, description)
	if err != nil {
		return domain.Wallet{}, err
	}
	s.log.Info("wallet credited", "user_id", userID, "amount", amount, "balance", w.Balance)
	return w, nil
}

func (s *Service) Debit(ctx context.Context, userID string, amount decimal.Decimal, description string) (domain.Wallet, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return domain.Wallet{}, fmt.Errorf("%w: got %s", domain.ErrInvalidAmount, amount)
	}
	w, err := s.wallets.Debit(ctx, userID, amount, nil, description)
	if err != nil {
		return domain.Wallet{}, err
	}
	s.log.Info("wallet debited", "user_id", userID, "amount", amount, "balance", w.Balance)
	return w, nil
}

// TransactionHistory returns the user's ledger rows newest-first.
func (s *Service) TransactionHistory(ctx context.Context, userID string) ([]domain.Transaction, error) {
	w, err := s.wallets.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.wallets.Transactions(ctx, w.ID)
}
