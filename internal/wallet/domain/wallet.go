package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

type TransactionType string

const (
	TypeCredit     TransactionType = "CREDIT"
	TypeDebit      TransactionType = "DEBIT"
	TypeCommission TransactionType = "COMMISSION"
	TypeRefund     TransactionType = "REFUND"
)

type TransactionStatus string

const (
	StatusPending TransactionStatus = "PENDING"
	StatusSuccess TransactionStatus = "SUCCESS"
	StatusFailed  TransactionStatus = "FAILED"
)

// Transaction is one append-only ledger row. Amount is signed: credits are
// positive, debits negative, so a wallet's balance is the sum of its rows.
type Transaction struct {
	ID          int64
	WalletID    uuid.UUID
	Amount      decimal.Decimal
	Type        TransactionType
	Status      TransactionStatus
	OrderID     *uuid.UUID
	Description string
	CreatedAt   time.Time
}

// Wallet is a per-user stored-value account. Balance never goes negative.
type Wallet struct {
	ID             uuid.UUID
	UserID         string
	Balance        decimal.Decimal
	TotalEarnings  decimal.Decimal
	PendingBalance decimal.Decimal
	LastUpdated    time.Time
}

func New(userID string) Wallet {
	return Wallet{
		ID:             uuid.New(),
		UserID:         userID,
		Balance:        decimal.Zero,
		TotalEarnings:  decimal.Zero,
		PendingBalance: decimal.Zero,
		LastUpdated:    time.Now().UTC(),
	}
}

// Credit adds amount to the balance and earnings and returns the ledger row
// to append. typ distinguishes plain credits from commission payouts.
func (w *Wallet) Credit(amount decimal.Decimal, typ TransactionType, orderID *uuid.UUID, description string) (Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return Transaction{}, fmt.Errorf("%w: got %s", ErrInvalidAmount, amount)
	}
	w.Balance = w.Balance.Add(amount)
	w.TotalEarnings = w.TotalEarnings.Add(amount)
	w.LastUpdated = time.Now().UTC()

	return Transaction{
		WalletID:    w.ID,
		Amount:      amount,
		Type:        typ,
		Status:      StatusSuccess,
		OrderID:     orderID,
		Description: description,
		CreatedAt:   w.LastUpdated,
	}, nil
}

// Debit subtracts amount from the balance, failing before any mutation when
// the balance does not cover it. The ledger row records the negated amount.
func (w *Wallet) Debit(amount decimal.Decimal, orderID *uuid.UUID, description string) (Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return Transaction{}, fmt.Errorf("%w: got %s", ErrInvalidAmount, amount)
	}
	if w.Balance.LessThan(amount) {
		return Transaction{}, fmt.Errorf("%w: balance %s, requested %s",
			ErrInsufficientBalance, w.Balance, amount)
	}
	w.Balance = w.Balance.Sub(amount)
	w.LastUpdated = time.Now().UTC()

	return Transaction{
		WalletID:    w.ID,
		Amount:      amount.Neg(),
		Type:        TypeDebit,
		Status:      StatusSuccess,
		OrderID:     orderID,
		Description: description,
		CreatedAt:   w.LastUpdated,
	}, nil
}
