// Package wallet keeps the per-user store-credit ledger.
package wallet

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("wallet not found")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
	ErrBalanceMismatch   = errors.New("wallet balance does not match transactions")
)

// TxType is the direction of a ledger entry.
type TxType string

const (
	Credit TxType = "credit"
	Debit  TxType = "debit"
)

// Wallet is a user's store-credit balance. Balance is the cached sum of its
// transactions.
type Wallet struct {
	ID      int64
	UserID  int64
	Balance decimal.Decimal
}

// Transaction is an append-only ledger entry.
type Transaction struct {
	ID          int64
	WalletID    int64
	OrderID     *int64
	Type        TxType
	Amount      decimal.Decimal
	Description string
	CreatedAt   time.Time
}

// Signed returns the amount with a negative sign for debits.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == Debit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Balance sums credits minus debits.
func Balance(txs []Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range txs {
		sum = sum.Add(t.Signed())
	}
	return sum
}

// Reconcile returns ErrBalanceMismatch when w.Balance differs from the sum of
// txs.
func Reconcile(w Wallet, txs []Transaction) error {
	if want := Balance(txs); !want.Equal(w.Balance) {
		return errors.Wrapf(ErrBalanceMismatch, "wallet %d: balance %s, ledger %s", w.ID, w.Balance, want)
	}
	return nil
}

// Repository persists wallets and their transactions.
type Repository interface {
	// GetOrCreateForUpdate returns the user's wallet, creating an empty one
	// if needed, and locks it for the surrounding transaction.
	GetOrCreateForUpdate(ctx context.Context, userID int64) (*Wallet, error)
	Get(ctx context.Context, userID int64) (*Wallet, error)
	Append(ctx context.Context, tx *Transaction) error
	SetBalance(ctx context.Context, walletID int64, balance decimal.Decimal) error
	Transactions(ctx context.Context, walletID int64) ([]Transaction, error)
	// OrderNet returns credits minus debits recorded against an order.
	OrderNet(ctx context.Context, orderID int64) (decimal.Decimal, error)
}
