package wallet

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Ledger appends transactions and keeps the cached balance in step. Credit
// and Debit must run inside a transaction spanning both writes.
type Ledger struct {
	repo Repository
	now  func() time.Time
}

// NewLedger returns a Ledger backed by repo.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo, now: time.Now}
}

// Credit adds amount to the user's wallet.
func (l *Ledger) Credit(ctx context.Context, userID int64, orderID *int64, amount decimal.Decimal, description string) (Transaction, error) {
	return l.post(ctx, userID, orderID, Credit, amount, description)
}

// Debit withdraws amount from the user's wallet. The balance never goes
// below zero.
func (l *Ledger) Debit(ctx context.Context, userID int64, orderID *int64, amount decimal.Decimal, description string) (Transaction, error) {
	return l.post(ctx, userID, orderID, Debit, amount, description)
}

func (l *Ledger) post(ctx context.Context, userID int64, orderID *int64, typ TxType, amount decimal.Decimal, description string) (Transaction, error) {
	if !amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}

	w, err := l.repo.GetOrCreateForUpdate(ctx, userID)
	if err != nil {
		return Transaction{}, errors.Wrapf(err, "lock wallet for user %d", userID)
	}

	tx := Transaction{
		WalletID:    w.ID,
		OrderID:     orderID,
		Type:        typ,
		Amount:      amount,
		Description: description,
		CreatedAt:   l.now(),
	}
	balance := w.Balance.Add(tx.Signed())
	if balance.IsNegative() {
		return Transaction{}, ErrInsufficientFunds
	}

	if err := l.repo.Append(ctx, &tx); err != nil {
		return Transaction{}, errors.Wrap(err, "append transaction")
	}
	if err := l.repo.SetBalance(ctx, w.ID, balance); err != nil {
		return Transaction{}, errors.Wrap(err, "update balance")
	}
	return tx, nil
}

// Refunded returns the net amount credited against an order so far.
func (l *Ledger) Refunded(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	net, err := l.repo.OrderNet(ctx, orderID)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "sum refunds for order %d", orderID)
	}
	return net, nil
}

// Statement returns the user's wallet and its transactions. A user without a
// wallet gets an empty one.
func (l *Ledger) Statement(ctx context.Context, userID int64) (Wallet, []Transaction, error) {
	w, err := l.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Wallet{UserID: userID, Balance: decimal.Zero}, nil, nil
		}
		return Wallet{}, nil, errors.Wrapf(err, "get wallet for user %d", userID)
	}
	txs, err := l.repo.Transactions(ctx, w.ID)
	if err != nil {
		return Wallet{}, nil, errors.Wrapf(err, "list transactions for wallet %d", w.ID)
	}
	return *w, txs, nil
}

// Reconcile checks the user's cached balance against the ledger.
func (l *Ledger) Reconcile(ctx context.Context, userID int64) error {
	w, txs, err := l.Statement(ctx, userID)
	if err != nil {
		return err
	}
	return Reconcile(w, txs)
}
