package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/aura-scents/internal/domain/wallet"
)

const (
	ensureWalletSQL = `INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`

	getWalletSQL = `SELECT id, user_id, balance FROM wallets WHERE user_id = $1`

	getWalletForUpdateSQL = getWalletSQL + ` FOR UPDATE`

	insertWalletTxSQL = `INSERT INTO wallet_transactions (wallet_id, order_id, type, amount, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	setWalletBalanceSQL = `UPDATE wallets SET balance = $2 WHERE id = $1`

	listWalletTxSQL = `SELECT id, wallet_id, order_id, type, amount, description, created_at
		FROM wallet_transactions WHERE wallet_id = $1
		ORDER BY created_at, id`

	orderNetSQL = `SELECT COALESCE(SUM(CASE WHEN type = 'credit' THEN amount ELSE -amount END), 0)
		FROM wallet_transactions WHERE order_id = $1`
)

var _ wallet.Repository = (*WalletRepository)(nil)

// WalletRepository stores wallets and their append-only transactions.
type WalletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository returns a WalletRepository that uses the given pool.
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

// GetOrCreateForUpdate must run inside a transaction for the lock to hold.
func (r *WalletRepository) GetOrCreateForUpdate(ctx context.Context, userID int64) (*wallet.Wallet, error) {
	q := conn(ctx, r.pool)
	if _, err := q.Exec(ctx, ensureWalletSQL, userID); err != nil {
		return nil, fmt.Errorf("creating wallet of user %d: %w", userID, err)
	}
	return r.get(ctx, getWalletForUpdateSQL, userID)
}

func (r *WalletRepository) Get(ctx context.Context, userID int64) (*wallet.Wallet, error) {
	return r.get(ctx, getWalletSQL, userID)
}

func (r *WalletRepository) get(ctx context.Context, query string, userID int64) (*wallet.Wallet, error) {
	var w wallet.Wallet
	err := conn(ctx, r.pool).QueryRow(ctx, query, userID).Scan(&w.ID, &w.UserID, &w.Balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrNotFound
		}
		return nil, fmt.Errorf("getting wallet of user %d: %w", userID, err)
	}
	return &w, nil
}

func (r *WalletRepository) Append(ctx context.Context, t *wallet.Transaction) error {
	err := conn(ctx, r.pool).QueryRow(ctx, insertWalletTxSQL,
		t.WalletID, t.OrderID, string(t.Type), t.Amount, t.Description, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("appending %s to wallet %d: %w", t.Type, t.WalletID, err)
	}
	return nil
}

func (r *WalletRepository) SetBalance(ctx context.Context, walletID int64, balance decimal.Decimal) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, setWalletBalanceSQL, walletID, balance)
	if err != nil {
		return fmt.Errorf("setting balance of wallet %d: %w", walletID, err)
	}
	if tag.RowsAffected() == 0 {
		return wallet.ErrNotFound
	}
	return nil
}

func (r *WalletRepository) Transactions(ctx context.Context, walletID int64) ([]wallet.Transaction, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, listWalletTxSQL, walletID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions of wallet %d: %w", walletID, err)
	}
	txs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (wallet.Transaction, error) {
		var (
			t   wallet.Transaction
			typ string
		)
		err := row.Scan(&t.ID, &t.WalletID, &t.OrderID, &typ, &t.Amount, &t.Description, &t.CreatedAt)
		t.Type = wallet.TxType(typ)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing transactions of wallet %d: %w", walletID, err)
	}
	return txs, nil
}

func (r *WalletRepository) OrderNet(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	var net decimal.Decimal
	if err := conn(ctx, r.pool).QueryRow(ctx, orderNetSQL, orderID).Scan(&net); err != nil {
		return decimal.Zero, fmt.Errorf("summing wallet transactions of order %d: %w", orderID, err)
	}
	return net, nil
}
