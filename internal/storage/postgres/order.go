package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/aura-scents/internal/domain/order"
)

const orderColumns = `id, order_id, user_id, address_id, created_at, payment_method, is_paid,
	COALESCE(gateway_order_id, ''), status, coupon_id, coupon_code, coupon_discount,
	refund_processed, remarks`

const (
	insertOrderSQL = `INSERT INTO orders (order_id, user_id, address_id, created_at, payment_method,
		is_paid, gateway_order_id, status, coupon_id, coupon_code, coupon_discount,
		refund_processed, remarks)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12, $13)
		ON CONFLICT (order_id) DO NOTHING
		RETURNING id`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, variant_id, product_name,
		quantity, price, status, remarks)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`

	getOrderForUpdateSQL = getOrderSQL + ` FOR UPDATE`

	getOrderByGatewayForUpdateSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE gateway_order_id = $1 FOR UPDATE`

	listUserOrdersSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	listOrdersCreatedBetweenSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at, id`

	listOrderItemsSQL = `SELECT id, order_id, product_id, variant_id, product_name, quantity,
		price, status, remarks
		FROM order_items WHERE order_id = ANY($1)
		ORDER BY id`

	saveOrderSQL = `UPDATE orders SET is_paid = $2, gateway_order_id = NULLIF($3, ''),
		status = $4, refund_processed = $5, remarks = $6
		WHERE id = $1`

	saveOrderItemSQL = `UPDATE order_items SET status = $2, remarks = $3 WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository stores orders and their items.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts o and its items. It reports false when o.OrderID is taken;
// nothing is written in that case.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) (bool, error) {
	q := conn(ctx, r.pool)
	err := q.QueryRow(ctx, insertOrderSQL,
		o.OrderID, o.UserID, o.AddressID, o.CreatedAt, string(o.PaymentMethod),
		o.IsPaid, o.GatewayOrderID, string(o.Status), o.CouponID, o.CouponCode, o.CouponDiscount,
		o.RefundProcessed, o.Remarks,
	).Scan(&o.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("inserting order %s: %w", o.OrderID, err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		err := q.QueryRow(ctx, insertOrderItemSQL,
			o.ID, it.ProductID, it.VariantID, it.ProductName,
			it.Quantity, it.Price, string(it.Status), it.Remarks,
		).Scan(&it.ID)
		if err != nil {
			return false, fmt.Errorf("inserting item %q of order %s: %w", it.ProductName, o.OrderID, err)
		}
	}
	return true, nil
}

func (r *OrderRepository) Get(ctx context.Context, orderID string) (*order.Order, error) {
	return r.getOne(ctx, getOrderSQL, orderID)
}

func (r *OrderRepository) GetForUpdate(ctx context.Context, orderID string) (*order.Order, error) {
	return r.getOne(ctx, getOrderForUpdateSQL, orderID)
}

func (r *OrderRepository) GetByGatewayOrderIDForUpdate(ctx context.Context, gatewayOrderID string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByGatewayForUpdateSQL, gatewayOrderID)
}

func (r *OrderRepository) getOne(ctx context.Context, query, key string) (*order.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("getting order %s: %w", key, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %s: %w", key, err)
	}
	orders := []order.Order{o}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// ListByUser returns the user's most recent orders first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]order.Order, error) {
	return r.list(ctx, listUserOrdersSQL, userID, limit)
}

// ListCreatedBetween returns orders with created_at in [from, to).
func (r *OrderRepository) ListCreatedBetween(ctx context.Context, from, to time.Time) ([]order.Order, error) {
	return r.list(ctx, listOrdersCreatedBetweenSQL, from, to)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]order.Order, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads the items of all orders with a single query.
func (r *OrderRepository) attachItems(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := conn(ctx, r.pool).Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	for _, it := range items {
		o := &orders[index[it.OrderID]]
		o.Items = append(o.Items, it)
	}
	return nil
}

// Save writes the mutable order-level columns.
func (r *OrderRepository) Save(ctx context.Context, o *order.Order) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, saveOrderSQL,
		o.ID, o.IsPaid, o.GatewayOrderID, string(o.Status), o.RefundProcessed, o.Remarks,
	)
	if err != nil {
		return fmt.Errorf("saving order %s: %w", o.OrderID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) SaveItem(ctx context.Context, it *order.Item) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, saveOrderItemSQL, it.ID, string(it.Status), it.Remarks)
	if err != nil {
		return fmt.Errorf("saving order item %d: %w", it.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrItemNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		method, state string
	)
	err := row.Scan(
		&o.ID, &o.OrderID, &o.UserID, &o.AddressID, &o.CreatedAt, &method, &o.IsPaid,
		&o.GatewayOrderID, &state, &o.CouponID, &o.CouponCode, &o.CouponDiscount,
		&o.RefundProcessed, &o.Remarks,
	)
	o.PaymentMethod = order.PaymentMethod(method)
	o.Status = order.Status(state)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var (
		it    order.Item
		state string
	)
	err := row.Scan(
		&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.ProductName, &it.Quantity,
		&it.Price, &state, &it.Remarks,
	)
	it.Status = order.Status(state)
	return it, err
}
