package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/aura-scents/internal/domain/cart"
	"github.com/xenking/aura-scents/internal/domain/coupon"
	"github.com/xenking/aura-scents/internal/domain/pricing"
	"github.com/xenking/aura-scents/internal/domain/wallet"
)

// CouponRedeemer consumes one use of a coupon inside the checkout
// transaction.
type CouponRedeemer interface {
	Redeem(ctx context.Context, code string, subtotal decimal.Decimal) (*coupon.Coupon, decimal.Decimal, error)
}

// Wallet credits refunds and reports what was already refunded for an order.
type Wallet interface {
	Credit(ctx context.Context, userID int64, orderID *int64, amount decimal.Decimal, description string) (wallet.Transaction, error)
	Refunded(ctx context.Context, orderID int64) (decimal.Decimal, error)
}

// Deps groups the collaborators of Service.
type Deps struct {
	Orders     Repository
	Inventory  Inventory
	Carts      cart.Repository
	Coupons    CouponRedeemer
	Offers     cart.OfferResolver
	Wallet     Wallet
	Engine     *pricing.Engine
	UnitOfWork UnitOfWork

	// Gateway is required for non-COD checkouts only.
	Gateway  Gateway
	Currency string

	Events  Publisher
	Metrics Recorder
	Tracer  trace.Tracer
	Meter   metric.Meter
	Logger  *zap.Logger

	Clock   func() time.Time
	Suffix  func() int
	EventID func() string
}

// Service runs checkout and every order/item status transition.
type Service struct {
	orders    Repository
	inventory Inventory
	carts     cart.Repository
	coupons   CouponRedeemer
	offers    cart.OfferResolver
	wallet    Wallet
	engine    *pricing.Engine
	uow       UnitOfWork
	gateway   Gateway
	currency  string

	events  Publisher
	metrics Recorder
	tracer  trace.Tracer
	lg      *zap.Logger

	checkouts metric.Int64Counter

	now     func() time.Time
	suffix  func() int
	eventID func() string
}

// NewService validates deps and fills defaults for the optional ones.
func NewService(deps Deps) (*Service, error) {
	switch {
	case deps.Orders == nil:
		return nil, errors.New("order: orders repository is required")
	case deps.Inventory == nil:
		return nil, errors.New("order: inventory is required")
	case deps.Carts == nil:
		return nil, errors.New("order: cart repository is required")
	case deps.Coupons == nil:
		return nil, errors.New("order: coupon redeemer is required")
	case deps.Wallet == nil:
		return nil, errors.New("order: wallet is required")
	case deps.Engine == nil:
		return nil, errors.New("order: pricing engine is required")
	case deps.UnitOfWork == nil:
		return nil, errors.New("order: unit of work is required")
	}

	s := &Service{
		orders:    deps.Orders,
		inventory: deps.Inventory,
		carts:     deps.Carts,
		coupons:   deps.Coupons,
		offers:    deps.Offers,
		wallet:    deps.Wallet,
		engine:    deps.Engine,
		uow:       deps.UnitOfWork,
		gateway:   deps.Gateway,
		currency:  deps.Currency,
		events:    deps.Events,
		metrics:   deps.Metrics,
		tracer:    deps.Tracer,
		lg:        deps.Logger,
		now:       deps.Clock,
		suffix:    deps.Suffix,
		eventID:   deps.EventID,
	}
	if s.events == nil {
		s.events = noopPublisher{}
	}
	if s.metrics == nil {
		s.metrics = noopRecorder{}
	}
	if s.tracer == nil {
		s.tracer = tracenoop.NewTracerProvider().Tracer("order")
	}
	if s.lg == nil {
		s.lg = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.suffix == nil {
		s.suffix = randomSuffix
	}
	if s.eventID == nil {
		s.eventID = func() string { return ulid.Make().String() }
	}
	if s.currency == "" {
		s.currency = "inr"
	}

	meter := deps.Meter
	if meter == nil {
		meter = metricnoop.NewMeterProvider().Meter("order")
	}
	checkouts, err := meter.Int64Counter("order.checkouts",
		metric.WithDescription("Checkout attempts by result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout counter")
	}
	s.checkouts = checkouts

	return s, nil
}

// Totals prices an order from its item snapshots.
func (s *Service) Totals(o *Order) pricing.Breakdown {
	return s.engine.Breakdown(pricing.Subtotal(o.Lines()), o.AppliedCoupon())
}

// GetOrder loads an order by its public number.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	if err := requireOrderID(orderID); err != nil {
		return nil, err
	}
	return s.orders.Get(ctx, orderID)
}

// GetUserOrder loads an order that must belong to userID.
func (s *Service) GetUserOrder(ctx context.Context, userID int64, orderID string) (*Order, error) {
	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

// ListOrders returns the user's most recent orders.
func (s *Service) ListOrders(ctx context.Context, userID int64, limit int) ([]Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.orders.ListByUser(ctx, userID, limit)
}

// tx collects what one transaction did so events and metrics are emitted
// only after commit.
type tx struct {
	events    []StatusEvent
	restocked int
	refunded  decimal.Decimal
}

func (t *tx) emit(ev StatusEvent) {
	t.events = append(t.events, ev)
}

// runInTx runs fn in a transaction and then publishes its events. fn may run
// more than once when the storage layer retries, so it starts from a fresh tx
// every time.
func (s *Service) runInTx(ctx context.Context, fn func(ctx context.Context, t *tx) error) error {
	var t tx
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		t = tx{refunded: decimal.Zero}
		return fn(ctx, &t)
	})
	if err != nil {
		return err
	}

	if t.restocked > 0 {
		s.metrics.Restocked(t.restocked)
	}
	if t.refunded.IsPositive() {
		s.metrics.RefundCredited(t.refunded.InexactFloat64())
	}
	for _, ev := range t.events {
		s.metrics.StatusChanged(string(ev.Status))
		if err := s.events.Publish(ctx, ev); err != nil {
			s.lg.Warn("Publish status event",
				zap.String("order_id", ev.OrderID),
				zap.String("status", string(ev.Status)),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *Service) orderEvent(o *Order) StatusEvent {
	return StatusEvent{
		ID:         s.eventID(),
		OrderID:    o.OrderID,
		UserID:     o.UserID,
		Status:     o.Status,
		Remarks:    o.Remarks,
		OccurredAt: s.now(),
	}
}

func (s *Service) itemEvent(o *Order, it *Item) StatusEvent {
	id := it.ID
	ev := s.orderEvent(o)
	ev.ItemID = &id
	ev.Status = it.Status
	ev.Remarks = it.Remarks
	return ev
}

func (s *Service) countCheckout(ctx context.Context, result string) {
	s.checkouts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
