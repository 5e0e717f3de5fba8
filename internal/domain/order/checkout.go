package order

import (
	"cmp"
	"context"
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/aura-scents/internal/domain/cart"
	"github.com/xenking/aura-scents/internal/domain/coupon"
	"github.com/xenking/aura-scents/internal/domain/pricing"
	"github.com/xenking/aura-scents/internal/domain/promotion"
)

// CheckoutResult is a placed order with its price and, for online payment,
// the intent the client completes.
type CheckoutResult struct {
	Order     *Order
	Breakdown pricing.Breakdown
	Payment   *PaymentIntent
}

// Checkout turns the user's cart into an order. Stock reservation, order
// creation, coupon redemption and clearing the cart commit together or not
// at all.
func (s *Service) Checkout(ctx context.Context, cmd CheckoutCommand) (_ *CheckoutResult, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Checkout", trace.WithAttributes(
		attribute.Int64("user.id", cmd.UserID),
		attribute.String("order.payment_method", string(cmd.PaymentMethod)),
	))
	defer func() {
		result := "ok"
		if rerr != nil {
			result = "rejected"
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		s.countCheckout(ctx, result)
		span.End()
	}()

	method, err := ParsePaymentMethod(string(cmd.PaymentMethod))
	if err != nil {
		return nil, err
	}
	if method != PaymentCOD && s.gateway == nil {
		return nil, errors.New("online payment is not configured")
	}

	var (
		placed    *Order
		breakdown pricing.Breakdown
	)
	err = s.runInTx(ctx, func(ctx context.Context, t *tx) error {
		items, err := s.purchasableItems(ctx, cmd.UserID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return reject(ErrEmptyCart, "your cart is empty")
		}

		o := &Order{
			UserID:        cmd.UserID,
			AddressID:     cmd.AddressID,
			CreatedAt:     s.now(),
			PaymentMethod: method,
			Status:        StatusPending,
			Items:         make([]Item, 0, len(items)),
		}
		for _, ci := range items {
			price, err := s.checkoutPrice(ctx, ci)
			if err != nil {
				return err
			}
			productID := ci.Product.ID
			o.Items = append(o.Items, Item{
				ProductID:   &productID,
				VariantID:   ci.VariantID(),
				ProductName: ci.DisplayName(),
				Quantity:    ci.Quantity,
				Price:       price,
				Status:      StatusPending,
			})
		}

		subtotal := pricing.Subtotal(o.Lines())
		if code := coupon.NormalizeCode(cmd.CouponCode); code != "" {
			c, amount, err := s.coupons.Redeem(ctx, code, subtotal)
			if err != nil {
				var na *coupon.NotApplicableError
				if errors.As(err, &na) {
					return reject(err, na.Reason)
				}
				return err
			}
			couponID := c.ID
			o.CouponID = &couponID
			o.CouponCode = c.Code
			o.CouponDiscount = decimal.NewNullDecimal(amount)
		}

		if err := s.reserve(ctx, o.Items); err != nil {
			return err
		}
		if err := s.insert(ctx, o); err != nil {
			return err
		}
		if err := s.carts.Clear(ctx, cmd.UserID); err != nil {
			return errors.Wrap(err, "clear cart")
		}

		t.emit(s.orderEvent(o))
		placed = o
		breakdown = s.Totals(o)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderPlaced(string(method))
	s.lg.Info("Order placed",
		zap.String("order_id", placed.OrderID),
		zap.Int64("user_id", placed.UserID),
		zap.String("payment_method", string(method)),
		zap.String("total", breakdown.Total.StringFixed(2)),
	)

	res := &CheckoutResult{Order: placed, Breakdown: breakdown}
	if method == PaymentCOD {
		return res, nil
	}

	intent, err := s.gateway.CreatePayment(ctx, PaymentRequest{
		OrderID:  placed.OrderID,
		Amount:   breakdown.Total,
		Currency: s.currency,
	})
	if err != nil {
		s.lg.Error("Create payment", zap.String("order_id", placed.OrderID), zap.Error(err))
		if ferr := s.markFailed(ctx, placed.OrderID, "payment could not be initiated"); ferr != nil {
			return nil, errors.Wrap(ferr, "mark order failed")
		}
		return nil, reject(errors.Wrap(ErrPaymentFailed, err.Error()), "payment could not be initiated")
	}
	if err := s.attachPayment(ctx, placed, intent.GatewayOrderID); err != nil {
		return nil, err
	}
	res.Payment = &intent
	return res, nil
}

// purchasableItems loads the cart and drops lines whose product, category or
// variant is no longer sold.
func (s *Service) purchasableItems(ctx context.Context, userID int64) ([]cart.Item, error) {
	items, err := s.carts.Items(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	keep := make([]cart.Item, 0, len(items))
	var stale []int64
	for _, it := range items {
		if it.Purchasable() {
			keep = append(keep, it)
			continue
		}
		stale = append(stale, it.ID)
	}
	if len(stale) > 0 {
		s.lg.Info("Removing unavailable cart lines",
			zap.Int64("user_id", userID),
			zap.Int64s("item_ids", stale),
		)
		if err := s.carts.RemoveItems(ctx, userID, stale); err != nil {
			return nil, errors.Wrap(err, "remove unavailable cart lines")
		}
	}
	return keep, nil
}

// checkoutPrice is the unit price snapshot for a cart line.
func (s *Service) checkoutPrice(ctx context.Context, it cart.Item) (decimal.Decimal, error) {
	price := it.UnitPrice()
	if !s.engine.Policy().ApplyOffersAtCheckout || s.offers == nil {
		return price, nil
	}
	offer, err := s.offers.BestOfferFor(ctx, it.Product)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "resolve offer for product %d", it.Product.ID)
	}
	return promotion.DiscountedPrice(price, offer), nil
}

// reserve decrements stock for every item. Items are taken in a fixed
// order so concurrent checkouts lock counters in the same sequence.
func (s *Service) reserve(ctx context.Context, items []Item) error {
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(a, b Item) int {
		if c := cmp.Compare(*a.ProductID, *b.ProductID); c != 0 {
			return c
		}
		return cmp.Compare(variantKey(a.VariantID), variantKey(b.VariantID))
	})

	for _, it := range sorted {
		ok, err := s.inventory.Reserve(ctx, *it.ProductID, it.VariantID, it.Quantity)
		if err != nil {
			return errors.Wrapf(err, "reserve product %d", *it.ProductID)
		}
		if ok {
			continue
		}
		available, err := s.inventory.Available(ctx, *it.ProductID, it.VariantID)
		if err != nil {
			return errors.Wrapf(err, "read stock of product %d", *it.ProductID)
		}
		return &InsufficientStockError{
			ProductName: it.ProductName,
			Requested:   it.Quantity,
			Available:   available,
		}
	}
	return nil
}

func variantKey(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}

// insert stores the order under a fresh order number, drawing a new suffix
// while the number is taken.
func (s *Service) insert(ctx context.Context, o *Order) error {
	for range orderNumberAttempts {
		o.OrderID = orderNumber(o.CreatedAt, s.suffix())
		created, err := s.orders.Create(ctx, o)
		if err != nil {
			return errors.Wrap(err, "create order")
		}
		if created {
			return nil
		}
		s.lg.Debug("Order number taken", zap.String("order_id", o.OrderID))
	}
	return ErrOrderNumberExhausted
}
