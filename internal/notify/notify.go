// Package notify delivers order status events to customers.
package notify

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/aura-scents/internal/domain/order"
)

var _ order.Publisher = (*LogPublisher)(nil)

// LogPublisher writes status events to the log. It stands in for a mail or
// push sender and never fails.
type LogPublisher struct {
	lg *zap.Logger
}

// NewLogPublisher returns a LogPublisher. A nil logger falls back to the
// logger carried by each publish context.
func NewLogPublisher(lg *zap.Logger) *LogPublisher {
	return &LogPublisher{lg: lg}
}

func (p *LogPublisher) Publish(ctx context.Context, ev order.StatusEvent) error {
	lg := p.lg
	if lg == nil {
		lg = zctx.From(ctx)
	}
	fields := []zap.Field{
		zap.String("event_id", ev.ID),
		zap.String("order_id", ev.OrderID),
		zap.Int64("user_id", ev.UserID),
		zap.String("status", string(ev.Status)),
		zap.Time("occurred_at", ev.OccurredAt),
		zap.String("message", Message(ev)),
	}
	if ev.ItemID != nil {
		fields = append(fields, zap.Int64("item_id", *ev.ItemID))
	}
	if ev.Remarks != "" {
		fields = append(fields, zap.String("remarks", ev.Remarks))
	}
	lg.Info("Order status notification", fields...)
	return nil
}

// Message renders the customer-facing text for ev.
func Message(ev order.StatusEvent) string {
	subject := "Your order " + ev.OrderID
	if ev.ItemID != nil {
		subject = "An item in your order " + ev.OrderID
	}
	switch ev.Status {
	case order.StatusPending:
		return subject + " has been placed."
	case order.StatusProcessing:
		return subject + " is being processed."
	case order.StatusShipped:
		return subject + " has been shipped."
	case order.StatusDelivered:
		return subject + " has been delivered."
	case order.StatusCancelled:
		return subject + " has been cancelled."
	case order.StatusReturnRequested:
		return "We received the return request for " + lowerFirst(subject) + "."
	case order.StatusReturned:
		return subject + " has been returned."
	case order.StatusFailed:
		return subject + " could not be completed because the payment failed."
	default:
		return subject + " is now " + string(ev.Status) + "."
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
