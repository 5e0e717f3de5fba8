package order

import (
	"context"
	"time"
)

// StatusEvent announces a committed order or item status change.
type StatusEvent struct {
	ID         string
	OrderID    string
	UserID     int64
	ItemID     *int64
	Status     Status
	Remarks    string
	OccurredAt time.Time
}

// Publisher delivers status events to the customer notification channel.
type Publisher interface {
	Publish(ctx context.Context, ev StatusEvent) error
}

// Recorder receives business metrics.
type Recorder interface {
	OrderPlaced(paymentMethod string)
	StatusChanged(status string)
	RefundCredited(amount float64)
	Restocked(units int)
	PaymentFailed()
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, StatusEvent) error { return nil }

type noopRecorder struct{}

func (noopRecorder) OrderPlaced(string)     {}
func (noopRecorder) StatusChanged(string)   {}
func (noopRecorder) RefundCredited(float64) {}
func (noopRecorder) Restocked(int)          {}
func (noopRecorder) PaymentFailed()         {}
