// Package events publishes order lifecycle notifications.
package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Type names an order lifecycle event.
type Type string

const (
	OrderCreated         Type = "order.created"
	OrderDiscountApplied Type = "order.discount_applied"
	OrderStatusUpdated   Type = "order.status_updated"
	OrderDeleted         Type = "order.deleted"
)

// Event is a committed state change of one order.
type Event struct {
	Type       Type      `json:"type"`
	OrderID    string    `json:"orderId"`
	UserID     string    `json:"userId,omitempty"`
	Status     string    `json:"status,omitempty"`
	Total      string    `json:"total,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every publisher. It always calls each of them
// and returns the first failure.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil && first == nil {
			first = errors.Wrapf(err, "publish %s", e.Type)
		}
	}
	return first
}
