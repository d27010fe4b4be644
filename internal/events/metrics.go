package events

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Counting counts published events per type.
type Counting struct {
	counter metric.Int64Counter
}

// NewCounting registers the cafe.order.events counter on meter.
func NewCounting(meter metric.Meter) (*Counting, error) {
	c, err := meter.Int64Counter("cafe.order.events",
		metric.WithDescription("Order lifecycle events committed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create counter")
	}
	return &Counting{counter: c}, nil
}

func (c *Counting) Publish(ctx context.Context, e Event) error {
	c.counter.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(e.Type))))
	return nil
}
