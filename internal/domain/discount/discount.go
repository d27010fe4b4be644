// Package discount manages percentage discounts that orders can reference.
package discount

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/gabpaderog/maxicoffee-server/internal/apperr"
)

// ErrNotFound is returned when a discount does not exist.
var ErrNotFound = apperr.New(apperr.NotFound, "Discount not found")

// Discount is a named percentage reduction.
type Discount struct {
	ID   string
	Name string
	// Percentage is a fraction in (0, 1].
	Percentage           decimal.Decimal
	RequiresVerification bool
}

// Repository defines persistence operations for discounts.
type Repository interface {
	Create(ctx context.Context, d *Discount) error
	Get(ctx context.Context, id string) (*Discount, error)
	List(ctx context.Context) ([]Discount, error)
	Update(ctx context.Context, d *Discount) error
	Delete(ctx context.Context, id string) error
}
