// Package order implements the order lifecycle: creation with pricing,
// status transitions, explicit discount application and deletion.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gabpaderog/maxicoffee-server/internal/apperr"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/pricing"
)

// Status is the preparation state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a recognized status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// Sentinel errors for order operations.
var (
	ErrNotFound               = apperr.New(apperr.NotFound, "Order not found")
	ErrUserNotFound           = apperr.New(apperr.NotFound, "User not found")
	ErrDiscountNotFound       = apperr.New(apperr.Validation, "Discount not found.")
	ErrNoDiscount             = apperr.New(apperr.NotFound, "No discount associated with this order.")
	ErrInvalidDiscount        = apperr.New(apperr.Validation, "No valid discount found for this order.")
	ErrDiscountAlreadyApplied = apperr.New(apperr.Conflict, "Discount already applied to this order.")
	ErrInvalidStatus          = apperr.New(apperr.Validation, "Invalid status value")
)

// Addon is an extra attached to a line item, captured by name and price.
type Addon struct {
	AddonName string          `json:"addonName"`
	Price     decimal.Decimal `json:"price"`
}

// Item is a denormalized product snapshot. Later catalog changes never
// affect stored items.
type Item struct {
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Addons      []Addon         `json:"addons"`
}

// Line converts the item to its pricing shape.
func (i Item) Line() pricing.Line {
	l := pricing.Line{Price: i.Price, Addons: make([]decimal.Decimal, len(i.Addons))}
	for j, a := range i.Addons {
		l.Addons[j] = a.Price
	}
	return l
}

// DiscountDetails is the discount name and percentage captured when the order
// was created.
type DiscountDetails struct {
	Name       string
	Percentage decimal.Decimal
}

// Customer is the purchasing user as shown alongside an order.
type Customer struct {
	ID    string
	Name  string
	Email string
}

// Order is a placed customer order.
type Order struct {
	ID     string
	UserID string
	// Customer is populated on reads; nil on freshly created orders.
	Customer        *Customer
	Items           []Item
	DiscountID      *string
	DiscountDetails *DiscountDetails
	DiscountApplied bool
	Total           decimal.Decimal
	Status          Status
	QRCode          string
	CreatedAt       time.Time
}

// Repository defines persistence operations for orders. Implementations
// resolve their querier from ctx so calls join an active unit of work.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// GetForUpdate reads an order and locks its row until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id string) (*Order, error)
	// List returns every order newest first.
	List(ctx context.Context) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	UpdateTotal(ctx context.Context, id string, total decimal.Decimal, discountApplied bool) error
	Delete(ctx context.Context, id string) error
}
