package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gabpaderog/maxicoffee-server/internal/apperr"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/discount"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/pricing"
	"github.com/gabpaderog/maxicoffee-server/internal/events"
	"github.com/gabpaderog/maxicoffee-server/internal/txn"
)

// UserChecker reports whether a user exists.
type UserChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// DiscountFinder loads a discount by id, returning discount.ErrNotFound when
// it does not exist.
type DiscountFinder interface {
	Get(ctx context.Context, id string) (*discount.Discount, error)
}

// QRRenderer encodes text as an image data URI.
type QRRenderer interface {
	Render(content string) (string, error)
}

// CreateRequest holds the input for placing an order.
type CreateRequest struct {
	UserID     string
	Items      []Item
	DiscountID string
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the publisher notified after each committed change.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithQRRenderer enables QR codes on new orders.
func WithQRRenderer(r QRRenderer) Option {
	return func(s *Service) { s.qr = r }
}

// WithRetryPolicy overrides the write-conflict retry policy.
func WithRetryPolicy(p txn.Policy) Option {
	return func(s *Service) { s.retry = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides order id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// Service encapsulates the order lifecycle.
type Service struct {
	users     UserChecker
	discounts DiscountFinder
	orders    Repository
	tx        txn.Runner

	events events.Publisher
	qr     QRRenderer
	retry  txn.Policy
	now    func() time.Time
	newID  func() string
}

// NewService creates an order Service with the required dependencies.
func NewService(
	users UserChecker,
	discounts DiscountFinder,
	orders Repository,
	tx txn.Runner,
	opts ...Option,
) *Service {
	s := &Service{
		users:     users,
		discounts: discounts,
		orders:    orders,
		tx:        tx,
		events:    events.Nop{},
		retry:     txn.DefaultPolicy,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create validates the request, prices the items and persists a new pending
// order in one unit of work. A discount that does not require verification is
// applied immediately; any other discount is only attached.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	id := s.newID()
	var qr string
	if s.qr != nil {
		code, err := s.qr.Render(id)
		if err != nil {
			return nil, errors.Wrap(err, "render qr code")
		}
		qr = code
	}

	o, err := txn.Do(ctx, s.tx, func(ctx context.Context) (*Order, error) {
		ok, err := s.users.Exists(ctx, req.UserID)
		if err != nil {
			return nil, errors.Wrap(err, "check user")
		}
		if !ok {
			return nil, ErrUserNotFound
		}

		var (
			d       *discount.Discount
			terms   *pricing.Discount
			details *DiscountDetails
			discID  *string
		)
		if req.DiscountID != "" {
			d, err = s.discounts.Get(ctx, req.DiscountID)
			switch {
			case errors.Is(err, discount.ErrNotFound):
				return nil, ErrDiscountNotFound
			case err != nil:
				return nil, errors.Wrap(err, "get discount")
			}
			terms = &pricing.Discount{Percentage: d.Percentage, RequiresVerification: d.RequiresVerification}
			details = &DiscountDetails{Name: d.Name, Percentage: d.Percentage}
			discID = &d.ID
		}

		lines := make([]pricing.Line, len(req.Items))
		for i, item := range req.Items {
			lines[i] = item.Line()
		}
		res := pricing.Compute(lines, terms)

		o := &Order{
			ID:              id,
			UserID:          req.UserID,
			Items:           req.Items,
			DiscountID:      discID,
			DiscountDetails: details,
			DiscountApplied: res.AutoApplied,
			Total:           res.Total,
			Status:          StatusPending,
			QRCode:          qr,
			CreatedAt:       s.now().UTC(),
		}
		if err := s.orders.Create(ctx, o); err != nil {
			return nil, errors.Wrap(err, "create order")
		}
		return o, nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.OrderCreated, o)
	return o, nil
}

// Get returns an order with its customer.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.Get(ctx, id)
}

// List returns every order newest first.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	return s.orders.List(ctx)
}

// UpdateStatus overwrites the order status. Any recognized status may follow
// any other.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	var o *Order
	err := txn.Retry(ctx, s.retry, func(ctx context.Context) error {
		var err error
		o, err = txn.Do(ctx, s.tx, func(ctx context.Context) (*Order, error) {
			if err := s.orders.UpdateStatus(ctx, id, status); err != nil {
				return nil, err
			}
			return s.orders.Get(ctx, id)
		})
		return err
	})
	if err != nil {
		return nil, classify(err)
	}

	s.publish(ctx, events.OrderStatusUpdated, o)
	return o, nil
}

// ApplyDiscount reduces the current total by the percentage of the order's
// associated discount. It succeeds at most once per order.
func (s *Service) ApplyDiscount(ctx context.Context, id string) (*Order, error) {
	var o *Order
	err := txn.Retry(ctx, s.retry, func(ctx context.Context) error {
		var err error
		o, err = txn.Do(ctx, s.tx, func(ctx context.Context) (*Order, error) {
			cur, err := s.orders.GetForUpdate(ctx, id)
			if err != nil {
				return nil, err
			}
			if cur.DiscountApplied {
				return nil, ErrDiscountAlreadyApplied
			}
			if cur.DiscountID == nil {
				return nil, ErrNoDiscount
			}

			d, err := s.discounts.Get(ctx, *cur.DiscountID)
			switch {
			case errors.Is(err, discount.ErrNotFound):
				return nil, ErrNoDiscount
			case err != nil:
				return nil, errors.Wrap(err, "get discount")
			}
			if !d.Percentage.IsPositive() {
				return nil, ErrInvalidDiscount
			}

			total := pricing.ApplyPercentage(cur.Total, d.Percentage)
			if err := s.orders.UpdateTotal(ctx, cur.ID, total, true); err != nil {
				return nil, errors.Wrap(err, "update total")
			}
			cur.Total = total
			cur.DiscountApplied = true
			return cur, nil
		})
		return err
	})
	if err != nil {
		return nil, classify(err)
	}

	s.publish(ctx, events.OrderDiscountApplied, o)
	return o, nil
}

// Delete removes an order permanently.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.tx.Run(ctx, func(ctx context.Context) error {
		return s.orders.Delete(ctx, id)
	})
	if err != nil {
		return classify(err)
	}

	s.publish(ctx, events.OrderDeleted, &Order{ID: id})
	return nil
}

// publish notifies subscribers of a committed change. The change is already
// durable, so failures are only logged.
func (s *Service) publish(ctx context.Context, typ events.Type, o *Order) {
	e := events.Event{
		Type:       typ,
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     string(o.Status),
		OccurredAt: s.now().UTC(),
	}
	if !o.Total.IsZero() {
		e.Total = o.Total.String()
	}
	if err := s.events.Publish(ctx, e); err != nil {
		zctx.From(ctx).Warn("Failed to publish order event",
			zap.String("type", string(typ)),
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}

// classify maps a write conflict that outlived its retries to Conflict.
func classify(err error) error {
	if txn.IsConflict(err) {
		return apperr.Wrap(apperr.Conflict, err, "Order was modified concurrently, please retry")
	}
	return err
}

func validateCreate(req CreateRequest) error {
	if strings.TrimSpace(req.UserID) == "" || len(req.Items) == 0 {
		return apperr.New(apperr.Validation, "User and items are required fields.")
	}
	for i, item := range req.Items {
		if strings.TrimSpace(item.ProductName) == "" {
			return apperr.Validationf("items[%d]: productName is required", i)
		}
		if item.Price.IsNegative() {
			return apperr.Validationf("items[%d]: price must not be negative", i)
		}
		if !pricing.InRange(item.Price) {
			return apperr.Validationf("items[%d]: price must have at most %d decimal places and %d integer digits", i, pricing.MaxScale, pricing.MaxIntegerDigits)
		}
		for j, a := range item.Addons {
			if strings.TrimSpace(a.AddonName) == "" {
				return apperr.Validationf("items[%d].addons[%d]: addonName is required", i, j)
			}
			if a.Price.IsNegative() {
				return apperr.Validationf("items[%d].addons[%d]: price must not be negative", i, j)
			}
			if !pricing.InRange(a.Price) {
				return apperr.Validationf("items[%d].addons[%d]: price must have at most %d decimal places and %d integer digits", i, j, pricing.MaxScale, pricing.MaxIntegerDigits)
			}
		}
	}
	return nil
}
