package discount

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gabpaderog/maxicoffee-server/internal/apperr"
)

// CreateRequest holds the input for creating a discount.
type CreateRequest struct {
	Name       string
	Percentage decimal.Decimal
	// RequiresVerification defaults to true when nil.
	RequiresVerification *bool
}

// UpdateRequest holds a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	Name                 *string
	Percentage           *decimal.Decimal
	RequiresVerification *bool
}

// Service encapsulates discount management.
type Service struct {
	repo  Repository
	newID func() string
}

// NewService creates a discount Service.
func NewService(repo Repository) *Service {
	return &Service{
		repo:  repo,
		newID: func() string { return uuid.New().String() },
	}
}

// Create validates and stores a new discount. Percentages outside (0, 1] are
// rejected here so that pricing never produces a negative total.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Discount, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.New(apperr.Validation, "Discount name and percentage is required")
	}
	if err := checkPercentage(req.Percentage); err != nil {
		return nil, err
	}

	d := &Discount{
		ID:                   s.newID(),
		Name:                 name,
		Percentage:           req.Percentage,
		RequiresVerification: true,
	}
	if req.RequiresVerification != nil {
		d.RequiresVerification = *req.RequiresVerification
	}

	if err := s.repo.Create(ctx, d); err != nil {
		return nil, errors.Wrap(err, "create discount")
	}
	return d, nil
}

// Get returns a discount by id.
func (s *Service) Get(ctx context.Context, id string) (*Discount, error) {
	return s.repo.Get(ctx, id)
}

// List returns every discount.
func (s *Service) List(ctx context.Context) ([]Discount, error) {
	return s.repo.List(ctx)
}

// Update applies a partial update. Existing orders keep the discount snapshot
// they captured at creation.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Discount, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperr.New(apperr.Validation, "Discount name cannot be empty")
		}
		d.Name = name
	}
	if req.Percentage != nil {
		if err := checkPercentage(*req.Percentage); err != nil {
			return nil, err
		}
		d.Percentage = *req.Percentage
	}
	if req.RequiresVerification != nil {
		d.RequiresVerification = *req.RequiresVerification
	}

	if err := s.repo.Update(ctx, d); err != nil {
		return nil, errors.Wrapf(err, "update discount %q", id)
	}
	return d, nil
}

// Delete removes a discount. Orders referencing it keep their snapshot but
// lose the reference.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func checkPercentage(p decimal.Decimal) error {
	if !p.IsPositive() || p.GreaterThan(decimal.NewFromInt(1)) {
		return apperr.New(apperr.Validation, "Discount percentage must be greater than 0 and at most 1")
	}
	return nil
}
