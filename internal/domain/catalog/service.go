package catalog

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gabpaderog/maxicoffee-server/internal/apperr"
)

// Service manages the catalog.
type Service struct {
	categories CategoryRepository
	products   ProductRepository
	addons     AddonRepository
	newID      func() string
}

// NewService creates a catalog Service.
func NewService(categories CategoryRepository, products ProductRepository, addons AddonRepository) *Service {
	return &Service{
		categories: categories,
		products:   products,
		addons:     addons,
		newID:      func() string { return uuid.New().String() },
	}
}

// TitleCase upper-cases the first letter of each word and lower-cases the
// rest. Runs of whitespace collapse to one space.
func TitleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}

// --- Categories ---

// CreateCategory stores a category under its title-cased name.
func (s *Service) CreateCategory(ctx context.Context, name, description string) (*Category, error) {
	formatted := TitleCase(name)
	if formatted == "" {
		return nil, apperr.New(apperr.Validation, "Category name is required")
	}

	c := &Category{ID: s.newID(), Name: formatted, Description: strings.TrimSpace(description)}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) GetCategory(ctx context.Context, id string) (*Category, error) {
	return s.categories.Get(ctx, id)
}

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.categories.List(ctx)
}

// UpdateCategory renames a category. The new name is title-cased and must
// stay unique.
func (s *Service) UpdateCategory(ctx context.Context, id, name, description string) (*Category, error) {
	formatted := TitleCase(name)
	if formatted == "" {
		return nil, apperr.New(apperr.Validation, "Category name is required")
	}

	c, err := s.categories.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Name = formatted
	c.Description = strings.TrimSpace(description)
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCategory removes a category that no product belongs to.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	return s.categories.Delete(ctx, id)
}

// AddonsForCategory lists the available addons scoped to a category.
func (s *Service) AddonsForCategory(ctx context.Context, categoryID string) ([]Addon, error) {
	if _, err := s.categories.Get(ctx, categoryID); err != nil {
		return nil, err
	}
	return s.addons.ListForCategory(ctx, categoryID)
}

// --- Products ---

// ProductInput is the full set of product attributes.
type ProductInput struct {
	Name       string
	CategoryID string
	BasePrice  decimal.Decimal
	Available  *bool
	Image      string
}

// ProductPatch is a partial product update; nil fields are left unchanged.
type ProductPatch struct {
	Name       *string
	CategoryID *string
	BasePrice  *decimal.Decimal
	Available  *bool
	Image      *string
}

// CreateProduct stores a product in an existing category.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || in.CategoryID == "" {
		return nil, apperr.New(apperr.Validation, "Product name, category and base price are required")
	}
	if in.BasePrice.IsNegative() {
		return nil, apperr.New(apperr.Validation, "Base price must not be negative")
	}

	cat, err := s.categories.Get(ctx, in.CategoryID)
	if err != nil {
		return nil, err
	}

	p := &Product{
		ID:           s.newID(),
		Name:         name,
		CategoryID:   cat.ID,
		CategoryName: cat.Name,
		BasePrice:    in.BasePrice,
		Available:    true,
		Image:        strings.TrimSpace(in.Image),
	}
	if in.Available != nil {
		p.Available = *in.Available
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return p, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*Product, error) {
	return s.products.Get(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	return s.products.List(ctx)
}

// ProductsByCategory lists the products of an existing category.
func (s *Service) ProductsByCategory(ctx context.Context, categoryID string) ([]Product, error) {
	if _, err := s.categories.Get(ctx, categoryID); err != nil {
		return nil, err
	}
	return s.products.ListByCategory(ctx, categoryID)
}

// UpdateProduct applies a partial update.
func (s *Service) UpdateProduct(ctx context.Context, id string, patch ProductPatch) (*Product, error) {
	p, err := s.products.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.New(apperr.Validation, "Product name cannot be empty")
		}
		p.Name = name
	}
	if patch.CategoryID != nil {
		cat, err := s.categories.Get(ctx, *patch.CategoryID)
		if err != nil {
			return nil, err
		}
		p.CategoryID, p.CategoryName = cat.ID, cat.Name
	}
	if patch.BasePrice != nil {
		if patch.BasePrice.IsNegative() {
			return nil, apperr.New(apperr.Validation, "Base price must not be negative")
		}
		p.BasePrice = *patch.BasePrice
	}
	if patch.Available != nil {
		p.Available = *patch.Available
	}
	if patch.Image != nil {
		p.Image = strings.TrimSpace(*patch.Image)
	}

	if err := s.products.Update(ctx, p); err != nil {
		return nil, errors.Wrapf(err, "update product %q", id)
	}
	return p, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	return s.products.Delete(ctx, id)
}

// --- Addons ---

// AddonInput is the full set of addon attributes.
type AddonInput struct {
	Name                 string
	Price                *decimal.Decimal
	IsGlobal             bool
	ApplicableCategories []string
	Available            *bool
}

// AddonPatch is a partial addon update; nil fields are left unchanged.
type AddonPatch struct {
	Name                 *string
	Price                *decimal.Decimal
	IsGlobal             *bool
	ApplicableCategories []string
	Available            *bool
}

// CreateAddon stores an addon. A global addon drops any scope; a scoped
// addon keeps each referenced category once.
func (s *Service) CreateAddon(ctx context.Context, in AddonInput) (*Addon, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || in.Price == nil {
		return nil, apperr.New(apperr.Validation, "Name and price are required")
	}
	if in.Price.IsNegative() {
		return nil, apperr.New(apperr.Validation, "Price must not be negative")
	}

	scope, err := s.scope(ctx, in.IsGlobal, in.ApplicableCategories)
	if err != nil {
		return nil, err
	}

	a := &Addon{
		ID:                   s.newID(),
		Name:                 name,
		Price:                *in.Price,
		IsGlobal:             in.IsGlobal,
		ApplicableCategories: scope,
		Available:            true,
	}
	if in.Available != nil {
		a.Available = *in.Available
	}
	if err := s.addons.Create(ctx, a); err != nil {
		return nil, errors.Wrap(err, "create addon")
	}
	return a, nil
}

func (s *Service) GetAddon(ctx context.Context, id string) (*Addon, error) {
	return s.addons.Get(ctx, id)
}

func (s *Service) ListAddons(ctx context.Context) ([]Addon, error) {
	return s.addons.List(ctx)
}

// GlobalAddons lists available global addons.
func (s *Service) GlobalAddons(ctx context.Context) ([]Addon, error) {
	return s.addons.ListGlobal(ctx)
}

// UpdateAddon applies a partial update with the same scope rules as
// CreateAddon.
func (s *Service) UpdateAddon(ctx context.Context, id string, patch AddonPatch) (*Addon, error) {
	a, err := s.addons.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.New(apperr.Validation, "Addon name cannot be empty")
		}
		a.Name = name
	}
	if patch.Price != nil {
		if patch.Price.IsNegative() {
			return nil, apperr.New(apperr.Validation, "Price must not be negative")
		}
		a.Price = *patch.Price
	}
	if patch.IsGlobal != nil {
		a.IsGlobal = *patch.IsGlobal
	}
	if patch.Available != nil {
		a.Available = *patch.Available
	}

	categories := a.ApplicableCategories
	if patch.ApplicableCategories != nil {
		categories = patch.ApplicableCategories
	}
	a.ApplicableCategories, err = s.scope(ctx, a.IsGlobal, categories)
	if err != nil {
		return nil, err
	}

	if err := s.addons.Update(ctx, a); err != nil {
		return nil, errors.Wrapf(err, "update addon %q", id)
	}
	return a, nil
}

func (s *Service) DeleteAddon(ctx context.Context, id string) error {
	return s.addons.Delete(ctx, id)
}

// scope returns the de-duplicated category ids of an addon, preserving first
// occurrence order. Every id must name an existing category.
func (s *Service) scope(ctx context.Context, global bool, ids []string) ([]string, error) {
	if global {
		return []string{}, nil
	}

	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		if _, err := s.categories.Get(ctx, id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
