// Package catalog manages the menu: categories, products and addons.
package catalog

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gabpaderog/maxicoffee-server/internal/apperr"
)

// Sentinel errors for catalog operations.
var (
	ErrCategoryNotFound = apperr.New(apperr.NotFound, "Category not found")
	ErrCategoryExists   = apperr.New(apperr.Conflict, "Category already exists")
	ErrCategoryInUse    = apperr.New(apperr.Conflict, "Category still has products")
	ErrProductNotFound  = apperr.New(apperr.NotFound, "Product not found")
	ErrAddonNotFound    = apperr.New(apperr.NotFound, "Addon not found")
)

// Category groups products.
type Category struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// Product is a menu item. Orders copy its name and price, they never
// reference it.
type Product struct {
	ID           string
	Name         string
	CategoryID   string
	CategoryName string
	BasePrice    decimal.Decimal
	Available    bool
	Image        string
	CreatedAt    time.Time
}

// Addon is an optional extra. A global addon applies to every category and
// has an empty scope.
type Addon struct {
	ID                   string
	Name                 string
	Price                decimal.Decimal
	IsGlobal             bool
	ApplicableCategories []string
	Available            bool
}

// CategoryRepository defines persistence operations for categories.
// Create and Update return ErrCategoryExists on a duplicate name.
type CategoryRepository interface {
	Create(ctx context.Context, c *Category) error
	Get(ctx context.Context, id string) (*Category, error)
	List(ctx context.Context) ([]Category, error)
	Update(ctx context.Context, c *Category) error
	Delete(ctx context.Context, id string) error
}

// ProductRepository defines persistence operations for products.
type ProductRepository interface {
	Create(ctx context.Context, p *Product) error
	Get(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context) ([]Product, error)
	ListByCategory(ctx context.Context, categoryID string) ([]Product, error)
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
}

// AddonRepository defines persistence operations for addons.
type AddonRepository interface {
	Create(ctx context.Context, a *Addon) error
	Get(ctx context.Context, id string) (*Addon, error)
	List(ctx context.Context) ([]Addon, error)
	// ListGlobal returns available global addons.
	ListGlobal(ctx context.Context) ([]Addon, error)
	// ListForCategory returns available addons scoped to the category.
	ListForCategory(ctx context.Context, categoryID string) ([]Addon, error)
	Update(ctx context.Context, a *Addon) error
	Delete(ctx context.Context, id string) error
}
