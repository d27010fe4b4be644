// Package handler exposes the domain services as the /api/v1 REST API. Every
// JSON response uses the {success, message, data} envelope.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gabpaderog/maxicoffee-server/internal/auth"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/catalog"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/discount"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/order"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/report"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/user"
)

// OrderService is the order lifecycle consumed by the API.
type OrderService interface {
	Create(ctx context.Context, req order.CreateRequest) (*order.Order, error)
	Get(ctx context.Context, id string) (*order.Order, error)
	List(ctx context.Context) ([]order.Order, error)
	UpdateStatus(ctx context.Context, id string, status order.Status) (*order.Order, error)
	ApplyDiscount(ctx context.Context, id string) (*order.Order, error)
	Delete(ctx context.Context, id string) error
}

// DiscountService manages discounts.
type DiscountService interface {
	Create(ctx context.Context, req discount.CreateRequest) (*discount.Discount, error)
	Get(ctx context.Context, id string) (*discount.Discount, error)
	List(ctx context.Context) ([]discount.Discount, error)
	Update(ctx context.Context, id string, req discount.UpdateRequest) (*discount.Discount, error)
	Delete(ctx context.Context, id string) error
}

// CatalogService manages categories, products and addons.
type CatalogService interface {
	CreateCategory(ctx context.Context, name, description string) (*catalog.Category, error)
	GetCategory(ctx context.Context, id string) (*catalog.Category, error)
	ListCategories(ctx context.Context) ([]catalog.Category, error)
	UpdateCategory(ctx context.Context, id, name, description string) (*catalog.Category, error)
	DeleteCategory(ctx context.Context, id string) error
	AddonsForCategory(ctx context.Context, categoryID string) ([]catalog.Addon, error)

	CreateProduct(ctx context.Context, in catalog.ProductInput) (*catalog.Product, error)
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
	ListProducts(ctx context.Context) ([]catalog.Product, error)
	ProductsByCategory(ctx context.Context, categoryID string) ([]catalog.Product, error)
	UpdateProduct(ctx context.Context, id string, patch catalog.ProductPatch) (*catalog.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	CreateAddon(ctx context.Context, in catalog.AddonInput) (*catalog.Addon, error)
	GetAddon(ctx context.Context, id string) (*catalog.Addon, error)
	ListAddons(ctx context.Context) ([]catalog.Addon, error)
	GlobalAddons(ctx context.Context) ([]catalog.Addon, error)
	UpdateAddon(ctx context.Context, id string, patch catalog.AddonPatch) (*catalog.Addon, error)
	DeleteAddon(ctx context.Context, id string) error
}

// UserService handles accounts and credentials.
type UserService interface {
	Register(ctx context.Context, req user.RegisterRequest) (*user.User, error)
	Login(ctx context.Context, email, password string) (*user.Session, error)
	VerifyEmail(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, email string) error
	CheckResetToken(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// ReportService serves dashboard analytics.
type ReportService interface {
	Summary(ctx context.Context) (*report.Summary, error)
	DailySales(ctx context.Context, year, month int) (*report.DailySales, error)
	WeeklySales(ctx context.Context, year int) (*report.WeeklySales, error)
	MonthlySales(ctx context.Context, year int) (*report.MonthlySales, error)
	TopProductsByDay(ctx context.Context, date string, limit int) (*report.DayRanking, error)
	TopProductsByMonth(ctx context.Context, year, month int) (*report.PeriodRanking, error)
	TopProductsByYear(ctx context.Context, year int) (*report.PeriodRanking, error)
	ProductTrend(ctx context.Context, productName string, days int) (*report.Trend, error)
}

// TokenParser verifies access tokens.
type TokenParser interface {
	Parse(token string, want auth.TokenType) (*auth.Claims, error)
}

// Services bundles the domain services behind the API.
type Services struct {
	Orders    OrderService
	Discounts DiscountService
	Catalog   CatalogService
	Users     UserService
	Reports   ReportService
	Tokens    TokenParser
}

// Config holds non-dependency handler settings.
type Config struct {
	// EnforceAdmin requires an admin access token on catalog and discount
	// mutations, order listing and deletion, and the dashboard.
	EnforceAdmin bool
	// AuthLimiter guards register and forgot_password. Nil disables it.
	AuthLimiter func(http.Handler) http.Handler
}

// Handler serves the REST API.
type Handler struct {
	svc      Services
	cfg      Config
	validate *validator.Validate
}

// New creates a Handler.
func New(cfg Config, svc Services) *Handler {
	return &Handler{svc: svc, cfg: cfg, validate: newValidator()}
}

// Mount registers the API under /api/v1 on r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			writeMessage(w, http.StatusNotFound, false, "Route not found")
		})
		r.Route("/auth", h.authRoutes)
		r.Route("/categories", h.categoryRoutes)
		r.Route("/products", h.productRoutes)
		r.Route("/addons", h.addonRoutes)
		r.Route("/discounts", h.discountRoutes)
		r.Route("/orders", h.orderRoutes)
		r.Route("/dashboard", h.dashboardRoutes)
	})
}

// Routes returns a router serving only the API.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	h.Mount(r)
	return r
}
