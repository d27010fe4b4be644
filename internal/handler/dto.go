package handler

import (
	"time"

	"github.com/gabpaderog/maxicoffee-server/internal/domain/catalog"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/discount"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/order"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/user"
)

type addonLine struct {
	AddonName string  `json:"addonName"`
	Price     float64 `json:"price"`
}

type itemLine struct {
	ProductName string      `json:"productName"`
	Price       float64     `json:"price"`
	Addons      []addonLine `json:"addons"`
}

type customerResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type discountDetailsResponse struct {
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
}

type orderResponse struct {
	ID              string                   `json:"id"`
	UserID          string                   `json:"userId"`
	User            *customerResponse        `json:"user,omitempty"`
	Items           []itemLine               `json:"items"`
	Discount        *string                  `json:"discount"`
	DiscountDetails *discountDetailsResponse `json:"discountDetails,omitempty"`
	DiscountApplied bool                     `json:"discountApplied"`
	Total           float64                  `json:"total"`
	Status          string                   `json:"status"`
	QRCode          string                   `json:"qrCode,omitempty"`
	CreatedAt       time.Time                `json:"createdAt"`
}

func addonLines(addons []order.Addon) []addonLine {
	out := make([]addonLine, len(addons))
	for i, a := range addons {
		out[i] = addonLine{AddonName: a.AddonName, Price: a.Price.InexactFloat64()}
	}
	return out
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]itemLine, len(o.Items))
	for i, it := range o.Items {
		items[i] = itemLine{
			ProductName: it.ProductName,
			Price:       it.Price.InexactFloat64(),
			Addons:      addonLines(it.Addons),
		}
	}
	resp := orderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		Items:           items,
		Discount:        o.DiscountID,
		DiscountApplied: o.DiscountApplied,
		Total:           o.Total.InexactFloat64(),
		Status:          string(o.Status),
		QRCode:          o.QRCode,
		CreatedAt:       o.CreatedAt,
	}
	if c := o.Customer; c != nil {
		resp.User = &customerResponse{ID: c.ID, Name: c.Name, Email: c.Email}
	}
	if d := o.DiscountDetails; d != nil {
		resp.DiscountDetails = &discountDetailsResponse{Name: d.Name, Percentage: d.Percentage.InexactFloat64()}
	}
	return resp
}

type discountResponse struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	Percentage           float64 `json:"percentage"`
	RequiresVerification bool    `json:"requiresVerification"`
}

func toDiscountResponse(d *discount.Discount) discountResponse {
	return discountResponse{
		ID:                   d.ID,
		Name:                 d.Name,
		Percentage:           d.Percentage.InexactFloat64(),
		RequiresVerification: d.RequiresVerification,
	}
}

type categoryResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toCategoryResponse(c *catalog.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, Description: c.Description, CreatedAt: c.CreatedAt}
}

type productResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CategoryID   string    `json:"categoryId"`
	CategoryName string    `json:"categoryName,omitempty"`
	BasePrice    float64   `json:"basePrice"`
	Available    bool      `json:"available"`
	Image        string    `json:"image"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toProductResponse(p *catalog.Product) productResponse {
	return productResponse{
		ID:           p.ID,
		Name:         p.Name,
		CategoryID:   p.CategoryID,
		CategoryName: p.CategoryName,
		BasePrice:    p.BasePrice.InexactFloat64(),
		Available:    p.Available,
		Image:        p.Image,
		CreatedAt:    p.CreatedAt,
	}
}

type addonResponse struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Price                float64  `json:"price"`
	IsGlobal             bool     `json:"isGlobal"`
	ApplicableCategories []string `json:"applicableCategories"`
	Available            bool     `json:"available"`
}

func toAddonResponse(a *catalog.Addon) addonResponse {
	scope := a.ApplicableCategories
	if scope == nil {
		scope = []string{}
	}
	return addonResponse{
		ID:                   a.ID,
		Name:                 a.Name,
		Price:                a.Price.InexactFloat64(),
		IsGlobal:             a.IsGlobal,
		ApplicableCategories: scope,
		Available:            a.Available,
	}
}

type userResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	IsVerified bool   `json:"isVerified"`
}

func toUserResponse(u *user.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, IsVerified: u.IsVerified}
}

// mapSlice converts a slice of domain values with fn.
func mapSlice[T, R any](in []T, fn func(*T) R) []R {
	out := make([]R, len(in))
	for i := range in {
		out[i] = fn(&in[i])
	}
	return out
}
