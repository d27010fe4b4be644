package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/gabpaderog/maxicoffee-server/internal/domain/catalog"
)

func (h *Handler) categoryRoutes(r chi.Router) {
	r.Get("/", h.listCategories)
	r.Get("/{categoryID}", h.getCategory)
	r.Get("/{categoryID}/addons", h.categoryAddons)
	r.Group(func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Post("/", h.createCategory)
		r.Patch("/{categoryID}", h.updateCategory)
		r.Delete("/{categoryID}", h.deleteCategory)
	})
}

type categoryRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.svc.Catalog.CreateCategory(r.Context(), req.Name, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Category created successfully", toCategoryResponse(c))
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	cs, err := h.svc.Catalog.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Categories retrieved successfully", mapSlice(cs, toCategoryResponse))
}

func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Catalog.GetCategory(r.Context(), chi.URLParam(r, "categoryID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Category retrieved successfully", toCategoryResponse(c))
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.svc.Catalog.UpdateCategory(r.Context(), chi.URLParam(r, "categoryID"), req.Name, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Category updated successfully", toCategoryResponse(c))
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Catalog.DeleteCategory(r.Context(), chi.URLParam(r, "categoryID")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, true, "Category deleted successfully")
}

func (h *Handler) categoryAddons(w http.ResponseWriter, r *http.Request) {
	as, err := h.svc.Catalog.AddonsForCategory(r.Context(), chi.URLParam(r, "categoryID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Addons retrieved successfully", mapSlice(as, toAddonResponse))
}

func (h *Handler) productRoutes(r chi.Router) {
	r.Get("/", h.listProducts)
	r.Get("/category/{categoryID}", h.productsByCategory)
	r.Get("/{productID}", h.getProduct)
	r.Group(func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Post("/", h.createProduct)
		r.Patch("/{productID}", h.updateProduct)
		r.Delete("/{productID}", h.deleteProduct)
	})
}

type createProductRequest struct {
	Name       string          `json:"name" validate:"required"`
	CategoryID string          `json:"category" validate:"required"`
	BasePrice  decimal.Decimal `json:"basePrice" validate:"amount,gte=0"`
	Available  *bool           `json:"available"`
	Image      string          `json:"image" validate:"omitempty,url"`
}

type updateProductRequest struct {
	Name       *string          `json:"name" validate:"omitempty,min=1"`
	CategoryID *string          `json:"category" validate:"omitempty,min=1"`
	BasePrice  *decimal.Decimal `json:"basePrice" validate:"omitempty,amount,gte=0"`
	Available  *bool            `json:"available"`
	Image      *string          `json:"image" validate:"omitempty,url"`
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.svc.Catalog.CreateProduct(r.Context(), catalog.ProductInput{
		Name:       req.Name,
		CategoryID: req.CategoryID,
		BasePrice:  req.BasePrice,
		Available:  req.Available,
		Image:      req.Image,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Product created successfully", toProductResponse(p))
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.Catalog.ListProducts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Products retrieved successfully", mapSlice(ps, toProductResponse))
}

func (h *Handler) productsByCategory(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.Catalog.ProductsByCategory(r.Context(), chi.URLParam(r, "categoryID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Products retrieved successfully", mapSlice(ps, toProductResponse))
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Catalog.GetProduct(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Product retrieved successfully", toProductResponse(p))
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.svc.Catalog.UpdateProduct(r.Context(), chi.URLParam(r, "productID"), catalog.ProductPatch{
		Name:       req.Name,
		CategoryID: req.CategoryID,
		BasePrice:  req.BasePrice,
		Available:  req.Available,
		Image:      req.Image,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Product updated successfully", toProductResponse(p))
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Catalog.DeleteProduct(r.Context(), chi.URLParam(r, "productID")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, true, "Product deleted successfully")
}

func (h *Handler) addonRoutes(r chi.Router) {
	r.Get("/", h.listAddons)
	r.Get("/global", h.globalAddons)
	r.Get("/{addonID}", h.getAddon)
	r.Group(func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Post("/", h.createAddon)
		r.Patch("/{addonID}", h.updateAddon)
		r.Delete("/{addonID}", h.deleteAddon)
	})
}

type createAddonRequest struct {
	Name                 string           `json:"name" validate:"required"`
	Price                *decimal.Decimal `json:"price" validate:"omitempty,amount,gte=0"`
	IsGlobal             bool             `json:"isGlobal"`
	ApplicableCategories []string         `json:"applicableCategories" validate:"dive,required"`
	Available            *bool            `json:"available"`
}

type updateAddonRequest struct {
	Name                 *string          `json:"name" validate:"omitempty,min=1"`
	Price                *decimal.Decimal `json:"price" validate:"omitempty,amount,gte=0"`
	IsGlobal             *bool            `json:"isGlobal"`
	ApplicableCategories []string         `json:"applicableCategories" validate:"omitempty,dive,required"`
	Available            *bool            `json:"available"`
}

func (h *Handler) createAddon(w http.ResponseWriter, r *http.Request) {
	var req createAddonRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.svc.Catalog.CreateAddon(r.Context(), catalog.AddonInput{
		Name:                 req.Name,
		Price:                req.Price,
		IsGlobal:             req.IsGlobal,
		ApplicableCategories: req.ApplicableCategories,
		Available:            req.Available,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Addon created successfully", toAddonResponse(a))
}

func (h *Handler) listAddons(w http.ResponseWriter, r *http.Request) {
	as, err := h.svc.Catalog.ListAddons(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Addons retrieved successfully", mapSlice(as, toAddonResponse))
}

func (h *Handler) globalAddons(w http.ResponseWriter, r *http.Request) {
	as, err := h.svc.Catalog.GlobalAddons(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Global addons retrieved successfully", mapSlice(as, toAddonResponse))
}

func (h *Handler) getAddon(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Catalog.GetAddon(r.Context(), chi.URLParam(r, "addonID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Addon retrieved successfully", toAddonResponse(a))
}

func (h *Handler) updateAddon(w http.ResponseWriter, r *http.Request) {
	var req updateAddonRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.svc.Catalog.UpdateAddon(r.Context(), chi.URLParam(r, "addonID"), catalog.AddonPatch{
		Name:                 req.Name,
		Price:                req.Price,
		IsGlobal:             req.IsGlobal,
		ApplicableCategories: req.ApplicableCategories,
		Available:            req.Available,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Addon updated successfully", toAddonResponse(a))
}

func (h *Handler) deleteAddon(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Catalog.DeleteAddon(r.Context(), chi.URLParam(r, "addonID")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, true, "Addon deleted successfully")
}
