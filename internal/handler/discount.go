package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/gabpaderog/maxicoffee-server/internal/domain/discount"
)

func (h *Handler) discountRoutes(r chi.Router) {
	r.Get("/", h.listDiscounts)
	r.Get("/{discountID}", h.getDiscount)
	r.Group(func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Post("/", h.createDiscount)
		r.Patch("/{discountID}", h.updateDiscount)
		r.Delete("/{discountID}", h.deleteDiscount)
	})
}

type createDiscountRequest struct {
	Name                 string          `json:"name" validate:"required"`
	Percentage           decimal.Decimal `json:"percentage" validate:"gt=0,lte=1"`
	RequiresVerification *bool           `json:"requiresVerification"`
}

type updateDiscountRequest struct {
	Name                 *string          `json:"name" validate:"omitempty,min=1"`
	Percentage           *decimal.Decimal `json:"percentage" validate:"omitempty,gt=0,lte=1"`
	RequiresVerification *bool            `json:"requiresVerification"`
}

func (h *Handler) createDiscount(w http.ResponseWriter, r *http.Request) {
	var req createDiscountRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.svc.Discounts.Create(r.Context(), discount.CreateRequest{
		Name:                 req.Name,
		Percentage:           req.Percentage,
		RequiresVerification: req.RequiresVerification,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Discount created successfully", toDiscountResponse(d))
}

func (h *Handler) listDiscounts(w http.ResponseWriter, r *http.Request) {
	ds, err := h.svc.Discounts.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Discounts retrieved successfully", mapSlice(ds, toDiscountResponse))
}

func (h *Handler) getDiscount(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Discounts.Get(r.Context(), chi.URLParam(r, "discountID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Discount retrieved successfully", toDiscountResponse(d))
}

func (h *Handler) updateDiscount(w http.ResponseWriter, r *http.Request) {
	var req updateDiscountRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.svc.Discounts.Update(r.Context(), chi.URLParam(r, "discountID"), discount.UpdateRequest{
		Name:                 req.Name,
		Percentage:           req.Percentage,
		RequiresVerification: req.RequiresVerification,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Discount updated successfully", toDiscountResponse(d))
}

func (h *Handler) deleteDiscount(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Discounts.Delete(r.Context(), chi.URLParam(r, "discountID")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, true, "Discount deleted successfully")
}
