package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/gabpaderog/maxicoffee-server/internal/domain/order"
)

func (h *Handler) orderRoutes(r chi.Router) {
	r.Post("/", h.createOrder)
	r.Get("/{orderID}", h.getOrder)
	r.Patch("/{orderID}/status", h.updateOrderStatus)
	r.Patch("/{orderID}/apply-discount", h.applyDiscount)
	r.Group(func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Get("/", h.listOrders)
		r.Delete("/{orderID}", h.deleteOrder)
	})
}

type addonRequest struct {
	AddonName string          `json:"addonName" validate:"required"`
	Price     decimal.Decimal `json:"price" validate:"amount,gte=0"`
}

type itemRequest struct {
	ProductName string          `json:"productName" validate:"required"`
	Price       decimal.Decimal `json:"price" validate:"amount,gte=0"`
	Addons      []addonRequest  `json:"addons" validate:"dive"`
}

type createOrderRequest struct {
	UserID     string        `json:"userId" validate:"required"`
	Items      []itemRequest `json:"items" validate:"required,min=1,dive"`
	DiscountID string        `json:"discountId"`
}

func (req createOrderRequest) items() []order.Item {
	items := make([]order.Item, len(req.Items))
	for i, it := range req.Items {
		addons := make([]order.Addon, len(it.Addons))
		for j, a := range it.Addons {
			addons[j] = order.Addon{AddonName: a.AddonName, Price: a.Price}
		}
		items[i] = order.Item{ProductName: it.ProductName, Price: it.Price, Addons: addons}
	}
	return items
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.svc.Orders.Create(r.Context(), order.CreateRequest{
		UserID:     req.UserID,
		Items:      req.items(),
		DiscountID: req.DiscountID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Order created successfully", toOrderResponse(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.Orders.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Orders retrieved successfully", mapSlice(orders, toOrderResponse))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Order retrieved successfully", toOrderResponse(o))
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.svc.Orders.UpdateStatus(r.Context(), chi.URLParam(r, "orderID"), order.Status(req.Status)); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, true, "Order status updated successfully")
}

func (h *Handler) applyDiscount(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Orders.ApplyDiscount(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Discount applied successfully", toOrderResponse(o))
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Orders.Delete(r.Context(), chi.URLParam(r, "orderID")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, true, "Order deleted successfully")
}
