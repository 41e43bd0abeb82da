package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/thisisprabalapndey/pathpooja/internal/checkout"
	"github.com/thisisprabalapndey/pathpooja/internal/domain"
	"github.com/thisisprabalapndey/pathpooja/internal/visitor"
)

type Checkouter interface {
	Checkout(ctx context.Context, v *visitor.Visitor, req domain.OrderRequest) (*domain.Order, error)
}

type OrderSource interface {
	LastOrder(ctx context.Context, visitorID string) (*domain.Order, error)
}

type CheckoutHandler struct {
	checkout Checkouter
	orders   OrderSource
	timeout  time.Duration
}

func NewCheckoutHandler(c Checkouter, orders OrderSource, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{checkout: c, orders: orders, timeout: timeout}
}

func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFromContext(ctx)

	var req domain.OrderRequest
	if _, err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.checkout.Checkout(ctx, v, req)
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusConflict, "empty_cart", err.Error())
		return
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "checkout timed out")
		return
	case errors.Is(err, context.Canceled):
		respondError(w, http.StatusRequestTimeout, "cancelled", "checkout cancelled")
		return
	case err != nil:
		log.Printf("visitor %s: checkout failed: %v \n", v.ID, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondJSON(w, http.StatusCreated, order)
}

func (h *CheckoutHandler) LastOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	v := visitorFromContext(ctx)

	order, err := h.orders.LastOrder(ctx, v.ID)
	if err != nil {
		log.Printf("visitor %s: load last order failed: %v \n", v.ID, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	if order == nil {
		respondError(w, http.StatusNotFound, "not_found", "no completed order")
		return
	}
	respondJSON(w, http.StatusOK, order)
}
