package http

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/thisisprabalapndey/pathpooja/internal/cart"
	"github.com/thisisprabalapndey/pathpooja/internal/catalog"
	"github.com/thisisprabalapndey/pathpooja/internal/domain"
)

type CartHandler struct {
	products Products
}

func NewCartHandler(products Products) *CartHandler {
	return &CartHandler{products: products}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponse struct {
	Items      []domain.CartLineItem `json:"items"`
	IsOpen     bool                  `json:"is_open"`
	IsHydrated bool                  `json:"is_hydrated"`
	LastOrder  *domain.Order         `json:"last_order,omitempty"`
	Summary    domain.CartSummary    `json:"summary"`
}

type ClearCartResponse struct {
	Cart  CartResponse  `json:"cart"`
	Order *domain.Order `json:"order,omitempty"`
}

func cartResponse(c *cart.Store) CartResponse {
	state := c.State()
	return CartResponse{
		Items:      state.Items,
		IsOpen:     state.IsOpen,
		IsHydrated: state.IsHydrated,
		LastOrder:  state.LastOrder,
		Summary:    c.Summary(),
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())
	respondJSON(w, http.StatusOK, cartResponse(v.Cart))
}

// AddItem adds a catalog product. An item the cart rejects leaves the cart unchanged
// and still answers 200 with the current cart.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())

	var req AddItemRequestDTO
	if _, err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	product, err := h.products.Get(strings.TrimSpace(req.ProductID))
	if errors.Is(err, catalog.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	quantity := req.Quantity
	if quantity == 0 { // omitted
		quantity = 1
	}
	var opts []cart.LineOption
	if req.Color != "" {
		opts = append(opts, cart.WithColor(req.Color))
	}
	if req.Size != "" {
		opts = append(opts, cart.WithSize(req.Size))
	}

	if err := v.Cart.AddToCart(product, quantity, opts...); err != nil {
		log.Printf("visitor %s: add item ignored: %v \n", v.ID, err)
		respondJSON(w, http.StatusOK, cartResponse(v.Cart))
		return
	}
	respondJSON(w, http.StatusCreated, cartResponse(v.Cart))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())

	var req UpdateQuantityRequestDTO
	ok, err := decodeJSON(w, r, &req)
	if err != nil || !ok {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	v.Cart.UpdateQuantity(chi.URLParam(r, "id"), req.Quantity)
	respondJSON(w, http.StatusOK, cartResponse(v.Cart))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())
	v.Cart.RemoveItem(chi.URLParam(r, "id"))
	respondJSON(w, http.StatusOK, cartResponse(v.Cart))
}

// ClearCart empties the cart. A request body, even {}, also records an order snapshot.
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())

	var req domain.OrderRequest
	ok, err := decodeJSON(w, r, &req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	var order *domain.Order
	if ok {
		order = v.Cart.ClearCart(&req)
	} else {
		v.Cart.ClearCart(nil)
	}
	respondJSON(w, http.StatusOK, ClearCartResponse{Cart: cartResponse(v.Cart), Order: order})
}

func (h *CartHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())
	v.Cart.ToggleCart()
	respondJSON(w, http.StatusOK, cartResponse(v.Cart))
}

func (h *CartHandler) Open(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())
	v.Cart.OpenCart()
	respondJSON(w, http.StatusOK, cartResponse(v.Cart))
}

func (h *CartHandler) Close(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())
	v.Cart.CloseCart()
	respondJSON(w, http.StatusOK, cartResponse(v.Cart))
}
