package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/thisisprabalapndey/pathpooja/internal/catalog"
	"github.com/thisisprabalapndey/pathpooja/internal/domain"
)

// Products is the read side of the catalog.
type Products interface {
	Get(idOrSlug string) (domain.Product, error)
	Query(category, q string, key catalog.SortKey) []domain.Product
	Categories() []string
}

type ProductHandler struct {
	products Products
}

func NewProductHandler(products Products) *ProductHandler {
	return &ProductHandler{products: products}
}

type ProductsResponse struct {
	Products []domain.Product `json:"products"`
	Total    int              `json:"total"`
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	products := h.products.Query(q.Get("category"), q.Get("q"), catalog.SortKey(q.Get("sort")))
	if products == nil {
		products = []domain.Product{}
	}
	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products, Total: len(products)})
}

// Get returns one product and records it as recently viewed.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "product not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	if v := visitorFromContext(r.Context()); v != nil {
		v.User.AddRecentlyViewed(p.ID)
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Categories(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string][]string{"categories": h.products.Categories()})
}

// resolve maps product ids to catalog entries, skipping ids the catalog no longer has.
func resolve(products Products, ids []string) []domain.Product {
	out := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, err := products.Get(id); err == nil {
			out = append(out, p)
		}
	}
	return out
}
