package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/thisisprabalapndey/pathpooja/internal/catalog"
	"github.com/thisisprabalapndey/pathpooja/internal/domain"
	"github.com/thisisprabalapndey/pathpooja/internal/user"
)

type UserHandler struct {
	products Products
}

func NewUserHandler(products Products) *UserHandler {
	return &UserHandler{products: products}
}

type WishlistResponse struct {
	ProductIDs []string         `json:"product_ids"`
	Products   []domain.Product `json:"products"`
}

type ToggleWishlistResponse struct {
	ProductID  string `json:"product_id"`
	InWishlist bool   `json:"in_wishlist"`
}

type MeResponse struct {
	Authenticated bool                `json:"authenticated"`
	Session       *domain.UserSession `json:"session,omitempty"`
}

type SignInRequestDTO struct {
	IDToken string `json:"id_token"`
}

type UpdateProfileRequestDTO struct {
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

func (d UpdateProfileRequestDTO) metadata() map[string]string {
	md := make(map[string]string, 2)
	if name := strings.TrimSpace(d.FullName); name != "" {
		md["full_name"] = name
	}
	if avatar := strings.TrimSpace(d.AvatarURL); avatar != "" {
		md["avatar_url"] = avatar
	}
	return md
}

func (h *UserHandler) wishlist(s *user.Store) WishlistResponse {
	ids := s.Wishlist()
	return WishlistResponse{ProductIDs: ids, Products: resolve(h.products, ids)}
}

func (h *UserHandler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())
	respondJSON(w, http.StatusOK, h.wishlist(v.User))
}

// product resolves the {product_id} path parameter against the catalog, answering 404
// when the catalog does not carry it.
func (h *UserHandler) product(w http.ResponseWriter, r *http.Request) (domain.Product, bool) {
	p, err := h.products.Get(strings.TrimSpace(chi.URLParam(r, "product_id")))
	if errors.Is(err, catalog.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
		return domain.Product{}, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return domain.Product{}, false
	}
	return p, true
}

func (h *UserHandler) ToggleWishlist(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())
	p, ok := h.product(w, r)
	if !ok {
		return
	}

	in := v.User.ToggleWishlist(p.ID)
	respondJSON(w, http.StatusOK, ToggleWishlistResponse{ProductID: p.ID, InWishlist: in})
}

func (h *UserHandler) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())
	p, ok := h.product(w, r)
	if !ok {
		return
	}

	v.User.AddToWishlist(p.ID)
	respondJSON(w, http.StatusOK, h.wishlist(v.User))
}

func (h *UserHandler) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())
	v.User.RemoveFromWishlist(chi.URLParam(r, "product_id"))
	respondJSON(w, http.StatusOK, h.wishlist(v.User))
}

func (h *UserHandler) RecentlyViewed(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())
	respondJSON(w, http.StatusOK, &ProductsResponse{
		Products: resolve(h.products, v.User.RecentlyViewed()),
		Total:    len(v.User.RecentlyViewed()),
	})
}

func (h *UserHandler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())
	respondJSON(w, http.StatusOK, map[string][]domain.Address{"addresses": v.User.Addresses()})
}

func (h *UserHandler) AddAddress(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())

	var req domain.Address
	ok, err := decodeJSON(w, r, &req)
	if err != nil || !ok {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	a, err := v.User.AddAddress(req)
	if err != nil {
		handleAddressError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

func (h *UserHandler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())

	var req domain.Address
	ok, err := decodeJSON(w, r, &req)
	if err != nil || !ok {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	a, err := v.User.UpdateAddress(chi.URLParam(r, "id"), req)
	if err != nil {
		handleAddressError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (h *UserHandler) RemoveAddress(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())
	if err := v.User.RemoveAddress(chi.URLParam(r, "id")); err != nil {
		handleAddressError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) SetDefaultAddress(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())
	if err := v.User.SetDefaultAddress(chi.URLParam(r, "id")); err != nil {
		handleAddressError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string][]domain.Address{"addresses": v.User.Addresses()})
}

func handleAddressError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, user.ErrInvalidAddress):
		respondError(w, http.StatusBadRequest, "invalid_address", err.Error())
	case errors.Is(err, user.ErrAddressNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())
	session := v.User.Session()
	respondJSON(w, http.StatusOK, MeResponse{Authenticated: session != nil, Session: session})
}

func (h *UserHandler) SignInWithGoogle(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())

	var req SignInRequestDTO
	ok, err := decodeJSON(w, r, &req)
	if err != nil || !ok {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	res := v.User.SignInWithGoogle(r.Context(), req.IDToken)
	if !res.Success {
		respondError(w, http.StatusUnauthorized, "unauthenticated", res.Error)
		return
	}
	session := v.User.Session()
	respondJSON(w, http.StatusOK, MeResponse{Authenticated: session != nil, Session: session})
}

func (h *UserHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())

	res := v.User.SignOut(r.Context())
	if !res.Success {
		respondError(w, http.StatusUnauthorized, "unauthenticated", res.Error)
		return
	}
	respondJSON(w, http.StatusOK, MeResponse{Authenticated: false})
}

func (h *UserHandler) RefreshSession(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())

	var req SignInRequestDTO
	ok, err := decodeJSON(w, r, &req)
	if err != nil || !ok {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	res := v.User.RefreshSession(r.Context(), req.IDToken)
	if !res.Success {
		respondError(w, http.StatusUnauthorized, "unauthenticated", res.Error)
		return
	}
	session := v.User.Session()
	respondJSON(w, http.StatusOK, MeResponse{Authenticated: session != nil, Session: session})
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())

	var req UpdateProfileRequestDTO
	ok, err := decodeJSON(w, r, &req)
	if err != nil || !ok {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	md := req.metadata()
	if len(md) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "full_name or avatar_url is required")
		return
	}

	res := v.User.UpdateProfile(r.Context(), md)
	if !res.Success {
		respondError(w, http.StatusUnauthorized, "unauthenticated", res.Error)
		return
	}
	session := v.User.Session()
	respondJSON(w, http.StatusOK, MeResponse{Authenticated: session != nil, Session: session})
}
