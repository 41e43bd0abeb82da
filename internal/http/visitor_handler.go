package http

import (
	"context"
	"log"
	"net/http"
)

type VisitorForgetter interface {
	Forget(ctx context.Context, visitorID string) error
}

type VisitorHandler struct {
	visitors VisitorForgetter
}

func NewVisitorHandler(visitors VisitorForgetter) *VisitorHandler {
	return &VisitorHandler{visitors: visitors}
}

// Forget drops everything stored for the calling visitor and expires its cookie.
func (h *VisitorHandler) Forget(w http.ResponseWriter, r *http.Request) {
	v := visitorFromContext(r.Context())
	if err := h.visitors.Forget(r.Context(), v.ID); err != nil {
		log.Printf("forget visitor %s failed: %v \n", v.ID, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "could not delete visitor state")
		return
	}

	w.Header().Del(VisitorHeader)
	w.Header().Del("Set-Cookie")
	http.SetCookie(w, &http.Cookie{
		Name:     VisitorCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
