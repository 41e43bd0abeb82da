package http

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/thisisprabalapndey/pathpooja/internal/visitor"
)

const (
	VisitorHeader = "X-Visitor-ID"
	VisitorCookie = "visitor_id"

	visitorCookieMaxAge = 365 * 24 * 60 * 60
)

type ctxKey int

const visitorKey ctxKey = iota

// VisitorSource resolves a visitor id to its loaded stores.
type VisitorSource interface {
	Get(ctx context.Context, visitorID string) (*visitor.Visitor, error)
}

// VisitorMiddleware identifies the visitor from the X-Visitor-ID header, then the visitor_id
// cookie, minting a new id when neither holds a valid one. The id is echoed back in both.
func VisitorMiddleware(visitors VisitorSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := visitorID(r)

			v, err := visitors.Get(r.Context(), id)
			if err != nil {
				log.Printf("load visitor %s failed: %v \n", id, err)
				if errors.Is(err, visitor.ErrClosed) {
					respondError(w, http.StatusServiceUnavailable, "service_unavailable", "shutting down")
					return
				}
				respondError(w, http.StatusInternalServerError, "internal_error", "could not load visitor state")
				return
			}

			w.Header().Set(VisitorHeader, id)
			http.SetCookie(w, &http.Cookie{
				Name:     VisitorCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   visitorCookieMaxAge,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})

			ctx := context.WithValue(r.Context(), visitorKey, v)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func visitorID(r *http.Request) string {
	if id, ok := parseVisitorID(r.Header.Get(VisitorHeader)); ok {
		return id
	}
	if c, err := r.Cookie(VisitorCookie); err == nil {
		if id, ok := parseVisitorID(c.Value); ok {
			return id
		}
	}
	return uuid.NewString()
}

func parseVisitorID(s string) (string, bool) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return u.String(), true
}

func visitorFromContext(ctx context.Context) *visitor.Visitor {
	v, _ := ctx.Value(visitorKey).(*visitor.Visitor)
	return v
}
