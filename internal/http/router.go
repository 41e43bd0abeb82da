package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/thisisprabalapndey/pathpooja/internal/domain"
	"github.com/thisisprabalapndey/pathpooja/internal/visitor"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Visitors is what the router needs from the visitor registry.
type Visitors interface {
	VisitorSource
	VisitorForgetter
	LastOrder(ctx context.Context, visitorID string) (*domain.Order, error)
}

var _ Visitors = (*visitor.Registry)(nil)

type RouterConfig struct {
	Products       Products
	Visitors       Visitors
	Checkout       Checkouter
	RequestTimeout time.Duration
}

// NewRouter builds the storefront API. The returned handler is instrumented with OpenTelemetry.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	productHandler := NewProductHandler(cfg.Products)
	cartHandler := NewCartHandler(cfg.Products)
	checkoutHandler := NewCheckoutHandler(cfg.Checkout, cfg.Visitors, cfg.RequestTimeout)
	userHandler := NewUserHandler(cfg.Products)
	visitorHandler := NewVisitorHandler(cfg.Visitors)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/categories", productHandler.Categories)
		r.Get("/products", productHandler.List)

		r.Group(func(r chi.Router) {
			r.Use(VisitorMiddleware(cfg.Visitors))

			r.Get("/products/{id}", productHandler.Get)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{id}", cartHandler.UpdateQuantity)
				r.Delete("/items/{id}", cartHandler.RemoveItem)
				r.Post("/clear", cartHandler.ClearCart)
				r.Post("/toggle", cartHandler.Toggle)
				r.Post("/open", cartHandler.Open)
				r.Post("/close", cartHandler.Close)
			})

			r.Post("/checkout", checkoutHandler.Checkout)
			r.Get("/orders/last", checkoutHandler.LastOrder)

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", userHandler.GetWishlist)
				r.Post("/{product_id}/toggle", userHandler.ToggleWishlist)
				r.Put("/{product_id}", userHandler.AddToWishlist)
				r.Delete("/{product_id}", userHandler.RemoveFromWishlist)
			})

			r.Get("/recently-viewed", userHandler.RecentlyViewed)

			r.Route("/addresses", func(r chi.Router) {
				r.Get("/", userHandler.ListAddresses)
				r.Post("/", userHandler.AddAddress)
				r.Put("/{id}", userHandler.UpdateAddress)
				r.Delete("/{id}", userHandler.RemoveAddress)
				r.Post("/{id}/default", userHandler.SetDefaultAddress)
			})

			r.Get("/me", userHandler.Me)
			r.Patch("/me", userHandler.UpdateProfile)
			r.Post("/auth/google", userHandler.SignInWithGoogle)
			r.Post("/auth/refresh", userHandler.RefreshSession)
			r.Post("/auth/signout", userHandler.SignOut)

			r.Delete("/visitor", visitorHandler.Forget)
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
