package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/agfood/agfood/internal/auth"
	"github.com/agfood/agfood/internal/business"
	"github.com/agfood/agfood/internal/catalog/locations"
	"github.com/agfood/agfood/internal/catalog/products"
	"github.com/agfood/agfood/internal/catalog/suppliers"
	"github.com/agfood/agfood/internal/clients"
	"github.com/agfood/agfood/internal/invoicing"
	"github.com/agfood/agfood/internal/ledger"
	"github.com/agfood/agfood/internal/observability"
	"github.com/agfood/agfood/internal/reports"
	"github.com/agfood/agfood/internal/shared"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	AuthHandler      *auth.Handler
	ProductHandler   *products.Handler
	SupplierHandler  *suppliers.Handler
	LocationHandler  *locations.Handler
	ClientHandler    *clients.Handler
	LedgerHandler    *ledger.Handler
	InvoicingHandler *invoicing.Handler
	BusinessHandler  *business.Handler
	ReportsHandler   *reports.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Route("/api", func(api chi.Router) {
		api.Use(requireUser)

		api.Route("/products", params.ProductHandler.MountRoutes)
		api.Route("/suppliers", params.SupplierHandler.MountRoutes)
		api.Route("/locations", params.LocationHandler.MountRoutes)
		api.Route("/clients", params.ClientHandler.MountRoutes)
		api.Route("/stock", params.LedgerHandler.MountRoutes)
		api.Route("/sales", params.InvoicingHandler.MountRoutes)
		api.Route("/business", params.BusinessHandler.MountRoutes)
		api.Route("/reports", params.ReportsHandler.MountRoutes)
	})

	return r
}

// requireUser rejects requests without an authenticated session.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.UserID() == 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"title":"Unauthorized","status":401,"detail":"login required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
