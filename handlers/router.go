// Package handlers exposes the ledger, inventory and expense services over a
// JSON HTTP API.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/satheeshds/trackey/events"
	"github.com/satheeshds/trackey/inventory"
	"github.com/satheeshds/trackey/ledger"
	"github.com/satheeshds/trackey/store"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Handlers holds the services every route works against.
type Handlers struct {
	ledger    *ledger.Service
	inventory *inventory.Service
	store     store.Store
	hub       *events.Hub
	log       *slog.Logger
	now       func() time.Time
}

func New(st store.Store, hub *events.Hub, log *slog.Logger, soldLookup time.Duration) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{
		ledger:    ledger.NewService(st, hub, log),
		inventory: inventory.NewService(st, hub, log, soldLookup),
		store:     st,
		hub:       hub,
		log:       log.With("component", "http"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RouterConfig carries the transport settings of the API.
type RouterConfig struct {
	AuthUser    string
	AuthPass    string
	CORSOrigins []string
}

func (h *Handlers) Router(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Store-ID", "X-User-ID", "X-Session-ID", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(BasicAuth(cfg.AuthUser, cfg.AuthPass))
		r.Use(Tenant)

		// Debts
		r.Get("/debts", scoped(h.ListDebts))
		r.Post("/debts", scoped(h.CreateDebt))
		r.Get("/debts/{id}", scoped(h.GetDebt))
		r.Get("/debts/{id}/payments", scoped(h.ListPayments))
		r.Get("/debts/{id}/devices", scoped(h.ListDebtDevices))
		r.Post("/debts/{id}/payments", scoped(h.RecordPayment))

		// Products
		r.Get("/products", scoped(h.ListProducts))
		r.Post("/products", scoped(h.CreateProducts))
		r.Get("/products/{id}", scoped(h.GetProduct))
		r.Put("/products/{id}", scoped(h.UpdateProduct))
		r.Delete("/products/{id}", scoped(h.DeleteProduct))
		r.Get("/products/{id}/devices", scoped(h.ListDevices))
		r.Delete("/products/{id}/devices/{deviceId}", scoped(h.RemoveDevice))

		// Sales
		r.Post("/sales", scoped(h.RecordSale))
		r.Get("/sales/status", scoped(h.SoldStatus))

		// Expenses
		r.Get("/expenses", scoped(h.ListExpenses))
		r.Post("/expenses", scoped(h.CreateExpense))
		r.Put("/expenses/{id}", scoped(h.UpdateExpense))
		r.Delete("/expenses/{id}", scoped(h.DeleteExpense))

		r.Get("/events", scoped(h.StreamEvents))
		r.Get("/dashboard", scoped(h.GetDashboard))
	})

	// Swagger UI
	r.Get("/swagger/*", httpSwagger.WrapHandler)
	return r
}
