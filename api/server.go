/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions for
  the dev gateway. This is the wiring layer that connects URLs to
  handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request; doubles as the transaction id
  4. CORS:       Cross-origin requests for local tooling

SECURITY NOTE:
  No authentication middleware. Caller identity is the X-Caller header,
  trusted as-is - this surface is for local development only; signature-
  based authentication is the peer network's job.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Caller"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Charging
		r.Route("/actions", func(r chi.Router) {
			r.Post("/{code}/charge", h.Charge)
			r.Post("/{code}/charge-batch", h.ChargeBatch)
		})

		// Queries
		r.Get("/usage/{code}/{user}", h.GetUsage)
		r.Route("/receipts", func(r chi.Router) {
			r.Get("/period", h.GetReceiptsByPeriod)
			r.Get("/payer/{payer}", h.GetReceiptsByPayer)
		})
		r.Get("/escrow/{owner}", h.GetEscrow)
		r.Get("/balances/{owner}", h.GetBalance)

		// Admin
		r.Route("/admin", func(r chi.Router) {
			r.Post("/schedules", h.InstallSchedule)
			r.Post("/exemptions", h.InstallExemption)
			r.Post("/currency", h.InstallCurrency)
			r.Post("/escrow", h.CreditEscrow)
			r.Post("/mint", h.Mint)
		})
	})

	return r
}
