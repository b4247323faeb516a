/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the caregiver app

ROUTE GROUPS:
  /api/families/{familyID}/profiles/*   Profiles and their consequences
  /api/sessions, /api/kinds             Reference data
  /metrics                              Prometheus scrape endpoint

SECURITY NOTE:
  No authentication middleware. Family scoping is by URL only; put the
  server behind an authenticating proxy.

SEE ALSO:
  - handlers.go: Handler implementations
  - stream.go: Server-Sent Events
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/consequence-ledger/observability"
)

// DefaultAllowedOrigins are the local dev servers of the caregiver app.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}

// NewRouter creates a new router with all routes configured. Empty
// allowedOrigins falls back to DefaultAllowedOrigins.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Caregiver"},
		AllowCredentials: true,
	}))

	r.Handle("/metrics", observability.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/sessions", h.ListSessions)
		r.Get("/kinds", h.ListKinds)

		r.Route("/families/{familyID}/profiles", func(r chi.Router) {
			r.Get("/", h.ListProfiles)
			r.Post("/", h.CreateProfile)

			r.Route("/{profileID}", func(r chi.Router) {
				r.Get("/", h.GetProfile)
				r.Put("/", h.UpdateProfile)
				r.Delete("/", h.DeleteProfile)

				r.Get("/consequences", h.GetConsequences)
				r.Post("/consequences/{type}/toggle", h.ToggleConsequence)
				r.Get("/summary", h.GetSummary)
				r.Get("/transactions", h.GetTransactions)
				r.Get("/stream", h.StreamConsequences)
			})
		})
	})

	return r
}
