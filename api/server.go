/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. Principal:  Caller identity from the X-Principal header

ROUTE GROUPS:
  /api/grants/*         Grant lifecycle and governance
  /api/accounts/*       Token balances (dev deposit included)
  /api/admin/*          Initialize, rescue, demo clock
  /api/scenarios/*      Demo scenarios

AUTHENTICATION:
  The X-Principal header names the caller; the engine enforces per-call
  authorization (admin, oracle, recipient, council member) against it.
  The header is trusted as-is - a demo stand-in for real signatures.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/vesting-engine/vesting"
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
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Principal"},
		AllowCredentials: true,
	}))
	r.Use(principalMiddleware)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Grant routes
		r.Route("/grants", func(r chi.Router) {
			r.Get("/", h.ListGrants)
			r.Post("/", h.CreateGrant)
			r.Get("/{id}", h.GetGrant)
			r.Get("/{id}/claimable", h.GetClaimable)
			r.Get("/{id}/events", h.GetEvents)
			r.Post("/{id}/withdraw", h.Withdraw)
			r.Post("/{id}/pause", h.Pause)
			r.Post("/{id}/resume", h.Resume)
			r.Post("/{id}/cancel", h.Cancel)
			r.Post("/{id}/rate", h.ProposeRateChange)
			r.Post("/{id}/kpi", h.ApplyKPIMultiplier)
			r.Post("/{id}/slash", h.SlashInactive)
			r.Post("/{id}/terminate", h.SelfTerminate)
			r.Post("/{id}/reassign", h.ReassignGrantee)

			// Council governance
			r.Post("/{id}/council", h.SetCouncil)
			r.Post("/{id}/council/propose-pause", h.ProposePause)
			r.Post("/{id}/council/vote", h.VotePause)

			// Milestones
			r.Post("/{id}/milestones", h.AddMilestone)
			r.Post("/{id}/milestones/{milestoneID}/approve", h.ApproveMilestone)
		})

		// Account routes
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/{token}/{account}", h.GetBalance)
			r.Post("/deposit", h.Deposit) // dev funding
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/initialize", h.Initialize)
			r.Post("/rescue", h.RescueTokens)
			r.Get("/allocated", h.GetAllocated)
			r.Get("/clock", h.GetClock)
			r.Post("/clock/advance", h.AdvanceClock)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// principalMiddleware lifts the X-Principal header into the request
// context as the caller identity the engine authorizes against.
func principalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := r.Header.Get("X-Principal"); p != "" {
			r = r.WithContext(vesting.WithCaller(r.Context(), vesting.Principal(p)))
		}
		next.ServeHTTP(w, r)
	})
}
