/*
server.go - HTTP router and middleware configuration

PURPOSE:

	Configures the HTTP router (chi), middleware stack, and route definitions.
	This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
 1. RequestID:    Unique ID per request for tracing
 2. RealIP:       Client address from X-Forwarded-For / X-Real-IP
 3. RequestLog:   One structured logrus line per request
 4. Recoverer:    Panic recovery (500 instead of crash)
 5. CORS:         Cross-origin requests for a frontend
 6. Authenticate: Bearer JWT on everything under /api

ROUTE GROUPS:

	/healthz              Liveness (public)
	/api/requests/*       Time-off request lifecycle
	/api/balances/*       Balance summary and admin adjustment
	/api/overtime/*       Overtime submission and approval
	/api/calendar/*       Working days and holidays
	/api/users/*          User management (admin)
	/api/audit            Audit trail
	/api/scenarios/*      Demo scenarios (admin)

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token verification
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	JWTSecret      string
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLog(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(opts.JWTSecret))

		r.Route("/requests", func(r chi.Router) {
			r.Get("/", h.ListRequests)
			r.Post("/", h.CreateRequest)
			r.Post("/validate", h.ValidateRequest)
			r.Get("/{id}", h.GetRequest)
			r.Delete("/{id}", h.DeleteRequest)
			r.Post("/{id}/approve", h.ApproveRequest)
			r.Post("/{id}/reject", h.RejectRequest)
		})

		r.Route("/balances", func(r chi.Router) {
			r.Get("/{userID}", h.GetBalances)
			r.Put("/{userID}", h.AdjustBalance)
		})

		r.Route("/overtime", func(r chi.Router) {
			r.Get("/", h.ListOvertime)
			r.Post("/", h.CreateOvertime)
			r.Post("/{id}/approve", h.ApproveOvertime)
			r.Post("/{id}/reject", h.RejectOvertime)
		})

		r.Route("/calendar", func(r chi.Router) {
			r.Get("/working-days", h.WorkingDays)
			r.Get("/holidays", h.ListHolidays)
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.CreateUser)
			r.Delete("/{id}", h.DeleteUser)
		})

		r.Get("/audit", h.ListAudit)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// RequestLog logs method, path, status and latency of every request.
func RequestLog(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				entry := logger.WithFields(logrus.Fields{
					"request_id": middleware.GetReqID(r.Context()),
					"method":     r.Method,
					"path":       r.URL.Path,
					"status":     ww.Status(),
					"bytes":      ww.BytesWritten(),
					"duration":   time.Since(start).String(),
					"remote":     r.RemoteAddr,
				})
				if ww.Status() >= http.StatusInternalServerError {
					entry.Warn("request served")
					return
				}
				entry.Debug("request served")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
