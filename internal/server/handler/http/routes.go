package http

import (
	"net/http"

	"github.com/atinyakov/FeedbackTracker/internal/middleware"
	"github.com/atinyakov/FeedbackTracker/internal/models"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs and returns an HTTP handler that serves the feedback
// API.
//
// Routes:
//
//	GET  /metrics                    → metrics.Handler (no auth)
//	POST /login                      → authHandler.Login
//	GET  /team                       → feedbackHandler.Team (managers)
//	GET  /feedback                   → feedbackHandler.List
//	POST /feedback                   → feedbackHandler.Create
//	PUT  /feedback/{id}              → feedbackHandler.Update
//	POST /feedback/{id}/acknowledge  → feedbackHandler.Acknowledge
//	GET  /analytics                  → feedbackHandler.Analytics (managers)
//
// Middleware chain (applied in order):
//  1. RequestID
//  2. WithRequestLogging(logger)
//  3. metrics.Instrument
//  4. Recoverer
//  5. AllowContentType("application/json") for requests with a body
//  6. BasicAuth on every route except /metrics
func NewRouter(
	auth middleware.Authenticator,
	authHandler *AuthHandler,
	feedbackHandler *FeedbackHandler,
	metrics *middleware.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(metrics.Instrument)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.AllowContentType("application/json"))

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.BasicAuth(auth, logger))

		r.Post("/login", authHandler.Login)

		r.With(middleware.RequireRole(models.RoleManager, "Only managers can view team members")).
			Get("/team", feedbackHandler.Team)
		r.With(middleware.RequireRole(models.RoleManager, "Only managers can view analytics")).
			Get("/analytics", feedbackHandler.Analytics)

		r.Route("/feedback", func(r chi.Router) {
			r.Get("/", feedbackHandler.List)
			r.Post("/", feedbackHandler.Create)
			r.Put("/{id}", feedbackHandler.Update)
			r.Post("/{id}/acknowledge", feedbackHandler.Acknowledge)
		})
	})

	return r
}
