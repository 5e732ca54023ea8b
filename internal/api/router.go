package api

import (
	"net/http"

	mw "github.com/GraphaRNA-web/GraphaRNA-web/internal/api/middleware"
	"github.com/GraphaRNA-web/GraphaRNA-web/internal/api/response"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	// SubmitLimit guards the endpoints that create jobs; ValidateLimit the
	// stateless validation endpoint. A nil limiter disables limiting.
	SubmitLimit   *mw.RateLimit
	ValidateLimit *mw.RateLimit

	MetricsHandler http.Handler

	HealthHandler       http.HandlerFunc
	ValidateHandler     http.HandlerFunc
	SubmitHandler       http.HandlerFunc
	SuggestHandler      http.HandlerFunc
	ExampleHandler      http.HandlerFunc
	ActiveJobsHandler   http.HandlerFunc
	FinishedJobsHandler http.HandlerFunc
	GetJobHandler       http.HandlerFunc
	JobStatusHandler    http.HandlerFunc
	ArchiveHandler      http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.With(limited(deps.ValidateLimit)).
		Post("/api/v1/validate", orNotImplemented(deps.ValidateHandler))

	// Job creation
	r.Group(func(r chi.Router) {
		r.Use(limited(deps.SubmitLimit))

		r.Post("/api/v1/jobs", orNotImplemented(deps.SubmitHandler))
		r.Post("/api/v1/examples/{exampleNumber}", orNotImplemented(deps.ExampleHandler))
	})

	r.Get("/api/v1/jobs/suggested", orNotImplemented(deps.SuggestHandler))
	r.Get("/api/v1/jobs/active", orNotImplemented(deps.ActiveJobsHandler))
	r.Get("/api/v1/jobs/finished", orNotImplemented(deps.FinishedJobsHandler))
	r.Get("/api/v1/jobs/{uidh}", orNotImplemented(deps.GetJobHandler))
	r.Get("/api/v1/jobs/{uidh}/status", orNotImplemented(deps.JobStatusHandler))
	r.Get("/api/v1/jobs/{uidh}/archive", orNotImplemented(deps.ArchiveHandler))

	return r
}

// limited returns the limiter's middleware, or a pass-through when rl is nil.
func limited(rl *mw.RateLimit) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return rl.Limit
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
