package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/domain"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/http/handler"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/http/middleware"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/http/response"
)

// maxRequestBody caps every authenticated request body. The cap applies
// ahead of admission and the idempotency guard, so no middleware buffers
// more than this.
const maxRequestBody = 32 << 20

// Dependencies carries everything the router assembles; nil Idempotency
// means the guard is disabled.
type Dependencies struct {
	Admission   *middleware.Admission
	RateLimiter *middleware.RateLimiter
	Idempotency *middleware.Idempotency
	Ingest      *handler.IngestHandler
	Keys        *handler.APIKeyHandler
	Health      *handler.HealthHandler
}

func New(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health/live", deps.Health.Live)
	r.Get("/health/ready", deps.Health.Ready)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.MaxBodyBytes(maxRequestBody))
		api.Use(deps.Admission.Middleware())
		api.Use(deps.RateLimiter.Middleware())

		api.Route("/ingest", func(ingest chi.Router) {
			if deps.Idempotency != nil {
				ingest.Use(deps.Idempotency.Middleware())
			}
			ingest.Post("/{source}", deps.Ingest.Ingest)
		})

		api.Route("/keys", func(keys chi.Router) {
			keys.Use(middleware.RequireRole(domain.RoleAdmin, domain.RoleSuperadmin))
			keys.Post("/", deps.Keys.Create)
			keys.Get("/", deps.Keys.List)
			keys.Delete("/{id}", deps.Keys.Revoke)
		})
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.Error(w, req, http.StatusNotFound, "not_found", "no such route", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		response.Error(w, req, http.StatusMethodNotAllowed, "bad_request", "method not allowed", nil)
	})

	return r
}
