package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter returns a configured chi.Router for the meowd operator API.
//
// Route layout:
//
//	GET /healthz     – liveness probe, no authentication
//	GET /rules       – currently loaded rules
//	GET /jobs        – job history, filterable by rule/status
//	GET /jobs/{id}   – single job record
//
// signingKey enables HS256 bearer auth on every route but /healthz when
// non-empty; pass nil to run the API unauthenticated.
func NewRouter(srv *Server, signingKey []byte) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/healthz", srv.handleHealthz)

	r.Group(func(r chi.Router) {
		if len(signingKey) > 0 {
			r.Use(JWTMiddleware(signingKey))
		}

		r.Get("/rules", srv.handleListRules)
		r.Get("/jobs", srv.handleListJobs)
		r.Get("/jobs/{id}", func(w http.ResponseWriter, req *http.Request) {
			srv.handleGetJob(w, req, chi.URLParam(req, "id"))
		})
	})

	return r
}
