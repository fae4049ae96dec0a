package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/roadcams/conditions-dashboard/internal/http/handlers"
)

// NewRouter builds full HTTP routing tree for the dashboard API, the
// conditions proxy, metrics and static frontend.
func NewRouter(api *handlers.API, conditions http.Handler, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RecoverJSON)
	r.Use(StripForwardedPrefix)
	r.Use(RequestLogger(api))

	// Websocket sessions outlive the request timeout.
	r.Get("/api/ws", api.Watch)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(20 * time.Second))

		r.Get("/healthz", api.Health)
		if metrics != nil {
			r.Method(http.MethodGet, "/metrics", metrics)
		}
		r.Route("/api", func(apiRouter chi.Router) {
			apiRouter.Method(http.MethodGet, "/conditions", conditions)
			apiRouter.Get("/dashboard", api.Dashboard)
			apiRouter.Post("/refresh", api.Refresh)
			apiRouter.Get("/history", api.ListHistory)
			apiRouter.Get("/cameras/{id}/history", func(w http.ResponseWriter, r *http.Request) {
				api.ListCameraHistory(w, r, chi.URLParam(r, "id"))
			})
		})

		r.Get("/*", api.Static)
		r.Get("/", api.Static)
	})
	return r
}
