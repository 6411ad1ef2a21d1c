// Package httpapi assembles the public router: middleware chain, domain
// handlers, the admin surface and the operational endpoints. It is a thin
// wiring layer; behavior lives in the handlers and services it mounts.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	bookinghandler "rumbo/internal/booking/handler"
	"rumbo/internal/platform/metrics"
	"rumbo/internal/platform/middleware"
	reprogramhandler "rumbo/internal/reprogram/handler"
	visitorhandler "rumbo/internal/visitor/handler"
	"rumbo/pkg/platform/httputil"
)

// Deps carries everything the router mounts.
type Deps struct {
	Bookings  *bookinghandler.Handler
	Visitors  *visitorhandler.Handler
	RuleAdmin *reprogramhandler.Handler

	ActorValidator middleware.ActorValidator
	AdminToken     string

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Health reports readiness of backing stores; nil checks pass.
	Health func() error
}

// NewRouter wires the middleware chain and mounts all endpoints. Booking and
// visitor routes require an authenticated actor; the admin surface is gated
// by the shared admin token instead.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Latency(deps.Metrics))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", handleHealth(deps.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireActor(deps.ActorValidator, deps.Logger))
		deps.Bookings.Register(r)
		deps.Visitors.Register(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.AdminToken(deps.AdminToken))
		deps.RuleAdmin.Register(r)
	})

	return r
}

func handleHealth(check func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
					"reason": err.Error(),
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
