package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samims/taskpulse/internal/handler"
	customMiddleware "github.com/samims/taskpulse/internal/middleware"
)

// Handlers groups the API handlers mounted by NewRouter.
type Handlers struct {
	Settings      *handler.SettingsHandler
	Notifications *handler.NotificationHandler
	Logs          *handler.LogHandler
	Health        *handler.HealthHandler
}

func NewRouter(h Handlers, tokens customMiddleware.TokenValidator) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(customMiddleware.MetricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/me/notifications/settings", func(r chi.Router) {
		r.Use(customMiddleware.AuthMiddleware(tokens))
		r.Get("/", h.Settings.Get)
		r.Patch("/", h.Settings.Patch)
	})

	r.Post("/tasks/{taskID}/reminders", h.Notifications.ScheduleReminders)
	r.Route("/notifications", func(r chi.Router) {
		r.Post("/", h.Notifications.Notify)
		r.Get("/logs", h.Logs.List)
		r.Get("/logs/{id}", h.Logs.GetByID)
	})

	mountOps(r, h.Health)
	return r
}

// NewOpsRouter serves only health and metrics, for the worker process.
func NewOpsRouter(health *handler.HealthHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	mountOps(r, health)
	return r
}

func mountOps(r chi.Router, health *handler.HealthHandler) {
	r.Get("/healthz", health.Liveness)
	r.Get("/readyz", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())
}
