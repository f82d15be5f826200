package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/fraudgate/internal/audit"
	"github.com/gyaneshwarpardhi/fraudgate/internal/bus"
	"github.com/gyaneshwarpardhi/fraudgate/internal/notify"
	"github.com/gyaneshwarpardhi/fraudgate/internal/rule"
)

// Deps are the collaborators the management API serves.
type Deps struct {
	Rules   rule.Repository
	Audit   audit.Reader
	History notify.History
	// Publisher and NotificationsTopic back POST /api/notifications.
	Publisher          bus.Publisher
	NotificationsTopic string
	// Stream serves GET /api/notifications/stream (typically a notify.Hub).
	Stream http.Handler
	// Ready reports readiness; nil means always ready.
	Ready  func(ctx context.Context) error
	Logger *slog.Logger
	Now    func() time.Time
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

// New creates the HTTP handler and registers all routes.
func New(d Deps) http.Handler {
	h := &Handler{deps: d, logger: d.Logger, now: d.Now}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.listRules)
			r.Post("/", h.createRule)
			r.Get("/operators", h.listOperators)
			r.Get("/actions", h.listActions)
			r.Get("/{id}", h.getRule)
			r.Put("/{id}", h.updateRule)
			r.Delete("/{id}", h.deleteRule)
			r.Patch("/{id}/toggle", h.toggleRule)
		})
		r.Route("/audit", func(r chi.Router) {
			r.Get("/", h.listAudit)
			r.Get("/stats", h.auditStats)
		})
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.listNotifications)
			r.Post("/", h.createNotification)
			if d.Stream != nil {
				r.Method(http.MethodGet, "/stream", d.Stream)
			}
		})
	})

	return r
}

// GET /healthz: always 200 (liveness check).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 while a dependency is unreachable.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.deps.Ready(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
