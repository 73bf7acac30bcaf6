// Package httptransport assembles the HTTP surface: global middleware,
// operational endpoints and the domain routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	audithandler "civicpulse/internal/audit/handler"
	enrollmenthandler "civicpulse/internal/enrollment/handler"
	"civicpulse/internal/platform/metrics"
	"civicpulse/internal/platform/middleware"
	ratinghandler "civicpulse/internal/rating/handler"
	"civicpulse/pkg/platform/httputil"
	adminmw "civicpulse/pkg/platform/middleware/admin"
	authmw "civicpulse/pkg/platform/middleware/auth"
	"civicpulse/pkg/platform/middleware/metadata"
	"civicpulse/pkg/platform/middleware/requesttime"
)

// HealthCheck probes a dependency. A non-nil error marks the service unhealthy.
type HealthCheck func(ctx context.Context) error

// Config carries everything the router needs.
type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	Validator      authmw.JWTValidator
	AdminToken     string
	UITheme        string
	HealthChecks   map[string]HealthCheck

	Enrollment *enrollmenthandler.Handler
	Rating     *ratinghandler.Handler
	// Audit is optional; without it the admin audit route is not mounted.
	Audit *audithandler.Handler
}

func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Latency(cfg.Metrics))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)

	r.Get("/health", healthHandler(cfg.HealthChecks))
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	r.Get("/ui/config", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"theme": cfg.UITheme})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Use(authmw.RequireAuth(cfg.Validator, cfg.Logger))
		cfg.Enrollment.Register(r)
		cfg.Rating.Register(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Use(adminmw.RequireAdminToken(cfg.AdminToken, cfg.Logger))
		cfg.Rating.RegisterAdmin(r)
		if cfg.Audit != nil {
			cfg.Audit.RegisterAdmin(r)
		}
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "up"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		httputil.WriteJSON(w, status, map[string]any{"status": overall, "checks": results})
	}
}
