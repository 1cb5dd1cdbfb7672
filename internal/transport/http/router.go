// Package httptransport is the thin HTTP layer. Handlers delegate to domain
// services and keep transport concerns (decoding, status codes, cookies)
// isolated from business logic.
package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eduro/internal/gate"
	"eduro/internal/identity"
	"eduro/internal/lockout"
	"eduro/internal/platform/metrics"
	"eduro/internal/roles"
	"eduro/pkg/platform/audit"
	"eduro/pkg/platform/middleware/metadata"
	"eduro/pkg/platform/middleware/requesttime"
	"eduro/pkg/platform/sentinel"
)

// RouterConfig carries the transport-level knobs.
type RouterConfig struct {
	SecureCookies bool
	// AuditLog, when set, enables the admin audit endpoints.
	AuditLog AuditLog
	// Audit, when set, records security events from the auth handlers.
	Audit *audit.Publisher
	// Lockout, when set, throttles failed sign-in attempts.
	Lockout *lockout.Service
	// Metrics, when set, counts refresh outcomes. Shared with the gate.
	Metrics *metrics.Metrics
	// HealthChecks are probed by /healthz; any failure degrades the status.
	HealthChecks map[string]func(context.Context) error
}

// NewRouter wires the public surface: auth endpoints outside the identity
// gate, everything else behind it.
func NewRouter(auth *identity.Service, g *gate.Gate, cfg RouterConfig, logger *slog.Logger) http.Handler {
	h := &AuthHandler{
		auth:          auth,
		lockout:       cfg.Lockout,
		metrics:       cfg.Metrics,
		audit:         cfg.Audit,
		secureCookies: cfg.SecureCookies,
		logger:        logger,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", handleHealth(cfg.HealthChecks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.handleLogin)
		r.Post("/refresh", h.handleRefresh)
		r.Post("/logout", h.handleLogout)
		r.Get("/session", h.handleSession)
	})

	r.Group(func(r chi.Router) {
		r.Use(g.Middleware)
		r.Get("/me", handleMe)

		if cfg.AuditLog != nil {
			admin := &AdminHandler{auditLog: cfg.AuditLog}
			r.With(RequireRole(roles.RoleAdmin)).
				Get("/admin/audit", admin.handleAuditByUser)
		}
	})

	return r
}

func handleHealth(checks map[string]func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
			}
		}
		writeJSON(w, status, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError centralizes domain error translation so every handler returns
// the same JSON envelope.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal"
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		status, code = http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, identity.ErrInvalidRefreshToken):
		status, code = http.StatusUnauthorized, "invalid_refresh_token"
	case errors.Is(err, identity.ErrInvalidToken):
		status, code = http.StatusUnauthorized, "invalid_token"
	case errors.Is(err, sentinel.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, sentinel.ErrUnavailable):
		status, code = http.StatusServiceUnavailable, "unavailable"
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": code, "message": msg})
}
