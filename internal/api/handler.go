// Package api is the HTTP surface. Handlers stay thin: decode, call the
// pipeline, encode. All domain decisions live below this package.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warebot/warebot/internal/ask"
	"github.com/warebot/warebot/internal/auth"
	"github.com/warebot/warebot/internal/config"
	"github.com/warebot/warebot/internal/observability"
	"github.com/warebot/warebot/internal/warehouse"
)

type ReadinessCheck func(ctx context.Context) error

// AskService answers one question; failures surface as safe reply text,
// never as an error.
type AskService interface {
	Answer(ctx context.Context, req ask.Request) ask.Reply
}

// SQLExecutor runs one gated statement.
type SQLExecutor interface {
	Execute(ctx context.Context, stmt warehouse.Statement) (warehouse.QueryResult, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Ask               AskService
	Executor          SQLExecutor
	RowLimit          int
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/ask", requireRole(auth.RoleAsker, func(w http.ResponseWriter, r *http.Request) {
		handleAsk(deps, w, r)
	}))
	protected.HandleFunc("GET /v1/queries", requireRole(auth.RoleAsker, func(w http.ResponseWriter, r *http.Request) {
		handleListQueries(deps, w, r)
	}))
	protected.HandleFunc("POST /v1/sql", requireRole(auth.RoleAnalyst, func(w http.ResponseWriter, r *http.Request) {
		handleSQL(deps, w, r)
	}))
	protected.HandleFunc("POST /v1/sql/generate", requireRole(auth.RoleAnalyst, func(w http.ResponseWriter, r *http.Request) {
		handleGenerateSQL(deps, w, r)
	}))

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	mux.Handle("POST /v1/ask", protectedHandler)
	mux.Handle("GET /v1/queries", protectedHandler)
	mux.Handle("POST /v1/sql", protectedHandler)
	mux.Handle("POST /v1/sql/generate", protectedHandler)

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// requireRole enforces a role when a request carries an identity. Requests
// without one passed the auth layer unauthenticated, which only happens
// when auth is disabled by configuration.
func requireRole(role string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if identity, ok := auth.IdentityFromContext(r.Context()); ok && !identity.HasRole(role) {
			writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", "role "+role+" is required", false)
			return
		}
		next(w, r)
	}
}

// CheckWarehouse reports readiness by pinging the warehouse pool.
func CheckWarehouse(pinger interface {
	Ping(ctx context.Context) error
}) ReadinessCheck {
	return func(ctx context.Context) error {
		if pinger == nil {
			return errors.New("warehouse executor is not configured")
		}
		return pinger.Ping(ctx)
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
