// Package api provides HTTP handlers for the BuildCart deployment API.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/buildcart/buildcart/internal/core/auth"
	"github.com/buildcart/buildcart/internal/shell/deploy"
	"github.com/buildcart/buildcart/internal/shell/domains"
	"github.com/buildcart/buildcart/internal/shell/store"
)

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the deployment API.
type Handler struct {
	store    store.Store
	deployer *deploy.Service
	domains  *domains.Service
	logger   *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, deployer *deploy.Service, domainSvc *domains.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:    s,
		deployer: deployer,
		domains:  domainSvc,
		logger:   logger,
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)
	r.Use(h.authContext)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/stores/{storeID}", func(r chi.Router) {
			r.Post("/deploy", h.handleDeploy)
			r.Get("/deployments", h.handleListDeployments)
			r.Get("/deployments/analytics", h.handleAnalytics)
			r.Post("/deployments/rollback", h.handleRollback)
			r.Get("/deployment-config", h.handleDeploymentConfig)

			r.Route("/domain", func(r chi.Router) {
				r.Get("/", h.handleGetDomain)
				r.Post("/", h.handleSetupDomain)
				r.Post("/ssl", h.handleEnableSSL)
			})
		})

		r.Route("/deployments/{deploymentID}", func(r chi.Router) {
			r.Get("/", h.handleGetDeployment)
			r.Get("/logs", h.handleGetLogs)
			r.Delete("/", h.handleDeleteDeployment)
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// authContext extracts the gateway-injected identity headers into the
// request context.
func (h *Handler) authContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := auth.ExtractFromRequest(r)
		next.ServeHTTP(w, r.WithContext(auth.WithContext(r.Context(), authCtx)))
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	ready := true

	if _, err := h.store.CountStores(r.Context()); err != nil {
		checks["database"] = "failed"
		ready = false
	} else {
		checks["database"] = "ok"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, map[string]any{"ready": ready, "checks": checks})
}
