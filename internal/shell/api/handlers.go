package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/buildcart/buildcart/internal/core/auth"
	"github.com/buildcart/buildcart/internal/shell/deploy"
)

// =============================================================================
// Request Types
// =============================================================================

// DeployRequestBody is the request body for triggering a deployment.
type DeployRequestBody struct {
	Environment  string `json:"environment,omitempty"`
	CustomDomain string `json:"custom_domain,omitempty"`
}

// RollbackRequestBody is the request body for rolling back a store.
type RollbackRequestBody struct {
	Version string `json:"version"`
}

// SetupDomainRequestBody is the request body for binding a custom domain.
type SetupDomainRequestBody struct {
	Hostname string `json:"hostname"`
}

// =============================================================================
// Deployment Handlers
// =============================================================================

func (h *Handler) handleDeploy(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	authCtx := auth.FromContext(r.Context())

	var body DeployRequestBody
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.writeMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	result, err := h.deployer.Deploy(r.Context(), authCtx, deploy.DeployRequest{
		StoreID:      storeID,
		Environment:  body.Environment,
		CustomDomain: body.CustomDomain,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	deploymentID := chi.URLParam(r, "deploymentID")
	authCtx := auth.FromContext(r.Context())

	dep, err := h.deployer.GetDeploymentStatus(r.Context(), authCtx, deploymentID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, dep)
}

func (h *Handler) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	deploymentID := chi.URLParam(r, "deploymentID")
	authCtx := auth.FromContext(r.Context())

	logs, err := h.deployer.GetDeploymentLogs(r.Context(), authCtx, deploymentID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"deployment_id": deploymentID,
		"logs":          logs,
	})
}

func (h *Handler) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	authCtx := auth.FromContext(r.Context())

	page := parseIntQuery(r, "page", 1)
	limit := parseIntQuery(r, "limit", 20)

	result, err := h.deployer.GetStoreDeployments(r.Context(), authCtx, storeID, page, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	authCtx := auth.FromContext(r.Context())

	from, err := parseTimeQuery(r, "from")
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid 'from' timestamp, want RFC 3339")
		return
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid 'to' timestamp, want RFC 3339")
		return
	}

	analytics, err := h.deployer.GetDeploymentAnalytics(r.Context(), authCtx, storeID, from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, analytics)
}

func (h *Handler) handleRollback(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	authCtx := auth.FromContext(r.Context())

	var body RollbackRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Version == "" {
		h.writeMessage(w, http.StatusBadRequest, "version is required")
		return
	}

	result, err := h.deployer.RollbackDeployment(r.Context(), authCtx, storeID, body.Version)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleDeleteDeployment(w http.ResponseWriter, r *http.Request) {
	deploymentID := chi.URLParam(r, "deploymentID")
	authCtx := auth.FromContext(r.Context())

	if err := h.deployer.DeleteDeployment(r.Context(), authCtx, deploymentID); err != nil {
		h.writeError(w, err)
		return
	}

	h.writeMessage(w, http.StatusOK, "deployment deleted")
}

func (h *Handler) handleDeploymentConfig(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	authCtx := auth.FromContext(r.Context())

	cfg, err := h.deployer.GetDeploymentConfig(r.Context(), authCtx, storeID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, cfg)
}

// =============================================================================
// Domain Handlers
// =============================================================================

func (h *Handler) handleGetDomain(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	authCtx := auth.FromContext(r.Context())

	binding, err := h.domains.GetBinding(r.Context(), authCtx, storeID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, binding)
}

func (h *Handler) handleSetupDomain(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	authCtx := auth.FromContext(r.Context())

	var body SetupDomainRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Hostname == "" {
		h.writeMessage(w, http.StatusBadRequest, "hostname is required")
		return
	}

	result, err := h.domains.SetupCustomDomain(r.Context(), authCtx, storeID, body.Hostname)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleEnableSSL(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	authCtx := auth.FromContext(r.Context())

	binding, err := h.domains.EnableSSL(r.Context(), authCtx, storeID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, binding)
}

// =============================================================================
// Query Helpers
// =============================================================================

func parseIntQuery(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func parseTimeQuery(r *http.Request, key string) (*time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
