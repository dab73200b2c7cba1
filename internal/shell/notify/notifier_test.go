package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildcart/buildcart/internal/core/domain"
)

func testSnapshot() *domain.StoreSnapshot {
	return &domain.StoreSnapshot{
		ID:         "store-1",
		OwnerID:    "user-1",
		OwnerEmail: "owner@example.com",
		Name:       "Acme Goods",
		Slug:       "acme-goods",
	}
}

func testDeployment() *domain.Deployment {
	return &domain.Deployment{
		ID:          "dep_abc123",
		StoreID:     "store-1",
		Version:     "v1787486400000",
		Status:      domain.StatusSuccess,
		Environment: domain.EnvProduction,
		URL:         "https://acme-goods.stores.buildcart.ai",
	}
}

func TestWebhookNotifier_DeploymentSucceeded(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/notifications", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	n := NewWebhookNotifier(WebhookConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	})

	err := n.DeploymentSucceeded(context.Background(), testSnapshot(), testDeployment())
	require.NoError(t, err)

	assert.Equal(t, "deployment.succeeded", received["event"])
	assert.Equal(t, "store-1", received["store_id"])
	assert.Equal(t, "owner@example.com", received["owner_email"])
	assert.Equal(t, "dep_abc123", received["deployment_id"])
	assert.Equal(t, "https://acme-goods.stores.buildcart.ai", received["url"])
}

func TestWebhookNotifier_DeploymentFailed(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	n := NewWebhookNotifier(WebhookConfig{BaseURL: server.URL})

	err := n.DeploymentFailed(context.Background(), testSnapshot(), testDeployment(), "render failed: missing slug")
	require.NoError(t, err)

	assert.Equal(t, "deployment.failed", received["event"])
	assert.Equal(t, "render failed: missing slug", received["cause"])
}

func TestWebhookNotifier_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewWebhookNotifier(WebhookConfig{BaseURL: server.URL})

	err := n.DeploymentSucceeded(context.Background(), testSnapshot(), testDeployment())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestNoOpNotifier(t *testing.T) {
	n := NewNoOpNotifier()
	assert.NoError(t, n.DeploymentSucceeded(context.Background(), testSnapshot(), testDeployment()))
	assert.NoError(t, n.DeploymentFailed(context.Background(), testSnapshot(), testDeployment(), "boom"))
}
