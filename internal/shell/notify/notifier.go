// Package notify delivers deployment notifications to store owners.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/buildcart/buildcart/internal/core/domain"
)

// =============================================================================
// Notifier Interface
// =============================================================================

// Notifier defines the interface for deployment outcome notifications.
// Delivery is best-effort: the orchestrator never fails a deployment over a
// notification error.
type Notifier interface {
	// DeploymentSucceeded notifies the owner that a deployment went live.
	DeploymentSucceeded(ctx context.Context, snap *domain.StoreSnapshot, dep *domain.Deployment) error

	// DeploymentFailed notifies the owner that a deployment failed.
	DeploymentFailed(ctx context.Context, snap *domain.StoreSnapshot, dep *domain.Deployment, cause string) error
}

// =============================================================================
// Webhook Notifier Implementation
// =============================================================================

// WebhookNotifier implements Notifier by POSTing deployment events to the
// platform notification endpoint, which fans out to email.
type WebhookNotifier struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// WebhookConfig holds configuration for the webhook notifier.
type WebhookConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// DefaultWebhookConfig returns default webhook notifier configuration.
func DefaultWebhookConfig() WebhookConfig {
	return WebhookConfig{
		BaseURL: "http://localhost:8085",
		Timeout: 10 * time.Second,
	}
}

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &WebhookNotifier{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// eventPayload represents a deployment event in the notification request.
type eventPayload struct {
	Event        string `json:"event"`
	StoreID      string `json:"store_id"`
	StoreName    string `json:"store_name"`
	OwnerID      string `json:"owner_id"`
	OwnerEmail   string `json:"owner_email"`
	DeploymentID string `json:"deployment_id"`
	Version      string `json:"version"`
	Environment  string `json:"environment"`
	URL          string `json:"url,omitempty"`
	Cause        string `json:"cause,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// DeploymentSucceeded notifies the owner that a deployment went live.
func (n *WebhookNotifier) DeploymentSucceeded(ctx context.Context, snap *domain.StoreSnapshot, dep *domain.Deployment) error {
	return n.send(ctx, eventPayload{
		Event:        "deployment.succeeded",
		StoreID:      snap.ID,
		StoreName:    snap.Name,
		OwnerID:      snap.OwnerID,
		OwnerEmail:   snap.OwnerEmail,
		DeploymentID: dep.ID,
		Version:      dep.Version,
		Environment:  string(dep.Environment),
		URL:          dep.URL,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})
}

// DeploymentFailed notifies the owner that a deployment failed.
func (n *WebhookNotifier) DeploymentFailed(ctx context.Context, snap *domain.StoreSnapshot, dep *domain.Deployment, cause string) error {
	return n.send(ctx, eventPayload{
		Event:        "deployment.failed",
		StoreID:      snap.ID,
		StoreName:    snap.Name,
		OwnerID:      snap.OwnerID,
		OwnerEmail:   snap.OwnerEmail,
		DeploymentID: dep.ID,
		Version:      dep.Version,
		Environment:  string(dep.Environment),
		Cause:        cause,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})
}

func (n *WebhookNotifier) send(ctx context.Context, payload eventPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	url := n.baseURL + "/api/v1/notifications"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiKey)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("notification endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// =============================================================================
// No-Op Notifier (for development/testing)
// =============================================================================

// NoOpNotifier is a notifier that does nothing (for development mode).
type NoOpNotifier struct{}

// NewNoOpNotifier creates a no-op notifier.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// DeploymentSucceeded does nothing.
func (n *NoOpNotifier) DeploymentSucceeded(ctx context.Context, snap *domain.StoreSnapshot, dep *domain.Deployment) error {
	return nil
}

// DeploymentFailed does nothing.
func (n *NoOpNotifier) DeploymentFailed(ctx context.Context, snap *domain.StoreSnapshot, dep *domain.Deployment, cause string) error {
	return nil
}
