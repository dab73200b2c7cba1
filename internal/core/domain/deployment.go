package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Deployment Errors
// =============================================================================

var (
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrUnknownEnvironment = errors.New("unknown deployment environment")
)

// =============================================================================
// Deployment Status
// =============================================================================

type DeploymentStatus string

const (
	StatusPending  DeploymentStatus = "pending"
	StatusBuilding DeploymentStatus = "building"
	StatusSuccess  DeploymentStatus = "success"
	StatusFailed   DeploymentStatus = "failed"
)

// IsTerminal reports whether the status is a terminal state.
func (s DeploymentStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// =============================================================================
// Environment
// =============================================================================

type Environment string

const (
	EnvProduction Environment = "production"
	EnvStaging    Environment = "staging"
)

// ParseEnvironment validates and normalizes an environment string.
// An empty string defaults to production.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(strings.ToLower(strings.TrimSpace(s))) {
	case "", EnvProduction:
		return EnvProduction, nil
	case EnvStaging:
		return EnvStaging, nil
	default:
		return "", fmt.Errorf("%w: %q (%w)", ErrUnknownEnvironment, s, ErrValidation)
	}
}

// =============================================================================
// Deployment
// =============================================================================

// Deployment is one versioned attempt to materialize a store snapshot into
// a publishable build. Records are immutable once terminal, except for the
// explicit delete operation.
type Deployment struct {
	ID          string           `json:"id"`
	StoreID     string           `json:"store_id"`
	Version     string           `json:"version"`
	Status      DeploymentStatus `json:"status"`
	Environment Environment      `json:"environment"`
	URL         string           `json:"url,omitempty"`
	BuildLog    string           `json:"build_log,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// NewDeployment creates a pending deployment for a store.
func NewDeployment(storeID string, env Environment, now time.Time) *Deployment {
	now = now.UTC()
	return &Deployment{
		ID:          "dep_" + uuid.New().String()[:8],
		StoreID:     storeID,
		Version:     GenerateVersionLabel(now),
		Status:      StatusPending,
		Environment: env,
		CreatedAt:   now,
	}
}

// AppendLog adds a line to the build log.
func (d *Deployment) AppendLog(line string) {
	if d.BuildLog != "" {
		d.BuildLog += "\n"
	}
	d.BuildLog += line
}

// Transition attempts to move the deployment to a new status. Terminal
// transitions set the completion timestamp.
func (d *Deployment) Transition(to DeploymentStatus, now time.Time) error {
	if err := ValidateTransition(d.Status, to); err != nil {
		return err
	}
	d.Status = to
	if to.IsTerminal() {
		ts := now.UTC()
		d.CompletedAt = &ts
	}
	return nil
}

// TransitionToFailed moves the deployment to failed and records the cause
// in the build log. Failing an already-terminal deployment is an error.
func (d *Deployment) TransitionToFailed(cause string, now time.Time) error {
	if d.Status.IsTerminal() {
		return ErrInvalidTransition
	}
	d.AppendLog("ERROR: " + cause)
	return d.Transition(StatusFailed, now)
}

// Duration returns the build duration for terminal deployments, zero
// otherwise.
func (d *Deployment) Duration() time.Duration {
	if d.CompletedAt == nil {
		return 0
	}
	return d.CompletedAt.Sub(d.CreatedAt)
}

// =============================================================================
// State Machine
// =============================================================================

// validTransitions defines the allowed state transitions. A deployment
// transitions exactly once into a terminal state; there is no retry in
// place — a new deploy call creates a new record.
var validTransitions = map[DeploymentStatus][]DeploymentStatus{
	StatusPending:  {StatusBuilding, StatusFailed},
	StatusBuilding: {StatusSuccess, StatusFailed},
	StatusSuccess:  {},
	StatusFailed:   {},
}

// ValidateTransition checks if a status transition is valid.
func ValidateTransition(from, to DeploymentStatus) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return ErrInvalidTransition
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return ErrInvalidTransition
}

// =============================================================================
// Version Labels
// =============================================================================

// GenerateVersionLabel returns a monotonically distinguishable version
// label derived from the deploy time, e.g. "v1724418000123".
func GenerateVersionLabel(now time.Time) string {
	return fmt.Sprintf("v%d", now.UTC().UnixMilli())
}
