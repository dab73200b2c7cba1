// Package deploy orchestrates the store deployment pipeline: render the
// storefront, publish the artifact tree, track the deployment record, and
// keep the store's serving state current.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/buildcart/buildcart/internal/core/auth"
	"github.com/buildcart/buildcart/internal/core/domain"
	"github.com/buildcart/buildcart/internal/shell/domains"
	"github.com/buildcart/buildcart/internal/shell/notify"
	"github.com/buildcart/buildcart/internal/shell/store"
)

// =============================================================================
// Collaborator Interfaces
// =============================================================================

// Renderer produces the static artifact tree for a store snapshot.
type Renderer interface {
	Render(snap domain.StoreSnapshot, baseURL string, now time.Time) (map[string][]byte, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(snap domain.StoreSnapshot, baseURL string, now time.Time) (map[string][]byte, error)

func (f RendererFunc) Render(snap domain.StoreSnapshot, baseURL string, now time.Time) (map[string][]byte, error) {
	return f(snap, baseURL, now)
}

// Builder publishes rendered artifact trees to build storage.
type Builder interface {
	WriteTree(namespace, version string, files map[string][]byte) (string, error)
	BuildExists(namespace, version string) bool
}

// =============================================================================
// Service
// =============================================================================

// Config holds orchestrator configuration.
type Config struct {
	// BaseSuffix is the platform subdomain suffix, including the leading
	// dot, e.g. ".stores.buildcart.ai".
	BaseSuffix string

	// Timeout bounds a single deployment's render and publish phases.
	Timeout time.Duration
}

// DefaultConfig returns default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		BaseSuffix: ".stores.buildcart.ai",
		Timeout:    2 * time.Minute,
	}
}

// Service is the deployment orchestrator.
type Service struct {
	store    store.Store
	renderer Renderer
	builder  Builder
	notifier notify.Notifier
	domains  *domains.Service
	config   Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new deployment orchestrator.
func NewService(s store.Store, renderer Renderer, builder Builder, notifier notify.Notifier, domainSvc *domains.Service, config Config, logger *slog.Logger) *Service {
	if config.BaseSuffix == "" {
		config.BaseSuffix = DefaultConfig().BaseSuffix
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:    s,
		renderer: renderer,
		builder:  builder,
		notifier: notifier,
		domains:  domainSvc,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// =============================================================================
// Request / Result Types
// =============================================================================

// DeployRequest describes a deployment to run.
type DeployRequest struct {
	StoreID      string `json:"store_id"`
	Environment  string `json:"environment"`
	CustomDomain string `json:"custom_domain,omitempty"`
}

// DeployResult is the outcome of a deployment run. A failed build is still a
// result, not an error: the deployment record carries the failure.
type DeployResult struct {
	Deployment *domain.Deployment `json:"deployment"`
	Warning    string             `json:"warning,omitempty"`
}

// DeploymentPage is one page of a store's deployment history.
type DeploymentPage struct {
	Deployments []domain.Deployment `json:"deployments"`
	Total       int                 `json:"total"`
	Page        int                 `json:"page"`
	Limit       int                 `json:"limit"`
	Pages       int                 `json:"pages"`
}

// Analytics aggregates a store's deployment history over a time range.
type Analytics struct {
	StoreID         string     `json:"store_id"`
	Total           int        `json:"total"`
	Succeeded       int        `json:"succeeded"`
	Failed          int        `json:"failed"`
	InProgress      int        `json:"in_progress"`
	SuccessRate     float64    `json:"success_rate"`
	AverageDuration float64    `json:"average_duration_seconds"`
	LastDeployedAt  *time.Time `json:"last_deployed_at,omitempty"`

	// Recent holds the five most recent deployments, newest first.
	Recent []domain.Deployment `json:"recent"`
}

// DeployConfig is the effective deployment configuration for a store.
type DeployConfig struct {
	StoreID      string   `json:"store_id"`
	PublicURL    string   `json:"public_url"`
	CustomDomain string   `json:"custom_domain,omitempty"`
	Environments []string `json:"environments"`
	TimeoutSecs  int      `json:"timeout_seconds"`
}

// =============================================================================
// Deploy
// =============================================================================

// Deploy runs the full pipeline for a store. Pipeline failures after the
// deployment record exists are reported through the record's failed status;
// the returned error is reserved for requests that never got that far.
func (s *Service) Deploy(ctx context.Context, authCtx auth.Context, req DeployRequest) (*DeployResult, error) {
	snap, err := s.store.GetStoreSnapshot(ctx, req.StoreID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: store %s", domain.ErrNotFound, req.StoreID)
		}
		return nil, err
	}

	if !auth.CanManageStore(authCtx, *snap) {
		return nil, fmt.Errorf("%w: not allowed to deploy store %s", domain.ErrUnauthorized, req.StoreID)
	}

	env, err := domain.ParseEnvironment(req.Environment)
	if err != nil {
		return nil, err
	}

	dep := domain.NewDeployment(req.StoreID, env, s.now().UTC())

	if err := s.store.AcquireDeployLock(ctx, req.StoreID, dep.ID); err != nil {
		if errors.Is(err, store.ErrDeployInFlight) {
			return nil, fmt.Errorf("%w: a deployment is already running for store %s", domain.ErrConflict, req.StoreID)
		}
		return nil, err
	}
	defer func() {
		if err := s.store.ReleaseDeployLock(context.WithoutCancel(ctx), req.StoreID, dep.ID); err != nil {
			s.logger.Error("failed to release deploy lock", "store_id", req.StoreID, "error", err)
		}
	}()

	dep.AppendLog(fmt.Sprintf("Deployment %s created for store %s (%s)", dep.ID, snap.Name, env))
	if err := s.store.CreateDeployment(ctx, dep); err != nil {
		return nil, err
	}

	result := &DeployResult{Deployment: dep}

	buildCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	if err := s.runBuild(buildCtx, snap, dep); err != nil {
		s.failDeployment(ctx, snap, dep, err.Error())
		return result, nil
	}

	if err := s.store.UpdateStoreDeploymentState(ctx, snap.ID, true, dep.URL); err != nil {
		s.logger.Error("failed to update store serving state",
			"store_id", snap.ID, "deployment_id", dep.ID, "error", err)
	}

	s.logger.Info("deployment succeeded",
		"store_id", snap.ID,
		"deployment_id", dep.ID,
		"version", dep.Version,
		"url", dep.URL,
		"duration", dep.Duration())

	if err := s.notifier.DeploymentSucceeded(ctx, snap, dep); err != nil {
		s.logger.Warn("success notification failed", "deployment_id", dep.ID, "error", err)
	}

	if req.CustomDomain != "" {
		if _, err := s.domains.SetupCustomDomain(ctx, authCtx, snap.ID, req.CustomDomain); err != nil {
			// Domain setup is a post-deploy extra; the deployment stays green.
			result.Warning = fmt.Sprintf("deployed, but custom domain setup failed: %v", err)
			s.logger.Warn("custom domain setup failed",
				"store_id", snap.ID, "hostname", req.CustomDomain, "error", err)
		}
	}

	return result, nil
}

// runBuild renders and publishes the artifact tree, moving the deployment
// through building to success. Any error leaves the transition to failed to
// the caller.
func (s *Service) runBuild(ctx context.Context, snap *domain.StoreSnapshot, dep *domain.Deployment) error {
	if err := dep.Transition(domain.StatusBuilding, s.now().UTC()); err != nil {
		return err
	}
	dep.AppendLog(fmt.Sprintf("Rendering storefront for %s (%d products)", snap.Slug, len(snap.Products)))
	if err := s.store.UpdateDeployment(ctx, dep); err != nil {
		return err
	}

	baseURL := domain.ResolvePublicURL(*snap, s.config.BaseSuffix)

	files, err := s.renderer.Render(*snap, baseURL, s.now().UTC())
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("deployment timed out during render: %w", err)
	}
	dep.AppendLog(fmt.Sprintf("Rendered %d documents", len(files)))

	path, err := s.builder.WriteTree(snap.Slug, dep.Version, files)
	if err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("deployment timed out during publish: %w", err)
	}
	dep.AppendLog(fmt.Sprintf("Published build %s to %s", dep.Version, path))

	dep.URL = baseURL
	if err := dep.Transition(domain.StatusSuccess, s.now().UTC()); err != nil {
		return err
	}
	dep.AppendLog(fmt.Sprintf("Deployment succeeded: %s", baseURL))

	return s.store.UpdateDeployment(ctx, dep)
}

// failDeployment records a pipeline failure on the deployment and notifies
// the owner. It never returns an error: the failed record is the outcome.
func (s *Service) failDeployment(ctx context.Context, snap *domain.StoreSnapshot, dep *domain.Deployment, cause string) {
	if err := dep.TransitionToFailed(cause, s.now().UTC()); err != nil {
		s.logger.Error("invalid failure transition", "deployment_id", dep.ID, "error", err)
	}
	if err := s.store.UpdateDeployment(context.WithoutCancel(ctx), dep); err != nil {
		s.logger.Error("failed to persist failed deployment", "deployment_id", dep.ID, "error", err)
	}

	s.logger.Warn("deployment failed",
		"store_id", dep.StoreID,
		"deployment_id", dep.ID,
		"cause", cause)

	if err := s.notifier.DeploymentFailed(context.WithoutCancel(ctx), snap, dep, cause); err != nil {
		s.logger.Warn("failure notification failed", "deployment_id", dep.ID, "error", err)
	}
}

// =============================================================================
// Queries
// =============================================================================

// GetDeploymentStatus returns a deployment visible to the caller.
func (s *Service) GetDeploymentStatus(ctx context.Context, authCtx auth.Context, deploymentID string) (*domain.Deployment, error) {
	dep, _, err := s.getAuthorizedDeployment(ctx, authCtx, deploymentID)
	return dep, err
}

// GetDeploymentLogs returns the build log of a deployment.
func (s *Service) GetDeploymentLogs(ctx context.Context, authCtx auth.Context, deploymentID string) (string, error) {
	dep, _, err := s.getAuthorizedDeployment(ctx, authCtx, deploymentID)
	if err != nil {
		return "", err
	}
	return dep.BuildLog, nil
}

// GetStoreDeployments returns one page of a store's deployment history,
// newest first. page is 1-based.
func (s *Service) GetStoreDeployments(ctx context.Context, authCtx auth.Context, storeID string, page, limit int) (*DeploymentPage, error) {
	snap, err := s.getAuthorizedStore(ctx, authCtx, storeID)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	opts := store.ListOptions{Limit: limit, Offset: 0}.Normalize()
	opts.Offset = (page - 1) * opts.Limit

	deps, err := s.store.ListDeploymentsByStore(ctx, snap.ID, opts)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountDeploymentsByStore(ctx, snap.ID)
	if err != nil {
		return nil, err
	}

	pages := (total + opts.Limit - 1) / opts.Limit
	if pages == 0 {
		pages = 1
	}

	return &DeploymentPage{
		Deployments: deps,
		Total:       total,
		Page:        page,
		Limit:       opts.Limit,
		Pages:       pages,
	}, nil
}

// GetDeploymentAnalytics aggregates the store's deployment history over an
// optional time range.
func (s *Service) GetDeploymentAnalytics(ctx context.Context, authCtx auth.Context, storeID string, from, to *time.Time) (*Analytics, error) {
	snap, err := s.getAuthorizedStore(ctx, authCtx, storeID)
	if err != nil {
		return nil, err
	}

	deps, err := s.store.ListDeploymentsInRange(ctx, snap.ID, from, to)
	if err != nil {
		return nil, err
	}

	a := &Analytics{StoreID: snap.ID, Total: len(deps)}
	var durationSum time.Duration
	var completed int
	for i := range deps {
		d := &deps[i]
		switch d.Status {
		case domain.StatusSuccess:
			a.Succeeded++
		case domain.StatusFailed:
			a.Failed++
		default:
			a.InProgress++
		}
		if d.CompletedAt != nil {
			durationSum += d.Duration()
			completed++
		}
		if d.Status == domain.StatusSuccess && (a.LastDeployedAt == nil || d.CreatedAt.After(*a.LastDeployedAt)) {
			ts := d.CreatedAt
			a.LastDeployedAt = &ts
		}
	}
	if terminal := a.Succeeded + a.Failed; terminal > 0 {
		a.SuccessRate = float64(a.Succeeded) / float64(terminal)
	}
	if completed > 0 {
		a.AverageDuration = durationSum.Seconds() / float64(completed)
	}

	recent := deps
	if len(recent) > 5 {
		recent = recent[:5]
	}
	a.Recent = recent

	return a, nil
}

// GetDeploymentConfig returns the effective deployment settings for a store.
func (s *Service) GetDeploymentConfig(ctx context.Context, authCtx auth.Context, storeID string) (*DeployConfig, error) {
	snap, err := s.getAuthorizedStore(ctx, authCtx, storeID)
	if err != nil {
		return nil, err
	}

	return &DeployConfig{
		StoreID:      snap.ID,
		PublicURL:    domain.ResolvePublicURL(*snap, s.config.BaseSuffix),
		CustomDomain: snap.CustomDomain,
		Environments: []string{string(domain.EnvProduction), string(domain.EnvStaging)},
		TimeoutSecs:  int(s.config.Timeout.Seconds()),
	}, nil
}

// =============================================================================
// Rollback
// =============================================================================

// RollbackDeployment re-points a store at an earlier successful build. The
// target version must have a successful deployment record and its artifact
// tree must still exist in build storage; nothing is re-rendered.
func (s *Service) RollbackDeployment(ctx context.Context, authCtx auth.Context, storeID, version string) (*DeployResult, error) {
	snap, err := s.getAuthorizedStore(ctx, authCtx, storeID)
	if err != nil {
		return nil, err
	}

	target, err := s.store.FindSuccessfulDeployment(ctx, storeID, version)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: no successful deployment with version %s", domain.ErrNotFound, version)
		}
		return nil, err
	}

	if !s.builder.BuildExists(snap.Slug, version) {
		return nil, fmt.Errorf("%w: build artifacts for version %s are gone", domain.ErrNotFound, version)
	}

	dep := domain.NewDeployment(storeID, target.Environment, s.now().UTC())
	dep.Version = version

	if err := s.store.AcquireDeployLock(ctx, storeID, dep.ID); err != nil {
		if errors.Is(err, store.ErrDeployInFlight) {
			return nil, fmt.Errorf("%w: a deployment is already running for store %s", domain.ErrConflict, storeID)
		}
		return nil, err
	}
	defer func() {
		if err := s.store.ReleaseDeployLock(context.WithoutCancel(ctx), storeID, dep.ID); err != nil {
			s.logger.Error("failed to release deploy lock", "store_id", storeID, "error", err)
		}
	}()

	dep.AppendLog(fmt.Sprintf("Rolling back store %s to version %s (from deployment %s)", snap.Slug, version, target.ID))
	if err := s.store.CreateDeployment(ctx, dep); err != nil {
		return nil, err
	}

	// Artifacts already exist, the build phase is just bookkeeping
	if err := dep.Transition(domain.StatusBuilding, s.now().UTC()); err != nil {
		return nil, err
	}
	dep.URL = domain.ResolvePublicURL(*snap, s.config.BaseSuffix)
	if err := dep.Transition(domain.StatusSuccess, s.now().UTC()); err != nil {
		return nil, err
	}
	dep.AppendLog(fmt.Sprintf("Rollback complete: %s now serves %s", dep.URL, version))

	if err := s.store.UpdateDeployment(ctx, dep); err != nil {
		return nil, err
	}
	if err := s.store.UpdateStoreDeploymentState(ctx, storeID, true, dep.URL); err != nil {
		s.logger.Error("failed to update store serving state",
			"store_id", storeID, "deployment_id", dep.ID, "error", err)
	}

	s.logger.Info("rollback succeeded",
		"store_id", storeID,
		"deployment_id", dep.ID,
		"version", version)

	if err := s.notifier.DeploymentSucceeded(ctx, snap, dep); err != nil {
		s.logger.Warn("success notification failed", "deployment_id", dep.ID, "error", err)
	}

	return &DeployResult{Deployment: dep}, nil
}

// =============================================================================
// Delete
// =============================================================================

// DeleteDeployment permanently removes a deployment record. In-flight
// deployments cannot be deleted.
func (s *Service) DeleteDeployment(ctx context.Context, authCtx auth.Context, deploymentID string) error {
	dep, snap, err := s.getAuthorizedDeployment(ctx, authCtx, deploymentID)
	if err != nil {
		return err
	}
	if !auth.CanDeleteDeployment(authCtx, snap.OwnerID) {
		return fmt.Errorf("%w: not allowed to delete deployment %s", domain.ErrUnauthorized, deploymentID)
	}

	if !dep.Status.IsTerminal() {
		return fmt.Errorf("%w: deployment %s is still %s", domain.ErrConflict, deploymentID, dep.Status)
	}

	if err := s.store.DeleteDeployment(ctx, deploymentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: deployment %s", domain.ErrNotFound, deploymentID)
		}
		return err
	}

	s.logger.Info("deployment deleted", "deployment_id", deploymentID, "store_id", dep.StoreID)
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func (s *Service) getAuthorizedStore(ctx context.Context, authCtx auth.Context, storeID string) (*domain.StoreSnapshot, error) {
	snap, err := s.store.GetStoreSnapshot(ctx, storeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: store %s", domain.ErrNotFound, storeID)
		}
		return nil, err
	}
	if !auth.CanManageStore(authCtx, *snap) {
		return nil, fmt.Errorf("%w: not allowed to manage store %s", domain.ErrUnauthorized, storeID)
	}
	return snap, nil
}

func (s *Service) getAuthorizedDeployment(ctx context.Context, authCtx auth.Context, deploymentID string) (*domain.Deployment, *domain.StoreSnapshot, error) {
	dep, err := s.store.GetDeployment(ctx, deploymentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: deployment %s", domain.ErrNotFound, deploymentID)
		}
		return nil, nil, err
	}

	snap, err := s.store.GetStoreSnapshot(ctx, dep.StoreID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: store %s", domain.ErrNotFound, dep.StoreID)
		}
		return nil, nil, err
	}

	if !auth.CanViewDeployment(authCtx, snap.OwnerID) {
		return nil, nil, fmt.Errorf("%w: not allowed to view deployment %s", domain.ErrUnauthorized, deploymentID)
	}
	return dep, snap, nil
}
