package store

import (
	"context"
	"time"

	"github.com/buildcart/buildcart/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface consumed by the deployment
// pipeline. The orchestrator and domain manager receive it by injection so
// tests can substitute an in-memory database.
type Store interface {
	// Store entity operations
	CreateStore(ctx context.Context, snap *domain.StoreSnapshot) error
	GetStoreSnapshot(ctx context.Context, storeID string) (*domain.StoreSnapshot, error)
	GetStoreState(ctx context.Context, storeID string) (*StoreState, error)
	UpdateStoreDeploymentState(ctx context.Context, storeID string, isDeployed bool, deploymentURL string) error
	SetStoreCustomDomain(ctx context.Context, storeID, hostname string) error
	CountStores(ctx context.Context) (int, error)

	// Per-store deploy lock (compare-and-swap on the active deployment
	// marker; closes the concurrent same-store deploy race)
	AcquireDeployLock(ctx context.Context, storeID, deploymentID string) error
	ReleaseDeployLock(ctx context.Context, storeID, deploymentID string) error

	// Deployment record operations
	CreateDeployment(ctx context.Context, dep *domain.Deployment) error
	GetDeployment(ctx context.Context, id string) (*domain.Deployment, error)
	UpdateDeployment(ctx context.Context, dep *domain.Deployment) error
	DeleteDeployment(ctx context.Context, id string) error
	ListDeploymentsByStore(ctx context.Context, storeID string, opts ListOptions) ([]domain.Deployment, error)
	CountDeploymentsByStore(ctx context.Context, storeID string) (int, error)
	FindSuccessfulDeployment(ctx context.Context, storeID, version string) (*domain.Deployment, error)
	ListDeploymentsInRange(ctx context.Context, storeID string, from, to *time.Time) ([]domain.Deployment, error)

	// Domain binding operations
	BindDomain(ctx context.Context, hostname, storeID string, now time.Time) (*domain.DomainBinding, error)
	GetDomainBinding(ctx context.Context, hostname string) (*domain.DomainBinding, error)
	GetDomainBindingByStore(ctx context.Context, storeID string) (*domain.DomainBinding, error)
	EnableDomainSSL(ctx context.Context, hostname string, now time.Time) error
	ListPendingSSLBindings(ctx context.Context) ([]domain.DomainBinding, error)
	MarkSSLIssued(ctx context.Context, hostname string, now time.Time) error

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}

// =============================================================================
// Store State
// =============================================================================

// StoreState is the denormalized deployment view kept on the store row for
// fast reads by the storefront router.
type StoreState struct {
	StoreID            string
	IsDeployed         bool
	DeploymentURL      string
	CustomDomain       string
	ActiveDeploymentID string
}

// =============================================================================
// Options
// =============================================================================

// MaxPageLimit caps the page size for deployment listings.
const MaxPageLimit = 100

// ListOptions defines pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  20,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Limit > MaxPageLimit {
		o.Limit = MaxPageLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
