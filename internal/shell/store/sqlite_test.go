package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildcart/buildcart/internal/core/domain"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func testSnapshot(id, slug string) *domain.StoreSnapshot {
	return &domain.StoreSnapshot{
		ID:         id,
		OwnerID:    "user-1",
		OwnerEmail: "owner@example.com",
		Name:       "Acme Goods",
		Slug:       slug,
		Theme: domain.Theme{
			PrimaryColor: "#112233",
			Layout:       "grid",
		},
		Products: []domain.Product{
			{ID: "p1", Name: "Mug", PriceCents: 1250, Currency: "USD"},
			{ID: "p2", Name: "Shirt", PriceCents: 2500, Currency: "USD"},
		},
		CreatedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
}

func testDeployment(id, storeID string, createdAt time.Time) *domain.Deployment {
	return &domain.Deployment{
		ID:          id,
		StoreID:     storeID,
		Version:     domain.GenerateVersionLabel(createdAt),
		Status:      domain.StatusPending,
		Environment: domain.EnvProduction,
		CreatedAt:   createdAt,
	}
}

// =============================================================================
// Store Entity Tests
// =============================================================================

func TestSQLiteStore_CreateAndGetStore(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	snap := testSnapshot("store-1", "acme-goods")
	require.NoError(t, s.CreateStore(ctx, snap))

	got, err := s.GetStoreSnapshot(ctx, "store-1")
	require.NoError(t, err)
	assert.Equal(t, "store-1", got.ID)
	assert.Equal(t, "acme-goods", got.Slug)
	assert.Equal(t, "owner@example.com", got.OwnerEmail)
	assert.Equal(t, "#112233", got.Theme.PrimaryColor)
	require.Len(t, got.Products, 2)
	assert.Equal(t, "Mug", got.Products[0].Name)
	assert.Equal(t, int64(1250), got.Products[0].PriceCents)
}

func TestSQLiteStore_GetStoreNotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetStoreSnapshot(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_DuplicateSlug(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateStore(ctx, testSnapshot("store-1", "acme")))

	err := s.CreateStore(ctx, testSnapshot("store-2", "acme"))
	assert.ErrorIs(t, err, ErrDuplicateSlug)
}

func TestSQLiteStore_DuplicateID(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateStore(ctx, testSnapshot("store-1", "acme")))

	err := s.CreateStore(ctx, testSnapshot("store-1", "other-slug"))
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestSQLiteStore_UpdateStoreDeploymentState(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateStore(ctx, testSnapshot("store-1", "acme")))
	require.NoError(t, s.UpdateStoreDeploymentState(ctx, "store-1", true, "https://acme.stores.buildcart.ai"))

	state, err := s.GetStoreState(ctx, "store-1")
	require.NoError(t, err)
	assert.True(t, state.IsDeployed)
	assert.Equal(t, "https://acme.stores.buildcart.ai", state.DeploymentURL)

	err = s.UpdateStoreDeploymentState(ctx, "missing", true, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_SetStoreCustomDomain(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateStore(ctx, testSnapshot("store-1", "acme")))
	require.NoError(t, s.SetStoreCustomDomain(ctx, "store-1", "shop.acme.com"))

	snap, err := s.GetStoreSnapshot(ctx, "store-1")
	require.NoError(t, err)
	assert.Equal(t, "shop.acme.com", snap.CustomDomain)
}

func TestSQLiteStore_CountStores(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	count, err := s.CountStores(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, s.CreateStore(ctx, testSnapshot("store-1", "one")))
	require.NoError(t, s.CreateStore(ctx, testSnapshot("store-2", "two")))

	count, err = s.CountStores(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

// =============================================================================
// Deploy Lock Tests
// =============================================================================

func TestSQLiteStore_DeployLock(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateStore(ctx, testSnapshot("store-1", "acme")))

	require.NoError(t, s.AcquireDeployLock(ctx, "store-1", "dep_aaa"))

	// Second acquire while held must fail
	err := s.AcquireDeployLock(ctx, "store-1", "dep_bbb")
	assert.ErrorIs(t, err, ErrDeployInFlight)

	state, err := s.GetStoreState(ctx, "store-1")
	require.NoError(t, err)
	assert.Equal(t, "dep_aaa", state.ActiveDeploymentID)

	// Release by a different holder is a no-op
	require.NoError(t, s.ReleaseDeployLock(ctx, "store-1", "dep_bbb"))
	err = s.AcquireDeployLock(ctx, "store-1", "dep_bbb")
	assert.ErrorIs(t, err, ErrDeployInFlight)

	// Release by the holder frees the slot
	require.NoError(t, s.ReleaseDeployLock(ctx, "store-1", "dep_aaa"))
	require.NoError(t, s.AcquireDeployLock(ctx, "store-1", "dep_bbb"))
}

func TestSQLiteStore_DeployLockStoreNotFound(t *testing.T) {
	s := setupTestStore(t)

	err := s.AcquireDeployLock(context.Background(), "missing", "dep_aaa")
	assert.ErrorIs(t, err, ErrNotFound)
}

// =============================================================================
// Deployment Tests
// =============================================================================

func TestSQLiteStore_CreateAndGetDeployment(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateStore(ctx, testSnapshot("store-1", "acme")))

	dep := testDeployment("dep_1", "store-1", time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC))
	require.NoError(t, s.CreateDeployment(ctx, dep))

	got, err := s.GetDeployment(ctx, "dep_1")
	require.NoError(t, err)
	assert.Equal(t, "store-1", got.StoreID)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, domain.EnvProduction, got.Environment)
	assert.Nil(t, got.CompletedAt)
	assert.True(t, got.CreatedAt.Equal(dep.CreatedAt))
}

func TestSQLiteStore_CreateDeploymentMissingStore(t *testing.T) {
	s := setupTestStore(t)

	dep := testDeployment("dep_1", "missing", time.Now().UTC())
	err := s.CreateDeployment(context.Background(), dep)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_UpdateDeployment(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateStore(ctx, testSnapshot("store-1", "acme")))

	dep := testDeployment("dep_1", "store-1", time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC))
	require.NoError(t, s.CreateDeployment(ctx, dep))

	require.NoError(t, dep.Transition(domain.StatusBuilding, dep.CreatedAt.Add(time.Second)))
	dep.AppendLog("Building store artifacts")
	require.NoError(t, dep.Transition(domain.StatusSuccess, dep.CreatedAt.Add(5*time.Second)))
	dep.URL = "https://acme.stores.buildcart.ai"
	require.NoError(t, s.UpdateDeployment(ctx, dep))

	got, err := s.GetDeployment(ctx, "dep_1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, got.Status)
	assert.Equal(t, "https://acme.stores.buildcart.ai", got.URL)
	assert.Contains(t, got.BuildLog, "Building store artifacts")
	require.NotNil(t, got.CompletedAt)
}

func TestSQLiteStore_DeleteDeployment(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateStore(ctx, testSnapshot("store-1", "acme")))
	require.NoError(t, s.CreateDeployment(ctx, testDeployment("dep_1", "store-1", time.Now().UTC())))

	require.NoError(t, s.DeleteDeployment(ctx, "dep_1"))

	_, err := s.GetDeployment(ctx, "dep_1")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.DeleteDeployment(ctx, "dep_1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ListDeploymentsByStore(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateStore(ctx, testSnapshot("store-1", "acme")))
	require.NoError(t, s.CreateStore(ctx, testSnapshot("store-2", "other")))

	base := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		dep := testDeployment(fmt.Sprintf("dep_%d", i), "store-1", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.CreateDeployment(ctx, dep))
	}
	require.NoError(t, s.CreateDeployment(ctx, testDeployment("dep_other", "store-2", base)))

	// Newest first
	deps, err := s.ListDeploymentsByStore(ctx, "store-1", ListOptions{Limit: 3})
	require.NoError(t, err)
	require.Len(t, deps, 3)
	assert.Equal(t, "dep_4", deps[0].ID)
	assert.Equal(t, "dep_3", deps[1].ID)

	// Second page
	deps, err = s.ListDeploymentsByStore(ctx, "store-1", ListOptions{Limit: 3, Offset: 3})
	require.NoError(t, err)
	require.Len(t, deps, 2)
	assert.Equal(t, "dep_1", deps[0].ID)

	count, err := s.CountDeploymentsByStore(ctx, "store-1")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestSQLiteStore_FindSuccessfulDeployment(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateStore(ctx, testSnapshot("store-1", "acme")))

	created := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	dep := testDeployment("dep_1", "store-1", created)
	require.NoError(t, s.CreateDeployment(ctx, dep))

	// Not successful yet
	_, err := s.FindSuccessfulDeployment(ctx, "store-1", dep.Version)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, dep.Transition(domain.StatusBuilding, created.Add(time.Second)))
	require.NoError(t, dep.Transition(domain.StatusSuccess, created.Add(2*time.Second)))
	require.NoError(t, s.UpdateDeployment(ctx, dep))

	found, err := s.FindSuccessfulDeployment(ctx, "store-1", dep.Version)
	require.NoError(t, err)
	assert.Equal(t, "dep_1", found.ID)
}

func TestSQLiteStore_ListDeploymentsInRange(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateStore(ctx, testSnapshot("store-1", "acme")))

	base := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		dep := testDeployment(fmt.Sprintf("dep_%d", i), "store-1", base.AddDate(0, 0, i))
		require.NoError(t, s.CreateDeployment(ctx, dep))
	}

	from := base.AddDate(0, 0, 1)
	to := base.AddDate(0, 0, 2)

	deps, err := s.ListDeploymentsInRange(ctx, "store-1", &from, &to)
	require.NoError(t, err)
	require.Len(t, deps, 2)
	assert.Equal(t, "dep_2", deps[0].ID)
	assert.Equal(t, "dep_1", deps[1].ID)

	// Open-ended range
	deps, err = s.ListDeploymentsInRange(ctx, "store-1", &from, nil)
	require.NoError(t, err)
	assert.Len(t, deps, 3)

	deps, err = s.ListDeploymentsInRange(ctx, "store-1", nil, nil)
	require.NoError(t, err)
	assert.Len(t, deps, 4)
}

// =============================================================================
// Domain Binding Tests
// =============================================================================

func TestSQLiteStore_BindDomain(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateStore(ctx, testSnapshot("store-1", "acme")))

	b, err := s.BindDomain(ctx, "shop.acme.com", "store-1", now)
	require.NoError(t, err)
	assert.Equal(t, "shop.acme.com", b.Hostname)
	assert.Equal(t, "store-1", b.StoreID)
	assert.False(t, b.SSLEnabled)
}

func TestSQLiteStore_BindDomainIdempotentForSameStore(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateStore(ctx, testSnapshot("store-1", "acme")))

	_, err := s.BindDomain(ctx, "shop.acme.com", "store-1", now)
	require.NoError(t, err)

	b, err := s.BindDomain(ctx, "shop.acme.com", "store-1", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "store-1", b.StoreID)
}

func TestSQLiteStore_BindDomainTaken(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateStore(ctx, testSnapshot("store-1", "acme")))
	require.NoError(t, s.CreateStore(ctx, testSnapshot("store-2", "other")))

	_, err := s.BindDomain(ctx, "shop.acme.com", "store-1", now)
	require.NoError(t, err)

	_, err = s.BindDomain(ctx, "shop.acme.com", "store-2", now)
	assert.ErrorIs(t, err, ErrDomainTaken)

	// The original binding is untouched
	b, err := s.GetDomainBinding(ctx, "shop.acme.com")
	require.NoError(t, err)
	assert.Equal(t, "store-1", b.StoreID)
}

func TestSQLiteStore_BindDomainMissingStore(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.BindDomain(context.Background(), "shop.acme.com", "missing", time.Now().UTC())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_GetDomainBindingByStore(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateStore(ctx, testSnapshot("store-1", "acme")))

	_, err := s.GetDomainBindingByStore(ctx, "store-1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.BindDomain(ctx, "shop.acme.com", "store-1", now)
	require.NoError(t, err)

	b, err := s.GetDomainBindingByStore(ctx, "store-1")
	require.NoError(t, err)
	assert.Equal(t, "shop.acme.com", b.Hostname)
}

func TestSQLiteStore_SSLLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateStore(ctx, testSnapshot("store-1", "acme")))
	_, err := s.BindDomain(ctx, "shop.acme.com", "store-1", now)
	require.NoError(t, err)

	pending, err := s.ListPendingSSLBindings(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, s.EnableDomainSSL(ctx, "shop.acme.com", now))

	pending, err = s.ListPendingSSLBindings(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "shop.acme.com", pending[0].Hostname)
	require.NotNil(t, pending[0].SSLRequestedAt)

	// Enabling again keeps the original request time
	require.NoError(t, s.EnableDomainSSL(ctx, "shop.acme.com", now.Add(time.Hour)))
	b, err := s.GetDomainBinding(ctx, "shop.acme.com")
	require.NoError(t, err)
	assert.True(t, b.SSLRequestedAt.Equal(now))

	require.NoError(t, s.MarkSSLIssued(ctx, "shop.acme.com", now.Add(2*time.Hour)))

	pending, err = s.ListPendingSSLBindings(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Marking issued again is a no-op, the first issue time wins
	require.NoError(t, s.MarkSSLIssued(ctx, "shop.acme.com", now.Add(3*time.Hour)))
	b, err = s.GetDomainBinding(ctx, "shop.acme.com")
	require.NoError(t, err)
	require.NotNil(t, b.SSLIssuedAt)
	assert.True(t, b.SSLIssuedAt.Equal(now.Add(2*time.Hour)))
}

func TestSQLiteStore_EnableSSLUnboundDomain(t *testing.T) {
	s := setupTestStore(t)

	err := s.EnableDomainSSL(context.Background(), "nobody.example.com", time.Now().UTC())
	assert.ErrorIs(t, err, ErrNotFound)
}

// =============================================================================
// Transaction Tests
// =============================================================================

func TestSQLiteStore_WithTxCommit(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx Store) error {
		if err := tx.CreateStore(ctx, testSnapshot("store-1", "acme")); err != nil {
			return err
		}
		return tx.CreateDeployment(ctx, testDeployment("dep_1", "store-1", time.Now().UTC()))
	})
	require.NoError(t, err)

	_, err = s.GetDeployment(ctx, "dep_1")
	assert.NoError(t, err)
}

func TestSQLiteStore_WithTxRollback(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	wantErr := fmt.Errorf("boom")
	err := s.WithTx(ctx, func(tx Store) error {
		if err := tx.CreateStore(ctx, testSnapshot("store-1", "acme")); err != nil {
			return err
		}
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	_, err = s.GetStoreSnapshot(ctx, "store-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
