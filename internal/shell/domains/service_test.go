package domains

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildcart/buildcart/internal/core/auth"
	"github.com/buildcart/buildcart/internal/core/domain"
	"github.com/buildcart/buildcart/internal/shell/store"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupService(t *testing.T) (*Service, store.Store) {
	t.Helper()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(s, logger), s
}

func seedStore(t *testing.T, s store.Store, id, slug, ownerID string) {
	t.Helper()
	require.NoError(t, s.CreateStore(context.Background(), &domain.StoreSnapshot{
		ID:        id,
		OwnerID:   ownerID,
		Name:      "Test Store",
		Slug:      slug,
		CreatedAt: time.Now().UTC(),
	}))
}

func ownerCtx(userID string) auth.Context {
	return auth.Context{UserID: userID, Role: auth.RoleUser, Authenticated: true}
}

// =============================================================================
// SetupCustomDomain
// =============================================================================

func TestSetupCustomDomain(t *testing.T) {
	svc, s := setupService(t)
	ctx := context.Background()
	seedStore(t, s, "store-1", "acme", "user-1")

	result, err := svc.SetupCustomDomain(ctx, ownerCtx("user-1"), "store-1", "Shop.Acme.COM")
	require.NoError(t, err)
	assert.Equal(t, "shop.acme.com", result.Hostname)
	assert.Equal(t, "https://shop.acme.com", result.URL)
	assert.False(t, result.SSLEnabled)

	// The hostname is recorded on the store row
	snap, err := s.GetStoreSnapshot(ctx, "store-1")
	require.NoError(t, err)
	assert.Equal(t, "shop.acme.com", snap.CustomDomain)
}

func TestSetupCustomDomain_InvalidHostname(t *testing.T) {
	svc, s := setupService(t)
	seedStore(t, s, "store-1", "acme", "user-1")

	_, err := svc.SetupCustomDomain(context.Background(), ownerCtx("user-1"), "store-1", "not a hostname")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSetupCustomDomain_StoreNotFound(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.SetupCustomDomain(context.Background(), ownerCtx("user-1"), "missing", "shop.acme.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetupCustomDomain_NotOwner(t *testing.T) {
	svc, s := setupService(t)
	seedStore(t, s, "store-1", "acme", "user-1")

	_, err := svc.SetupCustomDomain(context.Background(), ownerCtx("intruder"), "store-1", "shop.acme.com")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSetupCustomDomain_AdminAllowed(t *testing.T) {
	svc, s := setupService(t)
	seedStore(t, s, "store-1", "acme", "user-1")

	admin := auth.Context{UserID: "ops-1", Role: auth.RoleAdmin, Authenticated: true}
	_, err := svc.SetupCustomDomain(context.Background(), admin, "store-1", "shop.acme.com")
	assert.NoError(t, err)
}

func TestSetupCustomDomain_HostnameTaken(t *testing.T) {
	svc, s := setupService(t)
	ctx := context.Background()
	seedStore(t, s, "store-1", "acme", "user-1")
	seedStore(t, s, "store-2", "other", "user-2")

	_, err := svc.SetupCustomDomain(ctx, ownerCtx("user-1"), "store-1", "shop.acme.com")
	require.NoError(t, err)

	_, err = svc.SetupCustomDomain(ctx, ownerCtx("user-2"), "store-2", "shop.acme.com")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestSetupCustomDomain_RebindSameStore(t *testing.T) {
	svc, s := setupService(t)
	ctx := context.Background()
	seedStore(t, s, "store-1", "acme", "user-1")

	_, err := svc.SetupCustomDomain(ctx, ownerCtx("user-1"), "store-1", "shop.acme.com")
	require.NoError(t, err)

	result, err := svc.SetupCustomDomain(ctx, ownerCtx("user-1"), "store-1", "shop.acme.com")
	require.NoError(t, err)
	assert.Equal(t, "shop.acme.com", result.Hostname)
}

// =============================================================================
// EnableSSL
// =============================================================================

func TestEnableSSL(t *testing.T) {
	svc, s := setupService(t)
	ctx := context.Background()
	seedStore(t, s, "store-1", "acme", "user-1")

	_, err := svc.SetupCustomDomain(ctx, ownerCtx("user-1"), "store-1", "shop.acme.com")
	require.NoError(t, err)

	binding, err := svc.EnableSSL(ctx, ownerCtx("user-1"), "store-1")
	require.NoError(t, err)
	assert.True(t, binding.SSLEnabled)
	require.NotNil(t, binding.SSLRequestedAt)
	assert.Nil(t, binding.SSLIssuedAt)
}

func TestEnableSSL_Idempotent(t *testing.T) {
	svc, s := setupService(t)
	ctx := context.Background()
	seedStore(t, s, "store-1", "acme", "user-1")

	_, err := svc.SetupCustomDomain(ctx, ownerCtx("user-1"), "store-1", "shop.acme.com")
	require.NoError(t, err)

	first, err := svc.EnableSSL(ctx, ownerCtx("user-1"), "store-1")
	require.NoError(t, err)

	second, err := svc.EnableSSL(ctx, ownerCtx("user-1"), "store-1")
	require.NoError(t, err)
	assert.True(t, second.SSLRequestedAt.Equal(*first.SSLRequestedAt))
}

func TestEnableSSL_NoDomainBound(t *testing.T) {
	svc, s := setupService(t)
	seedStore(t, s, "store-1", "acme", "user-1")

	_, err := svc.EnableSSL(context.Background(), ownerCtx("user-1"), "store-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEnableSSL_NotOwner(t *testing.T) {
	svc, s := setupService(t)
	ctx := context.Background()
	seedStore(t, s, "store-1", "acme", "user-1")

	_, err := svc.SetupCustomDomain(ctx, ownerCtx("user-1"), "store-1", "shop.acme.com")
	require.NoError(t, err)

	_, err = svc.EnableSSL(ctx, ownerCtx("intruder"), "store-1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

// =============================================================================
// GetBinding
// =============================================================================

func TestGetBinding(t *testing.T) {
	svc, s := setupService(t)
	ctx := context.Background()
	seedStore(t, s, "store-1", "acme", "user-1")

	_, err := svc.GetBinding(ctx, ownerCtx("user-1"), "store-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.SetupCustomDomain(ctx, ownerCtx("user-1"), "store-1", "shop.acme.com")
	require.NoError(t, err)

	binding, err := svc.GetBinding(ctx, ownerCtx("user-1"), "store-1")
	require.NoError(t, err)
	assert.Equal(t, "shop.acme.com", binding.Hostname)
}
