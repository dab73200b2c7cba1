// Package domains manages custom domain bindings and SSL provisioning for
// deployed stores.
package domains

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/buildcart/buildcart/internal/core/auth"
	"github.com/buildcart/buildcart/internal/core/domain"
	"github.com/buildcart/buildcart/internal/core/hostname"
	"github.com/buildcart/buildcart/internal/shell/store"
)

// =============================================================================
// Service
// =============================================================================

// Service manages custom domain setup and SSL state for stores.
type Service struct {
	store  store.Store
	logger *slog.Logger
}

// NewService creates a new domain manager.
func NewService(s store.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  s,
		logger: logger,
	}
}

// SetupResult describes a completed domain setup.
type SetupResult struct {
	StoreID    string `json:"store_id"`
	Hostname   string `json:"hostname"`
	URL        string `json:"url"`
	SSLEnabled bool   `json:"ssl_enabled"`
}

// =============================================================================
// Operations
// =============================================================================

// SetupCustomDomain binds a custom hostname to a store and records it as the
// store's public address. The binding claim is atomic in the storage layer,
// so two stores can never hold the same hostname.
func (s *Service) SetupCustomDomain(ctx context.Context, authCtx auth.Context, storeID, rawHostname string) (*SetupResult, error) {
	host := hostname.Normalize(rawHostname)
	if err := hostname.Validate(host); err != nil {
		return nil, err
	}

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

	binding, err := s.store.BindDomain(ctx, host, storeID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrDomainTaken) {
			return nil, fmt.Errorf("%w: hostname %s is already in use", domain.ErrConflict, host)
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: store %s", domain.ErrNotFound, storeID)
		}
		return nil, err
	}

	if err := s.store.SetStoreCustomDomain(ctx, storeID, host); err != nil {
		return nil, err
	}

	s.logger.Info("custom domain bound",
		"store_id", storeID,
		"hostname", host)

	return &SetupResult{
		StoreID:    storeID,
		Hostname:   host,
		URL:        "https://" + host,
		SSLEnabled: binding.SSLEnabled,
	}, nil
}

// EnableSSL requests certificate provisioning for the store's bound custom
// domain. Calling it again while a certificate is pending or issued is a
// no-op.
func (s *Service) EnableSSL(ctx context.Context, authCtx auth.Context, storeID string) (*domain.DomainBinding, error) {
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

	binding, err := s.store.GetDomainBindingByStore(ctx, storeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: store %s has no custom domain", domain.ErrNotFound, storeID)
		}
		return nil, err
	}

	if err := s.store.EnableDomainSSL(ctx, binding.Hostname, time.Now().UTC()); err != nil {
		return nil, err
	}

	s.logger.Info("ssl provisioning requested",
		"store_id", storeID,
		"hostname", binding.Hostname)

	return s.store.GetDomainBinding(ctx, binding.Hostname)
}

// GetBinding returns the domain binding for a store, if any.
func (s *Service) GetBinding(ctx context.Context, authCtx auth.Context, storeID string) (*domain.DomainBinding, error) {
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

	binding, err := s.store.GetDomainBindingByStore(ctx, storeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: store %s has no custom domain", domain.ErrNotFound, storeID)
		}
		return nil, err
	}
	return binding, nil
}
