// Package workers contains background workers for the deployment pipeline.
package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/buildcart/buildcart/internal/core/domain"
	"github.com/buildcart/buildcart/internal/shell/store"
)

// =============================================================================
// Certificate Issuer
// =============================================================================

// CertIssuer requests a certificate for a hostname from the certificate
// authority integration. Implementations are expected to be idempotent.
type CertIssuer interface {
	IssueCertificate(ctx context.Context, binding domain.DomainBinding) error
}

// CertIssuerFunc adapts a function to the CertIssuer interface.
type CertIssuerFunc func(ctx context.Context, binding domain.DomainBinding) error

func (f CertIssuerFunc) IssueCertificate(ctx context.Context, binding domain.DomainBinding) error {
	return f(ctx, binding)
}

// =============================================================================
// SSL Provisioner
// =============================================================================

// SSLProvisionerConfig configures the SSL provisioning worker.
type SSLProvisionerConfig struct {
	Interval      time.Duration
	MaxConcurrent int
	StartDelay    time.Duration
}

// DefaultSSLProvisionerConfig returns default configuration.
func DefaultSSLProvisionerConfig() SSLProvisionerConfig {
	return SSLProvisionerConfig{
		Interval:      60 * time.Second,
		MaxConcurrent: 5,
		StartDelay:    10 * time.Second,
	}
}

// SSLProvisioner polls for domain bindings with SSL requested but no
// certificate yet, asks the CA integration to issue one, and records the
// issue time.
type SSLProvisioner struct {
	store  store.Store
	issuer CertIssuer
	config SSLProvisionerConfig
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSSLProvisioner creates a new SSL provisioning worker.
func NewSSLProvisioner(s store.Store, issuer CertIssuer, config SSLProvisionerConfig, logger *slog.Logger) *SSLProvisioner {
	if config.Interval == 0 {
		config.Interval = 60 * time.Second
	}
	if config.MaxConcurrent == 0 {
		config.MaxConcurrent = 5
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SSLProvisioner{
		store:  s,
		issuer: issuer,
		config: config,
		logger: logger.With("component", "ssl_provisioner"),
	}
}

// Start begins the provisioner background goroutine.
func (p *SSLProvisioner) Start() {
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.wg.Add(1)
	go p.run()
	p.logger.Info("SSL provisioner started", "interval", p.config.Interval)
}

// Stop gracefully stops the provisioner.
func (p *SSLProvisioner) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info("SSL provisioner stopped")
}

func (p *SSLProvisioner) run() {
	defer p.wg.Done()

	if p.config.StartDelay > 0 {
		select {
		case <-p.ctx.Done():
			return
		case <-time.After(p.config.StartDelay):
		}
	}
	p.RunCycle()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.RunCycle()
		}
	}
}

// RunCycle processes all pending SSL requests once. Exported so the server
// and tests can force an immediate pass.
func (p *SSLProvisioner) RunCycle() {
	parent := p.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, 2*time.Minute)
	defer cancel()

	pending, err := p.store.ListPendingSSLBindings(ctx)
	if err != nil {
		p.logger.Error("failed to list pending SSL bindings", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	p.logger.Debug("provisioning certificates", "count", len(pending))

	sem := make(chan struct{}, p.config.MaxConcurrent)
	var wg sync.WaitGroup

	for i := range pending {
		binding := pending[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			p.provision(ctx, binding)
		}()
	}

	wg.Wait()
}

func (p *SSLProvisioner) provision(ctx context.Context, binding domain.DomainBinding) {
	if err := p.issuer.IssueCertificate(ctx, binding); err != nil {
		// Left pending, retried next cycle
		p.logger.Warn("certificate issuance failed",
			"hostname", binding.Hostname,
			"store_id", binding.StoreID,
			"error", err)
		return
	}

	if err := p.store.MarkSSLIssued(ctx, binding.Hostname, time.Now().UTC()); err != nil {
		p.logger.Error("failed to record issued certificate",
			"hostname", binding.Hostname,
			"error", err)
		return
	}

	p.logger.Info("certificate issued",
		"hostname", binding.Hostname,
		"store_id", binding.StoreID)
}
