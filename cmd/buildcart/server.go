package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	"github.com/buildcart/buildcart/internal/core/domain"
	"github.com/buildcart/buildcart/internal/core/render"
	"github.com/buildcart/buildcart/internal/shell/api"
	"github.com/buildcart/buildcart/internal/shell/builds"
	"github.com/buildcart/buildcart/internal/shell/deploy"
	"github.com/buildcart/buildcart/internal/shell/domains"
	"github.com/buildcart/buildcart/internal/shell/notify"
	"github.com/buildcart/buildcart/internal/shell/store"
	"github.com/buildcart/buildcart/internal/shell/workers"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitSeedError       = 3
	ExitHTTPServerError = 4
)

// =============================================================================
// Server
// =============================================================================

// Server represents the BuildCart application server.
type Server struct {
	config      *Config
	httpServer  *http.Server
	store       store.Store
	provisioner *workers.SSLProvisioner
	logger      *slog.Logger
}

// NewServer creates a new server with the given config.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	// Connect to database
	s, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitDatabaseError,
		}
	}

	// Seed demo stores on first boot
	if cfg.Seed.Enabled {
		if err := store.Seed(context.Background(), s, logger); err != nil {
			s.Close()
			return nil, &ServerError{
				Op:       "NewServer",
				Err:      err,
				ExitCode: ExitSeedError,
			}
		}
	}

	// Build storage under the configured root
	writer := builds.NewOSWriter(cfg.Builds.Root, logger)

	// Owner notifications
	var notifier notify.Notifier
	if cfg.Notify.Enabled {
		notifier = notify.NewWebhookNotifier(notify.WebhookConfig{
			BaseURL: cfg.Notify.WebhookURL,
			APIKey:  cfg.Notify.APIKey,
			Timeout: cfg.Notify.Timeout,
		})
		logger.Info("notifications enabled", "webhook_url", cfg.Notify.WebhookURL)
	} else {
		notifier = notify.NewNoOpNotifier()
		logger.Info("notifications disabled")
	}

	// Domain manager and deployment orchestrator
	domainSvc := domains.NewService(s, logger)
	deployer := deploy.NewService(s, deploy.RendererFunc(render.Render), writer, notifier, domainSvc,
		deploy.Config{
			BaseSuffix: cfg.Domain.BaseSuffix,
			Timeout:    cfg.Deploy.Timeout,
		}, logger)

	// SSL provisioning worker
	var provisioner *workers.SSLProvisioner
	if cfg.SSL.Enabled {
		// TODO: swap the logging issuer for the ACME integration once the
		// edge terminates TLS per store.
		issuer := workers.CertIssuerFunc(func(ctx context.Context, binding domain.DomainBinding) error {
			logger.Info("certificate issuance requested", "hostname", binding.Hostname)
			return nil
		})
		provisioner = workers.NewSSLProvisioner(s, issuer, workers.SSLProvisionerConfig{
			Interval:      cfg.SSL.Interval,
			MaxConcurrent: cfg.SSL.MaxConcurrent,
		}, logger)
	}

	// Create HTTP handler
	handler := api.NewHandler(s, deployer, domainSvc, logger)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config:      cfg,
		httpServer:  httpServer,
		store:       s,
		provisioner: provisioner,
		logger:      logger,
	}, nil
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start SSL provisioning worker
	if s.provisioner != nil {
		s.provisioner.Start()
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server",
			"address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	// Shutdown HTTP server
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	// Stop SSL provisioning worker
	if s.provisioner != nil {
		s.provisioner.Stop()
	}

	// Close database
	if err := s.store.Close(); err != nil {
		s.logger.Error("database close error", "error", err)
	}

	s.logger.Info("shutdown complete")
	return nil
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
