package server

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"applyforge/internal/config"
)

const shutdownTimeout = 30 * time.Second

// Start serves until ctx is canceled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	httpServer := s.newHTTPServer()

	if err := s.configureTLS(httpServer); err != nil {
		return err
	}

	if err := s.startVaultWatcher(); err != nil {
		return err
	}

	if err := s.startDirectiveWatcher(); err != nil {
		s.cleanup()
		return err
	}

	s.displayServerInfo()

	return s.serveUntilDone(ctx, httpServer)
}

// newHTTPServer creates and configures the HTTP server
func (s *Server) newHTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%s", s.Host, s.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.ReadTimeout,
		WriteTimeout:      s.WriteTimeout,
		IdleTimeout:       s.IdleTimeout,
	}
}

// configureTLS sets up TLS when the server mode is selected
func (s *Server) configureTLS(httpServer *http.Server) error {
	switch s.TLSConfig.Mode {
	case "", "disabled":
		return nil
	case "server":
		minVersion := uint16(tls.VersionTLS12)
		if s.TLSConfig.MinVersion == "1.3" {
			minVersion = tls.VersionTLS13
		}
		httpServer.TLSConfig = &tls.Config{MinVersion: minVersion}
		return nil
	default:
		return fmt.Errorf("invalid TLS mode: %s (must be 'disabled' or 'server')", s.TLSConfig.Mode)
	}
}

// startVaultWatcher begins API key rotation when Vault polling is configured
func (s *Server) startVaultWatcher() error {
	if !s.Vault.Enabled || s.Vault.PollInterval <= 0 || s.Vault.Secrets.APIKeys == "" {
		return nil
	}

	client, err := config.NewVaultClient(s.Vault, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create vault client: %w", err)
	}

	s.vaultWatcher = NewVaultWatcher(client, s.Vault.Secrets.APIKeys, s.Vault.PollInterval, s.SetAPIKeys, s.logger)
	return s.vaultWatcher.Start()
}

// startDirectiveWatcher reloads directive files into the running service
func (s *Server) startDirectiveWatcher() error {
	files := s.Directives.Files()
	if !s.Directives.Watch || len(files) == 0 {
		return nil
	}

	s.directiveWatcher = NewDirectiveWatcher(files, s.Directives.DebounceDelay, s.service.SetDirective, s.logger)
	return s.directiveWatcher.Start()
}

// serveUntilDone runs the HTTP server and handles graceful shutdown
func (s *Server) serveUntilDone(ctx context.Context, server *http.Server) error {
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("Starting HTTP server",
			"address", server.Addr,
			"tls_enabled", server.TLSConfig != nil)

		var err error
		if server.TLSConfig != nil {
			err = server.ListenAndServeTLS(s.TLSConfig.CertFile, s.TLSConfig.KeyFile)
		} else {
			err = server.ListenAndServe()
		}

		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		s.cleanup()
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
		s.logger.Info("Received shutdown signal, starting graceful shutdown")
		return s.performGracefulShutdown(server)
	}
}

// performGracefulShutdown handles the graceful shutdown process
func (s *Server) performGracefulShutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.cleanup()

	s.logger.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return server.Close()
	}

	s.logger.Info("Server shutdown completed successfully")
	return nil
}

// cleanup stops background goroutines owned by the server
func (s *Server) cleanup() {
	if s.vaultWatcher != nil {
		s.vaultWatcher.Stop()
	}
	if s.directiveWatcher != nil {
		s.directiveWatcher.Stop()
	}
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.logger.Info("Rate limiter cleaned up")
	}
}
