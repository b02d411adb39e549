package cli

import (
	"context"
	"fmt"
	"time"

	"applyforge/internal/ai"
	"applyforge/internal/observability"
	"applyforge/internal/server"
	"applyforge/internal/service"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for application generation",
	Long: `Start an HTTP server that provides REST API endpoints for generation
and résumé extraction.

Available endpoints:
- POST /generate: Generate an application email and memo
- POST /parse-resume: Extract and save a résumé (multipart "file" or raw body)
- GET /resume: The saved résumé
- GET /health: Model availability and circuit breaker state
- GET /stats: Server statistics and rate limiting info

TLS Configuration:
- Use --tls-mode to set TLS mode: disabled, server
- Use --cert-file and --key-file for TLS certificates`,
	RunE: runServe,
}

var serveFlags struct {
	port     string
	host     string
	tlsMode  string
	certFile string
	keyFile  string
}

func init() {
	serveCmd.Flags().StringVarP(&serveFlags.port, "port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().StringVar(&serveFlags.host, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().StringVar(&serveFlags.tlsMode, "tls-mode", "", "TLS mode: disabled, server (overrides config)")
	serveCmd.Flags().StringVar(&serveFlags.certFile, "cert-file", "", "Server certificate file (PEM, overrides config)")
	serveCmd.Flags().StringVar(&serveFlags.keyFile, "key-file", "", "Server private key file (PEM, overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	// Flags override the loaded configuration
	overrides := []struct {
		value  string
		target *string
	}{
		{serveFlags.port, &cfg.Server.Port},
		{serveFlags.host, &cfg.Server.Host},
		{serveFlags.tlsMode, &cfg.Server.TLS.Mode},
		{serveFlags.certFile, &cfg.Server.TLS.CertFile},
		{serveFlags.keyFile, &cfg.Server.TLS.KeyFile},
	}
	for _, o := range overrides {
		if o.value != "" {
			*o.target = o.value
		}
	}

	if err := cfg.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	om, err := observability.NewObservabilityManager(cfg.Observability, Version, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := om.Shutdown(shutdownCtx); err != nil {
			logger.LogError(err, "Failed to shutdown observability")
		}
	}()

	instrument := func(client ai.Client) ai.Client {
		return observability.InstrumentClient(client, om.Metrics())
	}
	svc, err := newService(cmd.Context(), cfg, logger, instrument, service.WithMetrics(om.Metrics()))
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	return server.NewServer(server.NewServerConfig(cfg, Version), svc, om, logger).Start(cmd.Context())
}
