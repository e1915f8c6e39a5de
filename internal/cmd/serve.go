package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/blueprint/internal/export"
	"github.com/felixgeelhaar/blueprint/internal/generate"
	"github.com/felixgeelhaar/blueprint/internal/health"
	"github.com/felixgeelhaar/blueprint/internal/log"
	"github.com/felixgeelhaar/blueprint/internal/metrics"
	"github.com/felixgeelhaar/blueprint/internal/provider"
	"github.com/felixgeelhaar/blueprint/internal/server"
	"github.com/felixgeelhaar/blueprint/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the blueprint HTTP service",
	Long: `Start an HTTP server that validates diagrams and exports blueprints for
editors and other tools.

Endpoints:
  POST /v1/diagram/validate - Validate a diagram.json document
  POST /v1/edges/auto       - Add the default connections
  POST /v1/export           - Export, answering with the zip archive
  GET  /v1/export/ws        - Streaming export over a websocket
  GET  /metrics             - Prometheus metrics
  /health/live, /health/ready, /health/startup, /healthz

The server implements graceful shutdown with connection draining when
it receives SIGTERM or SIGINT signals. Running streaming exports are
given the shutdown timeout to finish.

Example:
  # Start server on the configured address (default :8080)
  blueprint serve

  # Start server on a custom address
  blueprint serve --addr 127.0.0.1:9090

  # Mirror streaming progress onto NATS
  blueprint serve --nats nats://localhost:4222`,
	RunE: runServe,
}

var (
	serveAddr            string
	serveShutdownTimeout time.Duration
	serveReadTimeout     time.Duration
	serveWriteTimeout    time.Duration
	serveIdleTimeout     time.Duration
	serveNATS            string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (default from config, :8080)")
	serveCmd.Flags().DurationVar(&serveShutdownTimeout, "shutdown-timeout", 0, "Maximum time to wait for connections to drain during shutdown")
	serveCmd.Flags().DurationVar(&serveReadTimeout, "read-timeout", 0, "Maximum duration for reading the entire request")
	serveCmd.Flags().DurationVar(&serveWriteTimeout, "write-timeout", 0, "Maximum duration before timing out writes of the response")
	serveCmd.Flags().DurationVar(&serveIdleTimeout, "idle-timeout", 60*time.Second, "Maximum amount of time to wait for the next request")
	serveCmd.Flags().StringVar(&serveNATS, "nats", "", "Publish streaming progress events to this NATS server")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := currentConfig()
	info := version.GetInfo()

	// The server always logs JSON unless the config or flags chose a format.
	logCfg := log.ServerConfig(info.Version)
	logCfg.Level = log.ParseLevel(cfg.Log.Level)
	if logFormat != "" || cfg.Log.Format != "text" {
		logCfg.Format = log.ParseFormat(cfg.Log.Format)
	}
	logger := log.New(logCfg)
	log.SetDefaultLogger(logger)

	pm := health.NewProbeManager(info.Version)
	settings := cfg.Provider.Settings()
	pm.AddChecker(health.NewProviderChecker(provider.DefaultFactory, settings))

	registry, m := metrics.NewRegistry()
	exOpts := []export.Option{
		export.WithLogger(logger),
		export.WithMetrics(m),
		export.WithRateLimit(cfg.Provider.RequestsPerSecond),
	}
	if cfg.Cache.Enabled {
		cache, err := generate.NewCache(cfg.Cache.Size)
		if err != nil {
			return err
		}
		exOpts = append(exOpts, export.WithCache(cache))
	}

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithMetrics(m, registry),
		server.WithExporter(export.New(exOpts...)),
		server.WithProviderDefaults(settings),
	}

	if url := firstNonEmpty(serveNATS, cfg.Events.NATSURL); url != "" {
		nc, err := nats.Connect(url,
			nats.Name("blueprint-serve"),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			return NewErrorWithSuggestions(
				fmt.Sprintf("Failed to connect to NATS at %s", url),
				err,
				"Check that the NATS server is running",
				"Drop --nats to serve without progress events",
			)
		}
		defer nc.Drain() //nolint:errcheck
		pm.AddChecker(health.NewNATSChecker(nc))
		opts = append(opts, server.WithNATS(nc, cfg.Events.SubjectPrefix))
	}

	addr := firstNonEmpty(serveAddr, cfg.Server.Addr)
	shutdownTimeout := durationOr(serveShutdownTimeout, cfg.Server.ShutdownTimeout)
	srv := server.NewServer(pm, server.Config{
		Address:         addr,
		ShutdownTimeout: shutdownTimeout,
		ReadTimeout:     durationOr(serveReadTimeout, cfg.Server.ReadTimeout),
		WriteTimeout:    durationOr(serveWriteTimeout, cfg.Server.WriteTimeout),
		IdleTimeout:     serveIdleTimeout,
	}, opts...)

	out := cmd.OutOrStdout()
	fmt.Fprint(out, banner)
	fmt.Fprintf(out, "Version: %s\n", info.Version)
	fmt.Fprintf(out, "Listening on: http://%s\n\n", addr)
	fmt.Fprintf(out, "Press Ctrl+C to stop the server\n\n")

	// Start server in background
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	logger.Info("server started", "addr", addr, "provider", settings.Name)

	// main cancels ctx on SIGINT and SIGTERM.
	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		fmt.Fprintln(out, "\nInitiating graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout+5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}

		fmt.Fprintln(out, "Server stopped gracefully")
		return nil
	}
}

func durationOr(flag, fallback time.Duration) time.Duration {
	if flag > 0 {
		return flag
	}
	return fallback
}
