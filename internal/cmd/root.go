package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/blueprint/internal/config"
	"github.com/felixgeelhaar/blueprint/internal/log"
	"github.com/felixgeelhaar/blueprint/internal/metrics"
	"github.com/felixgeelhaar/blueprint/internal/telemetry"
	"github.com/felixgeelhaar/blueprint/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "blueprint",
	Short: "Turn architecture diagrams into agent-ready build blueprints",
	Long: `blueprint reads a diagram.json document describing components and their
connections, and packages it into a zip archive of build documents: project
rules, an agent protocol, and one implementation spec per component.

Documents come from deterministic templates, or from an AI provider with
--ai. The same export runs from this CLI or through 'blueprint serve'.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

var (
	configPath    string
	envFiles      []string
	logLevel      string
	logFormat     string
	traceEndpoint string
)

// Loaded by setup before any command runs.
var (
	appConfig  *config.Config
	appLogger  = log.Nop()
	appMetrics *metrics.Metrics

	tracing *telemetry.Provider
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./"+config.DefaultPath+" when present)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files loaded before the config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")
	rootCmd.PersistentFlags().StringVar(&traceEndpoint, "trace-endpoint", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), "OTLP/HTTP endpoint for traces (disabled when empty)")
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, which is cancelled on SIGINT
// and SIGTERM by main. Spans are flushed whether or not the command failed.
func ExecuteContext(ctx context.Context) error {
	defer teardown()
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return err
	}

	path, optional := configPath, false
	if path == "" {
		path, optional = config.DefaultPath, true
	}
	cfg, err := config.Load(path, optional)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	appConfig = cfg

	appLogger = cfg.Log.Logger().With("command", cmd.Name())
	log.SetDefaultLogger(appLogger)
	appMetrics = metrics.Default()

	tcfg, err := telemetry.ParseEndpoint(traceEndpoint)
	if err != nil {
		appLogger.Warn("tracing disabled", "error", err)
		return nil
	}
	tcfg.ServiceVersion = version.GetInfo().Version
	tcfg.Command = cmd.Name()
	tp, err := telemetry.Setup(cmd.Context(), tcfg)
	if err != nil {
		appLogger.Warn("tracing disabled", "error", err)
		return nil
	}
	tracing = tp
	return nil
}

func teardown() {
	if tracing == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracing.ForceFlush(ctx); err != nil {
		appLogger.Debug("trace flush failed", "error", err)
	}
	if err := tracing.Shutdown(ctx); err != nil {
		appLogger.Debug("trace shutdown failed", "error", err)
	}
	tracing = nil
}

// currentConfig returns the loaded config, or the defaults when a command
// runs without setup (tests call run functions directly).
func currentConfig() *config.Config {
	if appConfig == nil {
		return config.Default()
	}
	return appConfig
}
