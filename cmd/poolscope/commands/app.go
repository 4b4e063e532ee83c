// Package commands implements CLI command handlers for poolscope.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/Sumatoshi-tech/poolscope/pkg/config"
	"github.com/Sumatoshi-tech/poolscope/pkg/observability"
	"github.com/Sumatoshi-tech/poolscope/pkg/pipeline"
	"github.com/Sumatoshi-tech/poolscope/pkg/version"
)

// Global flag names.
const (
	flagConfig          = "config"
	flagVerbose         = "verbose"
	flagQuiet           = "quiet"
	flagLogJSON         = "log-json"
	flagNoColor         = "no-color"
	flagMetricsTextfile = "metrics-textfile"
)

// Standard OTel exporter environment variables.
const (
	envOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envOTLPHeaders  = "OTEL_EXPORTER_OTLP_HEADERS"
	envOTLPInsecure = "OTEL_EXPORTER_OTLP_INSECURE"
)

// app carries the state shared by every command: global flags, loaded
// configuration and the observability providers of the current run.
type app struct {
	configPath      string
	verbose         bool
	quiet           bool
	logJSON         bool
	noColor         bool
	metricsTextfile string

	cfg       *config.Config
	providers observability.Providers
	metrics   *observability.RunMetrics
	pipe      *pipeline.Pipeline
}

func (a *app) bindGlobalFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, flagConfig, "", "config file (default: poolscope.yaml in ., ./config or /etc/poolscope)")
	flags.BoolVarP(&a.verbose, flagVerbose, "v", false, "verbose logging")
	flags.BoolVarP(&a.quiet, flagQuiet, "q", false, "only log errors")
	flags.BoolVar(&a.logJSON, flagLogJSON, false, "log as JSON")
	flags.BoolVar(&a.noColor, flagNoColor, false, "disable colored output")
	flags.StringVar(&a.metricsTextfile, flagMetricsTextfile, "",
		"write run metrics in Prometheus textfile format to this path")

	cmd.MarkFlagsMutuallyExclusive(flagVerbose, flagQuiet)
}

// loadConfig reads configuration once per process.
func (a *app) loadConfig() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}

	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return nil, err
	}

	a.cfg = cfg

	return cfg, nil
}

// run loads configuration, initializes observability for mode, runs fn and
// flushes telemetry afterwards.
func (a *app) run(cmd *cobra.Command, mode observability.AppMode, fn func(ctx context.Context) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	obsCfg, sink, err := a.observabilityConfig(cfg, mode)
	if err != nil {
		return err
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	a.providers = providers

	a.metrics, err = observability.NewRunMetrics(providers.Meter)
	if err != nil {
		return errors.Join(err, providers.Shutdown(context.Background()))
	}

	a.pipe = pipeline.New(pipeline.Deps{
		Tracer:  providers.Tracer,
		Logger:  providers.Logger,
		Metrics: a.metrics,
	})

	runErr := fn(cmd.Context())

	var sinkErr error
	if sink != nil && runErr == nil {
		sinkErr = sink.WriteFile(a.textfilePath(cfg))
	}

	shutdownErr := providers.Shutdown(context.Background())
	if shutdownErr != nil {
		providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
	}

	return errors.Join(runErr, sinkErr)
}

func (a *app) textfilePath(cfg *config.Config) string {
	if a.metricsTextfile != "" {
		return a.metricsTextfile
	}

	return cfg.Metrics.Textfile
}

func (a *app) observabilityConfig(
	cfg *config.Config, mode observability.AppMode,
) (observability.Config, *observability.TextfileSink, error) {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.LogJSON = a.logJSON || cfg.Logging.JSON || mode == observability.ModeMCP

	level, err := observability.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return obsCfg, nil, err
	}

	switch {
	case a.quiet:
		level = slog.LevelError
	case a.verbose:
		level = slog.LevelDebug
	}

	obsCfg.LogLevel = level

	obsCfg.OTLPEndpoint = cfg.Metrics.OTLPEndpoint
	if obsCfg.OTLPEndpoint == "" {
		obsCfg.OTLPEndpoint = os.Getenv(envOTLPEndpoint)
	}

	obsCfg.OTLPInsecure = cfg.Metrics.OTLPInsecure || os.Getenv(envOTLPInsecure) == "true"
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv(envOTLPHeaders))

	if a.textfilePath(cfg) == "" {
		return obsCfg, nil, nil
	}

	sink, err := observability.NewTextfileSink()
	if err != nil {
		return obsCfg, nil, err
	}

	obsCfg.MetricReaders = []sdkmetric.Reader{sink.Reader()}

	return obsCfg, sink, nil
}

// colorDisabled reports whether output must stay free of ANSI colors.
func (a *app) colorDisabled() bool {
	return a.noColor || color.NoColor
}

// logFile picks the positional file argument or the configured default log.
func (a *app) logFile(args []string) string {
	if len(args) > 0 {
		return args[0]
	}

	return a.cfg.Input.DefaultLog
}
