// Package config provides configuration loading and validation for poolscope.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/poolscope/pkg/alg/histogram"
	"github.com/Sumatoshi-tech/poolscope/pkg/replay"
	"github.com/Sumatoshi-tech/poolscope/pkg/report"
	"github.com/Sumatoshi-tech/poolscope/pkg/safeconv"
	"github.com/Sumatoshi-tech/poolscope/pkg/summary"
)

// Sentinel validation errors.
var (
	ErrInvalidBounds     = errors.New("invalid histogram bounds")
	ErrInvalidIterations = errors.New("replay iterations must be positive")
	ErrInvalidFormat     = errors.New("invalid summary format")
	ErrInvalidTarget     = errors.New("invalid replay target")
	ErrInvalidLogLevel   = errors.New("invalid log level")
)

// EnvPrefix prefixes every environment override, e.g. POOLSCOPE_REPLAY_TARGET.
const EnvPrefix = "POOLSCOPE"

var logLevels = []string{"debug", "info", "warn", "error"}

// Config holds all configuration for poolscope.
type Config struct {
	Input     InputConfig     `mapstructure:"input"`
	Histogram HistogramConfig `mapstructure:"histogram"`
	Summary   SummaryConfig   `mapstructure:"summary"`
	Replay    ReplayConfig    `mapstructure:"replay"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// InputConfig selects the log read when no file argument is given.
type InputConfig struct {
	DefaultLog string `mapstructure:"default_log"`
}

// HistogramConfig holds histogram bucket bounds. Values accept plain
// integers or byte sizes such as "4KiB".
type HistogramConfig struct {
	SizeBounds  []string `mapstructure:"size_bounds"`
	DepthBounds []string `mapstructure:"depth_bounds"`
	CountBounds []string `mapstructure:"count_bounds"`
}

// SummaryConfig holds summary defaults.
type SummaryConfig struct {
	Format   string `mapstructure:"format"`
	Tolerant bool   `mapstructure:"tolerant"`
}

// ReplayConfig holds replay defaults.
type ReplayConfig struct {
	Target     string `mapstructure:"target"`
	Iterations int    `mapstructure:"iterations"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// MetricsConfig holds metric export configuration.
type MetricsConfig struct {
	Textfile     string `mapstructure:"textfile"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("poolscope")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/poolscope")
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("input.default_log", DefaultLogFile)

	viperCfg.SetDefault("histogram.size_bounds", formatBounds(summary.DefaultSizeBounds))
	viperCfg.SetDefault("histogram.depth_bounds", formatBounds(summary.DefaultDepthBounds))
	viperCfg.SetDefault("histogram.count_bounds", formatBounds(summary.DefaultCountBounds))

	viperCfg.SetDefault("summary.format", DefaultFormat)
	viperCfg.SetDefault("summary.tolerant", DefaultTolerant)

	viperCfg.SetDefault("replay.target", DefaultTarget)
	viperCfg.SetDefault("replay.iterations", DefaultIterations)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.json", DefaultLogJSON)

	viperCfg.SetDefault("metrics.textfile", DefaultMetricsTextfile)
	viperCfg.SetDefault("metrics.otlp_endpoint", DefaultOTLPEndpoint)
	viperCfg.SetDefault("metrics.otlp_insecure", DefaultOTLPInsecure)
}

func formatBounds(bounds []int64) []string {
	out := make([]string, len(bounds))
	for i, b := range bounds {
		out[i] = strconv.FormatInt(b, 10)
	}

	return out
}

func validateConfig(config *Config) error {
	if _, err := config.SummaryOptions(); err != nil {
		return err
	}

	if !report.ValidFormat(config.Summary.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, config.Summary.Format)
	}

	if _, err := replay.Lookup(config.Replay.Target); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}

	if config.Replay.Iterations <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidIterations, config.Replay.Iterations)
	}

	if !isLogLevel(config.Logging.Level) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, config.Logging.Level)
	}

	return nil
}

func isLogLevel(level string) bool {
	for _, l := range logLevels {
		if strings.EqualFold(l, level) {
			return true
		}
	}

	return false
}

// SummaryOptions converts the histogram and summary sections into summary
// options.
func (c *Config) SummaryOptions() (summary.Options, error) {
	size, err := parseBounds("size", c.Histogram.SizeBounds)
	if err != nil {
		return summary.Options{}, err
	}

	depth, err := parseBounds("depth", c.Histogram.DepthBounds)
	if err != nil {
		return summary.Options{}, err
	}

	count, err := parseBounds("count", c.Histogram.CountBounds)
	if err != nil {
		return summary.Options{}, err
	}

	return summary.Options{
		SizeBounds:  size,
		DepthBounds: depth,
		CountBounds: count,
		Tolerant:    c.Summary.Tolerant,
	}, nil
}

func parseBounds(name string, raw []string) ([]int64, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s bounds are empty", ErrInvalidBounds, name)
	}

	bounds := make([]int64, len(raw))

	for i, s := range raw {
		v, err := humanize.ParseBytes(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("%w: %s bound %q: %w", ErrInvalidBounds, name, s, err)
		}

		bounds[i], err = safeconv.Uint64ToInt64(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s bound %q: %w", ErrInvalidBounds, name, s, err)
		}
	}

	if err := histogram.Validate(bounds); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidBounds, name, err)
	}

	return bounds, nil
}
