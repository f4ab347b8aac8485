// Package config loads resort-geocoder settings from config.yaml, RESORT_*
// environment variables and defaults, and initializes the global logger.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrInvalid marks a configuration that cannot be used for a run.
var ErrInvalid = errors.New("invalid configuration")

// Config is the top-level configuration.
type Config struct {
	Geocode    GeocodeConfig    `yaml:"geocode" mapstructure:"geocode"`
	Paths      PathsConfig      `yaml:"paths" mapstructure:"paths"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// GeocodeConfig selects and tunes the geocoding backend.
type GeocodeConfig struct {
	Provider     string        `yaml:"provider" mapstructure:"provider"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	BaseURL      string        `yaml:"base_url" mapstructure:"base_url"`
	GoogleAPIKey string        `yaml:"google_api_key" mapstructure:"google_api_key"`
	MapboxToken  string        `yaml:"mapbox_token" mapstructure:"mapbox_token"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Delay        time.Duration `yaml:"delay" mapstructure:"delay"`
	RetryBackoff time.Duration `yaml:"retry_backoff" mapstructure:"retry_backoff"`
	// QPS is the hard request ceiling inside the HTTP client. Negative
	// selects the provider default; 0 disables the ceiling.
	QPS       float64 `yaml:"qps" mapstructure:"qps"`
	BatchSize int     `yaml:"batch_size" mapstructure:"batch_size"`
}

// EffectiveQPS resolves the provider default for a negative QPS.
func (g GeocodeConfig) EffectiveQPS() float64 {
	if g.QPS >= 0 {
		return g.QPS
	}
	if g.Provider == "nominatim" {
		return 1
	}
	return 0
}

// PathsConfig holds the files a run reads and writes.
type PathsConfig struct {
	Input     string `yaml:"input" mapstructure:"input"`
	Output    string `yaml:"output" mapstructure:"output"`
	Overrides string `yaml:"overrides" mapstructure:"overrides"`
	Cache     string `yaml:"cache" mapstructure:"cache"`
	Failed    string `yaml:"failed" mapstructure:"failed"`
	GeoJSON   string `yaml:"geojson" mapstructure:"geojson"`
}

// StoreConfig configures run history persistence.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// MetricsConfig configures the Prometheus textfile written after a run.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// MonitoringConfig holds alert thresholds evaluated after each run.
type MonitoringConfig struct {
	WebhookURL             string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold   float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	TransientRateThreshold float64 `yaml:"transient_rate_threshold" mapstructure:"transient_rate_threshold"`
	MinRecords             int     `yaml:"min_records" mapstructure:"min_records"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	File   string `yaml:"file" mapstructure:"file"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RESORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("geocode.provider", "nominatim")
	v.SetDefault("geocode.user_agent", "interval-resort-viewer")
	v.SetDefault("geocode.base_url", "")
	v.SetDefault("geocode.google_api_key", "")
	v.SetDefault("geocode.mapbox_token", "")
	v.SetDefault("geocode.timeout", 10*time.Second)
	v.SetDefault("geocode.delay", time.Second)
	v.SetDefault("geocode.retry_backoff", 2*time.Second)
	v.SetDefault("geocode.qps", -1)
	v.SetDefault("geocode.batch_size", 100)
	v.SetDefault("paths.input", "output/resorts.json")
	v.SetDefault("paths.output", "output/resorts_geocoded.json")
	v.SetDefault("paths.overrides", "data/geocode_overrides.json")
	v.SetDefault("paths.cache", "output/geocode_cache.json")
	v.SetDefault("paths.failed", "")
	v.SetDefault("paths.geojson", "")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "output/geocode_runs.db")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.transient_rate_threshold", 0.5)
	v.SetDefault("monitoring.min_records", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate reports the first setting that makes a run impossible.
func (c *Config) Validate() error {
	g := c.Geocode
	switch g.Provider {
	case "nominatim":
	case "google":
		if g.GoogleAPIKey == "" {
			return eris.Wrap(ErrInvalid, "config: geocode.google_api_key is required for google")
		}
	case "mapbox":
		if g.MapboxToken == "" {
			return eris.Wrap(ErrInvalid, "config: geocode.mapbox_token is required for mapbox")
		}
	default:
		return eris.Wrapf(ErrInvalid, "config: unknown geocode.provider %q", g.Provider)
	}

	if g.Timeout <= 0 {
		return eris.Wrap(ErrInvalid, "config: geocode.timeout must be positive")
	}
	if g.Delay < 0 || g.RetryBackoff < 0 {
		return eris.Wrap(ErrInvalid, "config: geocode.delay and geocode.retry_backoff must not be negative")
	}
	if g.BatchSize <= 0 {
		return eris.Wrap(ErrInvalid, "config: geocode.batch_size must be positive")
	}

	if c.Paths.Input == "" || c.Paths.Output == "" || c.Paths.Cache == "" {
		return eris.Wrap(ErrInvalid, "config: paths.input, paths.output and paths.cache are required")
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.Wrapf(ErrInvalid, "config: store.database_url is required for %s", c.Store.Driver)
		}
	case "none":
	default:
		return eris.Wrapf(ErrInvalid, "config: unknown store.driver %q", c.Store.Driver)
	}

	m := c.Monitoring
	if m.FailureRateThreshold < 0 || m.FailureRateThreshold > 1 ||
		m.TransientRateThreshold < 0 || m.TransientRateThreshold > 1 {
		return eris.Wrap(ErrInvalid, "config: monitoring thresholds must be within [0, 1]")
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return eris.Wrapf(ErrInvalid, "config: log.level %q", c.Log.Level)
	}
	return nil
}

// InitLogger initializes the global zap logger. When cfg.File is set, log
// lines are written there as well as to stderr.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return eris.Wrapf(err, "config: create log dir for %s", cfg.File)
		}
		zapCfg.OutputPaths = append(zapCfg.OutputPaths, cfg.File)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
