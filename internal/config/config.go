// Package config loads the pipeline configuration from YAML, layering
// file values over built-in defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/edgeforge/signalrun/internal/confluence"
	"github.com/edgeforge/signalrun/internal/lifecycle"
	"github.com/edgeforge/signalrun/internal/newsshock"
)

// Duration wraps time.Duration so YAML values can be written as "48h"
// or "500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// StoreConfig selects and parameterizes the persistence backend.
type StoreConfig struct {
	// Backend is one of memory, file, redis, postgres.
	Backend string `yaml:"backend"`

	// File backend.
	Path string `yaml:"path"`

	// Redis backend.
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	Namespace     string `yaml:"namespace"`

	// Postgres backend.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// NewsConfig parameterizes the news-shock feed client.
type NewsConfig struct {
	BaseURL           string   `yaml:"base_url"`
	Timeout           Duration `yaml:"timeout"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	Burst             int      `yaml:"burst"`
	CacheTTL          Duration `yaml:"cache_ttl"`
}

// ConfluenceConfig parameterizes the cross-timeframe gate.
type ConfluenceConfig struct {
	MinTimeframes       int      `yaml:"min_timeframes"`
	MinScore            float64  `yaml:"min_score"`
	ClusterTolerancePct float64  `yaml:"cluster_tolerance_pct"`
	SignalTTL           Duration `yaml:"signal_ttl"`
}

// LifecycleConfig parameterizes signal management.
type LifecycleConfig struct {
	ATRPeriod            int     `yaml:"atr_period"`
	ATRTrailMultiple     float64 `yaml:"atr_trail_multiple"`
	SwingLookback        int     `yaml:"swing_lookback"`
	MinCandlesForTrail   int     `yaml:"min_candles_for_trail"`
	VolumeClimaxMultiple float64 `yaml:"volume_climax_multiple"`
	RejectionWickRatio   float64 `yaml:"rejection_wick_ratio"`
	PartialTPMinATR      float64 `yaml:"partial_tp_min_atr"`
}

// HTTPConfig parameterizes the API server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the full pipeline configuration.
type Config struct {
	LogLevel      string           `yaml:"log_level"`
	Store         StoreConfig      `yaml:"store"`
	News          NewsConfig       `yaml:"news"`
	Confluence    ConfluenceConfig `yaml:"confluence"`
	Lifecycle     LifecycleConfig  `yaml:"lifecycle"`
	PredictionTTL Duration         `yaml:"prediction_ttl"`
	HTTP          HTTPConfig       `yaml:"http"`
	// RiskIterations is the Monte Carlo sample count per simulation.
	RiskIterations int `yaml:"risk_iterations"`
}

// Default returns the built-in configuration: in-memory persistence,
// no news feed, production gate thresholds.
func Default() *Config {
	confluenceDefaults := confluence.DefaultConfig()
	lifecycleDefaults := lifecycle.DefaultConfig()
	newsDefaults := newsshock.DefaultConfig()

	return &Config{
		LogLevel: "info",
		Store:    StoreConfig{Backend: "memory", Namespace: "signalrun"},
		News: NewsConfig{
			Timeout:           Duration(newsDefaults.Timeout),
			RequestsPerSecond: newsDefaults.RequestsPerSecond,
			Burst:             newsDefaults.Burst,
			CacheTTL:          Duration(newsDefaults.CacheTTL),
		},
		Confluence: ConfluenceConfig{
			MinTimeframes:       confluenceDefaults.MinTimeframes,
			MinScore:            confluenceDefaults.MinScore,
			ClusterTolerancePct: confluenceDefaults.ClusterTolerancePct,
			SignalTTL:           Duration(confluenceDefaults.SignalTTL),
		},
		Lifecycle: LifecycleConfig{
			ATRPeriod:            lifecycleDefaults.ATRPeriod,
			ATRTrailMultiple:     lifecycleDefaults.ATRTrailMultiple,
			SwingLookback:        lifecycleDefaults.SwingLookback,
			MinCandlesForTrail:   lifecycleDefaults.MinCandlesForTrail,
			VolumeClimaxMultiple: lifecycleDefaults.VolumeClimaxMultiple,
			RejectionWickRatio:   lifecycleDefaults.RejectionWickRatio,
			PartialTPMinATR:      lifecycleDefaults.PartialTPMinATR,
		},
		PredictionTTL:  Duration(24 * time.Hour),
		HTTP:           HTTPConfig{Addr: ":8080"},
		RiskIterations: 1000,
	}
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory":
	case "file":
		if c.Store.Path == "" {
			return fmt.Errorf("file store requires store.path")
		}
	case "redis":
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("redis store requires store.redis_addr")
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("postgres store requires store.postgres_dsn")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Confluence.MinTimeframes < 1 {
		return fmt.Errorf("confluence.min_timeframes must be >= 1")
	}
	if c.RiskIterations < 1 {
		return fmt.Errorf("risk_iterations must be >= 1")
	}
	return nil
}

// ConfluenceSettings maps onto the validator's config type.
func (c *Config) ConfluenceSettings() *confluence.Config {
	return &confluence.Config{
		MinTimeframes:       c.Confluence.MinTimeframes,
		MinScore:            c.Confluence.MinScore,
		ClusterTolerancePct: c.Confluence.ClusterTolerancePct,
		SignalTTL:           time.Duration(c.Confluence.SignalTTL),
	}
}

// LifecycleSettings maps onto the lifecycle manager's config type.
func (c *Config) LifecycleSettings() *lifecycle.Config {
	return &lifecycle.Config{
		ATRPeriod:            c.Lifecycle.ATRPeriod,
		ATRTrailMultiple:     c.Lifecycle.ATRTrailMultiple,
		SwingLookback:        c.Lifecycle.SwingLookback,
		MinCandlesForTrail:   c.Lifecycle.MinCandlesForTrail,
		VolumeClimaxMultiple: c.Lifecycle.VolumeClimaxMultiple,
		RejectionWickRatio:   c.Lifecycle.RejectionWickRatio,
		PartialTPMinATR:      c.Lifecycle.PartialTPMinATR,
	}
}

// NewsSettings maps onto the news client's config type.
func (c *Config) NewsSettings() *newsshock.Config {
	return &newsshock.Config{
		BaseURL:           c.News.BaseURL,
		Timeout:           time.Duration(c.News.Timeout),
		RequestsPerSecond: c.News.RequestsPerSecond,
		Burst:             c.News.Burst,
		CacheTTL:          time.Duration(c.News.CacheTTL),
	}
}
