// Package config loads fleetcore's YAML configuration document.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level fleetcore configuration document.
type Config struct {
	Metrics   MetricsConfig   `yaml:"metrics"`
	Ringbus   RingbusConfig   `yaml:"ringbus"`
	Search    SearchConfig    `yaml:"search"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Synthetic SyntheticConfig `yaml:"synthetic"`
}

// MetricsConfig configures the default histogram bucket boundaries and
// per-counter sliding-window defaults.
type MetricsConfig struct {
	HistogramBuckets []float64                `yaml:"histogram_buckets"`
	ReservoirCap     int                      `yaml:"reservoir_cap"`
	Counters         map[string]CounterConfig `yaml:"counters"`
}

// CounterConfig configures one named sliding-window rate counter.
type CounterConfig struct {
	WindowSeconds int `yaml:"window_seconds"`
	BucketCount   int `yaml:"bucket_count"`
}

// RingbusConfig holds the message bus settings. TopicCapacity is loaded
// but not applied: ringbus.New always uses ringbus.DefaultTopicCapacity.
type RingbusConfig struct {
	TopicCapacity int `yaml:"topic_capacity"`
}

// SearchConfig configures the full-text search index. Only IndexDir is
// applied; WriterHeapMiB is loaded but not passed to search.New.
type SearchConfig struct {
	IndexDir      string `yaml:"index_dir"`
	WriterHeapMiB int    `yaml:"writer_heap_mib"`
}

// GatewayConfig configures the transport gateway's listen address,
// connection ceiling, and broadcast cadence.
type GatewayConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
	MaxConnections    int           `yaml:"max_connections"`
	BroadcastThrottle time.Duration `yaml:"broadcast_throttle"`
}

// SyntheticConfig configures the synthetic fleet generator.
type SyntheticConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	SwarmCount   int           `yaml:"swarm_count"`
	WorkersPer   int           `yaml:"workers_per_swarm"`
}

// Load reads and parses path, overlaying it onto defaultConfig.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}

	if cfg.Search.IndexDir == "" {
		cfg.Search.IndexDir = filepath.Join(defaultStateDir(), "fleetcore", "search")
	}

	return cfg, nil
}

// LoadOrDefault loads config from path, or returns built-in defaults if
// path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	return Load(path)
}

func defaultConfig() *Config {
	return &Config{
		Metrics: MetricsConfig{
			HistogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
			ReservoirCap:     10_000,
			Counters: map[string]CounterConfig{
				"default": {WindowSeconds: 60, BucketCount: 60},
			},
		},
		Ringbus: RingbusConfig{
			TopicCapacity: 10_000,
		},
		Search: SearchConfig{
			IndexDir:      filepath.Join(defaultStateDir(), "fleetcore", "search"),
			WriterHeapMiB: 50,
		},
		Gateway: GatewayConfig{
			Host:              "127.0.0.1",
			Port:              8090,
			MaxConnections:    1000,
			BroadcastThrottle: 100 * time.Millisecond,
		},
		Synthetic: SyntheticConfig{
			TickInterval: 5 * time.Second,
			SwarmCount:   3,
			WorkersPer:   4,
		},
	}
}

func defaultStateDir() string {
	if value := os.Getenv("XDG_STATE_HOME"); value != "" {
		return value
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".local", "state")
}

func defaultConfigDir() string {
	if value := os.Getenv("XDG_CONFIG_HOME"); value != "" {
		return value
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config")
}

// DefaultConfigPath returns the default XDG-compliant config file path.
func DefaultConfigPath() string {
	return filepath.Join(defaultConfigDir(), "fleetcore", "config.yaml")
}

// CounterConfigFor resolves the named counter's window config, falling
// back to the "default" key.
func (c *Config) CounterConfigFor(name string) CounterConfig {
	if cc, ok := c.Metrics.Counters[name]; ok {
		return cc
	}
	if cc, ok := c.Metrics.Counters["default"]; ok {
		return cc
	}
	return CounterConfig{WindowSeconds: 60, BucketCount: 60}
}
