package config

import "testing"

func TestDefaultConfigValues(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Ringbus.TopicCapacity != 10_000 {
		t.Errorf("TopicCapacity = %d, want 10000", cfg.Ringbus.TopicCapacity)
	}
	if cfg.Search.WriterHeapMiB != 50 {
		t.Errorf("WriterHeapMiB = %d, want 50", cfg.Search.WriterHeapMiB)
	}
	if cfg.Gateway.Port != 8090 {
		t.Errorf("Gateway.Port = %d, want 8090", cfg.Gateway.Port)
	}
	if cfg.Metrics.ReservoirCap != 10_000 {
		t.Errorf("ReservoirCap = %d, want 10000", cfg.Metrics.ReservoirCap)
	}
}

func TestCounterConfigForFallsBackToDefault(t *testing.T) {
	cfg := defaultConfig()
	cc := cfg.CounterConfigFor("unknown_counter")
	if cc.WindowSeconds != 60 || cc.BucketCount != 60 {
		t.Errorf("CounterConfigFor(unknown) = %+v, want fallback to default", cc)
	}
}

func TestCounterConfigForNamedOverride(t *testing.T) {
	cfg := &Config{
		Metrics: MetricsConfig{
			Counters: map[string]CounterConfig{
				"errors": {WindowSeconds: 30, BucketCount: 30},
			},
		},
	}
	cc := cfg.CounterConfigFor("errors")
	if cc.WindowSeconds != 30 || cc.BucketCount != 30 {
		t.Errorf("CounterConfigFor(errors) = %+v, want {30 30}", cc)
	}
}

func TestCounterConfigForNoMatchNoDefaultUsesBuiltin(t *testing.T) {
	cfg := &Config{}
	cc := cfg.CounterConfigFor("anything")
	if cc.WindowSeconds != 60 || cc.BucketCount != 60 {
		t.Errorf("CounterConfigFor with empty config = %+v, want builtin fallback {60 60}", cc)
	}
}

func TestLoadOrDefaultMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadOrDefault("/nonexistent/path/to/fleetcore-config.yaml")
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if cfg.Gateway.Port != 8090 {
		t.Errorf("Gateway.Port = %d, want default 8090", cfg.Gateway.Port)
	}
}
