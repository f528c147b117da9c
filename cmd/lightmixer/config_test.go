package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// TestDefaultConfigValid tests that the built-in defaults pass validation
func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}

	mc := cfg.ToMixerConfig()
	if mc.PersistEvery != 4 {
		t.Errorf("expected persist every 4 loop ticks, got %d", mc.PersistEvery)
	}
	if mc.Interval != 50*time.Millisecond {
		t.Errorf("expected 50ms loop interval, got %s", mc.Interval)
	}
	if mc.FlushOnShutdown {
		t.Error("expected flush_on_shutdown to default to false")
	}

	sc := cfg.ToSchedulerConfig()
	if sc.DebounceWindow != 5*time.Second {
		t.Errorf("expected 5s debounce window, got %s", sc.DebounceWindow)
	}
	if !sc.Defaults.Enabled || sc.Defaults.Brightness != 155 {
		t.Errorf("expected defaults enabled=true brightness=155, got %s", sc.Defaults)
	}
}

// TestLoadConfigFile tests that file values override defaults and the rest is kept
func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
hardware:
  backend: sim
encoder:
  scale_factors: [1, 4, 16]
actuator:
  backend: log
persistence:
  backend: sqlite
  path: /tmp/lightmixer.db
logging:
  level: debug
`)
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Persistence.Backend != "sqlite" {
		t.Errorf("expected sqlite backend, got %q", cfg.Persistence.Backend)
	}
	if got := cfg.ToEncoderConfig().ScaleFactors; len(got) != 3 || got[2] != 16 {
		t.Errorf("expected scale factors [1 4 16], got %v", got)
	}
	if cfg.Touch.DebounceCount != defaultTouchDebounceCount {
		t.Errorf("expected default debounce count, got %d", cfg.Touch.DebounceCount)
	}
	if cfg.Persistence.Namespace != "led_ctrl" {
		t.Errorf("expected default namespace, got %q", cfg.Persistence.Namespace)
	}
}

func TestLoadConfigFile_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown field", "encoder:\n  scale_factor: [1]\n", "field scale_factor not found"},
		{"trailing document", "loop:\n  interval_ms: 50\n---\nloop:\n  interval_ms: 10\n", "trailing document"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfigFile(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

// TestValidate tests user-facing validation messages
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"hardware backend", func(c *Config) { c.Hardware.Backend = "ftdi" }, "hardware.backend"},
		{"empty scale factors", func(c *Config) { c.Encoder.ScaleFactors = nil }, "encoder.scale_factors"},
		{"zero scale factor", func(c *Config) { c.Encoder.ScaleFactors = []int{1, 0} }, "encoder.scale_factors[1]"},
		{"initial position", func(c *Config) { c.Encoder.InitialPosition = 300 }, "encoder.initial_position"},
		{"debounce count", func(c *Config) { c.Touch.DebounceCount = 0 }, "touch.debounce_count"},
		{"serial without device", func(c *Config) { c.Actuator.Backend = "serial" }, "serial_device"},
		{"rpio output on sim", func(c *Config) { c.Hardware.Backend = "sim" }, "requires hardware.backend rpio"},
		{"store backend", func(c *Config) { c.Persistence.Backend = "nvs" }, "persistence.backend"},
		{"check interval", func(c *Config) { c.Persistence.CheckIntervalMS = 120 }, "check_interval_ms"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

// TestFlagOverridesApply tests that only set overrides are applied
func TestFlagOverridesApply(t *testing.T) {
	cfg := DefaultConfig()
	backend := "sqlite"
	flush := true
	FlagOverrides{StoreBackend: &backend, FlushOnShutdown: &flush}.Apply(&cfg)

	if cfg.Persistence.Backend != "sqlite" {
		t.Errorf("expected sqlite, got %q", cfg.Persistence.Backend)
	}
	if !cfg.Persistence.FlushOnShutdown {
		t.Error("expected flush_on_shutdown override to apply")
	}
	if cfg.Persistence.Path != defaultStorePath {
		t.Errorf("expected unchanged store path, got %q", cfg.Persistence.Path)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandPath("~/state.yaml"); got != filepath.Join(home, "state.yaml") {
		t.Errorf("expected path under home, got %q", got)
	}
	if got := ExpandPath("/var/lib/x"); got != "/var/lib/x" {
		t.Errorf("expected absolute path unchanged, got %q", got)
	}
}
