package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"lightmixer/internal/encoder"
	"lightmixer/internal/gpio"
	"lightmixer/internal/mixer"
	"lightmixer/internal/persist"
	"lightmixer/internal/touch"
)

// Config is the top-level YAML configuration for the lightmixer daemon.
//
// Keep defaults and validation centralized so the rest of the code can
// assume a well-formed config.
type Config struct {
	Hardware    HardwareConfig    `yaml:"hardware"`
	Encoder     EncoderConfig     `yaml:"encoder"`
	Touch       TouchConfig       `yaml:"touch"`
	Actuator    ActuatorConfig    `yaml:"actuator"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Loop        LoopConfig        `yaml:"loop"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// HardwareConfig selects the input backend and pins (BCM numbering).
type HardwareConfig struct {
	Backend         string `yaml:"backend"` // "rpio" or "sim"
	EncoderAPin     int    `yaml:"encoder_a_pin"`
	EncoderBPin     int    `yaml:"encoder_b_pin"`
	ButtonPin       int    `yaml:"button_pin"`
	TouchPin        int    `yaml:"touch_pin"`
	Pull            string `yaml:"pull"` // bias for encoder lines: up, down, off
	ButtonActiveLow bool   `yaml:"button_active_low"`
	TouchActiveHigh bool   `yaml:"touch_active_high"`
}

type EncoderConfig struct {
	InitialPosition int   `yaml:"initial_position"`
	ScaleFactors    []int `yaml:"scale_factors"`
	PollIntervalMS  int   `yaml:"poll_interval_ms"`
	LogEveryTicks   int   `yaml:"log_every_ticks,omitempty"`
}

type TouchConfig struct {
	DebounceCount  int `yaml:"debounce_count"`
	PollIntervalMS int `yaml:"poll_interval_ms"`
}

type ActuatorConfig struct {
	Backend      string `yaml:"backend"` // "rpio", "serial" or "log"
	Channel1Pin  int    `yaml:"channel1_pin"`
	Channel2Pin  int    `yaml:"channel2_pin"`
	FrequencyHz  int    `yaml:"frequency_hz"`
	SerialDevice string `yaml:"serial_device,omitempty"`
	SerialBaud   int    `yaml:"serial_baud,omitempty"`
}

type PersistenceConfig struct {
	Backend         string `yaml:"backend"` // "file" or "sqlite"
	Path            string `yaml:"path"`
	Namespace       string `yaml:"namespace"`
	DebounceMS      int    `yaml:"debounce_ms"`
	CheckIntervalMS int    `yaml:"check_interval_ms"`
	FlushOnShutdown bool   `yaml:"flush_on_shutdown"`
}

type LoopConfig struct {
	IntervalMS int `yaml:"interval_ms"`
}

// MetricsConfig enables the Prometheus textfile export when Textfile is set.
type MetricsConfig struct {
	Textfile   string `yaml:"textfile,omitempty"`
	IntervalMS int    `yaml:"interval_ms"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go.
func DefaultConfig() Config {
	return Config{
		Hardware: HardwareConfig{
			Backend:         "rpio",
			EncoderAPin:     defaultEncoderAPin,
			EncoderBPin:     defaultEncoderBPin,
			ButtonPin:       defaultEncoderButtonPin,
			TouchPin:        defaultTouchPin,
			Pull:            "up",
			ButtonActiveLow: true,
			TouchActiveHigh: true,
		},
		Encoder: EncoderConfig{
			InitialPosition: defaultInitialPosition,
			ScaleFactors:    append([]int(nil), encoder.DefaultScaleFactors...),
			PollIntervalMS:  defaultEncoderPollMS,
			LogEveryTicks:   defaultEncoderLogEveryTick,
		},
		Touch: TouchConfig{
			DebounceCount:  defaultTouchDebounceCount,
			PollIntervalMS: defaultTouchPollMS,
		},
		Actuator: ActuatorConfig{
			Backend:     "rpio",
			Channel1Pin: defaultLEDPin1,
			Channel2Pin: defaultLEDPin2,
			FrequencyHz: defaultPWMFrequencyHz,
			SerialBaud:  defaultSerialBaud,
		},
		Persistence: PersistenceConfig{
			Backend:         "file",
			Path:            defaultStorePath,
			Namespace:       "led_ctrl",
			DebounceMS:      defaultPersistDebounceMS,
			CheckIntervalMS: defaultPersistCheckMS,
			FlushOnShutdown: false,
		},
		Loop: LoopConfig{
			IntervalMS: defaultLoopIntervalMS,
		},
		Metrics: MetricsConfig{
			IntervalMS: defaultMetricsIntervalMS,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of the defaults.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides holds command-line overrides. Each pointer is non-nil only
// when the flag was set.
type FlagOverrides struct {
	HardwareBackend *string
	ActuatorBackend *string
	SerialDevice    *string

	StoreBackend    *string
	StorePath       *string
	FlushOnShutdown *bool

	MetricsTextfile *string

	LogLevel *string
}

// Apply merges the overrides into cfg. If an override pointer is nil, it is ignored.
// If the pointer is non-nil, the value is applied (even if it is a zero value).
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.HardwareBackend != nil {
		cfg.Hardware.Backend = *o.HardwareBackend
	}
	if o.ActuatorBackend != nil {
		cfg.Actuator.Backend = *o.ActuatorBackend
	}
	if o.SerialDevice != nil {
		cfg.Actuator.SerialDevice = *o.SerialDevice
	}

	if o.StoreBackend != nil {
		cfg.Persistence.Backend = *o.StoreBackend
	}
	if o.StorePath != nil {
		cfg.Persistence.Path = *o.StorePath
	}
	if o.FlushOnShutdown != nil {
		cfg.Persistence.FlushOnShutdown = *o.FlushOnShutdown
	}

	if o.MetricsTextfile != nil {
		cfg.Metrics.Textfile = *o.MetricsTextfile
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config constraints and returns a user-friendly error.
// This is intended to be called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Hardware
	switch c.Hardware.Backend {
	case "rpio", "sim":
	default:
		return fmt.Errorf("hardware.backend must be %q or %q", "rpio", "sim")
	}
	if _, ok := gpio.ParsePull(c.Hardware.Pull); !ok {
		return errors.New("hardware.pull must be up, down or off")
	}
	pins := map[string]int{
		"hardware.encoder_a_pin": c.Hardware.EncoderAPin,
		"hardware.encoder_b_pin": c.Hardware.EncoderBPin,
		"hardware.button_pin":    c.Hardware.ButtonPin,
		"hardware.touch_pin":     c.Hardware.TouchPin,
	}
	for name, pin := range pins {
		if pin < 0 || pin > 27 {
			return fmt.Errorf("%s must be a BCM pin between 0 and 27", name)
		}
	}

	// Encoder
	if c.Encoder.InitialPosition < 0 || c.Encoder.InitialPosition > 255 {
		return errors.New("encoder.initial_position must be between 0 and 255")
	}
	if len(c.Encoder.ScaleFactors) == 0 {
		return errors.New("encoder.scale_factors must not be empty")
	}
	for i, f := range c.Encoder.ScaleFactors {
		if f <= 0 {
			return fmt.Errorf("encoder.scale_factors[%d] must be > 0", i)
		}
	}
	if c.Encoder.PollIntervalMS <= 0 {
		return errors.New("encoder.poll_interval_ms must be > 0")
	}

	// Touch
	if c.Touch.DebounceCount < 1 {
		return errors.New("touch.debounce_count must be >= 1")
	}
	if c.Touch.PollIntervalMS <= 0 {
		return errors.New("touch.poll_interval_ms must be > 0")
	}

	// Actuator
	switch c.Actuator.Backend {
	case "rpio":
		if c.Actuator.FrequencyHz <= 0 {
			return errors.New("actuator.frequency_hz must be > 0")
		}
	case "serial":
		if c.Actuator.SerialDevice == "" {
			return errors.New("actuator.backend is serial but actuator.serial_device is empty")
		}
		if c.Actuator.SerialBaud <= 0 {
			return errors.New("actuator.serial_baud must be > 0")
		}
	case "log":
	default:
		return fmt.Errorf("actuator.backend must be %q, %q or %q", "rpio", "serial", "log")
	}
	if c.Actuator.Backend == "rpio" && c.Hardware.Backend != "rpio" {
		return errors.New("actuator.backend rpio requires hardware.backend rpio")
	}

	// Persistence
	switch c.Persistence.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("persistence.backend must be %q or %q", "file", "sqlite")
	}
	if c.Persistence.Path == "" {
		return errors.New("persistence.path must not be empty")
	}
	if c.Persistence.DebounceMS < 0 {
		return errors.New("persistence.debounce_ms must be >= 0")
	}

	// Loop
	if c.Loop.IntervalMS <= 0 {
		return errors.New("loop.interval_ms must be > 0")
	}
	if c.Persistence.CheckIntervalMS < c.Loop.IntervalMS || c.Persistence.CheckIntervalMS%c.Loop.IntervalMS != 0 {
		return errors.New("persistence.check_interval_ms must be a positive multiple of loop.interval_ms")
	}

	// Metrics
	if c.Metrics.Textfile != "" && c.Metrics.IntervalMS <= 0 {
		return errors.New("metrics.interval_ms must be > 0 when metrics.textfile is set")
	}

	// Logging
	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// ToEncoderConfig converts the file config into the decoder config.
func (c *Config) ToEncoderConfig() encoder.Config {
	return encoder.Config{
		InitialPosition: c.Encoder.InitialPosition,
		ScaleFactors:    c.Encoder.ScaleFactors,
		PollInterval:    ms(c.Encoder.PollIntervalMS),
		LogEvery:        c.Encoder.LogEveryTicks,
	}
}

// ToTouchConfig converts the file config into the debouncer config.
func (c *Config) ToTouchConfig() touch.Config {
	return touch.Config{
		Threshold:    c.Touch.DebounceCount,
		PollInterval: ms(c.Touch.PollIntervalMS),
	}
}

// ToSchedulerConfig converts the file config into the scheduler config. The
// initial encoder position doubles as the default brightness.
func (c *Config) ToSchedulerConfig() persist.Config {
	return persist.Config{
		DebounceWindow: ms(c.Persistence.DebounceMS),
		Defaults: persist.LedState{
			Enabled:    persist.DefaultEnabled,
			Brightness: uint8(c.Encoder.InitialPosition),
		},
	}
}

// ToMixerConfig converts the file config into the loop config.
func (c *Config) ToMixerConfig() mixer.Config {
	return mixer.Config{
		Interval:        ms(c.Loop.IntervalMS),
		PersistEvery:    c.Persistence.CheckIntervalMS / c.Loop.IntervalMS,
		FlushOnShutdown: c.Persistence.FlushOnShutdown,
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
