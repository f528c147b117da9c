package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"lightmixer/internal/encoder"
	"lightmixer/internal/gpio"
	"lightmixer/internal/metrics"
	"lightmixer/internal/mixer"
	"lightmixer/internal/persist"
	"lightmixer/internal/touch"
)

const version = "1.0.0"

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "lightmixer v%s\n", version)
	fmt.Fprintln(w, "Rotary encoder and touch controlled two-channel LED dimmer")
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// run dispatches to the store subcommand or the daemon.
func run(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 && args[0] == "store" {
		return runStoreCommand(args[1:], stdout, stderr)
	}

	fs := pflag.NewFlagSet("lightmixer", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg, showVersion, err := parseDaemonFlags(fs, args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		printVersion(stdout)
		return nil
	}

	level, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(stdout, level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return runDaemon(ctx, cfg, logger)
}

// registerConfigFlags adds the flags shared by the daemon and the store
// subcommand and returns the overrides they fill in after parsing.
func registerConfigFlags(fs *pflag.FlagSet) (configPath *string, overrides func() FlagOverrides) {
	configPath = fs.StringP("config", "c", "", "configuration file (default "+defaultConfigPath+" if present)")
	storeBackend := fs.String("store-backend", "", "durable store backend: file|sqlite")
	storePath := fs.String("store-path", "", "durable store path")
	logLevel := fs.String("log-level", "", "log level: error, warn, info, debug")

	overrides = func() FlagOverrides {
		var o FlagOverrides
		if fs.Changed("store-backend") {
			o.StoreBackend = storeBackend
		}
		if fs.Changed("store-path") {
			o.StorePath = storePath
		}
		if fs.Changed("log-level") {
			o.LogLevel = logLevel
		}
		return o
	}
	return configPath, overrides
}

func parseDaemonFlags(fs *pflag.FlagSet, args []string) (Config, bool, error) {
	configPath, shared := registerConfigFlags(fs)
	hardwareBackend := fs.String("hardware", "", "input backend: rpio|sim")
	actuatorBackend := fs.String("actuator", "", "output backend: rpio|serial|log")
	serialDevice := fs.String("serial-device", "", "serial device of the LED driver board")
	flushOnShutdown := fs.Bool("flush-on-shutdown", false, "commit a pending save before exiting")
	metricsTextfile := fs.String("metrics-textfile", "", "write Prometheus metrics to this textfile")
	showVersion := fs.BoolP("version", "V", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return Config{}, false, err
	}
	if *showVersion {
		return Config{}, true, nil
	}

	o := shared()
	if fs.Changed("hardware") {
		o.HardwareBackend = hardwareBackend
	}
	if fs.Changed("actuator") {
		o.ActuatorBackend = actuatorBackend
	}
	if fs.Changed("serial-device") {
		o.SerialDevice = serialDevice
	}
	if fs.Changed("flush-on-shutdown") {
		o.FlushOnShutdown = flushOnShutdown
	}
	if fs.Changed("metrics-textfile") {
		o.MetricsTextfile = metricsTextfile
	}

	cfg, err := resolveConfig(*configPath, o)
	return cfg, false, err
}

// resolveConfig layers defaults, the config file and flag overrides, then validates.
func resolveConfig(path string, o FlagOverrides) (Config, error) {
	cfg := DefaultConfig()
	switch {
	case path != "":
		loaded, err := LoadConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	default:
		if _, err := os.Stat(defaultConfigPath); err == nil {
			loaded, err := LoadConfigFile(defaultConfigPath)
			if err != nil {
				return Config{}, err
			}
			cfg = loaded
		}
	}

	o.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// runDaemon brings up the hardware, restores the persisted state and runs
// the decoder, debouncer, control loop and metrics export until ctx ends.
func runDaemon(ctx context.Context, cfg Config, logger *slog.Logger) error {
	logger.Info("starting lightmixer",
		"version", version,
		"hardware", cfg.Hardware.Backend,
		"actuator", cfg.Actuator.Backend,
		"store", cfg.Persistence.Backend,
		"store_path", cfg.Persistence.Path,
	)

	backend, err := openStore(&cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer backend.Close()

	if cfg.Hardware.Backend == "rpio" {
		if err := gpio.Open(); err != nil {
			logger.Error("failed to open gpio", "error", err, "tip", "run as root or add user to 'gpio' group")
			return err
		}
		defer gpio.Close()
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	var exporter *metrics.TextfileExporter
	if cfg.Metrics.Textfile != "" {
		prom := metrics.NewPrometheusRecorder(nil)
		recorder = prom
		exporter = &metrics.TextfileExporter{
			Recorder: prom,
			Path:     ExpandPath(cfg.Metrics.Textfile),
			Interval: ms(cfg.Metrics.IntervalMS),
			Logger:   logger.With("component", "metrics"),
		}
	}

	in := openInputs(&cfg)
	dec, err := encoder.New(in.encoder, cfg.ToEncoderConfig(),
		encoder.WithLogger(logger), encoder.WithRecorder(recorder))
	if err != nil {
		return fmt.Errorf("init encoder: %w", err)
	}
	deb, err := touch.New(in.touch, cfg.ToTouchConfig(),
		touch.WithLogger(logger), touch.WithRecorder(recorder))
	if err != nil {
		return fmt.Errorf("init touch sensor: %w", err)
	}

	ctrl, closeActuator, err := openActuator(&cfg, logger)
	if err != nil {
		return fmt.Errorf("init actuator: %w", err)
	}
	defer func() {
		// Leave the LEDs dark rather than frozen at the last duty.
		_ = ctrl.SetBrightness(0)
		_ = closeActuator()
	}()

	sched, err := persist.NewScheduler(backend, cfg.ToSchedulerConfig(),
		persist.WithLogger(logger), persist.WithRecorder(recorder))
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	loop, err := mixer.New(dec, deb, ctrl, sched, cfg.ToMixerConfig(),
		mixer.WithLogger(logger), mixer.WithRecorder(recorder))
	if err != nil {
		return fmt.Errorf("init control loop: %w", err)
	}
	if _, err := loop.Restore(ctx); err != nil {
		logger.Warn("failed to apply restored state", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dec.Run(gctx) })
	g.Go(func() error { return deb.Run(gctx) })
	g.Go(func() error { return loop.Run(gctx) })
	if exporter != nil {
		g.Go(func() error { return exporter.Run(gctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("daemon failed: %w", err)
	}
	logger.Info("lightmixer stopped", "last_committed", sched.LastCommitted())
	return nil
}
