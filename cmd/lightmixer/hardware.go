package main

import (
	"fmt"
	"log/slog"

	"lightmixer/internal/actuator"
	"lightmixer/internal/encoder"
	"lightmixer/internal/gpio"
	"lightmixer/internal/store"
)

// inputs are the logically-asserted input lines.
type inputs struct {
	encoder encoder.Lines
	touch   gpio.Input
}

// openInputs configures the input pins. The sim backend uses idle fake
// lines so the loop can run without hardware.
func openInputs(cfg *Config) inputs {
	var a, b, btn, tp gpio.Input
	switch cfg.Hardware.Backend {
	case "rpio":
		pull, _ := gpio.ParsePull(cfg.Hardware.Pull)
		a = gpio.NewRPIO(cfg.Hardware.EncoderAPin, pull)
		b = gpio.NewRPIO(cfg.Hardware.EncoderBPin, pull)
		btn = gpio.NewRPIO(cfg.Hardware.ButtonPin, pull)
		tp = gpio.NewRPIO(cfg.Hardware.TouchPin, touchPull(cfg.Hardware))
	default:
		a = gpio.NewFake(false)
		b = gpio.NewFake(false)
		btn = gpio.NewFake(cfg.Hardware.ButtonActiveLow)
		tp = gpio.NewFake(!cfg.Hardware.TouchActiveHigh)
	}

	if cfg.Hardware.ButtonActiveLow {
		btn = gpio.Inverted(btn)
	}
	if !cfg.Hardware.TouchActiveHigh {
		tp = gpio.Inverted(tp)
	}
	return inputs{
		encoder: encoder.Lines{PhaseA: a, PhaseB: b, Button: btn},
		touch:   tp,
	}
}

// touchPull biases the touch line towards its released level.
func touchPull(hw HardwareConfig) gpio.Pull {
	if hw.TouchActiveHigh {
		return gpio.PullDown
	}
	return gpio.PullUp
}

// openActuator builds the two-channel controller for the configured backend.
// The returned close function releases the backend.
func openActuator(cfg *Config, logger *slog.Logger) (*actuator.Controller, func() error, error) {
	noop := func() error { return nil }

	var ch1, ch2 actuator.Channel
	closeFn := noop
	switch cfg.Actuator.Backend {
	case "rpio":
		c1, err := actuator.NewRPIOChannel(cfg.Actuator.Channel1Pin, cfg.Actuator.FrequencyHz)
		if err != nil {
			return nil, nil, err
		}
		c2, err := actuator.NewRPIOChannel(cfg.Actuator.Channel2Pin, cfg.Actuator.FrequencyHz)
		if err != nil {
			return nil, nil, err
		}
		ch1, ch2 = c1, c2
	case "serial":
		drv, err := actuator.OpenSerial(cfg.Actuator.SerialDevice, cfg.Actuator.SerialBaud)
		if err != nil {
			return nil, nil, err
		}
		ch1, ch2 = drv.Channel(actuator.Channel1), drv.Channel(actuator.Channel2)
		closeFn = drv.Close
	default:
		ch1 = actuator.LogChannel{Name: "ch1", Logger: logger}
		ch2 = actuator.LogChannel{Name: "ch2", Logger: logger}
	}

	ctrl, err := actuator.NewController(ch1, ch2, logger)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return ctrl, closeFn, nil
}

// openStore opens the configured durable store.
func openStore(cfg *Config) (store.Backend, error) {
	path := ExpandPath(cfg.Persistence.Path)
	switch cfg.Persistence.Backend {
	case "sqlite":
		return store.OpenSQLite(path, cfg.Persistence.Namespace)
	case "file":
		return store.OpenFile(path, cfg.Persistence.Namespace)
	default:
		return nil, fmt.Errorf("unknown persistence backend %q", cfg.Persistence.Backend)
	}
}
