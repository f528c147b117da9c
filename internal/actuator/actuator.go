// Package actuator drives the two LED output channels.
package actuator

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"lightmixer/internal/mathx"
)

// Channel indices.
const (
	Channel1 = 0
	Channel2 = 1
	// NumChannels is the number of outputs a Controller drives.
	NumChannels = 2
)

// ErrChannel is returned for an out-of-range channel index.
var ErrChannel = errors.New("actuator: no such channel")

// Channel applies an 8-bit duty cycle to one output.
type Channel interface {
	SetDuty(duty uint8) error
}

// Controller keeps both channels at the requested duty and remembers the
// last value applied to each.
type Controller struct {
	channels [NumChannels]Channel
	logger   *slog.Logger

	mu   sync.Mutex
	duty [NumChannels]uint8
}

// NewController wraps two channels. All outputs are driven to zero.
func NewController(ch1, ch2 Channel, logger *slog.Logger) (*Controller, error) {
	if ch1 == nil || ch2 == nil {
		return nil, fmt.Errorf("%w: both channels are required", ErrChannel)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Controller{
		channels: [NumChannels]Channel{ch1, ch2},
		logger:   logger.With("component", "actuator"),
	}
	if err := c.SetBrightness(mathx.LevelMin); err != nil {
		return nil, fmt.Errorf("initialize outputs: %w", err)
	}
	return c, nil
}

// SetBrightness applies v to both channels. On failure the remembered duty
// of channels not yet updated is left unchanged.
func (c *Controller) SetBrightness(v uint8) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.channels {
		if err := c.setLocked(i, v); err != nil {
			return err
		}
	}
	return nil
}

// SetChannel applies v to one channel.
func (c *Controller) SetChannel(ch int, v uint8) error {
	if ch < 0 || ch >= NumChannels {
		return fmt.Errorf("%w: %d", ErrChannel, ch)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setLocked(ch, v)
}

func (c *Controller) setLocked(ch int, v uint8) error {
	duty := mathx.Clamp(v, mathx.LevelMin, mathx.LevelMax)
	if err := c.channels[ch].SetDuty(duty); err != nil {
		c.logger.Error("failed to set duty", "channel", ch+1, "duty", duty, "error", err)
		return fmt.Errorf("set duty on channel %d: %w", ch+1, err)
	}
	c.duty[ch] = duty
	return nil
}

// Brightness returns the last duty applied to ch.
func (c *Controller) Brightness(ch int) (uint8, error) {
	if ch < 0 || ch >= NumChannels {
		return 0, fmt.Errorf("%w: %d", ErrChannel, ch)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duty[ch], nil
}

// Enabled reports whether any channel is above the minimum duty.
func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.duty {
		if d > mathx.LevelMin {
			return true
		}
	}
	return false
}

// LogChannel only logs duty changes. Used for dry runs.
type LogChannel struct {
	Name   string
	Logger *slog.Logger
}

func (l LogChannel) SetDuty(duty uint8) error {
	if l.Logger != nil {
		l.Logger.Info("set duty", "channel", l.Name, "duty", duty)
	}
	return nil
}
