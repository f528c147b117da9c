package gpio

import (
	"errors"
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"
)

// ErrOpen is returned when the GPIO block cannot be mapped.
var ErrOpen = errors.New("gpio: open failed")

// Open maps the GPIO registers. It must succeed before any RPIO input or
// rpio-backed PWM channel is used.
func Open() error {
	if err := rpio.Open(); err != nil {
		return fmt.Errorf("%w: %v", ErrOpen, err)
	}
	return nil
}

// Close unmaps the GPIO registers.
func Close() error {
	return rpio.Close()
}

// RPIO is an Input backed by a BCM-numbered GPIO pin.
type RPIO struct {
	pin rpio.Pin
}

// NewRPIO configures pin as an input with the given bias.
func NewRPIO(bcm int, pull Pull) *RPIO {
	pin := rpio.Pin(bcm)
	pin.Input()
	switch pull {
	case PullUp:
		pin.PullUp()
	case PullDown:
		pin.PullDown()
	default:
		pin.PullOff()
	}
	return &RPIO{pin: pin}
}

func (r *RPIO) Read() bool {
	return r.pin.Read() == rpio.High
}

// Pin returns the BCM pin number.
func (r *RPIO) Pin() int { return int(r.pin) }
