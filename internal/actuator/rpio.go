package actuator

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"
)

// pwmCycle is the PWM range; a duty of 255 is fully on.
const pwmCycle = 255

// RPIOChannel drives a hardware PWM pin. gpio.Open must have succeeded.
type RPIOChannel struct {
	pin rpio.Pin
}

// NewRPIOChannel puts the BCM pin into PWM mode at the given output frequency.
func NewRPIOChannel(bcm int, frequencyHz int) (*RPIOChannel, error) {
	if frequencyHz <= 0 {
		return nil, fmt.Errorf("pwm frequency must be positive, got %d", frequencyHz)
	}
	pin := rpio.Pin(bcm)
	pin.Mode(rpio.Pwm)
	// The clock is divided by the cycle length to give the output frequency.
	pin.Freq(frequencyHz * pwmCycle)
	pin.DutyCycleWithPwmMode(0, pwmCycle, rpio.MarkSpace)
	return &RPIOChannel{pin: pin}, nil
}

func (r *RPIOChannel) SetDuty(duty uint8) error {
	r.pin.DutyCycleWithPwmMode(uint32(duty), pwmCycle, rpio.MarkSpace)
	return nil
}
