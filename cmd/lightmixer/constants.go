package main

// BCM pin assignments (Raspberry Pi header)
const (
	defaultEncoderAPin      = 17 // Encoder CLK
	defaultEncoderBPin      = 27 // Encoder DT
	defaultEncoderButtonPin = 22 // Encoder SW, active-low
	defaultTouchPin         = 23 // Capacitive touch module output, active-high
	defaultLEDPin1          = 18 // PWM0
	defaultLEDPin2          = 13 // PWM1
)

// Output configuration
const (
	defaultPWMFrequencyHz = 5000
	defaultSerialBaud     = 115200
)

// Encoder and touch defaults
const (
	defaultInitialPosition     = 155 // Also the default persisted brightness
	defaultEncoderPollMS       = 10
	defaultTouchDebounceCount  = 5
	defaultTouchPollMS         = 10
	defaultEncoderLogEveryTick = 50 // Position log cadence in encoder polls
)

// Control loop and persistence
const (
	defaultLoopIntervalMS    = 50
	defaultPersistCheckMS    = 200  // Pending write check; a multiple of the loop interval
	defaultPersistDebounceMS = 5000 // Stability window before a durable write
	defaultMetricsIntervalMS = 10000
	defaultStorePath         = "/var/lib/lightmixer/state.yaml"
	defaultConfigPath        = "/etc/lightmixer/config.yaml"
)
