// Package encoder decodes a two-phase rotary quadrature encoder with a push
// button into a saturating 0..255 position.
//
// Phase lines are combined into a 2-bit code (A<<1 | B). The clockwise
// Gray-code sequence is 0→1→3→2→0; the reverse order is counter-clockwise.
// Any other change of code (both lines flipping between samples) is an
// invalid transition: it is counted for diagnostics and otherwise ignored.
//
// Each raw button press advances the scale factor applied per detent,
// cycling through the configured set (default 1, 2, 5).
package encoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"lightmixer/internal/gpio"
	"lightmixer/internal/mathx"
	"lightmixer/internal/metrics"
)

// ErrConfig is returned by New when the configuration or input lines are unusable.
var ErrConfig = errors.New("encoder: invalid configuration")

const (
	DefaultPollInterval = 10 * time.Millisecond
	DefaultLogEvery     = 50 // poll ticks between position log lines
)

// DefaultScaleFactors is the acceleration set cycled by the button.
var DefaultScaleFactors = []int{1, 2, 5}

// Lines are the digital inputs the decoder samples. Button must already be
// logically asserted-high; wrap an active-low switch with gpio.Inverted.
type Lines struct {
	PhaseA gpio.Input
	PhaseB gpio.Input
	Button gpio.Input
}

// Config holds decoder parameters.
type Config struct {
	InitialPosition int
	ScaleFactors    []int
	PollInterval    time.Duration
	// LogEvery is the number of Run ticks between position log lines.
	LogEvery int
}

// State is a consistent snapshot of the decoder.
type State struct {
	Position           uint8
	ScaleIndex         int
	ScaleFactor        int
	ButtonPressCount   uint32
	ButtonPressed      bool
	InvalidTransitions uint64
}

// RawPins holds unfiltered line levels for diagnostics.
type RawPins struct {
	PhaseA bool
	PhaseB bool
	Button bool
}

// Packed returns the levels as A<<2 | button<<1 | B.
func (r RawPins) Packed() uint8 {
	var v uint8
	if r.PhaseA {
		v |= 1 << 2
	}
	if r.Button {
		v |= 1 << 1
	}
	if r.PhaseB {
		v |= 1
	}
	return v
}

// direction maps a (previous, current) phase code pair to a step.
// Pairs not listed are either unchanged or invalid.
var direction = map[[2]uint8]int{
	{0, 1}: +1, {1, 3}: +1, {3, 2}: +1, {2, 0}: +1,
	{0, 2}: -1, {2, 3}: -1, {3, 1}: -1, {1, 0}: -1,
}

// Decoder tracks encoder position, scale factor and button state.
//
// Thread-safe: Run polls from its own goroutine while the orchestrator
// reads snapshots and may re-sync the position.
type Decoder struct {
	lines    Lines
	scale    []int
	interval time.Duration
	logEvery int
	clock    clockwork.Clock
	logger   *slog.Logger
	recorder metrics.Recorder

	mu            sync.Mutex
	position      uint8
	scaleIndex    int
	pressCount    uint32
	pressed       bool
	lastButton    bool
	lastPhaseCode uint8
	invalid       uint64
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithClock sets the clock driving Run.
func WithClock(c clockwork.Clock) Option {
	return func(d *Decoder) { d.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) { d.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(d *Decoder) { d.recorder = r }
}

// New validates cfg, samples the lines to seed the decoder and returns it.
// Zero-valued ScaleFactors, PollInterval and LogEvery take defaults.
func New(lines Lines, cfg Config, opts ...Option) (*Decoder, error) {
	if lines.PhaseA == nil || lines.PhaseB == nil || lines.Button == nil {
		return nil, fmt.Errorf("%w: phase and button lines are required", ErrConfig)
	}
	scale := cfg.ScaleFactors
	if len(scale) == 0 {
		scale = DefaultScaleFactors
	}
	for _, f := range scale {
		if f <= 0 {
			return nil, fmt.Errorf("%w: scale factor must be positive, got %d", ErrConfig, f)
		}
	}
	interval := cfg.PollInterval
	if interval == 0 {
		interval = DefaultPollInterval
	}
	if interval < 0 {
		return nil, fmt.Errorf("%w: poll interval must be positive, got %s", ErrConfig, interval)
	}
	logEvery := cfg.LogEvery
	if logEvery <= 0 {
		logEvery = DefaultLogEvery
	}

	d := &Decoder{
		lines:    lines,
		scale:    append([]int(nil), scale...),
		interval: interval,
		logEvery: logEvery,
		clock:    clockwork.NewRealClock(),
		logger:   slog.New(slog.DiscardHandler),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "encoder")
	d.initialize(cfg.InitialPosition)
	return d, nil
}

func (d *Decoder) initialize(initialPosition int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.position = mathx.ClampLevel(initialPosition)
	// The first sample after line setup may be unsettled.
	_ = d.readPhase()
	d.lastPhaseCode = d.readPhase()
	d.lastButton = d.lines.Button.Read()
	d.pressed = d.lastButton
}

func (d *Decoder) readPhase() uint8 {
	var code uint8
	if d.lines.PhaseA.Read() {
		code |= 1 << 1
	}
	if d.lines.PhaseB.Read() {
		code |= 1
	}
	return code
}

// Poll samples the phase lines once and applies at most one step.
func (d *Decoder) Poll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	code := d.readPhase()
	prev := d.lastPhaseCode
	if code == prev {
		return
	}
	d.lastPhaseCode = code

	dir, ok := direction[[2]uint8{prev, code}]
	if !ok {
		d.invalid++
		d.recorder.IncInvalidTransition()
		d.logger.Debug("invalid phase transition", "from", prev, "to", code)
		return
	}
	d.position = mathx.SaturatingStep(d.position, dir*d.scale[d.scaleIndex])
}

// PollButton samples the button line and reacts to raw edges.
// A press advances the scale factor; there is no debounce.
func (d *Decoder) PollButton() {
	d.mu.Lock()
	defer d.mu.Unlock()

	level := d.lines.Button.Read()
	if level == d.lastButton {
		return
	}
	d.lastButton = level
	if level {
		d.pressCount++
		d.pressed = true
		d.scaleIndex = (d.scaleIndex + 1) % len(d.scale)
		d.recorder.IncButtonPress()
		d.logger.Debug("button pressed", "count", d.pressCount, "scale", d.scale[d.scaleIndex])
		return
	}
	d.pressed = false
}

// Position returns the current position.
func (d *Decoder) Position() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position
}

// SetPosition overwrites the position, clamped to 0..255, without a rotation event.
func (d *Decoder) SetPosition(p int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.position = mathx.ClampLevel(p)
}

// ResetPosition sets the position to zero.
func (d *Decoder) ResetPosition() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.position = mathx.LevelMin
}

// ScaleFactor returns the step applied per detent.
func (d *Decoder) ScaleFactor() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scale[d.scaleIndex]
}

// CycleScaleFactor advances to the next scale factor and returns it.
func (d *Decoder) CycleScaleFactor() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scaleIndex = (d.scaleIndex + 1) % len(d.scale)
	return d.scale[d.scaleIndex]
}

// ButtonPressCount returns the number of press edges seen.
func (d *Decoder) ButtonPressCount() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pressCount
}

// ResetButtonPressCount zeroes the press counter.
func (d *Decoder) ResetButtonPressCount() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pressCount = 0
}

// ButtonPressed reports whether the button is currently held.
func (d *Decoder) ButtonPressed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pressed
}

// InvalidTransitions returns how many non-adjacent phase changes were ignored.
func (d *Decoder) InvalidTransitions() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.invalid
}

// Snapshot returns all decoder state under one lock acquisition.
func (d *Decoder) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return State{
		Position:           d.position,
		ScaleIndex:         d.scaleIndex,
		ScaleFactor:        d.scale[d.scaleIndex],
		ButtonPressCount:   d.pressCount,
		ButtonPressed:      d.pressed,
		InvalidTransitions: d.invalid,
	}
}

// RawPins reads the lines directly. Decoder state is not touched.
func (d *Decoder) RawPins() RawPins {
	return RawPins{
		PhaseA: d.lines.PhaseA.Read(),
		PhaseB: d.lines.PhaseB.Read(),
		Button: d.lines.Button.Read(),
	}
}

// Run polls the button and phase lines every poll interval until ctx is done.
func (d *Decoder) Run(ctx context.Context) error {
	ticker := d.clock.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("encoder polling started", "interval", d.interval, "position", d.Position())

	lastLogged := d.Position()
	ticks := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			d.PollButton()
			d.Poll()

			ticks++
			if ticks < d.logEvery {
				continue
			}
			ticks = 0
			if pos := d.Position(); pos != lastLogged {
				d.logger.Info("encoder position", "position", pos, "scale", d.ScaleFactor())
				lastLogged = pos
			}
		}
	}
}
