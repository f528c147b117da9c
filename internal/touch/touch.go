// Package touch filters a noisy capacitive touch input into confirmed
// touch state changes using a sample-count debounce.
package touch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"lightmixer/internal/gpio"
	"lightmixer/internal/metrics"
)

// ErrConfig is returned by New for unusable parameters.
var ErrConfig = errors.New("touch: invalid configuration")

const (
	DefaultThreshold    = 5
	DefaultPollInterval = 10 * time.Millisecond
)

// phase is the filter state. A differing sample moves the filter to
// counting; a sample matching the last confirmed level returns it to stable.
type phase int

const (
	phaseStable phase = iota
	phaseCounting
)

func (p phase) String() string {
	if p == phaseCounting {
		return "counting"
	}
	return "stable"
}

// Config holds debounce parameters. Zero values take defaults.
type Config struct {
	Threshold    int
	PollInterval time.Duration
}

// State is a snapshot of the debouncer.
type State struct {
	Touched    bool
	EventCount uint32
}

// Debouncer confirms a level change only after Threshold consecutive
// differing samples.
type Debouncer struct {
	line      gpio.Input
	threshold int
	interval  time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
	recorder  metrics.Recorder

	mu          sync.Mutex
	phase       phase
	counter     int
	lastSampled bool
	touched     bool
	events      uint32
}

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithClock sets the clock driving Run.
func WithClock(c clockwork.Clock) Option {
	return func(d *Debouncer) { d.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Debouncer) { d.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(d *Debouncer) { d.recorder = r }
}

// New seeds the debouncer from one sample of line. The confirmed state
// starts equal to that sample, so a finger resting on the pad at boot is
// not reported as an event.
func New(line gpio.Input, cfg Config, opts ...Option) (*Debouncer, error) {
	if line == nil {
		return nil, fmt.Errorf("%w: touch line is required", ErrConfig)
	}
	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	if threshold < 1 {
		return nil, fmt.Errorf("%w: threshold must be at least 1, got %d", ErrConfig, threshold)
	}
	interval := cfg.PollInterval
	if interval == 0 {
		interval = DefaultPollInterval
	}
	if interval < 0 {
		return nil, fmt.Errorf("%w: poll interval must be positive, got %s", ErrConfig, interval)
	}

	d := &Debouncer{
		line:      line,
		threshold: threshold,
		interval:  interval,
		clock:     clockwork.NewRealClock(),
		logger:    slog.New(slog.DiscardHandler),
		recorder:  metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "touch")

	d.lastSampled = line.Read()
	d.touched = d.lastSampled
	return d, nil
}

// Poll takes one sample and advances the filter.
func (d *Debouncer) Poll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	sample := d.line.Read()
	if sample == d.lastSampled {
		d.phase = phaseStable
		d.counter = 0
		return
	}

	d.phase = phaseCounting
	d.counter++
	if d.counter < d.threshold {
		return
	}

	d.lastSampled = sample
	d.counter = 0
	d.phase = phaseStable
	d.touched = sample
	if sample {
		d.events++
		d.recorder.IncTouchEvent()
		d.logger.Debug("touch confirmed", "events", d.events)
	}
}

// Touched returns the confirmed touch state.
func (d *Debouncer) Touched() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.touched
}

// EventCount returns the number of confirmed touch-down events.
func (d *Debouncer) EventCount() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.events
}

// ResetEventCount zeroes the event counter.
func (d *Debouncer) ResetEventCount() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = 0
}

// Snapshot returns the confirmed state and event count together.
func (d *Debouncer) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return State{Touched: d.touched, EventCount: d.events}
}

// Run polls the line every poll interval until ctx is done.
func (d *Debouncer) Run(ctx context.Context) error {
	ticker := d.clock.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("touch polling started", "interval", d.interval, "threshold", d.threshold)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			d.Poll()
		}
	}
}
