// Package mixer ties the input decoders to the actuator and the persistence
// scheduler.
//
// The loop polls snapshots at a fixed interval (default 50ms), reduces them
// into commands and executes those commands. Every PersistEvery iterations
// (default 4, so 200ms) the scheduler gets a chance to commit.
package mixer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"lightmixer/internal/encoder"
	"lightmixer/internal/metrics"
	"lightmixer/internal/persist"
)

// ErrConfig is returned by New for unusable parameters.
var ErrConfig = errors.New("mixer: invalid configuration")

const (
	DefaultInterval     = 50 * time.Millisecond
	DefaultPersistEvery = 4
)

// Encoder is the decoder view the loop needs.
type Encoder interface {
	Snapshot() encoder.State
	SetPosition(p int)
}

// Touch is the debouncer view the loop needs.
type Touch interface {
	EventCount() uint32
}

// Actuator applies one brightness to every output channel.
type Actuator interface {
	SetBrightness(v uint8) error
}

// Scheduler is the persistence view the loop needs.
type Scheduler interface {
	Load(ctx context.Context) persist.LedState
	RequestSave(candidate persist.LedState) bool
	Tick(ctx context.Context, now time.Time) error
	Flush(ctx context.Context) error
}

// Config holds loop parameters. Zero values take defaults.
type Config struct {
	Interval        time.Duration
	PersistEvery    int
	FlushOnShutdown bool
}

// Mixer is the orchestrating control loop.
type Mixer struct {
	enc      Encoder
	touch    Touch
	act      Actuator
	sched    Scheduler
	cfg      Config
	clock    clockwork.Clock
	logger   *slog.Logger
	recorder metrics.Recorder

	mu    sync.Mutex
	state State
}

// Option configures a Mixer.
type Option func(*Mixer)

// WithClock sets the clock driving Run.
func WithClock(c clockwork.Clock) Option {
	return func(m *Mixer) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mixer) { m.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(m *Mixer) { m.recorder = r }
}

// New creates a Mixer. Call Restore before Run.
func New(enc Encoder, touch Touch, act Actuator, sched Scheduler, cfg Config, opts ...Option) (*Mixer, error) {
	if enc == nil || touch == nil || act == nil || sched == nil {
		return nil, fmt.Errorf("%w: encoder, touch, actuator and scheduler are required", ErrConfig)
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("%w: loop interval must be positive, got %s", ErrConfig, cfg.Interval)
	}
	if cfg.PersistEvery == 0 {
		cfg.PersistEvery = DefaultPersistEvery
	}
	if cfg.PersistEvery < 0 {
		return nil, fmt.Errorf("%w: persist_every must be positive, got %d", ErrConfig, cfg.PersistEvery)
	}

	m := &Mixer{
		enc:      enc,
		touch:    touch,
		act:      act,
		sched:    sched,
		cfg:      cfg,
		clock:    clockwork.NewRealClock(),
		logger:   slog.New(slog.DiscardHandler),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "mixer")
	return m, nil
}

// Restore loads the persisted state, re-syncs the encoder to it and drives
// the outputs. It returns the restored state and any actuator error.
func (m *Mixer) Restore(ctx context.Context) (persist.LedState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.sched.Load(ctx)
	m.enc.SetPosition(int(st.Brightness))
	snap := m.enc.Snapshot()

	m.state = State{
		Enabled:        st.Enabled,
		Position:       st.Brightness,
		LastTouchCount: m.touch.EventCount(),
		LastScale:      snap.ScaleFactor,
	}

	duty := m.state.Duty()
	m.recorder.SetEnabled(st.Enabled)
	m.recorder.SetPosition(snap.Position)
	if err := m.act.SetBrightness(duty); err != nil {
		return st, fmt.Errorf("apply restored brightness: %w", err)
	}
	m.recorder.SetBrightness(duty)
	m.logger.Info("state restored", "enabled", st.Enabled, "brightness", st.Brightness, "duty", duty)
	return st, nil
}

// Step runs one loop iteration at now.
func (m *Mixer) Step(ctx context.Context, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.enc.Snapshot()
	m.recorder.SetPosition(snap.Position)

	events := []Event{
		Observed{Encoder: snap, TouchCount: m.touch.EventCount()},
		Tick{Now: now},
	}
	for _, ev := range events {
		rr := Reduce(m.state, ev, m.cfg.PersistEvery)
		m.state = rr.State
		for _, cmd := range rr.Commands {
			m.runEffect(ctx, cmd)
		}
	}
}

// State returns the loop state.
func (m *Mixer) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Run steps the loop every interval until ctx is done. With
// FlushOnShutdown set, a pending save is committed before returning.
func (m *Mixer) Run(ctx context.Context) error {
	ticker := m.clock.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.logger.Info("control loop started", "interval", m.cfg.Interval, "persist_every", m.cfg.PersistEvery)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("control loop stopping (context canceled)")
			if m.cfg.FlushOnShutdown {
				if err := m.sched.Flush(context.WithoutCancel(ctx)); err != nil {
					m.logger.Error("flush on shutdown failed", "error", err)
				}
			}
			return ctx.Err()
		case now := <-ticker.Chan():
			m.Step(ctx, now)
		}
	}
}
