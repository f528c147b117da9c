package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"lightmixer/internal/metrics"
)

// DefaultDebounceWindow is how long a value must stay unchanged before commit.
const DefaultDebounceWindow = 5 * time.Second

// Config holds scheduler parameters.
type Config struct {
	DebounceWindow time.Duration
	Defaults       LedState
}

// DefaultConfig returns the stock window and defaults.
func DefaultConfig() Config {
	return Config{
		DebounceWindow: DefaultDebounceWindow,
		Defaults:       DefaultLedState(),
	}
}

// pendingWrite is the single coalescing slot.
type pendingWrite struct {
	candidate   LedState
	requestedAt time.Time
	active      bool
}

// Scheduler coalesces save requests and commits them once stable.
//
// Thread-safe. The lock is held across Store.Commit so a request arriving
// during a write waits for the baseline to settle.
type Scheduler struct {
	store    Store
	window   time.Duration
	defaults LedState
	clock    clockwork.Clock
	logger   *slog.Logger
	recorder metrics.Recorder

	mu       sync.Mutex
	baseline LedState
	pending  pendingWrite
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used to stamp requests.
func WithClock(c clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// NewScheduler creates a scheduler over store. The baseline starts at
// cfg.Defaults until Load is called.
func NewScheduler(store Store, cfg Config, opts ...Option) (*Scheduler, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrConfig)
	}
	if cfg.DebounceWindow < 0 {
		return nil, fmt.Errorf("%w: debounce window must not be negative, got %s", ErrConfig, cfg.DebounceWindow)
	}
	s := &Scheduler{
		store:    store,
		window:   cfg.DebounceWindow,
		defaults: cfg.Defaults,
		baseline: cfg.Defaults,
		clock:    clockwork.NewRealClock(),
		logger:   slog.New(slog.DiscardHandler),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "persist")
	return s, nil
}

// Load reads the stored state once at startup and makes it the baseline.
// A missing or unreadable record yields the configured defaults.
func (s *Scheduler) Load(ctx context.Context) LedState {
	st, err := s.store.Load(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		s.logger.Info("no stored state, using defaults", "state", s.defaults)
		st = s.defaults
	case err != nil:
		s.logger.Warn("failed to load stored state, using defaults", "error", err, "state", s.defaults)
		st = s.defaults
	default:
		s.logger.Info("restored state", "state", st)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseline = st
	s.pending = pendingWrite{}
	return st
}

// RequestSave offers a candidate for persistence. It reports whether the
// pending slot was opened or replaced. A candidate equal to the committed
// baseline drops any pending value, since the store already holds it. A
// candidate equal to the value already pending is ignored and the stability
// window keeps its original start.
func (s *Scheduler) RequestSave(candidate LedState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if candidate == s.baseline {
		if s.pending.active {
			s.logger.Debug("pending save dropped, back to committed state", "state", candidate, "dropped", s.pending.candidate)
			s.pending = pendingWrite{}
		}
		return false
	}
	if s.pending.active && s.pending.candidate == candidate {
		return false
	}
	s.pending = pendingWrite{
		candidate:   candidate,
		requestedAt: s.clock.Now(),
		active:      true,
	}
	s.recorder.IncSaveRequest()
	s.logger.Debug("save scheduled", "state", candidate, "window", s.window)
	return true
}

// Tick commits the pending value if it has been stable for the window.
// A failed commit returns a *CommitError and keeps the pending value with
// its original request time, so the next Tick retries immediately.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pending.active || now.Sub(s.pending.requestedAt) < s.window {
		return nil
	}
	return s.commitLocked(ctx)
}

// Flush commits any pending value immediately, ignoring the window.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pending.active {
		return nil
	}
	return s.commitLocked(ctx)
}

func (s *Scheduler) commitLocked(ctx context.Context) error {
	candidate := s.pending.candidate
	if err := s.store.Commit(ctx, candidate); err != nil {
		s.recorder.IncCommit(false)
		s.logger.Error("commit failed, will retry", "state", candidate, "error", err)
		return &CommitError{Candidate: candidate, Err: err}
	}
	s.recorder.IncCommit(true)
	s.baseline = candidate
	s.pending = pendingWrite{}
	s.logger.Info("state committed", "state", candidate)
	return nil
}

// LastCommitted returns the baseline.
func (s *Scheduler) LastCommitted() LedState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseline
}

// Pending returns the pending candidate, if any.
func (s *Scheduler) Pending() (LedState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.candidate, s.pending.active
}
