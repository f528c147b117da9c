package mixer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"lightmixer/internal/encoder"
	"lightmixer/internal/persist"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubEncoder struct {
	mu    sync.Mutex
	state encoder.State
}

func (e *stubEncoder) Snapshot() encoder.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *stubEncoder) SetPosition(p int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Position = uint8(p)
}

func (e *stubEncoder) turnTo(p uint8) { e.SetPosition(int(p)) }

type stubTouch struct {
	mu    sync.Mutex
	count uint32
}

func (t *stubTouch) EventCount() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

func (t *stubTouch) tap() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count++
}

type stubActuator struct {
	mu     sync.Mutex
	duties []uint8
}

func (a *stubActuator) SetBrightness(v uint8) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.duties = append(a.duties, v)
	return nil
}

func (a *stubActuator) last() uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.duties) == 0 {
		return 0
	}
	return a.duties[len(a.duties)-1]
}

type memStore struct {
	mu      sync.Mutex
	state   *persist.LedState
	commits []persist.LedState
}

func (m *memStore) Load(context.Context) (persist.LedState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return persist.LedState{}, persist.ErrNotFound
	}
	return *m.state, nil
}

func (m *memStore) Commit(_ context.Context, s persist.LedState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = &s
	m.commits = append(m.commits, s)
	return nil
}

func (m *memStore) Commits() []persist.LedState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]persist.LedState(nil), m.commits...)
}

type harness struct {
	enc   *stubEncoder
	touch *stubTouch
	act   *stubActuator
	store *memStore
	sched *persist.Scheduler
	clock *clockwork.FakeClock
	mixer *Mixer
}

func newHarness(t *testing.T, stored *persist.LedState, cfg Config) *harness {
	t.Helper()
	h := &harness{
		enc:   &stubEncoder{state: encoder.State{ScaleFactor: 1}},
		touch: &stubTouch{},
		act:   &stubActuator{},
		store: &memStore{state: stored},
		clock: clockwork.NewFakeClock(),
	}
	var err error
	h.sched, err = persist.NewScheduler(h.store, persist.DefaultConfig(), persist.WithClock(h.clock))
	require.NoError(t, err)
	h.mixer, err = New(h.enc, h.touch, h.act, h.sched, cfg, WithClock(h.clock))
	require.NoError(t, err)
	return h
}

// step advances the clock by one loop interval and runs an iteration.
func (h *harness) step(ctx context.Context) {
	h.clock.Advance(DefaultInterval)
	h.mixer.Step(ctx, h.clock.Now())
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	h := newHarness(t, &persist.LedState{Enabled: true, Brightness: 42}, Config{})
	st, err := h.mixer.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, persist.LedState{Enabled: true, Brightness: 42}, st)
	assert.Equal(t, uint8(42), h.enc.Snapshot().Position)
	assert.Equal(t, uint8(42), h.act.last())

	h = newHarness(t, &persist.LedState{Enabled: false, Brightness: 42}, Config{})
	_, err = h.mixer.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(42), h.enc.Snapshot().Position)
	assert.Equal(t, uint8(0), h.act.last())

	h = newHarness(t, nil, Config{})
	st, err = h.mixer.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, persist.DefaultLedState(), st)
	assert.Equal(t, uint8(155), h.act.last())
}

// TestStep_RotationCommitsOnce tests that a burst of rotation is applied
// immediately and persisted with a single commit after the window
func TestStep_RotationCommitsOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, Config{})
	_, err := h.mixer.Restore(ctx)
	require.NoError(t, err)

	for p := 160; p <= 200; p += 10 {
		h.enc.turnTo(uint8(p))
		h.step(ctx)
		assert.Equal(t, uint8(p), h.act.last())
	}

	// 4.95s after the last change: not yet.
	for i := 0; i < 99; i++ {
		h.step(ctx)
	}
	assert.Empty(t, h.store.Commits())

	for i := 0; i < 8; i++ {
		h.step(ctx)
	}
	assert.Equal(t, []persist.LedState{{Enabled: true, Brightness: 200}}, h.store.Commits())
	assert.Equal(t, persist.LedState{Enabled: true, Brightness: 200}, h.sched.LastCommitted())
}

// TestStep_TouchToggle tests that touch turns the output off and back on at
// the last position, and that rotation while off is ignored
func TestStep_TouchToggle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &persist.LedState{Enabled: true, Brightness: 100}, Config{})
	_, err := h.mixer.Restore(ctx)
	require.NoError(t, err)

	h.touch.tap()
	h.step(ctx)
	assert.Equal(t, uint8(0), h.act.last())
	assert.False(t, h.mixer.State().Enabled)

	h.enc.turnTo(30)
	h.step(ctx)
	assert.Equal(t, uint8(0), h.act.last())

	h.touch.tap()
	h.step(ctx)
	assert.True(t, h.mixer.State().Enabled)
	assert.Equal(t, uint8(30), h.act.last())

	for i := 0; i < 120; i++ {
		h.step(ctx)
	}
	assert.Equal(t, []persist.LedState{{Enabled: true, Brightness: 30}}, h.store.Commits())
}

// TestStep_DoubleTapKeepsStoredState tests that switching off and straight
// back on leaves the stored state untouched
func TestStep_DoubleTapKeepsStoredState(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &persist.LedState{Enabled: true, Brightness: 100}, Config{})
	_, err := h.mixer.Restore(ctx)
	require.NoError(t, err)

	h.touch.tap()
	h.step(ctx)
	h.touch.tap()
	h.step(ctx)

	for i := 0; i < 200; i++ {
		h.step(ctx)
	}
	assert.True(t, h.mixer.State().Enabled)
	assert.Equal(t, uint8(100), h.act.last())
	assert.Empty(t, h.store.Commits())
	assert.Equal(t, persist.LedState{Enabled: true, Brightness: 100}, h.sched.LastCommitted())
}

// TestRun_StopsAndFlushes tests the ticker-driven loop, clean shutdown and
// the opt-in flush of a pending save
func TestRun_StopsAndFlushes(t *testing.T) {
	for _, flush := range []bool{false, true} {
		h := newHarness(t, nil, Config{FlushOnShutdown: flush})
		ctx, cancel := context.WithCancel(context.Background())
		_, err := h.mixer.Restore(ctx)
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() { done <- h.mixer.Run(ctx) }()
		require.NoError(t, h.clock.BlockUntilContext(ctx, 1))

		h.enc.turnTo(77)
		h.clock.Advance(DefaultInterval)
		require.Eventually(t, func() bool { return h.act.last() == 77 }, time.Second, time.Millisecond)

		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)

		if flush {
			assert.Equal(t, []persist.LedState{{Enabled: true, Brightness: 77}}, h.store.Commits())
		} else {
			assert.Empty(t, h.store.Commits())
		}
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(nil, &stubTouch{}, &stubActuator{}, nil, Config{})
	assert.ErrorIs(t, err, ErrConfig)

	h := newHarness(t, nil, Config{})
	_, err = New(h.enc, h.touch, h.act, h.sched, Config{Interval: -time.Second})
	assert.ErrorIs(t, err, ErrConfig)
}
