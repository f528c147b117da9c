// Package persist schedules durable writes of the LED state.
//
// Changes are coalesced into a single pending slot and committed only after
// the value has been stable for the debounce window, so a user turning the
// knob produces one write instead of dozens. The last acknowledged value is
// kept as a baseline; requests equal to it are dropped.
package persist

import (
	"context"
	"errors"
	"fmt"
)

// Default persisted values used when the store holds nothing usable.
const (
	DefaultEnabled    = true
	DefaultBrightness = 155
)

// ErrNotFound is returned by Store.Load when nothing has been committed yet.
var ErrNotFound = errors.New("persist: no stored state")

// ErrConfig is returned by NewScheduler for unusable parameters.
var ErrConfig = errors.New("persist: invalid configuration")

// ErrCommit marks a failed durable write. The pending value is retained.
var ErrCommit = errors.New("persist: commit failed")

// LedState is the durably persisted output state.
type LedState struct {
	Enabled    bool
	Brightness uint8
}

// DefaultLedState returns the state used when nothing is stored.
func DefaultLedState() LedState {
	return LedState{Enabled: DefaultEnabled, Brightness: DefaultBrightness}
}

func (s LedState) String() string {
	return fmt.Sprintf("enabled=%t brightness=%d", s.Enabled, s.Brightness)
}

// Store is a durable record of one LedState. Commit must either replace the
// previous record entirely or leave it untouched.
type Store interface {
	Load(ctx context.Context) (LedState, error)
	Commit(ctx context.Context, s LedState) error
}

// CommitError reports a failed commit of Candidate.
type CommitError struct {
	Candidate LedState
	Err       error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("persist: commit %s: %v", e.Candidate, e.Err)
}

func (e *CommitError) Unwrap() []error {
	return []error{ErrCommit, e.Err}
}
