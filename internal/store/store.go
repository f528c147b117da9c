// Package store provides durable backends for persist.Store.
//
// Both backends keep the record under a namespace with the keys "pwm_en"
// and "pwm_val", so one file or database can hold several controllers.
package store

import (
	"context"
	"errors"

	"lightmixer/internal/persist"
)

// DefaultNamespace is the namespace used when none is configured.
const DefaultNamespace = "led_ctrl"

const (
	keyEnabled    = "pwm_en"
	keyBrightness = "pwm_val"
)

// ErrLocked is returned when another process holds the store.
var ErrLocked = errors.New("store: locked by another process")

// Backend is a persist.Store that can also be erased and closed.
type Backend interface {
	persist.Store
	Erase(ctx context.Context) error
	Close() error
}

var (
	_ Backend = (*File)(nil)
	_ Backend = (*SQLite)(nil)
)
