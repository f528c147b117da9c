// Package mathx holds the small numeric helpers shared by the control loop.
package mathx

import "golang.org/x/exp/constraints"

// Level bounds for 8-bit positions, brightness and PWM duty.
const (
	LevelMin = 0
	LevelMax = 255
)

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampLevel clamps v to the 8-bit level range and narrows it.
func ClampLevel[T constraints.Integer](v T) uint8 {
	// Widen before comparing so uint8 and int8 inputs cannot wrap.
	w := int64(v)
	if v > 0 && uint64(v) > LevelMax {
		return LevelMax
	}
	return uint8(Clamp(w, LevelMin, LevelMax))
}

// SaturatingStep moves v by delta and saturates at the 8-bit level bounds.
func SaturatingStep(v uint8, delta int) uint8 {
	return ClampLevel(int(v) + delta)
}
