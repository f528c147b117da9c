// Package gpio provides digital input reading with a hardware abstraction.
// The rpio implementation talks to the Raspberry Pi GPIO block; the fake
// implementation lets the control loop run and be tested without hardware.
package gpio

import "sync"

// Input reads the logic level of one digital line.
// No debouncing happens at this layer.
type Input interface {
	Read() bool
}

// Pull selects the input bias resistor.
type Pull int

const (
	PullOff Pull = iota
	PullUp
	PullDown
)

func (p Pull) String() string {
	switch p {
	case PullUp:
		return "up"
	case PullDown:
		return "down"
	default:
		return "off"
	}
}

// ParsePull maps a config value onto a Pull.
func ParsePull(s string) (Pull, bool) {
	switch s {
	case "", "off", "none":
		return PullOff, true
	case "up":
		return PullUp, true
	case "down":
		return PullDown, true
	default:
		return PullOff, false
	}
}

type inverted struct{ in Input }

// Inverted returns an Input reporting the logical inverse of in.
// Use it for active-low lines so callers only ever see "asserted == true".
func Inverted(in Input) Input {
	return inverted{in: in}
}

func (i inverted) Read() bool { return !i.in.Read() }

// Fake is a settable Input. Queued levels are returned one per Read before
// falling back to the steady level.
//
// Safe for concurrent use.
type Fake struct {
	mu     sync.Mutex
	level  bool
	queue  []bool
	nreads int
}

// NewFake creates a Fake reading level.
func NewFake(level bool) *Fake {
	return &Fake{level: level}
}

func (f *Fake) Read() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nreads++
	if len(f.queue) > 0 {
		v := f.queue[0]
		f.queue = f.queue[1:]
		return v
	}
	return f.level
}

// Set changes the steady level and drops any queued levels.
func (f *Fake) Set(level bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.level = level
	f.queue = nil
}

// Queue appends levels to be returned by subsequent reads.
func (f *Fake) Queue(levels ...bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, levels...)
}

// Reads returns how many times the line was sampled.
func (f *Fake) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nreads
}
