package mixer

import (
	"fmt"
	"time"

	"lightmixer/internal/encoder"
	"lightmixer/internal/mathx"
	"lightmixer/internal/persist"
)

// This file holds the pure half of the loop:
//
//   - Events: what the loop observed (input snapshots, clock ticks)
//   - Commands: side effects to perform (actuator writes, save requests)
//   - Reduce(): next state + commands, without I/O
//
// The Mixer executes commands in effects.go.

// State is the loop-owned view of the output.
type State struct {
	// Enabled is the touch-toggled output switch.
	Enabled bool
	// Position is the last encoder position applied to the output. While
	// disabled it is frozen, and re-enabling restores it.
	Position uint8
	// LastTouchCount is the touch event count already acted upon.
	LastTouchCount uint32
	// LastScale is the scale factor last reported.
	LastScale int
	// Ticks counts loop iterations since the last persistence tick.
	Ticks int
}

// LedState is the persisted form of s.
func (s State) LedState() persist.LedState {
	return persist.LedState{Enabled: s.Enabled, Brightness: s.Position}
}

// Duty is the brightness the actuator should show for s.
func (s State) Duty() uint8 {
	if !s.Enabled {
		return mathx.LevelMin
	}
	return s.Position
}

// ==============================
// Events
// ==============================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// Observed carries one round of input snapshots.
type Observed struct {
	Encoder    encoder.State
	TouchCount uint32
}

func (Observed) eventMarker() {}

// Tick is emitted once per loop iteration after inputs are observed.
type Tick struct {
	Now time.Time
}

func (Tick) eventMarker() {}

// ==============================
// Commands
// ==============================

// Command is a side effect requested by the reducer.
type Command interface {
	commandMarker()
	String() string
}

// CmdApplyBrightness drives both actuator channels.
type CmdApplyBrightness struct {
	Duty   uint8
	Reason string
}

func (CmdApplyBrightness) commandMarker() {}
func (c CmdApplyBrightness) String() string {
	return fmt.Sprintf("CmdApplyBrightness(duty=%d, reason=%s)", c.Duty, c.Reason)
}

// CmdRequestSave offers the state to the persistence scheduler.
type CmdRequestSave struct {
	State persist.LedState
}

func (CmdRequestSave) commandMarker() {}
func (c CmdRequestSave) String() string {
	return fmt.Sprintf("CmdRequestSave(%s)", c.State)
}

// CmdPersistTick lets the scheduler commit a settled value.
type CmdPersistTick struct {
	Now time.Time
}

func (CmdPersistTick) commandMarker() {}
func (c CmdPersistTick) String() string {
	return fmt.Sprintf("CmdPersistTick(now=%s)", c.Now.Format(time.RFC3339Nano))
}

// CmdReportScale announces a new encoder scale factor.
type CmdReportScale struct {
	Factor int
}

func (CmdReportScale) commandMarker() {}
func (c CmdReportScale) String() string {
	return fmt.Sprintf("CmdReportScale(factor=%d)", c.Factor)
}

// ==============================
// Reducer
// ==============================

// ReduceResult is the next state plus the commands to execute, in order.
type ReduceResult struct {
	State    State
	Commands []Command
}

// Reduce is the pure reducer. persistEvery is the number of ticks between
// persistence ticks.
//
// A change in the touch event count toggles the output. A change in encoder
// position is applied only while enabled. Every applied change is offered
// for saving.
func Reduce(s State, e Event, persistEvery int) ReduceResult {
	var cmds []Command

	switch ev := e.(type) {
	case Observed:
		if ev.TouchCount != s.LastTouchCount {
			s.LastTouchCount = ev.TouchCount
			s.Enabled = !s.Enabled
			reason := "touch off"
			if s.Enabled {
				reason = "touch on"
			}
			cmds = append(cmds,
				CmdApplyBrightness{Duty: s.Duty(), Reason: reason},
				CmdRequestSave{State: s.LedState()},
			)
		}

		if ev.Encoder.ScaleFactor != s.LastScale {
			s.LastScale = ev.Encoder.ScaleFactor
			cmds = append(cmds, CmdReportScale{Factor: s.LastScale})
		}

		if s.Enabled && ev.Encoder.Position != s.Position {
			s.Position = ev.Encoder.Position
			cmds = append(cmds,
				CmdApplyBrightness{Duty: s.Duty(), Reason: "encoder"},
				CmdRequestSave{State: s.LedState()},
			)
		}

	case Tick:
		s.Ticks++
		if persistEvery <= 0 || s.Ticks >= persistEvery {
			s.Ticks = 0
			cmds = append(cmds, CmdPersistTick{Now: ev.Now})
		}
	}

	return ReduceResult{State: s, Commands: cmds}
}
