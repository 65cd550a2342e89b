package controller

import (
	"github.com/dokzlo13/statuslight/internal/status"
)

// LoopState is what the control loop remembers between ticks.
type LoopState struct {
	LastStatus             status.Status
	LastSource             status.Source
	LastActuationSucceeded bool
	OutsideHoursHandled    bool
}

// InitialState is the state before the first tick.
func InitialState() LoopState {
	return LoopState{
		LastStatus:             status.Unknown,
		LastSource:             status.SourceUnknown,
		LastActuationSucceeded: true,
	}
}

// ShouldActuate reports whether the light must be driven for winner: the
// status changed, or the previous attempt did not reach the device.
func ShouldActuate(state LoopState, winner status.Status) bool {
	return winner != state.LastStatus || !state.LastActuationSucceeded
}

// Mode is the loop mode for one tick.
type Mode int

const (
	ModePolling Mode = iota
	ModePaused
)

// String returns a human-readable name for the mode.
func (m Mode) String() string {
	switch m {
	case ModePolling:
		return "polling"
	case ModePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Action is what a tick does to the light.
type Action int

const (
	ActionNone Action = iota
	ActionApply
	ActionTurnOff
)

// String returns a human-readable name for the action.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionApply:
		return "apply"
	case ActionTurnOff:
		return "turn_off"
	default:
		return "unknown"
	}
}

// DetermineAction decides what to do with the light this tick. winner is
// ignored in ModePaused.
func DetermineAction(state LoopState, mode Mode, winner status.Status) Action {
	switch mode {
	case ModePaused:
		if state.OutsideHoursHandled {
			return ActionNone
		}
		return ActionTurnOff
	case ModePolling:
		if ShouldActuate(state, winner) {
			return ActionApply
		}
	}
	return ActionNone
}

// Commit returns the state after a tick that ran action and got ok back.
func Commit(state LoopState, mode Mode, action Action, winner status.Status, source status.Source, ok bool) LoopState {
	switch mode {
	case ModePaused:
		state.LastStatus = status.Unknown
		if action == ActionTurnOff && ok {
			state.OutsideHoursHandled = true
		}
	case ModePolling:
		state.OutsideHoursHandled = false
		state.LastStatus = winner
		state.LastSource = source
		if action == ActionApply {
			state.LastActuationSucceeded = ok
		}
	}
	return state
}
