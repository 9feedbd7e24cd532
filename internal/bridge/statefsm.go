package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	L3 system state machine (spec.md §4.5.1).
 *
 * Description:	Ties DCD edges, telnet connect completion, and buffer
 *		drain state to one top-level SystemState. Each state has a
 *		deadline and a recovery transition fired when the deadline
 *		is exceeded without the natural trigger occurring, modeled
 *		on the teacher's link-state-machine pattern in the AX.25
 *		connector code (per-state timers with a fallback
 *		transition) generalized to this system's ten states.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"time"
)

// SystemState is L3's top-level state (spec.md §4.5.1).
type SystemState int

const (
	StateUninitialized SystemState = iota
	StateInitializing
	StateReady
	StateConnectingTelnet
	StateNegotiating
	StateDataTransfer
	StateFlushing
	StateShuttingDown
	StateTerminated
	StateError
)

func (s SystemState) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateInitializing:
		return "INITIALIZING"
	case StateReady:
		return "READY"
	case StateConnectingTelnet:
		return "CONNECTING"
	case StateNegotiating:
		return "NEGOTIATING"
	case StateDataTransfer:
		return "DATA_TRANSFER"
	case StateFlushing:
		return "FLUSHING"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	case StateTerminated:
		return "TERMINATED"
	case StateError:
		return "ERROR"
	default:
		return fmt.Sprintf("SystemState(%d)", int(s))
	}
}

// stateDeadlines holds the default per-state timeout (spec.md §4.5.1).
var stateDeadlines = map[SystemState]time.Duration{
	StateInitializing:    5 * time.Second,
	StateConnectingTelnet: 15 * time.Second,
	StateNegotiating:      10 * time.Second,
	StateFlushing:         5 * time.Second,
	StateShuttingDown:     5 * time.Second,
}

// validTransitions is the table from spec.md §4.5.1; no self-loops, all
// others rejected.
var validTransitions = map[SystemState]map[SystemState]bool{
	StateUninitialized:   {StateInitializing: true},
	StateInitializing:    {StateReady: true, StateError: true},
	StateReady:           {StateConnectingTelnet: true, StateShuttingDown: true, StateError: true},
	StateConnectingTelnet: {StateNegotiating: true, StateDataTransfer: true, StateReady: true, StateError: true},
	StateNegotiating:     {StateDataTransfer: true, StateConnectingTelnet: true, StateError: true},
	StateDataTransfer:    {StateFlushing: true, StateShuttingDown: true, StateError: true},
	StateFlushing:        {StateTerminated: true, StateShuttingDown: true, StateError: true},
	StateShuttingDown:    {StateTerminated: true, StateError: true},
	StateTerminated:      {},
	StateError:           {StateReady: true, StateShuttingDown: true, StateTerminated: true},
}

// recoveryTarget is the transition fired automatically when a state's
// deadline is exceeded without its natural trigger.
var recoveryTarget = map[SystemState]SystemState{
	StateInitializing:     StateReady,
	StateConnectingTelnet: StateReady,
	StateNegotiating:      StateDataTransfer, // also sets negotiationComplete = true
	StateFlushing:         StateShuttingDown,
	StateShuttingDown:     StateTerminated,
}

// SystemFSM holds the current state, its entry time, and the one-shot
// flags the L3 loop consumes (spec.md "DCD edges delivered in
// occurrence order ... rising flag is one-shot").
type SystemFSM struct {
	state            SystemState
	enteredAt        time.Time
	negotiationComplete bool

	dcdState         bool
	dcdRisingPending bool

	telnetRetryAttempted bool
	telnetLastAttempt    time.Time
	transitionLogged     bool

	onEnterDataTransfer func()
	onExitDataTransfer  func()
}

// NewSystemFSM starts in UNINITIALIZED.
func NewSystemFSM() *SystemFSM {
	return &SystemFSM{state: StateUninitialized, enteredAt: time.Now()}
}

// State returns the current state.
func (f *SystemFSM) State() SystemState { return f.state }

// Transition attempts from->to per the table, rejecting invalid moves
// (including self-loops, which appear in no table row).
func (f *SystemFSM) Transition(to SystemState) error {
	allowed := validTransitions[f.state]
	if !allowed[to] {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, f.state, to)
	}

	leaving := f.state
	if leaving == StateDataTransfer && f.onExitDataTransfer != nil {
		f.onExitDataTransfer()
	}

	f.state = to
	f.enteredAt = time.Now()
	f.transitionLogged = false

	if to == StateDataTransfer && f.onEnterDataTransfer != nil {
		f.onEnterDataTransfer()
	}
	l3log.Info("state transition", "from", leaving, "to", to)
	return nil
}

// NotifyDCD records a carrier edge; L3's tick loop consumes the rising
// flag at most once (spec.md "rising flag is one-shot, falling is
// derived from dcd_state").
func (f *SystemFSM) NotifyDCD(rising bool) {
	f.dcdState = rising
	if rising {
		f.dcdRisingPending = true
	}
}

// Tick evaluates triggers and deadlines for the current iteration. It
// should be called once per scheduler loop iteration.
func (f *SystemFSM) Tick(telnetConnected bool, telnetConnecting bool, buffersEmpty bool) {
	switch f.state {
	case StateReady:
		if f.dcdRisingPending {
			f.dcdRisingPending = false
			_ = f.Transition(StateConnectingTelnet)
			f.telnetRetryAttempted = false
			return
		}
	case StateConnectingTelnet:
		if telnetConnected {
			_ = f.Transition(StateDataTransfer)
			return
		}
		if !telnetConnecting && !f.telnetRetryAttempted {
			if time.Since(f.telnetLastAttempt) >= 2*time.Second {
				f.telnetRetryAttempted = true
				f.telnetLastAttempt = time.Now()
			}
		}
	case StateDataTransfer:
		if !f.dcdState {
			_ = f.Transition(StateFlushing)
			return
		}
	case StateFlushing:
		if buffersEmpty {
			_ = f.Transition(StateShuttingDown)
			return
		}
	}

	f.checkDeadline()
}

func (f *SystemFSM) checkDeadline() {
	deadline, ok := stateDeadlines[f.state]
	if !ok {
		return
	}
	if time.Since(f.enteredAt) < deadline {
		return
	}
	target, ok := recoveryTarget[f.state]
	if !ok {
		return
	}
	l3log.Warn("state deadline exceeded, recovering", "state", f.state, "to", target)
	if f.state == StateNegotiating {
		f.negotiationComplete = true
	}
	_ = f.Transition(target)
}
