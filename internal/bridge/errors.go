package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Error taxonomy for the bridge runtime (see SPEC_FULL.md §10.2).
 *
 *		Errors are returned, never panicked, except for the
 *		programmer-error assertions in util.go. Callers use
 *		errors.Is against these sentinels to decide whether local
 *		recovery applies or the error must surface further up.
 *
 *---------------------------------------------------------------*/

import "errors"

var (
	// ErrNoCarrier is returned/observed when the modem reports loss of
	// carrier (DCD falling edge or a "NO CARRIER" unsolicited message).
	ErrNoCarrier = errors.New("bridge: no carrier")

	// ErrPortClosed is returned by SerialPort operations after Close
	// or after an I/O error has forced the port shut.
	ErrPortClosed = errors.New("bridge: serial port closed")

	// ErrBufferFull names a write that could not accept the full
	// payload. The ring and double buffers do not return it: they
	// report partial acceptance as a short byte count instead.
	ErrBufferFull = errors.New("bridge: buffer full")

	// ErrInvalidTransition is returned when a state machine (modem or
	// system) is asked to move to a state not reachable from its
	// current one.
	ErrInvalidTransition = errors.New("bridge: invalid state transition")

	// ErrTimeout is returned by any bounded wait that expired before
	// its condition was satisfied (AT response, write, state deadline).
	ErrTimeout = errors.New("bridge: timed out")

	// ErrNotConnected is returned by telnet session operations invoked
	// outside the CONNECTED state.
	ErrNotConnected = errors.New("bridge: telnet session not connected")
)

// ModemProtocolError wraps one of the Hayes result codes that signals a
// failed call attempt (BUSY, NO ANSWER, NO DIALTONE, ERROR). The modem
// controller handles these codes in classifyUnsolicited without
// constructing this type; nothing in the package returns it.
type ModemProtocolError struct {
	Code string
}

func (e *ModemProtocolError) Error() string {
	return "bridge: modem protocol error: " + e.Code
}
