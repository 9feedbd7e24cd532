package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	ModemState and the settings/S-register block (spec.md §3).
 *
 *---------------------------------------------------------------*/

import "fmt"

// ModemState is L1's top-level mode.
type ModemState int

const (
	StateCommand ModemState = iota
	StateOnline
	StateConnecting
	StateRinging
	StateDisconnected
)

func (s ModemState) String() string {
	switch s {
	case StateCommand:
		return "COMMAND"
	case StateOnline:
		return "ONLINE"
	case StateConnecting:
		return "CONNECTING"
	case StateRinging:
		return "RINGING"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return fmt.Sprintf("ModemState(%d)", int(s))
	}
}

// ResultMode selects numeric (V0) vs verbose (V1) response formatting.
type ResultMode int

const (
	ResultVerbose ResultMode = iota
	ResultNumeric
)

// DCDMode mirrors the &C setting: 0 freezes DCD high locally, 1 tracks
// the real carrier.
type DCDMode int

const (
	DCDForceHigh DCDMode = 0
	DCDTracksCarrier DCDMode = 1
)

// DTRMode mirrors the &D setting.
type DTRMode int

const (
	DTRIgnore      DTRMode = 0
	DTRToCommand   DTRMode = 1
	DTRHangup      DTRMode = 2
	DTRResetHangup DTRMode = 3
)

// ModemSettings holds every AT-configurable field: S-registers and the
// letter flags (spec.md §3 "Auxiliary").
type ModemSettings struct {
	SRegisters [256]byte

	Echo    bool // E
	Verbose bool // V  (kept in sync with Result for convenience)
	Quiet   bool // Q
	Result  ResultMode
	XLevel  int // X0-X4, result-code filtering (§4.3.2)
	DCD     DCDMode
	DTR     DTRMode
}

// S-register indices that are semantically live, per spec.md §3.
const (
	SRegAutoAnswer   = 0 // S0: rings before auto-answer
	SRegRingCount    = 1 // S1: ring counter (not user-set, but addressable)
	SRegEscapeChar   = 2 // S2: +++ escape character
	SRegCR           = 3
	SRegLF           = 4
	SRegBS           = 5
	SRegEscapeGuard  = 12 // S12: guard time in 50ms ticks
)

// DefaultModemSettings returns the factory-default settings (ATZ target).
func DefaultModemSettings() ModemSettings {
	var s ModemSettings
	s.SRegisters[SRegAutoAnswer] = 0
	s.SRegisters[SRegEscapeChar] = '+'
	s.SRegisters[SRegCR] = '\r'
	s.SRegisters[SRegLF] = '\n'
	s.SRegisters[SRegBS] = 8
	s.SRegisters[SRegEscapeGuard] = 20 // 20 * 50ms = 1000ms
	s.Echo = true
	s.Verbose = true
	s.Result = ResultVerbose
	s.XLevel = 1
	s.DCD = DCDTracksCarrier
	s.DTR = DTRToCommand
	return s
}
