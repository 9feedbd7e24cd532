package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Hayes filter for the serial→telnet direction (spec.md
 *		§3 HayesFilterContext, §4.5.2).
 *
 * Description:	Two modes. In COMMAND mode, complete lines are checked
 *		against the Hayes dictionary: recognized AT lines (and
 *		their terminating result code) are suppressed so the modem
 *		chatter never reaches the telnet side; unrecognized lines
 *		pass through untouched. In ONLINE mode (FilterOnline) there
 *		is no line assembly: the filter only watches for the +++
 *		escape sequence, and every other byte is forwarded the
 *		instant it arrives. AT commands that appear in online data
 *		are neither detected nor blocked.
 *
 *		Per SPEC_FULL.md §13 Open Question #2, this filter is used
 *		twice: inside the modem controller (+++ escape detection)
 *		and authoritatively inside the L3 pipeline. Both uses share
 *		this same type.
 *
 *---------------------------------------------------------------*/

import (
	"strings"
	"time"
)

type hayesState int

const (
	hayesNormal hayesState = iota
	hayesCommand
	hayesCRWait
	hayesLFWait
	hayesResult
)

const maxHayesLine = 1024

// hayesDictEntry describes one recognized AT command or result code.
type hayesDictEntry struct {
	ends bool // ends_command_mode: true for CONNECT
}

// hayesCommandPrefixes lists the first tokens of every AT command form
// in spec.md §4.5.2's dictionary. Matching is by prefix against the
// letter(s) right after AT, case-insensitively, which is enough to
// recognize ATA, ATB0/1, ATD, ATE0/1, ATH0/1, ATI0-9, ATL0-3, ATM0-3,
// ATO, ATQ0/1, ATS<n>, ATV0/1, ATX0-4, ATZ0/1, AT&C0/1, AT&D0-3, AT&F,
// AT&V, AT&W0/1, AT&S0/1.
var hayesCommandPrefixes = []string{
	"A", "B", "D", "E", "H", "I", "L", "M", "O", "Q", "S", "V", "X", "Z",
	"&C", "&D", "&F", "&V", "&W", "&S",
}

var hayesResultCodes = map[string]hayesDictEntry{
	"OK":          {},
	"ERROR":       {},
	"CONNECT":     {ends: true},
	"NO CARRIER":  {},
	"NO DIALTONE": {},
	"BUSY":        {},
	"NO ANSWER":   {},
	"RING":        {},
	"DELAYED":     {},
	"BLACKLISTED": {},
}

// HayesFilterContext is per-pipeline-direction state (spec.md §3).
type HayesFilterContext struct {
	state         hayesState
	inOnlineMode  bool
	lineBuf       []byte
	expectResult  bool // just classified an AT line, waiting to eat the result code too

	settings *ModemSettings

	plusCount     int
	plusStart     time.Time
	lastCharTime  time.Time

	// EscapeDetected is set by FilterOnline when a full +++ sequence
	// completes; the caller (modem controller) reacts by switching to
	// COMMAND mode and is responsible for clearing the flag.
	EscapeDetected bool
}

// NewHayesFilterContext builds a filter sharing the given modem
// settings (for S2/S12 escape parameters).
func NewHayesFilterContext(settings *ModemSettings) *HayesFilterContext {
	return &HayesFilterContext{settings: settings, lineBuf: make([]byte, 0, maxHayesLine)}
}

// SetOnlineMode is called by the system state machine on DATA_TRANSFER
// entry/exit (spec.md §4.5.1 "Entry/exit of DATA_TRANSFER toggles
// hayes_ctx.in_online_mode").
func (h *HayesFilterContext) SetOnlineMode(online bool) {
	h.inOnlineMode = online
	h.lineBuf = h.lineBuf[:0]
	h.plusCount = 0
}

// FilterCommandMode processes bytes arriving while in COMMAND mode,
// appends the passthrough bytes it decides belong in the output, and
// returns them.
func (h *HayesFilterContext) FilterCommandMode(in []byte) []byte {
	out := make([]byte, 0, len(in))
	for _, b := range in {
		out = append(out, h.stepCommand(b)...)
	}
	return out
}

func (h *HayesFilterContext) stepCommand(b byte) []byte {
	if b == '\n' && len(h.lineBuf) == 0 {
		// Bare LF with nothing buffered: pass through (e.g. LF-only peers).
		return []byte{b}
	}
	if b != '\r' && b != '\n' {
		if len(h.lineBuf) >= maxHayesLine {
			// Overflow: flush raw and reset (spec.md §4.5.2).
			out := append([]byte{}, h.lineBuf...)
			out = append(out, b)
			h.lineBuf = h.lineBuf[:0]
			return out
		}
		h.lineBuf = append(h.lineBuf, b)
		return nil
	}

	line := string(h.lineBuf)
	h.lineBuf = h.lineBuf[:0]

	if isHayesATLine(line) {
		// Suppress the line itself; also swallow the next complete
		// line if it is a recognized result code terminator.
		h.expectResult = true
		return nil
	}
	if h.expectResult {
		h.expectResult = false
		if _, known := hayesResultCodes[strings.ToUpper(strings.TrimSpace(line))]; known {
			return nil
		}
	}

	out := append([]byte(line), b)
	return out
}

// isHayesATLine reports whether line looks like "AT..." followed by a
// valid command character, per spec.md §4.5.2.
func isHayesATLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "AT") {
		return false
	}
	if len(upper) == 2 {
		return true // bare "AT"
	}
	c := upper[2]
	if isLetter(c) || isDigit(c) || strings.ContainsRune("+&%\\*#", rune(c)) {
		for _, p := range hayesCommandPrefixes {
			if strings.HasPrefix(upper[2:], p) {
				return true
			}
		}
		// Unknown letter after AT: still an AT-shaped line, passed
		// through by the caller's "unknown -> pass through" rule, so
		// report false here and let it flow as ordinary data.
		return false
	}
	return false
}

func isLetter(c byte) bool { return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') }

// FilterOnline processes bytes arriving while ONLINE. It returns the
// bytes to forward immediately (everything except a completed +++
// trigger) and updates EscapeDetected when the guard-timed 3-plus
// sequence completes (spec.md §4.3 "Escape sequence +++").
func (h *HayesFilterContext) FilterOnline(in []byte, now time.Time) []byte {
	out := make([]byte, 0, len(in))
	escapeChar := h.settings.SRegisters[SRegEscapeChar]
	guard := time.Duration(h.settings.SRegisters[SRegEscapeGuard]) * 50 * time.Millisecond
	if guard == 0 {
		guard = 1000 * time.Millisecond
	}

	for _, b := range in {
		if b == escapeChar {
			if h.plusCount == 0 {
				sinceLast := now.Sub(h.lastCharTime)
				if !h.lastCharTime.IsZero() && sinceLast < guard {
					// No lead-in silence: not an escape attempt, just data.
					out = append(out, b)
					h.lastCharTime = now
					continue
				}
				h.plusStart = now
			}
			// Subsequent consecutive pluses need no further timing
			// condition beyond "not interrupted by a non-escape byte"
			// (spec.md §4.3: "any non-escape byte during the count
			// resets"); only the lead-in silence before the first is
			// bounded.
			h.plusCount++

			if h.plusCount == 3 {
				h.EscapeDetected = true
				h.plusCount = 0
				h.lastCharTime = now
				continue // the three bytes are consumed, not forwarded
			}
			h.lastCharTime = now
			continue // held pending completion; not yet forwarded
		}

		// Non-escape byte: flush any held plusses as data, reset count.
		if h.plusCount > 0 {
			for i := 0; i < h.plusCount; i++ {
				out = append(out, escapeChar)
			}
			h.plusCount = 0
		}
		out = append(out, b)
		h.lastCharTime = now
	}
	return out
}
