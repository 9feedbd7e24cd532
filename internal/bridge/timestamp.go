package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Optional per-line injectors (spec.md §6
 *		"timestamp_data", "local_echo_in_data_mode").
 *
 * Description:	Two small stream filters, each enabled by a
 *		constructor argument: a timestamp stamper that prefixes a
 *		wall-clock marker at the start of every line, and a local
 *		echo that mirrors data-mode bytes back the way a real
 *		terminal-mode modem would when E1 is set but the remote end
 *		isn't echoing. Nothing in the bridge constructs either of
 *		them, and no config key switches them. The echo filter
 *		holds back an incomplete trailing UTF-8 rune; the timestamp
 *		filter forwards bytes at once and does not look for escape
 *		sequences.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// TimestampInjector prefixes each line with a timestamp. Bytes are
// forwarded as they arrive; the stamp is emitted with the first byte of
// each line, and a line's later bytes are not held back.
type TimestampInjector struct {
	enabled bool
	layout  string
	buf     []byte
	atLineStart bool
}

// NewTimestampInjector builds an injector; layout follows time.Format
// conventions (spec.md §6 default: "15:04:05.000").
func NewTimestampInjector(enabled bool, layout string) *TimestampInjector {
	if layout == "" {
		layout = "15:04:05.000"
	}
	return &TimestampInjector{enabled: enabled, layout: layout, atLineStart: true}
}

// Filter returns p with a stamp inserted before every byte that starts a
// line. Only the at-line-start flag carries over between calls; no
// bytes are retained.
func (t *TimestampInjector) Filter(p []byte, now time.Time) []byte {
	if !t.enabled {
		return p
	}
	out := make([]byte, 0, len(p)+16)
	for _, b := range p {
		if t.atLineStart {
			out = append(out, []byte(fmt.Sprintf("[%s] ", now.Format(t.layout)))...)
			t.atLineStart = false
		}
		out = append(out, b)
		if b == '\n' {
			t.atLineStart = true
		}
	}
	return out
}

// EchoInjector mirrors data-mode bytes back toward the originating
// serial port, assembling multi-byte UTF-8 runes so a split rune across
// two reads is never echoed as mojibake.
type EchoInjector struct {
	enabled bool
	pending []byte
}

// NewEchoInjector builds an echo filter; enabled should track
// ModemSettings.Echo while in ONLINE mode (spec.md §6
// local_echo_in_data_mode, off by default since most peers echo
// server-side).
func NewEchoInjector(enabled bool) *EchoInjector {
	return &EchoInjector{enabled: enabled}
}

// Process returns the bytes that are safe to echo now, holding back an
// incomplete trailing rune for the next call.
func (e *EchoInjector) Process(p []byte) []byte {
	if !e.enabled || len(p) == 0 {
		return nil
	}
	combined := append(e.pending, p...)
	e.pending = nil

	valid := len(combined)
	for valid > 0 {
		r, size := utf8.DecodeLastRune(combined[:valid])
		if r != utf8.RuneError || size != 1 {
			break
		}
		valid--
		if len(combined) - valid > utf8.UTFMax {
			// Not a truncated rune, just invalid input; stop trimming.
			valid = len(combined)
			break
		}
	}

	if valid < len(combined) {
		e.pending = append(e.pending, combined[valid:]...)
	}
	if valid == 0 {
		return nil
	}
	out := make([]byte, valid)
	copy(out, combined[:valid])
	return out
}
