package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Hayes AT command-line interpreter (spec.md §4.3 "AT parser",
 *		"Result-code formatting").
 *
 * Description:	Input is one CR-terminated line. The optional AT/at
 *		prefix is stripped, then the remainder is walked command by
 *		command; several can be chained on one line. Each command
 *		either sets a field of ModemSettings or produces an
 *		immediate response (e.g. ATI, ATZ). Unknown letters are
 *		skipped with a logged warning rather than aborting the rest
 *		of the line, matching real Hayes TNC behavior.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"strconv"
	"strings"
)

// ATOutcome is what executing a command line produced, beyond the
// mutations already applied to ModemSettings.
type ATOutcome struct {
	ResultCode   string // "OK", "ERROR", "CONNECT", etc. empty if suppressed
	EndsCommand  bool   // true for CONNECT: caller should enter ONLINE
	ResetLine    bool   // ATZ: caller should reset line state
	Identify     string // ATI response text, if any
	DialRequest  bool   // ATA / ATD seen: caller may want to act
}

// resultNumeric maps verbose result text to the V0 numeric code
// (spec.md §4.3.2).
var resultNumeric = map[string]int{
	"OK": 0, "CONNECT": 1, "RING": 2, "NO CARRIER": 3,
	"ERROR": 4, "NO DIALTONE": 6, "BUSY": 7, "NO ANSWER": 8,
}

// FormatResult renders a result code per the modem's V/X/Q settings
// (spec.md §4.3.2). speed, if > 0, is appended to CONNECT.
func FormatResult(s *ModemSettings, code string, speed int) string {
	if s.Quiet {
		return ""
	}

	code = filterByXLevel(s.XLevel, code)

	text := code
	if code == "CONNECT" && speed > 0 {
		text = fmt.Sprintf("CONNECT %d", speed)
	}

	if s.Result == ResultNumeric {
		n, ok := resultNumeric[code]
		if !ok {
			n = resultNumeric["ERROR"]
		}
		return fmt.Sprintf("%d\r", n)
	}
	return "\r\n" + text + "\r\n"
}

// filterByXLevel collapses result codes per the X0-X4 policy (spec.md
// §4.3.2).
func filterByXLevel(x int, code string) string {
	switch x {
	case 0:
		if code == "NO DIALTONE" || code == "BUSY" || code == "NO ANSWER" {
			return "NO CARRIER"
		}
	case 2:
		if code == "BUSY" || code == "NO ANSWER" {
			return "NO CARRIER"
		}
	case 3:
		if code == "NO DIALTONE" || code == "NO ANSWER" {
			return "NO CARRIER"
		}
	case 4:
		// passes everything
	}
	return code
}

// ParseATLine interprets one CR-terminated (CR already stripped) command
// line against settings, mutating it in place, and returns the outcome.
func ParseATLine(s *ModemSettings, line string) ATOutcome {
	trimmed := strings.TrimSpace(line)
	upper := strings.ToUpper(trimmed)

	if !strings.HasPrefix(upper, "AT") {
		// Not a command line at all; caller decides what to do
		// (e.g. pass through unchanged in COMMAND-mode filter).
		return ATOutcome{ResultCode: "ERROR"}
	}

	body := trimmed[2:]
	outcome := ATOutcome{ResultCode: "OK"}

	i := 0
	for i < len(body) {
		c := body[i]
		upperC := toUpperByte(c)

		switch upperC {
		case 'A':
			outcome.DialRequest = true
			i++
		case 'B':
			// Communication-standard selector: acknowledged only.
			_, n := readDigit(body, i+1, 0)
			i += 1 + n
		case 'D':
			outcome.DialRequest = true
			// Consume the rest of the line as a dial string; not
			// otherwise interpreted (no dial-out, spec.md §1 Non-goals).
			i = len(body)
		case 'E':
			v, n := readDigit(body, i+1, 1)
			s.Echo = v != 0
			i += 1 + n
		case 'H':
			_, n := readDigit(body, i+1, 0)
			i += 1 + n
			outcome.ResultCode = "NO CARRIER"
		case 'I':
			v, n := readDigit(body, i+1, 0)
			outcome.Identify = identifyText(v)
			i += 1 + n
		case 'L':
			_, n := readDigit(body, i+1, 2)
			i += 1 + n
		case 'M':
			_, n := readDigit(body, i+1, 1)
			i += 1 + n
		case 'O':
			outcome.EndsCommand = true
			outcome.ResultCode = "CONNECT"
			i++
		case 'Q':
			v, n := readDigit(body, i+1, 0)
			s.Quiet = v != 0
			i += 1 + n
		case 'V':
			v, n := readDigit(body, i+1, 1)
			if v == 0 {
				s.Result = ResultNumeric
			} else {
				s.Result = ResultVerbose
			}
			s.Verbose = v != 0
			i += 1 + n
		case 'X':
			v, n := readDigit(body, i+1, 1)
			s.XLevel = clampInt(v, 0, 4)
			i += 1 + n
		case 'Z':
			_, n := readDigit(body, i+1, 0)
			outcome.ResetLine = true
			i += 1 + n
		case 'S':
			consumed := parseSRegister(s, body[i+1:])
			if consumed == 0 {
				i++
			} else {
				i += 1 + consumed
			}
		case '&':
			consumed := parseAmpersandCommand(s, body[i+1:])
			if consumed == 0 {
				i += 2
			} else {
				i += 1 + consumed
			}
		case '\\':
			// \N escape-character commands: acknowledged, not acted on.
			_, n := readDigit(body, i+2, 0)
			i += 2 + n
		case ' ':
			i++
		default:
			l1log.Warn("AT parser: skipping unknown command letter", "letter", string(c))
			i++
		}
	}

	return outcome
}

// parseSRegister handles "Sr=v" and "Sr?" starting just after the 'S'.
// Returns the number of bytes of tail consumed (not counting the 'S').
func parseSRegister(s *ModemSettings, tail string) int {
	i := 0
	for i < len(tail) && isDigit(tail[i]) {
		i++
	}
	if i == 0 {
		return 0
	}
	reg, _ := strconv.Atoi(tail[:i])
	reg = clampInt(reg, 0, 255)

	if i < len(tail) && tail[i] == '=' {
		j := i + 1
		for j < len(tail) && isDigit(tail[j]) {
			j++
		}
		if j > i+1 {
			v, _ := strconv.Atoi(tail[i+1 : j])
			s.SRegisters[reg] = byte(clampInt(v, 0, 255))
		}
		return j
	}
	if i < len(tail) && tail[i] == '?' {
		return i + 1
	}
	return i
}

// parseAmpersandCommand handles AT&C, &D, &F, &V, &W, &S.
func parseAmpersandCommand(s *ModemSettings, tail string) int {
	if len(tail) == 0 {
		return 0
	}
	letter := toUpperByte(tail[0])
	v, n := readDigit(tail, 1, defaultAmpersandArg(letter))

	switch letter {
	case 'C':
		s.DCD = DCDMode(clampInt(v, 0, 1))
	case 'D':
		s.DTR = DTRMode(clampInt(v, 0, 3))
	case 'F':
		*s = DefaultModemSettings()
	case 'V', 'W', 'S':
		// &V view, &W write-to-nvram, &S DSR control: acknowledged only.
	default:
		l1log.Warn("AT parser: skipping unknown & command", "letter", string(tail[0]))
	}
	return 1 + n
}

func defaultAmpersandArg(letter byte) int {
	switch letter {
	case 'C':
		return 1
	case 'D':
		return 0
	}
	return 0
}

func identifyText(v int) string {
	switch v {
	case 0:
		return "tncbridge"
	case 3:
		return "Hayes-compatible dial-up/telnet bridge"
	default:
		return "OK"
	}
}

func readDigit(s string, at int, def int) (int, int) {
	i := at
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i == at {
		return def, 0
	}
	v, _ := strconv.Atoi(s[at:i])
	return v, i - at
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func toUpperByte(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}
