package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	L1 — Serial/Modem controller (spec.md §4.3).
 *
 * Description:	Owns the serial port, runs the AT command-mode
 *		interpreter, classifies unsolicited hardware messages,
 *		manages the connection state machine, and surfaces DCD
 *		edges to L3 through a callback. This is the Go-native
 *		analogue of the teacher's kissserial.go listener-thread
 *		pattern (one goroutine reading the device in a loop,
 *		pushing bytes onward) generalized from "read raw AX.25
 *		KISS bytes" to "interpret Hayes AT state".
 *
 *---------------------------------------------------------------*/

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// DCDCallback is invoked whenever DCD transitions, after modemMutex has
// been released, so the callee may call ModemController methods. L3's
// implementation (SystemFSM.NotifyDCD) only records the edge in flags
// that its loop consumes on its next tick.
type DCDCallback func(rising bool)

// ModemController is L1.
type ModemController struct {
	modemMutex sync.Mutex

	port     *SerialPort
	settings ModemSettings

	state      ModemState
	ringCount  int
	escapeCtx  *HayesFilterContext
	cmdLineBuf []byte

	// unsolicited tracks a partial hardware message across reads, with
	// its own timeout so a stray fragment can't wedge the classifier
	// (spec.md §4.3 "unsolicited message classifier").
	unsolicited      []byte
	unsolicitedStart time.Time

	connectTime time.Time
	dcdState    bool

	onDCD DCDCallback
	stop  chan struct{}

	// S2TWriter is where data-mode bytes are pushed toward L3 (serial to
	// telnet). Set by the bridge wiring before Run.
	S2TWriter func([]byte)
}

const unsolicitedTimeout = 20 * time.Second
const maxUnsolicitedBuffer = 256

var unsolicitedCodes = []string{
	"RING", "CONNECT", "NO CARRIER", "BUSY", "NO DIALTONE", "NO ANSWER", "ERROR", "OK",
}

// NewModemController wraps an already-open SerialPort.
func NewModemController(port *SerialPort) *ModemController {
	m := &ModemController{
		port:     port,
		settings: DefaultModemSettings(),
		state:    StateCommand,
		stop:     make(chan struct{}),
	}
	m.escapeCtx = NewHayesFilterContext(&m.settings)
	return m
}

// SetDCDCallback installs the observer L3 uses to learn about carrier
// edges.
func (m *ModemController) SetDCDCallback(cb DCDCallback) {
	m.modemMutex.Lock()
	m.onDCD = cb
	m.modemMutex.Unlock()
}

// State returns the current modem state (thread-safe snapshot).
func (m *ModemController) State() ModemState {
	m.modemMutex.Lock()
	defer m.modemMutex.Unlock()
	return m.state
}

// Settings returns a copy of the current settings.
func (m *ModemController) Settings() ModemSettings {
	m.modemMutex.Lock()
	defer m.modemMutex.Unlock()
	return m.settings
}

// Port exposes the serial port so the L3 telnet->serial pipeline
// executor can write user payload directly from its own thread (spec.md
// §5 "Shared-resource policy": permitted because L1 does not write
// payload bytes itself in the ONLINE/DATA_TRANSFER regime).
func (m *ModemController) Port() *SerialPort { return m.port }

// ApplyInitCommands runs a semicolon-separated string of AT commands at
// startup (spec.md §6 modem_init_command).
func (m *ModemController) ApplyInitCommands(cmds string) {
	for _, line := range strings.Split(cmds, ";") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m.handleCommandLine(line)
	}
}

// Run starts the blocking read loop and a DCD-polling goroutine; it
// returns when Stop is called. The teacher's kissserial listener loop
// is the model: one goroutine owns the fd, translating read() results
// into higher-level events instead of raw KISS frames.
func (m *ModemController) Run() {
	go m.pollDCD()

	buf := make([]byte, 256)
	for {
		select {
		case <-m.stop:
			return
		default:
		}

		n, err := m.port.Read(buf)
		if err != nil {
			l1log.Error("serial read error", "err", err)
			m.forceOffline()
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if n == 0 {
			continue
		}
		m.handleIncoming(buf[:n])
	}
}

// Stop ends the read loop and DCD poller.
func (m *ModemController) Stop() {
	close(m.stop)
}

// pollDCD samples carrier detect roughly ten times a second and fires
// onDCD on edges. Real modems could interrupt on DCD, but a tty fd
// exposes it only via ioctl, so polling is the portable approach (the
// teacher's GPIO/audio code in the pack polls PTT/squelch the same way).
func (m *ModemController) pollDCD() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			dcd, err := m.port.GetDCD()
			if err != nil {
				continue
			}
			m.modemMutex.Lock()
			changed := dcd != m.dcdState
			m.dcdState = dcd
			cb := m.onDCD
			m.modemMutex.Unlock()

			if changed {
				if !dcd {
					m.onCarrierLost()
				}
				if cb != nil {
					cb(dcd)
				}
			}
		}
	}
}

// onCarrierLost implements the immediate-cleanup path: dropping carrier
// while ONLINE ends the call right away without waiting for the remote
// telnet peer (spec.md §4.3 "DCD falling forces immediate cleanup").
func (m *ModemController) onCarrierLost() {
	m.modemMutex.Lock()
	wasOnline := m.state == StateOnline
	m.state = StateCommand
	m.escapeCtx.SetOnlineMode(false)
	m.modemMutex.Unlock()

	if wasOnline {
		m.respond("NO CARRIER")
	}
}

// scanOnlineCarrier is the ONLINE counterpart of classifyUnsolicited: it
// watches the same rolling buffer for the single code the classifier
// still looks for once online, a literal "NO CARRIER" arriving over the
// serial line (spec.md §4.3 "In ONLINE state the classifier only scans
// for NO CARRIER; all other bytes flow through to the pipeline
// unchanged").
func (m *ModemController) scanOnlineCarrier(data []byte) {
	m.modemMutex.Lock()
	if !m.unsolicitedStart.IsZero() && time.Since(m.unsolicitedStart) > unsolicitedTimeout {
		m.unsolicited = m.unsolicited[:0]
	}
	if len(m.unsolicited) == 0 {
		m.unsolicitedStart = time.Now()
	}
	m.unsolicited = append(m.unsolicited, data...)
	if len(m.unsolicited) > maxUnsolicitedBuffer {
		m.unsolicited = m.unsolicited[len(m.unsolicited)-maxUnsolicitedBuffer:]
	}
	hit := strings.Contains(string(m.unsolicited), "NO CARRIER")
	if hit {
		m.unsolicited = m.unsolicited[:0]
	}
	m.modemMutex.Unlock()

	if hit {
		l1log.Info("unsolicited modem message", "code", "NO CARRIER")
		m.onlineCarrierLost()
	}
}

// onlineCarrierLost is onCarrierLost's counterpart for a software NO
// CARRIER found on the wire rather than a hardware DCD transition: it
// also resets the ring counter and synthesizes the DCD-falling callback,
// since no real DCD edge will otherwise occur (spec.md §4.3 "Immediate
// cleanup", §8 scenario 3).
func (m *ModemController) onlineCarrierLost() {
	m.modemMutex.Lock()
	wasOnline := m.state == StateOnline
	m.state = StateCommand
	m.ringCount = 0
	m.escapeCtx.SetOnlineMode(false)
	m.dcdState = false
	cb := m.onDCD
	m.modemMutex.Unlock()

	if wasOnline {
		m.respond("NO CARRIER")
	}
	if cb != nil {
		cb(false)
	}
}

func (m *ModemController) forceOffline() {
	m.modemMutex.Lock()
	m.state = StateDisconnected
	m.modemMutex.Unlock()
}

// handleIncoming routes freshly read bytes to the command or online
// path depending on current state.
func (m *ModemController) handleIncoming(data []byte) {
	m.modemMutex.Lock()
	state := m.state
	m.modemMutex.Unlock()

	switch state {
	case StateCommand, StateConnecting, StateRinging, StateDisconnected:
		m.classifyUnsolicited(data)
		m.feedCommandLine(data)
	case StateOnline:
		// Per spec.md §4.3, ONLINE only scans for NO CARRIER; every other
		// byte flows through to the pipeline unchanged.
		m.scanOnlineCarrier(data)

		now := time.Now()
		out := m.escapeCtx.FilterOnline(data, now)
		if m.escapeCtx.EscapeDetected {
			m.escapeCtx.EscapeDetected = false
			m.enterCommandFromOnline()
			m.respond("OK")
		}
		if len(out) > 0 && m.S2TWriter != nil {
			m.S2TWriter(out)
		}
	}
}

// enterCommandFromOnline is the +++ escape's effect: drop to COMMAND
// mode without touching DCD or the remote connection (spec.md §4.3).
func (m *ModemController) enterCommandFromOnline() {
	m.modemMutex.Lock()
	m.state = StateCommand
	m.escapeCtx.SetOnlineMode(false)
	m.modemMutex.Unlock()
}

// feedCommandLine assembles raw bytes into CR-terminated lines and
// dispatches completed ones to the AT interpreter. Used only while in a
// COMMAND-family state (the modem is listening for commands, not user
// data).
func (m *ModemController) feedCommandLine(data []byte) {
	for _, b := range data {
		if b == '\r' {
			line := string(m.cmdLineBuf)
			m.cmdLineBuf = m.cmdLineBuf[:0]
			if strings.TrimSpace(line) != "" {
				m.handleCommandLine(line)
			}
			continue
		}
		if b == '\n' {
			continue
		}
		m.cmdLineBuf = append(m.cmdLineBuf, b)
	}
}

// classifyUnsolicited watches the same byte stream the command-line
// assembler sees for hardware messages that were not triggered by a
// command the bridge itself sent — RING from an incoming call, or
// CONNECT/NO CARRIER/BUSY/NO DIALTONE/NO ANSWER from autoanswer
// hardware (spec.md §4.3 "classify unsolicited hardware messages").
// Partial lines are retained across calls and expire after
// unsolicitedTimeout so a half-received message can't wedge the
// classifier indefinitely.
func (m *ModemController) classifyUnsolicited(data []byte) {
	m.modemMutex.Lock()
	if !m.unsolicitedStart.IsZero() && time.Since(m.unsolicitedStart) > unsolicitedTimeout {
		m.unsolicited = m.unsolicited[:0]
	}
	if len(m.unsolicited) == 0 {
		m.unsolicitedStart = time.Now()
	}
	m.unsolicited = append(m.unsolicited, data...)
	if len(m.unsolicited) > maxUnsolicitedBuffer {
		m.unsolicited = m.unsolicited[len(m.unsolicited)-maxUnsolicitedBuffer:]
	}
	buf := string(m.unsolicited)
	m.modemMutex.Unlock()

	for _, code := range unsolicitedCodes {
		if !strings.Contains(buf, code) {
			continue
		}

		var (
			sendATA  bool
			speed    int
			raiseDCD bool
		)

		m.modemMutex.Lock()
		m.unsolicited = m.unsolicited[:0]
		switch code {
		case "RING":
			// spec.md §4.3: S1 counts rings; S0>0 means hardware
			// autoanswer at that threshold, S0==0 means the bridge
			// itself issues ATA after the second ring.
			m.ringCount++
			m.settings.SRegisters[SRegRingCount] = byte(clampInt(m.ringCount, 0, 255))
			s0 := int(m.settings.SRegisters[SRegAutoAnswer])
			switch {
			case s0 > 0 && m.ringCount >= s0:
				m.state = StateConnecting
			case s0 == 0 && m.ringCount >= 2:
				sendATA = true
				m.state = StateConnecting
			default:
				m.state = StateRinging
			}
		case "CONNECT":
			speed = parseConnectSpeed(buf)
			m.state = StateOnline
			m.connectTime = time.Now()
			m.escapeCtx.SetOnlineMode(true)
			m.dcdState = true
			raiseDCD = true
		case "NO CARRIER", "BUSY", "NO DIALTONE", "NO ANSWER", "ERROR":
			if m.state == StateRinging || m.state == StateConnecting {
				m.state = StateCommand
			}
		}
		cb := m.onDCD
		m.modemMutex.Unlock()

		l1log.Info("unsolicited modem message", "code", code)

		if sendATA {
			_, _ = m.port.Write([]byte("ATA\r\n"))
		}
		if speed > 0 {
			if err := m.port.SetBaudrate(speed); err != nil {
				l1log.Warn("could not adjust serial speed from CONNECT banner", "speed", speed, "err", err)
			}
		}
		if raiseDCD && cb != nil {
			cb(true)
		}
		return
	}
}

// parseConnectSpeed extracts the bps value from a CONNECT banner such as
// "CONNECT 2400" or "CONNECT 2400/ARQ" (spec.md §4.3), tolerating the
// "/ARQ"-style protocol suffix. Returns 0 for a bare "CONNECT".
func parseConnectSpeed(buf string) int {
	idx := strings.Index(buf, "CONNECT")
	if idx < 0 {
		return 0
	}
	rest := strings.TrimLeft(buf[idx+len("CONNECT"):], " ")
	end := 0
	for end < len(rest) && isDigit(rest[end]) {
		end++
	}
	if end == 0 {
		return 0
	}
	speed, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0
	}
	return speed
}

func (m *ModemController) handleCommandLine(line string) {
	m.modemMutex.Lock()
	outcome := ParseATLine(&m.settings, line)
	m.modemMutex.Unlock()

	if outcome.ResetLine {
		m.modemMutex.Lock()
		m.settings = DefaultModemSettings()
		m.modemMutex.Unlock()
	}

	if outcome.Identify != "" {
		m.respondRaw(outcome.Identify)
	}

	if outcome.EndsCommand {
		m.modemMutex.Lock()
		m.state = StateOnline
		m.connectTime = time.Now()
		m.escapeCtx.SetOnlineMode(true)
		m.modemMutex.Unlock()
	}

	if outcome.ResultCode != "" {
		m.respond(outcome.ResultCode)
	}
}

func (m *ModemController) respond(code string) {
	m.modemMutex.Lock()
	text := FormatResult(&m.settings, code, 0)
	m.modemMutex.Unlock()
	if text == "" {
		return
	}
	_, _ = m.port.Write([]byte(text))
}

func (m *ModemController) respondRaw(text string) {
	_, _ = m.port.Write([]byte("\r\n" + text + "\r\n"))
}
