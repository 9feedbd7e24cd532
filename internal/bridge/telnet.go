package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	L2 — Telnet session (spec.md §4.4).
 *
 * Description:	Owns one TCP connection to the remote host. Performs
 *		RFC 854/855 IAC byte-stuffing and a minimal subset of
 *		option negotiation (the only option semantically acted on
 *		is ECHO, which drives local-echo suppression). Connection
 *		establishment is nonblocking with completion polled from
 *		process_events, the same pattern the teacher's agwpe/KISS
 *		TCP client code uses for its nonblocking dial-and-retry
 *		loop, generalized here to telnet.
 *
 *---------------------------------------------------------------*/

import (
	"bytes"
	"fmt"
	"net"
	"sync"
	"time"
)

// TelnetState is TelnetSession's top-level connection state.
type TelnetState int

const (
	TelnetDisconnected TelnetState = iota
	TelnetConnecting
	TelnetConnected
)

func (s TelnetState) String() string {
	switch s {
	case TelnetDisconnected:
		return "DISCONNECTED"
	case TelnetConnecting:
		return "CONNECTING"
	case TelnetConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

const (
	iacByte  = 0xFF
	iacWILL  = 0xFB
	iacWONT  = 0xFC
	iacDO    = 0xFD
	iacDONT  = 0xFE
	iacSB    = 0xFA
	iacSE    = 0xF0
)

// OptEcho is the only telnet option this bridge acts on (spec.md §4.4,
// §6 "Wire-level — telnet").
const OptEcho = 1

type iacDecodeState int

const (
	iacStateData iacDecodeState = iota
	iacStateIAC
	iacStateNeg
	iacStateSB
	iacStateSBIAC
)

// TelnetSession is L2.
type TelnetSession struct {
	mu sync.Mutex

	host string
	port int
	conn net.Conn

	state        TelnetState
	dialStarted  time.Time
	dialErr      chan error

	localOptions  [256]bool
	remoteOptions [256]bool

	decodeState iacDecodeState
	pendingVerb byte

	writeQueue []byte
	maxQueue   int

	// EchoChanged, if set, is invoked when remote_options[ECHO] changes,
	// so the modem controller can suppress its local echo (spec.md §4.4
	// "echo-sync rule").
	EchoChanged func(remoteEchoing bool)
}

// NewTelnetSession builds a session targeting host:port, not yet dialed.
func NewTelnetSession(host string, port int) *TelnetSession {
	return &TelnetSession{
		host:     host,
		port:     port,
		state:    TelnetDisconnected,
		maxQueue: 32 * 1024,
	}
}

// State returns the current connection state.
func (t *TelnetSession) State() TelnetState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// IsConnected reports whether the socket is usable.
func (t *TelnetSession) IsConnected() bool {
	return t.State() == TelnetConnected
}

// Connect begins a nonblocking dial; completion is observed through
// ProcessEvents.
func (t *TelnetSession) Connect() error {
	t.mu.Lock()
	if t.state != TelnetDisconnected {
		t.mu.Unlock()
		return nil
	}
	t.state = TelnetConnecting
	t.dialStarted = time.Now()
	t.dialErr = make(chan error, 1)
	addr := fmt.Sprintf("%s:%d", t.host, t.port)
	errc := t.dialErr
	t.mu.Unlock()

	go func() {
		conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
		if err != nil {
			errc <- err
			return
		}
		t.mu.Lock()
		if t.state == TelnetConnecting {
			t.conn = conn
			t.state = TelnetConnected
			t.decodeState = iacStateData
		} else {
			conn.Close()
		}
		t.mu.Unlock()
		errc <- nil
	}()
	return nil
}

// ProcessEvents advances the nonblocking connect (if any) and flushes
// queued writes; call it on L3's scheduling tick (spec.md §4.4
// process_events).
func (t *TelnetSession) ProcessEvents(timeout time.Duration) error {
	t.mu.Lock()
	connecting := t.state == TelnetConnecting
	errc := t.dialErr
	t.mu.Unlock()

	if connecting && errc != nil {
		select {
		case err := <-errc:
			if err != nil {
				t.mu.Lock()
				t.state = TelnetDisconnected
				t.dialErr = nil
				t.mu.Unlock()
				return err
			}
		case <-time.After(timeout):
		}
	}
	return t.FlushWrites()
}

// Disconnect closes the socket and resets negotiated option state.
func (t *TelnetSession) Disconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	t.state = TelnetDisconnected
	t.localOptions = [256]bool{}
	t.remoteOptions = [256]bool{}
	t.writeQueue = nil
	t.decodeState = iacStateData
}

// Recv reads raw bytes straight off the socket (still IAC-escaped); the
// caller is expected to run them through ProcessInput.
func (t *TelnetSession) Recv(buf []byte) (int, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return 0, ErrNotConnected
	}
	_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	n, err := conn.Read(buf)
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return n, nil
	}
	return n, err
}

// QueueWrite appends application bytes (already telnet-safe; escaping
// happens in PrepareOutput before this) to the outbound queue.
func (t *TelnetSession) QueueWrite(p []byte) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	room := t.maxQueue - len(t.writeQueue)
	if room <= 0 {
		return 0
	}
	if len(p) > room {
		p = p[:room]
	}
	t.writeQueue = append(t.writeQueue, p...)
	return len(p)
}

// FlushWrites drains the outbound queue into the socket.
func (t *TelnetSession) FlushWrites() error {
	t.mu.Lock()
	conn := t.conn
	pending := t.writeQueue
	t.writeQueue = nil
	t.mu.Unlock()

	if len(pending) == 0 || conn == nil {
		return nil
	}
	_, err := conn.Write(pending)
	return err
}

// Send writes raw bytes immediately, bypassing the queue (used for
// urgent/small writes where queuing adds no value).
func (t *TelnetSession) Send(p []byte) (int, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return 0, ErrNotConnected
	}
	return conn.Write(p)
}

// PrepareOutput IAC-escapes app bytes for the wire (double every 0xFF),
// per spec.md §4.4 "prepare_output".
func PrepareOutput(app []byte) []byte {
	if !bytes.ContainsRune(app, iacByte) {
		return app
	}
	out := make([]byte, 0, len(app)+8)
	for _, b := range app {
		out = append(out, b)
		if b == iacByte {
			out = append(out, iacByte)
		}
	}
	return out
}

// ProcessInput runs raw (still-escaped) socket bytes through the IAC
// decoder, returning the application bytes that resulted and advancing
// persistent decode state across calls (spec.md §4.4 "process_input",
// "IAC state machine (decoder)").
func (t *TelnetSession) ProcessInput(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, b := range raw {
		switch t.decodeState {
		case iacStateData:
			if b == iacByte {
				t.decodeState = iacStateIAC
				continue
			}
			out = append(out, b)

		case iacStateIAC:
			switch b {
			case iacByte:
				out = append(out, iacByte)
				t.decodeState = iacStateData
			case iacWILL, iacWONT, iacDO, iacDONT:
				t.pendingVerb = b
				t.decodeState = iacStateNeg
			case iacSB:
				t.decodeState = iacStateSB
			default:
				// Other verbs (NOP, AYT, etc.): consumed, discarded.
				t.decodeState = iacStateData
			}

		case iacStateNeg:
			t.applyOption(t.pendingVerb, b)
			t.decodeState = iacStateData

		case iacStateSB:
			if b == iacByte {
				t.decodeState = iacStateSBIAC
			}
			// subnegotiation payload bytes are discarded

		case iacStateSBIAC:
			if b == iacSE {
				t.decodeState = iacStateData
			} else if b == iacByte {
				t.decodeState = iacStateSB
			} else {
				t.decodeState = iacStateSB
			}
		}
	}
	return out
}

// applyOption records the peer's negotiated option and, for ECHO,
// fires EchoChanged so L1's local echo can be suppressed.
func (t *TelnetSession) applyOption(verb, option byte) {
	switch verb {
	case iacWILL:
		t.remoteOptions[option] = true
	case iacWONT:
		t.remoteOptions[option] = false
	case iacDO:
		t.localOptions[option] = true
	case iacDONT:
		t.localOptions[option] = false
	}

	if option == OptEcho && (verb == iacWILL || verb == iacWONT) {
		echoing := t.remoteOptions[OptEcho]
		cb := t.EchoChanged
		if cb != nil {
			go cb(echoing)
		}
	}
}

// RemoteEchoing reports remote_options[ECHO].
func (t *TelnetSession) RemoteEchoing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remoteOptions[OptEcho]
}
