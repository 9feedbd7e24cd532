package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Interface to the serial port, hiding platform differences
 *		(spec.md §4.2). Exclusive owner: L1.
 *
 * Description:	Grounded directly on the teacher's src/serial_port.go,
 *		which wraps github.com/pkg/term the same way: open in raw
 *		mode, then set speed separately because term.Open does not
 *		take a baud rate itself. Everything this file adds beyond
 *		the teacher (DTR/RTS/DCD control, CLOCAL toggling, the
 *		lock-port lifecycle, bounded-time writes) is specified in
 *		spec.md §4.2 but absent from the teacher, whose serial port
 *		is receive-only transport for a TNC with its own PTT wiring.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/term"
)

// supportedSpeeds lists the bps values OpenSerialPort accepts; any other
// value is rejected with a warning and 9600 is used instead, per
// spec.md §4.2.
var supportedSpeeds = map[int]bool{
	300: true, 1200: true, 2400: true, 4800: true, 9600: true,
	19200: true, 38400: true, 57600: true, 115200: true, 230400: true,
}

// SerialPort owns one serial device file descriptor, open in raw mode.
// Not safe for concurrent use by more than one goroutine at a time for
// Write (spec.md §8 "Exclusive serial ownership"); Read is only ever
// called from the L1 read loop.
type SerialPort struct {
	mu sync.Mutex

	path  string
	baud  int
	fd    *term.Term
	lock  *uucpLock
	dcdOn bool // CLOCAL policy: true = CLOCAL clear, DCD tracked (&C1); false = DCD ignored (&C0)
}

// OpenSerialPort acquires the UUCP-style lock, opens the device, and
// configures it for the requested speed. baud of 0 leaves the current
// speed alone (spec.md §4.2).
func OpenSerialPort(path string, baud int) (*SerialPort, error) {
	lock, err := acquireUUCPLock(path)
	if err != nil {
		return nil, fmt.Errorf("bridge: lock serial port %s: %w", path, err)
	}

	fd, err := term.Open(path, term.RawMode)
	if err != nil {
		lock.release()
		l1log.Error("could not open serial port", "path", path, "err", err)
		return nil, err
	}

	sp := &SerialPort{path: path, fd: fd, lock: lock}

	switch {
	case baud == 0:
		// Leave it alone.
	case supportedSpeeds[baud]:
		if err := fd.SetSpeed(baud); err != nil {
			l1log.Error("set speed failed", "baud", baud, "err", err)
		}
		sp.baud = baud
	default:
		l1log.Warn("unsupported speed, using 9600", "requested", baud)
		_ = fd.SetSpeed(9600)
		sp.baud = 9600
	}

	if err := sp.enableRawLine(); err != nil {
		l1log.Warn("raw-line setup incomplete", "err", err)
	}

	l1log.Info("opened serial port", "path", path, "baud", sp.baud)
	return sp, nil
}

// Reopen closes (if open) and reopens the device in place, preserving
// the configured speed; used by the auto-reconnect retry of §7. The fd
// value may legitimately change.
func (sp *SerialPort) Reopen() error {
	sp.mu.Lock()
	baud := sp.baud
	path := sp.path
	sp.mu.Unlock()

	sp.Close()

	np, err := OpenSerialPort(path, baud)
	if err != nil {
		return err
	}
	sp.mu.Lock()
	sp.fd = np.fd
	sp.lock = np.lock
	sp.mu.Unlock()
	return nil
}

// SetBaudrate changes the line speed on an open port. An unrecognized
// speed logs a warning and falls back to 9600, matching Open's policy.
func (sp *SerialPort) SetBaudrate(baud int) error {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.fd == nil {
		return ErrPortClosed
	}
	if !supportedSpeeds[baud] {
		l1log.Warn("unsupported speed, using 9600", "requested", baud)
		baud = 9600
	}
	if err := sp.fd.SetSpeed(baud); err != nil {
		return err
	}
	sp.baud = baud
	return nil
}

func (sp *SerialPort) Baud() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.baud
}

// Write sends bytes to the serial port. Returns the number written, or
// an error (including ErrPortClosed).
func (sp *SerialPort) Write(p []byte) (int, error) {
	sp.mu.Lock()
	fd := sp.fd
	sp.mu.Unlock()
	if fd == nil {
		return 0, ErrPortClosed
	}
	n, err := fd.Write(p)
	if err != nil || n != len(p) {
		if err == nil {
			err = fmt.Errorf("bridge: short write to serial port (%d/%d)", n, len(p))
		}
		return n, err
	}
	return n, nil
}

// WriteWithTimeout bounds how long a write may block, so a stuck client
// cannot wedge the caller. Nothing in the bridge calls it at present.
// pkg/term does not expose a deadline primitive directly, so this runs
// the write on a goroutine and gives up waiting (not cancelling the
// underlying write, which the kernel will eventually complete or error
// out) once the timeout elapses.
func (sp *SerialPort) WriteWithTimeout(p []byte, timeout time.Duration) (int, error) {
	type result struct {
		n   int
		err error
	}
	ch := make(chan result, 1)
	go func() {
		n, err := sp.Write(p)
		ch <- result{n, err}
	}()
	select {
	case r := <-ch:
		return r.n, r.err
	case <-time.After(timeout):
		return 0, ErrTimeout
	}
}

// Read blocks until at least one byte is available.
func (sp *SerialPort) Read(p []byte) (int, error) {
	sp.mu.Lock()
	fd := sp.fd
	sp.mu.Unlock()
	if fd == nil {
		return 0, ErrPortClosed
	}
	return fd.Read(p)
}

// Close releases the file descriptor and the UUCP lock.
func (sp *SerialPort) Close() {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.fd != nil {
		sp.fd.Close()
		sp.fd = nil
	}
	if sp.lock != nil {
		sp.lock.release()
		sp.lock = nil
	}
}

func (sp *SerialPort) IsOpen() bool {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.fd != nil
}
