//go:build linux

package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	DTR/RTS/DCD control and CLOCAL toggling (spec.md §4.2).
 *
 * Description:	github.com/pkg/term gives us raw-mode I/O and speed
 *		changes (serialport.go) but no access to the modem control
 *		lines, so this file opens a second, independent file
 *		descriptor on the same tty path purely for ioctl calls.
 *		DTR/RTS/DCD and the termios CLOCAL bit are properties of
 *		the serial line itself, not of any one open fd, so a
 *		second descriptor observes and controls exactly the same
 *		state as the one pkg/term is streaming bytes through.
 *
 *		Grounded on golang.org/x/sys/unix, already in the
 *		teacher's go.mod (used there for low-level GPIO/PTT control
 *		in src/ptt.go); TIOCMGET/TIOCMBIS/TIOCMBIC and TCGETS/TCSETS
 *		are the standard Linux termios ioctls for this purpose.
 *
 *---------------------------------------------------------------*/

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

type controlLines struct {
	f *os.File
}

func openControlLines(path string) (*controlLines, error) {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}
	return &controlLines{f: f}, nil
}

func (c *controlLines) close() {
	if c != nil && c.f != nil {
		c.f.Close()
	}
}

func (c *controlLines) setLine(bit int, assert bool) error {
	req := uint(unix.TIOCMBIC)
	if assert {
		req = uint(unix.TIOCMBIS)
	}
	return unix.IoctlSetPointerInt(int(c.f.Fd()), req, bit)
}

// SetDTR asserts or drops Data Terminal Ready.
func (sp *SerialPort) SetDTR(assert bool) error {
	cl, err := openControlLines(sp.path)
	if err != nil {
		return err
	}
	defer cl.close()
	return cl.setLine(unix.TIOCM_DTR, assert)
}

// SetRTS asserts or drops Request To Send.
func (sp *SerialPort) SetRTS(assert bool) error {
	cl, err := openControlLines(sp.path)
	if err != nil {
		return err
	}
	defer cl.close()
	return cl.setLine(unix.TIOCM_RTS, assert)
}

// GetDCD reports the current state of the Data Carrier Detect line.
func (sp *SerialPort) GetDCD() (bool, error) {
	cl, err := openControlLines(sp.path)
	if err != nil {
		return false, err
	}
	defer cl.close()
	status, err := unix.IoctlGetInt(int(cl.f.Fd()), unix.TIOCMGET)
	if err != nil {
		return false, err
	}
	return status&unix.TIOCM_CAR != 0, nil
}

// EnableCarrierDetect (&C1 policy) clears CLOCAL so the kernel tracks
// the hardware DCD line and I/O reacts to carrier loss. DisableCarrierDetect
// (&C0) sets CLOCAL so DCD is ignored and treated as always-high, and is
// also used transiently during a forced hangup so the kernel does not
// surface I/O errors while carrier is dropping mid-write (spec.md §4.3
// "Immediate cleanup").
func (sp *SerialPort) EnableCarrierDetect() error  { return sp.setCLOCAL(false) }
func (sp *SerialPort) DisableCarrierDetect() error { return sp.setCLOCAL(true) }

func (sp *SerialPort) setCLOCAL(local bool) error {
	cl, err := openControlLines(sp.path)
	if err != nil {
		return err
	}
	defer cl.close()

	t, err := unix.IoctlGetTermios(int(cl.f.Fd()), unix.TCGETS)
	if err != nil {
		return err
	}
	if local {
		t.Cflag |= unix.CLOCAL
	} else {
		t.Cflag &^= unix.CLOCAL
	}
	sp.mu.Lock()
	sp.dcdOn = !local
	sp.mu.Unlock()
	return unix.IoctlSetTermios(int(cl.f.Fd()), unix.TCSETS, t)
}

func (sp *SerialPort) enableRawLine() error {
	return sp.EnableCarrierDetect()
}

// DropDTRForHangup asserts DTR low for at least the given duration then
// restores it, emulating a modem hangup per &D2/&D3 (spec.md §4.3).
// CLOCAL is set for the duration so the kernel does not report I/O
// errors from the momentary carrier loss this usually induces.
func (sp *SerialPort) DropDTRForHangup(low time.Duration) error {
	if low < 500*time.Millisecond {
		low = 500 * time.Millisecond
	}
	wasOn := sp.dcdOn
	_ = sp.DisableCarrierDetect()
	defer func() {
		if wasOn {
			_ = sp.EnableCarrierDetect()
		}
	}()

	if err := sp.SetDTR(false); err != nil {
		return err
	}
	time.Sleep(low)
	return sp.SetDTR(true)
}
