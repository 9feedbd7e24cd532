//go:build !linux

package bridge

import (
	"errors"
	"time"
)

// errUnsupportedPlatform marks the modem-control-line ioctls as
// unavailable outside Linux; the bridge still runs, just without
// DTR/RTS/DCD awareness (CLOCAL stays at whatever the OS default is).
var errUnsupportedPlatform = errors.New("bridge: modem control lines not supported on this platform")

func (sp *SerialPort) SetDTR(assert bool) error                { return errUnsupportedPlatform }
func (sp *SerialPort) SetRTS(assert bool) error                { return errUnsupportedPlatform }
func (sp *SerialPort) GetDCD() (bool, error)                   { return true, errUnsupportedPlatform }
func (sp *SerialPort) EnableCarrierDetect() error              { return errUnsupportedPlatform }
func (sp *SerialPort) DisableCarrierDetect() error             { return errUnsupportedPlatform }
func (sp *SerialPort) DropDTRForHangup(low time.Duration) error { return errUnsupportedPlatform }
func (sp *SerialPort) enableRawLine() error                    { return nil }
