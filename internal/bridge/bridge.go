package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Top-level wiring: construct L1/L2/L3, start their
 *		threads, and handle signals (spec.md §5, §6 "Signals").
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Bridge owns the whole running system for one configuration.
type Bridge struct {
	cfg    Config
	port   *SerialPort
	modem  *ModemController
	telnet *TelnetSession
	l3     *L3Context
	watch  *DeviceWatcher
	dlog   *DataLog

	wg       sync.WaitGroup
	sigCh    chan os.Signal
	stopOnce sync.Once
}

// NewBridge opens the serial port and builds every layer, wiring
// callbacks between them; it does not yet start any goroutines.
func NewBridge(cfg Config) (*Bridge, error) {
	port, err := OpenSerialPort(cfg.SerialPort, cfg.BaudRate)
	if err != nil {
		return nil, fmt.Errorf("bridge: open serial: %w", err)
	}

	modem := NewModemController(port)
	if cfg.ModemAutoanswerMode == 1 && cfg.ModemAutoanswerHardwareCommand != "" {
		modem.ApplyInitCommands(cfg.ModemAutoanswerHardwareCommand)
	} else if cfg.ModemAutoanswerSoftwareCommand != "" {
		modem.ApplyInitCommands(cfg.ModemAutoanswerSoftwareCommand)
	}
	if cfg.ModemInitCommand != "" {
		modem.ApplyInitCommands(cfg.ModemInitCommand)
	}

	telnet := NewTelnetSession(cfg.TelnetHost, cfg.TelnetPort)
	l3 := NewL3Context(modem, telnet, SchedulerConfig{
		LatencyBoundMS: cfg.LatencyBoundMS,
		BaudRate:       port.Baud(),
	})

	var dlog *DataLog
	if cfg.DataLogEnabled && cfg.DataLogFile != "" {
		dlog, err = OpenDataLog(cfg.DataLogFile)
		if err != nil {
			l1log.Warn("data log unavailable", "err", err)
		} else {
			l3.DataLog = dlog
		}
	}

	b := &Bridge{
		cfg:    cfg,
		port:   port,
		modem:  modem,
		telnet: telnet,
		l3:     l3,
		watch:  NewDeviceWatcher(cfg.SerialPort),
		dlog:   dlog,
		sigCh:  make(chan os.Signal, 4),
	}
	return b, nil
}

// Run starts every layer's goroutine and blocks handling signals until
// a shutdown-triggering one arrives, then tears everything down in the
// mandated join order (spec.md §5 "Join order on shutdown: L3 -> L2 ->
// L1; then close socket, hang up modem (ATH + DTR drop), close serial,
// release UUCP lock").
func (b *Bridge) Run() error {
	if err := WritePIDFile(b.cfg.PidFile); err != nil {
		l1log.Warn("could not write pid file", "err", err)
	}
	defer RemovePIDFile(b.cfg.PidFile)

	signal.Notify(b.sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP, syscall.SIGPIPE, syscall.SIGUSR1)
	defer signal.Stop(b.sigCh)

	b.wg.Add(2)
	go func() { defer b.wg.Done(); b.modem.Run() }()
	go func() { defer b.wg.Done(); b.l3.Run() }()

	b.watch.Watch(func() {
		if !b.port.IsOpen() {
			if err := b.port.Reopen(); err != nil {
				l1log.Warn("reopen failed", "err", err)
				return
			}
			l1log.Info("serial device reopened")
		}
	})

	for sig := range b.sigCh {
		switch sig {
		case syscall.SIGTERM, syscall.SIGINT:
			l1log.Info("shutdown signal received", "signal", sig)
			b.shutdown()
			return nil
		case syscall.SIGHUP:
			l1log.Info("reload signal received")
			if cfg, err := LoadConfig(b.cfg.path()); err == nil {
				b.cfg = cfg
			} else {
				l1log.Warn("config reload failed", "err", err)
			}
		case syscall.SIGUSR1:
			_ = b.l3.DumpSnapshot(os.Stderr)
		case syscall.SIGPIPE:
			// Ignored: a write to a half-closed telnet socket should
			// surface as an I/O error return, not kill the process.
		}
	}
	return nil
}

func (c Config) path() string { return c.configPath }

func (b *Bridge) shutdown() {
	b.stopOnce.Do(func() {
		b.l3.Stop()
		b.telnet.Disconnect()
		b.modem.Stop()
		b.watch.Stop()

		done := make(chan struct{})
		go func() { b.wg.Wait(); close(done) }()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			l1log.Warn("shutdown: goroutines did not join within bound")
		}

		b.modem.respond("NO CARRIER")
		_, _ = b.port.Write([]byte("ATH\r\n"))
		_ = b.port.DropDTRForHangup(750 * time.Millisecond)
		b.port.Close()
		_ = b.dlog.Close()
	})
}
