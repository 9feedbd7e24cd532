package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	L3 orchestration context (spec.md §4.5, §5).
 *
 * Description:	Wires the two inter-layer ring buffers, the two
 *		filtered pipelines, the scheduler, and the system state
 *		machine into one management loop. Runs as its own
 *		goroutine ("L3 management thread" in spec.md §5), draining
 *		ts_s2t through the authoritative Hayes filter into the
 *		telnet session's write queue, and draining the telnet
 *		session's decoded bytes through the defensive telnet-control
 *		filter, passing them through ts_t2s and writing them to the
 *		serial port from this goroutine.
 *
 *---------------------------------------------------------------*/

import (
	"sync/atomic"
	"time"
)

// L3Context is the top-level pipeline manager.
type L3Context struct {
	fsm       *SystemFSM
	scheduler *Scheduler

	serialPipeline *Pipeline // serial -> telnet
	telnetPipeline *Pipeline // telnet -> serial

	tsS2T *RingBuffer // modem controller pushes raw online-mode bytes here
	tsT2S *RingBuffer // L3 publishes telnet-decoded bytes here, then drains and writes them itself

	telnet *TelnetSession
	modem  *ModemController

	hayesFilter       *HayesFilterContext
	telnetCtrlDecode  iacDecodeState

	running atomic.Bool
	stop    chan struct{}

	// DataLog, if non-nil, receives a copy of every filtered byte chunk
	// crossing either pipeline (spec.md §6 "data_log_enabled").
	DataLog *DataLog
}

// NewL3Context wires an already-constructed modem controller and
// telnet session together; the modem's S2TWriter is redirected into
// ts_s2t so the pipeline — not the modem controller — becomes the
// authoritative Hayes filter (SPEC_FULL.md §13 Open Question #2).
func NewL3Context(modem *ModemController, telnet *TelnetSession, cfg SchedulerConfig) *L3Context {
	l := &L3Context{
		fsm:            NewSystemFSM(),
		scheduler:      NewScheduler(cfg),
		serialPipeline: NewPipeline(DirSerialToTelnet),
		telnetPipeline: NewPipeline(DirTelnetToSerial),
		tsS2T:          NewRingBuffer(defaultRingBufferSize),
		tsT2S:          NewRingBuffer(defaultRingBufferSize),
		telnet:         telnet,
		modem:          modem,
		hayesFilter:    NewHayesFilterContext(&modem.settings),
		stop:           make(chan struct{}),
	}

	modem.S2TWriter = func(b []byte) { l.tsS2T.Write(b) }
	modem.SetDCDCallback(func(rising bool) { l.fsm.NotifyDCD(rising) })

	l.fsm.onEnterDataTransfer = func() {
		l.hayesFilter.SetOnlineMode(true)
		if l.DataLog != nil {
			l.DataLog.NewSession()
		}
	}
	l.fsm.onExitDataTransfer = func() { l.hayesFilter.SetOnlineMode(false) }

	telnet.EchoChanged = func(echoing bool) {
		if echoing {
			modem.modemMutex.Lock()
			modem.settings.Echo = false
			modem.modemMutex.Unlock()
		}
	}

	return l
}

// Run is the L3 management-thread loop: advance the state machine,
// drive the scheduler, and shuttle bytes between the ring buffers, the
// pipelines, and the telnet session, until Stop is called.
func (l *L3Context) Run() {
	l.running.Store(true)
	_ = l.fsm.Transition(StateInitializing)
	_ = l.fsm.Transition(StateReady)

	resizeTicker := time.NewTicker(30 * time.Second)
	defer resizeTicker.Stop()

	for {
		select {
		case <-l.stop:
			l.running.Store(false)
			return
		case <-resizeTicker.C:
			l.serialPipeline.MaybeResize()
			l.telnetPipeline.MaybeResize()
		default:
		}

		l.pumpIntake()

		connected := l.telnet.IsConnected()
		connecting := l.telnet.State() == TelnetConnecting
		l.fsm.Tick(connected, connecting, l.serialPipeline.IsEmpty() && l.telnetPipeline.IsEmpty())

		if l.fsm.State() == StateConnectingTelnet && !connecting && !connected {
			_ = l.telnet.Connect()
		}
		_ = l.telnet.ProcessEvents(10 * time.Millisecond)

		if l.fsm.State() == StateTerminated {
			l.running.Store(false)
			return
		}

		dir := l.scheduler.Next(l.serialPipeline, l.telnetPipeline)
		l.serviceDirection(dir)

		time.Sleep(l.idleSleep())
	}
}

// Stop ends the management loop.
func (l *L3Context) Stop() {
	close(l.stop)
}

func (l *L3Context) idleSleep() time.Duration {
	switch l.fsm.State() {
	case StateDataTransfer:
		return 20 * time.Millisecond
	case StateUninitialized, StateInitializing:
		return 50 * time.Millisecond
	default:
		return 100 * time.Millisecond
	}
}

// pumpIntake moves bytes from the modem controller's ts_s2t ring buffer
// into the serial->telnet pipeline, and from the telnet session's
// socket into the telnet->serial pipeline, after IAC-decoding.
func (l *L3Context) pumpIntake() {
	buf := make([]byte, 4096)

	if n := l.tsS2T.Read(buf); n > 0 {
		l.serialPipeline.Push(buf[:n])
	}

	if l.telnet.IsConnected() {
		n, err := l.telnet.Recv(buf)
		if err == nil && n > 0 {
			app := l.telnet.ProcessInput(buf[:n])
			if len(app) > 0 {
				l.telnetPipeline.Push(app)
			}
		}
	}
}

// serviceDirection drains one pipeline through its authoritative
// filter and forwards the result to its destination.
func (l *L3Context) serviceDirection(dir PipelineDirection) {
	out := make([]byte, 2048)

	switch dir {
	case DirSerialToTelnet:
		start := time.Now()
		n := l.serialPipeline.Drain(out)
		if n == 0 {
			return
		}
		filtered := l.hayesFilterAuthoritative(out[:n])
		if len(filtered) > 0 {
			wire := PrepareOutput(filtered)
			l.telnet.QueueWrite(wire)
			if l.DataLog != nil {
				_ = l.DataLog.Append(LogSerialToTelnet, filtered)
			}
		}
		l.serialPipeline.RecordLatency(time.Since(start))

	case DirTelnetToSerial:
		start := time.Now()
		n := l.telnetPipeline.Drain(out)
		if n == 0 {
			return
		}
		filtered := l.telnetControlFilter(out[:n])
		if len(filtered) > 0 {
			// Published to ts_t2s for observability/state-snapshot
			// purposes, then written straight to the serial port from
			// this thread (spec.md §5 shared-resource policy).
			l.tsT2S.Write(filtered)
			drained := make([]byte, len(filtered))
			if dn := l.tsT2S.Read(drained); dn > 0 {
				_, _ = l.modem.Port().Write(drained[:dn])
				if l.DataLog != nil {
					_ = l.DataLog.Append(LogTelnetToSerial, drained[:dn])
				}
			}
		}
		l.telnetPipeline.RecordLatency(time.Since(start))
	}
}

// hayesFilterAuthoritative runs the serial->telnet direction's Hayes
// filter; this is the authoritative pass (spec.md §13 / SPEC_FULL.md
// Open Question #2), the modem controller's own pass being
// informational only.
func (l *L3Context) hayesFilterAuthoritative(in []byte) []byte {
	if l.hayesFilter.inOnlineMode {
		return l.hayesFilter.FilterOnline(in, time.Now())
	}
	return l.hayesFilter.FilterCommandMode(in)
}

// telnetControlFilter re-applies the IAC decoder defensively on the
// telnet->serial path so no raw 0xFF can reach the serial carrier
// (spec.md §4.5.3). It is intentionally a second, independent decoder
// instance from TelnetSession's own, since by this point the bytes have
// already passed through that decoder once; this catches anything a
// future L2 change might let slip through unescaped.
func (l *L3Context) telnetControlFilter(in []byte) []byte {
	out := make([]byte, 0, len(in))
	for _, b := range in {
		switch l.telnetCtrlDecode {
		case iacStateData:
			if b == iacByte {
				l.telnetCtrlDecode = iacStateIAC
				continue
			}
			out = append(out, b)
		case iacStateIAC:
			if b == iacByte {
				out = append(out, iacByte)
			}
			l.telnetCtrlDecode = iacStateData
		}
	}
	return out
}

// TsT2S exposes the telnet->serial ring buffer, which serviceDirection
// fills and drains within a single call.
func (l *L3Context) TsT2S() *RingBuffer { return l.tsT2S }

// FSM exposes the state machine for status reporting.
func (l *L3Context) FSM() *SystemFSM { return l.fsm }

// Scheduler exposes the scheduler for status reporting.
func (l *L3Context) Scheduler() *Scheduler { return l.scheduler }

// SerialPipeline / TelnetPipeline expose stats for status reporting.
func (l *L3Context) SerialPipeline() *Pipeline { return l.serialPipeline }
func (l *L3Context) TelnetPipeline() *Pipeline { return l.telnetPipeline }
