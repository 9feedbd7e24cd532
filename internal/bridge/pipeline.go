package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Per-direction filtered pipeline (spec.md §3 "Pipeline",
 *		§4.5.5 "Backpressure").
 *
 * Description:	Wraps one EnhancedDoubleBuffer with hysteresis-based
 *		backpressure, a direction tag, per-timeslice byte
 *		accounting, and an EMA of processing latency the scheduler
 *		consumes for adaptive quantum / weighted fair queueing.
 *
 *---------------------------------------------------------------*/

import (
	"sync"
	"sync/atomic"
	"time"
)

// PipelineDirection names which way a pipeline carries bytes.
type PipelineDirection int

const (
	DirSerialToTelnet PipelineDirection = iota
	DirTelnetToSerial
)

func (d PipelineDirection) String() string {
	if d == DirSerialToTelnet {
		return "serial->telnet"
	}
	return "telnet->serial"
}

const backpressureTimeout = 5 * time.Second
const backpressureSleep = 10 * time.Millisecond

// PipelineStats are the counters L3's state-snapshot dump exposes.
type PipelineStats struct {
	BytesIn       uint64
	BytesOut      uint64
	BytesDropped  uint64
	LastServiceAt time.Time
}

// Pipeline is one direction's filtered double buffer plus backpressure
// state machine.
type Pipeline struct {
	mu  sync.Mutex
	dir PipelineDirection
	buf *EnhancedDoubleBuffer

	backpressureActive bool
	pressureSince      time.Time

	latencyEMA float64 // milliseconds, smoothed processing time per service

	bytesIn      uint64
	bytesOut     uint64
	bytesDropped uint64

	lastServiceAt atomic.Value // time.Time

	lastResizeCheck time.Time
}

// NewPipeline builds a pipeline with the default double-buffer sizing.
func NewPipeline(dir PipelineDirection) *Pipeline {
	p := &Pipeline{
		dir: dir,
		buf: NewEnhancedDoubleBuffer(defaultHalfSize, minHalfSize, maxHalfSize),
	}
	p.lastServiceAt.Store(time.Now())
	return p
}

// LastServiceTime reports the last time this pipeline was drained by
// the scheduler (used for starvation/latency-bound checks).
func (p *Pipeline) LastServiceTime() time.Time {
	return p.lastServiceAt.Load().(time.Time)
}

func (p *Pipeline) markServiced() {
	p.lastServiceAt.Store(time.Now())
}

// Push is the producer side: apply backpressure hysteresis, then write
// to the underlying double buffer (spec.md §4.5.5).
func (p *Pipeline) Push(data []byte) int {
	p.mu.Lock()
	fill := p.buf.FillLevel()

	if !p.backpressureActive {
		if fill >= WatermarkHigh {
			p.backpressureActive = true
			p.pressureSince = time.Now()
			l3log.Warn("backpressure engaged", "direction", p.dir, "fill", fill)
		}
	} else {
		timedOut := time.Since(p.pressureSince) > backpressureTimeout
		if fill <= WatermarkLow || timedOut {
			p.backpressureActive = false
			if timedOut {
				l3log.Warn("backpressure timeout, forcing release", "direction", p.dir)
			} else {
				l3log.Info("backpressure released", "direction", p.dir)
			}
		}
	}

	if p.backpressureActive {
		p.bytesDropped += uint64(len(data))
		p.mu.Unlock()
		time.Sleep(backpressureSleep)
		return 0
	}

	n := p.buf.Produce(data)
	p.bytesIn += uint64(n)
	if n < len(data) {
		p.bytesDropped += uint64(len(data) - n)
	}
	p.mu.Unlock()
	return n
}

// BackpressureActive reports whether writes are currently being
// refused.
func (p *Pipeline) BackpressureActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.backpressureActive
}

// Drain is the consumer side: switch buffers once main is empty and copy
// out up to len(out) bytes. The caller reports how long the service took
// via RecordLatency.
func (p *Pipeline) Drain(out []byte) int {
	p.mu.Lock()
	if p.buf.MainLen() == 0 {
		p.buf.SwitchBuffers()
	}
	n := p.buf.Consume(out)
	p.bytesOut += uint64(n)
	p.mu.Unlock()
	if n > 0 {
		p.markServiced()
	}
	return n
}

// RecordLatency folds a new processing-time sample into the EMA (alpha
// 0.2, matching the teacher's signal-quality smoothing constant used
// elsewhere in the pack for RSSI/latency averages).
func (p *Pipeline) RecordLatency(sample time.Duration) {
	const alpha = 0.2
	ms := float64(sample.Microseconds()) / 1000.0
	p.mu.Lock()
	if p.latencyEMA == 0 {
		p.latencyEMA = ms
	} else {
		p.latencyEMA = alpha*ms + (1-alpha)*p.latencyEMA
	}
	p.mu.Unlock()
}

// LatencyEMA returns the current smoothed latency estimate, in
// milliseconds.
func (p *Pipeline) LatencyEMA() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latencyEMA
}

// Stats snapshots the pipeline's counters.
func (p *Pipeline) Stats() PipelineStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PipelineStats{
		BytesIn:       p.bytesIn,
		BytesOut:      p.bytesOut,
		BytesDropped:  p.bytesDropped,
		LastServiceAt: p.LastServiceTime(),
	}
}

// IsEmpty reports whether the underlying double buffer holds no data
// in either half (used by FLUSHING -> SHUTTING_DOWN).
func (p *Pipeline) IsEmpty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.MainLen() == 0 && p.buf.SubLen() == 0
}

// MaybeResize forwards to the underlying buffer's dynamic sizing,
// throttled to roughly once per 30s by the caller.
func (p *Pipeline) MaybeResize() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf.MaybeResize()
}
