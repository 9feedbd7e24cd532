package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Half-duplex quantum scheduler (spec.md §4.5.4).
 *
 * Description:	Picks one of the two pipelines to service per
 *		iteration, honoring a wall-clock quantum, starvation
 *		correction, a latency bound (doubled at low serial speeds),
 *		an adaptive quantum derived from relative wait times, a
 *		coarse weighted-fair-queueing adjustment, and a
 *		switch-cooldown that forced switches bypass.
 *
 *---------------------------------------------------------------*/

import (
	"time"
)

const (
	quantumDefault = 50 * time.Millisecond
	quantumMin     = 10 * time.Millisecond
	quantumMax     = 200 * time.Millisecond

	starvationThreshold = 500 * time.Millisecond
	switchCooldown      = 1 * time.Second

	lowSpeedThreshold = 2400 // bps
)

// SchedulerConfig is the operator-tunable knob set (spec.md §6).
type SchedulerConfig struct {
	LatencyBoundMS int
	BaudRate       int
}

// Scheduler implements the half-duplex turn-taking policy over the two
// Pipelines (spec.md §4.5.4).
type Scheduler struct {
	cfg SchedulerConfig

	current         PipelineDirection
	quantum         time.Duration
	quantumStart    time.Time
	lastSwitch      time.Time
	iteration       uint64

	weightSerial float64
	weightTelnet float64
}

// NewScheduler starts servicing serial->telnet first, with the default
// quantum.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		current:      DirSerialToTelnet,
		quantum:      quantumDefault,
		quantumStart: time.Now(),
		lastSwitch:   time.Now(),
		weightSerial: 5,
		weightTelnet: 5,
	}
}

func (s *Scheduler) latencyBound() time.Duration {
	bound := time.Duration(s.cfg.LatencyBoundMS) * time.Millisecond
	if bound == 0 {
		bound = 200 * time.Millisecond
	}
	if s.lowSpeed() {
		bound *= 2
	}
	return bound
}

func (s *Scheduler) lowSpeed() bool {
	return s.cfg.BaudRate > 0 && s.cfg.BaudRate <= lowSpeedThreshold
}

// Next picks which direction to service this iteration, given the two
// pipelines' LastServiceTime. It mutates internal scheduler state
// (current direction, quantum) and returns the chosen direction.
func (s *Scheduler) Next(serial, telnet *Pipeline) PipelineDirection {
	now := time.Now()
	s.iteration++

	pipelines := map[PipelineDirection]*Pipeline{
		DirSerialToTelnet: serial,
		DirTelnetToSerial: telnet,
	}

	waitSerial := now.Sub(serial.LastServiceTime())
	waitTelnet := now.Sub(telnet.LastServiceTime())

	// Starvation correction: an immediate, unconditional switch,
	// bypassing cooldown.
	if waitTelnet > starvationThreshold && s.current != DirTelnetToSerial {
		l3log.Warn("starvation correction", "direction", DirTelnetToSerial, "wait", waitTelnet)
		s.switchTo(DirTelnetToSerial, now, true)
		return s.current
	}
	if waitSerial > starvationThreshold && s.current != DirSerialToTelnet {
		l3log.Warn("starvation correction", "direction", DirSerialToTelnet, "wait", waitSerial)
		s.switchTo(DirSerialToTelnet, now, true)
		return s.current
	}

	// Latency-bound enforcement.
	bound := s.latencyBound()
	forceFactor := 1.5
	if s.lowSpeed() {
		forceFactor *= 1.5
	}
	for dir, wait := range map[PipelineDirection]time.Duration{DirSerialToTelnet: waitSerial, DirTelnetToSerial: waitTelnet} {
		if wait > bound {
			l3log.Warn("latency bound violated", "direction", dir, "wait", wait, "bound", bound)
		}
		if wait > time.Duration(float64(bound)*forceFactor) && s.current != dir {
			s.switchTo(dir, now, true)
			return s.current
		}
	}

	// Quantum expiry (ordinary, cooldown-respecting switch).
	if now.Sub(s.quantumStart) >= s.quantum {
		other := DirTelnetToSerial
		if s.current == DirTelnetToSerial {
			other = DirSerialToTelnet
		}
		if now.Sub(s.lastSwitch) >= switchCooldown {
			s.switchTo(other, now, false)
		} else {
			// Cooldown still active: stay put but reset the quantum
			// clock so we don't spin re-checking every call.
			s.quantumStart = now
		}
	}

	s.adaptQuantum(waitSerial, waitTelnet)
	if s.iteration%100 == 0 {
		s.updateWeights(serial, telnet)
	}

	_ = pipelines
	return s.current
}

func (s *Scheduler) switchTo(dir PipelineDirection, now time.Time, forced bool) {
	s.current = dir
	s.lastSwitch = now
	if !forced {
		s.quantumStart = now
	}
	// Forced switches deliberately do NOT reset quantumStart (spec.md
	// §4.5.4 "Forced switches do NOT reset the quantum timer").
}

func (s *Scheduler) adaptQuantum(waitSerial, waitTelnet time.Duration) {
	maxWait := waitSerial
	minWait := waitSerial
	if waitTelnet > maxWait {
		maxWait = waitTelnet
	}
	if waitTelnet < minWait {
		minWait = waitTelnet
	}
	if minWait < time.Millisecond {
		minWait = time.Millisecond
	}
	ratio := float64(maxWait) / float64(minWait)

	switch {
	case ratio > 3:
		s.quantum = quantumMin
	case ratio > 1.5:
		s.quantum = time.Duration(float64(quantumDefault) * 0.7)
	default:
		s.quantum = quantumDefault
	}

	if s.lowSpeed() {
		floor := s.latencyBound() / 4
		if s.quantum < floor {
			s.quantum = floor
		}
	}
	if s.quantum < quantumMin {
		s.quantum = quantumMin
	}
	if s.quantum > quantumMax {
		s.quantum = quantumMax
	}
}

// updateWeights is the coarse weighted-fair-queueing pass: weights sum
// to 10, skewed toward whichever direction has seen higher recent
// latency (spec.md §4.5.4). The weights are currently advisory
// telemetry for the state snapshot; the scheduler's actual direction
// choice is governed by quantum/starvation/latency-bound above.
func (s *Scheduler) updateWeights(serial, telnet *Pipeline) {
	ls := serial.LatencyEMA()
	lt := telnet.LatencyEMA()
	total := ls + lt
	if total <= 0 {
		s.weightSerial, s.weightTelnet = 5, 5
		return
	}
	s.weightSerial = clampFloat(10*ls/total, 1, 9)
	s.weightTelnet = 10 - s.weightSerial
}

// Weights returns the current {serial, telnet} WFQ weights.
func (s *Scheduler) Weights() (float64, float64) {
	return s.weightSerial, s.weightTelnet
}

// Quantum returns the current quantum duration.
func (s *Scheduler) Quantum() time.Duration { return s.quantum }

// Current returns the direction currently being serviced.
func (s *Scheduler) Current() PipelineDirection { return s.current }
