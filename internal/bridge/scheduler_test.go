package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchedulerStarvationCorrectionForcesSwitch(t *testing.T) {
	s := NewScheduler(SchedulerConfig{LatencyBoundMS: 200})
	serial := NewPipeline(DirSerialToTelnet)
	telnet := NewPipeline(DirTelnetToSerial)

	// Keep serial freshly serviced, let telnet starve past the threshold.
	serial.markServiced()
	telnet.lastServiceAt.Store(time.Now().Add(-600 * time.Millisecond))

	dir := s.Next(serial, telnet)
	assert.Equal(t, DirTelnetToSerial, dir)
}

func TestSchedulerQuantumDefaultsInRange(t *testing.T) {
	s := NewScheduler(SchedulerConfig{LatencyBoundMS: 200})
	assert.GreaterOrEqual(t, s.Quantum(), quantumMin)
	assert.LessOrEqual(t, s.Quantum(), quantumMax)
}

func TestSchedulerLowSpeedDoublesLatencyBound(t *testing.T) {
	s := NewScheduler(SchedulerConfig{LatencyBoundMS: 200, BaudRate: 1200})
	assert.Equal(t, 400*time.Millisecond, s.latencyBound())
}

func TestSchedulerWeightsSumToTen(t *testing.T) {
	s := NewScheduler(SchedulerConfig{LatencyBoundMS: 200})
	serial := NewPipeline(DirSerialToTelnet)
	telnet := NewPipeline(DirTelnetToSerial)
	serial.RecordLatency(50 * time.Millisecond)
	telnet.RecordLatency(10 * time.Millisecond)

	s.updateWeights(serial, telnet)
	ws, wt := s.Weights()
	assert.InDelta(t, 10, ws+wt, 0.0001)
	assert.Greater(t, ws, wt)
}

func TestSchedulerForcedSwitchDoesNotResetQuantum(t *testing.T) {
	s := NewScheduler(SchedulerConfig{LatencyBoundMS: 200})
	s.quantumStart = time.Now().Add(-10 * time.Second)
	before := s.quantumStart

	s.switchTo(DirTelnetToSerial, time.Now(), true)
	assert.Equal(t, before, s.quantumStart)
}
