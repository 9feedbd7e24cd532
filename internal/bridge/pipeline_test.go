package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fillTo seeds the pipeline's double buffer directly so a precise
// combined fill level can be set up without relying on Push's own
// per-half truncation (halfSize bytes max per Produce call).
func fillTo(p *Pipeline, mainLen, subLen int) {
	p.buf.main = make([]byte, mainLen)
	p.buf.sub = make([]byte, subLen)
}

func TestPipelineBackpressureEngagesAtHighWatermark(t *testing.T) {
	p := NewPipeline(DirSerialToTelnet)
	p.buf = NewEnhancedDoubleBuffer(100, 50, 200)
	fillTo(p, 100, 70) // combined 170 / 200 = 0.85 -> HIGH
	n := p.Push([]byte("more"))
	assert.Equal(t, 0, n)
	assert.True(t, p.BackpressureActive())
	assert.Equal(t, uint64(4), p.Stats().BytesDropped)
}

func TestPipelineBackpressureHysteresisHoldsAtLowWatermark(t *testing.T) {
	p := NewPipeline(DirSerialToTelnet)
	p.buf = NewEnhancedDoubleBuffer(100, 50, 200)
	fillTo(p, 100, 90) // 190/200 = 0.95 -> CRITICAL

	require.Equal(t, 0, p.Push([]byte("x")))
	require.True(t, p.BackpressureActive())

	// Drain to 25%: still above the 20% LOW release threshold.
	fillTo(p, 50, 0) // 50/200 = 0.25
	n := p.Push([]byte("y"))
	assert.Equal(t, 0, n)
	assert.True(t, p.BackpressureActive())
}

func TestPipelineBackpressureReleasesAtLowWatermark(t *testing.T) {
	p := NewPipeline(DirSerialToTelnet)
	p.buf = NewEnhancedDoubleBuffer(100, 50, 200)
	fillTo(p, 100, 90) // 0.95 -> CRITICAL
	require.Equal(t, 0, p.Push([]byte("x")))
	require.True(t, p.BackpressureActive())

	fillTo(p, 30, 0) // 30/200 = 0.15 -> below LOW (0.20)
	n := p.Push([]byte("resumed"))
	assert.Equal(t, 7, n)
	assert.False(t, p.BackpressureActive())
}
