package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHayesFilterCommandModeSuppressesKnownLines(t *testing.T) {
	settings := DefaultModemSettings()
	h := NewHayesFilterContext(&settings)

	out := h.FilterCommandMode([]byte("ATE0\r"))
	assert.Empty(t, out)

	out = h.FilterCommandMode([]byte("OK\r"))
	assert.Empty(t, out)
}

func TestHayesFilterCommandModePassesUnknownLines(t *testing.T) {
	settings := DefaultModemSettings()
	h := NewHayesFilterContext(&settings)

	out := h.FilterCommandMode([]byte("hello world\r"))
	assert.Equal(t, "hello world\r", string(out))
}

func TestHayesFilterIdempotence(t *testing.T) {
	line := []byte("ATZ\r\nsome data here\r\n")

	settings1 := DefaultModemSettings()
	h1 := NewHayesFilterContext(&settings1)
	once := h1.FilterCommandMode(line)

	settings2 := DefaultModemSettings()
	h2 := NewHayesFilterContext(&settings2)
	twiceA := h2.FilterCommandMode(line)
	twiceB := h2.FilterCommandMode(twiceA)

	assert.Equal(t, once, twiceB)
}

func TestHayesFilterOnlineEscapeSequence(t *testing.T) {
	settings := DefaultModemSettings()
	h := NewHayesFilterContext(&settings)
	h.SetOnlineMode(true)

	base := time.Now()
	guard := time.Duration(settings.SRegisters[SRegEscapeGuard]) * 50 * time.Millisecond

	out := h.FilterOnline([]byte("hello"), base)
	assert.Equal(t, "hello", string(out))

	t1 := base.Add(guard + 100*time.Millisecond)
	out = h.FilterOnline([]byte{'+'}, t1)
	assert.Empty(t, out)
	assert.False(t, h.EscapeDetected)

	t2 := t1.Add(guard + 100*time.Millisecond)
	out = h.FilterOnline([]byte{'+'}, t2)
	assert.Empty(t, out)
	assert.False(t, h.EscapeDetected)

	t3 := t2.Add(guard + 100*time.Millisecond)
	out = h.FilterOnline([]byte{'+'}, t3)
	assert.Empty(t, out)
	assert.True(t, h.EscapeDetected)
}

func TestHayesFilterOnlinePlusWithoutLeadInSilenceIsData(t *testing.T) {
	settings := DefaultModemSettings()
	h := NewHayesFilterContext(&settings)
	h.SetOnlineMode(true)

	now := time.Now()
	out := h.FilterOnline([]byte("x"), now)
	assert.Equal(t, "x", string(out))

	// Immediately following byte, no silence: a lone '+' here is just data.
	out = h.FilterOnline([]byte{'+'}, now.Add(time.Millisecond))
	assert.Equal(t, "+", string(out))
}

func TestHayesFilterOnlineInterruptedPlusesAreForwardedAsData(t *testing.T) {
	settings := DefaultModemSettings()
	h := NewHayesFilterContext(&settings)
	h.SetOnlineMode(true)

	guard := time.Duration(settings.SRegisters[SRegEscapeGuard]) * 50 * time.Millisecond
	base := time.Now()

	h.FilterOnline([]byte("x"), base)
	t1 := base.Add(guard + 50*time.Millisecond)
	out := h.FilterOnline([]byte{'+', '+', 'y'}, t1)
	assert.Equal(t, "++y", string(out))
	assert.False(t, h.EscapeDetected)
}
