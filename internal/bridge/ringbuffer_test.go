package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBufferWriteReadOrdering(t *testing.T) {
	rb := NewRingBuffer(16)

	n := rb.Write([]byte("hello"))
	require.Equal(t, 5, n)

	out := make([]byte, 5)
	n = rb.Read(out)
	require.Equal(t, 5, n)
	assert.Equal(t, "hello", string(out))
}

func TestRingBufferFIFOAcrossWraps(t *testing.T) {
	rb := NewRingBuffer(4)

	for i := 0; i < 20; i++ {
		b := byte(i)
		rb.Write([]byte{b})
		out := make([]byte, 1)
		n := rb.Read(out)
		require.Equal(t, 1, n)
		assert.Equal(t, b, out[0])
	}
}

func TestRingBufferDropsOnOverflow(t *testing.T) {
	rb := NewRingBuffer(4)

	n := rb.Write([]byte{1, 2, 3, 4, 5, 6})
	assert.Equal(t, 4, n)
	assert.Equal(t, uint64(2), rb.Dropped())
}

func TestRingBufferReadTimeoutExpires(t *testing.T) {
	rb := NewRingBuffer(8)

	start := time.Now()
	out := make([]byte, 4)
	n := rb.ReadTimeout(out, start.Add(50*time.Millisecond))
	assert.Equal(t, 0, n)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestRingBufferReadTimeoutUnblocksOnWrite(t *testing.T) {
	rb := NewRingBuffer(8)
	done := make(chan int, 1)

	go func() {
		out := make([]byte, 3)
		done <- rb.ReadTimeout(out, time.Now().Add(time.Second))
	}()

	time.Sleep(20 * time.Millisecond)
	rb.Write([]byte{9, 9, 9})

	select {
	case n := <-done:
		assert.Equal(t, 3, n)
	case <-time.After(time.Second):
		t.Fatal("ReadTimeout never unblocked")
	}
}
