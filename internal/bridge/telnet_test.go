package bridge

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestPrepareOutputEscapesIAC(t *testing.T) {
	in := []byte{0x41, 0xFF, 0x42}
	out := PrepareOutput(in)
	assert.Equal(t, []byte{0x41, 0xFF, 0xFF, 0x42}, out)
}

func TestProcessInputDecodesLiteralIAC(t *testing.T) {
	session := NewTelnetSession("localhost", 23)
	out := session.ProcessInput([]byte{0x41, 0xFF, 0xFF, 0x42})
	assert.Equal(t, []byte{0x41, 0xFF, 0x42}, out)
}

func TestProcessInputRecordsOptionNegotiation(t *testing.T) {
	session := NewTelnetSession("localhost", 23)
	var gotEcho bool
	session.EchoChanged = func(echoing bool) { gotEcho = echoing }

	out := session.ProcessInput([]byte{0xFF, 0xFF, 0x41, 0x42, 0xFF, iacWILL, OptEcho, 0x43})
	assert.Equal(t, []byte{0xFF, 0x41, 0x42, 0x43}, out)
	assert.True(t, session.RemoteEchoing())
	_ = gotEcho // set asynchronously; RemoteEchoing() is the synchronous check above
}

func TestProcessInputSkipsSubnegotiation(t *testing.T) {
	session := NewTelnetSession("localhost", 23)
	// IAC SB <garbage> IAC SE then a literal byte
	in := []byte{0xFF, iacSB, 0x01, 0x02, 0x03, 0xFF, iacSE, 0x58}
	out := session.ProcessInput(in)
	assert.Equal(t, []byte{0x58}, out)
}

// IAC round-trip: for any byte string containing no unterminated
// subnegotiation markers, decode(encode(s)) == s (spec.md §8).
func TestIACRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 64).Draw(rt, "n")
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(rapid.IntRange(0, 255).Draw(rt, "b"))
		}

		wire := PrepareOutput(data)
		session := NewTelnetSession("localhost", 23)
		decoded := session.ProcessInput(wire)

		if !bytes.Equal(decoded, data) {
			rt.Fatalf("round trip mismatch: in=%v wire=%v out=%v", data, wire, decoded)
		}
	})
}

func TestTelnetSessionQueueAndFlushWithoutConnection(t *testing.T) {
	session := NewTelnetSession("localhost", 23)
	n := session.QueueWrite([]byte("hello"))
	assert.Equal(t, 5, n)
	// FlushWrites is a no-op (conn is nil) and must not error.
	assert.NoError(t, session.FlushWrites())
}
