package bridge

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readPeer(t *testing.T, ptmx *os.File, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	require.NoError(t, ptmx.SetReadDeadline(time.Now().Add(time.Second)))
	rn, err := ptmx.Read(buf)
	require.NoError(t, err)
	return buf[:rn]
}

func TestClassifyUnsolicitedSoftwareAutoAnswerSendsATA(t *testing.T) {
	sp, ptmx := openTestPort(t)
	m := NewModemController(sp)
	m.state = StateCommand

	m.classifyUnsolicited([]byte("\r\nRING\r\n"))
	assert.Equal(t, StateRinging, m.State())

	m.classifyUnsolicited([]byte("\r\nRING\r\n"))
	assert.Equal(t, StateConnecting, m.State())
	assert.Equal(t, "ATA\r\n", string(readPeer(t, ptmx, 5)))
}

func TestClassifyUnsolicitedHardwareAutoAnswerSkipsATA(t *testing.T) {
	sp, ptmx := openTestPort(t)
	m := NewModemController(sp)
	m.state = StateCommand
	m.settings.SRegisters[SRegAutoAnswer] = 2

	m.classifyUnsolicited([]byte("\r\nRING\r\n"))
	assert.Equal(t, StateRinging, m.State())

	m.classifyUnsolicited([]byte("\r\nRING\r\n"))
	assert.Equal(t, StateConnecting, m.State())

	// Nothing should have been written to the line for hardware autoanswer.
	require.NoError(t, ptmx.SetReadDeadline(time.Now().Add(50*time.Millisecond)))
	buf := make([]byte, 8)
	_, err := ptmx.Read(buf)
	assert.Error(t, err) // deadline exceeded, no ATA written
}

func TestClassifyUnsolicitedConnectAdjustsSpeedAndRaisesDCD(t *testing.T) {
	sp, _ := openTestPort(t)
	m := NewModemController(sp)
	m.state = StateConnecting

	var gotRising bool
	m.SetDCDCallback(func(rising bool) { gotRising = rising })

	m.classifyUnsolicited([]byte("\r\nCONNECT 2400\r\n"))

	assert.Equal(t, StateOnline, m.State())
	assert.Equal(t, 2400, sp.Baud())
	assert.True(t, gotRising)
}

func TestClassifyUnsolicitedConnectToleratesARQSuffix(t *testing.T) {
	sp, _ := openTestPort(t)
	m := NewModemController(sp)
	m.state = StateConnecting

	m.classifyUnsolicited([]byte("\r\nCONNECT 9600/ARQ\r\n"))
	assert.Equal(t, 9600, sp.Baud())
}

func TestScanOnlineCarrierTriggersImmediateCleanup(t *testing.T) {
	sp, ptmx := openTestPort(t)
	m := NewModemController(sp)
	m.state = StateOnline
	m.ringCount = 3
	m.escapeCtx.SetOnlineMode(true)

	var gotFalling bool
	m.SetDCDCallback(func(rising bool) { gotFalling = !rising })

	m.scanOnlineCarrier([]byte("\r\nNO CARRIER\r\n"))

	assert.Equal(t, StateCommand, m.State())
	assert.Equal(t, 0, m.ringCount)
	assert.True(t, gotFalling)
	assert.Equal(t, "\r\nNO CARRIER\r\n", string(readPeer(t, ptmx, 32)))
}

func TestHandleIncomingOnlineScansForNoCarrier(t *testing.T) {
	sp, ptmx := openTestPort(t)
	m := NewModemController(sp)
	m.state = StateOnline
	m.escapeCtx.SetOnlineMode(true)
	m.S2TWriter = func([]byte) {}

	m.handleIncoming([]byte("\r\nNO CARRIER\r\n"))

	assert.Equal(t, StateCommand, m.State())
	assert.Equal(t, "\r\nNO CARRIER\r\n", string(readPeer(t, ptmx, 32)))
}
