package bridge

import (
	"os"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/require"
)

// openTestPort substitutes a pty for a physical modem line, the same
// harness approach cmd/tncbridge-harness offers interactively.
func openTestPort(t *testing.T) (*SerialPort, *os.File) {
	t.Helper()
	ptmx, tty, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { ptmx.Close() })

	sp, err := OpenSerialPort(tty.Name(), 9600)
	require.NoError(t, err)
	t.Cleanup(sp.Close)
	return sp, ptmx
}

func TestSerialPortWriteReachesPeer(t *testing.T) {
	sp, ptmx := openTestPort(t)

	n, err := sp.Write([]byte("AT\r"))
	require.NoError(t, err)
	require.Equal(t, 3, n)

	buf := make([]byte, 3)
	ptmx.SetReadDeadline(time.Now().Add(time.Second))
	rn, err := ptmx.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "AT\r", string(buf[:rn]))
}

func TestSerialPortReadReceivesFromPeer(t *testing.T) {
	sp, ptmx := openTestPort(t)

	_, err := ptmx.Write([]byte("RING\r\n"))
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, err := sp.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "RING\r\n", string(buf[:n]))
}

func TestSerialPortCloseMakesFurtherWritesFail(t *testing.T) {
	sp, _ := openTestPort(t)
	sp.Close()

	_, err := sp.Write([]byte("x"))
	require.ErrorIs(t, err, ErrPortClosed)
}

func TestSerialPortWriteWithTimeout(t *testing.T) {
	sp, ptmx := openTestPort(t)
	defer ptmx.Close()

	n, err := sp.WriteWithTimeout([]byte("ATI\r"), time.Second)
	require.NoError(t, err)
	require.Equal(t, 4, n)
}
