package bridge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tncbridge.conf")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfigParsesRecognizedKeys(t *testing.T) {
	path := writeTempConfig(t, `
# comment line
serial_port = /dev/ttyUSB0
baudrate=2400
telnet_host = bbs.example.net
telnet_port = 6502
modem_init_command = AT&F;ATE0
echo_enabled = yes
data_log_enabled = 1
data_log_file = /var/log/tncbridge.bin
pid_file = /run/tncbridge.pid
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", cfg.SerialPort)
	assert.Equal(t, 2400, cfg.BaudRate)
	assert.Equal(t, "bbs.example.net", cfg.TelnetHost)
	assert.Equal(t, 6502, cfg.TelnetPort)
	assert.Equal(t, "AT&F;ATE0", cfg.ModemInitCommand)
	assert.True(t, cfg.EchoEnabled)
	assert.True(t, cfg.DataLogEnabled)
	assert.Equal(t, "/var/log/tncbridge.bin", cfg.DataLogFile)
	assert.Equal(t, "/run/tncbridge.pid", cfg.PidFile)
}

func TestLoadConfigSkipsUnknownKeys(t *testing.T) {
	path := writeTempConfig(t, "totally_unknown_key = 42\nbaudrate=1200\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1200, cfg.BaudRate)
}

func TestLoadConfigDefaultsWhenFileMinimal(t *testing.T) {
	path := writeTempConfig(t, "serial_port = /dev/ttyS0\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9600, cfg.BaudRate)
	assert.Equal(t, 23, cfg.TelnetPort)
}

func TestLoadConfigMissingFileErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.conf"))
	assert.Error(t, err)
}
