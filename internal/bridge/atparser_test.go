package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseATLineBasicOK(t *testing.T) {
	s := DefaultModemSettings()
	outcome := ParseATLine(&s, "AT")
	assert.Equal(t, "OK", outcome.ResultCode)
}

func TestParseATLineEcho(t *testing.T) {
	s := DefaultModemSettings()
	ParseATLine(&s, "ATE0")
	assert.False(t, s.Echo)

	ParseATLine(&s, "ATE1")
	assert.True(t, s.Echo)
}

func TestParseATLineOGoesOnline(t *testing.T) {
	s := DefaultModemSettings()
	outcome := ParseATLine(&s, "ATO")
	assert.True(t, outcome.EndsCommand)
	assert.Equal(t, "CONNECT", outcome.ResultCode)
}

func TestParseATLineZResetsLine(t *testing.T) {
	s := DefaultModemSettings()
	outcome := ParseATLine(&s, "ATZ")
	assert.True(t, outcome.ResetLine)
}

func TestParseATLineBRecognizedNotUnknown(t *testing.T) {
	s := DefaultModemSettings()
	outcome := ParseATLine(&s, "ATB0")
	assert.Equal(t, "OK", outcome.ResultCode)
}

func TestParseATLineSRegisterSetAndQuery(t *testing.T) {
	s := DefaultModemSettings()
	ParseATLine(&s, "ATS2=43")
	assert.Equal(t, byte(43), s.SRegisters[2])

	// A query is accepted and leaves the register unchanged.
	outcome := ParseATLine(&s, "ATS2?")
	assert.Equal(t, "OK", outcome.ResultCode)
	assert.Equal(t, byte(43), s.SRegisters[2])
}

func TestParseATLineAmpersandD(t *testing.T) {
	s := DefaultModemSettings()
	ParseATLine(&s, "AT&D2")
	assert.Equal(t, DTRHangup, s.DTR)
}

func TestParseATLineAmpersandFResetsSettings(t *testing.T) {
	s := DefaultModemSettings()
	s.Echo = false
	s.Quiet = true
	ParseATLine(&s, "AT&F")
	assert.True(t, s.Echo)
	assert.False(t, s.Quiet)
}

func TestParseATLineChainedCommands(t *testing.T) {
	s := DefaultModemSettings()
	outcome := ParseATLine(&s, "ATE0V1Q0")
	assert.False(t, s.Echo)
	assert.Equal(t, ResultVerbose, s.Result)
	assert.False(t, s.Quiet)
	assert.Equal(t, "OK", outcome.ResultCode)
}

func TestFormatResultQuietSuppressesOutput(t *testing.T) {
	s := DefaultModemSettings()
	s.Quiet = true
	assert.Equal(t, "", FormatResult(&s, "OK", 0))
}

func TestFormatResultVerbose(t *testing.T) {
	s := DefaultModemSettings()
	assert.Equal(t, "\r\nOK\r\n", FormatResult(&s, "OK", 0))
}

func TestFormatResultNumeric(t *testing.T) {
	s := DefaultModemSettings()
	s.Result = ResultNumeric
	assert.Equal(t, "0\r", FormatResult(&s, "OK", 0))
}

func TestFormatResultConnectWithSpeed(t *testing.T) {
	s := DefaultModemSettings()
	assert.Equal(t, "\r\nCONNECT 9600\r\n", FormatResult(&s, "CONNECT", 9600))
}

func TestFormatResultXLevelCollapsesBusy(t *testing.T) {
	s := DefaultModemSettings()
	s.XLevel = 0
	assert.Equal(t, "\r\nNO CARRIER\r\n", FormatResult(&s, "BUSY", 0))
}
