package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Read configuration information from a file.
 *
 * Description:	INI-style key=value lines, one setting per line, '#'
 *		and ';' starting a comment. Unknown keys are warned about
 *		and skipped rather than rejected outright, so a config
 *		written for a newer build still starts the bridge (spec.md
 *		§6 "Configuration file").
 *
 *---------------------------------------------------------------*/

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds every recognized key (spec.md §6).
type Config struct {
	SerialPort string
	BaudRate   int

	TelnetHost string
	TelnetPort int

	ModemInitCommand string

	ModemAutoanswerMode            int // 0 = software ATA after 2 RINGs, 1 = hardware S0
	ModemAutoanswerSoftwareCommand string
	ModemAutoanswerHardwareCommand string

	EchoEnabled     bool
	EchoImmediate   bool
	EchoFirstDelay  int // seconds
	EchoMinInterval int // seconds
	EchoPrefix      string

	DataLogEnabled bool
	DataLogFile    string

	PidFile string

	LatencyBoundMS int

	configPath string
}

// DefaultConfig mirrors the factory defaults a freshly-dialed modem
// would assume.
func DefaultConfig() Config {
	return Config{
		BaudRate:        9600,
		TelnetPort:      23,
		ModemAutoanswerMode: 0,
		EchoFirstDelay:  0,
		EchoMinInterval: 60,
		EchoPrefix:      "tncbridge",
		LatencyBoundMS:  200,
	}
}

// LoadConfig reads path into a Config seeded with DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("bridge: open config %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			cfglog.Warn("malformed config line, skipping", "line", lineNo)
			continue
		}
		key = strings.TrimSpace(strings.ToLower(key))
		value = strings.TrimSpace(value)
		if err := cfg.apply(key, value); err != nil {
			cfglog.Warn("config key rejected", "key", key, "err", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("bridge: read config %s: %w", path, err)
	}
	cfg.configPath = path
	return cfg, nil
}

func (c *Config) apply(key, value string) error {
	switch key {
	case "serial_port":
		c.SerialPort = value
	case "baudrate":
		v, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.BaudRate = v
	case "telnet_host":
		c.TelnetHost = value
	case "telnet_port":
		v, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.TelnetPort = v
	case "modem_init_command":
		c.ModemInitCommand = value
	case "modem_autoanswer_mode":
		v, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.ModemAutoanswerMode = v
	case "modem_autoanswer_software_command":
		c.ModemAutoanswerSoftwareCommand = value
	case "modem_autoanswer_hardware_command":
		c.ModemAutoanswerHardwareCommand = value
	case "echo_enabled":
		c.EchoEnabled = parseBool(value)
	case "echo_immediate":
		c.EchoImmediate = parseBool(value)
	case "echo_first_delay":
		v, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.EchoFirstDelay = v
	case "echo_min_interval":
		v, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.EchoMinInterval = v
	case "echo_prefix":
		c.EchoPrefix = value
	case "data_log_enabled":
		c.DataLogEnabled = parseBool(value)
	case "data_log_file":
		c.DataLogFile = value
	case "pid_file":
		c.PidFile = value
	case "latency_bound_ms":
		v, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.LatencyBoundMS = v
	default:
		return fmt.Errorf("unrecognized key %q", key)
	}
	return nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
