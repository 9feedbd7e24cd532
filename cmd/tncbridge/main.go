package main

/*------------------------------------------------------------------
 *
 * Name:	tncbridge
 *
 * Purpose:	Entry point for the Hayes-modem/telnet bridge daemon.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/n7qh/tncbridge/internal/bridge"
)

var version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = pflag.StringP("config", "c", "/etc/tncbridge.conf", "configuration file")
		daemonize  = pflag.BoolP("daemon", "d", false, "run in the background")
		pidFile    = pflag.StringP("pid-file", "p", "", "write PID to this file (overrides config)")
		verbose    = pflag.BoolP("verbose", "v", false, "enable debug logging")
		showVer    = pflag.BoolP("version", "V", false, "print version and exit")
	)
	pflag.Parse()

	if *showVer {
		fmt.Println("tncbridge", version)
		return 0
	}

	bridge.SetVerbose(*verbose)

	cfg, err := bridge.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tncbridge: config error:", err)
		return 1
	}
	if *pidFile != "" {
		cfg.PidFile = *pidFile
	}

	if *daemonize {
		if err := daemonizeSelf(); err != nil {
			fmt.Fprintln(os.Stderr, "tncbridge: could not daemonize:", err)
			return 1
		}
	}

	b, err := bridge.NewBridge(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tncbridge:", err)
		return 1
	}

	if err := b.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "tncbridge:", err)
		return 1
	}
	return 0
}
