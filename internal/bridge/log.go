package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Package-wide leveled logging.
 *
 * Description:	The teacher this repo grew out of routes every diagnostic
 *		line through a pair of C-style calls, text_color_set() and
 *		dw_printf(), that together amount to a colorized severity
 *		print. We keep one log line per layer instead, each with
 *		its own prefix, built on charmbracelet/log so the severity
 *		coloring survives the port without hand rolling it again.
 *
 *---------------------------------------------------------------*/

import (
	"os"

	"github.com/charmbracelet/log"
)

var (
	l1log = log.NewWithOptions(os.Stderr, log.Options{Prefix: "l1/modem"})
	l2log = log.NewWithOptions(os.Stderr, log.Options{Prefix: "l2/telnet"})
	l3log = log.NewWithOptions(os.Stderr, log.Options{Prefix: "l3/pipeline"})
	cfglog = log.NewWithOptions(os.Stderr, log.Options{Prefix: "config"})
)

// SetVerbose raises every layer logger to debug level; the default is
// info. Mirrors the `-v` CLI flag of spec.md §6.
func SetVerbose(v bool) {
	lvl := log.InfoLevel
	if v {
		lvl = log.DebugLevel
	}
	l1log.SetLevel(lvl)
	l2log.SetLevel(lvl)
	l3log.SetLevel(lvl)
	cfglog.SetLevel(lvl)
}
