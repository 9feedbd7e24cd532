package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	PID file lifecycle (spec.md §6 "pid_file").
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"
)

// WritePIDFile writes the current process's PID to path, truncating any
// existing content.
func WritePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}

// RemovePIDFile removes the PID file; errors are swallowed since this
// only runs during shutdown.
func RemovePIDFile(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}
