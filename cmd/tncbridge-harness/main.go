package main

/*------------------------------------------------------------------
 *
 * Name:	tncbridge-harness
 *
 * Purpose:	Development harness standing a pty in for a physical
 *		modem line, so the bridge can be exercised without real
 *		serial hardware. Prints the pty's slave path and a tiny
 *		script drives AT commands against it interactively.
 *
 *---------------------------------------------------------------*/

import (
	"bufio"
	"fmt"
	"os"

	"github.com/creack/pty"
)

func main() {
	os.Exit(run())
}

func run() int {
	ptmx, tty, err := pty.Open()
	if err != nil {
		fmt.Fprintln(os.Stderr, "tncbridge-harness:", err)
		return 1
	}
	defer ptmx.Close()
	defer tty.Close()

	fmt.Printf("harness: point tncbridge's serial_port at %s\n", tty.Name())
	fmt.Println("harness: typing a line here sends it to the bridge as modem traffic;")
	fmt.Println("harness: bridge responses are echoed below. Ctrl-D to quit.")

	go echoFromBridge(ptmx)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text() + "\r"
		if _, err := ptmx.Write([]byte(line)); err != nil {
			fmt.Fprintln(os.Stderr, "harness: write error:", err)
			return 1
		}
	}
	return 0
}

func echoFromBridge(ptmx *os.File) {
	buf := make([]byte, 256)
	for {
		n, err := ptmx.Read(buf)
		if err != nil {
			return
		}
		os.Stdout.Write(buf[:n])
	}
}
