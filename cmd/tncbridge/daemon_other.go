//go:build !linux

package main

import "errors"

func daemonizeSelf() error {
	return errors.New("tncbridge: -d/--daemon is not supported on this platform")
}
