//go:build linux

package main

import (
	"os"

	"golang.org/x/sys/unix"
)

// flushStdin discards keystrokes typed while a transfer was running.
func flushStdin() error {
	fd := int(os.Stdin.Fd())
	return unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIFLUSH)
}
