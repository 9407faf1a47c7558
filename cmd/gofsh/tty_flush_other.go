//go:build !linux

package main

// flushStdin is a no-op outside Linux.
func flushStdin() error {
	return nil
}
