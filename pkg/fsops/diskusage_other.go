//go:build !linux && !darwin && !freebsd && !dragonfly && !windows

package fsops

// FreeSpace is not available here; callers skip the free-space check.
func FreeSpace(path string) (uint64, error) {
	return 0, ErrUnsupported
}
