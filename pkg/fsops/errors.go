package fsops

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"

	"github.com/frjcomp/gofsh/pkg/protocol"
)

var (
	ErrOutsideRoot = errors.New("path escapes root")
	ErrInvalidName = errors.New("invalid name")
	ErrNotDir      = errors.New("not a directory")
	ErrIsDir       = errors.New("is a directory")
	ErrNoSpace     = errors.New("not enough free space")
	ErrBusy        = errors.New("is the working directory or one of its parents")
	ErrUnsupported = errors.New("not supported on this platform")
)

// Error records a failed filesystem operation. Path is the name as the
// client supplied it, never the host path.
type Error struct {
	Op   string
	Path string
	Kind string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(op, name string, err error) *Error {
	return &Error{Op: op, Path: name, Kind: KindOf(err), Err: stripPath(err)}
}

// stripPath drops the host paths that os functions embed in their errors.
func stripPath(err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	var le *os.LinkError
	if errors.As(err, &le) {
		return le.Err
	}
	return err
}

// KindOf maps an error onto the wire error kinds.
func KindOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrOutsideRoot):
		return protocol.KindOutsideRoot
	case errors.Is(err, ErrInvalidName), errors.Is(err, ErrBusy), errors.Is(err, syscall.EINVAL):
		return protocol.KindInvalid
	case errors.Is(err, ErrNotDir), errors.Is(err, syscall.ENOTDIR):
		return protocol.KindNotDir
	case errors.Is(err, ErrIsDir), errors.Is(err, syscall.EISDIR):
		return protocol.KindIsDir
	case errors.Is(err, ErrNoSpace), errors.Is(err, syscall.ENOSPC):
		return protocol.KindTooLarge
	case errors.Is(err, fs.ErrNotExist):
		return protocol.KindNotFound
	case errors.Is(err, fs.ErrExist), errors.Is(err, syscall.ENOTEMPTY):
		return protocol.KindExists
	case errors.Is(err, fs.ErrPermission):
		return protocol.KindPermission
	default:
		return protocol.KindIO
	}
}
