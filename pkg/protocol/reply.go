package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds carried in ERR status lines
const (
	KindNotFound    = "not_found"
	KindExists      = "exists"
	KindNotDir      = "not_dir"
	KindIsDir       = "is_dir"
	KindPermission  = "permission"
	KindOutsideRoot = "outside_root"
	KindInvalid     = "invalid"
	KindTooLarge    = "too_large"
	KindParse       = "parse"
	KindIO          = "io"
)

// ErrBadReply is returned by ParseReply when the status line is malformed.
var ErrBadReply = errors.New("malformed reply")

// RemoteError is a failure reported by the server for one command.
type RemoteError struct {
	Kind    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Reply is the single framed message sent after every non-exit command:
// a status line followed by the rendered listing of the working directory.
type Reply struct {
	// Value is the optional payload of an OK status, e.g. a file size.
	Value   string
	Err     *RemoteError
	Listing string
}

// OK reports whether the command succeeded.
func (r Reply) OK() bool {
	return r.Err == nil
}

// StatusLine renders the first line of the reply.
func (r Reply) StatusLine() string {
	if r.Err != nil {
		msg := strings.ReplaceAll(r.Err.Message, "\n", " ")
		return fmt.Sprintf("%s %s: %s", StatusErr, r.Err.Kind, msg)
	}
	if r.Value != "" {
		return StatusOK + " " + r.Value
	}
	return StatusOK
}

// Encode renders the reply for framing.
func (r Reply) Encode() string {
	return r.StatusLine() + "\n" + r.Listing
}

// ParseReply parses a decoded reply message.
func ParseReply(msg string) (Reply, error) {
	status, listing, _ := strings.Cut(msg, "\n")
	status = strings.TrimSpace(status)

	switch {
	case status == StatusOK:
		return Reply{Listing: listing}, nil
	case strings.HasPrefix(status, StatusOK+" "):
		return Reply{Value: strings.TrimPrefix(status, StatusOK+" "), Listing: listing}, nil
	case strings.HasPrefix(status, StatusErr+" "):
		kind, message, ok := strings.Cut(strings.TrimPrefix(status, StatusErr+" "), ": ")
		if !ok {
			return Reply{}, ErrBadReply
		}
		return Reply{Err: &RemoteError{Kind: kind, Message: message}, Listing: listing}, nil
	default:
		return Reply{}, ErrBadReply
	}
}
