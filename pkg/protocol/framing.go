package protocol

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrTokenNotFound means the stream ended before the delimiter token.
	ErrTokenNotFound = errors.New("delimiter token not found")
	// ErrMessageTooLarge means a control message exceeded the size limit.
	ErrMessageTooLarge = errors.New("message exceeds maximum size")
	// ErrTokenInPayload means a message contains its own delimiter and
	// cannot be sent with token framing.
	ErrTokenInPayload = errors.New("message contains delimiter token")
)

// Encode appends the delimiter token to message.
func Encode(message, token string) []byte {
	out := make([]byte, 0, len(message)+len(token))
	out = append(out, message...)
	return append(out, token...)
}

// Decode returns everything before the first occurrence of token in raw,
// with surrounding whitespace trimmed. It works on a single buffer and does
// not reassemble; use TokenFramer for streams.
func Decode(raw []byte, token string) (string, error) {
	idx := bytes.Index(raw, []byte(token))
	if idx < 0 {
		return "", ErrTokenNotFound
	}
	return strings.TrimSpace(string(raw[:idx])), nil
}

// Framer reads and writes discrete control messages on a byte stream.
type Framer interface {
	// WriteMessage frames and flushes one message.
	WriteMessage(msg string) error

	// ReadMessage blocks until one complete message is available.
	ReadMessage() (string, error)
}

// NewFramer returns the framer for mode. Reads and writes go through the
// given buffered reader and writer so that transfer payloads interleaved on
// the same connection share the buffers.
func NewFramer(mode string, r *bufio.Reader, w *bufio.Writer, token string, maxSize int) (Framer, error) {
	if maxSize <= 0 {
		maxSize = MaxMessageSize
	}
	switch mode {
	case FramingLength, "":
		return &LengthFramer{r: r, w: w, maxSize: maxSize}, nil
	case FramingToken:
		if !ValidToken(token) {
			return nil, ErrBadToken
		}
		return &TokenFramer{r: r, w: w, token: []byte(token), maxSize: maxSize}, nil
	default:
		return nil, fmt.Errorf("unknown framing mode %q", mode)
	}
}

// TokenFramer delimits messages with the session token.
type TokenFramer struct {
	r       *bufio.Reader
	w       *bufio.Writer
	token   []byte
	maxSize int
}

// WriteMessage writes msg followed by the token.
func (f *TokenFramer) WriteMessage(msg string) error {
	if strings.Contains(msg, string(f.token)) {
		return ErrTokenInPayload
	}
	if _, err := f.w.WriteString(msg); err != nil {
		return err
	}
	if _, err := f.w.Write(f.token); err != nil {
		return err
	}
	return f.w.Flush()
}

// ReadMessage accumulates bytes until the token is seen. A token split across
// TCP segments is found because the search runs over the accumulated buffer.
func (f *TokenFramer) ReadMessage() (string, error) {
	last := f.token[len(f.token)-1]
	var buf []byte
	for {
		chunk, err := f.r.ReadSlice(last)
		buf = append(buf, chunk...)

		if bytes.HasSuffix(buf, f.token) {
			return strings.TrimSpace(string(buf[:len(buf)-len(f.token)])), nil
		}
		if len(buf) > f.maxSize+len(f.token) {
			return "", ErrMessageTooLarge
		}

		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			if err == io.EOF {
				if len(buf) == 0 {
					return "", io.EOF
				}
				return "", ErrTokenNotFound
			}
			return "", err
		}
	}
}

// LengthFramer prefixes each message with a 4-byte big-endian length.
type LengthFramer struct {
	r       *bufio.Reader
	w       *bufio.Writer
	maxSize int
}

// WriteMessage writes the length header and msg.
func (f *LengthFramer) WriteMessage(msg string) error {
	if len(msg) > f.maxSize {
		return ErrMessageTooLarge
	}
	var hdr [LengthHeader]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(msg)))
	if _, err := f.w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := f.w.WriteString(msg); err != nil {
		return err
	}
	return f.w.Flush()
}

// ReadMessage reads one length-prefixed message.
func (f *LengthFramer) ReadMessage() (string, error) {
	var hdr [LengthHeader]byte
	if _, err := io.ReadFull(f.r, hdr[:]); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if uint64(n) > uint64(f.maxSize) {
		return "", ErrMessageTooLarge
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(f.r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return "", err
	}
	return string(payload), nil
}
