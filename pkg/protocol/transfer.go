package protocol

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrUnavailable is sent in place of a payload when the sender has
	// nothing to transfer (for example a dl of a missing file).
	ErrUnavailable = errors.New("transfer unavailable")
	// ErrTransferTooLarge means the announced payload exceeds the limit.
	ErrTransferTooLarge = errors.New("transfer exceeds maximum size")
	// ErrBadTransfer means the size header is invalid.
	ErrBadTransfer = errors.New("invalid transfer header")
)

const unavailableSize int64 = -1

func writeHeader(w io.Writer, size int64) error {
	var hdr [TransferHeader]byte
	binary.BigEndian.PutUint64(hdr[:], uint64(size))
	_, err := w.Write(hdr[:])
	return err
}

// WriteTransfer sends a size header followed by exactly size bytes read
// from src, then flushes w.
func WriteTransfer(w *bufio.Writer, src io.Reader, size int64) (int64, error) {
	if size < 0 {
		return 0, ErrBadTransfer
	}
	if err := writeHeader(w, size); err != nil {
		return 0, err
	}
	buf := make([]byte, ChunkSize)
	n, err := io.CopyBuffer(w, io.LimitReader(src, size), buf)
	if err != nil {
		return n, err
	}
	if n != size {
		return n, fmt.Errorf("short transfer source: %d of %d bytes: %w", n, size, io.ErrUnexpectedEOF)
	}
	return n, w.Flush()
}

// WriteUnavailable sends the header that announces no payload.
func WriteUnavailable(w *bufio.Writer) error {
	if err := writeHeader(w, unavailableSize); err != nil {
		return err
	}
	return w.Flush()
}

// ReadTransferHeader reads the size header of an incoming transfer.
func ReadTransferHeader(r io.Reader) (int64, error) {
	var hdr [TransferHeader]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, err
	}
	size := int64(binary.BigEndian.Uint64(hdr[:]))
	switch {
	case size == unavailableSize:
		return 0, ErrUnavailable
	case size < 0:
		return 0, ErrBadTransfer
	}
	return size, nil
}

// CopyTransfer copies exactly size payload bytes from r to dst.
func CopyTransfer(r io.Reader, dst io.Writer, size int64) (int64, error) {
	buf := make([]byte, ChunkSize)
	n, err := io.CopyBuffer(dst, io.LimitReader(r, size), buf)
	if err != nil {
		return n, err
	}
	if n != size {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

// Drain discards size payload bytes so the stream stays in sync after a
// rejected transfer.
func Drain(r io.Reader, size int64) error {
	_, err := CopyTransfer(r, io.Discard, size)
	return err
}

// ReadTransfer reads a complete transfer into dst. A payload larger than
// limit (when limit > 0) is drained and rejected with ErrTransferTooLarge.
func ReadTransfer(r io.Reader, dst io.Writer, limit int64) (int64, error) {
	size, err := ReadTransferHeader(r)
	if err != nil {
		return 0, err
	}
	if limit > 0 && size > limit {
		if err := Drain(r, size); err != nil {
			return 0, err
		}
		return 0, ErrTransferTooLarge
	}
	return CopyTransfer(r, dst, size)
}

// Sink wraps the destination of a transfer. Write failures are recorded
// instead of returned, and later data is discarded, so the payload can still
// be consumed in full from the stream.
type Sink struct {
	w   io.Writer
	err error
}

// NewSink returns a Sink writing to w.
func NewSink(w io.Writer) *Sink {
	return &Sink{w: w}
}

func (s *Sink) Write(p []byte) (int, error) {
	if s.err != nil {
		return len(p), nil
	}
	if _, err := s.w.Write(p); err != nil {
		s.err = err
	}
	return len(p), nil
}

// Err returns the first write failure.
func (s *Sink) Err() error {
	return s.err
}
