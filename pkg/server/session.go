package server

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/frjcomp/gofsh/pkg/config"
	"github.com/frjcomp/gofsh/pkg/fsops"
	"github.com/frjcomp/gofsh/pkg/logging"
	"github.com/frjcomp/gofsh/pkg/metrics"
	"github.com/frjcomp/gofsh/pkg/protocol"
)

// errExit ends the command loop without a reply.
var errExit = errors.New("client requested exit")

// transportError marks a failure that leaves the connection unusable, as
// opposed to a command failure that is reported to the client.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }

func (e *transportError) Unwrap() error { return e.err }

func fatal(err error) error {
	return &transportError{err: err}
}

// Session is one connected client. It owns its connection, its token and its
// working directory; nothing else reads or writes them.
type Session struct {
	id     string
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	framer protocol.Framer
	token  string
	cwd    string
	root   *fsops.Root
	cfg    *config.ServerConfig
	log    *zap.SugaredLogger
}

func newSession(conn net.Conn, root *fsops.Root, cfg *config.ServerConfig) *Session {
	id := conn.RemoteAddr().String()
	return &Session{
		id:     id,
		conn:   conn,
		reader: bufio.NewReaderSize(conn, protocol.BufferSize),
		writer: bufio.NewWriterSize(conn, protocol.BufferSize),
		cwd:    root.Path(),
		root:   root,
		cfg:    cfg,
		log:    logging.With(logging.String("session", id)),
	}
}

// ID returns the session identifier, the client's remote address.
func (s *Session) ID() string {
	return s.id
}

// Cwd returns the current working directory.
func (s *Session) Cwd() string {
	return s.cwd
}

// Serve runs the handshake and then executes commands until the client
// exits or the connection fails. A clean exit returns nil.
func (s *Session) Serve() error {
	if err := s.handshake(); err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}

	for {
		msg, err := s.readCommand()
		if err != nil {
			return err
		}

		start := time.Now()
		reply, err := s.dispatch(msg)
		verb := commandVerb(msg)
		if errors.Is(err, errExit) {
			metrics.RecordCommand(protocol.CmdExit, true, time.Since(start))
			s.log.Infof("Client sent exit")
			return nil
		}
		var te *transportError
		if errors.As(err, &te) {
			metrics.RecordCommand(verb, false, time.Since(start))
			return te.err
		}

		if err := s.sendReply(reply); err != nil {
			return err
		}
		metrics.RecordCommand(verb, reply.OK(), time.Since(start))
	}
}

// handshake sends the raw session token and the initial listing.
func (s *Session) handshake() error {
	token, err := protocol.GenerateToken()
	if err != nil {
		return err
	}
	s.token = token

	if _, err := s.writer.WriteString(token); err != nil {
		return err
	}
	if err := s.writer.Flush(); err != nil {
		return err
	}

	framer, err := protocol.NewFramer(s.cfg.Framing, s.reader, s.writer, token, s.cfg.MaxMessageSize)
	if err != nil {
		return err
	}
	s.framer = framer
	s.log.Debugf("Issued token, framing=%s", s.cfg.Framing)

	return s.sendReply(protocol.Reply{})
}

// readCommand waits for the next control message, bounded by the idle
// timeout when one is configured.
func (s *Session) readCommand() (string, error) {
	if s.cfg.IdleTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout)); err != nil {
			return "", err
		}
	}
	msg, err := s.framer.ReadMessage()
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return "", fmt.Errorf("idle for %v: %w", s.cfg.IdleTimeout, err)
		}
		return "", err
	}
	if s.cfg.IdleTimeout > 0 {
		// Transfers that follow the command are not subject to the idle limit.
		if err := s.conn.SetReadDeadline(time.Time{}); err != nil {
			return "", err
		}
	}
	return msg, nil
}

// sendReply attaches the listing of the working directory and sends the
// reply. If the working directory vanished underneath the session it falls
// back to the root.
func (s *Session) sendReply(reply protocol.Reply) error {
	listing, err := s.root.List(s.cwd)
	if err != nil {
		s.log.Warnf("Working directory unavailable, returning to root: %v", err)
		s.cwd = s.root.Path()
		if reply.Err == nil {
			reply.Value = ""
			reply.Err = &protocol.RemoteError{Kind: fsops.KindOf(err), Message: "working directory no longer exists"}
		}
		if listing, err = s.root.List(s.cwd); err != nil {
			return err
		}
	}
	reply.Listing = listing.Render()
	return s.framer.WriteMessage(reply.Encode())
}

func commandVerb(msg string) string {
	cmd, err := protocol.ParseCommand(msg)
	if err != nil {
		return "invalid"
	}
	return cmd.Verb
}
