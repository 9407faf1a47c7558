package server

import (
	"errors"
	"strconv"

	"github.com/frjcomp/gofsh/pkg/fsops"
	"github.com/frjcomp/gofsh/pkg/metrics"
	"github.com/frjcomp/gofsh/pkg/protocol"
)

// errUploadCancelled is reported when the client announces an upload but
// sends no payload.
var errUploadCancelled = errors.New("upload cancelled by client")

type commandHandler func(s *Session, cmd protocol.Command) (string, error)

var handlers = map[string]commandHandler{
	protocol.CmdCd:    (*Session).handleCdCommand,
	protocol.CmdMkdir: (*Session).handleMkdirCommand,
	protocol.CmdRm:    (*Session).handleRmCommand,
	protocol.CmdMv:    (*Session).handleMvCommand,
	protocol.CmdUl:    (*Session).handleUlCommand,
	protocol.CmdDl:    (*Session).handleDlCommand,
	protocol.CmdInfo:  (*Session).handleInfoCommand,
}

// dispatch parses and executes one command. Command failures come back as
// an ERR reply; errExit and transport errors are returned as err.
func (s *Session) dispatch(msg string) (protocol.Reply, error) {
	cmd, err := protocol.ParseCommand(msg)
	if err != nil {
		s.log.Debugf("Rejected command %q: %v", msg, err)
		return protocol.Reply{Err: remoteError(err)}, nil
	}
	if cmd.Verb == protocol.CmdExit {
		return protocol.Reply{}, errExit
	}

	s.log.Debugf("Executing %s", cmd)
	value, err := handlers[cmd.Verb](s, cmd)
	if err != nil {
		var te *transportError
		if errors.As(err, &te) {
			return protocol.Reply{}, err
		}
		s.log.Infof("%s failed: %v", cmd.Verb, err)
		return protocol.Reply{Err: remoteError(err)}, nil
	}
	return protocol.Reply{Value: value}, nil
}

// remoteError converts a command failure into its wire form.
func remoteError(err error) *protocol.RemoteError {
	var pe *protocol.ParseError
	if errors.As(err, &pe) {
		return &protocol.RemoteError{Kind: protocol.KindParse, Message: pe.Reason}
	}
	kind := fsops.KindOf(err)
	switch {
	case errors.Is(err, protocol.ErrTransferTooLarge):
		kind = protocol.KindTooLarge
	case errors.Is(err, errUploadCancelled):
		kind = protocol.KindInvalid
	}
	return &protocol.RemoteError{Kind: kind, Message: err.Error()}
}

func (s *Session) handleCdCommand(cmd protocol.Command) (string, error) {
	cwd, err := s.root.ChangeDir(s.cwd, cmd.Arg(0))
	if err != nil {
		return "", err
	}
	s.cwd = cwd
	return "", nil
}

func (s *Session) handleMkdirCommand(cmd protocol.Command) (string, error) {
	return "", s.root.MakeDir(s.cwd, cmd.Arg(0))
}

func (s *Session) handleRmCommand(cmd protocol.Command) (string, error) {
	return "", s.root.Remove(s.cwd, cmd.Arg(0))
}

func (s *Session) handleMvCommand(cmd protocol.Command) (string, error) {
	dst, err := s.root.Move(s.cwd, cmd.Arg(0), cmd.Arg(1))
	if err != nil {
		return "", err
	}
	s.log.Infof("Moved %s to %s", cmd.Arg(0), dst)
	return "", nil
}

func (s *Session) handleInfoCommand(cmd protocol.Command) (string, error) {
	size, err := s.root.Size(s.cwd, cmd.Arg(0))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(size, 10), nil
}

// handleUlCommand receives a transfer into cwd. The payload is always
// consumed in full so the stream stays aligned even when the upload is
// rejected.
func (s *Session) handleUlCommand(cmd protocol.Command) (string, error) {
	name := cmd.Arg(0)
	size, err := protocol.ReadTransferHeader(s.reader)
	if errors.Is(err, protocol.ErrUnavailable) {
		return "", errUploadCancelled
	}
	if err != nil {
		return "", fatal(err)
	}

	if s.cfg.MaxTransferSize > 0 && size > s.cfg.MaxTransferSize {
		if err := protocol.Drain(s.reader, size); err != nil {
			return "", fatal(err)
		}
		return "", protocol.ErrTransferTooLarge
	}

	f, err := s.root.Create(s.cwd, name, size)
	if err != nil {
		if derr := protocol.Drain(s.reader, size); derr != nil {
			return "", fatal(derr)
		}
		return "", err
	}
	defer f.Abort()

	sink := protocol.NewSink(f)
	n, err := protocol.CopyTransfer(s.reader, sink, size)
	metrics.RecordTransfer(metrics.Upload, n)
	if err != nil {
		return "", fatal(err)
	}
	if err := sink.Err(); err != nil {
		return "", err
	}
	if err := f.Commit(); err != nil {
		return "", err
	}
	s.log.Infof("Received %s (%d bytes)", name, n)
	return "", nil
}

// handleDlCommand sends a file from cwd, or an unavailable header when it
// cannot be opened.
func (s *Session) handleDlCommand(cmd protocol.Command) (string, error) {
	name := cmd.Arg(0)
	f, size, err := s.root.Open(s.cwd, name)
	if err != nil {
		if werr := protocol.WriteUnavailable(s.writer); werr != nil {
			return "", fatal(werr)
		}
		return "", err
	}
	defer f.Close()

	n, err := protocol.WriteTransfer(s.writer, f, size)
	metrics.RecordTransfer(metrics.Download, n)
	if err != nil {
		// The header promised size bytes; the stream cannot be recovered.
		return "", fatal(err)
	}
	s.log.Infof("Sent %s (%d bytes)", name, n)
	return "", nil
}
