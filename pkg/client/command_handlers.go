package client

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/frjcomp/gofsh/pkg/protocol"
)

const helpText = `Commands:
  cd <dir>                  change the remote working directory ("cd .." for the parent)
  mkdir <dir>               create a remote directory
  rm <name>                 remove a remote file or directory tree
  mv <name> <dest>          move into directory <dest>, or rename to <dest>
  ul <local> [<remote>]     upload a local file
  dl <remote> [<local>]     download a remote file
  info <name>               show the size of a remote file
  help                      show this help
  exit                      close the session`

// ProcessCommand runs one line of user input and writes the outcome to out.
// It returns false once the session is over. Failures reported by the
// server are printed and do not end the session; transport failures are
// returned.
func (c *Client) ProcessCommand(line string, out io.Writer) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return true, nil
	}

	verb, rest := line, ""
	if i := strings.IndexFunc(line, unicode.IsSpace); i >= 0 {
		verb, rest = line[:i], strings.TrimSpace(line[i+1:])
	}

	var err error
	switch verb {
	case "help", "?":
		fmt.Fprintln(out, helpText)
		return true, nil
	case protocol.CmdExit:
		if err := c.Exit(); err != nil && !errors.Is(err, ErrNotConnected) {
			return false, err
		}
		return false, nil
	case protocol.CmdCd:
		err = c.handleCdCommand(rest, out)
	case protocol.CmdMkdir:
		err = c.handleMkdirCommand(rest, out)
	case protocol.CmdRm:
		err = c.handleRmCommand(rest, out)
	case protocol.CmdMv:
		err = c.handleMvCommand(rest, out)
	case protocol.CmdUl:
		err = c.handleUploadCommand(rest, out)
	case protocol.CmdDl:
		err = c.handleDownloadCommand(rest, out)
	case protocol.CmdInfo:
		err = c.handleInfoCommand(rest, out)
	default:
		fmt.Fprintf(out, "Unknown command: %s (type 'help' for a list)\n", verb)
		return true, nil
	}
	return c.report(err, out)
}

// report decides whether err ends the session.
func (c *Client) report(err error, out io.Writer) (bool, error) {
	if err == nil {
		return true, nil
	}
	if !c.isConnected {
		return false, err
	}
	var re *RemoteError
	var pe *protocol.ParseError
	switch {
	case errors.As(err, &re):
		fmt.Fprintf(out, "Error: %v\n", re)
		fmt.Fprintln(out, c.listing)
	case errors.As(err, &pe):
		fmt.Fprintf(out, "Error: %s\n", pe.Reason)
	default:
		fmt.Fprintf(out, "Error: %v\n", err)
	}
	return true, nil
}

func (c *Client) printListing(out io.Writer) {
	fmt.Fprintln(out, c.listing)
}

func (c *Client) handleCdCommand(arg string, out io.Writer) error {
	if _, err := c.Cd(arg); err != nil {
		return err
	}
	c.printListing(out)
	return nil
}

func (c *Client) handleMkdirCommand(arg string, out io.Writer) error {
	if _, err := c.Mkdir(arg); err != nil {
		return err
	}
	c.printListing(out)
	return nil
}

func (c *Client) handleRmCommand(arg string, out io.Writer) error {
	if _, err := c.Rm(arg); err != nil {
		return err
	}
	c.printListing(out)
	return nil
}

func (c *Client) handleMvCommand(args string, out io.Writer) error {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return &protocol.ParseError{Input: args, Reason: "usage: mv <name> <destination>"}
	}
	if _, err := c.Mv(fields[0], fields[1]); err != nil {
		return err
	}
	c.printListing(out)
	return nil
}

func (c *Client) handleInfoCommand(arg string, out io.Writer) error {
	size, _, err := c.Info(arg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Size in bytes: %d\n", size)
	c.printListing(out)
	return nil
}

// splitTransferArgs splits "<src> [<dst>]". A missing destination defaults
// to the base name of the source. Anything other than exactly two fields is
// taken as a single name, so names with spaces work without a destination.
func splitTransferArgs(args string) (string, string) {
	fields := strings.Fields(args)
	if len(fields) == 2 {
		return fields[0], fields[1]
	}
	return args, filepath.Base(args)
}

func (c *Client) handleUploadCommand(args string, out io.Writer) error {
	if args == "" {
		return &protocol.ParseError{Input: args, Reason: "usage: ul <local> [<remote>]"}
	}
	local, remote := splitTransferArgs(args)
	n, _, err := c.Upload(local, remote)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Uploaded %s -> %s (%d bytes)\n", local, remote, n)
	c.noteLegacySize(n, out)
	c.printListing(out)
	return nil
}

func (c *Client) handleDownloadCommand(args string, out io.Writer) error {
	if args == "" {
		return &protocol.ParseError{Input: args, Reason: "usage: dl <remote> [<local>]"}
	}
	remote, local := splitTransferArgs(args)
	n, _, err := c.Download(remote, local)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Downloaded %s -> %s (%d bytes)\n", remote, local, n)
	c.noteLegacySize(n, out)
	c.printListing(out)
	return nil
}

// noteLegacySize points out transfers that the old single-read protocol
// would have truncated. Only relevant in token framing mode.
func (c *Client) noteLegacySize(n int64, out io.Writer) {
	if c.framing == protocol.FramingToken && c.warnSize > 0 && n > c.warnSize {
		fmt.Fprintf(out, "Note: %d bytes exceeds %d; peers using the legacy single-read transfer truncate it\n", n, c.warnSize)
	}
}
