package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/frjcomp/gofsh/pkg/config"
	"github.com/frjcomp/gofsh/pkg/protocol"
)

// RemoteError is a command failure reported by the server.
type RemoteError = protocol.RemoteError

// ErrNotConnected is returned by command methods before Connect succeeds
// or after the connection is gone.
var ErrNotConnected = errors.New("not connected")

// Client is a connection to a gofsh server. Commands are strictly
// sequential; a Client must not be used from several goroutines at once.
type Client struct {
	target      string
	framing     string
	maxSize     int
	warnSize    int64
	conn        net.Conn
	reader      *bufio.Reader
	writer      *bufio.Writer
	framer      protocol.Framer
	token       string
	listing     string
	isConnected bool
}

// NewClient creates a client for cfg.Target.
func NewClient(cfg *config.ClientConfig) *Client {
	return &Client{
		target:   cfg.Target,
		framing:  cfg.Framing,
		maxSize:  cfg.MaxMessageSize,
		warnSize: cfg.WarnTransferSize,
	}
}

// Connect dials the server and performs the handshake.
func (c *Client) Connect() error {
	return c.ConnectContext(context.Background())
}

// ConnectContext is Connect with a context bounding the dial.
func (c *Client) ConnectContext(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.target)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	if err := c.attach(conn); err != nil {
		conn.Close()
		return err
	}
	return nil
}

// attach runs the handshake over an established connection.
func (c *Client) attach(conn net.Conn) error {
	reader := bufio.NewReaderSize(conn, protocol.BufferSize)
	writer := bufio.NewWriterSize(conn, protocol.BufferSize)

	raw := make([]byte, protocol.TokenLength)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return fmt.Errorf("failed to read session token: %w", err)
	}
	token := string(raw)
	if !protocol.ValidToken(token) {
		return fmt.Errorf("%w: %q", protocol.ErrBadToken, token)
	}

	framer, err := protocol.NewFramer(c.framing, reader, writer, token, c.maxSize)
	if err != nil {
		return err
	}

	c.conn = conn
	c.reader = reader
	c.writer = writer
	c.framer = framer
	c.token = token
	c.isConnected = true

	if _, err := c.readReply(); err != nil {
		c.isConnected = false
		return fmt.Errorf("failed to read initial listing: %w", err)
	}
	return nil
}

// IsConnected returns whether the client is currently connected
func (c *Client) IsConnected() bool {
	return c.isConnected
}

// Token returns the session token issued by the server.
func (c *Client) Token() string {
	return c.token
}

// Listing returns the most recent directory listing sent by the server.
func (c *Client) Listing() string {
	return c.listing
}

// Cwd returns the server-side working directory from the last listing.
func (c *Client) Cwd() string {
	p, err := protocol.ParseListing(c.listing)
	if err != nil {
		return ""
	}
	return p.Dir
}

// Entries returns the names in the last listing.
func (c *Client) Entries() []string {
	p, err := protocol.ParseListing(c.listing)
	if err != nil {
		return nil
	}
	return p.Entries
}

// Close closes the connection
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	c.isConnected = false
	return c.conn.Close()
}

// broken marks the connection unusable after a transport failure.
func (c *Client) broken(err error) error {
	c.isConnected = false
	return err
}

// send validates cmd and writes it as one framed message.
func (c *Client) send(verb string, args ...string) error {
	if !c.isConnected {
		return ErrNotConnected
	}
	cmd := protocol.Command{Verb: verb, Args: args}
	if _, err := protocol.ParseCommand(cmd.String()); err != nil {
		return err
	}
	if err := c.framer.WriteMessage(cmd.String()); err != nil {
		return c.broken(fmt.Errorf("failed to send %s: %w", verb, err))
	}
	return nil
}

// readReply reads one reply. A server-side failure is returned as a
// *RemoteError together with the reply.
func (c *Client) readReply() (protocol.Reply, error) {
	msg, err := c.framer.ReadMessage()
	if err != nil {
		return protocol.Reply{}, c.broken(fmt.Errorf("failed to read reply: %w", err))
	}
	reply, err := protocol.ParseReply(msg)
	if err != nil {
		return protocol.Reply{}, c.broken(fmt.Errorf("%w: %q", err, msg))
	}
	c.listing = reply.Listing
	if reply.Err != nil {
		return reply, reply.Err
	}
	return reply, nil
}

func (c *Client) roundTrip(verb string, args ...string) (protocol.Reply, error) {
	if err := c.send(verb, args...); err != nil {
		return protocol.Reply{}, err
	}
	return c.readReply()
}

// Cd changes the server-side working directory.
func (c *Client) Cd(name string) (protocol.Reply, error) {
	return c.roundTrip(protocol.CmdCd, name)
}

// Mkdir creates a subdirectory of the working directory.
func (c *Client) Mkdir(name string) (protocol.Reply, error) {
	return c.roundTrip(protocol.CmdMkdir, name)
}

// Rm removes a file or a directory tree.
func (c *Client) Rm(name string) (protocol.Reply, error) {
	return c.roundTrip(protocol.CmdRm, name)
}

// Mv moves name into the directory dest, or renames it to dest.
func (c *Client) Mv(name, dest string) (protocol.Reply, error) {
	return c.roundTrip(protocol.CmdMv, name, dest)
}

// Info returns the size of a remote file.
func (c *Client) Info(name string) (int64, protocol.Reply, error) {
	reply, err := c.roundTrip(protocol.CmdInfo, name)
	if err != nil {
		return 0, reply, err
	}
	size, err := strconv.ParseInt(reply.Value, 10, 64)
	if err != nil {
		return 0, reply, fmt.Errorf("invalid size %q in reply: %w", reply.Value, err)
	}
	return size, reply, nil
}

// Upload sends the local file to remote in the working directory.
func (c *Client) Upload(local, remote string) (int64, protocol.Reply, error) {
	f, err := os.Open(local)
	if err != nil {
		return 0, protocol.Reply{}, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return 0, protocol.Reply{}, err
	}
	if fi.IsDir() {
		return 0, protocol.Reply{}, fmt.Errorf("%s is a directory", local)
	}

	if err := c.send(protocol.CmdUl, remote); err != nil {
		return 0, protocol.Reply{}, err
	}
	n, err := protocol.WriteTransfer(c.writer, f, fi.Size())
	if err != nil {
		return n, protocol.Reply{}, c.broken(fmt.Errorf("upload failed: %w", err))
	}
	reply, err := c.readReply()
	return n, reply, err
}

// Download fetches remote into the local file, replacing it only once the
// whole payload has arrived.
func (c *Client) Download(remote, local string) (int64, protocol.Reply, error) {
	if err := c.send(protocol.CmdDl, remote); err != nil {
		return 0, protocol.Reply{}, err
	}

	size, err := protocol.ReadTransferHeader(c.reader)
	if errors.Is(err, protocol.ErrUnavailable) {
		reply, err := c.readReply()
		if err == nil {
			err = fmt.Errorf("server sent no data for %s", remote)
		}
		return 0, reply, err
	}
	if err != nil {
		return 0, protocol.Reply{}, c.broken(fmt.Errorf("download failed: %w", err))
	}

	n, werr := c.receive(local, size)
	if werr != nil && !c.isConnected {
		return n, protocol.Reply{}, werr
	}
	reply, err := c.readReply()
	if werr != nil {
		return n, reply, werr
	}
	return n, reply, err
}

// receive stores size payload bytes in local. Local write failures still
// drain the payload; only stream failures break the connection.
func (c *Client) receive(local string, size int64) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(local), ".gofsh-dl-*")
	if err != nil {
		if derr := protocol.Drain(c.reader, size); derr != nil {
			return 0, c.broken(derr)
		}
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	sink := protocol.NewSink(tmp)
	n, err := protocol.CopyTransfer(c.reader, sink, size)
	if err != nil {
		return n, c.broken(fmt.Errorf("download failed: %w", err))
	}
	if err := sink.Err(); err != nil {
		return n, err
	}
	if err := tmp.Close(); err != nil {
		return n, err
	}
	if err := os.Rename(tmp.Name(), local); err != nil {
		return n, err
	}
	committed = true
	return n, nil
}

// Exit ends the session. The server closes the connection without a reply.
func (c *Client) Exit() error {
	if err := c.send(protocol.CmdExit); err != nil {
		return err
	}
	return c.Close()
}
