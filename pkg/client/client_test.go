package client

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/frjcomp/gofsh/pkg/config"
	"github.com/frjcomp/gofsh/pkg/fsops"
	"github.com/frjcomp/gofsh/pkg/protocol"
	"github.com/frjcomp/gofsh/pkg/server"
)

func startServer(t *testing.T, mutate func(*config.ServerConfig)) (*fsops.Root, string) {
	t.Helper()
	root, err := fsops.NewRoot(t.TempDir())
	if err != nil {
		t.Fatalf("NewRoot failed: %v", err)
	}
	cfg := config.DefaultServerConfig()
	cfg.Port = "0"
	cfg.Root = root.Path()
	if mutate != nil {
		mutate(cfg)
	}
	l := server.NewListener(cfg, root)
	nl, err := l.Start()
	if err != nil {
		t.Fatalf("Failed to start listener: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		l.Shutdown(ctx)
	})
	return root, nl.Addr().String()
}

func connect(t *testing.T, addr, framing string) *Client {
	t.Helper()
	cfg := config.DefaultClientConfig()
	cfg.Target = addr
	if framing != "" {
		cfg.Framing = framing
	}
	c := NewClient(cfg)
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestConnectHandshake(t *testing.T) {
	root, addr := startServer(t, nil)
	c := connect(t, addr, "")

	if !c.IsConnected() {
		t.Fatal("client should be connected")
	}
	if !protocol.ValidToken(c.Token()) {
		t.Fatalf("invalid token %q", c.Token())
	}
	if c.Cwd() != root.Path() {
		t.Fatalf("expected cwd %s, got %s", root.Path(), c.Cwd())
	}
	t.Log("✓ Connected and received root listing")
}

func TestConnectRejectsBadToken(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("not-a-tok!"))
		time.Sleep(100 * time.Millisecond)
	}()

	cfg := config.DefaultClientConfig()
	cfg.Target = ln.Addr().String()
	c := NewClient(cfg)
	err = c.Connect()
	if !errors.Is(err, protocol.ErrBadToken) {
		t.Fatalf("expected ErrBadToken, got %v", err)
	}
	if c.IsConnected() {
		t.Fatal("client must not be connected after a bad handshake")
	}
}

func TestConnectRefused(t *testing.T) {
	ln, _ := net.Listen("tcp", "127.0.0.1:0")
	addr := ln.Addr().String()
	ln.Close()

	cfg := config.DefaultClientConfig()
	cfg.Target = addr
	if err := NewClient(cfg).Connect(); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestRemoteErrorKeepsConnection(t *testing.T) {
	root, addr := startServer(t, nil)
	c := connect(t, addr, "")

	_, err := c.Cd("missing")
	var re *RemoteError
	if !errors.As(err, &re) || re.Kind != protocol.KindNotFound {
		t.Fatalf("expected not_found RemoteError, got %v", err)
	}
	if !c.IsConnected() || c.Cwd() != root.Path() {
		t.Fatal("remote error should leave the session usable and cwd unchanged")
	}

	if _, err := c.Mkdir("ok"); err != nil {
		t.Fatalf("Mkdir after error failed: %v", err)
	}
}

func TestMkdirCdMvRm(t *testing.T) {
	root, addr := startServer(t, nil)
	c := connect(t, addr, "")

	if _, err := c.Mkdir("a"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Mkdir("b"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Mv("a", "b"); err != nil {
		t.Fatalf("Mv failed: %v", err)
	}
	if _, err := c.Cd("b"); err != nil {
		t.Fatal(err)
	}
	if !contains(c.Entries(), "a") {
		t.Fatalf("expected a inside b, got %v", c.Entries())
	}
	if _, err := c.Cd(".."); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Rm("b"); err != nil {
		t.Fatalf("Rm failed: %v", err)
	}
	if len(c.Entries()) != 0 {
		t.Fatalf("expected empty root, got %v", c.Entries())
	}
	if _, err := os.Stat(filepath.Join(root.Path(), "b")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("b still exists: %v", err)
	}
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	for _, framing := range []string{protocol.FramingLength, protocol.FramingToken} {
		t.Run(framing, func(t *testing.T) {
			_, addr := startServer(t, func(cfg *config.ServerConfig) { cfg.Framing = framing })
			c := connect(t, addr, framing)

			local := t.TempDir()
			data := make([]byte, 3*protocol.LegacyTransferBound)
			rand.Read(data)
			src := filepath.Join(local, "src.bin")
			if err := os.WriteFile(src, data, 0o644); err != nil {
				t.Fatal(err)
			}

			n, _, err := c.Upload(src, "remote.bin")
			if err != nil || n != int64(len(data)) {
				t.Fatalf("Upload: n=%d err=%v", n, err)
			}

			size, _, err := c.Info("remote.bin")
			if err != nil || size != int64(len(data)) {
				t.Fatalf("Info: size=%d err=%v", size, err)
			}

			dst := filepath.Join(local, "dst.bin")
			n, _, err = c.Download("remote.bin", dst)
			if err != nil || n != int64(len(data)) {
				t.Fatalf("Download: n=%d err=%v", n, err)
			}
			got, _ := os.ReadFile(dst)
			if !bytes.Equal(got, data) {
				t.Fatal("downloaded content differs from upload")
			}
		})
	}
	t.Log("✓ Large file round trip under both framings")
}

func TestDownloadMissingFile(t *testing.T) {
	_, addr := startServer(t, nil)
	c := connect(t, addr, "")

	dst := filepath.Join(t.TempDir(), "out.bin")
	_, _, err := c.Download("nope", dst)
	var re *RemoteError
	if !errors.As(err, &re) || re.Kind != protocol.KindNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
	if _, err := os.Stat(dst); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("failed download created a local file")
	}
	if !c.IsConnected() {
		t.Fatal("client disconnected after missing download")
	}
}

func TestUploadMissingLocalFile(t *testing.T) {
	_, addr := startServer(t, nil)
	c := connect(t, addr, "")

	_, _, err := c.Upload(filepath.Join(t.TempDir(), "missing"), "x")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	if _, err := c.Mkdir("still-works"); err != nil {
		t.Fatalf("session broken after local error: %v", err)
	}
}

func TestUploadTooLarge(t *testing.T) {
	_, addr := startServer(t, func(cfg *config.ServerConfig) { cfg.MaxTransferSize = 8 })
	c := connect(t, addr, "")

	src := filepath.Join(t.TempDir(), "big")
	os.WriteFile(src, make([]byte, 64), 0o644)
	_, _, err := c.Upload(src, "big")
	var re *RemoteError
	if !errors.As(err, &re) || re.Kind != protocol.KindTooLarge {
		t.Fatalf("expected too_large, got %v", err)
	}
	if contains(c.Entries(), "big") {
		t.Fatal("rejected upload appears in listing")
	}
}

func TestInvalidArgumentsRejectedLocally(t *testing.T) {
	_, addr := startServer(t, nil)
	c := connect(t, addr, "")

	_, err := c.Mv("has space", "dest")
	var pe *protocol.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if _, err := c.Cd(""); !errors.As(err, &pe) {
		t.Fatalf("expected ParseError for empty name, got %v", err)
	}
	if !c.IsConnected() {
		t.Fatal("local validation must not disconnect")
	}
}

func TestCommandsAfterExit(t *testing.T) {
	_, addr := startServer(t, nil)
	c := connect(t, addr, "")

	if err := c.Exit(); err != nil {
		t.Fatalf("Exit failed: %v", err)
	}
	if _, err := c.Mkdir("x"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func contains(list []string, name string) bool {
	for _, e := range list {
		if e == name {
			return true
		}
	}
	return false
}
