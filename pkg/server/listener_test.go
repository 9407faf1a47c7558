package server

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/frjcomp/gofsh/pkg/client"
	"github.com/frjcomp/gofsh/pkg/config"
)

func startTestListener(t *testing.T, cfg *config.ServerConfig) (*Listener, string) {
	t.Helper()
	root := newTestRoot(t)
	cfg.Root = root.Path()
	l := NewListener(cfg, root)
	netListener, err := l.Start()
	if err != nil {
		t.Fatalf("Failed to start listener: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		l.Shutdown(ctx)
	})
	return l, netListener.Addr().String()
}

func dialTestClient(t *testing.T, addr string) *client.Client {
	t.Helper()
	cfg := config.DefaultClientConfig()
	cfg.Target = addr
	c := client.NewClient(cfg)
	if err := c.Connect(); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func waitForSessions(t *testing.T, l *Listener, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if l.SessionCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Expected %d sessions, got %d", want, l.SessionCount())
}

// TestListenerCreation tests creating a new listener
func TestListenerCreation(t *testing.T) {
	root := newTestRoot(t)
	l := NewListener(newTestConfig(root), root)
	if l == nil {
		t.Fatal("Failed to create listener")
	}
	if got := l.GetSessions(); len(got) != 0 {
		t.Fatalf("Expected 0 sessions, got %d", len(got))
	}
	t.Log("✓ Listener created successfully")
}

func TestListenerTracksSessions(t *testing.T) {
	l, addr := startTestListener(t, testServerConfig())

	c1 := dialTestClient(t, addr)
	c2 := dialTestClient(t, addr)
	waitForSessions(t, l, 2)

	sorted := l.GetSessionsSorted()
	if len(sorted) != 2 || sorted[0] > sorted[1] {
		t.Fatalf("Unexpected sorted sessions %v", sorted)
	}

	if err := c1.Exit(); err != nil {
		t.Fatalf("Exit failed: %v", err)
	}
	waitForSessions(t, l, 1)

	c2.Close()
	waitForSessions(t, l, 0)
	t.Log("✓ Sessions registered and removed")
}

func TestSessionsHaveIndependentCwd(t *testing.T) {
	l, addr := startTestListener(t, testServerConfig())

	c1 := dialTestClient(t, addr)
	c2 := dialTestClient(t, addr)
	if _, err := c1.Mkdir("one"); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if _, err := c1.Cd("one"); err != nil {
		t.Fatalf("cd failed: %v", err)
	}
	if _, err := c2.Mkdir("two"); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	if got := c1.Cwd(); got != filepath.Join(l.root.Path(), "one") {
		t.Fatalf("client 1 cwd %s", got)
	}
	if got := c2.Cwd(); got != l.root.Path() {
		t.Fatalf("client 2 cwd moved to %s", got)
	}
}

func TestMaxSessionsSerializesClients(t *testing.T) {
	cfg := testServerConfig()
	cfg.MaxSessions = 1
	l, addr := startTestListener(t, cfg)

	first := dialTestClient(t, addr)
	waitForSessions(t, l, 1)

	connected := make(chan error, 1)
	second := client.NewClient(&config.ClientConfig{
		Target:         addr,
		Framing:        cfg.Framing,
		MaxMessageSize: cfg.MaxMessageSize,
	})
	t.Cleanup(func() { second.Close() })
	go func() { connected <- second.Connect() }()

	select {
	case err := <-connected:
		t.Fatalf("second client completed handshake while first was active (err=%v)", err)
	case <-time.After(200 * time.Millisecond):
	}

	if err := first.Exit(); err != nil {
		t.Fatalf("Exit failed: %v", err)
	}

	select {
	case err := <-connected:
		if err != nil {
			t.Fatalf("second client failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second client never got a session")
	}
	t.Log("✓ MaxSessions=1 admits one client at a time")
}

func TestShutdownClosesSessions(t *testing.T) {
	l, addr := startTestListener(t, testServerConfig())
	c := dialTestClient(t, addr)
	waitForSessions(t, l, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	if _, err := c.Mkdir("late"); err == nil {
		t.Fatal("expected command to fail after shutdown")
	}
	if _, err := net.DialTimeout("tcp", addr, 200*time.Millisecond); err == nil {
		t.Fatal("listener still accepting after shutdown")
	}
}

func testServerConfig() *config.ServerConfig {
	cfg := config.DefaultServerConfig()
	cfg.Port = "0"
	return cfg
}
