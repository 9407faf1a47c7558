package server

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/frjcomp/gofsh/pkg/client"
	"github.com/frjcomp/gofsh/pkg/protocol"
)

// TestRapidCommandSequence sends many commands back to back on one session
func TestRapidCommandSequence(t *testing.T) {
	l, addr := startTestListener(t, testServerConfig())
	c := dialTestClient(t, addr)

	for i := 0; i < 50; i++ {
		if _, err := c.Mkdir(fmt.Sprintf("dir_%02d", i)); err != nil {
			t.Fatalf("mkdir %d failed: %v", i, err)
		}
	}
	if got := len(c.Entries()); got != 50 {
		t.Fatalf("expected 50 entries, got %d", got)
	}
	entries, _ := os.ReadDir(l.root.Path())
	if len(entries) != 50 {
		t.Fatalf("expected 50 directories on disk, got %d", len(entries))
	}
	t.Log("✓ Rapid command sequence test passed")
}

// TestClientDisconnectDuringUpload tests that an aborted upload leaves no file behind
func TestClientDisconnectDuringUpload(t *testing.T) {
	l, addr := startTestListener(t, testServerConfig())

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	c := handshakeRaw(t, conn, l.cfg.Framing)
	waitForSessions(t, l, 1)

	c.send("ul partial.bin")
	hdr := make([]byte, protocol.TransferHeader)
	hdr[6] = 0x10 // 4096 bytes announced
	c.w.Write(hdr)
	c.w.Write(bytes.Repeat([]byte("x"), 100))
	c.w.Flush()
	time.Sleep(50 * time.Millisecond)
	conn.Close()

	waitForSessions(t, l, 0)

	entries, _ := os.ReadDir(l.root.Path())
	for _, e := range entries {
		t.Errorf("unexpected leftover %s", e.Name())
	}
	t.Log("✓ Client disconnect test passed")
}

// TestConcurrentSessionsTransfer runs uploads and downloads from several clients at once
func TestConcurrentSessionsTransfer(t *testing.T) {
	l, addr := startTestListener(t, testServerConfig())
	local := t.TempDir()

	const clients = 8
	var wg sync.WaitGroup
	errs := make(chan error, clients)
	for i := 0; i < clients; i++ {
		c := dialTestClient(t, addr)
		wg.Add(1)
		go func(i int, c *client.Client) {
			defer wg.Done()
			name := fmt.Sprintf("file_%d.txt", i)
			want := strings.Repeat(fmt.Sprintf("%d", i), 10000+i)
			src := filepath.Join(local, name)
			if err := os.WriteFile(src, []byte(want), 0o644); err != nil {
				errs <- err
				return
			}
			if _, _, err := c.Upload(src, name); err != nil {
				errs <- fmt.Errorf("client %d upload: %w", i, err)
				return
			}
			dst := filepath.Join(local, "back_"+name)
			if _, _, err := c.Download(name, dst); err != nil {
				errs <- fmt.Errorf("client %d download: %w", i, err)
				return
			}
			got, _ := os.ReadFile(dst)
			if string(got) != want {
				errs <- fmt.Errorf("client %d: content mismatch", i)
			}
		}(i, c)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	entries, _ := os.ReadDir(l.root.Path())
	if len(entries) != clients {
		t.Fatalf("expected %d files in root, got %d", clients, len(entries))
	}
}
