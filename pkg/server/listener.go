package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/netutil"

	"github.com/frjcomp/gofsh/pkg/config"
	"github.com/frjcomp/gofsh/pkg/fsops"
	"github.com/frjcomp/gofsh/pkg/logging"
	"github.com/frjcomp/gofsh/pkg/metrics"
)

// Listener accepts client connections and runs one Session per connection
// against a shared root directory.
type Listener struct {
	cfg      *config.ServerConfig
	root     *fsops.Root
	listener net.Listener
	sessions map[string]*Session
	closing  bool
	wg       sync.WaitGroup
	mutex    sync.Mutex
}

// NewListener creates a listener serving root with the given configuration.
func NewListener(cfg *config.ServerConfig, root *fsops.Root) *Listener {
	return &Listener{
		cfg:      cfg,
		root:     root,
		sessions: make(map[string]*Session),
	}
}

// Start begins listening on the configured address.
// It returns the underlying net.Listener and starts accepting connections in a background goroutine.
func (l *Listener) Start() (net.Listener, error) {
	address := l.cfg.Addr()
	logging.Infof("Starting listener on %s (root %s, framing %s)", address, l.root.Path(), l.cfg.Framing)

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}
	if l.cfg.MaxSessions > 0 {
		listener = netutil.LimitListener(listener, l.cfg.MaxSessions)
		logging.Infof("Limiting to %d concurrent session(s)", l.cfg.MaxSessions)
	}

	l.mutex.Lock()
	l.listener = listener
	l.mutex.Unlock()

	l.wg.Add(1)
	go l.acceptConnections(listener)
	return listener, nil
}

// acceptConnections accepts incoming client connections
func (l *Listener) acceptConnections(listener net.Listener) {
	defer l.wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			// Check if the listener was closed
			if errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "use of closed network connection") {
				return
			}
			logging.Errorf("Error accepting connection: %v", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		s := newSession(conn, l.root, l.cfg)
		l.mutex.Lock()
		if l.closing {
			l.mutex.Unlock()
			conn.Close()
			return
		}
		l.sessions[s.ID()] = s
		l.wg.Add(1)
		l.mutex.Unlock()
		go l.handleClient(s)
	}
}

// handleClient runs a single registered session to completion
func (l *Listener) handleClient(s *Session) {
	defer l.wg.Done()
	defer s.conn.Close()

	logging.Infof("[+] New client connected: %s", s.ID())
	metrics.SessionOpened()

	defer func() {
		l.mutex.Lock()
		delete(l.sessions, s.ID())
		l.mutex.Unlock()
		metrics.SessionClosed()
		logging.Infof("[-] Client disconnected: %s", s.ID())
	}()

	if err := s.Serve(); err != nil && !isBenignCloseError(err) {
		logging.Warnf("Session %s ended: %v", s.ID(), err)
	}
}

// GetSessions returns the addresses of currently connected clients.
func (l *Listener) GetSessions() []string {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	ids := make([]string, 0, len(l.sessions))
	for id := range l.sessions {
		ids = append(ids, id)
	}
	return ids
}

// GetSessionsSorted returns sorted session addresses for consistent ordering
func (l *Listener) GetSessionsSorted() []string {
	ids := l.GetSessions()
	sort.Strings(ids)
	return ids
}

// SessionCount returns the number of connected clients.
func (l *Listener) SessionCount() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.sessions)
}

// Shutdown stops accepting, closes every session connection and waits for
// the session goroutines to return or ctx to expire.
func (l *Listener) Shutdown(ctx context.Context) error {
	l.mutex.Lock()
	l.closing = true
	if l.listener != nil {
		l.listener.Close()
	}
	for _, s := range l.sessions {
		s.conn.Close()
	}
	l.mutex.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
