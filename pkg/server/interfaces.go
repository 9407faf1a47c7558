package server

import (
	"context"
	"net"
)

// ListenerInterface defines the interface for a listener that serves gofsh sessions.
type ListenerInterface interface {
	// Start begins listening for incoming client connections.
	// Returns the underlying net.Listener and any error that occurred.
	Start() (net.Listener, error)

	// GetSessions returns the addresses of connected clients.
	GetSessions() []string

	// GetSessionsSorted returns a sorted list of connected client addresses.
	GetSessionsSorted() []string

	// SessionCount returns the number of connected clients.
	SessionCount() int

	// Shutdown stops the listener and ends all sessions.
	Shutdown(ctx context.Context) error
}

var _ ListenerInterface = (*Listener)(nil)
