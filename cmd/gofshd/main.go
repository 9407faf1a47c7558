package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frjcomp/gofsh/pkg/config"
	"github.com/frjcomp/gofsh/pkg/fsops"
	"github.com/frjcomp/gofsh/pkg/logging"
	"github.com/frjcomp/gofsh/pkg/metrics"
	"github.com/frjcomp/gofsh/pkg/server"
	"github.com/frjcomp/gofsh/pkg/version"
)

const shutdownTimeout = 5 * time.Second

func printHeader() {
	fmt.Println()
	fmt.Println("  gofshd - remote filesystem shell server")
	fmt.Println()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runServer(ctx, os.Args[1:], nil); err != nil {
		logging.Errorf("%v", err)
		logging.Sync()
		os.Exit(1)
	}
	logging.Sync()
}

// parseArgs accepts "[<host> <port> [<root>]]".
func parseArgs(args []string) (host, port, root string, err error) {
	switch len(args) {
	case 0:
		return "", "", "", nil
	case 2:
		return args[0], args[1], "", nil
	case 3:
		return args[0], args[1], args[2], nil
	default:
		return "", "", "", fmt.Errorf("Usage: gofshd [<host> <port> [<root>]]")
	}
}

// runServer serves until ctx is cancelled. ready, when set, receives the
// bound address once the listener accepts connections.
func runServer(ctx context.Context, args []string, ready func(addr string)) error {
	host, port, root, err := parseArgs(args)
	if err != nil {
		return err
	}

	cfg, err := config.LoadServerConfig(host, port, root)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		return fmt.Errorf("failed to initialise logging: %w", err)
	}
	logging.InitFromEnv()

	printHeader()
	logging.Infof("Version: %s", version.String())

	fsroot, err := fsops.NewRoot(cfg.Root)
	if err != nil {
		return fmt.Errorf("invalid root: %w", err)
	}

	listener := server.NewListener(cfg, fsroot)
	netListener, err := listener.Start()
	if err != nil {
		return fmt.Errorf("failed to start listener: %w", err)
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		var addr net.Addr
		metricsServer, addr, err = startMetrics(cfg.MetricsAddr)
		if err != nil {
			shutdown(listener, nil)
			return err
		}
		logging.Infof("Metrics available at http://%s/metrics", addr)
	}

	logging.Infof("Server ready. Waiting for connections...")
	if ready != nil {
		ready(netListener.Addr().String())
	}

	<-ctx.Done()
	logging.Infof("Shutting down...")
	return shutdown(listener, metricsServer)
}

func shutdown(l server.ListenerInterface, metricsServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logging.Warnf("Metrics server shutdown: %v", err)
		}
	}
	if err := l.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown incomplete: %w", err)
	}
	return nil
}

// startMetrics serves the Prometheus handler on addr in the background.
func startMetrics(addr string) (*http.Server, net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Errorf("Metrics server failed: %v", err)
		}
	}()
	return srv, ln.Addr(), nil
}
