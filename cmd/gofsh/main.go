package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/frjcomp/gofsh/pkg/client"
	"github.com/frjcomp/gofsh/pkg/config"
	"github.com/frjcomp/gofsh/pkg/logging"
	"github.com/frjcomp/gofsh/pkg/protocol"
	"github.com/frjcomp/gofsh/pkg/version"
)

const (
	initialBackoff = 5 * time.Second
	maxBackoff     = 5 * time.Minute
)

// errInterrupted is returned by a lineReader when the user pressed Ctrl-C.
var errInterrupted = errors.New("interrupted")

// shellClient is the part of *client.Client the shell drives.
type shellClient interface {
	Connect() error
	ProcessCommand(line string, out io.Writer) (bool, error)
	Listing() string
	Entries() []string
	Close() error
}

type clientFactory func(cfg *config.ClientConfig) shellClient

// lineReader yields one line of user input per call.
type lineReader interface {
	ReadLine() (string, error)
	Close() error
}

func printHeader() {
	fmt.Println()
	fmt.Println("  gofsh - remote filesystem shell")
	fmt.Println()
}

func main() {
	if err := runClient(os.Args[1:]); err != nil {
		logging.Errorf("%v", err)
		logging.Sync()
		os.Exit(1)
	}
	logging.Sync()
}

// parseArgs accepts "[<host:port> [<max-retries>]]". A maxRetries of -1
// means not given.
func parseArgs(args []string) (string, int, error) {
	switch len(args) {
	case 0:
		return "", -1, nil
	case 1:
		return args[0], -1, nil
	case 2:
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 {
			return "", 0, fmt.Errorf("invalid max-retries %q", args[1])
		}
		return args[0], n, nil
	default:
		return "", 0, fmt.Errorf("Usage: gofsh [<host:port> [<max-retries>]]")
	}
}

func runClient(args []string) error {
	target, maxRetries, err := parseArgs(args)
	if err != nil {
		return err
	}
	cfg, err := config.LoadClientConfig(target, maxRetries)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logging.SetLevelFromString(cfg.LogLevel)
	logging.InitFromEnv()

	printHeader()
	logging.Infof("Version: %s", version.String())
	logging.Infof("Target: %s", cfg.Target)
	logging.Infof("Max retries: %d (0 = infinite)", cfg.MaxRetries)

	var current shellClient
	factory := func(cfg *config.ClientConfig) shellClient {
		current = client.NewClient(cfg)
		return current
	}
	entries := func() []string {
		if current == nil {
			return nil
		}
		return current.Entries()
	}

	in, interactive, err := newLineReader(entries)
	if err != nil {
		return err
	}
	defer in.Close()

	return connectWithRetry(cfg, factory, in, os.Stdout, interactive, time.Sleep)
}

// connectWithRetry dials until a session is established, then runs the
// shell. A session lost to a transport failure is redialled; a clean exit
// or end of input returns nil.
func connectWithRetry(cfg *config.ClientConfig, factory clientFactory, in lineReader, out io.Writer, interactive bool, sleep func(time.Duration)) error {
	retries := 0
	backoff := initialBackoff

	for {
		cl := factory(cfg)
		err := cl.Connect()
		if err == nil {
			logging.Infof("Connected to %s", cfg.Target)
			err = runShell(cl, in, out, interactive)
			cl.Close()
			if err == nil {
				return nil
			}
			// Dialing succeeded, so the backoff starts over.
			backoff = initialBackoff
		}
		logging.Warnf("Connection failed: %v", err)

		if cfg.MaxRetries > 0 {
			retries++
			if retries >= cfg.MaxRetries {
				return fmt.Errorf("max retries (%d) reached", cfg.MaxRetries)
			}
		}

		logging.Infof("Retrying in %v... (attempt %d)", backoff, retries+1)
		sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// runShell reads commands until exit, end of input, or a transport error.
func runShell(cl shellClient, in lineReader, out io.Writer, interactive bool) error {
	fmt.Fprintln(out, cl.Listing())
	for {
		line, err := in.ReadLine()
		if errors.Is(err, errInterrupted) {
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				_, err = cl.ProcessCommand(protocol.CmdExit, out)
				return err
			}
			return err
		}

		more, err := cl.ProcessCommand(line, out)
		if interactive && isTransfer(line) {
			if ferr := flushStdin(); ferr != nil {
				logging.Debugf("stdin flush: %v", ferr)
			}
		}
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

func isTransfer(line string) bool {
	verb, _, _ := strings.Cut(strings.TrimSpace(line), " ")
	return verb == protocol.CmdUl || verb == protocol.CmdDl
}

// newLineReader returns a readline prompt when stdin is a terminal and a
// plain line scanner otherwise.
func newLineReader(remoteEntries func() []string) (lineReader, bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return &scannerReader{scanner: bufio.NewScanner(os.Stdin)}, false, nil
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "gofsh> ",
		HistoryFile:     historyFile(),
		AutoComplete:    newCompleter(remoteEntries),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to start prompt: %w", err)
	}
	return &readlineReader{rl: rl}, true, nil
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".gofsh_history")
}

// newCompleter completes verbs, remote names from the last listing, and
// local file names for ul.
func newCompleter(remoteEntries func() []string) *readline.PrefixCompleter {
	remote := readline.PcItemDynamic(func(string) []string { return remoteEntries() })
	local := readline.PcItemDynamic(localEntries)
	return readline.NewPrefixCompleter(
		readline.PcItem(protocol.CmdCd, remote),
		readline.PcItem(protocol.CmdMkdir),
		readline.PcItem(protocol.CmdRm, remote),
		readline.PcItem(protocol.CmdMv, remote),
		readline.PcItem(protocol.CmdUl, local),
		readline.PcItem(protocol.CmdDl, remote),
		readline.PcItem(protocol.CmdInfo, remote),
		readline.PcItem(protocol.CmdExit),
		readline.PcItem("help"),
	)
}

func localEntries(string) []string {
	entries, err := os.ReadDir(".")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names
}

type readlineReader struct {
	rl *readline.Instance
}

func (r *readlineReader) ReadLine() (string, error) {
	line, err := r.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", errInterrupted
	}
	return line, err
}

func (r *readlineReader) Close() error {
	return r.rl.Close()
}

type scannerReader struct {
	scanner *bufio.Scanner
}

func (r *scannerReader) ReadLine() (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *scannerReader) Close() error {
	return nil
}
