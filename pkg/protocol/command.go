package protocol

import (
	"fmt"
	"strings"
	"unicode"
)

// Verbs lists every command verb in wire order of the help text.
var Verbs = []string{CmdCd, CmdMkdir, CmdRm, CmdMv, CmdUl, CmdDl, CmdInfo, CmdExit}

// argCount is the number of arguments each verb takes. Verbs taking one
// argument receive the whole remainder of the line, so names may contain
// spaces; mv splits its remainder on whitespace.
var argCount = map[string]int{
	CmdCd:    1,
	CmdMkdir: 1,
	CmdRm:    1,
	CmdMv:    2,
	CmdUl:    1,
	CmdDl:    1,
	CmdInfo:  1,
	CmdExit:  0,
}

// Command is one parsed client request.
type Command struct {
	Verb string
	Args []string
}

// Arg returns the i-th argument or "" when absent.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// String renders the command in wire form.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Verb
	}
	return c.Verb + " " + strings.Join(c.Args, " ")
}

// ParseError describes a message that is not a valid command.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid command %q: %s", e.Input, e.Reason)
}

// IsVerb reports whether s is a known verb.
func IsVerb(s string) bool {
	_, ok := argCount[s]
	return ok
}

// ParseCommand parses a decoded message. The verb is the first
// whitespace-delimited word and must match a known verb exactly.
func ParseCommand(msg string) (Command, error) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return Command{}, &ParseError{Input: msg, Reason: "empty command"}
	}

	verb, rest := msg, ""
	if i := strings.IndexFunc(msg, unicode.IsSpace); i >= 0 {
		verb, rest = msg[:i], strings.TrimSpace(msg[i+1:])
	}

	want, ok := argCount[verb]
	if !ok {
		return Command{}, &ParseError{Input: msg, Reason: fmt.Sprintf("unknown command %q", verb)}
	}

	cmd := Command{Verb: verb}
	switch want {
	case 0:
		if rest != "" {
			return Command{}, &ParseError{Input: msg, Reason: fmt.Sprintf("%s takes no arguments", verb)}
		}
	case 1:
		if rest == "" {
			return Command{}, &ParseError{Input: msg, Reason: fmt.Sprintf("usage: %s <name>", verb)}
		}
		cmd.Args = []string{rest}
	default:
		fields := strings.Fields(rest)
		if len(fields) != want {
			return Command{}, &ParseError{Input: msg, Reason: fmt.Sprintf("usage: %s <name> <destination>", verb)}
		}
		cmd.Args = fields
	}
	return cmd, nil
}
