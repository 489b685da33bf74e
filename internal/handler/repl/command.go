package repl

import "strings"

// Kind classifies one line of REPL input.
type Kind int

const (
	KindEmpty Kind = iota
	KindTurn
	KindExit
	KindDebugStatus
	KindDebugOn
	KindDebugOff
	KindDebugRaw
	KindDebugList
	KindDebugOpen
	KindDebugUnknown
)

// Command is a parsed input line. Arg holds the debug sub-command for
// KindDebugUnknown and the entry name for KindDebugOpen.
type Command struct {
	Kind Kind
	Text string
	Arg  string
}

// Parse classifies line. Control words match case-insensitively on the
// first token; everything else is a conversational turn.
func Parse(line string) Command {
	text := strings.TrimSpace(line)
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Command{Kind: KindEmpty}
	}

	switch strings.ToLower(fields[0]) {
	case "exit":
		return Command{Kind: KindExit, Text: text}
	case "debug":
		return parseDebug(text, fields[1:])
	default:
		return Command{Kind: KindTurn, Text: text}
	}
}

func parseDebug(text string, args []string) Command {
	if len(args) == 0 {
		return Command{Kind: KindDebugStatus, Text: text}
	}

	sub := strings.ToLower(args[0])
	switch sub {
	case "on":
		return Command{Kind: KindDebugOn, Text: text}
	case "off":
		return Command{Kind: KindDebugOff, Text: text}
	case "raw":
		return Command{Kind: KindDebugRaw, Text: text}
	case "list":
		return Command{Kind: KindDebugList, Text: text}
	case "open":
		return Command{Kind: KindDebugOpen, Text: text, Arg: strings.Join(args[1:], " ")}
	default:
		return Command{Kind: KindDebugUnknown, Text: text, Arg: args[0]}
	}
}
