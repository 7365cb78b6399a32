package command

// Command is the closed set of chat commands the bot understands.
type Command int

const (
	Unknown Command = iota
	Start
	Read
	Draft
	Reply
)

var tokens = map[string]Command{
	"/start":   Start,
	"/oku":     Read,
	"/taslak":  Draft,
	"/cevapla": Reply,
}

// ParseCommand maps a raw command token to a Command. Matching is
// case-sensitive; anything outside the vocabulary is Unknown.
func ParseCommand(token string) Command {
	if c, ok := tokens[token]; ok {
		return c
	}
	return Unknown
}

func (c Command) String() string {
	switch c {
	case Start:
		return "/start"
	case Read:
		return "/oku"
	case Draft:
		return "/taslak"
	case Reply:
		return "/cevapla"
	default:
		return "unknown"
	}
}

// NeedsTarget reports whether the command acts on a mailbox message.
func (c Command) NeedsTarget() bool {
	return c == Read || c == Draft || c == Reply
}

// Intent is one parsed command line.
type Intent struct {
	Command  Command
	TargetID string // empty when the line had no target
	Argument string
}

// HasTarget reports whether a target message id was given.
func (i Intent) HasTarget() bool {
	return i.TargetID != ""
}
