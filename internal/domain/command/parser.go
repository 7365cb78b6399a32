package command

import "strings"

// Parse turns a line of chat text into an Intent.
//
// The first whitespace-delimited token is the command, the second the target
// message id and the remaining tokens, joined by single spaces, the argument.
// It returns false when the line holds no token at all.
func Parse(line string) (Intent, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Intent{}, false
	}
	in := Intent{Command: ParseCommand(fields[0])}
	if len(fields) > 1 {
		in.TargetID = fields[1]
	}
	if len(fields) > 2 {
		in.Argument = strings.Join(fields[2:], " ")
	}
	return in, true
}

// Usage returns the usage line shown when a command misses its target.
func Usage(c Command) string {
	switch c {
	case Read:
		return "Kullanım: /oku <messageId>"
	case Draft:
		return "Kullanım: /taslak <messageId> <yönerge>"
	default:
		return "Kullanım: /cevapla <messageId> <yönerge>"
	}
}
