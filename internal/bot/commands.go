package bot

import (
	"errors"
	"strconv"
	"strings"
)

var errNoAmount = errors.New("amount is missing")

// command is a parsed slash command
type command struct {
	name string
	args []string
}

// parseCommand extracts a command from message text. Cyrillic commands are not
// marked as bot_command entities, so the text itself is parsed.
// Commands addressed to another bot (/cmd@other_bot) are rejected.
func parseCommand(text, botUsername string) (command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return command{}, false
	}

	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.Index(name, "@"); at >= 0 {
		target := name[at+1:]
		name = name[:at]
		if botUsername != "" && !strings.EqualFold(target, botUsername) {
			return command{}, false
		}
	}
	if name == "" {
		return command{}, false
	}

	return command{name: strings.ToLower(name), args: fields[1:]}, true
}

// parseAmount reads the first argument as a signed integer
func parseAmount(args []string) (int, error) {
	if len(args) == 0 {
		return 0, errNoAmount
	}
	return strconv.Atoi(args[0])
}
