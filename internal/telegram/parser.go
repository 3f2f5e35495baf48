package telegram

import "strings"

// ParsedCommand is the classified form of an inbound message: a lowercase
// slash-command token plus its trailing argument string, or the empty
// command sentinel for free-form text.
type ParsedCommand struct {
	Command string // "/today", "/ask", ...; "" = not a command
	Args    string
}

// ParseCommand classifies raw message text. The addressing suffix Telegram
// appends in group chats ("/today@mybot") is stripped from the token.
// Total over all inputs.
func ParseCommand(raw string) ParsedCommand {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "/") {
		return ParsedCommand{Command: "", Args: trimmed}
	}

	token := trimmed
	args := ""
	if idx := strings.IndexAny(trimmed, " \t\n"); idx >= 0 {
		token = trimmed[:idx]
		args = strings.TrimSpace(trimmed[idx+1:])
	}

	if at := strings.Index(token, "@"); at >= 0 {
		token = token[:at]
	}
	return ParsedCommand{Command: strings.ToLower(token), Args: args}
}
