package domain

// InboundMessage is one push-delivered chat message. It lives for exactly
// one dispatch cycle. ChatID doubles as the authorization principal.
type InboundMessage struct {
	ChatID string
	Text   string
	Sender string // display name or handle, informational only
}
