package compose

import "strings"

// Mode is the channel a pending message is sent through.
type Mode string

const (
	// ModeMessage is a public reply visible to the client.
	ModeMessage Mode = "message"
	// ModeInternal is an agent-only note.
	ModeInternal Mode = "internal"
	// ModeExternal hands the message to an external channel such as WhatsApp.
	ModeExternal Mode = "external"
)

// ParseMode normalizes a raw mode string.
func ParseMode(raw string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "message", "reply", "public":
		return ModeMessage, true
	case "internal", "note":
		return ModeInternal, true
	case "external", "whatsapp":
		return ModeExternal, true
	default:
	}
	return "", false
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeMessage, ModeInternal, ModeExternal:
		return true
	default:
		return false
	}
}

// placeholders hold the input hint shown for each mode.
var placeholders = map[Mode]string{
	ModeMessage:  "Type your message...",
	ModeInternal: "Write an internal note (visible to agents only)...",
	ModeExternal: "Type a message to send through the external channel...",
}
