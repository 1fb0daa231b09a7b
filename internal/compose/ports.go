package compose

import (
	"context"
	"time"

	"github.com/tOgg1/livedesk/internal/models"
	"github.com/tOgg1/livedesk/internal/notify"
)

// Sender delivers a composed message or internal note.
type Sender interface {
	SendMessage(ctx context.Context, text string, internal bool) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, text string, internal bool) error

// SendMessage calls f.
func (f SenderFunc) SendMessage(ctx context.Context, text string, internal bool) error {
	return f(ctx, text, internal)
}

// ExternalSender delivers a message through an external channel. The outcome
// is opaque: nil on success, an error otherwise.
type ExternalSender interface {
	SendExternal(ctx context.Context, recipient, text string) error
}

// ExternalSenderFunc adapts a function to ExternalSender.
type ExternalSenderFunc func(ctx context.Context, recipient, text string) error

// SendExternal calls f.
func (f ExternalSenderFunc) SendExternal(ctx context.Context, recipient, text string) error {
	return f(ctx, recipient, text)
}

// RecipientDirectory reports the external-channel address of the conversation.
type RecipientDirectory interface {
	Recipient() (address string, ok bool)
}

// StaticRecipient is a RecipientDirectory with a fixed address. An empty
// address means no recipient is available.
type StaticRecipient string

// Recipient returns the address and whether it is set.
func (s StaticRecipient) Recipient() (string, bool) {
	return string(s), s != ""
}

// Notifier surfaces outcomes to the user.
type Notifier interface {
	Notify(message string, kind notify.Kind, d time.Duration)
}

// TypingSignal receives the local user's typing activity.
type TypingSignal interface {
	StartTyping(user models.User)
	StopTyping(userID string) bool
}

// ReplyTarget is the reply context attached to outgoing messages.
type ReplyTarget interface {
	Current() (models.Message, bool)
	Cancel() bool
}

// ConnectionStatus reports link health.
type ConnectionStatus interface {
	IsConnected() bool
}
