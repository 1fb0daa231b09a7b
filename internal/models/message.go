package models

import "time"

// Message is a single chat message in a session transcript.
type Message struct {
	// ID is the unique identifier for the message.
	ID string `json:"id" yaml:"id"`

	// SenderID identifies the author, when known.
	SenderID string `json:"sender_id,omitempty" yaml:"sender_id,omitempty"`

	// SenderName is the display name of the author.
	SenderName string `json:"sender_name" yaml:"sender_name"`

	// Content is the message body.
	Content string `json:"content" yaml:"content"`

	// IsInternal marks agent-only notes that the client never sees.
	IsInternal bool `json:"is_internal,omitempty" yaml:"is_internal,omitempty"`

	// Timestamp is when the message was sent.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}
