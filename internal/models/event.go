package models

import "time"

// EventType categorizes session events.
type EventType string

const (
	// Connection events
	EventTypeConnectionChanged EventType = "connection.changed"

	// Presence events
	EventTypeTypingChanged EventType = "typing.changed"

	// Notification events
	EventTypeNotificationAdded   EventType = "notification.added"
	EventTypeNotificationClosing EventType = "notification.closing"
	EventTypeNotificationRemoved EventType = "notification.removed"

	// Composition events
	EventTypeModeChanged  EventType = "compose.mode_changed"
	EventTypeDraftChanged EventType = "compose.draft_changed"
	EventTypeReplyChanged EventType = "reply.changed"

	// Message events
	EventTypeMessageSent   EventType = "message.sent"
	EventTypeMessageFailed EventType = "message.failed"

	// Search events
	EventTypeSearchChanged EventType = "search.changed"

	// Lifecycle events
	EventTypeSessionDisposed EventType = "session.disposed"
)

// Event is a single observable change inside a chat session.
type Event struct {
	// Type categorizes the event.
	Type EventType `json:"type"`

	// SessionID is the session the event belongs to.
	SessionID string `json:"session_id"`

	// Timestamp is the session clock time when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Subject identifies the entity the event is about (user id, notification id, message id).
	Subject string `json:"subject,omitempty"`

	// Detail is a short human-readable description.
	Detail string `json:"detail,omitempty"`

	// Metadata contains additional context.
	Metadata map[string]string `json:"metadata,omitempty"`
}
