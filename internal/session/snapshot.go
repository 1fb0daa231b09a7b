package session

import (
	"time"

	"github.com/tOgg1/livedesk/internal/compose"
	"github.com/tOgg1/livedesk/internal/connection"
	"github.com/tOgg1/livedesk/internal/models"
	"github.com/tOgg1/livedesk/internal/notify"
)

// Snapshot is a read-only view of everything a renderer needs.
type Snapshot struct {
	SessionID string    `json:"session_id" yaml:"session_id"`
	Now       time.Time `json:"now" yaml:"now"`

	Connection  string `json:"connection" yaml:"connection"`
	Connected   bool   `json:"connected" yaml:"connected"`
	Transitions uint64 `json:"transitions" yaml:"transitions"`
	LastError   string `json:"last_error,omitempty" yaml:"last_error,omitempty"`

	TypingText  string        `json:"typing_text,omitempty" yaml:"typing_text,omitempty"`
	TypingUsers []models.User `json:"typing_users,omitempty" yaml:"typing_users,omitempty"`

	Notifications []notify.Notification `json:"notifications,omitempty" yaml:"notifications,omitempty"`

	Mode        compose.Mode `json:"mode" yaml:"mode"`
	Placeholder string       `json:"placeholder" yaml:"placeholder"`
	Draft       string       `json:"draft" yaml:"draft"`
	CanSend     bool         `json:"can_send" yaml:"can_send"`
	Sending     bool         `json:"sending" yaml:"sending"`

	ReplyTo      string `json:"reply_to,omitempty" yaml:"reply_to,omitempty"`
	ReplyHeader  string `json:"reply_header,omitempty" yaml:"reply_header,omitempty"`
	ReplyPreview string `json:"reply_preview,omitempty" yaml:"reply_preview,omitempty"`

	Query    string `json:"query,omitempty" yaml:"query,omitempty"`
	Visible  int    `json:"visible" yaml:"visible"`
	Messages int    `json:"messages" yaml:"messages"`

	PendingTimers int  `json:"pending_timers" yaml:"pending_timers"`
	Disposed      bool `json:"disposed" yaml:"disposed"`
}

// Snapshot captures the current session state. The typing line never names
// the local user.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID:     s.id,
		Now:           s.sched.Now(),
		Connection:    s.conn.State().String(),
		Connected:     s.conn.IsConnected(),
		Transitions:   s.conn.Transitions(),
		TypingText:    s.typing.TextExcluding(s.local.ID),
		Notifications: s.notes.Items(),
		Mode:          s.composer.Mode(),
		Placeholder:   s.composer.Placeholder(),
		Draft:         s.composer.Draft(),
		Sending:       s.composer.Sending(),
		Query:         s.query,
		Visible:       len(s.VisibleMessages()),
		Messages:      len(s.transcript),
		PendingTimers: s.sched.Pending(),
		Disposed:      s.disposed,
	}
	if err := s.conn.LastError(); err != nil {
		snap.LastError = err.Error()
	}
	for _, u := range s.typing.Users() {
		if u.ID != s.local.ID {
			snap.TypingUsers = append(snap.TypingUsers, u)
		}
	}
	if snap.Mode == compose.ModeExternal {
		snap.CanSend = s.composer.CanSendExternal()
	} else {
		snap.CanSend = s.composer.CanSend()
	}
	if msg, ok := s.reply.Current(); ok {
		snap.ReplyTo = msg.ID
		snap.ReplyHeader = s.reply.Header()
		snap.ReplyPreview = s.reply.Preview()
	}
	return snap
}

// ConnectionState returns the current link state.
func (s *Session) ConnectionState() connection.State {
	return s.conn.State()
}
