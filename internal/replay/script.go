// Package replay loads scripted conversations and plays them through a session.
package replay

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tOgg1/livedesk/internal/compose"
	"github.com/tOgg1/livedesk/internal/connection"
	"github.com/tOgg1/livedesk/internal/models"
	"github.com/tOgg1/livedesk/internal/notify"
)

// Action names a step in a script.
type Action string

const (
	ActionConnection  Action = "connection"
	ActionTyping      Action = "typing"
	ActionStopTyping  Action = "stop_typing"
	ActionInput       Action = "input"
	ActionSend        Action = "send"
	ActionMode        Action = "mode"
	ActionReply       Action = "reply"
	ActionCancelReply Action = "cancel_reply"
	ActionSearch      Action = "search"
	ActionMessage     Action = "message"
	ActionNotify      Action = "notify"
	ActionDismiss     Action = "dismiss"
)

var knownActions = map[Action]bool{
	ActionConnection:  true,
	ActionTyping:      true,
	ActionStopTyping:  true,
	ActionInput:       true,
	ActionSend:        true,
	ActionMode:        true,
	ActionReply:       true,
	ActionCancelReply: true,
	ActionSearch:      true,
	ActionMessage:     true,
	ActionNotify:      true,
	ActionDismiss:     true,
}

// ErrInvalidScript is wrapped by every validation failure.
var ErrInvalidScript = errors.New("invalid replay script")

// Duration accepts Go duration strings ("150ms", "2s") or bare integers as
// milliseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	raw := strings.TrimSpace(value.Value)
	if raw == "" {
		*d = 0
		return nil
	}
	if value.Tag == "!!int" {
		var ms int64
		if err := value.Decode(&ms); err != nil {
			return err
		}
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Script is a timed sequence of inbound events for one session.
type Script struct {
	Name string `yaml:"name"`

	// User is the local participant.
	User models.User `yaml:"user"`

	// Recipient is the external-channel address. Empty disables external mode.
	Recipient string `yaml:"recipient,omitempty"`

	// Until keeps the clock running after the last step.
	Until Duration `yaml:"until,omitempty"`

	Steps []Step `yaml:"steps"`
}

// Step is one inbound event. Which fields apply depends on Action.
type Step struct {
	At     Duration `yaml:"at"`
	Action Action   `yaml:"action"`

	// Event is the connection signal for connection steps.
	Event string `yaml:"event,omitempty"`

	// Error is the connection failure reason, or the delivery error a send
	// step should produce.
	Error string `yaml:"error,omitempty"`

	User    *models.User    `yaml:"user,omitempty"`
	Text    string          `yaml:"text,omitempty"`
	Mode    string          `yaml:"mode,omitempty"`
	Kind    string          `yaml:"kind,omitempty"`
	Message *models.Message `yaml:"message,omitempty"`

	// Index selects a notification by queue position for dismiss steps.
	Index int `yaml:"index,omitempty"`
}

// Parse decodes and validates a script.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	// Steps at the same offset keep their file order.
	sort.SliceStable(s.Steps, func(i, j int) bool { return s.Steps[i].At < s.Steps[j].At })
	return &s, nil
}

// Load reads and parses the script at path.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Validate checks every step for the fields its action needs.
func (s *Script) Validate() error {
	if strings.TrimSpace(s.User.ID) == "" {
		return fmt.Errorf("%w: user.id is required", ErrInvalidScript)
	}
	if s.User.Role == "" {
		s.User.Role = models.RoleAgent
	} else if role, ok := models.ParseRole(string(s.User.Role)); ok {
		s.User.Role = role
	} else {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidScript, s.User.Role)
	}
	if s.Until < 0 {
		return fmt.Errorf("%w: until must not be negative", ErrInvalidScript)
	}
	for i := range s.Steps {
		if err := s.Steps[i].validate(); err != nil {
			return fmt.Errorf("%w: step %d: %v", ErrInvalidScript, i+1, err)
		}
	}
	return nil
}

func (st *Step) validate() error {
	if st.At < 0 {
		return errors.New("at must not be negative")
	}
	st.Action = Action(strings.ToLower(strings.TrimSpace(string(st.Action))))
	if !knownActions[st.Action] {
		return fmt.Errorf("unknown action %q", st.Action)
	}
	switch st.Action {
	case ActionConnection:
		if _, ok := connection.ParseEvent(st.Event); !ok {
			return fmt.Errorf("unknown connection event %q", st.Event)
		}
	case ActionTyping:
		if st.User == nil || strings.TrimSpace(st.User.ID) == "" {
			return errors.New("typing needs user.id")
		}
	case ActionStopTyping:
		if st.User == nil || strings.TrimSpace(st.User.ID) == "" {
			return errors.New("stop_typing needs user.id")
		}
	case ActionMode:
		if _, ok := compose.ParseMode(st.Mode); !ok {
			return fmt.Errorf("unknown mode %q", st.Mode)
		}
	case ActionReply, ActionMessage:
		if st.Message == nil {
			return fmt.Errorf("%s needs message", st.Action)
		}
	case ActionNotify:
		if _, ok := notify.ParseKind(st.Kind); !ok {
			return fmt.Errorf("unknown notification kind %q", st.Kind)
		}
	case ActionDismiss:
		if st.Index < 0 {
			return errors.New("index must not be negative")
		}
	}
	return nil
}

// End returns the offset at which playback stops.
func (s *Script) End() time.Duration {
	end := s.Until.Std()
	if n := len(s.Steps); n > 0 && s.Steps[n-1].At.Std() > end {
		end = s.Steps[n-1].At.Std()
	}
	return end
}
