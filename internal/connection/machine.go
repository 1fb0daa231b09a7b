// Package connection models the health of a session's realtime link.
//
// The machine only records what collaborators report. It never schedules
// retries itself; see Backoff for a delay policy callers may apply.
package connection

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/livedesk/internal/logging"
)

// State is the current status of the realtime link.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
	StateError
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// EventType is the kind of signal a transport collaborator reports.
type EventType int

const (
	// EventConnected reports that the link is up.
	EventConnected EventType = iota + 1
	// EventLost reports that an established link dropped.
	EventLost
	// EventFailed reports a fatal connection error.
	EventFailed
	// EventRetry reports that the collaborator is attempting a reconnect.
	EventRetry
)

// String returns the lowercase name of the event type.
func (e EventType) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventLost:
		return "lost"
	case EventFailed:
		return "failed"
	case EventRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// ParseEvent normalizes a raw event name.
func ParseEvent(raw string) (EventType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "connected", "open", "ready":
		return EventConnected, true
	case "lost", "disconnected", "close", "closed":
		return EventLost, true
	case "failed", "error":
		return EventFailed, true
	case "retry", "reconnect", "reconnecting":
		return EventRetry, true
	default:
	}
	return 0, false
}

// Event is a connection signal from a collaborator.
type Event struct {
	Type EventType
	Err  error
}

// Transition describes one state change.
type Transition struct {
	From  State
	To    State
	Event EventType
	Seq   uint64
	At    time.Time
}

// Machine is not safe for concurrent use.
type Machine struct {
	state       State
	transitions uint64
	lastErr     error
	changedAt   time.Time
	now         func() time.Time
	onChange    func(Transition)
	log         zerolog.Logger
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock sets the time source used for transition timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithOnTransition registers a hook invoked after each state change.
func WithOnTransition(fn func(Transition)) Option {
	return func(m *Machine) {
		m.onChange = fn
	}
}

// WithLogger overrides the component logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Machine) {
		m.log = log
	}
}

// NewMachine creates a machine in the connecting state.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		state: StateConnecting,
		now:   time.Now,
		log:   logging.Component("connection"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.changedAt = m.now()
	return m
}

// next returns the target state for ev, or false when ev does not apply.
func next(from State, ev EventType) (State, bool) {
	switch ev {
	case EventRetry:
		return StateConnecting, from != StateConnecting
	case EventLost:
		return StateDisconnected, from != StateDisconnected
	case EventFailed:
		return StateError, from != StateError
	case EventConnected:
		return StateConnected, from == StateConnecting
	default:
		return from, false
	}
}

// Handle applies ev and reports whether the state changed. Events that do not
// apply to the current state leave it untouched.
func (m *Machine) Handle(ev Event) bool {
	to, ok := next(m.state, ev.Type)
	if !ok {
		m.log.Debug().Str("state", m.state.String()).Str("event", ev.Type.String()).Msg("connection event ignored")
		return false
	}

	from := m.state
	m.state = to
	m.transitions++
	m.changedAt = m.now()
	if to == StateError {
		m.lastErr = ev.Err
	} else if to == StateConnected {
		m.lastErr = nil
	}

	logEvent := m.log.Debug()
	if to == StateError || to == StateDisconnected {
		logEvent = m.log.Info()
	}
	logEvent.Str("from", from.String()).Str("to", to.String()).Uint64("seq", m.transitions).Err(ev.Err).Msg("connection state changed")

	if m.onChange != nil {
		m.onChange(Transition{From: from, To: to, Event: ev.Type, Seq: m.transitions, At: m.changedAt})
	}
	return true
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// IsConnected reports whether the link is up.
func (m *Machine) IsConnected() bool {
	return m.state == StateConnected
}

// Transitions returns how many state changes have happened.
func (m *Machine) Transitions() uint64 {
	return m.transitions
}

// LastError returns the error carried by the most recent failure, cleared on connect.
func (m *Machine) LastError() error {
	return m.lastErr
}

// ChangedAt returns when the machine last changed state.
func (m *Machine) ChangedAt() time.Time {
	return m.changedAt
}
