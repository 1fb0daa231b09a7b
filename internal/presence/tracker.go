// Package presence tracks which chat participants are currently typing.
package presence

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/livedesk/internal/logging"
	"github.com/tOgg1/livedesk/internal/models"
	"github.com/tOgg1/livedesk/internal/scheduler"
)

const (
	// DefaultTimeout is how long a typing signal stays live without a refresh.
	DefaultTimeout = 3 * time.Second

	// DefaultMaxShown is how many names the typing text lists before summarizing.
	DefaultMaxShown = 3
)

// Timers is the subset of the scheduler the tracker needs.
type Timers interface {
	After(delay time.Duration, fn func()) scheduler.Handle
	Cancel(h scheduler.Handle)
}

type entry struct {
	user  models.User
	timer scheduler.Handle
}

// Tracker holds the live typing set for one session. It is not safe for
// concurrent use.
type Tracker struct {
	timers   Timers
	timeout  time.Duration
	maxShown int
	onChange func([]models.User)
	log      zerolog.Logger

	order   []string
	entries map[string]*entry
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithTimeout sets the default expiry used by StartTyping.
func WithTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithMaxShown sets how many names Text lists.
func WithMaxShown(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.maxShown = n
		}
	}
}

// WithOnChange registers a hook invoked after every change to the typing set.
func WithOnChange(fn func([]models.User)) Option {
	return func(t *Tracker) {
		t.onChange = fn
	}
}

// WithLogger overrides the component logger.
func WithLogger(log zerolog.Logger) Option {
	return func(t *Tracker) {
		t.log = log
	}
}

// NewTracker creates an empty tracker.
func NewTracker(timers Timers, opts ...Option) *Tracker {
	t := &Tracker{
		timers:   timers,
		timeout:  DefaultTimeout,
		maxShown: DefaultMaxShown,
		log:      logging.Component("presence"),
		entries:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StartTyping marks user as typing with the default timeout.
func (t *Tracker) StartTyping(user models.User) {
	t.StartTypingFor(user, t.timeout)
}

// StartTypingFor marks user as typing until timeout passes without a refresh.
// A user already in the set keeps its position and gets a fresh timer.
func (t *Tracker) StartTypingFor(user models.User, timeout time.Duration) {
	id := strings.TrimSpace(user.ID)
	if id == "" {
		return
	}
	user.ID = id
	if timeout <= 0 {
		timeout = t.timeout
	}

	e, ok := t.entries[id]
	renamed := false
	if ok {
		t.timers.Cancel(e.timer)
		renamed = e.user != user
		e.user = user
	} else {
		e = &entry{user: user}
		t.entries[id] = e
		t.order = append(t.order, id)
	}
	e.timer = t.timers.After(timeout, func() {
		// Only the timer that is still current may evict.
		if cur, ok := t.entries[id]; ok && cur == e {
			t.log.Debug().Str("user_id", id).Msg("typing expired")
			t.remove(id)
		}
	})

	if !ok {
		t.log.Debug().Str("user_id", id).Str("role", string(user.Role)).Msg("typing started")
	}
	if !ok || renamed {
		t.changed()
	}
}

// StopTyping removes userID from the typing set. It returns false if the user
// was not typing.
func (t *Tracker) StopTyping(userID string) bool {
	id := strings.TrimSpace(userID)
	e, ok := t.entries[id]
	if !ok {
		return false
	}
	t.timers.Cancel(e.timer)
	t.remove(id)
	return true
}

func (t *Tracker) remove(id string) {
	delete(t.entries, id)
	for i, cur := range t.order {
		if cur == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.changed()
}

// ClearAll removes every user and cancels every pending expiry.
func (t *Tracker) ClearAll() {
	if len(t.entries) == 0 {
		return
	}
	for _, e := range t.entries {
		t.timers.Cancel(e.timer)
	}
	t.entries = make(map[string]*entry)
	t.order = nil
	t.changed()
}

func (t *Tracker) changed() {
	if t.onChange != nil {
		t.onChange(t.Users())
	}
}

// IsTyping reports whether anyone is typing.
func (t *Tracker) IsTyping() bool {
	return len(t.entries) > 0
}

// Count returns the number of typing users.
func (t *Tracker) Count() int {
	return len(t.entries)
}

// Contains reports whether userID is in the typing set.
func (t *Tracker) Contains(userID string) bool {
	_, ok := t.entries[strings.TrimSpace(userID)]
	return ok
}

// Users returns the typing users in the order they started typing.
func (t *Tracker) Users() []models.User {
	out := make([]models.User, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.entries[id].user)
	}
	return out
}

// Text renders the typing indicator line for everyone in the set.
func (t *Tracker) Text() string {
	return FormatTyping(t.Users(), t.maxShown)
}

// TextExcluding renders the typing line without userID, so a participant
// does not see their own indicator.
func (t *Tracker) TextExcluding(userID string) string {
	users := t.Users()
	out := users[:0:0]
	for _, u := range users {
		if u.ID != userID {
			out = append(out, u)
		}
	}
	return FormatTyping(out, t.maxShown)
}

// FormatTyping builds the aggregated typing text:
//
//	A is typing
//	A and B are typing
//	A, B and C are typing
//	A, B, C and 2 more are typing
func FormatTyping(users []models.User, maxShown int) string {
	if maxShown <= 0 {
		maxShown = DefaultMaxShown
	}
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.DisplayName())
	}

	switch n := len(names); {
	case n == 0:
		return ""
	case n == 1:
		return names[0] + " is typing"
	case n <= maxShown:
		return strings.Join(names[:n-1], ", ") + " and " + names[n-1] + " are typing"
	default:
		return fmt.Sprintf("%s and %d more are typing", strings.Join(names[:maxShown], ", "), n-maxShown)
	}
}
