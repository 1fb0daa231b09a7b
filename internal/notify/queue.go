// Package notify manages the transient toast notifications of a chat session.
//
// Each notification counts down on the session scheduler. When its progress
// reaches zero, or when the user dismisses it, the notification enters a
// closing phase and is removed after a short grace period reserved for the
// exit animation.
package notify

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tOgg1/livedesk/internal/logging"
	"github.com/tOgg1/livedesk/internal/scheduler"
)

const (
	// DefaultDuration is how long a notification stays before auto-dismiss.
	DefaultDuration = 3 * time.Second

	// DefaultSampleInterval is how often progress is recomputed.
	DefaultSampleInterval = 50 * time.Millisecond

	// DefaultCloseGrace is the delay between closing and removal.
	DefaultCloseGrace = 300 * time.Millisecond
)

// Kind is the severity of a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
)

// ParseKind normalizes a raw kind string.
func ParseKind(raw string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "ok":
		return KindSuccess, true
	case "error", "err":
		return KindError, true
	case "info", "":
		return KindInfo, true
	case "warning", "warn":
		return KindWarning, true
	default:
	}
	return "", false
}

// Notification is a snapshot of one queued notification.
type Notification struct {
	ID        string
	Message   string
	Kind      Kind
	CreatedAt time.Time
	Duration  time.Duration
	Progress  float64
	Closing   bool
}

// Timers is the subset of the scheduler the queue needs.
type Timers interface {
	Now() time.Time
	After(delay time.Duration, fn func()) scheduler.Handle
	Every(interval time.Duration, fn func()) scheduler.Handle
	Cancel(h scheduler.Handle)
}

// Listener receives queue changes. Event is one of added, closing, removed.
type Listener func(event string, n Notification)

// Queue is a FIFO of notifications. It is not safe for concurrent use.
type Queue struct {
	timers   Timers
	duration time.Duration
	sample   time.Duration
	grace    time.Duration
	listener Listener
	log      zerolog.Logger
	newID    func() string

	items []*item
	byID  map[string]*item
}

type item struct {
	n       Notification
	driver  scheduler.Handle
	removal scheduler.Handle
}

// Option configures a Queue.
type Option func(*Queue)

// WithDuration sets the default notification duration.
func WithDuration(d time.Duration) Option {
	return func(q *Queue) {
		if d >= 0 {
			q.duration = d
		}
	}
}

// WithSampleInterval sets how often progress is sampled.
func WithSampleInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.sample = d
		}
	}
}

// WithCloseGrace sets the removal delay after closing.
func WithCloseGrace(d time.Duration) Option {
	return func(q *Queue) {
		if d >= 0 {
			q.grace = d
		}
	}
}

// WithListener registers a change listener.
func WithListener(fn Listener) Option {
	return func(q *Queue) {
		q.listener = fn
	}
}

// WithIDGenerator replaces the uuid-based id source.
func WithIDGenerator(fn func() string) Option {
	return func(q *Queue) {
		if fn != nil {
			q.newID = fn
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(log zerolog.Logger) Option {
	return func(q *Queue) {
		q.log = log
	}
}

// NewQueue creates an empty queue.
func NewQueue(timers Timers, opts ...Option) *Queue {
	q := &Queue{
		timers:   timers,
		duration: DefaultDuration,
		sample:   DefaultSampleInterval,
		grace:    DefaultCloseGrace,
		log:      logging.Component("notify"),
		newID:    func() string { return uuid.NewString() },
		byID:     make(map[string]*item),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends a notification with the default duration.
func (q *Queue) Enqueue(message string, kind Kind) string {
	return q.EnqueueFor(message, kind, q.duration)
}

// EnqueueFor appends a notification that auto-dismisses after d. A zero
// duration never auto-dismisses.
func (q *Queue) EnqueueFor(message string, kind Kind, d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if kind == "" {
		kind = KindInfo
	}
	it := &item{n: Notification{
		ID:        q.newID(),
		Message:   message,
		Kind:      kind,
		CreatedAt: q.timers.Now(),
		Duration:  d,
		Progress:  1,
	}}
	q.items = append(q.items, it)
	q.byID[it.n.ID] = it

	if d > 0 {
		it.driver = q.timers.Every(q.sample, func() { q.sampleProgress(it) })
	}

	q.log.Debug().Str("notification_id", it.n.ID).Str("kind", string(kind)).Dur("duration", d).Msg("notification queued")
	q.emit("added", it)
	return it.n.ID
}

// Notify satisfies the outbound notifier port of the other components.
func (q *Queue) Notify(message string, kind Kind, d time.Duration) {
	q.EnqueueFor(message, kind, d)
}

func (q *Queue) sampleProgress(it *item) {
	if it.n.Closing {
		return
	}
	elapsed := q.timers.Now().Sub(it.n.CreatedAt)
	progress := 1 - float64(elapsed)/float64(it.n.Duration)
	if progress < 0 || elapsed >= it.n.Duration {
		progress = 0
	}
	if progress < it.n.Progress {
		it.n.Progress = progress
	}
	if it.n.Progress == 0 {
		q.Dismiss(it.n.ID)
	}
}

// Dismiss starts the closing transition for id. Timeout and manual dismissal
// share this path; calls after the first return false and change nothing.
func (q *Queue) Dismiss(id string) bool {
	it, ok := q.byID[id]
	if !ok || it.n.Closing {
		return false
	}
	q.timers.Cancel(it.driver)
	it.driver = 0
	it.n.Closing = true
	it.removal = q.timers.After(q.grace, func() { q.remove(it) })
	q.emit("closing", it)
	return true
}

func (q *Queue) remove(it *item) {
	if q.byID[it.n.ID] != it {
		return
	}
	q.timers.Cancel(it.removal)
	delete(q.byID, it.n.ID)
	for i, cur := range q.items {
		if cur == it {
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
	q.log.Debug().Str("notification_id", it.n.ID).Msg("notification removed")
	q.emit("removed", it)
}

func (q *Queue) emit(event string, it *item) {
	if q.listener != nil {
		q.listener(event, it.n)
	}
}

// Get returns a snapshot of the notification with id.
func (q *Queue) Get(id string) (Notification, bool) {
	it, ok := q.byID[id]
	if !ok {
		return Notification{}, false
	}
	return it.n, true
}

// Items returns snapshots of every notification in FIFO order.
func (q *Queue) Items() []Notification {
	out := make([]Notification, 0, len(q.items))
	for _, it := range q.items {
		out = append(out, it.n)
	}
	return out
}

// Len returns the number of notifications, including closing ones.
func (q *Queue) Len() int {
	return len(q.items)
}

// Dispose cancels every driver and pending removal and empties the queue.
// Listeners are not notified.
func (q *Queue) Dispose() {
	for _, it := range q.items {
		q.timers.Cancel(it.driver)
		q.timers.Cancel(it.removal)
	}
	q.items = nil
	q.byID = make(map[string]*item)
}
