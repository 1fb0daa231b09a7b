// Package session wires the engine components of one open chat conversation
// behind a single inbound surface.
//
// A Session is not safe for concurrent use: every On* method and every timer
// callback must run on one goroutine. Loop provides that goroutine for live
// use; tests and replays call the methods directly and move time with Advance.
package session

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tOgg1/livedesk/internal/compose"
	"github.com/tOgg1/livedesk/internal/config"
	"github.com/tOgg1/livedesk/internal/connection"
	"github.com/tOgg1/livedesk/internal/events"
	"github.com/tOgg1/livedesk/internal/logging"
	"github.com/tOgg1/livedesk/internal/models"
	"github.com/tOgg1/livedesk/internal/notify"
	"github.com/tOgg1/livedesk/internal/presence"
	"github.com/tOgg1/livedesk/internal/reply"
	"github.com/tOgg1/livedesk/internal/scheduler"
	"github.com/tOgg1/livedesk/internal/search"
)

// Deps are the outbound collaborators of a session.
type Deps struct {
	// Sender delivers messages and internal notes.
	Sender compose.Sender

	// External delivers messages through the external channel.
	External compose.ExternalSender

	// Recipients reports whether an external recipient is known.
	Recipients compose.RecipientDirectory

	// Publisher receives session events. Optional.
	Publisher events.Publisher
}

// Option configures a Session.
type Option func(*Session)

// WithConfig overrides the session settings.
func WithConfig(cfg config.SessionConfig) Option {
	return func(s *Session) { s.cfg = cfg }
}

// WithID sets the session id instead of a generated one.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithStart sets the initial scheduler clock. Sessions driven by Loop should
// keep the default wall-clock start.
func WithStart(start time.Time) Option {
	return func(s *Session) { s.start = start }
}

// WithLogger overrides the session logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) {
		s.log = log
		s.logSet = true
	}
}

// Session is one open conversation.
type Session struct {
	id     string
	local  models.User
	cfg    config.SessionConfig
	start  time.Time
	deps   Deps
	log    zerolog.Logger
	logSet bool

	sched    *scheduler.Scheduler
	typing   *presence.Tracker
	notes    *notify.Queue
	conn     *connection.Machine
	reply    *reply.Context
	composer *compose.Controller

	transcript []models.Message
	query      string

	// post, when set, moves work back onto the owning goroutine.
	post     func(func())
	disposed bool
}

// New creates a session for the local user.
func New(local models.User, deps Deps, opts ...Option) *Session {
	s := &Session{
		id:    uuid.NewString(),
		local: local,
		cfg:   config.DefaultSessionConfig(),
		start: time.Now(),
		deps:  deps,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !s.logSet {
		s.log = logging.WithSession(s.id)
	}

	s.sched = scheduler.New(s.start)
	s.conn = connection.NewMachine(
		connection.WithClock(s.sched.Now),
		connection.WithOnTransition(s.onConnectionTransition),
		connection.WithLogger(s.componentLog("connection")),
	)
	s.typing = presence.NewTracker(s.sched,
		presence.WithTimeout(s.cfg.TypingTimeout),
		presence.WithMaxShown(s.cfg.MaxTypingUsersShown),
		presence.WithOnChange(s.onTypingChanged),
		presence.WithLogger(s.componentLog("presence")),
	)
	s.notes = notify.NewQueue(s.sched,
		notify.WithDuration(s.cfg.NotificationDuration),
		notify.WithSampleInterval(s.cfg.NotificationSampleInterval),
		notify.WithCloseGrace(s.cfg.NotificationCloseGrace),
		notify.WithListener(s.onNotification),
		notify.WithLogger(s.componentLog("notify")),
	)
	s.reply = reply.New(
		reply.WithPreviewLength(s.cfg.ReplyPreviewLength),
		reply.WithOnChange(s.onReplyChanged),
	)

	composeOpts := []compose.Option{
		compose.WithSender(deps.Sender),
		compose.WithExternalSender(deps.External),
		compose.WithRecipients(deps.Recipients),
		compose.WithNotifier(s.notes),
		compose.WithTyping(s.typing),
		compose.WithReply(s.reply),
		compose.WithMaxLength(s.cfg.MessageMaxLength),
		compose.WithErrorDuration(s.cfg.NotificationDuration),
		compose.WithOnModeChange(s.onModeChanged),
		compose.WithOnDraftChange(s.onDraftChanged),
		compose.WithOnSendCompleted(s.onSendCompleted),
		compose.WithLogger(s.componentLog("compose")),
	}
	if s.cfg.RequireConnection {
		composeOpts = append(composeOpts, compose.WithConnection(s.conn))
	}
	s.composer = compose.New(local, composeOpts...)

	s.log.Debug().Str("user_id", local.ID).Msg("session opened")
	return s
}

func (s *Session) componentLog(name string) zerolog.Logger {
	return s.log.With().Str("component", name).Logger()
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// LocalUser returns the user this session composes for.
func (s *Session) LocalUser() models.User {
	return s.local
}

// Disposed reports whether Dispose has run.
func (s *Session) Disposed() bool {
	return s.disposed
}

// Now returns the session clock.
func (s *Session) Now() time.Time {
	return s.sched.Now()
}

// Advance moves the session clock forward and fires due timers.
func (s *Session) Advance(d time.Duration) int {
	if s.disposed {
		return 0
	}
	return s.sched.Advance(d)
}

// AdvanceTo moves the session clock to t and fires due timers.
func (s *Session) AdvanceTo(t time.Time) int {
	if s.disposed {
		return 0
	}
	return s.sched.AdvanceTo(t)
}

// NextDeadline returns when the next timer is due.
func (s *Session) NextDeadline() (time.Time, bool) {
	return s.sched.NextDeadline()
}

// PendingTimers returns the number of timers the session still owns.
func (s *Session) PendingTimers() int {
	return s.sched.Pending()
}

// OnConnectionEvent records a transport signal.
func (s *Session) OnConnectionEvent(ev connection.Event) bool {
	if s.disposed {
		return false
	}
	return s.conn.Handle(ev)
}

// OnUserInput replaces the local draft.
func (s *Session) OnUserInput(text string) {
	if s.disposed {
		return
	}
	s.composer.UpdateDraft(text)
}

// OnTypingSignal records that a remote participant is typing. Signals for
// the local user are ignored; local typing is derived from the draft.
func (s *Session) OnTypingSignal(user models.User) {
	if s.disposed || user.ID == s.local.ID {
		return
	}
	s.typing.StartTyping(user)
}

// OnTypingStopped records that a remote participant stopped typing.
func (s *Session) OnTypingStopped(userID string) {
	if s.disposed || userID == s.local.ID {
		return
	}
	s.typing.StopTyping(userID)
}

// OnMessageReceived appends msg to the transcript and clears its author's
// typing indicator.
func (s *Session) OnMessageReceived(msg models.Message) {
	if s.disposed {
		return
	}
	s.transcript = append(s.transcript, msg)
	if msg.SenderID != "" && msg.SenderID != s.local.ID {
		s.typing.StopTyping(msg.SenderID)
	}
}

// OnModeSwitchRequested switches the composition mode. It returns false and
// changes nothing when the mode is unavailable.
func (s *Session) OnModeSwitchRequested(mode compose.Mode) bool {
	if s.disposed {
		return false
	}
	return s.composer.SetMode(mode)
}

// OnReplyRequested sets the reply target, replacing any previous one.
func (s *Session) OnReplyRequested(msg models.Message) {
	if s.disposed {
		return
	}
	s.reply.SetReplyTo(msg)
}

// OnReplyCancelled clears the reply target.
func (s *Session) OnReplyCancelled() {
	if s.disposed {
		return
	}
	s.reply.Cancel()
}

// OnSearchQueryChanged sets the live transcript filter.
func (s *Session) OnSearchQueryChanged(query string) {
	if s.disposed || query == s.query {
		return
	}
	s.query = query
	s.emit(models.EventTypeSearchChanged, "", query, nil)
}

// OnNotificationDismissed dismisses a notification on user request.
func (s *Session) OnNotificationDismissed(id string) bool {
	if s.disposed {
		return false
	}
	return s.notes.Dismiss(id)
}

// OnSendRequested starts a send through the active mode. It returns false
// when the send is not allowed; Validate reports why. With a Loop attached
// the collaborator runs on its own goroutine and the outcome is applied on
// the loop; otherwise the send completes before OnSendRequested returns.
func (s *Session) OnSendRequested(ctx context.Context) bool {
	if s.disposed {
		return false
	}
	var (
		req compose.Request
		err error
	)
	if s.composer.Mode() == compose.ModeExternal {
		req, err = s.composer.BeginExternal()
	} else {
		req, err = s.composer.BeginSend()
	}
	if err != nil {
		s.log.Debug().Err(err).Msg("send rejected")
		return false
	}

	// Collaborators log through logging.FromContext to stay scoped to this send.
	ctx = logging.WithContext(ctx, s.log.With().
		Uint64("request_id", req.ID).
		Str("mode", string(req.Mode)).
		Logger())

	if s.post == nil {
		s.completeSend(req, s.composer.Deliver(ctx, req))
		return true
	}
	post := s.post
	go func() {
		sendErr := s.composer.Deliver(ctx, req)
		post(func() { s.completeSend(req, sendErr) })
	}()
	return true
}

func (s *Session) completeSend(req compose.Request, err error) {
	if s.disposed {
		return
	}
	_ = s.composer.Complete(req, err)
}

// Validate reports why a send through the active mode is not allowed.
func (s *Session) Validate() error {
	if s.composer.Mode() == compose.ModeExternal {
		return s.composer.ValidateExternal()
	}
	return s.composer.Validate()
}

// IsModeAvailable reports whether mode can be selected.
func (s *Session) IsModeAvailable(mode compose.Mode) bool {
	return s.composer.IsModeAvailable(mode)
}

// SetDisabled enables or disables the composer.
func (s *Session) SetDisabled(disabled bool) {
	s.composer.SetDisabled(disabled)
}

// Notify queues a notification with the configured default duration.
func (s *Session) Notify(message string, kind notify.Kind) string {
	if s.disposed {
		return ""
	}
	return s.notes.Enqueue(message, kind)
}

// Transcript returns every received message in arrival order.
func (s *Session) Transcript() []models.Message {
	return append([]models.Message(nil), s.transcript...)
}

// VisibleMessages returns the transcript filtered by the live query.
func (s *Session) VisibleMessages() []models.Message {
	return search.Filter(s.transcript, s.query)
}

// Dispose cancels every timer and discards transient state. Further inbound
// calls are ignored. Calling Dispose again is a no-op.
func (s *Session) Dispose() {
	if s.disposed {
		return
	}
	s.typing.ClearAll()
	s.notes.Dispose()
	s.reply.Cancel()
	s.composer.Reset()
	s.sched.CancelAll()
	s.transcript = nil
	s.query = ""
	s.disposed = true
	s.emit(models.EventTypeSessionDisposed, "", "", nil)
	s.log.Debug().Msg("session disposed")
}

func (s *Session) emit(t models.EventType, subject, detail string, meta map[string]string) {
	if s.deps.Publisher == nil {
		return
	}
	s.deps.Publisher.Publish(context.Background(), &models.Event{
		Type:      t,
		SessionID: s.id,
		Timestamp: s.sched.Now(),
		Subject:   subject,
		Detail:    detail,
		Metadata:  meta,
	})
}

func (s *Session) onConnectionTransition(tr connection.Transition) {
	meta := map[string]string{
		"from": tr.From.String(),
		"seq":  strconv.FormatUint(tr.Seq, 10),
	}
	if err := s.conn.LastError(); err != nil && tr.To == connection.StateError {
		meta["error"] = err.Error()
	}
	s.emit(models.EventTypeConnectionChanged, "", tr.To.String(), meta)
}

func (s *Session) onTypingChanged([]models.User) {
	s.emit(models.EventTypeTypingChanged, "", s.typing.TextExcluding(s.local.ID), map[string]string{
		"count": strconv.Itoa(s.typing.Count()),
	})
}

func (s *Session) onNotification(event string, n notify.Notification) {
	var t models.EventType
	switch event {
	case "added":
		t = models.EventTypeNotificationAdded
	case "closing":
		t = models.EventTypeNotificationClosing
	case "removed":
		t = models.EventTypeNotificationRemoved
	default:
		return
	}
	s.emit(t, n.ID, n.Message, map[string]string{"kind": string(n.Kind)})
}

func (s *Session) onReplyChanged(msg *models.Message) {
	if msg == nil {
		s.emit(models.EventTypeReplyChanged, "", "", nil)
		return
	}
	s.emit(models.EventTypeReplyChanged, msg.ID, s.reply.Preview(), nil)
}

func (s *Session) onModeChanged(mode compose.Mode) {
	s.emit(models.EventTypeModeChanged, "", string(mode), nil)
}

func (s *Session) onDraftChanged(draft string) {
	s.emit(models.EventTypeDraftChanged, "", "", map[string]string{
		"length": strconv.Itoa(len([]rune(draft))),
	})
}

func (s *Session) onSendCompleted(req compose.Request, err error) {
	meta := map[string]string{"mode": string(req.Mode)}
	if req.ReplyTo != nil {
		meta["reply_to"] = req.ReplyTo.ID
	}
	if err != nil {
		meta["error"] = err.Error()
		s.emit(models.EventTypeMessageFailed, strconv.FormatUint(req.ID, 10), "", meta)
		return
	}
	s.emit(models.EventTypeMessageSent, strconv.FormatUint(req.ID, 10), "", meta)
}
