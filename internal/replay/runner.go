package replay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tOgg1/livedesk/internal/compose"
	"github.com/tOgg1/livedesk/internal/config"
	"github.com/tOgg1/livedesk/internal/connection"
	"github.com/tOgg1/livedesk/internal/events"
	"github.com/tOgg1/livedesk/internal/logging"
	"github.com/tOgg1/livedesk/internal/models"
	"github.com/tOgg1/livedesk/internal/notify"
	"github.com/tOgg1/livedesk/internal/session"
)

// Delivery is one message handed to a scripted collaborator.
type Delivery struct {
	Text      string `json:"text" yaml:"text"`
	Internal  bool   `json:"internal,omitempty" yaml:"internal,omitempty"`
	Recipient string `json:"recipient,omitempty" yaml:"recipient,omitempty"`
	Err       string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Retry is one scripted reconnect attempt and the delay a transport following
// the backoff policy would have waited before it.
type Retry struct {
	At        Duration `json:"at" yaml:"at"`
	Attempt   int      `json:"attempt" yaml:"attempt"`
	Delay     Duration `json:"delay" yaml:"delay"`
	Exhausted bool     `json:"exhausted,omitempty" yaml:"exhausted,omitempty"`
}

// Result is the outcome of one playback.
type Result struct {
	Start      time.Time        `json:"start" yaml:"start"`
	Events     []models.Event   `json:"events" yaml:"events"`
	Deliveries []Delivery       `json:"deliveries" yaml:"deliveries"`
	Retries    []Retry          `json:"retries,omitempty" yaml:"retries,omitempty"`
	Final      session.Snapshot `json:"final" yaml:"final"`

	// LeakedTimers counts timers still scheduled after disposal.
	LeakedTimers int `json:"leaked_timers" yaml:"leaked_timers"`
}

// Option configures a Runner.
type Option func(*Runner)

// WithSessionConfig sets the session settings used for playback.
func WithSessionConfig(cfg config.SessionConfig) Option {
	return func(r *Runner) { r.cfg = cfg }
}

// WithStart sets the virtual clock origin.
func WithStart(start time.Time) Option {
	return func(r *Runner) { r.start = start }
}

// WithBackoff sets the reconnect policy scripted retries are checked against.
func WithBackoff(b connection.Backoff) Option {
	return func(r *Runner) { r.backoff = b }
}

// WithLogger overrides the runner logger.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Runner) { r.log = log }
}

// Runner plays a script through a fresh session.
type Runner struct {
	script *Script
	cfg    config.SessionConfig
	start   time.Time
	backoff connection.Backoff
	log     zerolog.Logger

	mu         sync.Mutex
	outcomes   []string
	deliveries []Delivery
	attempt    int
	retries    []Retry
}

// NewRunner prepares playback of script.
func NewRunner(script *Script, opts ...Option) *Runner {
	r := &Runner{
		script: script,
		cfg:     config.DefaultSessionConfig(),
		start:   time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		backoff: connection.DefaultBackoff(),
		log:     logging.Component("replay"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) newSession(rec *events.Recorder, start time.Time) (*session.Session, error) {
	pub := events.NewInMemoryPublisher()
	if err := pub.Subscribe("replay", events.Filter{}, rec.Handle); err != nil {
		return nil, err
	}
	deps := session.Deps{
		Sender:     compose.SenderFunc(r.sendMessage),
		External:   compose.ExternalSenderFunc(r.sendExternal),
		Recipients: compose.StaticRecipient(r.script.Recipient),
		Publisher:  pub,
	}
	opts := []session.Option{session.WithConfig(r.cfg), session.WithStart(start)}
	if r.script.Name != "" {
		opts = append(opts, session.WithID(r.script.Name))
	}
	return session.New(r.script.User, deps, opts...), nil
}

// Run plays the script on a virtual clock. It never sleeps.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	rec := &events.Recorder{}
	s, err := r.newSession(rec, r.start)
	if err != nil {
		return nil, err
	}
	origin := s.Now()

	for i, st := range r.script.Steps {
		if err := ctx.Err(); err != nil {
			s.Dispose()
			return nil, err
		}
		s.AdvanceTo(origin.Add(st.At.Std()))
		r.apply(ctx, s, i, st)
	}
	s.AdvanceTo(origin.Add(r.script.End()))
	res := r.finish(s, rec)
	res.Start = origin
	return res, nil
}

// RunRealtime plays the script against the wall clock through a session loop.
func (r *Runner) RunRealtime(ctx context.Context) (*Result, error) {
	rec := &events.Recorder{}
	s, err := r.newSession(rec, time.Now())
	if err != nil {
		return nil, err
	}
	origin := s.Now()
	loop := session.NewLoop(s)

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	g, gctx := errgroup.WithContext(loopCtx)

	var final session.Snapshot
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error {
		defer stopLoop()
		for i, st := range r.script.Steps {
			if err := sleepUntil(gctx, origin.Add(st.At.Std())); err != nil {
				return err
			}
			if err := loop.Call(gctx, func(s *session.Session) { r.apply(gctx, s, i, st) }); err != nil {
				return err
			}
		}
		if err := sleepUntil(gctx, origin.Add(r.script.End())); err != nil {
			return err
		}
		return loop.Call(gctx, func(s *session.Session) { final = s.Snapshot() })
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := r.result(rec)
	res.Start = origin
	res.Final = final
	res.LeakedTimers = s.PendingTimers()
	return res, nil
}

func sleepUntil(ctx context.Context, at time.Time) error {
	d := time.Until(at)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *Runner) finish(s *session.Session, rec *events.Recorder) *Result {
	final := s.Snapshot()
	s.Dispose()
	res := r.result(rec)
	res.Final = final
	res.LeakedTimers = s.PendingTimers()
	return res
}

func (r *Runner) result(rec *events.Recorder) *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &Result{
		Events:     rec.Events(),
		Deliveries: append([]Delivery(nil), r.deliveries...),
		Retries:    append([]Retry(nil), r.retries...),
	}
}

func (r *Runner) apply(ctx context.Context, s *session.Session, i int, st Step) {
	log := r.log.With().Int("step", i+1).Str("action", string(st.Action)).Logger()
	switch st.Action {
	case ActionConnection:
		ev, _ := connection.ParseEvent(st.Event)
		var cause error
		if st.Error != "" {
			cause = errors.New(st.Error)
		}
		if s.OnConnectionEvent(connection.Event{Type: ev, Err: cause}) {
			r.trackReconnect(log, st.At, ev)
		}
	case ActionTyping:
		s.OnTypingSignal(*st.User)
	case ActionStopTyping:
		s.OnTypingStopped(st.User.ID)
	case ActionInput:
		s.OnUserInput(st.Text)
	case ActionSend:
		r.pushOutcome(st.Error)
		if !s.OnSendRequested(ctx) {
			r.dropLastOutcome()
			log.Info().Err(s.Validate()).Msg("send rejected")
		}
	case ActionMode:
		mode, _ := compose.ParseMode(st.Mode)
		if !s.OnModeSwitchRequested(mode) {
			log.Info().Str("mode", string(mode)).Msg("mode unavailable")
		}
	case ActionReply:
		s.OnReplyRequested(*st.Message)
	case ActionCancelReply:
		s.OnReplyCancelled()
	case ActionSearch:
		s.OnSearchQueryChanged(st.Text)
	case ActionMessage:
		msg := *st.Message
		if msg.Timestamp.IsZero() {
			msg.Timestamp = s.Now()
		}
		s.OnMessageReceived(msg)
	case ActionNotify:
		kind, _ := notify.ParseKind(st.Kind)
		s.Notify(st.Text, kind)
	case ActionDismiss:
		items := s.Snapshot().Notifications
		if st.Index >= len(items) {
			log.Info().Int("index", st.Index).Int("notifications", len(items)).Msg("nothing to dismiss")
			return
		}
		s.OnNotificationDismissed(items[st.Index].ID)
	}
}

// trackReconnect counts retries since the last successful connect and records
// the delay the backoff policy assigns to each.
func (r *Runner) trackReconnect(log zerolog.Logger, at Duration, ev connection.EventType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch ev {
	case connection.EventConnected:
		r.attempt = 0
	case connection.EventRetry:
		retry := Retry{
			At:        at,
			Attempt:   r.attempt + 1,
			Delay:     Duration(r.backoff.NextDelay(r.attempt)),
			Exhausted: !r.backoff.ShouldRetry(r.attempt),
		}
		r.retries = append(r.retries, retry)
		r.attempt++
		if retry.Exhausted {
			log.Warn().Int("attempt", retry.Attempt).Int("max_retries", r.backoff.MaxRetries).Msg("retry beyond backoff budget")
			return
		}
		log.Debug().Int("attempt", retry.Attempt).Dur("delay", retry.Delay.Std()).Msg("reconnect scheduled")
	}
}

func (r *Runner) pushOutcome(errText string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, errText)
}

func (r *Runner) dropLastOutcome() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.outcomes); n > 0 {
		r.outcomes = r.outcomes[:n-1]
	}
}

func (r *Runner) popOutcome() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.outcomes) == 0 {
		return ""
	}
	out := r.outcomes[0]
	r.outcomes = r.outcomes[1:]
	return out
}

func (r *Runner) deliver(d Delivery, errText string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.Err = errText
	r.deliveries = append(r.deliveries, d)
	if errText != "" {
		return errors.New(errText)
	}
	return nil
}

func (r *Runner) sendMessage(ctx context.Context, text string, internal bool) error {
	errText := r.popOutcome()
	logger := logging.FromContext(ctx)
	logger.Debug().Bool("internal", internal).Str("text", logging.Snippet(text)).Str("outcome", outcomeName(errText)).Msg("scripted delivery")
	return r.deliver(Delivery{Text: text, Internal: internal}, errText)
}

func (r *Runner) sendExternal(ctx context.Context, recipient, text string) error {
	errText := r.popOutcome()
	logger := logging.FromContext(ctx)
	logger.Debug().Str("recipient", logging.Redact(recipient)).Str("text", logging.Snippet(text)).Str("outcome", outcomeName(errText)).Msg("scripted external delivery")
	return r.deliver(Delivery{Text: text, Recipient: recipient}, errText)
}

func outcomeName(errText string) string {
	if errText == "" {
		return "ok"
	}
	return "error"
}

// Play loads and runs the script at path.
func Play(ctx context.Context, path string, realtime bool, opts ...Option) (*Result, error) {
	script, err := Load(path)
	if err != nil {
		return nil, err
	}
	r := NewRunner(script, opts...)
	if realtime {
		return r.RunRealtime(ctx)
	}
	res, err := r.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", path, err)
	}
	return res, nil
}
