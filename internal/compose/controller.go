// Package compose governs the draft, the active send mode, and send
// eligibility of a chat composer.
//
// One Controller replaces separate message, internal-note, and external
// composers: the Mode selects which collaborator receives the text and which
// validation applies. Sending is split into BeginSend (or BeginExternal),
// Deliver, and Complete so a session can run the collaborator off its event
// loop and apply the outcome back on it.
package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/tOgg1/livedesk/internal/logging"
	"github.com/tOgg1/livedesk/internal/models"
	"github.com/tOgg1/livedesk/internal/notify"
)

// DefaultMaxLength is the largest draft, in runes, the controller keeps.
const DefaultMaxLength = 2000

// Reasons a send is not allowed.
var (
	ErrEmptyDraft      = errors.New("draft is empty")
	ErrSendInFlight    = errors.New("a send is already in flight")
	ErrDisabled        = errors.New("composer is disabled")
	ErrNotConnected    = errors.New("connection is not established")
	ErrModeUnavailable = errors.New("mode is not available")
	ErrExternalMode    = errors.New("external mode sends through its own flow")
	ErrNotExternalMode = errors.New("composer is not in external mode")
	ErrNoSender        = errors.New("no sender configured")
	ErrStaleRequest    = errors.New("send request is no longer in flight")
)

// Request is a snapshot of one send in flight.
type Request struct {
	ID        uint64
	Mode      Mode
	Text      string
	Internal  bool
	Recipient string
	ReplyTo   *models.Message
}

// Controller is not safe for concurrent use.
type Controller struct {
	local     models.User
	mode      Mode
	draft     string
	maxLength int
	disabled  bool

	inFlight *Request
	nextID   uint64

	sender     Sender
	external   ExternalSender
	recipients RecipientDirectory
	notifier   Notifier
	typing     TypingSignal
	reply      ReplyTarget
	conn       ConnectionStatus

	errorDuration   time.Duration
	onModeChange    func(Mode)
	onDraftChange   func(string)
	onSendCompleted func(Request, error)

	log zerolog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithSender sets the collaborator for message and internal-note sends.
func WithSender(s Sender) Option {
	return func(c *Controller) { c.sender = s }
}

// WithExternalSender sets the collaborator for external-channel sends.
func WithExternalSender(s ExternalSender) Option {
	return func(c *Controller) { c.external = s }
}

// WithRecipients sets the source of external recipient availability.
func WithRecipients(r RecipientDirectory) Option {
	return func(c *Controller) { c.recipients = r }
}

// WithNotifier sets where send outcomes are surfaced.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithTyping sets the tracker that receives local typing signals.
func WithTyping(t TypingSignal) Option {
	return func(c *Controller) { c.typing = t }
}

// WithReply attaches the reply context cleared on successful sends.
func WithReply(r ReplyTarget) Option {
	return func(c *Controller) { c.reply = r }
}

// WithConnection gates sends on link health.
func WithConnection(s ConnectionStatus) Option {
	return func(c *Controller) { c.conn = s }
}

// WithMaxLength sets the draft length bound in runes.
func WithMaxLength(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxLength = n
		}
	}
}

// WithErrorDuration sets how long failure notifications stay up.
func WithErrorDuration(d time.Duration) Option {
	return func(c *Controller) { c.errorDuration = d }
}

// WithOnModeChange registers a hook invoked after the mode changes.
func WithOnModeChange(fn func(Mode)) Option {
	return func(c *Controller) { c.onModeChange = fn }
}

// WithOnDraftChange registers a hook invoked after the draft changes.
func WithOnDraftChange(fn func(string)) Option {
	return func(c *Controller) { c.onDraftChange = fn }
}

// WithOnSendCompleted registers a hook invoked after Complete applies an outcome.
func WithOnSendCompleted(fn func(Request, error)) Option {
	return func(c *Controller) { c.onSendCompleted = fn }
}

// WithLogger overrides the component logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// New creates a controller in message mode for the local user.
func New(local models.User, opts ...Option) *Controller {
	c := &Controller{
		local:         local,
		mode:          ModeMessage,
		maxLength:     DefaultMaxLength,
		errorDuration: notify.DefaultDuration,
		log:           logging.Component("compose"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mode returns the active mode.
func (c *Controller) Mode() Mode {
	return c.mode
}

// Draft returns the current draft text.
func (c *Controller) Draft() string {
	return c.draft
}

// Sending reports whether a send is in flight.
func (c *Controller) Sending() bool {
	return c.inFlight != nil
}

// Disabled reports whether the composer is disabled.
func (c *Controller) Disabled() bool {
	return c.disabled
}

// SetDisabled enables or disables sending.
func (c *Controller) SetDisabled(disabled bool) {
	c.disabled = disabled
}

// Placeholder returns the input hint for the active mode.
func (c *Controller) Placeholder() string {
	return placeholders[c.mode]
}

// Recipient returns the external-channel address, if any.
func (c *Controller) Recipient() (string, bool) {
	if c.recipients == nil {
		return "", false
	}
	addr, ok := c.recipients.Recipient()
	addr = strings.TrimSpace(addr)
	return addr, ok && addr != ""
}

// IsModeAvailable reports whether SetMode(mode) would succeed.
func (c *Controller) IsModeAvailable(mode Mode) bool {
	switch mode {
	case ModeMessage, ModeInternal:
		return true
	case ModeExternal:
		_, ok := c.Recipient()
		return ok
	default:
		return false
	}
}

// SetMode switches the active mode. Unknown or unavailable modes leave the
// mode unchanged and return false.
func (c *Controller) SetMode(mode Mode) bool {
	if !c.IsModeAvailable(mode) {
		c.log.Debug().Str("mode", string(mode)).Msg("mode switch rejected")
		return false
	}
	if mode == c.mode {
		return true
	}
	c.mode = mode
	c.log.Debug().Str("mode", string(mode)).Msg("mode changed")
	if c.onModeChange != nil {
		c.onModeChange(mode)
	}
	return true
}

// UpdateDraft replaces the draft, truncating it to the length bound, and
// signals local typing activity.
func (c *Controller) UpdateDraft(text string) {
	if utf8.RuneCountInString(text) > c.maxLength {
		text = string([]rune(text)[:c.maxLength])
	}
	changed := text != c.draft
	c.draft = text
	c.signalTyping()
	if changed && c.onDraftChange != nil {
		c.onDraftChange(text)
	}
}

func (c *Controller) signalTyping() {
	if c.typing == nil || c.local.ID == "" {
		return
	}
	if strings.TrimSpace(c.draft) == "" {
		c.typing.StopTyping(c.local.ID)
		return
	}
	c.typing.StartTyping(c.local)
}

func (c *Controller) sharedGate() error {
	switch {
	case c.inFlight != nil:
		return ErrSendInFlight
	case c.disabled:
		return ErrDisabled
	case c.conn != nil && !c.conn.IsConnected():
		return ErrNotConnected
	case strings.TrimSpace(c.draft) == "":
		return ErrEmptyDraft
	}
	return nil
}

// Validate returns why a direct send is not allowed, or nil.
func (c *Controller) Validate() error {
	if c.mode == ModeExternal {
		return ErrExternalMode
	}
	return c.sharedGate()
}

// ValidateExternal returns why an external send is not allowed, or nil.
func (c *Controller) ValidateExternal() error {
	if c.mode != ModeExternal {
		return ErrNotExternalMode
	}
	if _, ok := c.Recipient(); !ok {
		return ErrModeUnavailable
	}
	return c.sharedGate()
}

// CanSend reports whether the direct send path is open. It is always false in
// external mode.
func (c *Controller) CanSend() bool {
	return c.Validate() == nil
}

// CanSendExternal reports whether the external send path is open.
func (c *Controller) CanSendExternal() bool {
	return c.ValidateExternal() == nil
}

// BeginSend marks a direct send in flight and returns its request.
func (c *Controller) BeginSend() (Request, error) {
	if err := c.Validate(); err != nil {
		return Request{}, err
	}
	return c.begin(""), nil
}

// BeginExternal marks an external send in flight and returns its request.
func (c *Controller) BeginExternal() (Request, error) {
	if err := c.ValidateExternal(); err != nil {
		return Request{}, err
	}
	addr, _ := c.Recipient()
	return c.begin(addr), nil
}

func (c *Controller) begin(recipient string) Request {
	c.nextID++
	req := Request{
		ID:        c.nextID,
		Mode:      c.mode,
		Text:      strings.TrimSpace(c.draft),
		Internal:  c.mode == ModeInternal,
		Recipient: recipient,
	}
	if c.reply != nil {
		if target, ok := c.reply.Current(); ok {
			req.ReplyTo = &target
		}
	}
	c.inFlight = &req
	return req
}

// Deliver hands req to its collaborator. It touches no controller state and
// may run on any goroutine.
func (c *Controller) Deliver(ctx context.Context, req Request) error {
	if req.Mode == ModeExternal {
		if c.external == nil {
			return ErrNoSender
		}
		if err := c.external.SendExternal(ctx, req.Recipient, req.Text); err != nil {
			return fmt.Errorf("external send to %s: %w", req.Recipient, err)
		}
		return nil
	}
	if c.sender == nil {
		return ErrNoSender
	}
	if err := c.sender.SendMessage(ctx, req.Text, req.Internal); err != nil {
		return fmt.Errorf("send %s: %w", req.Mode, err)
	}
	return nil
}

// Complete applies the outcome of req. On success the draft, the reply target,
// and the local typing indicator are cleared together. On failure they are
// kept and an error notification is raised.
func (c *Controller) Complete(req Request, err error) error {
	if c.inFlight == nil || c.inFlight.ID != req.ID {
		return ErrStaleRequest
	}
	c.inFlight = nil

	if err != nil {
		c.log.Warn().Err(err).Str("mode", string(req.Mode)).Str("text", logging.Snippet(req.Text)).Msg("send failed")
		c.notify(failureText(req), notify.KindError, c.errorDuration)
	} else {
		c.log.Debug().Str("mode", string(req.Mode)).Uint64("request_id", req.ID).Msg("send delivered")
		c.clearSent(req)
		if req.Mode == ModeExternal {
			c.notify("Message sent to "+req.Recipient, notify.KindSuccess, notify.DefaultDuration)
		}
	}

	if c.onSendCompleted != nil {
		c.onSendCompleted(req, err)
	}
	return nil
}

// clearSent drops the draft and reply target that req carried. Edits made
// while req was in flight, and a reply target picked meanwhile, are kept.
func (c *Controller) clearSent(req Request) {
	if c.reply != nil {
		cur, ok := c.reply.Current()
		switch {
		case req.ReplyTo != nil && ok && cur.ID == req.ReplyTo.ID:
			c.reply.Cancel()
		case ok:
			c.log.Debug().Str("reply_to", cur.ID).Msg("reply target changed during send, kept")
		}
	}

	if strings.TrimSpace(c.draft) != req.Text {
		c.log.Debug().Uint64("request_id", req.ID).Msg("draft edited during send, kept")
		return
	}
	c.draft = ""
	if c.typing != nil && c.local.ID != "" {
		c.typing.StopTyping(c.local.ID)
	}
	if c.onDraftChange != nil {
		c.onDraftChange("")
	}
}

func (c *Controller) notify(message string, kind notify.Kind, d time.Duration) {
	if c.notifier != nil {
		c.notifier.Notify(message, kind, d)
	}
}

func failureText(req Request) string {
	switch req.Mode {
	case ModeInternal:
		return "Failed to save internal note"
	case ModeExternal:
		return "Failed to send message through external channel"
	default:
		return "Failed to send message"
	}
}

// Send runs a direct send synchronously. It returns false with a nil error
// when the send is not allowed; query Validate for the reason. A delivery
// failure is returned after it has been surfaced through the notifier.
func (c *Controller) Send(ctx context.Context) (bool, error) {
	req, err := c.BeginSend()
	if err != nil {
		return false, nil
	}
	return c.finish(ctx, req)
}

// SendExternal runs an external send synchronously with the same contract as Send.
func (c *Controller) SendExternal(ctx context.Context) (bool, error) {
	req, err := c.BeginExternal()
	if err != nil {
		return false, nil
	}
	return c.finish(ctx, req)
}

func (c *Controller) finish(ctx context.Context, req Request) (bool, error) {
	sendErr := c.Deliver(ctx, req)
	_ = c.Complete(req, sendErr)
	if sendErr != nil {
		return false, sendErr
	}
	return true, nil
}

// Reset clears the draft and mode for a reopened session.
func (c *Controller) Reset() {
	c.draft = ""
	c.mode = ModeMessage
	c.inFlight = nil
}
