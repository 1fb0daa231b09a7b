// Package reply holds the single "replying to" target of a composer.
package reply

import (
	"strings"
	"unicode/utf8"

	"github.com/tOgg1/livedesk/internal/models"
)

const (
	// DefaultPreviewLength is the rune count kept in a reply preview.
	DefaultPreviewLength = 80

	// Ellipsis marks a truncated preview.
	Ellipsis = "..."
)

// Context holds at most one reply target. It is not safe for concurrent use.
type Context struct {
	target   *models.Message
	limit    int
	onChange func(*models.Message)
}

// Option configures a Context.
type Option func(*Context)

// WithPreviewLength sets the preview truncation threshold.
func WithPreviewLength(n int) Option {
	return func(c *Context) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithOnChange registers a hook invoked with the new target, nil when cleared.
func WithOnChange(fn func(*models.Message)) Option {
	return func(c *Context) {
		c.onChange = fn
	}
}

// New creates an empty reply context.
func New(opts ...Option) *Context {
	c := &Context{limit: DefaultPreviewLength}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetReplyTo replaces the current target with msg.
func (c *Context) SetReplyTo(msg models.Message) {
	c.target = &msg
	if c.onChange != nil {
		cp := msg
		c.onChange(&cp)
	}
}

// Cancel clears the target. It returns false if nothing was set.
func (c *Context) Cancel() bool {
	if c.target == nil {
		return false
	}
	c.target = nil
	if c.onChange != nil {
		c.onChange(nil)
	}
	return true
}

// Active reports whether a reply target is set.
func (c *Context) Active() bool {
	return c.target != nil
}

// Current returns a copy of the target.
func (c *Context) Current() (models.Message, bool) {
	if c.target == nil {
		return models.Message{}, false
	}
	return *c.target, true
}

// Preview returns the target content truncated for display, or "" if unset.
func (c *Context) Preview() string {
	if c.target == nil {
		return ""
	}
	return Truncate(c.target.Content, c.limit)
}

// Header returns the "Replying to" line for the target, or "" if unset.
func (c *Context) Header() string {
	if c.target == nil {
		return ""
	}
	name := strings.TrimSpace(c.target.SenderName)
	if name == "" {
		name = "message"
	}
	if c.target.IsInternal {
		return "Replying to internal note from " + name
	}
	return "Replying to " + name
}

// Truncate shortens s to limit runes followed by Ellipsis. Strings of at most
// limit runes are returned unchanged.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + Ellipsis
}
