package session

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// ErrLoopClosed is returned when work is posted to a stopped loop.
var ErrLoopClosed = errors.New("session loop closed")

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLoopClock overrides the wall clock the loop follows.
func WithLoopClock(now func() time.Time) LoopOption {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

// WithInboxSize sets how many posted calls may queue before Do blocks.
func WithInboxSize(n int) LoopOption {
	return func(l *Loop) {
		if n > 0 {
			l.inbox = make(chan func(), n)
		}
	}
}

// Loop owns a Session on one goroutine and keeps its clock in step with wall
// time. Once Run has started, touch the session only through Do or Call.
type Loop struct {
	s     *Session
	inbox chan func()
	now   func() time.Time
	done  chan struct{}
	log   zerolog.Logger
}

// NewLoop attaches a loop to s. Sends started through s deliver off-loop
// from then on.
func NewLoop(s *Session, opts ...LoopOption) *Loop {
	l := &Loop{
		s:     s,
		inbox: make(chan func(), 64),
		now:   time.Now,
		done:  make(chan struct{}),
		log:   s.componentLog("loop"),
	}
	for _, opt := range opts {
		opt(l)
	}
	s.post = l.post
	return l
}

// Session returns the owned session.
func (l *Loop) Session() *Session {
	return l.s
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Run processes posted work and due timers until ctx is done, then disposes
// the session.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	l.log.Debug().Msg("loop started")
	for {
		l.s.AdvanceTo(l.now())

		var wake <-chan time.Time
		if next, ok := l.s.NextDeadline(); ok {
			d := next.Sub(l.now())
			if d < 0 {
				d = 0
			}
			timer.Reset(d)
			wake = timer.C
		}

		select {
		case <-ctx.Done():
			l.s.Dispose()
			l.log.Debug().Msg("loop stopped")
			return nil
		case fn := <-l.inbox:
			fn()
		case <-wake:
		}
		timer.Stop()
	}
}

func (l *Loop) post(fn func()) {
	select {
	case l.inbox <- fn:
	case <-l.done:
	}
}

// Do queues fn to run on the loop.
func (l *Loop) Do(fn func(s *Session)) error {
	select {
	case <-l.done:
		return ErrLoopClosed
	default:
	}
	select {
	case l.inbox <- func() { fn(l.s) }:
		return nil
	case <-l.done:
		return ErrLoopClosed
	}
}

// Call runs fn on the loop and waits for it to return.
func (l *Loop) Call(ctx context.Context, fn func(s *Session)) error {
	finished := make(chan struct{})
	if err := l.Do(func(s *Session) {
		defer close(finished)
		fn(s)
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrLoopClosed
		}
	}
}
