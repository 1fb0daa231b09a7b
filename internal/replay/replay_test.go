package replay

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/livedesk/internal/compose"
	"github.com/tOgg1/livedesk/internal/config"
	"github.com/tOgg1/livedesk/internal/connection"
	"github.com/tOgg1/livedesk/internal/models"
	"github.com/tOgg1/livedesk/internal/testutil"
)

func TestParse_Durations(t *testing.T) {
	s, err := Parse([]byte(`
user: {id: a1}
until: 2s
steps:
  - {at: 250, action: input, text: hi}
  - {at: 100ms, action: input, text: first}
  - {at: 100ms, action: input, text: second}
`))
	require.NoError(t, err)
	require.Equal(t, models.RoleAgent, s.User.Role)
	require.Len(t, s.Steps, 3)
	require.Equal(t, "first", s.Steps[0].Text)
	require.Equal(t, "second", s.Steps[1].Text)
	require.Equal(t, 250*time.Millisecond, s.Steps[2].At.Std())
	require.Equal(t, 2*time.Second, s.End())
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"missing user":     `steps: []`,
		"unknown action":   "user: {id: a}\nsteps:\n  - {at: 0s, action: dance}",
		"bad event":        "user: {id: a}\nsteps:\n  - {at: 0s, action: connection, event: maybe}",
		"bad mode":         "user: {id: a}\nsteps:\n  - {at: 0s, action: mode, mode: fax}",
		"typing no user":   "user: {id: a}\nsteps:\n  - {at: 0s, action: typing}",
		"reply no message": "user: {id: a}\nsteps:\n  - {at: 0s, action: reply}",
		"bad duration":     "user: {id: a}\nsteps:\n  - {at: soon, action: input}",
		"negative at":      "user: {id: a}\nsteps:\n  - {at: -1s, action: input}",
		"bad role":         "user: {id: a, role: robot}",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src))
			require.ErrorIs(t, err, ErrInvalidScript)
		})
	}
}

func TestRun_Handoff(t *testing.T) {
	res, err := Play(context.Background(), filepath.Join("testdata", "handoff.yaml"), false)
	require.NoError(t, err)

	require.Equal(t, []Delivery{
		{Text: "Checking with logistics now", Err: "gateway timeout"},
		{Text: "Checking with logistics now"},
		{Text: "Your package shipped", Recipient: "+5511912345678"},
	}, res.Deliveries)

	final := res.Final
	require.Equal(t, "handoff-demo", final.SessionID)
	require.Equal(t, "connected", final.Connection)
	require.Equal(t, compose.ModeExternal, final.Mode)
	require.Equal(t, "", final.Draft)
	require.Equal(t, "", final.ReplyTo)
	require.Equal(t, "", final.TypingText)
	require.Empty(t, final.Notifications)
	require.Equal(t, "ORDER", final.Query)
	require.Equal(t, 1, final.Visible)
	require.Equal(t, 0, res.LeakedTimers)

	counts := map[models.EventType]int{}
	for _, ev := range res.Events {
		counts[ev.Type]++
	}
	require.Equal(t, 1, counts[models.EventTypeMessageFailed])
	require.Equal(t, 2, counts[models.EventTypeMessageSent])
	require.Equal(t, 2, counts[models.EventTypeNotificationAdded])
	require.Equal(t, 2, counts[models.EventTypeNotificationRemoved])
	require.Equal(t, 1, counts[models.EventTypeSessionDisposed])
}

func TestRun_RejectedSendKeepsOutcomeQueue(t *testing.T) {
	s, err := Parse([]byte(`
user: {id: a1}
steps:
  - {at: 0s, action: connection, event: connected}
  - {at: 0s, action: send, error: should not be used}
  - {at: 10ms, action: input, text: hello}
  - {at: 20ms, action: send}
`))
	require.NoError(t, err)
	res, err := NewRunner(s).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Delivery{{Text: "hello"}}, res.Deliveries)
}

func TestRun_MidScriptState(t *testing.T) {
	s, err := Parse([]byte(`
user: {id: a1, name: Paula}
until: 1s
steps:
  - {at: 0s, action: typing, user: {id: c1, name: Ana}}
  - {at: 0s, action: typing, user: {id: c2, name: Bruno}}
  - {at: 0s, action: notify, text: saved, kind: success}
  - {at: 100ms, action: dismiss, index: 0}
  - {at: 200ms, action: stop_typing, user: {id: c1}}
`))
	require.NoError(t, err)
	cfg := config.DefaultSessionConfig()
	cfg.TypingTimeout = 10 * time.Second
	res, err := NewRunner(s, WithSessionConfig(cfg)).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bruno is typing", res.Final.TypingText)
	require.Empty(t, res.Final.Notifications)
	require.Equal(t, "connecting", res.Final.Connection)
	require.Equal(t, 0, res.LeakedTimers)
}

func TestRun_RetriesFollowBackoff(t *testing.T) {
	s, err := Parse([]byte(`
user: {id: a1}
steps:
  - {at: 0s, action: connection, event: connected}
  - {at: 1s, action: connection, event: lost}
  - {at: 1s, action: connection, event: retry}
  - {at: 3s, action: connection, event: failed, error: refused}
  - {at: 3s, action: connection, event: retry}
  - {at: 3s, action: connection, event: retry}
  - {at: 7s, action: connection, event: connected}
  - {at: 8s, action: connection, event: lost}
  - {at: 8s, action: connection, event: retry}
`))
	require.NoError(t, err)
	res, err := NewRunner(s).Run(context.Background())
	require.NoError(t, err)

	// The repeated retry while already connecting changes nothing and is not counted.
	require.Equal(t, []Retry{
		{At: Duration(time.Second), Attempt: 1, Delay: Duration(2 * time.Second)},
		{At: Duration(3 * time.Second), Attempt: 2, Delay: Duration(4 * time.Second)},
		{At: Duration(8 * time.Second), Attempt: 1, Delay: Duration(2 * time.Second)},
	}, res.Retries)
	require.Equal(t, "connecting", res.Final.Connection)
}

func TestRun_RetriesBeyondBudget(t *testing.T) {
	s, err := Parse([]byte(`
user: {id: a1}
steps:
  - {at: 0s, action: connection, event: lost}
  - {at: 0s, action: connection, event: retry}
  - {at: 1s, action: connection, event: lost}
  - {at: 1s, action: connection, event: retry}
`))
	require.NoError(t, err)
	b := connection.Backoff{MaxRetries: 1, InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, BackoffFactor: 3}
	res, err := NewRunner(s, WithBackoff(b)).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Retries, 2)
	require.False(t, res.Retries[0].Exhausted)
	require.True(t, res.Retries[1].Exhausted)
	require.Equal(t, Duration(300*time.Millisecond), res.Retries[1].Delay)
}

func TestRun_Cancelled(t *testing.T) {
	s, err := Parse([]byte("user: {id: a1}\nsteps:\n  - {at: 0s, action: input, text: x}"))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewRunner(s).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunRealtime(t *testing.T) {
	testutil.SkipIfNoWallClock(t)
	s, err := Parse([]byte(`
user: {id: a1}
until: 60ms
steps:
  - {at: 0s, action: connection, event: connected}
  - {at: 10ms, action: input, text: hello}
  - {at: 20ms, action: send}
`))
	require.NoError(t, err)
	res, err := NewRunner(s).RunRealtime(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Delivery{{Text: "hello"}}, res.Deliveries)
	require.Equal(t, "", res.Final.Draft)
	require.Equal(t, 0, res.LeakedTimers)
}
