package notify

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/livedesk/internal/scheduler"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestQueue(opts ...Option) (*Queue, *scheduler.Scheduler) {
	s := scheduler.New(epoch)
	n := 0
	opts = append([]Option{WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("n%d", n)
	})}, opts...)
	return NewQueue(s, opts...), s
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		raw  string
		want Kind
		ok   bool
	}{
		{"success", KindSuccess, true},
		{"ERROR", KindError, true},
		{"warn", KindWarning, true},
		{"", KindInfo, true},
		{"panic", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseKind(tt.raw)
		require.Equal(t, tt.ok, ok, tt.raw)
		require.Equal(t, tt.want, got, tt.raw)
	}
}

func TestEnqueue_FIFO(t *testing.T) {
	q, s := newTestQueue()
	q.Enqueue("first", KindInfo)
	s.Advance(10 * time.Millisecond)
	q.Enqueue("second", KindSuccess)
	q.Enqueue("third", KindError)

	items := q.Items()
	require.Len(t, items, 3)
	require.Equal(t, []string{"first", "second", "third"}, []string{items[0].Message, items[1].Message, items[2].Message})
	for i := 1; i < len(items); i++ {
		require.False(t, items[i].CreatedAt.Before(items[i-1].CreatedAt))
	}
}

func TestProgressMonotonicAndReachesZero(t *testing.T) {
	q, s := newTestQueue()
	id := q.Enqueue("saved", KindSuccess)

	last := 1.0
	var zeroAt time.Duration
	for step := 0; step < 80; step++ {
		s.Advance(50 * time.Millisecond)
		n, ok := q.Get(id)
		require.True(t, ok)
		require.LessOrEqual(t, n.Progress, last)
		require.GreaterOrEqual(t, n.Progress, 0.0)
		last = n.Progress
		if n.Progress == 0 && zeroAt == 0 {
			zeroAt = s.Now().Sub(epoch)
			require.True(t, n.Closing)
		}
		if zeroAt != 0 {
			break
		}
	}
	require.Equal(t, DefaultDuration, zeroAt)

	s.Advance(DefaultCloseGrace - time.Millisecond)
	require.Equal(t, 1, q.Len())
	s.Advance(time.Millisecond)
	require.Equal(t, 0, q.Len())
	require.Equal(t, 0, s.Pending())
}

func TestProgressReachesZeroAfterUnalignedDuration(t *testing.T) {
	q, s := newTestQueue()
	id := q.EnqueueFor("soon", KindInfo, 70*time.Millisecond)

	s.Advance(50 * time.Millisecond)
	n, _ := q.Get(id)
	require.InDelta(t, 1-50.0/70.0, n.Progress, 1e-9)
	require.False(t, n.Closing)

	s.Advance(50 * time.Millisecond)
	n, _ = q.Get(id)
	require.Equal(t, 0.0, n.Progress)
	require.True(t, n.Closing)
}

func TestZeroDurationNeverAutoDismisses(t *testing.T) {
	q, s := newTestQueue()
	id := q.EnqueueFor("sticky", KindWarning, 0)
	require.Equal(t, 0, s.Pending())

	s.Advance(time.Hour)
	n, ok := q.Get(id)
	require.True(t, ok)
	require.Equal(t, 1.0, n.Progress)
	require.False(t, n.Closing)
}

func TestDismissTwiceMatchesOnce(t *testing.T) {
	once, s1 := newTestQueue()
	twice, s2 := newTestQueue()
	id1 := once.Enqueue("x", KindInfo)
	id2 := twice.Enqueue("x", KindInfo)

	require.True(t, once.Dismiss(id1))
	require.True(t, twice.Dismiss(id2))
	require.False(t, twice.Dismiss(id2))

	s1.Advance(DefaultCloseGrace)
	s2.Advance(DefaultCloseGrace)
	require.False(t, twice.Dismiss(id2))

	require.Equal(t, once.Items(), twice.Items())
	require.Equal(t, s1.Pending(), s2.Pending())
	require.Equal(t, 0, twice.Len())
}

func TestManualDismissThenTimeoutIsNoop(t *testing.T) {
	events := []string{}
	q, s := newTestQueue(WithListener(func(event string, n Notification) {
		events = append(events, event+":"+n.ID)
	}))
	id := q.Enqueue("x", KindInfo)
	s.Advance(time.Second)
	require.True(t, q.Dismiss(id))

	s.Advance(10 * time.Second)
	require.Equal(t, []string{"added:n1", "closing:n1", "removed:n1"}, events)
}

func TestDisposeMidTransition(t *testing.T) {
	q, s := newTestQueue()
	a := q.Enqueue("a", KindInfo)
	q.Enqueue("b", KindInfo)
	q.EnqueueFor("c", KindInfo, 0)
	require.True(t, q.Dismiss(a))
	require.Equal(t, 2, s.Pending())

	require.NotPanics(t, q.Dispose)
	require.Equal(t, 0, q.Len())
	require.Equal(t, 0, s.Pending())
	require.False(t, q.Dismiss(a))

	s.Advance(time.Minute)
	require.Equal(t, 0, q.Len())
}

func TestUnknownDismiss(t *testing.T) {
	q, _ := newTestQueue()
	require.False(t, q.Dismiss("missing"))
}

func TestDefaultIDsAreUnique(t *testing.T) {
	q := NewQueue(scheduler.New(epoch))
	a := q.Enqueue("a", KindInfo)
	b := q.Enqueue("b", KindInfo)
	require.NotEmpty(t, a)
	require.NotEqual(t, a, b)
}

func TestNotifyUsesGivenDuration(t *testing.T) {
	q, s := newTestQueue()
	q.Notify("boom", KindError, 100*time.Millisecond)
	s.Advance(100 * time.Millisecond)
	items := q.Items()
	require.Len(t, items, 1)
	require.Equal(t, KindError, items[0].Kind)
	require.True(t, items[0].Closing)
}
