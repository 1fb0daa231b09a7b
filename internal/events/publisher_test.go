package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/livedesk/internal/models"
)

func TestFilter_Matches(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		event  *models.Event
		want   bool
	}{
		{
			name:   "empty filter matches any event",
			filter: Filter{},
			event:  &models.Event{Type: models.EventTypeTypingChanged, SessionID: "s1"},
			want:   true,
		},
		{
			name:   "nil event returns false",
			filter: Filter{},
			event:  nil,
			want:   false,
		},
		{
			name:   "event type filter matches any listed",
			filter: Filter{EventTypes: []models.EventType{models.EventTypeMessageSent, models.EventTypeMessageFailed}},
			event:  &models.Event{Type: models.EventTypeMessageFailed},
			want:   true,
		},
		{
			name:   "event type filter rejects non-matching",
			filter: Filter{EventTypes: []models.EventType{models.EventTypeMessageSent}},
			event:  &models.Event{Type: models.EventTypeConnectionChanged},
			want:   false,
		},
		{
			name:   "session filter rejects other sessions",
			filter: Filter{SessionID: "s1"},
			event:  &models.Event{Type: models.EventTypeTypingChanged, SessionID: "s2"},
			want:   false,
		},
		{
			name:   "subject filter matches",
			filter: Filter{Subject: "n1"},
			event:  &models.Event{Type: models.EventTypeNotificationAdded, Subject: "n1"},
			want:   true,
		},
		{
			name: "combined filters - all must match",
			filter: Filter{
				EventTypes: []models.EventType{models.EventTypeNotificationRemoved},
				SessionID:  "s1",
				Subject:    "n1",
			},
			event: &models.Event{Type: models.EventTypeNotificationRemoved, SessionID: "s1", Subject: "n2"},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.filter.Matches(tt.event))
		})
	}
}

func TestInMemoryPublisher_Subscribe(t *testing.T) {
	pub := NewInMemoryPublisher()
	handler := func(*models.Event) {}

	require.NoError(t, pub.Subscribe("sub-1", Filter{}, handler))
	require.Equal(t, 1, pub.SubscriberCount())

	require.ErrorIs(t, pub.Subscribe("sub-1", Filter{}, handler), ErrSubscriptionExists)
	require.ErrorIs(t, pub.Subscribe("", Filter{}, handler), ErrInvalidSubscriptionID)
	require.ErrorIs(t, pub.Subscribe("sub-2", Filter{}, nil), ErrNilHandler)
}

func TestInMemoryPublisher_Unsubscribe(t *testing.T) {
	pub := NewInMemoryPublisher()
	_ = pub.Subscribe("sub-1", Filter{}, func(*models.Event) {})

	require.NoError(t, pub.Unsubscribe("sub-1"))
	require.Equal(t, 0, pub.SubscriberCount())
	require.ErrorIs(t, pub.Unsubscribe("sub-1"), ErrSubscriptionNotFound)
}

func TestInMemoryPublisher_PublishInSubscriptionOrder(t *testing.T) {
	pub := NewInMemoryPublisher()
	var order []string
	for _, id := range []string{"c", "a", "b"} {
		id := id
		require.NoError(t, pub.Subscribe(id, Filter{}, func(*models.Event) { order = append(order, id) }))
	}

	pub.Publish(context.Background(), &models.Event{Type: models.EventTypeReplyChanged})
	pub.Publish(context.Background(), nil)
	require.Equal(t, []string{"c", "a", "b"}, order)
}

func TestInMemoryPublisher_PublishWithFilter(t *testing.T) {
	pub := NewInMemoryPublisher()
	typing := &Recorder{}
	all := &Recorder{}
	require.NoError(t, pub.Subscribe("typing", Filter{EventTypes: []models.EventType{models.EventTypeTypingChanged}}, typing.Handle))
	require.NoError(t, pub.Subscribe("all", Filter{}, all.Handle))

	ctx := context.Background()
	pub.Publish(ctx, &models.Event{Type: models.EventTypeTypingChanged})
	pub.Publish(ctx, &models.Event{Type: models.EventTypeModeChanged})

	require.Equal(t, []models.EventType{models.EventTypeTypingChanged}, typing.Types())
	require.Equal(t, 2, len(all.Events()))
	require.Equal(t, 1, all.Count(models.EventTypeModeChanged))
}

func TestInMemoryPublisher_HandlerMayUnsubscribe(t *testing.T) {
	pub := NewInMemoryPublisher()
	calls := 0
	require.NoError(t, pub.Subscribe("once", Filter{}, func(*models.Event) {
		calls++
		_ = pub.Unsubscribe("once")
	}))

	pub.Publish(context.Background(), &models.Event{Type: models.EventTypeSearchChanged})
	pub.Publish(context.Background(), &models.Event{Type: models.EventTypeSearchChanged})
	require.Equal(t, 1, calls)
}

func TestInMemoryPublisher_Close(t *testing.T) {
	pub := NewInMemoryPublisher()
	_ = pub.Subscribe("a", Filter{}, func(*models.Event) {})
	pub.Close()
	require.Equal(t, 0, pub.SubscriberCount())
}

func TestRecorderReset(t *testing.T) {
	r := &Recorder{}
	r.Handle(&models.Event{Type: models.EventTypeMessageSent})
	r.Handle(nil)
	require.Len(t, r.Events(), 1)
	r.Reset()
	require.Empty(t, r.Events())
}
