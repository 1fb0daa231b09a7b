package events

import (
	"sync"

	"github.com/tOgg1/livedesk/internal/models"
)

// Recorder collects every event it is handed. Its Handle method is an EventHandler.
type Recorder struct {
	mu     sync.Mutex
	events []models.Event
}

// Handle records a copy of event.
func (r *Recorder) Handle(event *models.Event) {
	if event == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
}

// Events returns the recorded events in arrival order.
func (r *Recorder) Events() []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Event(nil), r.events...)
}

// Types returns the recorded event types in arrival order.
func (r *Recorder) Types() []models.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// Count returns how many events of type t were recorded.
func (r *Recorder) Count(t models.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// Reset drops every recorded event.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
