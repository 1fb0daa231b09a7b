// Package scheduler provides a single-threaded timer queue driven by a virtual
// monotonic clock.
//
// The scheduler never reads wall time on its own. Callers move its clock with
// Advance or AdvanceTo, and every callback whose deadline has passed runs
// synchronously on the caller's goroutine. A session loop translates wall time
// into AdvanceTo calls; tests drive it directly.
package scheduler

import (
	"container/heap"
	"time"
)

// minInterval is the smallest period accepted by Every.
const minInterval = time.Millisecond

// Handle identifies a scheduled timer. The zero Handle is never issued.
type Handle uint64

// Scheduler is not safe for concurrent use. All calls must come from the
// goroutine that owns the session.
type Scheduler struct {
	now    time.Time
	seq    uint64
	nextID Handle
	queue  timerQueue
	live   map[Handle]*timer
	firing bool
}

type timer struct {
	id       Handle
	deadline time.Time
	seq      uint64
	interval time.Duration
	fn       func()
	index    int
}

// New creates a scheduler whose clock starts at start.
func New(start time.Time) *Scheduler {
	return &Scheduler{
		now:  start,
		live: make(map[Handle]*timer),
	}
}

// Now returns the scheduler's current clock value.
func (s *Scheduler) Now() time.Time {
	return s.now
}

// After schedules fn to run once, no earlier than delay from now.
func (s *Scheduler) After(delay time.Duration, fn func()) Handle {
	if delay < 0 {
		delay = 0
	}
	return s.add(delay, 0, fn)
}

// Every schedules fn to run repeatedly every interval until cancelled.
func (s *Scheduler) Every(interval time.Duration, fn func()) Handle {
	if interval < minInterval {
		interval = minInterval
	}
	return s.add(interval, interval, fn)
}

func (s *Scheduler) add(delay, interval time.Duration, fn func()) Handle {
	if fn == nil {
		return 0
	}
	s.nextID++
	s.seq++
	t := &timer{
		id:       s.nextID,
		deadline: s.now.Add(delay),
		seq:      s.seq,
		interval: interval,
		fn:       fn,
	}
	s.push(t)
	s.live[t.id] = t
	return t.id
}

// push keeps t.seq, so a re-armed periodic timer still wins same-deadline
// ties against timers registered after it.
func (s *Scheduler) push(t *timer) {
	heap.Push(&s.queue, t)
}

// Cancel stops a timer. Cancelling a fired, cancelled, or unknown handle is a no-op.
func (s *Scheduler) Cancel(h Handle) {
	t, ok := s.live[h]
	if !ok {
		return
	}
	delete(s.live, h)
	if t.index >= 0 {
		heap.Remove(&s.queue, t.index)
	}
}

// Active reports whether h is still scheduled.
func (s *Scheduler) Active(h Handle) bool {
	_, ok := s.live[h]
	return ok
}

// Pending returns the number of timers that have not fired or been cancelled.
func (s *Scheduler) Pending() int {
	return len(s.live)
}

// NextDeadline returns the earliest pending deadline.
func (s *Scheduler) NextDeadline() (time.Time, bool) {
	if len(s.queue) == 0 {
		return time.Time{}, false
	}
	return s.queue[0].deadline, true
}

// Advance moves the clock forward by d and runs every callback that becomes due.
// It returns the number of callbacks invoked.
func (s *Scheduler) Advance(d time.Duration) int {
	if d < 0 {
		d = 0
	}
	return s.AdvanceTo(s.now.Add(d))
}

// AdvanceTo moves the clock to target and runs due callbacks in deadline order.
// The clock never moves backwards. Callbacks observe Now() equal to their own
// deadline, and timers they register are eligible within the same advance.
// Re-entrant calls from inside a callback are ignored.
func (s *Scheduler) AdvanceTo(target time.Time) int {
	if s.firing {
		return 0
	}
	s.firing = true
	defer func() { s.firing = false }()

	fired := 0
	for len(s.queue) > 0 {
		next := s.queue[0]
		if next.deadline.After(target) {
			break
		}
		heap.Pop(&s.queue)
		if next.deadline.After(s.now) {
			s.now = next.deadline
		}

		if next.interval > 0 {
			next.deadline = next.deadline.Add(next.interval)
			s.push(next)
		} else {
			delete(s.live, next.id)
		}

		next.fn()
		fired++
	}
	if target.After(s.now) {
		s.now = target
	}
	return fired
}

// CancelAll drops every pending timer.
func (s *Scheduler) CancelAll() {
	s.queue = s.queue[:0]
	s.live = make(map[Handle]*timer)
}

type timerQueue []*timer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].deadline.Equal(q[j].deadline) {
		return q[i].seq < q[j].seq
	}
	return q[i].deadline.Before(q[j].deadline)
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	t := x.(*timer)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}
