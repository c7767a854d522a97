package app

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Scheduler defers a callback. Implementations run every callback on a
// single goroutine, in due order.
type Scheduler interface {
	After(d time.Duration, fn func())
}

type task struct {
	due time.Time
	seq uint64
	fn  func()
}

// taskQueue orders tasks by due time, then by submission order.
type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }
func (q taskQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].seq < q[j].seq
	}
	return q[i].due.Before(q[j].due)
}
func (q taskQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *taskQueue) Push(x any)   { *q = append(*q, x.(*task)) }
func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return t
}

// EventLoop is the host loop: a single goroutine that runs timed callbacks.
// After and Post may be called from any goroutine.
type EventLoop struct {
	mu      sync.Mutex
	queue   taskQueue
	seq     uint64
	wake    chan struct{}
	stopped bool
}

// NewEventLoop creates an idle EventLoop. Call Run to start it.
func NewEventLoop() *EventLoop {
	return &EventLoop{
		wake: make(chan struct{}, 1),
	}
}

// After schedules fn to run d from now. Calls after Stop are dropped.
func (e *EventLoop) After(d time.Duration, fn func()) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.seq++
	heap.Push(&e.queue, &task{due: time.Now().Add(d), seq: e.seq, fn: fn})
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Post schedules fn to run as soon as possible.
func (e *EventLoop) Post(fn func()) {
	e.After(0, fn)
}

// Stop makes Run return after the current callback and drops pending ones.
func (e *EventLoop) Stop() {
	e.mu.Lock()
	e.stopped = true
	e.queue = nil
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Run executes callbacks until Stop is called or ctx is done.
func (e *EventLoop) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		e.mu.Lock()
		if e.stopped {
			e.mu.Unlock()
			return nil
		}

		var wait time.Duration = -1
		var next *task
		if len(e.queue) > 0 {
			if d := time.Until(e.queue[0].due); d <= 0 {
				next = heap.Pop(&e.queue).(*task)
			} else {
				wait = d
			}
		}
		e.mu.Unlock()

		if next != nil {
			next.fn()
			continue
		}

		var timeout <-chan time.Time
		if wait >= 0 {
			timer.Reset(wait)
			timeout = timer.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.wake:
		case <-timeout:
		}

		if timeout != nil && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}
}

// ManualScheduler is a Scheduler driven by Advance, for tests and
// step-by-step replays.
type ManualScheduler struct {
	now   time.Duration
	seq   uint64
	queue []*manualTask
}

type manualTask struct {
	due time.Duration
	seq uint64
	fn  func()
}

// NewManualScheduler creates a ManualScheduler at time zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// After queues fn at now+d.
func (m *ManualScheduler) After(d time.Duration, fn func()) {
	m.seq++
	m.queue = append(m.queue, &manualTask{due: m.now + d, seq: m.seq, fn: fn})
}

// Advance moves the clock forward by d, running every callback that falls
// due, including ones scheduled by callbacks during the advance.
func (m *ManualScheduler) Advance(d time.Duration) {
	end := m.now + d
	for {
		i := m.nextDue(end)
		if i < 0 {
			break
		}
		t := m.queue[i]
		m.queue = append(m.queue[:i], m.queue[i+1:]...)
		m.now = t.due
		t.fn()
	}
	m.now = end
}

func (m *ManualScheduler) nextDue(end time.Duration) int {
	best := -1
	for i, t := range m.queue {
		if t.due > end {
			continue
		}
		if best < 0 || t.due < m.queue[best].due ||
			(t.due == m.queue[best].due && t.seq < m.queue[best].seq) {
			best = i
		}
	}
	return best
}

// Pending returns the number of queued callbacks.
func (m *ManualScheduler) Pending() int {
	return len(m.queue)
}

// Now returns the elapsed virtual time.
func (m *ManualScheduler) Now() time.Duration {
	return m.now
}
