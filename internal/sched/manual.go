package sched

import (
	"context"
	"sync"
	"time"
)

// Manual is a Scheduler whose clock only moves when Advance is called.
//
// Tasks fire synchronously inside Advance, in due order, on the caller's
// goroutine. Sleep returns immediately and only records the requested
// duration, so retry and pacing loops run at full speed in tests.
//
// Thread-safety: all methods are safe for concurrent use.
type Manual struct {
	mu    sync.Mutex
	now   time.Time
	tasks []*manualTask
	slept []time.Duration
	seq   int
}

var _ Scheduler = (*Manual)(nil)

type manualTask struct {
	m       *Manual
	due     time.Time
	f       func()
	done    bool
	ordinal int
}

// NewManual creates a Manual scheduler whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) AfterFunc(d time.Duration, f func()) Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTask{m: m, due: m.now.Add(d), f: f, ordinal: m.seq}
	m.tasks = append(m.tasks, t)
	return t
}

func (t *manualTask) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

func (m *Manual) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.slept = append(m.slept, d)
	m.mu.Unlock()
	return nil
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d, running every task that becomes due
// along the way. The clock steps to each task's due time before it runs, so a
// task scheduled by a running task fires in the same call if it falls inside
// the window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}
		t.f()
	}

	m.mu.Lock()
	if target.After(m.now) {
		m.now = target
	}
	m.mu.Unlock()
}

// nextDue claims the earliest live task due at or before target and moves the
// clock to its due time.
func (m *Manual) nextDue(target time.Time) *manualTask {
	m.mu.Lock()
	defer m.mu.Unlock()

	var next *manualTask
	live := m.tasks[:0]
	for _, t := range m.tasks {
		if t.done {
			continue
		}
		live = append(live, t)
		if t.due.After(target) {
			continue
		}
		if next == nil || t.due.Before(next.due) || (t.due.Equal(next.due) && t.ordinal < next.ordinal) {
			next = t
		}
	}
	m.tasks = live
	if next == nil {
		return nil
	}
	if next.due.After(m.now) {
		m.now = next.due
	}
	next.done = true
	return next
}

// Pending returns the number of tasks that have neither fired nor been stopped.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if !t.done {
			n++
		}
	}
	return n
}

// Slept returns every duration passed to Sleep, in call order.
func (m *Manual) Slept() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.slept...)
}
