// Package schedtest provides a manually driven sched.Scheduler for tests.
package schedtest

import (
	"sort"
	"sync"
	"time"

	"github.com/adms/sessiond/pkg/sched"
)

// Manual is a deterministic scheduler. Timers only fire when the test
// advances the clock; callbacks run synchronously on the advancing
// goroutine, in due-time order.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*timer
}

type timer struct {
	owner   *Manual
	due     time.Time
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

func (t *timer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// New creates a manual scheduler starting at an arbitrary fixed instant.
func New() *Manual {
	return &Manual{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) sched.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &timer{owner: m, due: m.now.Add(d), seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward, firing every due timer in order.
// Callbacks may arm new timers; those fire too if they fall within the
// advanced window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		t := m.popDue(target)
		if t == nil {
			break
		}
		t.fn()
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
}

// Pending returns the number of armed, unfired timers.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

func (m *Manual) popDue(target time.Time) *timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []*timer
	for _, t := range m.timers {
		if !t.fired && !t.stopped && !t.due.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].due.Equal(due[j].due) {
			return due[i].seq < due[j].seq
		}
		return due[i].due.Before(due[j].due)
	})

	next := due[0]
	next.fired = true
	if next.due.After(m.now) {
		m.now = next.due
	}
	return next
}
