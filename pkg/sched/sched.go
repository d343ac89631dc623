package sched

import "time"

// Handle refers to a single armed one-shot timer.
type Handle interface {
	// Stop cancels the timer. It reports whether the cancellation happened
	// before the callback started running. Safe to call more than once.
	Stop() bool
}

// Scheduler arms and cancels one-shot delayed callbacks. It exists so the
// timer-driven components can run against simulated time in tests instead
// of real wall-clock timers.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Handle
	Now() time.Time
}

type wallScheduler struct{}

type wallHandle struct {
	t *time.Timer
}

func (h wallHandle) Stop() bool {
	return h.t.Stop()
}

func (wallScheduler) AfterFunc(d time.Duration, fn func()) Handle {
	return wallHandle{t: time.AfterFunc(d, fn)}
}

func (wallScheduler) Now() time.Time {
	return time.Now()
}

// Wall returns the wall-clock scheduler backed by time.AfterFunc.
func Wall() Scheduler {
	return wallScheduler{}
}
