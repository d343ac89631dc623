package idle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adms/sessiond/pkg/sched"
	"github.com/adms/sessiond/pkg/sched/schedtest"
)

func newTestDetector(t *testing.T, clock *schedtest.Manual, cfg Config) (*Detector, *[]int, *int) {
	t.Helper()
	var ticks []int
	var timeouts int
	d := New(clock, cfg,
		func(remaining int) { ticks = append(ticks, remaining) },
		func() { timeouts++ },
		nil,
	)
	d.Start()
	return d, &ticks, &timeouts
}

func TestActivityKeepsDetectorActive(t *testing.T) {
	clock := schedtest.New()
	d, _, timeouts := newTestDetector(t, clock, Config{IdleTimeout: 2 * time.Minute, CountdownSeconds: 60})

	// events arriving more frequently than the idle timeout never start the countdown
	for i := 0; i < 10; i++ {
		clock.Advance(90 * time.Second)
		d.Activity()
	}

	state, _ := d.Snapshot()
	assert.Equal(t, Active, state)
	assert.Zero(t, *timeouts)
}

func TestSilenceStartsCountdownAtFullValue(t *testing.T) {
	clock := schedtest.New()
	d, ticks, timeouts := newTestDetector(t, clock, Config{IdleTimeout: 2 * time.Minute, CountdownSeconds: 60})

	clock.Advance(2 * time.Minute)

	state, remaining := d.Snapshot()
	assert.Equal(t, CountingDown, state)
	assert.Equal(t, 60, remaining)
	require.NotEmpty(t, *ticks)
	assert.Equal(t, 60, (*ticks)[0])
	assert.Zero(t, *timeouts)
}

func TestCountdownExpiryTerminatesExactlyOnce(t *testing.T) {
	clock := schedtest.New()
	d, ticks, timeouts := newTestDetector(t, clock, Config{IdleTimeout: 2 * time.Minute, CountdownSeconds: 60})

	clock.Advance(2 * time.Minute)
	clock.Advance(60 * time.Second)

	state, _ := d.Snapshot()
	assert.Equal(t, Terminated, state)
	assert.Equal(t, 1, *timeouts)
	assert.Equal(t, 0, (*ticks)[len(*ticks)-1])

	// nothing left armed, further time does nothing
	clock.Advance(time.Hour)
	assert.Equal(t, 1, *timeouts)
	assert.Zero(t, clock.Pending())
}

func TestActivityIgnoredWhileCountingDown(t *testing.T) {
	clock := schedtest.New()
	d, _, timeouts := newTestDetector(t, clock, Config{IdleTimeout: time.Minute, CountdownSeconds: 10})

	clock.Advance(time.Minute)
	state, _ := d.Snapshot()
	require.Equal(t, CountingDown, state)

	for i := 0; i < 5; i++ {
		d.Activity()
		clock.Advance(time.Second)
	}

	state, remaining := d.Snapshot()
	assert.Equal(t, CountingDown, state)
	assert.Equal(t, 5, remaining, "activity must not reset the countdown")

	clock.Advance(5 * time.Second)
	assert.Equal(t, 1, *timeouts)
}

func TestAffirmCancelsCountdownAndReturnsToActive(t *testing.T) {
	clock := schedtest.New()
	d, _, timeouts := newTestDetector(t, clock, Config{IdleTimeout: time.Minute, CountdownSeconds: 10})

	clock.Advance(time.Minute)
	clock.Advance(4 * time.Second)
	d.Affirm()

	state, _ := d.Snapshot()
	assert.Equal(t, Active, state)
	assert.Zero(t, *timeouts)

	// a full fresh silence interval applies again
	clock.Advance(59 * time.Second)
	state, _ = d.Snapshot()
	assert.Equal(t, Active, state)

	clock.Advance(time.Second)
	state, _ = d.Snapshot()
	assert.Equal(t, CountingDown, state)
}

func TestStopCancelsPendingTimers(t *testing.T) {
	clock := schedtest.New()
	d, _, timeouts := newTestDetector(t, clock, Config{IdleTimeout: time.Minute, CountdownSeconds: 10})

	d.Stop()
	d.Stop()

	clock.Advance(time.Hour)
	state, _ := d.Snapshot()
	assert.Equal(t, Stopped, state)
	assert.Zero(t, *timeouts)
}

// inflightScheduler models the worst case of time.Timer semantics: Stop()
// returns false because the callback already left the timer queue, yet the
// callback has not run. The test replays such a callback by hand.
type inflightScheduler struct {
	now time.Time
	fns []func()
}

type inflightHandle struct{}

func (inflightHandle) Stop() bool { return false }

func (s *inflightScheduler) AfterFunc(_ time.Duration, fn func()) sched.Handle {
	s.fns = append(s.fns, fn)
	return inflightHandle{}
}

func (s *inflightScheduler) Now() time.Time { return s.now }

func TestStaleSilenceCallbackIgnoredAfterActivity(t *testing.T) {
	clock := &inflightScheduler{now: time.Unix(1700000000, 0)}
	var timeouts int
	d := New(clock, Config{IdleTimeout: 2 * time.Minute, CountdownSeconds: 60},
		nil, func() { timeouts++ }, nil)
	d.Start()
	require.Len(t, clock.fns, 1)

	// activity re-arms while the first silence callback is in flight
	d.Activity()
	require.Len(t, clock.fns, 2)

	// the stale callback finally runs; activity just occurred, so the
	// countdown must not start
	clock.fns[0]()
	state, remaining := d.Snapshot()
	assert.Equal(t, Active, state)
	assert.Zero(t, remaining)
	assert.Len(t, clock.fns, 2, "no countdown ticker may be armed")

	// the fresh timer still works
	clock.fns[1]()
	state, remaining = d.Snapshot()
	assert.Equal(t, CountingDown, state)
	assert.Equal(t, 60, remaining)
	assert.Zero(t, timeouts)
}

func TestStaleCallbackIgnoredAfterAffirm(t *testing.T) {
	clock := &inflightScheduler{now: time.Unix(1700000000, 0)}
	d := New(clock, Config{IdleTimeout: time.Minute, CountdownSeconds: 10}, nil, func() {}, nil)
	d.Start()

	clock.fns[0]() // silence elapsed, countdown armed as fns[1]
	d.Affirm()     // countdown cancelled, silence re-armed as fns[2]
	require.Len(t, clock.fns, 3)

	// the cancelled countdown tick replays; it must not resume counting
	clock.fns[1]()
	state, _ := d.Snapshot()
	assert.Equal(t, Active, state)
}

func TestStopDuringCountdown(t *testing.T) {
	clock := schedtest.New()
	d, _, timeouts := newTestDetector(t, clock, Config{IdleTimeout: time.Minute, CountdownSeconds: 10})

	clock.Advance(time.Minute)
	d.Stop()

	clock.Advance(time.Hour)
	assert.Zero(t, *timeouts)
}
