package idle

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/adms/sessiond/pkg/sched"
)

// State enumerates the detector's lifecycle.
type State int

const (
	// Active means the silence timer is armed and activity re-arms it.
	Active State = iota
	// CountingDown means the warning countdown is running and activity is
	// ignored until the user explicitly affirms.
	CountingDown
	// Terminated means the countdown reached zero and the termination
	// callback has fired. The detector does not self-reset.
	Terminated
	// Stopped means the detector was torn down before terminating.
	Stopped
)

// Config controls the silence interval and the countdown length.
type Config struct {
	IdleTimeout      time.Duration
	CountdownSeconds int
}

// Detector watches for prolonged user silence and runs a cancellable
// countdown before signaling termination. Exactly one of the silence timer
// and the countdown ticker is armed at any time, and teardown cancels
// whichever is live so no callback can fire against a destroyed session.
type Detector struct {
	sched       sched.Scheduler
	cfg         Config
	onCountdown func(remaining int)
	onTimeout   func()
	logger      *zap.Logger

	mu        sync.Mutex
	state     State
	timer     sched.Handle
	gen       uint64
	remaining int
}

// New builds a detector. onTimeout is required and fires exactly once, when
// the countdown reaches zero. onCountdown is optional and receives the
// remaining seconds on every transition, starting with the full value.
func New(scheduler sched.Scheduler, cfg Config, onCountdown func(int), onTimeout func(), logger *zap.Logger) *Detector {
	if scheduler == nil {
		scheduler = sched.Wall()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 2 * time.Minute
	}
	if cfg.CountdownSeconds <= 0 {
		cfg.CountdownSeconds = 60
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		sched:       scheduler,
		cfg:         cfg,
		onCountdown: onCountdown,
		onTimeout:   onTimeout,
		logger:      logger,
		state:       Active,
	}
}

// Start arms the silence timer. Calling it on a detector that already ran
// is a no-op; the owning controller creates a fresh detector per session.
func (d *Detector) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Active || d.timer != nil {
		return
	}
	d.armSilenceLocked()
}

// Activity resets the silence timer while Active. Once the countdown runs,
// activity is deliberately ignored: a logout warning the user has not
// acknowledged must not be dismissed by accidental mouse jitter.
func (d *Detector) Activity() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != Active {
		return
	}
	d.armSilenceLocked()
}

// Affirm is the explicit "stay logged in" action: it cancels the countdown
// and re-arms the full silence interval. No-op unless counting down.
func (d *Detector) Affirm() {
	d.mu.Lock()
	if d.state != CountingDown {
		d.mu.Unlock()
		return
	}
	d.state = Active
	d.remaining = 0
	d.armSilenceLocked()
	d.mu.Unlock()

	d.logger.Debug("idle countdown affirmed, silence timer re-armed")
}

// armSilenceLocked replaces whatever timer is armed with a fresh silence
// timer. Stop() on a timer whose callback is already in flight returns
// false and cannot prevent the call, so every armed timer is stamped with
// a generation; a callback carrying a stale generation is a no-op.
func (d *Detector) armSilenceLocked() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.sched.AfterFunc(d.cfg.IdleTimeout, func() { d.silenceElapsed(gen) })
}

// Stop tears the detector down, cancelling whichever timer is armed. After
// Stop returns no callback will fire. Safe to call repeatedly.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Terminated || d.state == Stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	d.state = Stopped
}

// Snapshot returns the current state and, while counting down, the
// remaining seconds.
func (d *Detector) Snapshot() (State, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state, d.remaining
}

func (d *Detector) silenceElapsed(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.state != Active {
		d.mu.Unlock()
		return
	}
	d.state = CountingDown
	d.remaining = d.cfg.CountdownSeconds
	d.gen++
	next := d.gen
	d.timer = d.sched.AfterFunc(time.Second, func() { d.tick(next) })
	remaining := d.remaining
	d.mu.Unlock()

	d.logger.Info("user idle, starting logout countdown", zap.Int("seconds", remaining))
	d.notifyCountdown(remaining)
}

func (d *Detector) tick(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.state != CountingDown {
		d.mu.Unlock()
		return
	}
	d.remaining--
	remaining := d.remaining
	if remaining <= 0 {
		d.state = Terminated
		d.timer = nil
		d.gen++
		d.mu.Unlock()

		d.notifyCountdown(0)
		d.logger.Info("idle countdown expired, terminating session")
		if d.onTimeout != nil {
			d.onTimeout()
		}
		return
	}
	d.gen++
	next := d.gen
	d.timer = d.sched.AfterFunc(time.Second, func() { d.tick(next) })
	d.mu.Unlock()

	d.notifyCountdown(remaining)
}

func (d *Detector) notifyCountdown(remaining int) {
	if d.onCountdown != nil {
		d.onCountdown(remaining)
	}
}
