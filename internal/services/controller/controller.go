package controller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/adms/sessiond/domain"
	"github.com/adms/sessiond/internal/services/idle"
	"github.com/adms/sessiond/internal/services/refresh"
	"github.com/adms/sessiond/pkg/sched"
	"github.com/adms/sessiond/repository"
	"github.com/adms/sessiond/usecase"
	sessionstore "github.com/adms/sessiond/usecase/session"
)

// Config carries the lifecycle timings and the navigation anchors.
type Config struct {
	IdleTimeout        time.Duration
	CountdownSeconds   int
	RefreshLeadTime    time.Duration
	LoginPath          string
	DefaultLandingPath string
}

// Controller wires the session store, idle detector and refresh scheduler
// together and owns the one authoritative termination path. Idle timeout,
// refresh failure, remote logout and explicit logout all converge here.
type Controller struct {
	store       *sessionstore.Store
	backend     usecase.Backend
	nav         usecase.Navigator
	events      repository.EventRepository
	sched       sched.Scheduler
	cfg         Config
	onCountdown func(remaining int)
	logger      *zap.Logger

	mu         sync.Mutex
	idle       *idle.Detector
	refresh    *refresh.Scheduler
	terminated bool
	intended   string

	unsubscribe func()
}

func New(
	store *sessionstore.Store,
	backend usecase.Backend,
	nav usecase.Navigator,
	events repository.EventRepository,
	scheduler sched.Scheduler,
	cfg Config,
	onCountdown func(int),
	logger *zap.Logger,
) *Controller {
	if scheduler == nil {
		scheduler = sched.Wall()
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.DefaultLandingPath == "" {
		cfg.DefaultLandingPath = "/dashboard"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Controller{
		store:       store,
		backend:     backend,
		nav:         nav,
		events:      events,
		sched:       scheduler,
		cfg:         cfg,
		onCountdown: onCountdown,
		logger:      logger,
		terminated:  true, // no session yet; Establish/Resume flips it
	}

	// a logout observed from another instance must finish locally too:
	// a stale refresh timer must not fire into nothing, and the user
	// should land on the login page here as well
	c.unsubscribe = store.OnChange(func(session *domain.Session) {
		if session == nil {
			c.observeRemoteClear()
		}
	})

	return c
}

// observeRemoteClear handles a session cleared by another instance. The
// local Terminate path sets the terminated flag before it writes storage,
// so its own notification is a no-op here.
func (c *Controller) observeRemoteClear() {
	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return
	}
	c.terminated = true
	c.mu.Unlock()

	c.stopTimers()
	c.audit(context.Background(), domain.EventRemoteLogout, "", "logout observed from another instance")
	c.logger.Info("remote logout observed, session ended locally")
	c.navigate(c.cfg.LoginPath)
}

// Resume starts the timers for a session the store hydrated from durable
// storage at boot. No-op when there is none.
func (c *Controller) Resume(ctx context.Context) {
	if c.store.Current() == nil {
		return
	}
	c.mu.Lock()
	c.terminated = false
	c.mu.Unlock()
	if err := c.startTimers(); err != nil {
		c.logger.Warn("resumed session has unusable token, terminating", zap.Error(err))
		c.Terminate(ctx, domain.EventRefreshFailure, "unusable token on resume")
	}
}

// EstablishSession stores a freshly authenticated session, starts a new
// idle detector and refresh scheduler, audits the login and navigates to
// the recorded intended destination (or the default landing page).
func (c *Controller) EstablishSession(ctx context.Context, session *domain.Session) error {
	if session == nil || session.Token == "" {
		return domain.ErrInvalidPayload
	}

	c.stopTimers()
	if err := c.store.Set(ctx, session); err != nil {
		return err
	}

	c.mu.Lock()
	c.terminated = false
	c.mu.Unlock()

	if err := c.startTimers(); err != nil {
		// the session was already persisted; leaving it would mean a live
		// session with no refresh timer, and other instances would adopt
		// it from the broadcast store. Roll it back.
		c.mu.Lock()
		c.terminated = true
		c.mu.Unlock()
		if clearErr := c.store.Set(ctx, nil); clearErr != nil {
			c.logger.Error("failed to roll back session after timer start failure", zap.Error(clearErr))
		}
		return err
	}

	c.audit(ctx, domain.EventLogin, session.User.ID, "")
	c.navigate(c.consumeIntended())
	go c.store.RefreshNavTree(context.WithoutCancel(ctx))
	return nil
}

// Terminate ends the session. It is idempotent: concurrent triggers (idle
// timeout racing a refresh failure, a double logout click) produce exactly
// one cleared session and one navigation to login.
//
// Order matters: timers are cancelled before the session is cleared so no
// stale timer can fire against destroyed state, and the backend is
// notified while the token still exists. The notification is best-effort;
// the user's intent to leave always succeeds locally.
func (c *Controller) Terminate(ctx context.Context, cause domain.SessionEventType, reason string) {
	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return
	}
	c.terminated = true
	c.mu.Unlock()

	current := c.store.Current()
	var token, userID string
	if current != nil {
		token = current.Token
		userID = current.User.ID
	}

	c.stopTimers()

	if token != "" && c.backend != nil {
		if err := c.backend.NotifyLogout(ctx, token); err != nil {
			c.logger.Warn("logout notification failed, clearing session anyway", zap.Error(err))
		}
	}

	if err := c.store.Set(ctx, nil); err != nil {
		c.logger.Error("failed to clear session", zap.Error(err))
	}

	c.audit(ctx, cause, userID, reason)
	c.logger.Info("session terminated",
		zap.String("cause", string(cause)), zap.String("user_id", userID))
	c.navigate(c.cfg.LoginPath)
}

// Activity forwards a user-activity signal to the idle detector.
func (c *Controller) Activity() {
	c.mu.Lock()
	detector := c.idle
	c.mu.Unlock()
	if detector != nil {
		detector.Activity()
	}
}

// Affirm is the explicit "stay logged in" action during the countdown.
func (c *Controller) Affirm() {
	c.mu.Lock()
	detector := c.idle
	c.mu.Unlock()
	if detector != nil {
		detector.Affirm()
	}
}

// IdleSnapshot exposes the countdown state for the UI.
func (c *Controller) IdleSnapshot() (counting bool, remaining int) {
	c.mu.Lock()
	detector := c.idle
	c.mu.Unlock()
	if detector == nil {
		return false, 0
	}
	state, left := detector.Snapshot()
	return state == idle.CountingDown, left
}

// RecordIntendedPath remembers where an unauthenticated request wanted to
// go, so the next successful login can land there.
func (c *Controller) RecordIntendedPath(path string) {
	if path == "" {
		return
	}
	c.mu.Lock()
	c.intended = path
	c.mu.Unlock()
}

// Close tears the controller down without logging out, for daemon
// shutdown: timers are cancelled, the persisted session stays put.
func (c *Controller) Close() {
	c.stopTimers()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

func (c *Controller) startTimers() error {
	scheduler := refresh.New(
		c.sched,
		refresh.Config{LeadTime: c.cfg.RefreshLeadTime},
		c.store.Token,
		c.backend,
		c.adoptToken,
		func(err error) {
			c.Terminate(context.Background(), domain.EventRefreshFailure, err.Error())
		},
		c.logger,
	)
	if err := scheduler.Arm(); err != nil {
		scheduler.Stop()
		return err
	}

	detector := idle.New(
		c.sched,
		idle.Config{IdleTimeout: c.cfg.IdleTimeout, CountdownSeconds: c.cfg.CountdownSeconds},
		c.onCountdown,
		func() {
			c.Terminate(context.Background(), domain.EventIdleTimeout, "idle countdown expired")
		},
		c.logger,
	)
	detector.Start()

	c.mu.Lock()
	c.refresh = scheduler
	c.idle = detector
	c.mu.Unlock()
	return nil
}

func (c *Controller) stopTimers() {
	c.mu.Lock()
	detector, scheduler := c.idle, c.refresh
	c.idle, c.refresh = nil, nil
	c.mu.Unlock()

	if detector != nil {
		detector.Stop()
	}
	if scheduler != nil {
		scheduler.Stop()
	}
}

// adoptToken stores a refreshed token, keeping the rest of the session.
func (c *Controller) adoptToken(ctx context.Context, token string) error {
	current := c.store.Current()
	if current == nil {
		return domain.ErrNoSession
	}
	current.Token = token
	return c.store.Set(ctx, current)
}

func (c *Controller) consumeIntended() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.intended == "" {
		return c.cfg.DefaultLandingPath
	}
	path := c.intended
	c.intended = ""
	return path
}

func (c *Controller) navigate(path string) {
	if c.nav != nil && path != "" {
		c.nav.Navigate(path)
	}
}

func (c *Controller) audit(ctx context.Context, eventType domain.SessionEventType, userID, reason string) {
	if c.events == nil {
		return
	}
	event := &domain.SessionEvent{Type: eventType, UserID: userID, Reason: reason}
	if err := c.events.Record(ctx, event); err != nil {
		c.logger.Warn("failed to record session event",
			zap.String("type", string(eventType)), zap.Error(err))
	}
}
