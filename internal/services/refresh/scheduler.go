package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/adms/sessiond/domain"
	"github.com/adms/sessiond/pkg/sched"
	"github.com/adms/sessiond/usecase"
)

// Config controls how far before token expiry the refresh fires and how
// long the refresh call itself may take.
type Config struct {
	LeadTime    time.Duration
	CallTimeout time.Duration
}

// Scheduler keeps the access token fresh: it decodes the expiry claim,
// arms a single one-shot timer for expiry minus lead time, and re-arms
// itself against each refreshed token. A refresh failure is terminal; a
// stale refresh token cannot self-heal by retrying.
type Scheduler struct {
	sched     sched.Scheduler
	cfg       Config
	token     func() string
	refresher usecase.TokenRefresher
	onToken   func(ctx context.Context, token string) error
	onFailure func(err error)
	logger    *zap.Logger

	mu      sync.Mutex
	handle  sched.Handle
	stopped bool
}

// New builds a scheduler. token is an accessor, not a snapshot: it is read
// again at fire time so the call always carries the live token. onToken
// hands the refreshed token to the session store; onFailure begins
// termination and must not block.
func New(
	scheduler sched.Scheduler,
	cfg Config,
	token func() string,
	refresher usecase.TokenRefresher,
	onToken func(ctx context.Context, token string) error,
	onFailure func(err error),
	logger *zap.Logger,
) *Scheduler {
	if scheduler == nil {
		scheduler = sched.Wall()
	}
	if cfg.LeadTime <= 0 {
		cfg.LeadTime = 30 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		sched:     scheduler,
		cfg:       cfg,
		token:     token,
		refresher: refresher,
		onToken:   onToken,
		onFailure: onFailure,
		logger:    logger,
	}
}

// Arm schedules the next refresh against the current token's expiry. Any
// pending timer is cancelled first, so at most one timer is ever armed. An
// already expired token (or a lead time exceeding the remaining lifetime)
// fires the refresh attempt immediately rather than skipping it.
func (s *Scheduler) Arm() error {
	current := s.token()
	if current == "" {
		return domain.ErrNoSession
	}
	expiry, err := tokenExpiry(current)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "decode token expiry", err)
	}
	s.armAt(expiry)
	return nil
}

// Stop cancels the pending timer. Safe to call repeatedly; after Stop the
// scheduler stays inert until the controller builds a new one.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.handle != nil {
		s.handle.Stop()
		s.handle = nil
	}
}

func (s *Scheduler) armAt(expiry time.Time) {
	delay := expiry.Sub(s.sched.Now()) - s.cfg.LeadTime
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.handle != nil {
		s.handle.Stop()
		s.handle = nil
	}
	s.handle = s.sched.AfterFunc(delay, s.fire)
	s.logger.Debug("token refresh armed", zap.Duration("delay", delay))
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.handle = nil
	s.mu.Unlock()

	current := s.token()
	if current == "" {
		// session ended between arming and firing
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CallTimeout)
	defer cancel()

	next, err := s.refresher.RefreshToken(ctx, current)
	if err != nil {
		s.logger.Warn("token refresh failed, terminating session", zap.Error(err))
		s.fail(err)
		return
	}

	if err := s.onToken(ctx, next); err != nil {
		s.logger.Error("failed to store refreshed token", zap.Error(err))
		s.fail(err)
		return
	}

	expiry, err := tokenExpiry(next)
	if err != nil {
		s.logger.Warn("refreshed token has unreadable expiry", zap.Error(err))
		s.fail(err)
		return
	}
	s.armAt(expiry)
}

func (s *Scheduler) fail(err error) {
	if s.onFailure != nil {
		s.onFailure(err)
	}
}

// tokenExpiry reads the exp claim without verifying the signature; the
// backend verified the token when it issued it, this side only needs the
// timestamp.
func tokenExpiry(token string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, domain.NewError(domain.ErrCodeInvalid, "token carries no expiry claim")
	}
	return claims.ExpiresAt.Time, nil
}
