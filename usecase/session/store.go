package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/adms/sessiond/domain"
	"github.com/adms/sessiond/repository"
	"github.com/adms/sessiond/usecase"
)

// Store is the single source of truth for the authenticated session. All
// mutation funnels through Set; nothing else writes the authData key. The
// navigation tree lives in memory only.
type Store struct {
	kv     repository.KeyValueBroadcastStore
	navs   usecase.NavTreeFetcher
	logger *zap.Logger

	// writeMu serializes Set callers; mu guards the state itself. They are
	// separate so a broadcast-store notification arriving during a write
	// (the stores dispatch synchronously) can still adopt state via Apply.
	writeMu sync.Mutex
	mu      sync.RWMutex
	current *domain.Session

	subMu  sync.Mutex
	subs   map[int]func(*domain.Session)
	nextID int
}

// NewStore builds the store and hydrates it from durable storage. A stored
// session seeds memory immediately, so the app renders as logged in without
// a network round trip; the navigation tree is then refreshed in the
// background.
func NewStore(ctx context.Context, kv repository.KeyValueBroadcastStore, navs usecase.NavTreeFetcher, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		kv:     kv,
		navs:   navs,
		logger: logger,
		subs:   make(map[int]func(*domain.Session)),
	}
	s.hydrate(ctx)
	return s
}

// Set replaces the session. A nil argument is the sole logout entry point:
// it clears durable storage and memory. A non-nil argument normalizes the
// user record, persists the durable subset and publishes the new state.
//
// The user's intent to leave always succeeds locally: memory is cleared and
// observers notified even when the storage delete fails, and the error is
// returned as advisory only.
func (s *Store) Set(ctx context.Context, session *domain.Session) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if session == nil {
		err := s.kv.Delete(ctx, domain.AuthDataKey)
		if err != nil {
			s.logger.Warn("failed to clear stored session, clearing memory anyway", zap.Error(err))
		}
		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()
		s.notify(nil)
		return err
	}

	next := *session
	next.User.Normalize()

	payload, err := json.Marshal(next.Stored())
	if err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "encode session", err)
	}
	if err := s.kv.Set(ctx, domain.AuthDataKey, payload); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = &next
	s.mu.Unlock()
	s.notify(&next)
	return nil
}

// Current returns a shallow copy of the session, or nil when logged out.
func (s *Store) Current() *domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	current := *s.current
	return &current
}

// Token returns the current access token, empty when logged out. The
// refresh scheduler uses this accessor so it always sees the live token,
// never a snapshot.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.Token
}

// UpdateNavTree replaces the in-memory tree. Never persisted.
func (s *Store) UpdateNavTree(tree []domain.NavNode) {
	s.mu.Lock()
	if s.current != nil {
		s.current.NavTree = tree
	}
	s.mu.Unlock()
}

// RefreshNavTree fetches the tree for the current user. A fetch failure is
// tolerated: the stale tree stays in place and only a warning is logged,
// since stale authorization data beats none at all.
func (s *Store) RefreshNavTree(ctx context.Context) {
	s.mu.RLock()
	var userID string
	if s.current != nil {
		userID = s.current.User.ID
	}
	s.mu.RUnlock()

	if userID == "" || s.navs == nil {
		return
	}

	tree, err := s.navs.FetchNavTree(ctx, userID)
	if err != nil {
		s.logger.Warn("navigation tree refresh failed, keeping previous tree",
			zap.String("user_id", userID), zap.Error(err))
		return
	}
	s.UpdateNavTree(tree)
}

// Apply adopts externally observed state (another instance's write) into
// memory without touching durable storage, so adoption can never echo back
// onto the wire. The nav tree survives when the token is unchanged.
func (s *Store) Apply(auth domain.StoredAuth) {
	s.mu.Lock()
	next := auth.Session()
	if next != nil {
		next.User.Normalize()
		if s.current != nil && s.current.Token == next.Token {
			next.NavTree = s.current.NavTree
		}
	}
	s.current = next
	s.mu.Unlock()
	s.notify(next)
}

// OnChange registers an observer of session transitions and returns its
// cancel func. Observers run synchronously after each mutation.
func (s *Store) OnChange(fn func(*domain.Session)) func() {
	if fn == nil {
		return func() {}
	}
	s.subMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) hydrate(ctx context.Context) {
	payload, err := s.kv.Get(ctx, domain.AuthDataKey)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			s.logger.Warn("session hydration failed", zap.Error(err))
		}
		return
	}

	session := domain.ParseStoredAuth(payload).Session()
	if session == nil {
		return
	}
	session.User.Normalize()

	s.mu.Lock()
	s.current = session
	s.mu.Unlock()

	s.logger.Info("session hydrated from durable storage",
		zap.String("user_id", session.User.ID))

	go s.RefreshNavTree(context.WithoutCancel(ctx))
}

func (s *Store) notify(session *domain.Session) {
	s.subMu.Lock()
	observers := make([]func(*domain.Session), 0, len(s.subs))
	for _, fn := range s.subs {
		observers = append(observers, fn)
	}
	s.subMu.Unlock()

	for _, fn := range observers {
		fn(session)
	}
}
