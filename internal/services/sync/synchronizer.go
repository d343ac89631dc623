package sync

import (
	"go.uber.org/zap"

	"github.com/adms/sessiond/domain"
	"github.com/adms/sessiond/repository"
)

// SessionSink receives externally observed session state. Adoption is
// memory-only; the synchronizer never writes storage, so a notification
// can never echo back onto the wire.
type SessionSink interface {
	Apply(auth domain.StoredAuth)
}

// MaintenanceSink receives externally observed maintenance state.
type MaintenanceSink interface {
	Apply(state domain.MaintenanceState)
}

// Synchronizer propagates session and maintenance-mode changes written by
// other instances into this one. Payloads are parsed defensively: another
// writer or a stale schema version may have produced any shape, and a
// malformed payload degrades to the safe default rather than throwing.
type Synchronizer struct {
	kv          repository.KeyValueBroadcastStore
	sessions    SessionSink
	maintenance MaintenanceSink
	logger      *zap.Logger

	cancel func()
}

func New(kv repository.KeyValueBroadcastStore, sessions SessionSink, maintenance MaintenanceSink, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{
		kv:          kv,
		sessions:    sessions,
		maintenance: maintenance,
		logger:      logger,
	}
}

// Start subscribes to change notifications. Idempotent.
func (s *Synchronizer) Start() {
	if s.cancel != nil {
		return
	}
	s.cancel = s.kv.Subscribe(s.handle)
}

// Stop unsubscribes. Safe to call without Start.
func (s *Synchronizer) Stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Synchronizer) handle(change repository.Change) {
	switch change.Key {
	case domain.AuthDataKey:
		if s.sessions == nil {
			return
		}
		auth := domain.ParseStoredAuth(change.Value)
		if auth.Token == "" {
			s.logger.Info("remote logout observed, clearing local session")
		} else {
			s.logger.Info("remote session change observed", zap.String("user_id", auth.User.ID))
		}
		s.sessions.Apply(auth)

	case domain.MaintenanceKey:
		if s.maintenance == nil {
			return
		}
		state := domain.ParseMaintenanceState(change.Value)
		s.logger.Info("remote maintenance change observed", zap.Bool("active", state.Active))
		s.maintenance.Apply(state)
	}
}
