package maintenance

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/adms/sessiond/domain"
	"github.com/adms/sessiond/repository"
)

// Config controls the sweeper cadence and the audit retention window.
type Config struct {
	SweepInterval  time.Duration
	AuditRetention time.Duration
}

// Manager owns the maintenance-mode state: it persists toggles under the
// well-known key so every instance observes them, and runs a cron sweeper
// that deactivates an expired window and prunes old audit rows.
type Manager struct {
	kv     repository.KeyValueBroadcastStore
	events repository.EventRepository
	logger *zap.Logger
	cron   *cron.Cron
	cfg    Config

	mu    sync.RWMutex
	state domain.MaintenanceState
}

func New(kv repository.KeyValueBroadcastStore, events repository.EventRepository, cfg Config, logger *zap.Logger) *Manager {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.AuditRetention <= 0 {
		cfg.AuditRetention = 90 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		kv:     kv,
		events: events,
		logger: logger,
		cfg:    cfg,
		cron:   cron.New(),
	}
	m.hydrate()

	schedule := "@every " + cfg.SweepInterval.String()
	_, _ = m.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.SweepInterval)
		defer cancel()
		m.Sweep(ctx)
	})

	return m
}

// Start launches the sweeper.
func (m *Manager) Start() {
	m.cron.Start()
}

// Stop halts the sweeper, waiting for a running sweep to finish.
func (m *Manager) Stop(ctx context.Context) {
	stopCtx := m.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
}

// State returns the current maintenance state.
func (m *Manager) State() domain.MaintenanceState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Active reports whether navigation should currently be gated.
func (m *Manager) Active() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Active && !m.state.Expired(time.Now())
}

// Set persists and broadcasts a new maintenance state, stamping UpdatedAt,
// and records the toggle on the audit trail best-effort.
func (m *Manager) Set(ctx context.Context, state domain.MaintenanceState) error {
	state.UpdatedAt = time.Now()

	payload, err := json.Marshal(state)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "encode maintenance state", err)
	}
	if err := m.kv.Set(ctx, domain.MaintenanceKey, payload); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = state
	m.mu.Unlock()

	m.audit(ctx, state)
	m.logger.Info("maintenance mode updated",
		zap.Bool("active", state.Active), zap.String("updated_by", state.UpdatedBy))
	return nil
}

// Apply adopts an externally observed state without re-persisting it.
func (m *Manager) Apply(state domain.MaintenanceState) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

// Sweep deactivates a maintenance window whose deadline passed and prunes
// audit rows beyond the retention window.
func (m *Manager) Sweep(ctx context.Context) {
	if current := m.State(); current.Expired(time.Now()) {
		cleared := domain.MaintenanceState{UpdatedBy: "sweeper"}
		if err := m.Set(ctx, cleared); err != nil {
			m.logger.Warn("failed to clear expired maintenance window", zap.Error(err))
		}
	}

	if m.events != nil {
		cutoff := time.Now().Add(-m.cfg.AuditRetention)
		if n, err := m.events.DeleteOlderThan(ctx, cutoff); err != nil {
			m.logger.Warn("audit prune failed", zap.Error(err))
		} else if n > 0 {
			m.logger.Info("pruned audit events", zap.Int64("count", n))
		}
	}
}

func (m *Manager) hydrate() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload, err := m.kv.Get(ctx, domain.MaintenanceKey)
	if err != nil {
		return
	}
	m.mu.Lock()
	m.state = domain.ParseMaintenanceState(payload)
	m.mu.Unlock()
}

func (m *Manager) audit(ctx context.Context, state domain.MaintenanceState) {
	if m.events == nil {
		return
	}
	event := &domain.SessionEvent{
		Type:   domain.EventMaintenanceToggle,
		Reason: state.Message,
		Metadata: map[string]string{
			"active":     boolString(state.Active),
			"updated_by": state.UpdatedBy,
		},
	}
	if err := m.events.Record(ctx, event); err != nil {
		m.logger.Warn("failed to audit maintenance toggle", zap.Error(err))
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
