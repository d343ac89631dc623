package repository

import (
	"context"
	"time"

	"github.com/adms/sessiond/domain"
)

// EventRepository persists the session lifecycle audit trail.
type EventRepository interface {
	Record(ctx context.Context, event *domain.SessionEvent) error
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.SessionEvent, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
