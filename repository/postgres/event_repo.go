package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adms/sessiond/domain"
	"github.com/adms/sessiond/repository"
)

type eventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository instantiates a Postgres-backed session audit repository.
func NewEventRepository(pool *pgxpool.Pool) repository.EventRepository {
	return &eventRepository{pool: pool}
}

func (r *eventRepository) Record(ctx context.Context, event *domain.SessionEvent) error {
	if event == nil || event.Type == "" {
		return domain.ErrInvalidPayload
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var metadata []byte
	if len(event.Metadata) > 0 {
		payload, err := json.Marshal(event.Metadata)
		if err != nil {
			return err
		}
		metadata = payload
	}

	const query = `
		INSERT INTO session_events (id, user_id, event_type, reason, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		event.ID, event.UserID, string(event.Type), event.Reason, metadata, event.CreatedAt)
	return err
}

func (r *eventRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.SessionEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, user_id, event_type, reason, metadata, created_at
		FROM session_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.SessionEvent
	for rows.Next() {
		var event domain.SessionEvent
		var metadata []byte
		if err := rows.Scan(&event.ID, &event.UserID, &event.Type, &event.Reason, &metadata, &event.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &event.Metadata)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *eventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM session_events WHERE created_at < $1`
	tag, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
