package repository

import "context"

// Change describes a mutation of a well-known key observed on the broadcast
// store. Value is nil when the key was deleted.
type Change struct {
	Key   string
	Value []byte
}

// ChangeHandler receives change notifications. Handlers must tolerate any
// payload shape; another writer or an older schema version may have
// produced it.
type ChangeHandler func(change Change)

// KeyValueBroadcastStore is the durable storage capability of the session
// subsystem: a synchronous key-value store whose writes are broadcast to
// every subscriber, including subscribers in other instances when the
// implementation spans processes. Write-write races resolve last-write-wins.
type KeyValueBroadcastStore interface {
	// Get returns the stored value or domain.ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// Subscribe registers a change handler and returns its cancel func.
	// Delivery is FIFO per subscriber relative to each writer's own writes.
	Subscribe(handler ChangeHandler) (cancel func())

	Close() error
}
