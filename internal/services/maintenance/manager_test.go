package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adms/sessiond/domain"
	"github.com/adms/sessiond/repository/memory"
)

func TestSetPersistsAndBroadcasts(t *testing.T) {
	kv := memory.New()
	m := New(kv, nil, Config{}, nil)

	require.NoError(t, m.Set(context.Background(), domain.MaintenanceState{
		Active:    true,
		Message:   "quarterly upgrade",
		UpdatedBy: "ops",
	}))

	assert.True(t, m.Active())

	payload, err := kv.Get(context.Background(), domain.MaintenanceKey)
	require.NoError(t, err)
	state := domain.ParseMaintenanceState(payload)
	assert.True(t, state.Active)
	assert.Equal(t, "ops", state.UpdatedBy)
	assert.False(t, state.UpdatedAt.IsZero())
}

func TestHydrateFromStorage(t *testing.T) {
	kv := memory.New()
	require.NoError(t, kv.Set(context.Background(), domain.MaintenanceKey,
		[]byte(`{"active":true,"message":"planned"}`)))

	m := New(kv, nil, Config{}, nil)
	assert.True(t, m.Active())
	assert.Equal(t, "planned", m.State().Message)
}

func TestHydrateToleratesMalformedPayload(t *testing.T) {
	kv := memory.New()
	require.NoError(t, kv.Set(context.Background(), domain.MaintenanceKey, []byte("{not json")))

	m := New(kv, nil, Config{}, nil)
	assert.False(t, m.Active())
	assert.Equal(t, domain.MaintenanceState{}, m.State())
}

func TestSweepClearsExpiredWindow(t *testing.T) {
	kv := memory.New()
	m := New(kv, nil, Config{}, nil)

	require.NoError(t, m.Set(context.Background(), domain.MaintenanceState{
		Active: true,
		Until:  time.Now().Add(-time.Minute),
	}))
	require.False(t, m.Active(), "expired window no longer gates")

	m.Sweep(context.Background())

	state := m.State()
	assert.False(t, state.Active)
	assert.Equal(t, "sweeper", state.UpdatedBy)
}

func TestApplyDoesNotRePersist(t *testing.T) {
	kv := memory.New()
	m := New(kv, nil, Config{}, nil)

	m.Apply(domain.MaintenanceState{Active: true})

	assert.True(t, m.Active())
	_, err := kv.Get(context.Background(), domain.MaintenanceKey)
	assert.Error(t, err, "Apply must not write storage")
}
