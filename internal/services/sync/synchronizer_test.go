package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adms/sessiond/domain"
	"github.com/adms/sessiond/repository/memory"
	"github.com/adms/sessiond/usecase/session"
)

type maintenanceRecorder struct {
	states []domain.MaintenanceState
}

func (r *maintenanceRecorder) Apply(state domain.MaintenanceState) {
	r.states = append(r.states, state)
}

func TestLogoutPropagatesBetweenInstances(t *testing.T) {
	kv := memory.New()
	ctx := context.Background()

	storeA := session.NewStore(ctx, kv, nil, nil)
	storeB := session.NewStore(ctx, kv, nil, nil)

	syncA := New(kv, storeA, nil, nil)
	syncB := New(kv, storeB, nil, nil)
	syncA.Start()
	syncB.Start()
	defer syncA.Stop()
	defer syncB.Stop()

	require.NoError(t, storeA.Set(ctx, &domain.Session{
		Token: "tok-1",
		User:  domain.User{ID: "u1"},
	}))

	// instance B adopted the login purely via the storage notification
	current := storeB.Current()
	require.NotNil(t, current)
	assert.Equal(t, "tok-1", current.Token)

	// instance A logs out; B observes and clears without any direct call
	require.NoError(t, storeA.Set(ctx, nil))
	assert.Nil(t, storeB.Current())
}

func TestMalformedPayloadYieldsLoggedOutDefault(t *testing.T) {
	kv := memory.New()
	ctx := context.Background()

	store := session.NewStore(ctx, kv, nil, nil)
	require.NoError(t, store.Set(ctx, &domain.Session{Token: "tok-1", User: domain.User{ID: "u1"}}))

	sync := New(kv, store, nil, nil)
	sync.Start()
	defer sync.Stop()

	require.NoError(t, kv.Set(ctx, domain.AuthDataKey, []byte("{not json")))

	assert.Nil(t, store.Current())
}

func TestMaintenanceChangesReachSink(t *testing.T) {
	kv := memory.New()
	rec := &maintenanceRecorder{}

	sync := New(kv, nil, rec, nil)
	sync.Start()
	defer sync.Stop()

	require.NoError(t, kv.Set(context.Background(), domain.MaintenanceKey,
		[]byte(`{"active":true,"message":"patching"}`)))
	require.NoError(t, kv.Set(context.Background(), domain.MaintenanceKey,
		[]byte("garbage")))

	require.Len(t, rec.states, 2)
	assert.True(t, rec.states[0].Active)
	assert.Equal(t, "patching", rec.states[0].Message)
	assert.Equal(t, domain.MaintenanceState{}, rec.states[1], "malformed payload falls back to inactive")
}

func TestUnrelatedKeysIgnored(t *testing.T) {
	kv := memory.New()
	rec := &maintenanceRecorder{}
	store := session.NewStore(context.Background(), kv, nil, nil)

	sync := New(kv, store, rec, nil)
	sync.Start()
	defer sync.Stop()

	require.NoError(t, kv.Set(context.Background(), "somethingElse", []byte("x")))
	assert.Empty(t, rec.states)
	assert.Nil(t, store.Current())
}
