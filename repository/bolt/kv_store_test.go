package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adms/sessiond/domain"
	"github.com/adms/sessiond/repository"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "kv.db"), "kv")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "authData", []byte(`{"token":"abc"}`)))

	value, err := store.Get(ctx, "authData")
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"abc"}`, string(value))

	n, err := store.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.Delete(ctx, "authData"))
	_, err = store.Get(ctx, "authData")
	assert.True(t, errors.Is(err, domain.ErrKeyNotFound))
}

func TestStoreGetMissingKey(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(context.Background(), "absent")
	assert.True(t, errors.Is(err, domain.ErrKeyNotFound))
}

func TestStoreNotifiesSubscribers(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	var changes []repository.Change
	cancel := store.Subscribe(func(c repository.Change) {
		changes = append(changes, c)
	})

	require.NoError(t, store.Set(ctx, "authData", []byte("v1")))
	require.NoError(t, store.Delete(ctx, "authData"))

	require.Len(t, changes, 2)
	assert.Equal(t, "authData", changes[0].Key)
	assert.Equal(t, []byte("v1"), changes[0].Value)
	assert.Nil(t, changes[1].Value)

	cancel()
	require.NoError(t, store.Set(ctx, "authData", []byte("v2")))
	assert.Len(t, changes, 2)
}
