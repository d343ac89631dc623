package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adms/sessiond/domain"
	"github.com/adms/sessiond/repository"
	"github.com/adms/sessiond/repository/memory"
)

type stubNavs struct {
	tree []domain.NavNode
	err  error
	gots []string
}

func (f *stubNavs) FetchNavTree(_ context.Context, userID string) ([]domain.NavNode, error) {
	f.gots = append(f.gots, userID)
	return f.tree, f.err
}

func testSession() *domain.Session {
	return &domain.Session{
		Token:      "tok-1",
		User:       domain.User{ID: "u1", Username: "alice", Avatar: "legacy.png"},
		Usergroups: []string{"admins"},
		NavTree:    []domain.NavNode{{ID: "n1", Title: "Assets"}},
	}
}

func TestSetPersistsDurableSubsetWithoutNavTree(t *testing.T) {
	kv := memory.New()
	store := NewStore(context.Background(), kv, nil, nil)

	require.NoError(t, store.Set(context.Background(), testSession()))

	payload, err := kv.Get(context.Background(), domain.AuthDataKey)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "Assets")

	stored := domain.ParseStoredAuth(payload)
	assert.Equal(t, "tok-1", stored.Token)
	assert.Equal(t, "u1", stored.User.ID)
	assert.Equal(t, []string{"admins"}, stored.Usergroups)
	// normalized before persisting
	assert.Equal(t, "legacy.png", stored.User.ProfileImage)
	assert.Empty(t, stored.User.Avatar)
}

func TestSetNilIsLogout(t *testing.T) {
	kv := memory.New()
	store := NewStore(context.Background(), kv, nil, nil)
	require.NoError(t, store.Set(context.Background(), testSession()))

	var observed []*domain.Session
	cancel := store.OnChange(func(s *domain.Session) { observed = append(observed, s) })
	defer cancel()

	require.NoError(t, store.Set(context.Background(), nil))

	assert.Nil(t, store.Current())
	assert.Empty(t, store.Token())
	_, err := kv.Get(context.Background(), domain.AuthDataKey)
	assert.True(t, errors.Is(err, domain.ErrKeyNotFound))
	require.Len(t, observed, 1)
	assert.Nil(t, observed[0])
}

type failingDeleteStore struct {
	repository.KeyValueBroadcastStore
	deleteErr error
}

func (s *failingDeleteStore) Delete(context.Context, string) error {
	return s.deleteErr
}

func TestSetNilClearsMemoryWhenStorageDeleteFails(t *testing.T) {
	kv := &failingDeleteStore{
		KeyValueBroadcastStore: memory.New(),
		deleteErr:              errors.New("disk gone"),
	}
	store := NewStore(context.Background(), kv, nil, nil)
	require.NoError(t, store.Set(context.Background(), testSession()))

	var observed []*domain.Session
	cancel := store.OnChange(func(s *domain.Session) { observed = append(observed, s) })
	defer cancel()

	err := store.Set(context.Background(), nil)
	assert.Error(t, err, "storage failure is reported")

	// but the logout succeeded locally regardless
	assert.Nil(t, store.Current())
	assert.Empty(t, store.Token())
	require.Len(t, observed, 1)
	assert.Nil(t, observed[0])
}

func TestHydrationSeedsSessionWithoutNavTree(t *testing.T) {
	kv := memory.New()
	seed := NewStore(context.Background(), kv, nil, nil)
	require.NoError(t, seed.Set(context.Background(), testSession()))

	fresh := NewStore(context.Background(), kv, nil, nil)
	current := fresh.Current()
	require.NotNil(t, current)
	assert.Equal(t, "tok-1", current.Token)
	assert.Equal(t, "u1", current.User.ID)
	assert.Nil(t, current.NavTree, "tree is memory-only and must not survive a restart")
}

func TestHydrationToleratesMalformedPayload(t *testing.T) {
	kv := memory.New()
	require.NoError(t, kv.Set(context.Background(), domain.AuthDataKey, []byte("{not json")))

	store := NewStore(context.Background(), kv, nil, nil)
	assert.Nil(t, store.Current())
}

func TestRefreshNavTreeFailureKeepsPreviousTree(t *testing.T) {
	kv := memory.New()
	navs := &stubNavs{err: errors.New("backend down")}
	store := NewStore(context.Background(), kv, navs, nil)
	require.NoError(t, store.Set(context.Background(), testSession()))

	store.RefreshNavTree(context.Background())

	current := store.Current()
	require.NotNil(t, current)
	require.Len(t, current.NavTree, 1)
	assert.Equal(t, "Assets", current.NavTree[0].Title)
}

func TestRefreshNavTreeSuccessReplacesTree(t *testing.T) {
	kv := memory.New()
	navs := &stubNavs{tree: []domain.NavNode{{ID: "n2", Title: "Billing"}}}
	store := NewStore(context.Background(), kv, navs, nil)
	require.NoError(t, store.Set(context.Background(), testSession()))

	store.RefreshNavTree(context.Background())

	current := store.Current()
	require.NotNil(t, current)
	require.Len(t, current.NavTree, 1)
	assert.Equal(t, "Billing", current.NavTree[0].Title)
	assert.Equal(t, []string{"u1"}, navs.gots)
}

func TestApplyAdoptsWithoutWritingStorage(t *testing.T) {
	kv := memory.New()
	store := NewStore(context.Background(), kv, nil, nil)

	writes := 0
	cancel := kv.Subscribe(func(repository.Change) { writes++ })
	defer cancel()

	store.Apply(domain.StoredAuth{Token: "tok-2", User: domain.User{ID: "u2"}})

	current := store.Current()
	require.NotNil(t, current)
	assert.Equal(t, "tok-2", current.Token)
	_, err := kv.Get(context.Background(), domain.AuthDataKey)
	assert.True(t, errors.Is(err, domain.ErrKeyNotFound), "Apply must not persist")
	assert.Zero(t, writes)
}

func TestApplyKeepsNavTreeWhenTokenUnchanged(t *testing.T) {
	kv := memory.New()
	store := NewStore(context.Background(), kv, nil, nil)
	require.NoError(t, store.Set(context.Background(), testSession()))
	store.UpdateNavTree([]domain.NavNode{{ID: "n1", Title: "Assets"}})

	store.Apply(domain.StoredAuth{Token: "tok-1", User: domain.User{ID: "u1"}})

	current := store.Current()
	require.NotNil(t, current)
	assert.Len(t, current.NavTree, 1)
}
