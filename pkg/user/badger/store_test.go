package badger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittodrive/pkg/user"
	badgerstore "github.com/marmos91/dittodrive/pkg/user/badger"
)

func newStore(t *testing.T) *badgerstore.BadgerUserStore {
	t.Helper()

	store, err := badgerstore.NewBadgerUserStore(context.Background(), badgerstore.BadgerUserStoreConfig{
		InMemory: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}

func TestCreateAndGet(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "alice", "hash-a")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "alice", created.Username)
	assert.False(t, created.CreatedAt.IsZero())

	byName, err := store.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)
	assert.Equal(t, "hash-a", byName.PasswordHash)

	byID, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)
}

func TestUsernameUniqueness(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "alice", "hash-a")
	require.NoError(t, err)

	_, err = store.Create(ctx, "alice", "hash-b")
	assert.ErrorIs(t, err, user.ErrUsernameTaken)
}

func TestIDsAreDistinct(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	alice, err := store.Create(ctx, "alice", "h")
	require.NoError(t, err)

	bob, err := store.Create(ctx, "bob", "h")
	require.NoError(t, err)

	assert.NotEqual(t, alice.ID, bob.ID)
}

func TestGetMissing(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, user.ErrUserNotFound)

	_, err = store.GetByID(ctx, 12345)
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}
