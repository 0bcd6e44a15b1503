package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndRetrieve(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Save("Owner|abc", "events", []byte(`[{"type":"Created"}]`)))

	value, err := store.Retrieve("Owner|abc", "events")
	require.NoError(t, err)
	require.Equal(t, []byte(`[{"type":"Created"}]`), value)
}

func TestRetrieveMissingReturnsNil(t *testing.T) {
	store := openTestStore(t)

	value, err := store.Retrieve("Owner|missing", "events")
	require.NoError(t, err)
	require.Nil(t, value)
}

func TestSaveOverwrites(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Save("a", "k", []byte("one")))
	require.NoError(t, store.Save("a", "k", []byte("two")))

	value, err := store.Retrieve("a", "k")
	require.NoError(t, err)
	require.Equal(t, []byte("two"), value)
}

func TestDelete(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Save("a", "k", []byte("v")))

	existed, err := store.Delete("a", "k")
	require.NoError(t, err)
	require.True(t, existed)

	value, err := store.Retrieve("a", "k")
	require.NoError(t, err)
	require.Nil(t, value)

	existed, err = store.Delete("a", "k")
	require.NoError(t, err)
	require.False(t, existed)
}

func TestKeysAreScopedByActor(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Save("Owner|a", "events", []byte("owner-a")))
	require.NoError(t, store.Save("Owner|b", "events", []byte("owner-b")))

	value, err := store.Retrieve("Owner|a", "events")
	require.NoError(t, err)
	require.Equal(t, []byte("owner-a"), value)
}
