package localstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemory()

	_, ok, err := store.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set("pref/1/2/pinned_at", "2026-01-02T15:04:05Z"))
	val, ok, err := store.Get("pref/1/2/pinned_at")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2026-01-02T15:04:05Z", val)

	require.NoError(t, store.Delete("pref/1/2/pinned_at"))
	_, ok, err = store.Get("pref/1/2/pinned_at")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPebbleStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set("unread/3/4", "1"))
	require.NoError(t, store.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	val, ok, err := reopened.Get("unread/3/4")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", val)

	_, ok, err = reopened.Get("unread/3/5")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPebbleStoreDeleteMissingKey(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	assert.NoError(t, store.Delete("never-set"))
}
