package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreEvictsLeastRecentlyUsed(t *testing.T) {
	store, err := NewSessionStore(2)
	require.NoError(t, err)

	a, _ := store.Create()
	b, _ := store.Create()
	_, ok := store.Get(a)
	require.True(t, ok)

	c, _ := store.Create()
	assert.Equal(t, 2, store.Len())

	_, ok = store.Get(b)
	assert.False(t, ok, "least recently used session should be evicted")
	_, ok = store.Get(a)
	assert.True(t, ok)
	_, ok = store.Get(c)
	assert.True(t, ok)
}

func TestSessionStoreDelete(t *testing.T) {
	store, err := NewSessionStore(0)
	require.NoError(t, err)

	id, acc := store.Create()
	acc.Set("weather", 1)

	got, ok := store.Get(id)
	require.True(t, ok)
	assert.Same(t, acc, got)

	assert.True(t, store.Delete(id))
	assert.False(t, store.Delete(id))
}
