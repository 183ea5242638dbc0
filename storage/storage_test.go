package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// kvSuite runs the shared contract against any backend.
func kvSuite(t *testing.T, kv KV, advance func(time.Duration)) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := kv.Get(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "a", []byte("hello"), 0))
		value, err := kv.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), value)
	})

	t.Run("overwrite replaces value and ttl", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "b", []byte("one"), time.Second))
		require.NoError(t, kv.Set(ctx, "b", []byte("two"), 0))
		advance(2 * time.Second)

		value, err := kv.Get(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), value)
	})

	t.Run("ttl expiry", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "c", []byte("fleeting"), 10*time.Minute))

		value, err := kv.Get(ctx, "c")
		require.NoError(t, err)
		assert.Equal(t, []byte("fleeting"), value)

		advance(11 * time.Minute)
		_, err = kv.Get(ctx, "c")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "d", []byte("x"), 0))
		require.NoError(t, kv.Delete(ctx, "d"))
		_, err := kv.Get(ctx, "d")
		assert.ErrorIs(t, err, ErrNotFound)

		// Deleting again is fine.
		assert.NoError(t, kv.Delete(ctx, "d"))
	})

	t.Run("keys by prefix", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "pair:ZZZZZZ", []byte("1"), 0))
		require.NoError(t, kv.Set(ctx, "pair:AAAAAA", []byte("2"), 0))
		require.NoError(t, kv.Set(ctx, "geocode:somewhere", []byte("3"), 0))
		require.NoError(t, kv.Set(ctx, "pair:GONE00", []byte("4"), time.Minute))
		advance(2 * time.Minute)

		keys, err := kv.Keys(ctx, "pair:")
		require.NoError(t, err)
		assert.Equal(t, []string{"pair:AAAAAA", "pair:ZZZZZZ"}, keys)
	})
}

func TestMemoryKV(t *testing.T) {
	kv := NewMemoryKV()
	now := time.Now()
	kv.TimeNow = func() time.Time { return now }

	kvSuite(t, kv, func(d time.Duration) { now = now.Add(d) })
	assert.NoError(t, kv.Close())
}

func TestMemoryKVCopiesValues(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	original := []byte("immutable")
	require.NoError(t, kv.Set(ctx, "k", original, 0))
	original[0] = 'X'

	value, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("immutable"), value)

	// Mutating the returned slice doesn't poison the store either.
	value[0] = 'Y'
	again, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("immutable"), again)
}

func TestSQLiteKV(t *testing.T) {
	kv, err := NewSQLiteKV()
	require.NoError(t, err)
	defer kv.Close()

	now := time.Now()
	kv.TimeNow = func() time.Time { return now }

	kvSuite(t, kv, func(d time.Duration) { now = now.Add(d) })
}

func TestSQLiteKVFileBacked(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/kv.db"

	kv, err := NewSQLiteKV(SQLiteConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, "persist", []byte("still here"), 0))
	require.NoError(t, kv.Close())

	reopened, err := NewSQLiteKV(SQLiteConfig{Path: path})
	require.NoError(t, err)
	defer reopened.Close()

	value, err := reopened.Get(ctx, "persist")
	require.NoError(t, err)
	assert.Equal(t, []byte("still here"), value)
}
