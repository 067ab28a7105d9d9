package badgerstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestStore_PutGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "document", "doc-1", []byte(`{"id":"doc-1"}`)))

	payload, ok, err := s.Get(ctx, "document", "doc-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"id":"doc-1"}`, string(payload))
}

func TestStore_GetAbsent(t *testing.T) {
	s := newTestStore(t)

	payload, ok, err := s.Get(context.Background(), "document", "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, payload)
}

func TestStore_KindNamespacing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "document", "shared-id", []byte("doc")))
	require.NoError(t, s.Put(ctx, "collection", "shared-id", []byte("col")))

	payload, ok, err := s.Get(ctx, "document", "shared-id")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "doc", string(payload))

	payload, ok, err = s.Get(ctx, "collection", "shared-id")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "col", string(payload))
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "entity", "ent-1", []byte("x")))
	require.NoError(t, s.Delete(ctx, "entity", "ent-1"))

	_, ok, err := s.Get(ctx, "entity", "ent-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting an absent key is not an error.
	assert.NoError(t, s.Delete(ctx, "entity", "ent-1"))
}

func TestStore_CancelledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.Get(ctx, "document", "doc-1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Put(ctx, "document", "doc-1", []byte("x")), context.Canceled)
}

func TestStore_TTLExpiry(t *testing.T) {
	cfg := InMemoryConfig()
	cfg.TTL = 50 * time.Millisecond
	s, err := Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "document", "doc-1", []byte("x")))

	time.Sleep(120 * time.Millisecond)

	_, ok, err := s.Get(ctx, "document", "doc-1")
	require.NoError(t, err)
	assert.False(t, ok, "entry should have expired")
}
