package metastore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osintlab/embedvault/metadata"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := metadata.Record{
		"path":     metadata.String("/media/a.jpg"),
		"modality": metadata.String("image"),
		"ts":       metadata.Int(1700000000),
	}
	require.NoError(t, s.Put(ctx, "a", rec, ""))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	_, err = s.Get(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutUpserts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, "a", metadata.Record{"v": metadata.Int(1)}, ""))
	require.NoError(t, s.Put(ctx, "a", metadata.Record{"v": metadata.Int(2)}, ""))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	v, _ := got["v"].AsInt64()
	assert.Equal(t, int64(2), v)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, "a", metadata.Record{}, ""))
	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "never-existed"))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestGetBatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, "a", metadata.Record{"n": metadata.Int(1)}, ""))
	require.NoError(t, s.Put(ctx, "b", metadata.Record{"n": metadata.Int(2)}, ""))

	got, err := s.GetBatch(ctx, []string{"a", "b", "ghost"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, got, "a")
	assert.Contains(t, got, "b")
	assert.NotContains(t, got, "ghost")

	empty, err := s.GetBatch(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLookupHash(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, "a", metadata.Record{}, "sha256:deadbeef"))
	require.NoError(t, s.Put(ctx, "b", metadata.Record{}, ""))

	id, err := s.LookupHash(ctx, "sha256:deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "a", id)

	_, err = s.LookupHash(ctx, "sha256:cafe")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.LookupHash(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWipe(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, "a", metadata.Record{}, ""))
	require.NoError(t, s.Put(ctx, "b", metadata.Record{}, ""))
	require.NoError(t, s.Wipe(ctx))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Store stays usable after a wipe.
	require.NoError(t, s.Put(ctx, "c", metadata.Record{}, ""))
}

func TestSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "meta.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "a", metadata.Record{"k": metadata.String("v")}, ""))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get(ctx, "a")
	require.NoError(t, err)
	v, _ := got["k"].AsString()
	assert.Equal(t, "v", v)
}
