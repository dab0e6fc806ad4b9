package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Add(context.Background(), Record{SourceName: "a.png", DownloadName: "x.png", Length: 8})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	recs, err := s.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestAddAndRecent(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"one.png", "two.png", "three.png"} {
		_, err := s.Add(ctx, Record{
			SourceName:   name,
			ProcessedURL: "/processed/" + name,
			DownloadName: name,
			Length:       (i + 1) * 8,
			Text:         "hello",
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	recs, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "three.png", recs[0].SourceName)
	assert.Equal(t, 24, recs[0].Length)
	assert.Equal(t, "two.png", recs[1].SourceName)
	assert.NotEmpty(t, recs[0].ID)
	assert.True(t, recs[0].CreatedAt.Equal(base.Add(2*time.Minute)))

	all, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRecentOrdersFractionalSeconds(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, r := range []Record{
		{SourceName: "whole.png", DownloadName: "whole.png", Length: 8, CreatedAt: base},
		{SourceName: "half.png", DownloadName: "half.png", Length: 16, CreatedAt: base.Add(500 * time.Millisecond)},
	} {
		_, err := s.Add(ctx, r)
		require.NoError(t, err)
	}

	recs, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "half.png", recs[0].SourceName)
	assert.True(t, recs[0].CreatedAt.Equal(base.Add(500*time.Millisecond)))
	assert.Equal(t, "whole.png", recs[1].SourceName)
}

func TestAddAssignsDefaults(t *testing.T) {
	s := openTemp(t)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	r, err := s.Add(context.Background(), Record{SourceName: "a.png", DownloadName: "b.png", Length: 40})
	require.NoError(t, err)
	assert.Len(t, r.ID, 36)
	assert.Equal(t, fixed, r.CreatedAt)
}

func TestLengthFor(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	_, err := s.LengthFor(ctx, "missing.png")
	assert.ErrorIs(t, err, ErrNotFound)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err = s.Add(ctx, Record{SourceName: "cat.png", DownloadName: "img123.png", Length: 40, CreatedAt: base})
	require.NoError(t, err)
	_, err = s.Add(ctx, Record{SourceName: "cat.png", DownloadName: "img456.png", Length: 72, CreatedAt: base.Add(time.Hour)})
	require.NoError(t, err)

	n, err := s.LengthFor(ctx, "img123.png")
	require.NoError(t, err)
	assert.Equal(t, 40, n)

	n, err = s.LengthFor(ctx, "cat.png")
	require.NoError(t, err)
	assert.Equal(t, 72, n, "newest embed of the source wins")
}
