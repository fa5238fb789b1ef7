package tabstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pkt.systems/tabnap/core"
	"pkt.systems/tabnap/schema"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "tabnap.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTabInfoUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.TabInfo(ctx, "https://a.test/")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SaveTabInfo(ctx, core.TabProperties{URL: "https://a.test/", Title: "A", Favicon: "fav"}))
	require.NoError(t, s.SaveTabInfo(ctx, core.TabProperties{URL: "https://a.test/", Title: "A2"}))

	props, ok, err := s.TabInfo(ctx, "https://a.test/")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "A2", props.Title)
	assert.Equal(t, "", props.Favicon)
	assert.Equal(t, "https://a.test/", props.URL)
}

func TestPreviewAndPrune(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	s.now = func() time.Time { return base }
	require.NoError(t, s.SavePreview(ctx, "https://old.test/", "data:image/webp;base64,AAA"))
	s.now = func() time.Time { return base.Add(48 * time.Hour) }
	require.NoError(t, s.SavePreview(ctx, "https://new.test/", "data:image/webp;base64,BBB"))

	got, ok, err := s.Preview(ctx, "https://new.test/")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "data:image/webp;base64,BBB", got)

	n, err := s.PrunePreviews(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, ok, err = s.Preview(ctx, "https://old.test/")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddURL(ctx, "https://a.test/"))
	require.NoError(t, s.AddURL(ctx, "https://a.test/"))
	has, err := s.HasURL(ctx, "https://a.test/")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, s.DeleteURL(ctx, "https://a.test/"))
	has, err = s.HasURL(ctx, "https://a.test/")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	windows := []schema.Window{{ID: 1, Focused: true, Tabs: []schema.Tab{{ID: 3, WindowID: 1, URL: "https://a.test/"}}}}
	s.now = func() time.Time { return base }
	require.NoError(t, s.SaveSession(ctx, "old", windows))
	s.now = func() time.Time { return base.Add(time.Minute) }
	require.NoError(t, s.SaveSession(ctx, "current", nil))

	snap, ok, err := s.LatestSession(ctx, "current")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "old", snap.SessionID)
	require.Len(t, snap.Windows, 1)
	assert.Equal(t, "https://a.test/", snap.Windows[0].Tabs[0].URL)

	require.NoError(t, s.TrimSessions(ctx, 1))
	_, ok, err = s.LatestSession(ctx, "current")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabnap.db")
	ctx := context.Background()
	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.SaveTabInfo(ctx, core.TabProperties{URL: "u", Title: "t"}))
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()
	props, ok, err := s.TabInfo(ctx, "u")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "t", props.Title)
}
