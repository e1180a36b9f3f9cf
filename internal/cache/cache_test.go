package cache

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaede-io/anibox/internal/domain"
	"github.com/kaede-io/anibox/internal/log"
	"github.com/kaede-io/anibox/internal/retry"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(t.TempDir(), 0, 0, log.NullLogger())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	c.retryPolicy = retry.Policy{MaxAttempts: 1}
	return c
}

func sampleDetail(id string) domain.ShowDetail {
	return domain.ShowDetail{
		CatalogItem: domain.CatalogItem{ID: id, Title: "Show " + id, ImageURL: "https://img/" + id},
		Description: "a show",
		Genres:      []string{"action"},
	}
}

func sampleEpisodes() []domain.Episode {
	return []domain.Episode{
		{ID: "e1", Number: 1, Title: "First"},
		{ID: "e2", Number: 2, Title: "Second"},
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	c := newTestCache(t)

	c.Put("show1", sampleDetail("show1"), sampleEpisodes(), nil)

	entry, ok := c.Get("show1")
	require.True(t, ok)
	assert.Equal(t, sampleDetail("show1"), entry.Detail)
	assert.Equal(t, sampleEpisodes(), entry.Episodes)
	assert.False(t, entry.CachedAt.IsZero())
}

func TestGetIsIdempotent(t *testing.T) {
	c := newTestCache(t)
	c.Put("show1", sampleDetail("show1"), sampleEpisodes(), nil)

	_, ok := c.Get("show1")
	require.True(t, ok)
	entry, ok := c.Get("show1")
	require.True(t, ok)
	assert.Equal(t, "show1", entry.Detail.ID)
}

func TestGetLazyExpiry(t *testing.T) {
	c := newTestCache(t)
	c.Put("show1", sampleDetail("show1"), sampleEpisodes(), nil)

	// Move the clock past maxAge (7 days)
	c.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }

	_, ok := c.Get("show1")
	assert.False(t, ok)

	// The entry was removed as a side effect; a second call is a clean miss
	_, ok = c.Get("show1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().ShowCount)
}

func TestRemove(t *testing.T) {
	c := newTestCache(t)
	c.Put("show1", sampleDetail("show1"), sampleEpisodes(), nil)

	c.Remove("show1")
	_, ok := c.Get("show1")
	assert.False(t, ok)
}

func TestPrefetchThumbnailsPartialFailure(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("image-bytes"))
	}))
	defer srv.Close()

	c := newTestCache(t)
	c.PrefetchThumbnails("show1", map[int]string{
		1: srv.URL + "/ok",
		2: srv.URL + "/bad",
		3: srv.URL + "/ok",
	})

	// Failures never abort the batch
	data, ok := c.GetThumbnail("show1", 1)
	require.True(t, ok)
	assert.Equal(t, "image-bytes", string(data))

	_, ok = c.GetThumbnail("show1", 2)
	assert.False(t, ok)

	_, ok = c.GetThumbnail("show1", 3)
	assert.True(t, ok)
}

func TestBadStatusNotRetried(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	// Keep the policy from New so its retry classification is exercised
	c, err := New(t.TempDir(), 0, 0, log.NullLogger())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	c.retryPolicy.Backoff = func(int) time.Duration { return 0 }

	c.PrefetchThumbnails("show1", map[int]string{1: srv.URL + "/gone"})

	// A bad status is permanent; only transport failures get more attempts
	assert.Equal(t, 1, hits)
	_, ok := c.GetThumbnail("show1", 1)
	assert.False(t, ok)
}

func TestCloseStopsPrefetch(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("image-bytes"))
	}))
	defer srv.Close()

	c := newTestCache(t)
	c.Close()

	c.PrefetchThumbnails("show1", map[int]string{1: srv.URL + "/ok"})
	assert.Equal(t, 0, hits)
}

func TestCloseWaitsForInflightPrefetch(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newTestCache(t)
	c.Put("show1", sampleDetail("show1"), sampleEpisodes(), map[int]string{1: srv.URL + "/slow"})

	<-started
	// Close cancels the in-flight download and must not return before the
	// prefetch goroutine has finished.
	c.Close()
}

func TestGetThumbnailLazyExpiry(t *testing.T) {
	c := newTestCache(t)

	path := c.thumbnailPath("show1", 1)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("img"), 0644))

	_, ok := c.GetThumbnail("show1", 1)
	require.True(t, ok)

	c.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	_, ok = c.GetThumbnail("show1", 1)
	assert.False(t, ok)

	// Deleted on read
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestStats(t *testing.T) {
	c := newTestCache(t)
	c.Put("show1", sampleDetail("show1"), sampleEpisodes(), nil)
	c.Put("show2", sampleDetail("show2"), sampleEpisodes(), nil)

	path := c.thumbnailPath("show1", 1)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("img"), 0644))

	stats := c.Stats()
	assert.Equal(t, 2, stats.ShowCount)
	assert.Equal(t, 1, stats.ImageCount)
	assert.Greater(t, stats.TotalBytes, int64(0))
	assert.Equal(t, stats.TotalBytes, c.Size())
}

func TestSweepExpired(t *testing.T) {
	c := newTestCache(t)
	c.Put("old", sampleDetail("old"), sampleEpisodes(), nil)

	c.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	c.Put("fresh", sampleDetail("fresh"), sampleEpisodes(), nil)

	removed := c.SweepExpired()
	assert.GreaterOrEqual(t, removed, 1)

	_, ok := c.Get("old")
	assert.False(t, ok)
	_, ok = c.Get("fresh")
	assert.True(t, ok)
}

func TestClearAll(t *testing.T) {
	c := newTestCache(t)
	c.Put("show1", sampleDetail("show1"), sampleEpisodes(), nil)
	c.MirrorBookmarks([]domain.CatalogItem{{ID: "b1"}})

	require.NoError(t, c.ClearAll())

	_, ok := c.Get("show1")
	assert.False(t, ok)
	assert.Empty(t, c.ReadOfflineBookmarks())
	assert.Equal(t, domain.CacheStats{}, c.Stats())
}

func TestOfflineMirrors(t *testing.T) {
	c := newTestCache(t)

	items := []domain.CatalogItem{{ID: "b1", Title: "One"}, {ID: "b2", Title: "Two"}}
	c.MirrorBookmarks(items)
	assert.Equal(t, items, c.ReadOfflineBookmarks())

	records := []domain.WatchProgressRecord{{
		ShowID: "s", EpisodeID: "e", EpisodeNumber: 1,
		PositionSeconds: 10, DurationSeconds: 100,
		LastUpdated: time.Now().UTC().Truncate(time.Second),
	}}
	c.MirrorWatchProgress(records)

	got := c.ReadOfflineProgress()
	require.Len(t, got, 1)
	assert.Equal(t, records[0].ShowID, got[0].ShowID)
	assert.Equal(t, records[0].PositionSeconds, got[0].PositionSeconds)
}

func TestOfflineMirrorDecodeFailure(t *testing.T) {
	c := newTestCache(t)

	path := filepath.Join(c.dir, offlineDir, mirrorBookmarksFile)
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))

	assert.Empty(t, c.ReadOfflineBookmarks())
}

func TestOfflineMirrorPartialDecodeYieldsNothing(t *testing.T) {
	c := newTestCache(t)

	// The first element decodes before the second fails; no partial slice
	// may leak out.
	path := filepath.Join(c.dir, offlineDir, mirrorBookmarksFile)
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"ok"},{"id":123}]`), 0644))

	assert.Empty(t, c.ReadOfflineBookmarks())
}

func TestOverBudget(t *testing.T) {
	c, err := New(t.TempDir(), 0, 10, log.NullLogger()) // 10-byte ceiling
	require.NoError(t, err)
	t.Cleanup(c.Close)

	assert.False(t, c.OverBudget())
	c.Put("show1", sampleDetail("show1"), sampleEpisodes(), nil)
	assert.True(t, c.OverBudget())
}
