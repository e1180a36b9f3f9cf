package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaede-io/anibox/internal/domain"
	"github.com/kaede-io/anibox/internal/log"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(srv.URL, log.NullLogger()), srv
}

func TestSearchQueryTooShort(t *testing.T) {
	requested := false
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		requested = true
	})
	defer srv.Close()

	_, err := c.Search(context.Background(), "ab")
	assert.ErrorIs(t, err, domain.ErrQueryTooShort)

	_, err = c.Search(context.Background(), "  a  ")
	assert.ErrorIs(t, err, domain.ErrQueryTooShort)

	// Rejected before any I/O
	assert.False(t, requested)
}

func TestSearch(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "one piece", r.URL.Query().Get("q"))
		w.Write([]byte(`{"results": [
			{"id": "one-piece-100", "title": "One Piece", "episodes": {"sub": 1100, "dub": 1000}},
			{"title": "no id, dropped"}
		]}`))
	})
	defer srv.Close()

	items, err := c.Search(context.Background(), "one piece")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "one-piece-100", items[0].ID)
	require.NotNil(t, items[0].EpisodeCounts)
	assert.Equal(t, 1100, items[0].EpisodeCounts.Sub)
}

func TestDetails(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/anime/frieren-18542", r.URL.Path)
		w.Write([]byte(`{
			"id": "frieren-18542",
			"title": "Frieren: Beyond Journey's End",
			"description": "An elf mage outlives her party.",
			"genres": ["Adventure", "Fantasy"],
			"status": "Finished Airing",
			"releaseYear": 2023
		}`))
	})
	defer srv.Close()

	detail, err := c.Details(context.Background(), "frieren-18542")
	require.NoError(t, err)
	assert.Equal(t, "Frieren: Beyond Journey's End", detail.Title)
	assert.Equal(t, 2023, detail.ReleaseYear)
	assert.Len(t, detail.Genres, 2)
}

func TestEpisodes(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/anime/frieren-18542/episodes", r.URL.Path)
		w.Write([]byte(`{"episodes": [
			{"id": "ep-1", "number": 1, "title": "The Journey's End"},
			{"id": "ep-2", "number": 2, "isFiller": true}
		]}`))
	})
	defer srv.Close()

	episodes, err := c.Episodes(context.Background(), "frieren-18542")
	require.NoError(t, err)
	require.Len(t, episodes, 2)
	assert.Equal(t, 1, episodes[0].Number)
	assert.True(t, episodes[1].IsFiller)
}

func TestStreamingSources(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/episode/sources", r.URL.Path)
		assert.Equal(t, "ep-1", r.URL.Query().Get("episodeId"))
		assert.Equal(t, "sub", r.URL.Query().Get("lang"))
		assert.Equal(t, "hd-1", r.URL.Query().Get("server"))
		w.Write([]byte(`{
			"sources": [{"url": "https://cdn/master.m3u8", "quality": "1080p", "isM3U8": true}],
			"subtitles": [{"url": "https://cdn/en.vtt", "lang": "en"}],
			"headers": {"Referer": "https://cdn/"}
		}`))
	})
	defer srv.Close()

	sources, err := c.StreamingSources(context.Background(), "ep-1", "sub", "hd-1")
	require.NoError(t, err)
	require.Len(t, sources.Sources, 1)
	assert.True(t, sources.Sources[0].IsM3U8)
	require.Len(t, sources.Subtitles, 1)
	assert.Equal(t, "en", sources.Subtitles[0].Language)
	assert.Equal(t, "https://cdn/", sources.Headers["Referer"])
}

func TestHome(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/home", r.URL.Path)
		w.Write([]byte(`{"sections": [
			{"title": "Trending", "items": [{"id": "a", "title": "A"}]},
			{"title": "Latest", "items": []}
		]}`))
	})
	defer srv.Close()

	sections, err := c.Home(context.Background())
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "Trending", sections[0].Title)
	require.Len(t, sections[0].Items, 1)
}

func TestNotConfigured(t *testing.T) {
	c := NewClient("", log.NullLogger())
	_, err := c.Home(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestInvalidEndpoint(t *testing.T) {
	c := NewClient("ftp://example.com", log.NullLogger())
	_, err := c.Home(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidEndpoint)
}

func TestServerErrorCarriesStatus(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "no such show"}`))
	})
	defer srv.Close()

	_, err := c.Details(context.Background(), "missing")
	var serverErr *domain.ServerError
	require.True(t, errors.As(err, &serverErr))
	assert.Equal(t, http.StatusNotFound, serverErr.StatusCode)
	assert.Equal(t, "no such show", serverErr.Message)
}

func TestDecodingError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	})
	defer srv.Close()

	_, err := c.Home(context.Background())
	assert.ErrorIs(t, err, domain.ErrDecoding)
}

func TestTransportErrorMapsToNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // immediately, so the dial fails

	c := NewClient(srv.URL, log.NullLogger())
	_, err := c.Home(context.Background())
	assert.ErrorIs(t, err, domain.ErrNetwork)
}
