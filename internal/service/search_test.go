package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaede-io/anibox/internal/bookmarks"
	"github.com/kaede-io/anibox/internal/domain"
	"github.com/kaede-io/anibox/internal/log"
	"github.com/kaede-io/anibox/internal/progress"
	"github.com/kaede-io/anibox/internal/store"
)

func newSearchFixture(t *testing.T) (*LocalSearch, *bookmarks.Store, *progress.Tracker) {
	t.Helper()
	kv, err := store.NewBoltStore("")
	require.NoError(t, err)

	bm := bookmarks.NewStore(kv, log.NullLogger())
	tracker := progress.NewTracker(kv, log.NullLogger())
	return NewLocalSearch(bm, tracker, log.NullLogger()), bm, tracker
}

func TestFilterMatchesBookmarks(t *testing.T) {
	s, bm, _ := newSearchFixture(t)
	bm.Toggle(domain.CatalogItem{ID: "a", Title: "Cowboy Bebop"})
	bm.Toggle(domain.CatalogItem{ID: "b", Title: "Samurai Champloo"})

	results := s.Filter("bebop")
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Item.ID)
	assert.NotEmpty(t, results[0].MatchedIndexes)
}

func TestFilterIncludesContinueWatching(t *testing.T) {
	s, _, tracker := newSearchFixture(t)
	tracker.SaveProgress("show-9", "ep-3", 3, 120, 1440, "Vinland Saga", "")

	results := s.Filter("vinland")
	require.Len(t, results, 1)
	assert.Equal(t, "show-9", results[0].Item.ID)
	assert.Equal(t, "Vinland Saga", results[0].Item.Title)
}

func TestFilterDeduplicatesAcrossSources(t *testing.T) {
	s, bm, tracker := newSearchFixture(t)
	bm.Toggle(domain.CatalogItem{ID: "show-9", Title: "Vinland Saga"})
	tracker.SaveProgress("show-9", "ep-3", 3, 120, 1440, "Vinland Saga", "")

	results := s.Filter("vinland")
	assert.Len(t, results, 1)
}

func TestFilterEmptyQuery(t *testing.T) {
	s, bm, _ := newSearchFixture(t)
	bm.Toggle(domain.CatalogItem{ID: "a", Title: "Cowboy Bebop"})

	assert.Nil(t, s.Filter(""))
	assert.Nil(t, s.Filter("   "))
}

func TestRankOrdersByDistance(t *testing.T) {
	s, bm, _ := newSearchFixture(t)
	bm.Toggle(domain.CatalogItem{ID: "a", Title: "Naruto"})
	bm.Toggle(domain.CatalogItem{ID: "b", Title: "Naruto Shippuden"})
	bm.Toggle(domain.CatalogItem{ID: "c", Title: "Bleach"})

	results := s.Rank("naruto")
	require.Len(t, results, 2) // Bleach does not match at all
	assert.Equal(t, "a", results[0].Item.ID)
	assert.Equal(t, "b", results[1].Item.ID)
}
