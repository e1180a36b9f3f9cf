package service

import (
	"log/slog"
	"sort"
	"strings"

	rank "github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sahilm/fuzzy"

	"github.com/kaede-io/anibox/internal/bookmarks"
	"github.com/kaede-io/anibox/internal/domain"
	"github.com/kaede-io/anibox/internal/progress"
)

// SearchResult is one local search hit with match metadata for highlighting.
type SearchResult struct {
	Item           domain.CatalogItem
	MatchedIndexes []int
	Score          int
}

// LocalSearch filters the locally known catalog (bookmarks plus the
// continue-watching projection) without touching the network, so search
// keeps working offline.
type LocalSearch struct {
	bookmarks *bookmarks.Store
	progress  *progress.Tracker
	logger    *slog.Logger
}

// NewLocalSearch creates a local search service over the given stores.
func NewLocalSearch(bm *bookmarks.Store, tracker *progress.Tracker, logger *slog.Logger) *LocalSearch {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalSearch{
		bookmarks: bm,
		progress:  tracker,
		logger:    logger,
	}
}

// indexEntries implements fuzzy.Source over catalog items.
type indexEntries []domain.CatalogItem

func (e indexEntries) String(i int) string { return e[i].Title }
func (e indexEntries) Len() int            { return len(e) }

// gather collects the searchable items: bookmarks first, then shows from
// the continue-watching projection not already bookmarked.
func (s *LocalSearch) gather() indexEntries {
	items := s.bookmarks.List()
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		seen[item.ID] = true
	}

	for _, rec := range s.progress.ContinueWatching() {
		if seen[rec.ShowID] {
			continue
		}
		seen[rec.ShowID] = true
		items = append(items, domain.CatalogItem{
			ID:       rec.ShowID,
			Title:    rec.Title,
			ImageURL: rec.ThumbnailURL,
		})
	}
	return items
}

// Filter runs a character-subsequence match over the local catalog and
// returns results best first, with matched character positions.
func (s *LocalSearch) Filter(query string) []SearchResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	entries := s.gather()
	if len(entries) == 0 {
		return nil
	}

	matches := fuzzy.FindFrom(query, entries)
	results := make([]SearchResult, len(matches))
	for i, m := range matches {
		results[i] = SearchResult{
			Item:           entries[m.Index],
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		}
	}
	return results
}

// Rank orders the local catalog by normalized edit distance to the query.
// Unlike Filter it tolerates typos that break subsequence matching.
func (s *LocalSearch) Rank(query string) []SearchResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	entries := s.gather()
	var results []SearchResult
	for _, item := range entries {
		r := rank.RankMatchNormalizedFold(query, item.Title)
		if r < 0 {
			continue
		}
		results = append(results, SearchResult{Item: item, Score: r})
	}

	// Lower distance is better
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score < results[j].Score
	})
	return results
}
