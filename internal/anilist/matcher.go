package anilist

import (
	"context"
	"encoding/json"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/kaede-io/anibox/internal/match"
)

const searchQuery = `
query ($search: String!, $page: Int!, $perPage: Int!, $sort: [MediaSort]) {
  Page(page: $page, perPage: $perPage) {
    media(search: $search, type: ANIME, sort: $sort) {
      id
      episodes
      synonyms
      title {
        romaji
        english
        native
      }
    }
  }
}`

type searchData struct {
	Page *struct {
		Media []mediaDTO `json:"media"`
	} `json:"Page"`
}

const (
	fuzzyFallbackPages   = 3
	fuzzyFallbackPerPage = 10
)

// MatchLocalTitle finds the remote catalog id for a local show title.
//
// For each title variant in order, it runs a popularity-sorted search and
// validates the top hit against the original title; the first validated hit
// wins. Popularity sorting alone would happily return a famous reboot for
// an obscure query, so validation is what keeps the match honest. When no
// variant validates, a broader paginated fuzzy search runs with the same
// validation, ranked by edit distance. Returns false when nothing matches.
func (s *Sync) MatchLocalTitle(ctx context.Context, localTitle string) (int, bool) {
	variants := match.Variants(localTitle)
	if len(variants) == 0 {
		return 0, false
	}

	for _, variant := range variants {
		media, err := s.searchMedia(ctx, variant, 1, 1, true)
		if err != nil {
			s.logger.Warn("title search failed", "variant", variant, "error", err)
			continue
		}
		if len(media) == 0 {
			continue
		}

		top := media[0]
		if top.ID != nil && match.ValidateCandidate(localTitle, candidateTitles(top)) {
			s.logger.Debug("matched local title", "title", localTitle, "variant", variant, "remoteID", *top.ID)
			return *top.ID, true
		}
	}

	return s.fuzzyFallback(ctx, localTitle)
}

// fuzzyFallback pages through an unsorted search, keeps validated
// candidates, and picks the one closest to the query by edit distance.
func (s *Sync) fuzzyFallback(ctx context.Context, localTitle string) (int, bool) {
	bestID := 0
	bestDistance := -1

	for page := 1; page <= fuzzyFallbackPages; page++ {
		media, err := s.searchMedia(ctx, localTitle, page, fuzzyFallbackPerPage, false)
		if err != nil {
			s.logger.Warn("fuzzy fallback search failed", "page", page, "error", err)
			break
		}
		if len(media) == 0 {
			break
		}

		for _, m := range media {
			if m.ID == nil || !match.ValidateCandidate(localTitle, candidateTitles(m)) {
				continue
			}
			for _, title := range candidateTitles(m) {
				rank := fuzzy.RankMatchNormalizedFold(match.Normalize(localTitle), match.Normalize(title))
				if rank < 0 {
					rank = fuzzy.LevenshteinDistance(match.Normalize(localTitle), match.Normalize(title))
				}
				if bestDistance < 0 || rank < bestDistance {
					bestDistance = rank
					bestID = *m.ID
				}
			}
		}
	}

	if bestDistance < 0 {
		return 0, false
	}
	s.logger.Debug("matched local title via fuzzy fallback", "title", localTitle, "remoteID", bestID)
	return bestID, true
}

func (s *Sync) searchMedia(ctx context.Context, search string, page, perPage int, byPopularity bool) ([]mediaDTO, error) {
	variables := map[string]interface{}{
		"search":  search,
		"page":    page,
		"perPage": perPage,
	}
	if byPopularity {
		variables["sort"] = []string{"POPULARITY_DESC"}
	} else {
		variables["sort"] = []string{"SEARCH_MATCH"}
	}

	raw, err := s.client.Execute(ctx, searchQuery, variables, false)
	if err != nil {
		return nil, err
	}

	var data searchData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	if data.Page == nil {
		return nil, nil
	}
	return data.Page.Media, nil
}

func candidateTitles(m mediaDTO) []string {
	c := m.Title.candidates()
	c.Synonyms = m.Synonyms
	return c.All()
}
