package anilist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kaede-io/anibox/internal/domain"
)

const viewerQuery = `
query {
  Viewer {
    id
  }
}`

const libraryQuery = `
query ($userId: Int!, $status: MediaListStatus) {
  MediaListCollection(userId: $userId, type: ANIME, status: $status) {
    lists {
      entries {
        status
        progress
        score
        media {
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
    }
  }
}`

// DTOs for the loosely-typed nested responses. Every field is optional;
// absence falls back to a documented default rather than failing the parse.

type titleDTO struct {
	Romaji  *string `json:"romaji"`
	English *string `json:"english"`
	Native  *string `json:"native"`
}

func (t *titleDTO) candidates() domain.TitleCandidates {
	var c domain.TitleCandidates
	if t == nil {
		return c
	}
	if t.Romaji != nil {
		c.Romaji = *t.Romaji
	}
	if t.English != nil {
		c.English = *t.English
	}
	if t.Native != nil {
		c.Native = *t.Native
	}
	return c
}

type mediaDTO struct {
	ID       *int      `json:"id"`
	Episodes *int      `json:"episodes"`
	Synonyms []string  `json:"synonyms"`
	Title    *titleDTO `json:"title"`
}

type listEntryDTO struct {
	Status   *string   `json:"status"`
	Progress *int      `json:"progress"`
	Score    *float64  `json:"score"`
	Media    *mediaDTO `json:"media"`
}

type viewerData struct {
	Viewer *struct {
		ID int `json:"id"`
	} `json:"Viewer"`
}

type libraryData struct {
	MediaListCollection *struct {
		Lists []struct {
			Entries []listEntryDTO `json:"entries"`
		} `json:"lists"`
	} `json:"MediaListCollection"`
}

// FetchLibrary fetches the user's remote list, optionally filtered by
// status, and reconciles it into the normalized local shape. The result is
// session-scoped; it is recomputed per fetch and never persisted. Any parse
// or transport failure fails the whole call, never a partial result.
func (s *Sync) FetchLibrary(ctx context.Context, statusFilter *domain.MediaListStatus) ([]domain.RemoteLibraryItem, error) {
	if err := s.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}

	userID, err := s.viewerID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchLibrary, err)
	}

	variables := map[string]interface{}{"userId": userID}
	if statusFilter != nil {
		variables["status"] = string(*statusFilter)
	}

	raw, err := s.client.Execute(ctx, libraryQuery, variables, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchLibrary, err)
	}

	var data libraryData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetchLibrary, err)
	}
	if data.MediaListCollection == nil {
		return nil, fmt.Errorf("%w: response missing list collection", domain.ErrFetchLibrary)
	}

	var items []domain.RemoteLibraryItem
	for _, list := range data.MediaListCollection.Lists {
		for _, entry := range list.Entries {
			if item, ok := reconcileEntry(entry); ok {
				items = append(items, item)
			}
		}
	}

	s.logger.Info("fetched remote library", "count", len(items))
	return items, nil
}

// reconcileEntry normalizes one raw list entry. Entries without media or a
// remote id are unusable and skipped; every other missing field falls back:
// status -> CURRENT, progress -> 0, score -> nil, English title -> romaji.
func reconcileEntry(entry listEntryDTO) (domain.RemoteLibraryItem, bool) {
	if entry.Media == nil || entry.Media.ID == nil {
		return domain.RemoteLibraryItem{}, false
	}

	item := domain.RemoteLibraryItem{
		RemoteID: *entry.Media.ID,
		Titles:   entry.Media.Title.candidates(),
		Status:   domain.StatusCurrent,
	}
	item.Titles.Synonyms = entry.Media.Synonyms

	if entry.Status != nil {
		item.Status = domain.MediaListStatus(*entry.Status)
	}
	if entry.Progress != nil {
		item.Progress = *entry.Progress
	}
	item.Score = entry.Score
	item.TotalEpisodes = entry.Media.Episodes

	return item, true
}

func (s *Sync) viewerID(ctx context.Context) (int, error) {
	raw, err := s.client.Execute(ctx, viewerQuery, nil, true)
	if err != nil {
		return 0, err
	}

	var data viewerData
	if err := json.Unmarshal(raw, &data); err != nil {
		return 0, err
	}
	if data.Viewer == nil {
		return 0, fmt.Errorf("response missing viewer")
	}
	return data.Viewer.ID, nil
}
