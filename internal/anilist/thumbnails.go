package anilist

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"

	"github.com/kaede-io/anibox/internal/domain"
)

// transientError reports whether a failure is worth another attempt. Only
// transport failures qualify; shape and provider errors never change on
// retry.
func transientError(err error) bool {
	return errors.Is(err, domain.ErrNetwork)
}

const episodesQuery = `
query ($id: Int!) {
  Media(id: $id) {
    streamingEpisodes {
      title
      thumbnail
    }
  }
}`

type episodesData struct {
	Media *struct {
		StreamingEpisodes []struct {
			Title     *string `json:"title"`
			Thumbnail *string `json:"thumbnail"`
		} `json:"streamingEpisodes"`
	} `json:"Media"`
}

var episodeNumberRe = regexp.MustCompile(`(?i)^episode\s+(\d+)`)

// FetchEpisodeThumbnails fetches the episode thumbnail list for a remote
// show, retrying up to three times with exponential backoff. Entries with
// no thumbnail URL are silently dropped; the final failure surfaces the
// last error.
func (s *Sync) FetchEpisodeThumbnails(ctx context.Context, remoteID int) ([]domain.Thumbnail, error) {
	var raw json.RawMessage
	err := s.retryPolicy.Do(ctx, func(ctx context.Context) error {
		var err error
		raw, err = s.client.Execute(ctx, episodesQuery, map[string]interface{}{"id": remoteID}, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	var data episodesData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	if data.Media == nil {
		return nil, nil
	}

	var thumbnails []domain.Thumbnail
	for i, ep := range data.Media.StreamingEpisodes {
		if ep.Thumbnail == nil || *ep.Thumbnail == "" {
			continue
		}

		thumb := domain.Thumbnail{
			EpisodeNumber: i + 1,
			URL:           *ep.Thumbnail,
		}
		if ep.Title != nil {
			thumb.Title = *ep.Title
			if m := episodeNumberRe.FindStringSubmatch(*ep.Title); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil {
					thumb.EpisodeNumber = n
				}
			}
		}
		thumbnails = append(thumbnails, thumb)
	}

	s.logger.Debug("fetched episode thumbnails", "remoteID", remoteID, "count", len(thumbnails))
	return thumbnails, nil
}
