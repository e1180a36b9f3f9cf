package api

import "github.com/kaede-io/anibox/internal/domain"

// Wire types for the content API. Fields the provider omits or nulls fall
// back to zero values rather than failing the whole payload.

type itemDTO struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl"`
	Episodes *struct {
		Sub int `json:"sub"`
		Dub int `json:"dub"`
	} `json:"episodes"`
}

func (d itemDTO) catalogItem() domain.CatalogItem {
	item := domain.CatalogItem{
		ID:       d.ID,
		Title:    d.Title,
		ImageURL: d.ImageURL,
	}
	if d.Episodes != nil {
		item.EpisodeCounts = &domain.EpisodeCounts{
			Sub: d.Episodes.Sub,
			Dub: d.Episodes.Dub,
		}
	}
	return item
}

type searchResponse struct {
	Results []itemDTO `json:"results"`
}

func (r searchResponse) items() []domain.CatalogItem {
	items := make([]domain.CatalogItem, 0, len(r.Results))
	for _, d := range r.Results {
		if d.ID == "" {
			continue
		}
		items = append(items, d.catalogItem())
	}
	return items
}

type detailResponse struct {
	itemDTO
	Description string   `json:"description"`
	Genres      []string `json:"genres"`
	Status      string   `json:"status"`
	ReleaseYear int      `json:"releaseYear"`
}

func (r detailResponse) detail() domain.ShowDetail {
	return domain.ShowDetail{
		CatalogItem: r.catalogItem(),
		Description: r.Description,
		Genres:      r.Genres,
		Status:      r.Status,
		ReleaseYear: r.ReleaseYear,
	}
}

type episodeDTO struct {
	ID           string `json:"id"`
	Number       int    `json:"number"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnailUrl"`
	IsFiller     bool   `json:"isFiller"`
}

type episodesResponse struct {
	Episodes []episodeDTO `json:"episodes"`
}

func (r episodesResponse) episodes() []domain.Episode {
	episodes := make([]domain.Episode, 0, len(r.Episodes))
	for _, d := range r.Episodes {
		if d.ID == "" {
			continue
		}
		episodes = append(episodes, domain.Episode{
			ID:           d.ID,
			Number:       d.Number,
			Title:        d.Title,
			ThumbnailURL: d.ThumbnailURL,
			IsFiller:     d.IsFiller,
		})
	}
	return episodes
}

type sourcesResponse struct {
	Sources []struct {
		URL     string `json:"url"`
		Quality string `json:"quality"`
		IsM3U8  bool   `json:"isM3U8"`
	} `json:"sources"`
	Subtitles []struct {
		URL      string `json:"url"`
		Language string `json:"lang"`
	} `json:"subtitles"`
	Headers map[string]string `json:"headers"`
}

func (r sourcesResponse) sources() domain.StreamingSources {
	out := domain.StreamingSources{Headers: r.Headers}
	for _, s := range r.Sources {
		if s.URL == "" {
			continue
		}
		out.Sources = append(out.Sources, domain.StreamingSource{
			URL:     s.URL,
			Quality: s.Quality,
			IsM3U8:  s.IsM3U8,
		})
	}
	for _, s := range r.Subtitles {
		if s.URL == "" {
			continue
		}
		out.Subtitles = append(out.Subtitles, domain.SubtitleTrack{
			URL:      s.URL,
			Language: s.Language,
		})
	}
	return out
}

type homeResponse struct {
	Sections []struct {
		Title string    `json:"title"`
		Items []itemDTO `json:"items"`
	} `json:"sections"`
}

func (r homeResponse) sections() []domain.HomeSection {
	sections := make([]domain.HomeSection, 0, len(r.Sections))
	for _, s := range r.Sections {
		section := domain.HomeSection{Title: s.Title}
		for _, d := range s.Items {
			if d.ID == "" {
				continue
			}
			section.Items = append(section.Items, d.catalogItem())
		}
		sections = append(sections, section)
	}
	return sections
}
