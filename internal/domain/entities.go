package domain

import (
	"fmt"
	"time"
)

// EpisodeCounts holds per-audio-track episode totals for a show.
type EpisodeCounts struct {
	Sub int `json:"sub"`
	Dub int `json:"dub"`
}

// CatalogItem is the external identity of a piece of content.
// ID is opaque, provider-assigned and stable; items are immutable once fetched.
type CatalogItem struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	ImageURL      string         `json:"imageUrl,omitempty"`
	EpisodeCounts *EpisodeCounts `json:"episodeCounts,omitempty"`
}

// Episode is one entry of a show's episode list.
type Episode struct {
	ID           string `json:"id"`
	Number       int    `json:"number"`
	Title        string `json:"title,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	IsFiller     bool   `json:"isFiller,omitempty"`
}

// ShowDetail is the full detail payload for a catalog item.
type ShowDetail struct {
	CatalogItem
	Description string   `json:"description,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Status      string   `json:"status,omitempty"`
	ReleaseYear int      `json:"releaseYear,omitempty"`
}

// completionThreshold is the fraction of an episode that counts as finished.
const completionThreshold = 0.9

// WatchProgressRecord tracks playback position for one (show, episode) pair.
type WatchProgressRecord struct {
	ShowID          string    `json:"showId"`
	EpisodeID       string    `json:"episodeId"`
	EpisodeNumber   int       `json:"episodeNumber"`
	PositionSeconds float64   `json:"positionSeconds"`
	DurationSeconds float64   `json:"durationSeconds"`
	LastUpdated     time.Time `json:"lastUpdated"`

	// Denormalized for rendering "continue watching" without a catalog lookup.
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// Key returns the composite map key for this record.
func (r WatchProgressRecord) Key() string {
	return ProgressKey(r.ShowID, r.EpisodeID)
}

// ProgressKey builds the composite key for a (show, episode) pair.
func ProgressKey(showID, episodeID string) string {
	return showID + "|" + episodeID
}

// IsCompleted reports whether the episode counts as finished (>= 90% watched).
func (r WatchProgressRecord) IsCompleted() bool {
	if r.DurationSeconds <= 0 {
		return false
	}
	return r.PositionSeconds/r.DurationSeconds >= completionThreshold
}

// RemainingSeconds returns how much of the episode is left to watch.
func (r WatchProgressRecord) RemainingSeconds() float64 {
	remaining := r.DurationSeconds - r.PositionSeconds
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FormattedRemaining returns the remaining time in a human-readable format.
func (r WatchProgressRecord) FormattedRemaining() string {
	d := time.Duration(r.RemainingSeconds()) * time.Second
	h := int(d.Hours())
	mins := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm left", h, mins)
	}
	return fmt.Sprintf("%dm left", mins)
}

// OfflineCacheEntry is one cached show detail with its episode snapshot.
type OfflineCacheEntry struct {
	Detail       ShowDetail     `json:"detail"`
	Episodes     []Episode      `json:"episodes"`
	ThumbnailMap map[int]string `json:"thumbnailMap,omitempty"` // episode number -> thumbnail URL
	CachedAt     time.Time      `json:"cachedAt"`
}

// CacheStats summarizes on-disk cache usage.
type CacheStats struct {
	TotalBytes int64
	ShowCount  int
	ImageCount int
}

// BookmarkEventKind distinguishes bookmark change events.
type BookmarkEventKind int

const (
	BookmarkAdded BookmarkEventKind = iota
	BookmarkRemoved
)

// String returns a human-readable representation of the event kind.
func (k BookmarkEventKind) String() string {
	switch k {
	case BookmarkAdded:
		return "added"
	case BookmarkRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// BookmarkEvent is delivered to subscribers on every bookmark mutation.
type BookmarkEvent struct {
	Kind BookmarkEventKind
	ID   string
}

// StreamingSource is one playable stream variant for an episode.
type StreamingSource struct {
	URL     string `json:"url"`
	Quality string `json:"quality,omitempty"`
	IsM3U8  bool   `json:"isM3U8,omitempty"`
}

// SubtitleTrack is a cue-timed text track reference.
type SubtitleTrack struct {
	URL      string `json:"url"`
	Language string `json:"lang"`
}

// StreamingSources is the full playback payload for an episode.
type StreamingSources struct {
	Sources   []StreamingSource `json:"sources"`
	Subtitles []SubtitleTrack   `json:"subtitles,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// HomeSection is one row of the provider's home feed.
type HomeSection struct {
	Title string        `json:"title"`
	Items []CatalogItem `json:"items"`
}
