package domain

import "time"

// MediaListStatus is the tracking state of a show on the remote list service.
type MediaListStatus string

const (
	StatusCurrent   MediaListStatus = "CURRENT"
	StatusPlanning  MediaListStatus = "PLANNING"
	StatusCompleted MediaListStatus = "COMPLETED"
	StatusDropped   MediaListStatus = "DROPPED"
	StatusPaused    MediaListStatus = "PAUSED"
	StatusRepeating MediaListStatus = "REPEATING"
)

// AuthSession is the credential triple for the remote list service.
// Replaced wholesale on refresh, destroyed on logout.
type AuthSession struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// IsAuthenticated reports whether the session carries a usable token.
func (s AuthSession) IsAuthenticated() bool {
	return s.AccessToken != "" && time.Now().Before(s.ExpiresAt)
}

// IsAuthenticatedAt is IsAuthenticated with an injected clock, for callers
// that need deterministic expiry checks.
func (s AuthSession) IsAuthenticatedAt(now time.Time) bool {
	return s.AccessToken != "" && now.Before(s.ExpiresAt)
}

// TitleCandidates holds all known names for a remote show. The list service
// returns regional variants; any of them may match a local catalog title.
type TitleCandidates struct {
	Romaji   string   `json:"romaji,omitempty"`
	English  string   `json:"english,omitempty"`
	Native   string   `json:"native,omitempty"`
	Synonyms []string `json:"synonyms,omitempty"`
}

// All returns every non-empty candidate title.
func (t TitleCandidates) All() []string {
	titles := make([]string, 0, 3+len(t.Synonyms))
	for _, s := range []string{t.Romaji, t.English, t.Native} {
		if s != "" {
			titles = append(titles, s)
		}
	}
	for _, s := range t.Synonyms {
		if s != "" {
			titles = append(titles, s)
		}
	}
	return titles
}

// Preferred returns the English title, falling back to romaji.
func (t TitleCandidates) Preferred() string {
	if t.English != "" {
		return t.English
	}
	return t.Romaji
}

// RemoteLibraryItem is the reconciled view of one remote-tracked show.
// Session-scoped only; recomputed on every fetch, never persisted.
type RemoteLibraryItem struct {
	RemoteID      int
	Titles        TitleCandidates
	Status        MediaListStatus
	Progress      int
	TotalEpisodes *int
	Score         *float64
}

// Thumbnail is one episode thumbnail from the remote service.
type Thumbnail struct {
	EpisodeNumber int
	Title         string
	URL           string
}
