package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kaede-io/anibox/internal/cache"
	"github.com/kaede-io/anibox/internal/domain"
)

// ContentAPI is the surface of the streaming content client the app uses.
type ContentAPI interface {
	Search(ctx context.Context, query string) ([]domain.CatalogItem, error)
	Details(ctx context.Context, showID string) (*domain.ShowDetail, error)
	Episodes(ctx context.Context, showID string) ([]domain.Episode, error)
	StreamingSources(ctx context.Context, episodeID, lang, server string) (*domain.StreamingSources, error)
	Home(ctx context.Context) ([]domain.HomeSection, error)
}

// ThumbnailResolver maps a local title to a remote catalog entry and fetches
// its episode thumbnails. Nil disables thumbnail enrichment.
type ThumbnailResolver interface {
	MatchLocalTitle(ctx context.Context, localTitle string) (int, bool)
	FetchEpisodeThumbnails(ctx context.Context, remoteID int) ([]domain.Thumbnail, error)
}

// App is the facade a front end talks to. It routes between the content API
// and the offline cache, supersedes stale in-flight requests, and enriches
// episode lists with thumbnails from the list service.
type App struct {
	content   ContentAPI
	thumbs    ThumbnailResolver
	cache     *cache.Cache
	local     *LocalSearch
	supersede *Superseder
	logger    *slog.Logger
}

// NewApp creates the facade. thumbs may be nil when no list service is
// configured.
func NewApp(content ContentAPI, thumbs ThumbnailResolver, c *cache.Cache, local *LocalSearch, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		content:   content,
		thumbs:    thumbs,
		cache:     c,
		local:     local,
		supersede: NewSuperseder(),
		logger:    logger,
	}
}

// Search queries the content API, falling back to the local catalog when the
// server is unreachable. A new search supersedes the previous one.
func (a *App) Search(ctx context.Context, query string) ([]domain.CatalogItem, error) {
	ctx, done := a.supersede.Begin(ctx, "search")
	defer done()

	items, err := a.content.Search(ctx, query)
	if err == nil {
		return items, nil
	}
	if !errors.Is(err, domain.ErrNetwork) {
		return nil, err
	}

	a.logger.Debug("search falling back to local catalog", "error", err)
	var local []domain.CatalogItem
	for _, r := range a.local.Filter(query) {
		local = append(local, r.Item)
	}
	return local, nil
}

// Details loads a show's detail and episode list. Online results are cached
// (with a best-effort thumbnail map, triggering the async prefetch); when
// the server is unreachable the cached entry is served instead. A newer load
// for the same show supersedes this one, and loads for different shows run
// independently.
func (a *App) Details(ctx context.Context, showID string) (*domain.OfflineCacheEntry, error) {
	ctx, done := a.supersede.Begin(ctx, "detail:"+showID)
	defer done()

	detail, err := a.content.Details(ctx, showID)
	if err != nil {
		if errors.Is(err, domain.ErrNetwork) {
			if entry, ok := a.cache.Get(showID); ok {
				a.logger.Debug("serving cached details", "showID", showID)
				return entry, nil
			}
		}
		return nil, err
	}

	episodes, err := a.content.Episodes(ctx, showID)
	if err != nil {
		return nil, err
	}

	thumbnailMap := a.resolveThumbnails(ctx, detail.Title, episodes)
	a.cache.Put(showID, *detail, episodes, thumbnailMap)

	return &domain.OfflineCacheEntry{
		Detail:       *detail,
		Episodes:     episodes,
		ThumbnailMap: thumbnailMap,
	}, nil
}

// resolveThumbnails builds the episode-number to thumbnail-URL map via the
// list service. Any failure just means no thumbnails.
func (a *App) resolveThumbnails(ctx context.Context, title string, episodes []domain.Episode) map[int]string {
	if a.thumbs == nil || len(episodes) == 0 {
		return nil
	}

	remoteID, ok := a.thumbs.MatchLocalTitle(ctx, title)
	if !ok {
		return nil
	}

	thumbs, err := a.thumbs.FetchEpisodeThumbnails(ctx, remoteID)
	if err != nil {
		a.logger.Warn("thumbnail fetch failed", "title", title, "error", err)
		return nil
	}
	if len(thumbs) == 0 {
		return nil
	}

	thumbnailMap := make(map[int]string, len(thumbs))
	for _, t := range thumbs {
		thumbnailMap[t.EpisodeNumber] = t.URL
	}
	return thumbnailMap
}

// StreamingSources fetches the playable streams for an episode.
func (a *App) StreamingSources(ctx context.Context, episodeID, lang, server string) (*domain.StreamingSources, error) {
	return a.content.StreamingSources(ctx, episodeID, lang, server)
}

// Home fetches the provider home feed, or assembles one from the offline
// mirrors when the server is unreachable.
func (a *App) Home(ctx context.Context) ([]domain.HomeSection, error) {
	sections, err := a.content.Home(ctx)
	if err == nil {
		return sections, nil
	}
	if !errors.Is(err, domain.ErrNetwork) {
		return nil, err
	}

	a.logger.Debug("home falling back to offline mirrors", "error", err)
	return a.offlineHome(), nil
}

// offlineHome builds home sections from the mirrored local state.
func (a *App) offlineHome() []domain.HomeSection {
	var sections []domain.HomeSection

	var watching []domain.CatalogItem
	seen := make(map[string]bool)
	for _, rec := range a.cache.ReadOfflineProgress() {
		if seen[rec.ShowID] {
			continue
		}
		seen[rec.ShowID] = true
		watching = append(watching, domain.CatalogItem{
			ID:       rec.ShowID,
			Title:    rec.Title,
			ImageURL: rec.ThumbnailURL,
		})
	}
	if len(watching) > 0 {
		sections = append(sections, domain.HomeSection{Title: "Continue Watching", Items: watching})
	}

	if marked := a.cache.ReadOfflineBookmarks(); len(marked) > 0 {
		sections = append(sections, domain.HomeSection{Title: "Bookmarks", Items: marked})
	}
	return sections
}

// Close cancels any in-flight requests.
func (a *App) Close() {
	a.supersede.CancelAll()
}
