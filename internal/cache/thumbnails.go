package cache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/kaede-io/anibox/internal/domain"
)

// PrefetchThumbnails downloads each thumbnail in the map into the show's
// sub-namespace. Downloads fan out with a bounded concurrency and each item
// fails independently; one bad URL never aborts the batch. Errors are logged
// and swallowed since thumbnail caching is advisory. Closing the cache
// cancels the batch.
func (c *Cache) PrefetchThumbnails(showID string, thumbnailMap map[int]string) {
	showDir := filepath.Join(c.dir, thumbsDir, sanitize(showID))
	if err := os.MkdirAll(showDir, 0755); err != nil {
		c.logger.Warn("failed to create thumbnail directory", "showID", showID, "error", err)
		return
	}

	g, ctx := errgroup.WithContext(c.ctx)
	g.SetLimit(c.fanOutLimit)

	for episodeNumber, url := range thumbnailMap {
		if url == "" {
			continue
		}
		g.Go(func() error {
			if err := c.downloadThumbnail(ctx, showID, episodeNumber, url); err != nil {
				c.logger.Debug("thumbnail download failed",
					"showID", showID, "episode", episodeNumber, "error", err)
			}
			return nil // Per-item failures never abort the batch
		})
	}
	g.Wait()
}

// downloadThumbnail fetches one image with the shared retry policy and
// writes it atomically into the cache.
func (c *Cache) downloadThumbnail(ctx context.Context, showID string, episodeNumber int, url string) error {
	var body []byte
	err := c.retryPolicy.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrNetwork, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return err
	}

	return writeFileAtomic(c.thumbnailPath(showID, episodeNumber), body)
}
