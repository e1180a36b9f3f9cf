// Package cache is the disk-backed offline content cache: show detail
// entries, episode thumbnails, and the offline mirrors of bookmarks and
// watch progress. Caching is advisory throughout; read and write failures
// degrade to cache misses, never errors surfaced to callers.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kaede-io/anibox/internal/domain"
	"github.com/kaede-io/anibox/internal/retry"
)

const (
	detailsDir = "details"
	thumbsDir  = "thumbs"
	offlineDir = "offline"

	// DefaultMaxAge is the lazy-expiry horizon for every cache kind.
	DefaultMaxAge = 7 * 24 * time.Hour

	// DefaultMaxBytes is the advisory ceiling on total cache size. It is
	// reported by Stats and enforced only by explicit sweeps, never by an
	// automatic LRU pass.
	DefaultMaxBytes = 500 * 1024 * 1024
)

// Cache is the disk-backed content cache. All writes go through a temp-file
// plus rename, so a concurrent reader never observes a partial entry.
type Cache struct {
	dir      string
	maxAge   time.Duration
	maxBytes int64
	logger   *slog.Logger
	now      func() time.Time

	httpClient  *http.Client
	retryPolicy retry.Policy
	fanOutLimit int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// transientError reports whether a thumbnail download failure is worth
// another attempt. Bad status codes and malformed URLs are permanent.
func transientError(err error) bool {
	return errors.Is(err, domain.ErrNetwork)
}

// New creates a cache rooted at dir, creating the directory layout.
func New(dir string, maxAge time.Duration, maxBytes int64, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	for _, sub := range []string{detailsDir, thumbsDir, offlineDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		dir:      dir,
		maxAge:   maxAge,
		maxBytes: maxBytes,
		logger:   logger,
		now:      time.Now,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		retryPolicy: retry.DefaultPolicy(),
		fanOutLimit: 4,
		ctx:         ctx,
		cancel:      cancel,
	}
	c.retryPolicy.Retryable = transientError
	return c, nil
}

// Close cancels any in-flight thumbnail prefetches and waits for their
// goroutines to finish. The cache must not be used after Close.
func (c *Cache) Close() {
	c.cancel()
	c.wg.Wait()
}

// Put stores the detail entry for showID and kicks off a best-effort
// background prefetch of the thumbnail map. The prefetch never blocks the
// caller and its failures are logged, not surfaced.
func (c *Cache) Put(showID string, detail domain.ShowDetail, episodes []domain.Episode, thumbnailMap map[int]string) {
	entry := domain.OfflineCacheEntry{
		Detail:       detail,
		Episodes:     episodes,
		ThumbnailMap: thumbnailMap,
		CachedAt:     c.now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Error("failed to encode cache entry", "showID", showID, "error", err)
		return
	}
	if err := writeFileAtomic(c.detailPath(showID), data); err != nil {
		c.logger.Warn("failed to write cache entry", "showID", showID, "error", err)
		return
	}

	c.logger.Debug("cached show detail", "showID", showID, "episodes", len(episodes))

	if len(thumbnailMap) > 0 {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.PrefetchThumbnails(showID, thumbnailMap)
		}()
	}
}

// Get returns the cached entry for showID. An entry older than maxAge is
// deleted and reported as a miss; this lazy check is the only expiry
// trigger for detail entries.
func (c *Cache) Get(showID string) (*domain.OfflineCacheEntry, bool) {
	path := c.detailPath(showID)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry domain.OfflineCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("discarding undecodable cache entry", "showID", showID)
		os.Remove(path)
		return nil, false
	}

	if c.now().Sub(entry.CachedAt) > c.maxAge {
		c.logger.Debug("cache entry expired", "showID", showID, "cachedAt", entry.CachedAt)
		c.removeShow(showID)
		return nil, false
	}

	return &entry, true
}

// Remove deletes the detail entry and its thumbnail sub-namespace.
func (c *Cache) Remove(showID string) {
	c.removeShow(showID)
}

// GetThumbnail returns the cached thumbnail image for an episode, with the
// same lazy-expiry rule as Get.
func (c *Cache) GetThumbnail(showID string, episodeNumber int) ([]byte, bool) {
	path := c.thumbnailPath(showID, episodeNumber)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}

	if c.now().Sub(info.ModTime()) > c.maxAge {
		os.Remove(path)
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Size returns the total bytes on disk across all cache kinds.
func (c *Cache) Size() int64 {
	return c.Stats().TotalBytes
}

// Stats walks the cache directory and reports usage. O(entries), not cached.
func (c *Cache) Stats() domain.CacheStats {
	var stats domain.CacheStats

	filepath.Walk(c.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		stats.TotalBytes += info.Size()
		return nil
	})

	if entries, err := os.ReadDir(filepath.Join(c.dir, detailsDir)); err == nil {
		stats.ShowCount = len(entries)
	}
	filepath.Walk(filepath.Join(c.dir, thumbsDir), func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		stats.ImageCount++
		return nil
	})

	return stats
}

// OverBudget reports whether the cache exceeds its advisory byte ceiling.
func (c *Cache) OverBudget() bool {
	return c.Size() > c.maxBytes
}

// SweepExpired deletes every entry older than maxAge across all kinds:
// details, thumbnails, and the offline mirrors. Intended to run at low
// frequency (app foreground checkpoints), not per operation.
func (c *Cache) SweepExpired() int {
	removed := 0
	cutoff := c.now().Add(-c.maxAge)

	// Detail entries carry their timestamp in the payload
	if entries, err := os.ReadDir(filepath.Join(c.dir, detailsDir)); err == nil {
		for _, e := range entries {
			path := filepath.Join(c.dir, detailsDir, e.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			var entry domain.OfflineCacheEntry
			if err := json.Unmarshal(data, &entry); err != nil || entry.CachedAt.Before(cutoff) {
				showID := e.Name()
				if ext := filepath.Ext(showID); ext != "" {
					showID = showID[:len(showID)-len(ext)]
				}
				c.removeShow(showID)
				removed++
			}
		}
	}

	// Thumbnails and mirrors expire by file modification time
	for _, sub := range []string{thumbsDir, offlineDir} {
		filepath.Walk(filepath.Join(c.dir, sub), func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return nil
			}
			if info.ModTime().Before(cutoff) {
				os.Remove(path)
				removed++
			}
			return nil
		})
	}

	if removed > 0 {
		c.logger.Info("swept expired cache entries", "removed", removed)
	}
	return removed
}

// ClearAll wipes the cache unconditionally and recreates the layout.
func (c *Cache) ClearAll() error {
	for _, sub := range []string{detailsDir, thumbsDir, offlineDir} {
		path := filepath.Join(c.dir, sub)
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return err
		}
	}
	c.logger.Info("cleared cache")
	return nil
}

func (c *Cache) detailPath(showID string) string {
	return filepath.Join(c.dir, detailsDir, sanitize(showID)+".json")
}

func (c *Cache) thumbnailPath(showID string, episodeNumber int) string {
	return filepath.Join(c.dir, thumbsDir, sanitize(showID), fmt.Sprintf("ep-%d.img", episodeNumber))
}

func (c *Cache) removeShow(showID string) {
	os.Remove(c.detailPath(showID))
	os.RemoveAll(filepath.Join(c.dir, thumbsDir, sanitize(showID)))
}

// sanitize makes a show id safe for use as a file name.
func sanitize(id string) string {
	out := []rune(id)
	for i, r := range out {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			out[i] = '_'
		}
	}
	return string(out)
}

// writeFileAtomic writes via a temp file and rename so concurrent readers
// never see a partial write.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
