package cache

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/kaede-io/anibox/internal/domain"
)

// Offline mirrors are flat snapshots of bookmark and progress state written
// for offline bootstrap. Reads are best-effort: any read or decode failure
// yields an empty collection, never an error.

const (
	mirrorBookmarksFile = "bookmarks.json"
	mirrorProgressFile  = "progress.json"
)

// MirrorBookmarks writes the bookmark snapshot for offline bootstrap.
func (c *Cache) MirrorBookmarks(items []domain.CatalogItem) {
	c.writeMirror(mirrorBookmarksFile, items)
}

// MirrorWatchProgress writes the watch-progress snapshot for offline bootstrap.
func (c *Cache) MirrorWatchProgress(records []domain.WatchProgressRecord) {
	c.writeMirror(mirrorProgressFile, records)
}

// ReadOfflineBookmarks returns the mirrored bookmarks, empty on any failure.
func (c *Cache) ReadOfflineBookmarks() []domain.CatalogItem {
	var items []domain.CatalogItem
	if !c.readMirror(mirrorBookmarksFile, &items) {
		return nil
	}
	return items
}

// ReadOfflineProgress returns the mirrored progress records, empty on any failure.
func (c *Cache) ReadOfflineProgress() []domain.WatchProgressRecord {
	var records []domain.WatchProgressRecord
	if !c.readMirror(mirrorProgressFile, &records) {
		return nil
	}
	return records
}

func (c *Cache) writeMirror(name string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("failed to encode offline mirror", "name", name, "error", err)
		return
	}
	if err := writeFileAtomic(filepath.Join(c.dir, offlineDir, name), data); err != nil {
		c.logger.Warn("failed to write offline mirror", "name", name, "error", err)
	}
}

// readMirror reports whether the mirror decoded cleanly. A decode error may
// leave dest partially populated, so callers must discard dest when false.
func (c *Cache) readMirror(name string, dest interface{}) bool {
	data, err := os.ReadFile(filepath.Join(c.dir, offlineDir, name))
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Warn("discarding undecodable offline mirror", "name", name)
		return false
	}
	return true
}
