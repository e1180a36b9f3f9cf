package progress

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/kaede-io/anibox/internal/domain"
	"github.com/kaede-io/anibox/internal/store"
)

const (
	keyProgressMap      = "progress:map"
	keyContinueWatching = "progress:continue"

	// maxContinueWatching caps the continue-watching projection.
	maxContinueWatching = 20

	// finishedGracePeriod is how long a completed episode stays in the
	// continue-watching projection before cleanup drops it. The full
	// history keeps the record either way.
	finishedGracePeriod = 24 * time.Hour
)

// Tracker stores per-(show, episode) playback positions and derives the
// bounded continue-watching projection. The full map and the projection are
// persisted as two separate blobs.
type Tracker struct {
	kv     domain.KeyValueStore
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	records  map[string]domain.WatchProgressRecord // keyed by showID|episodeID
	watching []domain.WatchProgressRecord          // most-recent-first, capped
}

// NewTracker creates a tracker, loading any persisted state.
func NewTracker(kv domain.KeyValueStore, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}

	t := &Tracker{
		kv:      kv,
		logger:  logger,
		now:     time.Now,
		records: make(map[string]domain.WatchProgressRecord),
	}

	if store.GetJSON(kv, keyProgressMap, &t.records) {
		logger.Debug("loaded watch progress", "count", len(t.records))
	}
	if t.records == nil {
		t.records = make(map[string]domain.WatchProgressRecord)
	}
	store.GetJSON(kv, keyContinueWatching, &t.watching)

	return t
}

// SaveProgress upserts the record for (showID, episodeID) and recomputes the
// continue-watching projection. Saves are last-write-wins by timestamp: an
// out-of-order save older than the stored record is dropped.
func (t *Tracker) SaveProgress(showID, episodeID string, episodeNumber int, position, duration float64, title, thumbnailURL string) {
	t.SaveRecord(domain.WatchProgressRecord{
		ShowID:          showID,
		EpisodeID:       episodeID,
		EpisodeNumber:   episodeNumber,
		PositionSeconds: position,
		DurationSeconds: duration,
		LastUpdated:     t.now(),
		Title:           title,
		ThumbnailURL:    thumbnailURL,
	})
}

// SaveRecord upserts a fully-formed record, honoring last-write-wins.
func (t *Tracker) SaveRecord(rec domain.WatchProgressRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := rec.Key()
	if existing, ok := t.records[key]; ok && existing.LastUpdated.After(rec.LastUpdated) {
		t.logger.Debug("dropping stale progress save", "key", key)
		return
	}

	t.records[key] = rec

	// The slot belongs to the show's newest record. A merged-in record
	// older than the current slot leaves the projection untouched.
	if best, ok := t.bestRecordForShow(rec.ShowID); ok && best.Key() == key {
		t.setSlot(rec)
	}

	t.persist()
}

// GetProgress returns the record for a (show, episode) pair.
func (t *Tracker) GetProgress(showID, episodeID string) (domain.WatchProgressRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[domain.ProgressKey(showID, episodeID)]
	return rec, ok
}

// ContinueWatching returns the projection: at most one entry per show,
// most-recently-updated first, capped at 20.
func (t *Tracker) ContinueWatching() []domain.WatchProgressRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]domain.WatchProgressRecord, len(t.watching))
	copy(out, t.watching)
	return out
}

// AllRecords returns the full progress history.
func (t *Tracker) AllRecords() []domain.WatchProgressRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]domain.WatchProgressRecord, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, rec)
	}
	return out
}

// RemoveProgress deletes the record from the full map. If that record held
// the show's continue-watching slot, the slot is re-derived from the show's
// next most recent record, or dropped when none remains.
func (t *Tracker) RemoveProgress(showID, episodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := domain.ProgressKey(showID, episodeID)
	if _, ok := t.records[key]; !ok {
		return
	}
	delete(t.records, key)

	for i, r := range t.watching {
		if r.ShowID != showID || r.EpisodeID != episodeID {
			continue
		}
		if next, ok := t.bestRecordForShow(showID); ok {
			t.watching[i] = next
			t.sortAndTruncate()
		} else {
			t.watching = append(t.watching[:i], t.watching[i+1:]...)
		}
		break
	}

	t.persist()
}

// CleanupFinishedEpisodes drops completed records older than the grace
// period from the continue-watching projection. The full history is left
// untouched.
func (t *Tracker) CleanupFinishedEpisodes() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-finishedGracePeriod)
	kept := t.watching[:0]
	removed := 0
	for _, r := range t.watching {
		if r.IsCompleted() && r.LastUpdated.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	t.watching = kept

	if removed > 0 {
		t.logger.Info("cleaned up finished episodes", "removed", removed)
		t.persist()
	}
	return removed
}

// setSlot replaces the show's projection slot with rec and restores the
// newest-first ordering.
func (t *Tracker) setSlot(rec domain.WatchProgressRecord) {
	next := make([]domain.WatchProgressRecord, 0, len(t.watching)+1)
	next = append(next, rec)
	for _, r := range t.watching {
		if r.ShowID == rec.ShowID {
			continue
		}
		next = append(next, r)
	}
	t.watching = next
	t.sortAndTruncate()
}

// sortAndTruncate re-establishes the projection invariant: sorted by
// LastUpdated descending, at most 20 entries. The stable sort keeps the
// latest save first when timestamps tie.
func (t *Tracker) sortAndTruncate() {
	sort.SliceStable(t.watching, func(i, j int) bool {
		return t.watching[i].LastUpdated.After(t.watching[j].LastUpdated)
	})
	if len(t.watching) > maxContinueWatching {
		t.watching = t.watching[:maxContinueWatching]
	}
}

// bestRecordForShow returns the show's most recently updated record.
func (t *Tracker) bestRecordForShow(showID string) (domain.WatchProgressRecord, bool) {
	var best domain.WatchProgressRecord
	found := false
	for _, rec := range t.records {
		if rec.ShowID != showID {
			continue
		}
		if !found || rec.LastUpdated.After(best.LastUpdated) {
			best = rec
			found = true
		}
	}
	return best, found
}

func (t *Tracker) persist() {
	if err := store.SetJSON(t.kv, keyProgressMap, t.records); err != nil {
		t.logger.Error("failed to persist progress map", "error", err)
	}
	if err := store.SetJSON(t.kv, keyContinueWatching, t.watching); err != nil {
		t.logger.Error("failed to persist continue watching", "error", err)
	}
}
