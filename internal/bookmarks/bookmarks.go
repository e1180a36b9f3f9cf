package bookmarks

import (
	"log/slog"
	"sync"

	"github.com/kaede-io/anibox/internal/domain"
	"github.com/kaede-io/anibox/internal/store"
)

const storeKey = "bookmarks"

// Subscriber receives a change event after every bookmark mutation.
type Subscriber func(event domain.BookmarkEvent)

// Store holds the user's saved shows as an ordered, id-unique list.
// The whole list is persisted as one blob on every mutation.
type Store struct {
	kv     domain.KeyValueStore
	logger *slog.Logger

	mu    sync.RWMutex
	items []domain.CatalogItem

	subMu  sync.RWMutex
	subs   map[int]Subscriber
	nextID int
}

// NewStore creates a bookmark store, loading any persisted list.
func NewStore(kv domain.KeyValueStore, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		kv:     kv,
		logger: logger,
		subs:   make(map[int]Subscriber),
	}

	if store.GetJSON(kv, storeKey, &s.items) {
		logger.Debug("loaded bookmarks", "count", len(s.items))
	}

	return s
}

// Toggle adds the item if absent, removes it if present. Returns the event
// that was applied. Membership is by ID; insertion order is append-based.
func (s *Store) Toggle(item domain.CatalogItem) domain.BookmarkEvent {
	s.mu.Lock()

	var event domain.BookmarkEvent
	if idx := s.indexOf(item.ID); idx >= 0 {
		s.items = append(s.items[:idx], s.items[idx+1:]...)
		event = domain.BookmarkEvent{Kind: domain.BookmarkRemoved, ID: item.ID}
	} else {
		s.items = append(s.items, item)
		event = domain.BookmarkEvent{Kind: domain.BookmarkAdded, ID: item.ID}
	}

	if err := store.SetJSON(s.kv, storeKey, s.items); err != nil {
		s.logger.Error("failed to persist bookmarks", "error", err)
	}
	s.mu.Unlock()

	s.logger.Debug("bookmark toggled", "id", item.ID, "kind", event.Kind.String())
	s.notify(event)
	return event
}

// Contains reports whether the item is bookmarked.
func (s *Store) Contains(item domain.CatalogItem) bool {
	return s.ContainsID(item.ID)
}

// ContainsID reports whether a show id is bookmarked.
func (s *Store) ContainsID(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOf(id) >= 0
}

// List returns the bookmarks in insertion order.
func (s *Store) List() []domain.CatalogItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.CatalogItem, len(s.items))
	copy(out, s.items)
	return out
}

// Subscribe registers a callback for bookmark change events and returns an
// id usable with Unsubscribe. Events are dispatched synchronously after the
// mutation has been persisted.
func (s *Store) Subscribe(fn Subscriber) int {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextID++
	s.subs[s.nextID] = fn
	return s.nextID
}

// Unsubscribe removes a previously registered callback.
func (s *Store) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	delete(s.subs, id)
}

func (s *Store) notify(event domain.BookmarkEvent) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for _, fn := range s.subs {
		fn(event)
	}
}

// indexOf returns the position of id in the list, or -1. O(n) is fine here;
// the list is user-scale (tens to low hundreds).
func (s *Store) indexOf(id string) int {
	for i, item := range s.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}
