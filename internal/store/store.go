package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kaede-io/anibox/internal/domain"
	bolt "go.etcd.io/bbolt"
)

var bucketKV = []byte("kv")

// BoltStore implements domain.KeyValueStore using BoltDB.
// Writes go through a single update transaction per key, so readers never
// observe a partial value.
type BoltStore struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path reads (promoted on access)
	cache map[string][]byte
}

// NewBoltStore opens (or creates) the database under dataDir. An empty
// dataDir yields a memory-only store with no persistence, used by tests.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if dataDir == "" {
		return &BoltStore{cache: make(map[string][]byte)}, nil
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataDir, "anibox.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketKV)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, cache: make(map[string][]byte)}, nil
}

func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the value for key, or (nil, false) on a miss.
func (s *BoltStore) Get(key string) ([]byte, bool) {
	// Check memory cache first
	s.mu.RLock()
	if data, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return data, true
	}
	s.mu.RUnlock()

	if s.db == nil {
		return nil, false
	}

	// Read from BoltDB
	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKV)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})

	if data == nil {
		return nil, false
	}

	// Promote to memory cache
	s.mu.Lock()
	s.cache[key] = data
	s.mu.Unlock()

	return data, true
}

// Set writes the value for key.
func (s *BoltStore) Set(key string, value []byte) error {
	data := make([]byte, len(value))
	copy(data, value)

	// Update memory cache
	s.mu.Lock()
	s.cache[key] = data
	s.mu.Unlock()

	if s.db == nil {
		return nil // Memory-only mode
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKV)
		return b.Put([]byte(key), data)
	})
}

// Remove deletes the key. Removing a missing key is not an error.
func (s *BoltStore) Remove(key string) error {
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKV)
		if b != nil {
			return b.Delete([]byte(key))
		}
		return nil
	})
}

// GetAll returns every stored key with the given prefix, in key order.
func (s *BoltStore) GetAll(prefix string) ([]domain.KeyValue, error) {
	if s.db == nil {
		// Memory-only mode scans the cache
		s.mu.RLock()
		defer s.mu.RUnlock()

		var entries []domain.KeyValue
		for k, v := range s.cache {
			if strings.HasPrefix(k, prefix) {
				entries = append(entries, domain.KeyValue{Key: k, Value: v})
			}
		}
		sortEntries(entries)
		return entries, nil
	}

	var entries []domain.KeyValue
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKV)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		prefixBytes := []byte(prefix)
		for k, v := c.Seek(prefixBytes); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
			value := make([]byte, len(v))
			copy(value, v)
			entries = append(entries, domain.KeyValue{Key: string(k), Value: value})
		}
		return nil
	})
	return entries, err
}

func sortEntries(entries []domain.KeyValue) {
	for i := 1; i < len(entries); i++ {
		j := i
		for j > 0 && entries[j].Key < entries[j-1].Key {
			entries[j], entries[j-1] = entries[j-1], entries[j]
			j--
		}
	}
}

// === Typed helpers ===

// GetJSON decodes the value for key into dest. Returns false on a miss or
// when the stored value does not decode.
func GetJSON(s domain.KeyValueStore, key string, dest interface{}) bool {
	data, ok := s.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

// SetJSON encodes value and stores it under key.
func SetJSON(s domain.KeyValueStore, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Set(key, data)
}
