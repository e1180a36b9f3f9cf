package domain

// KeyValueStore is durable process-wide key/value persistence. Every other
// store persists its whole collection as one blob per key, so per-key
// atomicity here gives them per-mutation atomicity for free.
type KeyValueStore interface {
	// Get returns the value for key, or (nil, false) on a miss.
	Get(key string) ([]byte, bool)

	// Set writes the value for key. The write is atomic per key; readers
	// never observe a partial value.
	Set(key string, value []byte) error

	// Remove deletes the key. Removing a missing key is not an error.
	Remove(key string) error

	// GetAll returns every stored key with the given prefix, in key order.
	GetAll(prefix string) ([]KeyValue, error)

	// Close releases the underlying database.
	Close() error
}

// KeyValue is one entry returned by a prefix scan.
type KeyValue struct {
	Key   string
	Value []byte
}
