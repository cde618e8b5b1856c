package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrKeyNotFound is returned when a key is not present or has expired.
var ErrKeyNotFound = errors.New("key not found in cache")

// Cache is a TTL key-value cache. The chat agent uses it for the rendered
// graph schema (so Cypher generation does not refetch it every turn) and
// for utterance embeddings.
type Cache interface {
	// Set stores a value with a TTL.
	Set(key string, value []byte, ttl time.Duration) error
	// Get retrieves a value.
	Get(key string) ([]byte, error)
	// Delete removes a value, forcing the next Get to miss. This is the
	// explicit invalidation path for the schema entry.
	Delete(key string) error
	// Close closes the cache.
	Close() error
}

// SchemaKey is the cache key for the rendered graph schema.
const SchemaKey = "graph:schema"

// EmbeddingKey derives a cache key for an utterance embedding.
func EmbeddingKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embedding:" + hex.EncodeToString(sum[:])
}

// BadgerCache implements Cache using BadgerDB.
type BadgerCache struct {
	db *badger.DB
}

// NewBadgerCache opens a BadgerDB-backed cache at path.
func NewBadgerCache(path string) (*BadgerCache, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // badger's own logger is noisy at info level

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	return &BadgerCache{db: db}, nil
}

// Set stores a value with a TTL.
func (c *BadgerCache) Set(key string, value []byte, ttl time.Duration) error {
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Get retrieves a value.
func (c *BadgerCache) Get(key string) ([]byte, error) {
	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrKeyNotFound
			}
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Delete removes a value.
func (c *BadgerCache) Delete(key string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Close closes the cache.
func (c *BadgerCache) Close() error {
	return c.db.Close()
}
