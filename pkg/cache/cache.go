// Package cache memoizes analysis results. Entries live in an in-memory LRU
// and, optionally, in a bbolt file under the workspace so that results
// survive restarts.
//
// Keys embed the exact text they were computed from (see Key), so entries
// are never invalidated explicitly: an edit produces a different key.
package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	bolt "go.etcd.io/bbolt"
)

const (
	// DBFileName is the bbolt file created in Config.Dir.
	DBFileName = "analysis.db"

	bucketPrefix = "analysis-v"
)

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("cache is closed")

// Config configures a Cache.
type Config struct {
	// MaxEntries bounds the in-memory tier. Default 100.
	MaxEntries int
	// Dir holds the persisted tier. Empty disables persistence.
	Dir string
	// MaxAge expires persisted entries. Zero keeps them forever.
	MaxAge time.Duration
	// Version names the persisted bucket. Entries written under another
	// version are discarded on open.
	Version string
	Logger  *slog.Logger
}

// DefaultConfig returns the in-memory defaults.
func DefaultConfig() Config {
	return Config{MaxEntries: 100, MaxAge: 24 * time.Hour, Version: "1"}
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
	EntryCount int     `json:"entry_count"`
	// PersistedEntries counts entries in the bbolt tier.
	PersistedEntries int   `json:"persisted_entries"`
	Evictions        int64 `json:"evictions"`
}

type record[V any] struct {
	CreatedAt time.Time `json:"created_at"`
	Value     V         `json:"value"`
}

// Cache is a two-tier memo from key to V.
//
// **Thread Safety:** safe for concurrent use.
type Cache[V any] struct {
	mem    *lru.Cache[string, V]
	db     *bolt.DB
	bucket []byte
	maxAge time.Duration
	now    func() time.Time

	mu     sync.RWMutex
	closed bool

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	logger *slog.Logger
}

// New opens a cache. With a Dir it creates the directory and the bbolt file
// and drops buckets left by other versions.
func New[V any](cfg Config) (*Cache[V], error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultConfig().MaxEntries
	}
	if cfg.Version == "" {
		cfg.Version = DefaultConfig().Version
	}

	c := &Cache[V]{
		bucket: []byte(bucketPrefix + cfg.Version),
		maxAge: cfg.MaxAge,
		now:    time.Now,
		logger: cfg.Logger,
	}

	mem, err := lru.NewWithEvict(cfg.MaxEntries, func(string, V) {
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	c.mem = mem

	if cfg.Dir == "" {
		return c, nil
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	path := filepath.Join(cfg.Dir, DBFileName)
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database %s: %w", path, err)
	}
	if err := c.prepare(db); err != nil {
		db.Close()
		return nil, err
	}
	c.db = db
	c.logger.Debug("opened persisted cache", "path", path, "bucket", string(c.bucket))
	return c, nil
}

// prepare creates the current bucket and deletes stale versions.
func (c *Cache[V]) prepare(db *bolt.DB) error {
	return db.Update(func(tx *bolt.Tx) error {
		var stale [][]byte
		err := tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			if bytes.HasPrefix(name, []byte(bucketPrefix)) && !bytes.Equal(name, c.bucket) {
				stale = append(stale, append([]byte(nil), name...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, name := range stale {
			c.logger.Info("discarding cache bucket from another version", "bucket", string(name))
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}
		_, err = tx.CreateBucketIfNotExists(c.bucket)
		return err
	})
}

// Get returns the value stored under key.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return zero, false
	}

	if v, ok := c.mem.Get(key); ok {
		c.hits.Add(1)
		return v, true
	}
	if c.db != nil {
		if v, ok := c.load(key); ok {
			c.mem.Add(key, v)
			c.hits.Add(1)
			return v, true
		}
	}
	c.misses.Add(1)
	return zero, false
}

func (c *Cache[V]) load(key string) (V, bool) {
	var rec record[V]
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(c.bucket)
		if b == nil {
			return nil
		}
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		c.logger.Warn("dropping unreadable cache entry", "key", key, "error", err)
		c.delete(key)
		return rec.Value, false
	}
	if !found {
		return rec.Value, false
	}
	if c.maxAge > 0 && c.now().Sub(rec.CreatedAt) > c.maxAge {
		c.delete(key)
		var zero V
		return zero, false
	}
	return rec.Value, true
}

func (c *Cache[V]) delete(key string) {
	err := c.db.Update(func(tx *bolt.Tx) error {
		if b := tx.Bucket(c.bucket); b != nil {
			return b.Delete([]byte(key))
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("failed to delete cache entry", "key", key, "error", err)
	}
}

// Put stores value under key in both tiers. A persistence failure is
// returned but the in-memory entry is kept.
func (c *Cache[V]) Put(key string, value V) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}

	c.mem.Add(key, value)
	if c.db == nil {
		return nil
	}
	data, err := json.Marshal(record[V]{CreatedAt: c.now(), Value: value})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(c.bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// Stats returns current counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hits, misses := c.hits.Load(), c.misses.Load()
	st := Stats{
		Hits:       hits,
		Misses:     misses,
		EntryCount: c.mem.Len(),
		Evictions:  c.evictions.Load(),
	}
	if hits+misses > 0 {
		st.HitRate = float64(hits) / float64(hits+misses)
	}
	if c.db != nil && !c.closed {
		_ = c.db.View(func(tx *bolt.Tx) error {
			if b := tx.Bucket(c.bucket); b != nil {
				st.PersistedEntries = b.Stats().KeyN
			}
			return nil
		})
	}
	return st
}

// Clear empties both tiers. Counters are kept.
func (c *Cache[V]) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	c.mem.Purge()
	if c.db == nil {
		return nil
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(c.bucket) != nil {
			if err := tx.DeleteBucket(c.bucket); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucket(c.bucket)
		return err
	})
}

// Close releases the bbolt file. It is safe to call more than once.
func (c *Cache[V]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.mem.Purge()
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
