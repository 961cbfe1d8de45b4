package util

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/edsrzf/mmap-go"
)

// SourceCache serves Rust source files from memory-mapped regions.
//
// The engine reads the same file several times per request (outline,
// analysis, registration probing, removal), so mapped files are kept
// until they go stale or are invalidated.
//
// **Staleness:** every Read stats the file and remaps it when the size or
// modification time changed since it was mapped.
//
// **Writes:** callers that rewrite a file must call Invalidate first. A
// truncating write under a live mapping faults on the next access.
type SourceCache interface {
	// Read returns the full text of the file.
	Read(path string) (string, error)

	// Slice returns the text between two byte offsets.
	Slice(path string, startByte, endByte int) (string, error)

	// Invalidate unmaps the file if it is cached.
	Invalidate(path string)

	// Stats returns cache metrics.
	Stats() SourceCacheStats

	// Close unmaps every file.
	Close() error
}

// SourceCacheConfig controls SourceCache behavior.
type SourceCacheConfig struct {
	// MaxFiles bounds the number of mapped files. When the bound is reached
	// the oldest mapping is released. 0 means unlimited.
	MaxFiles int

	// Logger for warnings. If nil, uses slog.Default().
	Logger *slog.Logger
}

// DefaultSourceCacheConfig returns defaults sized for a single crate workspace.
func DefaultSourceCacheConfig() SourceCacheConfig {
	return SourceCacheConfig{MaxFiles: 512}
}

// SourceCacheStats tracks cache effectiveness.
type SourceCacheStats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Remaps        int64 `json:"remaps"`
	MmapFailures  int64 `json:"mmap_failures"`
	MappedFiles   int   `json:"mapped_files"`
	MappedBytes   int64 `json:"mapped_bytes"`
	Invalidations int64 `json:"invalidations"`
}

type mappedSource struct {
	data    mmap.MMap
	file    *os.File
	size    int64
	modTime time.Time
	mapped  time.Time
}

func (m *mappedSource) release() error {
	var err error
	if m.file != nil {
		if m.data != nil {
			err = m.data.Unmap()
		}
		if cerr := m.file.Close(); err == nil {
			err = cerr
		}
	}
	m.data = nil
	m.file = nil
	return err
}

type sourceCache struct {
	config SourceCacheConfig
	logger *slog.Logger

	mu    sync.Mutex
	files map[string]*mappedSource
	stats SourceCacheStats
}

// NewSourceCache creates a SourceCache.
func NewSourceCache(config SourceCacheConfig) SourceCache {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &sourceCache{
		config: config,
		logger: logger,
		files:  make(map[string]*mappedSource),
	}
}

func (c *sourceCache) Read(path string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, err := c.getLocked(path)
	if err != nil {
		return "", err
	}
	// string() copies, so the result survives a later unmap.
	return string(m.data), nil
}

func (c *sourceCache) Slice(path string, startByte, endByte int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, err := c.getLocked(path)
	if err != nil {
		return "", err
	}
	if startByte < 0 || endByte < startByte || endByte > len(m.data) {
		return "", fmt.Errorf("invalid byte range [%d, %d) for %q (size %d)", startByte, endByte, path, len(m.data))
	}
	return string(m.data[startByte:endByte]), nil
}

func (c *sourceCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.files[path]; ok {
		if err := m.release(); err != nil {
			c.logger.Warn("failed to release mapping", "file", path, "error", err)
		}
		delete(c.files, path)
		c.stats.Invalidations++
	}
}

func (c *sourceCache) Stats() SourceCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.MappedFiles = len(c.files)
	for _, m := range c.files {
		s.MappedBytes += m.size
	}
	return s
}

func (c *sourceCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for path, m := range c.files {
		if err := m.release(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to release %q: %w", path, err)
		}
	}
	c.files = make(map[string]*mappedSource)
	return firstErr
}

// getLocked returns a fresh mapping for path. Must be called with mu held.
func (c *sourceCache) getLocked(path string) (*mappedSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		c.stats.Misses++
		return nil, fmt.Errorf("failed to stat %q: %w", path, err)
	}

	if m, ok := c.files[path]; ok {
		if m.size == info.Size() && m.modTime.Equal(info.ModTime()) {
			c.stats.Hits++
			return m, nil
		}
		_ = m.release()
		delete(c.files, path)
		c.stats.Remaps++
	} else {
		c.stats.Misses++
	}

	c.evictLocked()

	m, err := c.load(path, info)
	if err != nil {
		return nil, err
	}
	c.files[path] = m
	return m, nil
}

func (c *sourceCache) evictLocked() {
	if c.config.MaxFiles <= 0 || len(c.files) < c.config.MaxFiles {
		return
	}
	var oldestPath string
	var oldest time.Time
	for path, m := range c.files {
		if oldestPath == "" || m.mapped.Before(oldest) {
			oldestPath, oldest = path, m.mapped
		}
	}
	_ = c.files[oldestPath].release()
	delete(c.files, oldestPath)
}

// load maps the file read-only, falling back to os.ReadFile when mmap fails.
func (c *sourceCache) load(path string, info os.FileInfo) (*mappedSource, error) {
	m := &mappedSource{size: info.Size(), modTime: info.ModTime(), mapped: time.Now()}
	if info.Size() == 0 {
		return m, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", path, err)
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		file.Close()
		c.logger.Warn("mmap failed, using fallback", "file", path, "size", info.Size(), "error", err)
		c.stats.MmapFailures++

		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("mmap failed and fallback failed for %q: mmap error: %v, read error: %w", path, err, readErr)
		}
		m.data = mmap.MMap(raw)
		return m, nil
	}

	m.data = data
	m.file = file
	return m, nil
}
