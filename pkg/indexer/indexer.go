// Package indexer keeps per-file declaration outlines fresh across requests.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gnana997/cratesplit/pkg/extractor"
	"github.com/gnana997/cratesplit/pkg/util"
)

// OutlineIndex is the declaration index provider the expander and the
// enclosing-context detector query. Outlines are cached per file in an LRU
// and rebuilt when the content hash changes.
//
// **Thread Safety:** safe for concurrent use. Extraction runs outside the
// lock so two files can be outlined in parallel.
//
// **Usage:**
//
//	idx := NewOutlineIndex(DefaultOutlineIndexConfig(), ex, sources, logger)
//	outline, err := idx.OutlineFor(ctx, path, []byte(text))
type OutlineIndex struct {
	extractor *extractor.Extractor
	sources   util.SourceCache

	fileCache *lru.Cache[string, *FileOutline]
	mu        sync.RWMutex

	indexedFiles   atomic.Int64
	cacheHits      atomic.Int64
	cacheMisses    atomic.Int64
	evictions      atomic.Int64
	totalIndexTime atomic.Int64 // microseconds

	config OutlineIndexConfig
	logger *slog.Logger
}

// NewOutlineIndex creates an outline index. sources may be nil, in which
// case Outline cannot read files from disk.
func NewOutlineIndex(config OutlineIndexConfig, ex *extractor.Extractor, sources util.SourceCache, logger *slog.Logger) *OutlineIndex {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxCachedFiles <= 0 {
		config.MaxCachedFiles = DefaultOutlineIndexConfig().MaxCachedFiles
	}

	idx := &OutlineIndex{
		extractor: ex,
		sources:   sources,
		config:    config,
		logger:    logger,
	}

	cache, err := lru.NewWithEvict(config.MaxCachedFiles, func(key string, _ *FileOutline) {
		idx.evictions.Add(1)
		if config.Debug {
			logger.Debug("LRU evicting outline", "path", key)
		}
	})
	if err != nil {
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	idx.fileCache = cache

	return idx
}

// OutlineFor returns the outline of source, reusing the cached outline
// when the file was last indexed with identical content.
func (idx *OutlineIndex) OutlineFor(ctx context.Context, filePath string, source []byte) (*extractor.Outline, error) {
	hash := ComputeContentHash(source)

	idx.mu.RLock()
	cached, found := idx.fileCache.Get(filePath)
	idx.mu.RUnlock()

	if found && cached.ContentHash == hash {
		idx.cacheHits.Add(1)
		return cached.Outline, nil
	}
	idx.cacheMisses.Add(1)

	return idx.index(ctx, filePath, source, hash)
}

// Outline reads filePath through the source cache and returns its outline.
func (idx *OutlineIndex) Outline(ctx context.Context, filePath string) (*extractor.Outline, error) {
	if idx.sources == nil {
		return nil, fmt.Errorf("outline index has no source cache")
	}
	text, err := idx.sources.Read(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	return idx.OutlineFor(ctx, filePath, []byte(text))
}

// IndexFile rebuilds the outline for filePath from disk regardless of the
// cached state.
func (idx *OutlineIndex) IndexFile(ctx context.Context, filePath string) (*extractor.Outline, error) {
	if idx.sources == nil {
		return nil, fmt.Errorf("outline index has no source cache")
	}
	idx.sources.Invalidate(filePath)
	text, err := idx.sources.Read(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	source := []byte(text)
	return idx.index(ctx, filePath, source, ComputeContentHash(source))
}

func (idx *OutlineIndex) index(ctx context.Context, filePath string, source []byte, hash string) (*extractor.Outline, error) {
	start := time.Now()
	outline, err := idx.extractor.ExtractFile(ctx, filePath, source)
	if err != nil {
		return nil, err
	}
	idx.totalIndexTime.Add(time.Since(start).Microseconds())
	idx.indexedFiles.Add(1)

	idx.mu.Lock()
	idx.fileCache.Add(filePath, &FileOutline{
		FilePath:    filePath,
		Outline:     outline,
		ContentHash: hash,
		Timestamp:   time.Now().UnixMilli(),
	})
	idx.mu.Unlock()

	if idx.config.Debug {
		idx.logger.Debug("indexed file", "path", filePath, "declarations", outline.Count())
	}
	return outline, nil
}

// Peek returns the cached entry without touching recency or stats.
func (idx *OutlineIndex) Peek(filePath string) (*FileOutline, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.fileCache.Peek(filePath)
}

// RemoveFile drops a file's outline and its mapped source.
func (idx *OutlineIndex) RemoveFile(filePath string) {
	idx.mu.Lock()
	idx.fileCache.Remove(filePath)
	idx.mu.Unlock()

	if idx.sources != nil {
		idx.sources.Invalidate(filePath)
	}
	if idx.config.Debug {
		idx.logger.Debug("removed file", "path", filePath)
	}
}

// Files returns the paths currently cached.
func (idx *OutlineIndex) Files() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.fileCache.Keys()
}

// GetStats returns current index statistics.
func (idx *OutlineIndex) GetStats() OutlineIndexStats {
	idx.mu.RLock()
	cachedFiles := idx.fileCache.Len()
	declarations := 0
	for _, key := range idx.fileCache.Keys() {
		if fo, ok := idx.fileCache.Peek(key); ok {
			declarations += fo.Outline.Count()
		}
	}
	idx.mu.RUnlock()

	hits := idx.cacheHits.Load()
	misses := idx.cacheMisses.Load()
	hitRate := 0.0
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}

	indexed := idx.indexedFiles.Load()
	avg := 0.0
	if indexed > 0 {
		avg = float64(idx.totalIndexTime.Load()) / float64(indexed) / 1000.0
	}

	return OutlineIndexStats{
		IndexedFiles:       indexed,
		CachedFiles:        cachedFiles,
		Declarations:       declarations,
		CacheHits:          hits,
		CacheMisses:        misses,
		CacheHitRate:       hitRate,
		Evictions:          idx.evictions.Load(),
		AverageIndexTimeMs: avg,
	}
}

// Close purges the cache.
func (idx *OutlineIndex) Close() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.fileCache.Purge()
	idx.logger.Debug("OutlineIndex closed")
}

// ComputeContentHash returns the hex SHA-256 of content.
func ComputeContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}
