package indexer

import (
	"time"

	"github.com/gnana997/cratesplit/pkg/extractor"
)

// FileOutline is the unit of caching in the OutlineIndex.
type FileOutline struct {
	FilePath string
	Outline  *extractor.Outline

	// ContentHash is the SHA-256 of the source the outline was built from.
	// A lookup with different content rebuilds the outline.
	ContentHash string

	// Timestamp when the file was indexed (Unix milliseconds)
	Timestamp int64
}

// OutlineIndexConfig configures the outline index.
type OutlineIndexConfig struct {
	// MaxCachedFiles bounds the LRU. Default: 1000 files
	MaxCachedFiles int

	// Debug enables verbose logging
	Debug bool
}

// DefaultOutlineIndexConfig returns the default configuration.
func DefaultOutlineIndexConfig() OutlineIndexConfig {
	return OutlineIndexConfig{
		MaxCachedFiles: 1000,
	}
}

// OutlineIndexStats describes the index state.
type OutlineIndexStats struct {
	IndexedFiles int64   `json:"indexed_files"`
	CachedFiles  int     `json:"cached_files"`
	Declarations int     `json:"declarations"`
	CacheHits    int64   `json:"cache_hits"`
	CacheMisses  int64   `json:"cache_misses"`
	CacheHitRate float64 `json:"cache_hit_rate"`
	Evictions    int64   `json:"evictions"`
	// AverageIndexTimeMs is the mean extraction time per indexed file.
	AverageIndexTimeMs float64 `json:"average_index_time_ms"`
}

// ScanOptions configures workspace scanning.
type ScanOptions struct {
	// Include patterns (doublestar syntax, e.g. "**/*.rs")
	Include []string

	// Exclude patterns; a matching directory is skipped entirely
	Exclude []string

	// Workers bounds concurrent extraction. 0 uses the parser pool size.
	Workers int
}

// DefaultScanOptions returns options for a Cargo workspace.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		Include: []string{"**/*.rs"},
		Exclude: []string{
			"target/**",
			".git/**",
			".cratesplit-cache/**",
		},
	}
}

// ScanStats contains statistics about a workspace scan.
type ScanStats struct {
	FilesDiscovered int
	FilesIndexed    int
	FilesFailed     int
	Declarations    int
	Imports         int
	WorkerCount     int

	TotalTimeMs     int64
	DiscoveryTimeMs int64
	IndexingTimeMs  int64

	Errors    []FileError
	Cancelled bool

	StartTime time.Time
	EndTime   time.Time
}

// FileError represents an error that occurred while processing a file.
type FileError struct {
	FilePath string
	Error    error
}

// ProgressCallback is called after each file is indexed.
type ProgressCallback func(indexed, total int, currentFile string)

// WatchOptions configures file watching behavior.
type WatchOptions struct {
	// Debounce groups rapid changes to one file. Default: 200ms
	Debounce time.Duration

	// IgnorePatterns are doublestar patterns relative to the watch root.
	IgnorePatterns []string
}

// DefaultWatchOptions returns recommended watch options.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		Debounce: 200 * time.Millisecond,
		IgnorePatterns: []string{
			"**/*.swp",
			"**/*~",
			"target/**",
			".git/**",
			".cratesplit-cache/**",
		},
	}
}

// WatchEvent is delivered to watch listeners after a debounced change.
type WatchEvent struct {
	FilePath  string
	Op        string // "write" or "remove"
	Timestamp time.Time
}
