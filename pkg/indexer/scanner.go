package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/gnana997/cratesplit/pkg/util"
)

// WorkspaceScanner discovers Rust files under a workspace and pre-warms the
// outline index.
//
// **Two-Phase Pipeline:**
//  1. File Discovery - walk the tree, apply include/exclude patterns
//  2. Indexing - outline files concurrently, bounded by the worker count
//
// **Usage:**
//
//	scanner := NewWorkspaceScanner(index, logger)
//	stats, err := scanner.ScanWorkspace(ctx, root, DefaultScanOptions(), nil)
type WorkspaceScanner struct {
	index  *OutlineIndex
	logger *slog.Logger
}

// NewWorkspaceScanner creates a new workspace scanner.
func NewWorkspaceScanner(index *OutlineIndex, logger *slog.Logger) *WorkspaceScanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkspaceScanner{index: index, logger: logger}
}

// ScanWorkspace indexes every matching file under rootPath. Per-file
// failures are collected in the stats; only discovery errors and
// cancellation fail the scan.
func (ws *WorkspaceScanner) ScanWorkspace(
	ctx context.Context,
	rootPath string,
	options ScanOptions,
	progressCallback ProgressCallback,
) (*ScanStats, error) {
	startTime := time.Now()
	stats := &ScanStats{StartTime: startTime}

	ws.logger.Info("Starting workspace scan", "root", rootPath)

	discoveryStart := time.Now()
	files, err := DiscoverFiles(rootPath, options, ws.logger)
	if err != nil {
		return nil, fmt.Errorf("file discovery failed: %w", err)
	}
	stats.FilesDiscovered = len(files)
	stats.DiscoveryTimeMs = time.Since(discoveryStart).Milliseconds()

	if len(files) == 0 {
		ws.logger.Warn("No files found matching criteria")
		stats.EndTime = time.Now()
		stats.TotalTimeMs = time.Since(startTime).Milliseconds()
		return stats, nil
	}

	workers := util.GetOptimalPoolSizeWithOverride(options.Workers)
	stats.WorkerCount = workers

	indexingStart := time.Now()
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outline, err := ws.index.IndexFile(gctx, file)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				stats.FilesFailed++
				stats.Errors = append(stats.Errors, FileError{FilePath: file, Error: err})
				ws.logger.Warn("File indexing failed", "file", file, "error", err)
				return nil
			}
			stats.FilesIndexed++
			stats.Declarations += outline.Count()
			stats.Imports += len(outline.Imports)
			if progressCallback != nil {
				progressCallback(stats.FilesIndexed, len(files), file)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		stats.Cancelled = true
		stats.EndTime = time.Now()
		return stats, fmt.Errorf("workspace scan cancelled: %w", err)
	}

	stats.IndexingTimeMs = time.Since(indexingStart).Milliseconds()
	stats.EndTime = time.Now()
	stats.TotalTimeMs = time.Since(startTime).Milliseconds()

	ws.logger.Info("Workspace scan complete",
		"files_indexed", stats.FilesIndexed,
		"files_failed", stats.FilesFailed,
		"declarations", stats.Declarations,
		"duration_ms", stats.TotalTimeMs)

	return stats, nil
}

// DiscoverFiles walks rootPath and returns absolute paths of files that
// match an include pattern and no exclude pattern.
func DiscoverFiles(rootPath string, options ScanOptions, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, pattern := range options.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern: %s", pattern)
		}
	}
	for _, pattern := range options.Include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid include pattern: %s", pattern)
		}
	}

	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("Walk error", "path", path, "error", err)
			return nil
		}

		relPath, err := filepath.Rel(rootPath, path)
		if err != nil {
			relPath = path
		}
		relPath = filepath.ToSlash(relPath)

		if relPath != "." && matchesAny(options.Exclude, relPath, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		if len(options.Include) > 0 && !matchesAny(options.Include, relPath, false) {
			return nil
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		files = append(files, abs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// matchesAny reports whether relPath matches a pattern. Directories also
// match "dir/**" style patterns by their own path.
func matchesAny(patterns []string, relPath string, isDir bool) bool {
	for _, pattern := range patterns {
		if m, _ := doublestar.PathMatch(pattern, relPath); m {
			return true
		}
		if isDir {
			if m, _ := doublestar.PathMatch(pattern, relPath+"/x"); m {
				return true
			}
		}
	}
	return false
}
