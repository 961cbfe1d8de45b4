package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/gnana997/cratesplit/pkg/parser"
)

// FileWatcher keeps the outline index fresh while a long-running server is up.
//
// Rapid writes to one file are debounced into a single reindex. Removes and
// renames drop the file immediately.
//
// **Usage:**
//
//	watcher, err := NewFileWatcher(index, DefaultWatchOptions(), logger)
//	if err != nil {
//	    return err
//	}
//	if err := watcher.Start(root); err != nil {
//	    return err
//	}
//	defer watcher.Stop()
type FileWatcher struct {
	watcher *fsnotify.Watcher
	index   *OutlineIndex
	logger  *slog.Logger
	options WatchOptions
	root    string

	listeners []func(WatchEvent)

	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex

	stopChan chan struct{}
	stopped  bool
	mu       sync.Mutex
}

// NewFileWatcher creates a watcher over index.
func NewFileWatcher(index *OutlineIndex, options WatchOptions, logger *slog.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := validatePatterns(options.IgnorePatterns); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if options.Debounce <= 0 {
		options.Debounce = DefaultWatchOptions().Debounce
	}

	return &FileWatcher{
		watcher:        watcher,
		index:          index,
		logger:         logger,
		options:        options,
		debounceTimers: make(map[string]*time.Timer),
		stopChan:       make(chan struct{}),
	}, nil
}

// OnChange registers fn to run after each debounced change. Must be called
// before Start.
func (fw *FileWatcher) OnChange(fn func(WatchEvent)) {
	fw.listeners = append(fw.listeners, fn)
}

// Start watches rootPath and every non-ignored directory beneath it.
func (fw *FileWatcher) Start(rootPath string) error {
	fw.mu.Lock()
	if fw.stopped {
		fw.mu.Unlock()
		return fmt.Errorf("watcher already stopped")
	}
	fw.root = rootPath
	fw.mu.Unlock()

	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != rootPath && fw.shouldIgnore(path) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			fw.logger.Warn("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to setup watches: %w", err)
	}

	fw.logger.Info("File watcher started", "root", rootPath)
	go fw.eventLoop()
	return nil
}

// Stop stops the watcher. Safe to call multiple times.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.stopped {
		return nil
	}
	fw.stopped = true
	close(fw.stopChan)

	fw.debounceMu.Lock()
	for _, timer := range fw.debounceTimers {
		timer.Stop()
	}
	fw.debounceTimers = make(map[string]*time.Timer)
	fw.debounceMu.Unlock()

	err := fw.watcher.Close()
	fw.logger.Info("File watcher stopped")
	return err
}

func (fw *FileWatcher) eventLoop() {
	for {
		select {
		case <-fw.stopChan:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("File watcher error", "error", err)
		}
	}
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	filePath := event.Name
	if fw.shouldIgnore(filePath) {
		return
	}

	// New directories (e.g. a freshly extracted module folder) need a watch.
	if event.Has(fsnotify.Create) {
		if isDir(filePath) {
			if err := fw.watcher.Add(filePath); err != nil {
				fw.logger.Warn("Failed to watch directory", "path", filePath, "error", err)
			}
			return
		}
	}

	if !parser.IsRustFile(filePath) {
		return
	}

	fw.logger.Debug("File event", "op", event.Op.String(), "file", filePath)

	switch {
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		fw.debounceReindex(filePath)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		fw.removeFile(filePath)
	}
}

// debounceReindex schedules a reindex after the debounce delay, replacing
// any reindex already pending for the file.
func (fw *FileWatcher) debounceReindex(filePath string) {
	fw.debounceMu.Lock()
	defer fw.debounceMu.Unlock()

	if timer, exists := fw.debounceTimers[filePath]; exists {
		timer.Stop()
	}

	fw.debounceTimers[filePath] = time.AfterFunc(fw.options.Debounce, func() {
		fw.reindexFile(filePath)

		fw.debounceMu.Lock()
		delete(fw.debounceTimers, filePath)
		fw.debounceMu.Unlock()
	})
}

func (fw *FileWatcher) reindexFile(filePath string) {
	outline, err := fw.index.IndexFile(context.Background(), filePath)
	if err != nil {
		fw.logger.Warn("Failed to reindex file", "file", filePath, "error", err)
		return
	}
	fw.logger.Debug("File reindexed", "file", filePath, "declarations", outline.Count())
	fw.notify(WatchEvent{FilePath: filePath, Op: "write", Timestamp: time.Now()})
}

func (fw *FileWatcher) removeFile(filePath string) {
	fw.debounceMu.Lock()
	if timer, exists := fw.debounceTimers[filePath]; exists {
		timer.Stop()
		delete(fw.debounceTimers, filePath)
	}
	fw.debounceMu.Unlock()

	fw.index.RemoveFile(filePath)
	fw.notify(WatchEvent{FilePath: filePath, Op: "remove", Timestamp: time.Now()})
}

func (fw *FileWatcher) notify(event WatchEvent) {
	for _, fn := range fw.listeners {
		fn(event)
	}
}

// shouldIgnore matches path, relative to the watch root, against the ignore patterns.
func (fw *FileWatcher) shouldIgnore(path string) bool {
	rel := path
	if fw.root != "" {
		if r, err := filepath.Rel(fw.root, path); err == nil {
			rel = r
		}
	}
	rel = filepath.ToSlash(rel)
	return matchesAny(fw.options.IgnorePatterns, rel, true)
}

// GetStats returns file watcher statistics.
func (fw *FileWatcher) GetStats() FileWatcherStats {
	fw.debounceMu.Lock()
	pending := len(fw.debounceTimers)
	fw.debounceMu.Unlock()

	fw.mu.Lock()
	running := !fw.stopped
	fw.mu.Unlock()

	return FileWatcherStats{
		PendingReindexes: pending,
		IsRunning:        running,
	}
}

// FileWatcherStats contains file watcher statistics.
type FileWatcherStats struct {
	PendingReindexes int
	IsRunning        bool
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func validatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid ignore pattern: %s", p)
		}
	}
	return nil
}
