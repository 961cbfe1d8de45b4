package indexer

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileWatcher_ReindexesOnWrite(t *testing.T) {
	dir := setupWorkspace(t)
	idx := newTestIndex(t, DefaultOutlineIndexConfig())
	path := writeFile(t, dir, "src/extra.rs", "fn one() {}\n")

	_, err := idx.IndexFile(context.Background(), path)
	require.NoError(t, err)

	w, err := NewFileWatcher(idx, WatchOptions{Debounce: 20 * time.Millisecond, IgnorePatterns: []string{"target/**"}}, nil)
	require.NoError(t, err)
	events := make(chan WatchEvent, 8)
	w.OnChange(func(e WatchEvent) { events <- e })
	require.NoError(t, w.Start(dir))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("fn one() {}\nfn two() {}\n"), 0o644))

	select {
	case e := <-events:
		assert.Equal(t, path, e.FilePath)
		assert.Equal(t, "write", e.Op)
	case <-time.After(3 * time.Second):
		t.Fatal("no reindex event")
	}

	fo, ok := idx.Peek(path)
	require.True(t, ok)
	assert.Equal(t, 2, fo.Outline.Count())
}

func TestFileWatcher_RemoveDropsOutline(t *testing.T) {
	dir := setupWorkspace(t)
	idx := newTestIndex(t, DefaultOutlineIndexConfig())
	path := writeFile(t, dir, "src/gone.rs", "fn gone() {}\n")
	_, err := idx.IndexFile(context.Background(), path)
	require.NoError(t, err)

	w, err := NewFileWatcher(idx, DefaultWatchOptions(), nil)
	require.NoError(t, err)
	events := make(chan WatchEvent, 8)
	w.OnChange(func(e WatchEvent) { events <- e })
	require.NoError(t, w.Start(dir))
	defer w.Stop()

	require.NoError(t, os.Remove(path))

	select {
	case e := <-events:
		assert.Equal(t, "remove", e.Op)
	case <-time.After(3 * time.Second):
		t.Fatal("no remove event")
	}
	_, ok := idx.Peek(path)
	assert.False(t, ok)
}

func TestFileWatcher_StopIdempotent(t *testing.T) {
	idx := newTestIndex(t, DefaultOutlineIndexConfig())
	w, err := NewFileWatcher(idx, DefaultWatchOptions(), nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(t.TempDir()))

	assert.True(t, w.GetStats().IsRunning)
	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
	assert.False(t, w.GetStats().IsRunning)
	assert.Error(t, w.Start(t.TempDir()))
}

func TestNewFileWatcher_InvalidPattern(t *testing.T) {
	_, err := NewFileWatcher(nil, WatchOptions{IgnorePatterns: []string{"[x-"}}, nil)
	assert.Error(t, err)
}

func TestShouldIgnore(t *testing.T) {
	w := &FileWatcher{options: DefaultWatchOptions(), root: "/ws"}
	assert.True(t, w.shouldIgnore("/ws/target"))
	assert.True(t, w.shouldIgnore("/ws/target/debug/x.rs"))
	assert.True(t, w.shouldIgnore("/ws/src/a.rs.swp"))
	assert.False(t, w.shouldIgnore("/ws/src/a.rs"))
}
