package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/cratesplit/pkg/extractor"
	"github.com/gnana997/cratesplit/pkg/parser"
	"github.com/gnana997/cratesplit/pkg/parser/queries"
	"github.com/gnana997/cratesplit/pkg/util"
)

func newTestIndex(t *testing.T, config OutlineIndexConfig) *OutlineIndex {
	t.Helper()
	logger := util.NewDiscardLogger()
	pm := parser.NewParserManager(logger)
	qm := queries.NewQueryManager(pm, logger)
	sources := util.NewSourceCache(util.SourceCacheConfig{MaxFiles: 16, Logger: logger})
	idx := NewOutlineIndex(config, extractor.NewExtractor(pm, qm, logger), sources, logger)
	t.Cleanup(func() {
		idx.Close()
		sources.Close()
		qm.Close()
		pm.Close()
	})
	return idx
}

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOutlineFor_HitsOnSameContent(t *testing.T) {
	idx := newTestIndex(t, DefaultOutlineIndexConfig())
	ctx := context.Background()
	src := []byte("pub struct A;\nfn b() {}\n")

	first, err := idx.OutlineFor(ctx, "src/a.rs", src)
	require.NoError(t, err)
	second, err := idx.OutlineFor(ctx, "src/a.rs", src)
	require.NoError(t, err)
	assert.Same(t, first, second)

	stats := idx.GetStats()
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.IndexedFiles)
	assert.Equal(t, 2, stats.Declarations)
	assert.InDelta(t, 0.5, stats.CacheHitRate, 0.001)
}

func TestOutlineFor_RebuildsOnEdit(t *testing.T) {
	idx := newTestIndex(t, DefaultOutlineIndexConfig())
	ctx := context.Background()

	_, err := idx.OutlineFor(ctx, "src/a.rs", []byte("fn a() {}\n"))
	require.NoError(t, err)
	outline, err := idx.OutlineFor(ctx, "src/a.rs", []byte("fn a() {}\nfn b() {}\n"))
	require.NoError(t, err)

	assert.Equal(t, 2, outline.Count())
	assert.Equal(t, int64(2), idx.GetStats().CacheMisses)
}

func TestOutline_ReadsFromDisk(t *testing.T) {
	idx := newTestIndex(t, DefaultOutlineIndexConfig())
	dir := t.TempDir()
	path := writeFile(t, dir, "src/lib.rs", "pub mod models;\npub fn run() {}\n")

	outline, err := idx.Outline(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, outline.Count())

	_, err = idx.Outline(context.Background(), filepath.Join(dir, "missing.rs"))
	assert.Error(t, err)
}

func TestRemoveFile(t *testing.T) {
	idx := newTestIndex(t, DefaultOutlineIndexConfig())
	_, err := idx.OutlineFor(context.Background(), "a.rs", []byte("fn a() {}"))
	require.NoError(t, err)

	idx.RemoveFile("a.rs")
	_, ok := idx.Peek("a.rs")
	assert.False(t, ok)
	assert.Empty(t, idx.Files())
}

func TestLRUEviction(t *testing.T) {
	idx := newTestIndex(t, OutlineIndexConfig{MaxCachedFiles: 2})
	ctx := context.Background()

	for _, name := range []string{"a.rs", "b.rs", "c.rs"} {
		_, err := idx.OutlineFor(ctx, name, []byte("fn f() {}"))
		require.NoError(t, err)
	}

	stats := idx.GetStats()
	assert.Equal(t, 2, stats.CachedFiles)
	assert.Equal(t, int64(1), stats.Evictions)
	_, ok := idx.Peek("a.rs")
	assert.False(t, ok)
}

func TestOutlineFor_Concurrent(t *testing.T) {
	idx := newTestIndex(t, DefaultOutlineIndexConfig())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := idx.OutlineFor(context.Background(), "shared.rs", []byte("struct S { x: u8 }"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stats := idx.GetStats()
	assert.Equal(t, int64(32), stats.CacheHits+stats.CacheMisses)
}

func TestComputeContentHash(t *testing.T) {
	assert.Equal(t, ComputeContentHash([]byte("x")), ComputeContentHash([]byte("x")))
	assert.NotEqual(t, ComputeContentHash([]byte("x")), ComputeContentHash([]byte("y")))
	assert.Len(t, ComputeContentHash(nil), 64)
}
