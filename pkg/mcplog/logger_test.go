package mcplog

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeParams(t *testing.T) {
	tests := []struct {
		name     string
		input    map[string]any
		wantKeys []string
		wantSkip []string
	}{
		{name: "nil map returns empty", input: nil},
		{
			name:     "short string passes through",
			input:    map[string]any{"module_name": "plan"},
			wantKeys: []string{"module_name"},
		},
		{
			name:     "source text replaced with length",
			input:    map[string]any{"source": strings.Repeat("x", 1000)},
			wantKeys: []string{"source_len"},
			wantSkip: []string{"source"},
		},
		{
			name:     "numbers and bools pass through",
			input:    map[string]any{"start_line": float64(4), "dry_run": true, "extra": nil},
			wantKeys: []string{"start_line", "dry_run", "extra"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := SanitizeParams(tc.input)
			require.NotNil(t, out)
			for _, k := range tc.wantKeys {
				assert.Contains(t, out, k)
			}
			for _, k := range tc.wantSkip {
				assert.NotContains(t, out, k)
			}
		})
	}
	assert.Equal(t, 1000, SanitizeParams(map[string]any{"source": strings.Repeat("x", 1000)})["source_len"])
}

func TestResponseBytes(t *testing.T) {
	assert.Equal(t, 0, ResponseBytes(nil))
	assert.Positive(t, ResponseBytes(mcp.NewToolResultText(`{"state":"done"}`)))
}

func TestLogger_WriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.jsonl")
	logger, err := NewLogger(path)
	require.NoError(t, err)

	msg := "no Cargo.toml found"
	entries := []Entry{
		{Ts: time.Now().UTC().Format(time.RFC3339), RequestID: "a", Tool: "analyze_selection", Params: map[string]any{"file": "src/lib.rs"}, DurationMs: 5, ResponseBytes: 100},
		{Ts: time.Now().UTC().Format(time.RFC3339), RequestID: "b", Tool: "extract_module", Params: map[string]any{"module_name": "plan"}, DurationMs: 42, ToolError: true, Error: &msg},
	}
	for _, e := range entries {
		require.NoError(t, logger.Write(e))
	}
	require.NoError(t, logger.Close())

	got, err := ReadEntries(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "analyze_selection", got[0].Tool)
	assert.Equal(t, "a", got[0].RequestID)
	assert.Nil(t, got[0].Error)
	assert.Equal(t, int64(42), got[1].DurationMs)
	assert.True(t, got[1].ToolError)
	require.NotNil(t, got[1].Error)
	assert.Equal(t, msg, *got[1].Error)
}

func TestLogger_Concurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.jsonl")
	logger, err := NewLogger(path)
	require.NoError(t, err)

	const goroutines, writesEach = 50, 10
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < writesEach; j++ {
				_ = logger.Write(Entry{Ts: time.Now().UTC().Format(time.RFC3339), Tool: "cache_stats"})
			}
		}()
	}
	wg.Wait()
	require.NoError(t, logger.Close())

	got, err := ReadEntries(path)
	require.NoError(t, err, "torn write")
	assert.Len(t, got, goroutines*writesEach)
}

func TestNewLogger(t *testing.T) {
	t.Run("creates directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "deep", "mcp.jsonl")
		logger, err := NewLogger(path)
		require.NoError(t, err)
		defer logger.Close()
		_, err = os.Stat(path)
		assert.NoError(t, err)
	})

	t.Run("empty path disables", func(t *testing.T) {
		logger, err := NewLogger("")
		require.NoError(t, err)
		assert.Nil(t, logger)
		assert.NoError(t, logger.Write(Entry{Tool: "cache_stats"}))
		assert.NoError(t, logger.Close())
	})
}

func TestReadEntries_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"tool\":\"a\"}\n\nnot json\n"), 0o644))

	got, err := ReadEntries(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
	assert.Len(t, got, 1)
}
