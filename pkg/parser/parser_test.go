package parser

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRust = `use std::fmt::{self, Display};

#[derive(Debug)]
pub struct User {
    name: String,
}

impl Display for User {
    fn fmt(&self, f: &mut fmt::Formatter) -> fmt::Result {
        write!(f, "{}", self.name)
    }
}
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestParseRust(t *testing.T) {
	manager := NewParserManager(testLogger())
	defer manager.Close()

	tree, err := manager.Parse(context.Background(), []byte(sampleRust), LanguageRust)
	require.NoError(t, err)
	require.NotNil(t, tree)
	defer tree.Close()

	root := tree.RootNode()
	assert.Equal(t, "source_file", root.Kind())
	assert.False(t, root.HasError())

	sexp := root.ToSexp()
	assert.Contains(t, sexp, "struct_item")
	assert.Contains(t, sexp, "impl_item")
	assert.Contains(t, sexp, "use_declaration")
}

func TestParseRust_PartialTree(t *testing.T) {
	manager := NewParserManager(testLogger())
	defer manager.Close()

	tree, err := manager.Parse(context.Background(), []byte("pub struct User {\n    name: String,\n\nfn orphan() {}\n"), LanguageRust)
	require.NoError(t, err)
	defer tree.Close()

	assert.True(t, tree.RootNode().HasError())
	assert.Equal(t, 1, manager.GetStats().ParseErrors)
}

func TestParseFile(t *testing.T) {
	manager := NewParserManager(testLogger())
	defer manager.Close()

	tree, err := manager.ParseFile(context.Background(), []byte("fn main() {}"), "src/main.rs")
	require.NoError(t, err)
	tree.Close()

	_, err = manager.ParseFile(context.Background(), []byte("x"), "index.ts")
	assert.Error(t, err)
}

func TestParseUnknownLanguage(t *testing.T) {
	manager := NewParserManager(testLogger())
	defer manager.Close()

	_, err := manager.Parse(context.Background(), []byte("x"), LanguageUnknown)
	assert.Error(t, err)
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, LanguageRust, DetectLanguage("src/models/user.rs"))
	assert.Equal(t, LanguageRust, DetectLanguage("LIB.RS"))
	assert.Equal(t, LanguageUnknown, DetectLanguage("Cargo.toml"))
	assert.True(t, IsRustFile("a.rs"))
	assert.Equal(t, LanguageRust, ParseLanguageString("RS"))
	assert.Equal(t, "rust", LanguageRust.String())
}

func TestPoolAcquireHonorsContext(t *testing.T) {
	manager := NewParserManager(testLogger())
	defer manager.Close()

	langPtr, err := manager.GetLanguagePointer(LanguageRust)
	require.NoError(t, err)

	pool := newParserPool(LanguageRust, langPtr, 1, testLogger())
	defer pool.close()

	held, err := pool.acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = pool.acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	pool.release(held)
	again, err := pool.acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, held, again)
	pool.release(again)
}
