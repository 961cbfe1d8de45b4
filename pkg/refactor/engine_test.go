package refactor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/cratesplit/pkg/document"
	"github.com/gnana997/cratesplit/pkg/util"
	"github.com/gnana997/cratesplit/pkg/validator"
)

// --- Helpers ---

const manifest = `[package]
name = "shop"
version = "0.1.0"
edition = "2021"

[dependencies]
serde = "1"
`

const subscriptionSource = `use std::collections::HashMap;
use std::fmt::{self, Display};
use super::Handler;
use serde::Serialize;

pub struct Subscription {
    pub handler: Handler,
    pub prices: HashMap<String, u32>,
}

impl Display for Subscription {
    fn fmt(&self, f: &mut fmt::Formatter) -> fmt::Result {
        write!(f, "subscription")
    }
}
`

const modelsMod = `pub struct Handler;

mod subscription;
`

// writeProject lays files out under a fresh Cargo project and returns its
// root.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	files["Cargo.toml"] = manifest
	for rel, text := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	}
	return root
}

func shopProject(t *testing.T) string {
	return writeProject(t, map[string]string{
		"src/lib.rs":                 "mod models;\n",
		"src/models/mod.rs":          modelsMod,
		"src/models/subscription.rs": subscriptionSource,
	})
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func rng(sl, sc, el, ec int) document.Range {
	return document.Range{
		Start: document.Position{Line: sl, Column: sc},
		End:   document.Position{Line: el, Column: ec},
	}
}

// scriptedOracle replays one diagnostics list per Check call, repeating
// the last, and offers the same fixes for every range.
type scriptedOracle struct {
	mu       sync.Mutex
	passes   [][]validator.Diagnostic
	fixes    []validator.Fix
	checkErr error
	checks   int
	queried  []document.Range
}

func (o *scriptedOracle) Check(context.Context, string) ([]validator.Diagnostic, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.checks++
	if o.checkErr != nil {
		return nil, o.checkErr
	}
	if len(o.passes) == 0 {
		return nil, nil
	}
	i := min(o.checks-1, len(o.passes)-1)
	return o.passes[i], nil
}

func (o *scriptedOracle) QuickFixes(_ context.Context, _ string, r document.Range) ([]validator.Fix, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queried = append(o.queried, r)
	return o.fixes, nil
}

func newEngine(t *testing.T, oracle validator.DiagnosticsProvider, mutate ...func(*Options)) *Engine {
	t.Helper()
	opts := DefaultOptions()
	opts.SettleDelay = 0
	opts.Oracle = oracle
	opts.Logger = util.NewDiscardLogger()
	for _, m := range mutate {
		m(&opts)
	}
	e, err := NewEngine(opts)
	require.NoError(t, err)
	return e
}

func errorDiag(msg string, line int) validator.Diagnostic {
	return validator.Diagnostic{
		Severity: validator.SeverityError,
		Message:  msg,
		Range:    rng(line, 4, line, 10),
	}
}

// --- Extraction ---

func TestExtract_StructIntoSiblingModule(t *testing.T) {
	root := shopProject(t)
	source := filepath.Join(root, "src", "models", "subscription.rs")
	e := newEngine(t, nil)

	res, err := e.Extract(context.Background(), Request{
		File:       source,
		Selection:  rng(5, 0, 8, 1),
		ModuleName: "plan",
	})
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, []State{
		StateAnalyzing, StateContentGenerated, StateFileWritten, StateParentUpdated,
		StateOriginalRemoved, StateValidating, StateDone,
	}, res.Transitions)
	assert.True(t, res.Validated)
	assert.Equal(t, 1, res.Attempts)

	module := filepath.Join(root, "src", "models", "plan.rs")
	assert.Equal(t, module, res.ModuleFile)
	assert.Equal(t, `//! Plan module
//!
//! This module was automatically extracted by cratesplit.

use std::collections::HashMap;
use crate::models::Handler;

pub struct Subscription {
    pub handler: Handler,
    pub prices: HashMap<String, u32>,
}
`, read(t, module))
	assert.Equal(t, 2, res.DroppedImports)

	assert.Equal(t, "pub struct Handler;\n\nmod subscription;\nmod plan;\npub use plan::Subscription;\n",
		read(t, filepath.Join(root, "src", "models", "mod.rs")))
	assert.True(t, res.Registered)
	assert.Equal(t, []string{"Subscription"}, res.ReExports)

	remaining := read(t, source)
	assert.NotContains(t, remaining, "pub struct Subscription")
	assert.Contains(t, remaining, "impl Display for Subscription {")

	require.Len(t, res.Changes, 3)
	assert.Equal(t, OpCreate, res.Changes[0].Op)
	assert.Equal(t, OpModify, res.Changes[1].Op)
	assert.Equal(t, OpModify, res.Changes[2].Op)
}

func TestExtract_PartialSelectionRemovesWholeDeclaration(t *testing.T) {
	root := shopProject(t)
	source := filepath.Join(root, "src", "models", "subscription.rs")
	e := newEngine(t, nil)

	// Just the word "handler" inside the struct body.
	res, err := e.Extract(context.Background(), Request{
		File:       source,
		Selection:  rng(6, 8, 6, 15),
		ModuleName: "plan",
	})
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)

	module := read(t, filepath.Join(root, "src", "models", "plan.rs"))
	assert.Contains(t, module, "pub struct Subscription {\n    pub handler: Handler,\n    pub prices: HashMap<String, u32>,\n}\n")

	remaining := read(t, source)
	assert.NotContains(t, remaining, "pub struct Subscription")
	assert.NotContains(t, remaining, "pub prices")
	assert.Contains(t, remaining, "impl Display for Subscription {")
}

func TestExtract_MethodInsideImplIsWrapped(t *testing.T) {
	root := shopProject(t)
	source := filepath.Join(root, "src", "models", "subscription.rs")
	e := newEngine(t, nil)

	res, err := e.Extract(context.Background(), Request{
		File:       source,
		Selection:  rng(11, 4, 13, 5),
		ModuleName: "display_impl",
	})
	require.NoError(t, err)
	assert.True(t, res.Analysis.InsideImpl)

	content := read(t, res.ModuleFile)
	assert.Contains(t, content, "use std::fmt::{self, Display};\n")
	assert.Contains(t, content, "use crate::models::subscription::Subscription;\n")
	assert.Contains(t, content, "impl Display for Subscription {\n    fn fmt(&self, f: &mut fmt::Formatter) -> fmt::Result {\n")
	assert.NotContains(t, content, "HashMap")

	modRS := read(t, filepath.Join(root, "src", "models", "mod.rs"))
	assert.Contains(t, modRS, "mod display_impl;\n")
	assert.NotContains(t, modRS, "pub use display_impl")
	assert.Empty(t, res.ReExports)

	remaining := read(t, source)
	assert.Contains(t, remaining, "impl Display for Subscription {\n}\n")
}

func TestExtract_RegistersIntoTheSourceFile(t *testing.T) {
	lib := "use std::fmt;\n\nmod models;\n\npub fn greet() -> String {\n    fmt::format(format_args!(\"hi\"))\n}\n"
	root := writeProject(t, map[string]string{"src/lib.rs": lib})
	source := filepath.Join(root, "src", "lib.rs")
	e := newEngine(t, nil)

	res, err := e.Extract(context.Background(), Request{
		File:       source,
		Selection:  rng(4, 0, 6, 1),
		ModuleName: "greeting",
	})
	require.NoError(t, err)
	assert.Equal(t, source, res.RegistrationFile)
	assert.Equal(t, "use std::fmt;\n\nmod models;\nmod greeting;\npub use greeting::greet;\n\n", read(t, source))
	assert.Contains(t, read(t, res.ModuleFile), "use std::fmt;\n\npub fn greet() -> String {")
}

func TestExtract_NewDirectoryUsesPathAttribute(t *testing.T) {
	root := shopProject(t)
	source := filepath.Join(root, "src", "models", "subscription.rs")
	e := newEngine(t, nil)

	res, err := e.Extract(context.Background(), Request{
		File:       source,
		Selection:  rng(5, 0, 8, 1),
		ModuleName: "plan",
		TargetDir:  filepath.Join(root, "src", "models", "billing"),
	})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(root, "src", "models", "billing", "plan.rs"))
	assert.Contains(t, read(t, filepath.Join(root, "src", "models", "mod.rs")),
		"#[path = \"billing/plan.rs\"]\nmod plan;\n")
	assert.Equal(t, OpMkdir, res.Changes[0].Op)

	require.NoError(t, res.Journal.Rollback())
	assert.NoDirExists(t, filepath.Join(root, "src", "models", "billing"))
	assert.Equal(t, subscriptionSource, read(t, source))
	assert.Equal(t, modelsMod, read(t, filepath.Join(root, "src", "models", "mod.rs")))
}

func TestExtract_ConvertParent(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/lib.rs":    "mod models;\n",
		"src/models.rs": "pub struct Plan;\n\npub struct Price;\n",
	})
	source := filepath.Join(root, "src", "models.rs")
	e := newEngine(t, nil)

	res, err := e.Extract(context.Background(), Request{
		File:          source,
		Selection:     rng(2, 0, 2, 17),
		ModuleName:    "price",
		TargetDir:     filepath.Join(root, "src", "models"),
		ConvertParent: true,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Converted)

	modRS := filepath.Join(root, "src", "models", "mod.rs")
	assert.Equal(t, modRS, res.RegistrationFile)
	assert.NoFileExists(t, source)
	assert.Contains(t, read(t, modRS), "mod price;\npub use price::Price;\n")
}

func TestExtract_DryRun(t *testing.T) {
	root := shopProject(t)
	source := filepath.Join(root, "src", "models", "subscription.rs")
	e := newEngine(t, nil)

	res, err := e.Extract(context.Background(), Request{
		File:       source,
		Selection:  rng(5, 0, 8, 1),
		ModuleName: "plan",
		DryRun:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, StateContentGenerated, res.State)
	assert.Contains(t, res.Content, "pub struct Subscription {")
	assert.Nil(t, res.Journal)
	assert.NoFileExists(t, res.ModuleFile)
	assert.Equal(t, subscriptionSource, read(t, source))
}

// --- Validation ---

func TestExtract_AbortsAfterMaxAttempts(t *testing.T) {
	root := shopProject(t)
	source := filepath.Join(root, "src", "models", "subscription.rs")
	oracle := &scriptedOracle{passes: [][]validator.Diagnostic{{
		errorDiag("mismatched types", 7),
		errorDiag("expected `u32`, found `&str`", 8),
	}}}
	e := newEngine(t, oracle)

	res, err := e.Extract(context.Background(), Request{File: source, Selection: rng(5, 0, 8, 1), ModuleName: "plan"})
	require.Error(t, err)
	require.NotNil(t, res)

	assert.Equal(t, StateAborted, res.State)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, oracle.checks)
	assert.Len(t, res.Diagnostics, 2)
	assert.Equal(t, KindValidation, KindOf(err))

	var e2 *Error
	require.True(t, errors.As(err, &e2))
	assert.Equal(t, res.ModuleFile, e2.File)
	assert.Equal(t, 8, e2.Line)
	assert.Equal(t, 5, e2.Column)
	assert.Contains(t, e2.Message, "mismatched types")

	// Files stay for the caller to decide.
	assert.FileExists(t, res.ModuleFile)
	assert.False(t, res.RolledBack)
	require.NoError(t, res.Journal.Rollback())
	assert.NoFileExists(t, res.ModuleFile)
	assert.Equal(t, subscriptionSource, read(t, source))
}

func TestExtract_RollbackOnAbort(t *testing.T) {
	root := shopProject(t)
	source := filepath.Join(root, "src", "models", "subscription.rs")
	oracle := &scriptedOracle{passes: [][]validator.Diagnostic{{errorDiag("mismatched types", 7)}}}
	e := newEngine(t, oracle, func(o *Options) { o.RollbackOnAbort = true })

	res, err := e.Extract(context.Background(), Request{File: source, Selection: rng(5, 0, 8, 1), ModuleName: "plan"})
	require.Error(t, err)
	assert.True(t, res.RolledBack)
	assert.Len(t, res.Changes, 3)
	assert.NoFileExists(t, res.ModuleFile)
	assert.Equal(t, subscriptionSource, read(t, source))
	assert.Equal(t, modelsMod, read(t, filepath.Join(root, "src", "models", "mod.rs")))
}

func TestExtract_AppliesOracleFix(t *testing.T) {
	root := shopProject(t)
	source := filepath.Join(root, "src", "models", "subscription.rs")
	oracle := &scriptedOracle{
		passes: [][]validator.Diagnostic{
			{errorDiag("cannot find type `Rate` in this scope", 8)},
			nil,
		},
		fixes: []validator.Fix{
			{Description: "consider borrowing here", Edits: []document.TextEdit{{Range: rng(0, 0, 0, 0), NewText: "&"}}},
			{Description: "consider importing this struct", Edits: []document.TextEdit{{Range: rng(4, 0, 4, 0), NewText: "use crate::rates::Rate;\n"}}},
		},
	}
	e := newEngine(t, oracle)

	res, err := e.Extract(context.Background(), Request{File: source, Selection: rng(5, 0, 8, 1), ModuleName: "plan"})
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, []string{"consider importing this struct"}, res.FixesApplied)
	assert.Contains(t, read(t, res.ModuleFile), "use crate::rates::Rate;\n")
	assert.Equal(t, []State{
		StateAnalyzing, StateContentGenerated, StateFileWritten, StateParentUpdated,
		StateOriginalRemoved, StateValidating, StateRetryFix, StateValidating, StateDone,
	}, res.Transitions)
}

func TestExtract_CatalogFallbackImport(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/lib.rs": "pub struct Index {\n    entries: BTreeMap<String, u32>,\n}\n",
	})
	source := filepath.Join(root, "src", "lib.rs")
	oracle := &scriptedOracle{passes: [][]validator.Diagnostic{
		{errorDiag("cannot find type `BTreeMap` in this scope", 5)},
		nil,
	}}
	e := newEngine(t, oracle)

	res, err := e.Extract(context.Background(), Request{File: source, Selection: rng(0, 0, 2, 1), ModuleName: "index"})
	require.NoError(t, err)
	assert.Equal(t, []string{"import std::collections::BTreeMap"}, res.FixesApplied)
	assert.Equal(t, `//! Index module
//!
//! This module was automatically extracted by cratesplit.

use std::collections::BTreeMap;

pub struct Index {
    entries: BTreeMap<String, u32>,
}
`, read(t, res.ModuleFile))
	assert.Equal(t, "mod index;\npub use index::Index;\n\n", read(t, source))
}

func TestExtract_OracleUnavailable(t *testing.T) {
	root := shopProject(t)
	source := filepath.Join(root, "src", "models", "subscription.rs")
	e := newEngine(t, &scriptedOracle{checkErr: errors.New("cargo binary not found")})

	res, err := e.Extract(context.Background(), Request{File: source, Selection: rng(5, 0, 8, 1), ModuleName: "plan"})
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.False(t, res.Validated)
	assert.FileExists(t, res.ModuleFile)
}

func TestExtract_CleanupRemovesUnusedImports(t *testing.T) {
	root := shopProject(t)
	source := filepath.Join(root, "src", "models", "subscription.rs")
	oracle := &scriptedOracle{
		passes: [][]validator.Diagnostic{{{
			Severity: validator.SeverityWarning,
			Message:  "unused import: `std::collections::HashMap`",
			Range:    rng(4, 4, 4, 29),
		}}},
		fixes: []validator.Fix{{
			Description: "remove the whole `use` item",
			Edits:       []document.TextEdit{{Range: rng(4, 0, 5, 0), NewText: ""}},
		}},
	}
	e := newEngine(t, oracle)

	res, err := e.Extract(context.Background(), Request{File: source, Selection: rng(5, 0, 8, 1), ModuleName: "plan"})
	require.NoError(t, err)
	assert.True(t, res.Validated)
	assert.Equal(t, 1, res.RemovedImports)
	assert.NotContains(t, read(t, res.ModuleFile), "use std::collections::HashMap;")
}

// --- Failures before mutation ---

func TestExtract_InputErrors(t *testing.T) {
	root := shopProject(t)
	source := filepath.Join(root, "src", "models", "subscription.rs")
	e := newEngine(t, nil)

	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{"invalid module name", Request{File: source, Selection: rng(5, 0, 8, 1), ModuleName: "Bad-Name"}, ErrInvalidModuleName},
		{"keyword module name", Request{File: source, Selection: rng(5, 0, 8, 1), ModuleName: "match"}, ErrInvalidModuleName},
		{"whitespace selection", Request{File: source, Selection: rng(4, 0, 4, 0), ModuleName: "plan"}, ErrEmptySelection},
		{"out of bounds", Request{File: source, Selection: rng(5, 0, 99, 0), ModuleName: "plan"}, ErrSelectionOutOfBounds},
		{"existing module", Request{File: source, Selection: rng(5, 0, 8, 1), ModuleName: "subscription"}, ErrModuleExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Extract(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, KindInput, KindOf(err))
		})
	}
	assert.Equal(t, subscriptionSource, read(t, source))
}

func TestExtract_NoProjectRoot(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "loose.rs")
	require.NoError(t, os.WriteFile(file, []byte("pub struct Loose;\n"), 0o644))

	_, err := newEngine(t, nil).Extract(context.Background(), Request{File: file, Selection: rng(0, 0, 0, 17), ModuleName: "loose_mod"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoProjectRoot)
	assert.Equal(t, KindEnvironment, KindOf(err))
}

func TestExtract_CanceledBeforeWrite(t *testing.T) {
	root := shopProject(t)
	source := filepath.Join(root, "src", "models", "subscription.rs")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newEngine(t, nil).Extract(ctx, Request{File: source, Selection: rng(5, 0, 8, 1), ModuleName: "plan"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCanceled)
	assert.NoFileExists(t, filepath.Join(root, "src", "models", "plan.rs"))
	assert.Equal(t, subscriptionSource, read(t, source))
}

func TestExtract_SourceChangedSinceSnapshot(t *testing.T) {
	root := shopProject(t)
	source := filepath.Join(root, "src", "models", "subscription.rs")
	snapshot := document.New(source, subscriptionSource)
	require.NoError(t, os.WriteFile(source, []byte("// edited\n"+subscriptionSource), 0o644))

	res, err := newEngine(t, nil).Extract(context.Background(), Request{
		File:       source,
		Selection:  rng(5, 0, 8, 1),
		ModuleName: "plan",
		Document:   snapshot,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceChanged)
	assert.Equal(t, KindEnvironment, KindOf(err))
	assert.Equal(t, StateParentUpdated, res.State)

	require.NoError(t, res.Journal.Rollback())
	assert.NoFileExists(t, res.ModuleFile)
	assert.Equal(t, modelsMod, read(t, filepath.Join(root, "src", "models", "mod.rs")))
}

// --- Engine helpers ---

func TestEngine_Analyze(t *testing.T) {
	root := shopProject(t)
	source := filepath.Join(root, "src", "models", "subscription.rs")
	e := newEngine(t, nil)

	res, cached, err := e.Analyze(context.Background(), source, rng(5, 0, 8, 1))
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, []string{"Subscription"}, res.PublicNames())

	_, _, err = e.Analyze(context.Background(), source, rng(4, 0, 4, 0))
	assert.Equal(t, KindInput, KindOf(err))
}

func TestEngine_Suggest(t *testing.T) {
	e := newEngine(t, nil)

	got := e.Suggest(context.Background(), "src/lib.rs", "HashMap")
	require.NotEmpty(t, got)
	assert.Equal(t, Suggestion{Path: "std::collections::HashMap", Source: "catalog", Confidence: 1, Kind: "struct"}, got[0])

	assert.Empty(t, e.Suggest(context.Background(), "src/lib.rs", "Qqqqqqqq"))
}
