package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

const ledgerSource = `use std::collections::HashMap;

pub struct Ledger {
    pub balances: HashMap<String, i64>,
}

pub fn open() -> Ledger {
    Ledger { balances: HashMap::new() }
}
`

// newProject writes a Cargo project with src/bank/account.rs and returns
// its root.
func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"Cargo.toml":          "[package]\nname = \"shop\"\nversion = \"0.1.0\"\nedition = \"2021\"\n",
		"src/lib.rs":          "pub mod bank;\n",
		"src/bank/mod.rs":     "pub mod account;\n",
		"src/bank/account.rs": ledgerSource,
	})
	return root
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, text := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	}
}

func readString(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// resetFlags restores every flag variable to its default. Cobra commands
// are package globals, so values would otherwise leak between tests.
func resetFlags() {
	workspaceFlag, logLevelFlag, logFormatFlag = "", "", ""
	extractTargetDir, extractConvertParent, extractDryRun, extractKeepOnFailure = "", false, false, false
	outlineJSON = false
	suggestFile, suggestJSON = "", false
	convertCheck = false
	serveKeepOnFailure, serveNoWatch = false, false
	setupAuto = false
}

// runCLI executes the command tree with args and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CRATESPLIT_ORACLE_PROVIDER", "none")
	resetFlags()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// --- version / config ---

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "cratesplit "+Version)
}

func TestConfigCommand(t *testing.T) {
	root := newProject(t)
	writeFiles(t, root, map[string]string{
		".cratesplit/config.yaml": "extract:\n  max_attempts: 5\n",
	})
	t.Setenv("CRATESPLIT_BRIDGE_BINARY", "cratesplit-bridge")

	out, err := runCLI(t, "config", "--workspace", root)
	require.NoError(t, err)
	assert.Contains(t, out, "# project root: "+root)
	assert.Contains(t, out, "max_attempts: 5")
	assert.Contains(t, out, "binary: cratesplit-bridge")
	assert.Contains(t, out, "provider: none")
}

func TestConfigCommand_InvalidFile(t *testing.T) {
	root := newProject(t)
	writeFiles(t, root, map[string]string{
		".cratesplit/config.yaml": "log:\n  level: loud\n",
	})

	_, err := runCLI(t, "config", "--workspace", root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

// --- analyze ---

func TestAnalyzeCommand(t *testing.T) {
	root := newProject(t)
	file := filepath.Join(root, "src", "bank", "account.rs")

	out, err := runCLI(t, "analyze", file, "3", "5")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, float64(3), got["start_line"])
	assert.Equal(t, float64(5), got["end_line"])
	assert.Equal(t, []any{"Ledger"}, got["declarations"])
	assert.Contains(t, got["text"], "pub struct Ledger {")
}

func TestAnalyzeCommand_BadArguments(t *testing.T) {
	root := newProject(t)
	file := filepath.Join(root, "src", "bank", "account.rs")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"not a number", []string{"analyze", file, "three", "5"}, "invalid start line"},
		{"reversed", []string{"analyze", file, "5", "3"}, "invalid line range"},
		{"past the end", []string{"analyze", file, "1", "40"}, "past the end"},
		{"missing file", []string{"analyze", filepath.Join(root, "nope.rs"), "1", "2"}, "failed to read"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := runCLI(t, tc.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	_, err := runCLI(t, "analyze", file, "3")
	assert.Error(t, err, "wrong argument count")
}

// --- extract ---

func TestExtractCommand(t *testing.T) {
	root := newProject(t)
	file := filepath.Join(root, "src", "bank", "account.rs")

	out, err := runCLI(t, "extract", file, "3", "5", "ledger")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "done", got["state"])

	module := readString(t, filepath.Join(root, "src", "bank", "ledger.rs"))
	assert.True(t, strings.HasPrefix(module, "//! Ledger module\n"))
	assert.Contains(t, module, "use std::collections::HashMap;")
	assert.Contains(t, module, "pub struct Ledger {")

	parent := readString(t, filepath.Join(root, "src", "bank", "mod.rs"))
	assert.Contains(t, parent, "mod ledger;")
	assert.Contains(t, parent, "pub use ledger::Ledger;")
	assert.NotContains(t, readString(t, file), "pub struct Ledger {")
}

func TestExtractCommand_DryRun(t *testing.T) {
	root := newProject(t)
	file := filepath.Join(root, "src", "bank", "account.rs")

	out, err := runCLI(t, "extract", file, "3", "5", "ledger", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "pub struct Ledger {")
	assert.NoFileExists(t, filepath.Join(root, "src", "bank", "ledger.rs"))
	assert.Equal(t, ledgerSource, readString(t, file))
}

func TestExtractCommand_InvalidModuleName(t *testing.T) {
	root := newProject(t)
	file := filepath.Join(root, "src", "bank", "account.rs")

	_, err := runCLI(t, "extract", file, "3", "5", "Ledger")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid module name")
	assert.Equal(t, ledgerSource, readString(t, file))
}

func TestExtractCommand_ConvertParent(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"Cargo.toml":    "[package]\nname = \"shop\"\nversion = \"0.1.0\"\n",
		"src/lib.rs":    "pub mod models;\n",
		"src/models.rs": "pub struct Handler;\n\npub struct Plan {\n    pub id: u32,\n}\n",
	})
	file := filepath.Join(root, "src", "models.rs")

	_, err := runCLI(t, "extract", file, "3", "5", "plan",
		"--target-dir", filepath.Join(root, "src", "models"), "--convert-parent")
	require.NoError(t, err)

	assert.NoFileExists(t, file)
	modRS := readString(t, filepath.Join(root, "src", "models", "mod.rs"))
	assert.Contains(t, modRS, "pub struct Handler;")
	assert.Contains(t, modRS, "mod plan;")
	assert.Contains(t, readString(t, filepath.Join(root, "src", "models", "plan.rs")), "pub struct Plan {")
}

// --- outline / suggest ---

func TestOutlineCommand(t *testing.T) {
	root := newProject(t)
	file := filepath.Join(root, "src", "bank", "account.rs")

	out, err := runCLI(t, "outline", file)
	require.NoError(t, err)
	assert.Contains(t, out, "pub struct Ledger  L3-5")
	assert.Contains(t, out, "open  L7-9")
	assert.Contains(t, out, "use std::collections::HashMap;")

	out, err = runCLI(t, "outline", file, "--json")
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Len(t, got["declarations"], 2)
}

func TestSuggestCommand(t *testing.T) {
	out, err := runCLI(t, "suggest", "HashMap")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "use std::collections::HashMap;")
	assert.Contains(t, lines[0], "catalog")

	out, err = runCLI(t, "suggest", "Zzqxv")
	require.NoError(t, err)
	assert.Contains(t, out, "no suggestions for Zzqxv")
}

// --- cache ---

func TestCacheCommands(t *testing.T) {
	root := newProject(t)
	file := filepath.Join(root, "src", "bank", "account.rs")

	_, err := runCLI(t, "analyze", file, "3", "5")
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(root, ".cratesplit-cache"))

	out, err := runCLI(t, "cache", "stats", "--workspace", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Cache Location: "+filepath.Join(root, ".cratesplit-cache"))
	assert.Contains(t, out, "Persisted Entries: 1")

	out, err = runCLI(t, "cache", "clear", "--workspace", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared 1 cached analyses")

	out, err = runCLI(t, "cache", "stats", "--workspace", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Persisted Entries: 0")
}

// --- convert-module ---

func TestConvertModuleCommand(t *testing.T) {
	root := newProject(t)
	writeFiles(t, root, map[string]string{"src/models.rs": "pub struct User;\n"})
	dir := filepath.Join(root, "src", "models")

	out, err := runCLI(t, "convert-module", dir, "--check")
	require.NoError(t, err)
	assert.Contains(t, out, "would move to")
	assert.FileExists(t, filepath.Join(root, "src", "models.rs"))

	out, err = runCLI(t, "convert-module", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Moved ")
	assert.NoFileExists(t, filepath.Join(root, "src", "models.rs"))
	assert.Equal(t, "pub struct User;\n", readString(t, filepath.Join(dir, "mod.rs")))

	out, err = runCLI(t, "convert-module", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "needs no conversion")
}
