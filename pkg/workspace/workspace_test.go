package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/cratesplit/pkg/util"
)

const cargoToml = "[package]\nname = \"shop\"\nversion = \"0.1.0\"\n\n[dependencies]\nserde = \"1\"\nasync-trait = \"0.1\"\n"

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newProject(t *testing.T, files map[string]string) *Project {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "Cargo.toml", cargoToml)
	for rel, content := range files {
		writeFile(t, root, rel, content)
	}
	p, err := Open(filepath.Join(root, "src"), util.NewDiscardLogger())
	require.NoError(t, err)
	return p
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Cargo.toml", "[workspace]\nmembers = [\"shop\"]\n")
	writeFile(t, root, "shop/Cargo.toml", cargoToml)
	file := writeFile(t, root, "shop/src/models/user.rs", "pub struct User;\n")

	got, err := FindProjectRoot(file)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "shop"), got)

	_, err = FindProjectRoot(filepath.Join(t.TempDir(), "x.rs"))
	assert.ErrorIs(t, err, ErrNoProjectRoot)
}

func TestNamespacePath(t *testing.T) {
	p := newProject(t, map[string]string{"src/lib.rs": ""})

	tests := []struct {
		rel  string
		want []string
	}{
		{"src/lib.rs", []string{}},
		{"src/main.rs", []string{}},
		{"src/models/mod.rs", []string{"models"}},
		{"src/models.rs", []string{"models"}},
		{"src/models/subscription.rs", []string{"models", "subscription"}},
		{"src/a/b/c.rs", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			got, err := p.NamespacePath(filepath.Join(p.Root, filepath.FromSlash(tt.rel)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, append([]string{}, got...))
		})
	}

	_, err := p.NamespacePath(filepath.Join(p.Root, "build.rs"))
	assert.ErrorIs(t, err, ErrOutsideSourceRoot)
}

func TestExternalCrates(t *testing.T) {
	p := newProject(t, map[string]string{"src/lib.rs": ""})
	assert.Equal(t, []string{"async_trait", "serde"}, p.ExternalCrates())
}

func TestFindRegistration(t *testing.T) {
	tests := []struct {
		name   string
		files  []string
		dir    string
		want   string
		direct bool
	}{
		{"mod.rs", []string{"src/lib.rs", "src/models/mod.rs", "src/models.rs"}, "src/models", "src/models/mod.rs", true},
		{"sibling file", []string{"src/lib.rs", "src/models.rs"}, "src/models", "src/models.rs", true},
		{"source root lib", []string{"src/lib.rs", "src/main.rs"}, "src", "src/lib.rs", true},
		{"source root main", []string{"src/main.rs"}, "src", "src/main.rs", true},
		{"ancestor mod.rs", []string{"src/lib.rs", "src/models/mod.rs"}, "src/models/billing", "src/models/mod.rs", false},
		{"root entry fallback", []string{"src/main.rs"}, "src/models/billing", "src/main.rs", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := make(map[string]string)
			for _, f := range tt.files {
				files[f] = ""
			}
			p := newProject(t, files)

			reg, err := p.FindRegistration(filepath.Join(p.Root, filepath.FromSlash(tt.dir)))
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(p.Root, filepath.FromSlash(tt.want)), reg.File)
			assert.Equal(t, tt.direct, reg.Direct)
		})
	}
}

func TestRegistration_PathAttr(t *testing.T) {
	reg := Registration{File: "/w/src/lib.rs"}
	assert.Equal(t, "models/billing/invoice.rs", reg.PathAttr("/w/src/models/billing/invoice.rs"))
	reg.Direct = true
	assert.Empty(t, reg.PathAttr("/w/src/invoice.rs"))
}

func TestFindRegistration_NoEntry(t *testing.T) {
	p := newProject(t, map[string]string{"src/models/user.rs": ""})
	_, err := p.FindRegistration(filepath.Join(p.SrcRoot))
	assert.ErrorIs(t, err, ErrNoRegistrationFile)

	_, err = p.FindRegistration(filepath.Join(p.Root, "tests"))
	assert.ErrorIs(t, err, ErrNoRegistrationFile)
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name string
		text string
		decl ModuleDecl
		want string
	}{
		{
			name: "after last mod",
			text: "use std::fmt;\n\nmod a;\npub mod b;\n\nfn main() {}\n",
			decl: ModuleDecl{Name: "billing"},
			want: "use std::fmt;\n\nmod a;\npub mod b;\nmod billing;\n\nfn main() {}\n",
		},
		{
			name: "after last use with re-exports",
			text: "use std::fmt;\nuse crate::x::{\n    A,\n    B,\n};\n\nfn f() {}\n",
			decl: ModuleDecl{Name: "billing", ReExports: []string{"Invoice", "Plan"}},
			want: "use std::fmt;\nuse crate::x::{\n    A,\n    B,\n};\nmod billing;\npub use billing::{Invoice, Plan};\n\nfn f() {}\n",
		},
		{
			name: "top below inner docs",
			text: "//! Crate docs.\n#![allow(dead_code)]\n\nfn f() {}\n",
			decl: ModuleDecl{Name: "billing", ReExports: []string{"Invoice"}},
			want: "//! Crate docs.\n#![allow(dead_code)]\n\nmod billing;\npub use billing::Invoice;\n\nfn f() {}\n",
		},
		{
			name: "empty file",
			text: "",
			decl: ModuleDecl{Name: "billing"},
			want: "mod billing;\n",
		},
		{
			name: "path attribute",
			text: "mod a;",
			decl: ModuleDecl{Name: "invoice", Path: "models/billing/invoice.rs"},
			want: "mod a;\n#[path = \"models/billing/invoice.rs\"]\nmod invoice;\n",
		},
		{
			name: "inline mod ignored as anchor",
			text: "use a::B;\n#[cfg(test)]\nmod tests {\n    mod x;\n}\n",
			decl: ModuleDecl{Name: "billing"},
			want: "use a::B;\nmod billing;\n#[cfg(test)]\nmod tests {\n    mod x;\n}\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := Register(tt.text, tt.decl)
			assert.True(t, changed)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegister_AlreadyRegistered(t *testing.T) {
	for _, text := range []string{
		"mod billing;\n",
		"pub(crate) mod billing;\n",
		"pub mod billing {\n}\n",
	} {
		got, changed := Register(text, ModuleDecl{Name: "billing", ReExports: []string{"X"}})
		assert.False(t, changed, text)
		assert.Equal(t, text, got)
	}
	// A mention in a comment does not count.
	_, changed := Register("// mod billing;\n", ModuleDecl{Name: "billing"})
	assert.True(t, changed)
}

func TestValidModuleName(t *testing.T) {
	for _, ok := range []string{"billing", "order_items", "_private", "v2"} {
		assert.True(t, ValidModuleName(ok), ok)
	}
	for _, bad := range []string{"", "Billing", "2fast", "with-dash", "mod", "self", "_", "a b"} {
		assert.False(t, ValidModuleName(bad), bad)
	}
}

func TestModuleConversion(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/models.rs", "mod user;\n")
	dir := filepath.Join(root, "src", "models")

	conv, ok := CheckModuleConversion(dir)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "mod.rs"), conv.Target)

	_, err := ConvertModuleToFolder(dir)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "mod.rs"))
	require.NoError(t, err)
	assert.Equal(t, "mod user;\n", string(data))
	assert.NoFileExists(t, filepath.Join(root, "src", "models.rs"))

	_, ok = CheckModuleConversion(dir)
	assert.False(t, ok)
	_, err = ConvertModuleToFolder(dir)
	assert.Error(t, err)
}
