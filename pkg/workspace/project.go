// Package workspace locates a Rust project on disk and answers questions
// about its module tree: where the crate root is, which module a file
// is, and which file registers a module directory.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gnana997/cratesplit/pkg/cargo"
)

var (
	// ErrNoProjectRoot is returned when no Cargo.toml exists above a file.
	ErrNoProjectRoot = errors.New("no Cargo.toml found")
	// ErrOutsideSourceRoot is returned for paths outside the crate's source root.
	ErrOutsideSourceRoot = errors.New("path is outside the source root")
)

// Project is a Cargo package.
type Project struct {
	// Root is the directory holding Cargo.toml.
	Root string
	// SrcRoot is the directory of the crate root file, usually Root/src.
	SrcRoot  string
	Manifest *cargo.Manifest

	logger *slog.Logger
}

// FindProjectRoot walks up from path to the nearest directory containing a
// Cargo.toml with a [package] table. A virtual workspace manifest is
// skipped unless nothing else is found.
func FindProjectRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	dir := abs
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		dir = filepath.Dir(abs)
	}

	fallback := ""
	for {
		manifest := filepath.Join(dir, cargo.ManifestName)
		if _, err := os.Stat(manifest); err == nil {
			m, err := cargo.ReadManifest(manifest)
			if err == nil && m.Package != nil {
				return dir, nil
			}
			if fallback == "" {
				fallback = dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("%w above %s", ErrNoProjectRoot, path)
}

// Open finds the project containing path and reads its manifest.
func Open(path string, logger *slog.Logger) (*Project, error) {
	if logger == nil {
		logger = slog.Default()
	}
	root, err := FindProjectRoot(path)
	if err != nil {
		return nil, err
	}
	m, err := cargo.ReadManifest(filepath.Join(root, cargo.ManifestName))
	if err != nil {
		return nil, err
	}

	p := &Project{Root: root, Manifest: m, logger: logger}
	p.SrcRoot = filepath.Dir(filepath.Join(root, filepath.FromSlash(m.LibPath())))
	if _, err := os.Stat(p.SrcRoot); err != nil {
		p.SrcRoot = filepath.Join(root, "src")
	}
	logger.Debug("opened project", "root", root, "src_root", p.SrcRoot, "package", m.Name())
	return p, nil
}

// RootEntry returns the crate root file: the library entry if it exists,
// otherwise src/main.rs.
func (p *Project) RootEntry() (string, error) {
	candidates := []string{
		filepath.Join(p.Root, filepath.FromSlash(p.Manifest.LibPath())),
		filepath.Join(p.SrcRoot, "lib.rs"),
		filepath.Join(p.SrcRoot, "main.rs"),
	}
	for _, c := range candidates {
		if fileExists(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: no lib.rs or main.rs in %s", ErrNoRegistrationFile, p.SrcRoot)
}

// ExternalCrates returns the dependency names usable in paths.
func (p *Project) ExternalCrates() []string {
	return p.Manifest.CrateNames()
}

// NamespacePath returns the module path of file below the crate root. The
// crate root file and mod.rs files name their directory:
//
//	src/lib.rs                    -> []
//	src/models/mod.rs             -> [models]
//	src/models/subscription.rs    -> [models subscription]
func (p *Project) NamespacePath(file string) ([]string, error) {
	rel, err := p.relToSrc(file)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	last := strings.TrimSuffix(parts[len(parts)-1], ".rs")
	dirs := parts[:len(parts)-1]

	switch {
	case last == "mod":
	case len(dirs) == 0 && p.isRootEntry(file):
	default:
		dirs = append(dirs, last)
	}
	return dirs, nil
}

// DirNamespace returns the module path a directory stands for.
func (p *Project) DirNamespace(dir string) ([]string, error) {
	rel, err := p.relToSrc(dir)
	if err != nil {
		return nil, err
	}
	if rel == "." {
		return []string{}, nil
	}
	return strings.Split(filepath.ToSlash(rel), "/"), nil
}

func (p *Project) isRootEntry(file string) bool {
	base := filepath.Base(file)
	if base == "lib.rs" || base == "main.rs" {
		return true
	}
	return filepath.Clean(file) == filepath.Join(p.Root, filepath.FromSlash(p.Manifest.LibPath()))
}

func (p *Project) relToSrc(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(p.SrcRoot, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideSourceRoot, path)
	}
	return rel, nil
}

var moduleNameRE = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

var keywords = map[string]bool{
	"as": true, "async": true, "await": true, "break": true, "const": true, "continue": true,
	"crate": true, "dyn": true, "else": true, "enum": true, "extern": true, "false": true,
	"fn": true, "for": true, "if": true, "impl": true, "in": true, "let": true, "loop": true,
	"match": true, "mod": true, "move": true, "mut": true, "pub": true, "ref": true,
	"return": true, "self": true, "Self": true, "static": true, "struct": true, "super": true,
	"trait": true, "true": true, "type": true, "unsafe": true, "use": true, "where": true,
	"while": true, "abstract": true, "become": true, "box": true, "do": true, "final": true,
	"macro": true, "override": true, "priv": true, "try": true, "typeof": true, "unsized": true,
	"virtual": true, "yield": true, "gen": true,
}

// ValidModuleName reports whether name can be used as a module file name:
// snake_case and not a keyword.
func ValidModuleName(name string) bool {
	return name != "_" && moduleNameRE.MatchString(name) && !keywords[name]
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
