// Package cargo reads Cargo manifests and runs `cargo check` with JSON
// diagnostics.
package cargo

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ManifestName is the manifest file name.
const ManifestName = "Cargo.toml"

// Manifest is the subset of Cargo.toml the engine needs.
type Manifest struct {
	Package           *Package       `toml:"package"`
	Lib               *Target        `toml:"lib"`
	Bins              []Target       `toml:"bin"`
	Workspace         *Workspace     `toml:"workspace"`
	Dependencies      map[string]any `toml:"dependencies"`
	DevDependencies   map[string]any `toml:"dev-dependencies"`
	BuildDependencies map[string]any `toml:"build-dependencies"`
}

// Package is the [package] table.
type Package struct {
	Name    string `toml:"name"`
	Version any    `toml:"version"`
	Edition string `toml:"edition"`
}

// Target is a [lib] or [[bin]] table.
type Target struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
}

// Workspace is the [workspace] table.
type Workspace struct {
	Members []string `toml:"members"`
	Exclude []string `toml:"exclude"`
}

// Dependency is one entry of a dependency table.
type Dependency struct {
	// Name is the key in the table, which is also the crate name used in
	// code after dash normalization.
	Name    string `json:"name"`
	Version string `json:"version"`
	// Package is the real package name when the dependency is renamed.
	Package string `json:"package,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// ReadManifest parses the manifest at path.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return m, nil
}

// ParseManifest parses manifest text.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Name returns the package name, or empty for a virtual manifest.
func (m *Manifest) Name() string {
	if m.Package == nil {
		return ""
	}
	return m.Package.Name
}

// LibPath returns the library entry relative to the manifest directory.
func (m *Manifest) LibPath() string {
	if m.Lib != nil && m.Lib.Path != "" {
		return m.Lib.Path
	}
	return "src/lib.rs"
}

// Deps returns normal dependencies followed by dev and build dependencies,
// each group sorted by name.
func (m *Manifest) Deps() []Dependency {
	var out []Dependency
	out = append(out, collectDeps(m.Dependencies, "")...)
	out = append(out, collectDeps(m.DevDependencies, "dev")...)
	return append(out, collectDeps(m.BuildDependencies, "build")...)
}

// CrateNames returns the names dependencies are referenced by in code.
// Dashes are replaced with underscores.
func (m *Manifest) CrateNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, d := range m.Deps() {
		n := strings.ReplaceAll(d.Name, "-", "_")
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	return names
}

func collectDeps(table map[string]any, kind string) []Dependency {
	out := make([]Dependency, 0, len(table))
	for name, spec := range table {
		d := Dependency{Name: name, Version: "*", Kind: kind}
		switch v := spec.(type) {
		case string:
			d.Version = v
		case map[string]any:
			if ver, ok := v["version"].(string); ok {
				d.Version = ver
			}
			if pkg, ok := v["package"].(string); ok {
				d.Package = pkg
			}
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
