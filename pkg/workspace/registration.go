package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gnana997/cratesplit/pkg/structure"
)

// ErrNoRegistrationFile is returned when no file can declare a module.
var ErrNoRegistrationFile = errors.New("no registration file found")

// Registration is the file that declares a module directory's children.
type Registration struct {
	File string `json:"file"`
	// Direct is true when File owns the directory, so a plain `mod name;`
	// resolves to <dir>/name.rs.
	Direct bool `json:"direct"`
}

// PathAttr returns the `#[path]` value a non-direct registration needs to
// reach moduleFile, or empty for direct ones. Paths are relative to the
// directory of File.
func (r Registration) PathAttr(moduleFile string) string {
	if r.Direct {
		return ""
	}
	rel, err := filepath.Rel(filepath.Dir(r.File), moduleFile)
	if err != nil {
		return filepath.ToSlash(moduleFile)
	}
	return filepath.ToSlash(rel)
}

// FindRegistration probes for the file that registers modules placed in
// dir, in this order:
//
//  1. <dir>/mod.rs
//  2. <dir>.rs
//  3. lib.rs, then main.rs, when dir is the source root
//  4. the nearest ancestor mod.rs below the source root, then the crate root
func (p *Project) FindRegistration(dir string) (Registration, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return Registration{}, err
	}
	if _, err := p.relToSrc(dir); err != nil {
		return Registration{}, fmt.Errorf("%w: %v", ErrNoRegistrationFile, err)
	}

	if f := filepath.Join(dir, "mod.rs"); fileExists(f) {
		return Registration{File: f, Direct: true}, nil
	}
	if dir == filepath.Clean(p.SrcRoot) {
		if entry, err := p.RootEntry(); err == nil {
			return Registration{File: entry, Direct: true}, nil
		}
		return Registration{}, fmt.Errorf("%w for %s", ErrNoRegistrationFile, dir)
	}
	if f := dir + ".rs"; fileExists(f) {
		return Registration{File: f, Direct: true}, nil
	}

	for d := filepath.Dir(dir); ; d = filepath.Dir(d) {
		if d == filepath.Clean(p.SrcRoot) {
			break
		}
		if f := filepath.Join(d, "mod.rs"); fileExists(f) {
			p.logger.Debug("using ancestor registration file", "dir", dir, "file", f)
			return Registration{File: f}, nil
		}
		if filepath.Dir(d) == d {
			break
		}
	}
	entry, err := p.RootEntry()
	if err != nil {
		return Registration{}, err
	}
	return Registration{File: entry}, nil
}

// ModuleDecl is a module registration to insert.
type ModuleDecl struct {
	Name string
	// Path is emitted as `#[path = "..."]` when set.
	Path string
	// ReExports are the public names re-exported with `pub use`.
	ReExports []string
}

// Lines renders the declaration.
func (d ModuleDecl) Lines() []string {
	var lines []string
	if d.Path != "" {
		lines = append(lines, fmt.Sprintf("#[path = %q]", d.Path))
	}
	lines = append(lines, "mod "+d.Name+";")
	switch len(d.ReExports) {
	case 0:
	case 1:
		lines = append(lines, "pub use "+d.Name+"::"+d.ReExports[0]+";")
	default:
		lines = append(lines, "pub use "+d.Name+"::{"+strings.Join(d.ReExports, ", ")+"};")
	}
	return lines
}

// IsRegistered reports whether text already declares module name.
func IsRegistered(text, name string) bool {
	re := regexp.MustCompile(`(?m)^[ \t]*(?:pub(?:\s*\([^)]*\))?\s+)?mod\s+` + regexp.QuoteMeta(name) + `\s*[;{]`)
	return re.MatchString(structure.Mask(text))
}

// Register inserts decl into text. It returns the text unchanged and false
// when the module is already declared. The declaration goes after the last
// `mod x;` item, else after the last use declaration, else at the top of
// the file below inner attributes and `//!` docs.
func Register(text string, decl ModuleDecl) (string, bool) {
	out, _, ok := RegisterAt(text, decl)
	return out, ok
}

// RegisterAt is Register that also returns the offset the declaration was
// inserted at. Text before that offset is unchanged.
func RegisterAt(text string, decl ModuleDecl) (string, int, bool) {
	if IsRegistered(text, decl.Name) {
		return text, 0, false
	}
	block := strings.Join(decl.Lines(), "\n") + "\n"

	at, found := lastModuleEnd(text)
	if !found {
		if imports := structure.ParseImports(text); len(imports) > 0 {
			at, found = imports[len(imports)-1].End, true
		}
	}
	if found {
		at = lineEnd(text, at)
		if at == len(text) && !strings.HasSuffix(text, "\n") {
			return text + "\n" + block, at, true
		}
		return text[:at] + block + text[at:], at, true
	}

	at = headerEnd(text)
	rest := text[at:]
	if strings.TrimSpace(rest) != "" && !strings.HasPrefix(rest, "\n") {
		block += "\n"
	}
	if at > 0 && !strings.HasSuffix(text[:at], "\n\n") {
		block = "\n" + block
	}
	return text[:at] + block + rest, at, true
}

func lastModuleEnd(text string) (int, bool) {
	decls := structure.NewLexicalParser().ParseDeclarations(text)
	end, found := 0, false
	for _, it := range decls.Items {
		if it.Kind != structure.ItemModule {
			continue
		}
		if strings.HasSuffix(strings.TrimSpace(text[it.Start:it.End]), ";") {
			end, found = it.End, true
		}
	}
	return end, found
}

// lineEnd returns the offset just past the line terminator at or after i.
func lineEnd(text string, i int) int {
	if j := strings.IndexByte(text[i:], '\n'); j >= 0 {
		return i + j + 1
	}
	return len(text)
}

// headerEnd skips leading `//!` lines, inner attributes and blank lines
// between them.
func headerEnd(text string) int {
	at, i := 0, 0
	for i < len(text) {
		end := lineEnd(text, i)
		line := strings.TrimSpace(text[i:end])
		switch {
		case strings.HasPrefix(line, "//!"):
			at = end
		case strings.HasPrefix(line, "#!["):
			masked := structure.Mask(text[i:])
			open := strings.IndexByte(masked, '[')
			closeAt, ok := structure.MatchDelim(masked, open, len(masked))
			if !ok {
				return at
			}
			end = lineEnd(text, i+closeAt)
			at = end
		case line == "":
		default:
			return at
		}
		i = end
	}
	return at
}

// Conversion describes a file module that must become a folder module
// before children can be placed in its directory.
type Conversion struct {
	// File is the X.rs module file.
	File string `json:"file"`
	// Target is the X/mod.rs it moves to.
	Target string `json:"target"`
}

// CheckModuleConversion reports whether dir X has a file-module sibling
// X.rs and no X/mod.rs.
func CheckModuleConversion(dir string) (Conversion, bool) {
	dir = filepath.Clean(dir)
	file := dir + ".rs"
	target := filepath.Join(dir, "mod.rs")
	if !fileExists(file) || fileExists(target) {
		return Conversion{}, false
	}
	return Conversion{File: file, Target: target}, true
}

// ConvertModuleToFolder moves X.rs to X/mod.rs, creating X/ when needed.
func ConvertModuleToFolder(dir string) (Conversion, error) {
	conv, ok := CheckModuleConversion(dir)
	if !ok {
		return Conversion{}, fmt.Errorf("%s has no file module to convert", dir)
	}
	if err := os.MkdirAll(filepath.Clean(dir), 0o755); err != nil {
		return Conversion{}, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := os.Rename(conv.File, conv.Target); err != nil {
		return Conversion{}, fmt.Errorf("failed to move %s: %w", conv.File, err)
	}
	return conv, nil
}
