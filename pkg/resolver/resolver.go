// Package resolver decides which of a source file's imports an extracted
// span needs and rewrites relative paths so they stay valid from the new
// module's location.
package resolver

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/gnana997/cratesplit/pkg/enclosing"
	"github.com/gnana997/cratesplit/pkg/semantic"
	"github.com/gnana997/cratesplit/pkg/structure"
)

// Class classifies an import by its first path segment.
type Class string

const (
	// ClassExternal is std, core, alloc or a Cargo dependency.
	ClassExternal Class = "external"
	// ClassCrate starts at `crate::` and is already absolute.
	ClassCrate Class = "crate"
	// ClassParent starts with one or more `super::`.
	ClassParent Class = "parent"
	// ClassSelf starts with `self::`.
	ClassSelf Class = "self"
	// ClassLocal starts at a module declared in the source file.
	ClassLocal Class = "local"
	// ClassUnknown could not be classified and passes through unchanged.
	ClassUnknown Class = "unknown"
)

// ErrAboveCrateRoot is returned when a path has more `super` segments than
// the namespace it is resolved from.
var ErrAboveCrateRoot = errors.New("path climbs above the crate root")

var sysroots = map[string]bool{
	"std":        true,
	"core":       true,
	"alloc":      true,
	"proc_macro": true,
	"test":       true,
}

// preludeNames never need an import.
var preludeNames = map[string]bool{
	"Clone": true, "Copy": true, "Send": true, "Sync": true, "Sized": true, "Unpin": true,
	"Drop": true, "Fn": true, "FnMut": true, "FnOnce": true, "Default": true,
	"Eq": true, "PartialEq": true, "Ord": true, "PartialOrd": true,
	"Iterator": true, "IntoIterator": true, "DoubleEndedIterator": true, "ExactSizeIterator": true,
	"Extend": true, "FromIterator": true, "From": true, "Into": true, "TryFrom": true, "TryInto": true,
	"AsRef": true, "AsMut": true, "ToString": true, "ToOwned": true,
}

var primitives = map[string]bool{
	"bool": true, "char": true, "str": true, "f32": true, "f64": true,
	"i8": true, "i16": true, "i32": true, "i64": true, "i128": true, "isize": true,
	"u8": true, "u16": true, "u32": true, "u64": true, "u128": true, "usize": true,
}

// Options describe where the span comes from.
type Options struct {
	// NamespacePath is the source file's module path below the crate root,
	// e.g. ["models", "subscription"] for src/models/subscription.rs.
	NamespacePath []string
	// ExternalCrates are Cargo dependency names. Dashes are normalized to
	// underscores.
	ExternalCrates []string
	// LocalModules are modules declared in the source file (`mod x;`).
	LocalModules []string
	// SourceDeclared are names of top-level items in the source file.
	SourceDeclared []string
	// SpanDeclared are names declared by the span itself.
	SpanDeclared []string
	// Enclosing is set when the span is wrapped in a synthetic impl block.
	Enclosing *enclosing.Context
}

// Resolved is an import kept for the new module.
type Resolved struct {
	Original structure.Import `json:"original"`
	Class    Class            `json:"class"`
	// Text is the declaration as it should appear in the new module.
	Text      string `json:"text"`
	Rewritten bool   `json:"rewritten"`
	Pruned    bool   `json:"pruned"`
	// Names are the local names the kept declaration binds.
	Names []string `json:"names,omitempty"`
}

// Result is the outcome of Resolve.
type Result struct {
	Imports []Resolved         `json:"imports"`
	Dropped []structure.Import `json:"dropped,omitempty"`
	// Synthesized holds imports added for the enclosing impl's target and
	// trait.
	Synthesized []string `json:"synthesized,omitempty"`
}

// Lines returns every import declaration for the new module in order.
func (r *Result) Lines() []string {
	lines := make([]string, 0, len(r.Imports)+len(r.Synthesized))
	for _, imp := range r.Imports {
		lines = append(lines, imp.Text)
	}
	return append(lines, r.Synthesized...)
}

// Resolver filters and rewrites imports.
type Resolver struct {
	logger *slog.Logger
}

// New creates a Resolver. Logger can be nil.
func New(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

// Resolve filters imports down to those span references and absolutizes
// the relative ones.
func (r *Resolver) Resolve(imports []structure.Import, span string, opts Options) *Result {
	usage := span
	if opts.Enclosing != nil {
		usage = opts.Enclosing.Header + "\n" + span
	}
	words := wordSet(usage)

	external := make(map[string]bool, len(opts.ExternalCrates))
	for _, c := range opts.ExternalCrates {
		external[strings.ReplaceAll(c, "-", "_")] = true
	}
	local := toSet(opts.LocalModules)

	res := &Result{}
	bound := make(map[string]bool)
	for _, imp := range imports {
		if imp.IsExtern {
			continue
		}
		class := Classify(imp, external, local)

		if imp.Tree == nil {
			r.logger.Warn("passing through unparsed import", "import", imp.Path)
			res.Imports = append(res.Imports, Resolved{Original: imp, Class: ClassUnknown, Text: imp.Text})
			continue
		}

		kept := filterTree(imp, class, usage, words)
		if kept == nil {
			res.Dropped = append(res.Dropped, imp)
			continue
		}

		out := Resolved{Original: imp, Class: class, Pruned: kept.String() != imp.Tree.String()}
		if abs, err := absolutize(kept, class, opts.NamespacePath); err != nil {
			r.logger.Warn("leaving relative import unchanged", "import", imp.Path, "error", err)
		} else if abs != kept {
			kept = abs
			out.Rewritten = true
		}
		out.Text = render(imp, kept)
		for _, b := range kept.Bindings() {
			if b.Name != "" {
				out.Names = append(out.Names, b.Name)
				bound[b.Name] = true
			}
		}
		res.Imports = append(res.Imports, out)
	}

	if opts.Enclosing != nil {
		res.Synthesized = synthesize(opts, bound)
	}
	return res
}

// Classify returns the class of imp's first segment.
func Classify(imp structure.Import, external, local map[string]bool) Class {
	if imp.Tree != nil && imp.Tree.LeadingColons {
		return ClassExternal
	}
	switch root := imp.Root; {
	case root == "crate":
		return ClassCrate
	case root == "super":
		return ClassParent
	case root == "self":
		return ClassSelf
	case sysroots[root] || external[root]:
		return ClassExternal
	case local[root]:
		return ClassLocal
	default:
		return ClassUnknown
	}
}

// filterTree prunes the import to the bindings the span uses. It returns
// nil when nothing is used.
func filterTree(imp structure.Import, class Class, usage string, words map[string]bool) *structure.UseTree {
	rootUsed := false
	switch class {
	case ClassExternal, ClassLocal, ClassUnknown:
		rootUsed = pathRootUsed(usage, imp.Root)
	}

	named := false
	for _, b := range imp.Tree.Bindings() {
		if b.Name != "" && words[b.Name] {
			named = true
			break
		}
	}

	return imp.Tree.Prune(func(b structure.Binding) bool {
		switch {
		case b.Anonymous:
			return true
		case b.Glob:
			prefix := lastNonMarker(b.Path)
			return prefix == "" || words[prefix] || named || rootUsed
		default:
			return words[b.Name]
		}
	})
}

// pathRootUsed reports whether root occurs in text as a whole word followed
// by `::`, with optional whitespace between them.
func pathRootUsed(text, root string) bool {
	if root == "" {
		return false
	}
	for from := 0; ; {
		i := strings.Index(text[from:], root)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(root)
		from = start + 1
		if start > 0 && isIdentByte(text[start-1]) {
			continue
		}
		if end < len(text) && isIdentByte(text[end]) {
			continue
		}
		rest := strings.TrimLeft(text[end:], " \t\r\n")
		if strings.HasPrefix(rest, "::") {
			return true
		}
	}
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func lastNonMarker(path []string) string {
	for i := len(path) - 1; i >= 0; i-- {
		switch path[i] {
		case "crate", "super", "self":
			continue
		}
		return path[i]
	}
	return ""
}

// absolutize rewrites parent-, self- and local-relative trees to start at
// `crate::`. Other classes are returned as is.
func absolutize(tree *structure.UseTree, class Class, ns []string) (*structure.UseTree, error) {
	switch class {
	case ClassParent:
		n := 0
		for n < len(tree.Segments) && tree.Segments[n] == "super" {
			n++
		}
		abs, err := Absolutize(ns, n, nil)
		if err != nil {
			return tree, err
		}
		return tree.WithPrefix(abs, n), nil
	case ClassSelf:
		abs, _ := Absolutize(ns, 0, nil)
		return tree.WithPrefix(abs, 1), nil
	case ClassLocal:
		abs, _ := Absolutize(ns, 0, nil)
		return tree.WithPrefix(abs, 0), nil
	default:
		return tree, nil
	}
}

// Absolutize pops parents segments off ns and appends rest, returning the
// path from the crate root: ["crate", ns[:len(ns)-parents]..., rest...].
func Absolutize(ns []string, parents int, rest []string) ([]string, error) {
	if parents > len(ns) {
		return nil, fmt.Errorf("%w: %d parent segments from %q", ErrAboveCrateRoot, parents, strings.Join(ns, "::"))
	}
	out := make([]string, 0, 1+len(ns)-parents+len(rest))
	out = append(out, "crate")
	out = append(out, ns[:len(ns)-parents]...)
	return append(out, rest...), nil
}

func render(imp structure.Import, tree *structure.UseTree) string {
	var b strings.Builder
	if imp.Attributes != "" {
		b.WriteString(imp.Attributes)
		b.WriteString("\n")
	}
	switch imp.Visibility {
	case structure.VisibilityPublic:
		b.WriteString("pub ")
	case structure.VisibilityRestricted:
		b.WriteString(restrictedPrefix(imp.Text))
	}
	b.WriteString("use ")
	b.WriteString(tree.String())
	b.WriteString(";")
	return b.String()
}

var restrictedRE = regexp.MustCompile(`pub\s*\([^)]*\)\s*`)

func restrictedPrefix(text string) string {
	if m := restrictedRE.FindString(text); m != "" {
		return structure.CollapseSpace(m) + " "
	}
	return "pub(crate) "
}

// synthesize adds imports for the enclosing impl's target type and trait.
func synthesize(opts Options, bound map[string]bool) []string {
	ctx := opts.Enclosing
	generics := toSet(ctx.Generics)
	inSpan := toSet(opts.SpanDeclared)
	inSource := toSet(opts.SourceDeclared)

	var out []string
	seen := make(map[string]bool)
	for _, pair := range [][2]string{{ctx.Target, ctx.TargetText}, {ctx.Interface, ctx.InterfaceText}} {
		name, text := pair[0], pair[1]
		if name == "" || seen[name] || strings.Contains(text, "::") {
			continue
		}
		seen[name] = true
		if generics[name] || inSpan[name] || bound[name] || primitives[name] ||
			preludeNames[name] || semantic.IsBuiltinType(name) {
			continue
		}
		if inSource[name] {
			abs, _ := Absolutize(opts.NamespacePath, 0, []string{name})
			out = append(out, "use "+strings.Join(abs, "::")+";")
			continue
		}
		out = append(out, "use super::"+name+";")
	}
	return out
}

var wordRE = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// wordSet returns the whole-word identifiers of text. Comments and string
// contents count: an identifier there is still a whole-word occurrence.
func wordSet(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range wordRE.FindAllString(text, -1) {
		words[w] = true
	}
	return words
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}
