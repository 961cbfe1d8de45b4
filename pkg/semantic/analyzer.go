// Package semantic derives cross-cutting properties of a parsed span: the
// type and trait names it references, whether it declares generic
// parameters, and its overall visibility.
package semantic

import (
	"regexp"
	"sort"
	"strings"

	"github.com/gnana997/cratesplit/pkg/structure"
)

// Properties is the result of Analyze.
type Properties struct {
	UsedTypes   []string             `json:"used_types"`
	UsedTraits  []string             `json:"used_traits"`
	HasGenerics bool                 `json:"has_generics"`
	Visibility  structure.Visibility `json:"visibility"`
}

// builtinTypes are always in scope through the prelude, so a colon
// annotation naming one of them never needs an import.
var builtinTypes = map[string]bool{
	"Self":   true,
	"String": true,
	"Vec":    true,
	"Option": true,
	"Result": true,
	"Box":    true,
	"Some":   true,
	"None":   true,
	"Ok":     true,
	"Err":    true,
}

// IsBuiltinType reports whether name is a prelude type.
func IsBuiltinType(name string) bool {
	return builtinTypes[name]
}

var (
	// annotationRE matches a type annotation after ':' and captures the
	// leading capitalized name: `x: &'a mut dyn Foo<T>` -> Foo.
	annotationRE = regexp.MustCompile(`:\s*&?\s*(?:'[A-Za-z_][A-Za-z0-9_]*\s+)?(?:mut\s+)?(?:dyn\s+|impl\s+)?((?:[A-Za-z_][A-Za-z0-9_]*::)*[A-Z][A-Za-z0-9_]*)`)

	// traitObjectRE matches `impl Trait` and `dyn Trait` in type position.
	traitObjectRE = regexp.MustCompile(`(?:->|[:(<,=&])\s*(?:'[A-Za-z_][A-Za-z0-9_]*\s+)?(?:mut\s+)?(?:impl|dyn)\s+((?:[A-Za-z_][A-Za-z0-9_]*::)*[A-Z][A-Za-z0-9_]*)`)

	implRE  = regexp.MustCompile(`\bimpl\b`)
	whereRE = regexp.MustCompile(`\bwhere\b`)
)

// Analyze computes the properties of span. decls must come from parsing
// the same span.
func Analyze(span string, decls *structure.Declarations) Properties {
	masked := structure.Mask(span)
	props := Properties{
		HasGenerics: decls.HasGenerics(),
		Visibility:  decls.Visibility(),
	}

	types := newNameSet()
	for _, m := range annotationRE.FindAllStringSubmatch(masked, -1) {
		// The second colon of a `::` separator also matches, so path
		// tails such as `fmt::Display` count as uses.
		name := structure.BaseName(m[1])
		if name != "" && !builtinTypes[name] {
			types.add(name)
		}
	}
	for _, dt := range decls.DataTypes {
		for _, f := range dt.Fields {
			for _, name := range structure.CapitalizedIdents(f.Type) {
				if !builtinTypes[name] {
					types.add(name)
				}
			}
		}
	}
	for _, fn := range allFunctions(decls) {
		for _, name := range fn.ExternalTypes {
			if !builtinTypes[name] {
				types.add(name)
			}
		}
	}
	// Types declared in the span are always reported.
	for _, dt := range decls.DataTypes {
		types.add(dt.Name)
	}
	for _, st := range decls.SumTypes {
		types.add(st.Name)
	}

	traits := newNameSet()
	for _, name := range boundTraits(masked) {
		traits.add(name)
	}
	for _, name := range implTraits(masked) {
		traits.add(name)
	}
	for _, m := range traitObjectRE.FindAllStringSubmatch(masked, -1) {
		traits.add(structure.BaseName(m[1]))
	}
	for _, iface := range decls.Interfaces {
		for _, name := range iface.Supertraits {
			traits.add(name)
		}
	}

	generics := make(map[string]bool)
	for _, g := range decls.GenericParams() {
		generics[g] = true
	}
	props.UsedTypes = types.sorted(generics)
	props.UsedTraits = traits.sorted(generics)
	return props
}

func allFunctions(decls *structure.Declarations) []structure.Function {
	fns := append([]structure.Function{}, decls.Functions...)
	for _, impl := range decls.Implementations {
		fns = append(fns, impl.Methods...)
	}
	return fns
}

// boundTraits returns trait names from generic parameter lists
// (`<T: A + B>`) and where clauses.
func boundTraits(masked string) []string {
	var names []string
	for i := 0; i < len(masked); i++ {
		if masked[i] != '<' {
			continue
		}
		closeAt, ok := structure.MatchAngle(masked, i, len(masked))
		if !ok {
			continue
		}
		for _, param := range structure.SplitTopLevel(masked[i+1:closeAt], ',') {
			names = append(names, paramBounds(param)...)
		}
	}

	for _, loc := range whereRE.FindAllStringIndex(masked, -1) {
		end := loc[1]
		for end < len(masked) && masked[end] != '{' && masked[end] != ';' {
			end++
		}
		for _, pred := range structure.SplitTopLevel(masked[loc[1]:end], ',') {
			names = append(names, paramBounds(pred)...)
		}
	}
	return names
}

// paramBounds returns the bounds of `T: A + B`, ignoring associated type
// bindings such as `Item = u8` and paths such as `a::B`.
func paramBounds(param string) []string {
	k := singleColon(param)
	if k < 0 {
		return nil
	}
	head := strings.TrimSpace(param[:k])
	if strings.Contains(head, "=") {
		return nil
	}
	bounds := param[k+1:]
	if eq := strings.IndexByte(bounds, '='); eq >= 0 && !strings.Contains(bounds[:eq], "<") {
		return nil
	}
	return structure.BoundNames(bounds)
}

// singleColon returns the offset of the first ':' that is not half of '::'.
func singleColon(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] != ':' {
			continue
		}
		if i+1 < len(s) && s[i+1] == ':' {
			i++
			continue
		}
		return i
	}
	return -1
}

// implTraits returns X for every `impl<..> X for Y` header.
func implTraits(masked string) []string {
	var names []string
	for _, loc := range implRE.FindAllStringIndex(masked, -1) {
		i := loc[1]
		for i < len(masked) && (masked[i] == ' ' || masked[i] == '\t' || masked[i] == '\n') {
			i++
		}
		if i < len(masked) && masked[i] == '<' {
			closeAt, ok := structure.MatchAngle(masked, i, len(masked))
			if !ok {
				continue
			}
			i = closeAt + 1
		}
		end := i
		for end < len(masked) && masked[end] != '{' && masked[end] != ';' && masked[end] != ')' && masked[end] != ',' {
			end++
		}
		header := masked[i:end]
		forAt := strings.Index(header, " for ")
		if forAt < 0 {
			continue
		}
		trait := strings.TrimPrefix(strings.TrimSpace(header[:forAt]), "!")
		if name := structure.BaseName(trait); name != "" && name[0] >= 'A' && name[0] <= 'Z' {
			names = append(names, name)
		}
	}
	return names
}

type nameSet map[string]bool

func newNameSet() nameSet { return make(nameSet) }

func (s nameSet) add(name string) {
	if name != "" {
		s[name] = true
	}
}

func (s nameSet) sorted(exclude map[string]bool) []string {
	out := make([]string, 0, len(s))
	for name := range s {
		if !exclude[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
