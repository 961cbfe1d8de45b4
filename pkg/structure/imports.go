package structure

import (
	"strings"
)

// Import is a top-level use declaration or extern crate item.
type Import struct {
	// Text is the full declaration, attributes included.
	Text string `json:"text"`
	// Path is the use tree as written, whitespace collapsed.
	Path       string     `json:"path"`
	Visibility Visibility `json:"visibility"`
	// Root is the first path segment: "std", "crate", "super", a crate name...
	Root string `json:"root"`
	// Tree is nil when the use tree could not be parsed.
	Tree *UseTree `json:"tree,omitempty"`
	// Attributes holds the outer attributes, e.g. "#[cfg(test)]".
	Attributes string `json:"attributes,omitempty"`
	IsExtern   bool   `json:"is_extern,omitempty"`
	// Alias is the `as` name of an extern crate item.
	Alias string `json:"alias,omitempty"`
	// Start and End are byte offsets of Text in the parsed input.
	Start int `json:"start"`
	End   int `json:"end"`
	// Line is the 0-based line on which the declaration starts.
	Line int `json:"line"`
}

// Bindings returns the names the import brings into scope.
func (imp Import) Bindings() []Binding {
	if imp.IsExtern {
		name := imp.Alias
		if name == "" {
			name = imp.Root
		}
		if name == "_" {
			return []Binding{{Path: []string{imp.Root}, Anonymous: true}}
		}
		return []Binding{{Name: name, Path: []string{imp.Root}}}
	}
	if imp.Tree == nil {
		return nil
	}
	return imp.Tree.Bindings()
}

// IsWildcard reports whether the import contains a glob.
func (imp Import) IsWildcard() bool {
	for _, b := range imp.Bindings() {
		if b.Glob {
			return true
		}
	}
	return false
}

// ParseImports implements Parser.
func (p *LexicalParser) ParseImports(text string) []Import {
	return ParseImports(text)
}

// ParseImports returns the use declarations and extern crate items found at
// nesting depth zero of text, in source order.
func ParseImports(text string) []Import {
	masked := Mask(text)
	var imports []Import
	for _, it := range scanItems(masked, 0, len(masked)) {
		if it.kind != ItemUse && it.kind != ItemExtern {
			continue
		}
		start := it.start
		imp := Import{
			Visibility: ParseVisibility(it.vis),
			IsExtern:   it.kind == ItemExtern,
			End:        it.end,
		}
		if it.attrStart >= 0 {
			start = it.attrStart
			imp.Attributes = strings.TrimSpace(text[it.attrStart:it.start])
		}
		imp.Start = start
		imp.Text = text[start:it.end]
		imp.Line = strings.Count(text[:start], "\n")

		body := declarationBody(text[it.start:it.end], masked[it.start:it.end])
		imp.Path = CollapseSpace(body)
		if imp.IsExtern {
			imp.Root, _ = identAt(body, 0, len(body))
			if k := wordIndex(body, "as"); k >= 0 {
				imp.Alias = strings.TrimSpace(body[k+2:])
			}
		} else if tree, err := ParseUseTree(body); err == nil {
			imp.Tree = tree
			if len(tree.Segments) > 0 {
				imp.Root = tree.Segments[0]
			}
		}
		imports = append(imports, imp)
	}
	return imports
}

// declarationBody returns the text between the keyword and the trailing ';'.
func declarationBody(raw, masked string) string {
	m := headerRE.FindStringSubmatchIndex(masked)
	if m == nil {
		return ""
	}
	body := strings.TrimSpace(raw[m[1]:])
	return strings.TrimSpace(strings.TrimSuffix(body, ";"))
}
