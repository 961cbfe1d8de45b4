package structure

import (
	"fmt"
	"strings"
)

// UseTree is a parsed use tree: `a::b::{C, D as E, f::*}`.
type UseTree struct {
	Segments []string `json:"segments,omitempty"`
	// LeadingColons marks a 2015-style `::path` tree.
	LeadingColons bool       `json:"leading_colons,omitempty"`
	Alias         string     `json:"alias,omitempty"`
	Glob          bool       `json:"glob,omitempty"`
	Group         []*UseTree `json:"group,omitempty"`
	IsGroup       bool       `json:"is_group,omitempty"`
}

// Binding is one name a use tree brings into scope.
type Binding struct {
	// Name is the local name. Empty for globs and `as _` imports.
	Name string
	// Path is the full path of the imported item, with `self` resolved.
	Path []string
	Glob bool
	// Anonymous marks `as _` imports, which bind nothing but bring a
	// trait's methods into scope.
	Anonymous bool
}

// ParseUseTree parses the text of a use tree (without `use` and `;`).
func ParseUseTree(text string) (*UseTree, error) {
	p := &useParser{toks: tokenizeUse(Mask(text))}
	t, err := p.tree(true)
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("unexpected %q in use tree", p.toks[p.pos])
	}
	return t, nil
}

func tokenizeUse(s string) []string {
	var toks []string
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == ':' && i+1 < len(s) && s[i+1] == ':':
			toks = append(toks, "::")
			i += 2
		case c == '{' || c == '}' || c == ',' || c == '*':
			toks = append(toks, string(c))
			i++
		default:
			name, next := identAt(s, i, len(s))
			if name == "" {
				toks = append(toks, string(c))
				i++
				continue
			}
			toks = append(toks, name)
			i = next
		}
	}
	return toks
}

type useParser struct {
	toks []string
	pos  int
}

func (p *useParser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return ""
}

func (p *useParser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *useParser) tree(root bool) (*UseTree, error) {
	t := &UseTree{}
	if root && p.peek() == "::" {
		t.LeadingColons = true
		p.next()
	}

	for {
		tok := p.peek()
		switch {
		case tok == "*":
			p.next()
			t.Glob = true
		case tok == "{":
			p.next()
			t.IsGroup = true
			for p.peek() != "}" {
				if p.peek() == "" {
					return nil, fmt.Errorf("unterminated group in use tree")
				}
				child, err := p.tree(false)
				if err != nil {
					return nil, err
				}
				t.Group = append(t.Group, child)
				if p.peek() == "," {
					p.next()
				} else if p.peek() != "}" {
					return nil, fmt.Errorf("expected ',' or '}' in use tree, got %q", p.peek())
				}
			}
			p.next()
		case tok != "" && isIdentStart(tok[0]):
			p.next()
			t.Segments = append(t.Segments, tok)
			if p.peek() == "::" {
				p.next()
				continue
			}
		default:
			return nil, fmt.Errorf("unexpected %q in use tree", tok)
		}
		break
	}

	if p.peek() == "as" {
		p.next()
		alias := p.next()
		if alias == "" || !isIdentStart(alias[0]) {
			return nil, fmt.Errorf("expected identifier after 'as'")
		}
		t.Alias = alias
	}
	return t, nil
}

// String renders the tree back to source form.
func (t *UseTree) String() string {
	var b strings.Builder
	if t.LeadingColons {
		b.WriteString("::")
	}
	b.WriteString(strings.Join(t.Segments, "::"))
	sep := func() {
		if len(t.Segments) > 0 {
			b.WriteString("::")
		}
	}
	switch {
	case t.Glob:
		sep()
		b.WriteString("*")
	case t.IsGroup:
		sep()
		parts := make([]string, len(t.Group))
		for i, c := range t.Group {
			parts[i] = c.String()
		}
		b.WriteString("{" + strings.Join(parts, ", ") + "}")
	}
	if t.Alias != "" {
		b.WriteString(" as " + t.Alias)
	}
	return b.String()
}

// Bindings lists the names the tree brings into scope.
func (t *UseTree) Bindings() []Binding {
	var out []Binding
	t.collect(nil, &out)
	return out
}

func (t *UseTree) collect(prefix []string, out *[]Binding) {
	path := append(append([]string{}, prefix...), t.Segments...)
	switch {
	case t.Glob:
		*out = append(*out, Binding{Path: path, Glob: true})
	case t.IsGroup:
		for _, c := range t.Group {
			c.collect(path, out)
		}
	default:
		if len(path) > 0 && path[len(path)-1] == "self" {
			path = path[:len(path)-1]
		}
		if len(path) == 0 {
			return
		}
		b := Binding{Path: path, Name: strings.TrimPrefix(path[len(path)-1], "r#")}
		switch t.Alias {
		case "":
		case "_":
			b.Name = ""
			b.Anonymous = true
		default:
			b.Name = t.Alias
		}
		*out = append(*out, b)
	}
}

// Prune returns a copy of the tree keeping only leaves for which keep
// returns true, or nil when nothing is kept. A group left with one member
// is flattened into its parent path.
func (t *UseTree) Prune(keep func(Binding) bool) *UseTree {
	return t.prune(nil, keep)
}

func (t *UseTree) prune(prefix []string, keep func(Binding) bool) *UseTree {
	path := append(append([]string{}, prefix...), t.Segments...)
	if !t.IsGroup {
		var bs []Binding
		leaf := &UseTree{Segments: t.Segments, Alias: t.Alias, Glob: t.Glob}
		leaf.collect(prefix, &bs)
		for _, b := range bs {
			if keep(b) {
				c := *t
				return &c
			}
		}
		return nil
	}

	var kept []*UseTree
	for _, c := range t.Group {
		if pc := c.prune(path, keep); pc != nil {
			kept = append(kept, pc)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	out := &UseTree{
		Segments:      append([]string{}, t.Segments...),
		LeadingColons: t.LeadingColons,
		Alias:         t.Alias,
		IsGroup:       true,
		Group:         kept,
	}
	if len(kept) == 1 && t.Alias == "" && len(t.Segments) > 0 {
		only := kept[0]
		segs := append(out.Segments, only.Segments...)
		if len(segs) > 0 && segs[len(segs)-1] == "self" && !only.Glob && !only.IsGroup {
			segs = segs[:len(segs)-1]
		}
		return &UseTree{
			Segments:      segs,
			LeadingColons: t.LeadingColons,
			Alias:         only.Alias,
			Glob:          only.Glob,
			IsGroup:       only.IsGroup,
			Group:         only.Group,
		}
	}
	return out
}

// WithPrefix returns a copy whose path starts with prefix in place of the
// first drop segments.
func (t *UseTree) WithPrefix(prefix []string, drop int) *UseTree {
	c := *t
	if drop > len(c.Segments) {
		drop = len(c.Segments)
	}
	c.Segments = append(append([]string{}, prefix...), t.Segments[drop:]...)
	c.LeadingColons = false
	return &c
}
