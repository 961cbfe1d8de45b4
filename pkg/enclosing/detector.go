// Package enclosing finds the impl block that lexically contains a
// selection. It scans the full document: the impl header usually sits
// outside the selected text.
package enclosing

import (
	"regexp"
	"strings"

	"github.com/gnana997/cratesplit/pkg/document"
	"github.com/gnana997/cratesplit/pkg/structure"
)

// Context describes an enclosing impl block.
type Context struct {
	// Target is the base name of the implementing type ("User" for
	// `impl<T> Display for User<T>`).
	Target string `json:"target"`
	// Interface is the base name of the implemented trait, empty for
	// inherent impls.
	Interface string `json:"interface,omitempty"`
	// Header is the block header as written, whitespace collapsed and
	// without the opening brace: `impl<T: Clone> fmt::Display for User<T>`.
	Header string `json:"header"`
	// TargetText and InterfaceText keep paths and generic arguments.
	TargetText    string `json:"target_text"`
	InterfaceText string `json:"interface_text,omitempty"`
	// Generics holds the impl's own generic parameter names.
	Generics []string `json:"generics,omitempty"`

	Start     int `json:"start"`
	BodyOpen  int `json:"body_open"`
	BodyClose int `json:"body_close"`
}

var implRE = regexp.MustCompile(`\bimpl\b`)

// Detect returns the innermost impl block whose braces strictly contain
// offset, or nil. Impl blocks nest when they appear inside function bodies
// or inline modules.
func Detect(text string, offset int) *Context {
	masked := structure.Mask(text)
	var best *Context
	for _, c := range Blocks(text, masked) {
		if c.BodyOpen < offset && offset < c.BodyClose {
			if best == nil || c.BodyOpen > best.BodyOpen {
				best = c
			}
		}
	}
	return best
}

// DetectAt is Detect for a position in doc.
func DetectAt(doc *document.Document, pos document.Position) (*Context, error) {
	offset, err := doc.OffsetAt(pos)
	if err != nil {
		return nil, err
	}
	return Detect(doc.Text, offset), nil
}

// Blocks returns every impl block in text, nested ones included. masked
// must be structure.Mask(text).
func Blocks(text, masked string) []*Context {
	var blocks []*Context
	for _, loc := range implRE.FindAllStringIndex(masked, -1) {
		start, ok := itemStart(masked, loc[0])
		if !ok {
			continue
		}
		if c := readBlock(text, masked, start, loc[1]); c != nil {
			blocks = append(blocks, c)
		}
	}
	return blocks
}

// itemStart reports whether the keyword at i begins an item rather than
// an `impl Trait` type, and returns where the item starts. Items follow a
// statement or block boundary or an attribute, optionally qualified by
// unsafe or default.
func itemStart(masked string, i int) (int, bool) {
	start := i
	for {
		before := strings.TrimRight(masked[:start], " \t\r\n")
		if before == "" {
			return start, true
		}
		switch before[len(before)-1] {
		case '{', '}', ';', ']':
			return start, true
		}
		qualified := false
		for _, q := range []string{"unsafe", "default"} {
			if strings.HasSuffix(before, q) {
				k := len(before) - len(q)
				if k == 0 || !isIdentChar(before[k-1]) {
					start = k
					qualified = true
				}
			}
		}
		if !qualified {
			return 0, false
		}
	}
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func readBlock(text, masked string, start, pos int) *Context {
	c := &Context{Start: start}
	for pos < len(masked) && (masked[pos] == ' ' || masked[pos] == '\t' || masked[pos] == '\n' || masked[pos] == '\r') {
		pos++
	}
	if pos < len(masked) && masked[pos] == '<' {
		closeAt, ok := structure.MatchAngle(masked, pos, len(masked))
		if !ok {
			return nil
		}
		for _, p := range structure.SplitTopLevel(masked[pos+1:closeAt], ',') {
			p = strings.TrimPrefix(p, "const ")
			if strings.HasPrefix(p, "'") {
				continue
			}
			if ids := structure.Identifiers(p); len(ids) > 0 {
				c.Generics = append(c.Generics, ids[0])
			}
		}
		pos = closeAt + 1
	}

	open := pos
	for open < len(masked) && masked[open] != '{' && masked[open] != ';' {
		if masked[open] == '(' || masked[open] == '[' {
			j, ok := structure.MatchDelim(masked, open, len(masked))
			if !ok {
				return nil
			}
			open = j
		}
		open++
	}
	if open >= len(masked) || masked[open] != '{' {
		return nil
	}
	closeAt, ok := structure.MatchDelim(masked, open, len(masked))
	if !ok {
		closeAt = len(masked)
	}

	target, trait := structure.SplitImplHeader(text[pos:open])
	c.TargetText = structure.CollapseSpace(target)
	c.InterfaceText = structure.CollapseSpace(trait)
	c.Target = structure.BaseName(target)
	c.Interface = structure.BaseName(trait)
	c.Header = structure.CollapseSpace(text[start:open])
	c.BodyOpen = open
	c.BodyClose = closeAt
	if c.Target == "" {
		return nil
	}
	return c
}

// Wrap renders body inside a block with the same header.
func (c *Context) Wrap(body string) string {
	body = strings.TrimRight(body, "\n")
	return c.Header + " {\n" + body + "\n}\n"
}
