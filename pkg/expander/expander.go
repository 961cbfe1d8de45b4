// Package expander widens a raw selection to whole declarations, including
// the attributes and doc comments attached to them.
package expander

import (
	"strings"

	"github.com/gnana997/cratesplit/pkg/document"
	"github.com/gnana997/cratesplit/pkg/extractor"
	"github.com/gnana997/cratesplit/pkg/structure"
)

// maxAttributeLines bounds the upward search for the opening line of a
// multi-line attribute.
const maxAttributeLines = 64

// Span is an expanded selection.
type Span struct {
	// Range covers StartLine..EndLine as full lines, without the final
	// line terminator.
	Range     document.Range `json:"range"`
	StartLine int            `json:"start_line"`
	EndLine   int            `json:"end_line"`
	Text      string         `json:"text"`
	// Declarations are the outline entries that determined the span.
	Declarations []*extractor.Declaration `json:"declarations"`
}

// Expand returns the smallest run of whole lines that contains sel and
// consists of complete declarations with their leading attributes and doc
// comments. It returns nil when the outline is empty or nothing overlaps
// sel; callers then fall back to the raw selection.
//
// Ancestors are only traversed: a selection nested inside a method yields
// that method, not the surrounding impl block.
func Expand(outline *extractor.Outline, doc *document.Document, sel document.Range) *Span {
	if outline.IsEmpty() {
		return nil
	}

	hits := collect(outline.Declarations, sel)
	if len(hits) == 0 {
		return nil
	}

	start, end := hits[0].Range.Start.Line, hits[0].Range.End.Line
	for _, d := range hits[1:] {
		start = min(start, d.Range.Start.Line)
		end = max(end, d.Range.End.Line)
	}
	start = AttachedStart(doc, start)

	r := doc.FullLines(start, end)
	text, err := doc.TextIn(r)
	if err != nil {
		return nil
	}
	return &Span{
		Range:        r,
		StartLine:    start,
		EndLine:      end,
		Text:         text,
		Declarations: hits,
	}
}

// collect returns the innermost declarations that overlap sel. A
// declaration with an endpoint inside sel is taken whole. One that merely
// contains sel is replaced by its overlapping children when it is an impl,
// trait or module; items local to a function body never stand alone.
func collect(decls []*extractor.Declaration, sel document.Range) []*extractor.Declaration {
	var hits []*extractor.Declaration
	for _, d := range decls {
		if endpointIn(d.Range, sel) {
			hits = append(hits, d)
			continue
		}
		if !contains(d.Range, sel) {
			continue
		}
		if !isContainer(d.Kind) {
			hits = append(hits, d)
			continue
		}
		if inner := collect(d.Children, sel); len(inner) > 0 {
			hits = append(hits, inner...)
			continue
		}
		hits = append(hits, d)
	}
	return hits
}

func isContainer(k extractor.ItemKind) bool {
	return k == extractor.KindImpl || k == extractor.KindTrait || k == extractor.KindModule
}

func endpointIn(r, sel document.Range) bool {
	return within(r.Start, sel) || within(r.End, sel)
}

// within treats sel as half-open, so a declaration starting where the
// selection ends is not pulled in.
func within(p document.Position, sel document.Range) bool {
	return !p.Before(sel.Start) && p.Before(sel.End)
}

func contains(outer, inner document.Range) bool {
	return !inner.Start.Before(outer.Start) && !outer.End.Before(inner.End)
}

// AttachedStart walks upward from line over attributes, doc comments and
// blank lines, and returns the first line of the attached block. Blank
// lines at the top of the block are not included.
func AttachedStart(doc *document.Document, line int) int {
	start := line
	for i := line - 1; i >= 0; i-- {
		text := strings.TrimSpace(doc.Line(i))
		switch {
		case text == "":
			continue
		case isAttachedLine(text):
			start = i
			continue
		}
		if open, ok := attributeOpening(doc, i); ok {
			start = open
			i = open
			continue
		}
		break
	}
	return start
}

func isAttachedLine(text string) bool {
	switch {
	case strings.HasPrefix(text, "#["), strings.HasPrefix(text, "#!["):
		return strings.HasSuffix(text, "]")
	case strings.HasPrefix(text, "///"), strings.HasPrefix(text, "//!"):
		return true
	case strings.HasPrefix(text, "/**"), strings.HasPrefix(text, "/*!"):
		return strings.HasSuffix(text, "*/")
	}
	return false
}

// attributeOpening finds the `#[` line of a multi-line attribute (or doc
// block comment) that ends on line end.
func attributeOpening(doc *document.Document, end int) (int, bool) {
	last := strings.TrimSpace(doc.Line(end))
	switch {
	case strings.HasSuffix(last, "]"):
		for i := end - 1; i >= 0 && i >= end-maxAttributeLines; i-- {
			text := strings.TrimSpace(doc.Line(i))
			if !strings.HasPrefix(text, "#[") {
				continue
			}
			block := strings.Join(doc.Lines()[i:end+1], "\n")
			masked := structure.Mask(block)
			open := strings.IndexByte(masked, '[')
			closeAt, ok := structure.MatchDelim(masked, open, len(masked))
			if ok && strings.TrimSpace(masked[closeAt+1:]) == "" {
				return i, true
			}
			return 0, false
		}
	case strings.HasSuffix(last, "*/"):
		for i := end - 1; i >= 0 && i >= end-maxAttributeLines; i-- {
			text := strings.TrimSpace(doc.Line(i))
			if strings.HasPrefix(text, "/**") || strings.HasPrefix(text, "/*!") {
				return i, true
			}
			if strings.Contains(text, "*/") {
				return 0, false
			}
		}
	}
	return 0, false
}
