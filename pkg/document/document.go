// Package document models source text the engine reads and rewrites:
// positions, ranges, line-indexed documents and text edits.
package document

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrOutOfBounds is returned when a position or range does not fit the document.
var ErrOutOfBounds = errors.New("position outside document bounds")

// Position is a zero-based line and byte column.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Before reports whether p sorts strictly before o.
func (p Position) Before(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Column < o.Column
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line+1, p.Column+1)
}

// Range is a half-open span [Start, End).
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// IsEmpty reports whether the range covers no text.
func (r Range) IsEmpty() bool {
	return !r.Start.Before(r.End)
}

// ContainsLine reports whether line falls between the range's start and end lines, inclusive.
func (r Range) ContainsLine(line int) bool {
	return line >= r.Start.Line && line <= r.End.Line
}

func (r Range) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// Document is an immutable snapshot of a file's text with a line index.
type Document struct {
	Path       string
	Text       string
	lineStarts []int
}

// New indexes text for position lookups.
func New(path, text string) *Document {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Document{Path: path, Text: text, lineStarts: starts}
}

// LineCount returns the number of lines. A trailing newline opens an empty final line.
func (d *Document) LineCount() int {
	return len(d.lineStarts)
}

// Line returns line i without its line terminator.
func (d *Document) Line(i int) string {
	if i < 0 || i >= len(d.lineStarts) {
		return ""
	}
	start := d.lineStarts[i]
	end := len(d.Text)
	if i+1 < len(d.lineStarts) {
		end = d.lineStarts[i+1] - 1
	}
	return strings.TrimSuffix(d.Text[start:end], "\r")
}

// Lines returns every line of the document.
func (d *Document) Lines() []string {
	lines := make([]string, d.LineCount())
	for i := range lines {
		lines[i] = d.Line(i)
	}
	return lines
}

// OffsetAt converts a position to a byte offset.
func (d *Document) OffsetAt(p Position) (int, error) {
	if p.Line < 0 || p.Line >= len(d.lineStarts) || p.Column < 0 {
		return 0, fmt.Errorf("%w: %s", ErrOutOfBounds, p)
	}
	if p.Column > len(d.Line(p.Line)) {
		return 0, fmt.Errorf("%w: %s", ErrOutOfBounds, p)
	}
	return d.lineStarts[p.Line] + p.Column, nil
}

// PositionAt converts a byte offset to a position, clamping to the document.
func (d *Document) PositionAt(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(d.Text) {
		offset = len(d.Text)
	}
	line := sort.Search(len(d.lineStarts), func(i int) bool { return d.lineStarts[i] > offset }) - 1
	return Position{Line: line, Column: offset - d.lineStarts[line]}
}

// Validate checks that r is well-formed and inside the document.
func (d *Document) Validate(r Range) error {
	start, err := d.OffsetAt(r.Start)
	if err != nil {
		return err
	}
	end, err := d.OffsetAt(r.End)
	if err != nil {
		return err
	}
	if end < start {
		return fmt.Errorf("%w: range %s ends before it starts", ErrOutOfBounds, r)
	}
	return nil
}

// TextIn returns the text covered by r.
func (d *Document) TextIn(r Range) (string, error) {
	if err := d.Validate(r); err != nil {
		return "", err
	}
	start, _ := d.OffsetAt(r.Start)
	end, _ := d.OffsetAt(r.End)
	return d.Text[start:end], nil
}

// FullLines returns the range from the start of startLine to the end of endLine.
func (d *Document) FullLines(startLine, endLine int) Range {
	return Range{
		Start: Position{Line: startLine},
		End:   Position{Line: endLine, Column: len(d.Line(endLine))},
	}
}

// WholeLines is FullLines extended over the terminator of endLine, so that
// deleting it removes the lines entirely.
func (d *Document) WholeLines(startLine, endLine int) Range {
	if endLine+1 < d.LineCount() {
		return Range{Start: Position{Line: startLine}, End: Position{Line: endLine + 1}}
	}
	return d.FullLines(startLine, endLine)
}

// TextEdit replaces the text in Range with NewText.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"new_text"`
}

// ApplyEdits applies non-overlapping edits to text. Positions refer to the
// original text, so edits are applied back to front.
func ApplyEdits(text string, edits []TextEdit) (string, error) {
	if len(edits) == 0 {
		return text, nil
	}
	doc := New("", text)

	type span struct {
		start, end int
		text       string
	}
	spans := make([]span, 0, len(edits))
	for _, e := range edits {
		if err := doc.Validate(e.Range); err != nil {
			return "", err
		}
		s, _ := doc.OffsetAt(e.Range.Start)
		en, _ := doc.OffsetAt(e.Range.End)
		spans = append(spans, span{start: s, end: en, text: e.NewText})
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start > spans[j].start })

	out := text
	prevStart := len(text) + 1
	for _, s := range spans {
		if s.end > prevStart {
			return "", fmt.Errorf("overlapping edits at offset %d", s.start)
		}
		out = out[:s.start] + s.text + out[s.end:]
		prevStart = s.start
	}
	return out, nil
}
