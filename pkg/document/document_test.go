package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_Lines(t *testing.T) {
	doc := New("lib.rs", "fn a() {}\r\n\nfn b() {}\n")

	assert.Equal(t, 4, doc.LineCount())
	assert.Equal(t, "fn a() {}", doc.Line(0))
	assert.Equal(t, "", doc.Line(1))
	assert.Equal(t, "fn b() {}", doc.Line(2))
	assert.Equal(t, "", doc.Line(3))
	assert.Equal(t, "", doc.Line(42))
}

func TestDocument_OffsetRoundTrip(t *testing.T) {
	doc := New("lib.rs", "struct A;\nstruct B;\n")

	off, err := doc.OffsetAt(Position{Line: 1, Column: 7})
	require.NoError(t, err)
	assert.Equal(t, 17, off)
	assert.Equal(t, Position{Line: 1, Column: 7}, doc.PositionAt(off))

	_, err = doc.OffsetAt(Position{Line: 1, Column: 40})
	assert.ErrorIs(t, err, ErrOutOfBounds)

	_, err = doc.OffsetAt(Position{Line: 9})
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestDocument_TextIn(t *testing.T) {
	doc := New("lib.rs", "use a::B;\nfn main() {}\n")

	text, err := doc.TextIn(doc.FullLines(1, 1))
	require.NoError(t, err)
	assert.Equal(t, "fn main() {}", text)

	text, err = doc.TextIn(doc.WholeLines(0, 0))
	require.NoError(t, err)
	assert.Equal(t, "use a::B;\n", text)

	_, err = doc.TextIn(Range{Start: Position{Line: 1}, End: Position{Line: 0}})
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestApplyEdits(t *testing.T) {
	text := "mod a;\nfn x() {}\nfn y() {}\n"

	out, err := ApplyEdits(text, []TextEdit{
		{Range: Range{Start: Position{Line: 1}, End: Position{Line: 2}}, NewText: ""},
		{Range: Range{Start: Position{Line: 0, Column: 6}, End: Position{Line: 0, Column: 6}}, NewText: "\nmod b;"},
	})
	require.NoError(t, err)
	assert.Equal(t, "mod a;\nmod b;\nfn y() {}\n", out)
}

func TestApplyEdits_Overlap(t *testing.T) {
	_, err := ApplyEdits("abcdef", []TextEdit{
		{Range: Range{Start: Position{Column: 0}, End: Position{Column: 4}}},
		{Range: Range{Start: Position{Column: 2}, End: Position{Column: 5}}},
	})
	assert.Error(t, err)
}
