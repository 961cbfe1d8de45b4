// Package extractor builds per-file declaration outlines: a tree of named
// ranges (items, their nested items) plus the file's use declarations.
//
// Each file is parsed once and both queries run over the same tree.
package extractor

import (
	"github.com/gnana997/cratesplit/pkg/document"
	"github.com/gnana997/cratesplit/pkg/parser"
)

// Outline is the declaration index for one file.
type Outline struct {
	FilePath     string          `json:"file_path"`
	Language     parser.Language `json:"-"`
	Declarations []*Declaration  `json:"declarations"`
	Imports      []ImportInfo    `json:"imports"`
	// HasErrors is set when the parse tree contains ERROR nodes. The outline
	// still lists every item that did parse.
	HasErrors bool `json:"has_errors"`
}

// Declaration is a named range in the outline.
type Declaration struct {
	Name string   `json:"name"`
	Kind ItemKind `json:"kind"`
	// Detail is a short label: "Display for User" for impls, the signature for fns.
	Detail     string         `json:"detail,omitempty"`
	Visibility string         `json:"visibility,omitempty"` // "pub", "pub(crate)", ... or empty
	Modifiers  []string       `json:"modifiers,omitempty"`  // async, unsafe, const, extern
	Trait      string         `json:"trait,omitempty"`      // impl blocks only
	Range      document.Range `json:"range"`
	Location   Location       `json:"location"`
	Children   []*Declaration `json:"children,omitempty"`
}

// ItemKind identifies the kind of Rust item.
type ItemKind string

const (
	KindFunction ItemKind = "function"
	KindStruct   ItemKind = "struct"
	KindEnum     ItemKind = "enum"
	KindUnion    ItemKind = "union"
	KindType     ItemKind = "type"
	KindTrait    ItemKind = "trait"
	KindImpl     ItemKind = "impl"
	KindModule   ItemKind = "module"
	KindConst    ItemKind = "const"
	KindStatic   ItemKind = "static"
	KindMacro    ItemKind = "macro"
)

// ImportInfo is one use declaration or extern crate item.
type ImportInfo struct {
	// Path is the use tree text after `use` (e.g. "crate::a::{B, C as D}").
	// For extern crate items it is the crate name.
	Path       string         `json:"path"`
	Text       string         `json:"text"` // the whole declaration including `;`
	Visibility string         `json:"visibility,omitempty"`
	IsExtern   bool           `json:"is_extern,omitempty"`
	Range      document.Range `json:"range"`
}

// Location is a 1-based line/column span plus 0-based byte offsets.
type Location struct {
	FilePath    string `json:"file_path"`
	StartLine   uint32 `json:"start_line"`
	StartColumn uint32 `json:"start_column"`
	EndLine     uint32 `json:"end_line"`
	EndColumn   uint32 `json:"end_column"`
	StartByte   uint32 `json:"start_byte"`
	EndByte     uint32 `json:"end_byte"`
}

// Walk visits every declaration depth-first, parents before children.
// Returning false from fn skips the declaration's children.
func (o *Outline) Walk(fn func(d *Declaration, depth int) bool) {
	var visit func(ds []*Declaration, depth int)
	visit = func(ds []*Declaration, depth int) {
		for _, d := range ds {
			if fn(d, depth) {
				visit(d.Children, depth+1)
			}
		}
	}
	visit(o.Declarations, 0)
}

// Count returns the number of declarations at every depth.
func (o *Outline) Count() int {
	n := 0
	o.Walk(func(*Declaration, int) bool { n++; return true })
	return n
}

// IsEmpty reports whether the outline has no declarations.
func (o *Outline) IsEmpty() bool {
	return o == nil || len(o.Declarations) == 0
}
