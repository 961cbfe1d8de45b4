// Package analysis runs the read-only half of an extraction: it widens the
// selection to whole declarations, parses them, derives their semantic
// properties, detects an enclosing impl block and collects the source
// file's imports. Results are memoized in the analysis cache.
package analysis

import (
	"errors"

	"github.com/gnana997/cratesplit/pkg/document"
	"github.com/gnana997/cratesplit/pkg/enclosing"
	"github.com/gnana997/cratesplit/pkg/structure"
)

var (
	// ErrEmptySelection is returned for a selection that is empty or only
	// whitespace.
	ErrEmptySelection = errors.New("selection is empty")
	// ErrSelectionOutOfBounds is returned for a selection outside the
	// document.
	ErrSelectionOutOfBounds = errors.New("selection is outside the document")
)

// Result is the analysis of one extraction request. It is never mutated
// after construction.
type Result struct {
	// File is the absolute path of the source file.
	File string `json:"file"`
	// Selection is the raw selection as requested.
	Selection document.Range `json:"selection"`
	// Range is the extracted range in whole lines: the expanded span, or the
	// raw selection widened to its lines when expansion found nothing.
	Range     document.Range `json:"range"`
	StartLine int            `json:"start_line"`
	EndLine   int            `json:"end_line"`
	Expanded  bool           `json:"expanded"`
	// Text is the extracted source text.
	Text string `json:"text"`

	UsedTypes    []string                `json:"used_types"`
	UsedTraits   []string                `json:"used_traits"`
	Declarations *structure.Declarations `json:"declarations"`
	Visibility   structure.Visibility    `json:"visibility"`
	HasGenerics  bool                    `json:"has_generics"`

	// Imports are every use declaration in the whole source file.
	Imports []structure.Import `json:"imports"`
	// SourceDeclared names the top-level items of the source file.
	SourceDeclared []string `json:"source_declared,omitempty"`
	// LocalModules names the modules the source file declares.
	LocalModules []string `json:"local_modules,omitempty"`

	InsideImpl bool               `json:"inside_impl"`
	Enclosing  *enclosing.Context `json:"enclosing,omitempty"`
}

// DeclaredNames returns the names declared by the extracted span.
func (r *Result) DeclaredNames() []string {
	if r.Declarations == nil {
		return nil
	}
	return r.Declarations.DeclaredNames()
}

// PublicNames returns the span's top-level `pub` item names.
func (r *Result) PublicNames() []string {
	if r.Declarations == nil {
		return nil
	}
	return r.Declarations.PublicNames()
}

// Summary is a compact view of a Result for logs and tool output.
type Summary struct {
	File         string   `json:"file"`
	StartLine    int      `json:"start_line"`
	EndLine      int      `json:"end_line"`
	Expanded     bool     `json:"expanded"`
	Functions    int      `json:"functions"`
	DataTypes    int      `json:"data_types"`
	SumTypes     int      `json:"sum_types"`
	Interfaces   int      `json:"interfaces"`
	Impls        int      `json:"impls"`
	UsedTypes    []string `json:"used_types"`
	UsedTraits   []string `json:"used_traits"`
	Visibility   string   `json:"visibility"`
	HasGenerics  bool     `json:"has_generics"`
	InsideImpl   bool     `json:"inside_impl"`
	EnclosingFor string   `json:"enclosing,omitempty"`
	Imports      int      `json:"imports"`
}

// Summarize returns the compact view of r. Line numbers are 1-based.
func (r *Result) Summarize() Summary {
	s := Summary{
		File:        r.File,
		StartLine:   r.StartLine + 1,
		EndLine:     r.EndLine + 1,
		Expanded:    r.Expanded,
		UsedTypes:   r.UsedTypes,
		UsedTraits:  r.UsedTraits,
		Visibility:  r.Visibility.String(),
		HasGenerics: r.HasGenerics,
		InsideImpl:  r.InsideImpl,
		Imports:     len(r.Imports),
	}
	if d := r.Declarations; d != nil {
		s.Functions = len(d.Functions)
		s.DataTypes = len(d.DataTypes)
		s.SumTypes = len(d.SumTypes)
		s.Interfaces = len(d.Interfaces)
		s.Impls = len(d.Implementations)
	}
	if r.Enclosing != nil {
		s.EnclosingFor = r.Enclosing.Header
	}
	return s
}
