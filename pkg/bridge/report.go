// Package bridge talks to the compiler-bridge subprocess, which runs the
// real compiler over a file and reports import suggestions. The same
// package generates the report inside the bridge binary.
package bridge

import (
	"strings"
)

// Report is the bridge's JSON output.
type Report struct {
	File             string       `json:"file"`
	SuggestedImports []string     `json:"suggested_imports"`
	ExternalCrates   []Crate      `json:"external_crates"`
	Diagnostics      []Diagnostic `json:"diagnostics"`
	UnresolvedTypes  []string     `json:"unresolved_types"`
}

// Crate is a dependency from Cargo.toml.
type Crate struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Diagnostic is a compiler message that touches the reported file.
type Diagnostic struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Span    *Span  `json:"span,omitempty"`
}

// Span is 1-based.
type Span struct {
	LineStart   int `json:"line_start"`
	LineEnd     int `json:"line_end"`
	ColumnStart int `json:"column_start"`
	ColumnEnd   int `json:"column_end"`
}

// EmptyReport is what callers get when the bridge is unavailable.
func EmptyReport(file string) *Report {
	return &Report{
		File:             file,
		SuggestedImports: []string{},
		ExternalCrates:   []Crate{},
		Diagnostics:      []Diagnostic{},
		UnresolvedTypes:  []string{},
	}
}

// SuggestionsFor returns suggested paths whose last segment is name.
func (r *Report) SuggestionsFor(name string) []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, path := range r.SuggestedImports {
		last := path
		if i := strings.LastIndex(path, "::"); i >= 0 {
			last = path[i+2:]
		}
		if last == name {
			out = append(out, path)
		}
	}
	return out
}
