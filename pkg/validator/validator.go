// Package validator is the diagnostics oracle the extraction engine consults
// after writing a new module: it reports errors for a file and proposes
// quick fixes for a range.
package validator

import (
	"context"

	"github.com/gnana997/cratesplit/pkg/document"
)

// Severity is a diagnostic severity.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeverityHint    Severity = "hint"
)

// Diagnostic is a problem the oracle reports for a file.
type Diagnostic struct {
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
	Code     string         `json:"code,omitempty"`
	Range    document.Range `json:"range"`
	Source   string         `json:"source,omitempty"`
}

// IsError reports whether d has error severity.
func (d Diagnostic) IsError() bool {
	return d.Severity == SeverityError
}

// Fix is a quick fix: a description plus the edits to the checked file
// that apply it.
type Fix struct {
	Description string              `json:"description"`
	Edits       []document.TextEdit `json:"edits"`
}

// DiagnosticsProvider is the compiler/analyzer oracle. Implementations are
// best effort: errors mean the oracle could not answer, not that the file
// is broken.
type DiagnosticsProvider interface {
	// Check returns the diagnostics for file.
	Check(ctx context.Context, file string) ([]Diagnostic, error)
	// QuickFixes returns candidate fixes for the diagnostics covering r.
	QuickFixes(ctx context.Context, file string, r document.Range) ([]Fix, error)
}

// NoopProvider is a DiagnosticsProvider for environments without an
// oracle. It reports a clean file and never proposes fixes.
type NoopProvider struct{}

// Check implements DiagnosticsProvider.
func (NoopProvider) Check(context.Context, string) ([]Diagnostic, error) {
	return nil, nil
}

// QuickFixes implements DiagnosticsProvider.
func (NoopProvider) QuickFixes(context.Context, string, document.Range) ([]Fix, error) {
	return nil, nil
}

// ValidationResult summarizes one oracle pass over a file.
type ValidationResult struct {
	FilePath    string       `json:"file_path"`
	Valid       bool         `json:"valid"`
	Errors      int          `json:"errors"`
	Warnings    int          `json:"warnings"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Summarize counts diagnostics by severity. A file is valid when it has no
// errors.
func Summarize(file string, diags []Diagnostic) *ValidationResult {
	res := &ValidationResult{FilePath: file, Diagnostics: diags}
	if res.Diagnostics == nil {
		res.Diagnostics = []Diagnostic{}
	}
	for _, d := range diags {
		switch d.Severity {
		case SeverityError:
			res.Errors++
		case SeverityWarning:
			res.Warnings++
		}
	}
	res.Valid = res.Errors == 0
	return res
}

// Errors returns the error-severity diagnostics in diags.
func Errors(diags []Diagnostic) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.IsError() {
			out = append(out, d)
		}
	}
	return out
}
