package validator

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gnana997/cratesplit/pkg/cargo"
	"github.com/gnana997/cratesplit/pkg/document"
	"github.com/gnana997/cratesplit/pkg/workspace"
)

// CargoProvider answers diagnostics with `cargo check`. Quick fixes come
// from the rustc suggestions of the most recent Check of the same file.
type CargoProvider struct {
	runner *cargo.Runner
	logger *slog.Logger

	mu   sync.Mutex
	last map[string][]cargo.Diagnostic
}

// NewCargoProvider creates a provider over runner.
func NewCargoProvider(runner *cargo.Runner, logger *slog.Logger) *CargoProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &CargoProvider{
		runner: runner,
		logger: logger,
		last:   make(map[string][]cargo.Diagnostic),
	}
}

// Check implements DiagnosticsProvider.
func (p *CargoProvider) Check(ctx context.Context, file string) ([]Diagnostic, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, err
	}
	root, err := workspace.FindProjectRoot(abs)
	if err != nil {
		return nil, err
	}

	res, err := p.runner.Check(ctx, root)
	if err != nil {
		return nil, err
	}
	raw := cargo.ForFile(res.Messages, root, abs)

	p.mu.Lock()
	p.last[abs] = raw
	p.mu.Unlock()

	diags := make([]Diagnostic, 0, len(raw))
	for i := range raw {
		d := &raw[i]
		diag := Diagnostic{
			Severity: severityOf(d.Level),
			Message:  d.Message,
			Source:   "rustc",
		}
		if d.Code != nil {
			diag.Code = d.Code.Code
		}
		if sp := d.PrimarySpan(); sp != nil {
			diag.Range = columnRange(sp)
		}
		diags = append(diags, diag)
	}

	p.logger.Debug("cargo diagnostics", "file", abs, "count", len(diags))
	return diags, nil
}

// QuickFixes implements DiagnosticsProvider. Each rustc suggestion child
// becomes one fix; its spans become the fix's edits.
func (p *CargoProvider) QuickFixes(_ context.Context, file string, r document.Range) ([]Fix, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	raw := p.last[abs]
	p.mu.Unlock()
	if len(raw) == 0 {
		return nil, nil
	}

	var doc *document.Document
	if data, err := os.ReadFile(abs); err == nil {
		doc = document.New(abs, string(data))
	}

	var fixes []Fix
	for i := range raw {
		d := &raw[i]
		sp := d.PrimarySpan()
		if sp == nil || !overlaps(columnRange(sp), r) {
			continue
		}
		for _, child := range d.Children {
			var edits []document.TextEdit
			for j := range child.Spans {
				csp := &child.Spans[j]
				if csp.SuggestedReplacement == nil {
					continue
				}
				edits = append(edits, document.TextEdit{
					Range:   byteRange(doc, csp),
					NewText: *csp.SuggestedReplacement,
				})
			}
			if len(edits) > 0 {
				fixes = append(fixes, Fix{Description: child.Message, Edits: edits})
			}
		}
	}
	return fixes, nil
}

func severityOf(level string) Severity {
	switch level {
	case cargo.LevelError, "error: internal compiler error":
		return SeverityError
	case cargo.LevelWarning:
		return SeverityWarning
	case cargo.LevelNote:
		return SeverityInfo
	default:
		return SeverityHint
	}
}

// columnRange converts rustc's 1-based, end-exclusive columns.
func columnRange(sp *cargo.Span) document.Range {
	return document.Range{
		Start: document.Position{Line: sp.LineStart - 1, Column: sp.ColumnStart - 1},
		End:   document.Position{Line: sp.LineEnd - 1, Column: sp.ColumnEnd - 1},
	}
}

// byteRange prefers byte offsets, which stay exact for non-ASCII lines.
func byteRange(doc *document.Document, sp *cargo.Span) document.Range {
	if doc == nil || sp.ByteEnd > len(doc.Text) || sp.ByteStart > sp.ByteEnd {
		return columnRange(sp)
	}
	return document.Range{Start: doc.PositionAt(sp.ByteStart), End: doc.PositionAt(sp.ByteEnd)}
}

func overlaps(a, b document.Range) bool {
	return a.Start.Line <= b.End.Line && b.Start.Line <= a.End.Line
}
