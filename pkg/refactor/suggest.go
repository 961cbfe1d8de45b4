package refactor

import (
	"context"
	"path/filepath"

	"github.com/gnana997/cratesplit/pkg/bridge"
	"github.com/gnana997/cratesplit/pkg/catalog"
	"github.com/gnana997/cratesplit/pkg/workspace"
)

// MinCatalogConfidence is the catalog score a validation fallback import
// needs.
const MinCatalogConfidence = 0.8

// Suggestion is a candidate import for an unresolved name.
type Suggestion struct {
	Path       string  `json:"path"`
	Source     string  `json:"source"` // "compiler" or "catalog"
	Confidence float64 `json:"confidence"`
	Kind       string  `json:"kind,omitempty"`
}

// suggester ranks import candidates: compiler-bridge suggestions first,
// then catalog matches.
type suggester struct {
	bridge  *bridge.Client
	catalog *catalog.QueryService
}

// suggest lists every candidate for name. report may be nil.
func (s *suggester) suggest(report *bridge.Report, name string) []Suggestion {
	out := make([]Suggestion, 0)
	seen := make(map[string]bool)
	if report != nil {
		for _, path := range report.SuggestionsFor(name) {
			if !seen[path] {
				seen[path] = true
				out = append(out, Suggestion{Path: path, Source: "compiler", Confidence: 1})
			}
		}
	}
	if s.catalog != nil {
		for _, m := range s.catalog.Search(name) {
			if !seen[m.Item.Path] {
				seen[m.Item.Path] = true
				out = append(out, Suggestion{Path: m.Item.Path, Source: "catalog", Confidence: m.Confidence, Kind: m.Item.Kind})
			}
		}
	}
	return out
}

// best picks the import the validation fallback inserts: the first bridge
// suggestion, else the best catalog match scoring at least
// MinCatalogConfidence.
func (s *suggester) best(report *bridge.Report, name string) (Suggestion, bool) {
	if report != nil {
		if paths := report.SuggestionsFor(name); len(paths) > 0 {
			return Suggestion{Path: paths[0], Source: "compiler", Confidence: 1}, true
		}
	}
	if s.catalog != nil {
		if m, ok := s.catalog.Best(name, MinCatalogConfidence); ok {
			return Suggestion{Path: m.Item.Path, Source: "catalog", Confidence: m.Confidence, Kind: m.Item.Kind}, true
		}
	}
	return Suggestion{}, false
}

// report asks the bridge about file. A disabled or failing bridge yields
// an empty report.
func (s *suggester) report(ctx context.Context, root, file string) *bridge.Report {
	if s.bridge == nil || !s.bridge.Enabled() {
		return nil
	}
	return s.bridge.Suggest(ctx, root, file)
}

// Suggest lists import candidates for name, best first, as seen from
// file. Compiler-bridge suggestions are only available when file is in a
// Cargo project.
func (e *Engine) Suggest(ctx context.Context, file, name string) []Suggestion {
	var report *bridge.Report
	if file != "" && e.suggester.bridge.Enabled() {
		if abs, err := filepath.Abs(file); err == nil {
			if root, err := workspace.FindProjectRoot(abs); err == nil {
				report = e.suggester.report(ctx, root, abs)
			}
		}
	}
	return e.suggester.suggest(report, name)
}
