package bridge

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/gnana997/cratesplit/pkg/cargo"
)

var (
	backtickRE = regexp.MustCompile("`([^`]+)`")
	typeNameRE = regexp.MustCompile("(?:type|struct|enum|trait)\\s+`([^`]+)`")
)

// Generate runs cargo check in workspaceRoot and reports on file. A
// missing file yields an empty report.
func Generate(ctx context.Context, runner *cargo.Runner, workspaceRoot, file string) (*Report, error) {
	if _, err := os.Stat(file); err != nil {
		return EmptyReport(file), nil
	}
	target := canonical(file)
	report := EmptyReport(target)

	if m, err := cargo.ReadManifest(filepath.Join(workspaceRoot, cargo.ManifestName)); err == nil {
		for _, d := range collectNormalDeps(m) {
			report.ExternalCrates = append(report.ExternalCrates, Crate{Name: d.Name, Version: d.Version})
		}
	}

	res, err := runner.Check(ctx, workspaceRoot)
	if err != nil {
		return nil, err
	}
	fillReport(report, res.Messages, workspaceRoot, target)
	return report, nil
}

func collectNormalDeps(m *cargo.Manifest) []cargo.Dependency {
	var out []cargo.Dependency
	for _, d := range m.Deps() {
		if d.Kind == "" {
			out = append(out, d)
		}
	}
	return out
}

func fillReport(report *Report, msgs []cargo.Message, root, target string) {
	suggestions := make(map[string]bool)
	unresolved := make(map[string]bool)

	for _, m := range msgs {
		d := m.Message
		sp := spanIn(d, root, target)
		if sp == nil {
			continue
		}
		report.Diagnostics = append(report.Diagnostics, Diagnostic{
			Level:   d.Level,
			Message: d.Message,
			Span: &Span{
				LineStart:   sp.LineStart,
				LineEnd:     sp.LineEnd,
				ColumnStart: sp.ColumnStart,
				ColumnEnd:   sp.ColumnEnd,
			},
		})

		if strings.Contains(d.Message, "cannot find") || strings.Contains(d.Message, "unresolved import") {
			for _, sub := range typeNameRE.FindAllStringSubmatch(d.Message, -1) {
				unresolved[sub[1]] = true
			}
		}
		importsFromText(d.Rendered, suggestions)
		for _, child := range d.Children {
			if !strings.Contains(child.Message, "consider importing") && !strings.Contains(child.Message, "use of undeclared") {
				continue
			}
			importsFromText(child.Rendered, suggestions)
			for _, csp := range child.Spans {
				if csp.SuggestedReplacement != nil {
					importsFromText("`"+strings.TrimSpace(*csp.SuggestedReplacement)+"`", suggestions)
				}
			}
		}
	}

	report.SuggestedImports = sortedKeys(suggestions)
	report.UnresolvedTypes = sortedKeys(unresolved)
}

// spanIn returns the first span of d in target.
func spanIn(d *cargo.Diagnostic, root, target string) *cargo.Span {
	for i := range d.Spans {
		name := d.Spans[i].FileName
		if !filepath.IsAbs(name) {
			name = filepath.Join(root, name)
		}
		if canonical(name) == target {
			return &d.Spans[i]
		}
	}
	return nil
}

// importsFromText collects backtick-quoted `use` declarations and paths.
func importsFromText(text string, into map[string]bool) {
	for _, m := range backtickRE.FindAllStringSubmatch(text, -1) {
		snippet := strings.TrimSpace(m[1])
		switch {
		case strings.HasPrefix(snippet, "use "):
			path := strings.TrimSpace(strings.TrimPrefix(snippet, "use "))
			into[strings.TrimSpace(strings.TrimSuffix(path, ";"))] = true
		case strings.Contains(snippet, "::"):
			into[strings.TrimSpace(strings.TrimSuffix(snippet, ";"))] = true
		}
	}
}

func canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return abs
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
