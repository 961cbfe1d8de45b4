package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/gnana997/cratesplit/pkg/cache"
	"github.com/gnana997/cratesplit/pkg/document"
	"github.com/gnana997/cratesplit/pkg/enclosing"
	"github.com/gnana997/cratesplit/pkg/expander"
	"github.com/gnana997/cratesplit/pkg/extractor"
	"github.com/gnana997/cratesplit/pkg/semantic"
	"github.com/gnana997/cratesplit/pkg/structure"
)

// OutlineProvider is the declaration index the expander queries.
// *indexer.OutlineIndex implements it.
type OutlineProvider interface {
	OutlineFor(ctx context.Context, filePath string, source []byte) (*extractor.Outline, error)
}

// Analyzer composes the analysis pipeline.
//
// **Thread Safety:** safe for concurrent use. Concurrent requests for the
// same key share one computation.
type Analyzer struct {
	parser   structure.Parser
	outlines OutlineProvider
	cache    *cache.Cache[Result]
	group    singleflight.Group
	logger   *slog.Logger
}

// Options configures an Analyzer. Every field is optional: without an
// outline provider the raw selection is used, and without a cache every
// request is computed.
type Options struct {
	Parser   structure.Parser
	Outlines OutlineProvider
	Cache    *cache.Cache[Result]
	Logger   *slog.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(opts Options) *Analyzer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Parser == nil {
		opts.Parser = structure.NewLexicalParser()
	}
	return &Analyzer{
		parser:   opts.Parser,
		outlines: opts.Outlines,
		cache:    opts.Cache,
		logger:   opts.Logger,
	}
}

// Analyze returns the analysis of sel in doc. The second return value
// reports whether the result came from the cache.
func (a *Analyzer) Analyze(ctx context.Context, doc *document.Document, sel document.Range) (*Result, bool, error) {
	if err := doc.Validate(sel); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrSelectionOutOfBounds, err)
	}
	selText, _ := doc.TextIn(sel)
	if strings.TrimSpace(selText) == "" {
		return nil, false, ErrEmptySelection
	}

	file := doc.Path
	if abs, err := filepath.Abs(file); err == nil {
		file = abs
	}
	key := cache.Key(file, selText, sel.String(), doc.Text)

	if a.cache != nil {
		if res, ok := a.cache.Get(key); ok {
			a.logger.Debug("analysis cache hit", "file", file, "selection", sel.String())
			return &res, true, nil
		}
	}

	v, err, shared := a.group.Do(key, func() (any, error) {
		res, err := a.compute(ctx, file, doc, sel)
		if err != nil {
			return nil, err
		}
		if a.cache != nil {
			if err := a.cache.Put(key, *res); err != nil {
				a.logger.Warn("failed to persist analysis", "file", file, "error", err)
			}
		}
		return res, nil
	})
	if err != nil {
		return nil, false, err
	}
	if shared {
		a.logger.Debug("shared in-flight analysis", "file", file)
	}
	return v.(*Result), false, nil
}

func (a *Analyzer) compute(ctx context.Context, file string, doc *document.Document, sel document.Range) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{File: file, Selection: sel}

	var span *expander.Span
	if a.outlines != nil {
		outline, err := a.outlines.OutlineFor(ctx, doc.Path, []byte(doc.Text))
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		case err != nil:
			a.logger.Warn("declaration index unavailable, using raw selection", "file", file, "error", err)
		default:
			span = expander.Expand(outline, doc, sel)
		}
	}

	if span != nil {
		res.Range = span.Range
		res.StartLine, res.EndLine = span.StartLine, span.EndLine
		res.Text = span.Text
		res.Expanded = true
	} else {
		end := sel.End.Line
		if sel.End.Column == 0 && end > sel.Start.Line {
			end--
		}
		res.Range = doc.FullLines(sel.Start.Line, end)
		res.StartLine, res.EndLine = sel.Start.Line, end
		res.Text, _ = doc.TextIn(res.Range)
	}

	decls := a.parser.ParseDeclarations(res.Text)
	props := semantic.Analyze(res.Text, decls)
	res.Declarations = decls
	res.UsedTypes = props.UsedTypes
	res.UsedTraits = props.UsedTraits
	res.Visibility = props.Visibility
	res.HasGenerics = props.HasGenerics

	res.Imports = a.parser.ParseImports(doc.Text)
	fileDecls := a.parser.ParseDeclarations(doc.Text)
	res.SourceDeclared = fileDecls.DeclaredNames()
	for _, it := range fileDecls.Items {
		if it.Kind == structure.ItemModule {
			res.LocalModules = append(res.LocalModules, it.Name)
		}
	}

	selStart, _ := doc.OffsetAt(sel.Start)
	spanStart, _ := doc.OffsetAt(res.Range.Start)
	if block := enclosing.Detect(doc.Text, selStart); block != nil && spanStart > block.BodyOpen {
		res.InsideImpl = true
		res.Enclosing = block
	}

	a.logger.Debug("analyzed selection",
		"file", file,
		"lines", fmt.Sprintf("%d-%d", res.StartLine+1, res.EndLine+1),
		"expanded", res.Expanded,
		"used_types", len(res.UsedTypes),
		"inside_impl", res.InsideImpl)
	return res, nil
}

// CacheStats returns the analysis cache counters, or zero values when the
// analyzer has no cache.
func (a *Analyzer) CacheStats() cache.Stats {
	if a.cache == nil {
		return cache.Stats{}
	}
	return a.cache.Stats()
}

// ClearCache empties the analysis cache.
func (a *Analyzer) ClearCache() error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Clear()
}
