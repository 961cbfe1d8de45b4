package extractor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gnana997/cratesplit/pkg/parser"
	"github.com/gnana997/cratesplit/pkg/parser/queries"
)

// Extractor builds outlines from Rust source.
//
// Usage:
//
//	ex := NewExtractor(parserManager, queryManager, logger)
//	outline, err := ex.ExtractFile(ctx, "src/models/user.rs", source)
//	if err != nil {
//	    return err
//	}
type Extractor struct {
	parserManager *parser.ParserManager
	queryManager  *queries.QueryManager
	logger        *slog.Logger
}

// NewExtractor creates an extractor. Logger can be nil.
func NewExtractor(pm *parser.ParserManager, qm *queries.QueryManager, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Extractor{
		parserManager: pm,
		queryManager:  qm,
		logger:        logger,
	}
}

// ExtractFile parses source once and runs the declaration and use queries
// over the same tree.
func (e *Extractor) ExtractFile(ctx context.Context, filePath string, source []byte) (*Outline, error) {
	lang := parser.DetectLanguage(filePath)
	if lang == parser.LanguageUnknown {
		return nil, fmt.Errorf("unsupported language for file: %s", filePath)
	}

	tree, err := e.parserManager.Parse(ctx, source, lang)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", filePath, err)
	}
	defer tree.Close()

	symbolQuery, err := e.queryManager.GetQuery(lang, queries.QueryTypeSymbols)
	if err != nil {
		return nil, fmt.Errorf("failed to get symbol query for %s: %w", lang, err)
	}
	importQuery, err := e.queryManager.GetQuery(lang, queries.QueryTypeImports)
	if err != nil {
		return nil, fmt.Errorf("failed to get import query for %s: %w", lang, err)
	}

	symbolMatches, err := e.queryManager.ExecuteQuery(ctx, tree, symbolQuery, source)
	if err != nil {
		return nil, fmt.Errorf("failed to execute symbol query: %w", err)
	}
	importMatches, err := e.queryManager.ExecuteQuery(ctx, tree, importQuery, source)
	if err != nil {
		return nil, fmt.Errorf("failed to execute import query: %w", err)
	}

	flat := e.extractDeclarations(symbolMatches, source, filePath)
	outline := &Outline{
		FilePath:     filePath,
		Language:     lang,
		Declarations: nest(flat),
		Imports:      e.extractImports(importMatches, source),
		HasErrors:    tree.RootNode().HasError(),
	}

	e.logger.Debug("extracted outline",
		"file", filePath,
		"declarations", len(flat),
		"imports", len(outline.Imports),
		"has_errors", outline.HasErrors)

	return outline, nil
}
