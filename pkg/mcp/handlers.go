package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/gnana997/cratesplit/pkg/analysis"
	"github.com/gnana997/cratesplit/pkg/cache"
	"github.com/gnana997/cratesplit/pkg/document"
	"github.com/gnana997/cratesplit/pkg/indexer"
	"github.com/gnana997/cratesplit/pkg/refactor"
)

// --- Argument helpers ---

func stringArg(req mcp.CallToolRequest, key string) string {
	s, _ := req.GetArguments()[key].(string)
	return s
}

func boolArg(req mcp.CallToolRequest, key string) bool {
	b, _ := req.GetArguments()[key].(bool)
	return b
}

// intArg accepts JSON numbers, which decode as float64.
func intArg(req mcp.CallToolRequest, key string) (int, bool) {
	switch v := req.GetArguments()[key].(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// selection reads file and turns the 1-based inclusive line arguments into
// a full-line range.
func selection(req mcp.CallToolRequest) (string, document.Range, *mcp.CallToolResult) {
	file := stringArg(req, "file")
	if file == "" {
		return "", document.Range{}, mcp.NewToolResultError("file is required")
	}
	start, ok1 := intArg(req, "start_line")
	end, ok2 := intArg(req, "end_line")
	if !ok1 || !ok2 {
		return "", document.Range{}, mcp.NewToolResultError("start_line and end_line are required integers")
	}
	if start < 1 || end < start {
		return "", document.Range{}, mcp.NewToolResultError(fmt.Sprintf("invalid line range %d-%d", start, end))
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return "", document.Range{}, mcp.NewToolResultError(fmt.Sprintf("cannot read %s: %v", file, err))
	}
	doc := document.New(file, string(data))
	if end > doc.LineCount() {
		return "", document.Range{}, mcp.NewToolResultError(
			fmt.Sprintf("line %d is past the end of %s (%d lines)", end, file, doc.LineCount()))
	}
	return file, doc.FullLines(start-1, end-1), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorResult reports a failed tool call. Extraction failures keep their
// classification so the client can tell bad input from a broken module.
func errorResult(err error, payload map[string]any) *mcp.CallToolResult {
	if payload == nil {
		payload = make(map[string]any)
	}
	payload["error"] = err.Error()
	if kind := refactor.KindOf(err); kind != "" {
		payload["kind"] = kind
	}
	var e *refactor.Error
	if errors.As(err, &e) && e.File != "" {
		payload["location"] = map[string]any{"file": e.File, "line": e.Line, "column": e.Column}
	}
	data, mErr := json.MarshalIndent(payload, "", "  ")
	if mErr != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(string(data))
}

// --- analyze_selection ---

type analyzeResponse struct {
	analysis.Summary
	Cached       bool     `json:"cached"`
	Declarations []string `json:"declarations"`
	Text         string   `json:"text"`
}

func (s *Server) handleAnalyzeSelection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, sel, bad := selection(req)
	if bad != nil {
		return bad, nil
	}

	res, cached, err := s.engine.Analyze(ctx, file, sel)
	if err != nil {
		return errorResult(err, nil), nil
	}
	return jsonResult(analyzeResponse{
		Summary:      res.Summarize(),
		Cached:       cached,
		Declarations: res.DeclaredNames(),
		Text:         res.Text,
	})
}

// --- extract_module ---

func (s *Server) handleExtractModule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, sel, bad := selection(req)
	if bad != nil {
		return bad, nil
	}
	name := stringArg(req, "module_name")
	if name == "" {
		return mcp.NewToolResultError("module_name is required"), nil
	}

	res, err := s.engine.Extract(ctx, refactor.Request{
		File:          file,
		Selection:     sel,
		ModuleName:    name,
		TargetDir:     stringArg(req, "target_dir"),
		ConvertParent: boolArg(req, "convert_parent"),
		DryRun:        boolArg(req, "dry_run"),
	})
	if res != nil {
		s.refresh(res)
	}
	if err != nil {
		payload := map[string]any{}
		if res != nil {
			if res.Journal != nil && !res.RolledBack && !s.opts.KeepOnFailure {
				if rbErr := res.Journal.Rollback(); rbErr != nil {
					s.logger.Error("rollback after failed extraction", "error", rbErr)
				} else {
					res.RolledBack = true
				}
				s.refresh(res)
			}
			payload["result"] = res
		}
		return errorResult(err, payload), nil
	}
	return jsonResult(res)
}

// refresh drops cached views of every file the extraction touched.
func (s *Server) refresh(res *refactor.Result) {
	for _, c := range res.Changes {
		for _, p := range []string{c.Path, c.From} {
			if p == "" {
				continue
			}
			if s.opts.Sources != nil {
				s.opts.Sources.Invalidate(p)
			}
			if s.opts.Outlines != nil {
				s.opts.Outlines.RemoveFile(p)
			}
		}
	}
}

// --- outline_file ---

func (s *Server) handleOutlineFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file := stringArg(req, "file")
	if file == "" {
		return mcp.NewToolResultError("file is required"), nil
	}
	if s.opts.Outlines == nil {
		return mcp.NewToolResultError("outline index is not available"), nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	outline, err := s.opts.Outlines.Outline(ctx, abs)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to outline %s: %v", file, err)), nil
	}
	return jsonResult(outline)
}

// --- suggest_imports ---

func (s *Server) handleSuggestImports(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := stringArg(req, "name")
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}
	return jsonResult(s.engine.Suggest(ctx, stringArg(req, "file"), name))
}

// --- cache_stats / clear_cache ---

type statsResponse struct {
	Analysis cache.Stats                `json:"analysis"`
	Outlines *indexer.OutlineIndexStats `json:"outlines,omitempty"`
}

func (s *Server) handleCacheStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp := statsResponse{Analysis: s.engine.Analyzer().CacheStats()}
	if s.opts.Outlines != nil {
		st := s.opts.Outlines.GetStats()
		resp.Outlines = &st
	}
	return jsonResult(resp)
}

func (s *Server) handleClearCache(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.engine.Analyzer().ClearCache(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to clear cache: %v", err)), nil
	}
	return jsonResult(map[string]any{"cleared": true})
}
