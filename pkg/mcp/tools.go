package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Tool names.
const (
	ToolAnalyzeSelection = "analyze_selection"
	ToolExtractModule    = "extract_module"
	ToolOutlineFile      = "outline_file"
	ToolSuggestImports   = "suggest_imports"
	ToolCacheStats       = "cache_stats"
	ToolClearCache       = "clear_cache"
)

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: analyzeSelectionTool(), Handler: s.handleAnalyzeSelection},
		{Tool: extractModuleTool(), Handler: s.handleExtractModule},
		{Tool: outlineFileTool(), Handler: s.handleOutlineFile},
		{Tool: suggestImportsTool(), Handler: s.handleSuggestImports},
		{Tool: cacheStatsTool(), Handler: s.handleCacheStats},
		{Tool: clearCacheTool(), Handler: s.handleClearCache},
	}
}

func selectionArgs() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("Path of the Rust source file"),
		),
		mcp.WithNumber("start_line",
			mcp.Required(),
			mcp.Description("First selected line, 1-based"),
		),
		mcp.WithNumber("end_line",
			mcp.Required(),
			mcp.Description("Last selected line, 1-based and inclusive"),
		),
	}
}

func analyzeSelectionTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Analyze a line range of a Rust file without changing anything: the declarations it expands to, " +
			"the types and traits it uses, its visibility and whether it sits inside an impl block."),
		mcp.WithReadOnlyHintAnnotation(true),
	}, selectionArgs()...)
	return mcp.NewTool(ToolAnalyzeSelection, opts...)
}

func extractModuleTool() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Move a line range of a Rust file into a new module file, register the module with its parent, " +
			"remove the original text and check the result with the compiler."),
		mcp.WithDestructiveHintAnnotation(true),
	}, selectionArgs()...)
	opts = append(opts,
		mcp.WithString("module_name",
			mcp.Required(),
			mcp.Description("snake_case name of the new module"),
		),
		mcp.WithString("target_dir",
			mcp.Description("Directory for the module file. Defaults to the source file's directory"),
		),
		mcp.WithBoolean("convert_parent",
			mcp.Description("Turn target_dir's file module X.rs into X/mod.rs first"),
		),
		mcp.WithBoolean("dry_run",
			mcp.Description("Return the generated module without writing anything"),
		),
	)
	return mcp.NewTool(ToolExtractModule, opts...)
}

func outlineFileTool() mcp.Tool {
	return mcp.NewTool(ToolOutlineFile,
		mcp.WithDescription("List the items declared in a Rust file as a tree of named ranges, plus its use declarations."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("Path of the Rust source file"),
		),
	)
}

func suggestImportsTool() mcp.Tool {
	return mcp.NewTool(ToolSuggestImports,
		mcp.WithDescription("Suggest use paths for an unresolved name, compiler suggestions first, then catalog matches."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("The unresolved type, trait or function name"),
		),
		mcp.WithString("file",
			mcp.Description("File the name appears in; enables compiler suggestions"),
		),
	)
}

func cacheStatsTool() mcp.Tool {
	return mcp.NewTool(ToolCacheStats,
		mcp.WithDescription("Report analysis cache and outline index counters."),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

func clearCacheTool() mcp.Tool {
	return mcp.NewTool(ToolClearCache,
		mcp.WithDescription("Empty the analysis cache, both in memory and on disk."),
	)
}
