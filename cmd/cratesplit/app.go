package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gnana997/cratesplit/pkg/analysis"
	"github.com/gnana997/cratesplit/pkg/bridge"
	"github.com/gnana997/cratesplit/pkg/cache"
	"github.com/gnana997/cratesplit/pkg/cargo"
	"github.com/gnana997/cratesplit/pkg/config"
	"github.com/gnana997/cratesplit/pkg/document"
	"github.com/gnana997/cratesplit/pkg/extractor"
	"github.com/gnana997/cratesplit/pkg/indexer"
	"github.com/gnana997/cratesplit/pkg/parser"
	"github.com/gnana997/cratesplit/pkg/parser/queries"
	"github.com/gnana997/cratesplit/pkg/refactor"
	"github.com/gnana997/cratesplit/pkg/util"
	"github.com/gnana997/cratesplit/pkg/validator"
	"github.com/gnana997/cratesplit/pkg/workspace"
)

// app is the wiring shared by the commands: configuration, logger,
// declaration index, analysis cache and the extraction engine.
type app struct {
	// root is the Cargo project root, or "" when none was found.
	root   string
	cfg    *config.Config
	logger *slog.Logger

	pm       *parser.ParserManager
	qm       *queries.QueryManager
	sources  util.SourceCache
	outlines *indexer.OutlineIndex
	results  *cache.Cache[analysis.Result]
	engine   *refactor.Engine
}

// locateRoot resolves the project root from --workspace, or else from
// hint, or else from the working directory.
func locateRoot(hint string) (string, error) {
	start := hint
	if workspaceFlag != "" {
		start = workspaceFlag
	}
	if start == "" {
		start = "."
	}
	return workspace.FindProjectRoot(start)
}

// loadConfig reads the configuration of the project around hint. Outside
// a project the working directory's .cratesplit/ is used.
func loadConfig(hint string) (string, *config.Config, error) {
	root, err := locateRoot(hint)
	if err != nil && !errors.Is(err, workspace.ErrNoProjectRoot) {
		return "", nil, err
	}
	cfgDir := root
	if cfgDir == "" {
		if cfgDir, err = os.Getwd(); err != nil {
			return "", nil, fmt.Errorf("failed to get current directory: %w", err)
		}
	}
	cfg, err := config.Load(cfgDir)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return root, cfg, nil
}

// openApp builds the engine for the project around hint. Without a
// project root the engine still analyzes, with an in-memory cache.
func openApp(cmd *cobra.Command, hint string) (*app, error) {
	root, cfg, err := loadConfig(hint)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd, cfg.LoggerConfig())
	if root == "" {
		logger.Debug("no Cargo project found, analysis cache stays in memory", "from", hint)
	}

	a := &app{root: root, cfg: cfg, logger: logger}
	a.pm = parser.NewParserManager(logger)
	a.qm = queries.NewQueryManager(a.pm, logger)
	sc := util.DefaultSourceCacheConfig()
	sc.Logger = logger
	a.sources = util.NewSourceCache(sc)
	a.outlines = indexer.NewOutlineIndex(indexer.DefaultOutlineIndexConfig(),
		extractor.NewExtractor(a.pm, a.qm, logger), a.sources, logger)

	cc := cache.Config{
		MaxEntries: cfg.Cache.MaxEntries,
		MaxAge:     cfg.Cache.MaxAge,
		Logger:     logger,
	}
	if cfg.Cache.Persist && root != "" {
		cc.Dir = cfg.CacheDir(root)
	}
	if a.results, err = cache.New[analysis.Result](cc); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open analysis cache: %w", err)
	}

	opts := cfg.EngineOptions()
	opts.Analyzer = analysis.NewAnalyzer(analysis.Options{Outlines: a.outlines, Cache: a.results, Logger: logger})
	opts.Oracle = a.oracle()
	opts.Bridge = bridge.NewClient(cfg.Bridge.Binary, cfg.Bridge.Timeout, logger)
	opts.Logger = logger
	if a.engine, err = refactor.NewEngine(opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// oracle picks the diagnostics provider. A missing cargo binary degrades
// to no validation.
func (a *app) oracle() validator.DiagnosticsProvider {
	if a.cfg.Oracle.Provider != config.ProviderCargo {
		return validator.NoopProvider{}
	}
	runner := cargo.NewRunner(a.cfg.Oracle.CargoBinary, a.cfg.Oracle.Timeout, a.logger)
	if !runner.Available() {
		a.logger.Warn("cargo not found, extracted modules will not be validated", "binary", runner.Binary)
		return validator.NoopProvider{}
	}
	return validator.NewCargoProvider(runner, a.logger)
}

func (a *app) Close() {
	if a.results != nil {
		if err := a.results.Close(); err != nil {
			a.logger.Warn("failed to close analysis cache", "error", err)
		}
	}
	if a.outlines != nil {
		a.outlines.Close()
	}
	if a.sources != nil {
		a.sources.Close()
	}
	if a.qm != nil {
		a.qm.Close()
	}
	if a.pm != nil {
		a.pm.Close()
	}
}

// --- argument helpers ---

// readSelection turns 1-based inclusive line arguments into a full-line
// range of file.
func readSelection(file, startArg, endArg string) (document.Range, error) {
	start, err := strconv.Atoi(startArg)
	if err != nil {
		return document.Range{}, fmt.Errorf("invalid start line %q", startArg)
	}
	end, err := strconv.Atoi(endArg)
	if err != nil {
		return document.Range{}, fmt.Errorf("invalid end line %q", endArg)
	}
	if start < 1 || end < start {
		return document.Range{}, fmt.Errorf("invalid line range %d-%d", start, end)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return document.Range{}, fmt.Errorf("failed to read %s: %w", file, err)
	}
	doc := document.New(file, string(data))
	if end > doc.LineCount() {
		return document.Range{}, fmt.Errorf("line %d is past the end of %s (%d lines)", end, file, doc.LineCount())
	}
	return doc.FullLines(start-1, end-1), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
