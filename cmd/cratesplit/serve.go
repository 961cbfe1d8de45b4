package main

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/gnana997/cratesplit/pkg/indexer"
	mcpserver "github.com/gnana997/cratesplit/pkg/mcp"
	"github.com/gnana997/cratesplit/pkg/mcplog"
)

var (
	serveKeepOnFailure bool
	serveNoWatch       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server on stdio",
	Long: `Start a Model Context Protocol server on stdin/stdout exposing the
extraction engine to coding assistants.

Tools: analyze_selection, extract_module, outline_file, suggest_imports,
cache_stats, clear_cache.

The server outlines every Rust file in the project once at startup and
keeps the outlines fresh while files change. Set mcp.log_file to append one
JSON line per tool call.

Example:
  cratesplit serve --workspace ~/src/shop`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveKeepOnFailure, "keep-on-failure", false, "leave files in place when an extracted module does not compile")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "do not watch the project for changes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, "")
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if a.root != "" {
		done := make(chan struct{})
		go func() {
			defer close(done)
			a.prewarm(ctx)
		}()
		defer func() {
			cancel()
			<-done
		}()
		if !serveNoWatch {
			watcher, err := a.watch()
			if err != nil {
				a.logger.Warn("file watching disabled", "error", err)
			} else {
				defer watcher.Stop()
			}
		}
	} else {
		a.logger.Warn("no Cargo project found, serving without a workspace index")
	}

	callLog, err := mcplog.NewLogger(a.mcpLogPath())
	if err != nil {
		return fmt.Errorf("failed to open MCP call log: %w", err)
	}
	defer callLog.Close()

	srv := mcpserver.NewServer(mcpserver.Options{
		Engine:        a.engine,
		Outlines:      a.outlines,
		Sources:       a.sources,
		CallLog:       callLog,
		KeepOnFailure: serveKeepOnFailure,
		Version:       Version,
		Logger:        a.logger,
	})
	if err := srv.ServeStdio(); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

// prewarm outlines every matching file so the first requests hit the index.
func (a *app) prewarm(ctx context.Context) {
	opts := indexer.DefaultScanOptions()
	opts.Include = a.cfg.Workspace.Include
	opts.Exclude = append(slices.Clone(a.cfg.Workspace.Exclude), filepath.ToSlash(a.cfg.Cache.Dir)+"/**")

	scanner := indexer.NewWorkspaceScanner(a.outlines, a.logger)
	if _, err := scanner.ScanWorkspace(ctx, a.root, opts, nil); err != nil {
		a.logger.Warn("workspace pre-warm stopped", "error", err)
	}
}

// watch keeps outlines and mapped sources fresh while files change.
func (a *app) watch() (*indexer.FileWatcher, error) {
	opts := indexer.DefaultWatchOptions()
	opts.Debounce = a.cfg.Watch.Debounce
	opts.IgnorePatterns = append(opts.IgnorePatterns, a.cfg.Workspace.Exclude...)

	watcher, err := indexer.NewFileWatcher(a.outlines, opts, a.logger)
	if err != nil {
		return nil, err
	}
	watcher.OnChange(func(ev indexer.WatchEvent) {
		a.sources.Invalidate(ev.FilePath)
	})
	if err := watcher.Start(a.root); err != nil {
		watcher.Stop()
		return nil, err
	}
	return watcher, nil
}

func (a *app) mcpLogPath() string {
	p := a.cfg.MCP.LogFile
	if p == "" || filepath.IsAbs(p) || a.root == "" {
		return p
	}
	return filepath.Join(a.root, p)
}
