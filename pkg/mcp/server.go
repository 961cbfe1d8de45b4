// Package mcp exposes the extraction engine as MCP tools over stdio.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/gnana997/cratesplit/pkg/indexer"
	"github.com/gnana997/cratesplit/pkg/mcplog"
	"github.com/gnana997/cratesplit/pkg/refactor"
	"github.com/gnana997/cratesplit/pkg/util"
)

const serverName = "cratesplit"

// Options wires a Server. Engine is required; the rest are optional.
type Options struct {
	Engine *refactor.Engine
	// Outlines serves outline_file and is kept fresh after extractions.
	Outlines *indexer.OutlineIndex
	// Sources is invalidated for every file an extraction touches.
	Sources util.SourceCache
	// CallLog receives one JSONL line per tool call.
	CallLog *mcplog.Logger
	// KeepOnFailure leaves an aborted extraction's files in place instead
	// of rolling them back.
	KeepOnFailure bool
	Version       string
	Logger        *slog.Logger
}

// Server is the cratesplit MCP server.
type Server struct {
	mcpServer *server.MCPServer
	opts      Options
	engine    *refactor.Engine
	handlers  map[string]server.ToolHandlerFunc
	logger    *slog.Logger
}

// NewServer registers every tool on a new MCP server.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &Server{opts: opts, engine: opts.Engine, logger: opts.Logger}

	serverOpts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithToolHandlerMiddleware(s.loggingMiddleware()),
	}
	s.mcpServer = server.NewMCPServer(serverName, opts.Version, serverOpts...)

	tools := s.tools()
	s.handlers = make(map[string]server.ToolHandlerFunc, len(tools))
	for _, t := range tools {
		s.handlers[t.Tool.Name] = t.Handler
	}
	s.mcpServer.AddTools(tools...)
	return s
}

// ServeStdio serves on stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	s.logger.Info("serving MCP over stdio", "tools", len(s.handlers))
	return server.ServeStdio(s.mcpServer)
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}
