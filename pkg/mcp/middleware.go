package mcp

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gnana997/cratesplit/pkg/mcplog"
)

// loggingMiddleware tags every tool call with a request id, logs it and,
// when a call log is configured, appends a JSONL entry for it.
func (s *Server) loggingMiddleware() server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id := uuid.NewString()
			start := mcplog.Now()
			result, err := next(ctx, req)
			elapsed := time.Since(start)

			toolError := result != nil && result.IsError
			s.logger.Info("tool call",
				"request_id", id,
				"tool", req.Params.Name,
				"duration", elapsed,
				"tool_error", toolError,
				"error", err)

			var errStr *string
			if err != nil {
				msg := err.Error()
				errStr = &msg
			}
			_ = s.opts.CallLog.Write(mcplog.Entry{
				Ts:            start.UTC().Format(time.RFC3339),
				RequestID:     id,
				Tool:          req.Params.Name,
				Params:        mcplog.SanitizeParams(req.GetArguments()),
				DurationMs:    elapsed.Milliseconds(),
				ResponseBytes: mcplog.ResponseBytes(result),
				ToolError:     toolError,
				Error:         errStr,
			})
			return result, err
		}
	}
}
