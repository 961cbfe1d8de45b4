package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// DefaultTimeout bounds one bridge invocation.
const DefaultTimeout = 90 * time.Second

// ErrDisabled is returned by Query when no binary is configured.
var ErrDisabled = errors.New("compiler bridge is disabled")

// Client runs the bridge binary as
// `<binary> --workspace-root <path> --file <path>`.
type Client struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient creates a client. An empty binary disables the bridge.
func NewClient(binary string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{binary: binary, timeout: timeout, logger: logger}
}

// Enabled reports whether a binary is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.binary != ""
}

// Query runs the bridge and decodes its report.
func (c *Client) Query(ctx context.Context, workspaceRoot, file string) (*Report, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}

	execCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, c.binary, "--workspace-root", workspaceRoot, "--file", file)
	cmd.Dir = workspaceRoot
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("compiler bridge timed out after %s", c.timeout)
		}
		return nil, fmt.Errorf("compiler bridge failed: %w (stderr: %s)", err, bytes.TrimSpace(stderr.Bytes()))
	}

	var report Report
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		return nil, fmt.Errorf("malformed compiler bridge output: %w", err)
	}
	return &report, nil
}

// Suggest is Query that never fails: a disabled, failing or timed-out
// bridge yields an empty report so callers fall back to heuristics.
func (c *Client) Suggest(ctx context.Context, workspaceRoot, file string) *Report {
	report, err := c.Query(ctx, workspaceRoot, file)
	if err != nil {
		if !errors.Is(err, ErrDisabled) {
			c.logger.Warn("compiler bridge unavailable, using heuristics only", "file", file, "error", err)
		}
		return EmptyReport(file)
	}
	return report
}
