package cargo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// DefaultCheckTimeout bounds a `cargo check` run.
const DefaultCheckTimeout = 2 * time.Minute

// ErrCargoNotFound is returned when the cargo binary is not on PATH.
var ErrCargoNotFound = errors.New("cargo binary not found")

// Runner runs `cargo check --message-format=json`.
type Runner struct {
	Binary  string
	Timeout time.Duration
	logger  *slog.Logger
}

// NewRunner creates a Runner. An empty binary means "cargo".
func NewRunner(binary string, timeout time.Duration, logger *slog.Logger) *Runner {
	if binary == "" {
		binary = "cargo"
	}
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{Binary: binary, Timeout: timeout, logger: logger}
}

// Available reports whether the binary can be found.
func (r *Runner) Available() bool {
	_, err := exec.LookPath(r.Binary)
	return err == nil
}

// CheckResult is the outcome of a check run.
type CheckResult struct {
	Messages []Message
	ExitCode int
	Stderr   string
	Duration time.Duration
}

// Check runs cargo check in dir. A failing build is not an error: its
// diagnostics are in the result. Errors mean cargo could not run, timed
// out, or failed without emitting any diagnostics.
func (r *Runner) Check(ctx context.Context, dir string) (*CheckResult, error) {
	if _, err := exec.LookPath(r.Binary); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCargoNotFound, r.Binary)
	}

	execCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, r.Binary, "check", "--message-format=json", "--quiet")
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := &CheckResult{
		Messages: ParseMessages(stdout.Bytes()),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("cargo check timed out after %s", r.Timeout)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to run cargo check: %w", err)
		}
		res.ExitCode = exitErr.ExitCode()
		if len(res.Messages) == 0 {
			return nil, fmt.Errorf("cargo check failed (exit %d): %s", res.ExitCode, strings.TrimSpace(res.Stderr))
		}
	}

	r.logger.Debug("cargo check finished",
		"dir", dir,
		"exit_code", res.ExitCode,
		"messages", len(res.Messages),
		"duration_ms", res.Duration.Milliseconds())
	return res, nil
}
