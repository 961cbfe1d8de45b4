// Command cratesplit-bridge reports import suggestions for one Rust file by
// running cargo check over its workspace.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gnana997/cratesplit/pkg/bridge"
	"github.com/gnana997/cratesplit/pkg/cargo"
	"github.com/gnana997/cratesplit/pkg/util"
)

var (
	workspaceRoot string
	targetFile    string
	cargoBinary   string
	checkTimeout  time.Duration
	verbose       bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cratesplit-bridge --workspace-root <path> --file <path>",
	Short: "Print compiler-derived import suggestions for a Rust file as JSON",
	Long: `cratesplit-bridge runs cargo check in the workspace and prints one JSON
report for the file: suggested imports, external crates from Cargo.toml,
the file's diagnostics and the types the compiler could not resolve.

When cargo cannot run the report is printed empty.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		level := util.LevelWarn
		if verbose {
			level = util.LevelDebug
		}
		logger := util.NewLogger(util.LoggerConfig{
			Level:  level,
			Format: util.FormatText,
			Output: cmd.ErrOrStderr(),
		})
		runner := cargo.NewRunner(cargoBinary, checkTimeout, logger)
		return runBridge(cmd.Context(), cmd.OutOrStdout(), runner, workspaceRoot, targetFile, logger)
	},
}

func init() {
	rootCmd.Flags().StringVar(&workspaceRoot, "workspace-root", "", "Cargo workspace root (required)")
	rootCmd.Flags().StringVar(&targetFile, "file", "", "Rust file to report on (required)")
	rootCmd.Flags().StringVar(&cargoBinary, "cargo", "cargo", "cargo binary")
	rootCmd.Flags().DurationVar(&checkTimeout, "timeout", 90*time.Second, "cargo check timeout")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log cargo activity to stderr")
	_ = rootCmd.MarkFlagRequired("workspace-root")
	_ = rootCmd.MarkFlagRequired("file")
}

// runBridge writes the report for file to w.
func runBridge(ctx context.Context, w io.Writer, runner *cargo.Runner, root, file string, logger *slog.Logger) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("invalid workspace root: %w", err)
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(root, file)
	}

	report, err := bridge.Generate(ctx, runner, root, file)
	if err != nil {
		logger.Warn("cargo check failed, reporting nothing", "error", err)
		report = bridge.EmptyReport(file)
	}

	enc := json.NewEncoder(w)
	return enc.Encode(report)
}
