// Command cratesplit moves selections of Rust code into new modules.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gnana997/cratesplit/pkg/util"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	GitCommit = "unknown"

	workspaceFlag string
	logLevelFlag  string
	logFormatFlag string
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
	Use:   "cratesplit",
	Short: "Extract Rust code into new modules",
	Long: `cratesplit moves a selection of Rust code into a new module file,
registers the module with its parent, removes the original text and checks
the result with the compiler.

Line numbers on the command line are 1-based and inclusive.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", "", "Cargo project root (default: found from the file or working directory)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn or error (overrides log.level)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "", "log format: text or json (overrides log.format)")

	rootCmd.SetVersionTemplate(`cratesplit {{.Version}}
Git commit: ` + GitCommit + `
`)
}

// newLogger builds the command logger from the configuration and the
// global flags. Logs go to the command's stderr.
func newLogger(cmd *cobra.Command, lc util.LoggerConfig) *slog.Logger {
	if logLevelFlag != "" {
		lc.Level = util.ParseLogLevel(logLevelFlag)
	}
	if logFormatFlag != "" {
		lc.Format = util.LogFormat(logFormatFlag)
	}
	lc.Output = cmd.ErrOrStderr()
	return util.NewLogger(lc)
}
