package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gnana997/cratesplit/pkg/refactor"
)

var (
	extractTargetDir     string
	extractConvertParent bool
	extractDryRun        bool
	extractKeepOnFailure bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <file> <start-line> <end-line> <module-name>",
	Short: "Move a selection into a new module",
	Long: `Move a line range of a Rust file into a new module file.

The new module gets the imports its code uses, is registered with its parent
module (mod + pub use), and the original text is removed. The compiler then
checks the new module; fixable errors are repaired for up to
extract.max_attempts passes.

When the module still fails to compile every change is rolled back, unless
--keep-on-failure is given.

Examples:
  cratesplit extract src/models/user.rs 12 40 address
  cratesplit extract src/lib.rs 5 30 parser --target-dir src/syntax --convert-parent
  cratesplit extract src/lib.rs 5 30 parser --dry-run`,
	Args: cobra.ExactArgs(4),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVar(&extractTargetDir, "target-dir", "", "directory for the new module file (default: the source file's directory)")
	extractCmd.Flags().BoolVar(&extractConvertParent, "convert-parent", false, "move the target directory's file module X.rs to X/mod.rs first")
	extractCmd.Flags().BoolVar(&extractDryRun, "dry-run", false, "print the generated module without writing anything")
	extractCmd.Flags().BoolVar(&extractKeepOnFailure, "keep-on-failure", false, "leave files in place when the new module does not compile")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	file, name := args[0], args[3]
	sel, err := readSelection(file, args[1], args[2])
	if err != nil {
		return err
	}

	a, err := openApp(cmd, file)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.engine.Extract(cmd.Context(), refactor.Request{
		File:          file,
		Selection:     sel,
		ModuleName:    name,
		TargetDir:     extractTargetDir,
		ConvertParent: extractConvertParent,
		DryRun:        extractDryRun,
	})
	if err != nil {
		if res != nil {
			if res.Journal != nil && !res.RolledBack && !extractKeepOnFailure {
				if rbErr := res.Journal.Rollback(); rbErr != nil {
					a.logger.Error("rollback failed", "error", rbErr)
				} else {
					res.RolledBack = true
					a.logger.Info("extraction rolled back", "file", file)
				}
			}
			if pErr := printJSON(cmd, res); pErr != nil {
				a.logger.Warn("failed to print result", "error", pErr)
			}
		}
		return err
	}

	if extractDryRun {
		_, err = fmt.Fprint(cmd.OutOrStdout(), res.Content)
		return err
	}
	return printJSON(cmd, res)
}
