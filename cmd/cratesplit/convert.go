package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gnana997/cratesplit/pkg/workspace"
)

var convertCheck bool

var convertModuleCmd = &cobra.Command{
	Use:   "convert-module <dir>",
	Short: "Turn a file module X.rs into the folder module X/mod.rs",
	Long: `Move the file module X.rs next to directory X/ to X/mod.rs, so that
new child modules can be placed in X/ without #[path] attributes.

Nothing happens when X/mod.rs already exists or X.rs does not.

Example:
  cratesplit convert-module src/models
  cratesplit convert-module src/models --check`,
	Args: cobra.ExactArgs(1),
	RunE: runConvertModule,
}

func init() {
	convertModuleCmd.Flags().BoolVar(&convertCheck, "check", false, "only report whether a conversion is needed")
	rootCmd.AddCommand(convertModuleCmd)
}

func runConvertModule(cmd *cobra.Command, args []string) error {
	dir, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()

	conv, needed := workspace.CheckModuleConversion(dir)
	if !needed {
		fmt.Fprintf(w, "%s needs no conversion\n", args[0])
		return nil
	}
	if convertCheck {
		fmt.Fprintf(w, "%s would move to %s\n", conv.File, conv.Target)
		return nil
	}

	if _, err := workspace.ConvertModuleToFolder(dir); err != nil {
		return err
	}
	fmt.Fprintf(w, "Moved %s to %s\n", conv.File, conv.Target)
	return nil
}
