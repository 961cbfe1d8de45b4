package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	suggestFile string
	suggestJSON bool
)

var suggestCmd = &cobra.Command{
	Use:   "suggest <name>",
	Short: "Suggest use paths for an unresolved name",
	Long: `Suggest use paths for a type, trait or function name.

Compiler-bridge suggestions come first when --file is given and a bridge
binary is configured, then matches from the built-in catalog of std, core
and common crate items.

Example:
  cratesplit suggest HashMap
  cratesplit suggest Serialize --file src/models/user.rs`,
	Args: cobra.ExactArgs(1),
	RunE: runSuggest,
}

func init() {
	suggestCmd.Flags().StringVar(&suggestFile, "file", "", "file the name appears in (enables compiler suggestions)")
	suggestCmd.Flags().BoolVar(&suggestJSON, "json", false, "print suggestions as JSON")
	rootCmd.AddCommand(suggestCmd)
}

func runSuggest(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd, suggestFile)
	if err != nil {
		return err
	}
	defer a.Close()

	suggestions := a.engine.Suggest(cmd.Context(), suggestFile, args[0])
	if suggestJSON {
		return printJSON(cmd, suggestions)
	}
	if len(suggestions) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no suggestions for %s\n", args[0])
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, s := range suggestions {
		fmt.Fprintf(tw, "use %s;\t%s\t%.2f\n", s.Path, s.Source, s.Confidence)
	}
	return tw.Flush()
}
