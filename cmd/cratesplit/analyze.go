package main

import (
	"github.com/spf13/cobra"

	"github.com/gnana997/cratesplit/pkg/analysis"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file> <start-line> <end-line>",
	Short: "Show what a selection would extract",
	Long: `Analyze a line range of a Rust file without changing anything.

The selection is expanded to the declarations it overlaps. The output lists
the extracted lines, the declarations, the types and traits they use, their
visibility and whether they sit inside an impl block.

Example:
  cratesplit analyze src/models/user.rs 12 40`,
	Args: cobra.ExactArgs(3),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

type analyzeOutput struct {
	analysis.Summary
	Cached       bool     `json:"cached"`
	Declarations []string `json:"declarations"`
	Text         string   `json:"text"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	file := args[0]
	sel, err := readSelection(file, args[1], args[2])
	if err != nil {
		return err
	}

	a, err := openApp(cmd, file)
	if err != nil {
		return err
	}
	defer a.Close()

	res, cached, err := a.engine.Analyze(cmd.Context(), file, sel)
	if err != nil {
		return err
	}
	return printJSON(cmd, analyzeOutput{
		Summary:      res.Summarize(),
		Cached:       cached,
		Declarations: res.DeclaredNames(),
		Text:         res.Text,
	})
}
