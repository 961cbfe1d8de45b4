package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gnana997/cratesplit/pkg/extractor"
)

var outlineJSON bool

var outlineCmd = &cobra.Command{
	Use:   "outline <file>",
	Short: "List the items declared in a Rust file",
	Long: `Print the declaration outline of a Rust file: every item with its kind
and line span, nested items indented under their parent, then the use
declarations.

Example:
  cratesplit outline src/lib.rs
  cratesplit outline src/lib.rs --json`,
	Args: cobra.ExactArgs(1),
	RunE: runOutline,
}

func init() {
	outlineCmd.Flags().BoolVar(&outlineJSON, "json", false, "print the outline as JSON")
	rootCmd.AddCommand(outlineCmd)
}

func runOutline(cmd *cobra.Command, args []string) error {
	file, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	a, err := openApp(cmd, file)
	if err != nil {
		return err
	}
	defer a.Close()

	outline, err := a.outlines.Outline(cmd.Context(), file)
	if err != nil {
		return fmt.Errorf("failed to outline %s: %w", args[0], err)
	}
	if outlineJSON {
		return printJSON(cmd, outline)
	}
	printOutline(cmd, outline)
	return nil
}

func printOutline(cmd *cobra.Command, outline *extractor.Outline) {
	w := cmd.OutOrStdout()
	outline.Walk(func(d *extractor.Declaration, depth int) bool {
		label := d.Name
		if d.Detail != "" && d.Kind == extractor.KindImpl {
			label = d.Detail
		}
		vis := ""
		if d.Visibility != "" {
			vis = d.Visibility + " "
		}
		fmt.Fprintf(w, "%s%s%s %s  L%d-%d\n",
			strings.Repeat("  ", depth), vis, d.Kind, label, d.Location.StartLine, d.Location.EndLine)
		return true
	})

	if len(outline.Imports) > 0 {
		fmt.Fprintln(w)
		for _, imp := range outline.Imports {
			fmt.Fprintln(w, imp.Text)
		}
	}
	if outline.HasErrors {
		fmt.Fprintln(w, "\n(file has syntax errors; the outline may be incomplete)")
	}
}
