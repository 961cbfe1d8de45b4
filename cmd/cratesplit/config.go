package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration cratesplit would use in this workspace as YAML:
defaults, overridden by .cratesplit/config.yaml in the project root, overridden
by CRATESPLIT_* environment variables (e.g. CRATESPLIT_EXTRACT_MAX_ATTEMPTS).`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	root, cfg, err := loadConfig("")
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	w := cmd.OutOrStdout()
	if root != "" {
		fmt.Fprintf(w, "# project root: %s\n", root)
	}
	_, err = w.Write(out)
	return err
}
