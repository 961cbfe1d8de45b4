package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

const serverKey = "cratesplit"

// assistant describes how to detect one coding assistant and register the
// MCP server with it.
type assistant struct {
	ID   string
	Name string
	// Binary is set for assistants configured through their own CLI
	// (`<binary> mcp add`).
	Binary string
	// Markers are project directories whose presence means the assistant
	// is in use. ConfigPath resolves the JSON file to edit, relative to
	// the project root unless absolute.
	Markers    []string
	ConfigPath func(root string) string
	// ServersKey is the JSON object holding server entries.
	ServersKey string
	// Extra fields merged into the server entry.
	Extra map[string]string
}

// foundAssistant is an assistant detected in this environment.
type foundAssistant struct {
	assistant
	Config     string // resolved config file; empty for CLI assistants
	Configured bool
}

var (
	setupAuto bool

	// Replaceable in tests.
	lookPath = exec.LookPath
	statPath = os.Stat
	runAdd   = runAssistantAdd
)

var assistants = []assistant{
	{ID: "claude_code", Name: "Claude Code", Binary: "claude"},
	{ID: "codex", Name: "OpenAI Codex", Binary: "codex"},
	{
		ID: "vscode", Name: "VS Code", Markers: []string{".vscode"},
		ConfigPath: func(root string) string { return filepath.Join(root, ".vscode", "mcp.json") },
		ServersKey: "servers",
		Extra:      map[string]string{"type": "stdio"},
	},
	{
		ID: "cursor", Name: "Cursor", Markers: []string{".cursor"},
		ConfigPath: func(root string) string { return filepath.Join(root, ".cursor", "mcp.json") },
		ServersKey: "mcpServers",
	},
	{
		ID: "claude_desktop", Name: "Claude Desktop",
		ConfigPath: func(string) string { return claudeDesktopConfig() },
		ServersKey: "mcpServers",
	},
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Register the MCP server with installed coding assistants",
	Long: `Detect coding assistants (Claude Code, Codex, VS Code, Cursor, Claude
Desktop) and register "cratesplit serve" as an MCP server with each of them.

Assistants that already list a cratesplit server are left alone.

Example:
  cratesplit setup
  cratesplit setup --auto`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().BoolVar(&setupAuto, "auto", false, "configure every detected assistant without prompting")
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	root, err := locateRoot("")
	if err != nil {
		if root, err = os.Getwd(); err != nil {
			return err
		}
	}
	return executeSetup(cmd.InOrStdin(), cmd.OutOrStdout(), root, setupAuto)
}

func claudeDesktopConfig() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Claude", "claude_desktop_config.json")
	default:
		return filepath.Join(home, ".config", "Claude", "claude_desktop_config.json")
	}
}

// detectAssistants lists the assistants available for the project at root.
func detectAssistants(root string) []foundAssistant {
	var found []foundAssistant
	for _, def := range assistants {
		if def.Binary != "" {
			if _, err := lookPath(def.Binary); err == nil {
				found = append(found, foundAssistant{
					assistant:  def,
					Configured: hasServer(filepath.Join(root, ".mcp.json"), "mcpServers"),
				})
			}
			continue
		}

		present := false
		for _, m := range def.Markers {
			if _, err := statPath(filepath.Join(root, m)); err == nil {
				present = true
				break
			}
		}
		path := def.ConfigPath(root)
		// Without markers the assistant counts as installed when its
		// config directory exists.
		if !present && len(def.Markers) == 0 {
			if _, err := statPath(filepath.Dir(path)); err == nil {
				present = true
			}
		}
		if present {
			found = append(found, foundAssistant{
				assistant:  def,
				Config:     path,
				Configured: hasServer(path, def.ServersKey),
			})
		}
	}
	return found
}

// hasServer reports whether the JSON file at path lists a cratesplit server
// under serversKey.
func hasServer(path, serversKey string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return false
	}
	servers, _ := doc[serversKey].(map[string]any)
	_, ok := servers[serverKey]
	return ok
}

// serverEntry is the MCP server definition for the project at root.
func serverEntry(root string, extra map[string]string) map[string]any {
	entry := map[string]any{
		"command": "cratesplit",
		"args":    []any{"serve", "--workspace", root},
	}
	for k, v := range extra {
		entry[k] = v
	}
	return entry
}

// addServerEntry merges a cratesplit entry under serversKey into the JSON
// document existing (which may be empty). It returns nil, nil when the
// entry is already there.
func addServerEntry(existing []byte, serversKey, root string, extra map[string]string) ([]byte, error) {
	doc := make(map[string]any)
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &doc); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	}
	servers, ok := doc[serversKey].(map[string]any)
	if !ok {
		servers = make(map[string]any)
	}
	if _, exists := servers[serverKey]; exists {
		return nil, nil
	}
	servers[serverKey] = serverEntry(root, extra)
	doc[serversKey] = servers

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

func runAssistantAdd(binary, root string) error {
	c := exec.Command(binary, "mcp", "add", "--scope", "project", serverKey, "--", "cratesplit", "serve", "--workspace", root)
	c.Dir = root
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}

// writeServerEntry adds the entry to the assistant's config file.
func writeServerEntry(a foundAssistant, root string) error {
	if err := os.MkdirAll(filepath.Dir(a.Config), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	existing, err := os.ReadFile(a.Config)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	merged, err := addServerEntry(existing, a.ServersKey, root, a.Extra)
	if err != nil || merged == nil {
		return err
	}
	return os.WriteFile(a.Config, merged, 0o644)
}

// confirm asks question and reads y/n. Empty input and EOF mean yes.
func confirm(in *bufio.Scanner, w io.Writer, question string) bool {
	fmt.Fprintf(w, "%s [Y/n] ", question)
	if !in.Scan() {
		return true
	}
	answer := strings.ToLower(strings.TrimSpace(in.Text()))
	return answer == "" || answer == "y" || answer == "yes"
}

// executeSetup is the setup flow over explicit I/O.
func executeSetup(r io.Reader, w io.Writer, root string, auto bool) error {
	found := detectAssistants(root)
	if len(found) == 0 {
		fmt.Fprintln(w, "No supported coding assistants detected.")
		return nil
	}

	fmt.Fprintln(w, "Detected coding assistants:")
	for _, a := range found {
		suffix := ""
		if a.Configured {
			suffix = " (already configured)"
		}
		fmt.Fprintf(w, "  * %s%s\n", a.Name, suffix)
	}
	fmt.Fprintln(w)

	in := bufio.NewScanner(r)
	if !auto && !confirm(in, w, "Register cratesplit with them?") {
		return nil
	}

	for _, a := range found {
		if a.Configured {
			continue
		}
		var target string
		if a.Binary != "" {
			target = "project scope"
		} else {
			target = a.Config
		}
		if !auto && !confirm(in, w, fmt.Sprintf("%s: add to %s?", a.Name, target)) {
			fmt.Fprintf(w, "  - %s skipped\n", a.Name)
			continue
		}

		var err error
		if a.Binary != "" {
			err = runAdd(a.Binary, root)
		} else {
			err = writeServerEntry(a, root)
		}
		if err != nil {
			fmt.Fprintf(w, "  ! %s: %v\n", a.Name, err)
			continue
		}
		fmt.Fprintf(w, "  + %s configured (%s)\n", a.Name, target)
	}
	return nil
}
