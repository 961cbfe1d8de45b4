// Package config loads cratesplit settings from defaults, the workspace's
// .cratesplit/config.yaml and CRATESPLIT_* environment variables.
package config

import (
	"time"

	"github.com/gnana997/cratesplit/pkg/cache"
	"github.com/gnana997/cratesplit/pkg/refactor"
	"github.com/gnana997/cratesplit/pkg/util"
)

// Dir is the per-workspace configuration directory.
const Dir = ".cratesplit"

// Config is the complete cratesplit configuration.
type Config struct {
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Oracle    OracleConfig    `yaml:"oracle" mapstructure:"oracle"`
	Bridge    BridgeConfig    `yaml:"bridge" mapstructure:"bridge"`
	Workspace WorkspaceConfig `yaml:"workspace" mapstructure:"workspace"`
	Watch     WatchConfig     `yaml:"watch" mapstructure:"watch"`
	MCP       MCPConfig       `yaml:"mcp" mapstructure:"mcp"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // text or json
}

// CacheConfig sizes the analysis cache. Dir is relative to the workspace
// root unless absolute.
type CacheConfig struct {
	MaxEntries int           `yaml:"max_entries" mapstructure:"max_entries"`
	Persist    bool          `yaml:"persist" mapstructure:"persist"`
	Dir        string        `yaml:"dir" mapstructure:"dir"`
	MaxAge     time.Duration `yaml:"max_age" mapstructure:"max_age"`
}

type ExtractConfig struct {
	IncludeHeader        bool          `yaml:"include_header" mapstructure:"include_header"`
	CleanupUnusedImports bool          `yaml:"cleanup_unused_imports" mapstructure:"cleanup_unused_imports"`
	RollbackOnAbort      bool          `yaml:"rollback_on_abort" mapstructure:"rollback_on_abort"`
	MaxAttempts          int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	SettleDelay          time.Duration `yaml:"settle_delay" mapstructure:"settle_delay"`
}

// OracleConfig picks the diagnostics provider.
type OracleConfig struct {
	Provider    string        `yaml:"provider" mapstructure:"provider"` // "cargo" or "none"
	CargoBinary string        `yaml:"cargo_binary" mapstructure:"cargo_binary"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// BridgeConfig configures the compiler-bridge subprocess. An empty Binary
// disables it.
type BridgeConfig struct {
	Binary  string        `yaml:"binary" mapstructure:"binary"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type WorkspaceConfig struct {
	Include []string `yaml:"include" mapstructure:"include"`
	Exclude []string `yaml:"exclude" mapstructure:"exclude"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

type MCPConfig struct {
	LogFile string `yaml:"log_file" mapstructure:"log_file"`
}

const (
	ProviderCargo = "cargo"
	ProviderNone  = "none"
)

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  string(util.LevelInfo),
			Format: string(util.FormatText),
		},
		Cache: CacheConfig{
			MaxEntries: cache.DefaultConfig().MaxEntries,
			Persist:    true,
			Dir:        ".cratesplit-cache",
			MaxAge:     24 * time.Hour,
		},
		Extract: ExtractConfig{
			IncludeHeader:        true,
			CleanupUnusedImports: true,
			RollbackOnAbort:      false,
			MaxAttempts:          refactor.DefaultMaxAttempts,
			SettleDelay:          refactor.DefaultSettleDelay,
		},
		Oracle: OracleConfig{
			Provider:    ProviderCargo,
			CargoBinary: "cargo",
			Timeout:     2 * time.Minute,
		},
		Bridge: BridgeConfig{
			Timeout: 90 * time.Second,
		},
		Workspace: WorkspaceConfig{
			Include: []string{"**/*.rs"},
			Exclude: []string{"target/**", ".git/**"},
		},
		Watch: WatchConfig{
			Debounce: 200 * time.Millisecond,
		},
	}
}

// LoggerConfig converts the log section for util.NewLogger.
func (c *Config) LoggerConfig() util.LoggerConfig {
	lc := util.DefaultLoggerConfig()
	lc.Level = util.ParseLogLevel(c.Log.Level)
	lc.Format = util.LogFormat(c.Log.Format)
	return lc
}

// EngineOptions converts the extract section. Collaborators are left for
// the caller to fill in.
func (c *Config) EngineOptions() refactor.Options {
	opts := refactor.DefaultOptions()
	opts.IncludeHeader = c.Extract.IncludeHeader
	opts.CleanupUnusedImports = c.Extract.CleanupUnusedImports
	opts.RollbackOnAbort = c.Extract.RollbackOnAbort
	opts.MaxAttempts = c.Extract.MaxAttempts
	opts.SettleDelay = c.Extract.SettleDelay
	return opts
}
