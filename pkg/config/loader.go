package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides: CRATESPLIT_CACHE_MAX_ENTRIES
// sets cache.max_entries.
const EnvPrefix = "CRATESPLIT"

var (
	ErrInvalidLogLevel  = errors.New("invalid log level")
	ErrInvalidLogFormat = errors.New("invalid log format")
	ErrInvalidProvider  = errors.New("invalid oracle provider")
	ErrInvalidCache     = errors.New("invalid cache settings")
	ErrInvalidExtract   = errors.New("invalid extract settings")
	ErrInvalidPattern   = errors.New("invalid workspace pattern")
	ErrInvalidTimeout   = errors.New("invalid timeout")
)

// Load reads the configuration for the workspace at rootDir. Priority,
// highest first: CRATESPLIT_* environment variables, then
// .cratesplit/config.yaml (or .yml), then Default(). A missing file is
// not an error.
func Load(rootDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(rootDir, Dir))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees env values for keys viper already knows, and
	// every key has a default.
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("cache.max_entries", d.Cache.MaxEntries)
	v.SetDefault("cache.persist", d.Cache.Persist)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.max_age", d.Cache.MaxAge)

	v.SetDefault("extract.include_header", d.Extract.IncludeHeader)
	v.SetDefault("extract.cleanup_unused_imports", d.Extract.CleanupUnusedImports)
	v.SetDefault("extract.rollback_on_abort", d.Extract.RollbackOnAbort)
	v.SetDefault("extract.max_attempts", d.Extract.MaxAttempts)
	v.SetDefault("extract.settle_delay", d.Extract.SettleDelay)

	v.SetDefault("oracle.provider", d.Oracle.Provider)
	v.SetDefault("oracle.cargo_binary", d.Oracle.CargoBinary)
	v.SetDefault("oracle.timeout", d.Oracle.Timeout)

	v.SetDefault("bridge.binary", d.Bridge.Binary)
	v.SetDefault("bridge.timeout", d.Bridge.Timeout)

	v.SetDefault("workspace.include", d.Workspace.Include)
	v.SetDefault("workspace.exclude", d.Workspace.Exclude)

	v.SetDefault("watch.debounce", d.Watch.Debounce)

	v.SetDefault("mcp.log_file", d.MCP.LogFile)
}

// Validate checks cfg and reports every problem at once.
func Validate(cfg *Config) error {
	var errs []error

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.Log.Level))
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%w: %q (must be text or json)", ErrInvalidLogFormat, cfg.Log.Format))
	}

	if cfg.Cache.MaxEntries <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_entries must be positive, got %d", ErrInvalidCache, cfg.Cache.MaxEntries))
	}
	if cfg.Cache.Persist && cfg.Cache.Dir == "" {
		errs = append(errs, fmt.Errorf("%w: dir is required when persist is on", ErrInvalidCache))
	}
	if cfg.Cache.MaxAge < 0 {
		errs = append(errs, fmt.Errorf("%w: max_age cannot be negative", ErrInvalidCache))
	}

	if cfg.Extract.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_attempts must be positive, got %d", ErrInvalidExtract, cfg.Extract.MaxAttempts))
	}
	if cfg.Extract.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("%w: settle_delay cannot be negative", ErrInvalidExtract))
	}

	switch cfg.Oracle.Provider {
	case ProviderCargo:
		if cfg.Oracle.CargoBinary == "" {
			errs = append(errs, fmt.Errorf("%w: cargo_binary is required for the cargo provider", ErrInvalidProvider))
		}
	case ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("%w: %q (must be cargo or none)", ErrInvalidProvider, cfg.Oracle.Provider))
	}
	if cfg.Oracle.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: oracle.timeout must be positive", ErrInvalidTimeout))
	}
	if cfg.Bridge.Binary != "" && cfg.Bridge.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: bridge.timeout must be positive", ErrInvalidTimeout))
	}
	if cfg.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("%w: watch.debounce cannot be negative", ErrInvalidTimeout))
	}

	if len(cfg.Workspace.Include) == 0 {
		errs = append(errs, fmt.Errorf("%w: include cannot be empty", ErrInvalidPattern))
	}
	for _, p := range append(append([]string{}, cfg.Workspace.Include...), cfg.Workspace.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidPattern, p))
		}
	}

	return errors.Join(errs...)
}

// CacheDir resolves cache.dir against rootDir.
func (c *Config) CacheDir(rootDir string) string {
	if filepath.IsAbs(c.Cache.Dir) {
		return c.Cache.Dir
	}
	return filepath.Join(rootDir, c.Cache.Dir)
}
