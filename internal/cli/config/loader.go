package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	intconfig "github.com/leapstack-labs/leapaudit/internal/config"
	"github.com/leapstack-labs/leapaudit/pkg/core"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// flagKeys maps persistent flags onto nested config keys. Flags not listed
// here map kebab-case to snake_case.
var flagKeys = map[string]string{
	"env":             "environment",
	"target-type":     "target.type",
	"database":        "target.database",
	"catalog":         "catalog.path",
	"catalog-url":     "catalog.url",
	"partition-key":   "audit.partition_key",
	"no-partitioning": "audit.no_partitioning",
	"concurrency":     "audit.concurrency",
	"census-mode":     "audit.census_mode",
	"retries":         "audit.retry.max_retries",
	"sheet":           "architecture.sheet",
}

// pathFlags are resolved against the working directory, not the project root.
var pathFlags = []string{"database", "catalog"}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
	envVarPattern  = regexp.MustCompile(`\$\{([^}]+)\}`)
)

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// inferProjectRoot returns the directory of the explicit config file, the
// first ancestor of the working directory holding leapaudit.yaml, or the
// working directory itself.
func inferProjectRoot(cfgFile string) string {
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(abs)
		}
		return filepath.Dir(cfgFile)
	}

	cwd, err := os.Getwd()
	if err != nil || cwd == "" {
		return "."
	}
	if root := intconfig.FindProjectRoot(cwd, maxUpwardSearchLevels); root != "" {
		return root
	}
	return cwd
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty, in-memory or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	return LoadConfigWithEnv(cfgFile, "", flags)
}

// LoadConfigWithEnv loads configuration and applies the overrides of the
// named environment (or of the environment key when envOverride is empty).
func LoadConfigWithEnv(cfgFile string, envOverride string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")
	projectRoot := inferProjectRoot(cfgFile)

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]any{
		"verbose": false,
		"output":  DefaultOutput,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if cfgFile == "" {
		cfgFile = intconfig.FindConfigFile(projectRoot)
	}
	configFileUsed = cfgFile
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment variables: LEAPAUDIT_TARGET__PASSWORD -> target.password
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.TrimPrefix(s, EnvPrefix)
		return strings.ToLower(strings.ReplaceAll(key, "__", "."))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags, only when explicitly set
	flagPaths := map[string]string{}
	if flags != nil {
		for _, name := range pathFlags {
			if f := flags.Lookup(name); f != nil && f.Changed {
				flagPaths[name], _ = filepath.Abs(f.Value.String())
				if f.Value.String() == ":memory:" {
					flagPaths[name] = ":memory:"
				}
			}
		}
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot

	envName := cfg.Environment
	if envOverride != "" {
		envName = envOverride
	}
	if envCfg, ok := cfg.Environments[envName]; ok && envName != "" {
		cfg.Target = MergeTargetConfig(cfg.Target, envCfg.Target)
		if envCfg.BillingProject != "" {
			cfg.BillingProject = envCfg.BillingProject
		}
		if envCfg.DataProject != "" {
			cfg.DataProject = envCfg.DataProject
		}
	}

	project := cfg.Project()
	intconfig.ApplyDefaults(project)
	cfg.Target, cfg.Catalog, cfg.Audit, cfg.Architecture = project.Target, project.Catalog, project.Audit, project.Architecture

	expandTargetEnvVars(cfg.Target)
	cfg.Catalog.Token = expandEnvVars(cfg.Catalog.Token)
	cfg.Catalog.URL = expandEnvVars(cfg.Catalog.URL)
	cfg.BillingProject = expandEnvVars(cfg.BillingProject)

	// Paths from flags are relative to the working directory; everything
	// else is relative to the project root.
	if p, ok := flagPaths["database"]; ok {
		cfg.Target.Database = p
	} else if strings.EqualFold(cfg.Target.Type, "duckdb") {
		cfg.Target.Database = resolvePathRelativeTo(cfg.Target.Database, projectRoot)
	}
	if p, ok := flagPaths["catalog"]; ok {
		cfg.Catalog.Path = p
	} else {
		cfg.Catalog.Path = resolvePathRelativeTo(cfg.Catalog.Path, projectRoot)
	}
	cfg.Target.CredentialsFile = resolvePathRelativeTo(cfg.Target.CredentialsFile, projectRoot)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	currentConfig = &cfg
	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() any {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})
}

// expandTargetEnvVars expands environment variables in sensitive target fields.
func expandTargetEnvVars(t *core.TargetConfig) {
	if t == nil {
		return
	}
	t.Password = expandEnvVars(t.Password)
	t.User = expandEnvVars(t.User)
	t.Host = expandEnvVars(t.Host)
	t.Database = expandEnvVars(t.Database)
	t.Project = expandEnvVars(t.Project)
	t.CredentialsFile = expandEnvVars(t.CredentialsFile)
}

// MergeTargetConfig merges two target configs, with override taking precedence.
func MergeTargetConfig(base, override *core.TargetConfig) *core.TargetConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	merged := *base
	merged.Options = make(map[string]string, len(base.Options)+len(override.Options))
	merged.Params = make(map[string]any, len(base.Params)+len(override.Params))
	for k, v := range base.Options {
		merged.Options[k] = v
	}
	for k, v := range base.Params {
		merged.Params[k] = v
	}

	overrideString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	overrideString(&merged.Type, override.Type)
	overrideString(&merged.Database, override.Database)
	overrideString(&merged.Host, override.Host)
	overrideString(&merged.User, override.User)
	overrideString(&merged.Password, override.Password)
	overrideString(&merged.Schema, override.Schema)
	overrideString(&merged.Project, override.Project)
	overrideString(&merged.Location, override.Location)
	overrideString(&merged.CredentialsFile, override.CredentialsFile)
	if override.Port != 0 {
		merged.Port = override.Port
	}

	for k, v := range override.Options {
		merged.Options[k] = v
	}
	for k, v := range override.Params {
		merged.Params[k] = v
	}
	return &merged
}
