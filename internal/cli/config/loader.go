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
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// configFileNames are tried in order in each searched directory.
var configFileNames = []string{"chviewgraph.yaml", "chviewgraph.yml"}

// Env var prefixes.
const (
	envPrefix   = "CHVIEWGRAPH_"
	chEnvPrefix = "CH_"
)

// chEnvKeys maps the CH_* variables to config keys.
var chEnvKeys = map[string]string{
	"CH_HOST":     "clickhouse.host",
	"CH_PORT":     "clickhouse.port",
	"CH_USER":     "clickhouse.user",
	"CH_PASSWORD": "clickhouse.password",
	"CH_DATABASE": "clickhouse.databases",
	"CH_SECURE":   "clickhouse.secure",
}

// flagKeys maps flag names whose config key is not the snake_case form
// of the flag name.
var flagKeys = map[string]string{
	"host":           "clickhouse.host",
	"port":           "clickhouse.port",
	"protocol":       "clickhouse.protocol",
	"user":           "clickhouse.user",
	"password":       "clickhouse.password",
	"database":       "clickhouse.databases",
	"secure":         "clickhouse.secure",
	"include-system": "clickhouse.include_system",
	"direction":      "mermaid.direction",
	"indent":         "mermaid.indent",
	"omit-isolated":  "mermaid.omit_isolated",
}

// commandFlags are per-invocation flags that are not configuration.
var commandFlags = map[string]bool{
	"config":     true,
	"focus":      true,
	"upstream":   true,
	"downstream": true,
	"watch":      true,
	"help":       true,
	"version":    true,
}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// findConfigUpward searches upward from startDir for a config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findConfigUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		for _, name := range configFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from defaults, file, environment variables
// and flags. Precedence (highest to lowest): flags > CHVIEWGRAPH_* > CH_* >
// config file > defaults.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	// Reset koanf for fresh load
	k = koanf.New(".")

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	// 1. Load defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"source":                    DefaultSource,
		"clickhouse.host":           DefaultHost,
		"clickhouse.protocol":       DefaultProtocol,
		"clickhouse.user":           DefaultUser,
		"clickhouse.secure":         false,
		"clickhouse.include_system": false,
		"mermaid.direction":         DefaultDirection,
		"mermaid.indent":            DefaultIndent,
		"mermaid.omit_isolated":     false,
		"concurrency":               DefaultConcurrency,
		"verbose":                   false,
		"output":                    DefaultOutput,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	configFileUsed = cfgFile
	if configFileUsed == "" {
		configFileUsed = findConfigUpward(cwd)
	}
	projectRoot := cwd
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
		if abs, err := filepath.Abs(configFileUsed); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	}

	// 3. Load CH_* variables
	if err := k.Load(env.ProviderWithValue(chEnvPrefix, ".", chEnvValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load CH_* env vars: %w", err)
	}

	// 4. Load CHVIEWGRAPH_* variables
	// Transform: CHVIEWGRAPH_CLICKHOUSE__HOST -> clickhouse.host
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.TrimPrefix(s, envPrefix)
		return strings.ToLower(strings.ReplaceAll(key, "__", "."))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 5. Load flags (highest priority - overrides env vars and config file)
	var flagSQLDir string
	if flags != nil {
		if f := flags.Lookup("sql-dir"); f != nil && f.Changed {
			flagSQLDir, _ = filepath.Abs(f.Value.String())
		}
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed || commandFlags[f.Name] {
				return "", nil
			}
			if key, ok := flagKeys[f.Name]; ok {
				return key, posflag.FlagVal(flags, f)
			}
			// Transform kebab-case to snake_case for config keys
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 6. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ConfigFile = configFileUsed

	// Flag paths are relative to the CWD, everything else to the project root.
	if flagSQLDir != "" {
		cfg.SQLDir = flagSQLDir
	} else {
		cfg.SQLDir = resolvePathRelativeTo(cfg.SQLDir, projectRoot)
	}

	expandClickHouseEnvVars(&cfg.ClickHouse)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	currentConfig = &cfg
	return &cfg, nil
}

// chEnvValue maps a CH_* variable to its config key. Unknown and empty
// CH_* variables are ignored.
func chEnvValue(key, value string) (string, interface{}) {
	target, ok := chEnvKeys[key]
	if !ok || value == "" {
		return "", nil
	}
	switch key {
	case "CH_SECURE":
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes":
			return target, true
		default:
			return target, false
		}
	case "CH_DATABASE":
		return target, strings.Split(value, ",")
	}
	return target, value
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR}
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}

// expandClickHouseEnvVars expands environment variables in connection fields.
func expandClickHouseEnvVars(c *ClickHouseConfig) {
	c.Password = expandEnvVars(c.Password)
	c.User = expandEnvVars(c.User)
	c.Host = expandEnvVars(c.Host)
}
