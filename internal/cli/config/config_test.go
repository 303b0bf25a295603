package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Import source packages to ensure they are registered via init()
	_ "github.com/leapstack-labs/chviewgraph/pkg/adapters/clickhouse"
	_ "github.com/leapstack-labs/chviewgraph/pkg/adapters/files"
)

var configEnvVars = []string{
	"CH_HOST", "CH_PORT", "CH_USER", "CH_PASSWORD", "CH_DATABASE", "CH_SECURE",
	"CHVIEWGRAPH_SOURCE", "CHVIEWGRAPH_SQL_DIR", "CHVIEWGRAPH_CONCURRENCY",
	"CHVIEWGRAPH_CLICKHOUSE__HOST", "CHVIEWGRAPH_CLICKHOUSE__PORT",
	"CHVIEWGRAPH_MERMAID__DIRECTION",
}

// isolate clears config env vars and moves into an empty directory so no
// chviewgraph.yaml from the surrounding tree is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	ResetConfig()
	for _, name := range configEnvVars {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "chviewgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func graphFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "config file")
	flags.String("source", "", "source type")
	flags.String("sql-dir", "", "SQL directory")
	flags.String("host", "", "ClickHouse host")
	flags.Int("port", 0, "ClickHouse port")
	flags.StringSlice("database", nil, "databases")
	flags.Bool("include-system", false, "include system databases")
	flags.String("direction", "", "diagram direction")
	flags.Bool("omit-isolated", false, "omit isolated nodes")
	flags.Int("concurrency", 0, "parser concurrency")
	flags.String("focus", "", "focus node")
	return flags
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultSource, cfg.Source)
	assert.Equal(t, DefaultHost, cfg.ClickHouse.Host)
	assert.Equal(t, DefaultProtocol, cfg.ClickHouse.Protocol)
	assert.Equal(t, DefaultUser, cfg.ClickHouse.User)
	assert.Equal(t, 0, cfg.ClickHouse.Port)
	assert.Equal(t, DefaultDirection, cfg.Mermaid.Direction)
	assert.Equal(t, DefaultIndent, cfg.Mermaid.Indent)
	assert.False(t, cfg.Mermaid.OmitIsolated)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Empty(t, cfg.ConfigFile)
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_File(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, dir, `source: files
sql_dir: views
clickhouse:
  host: ch.internal
  databases: [analytics, test]
mermaid:
  direction: tb
  omit_isolated: true
concurrency: 2
`)
	sub := filepath.Join(dir, "nested", "deeper")
	require.NoError(t, os.MkdirAll(sub, 0750))
	t.Chdir(sub)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "files", cfg.Source)
	assert.Equal(t, filepath.Join(dir, "views"), cfg.SQLDir, "sql_dir resolves against the config file directory")
	assert.Equal(t, "ch.internal", cfg.ClickHouse.Host)
	assert.Equal(t, []string{"analytics", "test"}, cfg.ClickHouse.Databases)
	assert.Equal(t, "tb", cfg.Mermaid.Direction)
	assert.True(t, cfg.Mermaid.OmitIsolated)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, "chviewgraph.yaml", filepath.Base(GetConfigFileUsed()))
}

func TestLoadConfig_ExplicitFileMissing(t *testing.T) {
	isolate(t)

	_, err := LoadConfig("does-not-exist.yaml", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file does-not-exist.yaml")
}

func TestLoadConfig_CHEnv(t *testing.T) {
	isolate(t)
	t.Setenv("CH_HOST", "10.1.2.3")
	t.Setenv("CH_PORT", "18123")
	t.Setenv("CH_USER", "reader")
	t.Setenv("CH_PASSWORD", "s3cret")
	t.Setenv("CH_DATABASE", "analytics")
	t.Setenv("CH_SECURE", "yes")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "10.1.2.3", cfg.ClickHouse.Host)
	assert.Equal(t, 18123, cfg.ClickHouse.Port)
	assert.Equal(t, "reader", cfg.ClickHouse.User)
	assert.Equal(t, "s3cret", cfg.ClickHouse.Password)
	assert.Equal(t, []string{"analytics"}, cfg.ClickHouse.Databases)
	assert.True(t, cfg.ClickHouse.Secure)
}

func TestChEnvValue(t *testing.T) {
	tests := []struct {
		key, value string
		wantKey    string
		wantValue  interface{}
	}{
		{"CH_SECURE", "1", "clickhouse.secure", true},
		{"CH_SECURE", "TRUE", "clickhouse.secure", true},
		{"CH_SECURE", "no", "clickhouse.secure", false},
		{"CH_DATABASE", "a,b", "clickhouse.databases", []string{"a", "b"}},
		{"CH_HOST", "", "", nil},
		{"CH_UNRELATED", "x", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			key, value := chEnvValue(tt.key, tt.value)
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.wantValue, value)
		})
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := isolate(t)
	cfgPath := writeConfig(t, dir, `clickhouse:
  host: from_file
  port: 9000
`)
	t.Setenv("CH_HOST", "from_ch_env")
	t.Setenv("CH_PORT", "9001")
	t.Setenv("CHVIEWGRAPH_CLICKHOUSE__HOST", "from_env")

	t.Run("prefixed env beats CH_* beats file", func(t *testing.T) {
		ResetConfig()
		cfg, err := LoadConfig(cfgPath, nil)
		require.NoError(t, err)
		assert.Equal(t, "from_env", cfg.ClickHouse.Host)
		assert.Equal(t, 9001, cfg.ClickHouse.Port)
	})

	t.Run("changed flag beats env", func(t *testing.T) {
		ResetConfig()
		flags := graphFlags()
		require.NoError(t, flags.Set("host", "from_flag"))
		cfg, err := LoadConfig(cfgPath, flags)
		require.NoError(t, err)
		assert.Equal(t, "from_flag", cfg.ClickHouse.Host)
		assert.Equal(t, 9001, cfg.ClickHouse.Port)
	})

	t.Run("unset flag falls back to env", func(t *testing.T) {
		ResetConfig()
		cfg, err := LoadConfig(cfgPath, graphFlags())
		require.NoError(t, err)
		assert.Equal(t, "from_env", cfg.ClickHouse.Host)
	})
}

func TestLoadConfig_FlagKeys(t *testing.T) {
	dir := isolate(t)
	flags := graphFlags()
	require.NoError(t, flags.Set("source", "files"))
	require.NoError(t, flags.Set("sql-dir", "views"))
	require.NoError(t, flags.Set("database", "a,b"))
	require.NoError(t, flags.Set("include-system", "true"))
	require.NoError(t, flags.Set("direction", "RL"))
	require.NoError(t, flags.Set("omit-isolated", "true"))
	require.NoError(t, flags.Set("concurrency", "8"))
	require.NoError(t, flags.Set("focus", "db.v"))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	assert.Equal(t, "files", cfg.Source)
	assert.Equal(t, filepath.Join(dir, "views"), cfg.SQLDir)
	assert.Equal(t, []string{"a", "b"}, cfg.ClickHouse.Databases)
	assert.True(t, cfg.ClickHouse.IncludeSystem)
	assert.Equal(t, "RL", cfg.Mermaid.Direction)
	assert.True(t, cfg.Mermaid.OmitIsolated)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.False(t, k.Exists("focus"), "command flags are not configuration")
}

func TestLoadConfig_PasswordExpansion(t *testing.T) {
	dir := isolate(t)
	cfgPath := writeConfig(t, dir, `clickhouse:
  password: ${CHVIEWGRAPH_TEST_PW}
  user: ${CHVIEWGRAPH_TEST_UNSET}
`)
	t.Setenv("CHVIEWGRAPH_TEST_PW", "expanded")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, "expanded", cfg.ClickHouse.Password)
	assert.Equal(t, "${CHVIEWGRAPH_TEST_UNSET}", cfg.ClickHouse.User, "unknown variables are left as written")
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown source", "source: mysql\n", `unknown source type "mysql"`},
		{"files without dir", "source: files\n", "sql_dir is required"},
		{"bad direction", "mermaid:\n  direction: up\n", "direction must be one of LR, TB, RL, BT"},
		{"negative concurrency", "concurrency: -1\n", "concurrency must not be negative"},
		{"bad output", "output: csv\n", "unknown output format"},
		{"bad port", "clickhouse:\n  port: 70000\n", "clickhouse.port out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			_, err := LoadConfig(writeConfig(t, dir, tt.content), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_SourceConfig(t *testing.T) {
	cfg := &Config{
		Source: "clickhouse",
		SQLDir: "/views",
		ClickHouse: ClickHouseConfig{
			Host:          "h",
			Port:          9440,
			Protocol:      "native",
			User:          "u",
			Password:      "p",
			Databases:     []string{"db"},
			Secure:        true,
			IncludeSystem: true,
			Options:       map[string]string{"dial_timeout": "5s"},
		},
	}

	src := cfg.SourceConfig()
	assert.Equal(t, "clickhouse", src.Type)
	assert.Equal(t, "/views", src.Path)
	assert.Equal(t, "h", src.Host)
	assert.Equal(t, 9440, src.Port)
	assert.Equal(t, "u", src.Username)
	assert.Equal(t, "p", src.Password)
	assert.Equal(t, []string{"db"}, src.Databases)
	assert.True(t, src.Secure)
	assert.True(t, src.IncludeSystem)
	assert.Equal(t, "5s", src.Options["dial_timeout"])
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("CHVIEWGRAPH_TEST_A", "alpha")

	tests := []struct {
		input, want string
	}{
		{"plain", "plain"},
		{"${CHVIEWGRAPH_TEST_A}", "alpha"},
		{"pre-${CHVIEWGRAPH_TEST_A}-post", "pre-alpha-post"},
		{"${CHVIEWGRAPH_TEST_MISSING}", "${CHVIEWGRAPH_TEST_MISSING}"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, expandEnvVars(tt.input))
		})
	}
}

func TestGetLogger(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	ctx := context.WithValue(context.Background(), LoggerKey(), logger)
	assert.Same(t, logger, GetLogger(ctx))

	assert.NotNil(t, GetLogger(context.Background()), "missing logger falls back to discard")
}
