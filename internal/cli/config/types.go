// Package config loads chviewgraph CLI configuration.
//
// Values come from defaults, a chviewgraph.yaml file, the CH_* variables
// understood by earlier ClickHouse tooling, CHVIEWGRAPH_* variables and
// finally command-line flags, each layer overriding the previous one.
package config

import (
	"github.com/leapstack-labs/chviewgraph/pkg/core"
)

// Config holds all CLI configuration options.
type Config struct {
	Source       string           `koanf:"source"`
	SQLDir       string           `koanf:"sql_dir"`
	ClickHouse   ClickHouseConfig `koanf:"clickhouse"`
	Mermaid      MermaidConfig    `koanf:"mermaid"`
	Concurrency  int              `koanf:"concurrency"`
	Verbose      bool             `koanf:"verbose"`
	OutputFormat string           `koanf:"output"`

	// ConfigFile is the file the configuration was read from, if any.
	ConfigFile string `koanf:"-"`
}

// ClickHouseConfig holds the connection settings of the ClickHouse source.
type ClickHouseConfig struct {
	Host          string            `koanf:"host"`
	Port          int               `koanf:"port"`
	Protocol      string            `koanf:"protocol"`
	User          string            `koanf:"user"`
	Password      string            `koanf:"password"`
	Databases     []string          `koanf:"databases"`
	Secure        bool              `koanf:"secure"`
	IncludeSystem bool              `koanf:"include_system"`
	Options       map[string]string `koanf:"options"`
}

// MermaidConfig holds diagram rendering options.
type MermaidConfig struct {
	Direction    string `koanf:"direction"`
	Indent       string `koanf:"indent"`
	OmitIsolated bool   `koanf:"omit_isolated"`
}

// Default configuration values.
const (
	DefaultSource      = "clickhouse"
	DefaultHost        = "localhost"
	DefaultProtocol    = "native"
	DefaultUser        = "default"
	DefaultDirection   = "LR"
	DefaultIndent      = "  "
	DefaultConcurrency = 4
	DefaultOutput      = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// SourceConfig converts the loaded settings into the source config
// consumed by pkg/adapter.
func (c *Config) SourceConfig() core.SourceConfig {
	return core.SourceConfig{
		Type:          c.Source,
		Path:          c.SQLDir,
		Protocol:      c.ClickHouse.Protocol,
		Host:          c.ClickHouse.Host,
		Port:          c.ClickHouse.Port,
		Username:      c.ClickHouse.User,
		Password:      c.ClickHouse.Password,
		Databases:     c.ClickHouse.Databases,
		Secure:        c.ClickHouse.Secure,
		IncludeSystem: c.ClickHouse.IncludeSystem,
		Options:       c.ClickHouse.Options,
	}
}
