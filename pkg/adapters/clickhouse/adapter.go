// Package clickhouse provides a ClickHouse view source for chviewgraph.
//
// Views and tables are listed from system.tables. The defining SQL of a
// view comes from create_table_query, with SHOW CREATE TABLE as fallback.
package clickhouse

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/leapstack-labs/chviewgraph/pkg/adapter"
	"github.com/leapstack-labs/chviewgraph/pkg/core"
)

// Protocol names accepted in Config.Protocol.
const (
	ProtocolNative = "native"
	ProtocolHTTP   = "http"
)

// ErrUnknownProtocol is returned for a protocol other than native or http.
var ErrUnknownProtocol = errors.New("protocol must be one of native, http")

// systemDatabases are skipped unless Config.IncludeSystem is set.
var systemDatabases = []string{"system", "INFORMATION_SCHEMA", "information_schema"}

// Adapter implements adapter.Source for ClickHouse.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new ClickHouse source instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// Connect opens a database/sql handle through clickhouse-go and pings it.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	opts, err := buildOptions(cfg)
	if err != nil {
		return err
	}

	a.Logger.Debug("connecting to clickhouse",
		slog.String("addr", opts.Addr[0]),
		slog.String("protocol", protocolName(opts.Protocol)),
		slog.Bool("secure", opts.TLS != nil))

	db := ch.OpenDB(opts)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping clickhouse at %s: %w", opts.Addr[0], err)
	}

	a.DB = db
	a.Cfg = cfg
	return nil
}

// buildOptions translates the source config into clickhouse-go options.
func buildOptions(cfg adapter.Config) (*ch.Options, error) {
	protocol := ch.Native
	switch strings.ToLower(strings.TrimSpace(cfg.Protocol)) {
	case "", ProtocolNative:
	case ProtocolHTTP:
		protocol = ch.HTTP
	default:
		return nil, fmt.Errorf("%w (got %q)", ErrUnknownProtocol, cfg.Protocol)
	}

	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = defaultPort(protocol, cfg.Secure)
	}

	username := cfg.Username
	if username == "" {
		username = "default"
	}

	opts := &ch.Options{
		Protocol: protocol,
		Addr:     []string{fmt.Sprintf("%s:%d", host, port)},
		Auth: ch.Auth{
			Username: username,
			Password: cfg.Password,
		},
	}
	// A single configured database doubles as the session default.
	if len(cfg.Databases) == 1 {
		opts.Auth.Database = cfg.Databases[0]
	}

	if v, ok := cfg.Options["dial_timeout"]; ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid dial_timeout %q: %w", v, err)
		}
		opts.DialTimeout = d
	}

	if cfg.Secure {
		tlsConfig, err := buildTLSConfig(cfg.Options)
		if err != nil {
			return nil, err
		}
		opts.TLS = tlsConfig
	}
	return opts, nil
}

func protocolName(p ch.Protocol) string {
	if p == ch.HTTP {
		return ProtocolHTTP
	}
	return ProtocolNative
}

func defaultPort(protocol ch.Protocol, secure bool) int {
	switch {
	case protocol == ch.HTTP && secure:
		return 8443
	case protocol == ch.HTTP:
		return 8123
	case secure:
		return 9440
	default:
		return 9000
	}
}

func buildTLSConfig(options map[string]string) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if v, ok := options["skip_verify"]; ok {
		skip, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid skip_verify %q: %w", v, err)
		}
		tlsConfig.InsecureSkipVerify = skip //nolint:gosec // opt-in for self-signed test clusters
	}
	if name := options["server_name"]; name != "" {
		tlsConfig.ServerName = name
	}
	if path := options["ca_path"]; path != "" {
		caCert, err := os.ReadFile(path) //nolint:gosec // path comes from user config
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to append CA certificate from %s", path)
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}

// ListViews returns every view in system.tables ordered by database and name.
func (a *Adapter) ListViews(ctx context.Context) ([]core.ViewDefinition, error) {
	query, args := viewsQuery(a.Cfg)
	rows, err := a.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list views: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var views []core.ViewDefinition
	for rows.Next() {
		var database, name, engine, createQuery string
		if err := rows.Scan(&database, &name, &engine, &createQuery); err != nil {
			return nil, fmt.Errorf("failed to scan view row: %w", err)
		}
		views = append(views, core.ViewDefinition{
			Name:   core.QualifiedName{Schema: database, Name: name},
			SQL:    createQuery,
			Engine: engine,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating views: %w", err)
	}
	_ = rows.Close()

	for i := range views {
		if strings.TrimSpace(views[i].SQL) != "" {
			continue
		}
		ddl, err := a.showCreate(ctx, views[i].Name)
		if err != nil {
			// Left empty so the view surfaces as a per-view failure.
			a.Logger.Warn("could not fetch view DDL",
				slog.String("view", views[i].Name.String()),
				slog.String("error", err.Error()))
			continue
		}
		views[i].SQL = ddl
	}

	a.Logger.Debug("listed views", slog.Int("count", len(views)))
	return views, nil
}

// ListTables returns every non-view relation in system.tables.
func (a *Adapter) ListTables(ctx context.Context) ([]core.QualifiedName, error) {
	query, args := tablesQuery(a.Cfg)
	names, err := a.QueryNames(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	a.Logger.Debug("listed tables", slog.Int("count", len(names)))
	return names, nil
}

func (a *Adapter) showCreate(ctx context.Context, name core.QualifiedName) (string, error) {
	if a.DB == nil {
		return "", fmt.Errorf("database connection not established")
	}
	var ddl string
	err := a.DB.QueryRowContext(ctx, "SHOW CREATE TABLE "+quoteName(name)).Scan(&ddl)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("could not fetch DDL for %s", name)
	}
	if err != nil {
		return "", fmt.Errorf("SHOW CREATE TABLE %s: %w", name, err)
	}
	return ddl, nil
}

const viewsSelect = `SELECT database, name, engine, create_table_query
FROM system.tables
WHERE (engine IN ('View', 'MaterializedView', 'LiveView') OR engine LIKE '%View%')`

const tablesSelect = `SELECT database, name
FROM system.tables
WHERE engine NOT LIKE '%View%'`

func viewsQuery(cfg adapter.Config) (string, []any) {
	return withFilters(viewsSelect, cfg)
}

func tablesQuery(cfg adapter.Config) (string, []any) {
	return withFilters(tablesSelect, cfg)
}

// withFilters appends the database filters and ordering shared by both listings.
func withFilters(base string, cfg adapter.Config) (string, []any) {
	var b strings.Builder
	b.WriteString(base)

	if !cfg.IncludeSystem {
		quoted := make([]string, len(systemDatabases))
		for i, db := range systemDatabases {
			quoted[i] = "'" + db + "'"
		}
		b.WriteString("\n  AND database NOT IN (")
		b.WriteString(strings.Join(quoted, ", "))
		b.WriteString(")")
	}

	var args []any
	if len(cfg.Databases) > 0 {
		placeholders := make([]string, len(cfg.Databases))
		for i, db := range cfg.Databases {
			placeholders[i] = "?"
			args = append(args, db)
		}
		b.WriteString("\n  AND database IN (")
		b.WriteString(strings.Join(placeholders, ", "))
		b.WriteString(")")
	}

	b.WriteString("\nORDER BY database, name")
	return b.String(), args
}

// quoteName renders a qualified name with backtick-quoted parts.
func quoteName(name core.QualifiedName) string {
	if name.Schema == "" {
		return quoteIdent(name.Name)
	}
	return quoteIdent(name.Schema) + "." + quoteIdent(name.Name)
}

func quoteIdent(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "`" + strings.ReplaceAll(s, "`", "\\`") + "`"
}
