// Package files provides a view source backed by a directory of SQL files.
//
// The layout is:
//
//	<dir>/<db>/<view>.sql   one view per file, schema taken from the directory
//	<dir>/<db>.<view>.sql   one view per file, schema taken from the file name
//	<dir>/tables.yaml       optional list of known tables
//
// Deeper directories are ignored.
package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/leapstack-labs/chviewgraph/pkg/adapter"
	"github.com/leapstack-labs/chviewgraph/pkg/core"
	"gopkg.in/yaml.v3"
)

// TablesFile is the name of the optional known-tables manifest.
const TablesFile = "tables.yaml"

const sqlExt = ".sql"

// ErrNoPath is returned by Connect when no directory is configured.
var ErrNoPath = errors.New("files source requires a path")

// tablesManifest is the shape of tables.yaml.
type tablesManifest struct {
	Tables []string `yaml:"tables"`
}

// Adapter implements adapter.Source over a local directory.
type Adapter struct {
	root   string
	logger *slog.Logger
}

// New creates a new directory source.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{logger: logger}
}

// Connect checks that the configured path is a readable directory.
func (a *Adapter) Connect(_ context.Context, cfg adapter.Config) error {
	if cfg.Path == "" {
		return ErrNoPath
	}
	info, err := os.Stat(cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open SQL directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("SQL path %s is not a directory", cfg.Path)
	}
	a.root = cfg.Path
	a.logger.Debug("using SQL directory", slog.String("path", cfg.Path))
	return nil
}

// Root returns the connected directory.
func (a *Adapter) Root() string {
	return a.root
}

// ListViews reads every view file, ordered by qualified name.
func (a *Adapter) ListViews(ctx context.Context) ([]core.ViewDefinition, error) {
	if a.root == "" {
		return nil, ErrNoPath
	}

	entries, err := os.ReadDir(a.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read SQL directory: %w", err)
	}

	var views []core.ViewDefinition
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(a.root, entry.Name())

		if entry.IsDir() {
			dirViews, err := a.readSchemaDir(path, entry.Name())
			if err != nil {
				return nil, err
			}
			views = append(views, dirViews...)
			continue
		}

		if !isSQLFile(entry) {
			continue
		}
		name, err := core.ParseQualifiedName(viewStem(entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("invalid view file name %s: %w", entry.Name(), err)
		}
		view, err := readView(path, name)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}

	slices.SortStableFunc(views, func(x, y core.ViewDefinition) int {
		return x.Name.Compare(y.Name)
	})
	a.logger.Debug("listed views", slog.Int("count", len(views)))
	return views, nil
}

// readSchemaDir reads <dir>/<db>/*.sql as views of schema db.
func (a *Adapter) readSchemaDir(dir, schema string) ([]core.ViewDefinition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema directory %s: %w", dir, err)
	}

	var views []core.ViewDefinition
	for _, entry := range entries {
		if entry.IsDir() {
			a.logger.Debug("skipping nested directory", slog.String("path", filepath.Join(dir, entry.Name())))
			continue
		}
		if !isSQLFile(entry) {
			continue
		}
		name := core.QualifiedName{Schema: schema, Name: viewStem(entry.Name())}
		view, err := readView(filepath.Join(dir, entry.Name()), name)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// ListTables returns the names in tables.yaml, or nothing when it is absent.
func (a *Adapter) ListTables(_ context.Context) ([]core.QualifiedName, error) {
	if a.root == "" {
		return nil, ErrNoPath
	}

	path := filepath.Join(a.root, TablesFile)
	data, err := os.ReadFile(path) //nolint:gosec // path is inside the configured directory
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", TablesFile, err)
	}

	var manifest tablesManifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&manifest); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse %s: %w", TablesFile, err)
	}

	tables := make([]core.QualifiedName, 0, len(manifest.Tables))
	for _, raw := range manifest.Tables {
		name, err := core.ParseQualifiedName(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", TablesFile, err)
		}
		tables = append(tables, name)
	}
	return tables, nil
}

// WatchPaths returns the directories whose changes can alter the listing:
// the root and its first-level subdirectories.
func (a *Adapter) WatchPaths() ([]string, error) {
	if a.root == "" {
		return nil, ErrNoPath
	}
	entries, err := os.ReadDir(a.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read SQL directory: %w", err)
	}
	paths := []string{a.root}
	for _, entry := range entries {
		if entry.IsDir() {
			paths = append(paths, filepath.Join(a.root, entry.Name()))
		}
	}
	return paths, nil
}

// Close is a no-op.
func (a *Adapter) Close() error {
	return nil
}

func isSQLFile(entry fs.DirEntry) bool {
	return entry.Type().IsRegular() && strings.EqualFold(filepath.Ext(entry.Name()), sqlExt)
}

func viewStem(file string) string {
	return strings.TrimSuffix(file, filepath.Ext(file))
}

func readView(path string, name core.QualifiedName) (core.ViewDefinition, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is inside the configured directory
	if err != nil {
		return core.ViewDefinition{}, fmt.Errorf("failed to read view file %s: %w", path, err)
	}
	return core.ViewDefinition{Name: name, SQL: string(data)}, nil
}
