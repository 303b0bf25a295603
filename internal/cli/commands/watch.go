package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/chviewgraph/pkg/adapter"
	"github.com/leapstack-labs/chviewgraph/pkg/adapters/files"
)

// watchDebounce is how long the watcher waits for events to settle before rebuilding.
const watchDebounce = 200 * time.Millisecond

// errWatchUnsupported is returned when --watch is used with a source that has no files.
var errWatchUnsupported = errors.New("--watch requires the files source")

// watchPather is implemented by sources backed by local files.
type watchPather interface {
	WatchPaths() ([]string, error)
}

// watch runs generate once, then again after every relevant file change,
// until ctx is cancelled or the process receives an interrupt.
func (c *CommandContext) watch(ctx context.Context, src adapter.Source, generate func(context.Context) error) error {
	wp, ok := src.(watchPather)
	if !ok {
		return errWatchUnsupported
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	paths, err := wp.WatchPaths()
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
	}

	rebuild := func(ctx context.Context) error {
		if err := generate(ctx); err != nil {
			c.Renderer.Warning(err.Error())
		}
		return nil
	}
	if err := rebuild(ctx); err != nil {
		return err
	}

	c.Logger.Info("watching for changes", "paths", len(paths))
	return watchLoop(ctx, watcher, watchDebounce, rebuild, c.Logger)
}

// watchLoop collects file system events and calls rebuild once they have
// been quiet for the debounce interval. Rebuilds run on the loop's goroutine,
// so they never overlap. It returns nil when ctx is cancelled.
func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, debounce time.Duration,
	rebuild func(context.Context) error, logger *slog.Logger) error {
	var fire <-chan time.Time
	var last string

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Create) && isDir(event.Name) {
				if err := watcher.Add(event.Name); err != nil {
					logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
				}
				fire = time.After(debounce)
				last = event.Name
				continue
			}

			if !isRelevant(event) {
				continue
			}
			fire = time.After(debounce)
			last = event.Name

		case <-fire:
			fire = nil
			logger.Info("change detected, rebuilding", "file", filepath.Base(last))
			if err := rebuild(ctx); err != nil {
				return err
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}

// isRelevant reports whether an event touches a view file or the table manifest.
func isRelevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(event.Name)
	if base == files.TablesFile {
		return true
	}
	return strings.EqualFold(filepath.Ext(base), ".sql")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
