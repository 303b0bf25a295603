package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/chviewgraph/internal/cli/testutil"
	itestutil "github.com/leapstack-labs/chviewgraph/internal/testutil"
	"github.com/leapstack-labs/chviewgraph/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRelevant(t *testing.T) {
	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"write sql", fsnotify.Event{Name: "/v/test/a.sql", Op: fsnotify.Write}, true},
		{"create upper-case sql", fsnotify.Event{Name: "/v/test/a.SQL", Op: fsnotify.Create}, true},
		{"remove sql", fsnotify.Event{Name: "/v/test/a.sql", Op: fsnotify.Remove}, true},
		{"rename sql", fsnotify.Event{Name: "/v/a.b.sql", Op: fsnotify.Rename}, true},
		{"tables manifest", fsnotify.Event{Name: "/v/tables.yaml", Op: fsnotify.Write}, true},
		{"chmod only", fsnotify.Event{Name: "/v/test/a.sql", Op: fsnotify.Chmod}, false},
		{"other file", fsnotify.Event{Name: "/v/test/notes.txt", Op: fsnotify.Write}, false},
		{"editor swap file", fsnotify.Event{Name: "/v/test/.a.sql.swp", Op: fsnotify.Write}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRelevant(tt.event))
		})
	}
}

func TestWatchLoop_RebuildsOnChange(t *testing.T) {
	dir := t.TempDir()
	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer func() { _ = watcher.Close() }()
	require.NoError(t, watcher.Add(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rebuilds := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- watchLoop(ctx, watcher, 20*time.Millisecond, func(context.Context) error {
			rebuilds <- struct{}{}
			return nil
		}, itestutil.NewTestLogger(t))
	}()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	select {
	case <-rebuilds:
		t.Fatal("unrelated file triggered a rebuild")
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.sql"), []byte("SELECT 1"), 0o600))
	select {
	case <-rebuilds:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for rebuild")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch loop did not stop")
	}
}

func TestWatchLoop_WatchesNewDirectories(t *testing.T) {
	dir := t.TempDir()
	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer func() { _ = watcher.Close() }()
	require.NoError(t, watcher.Add(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rebuilds := make(chan struct{}, 10)
	go func() {
		_ = watchLoop(ctx, watcher, 20*time.Millisecond, func(context.Context) error {
			rebuilds <- struct{}{}
			return nil
		}, itestutil.NewTestLogger(t))
	}()

	sub := filepath.Join(dir, "analytics")
	require.NoError(t, os.Mkdir(sub, 0o755))
	select {
	case <-rebuilds:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for rebuild after mkdir")
	}

	assert.Eventually(t, func() bool {
		for _, p := range watcher.WatchList() {
			if p == sub {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
}

type plainSource struct{}

func (plainSource) Connect(context.Context, core.SourceConfig) error { return nil }
func (plainSource) ListViews(context.Context) ([]core.ViewDefinition, error) {
	return nil, nil
}
func (plainSource) ListTables(context.Context) ([]core.QualifiedName, error) {
	return nil, nil
}
func (plainSource) Close() error { return nil }

func TestWatch_RequiresFilesSource(t *testing.T) {
	tr := testutil.NewTestRendererText()
	c := &CommandContext{Logger: itestutil.NewTestLogger(t), Renderer: tr.Renderer}

	called := false
	err := c.watch(context.Background(), plainSource{}, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, errWatchUnsupported)
	assert.False(t, called)
}
