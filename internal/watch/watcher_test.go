package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

func TestWatcherDebounceAggregatesOpsForSamePath(t *testing.T) {
	w := &Watcher{
		logger:         log.Default(),
		debounceWindow: 100 * time.Millisecond,
		events:         make(chan Event, 10),
		errors:         make(chan error, 1),
		pending:        make(map[string]fsnotify.Op),
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}

	path1 := "/tmp/a"
	path2 := "/tmp/b"

	w.record(path1, fsnotify.Create)
	w.record(path1, fsnotify.Write)
	w.record(path2, fsnotify.Remove)

	w.flush()

	got := map[string]fsnotify.Op{}
	for i := 0; i < 2; i++ {
		ev := <-w.events
		got[ev.Path] = ev.Op
	}

	if got[path1]&(fsnotify.Create|fsnotify.Write) != (fsnotify.Create | fsnotify.Write) {
		t.Fatalf("path1 ops mismatch: got=%v", got[path1])
	}
	if got[path2]&fsnotify.Remove != fsnotify.Remove {
		t.Fatalf("path2 ops mismatch: got=%v", got[path2])
	}
}

func TestWatcherIsRelevant(t *testing.T) {
	w := &Watcher{dbPath: "/data/hanogt.db"}

	if !w.isRelevant("/data/hanogt.db") {
		t.Fatalf("db file must be relevant")
	}
	if !w.isRelevant("/data/hanogt.db-wal") || !w.isRelevant("/data/hanogt.db-shm") {
		t.Fatalf("sqlite sibling files must be relevant")
	}
	if w.isRelevant("/data/other.db") {
		t.Fatalf("unrelated file must be ignored")
	}
}

func TestWatcherEmitsDebouncedEventOnWrite(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "hanogt.db")

	w, err := NewWatcher(dbPath)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := os.WriteFile(dbPath, []byte("hi"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case ev := <-w.Events():
		if filepath.Clean(ev.Path) != dbPath {
			t.Fatalf("unexpected event path: got=%q want=%q", ev.Path, dbPath)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for watcher event")
	}
}

func TestNewWatcherRequiresPath(t *testing.T) {
	if _, err := NewWatcher("  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
