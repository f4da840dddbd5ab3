package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestOpString(t *testing.T) {
	tests := []struct {
		op       Op
		expected string
	}{
		{OpWrite, "write"},
		{OpCreate, "create"},
		{OpRemove, "remove"},
		{Op(0), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.expected {
			t.Errorf("Op(%d).String() = %q, expected %q", tt.op, got, tt.expected)
		}
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name       string
		prev, next Op
		want       Op
	}{
		{"writes stay writes", OpWrite, OpWrite, OpWrite},
		{"create absorbs write", OpCreate, OpWrite, OpCreate},
		{"remove wins", OpWrite, OpRemove, OpRemove},
		{"write after remove is create", OpRemove, OpWrite, OpCreate},
		{"create after remove", OpRemove, OpCreate, OpCreate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := merge(tt.prev, tt.next); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func newTestWatcher(t *testing.T, opts ...Option) *Watcher {
	t.Helper()
	w, err := New(opts...)
	if err != nil {
		t.Skipf("file watching unavailable: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func waitEvents(r *recorder, n int, timeout time.Duration) []Event {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if evs := r.snapshot(); len(evs) >= n {
			return evs
		}
		time.Sleep(10 * time.Millisecond)
	}
	return r.snapshot()
}

func TestWatchReportsWrites(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping file watching test in short mode")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := newTestWatcher(t, WithDebounce(100*time.Millisecond))
	rec := &recorder{}
	w.OnChange(rec.handle)
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}

	// Unwatched siblings are filtered out.
	os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644)
	for i := 0; i < 3; i++ {
		os.WriteFile(path, []byte("b"), 0o644)
	}

	evs := waitEvents(rec, 1, 2*time.Second)
	if len(evs) == 0 {
		t.Fatal("expected a change event")
	}
	abs, _ := filepath.Abs(path)
	for _, ev := range evs {
		if ev.Path != abs {
			t.Errorf("expected events only for %s, got %s", abs, ev.Path)
		}
	}

	time.Sleep(300 * time.Millisecond)
	if n := len(rec.snapshot()); n != 1 {
		t.Errorf("expected rapid writes to coalesce into 1 event, got %d", n)
	}
}

func TestWatchMissingFileThenCreate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping file watching test in short mode")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	w := newTestWatcher(t, WithDebounce(0))
	rec := &recorder{}
	w.OnChange(rec.handle)
	if err := w.Watch(path); err != nil {
		t.Fatal(err)
	}
	if len(w.WatchedFiles()) != 1 {
		t.Errorf("expected 1 watched file, got %v", w.WatchedFiles())
	}

	os.WriteFile(path, []byte("x: 1"), 0o644)
	evs := waitEvents(rec, 1, 2*time.Second)
	if len(evs) == 0 || evs[0].Op != OpCreate {
		t.Errorf("expected create event, got %v", evs)
	}
}

func TestWatchAfterClose(t *testing.T) {
	w := newTestWatcher(t)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Watch(filepath.Join(t.TempDir(), "x.toml")); err != ErrWatcherClosed {
		t.Errorf("expected ErrWatcherClosed, got %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("expected second Close to be a no-op, got %v", err)
	}
}
