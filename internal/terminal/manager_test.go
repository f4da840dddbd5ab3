package terminal

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dshills/pterminal/internal/ids"
)

type mockPublisher struct {
	mu     sync.Mutex
	events []string
	data   []map[string]any
}

func (m *mockPublisher) Publish(eventType string, data map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventType)
	m.data = append(m.data, data)
}

func (m *mockPublisher) has(eventType string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e == eventType {
			return true
		}
	}
	return false
}

type fakeSpawner struct {
	mu    sync.Mutex
	ptys  map[ids.Pane]*fakePTY
	procs map[ids.Pane]*fakeProcess
	opts  map[ids.Pane]Options
}

func newFakeSpawner() *fakeSpawner {
	return &fakeSpawner{
		ptys:  make(map[ids.Pane]*fakePTY),
		procs: make(map[ids.Pane]*fakeProcess),
		opts:  make(map[ids.Pane]Options),
	}
}

func (f *fakeSpawner) spawn(id ids.Pane, opts Options) (*Terminal, error) {
	p := newFakePTY()
	proc := newFakeProcess()
	f.mu.Lock()
	f.ptys[id] = p
	f.procs[id] = proc
	f.opts[id] = opts
	f.mu.Unlock()
	return Attach(id, p, proc, opts), nil
}

func newTestManager(t *testing.T) (*Manager, *fakeSpawner, *mockPublisher) {
	t.Helper()
	pub := &mockPublisher{}
	m := NewManager(ManagerConfig{
		DefaultShell: "/bin/sh",
		DefaultCols:  40,
		DefaultRows:  10,
		Scrollback:   50,
		Env:          []string{"PTERMINAL_SOCKET=/tmp/test.sock"},
		EventBus:     pub,
	})
	fs := newFakeSpawner()
	m.spawn = fs.spawn
	t.Cleanup(func() { m.Shutdown(time.Second) })
	return m, fs, pub
}

func TestManagerCreate(t *testing.T) {
	m, fs, pub := newTestManager(t)

	term, err := m.Create(3, Options{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if term.ID() != 3 {
		t.Errorf("expected pane p3, got %s", term.ID())
	}
	cols, rows := term.Grid().Size()
	if cols != 40 || rows != 10 {
		t.Errorf("expected default size 40x10, got %dx%d", cols, rows)
	}
	if got, ok := m.Get(3); !ok || got != term {
		t.Error("expected Get to return the terminal")
	}
	if m.Count() != 1 {
		t.Errorf("expected 1 terminal, got %d", m.Count())
	}
	if !pub.has(EventTypeCreated) {
		t.Error("expected created event")
	}

	fs.mu.Lock()
	opts := fs.opts[3]
	fs.mu.Unlock()
	if opts.Shell != "/bin/sh" || opts.Scrollback != 50 {
		t.Errorf("expected defaults applied, got %+v", opts)
	}
	if len(opts.Env) != 1 || opts.Env[0] != "PTERMINAL_SOCKET=/tmp/test.sock" {
		t.Errorf("expected manager env, got %v", opts.Env)
	}
}

func TestManagerCreateDuplicate(t *testing.T) {
	m, _, _ := newTestManager(t)
	if _, err := m.Create(1, Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create(1, Options{}); !errors.Is(err, ErrTerminalExists) {
		t.Errorf("expected ErrTerminalExists, got %v", err)
	}
}

func TestManagerExitRemovesTerminal(t *testing.T) {
	m, fs, pub := newTestManager(t)
	exited := make(chan ids.Pane, 1)
	if _, err := m.Create(2, Options{OnExit: func(p ids.Pane, _ int) { exited <- p }}); err != nil {
		t.Fatal(err)
	}

	fs.mu.Lock()
	proc := fs.procs[2]
	fs.mu.Unlock()
	proc.finish(0)

	select {
	case p := <-exited:
		if p != 2 {
			t.Errorf("expected p2, got %s", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for exit")
	}
	if _, ok := m.Get(2); ok {
		t.Error("expected exited terminal to be removed")
	}
	if !pub.has(EventTypeExited) {
		t.Error("expected exited event")
	}
}

func TestManagerPublishesTerminalEvents(t *testing.T) {
	m, fs, pub := newTestManager(t)
	if _, err := m.Create(0, Options{}); err != nil {
		t.Fatal(err)
	}
	fs.mu.Lock()
	p := fs.ptys[0]
	fs.mu.Unlock()

	p.emit("\x1b]777;notify;Build;done\a")
	if !waitFor(t, time.Second, func() bool { return pub.has(EventTypeNotify) }) {
		t.Error("expected notify event")
	}
}

func TestManagerClose(t *testing.T) {
	m, _, _ := newTestManager(t)
	if _, err := m.Create(5, Options{}); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(5); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !waitFor(t, time.Second, func() bool { return m.Count() == 0 }) {
		t.Errorf("expected no terminals, got %d", m.Count())
	}
	if err := m.Close(5); !errors.Is(err, ErrTerminalNotFound) {
		t.Errorf("expected ErrTerminalNotFound, got %v", err)
	}
}

func TestManagerListOrdered(t *testing.T) {
	m, _, _ := newTestManager(t)
	for _, id := range []ids.Pane{4, 1, 3} {
		if _, err := m.Create(id, Options{}); err != nil {
			t.Fatal(err)
		}
	}
	list := m.List()
	if len(list) != 3 || list[0].ID() != 1 || list[1].ID() != 3 || list[2].ID() != 4 {
		t.Errorf("expected p1 p3 p4, got %v", list)
	}
}

func TestManagerShutdown(t *testing.T) {
	m, _, _ := newTestManager(t)
	for i := 0; i < 3; i++ {
		if _, err := m.Create(ids.Pane(i), Options{}); err != nil {
			t.Fatal(err)
		}
	}
	m.Shutdown(2 * time.Second)
	if _, err := m.Create(9, Options{}); !errors.Is(err, ErrManagerClosed) {
		t.Errorf("expected ErrManagerClosed, got %v", err)
	}
}
