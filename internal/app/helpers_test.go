package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dshills/pterminal/internal/config"
	"github.com/dshills/pterminal/internal/control"
	"github.com/dshills/pterminal/internal/ids"
	"github.com/dshills/pterminal/internal/logging"
	"github.com/dshills/pterminal/internal/renderer/backend"
	"github.com/dshills/pterminal/internal/terminal"
)

// fakePTY is a pipe-backed PTY. Tests write child output with emit and read
// child input with written.
type fakePTY struct {
	outR *io.PipeReader
	outW *io.PipeWriter

	mu    sync.Mutex
	input bytes.Buffer
	sizes [][2]uint16

	closeOnce sync.Once
}

func newFakePTY() *fakePTY {
	r, w := io.Pipe()
	return &fakePTY{outR: r, outW: w}
}

func (f *fakePTY) Read(p []byte) (int, error) { return f.outR.Read(p) }

func (f *fakePTY) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.input.Write(p)
}

func (f *fakePTY) Resize(cols, rows uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sizes = append(f.sizes, [2]uint16{cols, rows})
	return nil
}

func (f *fakePTY) Close() error {
	f.closeOnce.Do(func() {
		f.outR.Close()
		f.outW.Close()
	})
	return nil
}

func (f *fakePTY) written() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.input.String()
}

func (f *fakePTY) emit(s string) {
	_, _ = f.outW.Write([]byte(s))
}

type fakeProcess struct {
	exit chan int
	once sync.Once
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{exit: make(chan int, 1)}
}

func (p *fakeProcess) Wait() (int, error) { return <-p.exit, nil }

func (p *fakeProcess) Kill() error {
	p.finish(-1)
	return nil
}

func (p *fakeProcess) Pid() int { return 4242 }

func (p *fakeProcess) finish(code int) {
	p.once.Do(func() { p.exit <- code })
}

// fakeSpawner records every pane it starts.
type fakeSpawner struct {
	mu    sync.Mutex
	ptys  map[ids.Pane]*fakePTY
	procs map[ids.Pane]*fakeProcess
	opts  map[ids.Pane]terminal.Options
}

func newFakeSpawner() *fakeSpawner {
	return &fakeSpawner{
		ptys:  make(map[ids.Pane]*fakePTY),
		procs: make(map[ids.Pane]*fakeProcess),
		opts:  make(map[ids.Pane]terminal.Options),
	}
}

func (f *fakeSpawner) spawn(id ids.Pane, opts terminal.Options) (*terminal.Terminal, error) {
	p := newFakePTY()
	proc := newFakeProcess()
	f.mu.Lock()
	f.ptys[id] = p
	f.procs[id] = proc
	f.opts[id] = opts
	f.mu.Unlock()
	return terminal.Attach(id, p, proc, opts), nil
}

func (f *fakeSpawner) pty(id ids.Pane) *fakePTY {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ptys[id]
}

func (f *fakeSpawner) proc(id ids.Pane) *fakeProcess {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.procs[id]
}

func (f *fakeSpawner) options(id ids.Pane) terminal.Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opts[id]
}

func (f *fakeSpawner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ptys)
}

// scriptedSink is a headless sink whose event stream the test drives.
type scriptedSink struct {
	*backend.Null
	events chan backend.Event
}

func newScriptedSink(width, height float64) *scriptedSink {
	return &scriptedSink{Null: backend.NewNull(width, height), events: make(chan backend.Event, 16)}
}

func (s *scriptedSink) Events() <-chan backend.Event { return s.events }

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Window = config.WindowConfig{Columns: 80, Rows: 24}
	cfg.Font = config.FontConfig{CellWidth: 8, CellHeight: 16}
	cfg.Render.FrameBudgetMs = 2
	cfg.Control.RequestTimeout = config.Duration(2 * time.Second)
	cfg.General.WorkingDirectory = "/tmp"
	return cfg
}

type testApp struct {
	*Application
	spawner *fakeSpawner
	sink    *backend.Null
}

// newTestApp creates a session with fake panes on a 640x384 headless sink.
func newTestApp(t *testing.T, mutate ...func(*config.Config)) *testApp {
	t.Helper()
	return newTestAppWithSink(t, backend.NewNull(640, 384), mutate...)
}

func newTestAppWithSink(t *testing.T, sink backend.Sink, mutate ...func(*config.Config)) *testApp {
	t.Helper()
	cfg := testConfig()
	for _, fn := range mutate {
		fn(cfg)
	}
	fs := newFakeSpawner()
	app, err := New(Options{
		Config:    cfg,
		NoControl: true,
		Logger:    logging.Nop(),
		Version:   "test",
		Sink:      sink,
		Spawn:     fs.spawn,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(app.Shutdown)
	ta := &testApp{Application: app, spawner: fs}
	if null, ok := sink.(*backend.Null); ok {
		ta.sink = null
	}
	return ta
}

// run starts the main loop and stops it at cleanup.
func (ta *testApp) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ta.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Run did not return")
		}
	})
	waitFor(t, time.Second, ta.IsRunning)
}

// call dispatches a method and decodes its result into out when non-nil.
func (ta *testApp) call(t *testing.T, method string, params any, out any) *control.Error {
	t.Helper()
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			t.Fatalf("marshal params: %v", err)
		}
		raw = data
	}
	resp := ta.Registry().Dispatch(context.Background(), &control.Request{
		JSONRPC: control.Version,
		ID:      json.RawMessage("1"),
		Method:  method,
		Params:  raw,
	})
	if resp.Error != nil {
		return resp.Error
	}
	if out != nil {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			t.Fatalf("%s: decode result %s: %v", method, resp.Result, err)
		}
	}
	return nil
}

// mustCall is call that fails the test on an error response.
func (ta *testApp) mustCall(t *testing.T, method string, params any, out any) {
	t.Helper()
	if err := ta.call(t, method, params, out); err != nil {
		t.Fatalf("%s: %v", method, err)
	}
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
