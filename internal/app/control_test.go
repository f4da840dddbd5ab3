package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/pterminal/internal/config"
	"github.com/dshills/pterminal/internal/control"
	"github.com/dshills/pterminal/internal/logging"
	"github.com/dshills/pterminal/internal/renderer/backend"
)

// shortTempDir keeps socket paths under the unix socket length limit.
func shortTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "pt")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func newSocketApp(t *testing.T) (*testApp, string) {
	t.Helper()
	sock := filepath.Join(shortTempDir(t), "s.sock")
	fs := newFakeSpawner()
	sink := backend.NewNull(640, 384)
	app, err := New(Options{
		Config:     testConfig(),
		SocketPath: sock,
		Logger:     logging.Nop(),
		Version:    "test",
		Sink:       sink,
		Spawn:      fs.spawn,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(app.Shutdown)
	ta := &testApp{Application: app, spawner: fs, sink: sink}
	ta.run(t)
	return ta, sock
}

func TestControlSocketEndToEnd(t *testing.T) {
	ta, sock := newSocketApp(t)

	if ta.SocketPath() != sock {
		t.Errorf("expected socket %s, got %s", sock, ta.SocketPath())
	}
	var found bool
	for _, kv := range ta.spawner.options(0).Env {
		if kv == config.EnvSocket+"="+sock {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s=%s in pane environment", config.EnvSocket, sock)
	}

	client, err := control.Dial(sock, control.WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	var pong map[string]bool
	if err := client.Call(ctx, "ping", nil, &pong); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if !pong["pong"] {
		t.Errorf("expected pong, got %v", pong)
	}

	var ident identifyResult
	if err := client.Call(ctx, "system.identify", nil, &ident); err != nil {
		t.Fatalf("identify: %v", err)
	}
	if ident.Socket != sock {
		t.Errorf("expected socket %s in identify, got %s", sock, ident.Socket)
	}

	var res splitResult
	if err := client.Call(ctx, "pane.split", map[string]any{"direction": "v"}, &res); err != nil {
		t.Fatalf("split: %v", err)
	}
	if err := client.Call(ctx, "send", map[string]any{"pane_id": res.NewPaneID, "text": "pwd\r"}, nil); err != nil {
		t.Fatalf("send: %v", err)
	}
	pty := ta.spawner.pty(res.NewPaneID)
	if !waitFor(t, time.Second, func() bool { return pty.written() == "pwd\r" }) {
		t.Errorf("expected pwd written, got %q", pty.written())
	}

	err = client.Call(ctx, "pane.close", map[string]any{"pane_id": "p77"}, nil)
	var rpcErr *control.Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != control.CodeNotFound {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestControlSocketConcurrentClients(t *testing.T) {
	ta, sock := newSocketApp(t)

	const clients = 4
	var wg sync.WaitGroup
	errs := make(chan error, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := control.Dial(sock, control.WithTimeout(2*time.Second))
			if err != nil {
				errs <- err
				return
			}
			defer c.Close()
			if err := c.Call(context.Background(), "pane.split", map[string]any{"direction": "h", "pane_id": "p0"}, nil); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("client: %v", err)
	}

	if n := ta.Workspaces().Active().Tree.Len(); n != clients+1 {
		t.Errorf("expected %d panes, got %d", clients+1, n)
	}
	seen := make(map[string]bool)
	for _, p := range ta.Workspaces().Panes() {
		if seen[p.String()] {
			t.Errorf("duplicate pane %s", p)
		}
		seen[p.String()] = true
	}
}

func TestSocketRemovedOnShutdown(t *testing.T) {
	sock := filepath.Join(shortTempDir(t), "s.sock")
	fs := newFakeSpawner()
	app, err := New(Options{
		Config:     testConfig(),
		SocketPath: sock,
		Logger:     logging.Nop(),
		Sink:       backend.NewNull(640, 384),
		Spawn:      fs.spawn,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := os.Stat(sock); err != nil {
		t.Fatalf("expected socket bound: %v", err)
	}

	app.Shutdown()
	if _, err := os.Stat(sock); !os.IsNotExist(err) {
		t.Errorf("expected socket removed, got %v", err)
	}
}

func TestConfigReloadAppliesBudget(t *testing.T) {
	dir := shortTempDir(t)
	path := filepath.Join(dir, "config.toml")
	write := func(budget string) {
		body := strings.Join([]string{
			"[render]",
			"frame_budget_ms = " + budget,
			"[control]",
			`request_timeout = "2s"`,
		}, "\n")
		if err := os.WriteFile(path, []byte(body+"\n"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	write("10")

	fs := newFakeSpawner()
	app, err := New(Options{
		ConfigPath: path,
		NoControl:  true,
		Watch:      true,
		Logger:     logging.Nop(),
		Sink:       backend.NewNull(640, 384),
		Spawn:      fs.spawn,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(app.Shutdown)
	ta := &testApp{Application: app, spawner: fs}
	ta.run(t)

	if ta.pacer.Budget() != 10*time.Millisecond {
		t.Fatalf("expected 10ms budget, got %v", ta.pacer.Budget())
	}
	if ta.reloader == nil {
		t.Skip("config watcher unavailable")
	}

	write("25")
	if err := ta.reloader.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return ta.pacer.Budget() == 25*time.Millisecond }) {
		t.Errorf("expected 25ms budget after reload, got %v", ta.pacer.Budget())
	}
}

func TestMalformedConfigIsFatal(t *testing.T) {
	path := filepath.Join(shortTempDir(t), "config.toml")
	if err := os.WriteFile(path, []byte("[render\nframe_budget_ms = \n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := New(Options{
		ConfigPath: path,
		NoControl:  true,
		Logger:     logging.Nop(),
		Sink:       backend.NewNull(640, 384),
		Spawn:      newFakeSpawner().spawn,
	})
	if err == nil {
		t.Fatal("expected error for malformed config")
	}
	var cerr *ComponentError
	if !errors.As(err, &cerr) || cerr.Component != "config" {
		t.Errorf("expected config component error, got %v", err)
	}
}
