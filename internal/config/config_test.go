package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dshills/pterminal/internal/config/loader"
	"github.com/dshills/pterminal/internal/config/watcher"
	"github.com/dshills/pterminal/internal/logging"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Scrollback.Lines != 10000 {
		t.Errorf("expected scrollback 10000, got %d", cfg.Scrollback.Lines)
	}
	if cfg.Cursor.BlinkIntervalMs != 530 {
		t.Errorf("expected blink 530ms, got %d", cfg.Cursor.BlinkIntervalMs)
	}
	if cfg.FrameBudget() != 8*time.Millisecond {
		t.Errorf("expected 8ms frame budget, got %v", cfg.FrameBudget())
	}
	if cfg.Control.RequestTimeout.Std() != 3*time.Second {
		t.Errorf("expected 3s timeout, got %v", cfg.Control.RequestTimeout.Std())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoadFileTOML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.toml", `
[general]
shell = "/bin/zsh"
env = ["FOO=bar"]

[scrollback]
lines = 500

[cursor]
style = "bar"
blink = false

[control]
request_timeout = "750ms"

[theme]
background = "#101010"
`)
	cfg, err := LoadFile(loader.New(), path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.General.Shell != "/bin/zsh" || cfg.Shell() != "/bin/zsh" {
		t.Errorf("expected /bin/zsh, got %q", cfg.General.Shell)
	}
	if len(cfg.General.Env) != 1 || cfg.General.Env[0] != "FOO=bar" {
		t.Errorf("expected env FOO=bar, got %v", cfg.General.Env)
	}
	if cfg.Scrollback.Lines != 500 {
		t.Errorf("expected 500, got %d", cfg.Scrollback.Lines)
	}
	if cfg.Cursor.Style != "bar" || cfg.Cursor.Blink {
		t.Errorf("unexpected cursor %+v", cfg.Cursor)
	}
	if cfg.Cursor.BlinkIntervalMs != 530 {
		t.Errorf("expected unset keys to keep defaults, got %d", cfg.Cursor.BlinkIntervalMs)
	}
	if cfg.Control.RequestTimeout.Std() != 750*time.Millisecond {
		t.Errorf("expected 750ms, got %v", cfg.Control.RequestTimeout.Std())
	}
	if cfg.Path != path {
		t.Errorf("expected path %q, got %q", path, cfg.Path)
	}

	p, err := cfg.Theme.Palette()
	if err != nil {
		t.Fatal(err)
	}
	if r, g, b := p.Background.RGB255(); r != 0x10 || g != 0x10 || b != 0x10 {
		t.Errorf("expected #101010, got %d,%d,%d", r, g, b)
	}
	if p.Foreground.Hex() != "#eff0ea" {
		t.Errorf("expected default foreground, got %s", p.Foreground.Hex())
	}
}

func TestLoadFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
window:
  columns: 120
  rows: 40
notification:
  enabled: true
  detect_bell: false
log:
  level: debug
`)
	cfg, err := LoadFile(loader.New(), path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Window.Columns != 120 || cfg.Window.Rows != 40 {
		t.Errorf("expected 120x40, got %dx%d", cfg.Window.Columns, cfg.Window.Rows)
	}
	if cfg.Notification.DetectBell {
		t.Error("expected detect_bell false")
	}
	if !cfg.Notification.DetectOSC {
		t.Error("expected detect_osc to keep default true")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected debug, got %q", cfg.Log.Level)
	}
}

func TestLoadFileMissing(t *testing.T) {
	cfg, err := LoadFile(loader.New(), filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("expected missing file to yield defaults, got %v", err)
	}
	if cfg.Path != "" {
		t.Errorf("expected empty path, got %q", cfg.Path)
	}
}

func TestLoadFileParseError(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		line    int
	}{
		{"config.toml", "[general]\nshell = \n", 2},
		{"config.yml", "window:\n  columns: [\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.name, tt.content)
			_, err := LoadFile(loader.New(), path)
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if pe.Path != path {
				t.Errorf("expected path %q, got %q", path, pe.Path)
			}
			if tt.line > 0 && pe.Line != tt.line {
				t.Errorf("expected line %d, got %d", tt.line, pe.Line)
			}
		})
	}
}

func TestLoadFileUnknownKey(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.toml", "[general]\nshel = \"/bin/sh\"\n")
	_, err := LoadFile(loader.New(), path)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError for unknown key, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"negative scrollback", func(c *Config) { c.Scrollback.Lines = -1 }, ErrValidationFailed},
		{"bad cursor style", func(c *Config) { c.Cursor.Style = "triangle" }, ErrValidationFailed},
		{"bad color", func(c *Config) { c.Theme.Cursor = "blue" }, ErrInvalidColor},
		{"too many ansi", func(c *Config) { c.Theme.ANSI = make([]string, 17) }, ErrValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	cfg := Default()
	cfg.Window.Columns = 0
	cfg.Render.FrameBudgetMs = -3
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Window.Columns != 80 || cfg.Render.FrameBudgetMs != 8 {
		t.Errorf("expected zero values to be defaulted, got %d cols, %dms", cfg.Window.Columns, cfg.Render.FrameBudgetMs)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvShell:      "/usr/bin/fish",
		EnvSocket:     "/tmp/p.sock",
		EnvLogLevel:   "WARN",
		EnvScrollback: "42",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	cfg := Default()
	ApplyEnv(cfg, lookup)

	if cfg.General.Shell != "/usr/bin/fish" {
		t.Errorf("expected fish, got %q", cfg.General.Shell)
	}
	if cfg.SocketPath() != "/tmp/p.sock" {
		t.Errorf("expected /tmp/p.sock, got %q", cfg.SocketPath())
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected warn, got %q", cfg.Log.Level)
	}
	if cfg.Scrollback.Lines != 42 {
		t.Errorf("expected 42, got %d", cfg.Scrollback.Lines)
	}

	env[EnvScrollback] = "lots"
	cfg = Default()
	ApplyEnv(cfg, lookup)
	if cfg.Scrollback.Lines != DefaultScrollback {
		t.Errorf("expected bad number to be ignored, got %d", cfg.Scrollback.Lines)
	}
}

func TestFindFile(t *testing.T) {
	dir := t.TempDir()
	if _, ok := FindFile(dir); ok {
		t.Error("expected no file in empty dir")
	}
	want := writeFile(t, dir, "config.yaml", "log:\n  level: info\n")
	got, ok := FindFile(dir)
	if !ok || got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestPaletteIndexed(t *testing.T) {
	p, err := DefaultTheme().Palette()
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		index   uint8
		r, g, b uint8
	}{
		{1, 0xff, 0x5b, 0x56},
		{16, 0, 0, 0},
		{21, 0, 0, 255},
		{196, 255, 0, 0},
		{232, 8, 8, 8},
		{255, 238, 238, 238},
	}
	for _, tt := range tests {
		r, g, b := p.Indexed(tt.index).RGB255()
		if r != tt.r || g != tt.g || b != tt.b {
			t.Errorf("index %d: expected %d,%d,%d, got %d,%d,%d", tt.index, tt.r, tt.g, tt.b, r, g, b)
		}
	}

	rgba := RGBA(p.ANSI[0])
	if rgba != [4]float32{0, 0, 0, 1} {
		t.Errorf("expected opaque black, got %v", rgba)
	}
}

func TestReloaderKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.toml", "[scrollback]\nlines = 100\n")
	cfg, err := LoadFile(loader.New(), path)
	if err != nil {
		t.Fatal(err)
	}

	r, err := NewReloader(path, cfg, logging.Nop(), watcher.WithDebounce(time.Hour))
	if err != nil {
		t.Skipf("file watching unavailable: %v", err)
	}
	defer r.Close()

	var mu sync.Mutex
	var reloaded []*Config
	var failures []error
	r.OnReload(func(c *Config) {
		mu.Lock()
		reloaded = append(reloaded, c)
		mu.Unlock()
	})
	r.OnError(func(err error) {
		mu.Lock()
		failures = append(failures, err)
		mu.Unlock()
	})

	writeFile(t, dir, "config.toml", "[scrollback]\nlines = 200\n")
	if err := r.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if r.Current().Scrollback.Lines != 200 {
		t.Errorf("expected 200, got %d", r.Current().Scrollback.Lines)
	}

	writeFile(t, dir, "config.toml", "[scrollback\n")
	if err := r.Reload(); err == nil {
		t.Error("expected reload error")
	}
	if r.Current().Scrollback.Lines != 200 {
		t.Errorf("expected previous config to stay, got %d", r.Current().Scrollback.Lines)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(failures) == 0 {
		t.Error("expected error callback")
	}
	if len(reloaded) == 0 {
		t.Error("expected reload callback")
	}
}
