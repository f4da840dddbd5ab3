package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/pterminal/internal/config/loader"
)

const (
	// AppName names the config directory and socket.
	AppName = "pterminal"

	// DefaultScrollback is the default scrollback depth in lines.
	DefaultScrollback = 10000

	// DefaultBlinkInterval is the default cursor blink half-period.
	DefaultBlinkInterval = 530

	// DefaultFrameBudget is the default frame interval in milliseconds.
	DefaultFrameBudget = 8

	// DefaultRequestTimeout bounds a control request waiting for the main
	// loop.
	DefaultRequestTimeout = 3 * time.Second
)

// FileNames are the config file names tried in order.
var FileNames = []string{"config.toml", "config.yaml", "config.yml"}

// Config is the complete session configuration.
type Config struct {
	General      GeneralConfig      `toml:"general" yaml:"general" json:"general"`
	Window       WindowConfig       `toml:"window" yaml:"window" json:"window"`
	Font         FontConfig         `toml:"font" yaml:"font" json:"font"`
	Scrollback   ScrollbackConfig   `toml:"scrollback" yaml:"scrollback" json:"scrollback"`
	Cursor       CursorConfig       `toml:"cursor" yaml:"cursor" json:"cursor"`
	Theme        ThemeConfig        `toml:"theme" yaml:"theme" json:"theme"`
	Notification NotificationConfig `toml:"notification" yaml:"notification" json:"notification"`
	Control      ControlConfig      `toml:"control" yaml:"control" json:"control"`
	Render       RenderConfig       `toml:"render" yaml:"render" json:"render"`
	Log          LogConfig          `toml:"log" yaml:"log" json:"log"`

	// Path is the file the config was read from, empty for defaults.
	Path string `toml:"-" yaml:"-" json:"-"`
}

// GeneralConfig configures spawned shells.
type GeneralConfig struct {
	Shell            string   `toml:"shell" yaml:"shell" json:"shell"`
	Args             []string `toml:"args" yaml:"args" json:"args,omitempty"`
	WorkingDirectory string   `toml:"working_directory" yaml:"working_directory" json:"working_directory"`
	Term             string   `toml:"term" yaml:"term" json:"term"`
	Env              []string `toml:"env" yaml:"env" json:"env,omitempty"`
}

// WindowConfig is the initial grid size of the first pane.
type WindowConfig struct {
	Columns int `toml:"columns" yaml:"columns" json:"columns"`
	Rows    int `toml:"rows" yaml:"rows" json:"rows"`
}

// FontConfig gives the cell size in pixels used to convert between pixel
// rectangles and grid sizes.
type FontConfig struct {
	CellWidth  float64 `toml:"cell_width" yaml:"cell_width" json:"cell_width"`
	CellHeight float64 `toml:"cell_height" yaml:"cell_height" json:"cell_height"`
}

// ScrollbackConfig bounds per-pane history.
type ScrollbackConfig struct {
	Lines int `toml:"lines" yaml:"lines" json:"lines"`
}

// CursorConfig configures the cursor overlay.
type CursorConfig struct {
	Style           string `toml:"style" yaml:"style" json:"style"`
	Blink           bool   `toml:"blink" yaml:"blink" json:"blink"`
	BlinkIntervalMs int    `toml:"blink_interval_ms" yaml:"blink_interval_ms" json:"blink_interval_ms"`
}

// NotificationConfig controls which terminal signals become notifications.
type NotificationConfig struct {
	Enabled    bool `toml:"enabled" yaml:"enabled" json:"enabled"`
	DetectBell bool `toml:"detect_bell" yaml:"detect_bell" json:"detect_bell"`
	DetectOSC  bool `toml:"detect_osc" yaml:"detect_osc" json:"detect_osc"`
}

// ControlConfig configures the control surface.
type ControlConfig struct {
	Socket         string   `toml:"socket" yaml:"socket" json:"socket"`
	WebSocketAddr  string   `toml:"websocket_addr" yaml:"websocket_addr" json:"websocket_addr"`
	RequestTimeout Duration `toml:"request_timeout" yaml:"request_timeout" json:"request_timeout"`
}

// RenderConfig configures frame pacing.
type RenderConfig struct {
	FrameBudgetMs int `toml:"frame_budget_ms" yaml:"frame_budget_ms" json:"frame_budget_ms"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level" yaml:"level" json:"level"`
}

// Duration is a time.Duration written as a Go duration string ("3s").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		General: GeneralConfig{
			Term: "xterm-256color",
		},
		Window: WindowConfig{Columns: 80, Rows: 24},
		Font:   FontConfig{CellWidth: 8, CellHeight: 16},
		Scrollback: ScrollbackConfig{
			Lines: DefaultScrollback,
		},
		Cursor: CursorConfig{
			Style:           "block",
			Blink:           true,
			BlinkIntervalMs: DefaultBlinkInterval,
		},
		Theme: DefaultTheme(),
		Notification: NotificationConfig{
			Enabled:    true,
			DetectBell: true,
			DetectOSC:  true,
		},
		Control: ControlConfig{
			RequestTimeout: Duration(DefaultRequestTimeout),
		},
		Render: RenderConfig{FrameBudgetMs: DefaultFrameBudget},
		Log:    LogConfig{Level: "info"},
	}
}

// Dir returns the user configuration directory for pterminal.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		home, herr := os.UserHomeDir()
		if herr != nil {
			home = "."
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, AppName)
}

// DefaultSocketPath returns the control socket path.
func DefaultSocketPath() string {
	return filepath.Join(Dir(), AppName+".sock")
}

// FindFile returns the first existing config file in dir.
func FindFile(dir string) (string, bool) {
	l := loader.New()
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if l.Exists(p) {
			return p, true
		}
	}
	return "", false
}

// Load reads the config from path, or from the first config file in Dir
// when path is empty. A missing file yields the defaults. Environment
// overrides are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		if p, ok := FindFile(Dir()); ok {
			path = p
		}
	}
	cfg, err := LoadFile(loader.New(), path)
	if err != nil {
		return nil, err
	}
	ApplyEnv(cfg, os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile decodes path over the defaults using l.
func LoadFile(l *loader.Loader, path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	found, err := l.LoadInto(path, cfg)
	if err != nil {
		return nil, err
	}
	if found {
		cfg.Path = path
	}
	return cfg, nil
}

// Validate checks value ranges and fills zero values with defaults.
func (c *Config) Validate() error {
	def := Default()
	if c.Window.Columns <= 0 {
		c.Window.Columns = def.Window.Columns
	}
	if c.Window.Rows <= 0 {
		c.Window.Rows = def.Window.Rows
	}
	if c.Font.CellWidth <= 0 {
		c.Font.CellWidth = def.Font.CellWidth
	}
	if c.Font.CellHeight <= 0 {
		c.Font.CellHeight = def.Font.CellHeight
	}
	if c.Scrollback.Lines < 0 {
		return &ValidationError{Path: "scrollback.lines", Message: "must not be negative", Value: c.Scrollback.Lines}
	}
	if c.Cursor.BlinkIntervalMs <= 0 {
		c.Cursor.BlinkIntervalMs = def.Cursor.BlinkIntervalMs
	}
	switch c.Cursor.Style {
	case "":
		c.Cursor.Style = def.Cursor.Style
	case "block", "underline", "bar":
	default:
		return &ValidationError{Path: "cursor.style", Message: "must be block, underline or bar", Value: c.Cursor.Style}
	}
	if c.Render.FrameBudgetMs <= 0 {
		c.Render.FrameBudgetMs = def.Render.FrameBudgetMs
	}
	if c.Control.RequestTimeout <= 0 {
		c.Control.RequestTimeout = def.Control.RequestTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if _, err := c.Theme.Palette(); err != nil {
		return err
	}
	return nil
}

// Shell resolves the shell to spawn: the configured one, then $SHELL, then
// /bin/sh.
func (c *Config) Shell() string {
	if c.General.Shell != "" {
		return c.General.Shell
	}
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// WorkingDirectory resolves the initial directory for new panes.
func (c *Config) WorkingDirectory() string {
	if c.General.WorkingDirectory != "" {
		return expandHome(c.General.WorkingDirectory)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// SocketPath resolves the control socket path.
func (c *Config) SocketPath() string {
	if c.Control.Socket != "" {
		return expandHome(c.Control.Socket)
	}
	return DefaultSocketPath()
}

// FrameBudget returns the frame interval.
func (c *Config) FrameBudget() time.Duration {
	return time.Duration(c.Render.FrameBudgetMs) * time.Millisecond
}

// BlinkInterval returns the cursor blink half-period.
func (c *Config) BlinkInterval() time.Duration {
	return time.Duration(c.Cursor.BlinkIntervalMs) * time.Millisecond
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return os.ExpandEnv(p)
}

// String summarizes the config source for logs.
func (c *Config) String() string {
	src := c.Path
	if src == "" {
		src = "defaults"
	}
	return fmt.Sprintf("config(%s)", src)
}
