// Package app wires the session engine together: the pane arena, the
// workspace list, the renderer, the control surface and the main loop that
// applies structural edits between frames.
package app

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/pterminal/internal/config"
	"github.com/dshills/pterminal/internal/control"
	"github.com/dshills/pterminal/internal/ids"
	"github.com/dshills/pterminal/internal/logging"
	"github.com/dshills/pterminal/internal/notification"
	"github.com/dshills/pterminal/internal/renderer"
	"github.com/dshills/pterminal/internal/renderer/backend"
	"github.com/dshills/pterminal/internal/split"
	"github.com/dshills/pterminal/internal/terminal"
	"github.com/dshills/pterminal/internal/workspace"
)

// Name is reported by system.identify.
const Name = "pterminal"

// shutdownTimeout bounds how long Run waits for panes to stop.
const shutdownTimeout = 3 * time.Second

// Application is the central coordinator for one session.
type Application struct {
	mu sync.RWMutex

	// Core infrastructure
	cfg      *config.Config
	logger   *logging.Logger
	reloader *config.Reloader

	// Session state
	alloc         ids.Allocator
	terminals     *terminal.Manager
	workspaces    *workspace.Manager
	notifications *notification.Store

	// Rendering
	renderer *renderer.Renderer
	pacer    *renderer.Pacer
	sink     backend.Sink
	bounds   split.Rect

	// layoutDirty is set by structural edits and surface resizes; the next
	// frame resizes every pane to its rectangle.
	layoutDirty atomic.Bool

	// Control surface
	registry *control.Registry
	server   *control.Server
	bridge   *control.Bridge

	metrics        *Metrics
	commands       *commandQueue
	exits          exitQueue
	requestTimeout time.Duration

	sessionID  string
	socketPath string

	// State
	running atomic.Bool
	closed  atomic.Bool

	// Options
	opts Options
}

// Options configures the application.
type Options struct {
	// ConfigPath is the configuration file. Empty searches the user config
	// directory.
	ConfigPath string

	// Config, when set, is used instead of loading ConfigPath.
	Config *config.Config

	// SocketPath overrides the control socket path.
	SocketPath string

	// WebSocketAddr overrides the loopback address of the WebSocket bridge.
	WebSocketAddr string

	// NoControl disables the unix socket and the bridge. Methods remain
	// reachable through Registry.
	NoControl bool

	// Watch enables config hot reload.
	Watch bool

	// LogLevel overrides the configured log level.
	LogLevel string

	// Logger replaces the logger built from the config.
	Logger *logging.Logger

	// Version is reported by system.identify.
	Version string

	// Sink receives frames. Defaults to a headless sink sized from the
	// window config.
	Sink backend.Sink

	// Spawn replaces the shell launcher.
	Spawn func(ids.Pane, terminal.Options) (*terminal.Terminal, error)
}

// New creates an Application and initializes every component. The first
// workspace and its pane exist when New returns.
func New(opts Options) (*Application, error) {
	app := &Application{
		opts:     opts,
		metrics:  NewMetrics(),
		commands: newCommandQueue(),
	}
	if err := newBootstrapper(app, opts).bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// Config returns the configuration in effect.
func (app *Application) Config() *config.Config {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.cfg
}

// Logger returns the application logger.
func (app *Application) Logger() *logging.Logger {
	return app.logger
}

// Registry returns the control method table.
func (app *Application) Registry() *control.Registry {
	return app.registry
}

// Workspaces returns the workspace manager.
func (app *Application) Workspaces() *workspace.Manager {
	return app.workspaces
}

// Terminals returns the pane arena.
func (app *Application) Terminals() *terminal.Manager {
	return app.terminals
}

// Notifications returns the notification store.
func (app *Application) Notifications() *notification.Store {
	return app.notifications
}

// Metrics returns the session metrics.
func (app *Application) Metrics() *Metrics {
	return app.metrics
}

// SessionID returns the unique id of this session instance.
func (app *Application) SessionID() string {
	return app.sessionID
}

// SocketPath returns the control socket path, empty when disabled.
func (app *Application) SocketPath() string {
	return app.socketPath
}

// BridgeAddr returns the WebSocket bridge address, empty when disabled.
func (app *Application) BridgeAddr() string {
	if app.bridge == nil {
		return ""
	}
	return app.bridge.Addr()
}

// IsRunning reports whether Run is active.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// Bounds returns the surface rectangle panes are laid out in.
func (app *Application) Bounds() split.Rect {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.bounds
}

func (app *Application) setBounds(width, height float64) {
	app.mu.Lock()
	app.bounds = split.Rect{Width: width, Height: height}
	app.mu.Unlock()
}

func newSessionID() string {
	return uuid.NewString()
}
