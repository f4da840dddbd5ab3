package app

import (
	"fmt"
	"math"

	"github.com/dshills/pterminal/internal/config"
	"github.com/dshills/pterminal/internal/control"
	"github.com/dshills/pterminal/internal/logging"
	"github.com/dshills/pterminal/internal/notification"
	"github.com/dshills/pterminal/internal/renderer"
	"github.com/dshills/pterminal/internal/renderer/backend"
	"github.com/dshills/pterminal/internal/split"
	"github.com/dshills/pterminal/internal/terminal"
	"github.com/dshills/pterminal/internal/workspace"
)

// bootstrapper handles component initialization with proper cleanup on failure.
type bootstrapper struct {
	app       *Application
	opts      Options
	initOrder []string
}

// newBootstrapper creates a new bootstrapper for the application.
func newBootstrapper(app *Application, opts Options) *bootstrapper {
	return &bootstrapper{
		app:       app,
		opts:      opts,
		initOrder: make([]string, 0, 8),
	}
}

// bootstrap initializes all components in dependency order.
// On failure, it cleans up already-initialized components.
func (b *bootstrapper) bootstrap() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"config", b.initConfig},
		{"logger", b.initLogger},
		{"renderer", b.initRenderer},
		{"control", b.initControl},
		{"terminals", b.initTerminals},
		{"workspaces", b.initWorkspaces},
		{"bridge", b.initBridge},
		{"reloader", b.initReloader},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			b.cleanup()
			return fmt.Errorf("%w: %w", ErrInitialization, err)
		}
		b.initOrder = append(b.initOrder, step.name)
	}
	b.app.logger.Info("session ready",
		"session", b.app.sessionID,
		"socket", b.app.socketPath,
		"workspace", b.app.workspaces.Active().ID.String(),
	)
	return nil
}

// initConfig loads the configuration. A malformed file is fatal; a missing
// one yields the defaults.
func (b *bootstrapper) initConfig() error {
	cfg := b.opts.Config
	if cfg == nil {
		loaded, err := config.Load(b.opts.ConfigPath)
		if err != nil {
			return NewComponentError("config", "load", err)
		}
		cfg = loaded
	}
	if b.opts.LogLevel != "" {
		cfg.Log.Level = b.opts.LogLevel
	}
	b.app.cfg = cfg
	b.app.requestTimeout = cfg.Control.RequestTimeout.Std()
	b.app.sessionID = newSessionID()
	return nil
}

func (b *bootstrapper) initLogger() error {
	if b.opts.Logger != nil {
		b.app.logger = b.opts.Logger.WithComponent("app")
		return nil
	}
	level, ok := logging.ParseLevel(b.app.cfg.Log.Level)
	lc := logging.DefaultConfig()
	lc.Level = level
	b.app.logger = logging.New(lc).WithComponent("app")
	if !ok {
		b.app.logger.Warn("unknown log level; using info", "level", b.app.cfg.Log.Level)
	}
	return nil
}

// initRenderer creates the renderer, the pacer and the sink. The surface
// defaults to the configured window size in cells.
func (b *bootstrapper) initRenderer() error {
	cfg := b.app.cfg
	b.app.renderer = renderer.New(renderer.OptionsFromConfig(cfg), b.app.logger)
	b.app.pacer = renderer.NewPacer(cfg.FrameBudget())

	sink := b.opts.Sink
	if sink == nil {
		sink = backend.NewNull(
			float64(cfg.Window.Columns)*cfg.Font.CellWidth,
			float64(cfg.Window.Rows)*cfg.Font.CellHeight,
		)
	}
	b.app.sink = sink
	w, h := sink.Size()
	b.app.setBounds(w, h)
	b.app.notifications = notification.NewStore(notification.DefaultCapacity)
	return nil
}

// initControl builds the method table and binds the unix socket. The
// socket path is needed before any pane is spawned since children inherit
// it.
func (b *bootstrapper) initControl() error {
	b.app.registry = control.NewRegistry()
	b.app.registry.RegisterSystem()
	if err := b.app.registerMethods(); err != nil {
		return NewComponentError("control", "register methods", err)
	}
	if b.opts.NoControl {
		return nil
	}

	path := b.opts.SocketPath
	if path == "" {
		path = b.app.cfg.SocketPath()
	}
	server := control.NewServer(b.app.registry, b.app.logger)
	if err := server.Listen(path); err != nil {
		return NewComponentError("control", "listen", err)
	}
	b.app.server = server
	b.app.socketPath = path
	return nil
}

func (b *bootstrapper) initTerminals() error {
	cfg := b.app.cfg
	env := append([]string(nil), cfg.General.Env...)
	if b.app.socketPath != "" {
		env = append(env, config.EnvSocket+"="+b.app.socketPath)
	}
	b.app.terminals = terminal.NewManager(terminal.ManagerConfig{
		DefaultShell: cfg.Shell(),
		DefaultArgs:  cfg.General.Args,
		Env:          env,
		DefaultCols:  cfg.Window.Columns,
		DefaultRows:  cfg.Window.Rows,
		Scrollback:   cfg.Scrollback.Lines,
		EventBus:     &eventPublisher{app: b.app},
		Logger:       b.app.logger,
		Spawn:        b.opts.Spawn,
	})
	return nil
}

// initWorkspaces creates the first workspace and spawns its pane sized to
// the whole surface.
func (b *bootstrapper) initWorkspaces() error {
	wsID := b.app.alloc.NextWorkspace()
	pane := b.app.alloc.NextPane()
	b.app.workspaces = workspace.NewManager(wsID, pane)
	b.app.workspaces.OnChange(b.app.handleWorkspaceChange)

	cols, rows := b.app.gridSize(b.app.Bounds())
	if _, err := b.app.spawnPane(pane, cols, rows); err != nil {
		return NewComponentError("terminals", "spawn first pane", err)
	}
	return nil
}

func (b *bootstrapper) initBridge() error {
	addr := b.opts.WebSocketAddr
	if addr == "" {
		addr = b.app.cfg.Control.WebSocketAddr
	}
	if addr == "" || b.app.server == nil {
		return nil
	}
	bridge := control.NewBridge(b.app.server, b.app.logger)
	if err := bridge.Listen(addr); err != nil {
		return NewComponentError("bridge", "listen", err)
	}
	b.app.bridge = bridge
	return nil
}

// initReloader starts config hot reload. Failing to watch is not fatal.
func (b *bootstrapper) initReloader() error {
	path := b.app.cfg.Path
	if !b.opts.Watch || path == "" {
		return nil
	}
	r, err := config.NewReloader(path, b.app.cfg, b.app.logger)
	if err != nil {
		b.app.logger.Warn("config hot reload disabled", "path", path, "err", err)
		return nil
	}
	r.OnReload(func(cfg *config.Config) {
		b.app.post("config.reload", func() { b.app.applyConfig(cfg) })
	})
	b.app.reloader = r
	return nil
}

// cleanup performs cleanup in reverse initialization order.
// Called when bootstrap fails partway through.
func (b *bootstrapper) cleanup() {
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		b.cleanupComponent(b.initOrder[i])
	}
}

// cleanupComponent cleans up a single component.
func (b *bootstrapper) cleanupComponent(component string) {
	switch component {
	case "reloader":
		if b.app.reloader != nil {
			_ = b.app.reloader.Close()
			b.app.reloader = nil
		}
	case "bridge":
		if b.app.bridge != nil {
			_ = b.app.bridge.Close()
			b.app.bridge = nil
		}
	case "workspaces", "terminals":
		if b.app.terminals != nil {
			b.app.terminals.Shutdown(shutdownTimeout)
		}
	case "control":
		if b.app.server != nil {
			_ = b.app.server.Close()
			b.app.server = nil
		}
	case "renderer":
		if b.app.sink != nil && b.opts.Sink == nil {
			_ = b.app.sink.Close()
		}
	}
}

// gridSize converts a pixel rectangle to whole cells, at least 1x1.
func (app *Application) gridSize(r split.Rect) (cols, rows int) {
	cw, ch := app.renderer.CellSize()
	cols = int(math.Floor(r.Width / float64(cw)))
	rows = int(math.Floor(r.Height / float64(ch)))
	return max(cols, 1), max(rows, 1)
}
