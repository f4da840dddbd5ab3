package terminal

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/pterminal/internal/ids"
	"github.com/dshills/pterminal/internal/logging"
)

// Event types published by the manager.
const (
	EventTypeCreated    = "terminal.created"
	EventTypeExited     = "terminal.exited"
	EventTypeTitle      = "terminal.title"
	EventTypeWorkingDir = "terminal.cwd"
	EventTypeBell       = "terminal.bell"
	EventTypeNotify     = "terminal.notify"
)

// EventPublisher publishes terminal events.
type EventPublisher interface {
	Publish(eventType string, data map[string]any)
}

// Manager is the arena of live terminals keyed by pane id. Terminals never
// share state, so operations on one pane never wait on another.
type Manager struct {
	mu        sync.RWMutex
	terminals map[ids.Pane]*Terminal

	// Configuration
	defaultShell string
	defaultArgs  []string
	defaultEnv   []string
	defaultCols  int
	defaultRows  int
	scrollback   atomic.Int64

	eventBus EventPublisher
	logger   *logging.Logger

	spawn func(ids.Pane, Options) (*Terminal, error)

	closed atomic.Bool
}

// ManagerConfig configures a terminal manager.
type ManagerConfig struct {
	// DefaultShell is the default shell (defaults to $SHELL).
	DefaultShell string

	// DefaultArgs are passed to the default shell.
	DefaultArgs []string

	// Env is added to every child's environment.
	Env []string

	// DefaultCols is the default terminal width.
	DefaultCols int

	// DefaultRows is the default terminal height.
	DefaultRows int

	// Scrollback is the default scrollback lines.
	Scrollback int

	// EventBus for publishing terminal events.
	EventBus EventPublisher

	// Logger is the parent logger for terminals.
	Logger *logging.Logger

	// Spawn starts a terminal. Defaults to Spawn.
	Spawn func(ids.Pane, Options) (*Terminal, error)
}

// NewManager creates a new terminal manager.
func NewManager(cfg ManagerConfig) *Manager {
	opts := Options{
		Shell:      cfg.DefaultShell,
		Cols:       cfg.DefaultCols,
		Rows:       cfg.DefaultRows,
		Scrollback: cfg.Scrollback,
	}
	opts.applyDefaults()

	m := &Manager{
		terminals:    make(map[ids.Pane]*Terminal),
		defaultShell: opts.Shell,
		defaultArgs:  cfg.DefaultArgs,
		defaultEnv:   cfg.Env,
		defaultCols:  opts.Cols,
		defaultRows:  opts.Rows,
		eventBus:     cfg.EventBus,
		logger:       logging.OrNop(cfg.Logger).WithComponent("terminal"),
		spawn:        Spawn,
	}
	if cfg.Spawn != nil {
		m.spawn = cfg.Spawn
	}
	m.scrollback.Store(int64(opts.Scrollback))
	return m
}

// SetScrollback changes the scrollback used for terminals created later.
func (m *Manager) SetScrollback(lines int) {
	if lines > 0 {
		m.scrollback.Store(int64(lines))
	}
}

// Create starts a terminal for pane id.
func (m *Manager) Create(id ids.Pane, opts Options) (*Terminal, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}

	m.mu.RLock()
	_, exists := m.terminals[id]
	m.mu.RUnlock()
	if exists {
		return nil, ErrTerminalExists
	}

	// Apply defaults
	if opts.Shell == "" {
		opts.Shell = m.defaultShell
		if opts.Args == nil {
			opts.Args = m.defaultArgs
		}
	}
	if opts.Cols <= 0 {
		opts.Cols = m.defaultCols
	}
	if opts.Rows <= 0 {
		opts.Rows = m.defaultRows
	}
	if opts.Scrollback <= 0 {
		opts.Scrollback = int(m.scrollback.Load())
	}
	opts.Env = append(append([]string(nil), m.defaultEnv...), opts.Env...)
	if opts.Logger == nil {
		opts.Logger = m.logger
	}

	userEvent := opts.OnEvent
	opts.OnEvent = func(pane ids.Pane, ev Event) {
		m.publishTerminalEvent(pane, ev)
		if userEvent != nil {
			userEvent(pane, ev)
		}
	}
	userExit := opts.OnExit
	opts.OnExit = func(pane ids.Pane, code int) {
		m.mu.Lock()
		delete(m.terminals, pane)
		m.mu.Unlock()

		m.publishEvent(EventTypeExited, map[string]any{
			"pane_id":   pane,
			"exit_code": code,
		})
		if userExit != nil {
			userExit(pane, code)
		}
	}

	term, err := m.spawn(id, opts)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if !term.Exited() {
		m.terminals[id] = term
	}
	m.mu.Unlock()

	m.logger.Info("terminal started", "pane", id.String(), "pid", term.PID())
	m.publishEvent(EventTypeCreated, map[string]any{
		"pane_id": id,
		"pid":     term.PID(),
	})
	return term, nil
}

func (m *Manager) publishTerminalEvent(pane ids.Pane, ev Event) {
	switch ev.Kind {
	case EventTitle:
		m.publishEvent(EventTypeTitle, map[string]any{"pane_id": pane, "title": ev.Title})
	case EventWorkingDir:
		m.publishEvent(EventTypeWorkingDir, map[string]any{"pane_id": pane, "cwd": ev.Body})
	case EventBell:
		m.publishEvent(EventTypeBell, map[string]any{"pane_id": pane})
	case EventNotify:
		m.publishEvent(EventTypeNotify, map[string]any{"pane_id": pane, "title": ev.Title, "body": ev.Body})
	}
}

// Get returns a terminal by pane id.
func (m *Manager) Get(id ids.Pane) (*Terminal, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	term, ok := m.terminals[id]
	return term, ok
}

// List returns all terminals ordered by pane id.
func (m *Manager) List() []*Terminal {
	m.mu.RLock()
	result := make([]*Terminal, 0, len(m.terminals))
	for _, term := range m.terminals {
		result = append(result, term)
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].id < result[j].id })
	return result
}

// Count returns the number of terminals.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.terminals)
}

// Close closes a terminal by pane id.
func (m *Manager) Close(id ids.Pane) error {
	term, ok := m.Get(id)
	if !ok {
		return ErrTerminalNotFound
	}
	return term.Close()
}

// CloseAsync starts closing a terminal without waiting for it to stop.
func (m *Manager) CloseAsync(id ids.Pane) {
	term, ok := m.Get(id)
	if !ok {
		return
	}
	go func() {
		if err := term.Close(); err != nil {
			m.logger.Warn("close terminal", "pane", id.String(), "err", err)
		}
	}()
}

// Shutdown closes every terminal, waiting up to timeout.
func (m *Manager) Shutdown(timeout time.Duration) {
	if m.closed.Swap(true) {
		return
	}

	terminals := m.List()
	if len(terminals) == 0 {
		return
	}

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for _, term := range terminals {
			wg.Add(1)
			go func(t *Terminal) {
				defer wg.Done()
				_ = t.Close()
			}(term)
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		m.logger.Warn("terminals did not stop in time", "timeout", timeout)
	}
}

// publishEvent publishes an event if an event bus is configured.
func (m *Manager) publishEvent(eventType string, data map[string]any) {
	if m.eventBus != nil {
		if data == nil {
			data = make(map[string]any)
		}
		data["timestamp"] = time.Now().UnixMilli()
		m.eventBus.Publish(eventType, data)
	}
}
