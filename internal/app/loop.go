package app

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/pterminal/internal/config"
	"github.com/dshills/pterminal/internal/logging"
	"github.com/dshills/pterminal/internal/renderer"
	"github.com/dshills/pterminal/internal/renderer/backend"
)

// Run starts the control surface and the main loop. It blocks until ctx is
// done or the surface asks to quit, then shuts everything down.
func (app *Application) Run(ctx context.Context) error {
	if app.closed.Load() {
		return ErrNotRunning
	}
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	g, ctx := errgroup.WithContext(ctx)
	if app.server != nil {
		g.Go(func() error {
			if err := app.server.Serve(ctx); err != nil {
				return NewComponentError("control", "serve", err)
			}
			return nil
		})
	}
	if app.bridge != nil {
		g.Go(func() error {
			if err := app.bridge.Serve(ctx); err != nil {
				return NewComponentError("bridge", "serve", err)
			}
			return nil
		})
	}
	g.Go(func() error { return app.loop(ctx) })

	err := g.Wait()
	app.shutdown()
	if errors.Is(err, ErrQuit) {
		return nil
	}
	return err
}

// loop is the main application loop. Commands and surface events are
// handled as they arrive; a frame is produced each time the pacer's idle
// interval runs out.
func (app *Application) loop(ctx context.Context) error {
	app.layoutDirty.Store(true)
	timer := time.NewTimer(0)
	defer timer.Stop()

	events := app.sink.Events()
	exited := app.exits.signal()
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				return ErrQuit
			}
			if err := app.handleSinkEvent(ev); err != nil {
				return err
			}

		case cmd := <-app.commands.ch:
			cmd.execute(app.metrics)

		case <-exited:
			app.drainExits()

		case <-timer.C:
			start := time.Now()
			app.frame(start)
			elapsed := time.Since(start)
			if elapsed >= app.pacer.Budget() {
				app.metrics.RecordDroppedFrame()
			}
			timer.Reset(app.pacer.Next(elapsed))
		}
	}
}

// frame applies queued edits, then renders the active workspace.
func (app *Application) frame(now time.Time) {
	app.drainCommands()
	app.drainExits()
	if app.layoutDirty.Swap(false) {
		app.relayout()
	}

	frame := app.renderer.Render(app.scene(), now)
	if err := app.sink.Submit(frame); err != nil && !errors.Is(err, backend.ErrSinkClosed) {
		app.logger.Warn("submit frame", "frame", frame.Number, "err", err)
	}
	st := frame.Stats
	app.metrics.RecordFrame(time.Since(now), st.Glyphs, st.Rects, st.Reused, st.Rebuilt)
}

// scene lays out the active workspace.
func (app *Application) scene() renderer.Scene {
	ws := app.workspaces.Active()
	bounds := app.Bounds()
	placements := ws.Tree.Layout(bounds)
	scene := renderer.Scene{
		Bounds:   bounds,
		Views:    make([]renderer.View, 0, len(placements)),
		Dividers: ws.Tree.Dividers(bounds),
	}
	for _, p := range placements {
		v := renderer.View{Pane: p.Pane, Rect: p.Rect, Focused: p.Pane == ws.Active}
		if term, ok := app.terminals.Get(p.Pane); ok {
			v.Source = term.Grid()
		}
		scene.Views = append(scene.Views, v)
	}
	return scene
}

// handleSinkEvent processes a surface event.
// Returns ErrQuit if the application should exit.
func (app *Application) handleSinkEvent(ev backend.Event) error {
	switch ev.Type {
	case backend.EventQuit:
		app.logger.Info("quit requested by surface")
		return ErrQuit
	case backend.EventResize:
		app.setBounds(ev.Width, ev.Height)
		app.layoutDirty.Store(true)
	case backend.EventKey:
		app.handleKey(ev.Key)
	}
	return nil
}

// handleKey forwards a key to the focused pane.
func (app *Application) handleKey(key string) {
	pane := app.workspaces.ActivePane()
	term, ok := app.terminals.Get(pane)
	if !ok {
		return
	}
	if _, err := term.SendKeys([]string{key}); err != nil {
		app.logger.Debug("key dropped", "pane", pane.String(), "key", key, "err", err)
		return
	}
	app.metrics.RecordInput()
	app.renderer.ResetBlink(time.Now())
}

// applyConfig applies a reloaded config. Shell and window settings only
// affect panes created later.
func (app *Application) applyConfig(cfg *config.Config) {
	app.mu.Lock()
	app.cfg = cfg
	app.requestTimeout = cfg.Control.RequestTimeout.Std()
	app.mu.Unlock()

	if level, ok := logging.ParseLevel(cfg.Log.Level); ok {
		app.logger.SetLevel(level)
	}
	if palette, err := cfg.Theme.Palette(); err == nil {
		app.renderer.SetPalette(palette)
	} else {
		app.logger.Warn("theme not applied", "err", err)
	}
	app.renderer.SetBlink(cfg.Cursor.Blink, cfg.BlinkInterval())
	app.pacer.SetBudget(cfg.FrameBudget())
	app.terminals.SetScrollback(cfg.Scrollback.Lines)
	app.logger.Info("config applied", "path", cfg.Path)
}

// Shutdown stops a session that was created but never run, or whose Run
// has returned.
func (app *Application) Shutdown() {
	if app.running.Load() {
		return
	}
	app.shutdown()
}

// shutdown performs cleanup in reverse initialization order.
func (app *Application) shutdown() {
	if app.closed.Swap(true) {
		return
	}
	app.commands.stop()

	var errs ErrorList
	if app.reloader != nil {
		errs.Add(wrapComponent("config", "close watcher", app.reloader.Close()))
	}
	if app.bridge != nil {
		errs.Add(wrapComponent("bridge", "close", app.bridge.Close()))
	}
	if app.server != nil {
		errs.Add(wrapComponent("control", "close", app.server.Close()))
	}
	app.terminals.Shutdown(shutdownTimeout)
	if err := app.sink.Close(); err != nil && !errors.Is(err, backend.ErrSinkClosed) {
		errs.Add(NewComponentError("sink", "close", err))
	}
	for _, err := range errs.Errors() {
		app.logger.Warn("shutdown", "err", err)
	}
	app.logger.Info("session stopped", "session", app.sessionID)
}
