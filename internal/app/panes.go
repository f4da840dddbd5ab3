package app

import (
	"errors"
	"time"

	"github.com/dshills/pterminal/internal/ids"
	"github.com/dshills/pterminal/internal/split"
	"github.com/dshills/pterminal/internal/terminal"
	"github.com/dshills/pterminal/internal/workspace"
)

// spawnPane starts the terminal for pane.
func (app *Application) spawnPane(pane ids.Pane, cols, rows int) (*terminal.Terminal, error) {
	cfg := app.Config()
	term, err := app.terminals.Create(pane, terminal.Options{
		WorkDir: cfg.WorkingDirectory(),
		Cols:    cols,
		Rows:    rows,
		OnExit:  app.handlePaneExit,
	})
	if err != nil {
		return nil, NewOperationError("spawn", pane.String(), err).WithDetail(cfg.Shell())
	}
	return term, nil
}

// liveTerminal returns the running terminal for pane.
func (app *Application) liveTerminal(pane ids.Pane) (*terminal.Terminal, error) {
	term, ok := app.terminals.Get(pane)
	if !ok {
		if _, inTree := app.workspaces.FindPane(pane); inTree {
			return nil, NewOperationError("pane", pane.String(), terminal.ErrTerminalClosed)
		}
		return nil, NewOperationError("pane", pane.String(), split.ErrPaneNotFound)
	}
	return term, nil
}

// handlePaneExit runs on the terminal's goroutine once its child is gone.
// Teardown is applied by the main loop.
func (app *Application) handlePaneExit(pane ids.Pane, code int) {
	app.logger.Info("pane exited", "pane", pane.String(), "exit_code", code)
	app.exits.push(pane)
}

// removeExitedPane drops an exited pane from its split tree. A pane already
// removed by pane.close is ignored. When it was the only pane of the only
// workspace, a fresh workspace with a new pane replaces it.
func (app *Application) removeExitedPane(pane ids.Pane) {
	app.renderer.Forget(pane)
	if _, ok := app.workspaces.FindPane(pane); !ok {
		return
	}

	res, err := app.workspaces.ClosePane(pane)
	switch {
	case err == nil:
		if res.WorkspaceClosed {
			app.logger.Debug("workspace closed with its last pane", "workspace", res.Workspace.String())
		}
	case errors.Is(err, split.ErrLastPane):
		if err := app.replaceLastWorkspace(); err != nil {
			app.logger.Error("replace last workspace", "err", err)
		}
	default:
		app.logger.Warn("remove exited pane", "pane", pane.String(), "err", err)
	}
}

// replaceLastWorkspace swaps the only workspace for a new one holding a
// fresh pane.
func (app *Application) replaceLastWorkspace() error {
	old := app.workspaces.Active()
	ws, pane, err := app.newWorkspace("")
	if err != nil {
		return err
	}
	panes, err := app.workspaces.Close(old.ID)
	if err != nil {
		return NewOperationError("close workspace", old.ID.String(), err)
	}
	app.closePanes(panes)
	app.logger.Info("replaced last workspace", "old", old.ID.String(), "new", ws.String(), "pane", pane.String())
	return nil
}

// newWorkspace spawns a pane sized to the whole surface and appends a
// workspace holding it. The new workspace becomes active.
func (app *Application) newWorkspace(name string) (ids.Workspace, ids.Pane, error) {
	wsID := app.alloc.NextWorkspace()
	pane := app.alloc.NextPane()
	cols, rows := app.gridSize(app.Bounds())
	if _, err := app.spawnPane(pane, cols, rows); err != nil {
		return 0, 0, err
	}
	if _, err := app.workspaces.Add(wsID, pane, name); err != nil {
		app.closePanes([]ids.Pane{pane})
		return 0, 0, NewOperationError("new workspace", wsID.String(), err)
	}
	return wsID, pane, nil
}

// splitPane spawns a pane sized to the half it will occupy and inserts it
// next to target.
func (app *Application) splitPane(target ids.Pane, dir split.Direction, ratio float64) (ids.Pane, error) {
	ws, ok := app.workspaces.FindPane(target)
	if !ok {
		return 0, NewOperationError("split", target.String(), split.ErrPaneNotFound)
	}
	pane := app.alloc.NextPane()

	// Validate on a snapshot first so a refused split never spawns a shell.
	tree, _, err := ws.Tree.Split(target, dir, ratio, pane)
	if err != nil {
		return 0, NewOperationError("split", target.String(), err)
	}
	cols, rows := app.gridSize(tree.LayoutMap(app.Bounds())[pane])
	if _, err := app.spawnPane(pane, cols, rows); err != nil {
		return 0, err
	}
	if _, err := app.workspaces.SplitPane(target, dir, ratio, pane); err != nil {
		app.closePanes([]ids.Pane{pane})
		return 0, NewOperationError("split", target.String(), err)
	}
	return pane, nil
}

// closePane removes pane from the layout and stops its terminal.
func (app *Application) closePane(pane ids.Pane) (workspace.PaneClose, error) {
	res, err := app.workspaces.ClosePane(pane)
	if err != nil {
		return res, NewOperationError("close pane", pane.String(), err)
	}
	app.closePanes([]ids.Pane{pane})
	return res, nil
}

// closePanes stops the terminals of panes that left the layout.
func (app *Application) closePanes(panes []ids.Pane) {
	for _, p := range panes {
		app.terminals.CloseAsync(p)
		app.renderer.Forget(p)
	}
}

// handleWorkspaceChange runs after every structural edit.
func (app *Application) handleWorkspaceChange(ev workspace.ChangeEvent) {
	switch ev.Type {
	case workspace.ChangeLayout, workspace.ChangeAdded, workspace.ChangeSelected:
		app.layoutDirty.Store(true)
	}
	if ev.Type == workspace.ChangeFocus || ev.Type == workspace.ChangeSelected {
		app.renderer.ResetBlink(time.Now())
	}
	app.logger.Debug("workspace changed", "type", ev.Type.String(), "workspace", ev.Workspace.String())
}

// relayout resizes every pane of every workspace to its rectangle.
func (app *Application) relayout() {
	bounds := app.Bounds()
	for _, ws := range app.workspaces.List() {
		for _, p := range ws.Tree.Layout(bounds) {
			term, ok := app.terminals.Get(p.Pane)
			if !ok {
				continue
			}
			cols, rows := app.gridSize(p.Rect)
			if err := term.Resize(cols, rows); err != nil && !errors.Is(err, terminal.ErrTerminalClosed) {
				app.logger.Warn("resize pane", "pane", p.Pane.String(), "err", err)
			}
		}
	}
}
