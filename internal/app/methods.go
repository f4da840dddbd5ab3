package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/dshills/pterminal/internal/control"
	"github.com/dshills/pterminal/internal/ids"
	"github.com/dshills/pterminal/internal/notification"
	"github.com/dshills/pterminal/internal/renderer"
	"github.com/dshills/pterminal/internal/renderer/dirty"
	"github.com/dshills/pterminal/internal/split"
	"github.com/dshills/pterminal/internal/terminal"
	"github.com/dshills/pterminal/internal/workspace"
)

// bind adapts a handler taking decoded params to control.Handler.
func bind[P any](fn func(ctx context.Context, p P) (any, error)) control.Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p P
		if err := control.Bind(raw, &p); err != nil {
			return nil, err
		}
		return fn(ctx, p)
	}
}

// registerMethods adds the session methods to the registry. Methods that
// change the layout run on the main loop between frames.
func (app *Application) registerMethods() error {
	methods := []control.Method{
		{
			Name:    "system.identify",
			Aliases: []string{"identify"},
			Summary: "Describe this session and its frame metrics.",
			Handler: bind(app.identify),
		},
		{
			Name:    "workspace.list",
			Aliases: []string{"list-workspaces"},
			Summary: "List workspaces in display order.",
			Handler: bind(app.listWorkspaces),
		},
		{
			Name:    "workspace.new",
			Aliases: []string{"new-workspace"},
			Summary: "Create a workspace with one pane and select it.",
			Params:  newWorkspaceParams{},
			Serial:  true,
			Handler: bind(app.newWorkspaceMethod),
		},
		{
			Name:    "workspace.close",
			Aliases: []string{"close-workspace"},
			Summary: "Close a workspace and every pane in it.",
			Params:  workspaceParams{},
			Serial:  true,
			Handler: bind(app.closeWorkspace),
		},
		{
			Name:    "workspace.select",
			Aliases: []string{"select-workspace"},
			Summary: "Select a workspace by id or index.",
			Params:  selectWorkspaceParams{},
			Serial:  true,
			Handler: bind(app.selectWorkspace),
		},
		{
			Name:    "workspace.reorder",
			Summary: "Move a workspace to a new index.",
			Params:  reorderWorkspaceParams{},
			Serial:  true,
			Handler: bind(app.reorderWorkspace),
		},
		{
			Name:    "workspace.rename",
			Summary: "Rename a workspace.",
			Params:  renameWorkspaceParams{},
			Serial:  true,
			Handler: bind(app.renameWorkspace),
		},
		{
			Name:    "pane.list",
			Aliases: []string{"list-panes"},
			Summary: "List the panes of a workspace in tree order.",
			Params:  listPanesParams{},
			Handler: bind(app.listPanes),
		},
		{
			Name:    "pane.split",
			Summary: "Split a pane; the new pane takes the second half and focus.",
			Params:  splitParams{},
			Serial:  true,
			Handler: bind(app.splitMethod),
		},
		{
			Name:    "pane.close",
			Summary: "Close a pane and stop its process.",
			Params:  paneParams{},
			Serial:  true,
			Handler: bind(app.closePaneMethod),
		},
		{
			Name:    "pane.resize",
			Summary: "Set the ratio of a split, or of a pane's parent split.",
			Params:  resizeParams{},
			Serial:  true,
			Handler: bind(app.resizeMethod),
		},
		{
			Name:    "pane.focus",
			Summary: "Focus a pane and select its workspace.",
			Params:  focusParams{},
			Serial:  true,
			Handler: bind(app.focusMethod),
		},
		{
			Name:    "pane.focus_next",
			Summary: "Move focus to the next pane in tree order, or the previous one.",
			Params:  focusNextParams{},
			Serial:  true,
			Handler: bind(app.focusNextMethod),
		},
		{
			Name:    "pane.at",
			Summary: "Return the pane of the active workspace under a point.",
			Params:  pointParams{},
			Handler: bind(app.paneAt),
		},
		{
			Name:    "pane.send",
			Aliases: []string{"terminal.send", "send"},
			Summary: "Write bytes or text to a pane's process.",
			Params:  sendParams{},
			Serial:  true,
			Handler: bind(app.send),
		},
		{
			Name:    "pane.send_keys",
			Summary: "Encode named keys and write them to a pane's process.",
			Params:  sendKeysParams{},
			Serial:  true,
			Handler: bind(app.sendKeys),
		},
		{
			Name:    "pane.capture",
			Aliases: []string{"pane.read_screen", "read-screen", "capture-pane"},
			Summary: "Capture a pane's screen, optionally with scrollback, as text.",
			Params:  captureParams{},
			Handler: bind(app.capture),
		},
		{
			Name:    "pane.select",
			Summary: "Set or clear a pane's selection and return the selected text.",
			Params:  selectParams{},
			Serial:  true,
			Handler: bind(app.selectText),
		},
		{
			Name:    "notification.send",
			Aliases: []string{"notify"},
			Summary: "Store a notification.",
			Params:  notifyParams{},
			Handler: bind(app.notify),
		},
		{
			Name:    "notification.list",
			Aliases: []string{"list-notifications"},
			Summary: "List stored notifications.",
			Handler: bind(app.listNotifications),
		},
		{
			Name:    "notification.clear",
			Aliases: []string{"clear-notifications"},
			Summary: "Remove every notification.",
			Handler: bind(app.clearNotifications),
		},
		{
			Name:    "notification.read",
			Summary: "Mark every notification read.",
			Handler: bind(app.readNotifications),
		},
	}
	for _, m := range methods {
		if err := app.registry.Register(m); err != nil {
			return err
		}
	}
	return nil
}

type noParams struct{}

// Param and result types. Pane and workspace ids are accepted as "p3" or 3.

type newWorkspaceParams struct {
	Name string `json:"name,omitempty"`
}

type workspaceParams struct {
	ID *ids.Workspace `json:"id,omitempty" jsonschema:"oneof_type=string;integer"`
}

type selectWorkspaceParams struct {
	ID    *ids.Workspace `json:"id,omitempty" jsonschema:"oneof_type=string;integer"`
	Index *int           `json:"index,omitempty" jsonschema:"minimum=0"`
}

type reorderWorkspaceParams struct {
	ID    *ids.Workspace `json:"id" jsonschema:"oneof_type=string;integer"`
	Index int            `json:"index" jsonschema:"minimum=0"`
}

type renameWorkspaceParams struct {
	ID   *ids.Workspace `json:"id,omitempty" jsonschema:"oneof_type=string;integer"`
	Name string         `json:"name" jsonschema:"minLength=1"`
}

type listPanesParams struct {
	WorkspaceID *ids.Workspace `json:"workspace_id,omitempty" jsonschema:"oneof_type=string;integer"`
}

type paneParams struct {
	PaneID *ids.Pane `json:"pane_id,omitempty" jsonschema:"oneof_type=string;integer"`
}

type splitParams struct {
	PaneID    *ids.Pane `json:"pane_id,omitempty" jsonschema:"oneof_type=string;integer"`
	Direction string    `json:"direction" jsonschema:"enum=horizontal,enum=vertical,enum=h,enum=v,enum=right,enum=down"`
	Ratio     float64   `json:"ratio,omitempty" jsonschema:"exclusiveMinimum=0,exclusiveMaximum=1"`
}

type resizeParams struct {
	PaneID  *ids.Pane `json:"pane_id,omitempty" jsonschema:"oneof_type=string;integer"`
	SplitID *split.ID `json:"split_id,omitempty" jsonschema:"oneof_type=string;integer"`
	Ratio   *float64  `json:"ratio,omitempty" jsonschema:"exclusiveMinimum=0,exclusiveMaximum=1"`
	Delta   *float64  `json:"delta,omitempty" jsonschema:"exclusiveMinimum=-1,exclusiveMaximum=1,description=Moves the pane's divider relative to its current ratio."`
}

type focusParams struct {
	PaneID *ids.Pane `json:"pane_id" jsonschema:"oneof_type=string;integer"`
}

type focusNextParams struct {
	Reverse bool `json:"reverse,omitempty"`
}

type pointParams struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type sendParams struct {
	PaneID   *ids.Pane `json:"pane_id,omitempty" jsonschema:"oneof_type=string;integer"`
	Bytes    string    `json:"bytes,omitempty" jsonschema:"description=Raw input written to the PTY as is."`
	BytesB64 []byte    `json:"bytes_b64,omitempty" jsonschema:"description=Base64 encoded input for binary data. Takes precedence over bytes."`
	Text     string    `json:"text,omitempty"`
	Paste    bool      `json:"paste,omitempty"`
}

type sendKeysParams struct {
	PaneID *ids.Pane `json:"pane_id,omitempty" jsonschema:"oneof_type=string;integer"`
	Keys   []string  `json:"keys" jsonschema:"minItems=1"`
}

type captureParams struct {
	PaneID     *ids.Pane `json:"pane_id,omitempty" jsonschema:"oneof_type=string;integer"`
	Scrollback bool      `json:"scrollback,omitempty"`
	Lines      int       `json:"lines,omitempty" jsonschema:"minimum=0"`
}

type selectParams struct {
	PaneID *ids.Pane       `json:"pane_id,omitempty" jsonschema:"oneof_type=string;integer"`
	Start  *terminal.Point `json:"start,omitempty"`
	End    *terminal.Point `json:"end,omitempty"`
}

type notifyParams struct {
	Title   string `json:"title,omitempty"`
	Body    string `json:"body,omitempty"`
	Message string `json:"message,omitempty"`
}

type identifyResult struct {
	App       string     `json:"app"`
	Version   string     `json:"version"`
	PID       int        `json:"pid"`
	Platform  string     `json:"platform"`
	Socket    string     `json:"socket"`
	Bridge    string     `json:"bridge,omitempty"`
	SessionID string     `json:"session_id"`
	Frames    frameStats `json:"frames"`
}

type frameStats struct {
	MetricsSnapshot
	BudgetNs int64               `json:"budget_ns"`
	Pacing   renderer.PacerStats `json:"pacing"`
	Renderer renderer.Metrics    `json:"renderer"`
}

type workspaceInfo struct {
	ID         ids.Workspace `json:"id"`
	Index      int           `json:"index"`
	Name       string        `json:"name"`
	Active     bool          `json:"active"`
	PaneCount  int           `json:"pane_count"`
	ActivePane ids.Pane      `json:"active_pane_id"`
}

type paneInfo struct {
	ID     ids.Pane    `json:"id"`
	Active bool        `json:"active"`
	Alive  bool        `json:"alive"`
	Rows   int         `json:"rows"`
	Cols   int         `json:"cols"`
	Title  string      `json:"title"`
	Cwd    string      `json:"cwd,omitempty"`
	PID    int         `json:"pid,omitempty"`
	Rect   split.Rect  `json:"rect"`
	Dirty  dirty.Stats `json:"dirty"`
}

// activePane resolves an optional pane id to the focused pane.
func (app *Application) activePane(p *ids.Pane) ids.Pane {
	if p != nil {
		return *p
	}
	return app.workspaces.ActivePane()
}

func (app *Application) activeWorkspace(w *ids.Workspace) ids.Workspace {
	if w != nil {
		return *w
	}
	return app.workspaces.Active().ID
}

func (app *Application) identify(_ context.Context, _ noParams) (any, error) {
	return identifyResult{
		App:       Name,
		Version:   app.opts.Version,
		PID:       os.Getpid(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Socket:    app.socketPath,
		Bridge:    app.BridgeAddr(),
		SessionID: app.sessionID,
		Frames: frameStats{
			MetricsSnapshot: app.metrics.Snapshot(),
			BudgetNs:        app.pacer.Budget().Nanoseconds(),
			Pacing:          app.pacer.Stats(),
			Renderer:        app.renderer.Metrics(),
		},
	}, nil
}

func (app *Application) listWorkspaces(_ context.Context, _ noParams) (any, error) {
	list := app.workspaces.List()
	active := app.workspaces.ActiveIndex()
	out := make([]workspaceInfo, len(list))
	for i, ws := range list {
		out[i] = workspaceInfo{
			ID:         ws.ID,
			Index:      i,
			Name:       ws.Name,
			Active:     i == active,
			PaneCount:  ws.Tree.Len(),
			ActivePane: ws.Active,
		}
	}
	return map[string]any{"workspaces": out}, nil
}

func (app *Application) newWorkspaceMethod(ctx context.Context, p newWorkspaceParams) (any, error) {
	return app.exec(ctx, "workspace.new", func() (any, error) {
		wsID, pane, err := app.newWorkspace(p.Name)
		if err != nil {
			return nil, err
		}
		return map[string]any{"workspace_id": wsID, "pane_id": pane}, nil
	})
}

func (app *Application) closeWorkspace(ctx context.Context, p workspaceParams) (any, error) {
	return app.exec(ctx, "workspace.close", func() (any, error) {
		id := app.activeWorkspace(p.ID)
		panes, err := app.workspaces.Close(id)
		if err != nil {
			return nil, NewOperationError("close workspace", id.String(), err)
		}
		app.closePanes(panes)
		return map[string]any{"closed_workspace_id": id}, nil
	})
}

func (app *Application) selectWorkspace(ctx context.Context, p selectWorkspaceParams) (any, error) {
	if p.ID == nil && p.Index == nil {
		return nil, control.InvalidParams("id or index is required")
	}
	return app.exec(ctx, "workspace.select", func() (any, error) {
		if p.ID != nil {
			idx, err := app.workspaces.Select(*p.ID)
			if err != nil {
				return nil, NewOperationError("select workspace", p.ID.String(), err)
			}
			return map[string]any{"selected_index": idx, "workspace_id": *p.ID}, nil
		}
		id, err := app.workspaces.SelectIndex(*p.Index)
		if err != nil {
			return nil, NewOperationError("select workspace", fmt.Sprint(*p.Index), err)
		}
		return map[string]any{"selected_index": *p.Index, "workspace_id": id}, nil
	})
}

func (app *Application) reorderWorkspace(ctx context.Context, p reorderWorkspaceParams) (any, error) {
	if p.ID == nil {
		return nil, control.InvalidParams("id is required")
	}
	id := *p.ID
	return app.exec(ctx, "workspace.reorder", func() (any, error) {
		if err := app.workspaces.Reorder(id, p.Index); err != nil {
			return nil, NewOperationError("reorder workspace", id.String(), err)
		}
		return map[string]any{"workspace_id": id, "index": p.Index}, nil
	})
}

func (app *Application) renameWorkspace(ctx context.Context, p renameWorkspaceParams) (any, error) {
	if p.Name == "" {
		return nil, control.InvalidParams("name is required")
	}
	return app.exec(ctx, "workspace.rename", func() (any, error) {
		id := app.activeWorkspace(p.ID)
		if err := app.workspaces.Rename(id, p.Name); err != nil {
			return nil, NewOperationError("rename workspace", id.String(), err)
		}
		return map[string]any{"workspace_id": id, "name": p.Name}, nil
	})
}

func (app *Application) listPanes(_ context.Context, p listPanesParams) (any, error) {
	id := app.activeWorkspace(p.WorkspaceID)
	ws, ok := app.workspaces.Get(id)
	if !ok {
		return nil, NewOperationError("list panes", id.String(), workspace.ErrNotFound)
	}
	rects := ws.Tree.LayoutMap(app.Bounds())
	panes := ws.Panes()
	out := make([]paneInfo, 0, len(panes))
	for _, pane := range panes {
		info := paneInfo{ID: pane, Active: pane == ws.Active, Rect: rects[pane]}
		if term, ok := app.terminals.Get(pane); ok {
			info.Alive = term.Alive()
			info.Cols, info.Rows = term.Grid().Size()
			info.Title = term.Title()
			info.Cwd = term.WorkingDirectory()
			info.PID = term.PID()
			info.Dirty = term.Grid().Dirty().Stats()
		}
		out = append(out, info)
	}
	return map[string]any{"workspace_id": id, "panes": out}, nil
}

func (app *Application) splitMethod(ctx context.Context, p splitParams) (any, error) {
	dir, err := split.ParseDirection(p.Direction)
	if err != nil {
		return nil, err
	}
	return app.exec(ctx, "pane.split", func() (any, error) {
		target := app.activePane(p.PaneID)
		pane, err := app.splitPane(target, dir, p.Ratio)
		if err != nil {
			return nil, err
		}
		return map[string]any{"pane_id": target, "new_pane_id": pane}, nil
	})
}

func (app *Application) closePaneMethod(ctx context.Context, p paneParams) (any, error) {
	return app.exec(ctx, "pane.close", func() (any, error) {
		pane := app.activePane(p.PaneID)
		res, err := app.closePane(pane)
		if err != nil {
			return nil, err
		}
		out := map[string]any{"closed_pane_id": pane, "workspace_id": res.Workspace}
		if res.WorkspaceClosed {
			out["workspace_closed"] = true
		}
		return out, nil
	})
}

func (app *Application) resizeMethod(ctx context.Context, p resizeParams) (any, error) {
	switch {
	case (p.Ratio == nil) == (p.Delta == nil):
		return nil, control.InvalidParams("exactly one of ratio or delta is required")
	case p.Ratio != nil && !(*p.Ratio > 0 && *p.Ratio < 1):
		return nil, control.InvalidParams("ratio must be between 0 and 1, got %v", *p.Ratio)
	case p.Delta != nil && !(*p.Delta > -1 && *p.Delta < 1):
		return nil, control.InvalidParams("delta must be between -1 and 1, got %v", *p.Delta)
	case p.Delta != nil && p.SplitID != nil:
		return nil, control.InvalidParams("delta applies to a pane, not a split")
	}
	return app.exec(ctx, "pane.resize", func() (any, error) {
		if p.Delta != nil {
			pane := app.activePane(p.PaneID)
			id, ratio, err := app.workspaces.AdjustPane(pane, *p.Delta)
			if err != nil {
				return nil, NewOperationError("resize", pane.String(), err)
			}
			return map[string]any{"split_id": id, "ratio": ratio}, nil
		}
		if p.SplitID != nil {
			ratio, err := app.workspaces.ResizeSplit(*p.SplitID, *p.Ratio)
			if err != nil {
				return nil, NewOperationError("resize", p.SplitID.String(), err)
			}
			return map[string]any{"split_id": *p.SplitID, "ratio": ratio}, nil
		}
		pane := app.activePane(p.PaneID)
		id, ratio, err := app.workspaces.ResizePane(pane, *p.Ratio)
		if err != nil {
			return nil, NewOperationError("resize", pane.String(), err)
		}
		return map[string]any{"split_id": id, "ratio": ratio}, nil
	})
}

func (app *Application) focusMethod(ctx context.Context, p focusParams) (any, error) {
	if p.PaneID == nil {
		return nil, control.InvalidParams("pane_id is required")
	}
	pane := *p.PaneID
	return app.exec(ctx, "pane.focus", func() (any, error) {
		wsID, err := app.workspaces.Focus(pane)
		if err != nil {
			return nil, NewOperationError("focus", pane.String(), err)
		}
		return map[string]any{"pane_id": pane, "workspace_id": wsID}, nil
	})
}

func (app *Application) focusNextMethod(ctx context.Context, p focusNextParams) (any, error) {
	return app.exec(ctx, "pane.focus_next", func() (any, error) {
		delta := 1
		if p.Reverse {
			delta = -1
		}
		return map[string]any{"pane_id": app.workspaces.FocusNext(delta)}, nil
	})
}

func (app *Application) paneAt(_ context.Context, p pointParams) (any, error) {
	ws := app.workspaces.Active()
	pane, ok := ws.Tree.PaneAt(app.Bounds(), p.X, p.Y)
	if !ok {
		return nil, fmt.Errorf("%w: no pane at (%g, %g)", split.ErrPaneNotFound, p.X, p.Y)
	}
	return map[string]any{"pane_id": pane}, nil
}

// send writes straight to the pane's input queue, which never blocks, so
// connection order is the only ordering it needs.
func (app *Application) send(_ context.Context, p sendParams) (any, error) {
	data := p.BytesB64
	if len(data) == 0 {
		data = []byte(p.Bytes)
	}
	if len(data) == 0 {
		data = []byte(p.Text)
	}
	if len(data) == 0 {
		return nil, control.InvalidParams("bytes or text is required")
	}
	pane := app.activePane(p.PaneID)
	term, err := app.liveTerminal(pane)
	if err != nil {
		return nil, err
	}
	if p.Paste {
		err = term.Paste(data)
	} else {
		err = term.Write(data)
	}
	if err != nil {
		return nil, NewOperationError("send", pane.String(), err)
	}
	app.metrics.RecordInput()
	return map[string]any{"pane_id": pane, "bytes": len(data)}, nil
}

func (app *Application) sendKeys(_ context.Context, p sendKeysParams) (any, error) {
	if len(p.Keys) == 0 {
		return nil, control.InvalidParams("keys is required")
	}
	pane := app.activePane(p.PaneID)
	term, err := app.liveTerminal(pane)
	if err != nil {
		return nil, err
	}
	n, err := term.SendKeys(p.Keys)
	if err != nil {
		return nil, NewOperationError("send keys", pane.String(), err)
	}
	app.metrics.RecordInput()
	return map[string]any{"pane_id": pane, "bytes": n}, nil
}

func (app *Application) capture(_ context.Context, p captureParams) (any, error) {
	if p.Lines < 0 {
		return nil, control.InvalidParams("lines must not be negative")
	}
	pane := app.activePane(p.PaneID)
	term, err := app.liveTerminal(pane)
	if err != nil {
		return nil, err
	}
	cols, rows := term.Grid().Size()
	text := term.Capture(terminal.CaptureOptions{Scrollback: p.Scrollback, Lines: p.Lines})
	return map[string]any{"pane_id": pane, "text": text, "rows": rows, "cols": cols}, nil
}

func (app *Application) selectText(ctx context.Context, p selectParams) (any, error) {
	if (p.Start == nil) != (p.End == nil) {
		return nil, control.InvalidParams("start and end must be given together")
	}
	return app.exec(ctx, "pane.select", func() (any, error) {
		pane := app.activePane(p.PaneID)
		term, err := app.liveTerminal(pane)
		if err != nil {
			return nil, err
		}
		grid := term.Grid()
		if p.Start == nil {
			grid.ClearSelection()
			return map[string]any{"pane_id": pane, "text": ""}, nil
		}
		if err := grid.SetSelection(*p.Start, *p.End); err != nil {
			return nil, NewOperationError("select", pane.String(), err)
		}
		return map[string]any{"pane_id": pane, "text": grid.SelectionText()}, nil
	})
}

func (app *Application) notify(_ context.Context, p notifyParams) (any, error) {
	body := p.Body
	if body == "" {
		body = p.Message
	}
	if p.Title == "" && body == "" {
		return nil, control.InvalidParams("title or body is required")
	}
	n := app.notifications.Push(p.Title, body, "control")
	return map[string]notification.Notification{"notification": n}, nil
}

func (app *Application) listNotifications(_ context.Context, _ noParams) (any, error) {
	list := app.notifications.List()
	if list == nil {
		list = []notification.Notification{}
	}
	return map[string]any{
		"notifications": list,
		"unread":        app.notifications.UnreadCount(),
	}, nil
}

func (app *Application) clearNotifications(_ context.Context, _ noParams) (any, error) {
	app.notifications.Clear()
	return map[string]bool{"cleared": true}, nil
}

func (app *Application) readNotifications(_ context.Context, _ noParams) (any, error) {
	app.notifications.MarkAllRead()
	return map[string]int{"unread": 0}, nil
}
