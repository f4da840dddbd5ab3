package workspace

import (
	"errors"
	"fmt"

	"github.com/dshills/pterminal/internal/ids"
	"github.com/dshills/pterminal/internal/split"
)

// PaneClose reports the outcome of ClosePane.
type PaneClose struct {
	Workspace ids.Workspace
	// WorkspaceClosed is set when the pane was the workspace's last one and
	// the workspace was removed with it.
	WorkspaceClosed bool
	// Focus is the workspace's active pane after the edit.
	Focus ids.Pane
}

// SplitPane splits target inside the workspace that holds it. The new pane
// becomes the workspace's active pane.
func (m *Manager) SplitPane(target ids.Pane, dir split.Direction, ratio float64, newPane ids.Pane) (split.ID, error) {
	m.mu.Lock()
	idx, wsID, ok := m.findPane(target)
	if !ok {
		m.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", split.ErrPaneNotFound, target)
	}
	if _, _, dup := m.findPane(newPane); dup {
		m.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", split.ErrDuplicatePane, newPane)
	}
	tree, sid, err := m.items[idx].Tree.Split(target, dir, ratio, newPane)
	if err != nil {
		m.mu.Unlock()
		return 0, err
	}
	m.items[idx].Tree = tree
	m.items[idx].Active = newPane
	m.mu.Unlock()

	m.notify(ChangeEvent{ChangeLayout, wsID}, ChangeEvent{ChangeFocus, wsID})
	return sid, nil
}

// ClosePane removes a pane. When it is the last pane of its workspace the
// workspace is closed too, unless that is the last workspace, in which case
// the edit is refused with split.ErrLastPane.
func (m *Manager) ClosePane(pane ids.Pane) (PaneClose, error) {
	m.mu.Lock()
	idx, wsID, ok := m.findPane(pane)
	if !ok {
		m.mu.Unlock()
		return PaneClose{}, fmt.Errorf("%w: %s", split.ErrPaneNotFound, pane)
	}
	ws := m.items[idx]

	if ws.Tree.Len() == 1 {
		m.mu.Unlock()
		if _, err := m.Close(wsID); err != nil {
			if errors.Is(err, ErrLastWorkspace) {
				return PaneClose{}, split.ErrLastPane
			}
			return PaneClose{}, err
		}
		return PaneClose{Workspace: wsID, WorkspaceClosed: true}, nil
	}

	next, _ := ws.Tree.Next(pane)
	tree, err := ws.Tree.Close(pane)
	if err != nil {
		m.mu.Unlock()
		return PaneClose{}, err
	}
	m.items[idx].Tree = tree
	if ws.Active == pane {
		m.items[idx].Active = next
	}
	focus := m.items[idx].Active
	m.mu.Unlock()

	m.notify(ChangeEvent{ChangeLayout, wsID}, ChangeEvent{ChangeFocus, wsID})
	return PaneClose{Workspace: wsID, Focus: focus}, nil
}

// ResizeSplit sets the ratio of a split in whichever workspace holds it.
func (m *Manager) ResizeSplit(id split.ID, ratio float64) (float64, error) {
	m.mu.Lock()
	for i := range m.items {
		if _, ok := m.items[i].Tree.FindSplit(id); !ok {
			continue
		}
		tree, err := m.items[i].Tree.Resize(id, ratio)
		if err != nil {
			m.mu.Unlock()
			return 0, err
		}
		m.items[i].Tree = tree
		s, _ := tree.FindSplit(id)
		wsID := m.items[i].ID
		m.mu.Unlock()

		m.notify(ChangeEvent{ChangeLayout, wsID})
		return s.Ratio, nil
	}
	m.mu.Unlock()
	return 0, fmt.Errorf("%w: %s", split.ErrSplitNotFound, id)
}

// ResizePane sets the ratio of pane's parent split.
func (m *Manager) ResizePane(pane ids.Pane, ratio float64) (split.ID, float64, error) {
	m.mu.RLock()
	idx, _, ok := m.findPane(pane)
	var parent split.ID
	var hasParent bool
	if ok {
		parent, hasParent = m.items[idx].Tree.ParentSplit(pane)
	}
	m.mu.RUnlock()

	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", split.ErrPaneNotFound, pane)
	}
	if !hasParent {
		return 0, 0, fmt.Errorf("%w: %s has no parent split", split.ErrSplitNotFound, pane)
	}
	r, err := m.ResizeSplit(parent, ratio)
	return parent, r, err
}

// AdjustPane moves the divider of pane's parent split by delta and returns
// the split and its new ratio.
func (m *Manager) AdjustPane(pane ids.Pane, delta float64) (split.ID, float64, error) {
	m.mu.Lock()
	idx, wsID, ok := m.findPane(pane)
	if !ok {
		m.mu.Unlock()
		return 0, 0, fmt.Errorf("%w: %s", split.ErrPaneNotFound, pane)
	}
	tree, id, err := m.items[idx].Tree.Adjust(pane, delta)
	if err != nil {
		m.mu.Unlock()
		if errors.Is(err, split.ErrLastPane) {
			return 0, 0, fmt.Errorf("%w: %s has no parent split", split.ErrSplitNotFound, pane)
		}
		return 0, 0, err
	}
	m.items[idx].Tree = tree
	s, _ := tree.FindSplit(id)
	m.mu.Unlock()

	m.notify(ChangeEvent{ChangeLayout, wsID})
	return id, s.Ratio, nil
}

// Focus makes pane the active pane of its workspace and selects that
// workspace.
func (m *Manager) Focus(pane ids.Pane) (ids.Workspace, error) {
	m.mu.Lock()
	idx, wsID, ok := m.findPane(pane)
	if !ok {
		m.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", split.ErrPaneNotFound, pane)
	}
	m.items[idx].Active = pane
	selected := m.active != idx
	m.active = idx
	m.mu.Unlock()

	events := []ChangeEvent{{ChangeFocus, wsID}}
	if selected {
		events = append(events, ChangeEvent{ChangeSelected, wsID})
	}
	m.notify(events...)
	return wsID, nil
}

// FocusNext moves the active workspace's focus forward (delta > 0) or
// backward in tree order, wrapping around.
func (m *Manager) FocusNext(delta int) ids.Pane {
	m.mu.Lock()
	ws := &m.items[m.active]
	cur := ws.Active
	var next ids.Pane
	if delta >= 0 {
		next, _ = ws.Tree.Next(cur)
	} else {
		next, _ = ws.Tree.Prev(cur)
	}
	ws.Active = next
	wsID := ws.ID
	m.mu.Unlock()

	if next != cur {
		m.notify(ChangeEvent{ChangeFocus, wsID})
	}
	return next
}
