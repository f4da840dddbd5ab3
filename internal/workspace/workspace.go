// Package workspace maintains the ordered list of workspaces (tabs), each
// holding one split tree of panes, and the active selection.
//
// Edits are structural only. The manager never touches a PTY; operations
// that remove panes return their ids so the caller can tear them down.
package workspace

import (
	"fmt"
	"sync"

	"github.com/dshills/pterminal/internal/ids"
	"github.com/dshills/pterminal/internal/split"
)

// Workspace is one tab. Values returned by the Manager are snapshots; the
// split tree is immutable so a snapshot stays consistent after later edits.
type Workspace struct {
	ID     ids.Workspace
	Name   string
	Tree   split.Tree
	Active ids.Pane
}

// Panes returns the workspace's panes in tree order.
func (w Workspace) Panes() []ids.Pane {
	return w.Tree.Panes()
}

// ChangeType indicates the kind of structural change.
type ChangeType int

const (
	// ChangeAdded indicates a workspace was created.
	ChangeAdded ChangeType = iota
	// ChangeClosed indicates a workspace was removed.
	ChangeClosed
	// ChangeSelected indicates the active workspace changed.
	ChangeSelected
	// ChangeReordered indicates a workspace moved.
	ChangeReordered
	// ChangeRenamed indicates a workspace name changed.
	ChangeRenamed
	// ChangeLayout indicates a split tree changed shape or ratio.
	ChangeLayout
	// ChangeFocus indicates a workspace's active pane changed.
	ChangeFocus
)

func (c ChangeType) String() string {
	switch c {
	case ChangeAdded:
		return "added"
	case ChangeClosed:
		return "closed"
	case ChangeSelected:
		return "selected"
	case ChangeReordered:
		return "reordered"
	case ChangeRenamed:
		return "renamed"
	case ChangeLayout:
		return "layout"
	case ChangeFocus:
		return "focus"
	}
	return "unknown"
}

// ChangeEvent describes one structural change.
type ChangeEvent struct {
	Type      ChangeType
	Workspace ids.Workspace
}

// Manager holds the workspaces. The zero value is not usable; use
// NewManager.
type Manager struct {
	mu     sync.RWMutex
	items  []Workspace
	active int

	onChange []func(ChangeEvent)
}

// NewManager creates a manager holding one workspace with one pane.
func NewManager(id ids.Workspace, pane ids.Pane) *Manager {
	return &Manager{
		items: []Workspace{newWorkspace(id, pane, "")},
	}
}

func newWorkspace(id ids.Workspace, pane ids.Pane, name string) Workspace {
	if name == "" {
		name = fmt.Sprintf("Workspace %d", uint64(id))
	}
	return Workspace{ID: id, Name: name, Tree: split.New(pane), Active: pane}
}

// OnChange registers a callback run after every successful edit. Callbacks
// run outside the manager lock.
func (m *Manager) OnChange(fn func(ChangeEvent)) {
	m.mu.Lock()
	m.onChange = append(m.onChange, fn)
	m.mu.Unlock()
}

func (m *Manager) notify(events ...ChangeEvent) {
	m.mu.RLock()
	handlers := append([]func(ChangeEvent){}, m.onChange...)
	m.mu.RUnlock()
	for _, ev := range events {
		for _, fn := range handlers {
			fn(ev)
		}
	}
}

// Add appends a workspace holding one pane and makes it active.
func (m *Manager) Add(id ids.Workspace, pane ids.Pane, name string) (Workspace, error) {
	m.mu.Lock()
	if m.indexOf(id) >= 0 {
		m.mu.Unlock()
		return Workspace{}, fmt.Errorf("%w: %s", ErrExists, id)
	}
	if _, _, found := m.findPane(pane); found {
		m.mu.Unlock()
		return Workspace{}, fmt.Errorf("%w: %s", split.ErrDuplicatePane, pane)
	}
	ws := newWorkspace(id, pane, name)
	m.items = append(m.items, ws)
	m.active = len(m.items) - 1
	m.mu.Unlock()

	m.notify(ChangeEvent{ChangeAdded, id}, ChangeEvent{ChangeSelected, id})
	return ws, nil
}

// Close removes a workspace and returns the panes that fell out of scope.
// The last workspace cannot be closed.
func (m *Manager) Close(id ids.Workspace) ([]ids.Pane, error) {
	m.mu.Lock()
	idx := m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if len(m.items) == 1 {
		m.mu.Unlock()
		return nil, ErrLastWorkspace
	}
	panes := m.items[idx].Panes()
	m.items = append(m.items[:idx], m.items[idx+1:]...)
	if idx < m.active || m.active >= len(m.items) {
		m.active--
	}
	selected := m.items[m.active].ID
	m.mu.Unlock()

	m.notify(ChangeEvent{ChangeClosed, id}, ChangeEvent{ChangeSelected, selected})
	return panes, nil
}

// Select makes workspace id active.
func (m *Manager) Select(id ids.Workspace) (int, error) {
	m.mu.Lock()
	idx := m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.active = idx
	m.mu.Unlock()

	m.notify(ChangeEvent{ChangeSelected, id})
	return idx, nil
}

// SelectIndex makes the workspace at idx active.
func (m *Manager) SelectIndex(idx int) (ids.Workspace, error) {
	m.mu.Lock()
	if idx < 0 || idx >= len(m.items) {
		m.mu.Unlock()
		return 0, fmt.Errorf("%w: %d", ErrIndexOutOfRange, idx)
	}
	m.active = idx
	id := m.items[idx].ID
	m.mu.Unlock()

	m.notify(ChangeEvent{ChangeSelected, id})
	return id, nil
}

// Reorder moves workspace id to index. The active workspace stays active.
func (m *Manager) Reorder(id ids.Workspace, index int) error {
	m.mu.Lock()
	from := m.indexOf(id)
	if from < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if index < 0 || index >= len(m.items) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	activeID := m.items[m.active].ID
	ws := m.items[from]
	m.items = append(m.items[:from], m.items[from+1:]...)
	m.items = append(m.items[:index], append([]Workspace{ws}, m.items[index:]...)...)
	m.active = m.indexOf(activeID)
	m.mu.Unlock()

	m.notify(ChangeEvent{ChangeReordered, id})
	return nil
}

// Rename sets a workspace's display name.
func (m *Manager) Rename(id ids.Workspace, name string) error {
	if name == "" {
		return ErrEmptyName
	}
	m.mu.Lock()
	idx := m.indexOf(id)
	if idx < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.items[idx].Name = name
	m.mu.Unlock()

	m.notify(ChangeEvent{ChangeRenamed, id})
	return nil
}

// Active returns a snapshot of the active workspace.
func (m *Manager) Active() Workspace {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.items[m.active]
}

// ActiveIndex returns the index of the active workspace.
func (m *Manager) ActiveIndex() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// ActivePane returns the active pane of the active workspace.
func (m *Manager) ActivePane() ids.Pane {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.items[m.active].Active
}

// Get returns a snapshot of workspace id.
func (m *Manager) Get(id ids.Workspace) (Workspace, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx := m.indexOf(id)
	if idx < 0 {
		return Workspace{}, false
	}
	return m.items[idx], true
}

// List returns snapshots of every workspace in display order.
func (m *Manager) List() []Workspace {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Workspace(nil), m.items...)
}

// Len returns the number of workspaces.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// FindPane returns the workspace holding pane.
func (m *Manager) FindPane(pane ids.Pane) (Workspace, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, _, ok := m.findPane(pane)
	if !ok {
		return Workspace{}, false
	}
	return m.items[idx], true
}

// Panes returns every pane of every workspace.
func (m *Manager) Panes() []ids.Pane {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ids.Pane
	for _, ws := range m.items {
		out = append(out, ws.Panes()...)
	}
	return out
}

func (m *Manager) indexOf(id ids.Workspace) int {
	for i := range m.items {
		if m.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) findPane(pane ids.Pane) (int, ids.Workspace, bool) {
	for i := range m.items {
		if m.items[i].Tree.Contains(pane) {
			return i, m.items[i].ID, true
		}
	}
	return -1, 0, false
}
