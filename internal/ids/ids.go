// Package ids defines the identifiers shared by panes, workspaces and the
// control surface. Identifiers encode as short prefixed strings ("p3",
// "w1") and decode from either that form or a bare number.
package ids

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
)

// Pane identifies a pane for the lifetime of a session.
type Pane uint64

// Workspace identifies a workspace (tab) for the lifetime of a session.
type Workspace uint64

const (
	panePrefix      = "p"
	workspacePrefix = "w"
)

func (p Pane) String() string { return panePrefix + strconv.FormatUint(uint64(p), 10) }

// MarshalText implements encoding.TextMarshaler.
func (p Pane) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pane) UnmarshalText(text []byte) error {
	n, err := parse(string(text), panePrefix)
	if err != nil {
		return fmt.Errorf("pane id: %w", err)
	}
	*p = Pane(n)
	return nil
}

// UnmarshalJSON accepts "p3", "3" and 3.
func (p *Pane) UnmarshalJSON(data []byte) error {
	return unmarshalJSON(data, p)
}

// ParsePane parses a pane id.
func ParsePane(s string) (Pane, error) {
	var p Pane
	err := p.UnmarshalText([]byte(s))
	return p, err
}

func (w Workspace) String() string { return workspacePrefix + strconv.FormatUint(uint64(w), 10) }

// MarshalText implements encoding.TextMarshaler.
func (w Workspace) MarshalText() ([]byte, error) { return []byte(w.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (w *Workspace) UnmarshalText(text []byte) error {
	n, err := parse(string(text), workspacePrefix)
	if err != nil {
		return fmt.Errorf("workspace id: %w", err)
	}
	*w = Workspace(n)
	return nil
}

// UnmarshalJSON accepts "w1", "1" and 1.
func (w *Workspace) UnmarshalJSON(data []byte) error {
	return unmarshalJSON(data, w)
}

// ParseWorkspace parses a workspace id.
func ParseWorkspace(s string) (Workspace, error) {
	var w Workspace
	err := w.UnmarshalText([]byte(s))
	return w, err
}

func parse(s, prefix string) (uint64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, prefix)
	if s == "" {
		return 0, fmt.Errorf("empty id")
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return n, nil
}

func unmarshalJSON(data []byte, dst interface{ UnmarshalText([]byte) error }) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return dst.UnmarshalText([]byte(s))
	}
	return dst.UnmarshalText(data)
}

// Allocator hands out monotonically increasing ids. Ids are never reused.
type Allocator struct {
	nextPane      atomic.Uint64
	nextWorkspace atomic.Uint64
}

// NextPane returns a fresh pane id.
func (a *Allocator) NextPane() Pane {
	return Pane(a.nextPane.Add(1) - 1)
}

// NextWorkspace returns a fresh workspace id.
func (a *Allocator) NextWorkspace() Workspace {
	return Workspace(a.nextWorkspace.Add(1) - 1)
}
