// Package terminal implements the per-pane terminal session: the PTY bridge
// to the child process, the VT parser and the grid it mutates.
//
// # Architecture
//
// The package is organized around these core types:
//
//   - Grid: cell buffer, scrollback ring, alternate screen and dirty tracker
//   - Parser: resumable VT state machine applying a byte stream to a Grid
//   - PTY / Process: the OS pseudo-terminal and its child
//   - Terminal: one pane's runtime (reader, parser, writer, waiter)
//   - Manager: the arena of terminals keyed by pane id
//
// # Usage
//
//	manager := terminal.NewManager(terminal.ManagerConfig{
//	    EventBus:     publisher,
//	    DefaultShell: "/bin/zsh",
//	})
//
//	term, err := manager.Create(paneID, terminal.Options{Cols: 80, Rows: 24})
//	if err != nil {
//	    return err
//	}
//
//	term.WriteString("ls -la\n")
//	text := term.Capture(terminal.CaptureOptions{Scrollback: true})
//
// # Locking
//
// Each Grid has one RWMutex. The parser holds the write lock for a whole
// chunk; renderers and control handlers take the read lock. Lock order is
// grid before tracker. No I/O happens under a grid lock.
package terminal
