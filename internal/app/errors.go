package app

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Session errors.
var (
	// ErrQuit ends Run without an error.
	ErrQuit = errors.New("quit requested")

	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("session already running")

	// ErrNotRunning is returned once the main loop no longer accepts commands.
	ErrNotRunning = errors.New("session not running")

	// ErrInitialization wraps any failure inside New.
	ErrInitialization = errors.New("initialization failed")

	// ErrCommandQueueFull means the main loop is too far behind to take
	// another structural edit.
	ErrCommandQueueFull = errors.New("command queue full")
)

// OperationError is a failed edit on a pane or workspace. errors.Is sees
// the wrapped sentinel, which control.ErrorFrom maps to a wire code.
type OperationError struct {
	Op     string // "split", "close pane", "send"
	Target string // pane or workspace id
	Detail string
	Err    error
}

// NewOperationError wraps err as a failure of op on target.
func NewOperationError(op, target string, err error) *OperationError {
	return &OperationError{Op: op, Target: target, Err: err}
}

// WithDetail attaches extra text shown after the target. A nil receiver
// stays nil.
func (e *OperationError) WithDetail(detail string) *OperationError {
	if e != nil {
		e.Detail = detail
	}
	return e
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Target != "" {
		b.WriteByte(' ')
		b.WriteString(e.Target)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, " (%s)", e.Detail)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ComponentError is a failure of one session component during startup,
// serving or shutdown.
type ComponentError struct {
	Component string // "config", "control", "bridge", "terminals", "sink"
	Action    string
	Err       error
}

// NewComponentError wraps err as a failure of component while doing action.
func NewComponentError(component, action string, err error) *ComponentError {
	return &ComponentError{Component: component, Action: action, Err: err}
}

func (e *ComponentError) Error() string {
	if e == nil {
		return ""
	}
	parts := []string{e.Component}
	if e.Action != "" {
		parts = append(parts, e.Action)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *ComponentError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// wrapComponent is NewComponentError that keeps a nil err nil.
func wrapComponent(component, action string, err error) error {
	if err == nil {
		return nil
	}
	return NewComponentError(component, action, err)
}

// RecoveredPanicError is a panic inside a queued command. The stack is kept
// for the log and left out of Error, which reaches clients.
type RecoveredPanicError struct {
	Command string
	Value   any
	Stack   []byte
}

func (e *RecoveredPanicError) Error() string {
	if e == nil {
		return ""
	}
	if e.Command == "" {
		return fmt.Sprintf("panic: %v", e.Value)
	}
	return fmt.Sprintf("%s: panic: %v", e.Command, e.Value)
}

// ErrorList collects the errors of a teardown that must run every step.
// The zero value is ready to use; it is not safe for concurrent use.
type ErrorList struct {
	errs []error
}

// Add records err unless it is nil.
func (l *ErrorList) Add(err error) {
	if err != nil {
		l.errs = append(l.errs, err)
	}
}

// Len returns the number of recorded errors.
func (l *ErrorList) Len() int { return len(l.errs) }

// Errors returns a copy of the recorded errors, nil when there are none.
func (l *ErrorList) Errors() []error {
	if l == nil {
		return nil
	}
	return slices.Clone(l.errs)
}

// Err returns the list as an error, or nil when nothing was recorded.
func (l *ErrorList) Err() error {
	if l == nil || len(l.errs) == 0 {
		return nil
	}
	return l
}

func (l *ErrorList) Error() string {
	if l == nil {
		return ""
	}
	switch len(l.errs) {
	case 0:
		return ""
	case 1:
		return l.errs[0].Error()
	default:
		return fmt.Sprintf("%v (and %d more)", l.errs[0], len(l.errs)-1)
	}
}

// Unwrap lets errors.Is and errors.As search every recorded error.
func (l *ErrorList) Unwrap() []error { return l.Errors() }
