package app

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dshills/pterminal/internal/ids"
)

// commandQueueSize bounds commands waiting for the next frame boundary.
const commandQueueSize = 1024

// command is a structural edit applied by the main loop between frames.
type command struct {
	name   string
	ctx    context.Context
	run    func() (any, error)
	queued time.Time
	reply  chan commandResult
}

type commandResult struct {
	value any
	err   error
}

// commandQueue is a FIFO of commands. Submitters never block on the main
// loop; the loop drains everything queued at each frame boundary.
type commandQueue struct {
	ch   chan *command
	done chan struct{}
}

func newCommandQueue() *commandQueue {
	return &commandQueue{
		ch:   make(chan *command, commandQueueSize),
		done: make(chan struct{}),
	}
}

// post enqueues cmd without waiting for it.
func (q *commandQueue) post(cmd *command) error {
	select {
	case <-q.done:
		return ErrNotRunning
	default:
	}
	select {
	case q.ch <- cmd:
		return nil
	default:
		return ErrCommandQueueFull
	}
}

// stop fails every queued and future command with ErrNotRunning.
func (q *commandQueue) stop() {
	select {
	case <-q.done:
		return
	default:
	}
	close(q.done)
	for {
		select {
		case cmd := <-q.ch:
			cmd.finish(nil, ErrNotRunning)
		default:
			return
		}
	}
}

func (c *command) finish(v any, err error) {
	if c.reply != nil {
		c.reply <- commandResult{value: v, err: err}
	}
}

// execute runs cmd on the calling goroutine unless its caller has already
// given up. It reports whether the command ran.
func (c *command) execute(m *Metrics) (ran bool) {
	if c.ctx != nil && c.ctx.Err() != nil {
		m.RecordCommandExpired()
		c.finish(nil, c.ctx.Err())
		return false
	}
	m.RecordCommand(time.Since(c.queued))

	defer func() {
		if p := recover(); p != nil {
			c.finish(nil, &RecoveredPanicError{Command: c.name, Value: p, Stack: debug.Stack()})
			ran = true
		}
	}()
	v, err := c.run()
	c.finish(v, err)
	return true
}

// exec queues fn for the main loop and waits for its result. The wait is
// bounded by ctx and by the configured request timeout.
func (app *Application) exec(ctx context.Context, name string, fn func() (any, error)) (any, error) {
	app.mu.RLock()
	timeout := app.requestTimeout
	app.mu.RUnlock()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := &command{
		name:   name,
		ctx:    ctx,
		run:    fn,
		queued: time.Now(),
		reply:  make(chan commandResult, 1),
	}
	if err := app.commands.post(cmd); err != nil {
		return nil, NewOperationError(name, "", err)
	}

	select {
	case res := <-cmd.reply:
		var perr *RecoveredPanicError
		if errors.As(res.err, &perr) {
			app.logger.Error("command panicked", "command", name, "panic", perr.Value, "stack", string(perr.Stack))
		}
		return res.value, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", name, ctx.Err())
	}
}

// post queues fn for the main loop without waiting.
func (app *Application) post(name string, fn func()) {
	cmd := &command{
		name:   name,
		run:    func() (any, error) { fn(); return nil, nil },
		queued: time.Now(),
	}
	switch err := app.commands.post(cmd); {
	case errors.Is(err, ErrCommandQueueFull):
		app.logger.Warn("dropped internal command", "command", name, "err", err)
	case err != nil:
		app.logger.Debug("dropped internal command", "command", name, "err", err)
	}
}

// drainCommands applies every command queued so far.
func (app *Application) drainCommands() int {
	n := 0
	for {
		select {
		case cmd := <-app.commands.ch:
			if cmd.execute(app.metrics) {
				n++
			}
		default:
			return n
		}
	}
}

// exitQueue holds panes whose child exited until the main loop removes
// them. It has no bound, so a full command queue never loses an exit. The
// zero value is ready to use.
type exitQueue struct {
	mu    sync.Mutex
	panes []ids.Pane
	ready chan struct{}
}

// signal returns the channel that is readied after each push.
func (q *exitQueue) signal() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.readyLocked()
}

func (q *exitQueue) readyLocked() chan struct{} {
	if q.ready == nil {
		q.ready = make(chan struct{}, 1)
	}
	return q.ready
}

func (q *exitQueue) push(pane ids.Pane) {
	q.mu.Lock()
	q.panes = append(q.panes, pane)
	ready := q.readyLocked()
	q.mu.Unlock()

	select {
	case ready <- struct{}{}:
	default:
	}
}

// take returns and clears the pending panes in exit order.
func (q *exitQueue) take() []ids.Pane {
	q.mu.Lock()
	defer q.mu.Unlock()
	panes := q.panes
	q.panes = nil
	return panes
}

// drainExits removes every pane whose exit is pending.
func (app *Application) drainExits() int {
	panes := app.exits.take()
	for _, pane := range panes {
		app.removeExitedPane(pane)
	}
	return len(panes)
}
