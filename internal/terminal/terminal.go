package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/dshills/pterminal/internal/ids"
	"github.com/dshills/pterminal/internal/logging"
)

const readBufferSize = 8192

// Terminal is one pane's runtime: a child process on a PTY, its grid and
// the goroutines moving bytes between them.
//
// Four goroutines run per terminal: the reader copies PTY output into the
// output channel, the parser applies it to the grid, the writer drains the
// input queue into the PTY and the waiter observes process exit.
type Terminal struct {
	id ids.Pane

	pty  PTY
	proc Process

	grid   *Grid
	parser *Parser
	input  *inputQueue
	output chan []byte

	logger *logging.Logger

	// exited is closed when the child exits; done when every goroutine has
	// stopped.
	exited   chan struct{}
	done     chan struct{}
	exitCode atomic.Int32
	closed   atomic.Bool

	faultMu sync.Mutex
	fault   error

	wg        sync.WaitGroup
	closeOnce sync.Once

	onEvent func(ids.Pane, Event)
	onExit  func(ids.Pane, int)
}

// Options configures a new terminal.
type Options struct {
	// Shell is the shell executable (defaults to $SHELL or /bin/sh).
	Shell string

	// Args are the shell's arguments.
	Args []string

	// Env are additional environment variables.
	Env []string

	// WorkDir is the working directory for the shell.
	WorkDir string

	// Cols is the number of columns (default 80).
	Cols int

	// Rows is the number of rows (default 24).
	Rows int

	// Scrollback is the number of scrollback lines (default 10000).
	Scrollback int

	// Logger receives parser and I/O diagnostics.
	Logger *logging.Logger

	// OnEvent is called from the parser goroutine for title, bell and
	// notification events. It must not block.
	OnEvent func(ids.Pane, Event)

	// OnExit is called once after the child has exited and the terminal's
	// goroutines have stopped.
	OnExit func(ids.Pane, int)
}

func (o *Options) applyDefaults() {
	if o.Shell == "" {
		o.Shell = os.Getenv("SHELL")
		if o.Shell == "" {
			o.Shell = "/bin/sh"
		}
	}
	if o.Cols <= 0 {
		o.Cols = 80
	}
	if o.Rows <= 0 {
		o.Rows = 24
	}
	if o.Scrollback <= 0 {
		o.Scrollback = 10000
	}
}

// Spawn starts a shell on a new PTY and returns its terminal.
func Spawn(id ids.Pane, opts Options) (*Terminal, error) {
	opts.applyDefaults()

	if _, err := exec.LookPath(opts.Shell); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrShellNotFound, opts.Shell)
	}

	cmd := exec.Command(opts.Shell, opts.Args...)
	cmd.Dir = opts.WorkDir
	cmd.Env = append(os.Environ(), opts.Env...)
	cmd.Env = append(cmd.Env,
		"TERM=xterm-256color",
		"COLORTERM=truecolor",
		"PTERMINAL_PANE_ID="+id.String(),
	)

	p, proc, err := StartPTY(cmd, uint16(opts.Cols), uint16(opts.Rows))
	if err != nil {
		return nil, fmt.Errorf("start PTY: %w", err)
	}
	return Attach(id, p, proc, opts), nil
}

// Attach wires a started PTY and process into a running terminal.
func Attach(id ids.Pane, p PTY, proc Process, opts Options) *Terminal {
	opts.applyDefaults()

	grid := NewGrid(opts.Cols, opts.Rows, opts.Scrollback)
	t := &Terminal{
		id:      id,
		pty:     p,
		proc:    proc,
		grid:    grid,
		parser:  NewParser(grid),
		input:   newInputQueue(maxPendingInput),
		output:  make(chan []byte, 64),
		logger:  logging.OrNop(opts.Logger).WithField("pane", id.String()),
		exited:  make(chan struct{}),
		done:    make(chan struct{}),
		onEvent: opts.OnEvent,
		onExit:  opts.OnExit,
	}
	t.exitCode.Store(-1)

	t.parser.SetEventCallback(func(ev Event) {
		if t.onEvent != nil {
			t.onEvent(t.id, ev)
		}
	})
	t.parser.SetReplyCallback(func(b []byte) {
		if err := t.input.push(b); err != nil {
			t.logger.Debug("dropped terminal reply", "err", err)
		}
	})
	t.parser.SetUnknownCallback(func(seq string) {
		t.logger.Debug("unsupported sequence", "seq", seq)
	})

	t.wg.Add(3)
	go t.readLoop()
	go t.parseLoop()
	go t.writeLoop()
	go t.waitLoop()

	return t
}

// ID returns the pane id.
func (t *Terminal) ID() ids.Pane {
	return t.id
}

// Grid returns the terminal's grid.
func (t *Terminal) Grid() *Grid {
	return t.grid
}

// Write enqueues input for the child. It never blocks.
func (t *Terminal) Write(data []byte) error {
	if !t.Alive() {
		return ErrTerminalClosed
	}
	return t.input.push(data)
}

// WriteString enqueues a string.
func (t *Terminal) WriteString(s string) error {
	return t.Write([]byte(s))
}

// Paste enqueues data as a paste, wrapped in bracketed paste markers when
// the child enabled mode 2004.
func (t *Terminal) Paste(data []byte) error {
	if !t.grid.Modes().BracketedPaste {
		return t.Write(data)
	}
	buf := make([]byte, 0, len(data)+12)
	buf = append(buf, "\x1b[200~"...)
	buf = append(buf, data...)
	buf = append(buf, "\x1b[201~"...)
	return t.Write(buf)
}

// SendKeys encodes keys and enqueues the result, honoring application
// cursor mode. It returns the number of bytes queued.
func (t *Terminal) SendKeys(keys []string) (int, error) {
	data, err := EncodeKeys(keys, t.grid.Modes().AppCursor)
	if err != nil {
		return 0, err
	}
	if err := t.Write(data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// PendingInput returns the number of queued input chunks.
func (t *Terminal) PendingInput() int {
	return t.input.len()
}

// Resize changes the terminal size. The grid is resized first so the next
// parsed chunk sees the new bounds; the PTY is notified afterwards.
func (t *Terminal) Resize(cols, rows int) error {
	if t.closed.Load() {
		return ErrTerminalClosed
	}
	if cols < 1 || rows < 1 || cols > 0xFFFF || rows > 0xFFFF {
		return ErrInvalidSize
	}

	curCols, curRows := t.grid.Size()
	if curCols == cols && curRows == rows {
		return nil
	}
	t.grid.Resize(cols, rows)

	if t.Exited() {
		return nil
	}
	if err := t.pty.Resize(uint16(cols), uint16(rows)); err != nil {
		return fmt.Errorf("resize PTY: %w", err)
	}
	return nil
}

// Close kills the child and waits for the terminal's goroutines to stop.
func (t *Terminal) Close() error {
	if t.closed.Swap(true) {
		<-t.done
		return nil
	}
	if err := t.proc.Kill(); err != nil {
		t.logger.Warn("kill child", "err", err)
	}
	// Grandchildren may still hold the slave side open.
	t.closePTY()
	<-t.done
	return nil
}

func (t *Terminal) closePTY() {
	t.closeOnce.Do(func() {
		t.input.close()
		if err := t.pty.Close(); err != nil {
			t.logger.Debug("close PTY", "err", err)
		}
	})
}

// Done returns a channel that is closed when the terminal has fully stopped.
func (t *Terminal) Done() <-chan struct{} {
	return t.done
}

// Exited reports whether the child process has exited.
func (t *Terminal) Exited() bool {
	select {
	case <-t.exited:
		return true
	default:
		return false
	}
}

// Alive reports whether the terminal is running and not closed. A pane
// whose PTY failed is dead even before its child has been reaped.
func (t *Terminal) Alive() bool {
	return !t.closed.Load() && !t.Exited() && t.Fault() == nil
}

// ExitCode returns the exit code after the child exits, or -1.
func (t *Terminal) ExitCode() int {
	return int(t.exitCode.Load())
}

// Fault returns the I/O error that stopped the terminal, if any.
func (t *Terminal) Fault() error {
	t.faultMu.Lock()
	defer t.faultMu.Unlock()
	return t.fault
}

func (t *Terminal) setFault(err error) bool {
	t.faultMu.Lock()
	defer t.faultMu.Unlock()
	if t.fault != nil {
		return false
	}
	t.fault = err
	return true
}

// fail records a fatal PTY error and kills the child. The waiter then
// tears the terminal down and reports the exit, as for a normal exit.
func (t *Terminal) fail(err error) {
	if t.closed.Load() || t.Exited() || !t.setFault(err) {
		return
	}
	t.logger.Warn("PTY failed, stopping pane", "err", err)
	if kerr := t.proc.Kill(); kerr != nil {
		t.logger.Debug("kill child", "err", kerr)
	}
	t.closePTY()
}

// hangup reports whether err is the normal end of PTY output. Linux
// reports EIO on the master once every slave descriptor is closed.
func hangup(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, syscall.EIO)
}

// PID returns the child's process id.
func (t *Terminal) PID() int {
	return t.proc.Pid()
}

// Title returns the title set by the child.
func (t *Terminal) Title() string {
	return t.grid.Title()
}

// WorkingDirectory returns the directory reported by the child.
func (t *Terminal) WorkingDirectory() string {
	return t.grid.WorkingDirectory()
}

// Capture returns the grid as text.
func (t *Terminal) Capture(opts CaptureOptions) string {
	return t.grid.Text(opts)
}

// readLoop copies PTY output into the output channel.
func (t *Terminal) readLoop() {
	defer t.wg.Done()
	defer close(t.output)

	buf := make([]byte, readBufferSize)
	for {
		n, err := t.pty.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case t.output <- chunk:
			case <-t.exited:
				return
			}
		}
		if err != nil {
			if hangup(err) {
				t.logger.Debug("PTY read ended", "err", err)
			} else {
				t.fail(fmt.Errorf("read PTY: %w", err))
			}
			return
		}
	}
}

// parseLoop applies output chunks to the grid in arrival order. Once the
// child has exited, pending chunks are discarded.
func (t *Terminal) parseLoop() {
	defer t.wg.Done()
	for {
		select {
		case <-t.exited:
			return
		default:
		}

		select {
		case chunk, ok := <-t.output:
			if !ok {
				return
			}
			select {
			case <-t.exited:
				return
			default:
			}
			t.parser.Parse(chunk)
		case <-t.exited:
			return
		}
	}
}

// writeLoop drains the input queue into the PTY.
func (t *Terminal) writeLoop() {
	defer t.wg.Done()
	for {
		chunk, ok := t.input.pop()
		if !ok {
			return
		}
		for len(chunk) > 0 {
			n, err := t.pty.Write(chunk)
			if err != nil {
				t.fail(fmt.Errorf("write PTY: %w", err))
				return
			}
			chunk = chunk[n:]
		}
	}
}

// waitLoop waits for the child, then tears the terminal down.
func (t *Terminal) waitLoop() {
	code, err := t.proc.Wait()
	if err != nil {
		t.setFault(fmt.Errorf("wait child: %w", err))
		t.logger.Warn("wait child", "err", err)
	}
	t.exitCode.Store(int32(code))
	close(t.exited)

	t.closePTY()
	t.wg.Wait()
	close(t.done)

	t.logger.Debug("terminal exited", "code", code)
	if t.onExit != nil {
		t.onExit(t.id, code)
	}
}
