package terminal

import (
	"errors"
	"io"
	"os"
	"os/exec"

	"github.com/creack/pty"
)

// PTY represents the master side of a pseudo-terminal.
type PTY interface {
	io.ReadWriteCloser

	// Resize changes the PTY size.
	Resize(cols, rows uint16) error
}

// Process is the child attached to a PTY.
type Process interface {
	// Wait blocks until the process exits and returns its exit code.
	Wait() (int, error)

	// Kill terminates the process.
	Kill() error

	// Pid returns the process id, or -1.
	Pid() int
}

// StartPTY starts cmd attached to a new PTY of the given size.
func StartPTY(cmd *exec.Cmd, cols, rows uint16) (PTY, Process, error) {
	f, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		return nil, nil, err
	}
	return &ptyFile{file: f}, &cmdProcess{cmd: cmd}, nil
}

// ptyFile wraps the PTY master file.
type ptyFile struct {
	file *os.File
}

func (p *ptyFile) Read(buf []byte) (int, error) {
	return p.file.Read(buf)
}

func (p *ptyFile) Write(data []byte) (int, error) {
	return p.file.Write(data)
}

func (p *ptyFile) Resize(cols, rows uint16) error {
	return pty.Setsize(p.file, &pty.Winsize{Cols: cols, Rows: rows})
}

func (p *ptyFile) Close() error {
	return p.file.Close()
}

// cmdProcess adapts an exec.Cmd started by pty.
type cmdProcess struct {
	cmd *exec.Cmd
}

func (p *cmdProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	if p.cmd.ProcessState != nil {
		return p.cmd.ProcessState.ExitCode(), nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

func (p *cmdProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (p *cmdProcess) Pid() int {
	if p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}
