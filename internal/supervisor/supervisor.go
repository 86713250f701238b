// Package supervisor spawns and supervises the wrapped child process
// inside a pseudo-terminal.
package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
)

// ErrChildNotFound is returned when the child executable is not on PATH.
// Detected before any PTY is created, so there is no partial state to
// clean up.
var ErrChildNotFound = errors.New("executable not found in PATH")

// Child is a process running inside a PTY.
type Child struct {
	cmd  *exec.Cmd
	ptmx *os.File

	waitOnce sync.Once
	done     chan struct{}
	exitCode int
	waitErr  error
}

// Start resolves path on PATH and launches it under a new PTY sized to
// rows x cols, with the given arguments.
func Start(path string, args []string, rows, cols int) (*Child, error) {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", path, ErrChildNotFound)
	}

	cmd := exec.Command(resolved, args...)
	setSysProcAttr(cmd)

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return nil, fmt.Errorf("start %q in pty: %w", path, err)
	}

	c := &Child{
		cmd:  cmd,
		ptmx: ptmx,
		done: make(chan struct{}),
	}
	go c.reap()
	return c, nil
}

// reap collects the child's exit status as soon as it terminates.
func (c *Child) reap() {
	err := c.cmd.Wait()
	c.waitOnce.Do(func() {
		c.waitErr = err
		c.exitCode = 0
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			c.exitCode = exitErr.ExitCode()
		} else if err != nil {
			c.exitCode = 1
		}
		close(c.done)
	})
}

// PTY returns the master side of the child's pseudo-terminal.
func (c *Child) PTY() *os.File {
	return c.ptmx
}

// Done is closed when the child has exited.
func (c *Child) Done() <-chan struct{} {
	return c.done
}

// Alive reports whether the child is still running.
func (c *Child) Alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// ExitCode returns the child's exit code. Valid only after Done.
func (c *Child) ExitCode() int {
	<-c.done
	return c.exitCode
}

// Terminate asks the child to exit gracefully and kills it if it has not
// done so within timeout.
func (c *Child) Terminate(timeout time.Duration) {
	if !c.Alive() {
		return
	}
	terminateProcess(c.cmd.Process)
	select {
	case <-c.done:
	case <-time.After(timeout):
		c.cmd.Process.Kill()
		<-c.done
	}
}

// ClosePTY releases the PTY master. Call only after any pending approval
// write has finished.
func (c *Child) ClosePTY() error {
	return c.ptmx.Close()
}
