//go:build windows

package supervisor

import (
	"os"
	"os/exec"
)

// setSysProcAttr is a no-op on Windows, where PTY spawning is unsupported
// anyway; Start fails earlier with the pty package's unsupported error.
func setSysProcAttr(cmd *exec.Cmd) {
}

// terminateProcess sends the Ctrl+C equivalent, falling back to Kill.
func terminateProcess(p *os.Process) {
	if err := p.Signal(os.Interrupt); err != nil {
		p.Kill()
	}
}
