//go:build unix

package supervisor

import (
	"os"
	"os/exec"
	"syscall"
)

// setSysProcAttr leaves the attributes alone on unix. Starting the child
// under a PTY already puts it in its own session and process group, which
// isolates it from terminal signals aimed at the wrapper; requesting
// Setpgid on top of that fails with EPERM because the child is a session
// leader.
func setSysProcAttr(cmd *exec.Cmd) {
}

// terminateProcess sends SIGTERM, falling back to SIGKILL when the signal
// cannot be delivered.
func terminateProcess(p *os.Process) {
	if err := p.Signal(syscall.SIGTERM); err != nil {
		p.Kill()
	}
}
