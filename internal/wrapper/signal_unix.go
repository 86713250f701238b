//go:build unix

package wrapper

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"
)

// notifyResize subscribes ch to terminal resize events.
func notifyResize(ch chan<- os.Signal) {
	signal.Notify(ch, syscall.SIGWINCH)
}

// shutdownSignals are the signals that end the session cleanly.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}
}

// signalExitCode maps a fatal signal to the conventional 128+signum code.
func signalExitCode(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return 128 + int(s)
	}
	return 1
}

// screenSize reads the controlling terminal's dimensions, falling back to
// 24x80 when they cannot be determined.
func screenSize() (rows, cols int) {
	cols, rows, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 24, 80
	}
	return rows, cols
}
