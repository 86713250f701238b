//go:build !unix

package wrapper

import (
	"os"

	"golang.org/x/term"
)

func notifyResize(ch chan<- os.Signal) {
	// No SIGWINCH outside unix; sizes refresh only at startup.
}

func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

func signalExitCode(os.Signal) int {
	return 1
}

func screenSize() (rows, cols int) {
	cols, rows, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 24, 80
	}
	return rows, cols
}
