//go:build unix

package wrapper

import (
	"errors"
	"testing"
	"time"

	"github.com/alehatsman/claude-autoapprove/internal/supervisor"
)

// A PTY read error can land in the loop before the reaper collects the
// child's status. The error must still resolve to the child's real exit
// code instead of a fatal session error.
func TestPTYReadErrorYieldsChildExitCode(t *testing.T) {
	child, err := supervisor.Start("sh", []string{"-c", "exit 7"}, 24, 80)
	if err != nil {
		t.Fatalf("start child: %v", err)
	}
	defer child.ClosePTY()

	w := &Wrapper{child: child}
	ptyErr := errors.New("read /dev/ptmx: input/output error")

	deadline := time.Now().Add(5 * time.Second)
	for {
		code, ok := w.handleReadError(readResult{src: "pty", err: ptyErr})
		if ok {
			if code != 7 {
				t.Fatalf("exit code = %d, want 7", code)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("read error never resolved to the child's exit")
		}
	}
}
