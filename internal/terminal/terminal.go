// Package terminal owns the controlling terminal: raw mode, size
// propagation into the PTY, the scrolling region that keeps the child's
// output above the status bar, and the status bar itself.
package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/creack/pty"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// ErrNotATerminal is returned when stdin or stdout is not an interactive
// terminal. The wrapper refuses to start in that case, before any PTY is
// created.
var ErrNotATerminal = errors.New("controlling terminal is not interactive")

// Geometry is a snapshot of the terminal layout.
type Geometry struct {
	Rows        int
	Cols        int
	ContentRows int
	StatusRow   int
	ShowStatus  bool
}

// Terminal manages the controlling terminal's state and keeps the PTY's
// window size in sync with it.
type Terminal struct {
	ptmx *os.File
	out  *os.File
	// errOut receives status bar drawing; stderr by default so the child's
	// stdout stream is never interleaved with rendering.
	errOut io.Writer

	showStatus bool

	mu          sync.Mutex
	rows, cols  int
	contentRows int
	statusRow   int
	saved       *term.State
}

// New wraps the given PTY master. showStatus reserves rows at the bottom
// of the screen for the status bar.
func New(ptmx *os.File, showStatus bool) *Terminal {
	return &Terminal{
		ptmx:        ptmx,
		out:         os.Stdout,
		errOut:      os.Stderr,
		showStatus:  showStatus,
		rows:        24,
		cols:        80,
		contentRows: 22,
		statusRow:   23,
	}
}

// CheckInteractive verifies stdin and stdout are terminals. It requires no
// Terminal instance so it can run before the PTY exists.
func CheckInteractive() error {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return fmt.Errorf("stdin: %w", ErrNotATerminal)
	}
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return fmt.Errorf("stdout: %w", ErrNotATerminal)
	}
	return nil
}

// MakeRaw switches stdin to raw mode, saving the previous state for
// Restore.
func (t *Terminal) MakeRaw() error {
	saved, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("set raw mode: %w", err)
	}
	t.mu.Lock()
	t.saved = saved
	t.mu.Unlock()
	return nil
}

// Restore puts stdin back into its pre-MakeRaw state.
func (t *Terminal) Restore() {
	t.mu.Lock()
	saved := t.saved
	t.saved = nil
	t.mu.Unlock()
	if saved != nil {
		term.Restore(int(os.Stdin.Fd()), saved)
	}
}

// UpdateSize reads the current terminal dimensions, recomputes the content
// area and status bar row, pushes the size into the PTY, and re-applies
// the scrolling region. Called at startup and on every resize event.
func (t *Terminal) UpdateSize() error {
	if !isatty.IsTerminal(t.out.Fd()) {
		return nil
	}

	cols, rows, err := term.GetSize(int(t.out.Fd()))
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}

	statusHeight := 0
	if t.showStatus {
		statusHeight = 2
		if rows < 10 {
			statusHeight = 1
		}
	}

	t.mu.Lock()
	t.rows = rows
	t.cols = cols
	t.contentRows = max(1, rows-statusHeight)
	t.statusRow = t.contentRows + 1
	contentRows := t.contentRows
	t.mu.Unlock()

	if err := pty.Setsize(t.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}); err != nil {
		return fmt.Errorf("set pty size: %w", err)
	}

	if t.showStatus {
		fmt.Fprintf(t.out, "\x1b[1;%dr", contentRows)
	}
	return nil
}

// Geometry returns the current layout snapshot.
func (t *Terminal) Geometry() Geometry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Geometry{
		Rows:        t.rows,
		Cols:        t.cols,
		ContentRows: t.contentRows,
		StatusRow:   t.statusRow,
		ShowStatus:  t.showStatus,
	}
}

// ClearScreen clears the screen and homes the cursor.
func (t *Terminal) ClearScreen() {
	fmt.Fprint(t.out, "\x1b[2J\x1b[H")
}

// ResetScrollRegion restores the scrolling region to the full screen.
// Part of shutdown so the user's shell gets a sane terminal back.
func (t *Terminal) ResetScrollRegion() {
	fmt.Fprint(t.out, "\x1b[r")
}

// ClearStatusArea erases everything from the status bar row down.
func (t *Terminal) ClearStatusArea() {
	g := t.Geometry()
	fmt.Fprintf(t.errOut, "\x1b[%d;1H\x1b[J", g.StatusRow)
}
