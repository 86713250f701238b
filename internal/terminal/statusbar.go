package terminal

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"
)

// Style hints for status bar messages.
type Style int

const (
	StyleInfo Style = iota
	StyleSuccess
	StyleWarn
	StyleError
	StyleMuted
)

var styleFor = map[Style]lipgloss.Style{
	StyleInfo:    lipgloss.NewStyle(),
	StyleSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	StyleWarn:    lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	StyleError:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	StyleMuted:   lipgloss.NewStyle().Faint(true),
}

var borderStyle = lipgloss.NewStyle().Faint(true)

// repaintAfter is how long the last drawn message stays on screen before
// the periodic ready-line repaint may overwrite it.
const repaintAfter = 2 * time.Second

// StatusBar draws single-line messages in the reserved rows below the
// scrolling region. Drawing goes to stderr and brackets itself with
// cursor save/restore, so it never disturbs the child's screen.
type StatusBar struct {
	term  *Terminal
	pid   int
	plain bool

	mu       sync.Mutex
	lastDraw time.Time
}

// NewStatusBar creates a status bar for t. Color is disabled when the
// terminal advertises no color support.
func NewStatusBar(t *Terminal) *StatusBar {
	return &StatusBar{
		term:  t,
		pid:   os.Getpid(),
		plain: termenv.ColorProfile() == termenv.Ascii,
	}
}

// Draw renders message in the status bar area with the given style.
// Safe to call from both the multiplexer loop and the countdown goroutine.
func (s *StatusBar) Draw(message string, style Style) {
	g := s.term.Geometry()
	if !g.ShowStatus {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDraw = time.Now()

	if runewidth.StringWidth(message) > g.Cols {
		message = truncate.StringWithTail(message, uint(g.Cols), "…")
	}

	var b strings.Builder
	b.WriteString("\x1b7") // save cursor

	// Clear the status rows.
	for row := g.StatusRow; row <= g.Rows; row++ {
		fmt.Fprintf(&b, "\x1b[%d;1H\x1b[K", row)
	}

	// Border, then the message on the next line when there is room for one.
	fmt.Fprintf(&b, "\x1b[%d;1H", g.StatusRow)
	messageRow := g.StatusRow
	if g.Rows > g.StatusRow {
		b.WriteString(s.render(borderStyle, strings.Repeat("─", g.Cols)))
		messageRow = g.StatusRow + 1
	}
	fmt.Fprintf(&b, "\x1b[%d;1H", messageRow)
	b.WriteString(s.render(styleFor[style], message))

	b.WriteString("\x1b8") // restore cursor
	fmt.Fprint(s.term.errOut, b.String())
}

func (s *StatusBar) render(style lipgloss.Style, text string) string {
	if s.plain {
		return text
	}
	return style.Render(text)
}

// Clear replaces whatever is displayed with the idle ready line.
func (s *StatusBar) Clear(enabled bool, approvals int) {
	if !enabled {
		s.Draw(fmt.Sprintf("[PID %d] Ready (auto-approve OFF) [Ctrl+A to toggle]", s.pid), StyleMuted)
		return
	}
	if approvals > 0 {
		s.Draw(fmt.Sprintf("[PID %d] Ready (auto-approve ON, %d executed) [Ctrl+A to toggle]", s.pid, approvals), StyleMuted)
		return
	}
	s.Draw(fmt.Sprintf("[PID %d] Ready (auto-approve ON) [Ctrl+A to toggle]", s.pid), StyleMuted)
}

// RepaintReady redraws the ready line, but only once the last explicit
// message has been visible for a while. The multiplexer calls this on its
// tick so child redraws do not permanently wipe the bar.
func (s *StatusBar) RepaintReady(enabled bool, approvals int) {
	s.mu.Lock()
	stale := time.Since(s.lastDraw) >= repaintAfter
	s.mu.Unlock()
	if stale {
		s.Clear(enabled, approvals)
	}
}
