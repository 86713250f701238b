package detect

import (
	"regexp"

	"github.com/charmbracelet/x/ansi"
)

// cursorSeq matches CSI sequences that move, erase, or save/restore the
// cursor (A-G moves, H/f positioning, J/K erase, s/u save/restore). These
// separate words visually, so they become a space instead of vanishing.
var cursorSeq = regexp.MustCompile(`\x1b\[[0-9;]*[ABCDEFGHJKfsu]`)

var spaceRun = regexp.MustCompile(` +`)

// Normalize strips terminal control sequences from text. Cursor-movement
// and erase sequences are replaced with a single space so that visually
// separated words do not get glued together; everything else (SGR colors,
// OSC titles, DCS payloads) is removed outright. Runs of spaces collapse
// to one. Normalize is idempotent.
func Normalize(text string) string {
	text = cursorSeq.ReplaceAllString(text, " ")
	text = ansi.Strip(text)
	return spaceRun.ReplaceAllString(text, " ")
}
