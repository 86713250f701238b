package terminal

import (
	"bytes"
	"strings"
	"testing"
)

func newTestBar() (*StatusBar, *bytes.Buffer) {
	term := New(nil, true)
	out := &bytes.Buffer{}
	term.errOut = out
	bar := NewStatusBar(term)
	bar.plain = true // deterministic output regardless of the test env
	return bar, out
}

func TestDrawBracketsWithCursorSaveRestore(t *testing.T) {
	bar, out := newTestBar()

	bar.Draw("Auto-approving in 3s...", StyleWarn)

	s := out.String()
	if !strings.HasPrefix(s, "\x1b7") {
		t.Error("drawing must save the cursor first")
	}
	if !strings.HasSuffix(s, "\x1b8") {
		t.Error("drawing must restore the cursor last")
	}
	if !strings.Contains(s, "Auto-approving in 3s...") {
		t.Error("message missing from output")
	}
	if !strings.Contains(s, "─") {
		t.Error("border missing from output")
	}
}

func TestDrawTruncatesWideMessages(t *testing.T) {
	bar, out := newTestBar()

	bar.Draw(strings.Repeat("x", 500), StyleInfo)

	if strings.Contains(out.String(), strings.Repeat("x", 120)) {
		t.Error("message wider than the terminal should be truncated")
	}
	if !strings.Contains(out.String(), "…") {
		t.Error("truncation should leave an ellipsis tail")
	}
}

func TestDrawSkippedWhenStatusBarHidden(t *testing.T) {
	term := New(nil, false)
	out := &bytes.Buffer{}
	term.errOut = out
	bar := NewStatusBar(term)

	bar.Draw("hidden", StyleInfo)

	if out.Len() != 0 {
		t.Errorf("nothing should be drawn when the status bar is off, got %q", out.String())
	}
}

func TestClearShowsApprovalCount(t *testing.T) {
	bar, out := newTestBar()

	bar.Clear(true, 4)
	if !strings.Contains(out.String(), "4 executed") {
		t.Error("ready line should mention the approval count")
	}

	out.Reset()
	bar.Clear(false, 4)
	if !strings.Contains(out.String(), "OFF") {
		t.Error("ready line should reflect the disabled state")
	}
}

func TestRepaintReadyRespectsRecentDraw(t *testing.T) {
	bar, out := newTestBar()

	bar.Draw("fresh message", StyleSuccess)
	before := out.Len()

	bar.RepaintReady(true, 0)
	if out.Len() != before {
		t.Error("a fresh message must not be repainted over")
	}
}
