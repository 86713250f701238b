// Package wrapper runs the I/O multiplexer that sits between the user's
// terminal and the child process's PTY.
//
// One goroutine owns the event loop and is the only code that touches the
// output buffer, the detector, and the rate limiter. Two reader goroutines
// do nothing but read bytes and ship copies over channels into the loop.
// The countdown runs in its own goroutine inside the approval manager so a
// multi-second delay never blocks forwarding.
package wrapper

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/alehatsman/claude-autoapprove/internal/approval"
	"github.com/alehatsman/claude-autoapprove/internal/config"
	"github.com/alehatsman/claude-autoapprove/internal/detect"
	"github.com/alehatsman/claude-autoapprove/internal/limiter"
	"github.com/alehatsman/claude-autoapprove/internal/supervisor"
	"github.com/alehatsman/claude-autoapprove/internal/terminal"
)

const (
	// maxBufferSize bounds the output buffer; overflow drops the oldest
	// 20% so trailing context for classification survives.
	maxBufferSize = 10000
	// readSize is the per-read chunk size for both streams.
	readSize = 1024
	// minIdleBuffer is the minimum buffered content before the idle
	// fallback may fire.
	minIdleBuffer = 50
	// tickInterval drives idle detection and status repaints.
	tickInterval = 100 * time.Millisecond
	// reapGrace bounds how long a PTY read error waits for the reaper to
	// collect the child's exit status before the error counts as fatal.
	reapGrace = time.Second
)

// statusView is the slice of the status bar the multiplexer drives.
type statusView interface {
	Draw(message string, style terminal.Style)
	Clear(enabled bool, approvals int)
	RepaintReady(enabled bool, approvals int)
}

// Wrapper ties the detector, limiter, approval manager, and terminal
// together around one child process.
type Wrapper struct {
	cfg     *config.Config
	cfgPath string
	args    []string

	detector *detect.Detector
	limiter  *limiter.Limiter
	manager  *approval.Manager
	term     *terminal.Terminal
	status   statusView
	child    *supervisor.Child
	watcher  *config.Watcher

	// out receives the child's forwarded output; ptyIn receives forwarded
	// keystrokes. Run points them at the real descriptors.
	out   io.Writer
	ptyIn io.Writer

	enabled        bool
	delay          int
	toggleKey      byte
	buffer         string
	lastOutput     time.Time
	lastIdleAction time.Time
}

// New creates a wrapper for the given configuration. cfgPath is the config
// file to watch for live changes; empty disables watching. args are passed
// to the child verbatim.
func New(cfg *config.Config, cfgPath string, args []string) *Wrapper {
	return &Wrapper{
		cfg:       cfg,
		cfgPath:   cfgPath,
		args:      args,
		enabled:   cfg.AutoApproveEnabled,
		delay:     cfg.AutoApproveDelay,
		toggleKey: cfg.ToggleByte(),
	}
}

// Run starts the child and drives the session until the child exits, the
// session is torn down by a signal, or a descriptor fails. The returned
// code is the process exit code to propagate.
func (w *Wrapper) Run() (int, error) {
	if err := terminal.CheckInteractive(); err != nil {
		return 1, err
	}

	rows, cols := screenSize()
	child, err := supervisor.Start(w.cfg.ClaudePath, w.args, rows, cols)
	if err != nil {
		return 1, err
	}
	w.child = child

	w.term = terminal.New(child.PTY(), w.cfg.ShowStatusBar)
	w.status = terminal.NewStatusBar(w.term)
	w.out = os.Stdout
	w.ptyIn = child.PTY()
	w.detector = detect.New(detect.Options{
		MinScore:             w.cfg.MinDetectionScore,
		PermissionIndicators: w.cfg.Patterns.PermissionIndicators,
		TextInputPatterns:    w.cfg.Patterns.TextInputIndicators,
	})
	w.limiter = limiter.New(w.cfg.MaxSamePromptApprovals, w.cfg.MaxApprovalsPerMinute)
	w.manager = approval.NewManager(child.PTY(), w.status, w.detector, w.limiter)

	if err := w.term.MakeRaw(); err != nil {
		child.Terminate(5 * time.Second)
		child.ClosePTY()
		return 1, err
	}

	w.term.ClearScreen()
	if err := w.term.UpdateSize(); err != nil {
		slog.Warn("initial size sync failed", "error", err)
	}
	if w.cfg.ShowStatusBar {
		w.status.Clear(w.enabled, 0)
	}

	if w.cfgPath != "" {
		if watcher, err := config.Watch(w.cfgPath); err != nil {
			slog.Warn("config watching disabled", "error", err)
		} else {
			w.watcher = watcher
		}
	}

	code, err := w.loop()
	w.shutdown()
	return code, err
}

// readResult is a failed read, attributed to its stream.
type readResult struct {
	src string
	err error
}

// loop is the multiplexer. It is the sole reader of both streams' channels
// and the sole owner of the output buffer.
func (w *Wrapper) loop() (int, error) {
	stop := make(chan struct{})
	defer close(stop)

	stdinCh := make(chan []byte, 10)
	ptyCh := make(chan []byte, 10)
	errCh := make(chan readResult, 2)

	go readInto(os.Stdin, "stdin", stdinCh, errCh, stop)
	go readInto(w.child.PTY(), "pty", ptyCh, errCh, stop)

	resizeCh := make(chan os.Signal, 1)
	notifyResize(resizeCh)
	defer signal.Stop(resizeCh)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdownSignals()...)
	defer signal.Stop(sigCh)

	var updates chan *config.Config
	if w.watcher != nil {
		updates = w.watcher.Updates
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	w.lastOutput = time.Now()

	for {
		select {
		case <-w.child.Done():
			return w.child.ExitCode(), nil

		case data := <-stdinCh:
			if err := w.handleUserInput(data); err != nil {
				return 1, err
			}

		case data := <-ptyCh:
			if err := w.handleOutput(data); err != nil {
				return 1, err
			}

		case <-resizeCh:
			if err := w.term.UpdateSize(); err != nil {
				slog.Warn("resize sync failed", "error", err)
			}

		case sig := <-sigCh:
			slog.Info("shutting down on signal", "signal", sig.String())
			return signalExitCode(sig), nil

		case cfg := <-updates:
			w.applyReload(cfg)

		case r := <-errCh:
			if code, ok := w.handleReadError(r); ok {
				return code, nil
			}
			return 1, fmt.Errorf("%s: %w", r.src, r.err)

		case <-ticker.C:
			w.onTick()
		}
	}
}

// handleReadError decides whether a failed read ends the session cleanly.
// A dangling PTY read error is the normal way a closing slave side reports
// child exit, and it can arrive before the reaper has collected the exit
// status, so the child gets a bounded grace period before the error counts
// as fatal.
func (w *Wrapper) handleReadError(r readResult) (int, bool) {
	switch r.src {
	case "pty":
		select {
		case <-w.child.Done():
			return w.child.ExitCode(), true
		case <-time.After(reapGrace):
		}
	case "stdin":
		if errors.Is(r.err, io.EOF) {
			return 0, true
		}
	}
	return 0, false
}

// readInto ships fixed-size reads from f into ch until a read fails.
func readInto(f *os.File, src string, ch chan<- []byte, errCh chan<- readResult, stop <-chan struct{}) {
	buf := make([]byte, readSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case ch <- data:
			case <-stop:
				return
			}
		}
		if err != nil {
			select {
			case errCh <- readResult{src: src, err: err}:
			case <-stop:
			}
			return
		}
	}
}

// handleUserInput intercepts the two control inputs and forwards the rest.
func (w *Wrapper) handleUserInput(data []byte) error {
	// Enter during a countdown approves immediately and is not forwarded.
	if w.manager.IsRunning() && isEnterChunk(data) {
		w.manager.ApproveNow()
		return nil
	}

	if len(data) == 1 && data[0] == w.toggleKey {
		w.toggle()
		return nil
	}

	// Any other keystroke means the user is handling the prompt.
	if w.manager.IsRunning() {
		w.manager.CancelCountdown()
	}

	if _, err := w.ptyIn.Write(data); err != nil {
		return fmt.Errorf("forward input: %w", err)
	}
	return nil
}

// toggle flips detection on/off. Re-enabling re-examines the buffer so a
// prompt that arrived while detection was off is not missed.
func (w *Wrapper) toggle() {
	w.enabled = !w.enabled
	w.manager.CancelCountdown()

	if w.enabled {
		w.status.Draw("✓ Auto-approve ENABLED", terminal.StyleSuccess)
	} else {
		w.status.Draw("✗ Auto-approve DISABLED", terminal.StyleError)
	}
	slog.Debug("auto-approve toggled", "enabled", w.enabled)

	if w.enabled && w.buffer != "" && w.detector.IsPermissionPrompt(w.buffer) {
		if w.manager.Start(w.buffer, w.delay) {
			w.buffer = ""
		}
	}
}

// handleOutput forwards child output to the screen and feeds the
// classifier. Buffering happens regardless of the enabled flag so context
// survives a toggle.
func (w *Wrapper) handleOutput(data []byte) error {
	w.lastOutput = time.Now()

	if _, err := w.out.Write(data); err != nil {
		return fmt.Errorf("write to terminal: %w", err)
	}

	// Malformed byte sequences become replacement characters; a decode
	// problem is never fatal and the chunk still lands in the buffer.
	w.buffer = appendBounded(w.buffer, strings.ToValidUTF8(string(data), "�"), maxBufferSize)

	if w.enabled && w.detector.IsPermissionPrompt(w.buffer) {
		if w.manager.Start(w.buffer, w.delay) {
			w.buffer = ""
		}
	}
	return nil
}

// onTick runs the idle fallback and keeps the ready line visible.
func (w *Wrapper) onTick() {
	w.checkIdle()
	if !w.manager.IsRunning() {
		w.status.RepaintReady(w.enabled, w.manager.Approvals())
	}
}

// checkIdle fires the lower-confidence approval path: enough buffered
// content, no countdown, and silence past the idle timeout. It exists for
// prompts that render without re-triggering a read event in time or fail
// scoring at the threshold.
func (w *Wrapper) checkIdle() {
	if !w.cfg.IdleDetectionEnabled || !w.enabled || w.manager.IsRunning() {
		return
	}

	now := time.Now()
	timeout := w.cfg.IdleTimeout()
	if now.Sub(w.lastOutput) < timeout || now.Sub(w.lastIdleAction) < timeout {
		return
	}
	if len(w.buffer) <= minIdleBuffer {
		return
	}

	slog.Debug("idle fallback triggered", "silence", now.Sub(w.lastOutput), "buffer_len", len(w.buffer))
	w.status.Draw("⏱  Idle detected, auto-approving...", terminal.StyleWarn)

	if count, ok := w.manager.IdleApprove(w.buffer); ok {
		w.lastIdleAction = now
		w.buffer = ""
		w.status.Draw(fmt.Sprintf("✓ Auto-approved via idle detection (#%d)", count), terminal.StyleSuccess)
	}
}

// applyReload applies the runtime-safe subset of a reloaded config.
// Structural settings (toggle key, claude path, status bar) stay fixed for
// the session.
func (w *Wrapper) applyReload(cfg *config.Config) {
	w.delay = cfg.AutoApproveDelay
	w.cfg.IdleDetectionEnabled = cfg.IdleDetectionEnabled
	w.cfg.IdleTimeoutSeconds = cfg.IdleTimeoutSeconds
	w.limiter.SetLimits(cfg.MaxSamePromptApprovals, cfg.MaxApprovalsPerMinute)
	slog.Info("applied config reload",
		"delay", w.delay,
		"idle_enabled", cfg.IdleDetectionEnabled,
		"idle_timeout", cfg.IdleTimeoutSeconds)
}

// shutdown tears the session down in dependency order: stop the countdown
// before releasing the PTY, restore the terminal, then deal with the
// child.
func (w *Wrapper) shutdown() {
	w.manager.CancelCountdown()
	if !w.manager.WaitIdle(2 * time.Second) {
		slog.Warn("countdown did not stop before shutdown timeout")
	}

	if w.watcher != nil {
		w.watcher.Close()
	}

	w.term.ClearStatusArea()
	w.term.ResetScrollRegion()
	w.term.Restore()

	w.child.Terminate(5 * time.Second)
	w.child.ClosePTY()
}

// isEnterChunk reports whether a read delivered exactly one Enter press.
func isEnterChunk(data []byte) bool {
	return bytes.Equal(data, []byte{'\r'}) || bytes.Equal(data, []byte{'\n'})
}

// appendBounded appends chunk to buf, trimming the oldest 20% of capacity
// once the buffer exceeds maxSize. The trim point advances to the next
// rune boundary so a multi-byte character is never split.
func appendBounded(buf, chunk string, maxSize int) string {
	buf += chunk
	if len(buf) <= maxSize {
		return buf
	}
	trim := maxSize / 5
	for trim < len(buf) && !utf8.RuneStart(buf[trim]) {
		trim++
	}
	return buf[trim:]
}
