// Package approval owns the cancellable countdown between a detected
// permission prompt and the synthesized keystroke that answers it.
//
// At most one countdown is ever in flight. A detection for a different
// prompt supersedes a running countdown atomically; a detection for the
// same prompt is a no-op. Cancellation and immediate approval are signaled
// from the multiplexer goroutine via channels and take effect at the next
// select, never blocking the caller.
package approval

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alehatsman/claude-autoapprove/internal/detect"
	"github.com/alehatsman/claude-autoapprove/internal/limiter"
	"github.com/alehatsman/claude-autoapprove/internal/terminal"
)

// Renderer is the slice of the status bar the manager needs.
type Renderer interface {
	Draw(message string, style terminal.Style)
}

// settleDelay separates the "yes" text from the Enter that follows it, and
// gives the child a beat to be ready for input before any approval write.
const settleDelay = 100 * time.Millisecond

var carriageReturn = []byte("\r")

type phase int

const (
	phaseIdle phase = iota
	phaseRunning
)

// Manager runs the countdown state machine and performs the approval
// writes into the PTY.
type Manager struct {
	pty      io.Writer
	status   Renderer
	detector *detect.Detector
	limiter  *limiter.Limiter

	// writeMu serializes approval writes into the PTY. It is never held
	// together with mu, so control calls stay non-blocking while a write
	// sits in its settle sleeps.
	writeMu sync.Mutex

	mu               sync.Mutex
	phase            phase
	gen              uint64
	fingerprint      detect.Fingerprint
	buffer           string
	cancelRequested  bool
	approveRequested bool
	cancelCh         chan struct{}
	approveCh        chan struct{}
	done             chan struct{}
	approvals        int
}

// NewManager wires the manager to its collaborators. pty is the write side
// of the child's pseudo-terminal.
func NewManager(pty io.Writer, status Renderer, detector *detect.Detector, lim *limiter.Limiter) *Manager {
	return &Manager{
		pty:      pty,
		status:   status,
		detector: detector,
		limiter:  lim,
	}
}

// Start begins a countdown of delay seconds for the prompt captured in
// buffer. It returns true if a countdown was started, false when the rate
// limiter refused, or when the same prompt already has a countdown in
// flight. A running countdown for a different prompt is cancelled and
// replaced in the same critical section.
func (m *Manager) Start(buffer string, delay int) bool {
	fp := detect.FingerprintOf(buffer)

	allowed, reason := m.limiter.Check(fp)
	if !allowed {
		slog.Warn("auto-approve refused", "reason", reason)
		m.status.Draw("⚠  "+reason, terminal.StyleError)
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == phaseRunning {
		if fp == m.fingerprint {
			return false
		}
		slog.Debug("superseding countdown for new prompt", "fingerprint", fp.String())
		if !m.cancelRequested {
			m.cancelRequested = true
			close(m.cancelCh)
		}
	}

	m.gen++
	m.phase = phaseRunning
	m.fingerprint = fp
	m.buffer = buffer
	m.cancelRequested = false
	m.approveRequested = false
	m.cancelCh = make(chan struct{})
	m.approveCh = make(chan struct{})
	m.done = make(chan struct{})

	m.limiter.Record(fp)

	go m.run(m.gen, buffer, delay, m.cancelCh, m.approveCh, m.done)
	return true
}

// run executes one countdown in its own goroutine.
func (m *Manager) run(gen uint64, buffer string, delay int, cancel, approveNow, done chan struct{}) {
	defer close(done)

	immediate := false
loop:
	for i := delay; i > 0; i-- {
		m.status.Draw(
			fmt.Sprintf("⏱  Auto-approving in %ds... (Enter=approve now, any key=cancel, Ctrl+A=toggle off)", i),
			terminal.StyleWarn)
		select {
		case <-approveNow:
			immediate = true
			break loop
		case <-cancel:
			m.finishCancelled(gen)
			return
		case <-time.After(time.Second):
		}
	}
	m.approve(gen, buffer, immediate)
}

// approve performs the final transition and the PTY write. The decision is
// made under mu; the write itself happens under writeMu only, so cancel
// and status queries from the multiplexer never wait on the settle sleeps.
func (m *Manager) approve(gen uint64, buffer string, immediate bool) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	if m.cancelRequested {
		m.phase = phaseIdle
		m.mu.Unlock()
		m.status.Draw("✗ Auto-approve cancelled", terminal.StyleMuted)
		return
	}
	m.approvals++
	count := m.approvals
	m.mu.Unlock()

	kind := m.detector.PromptKind(buffer)
	m.writeMu.Lock()
	m.writeApproval(kind)
	m.writeMu.Unlock()

	m.mu.Lock()
	if m.gen == gen {
		m.phase = phaseIdle
	}
	m.mu.Unlock()

	slog.Debug("approval sent", "count", count, "kind", string(kind), "immediate", immediate)
	if immediate {
		m.status.Draw(fmt.Sprintf("✓ Approved immediately (#%d)", count), terminal.StyleSuccess)
	} else {
		m.status.Draw(fmt.Sprintf("✓ Auto-approved (#%d)", count), terminal.StyleSuccess)
	}
}

func (m *Manager) finishCancelled(gen uint64) {
	m.mu.Lock()
	current := m.gen == gen
	if current {
		m.phase = phaseIdle
	}
	m.mu.Unlock()
	// A superseded run stays quiet; the replacing countdown owns the bar.
	if current {
		m.status.Draw("✗ Auto-approve cancelled", terminal.StyleMuted)
	}
}

// writeApproval synthesizes the keystrokes for kind. Caller holds writeMu.
func (m *Manager) writeApproval(kind detect.PromptKind) {
	time.Sleep(settleDelay)
	if kind == detect.KindNumberedMenu {
		if _, err := m.pty.Write(carriageReturn); err != nil {
			slog.Error("approval write failed", "error", err)
		}
		return
	}
	if _, err := m.pty.Write([]byte("yes")); err != nil {
		slog.Error("approval write failed", "error", err)
		return
	}
	time.Sleep(settleDelay)
	if _, err := m.pty.Write(carriageReturn); err != nil {
		slog.Error("approval write failed", "error", err)
	}
}

// IdleApprove is the lower-confidence fallback: it synthesizes the same
// keystrokes a completed countdown would, without a countdown and without
// loop accounting (the buffer never classified as a prompt, so there is no
// trusted fingerprint). Returns false if a countdown is in flight.
func (m *Manager) IdleApprove(buffer string) (count int, ok bool) {
	m.mu.Lock()
	if m.phase == phaseRunning {
		m.mu.Unlock()
		return 0, false
	}
	m.approvals++
	count = m.approvals
	m.mu.Unlock()

	kind := m.detector.PromptKind(buffer)
	m.writeMu.Lock()
	m.writeApproval(kind)
	m.writeMu.Unlock()

	m.limiter.RecordTimestamp()
	return count, true
}

// CancelCountdown requests cancellation of a running countdown. It only
// sets a signal and never blocks; safe from any goroutine.
func (m *Manager) CancelCountdown() {
	m.mu.Lock()
	if m.phase == phaseRunning && !m.cancelRequested {
		m.cancelRequested = true
		close(m.cancelCh)
	}
	m.mu.Unlock()
}

// ApproveNow short-circuits a running countdown's remaining wait.
func (m *Manager) ApproveNow() {
	m.mu.Lock()
	if m.phase == phaseRunning && !m.approveRequested {
		m.approveRequested = true
		close(m.approveCh)
	}
	m.mu.Unlock()
}

// IsRunning reports whether a countdown is in flight.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase == phaseRunning
}

// Approvals returns the number of approvals executed this session.
func (m *Manager) Approvals() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.approvals
}

// WaitIdle blocks until the current countdown goroutine finishes, or the
// timeout elapses. Used during shutdown so the PTY is not closed under an
// in-flight approval write.
func (m *Manager) WaitIdle(timeout time.Duration) bool {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done == nil {
		return true
	}
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
