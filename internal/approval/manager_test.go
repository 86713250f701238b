package approval

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alehatsman/claude-autoapprove/internal/detect"
	"github.com/alehatsman/claude-autoapprove/internal/limiter"
	"github.com/alehatsman/claude-autoapprove/internal/terminal"
)

// safeBuffer is a goroutine-safe stand-in for the PTY write side.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// recordingStatus captures status bar messages.
type recordingStatus struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingStatus) Draw(message string, _ terminal.Style) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func (r *recordingStatus) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return ""
	}
	return r.messages[len(r.messages)-1]
}

func newTestManager() (*Manager, *safeBuffer, *recordingStatus) {
	pty := &safeBuffer{}
	status := &recordingStatus{}
	m := NewManager(pty, status, detect.New(detect.Options{}), limiter.New(5, 500))
	return m, pty, status
}

const menuPrompt = "Do you want to create this file?\n1. Yes\n2. No"

func TestZeroDelayApprovesImmediately(t *testing.T) {
	m, pty, _ := newTestManager()

	require.True(t, m.Start(menuPrompt, 0))
	require.True(t, m.WaitIdle(2*time.Second))

	assert.Equal(t, "\r", pty.String())
	assert.Equal(t, 1, m.Approvals())
	assert.False(t, m.IsRunning())
}

func TestTextInputApprovalWritesYes(t *testing.T) {
	m, pty, _ := newTestManager()

	require.True(t, m.Start("Please type yes to continue", 0))
	require.True(t, m.WaitIdle(2*time.Second))

	assert.Equal(t, "yes\r", pty.String())
}

func TestCancelBeforeExpiryWritesNothing(t *testing.T) {
	m, pty, status := newTestManager()

	require.True(t, m.Start(menuPrompt, 3))
	m.CancelCountdown()
	require.True(t, m.WaitIdle(2*time.Second))

	assert.Empty(t, pty.String(), "cancelled countdown must write zero bytes")
	assert.Equal(t, 0, m.Approvals())
	assert.Contains(t, status.last(), "cancelled")
}

func TestApproveNowShortCircuitsDelay(t *testing.T) {
	m, pty, _ := newTestManager()

	start := time.Now()
	require.True(t, m.Start(menuPrompt, 10))
	m.ApproveNow()
	require.True(t, m.WaitIdle(3*time.Second))

	assert.Less(t, time.Since(start), 3*time.Second, "approve-now must beat the full delay")
	assert.Equal(t, "\r", pty.String())
	assert.Equal(t, 1, m.Approvals())
}

func TestSameFingerprintStartIsNoop(t *testing.T) {
	m, _, _ := newTestManager()

	require.True(t, m.Start(menuPrompt, 5))
	assert.False(t, m.Start(menuPrompt, 5), "same prompt must not restart the countdown")

	m.CancelCountdown()
	require.True(t, m.WaitIdle(2*time.Second))
}

func TestDistinctPromptSupersedes(t *testing.T) {
	m, pty, _ := newTestManager()

	require.True(t, m.Start(menuPrompt, 10))
	require.True(t, m.Start("Please type yes to continue", 0), "distinct prompt must supersede")
	require.True(t, m.WaitIdle(2*time.Second))

	// Give the superseded goroutine a moment to observe its cancel signal.
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, "yes\r", pty.String(), "only the superseding approval may write")
	assert.Equal(t, 1, m.Approvals())
	assert.False(t, m.IsRunning())
}

func TestLoopDetectionEndToEnd(t *testing.T) {
	m, pty, status := newTestManager()

	for i := 0; i < 5; i++ {
		require.True(t, m.Start(menuPrompt, 0), "approval %d should start", i+1)
		require.True(t, m.WaitIdle(2*time.Second))
	}

	assert.False(t, m.Start(menuPrompt, 0), "6th attempt must be refused")
	assert.Contains(t, status.last(), "Same prompt")
	assert.Equal(t, strings.Repeat("\r", 5), pty.String(), "no bytes beyond the 5th approval")
	assert.Equal(t, 5, m.Approvals())
}

func TestIdleApprove(t *testing.T) {
	m, pty, _ := newTestManager()

	count, ok := m.IdleApprove(menuPrompt)
	require.True(t, ok)
	assert.Equal(t, 1, count)
	assert.Equal(t, "\r", pty.String())
}

func TestIdleApproveRefusedWhileCountdownRuns(t *testing.T) {
	m, _, _ := newTestManager()

	require.True(t, m.Start(menuPrompt, 5))
	_, ok := m.IdleApprove(menuPrompt)
	assert.False(t, ok, "idle fallback must yield to a running countdown")

	m.CancelCountdown()
	require.True(t, m.WaitIdle(2*time.Second))
}

func TestCancelIsIdempotentAndNonBlocking(t *testing.T) {
	m, _, _ := newTestManager()

	// Cancelling with nothing running is a no-op.
	m.CancelCountdown()
	m.ApproveNow()

	require.True(t, m.Start(menuPrompt, 5))
	done := make(chan struct{})
	go func() {
		m.CancelCountdown()
		m.CancelCountdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("CancelCountdown blocked")
	}
	require.True(t, m.WaitIdle(2*time.Second))
}

func TestWaitIdleTimesOut(t *testing.T) {
	m, _, _ := newTestManager()

	require.True(t, m.Start(menuPrompt, 10))
	assert.False(t, m.WaitIdle(100*time.Millisecond))

	m.CancelCountdown()
	require.True(t, m.WaitIdle(2*time.Second))
}

func TestControlCallsDoNotBlockDuringApprovalWrite(t *testing.T) {
	m, pty, _ := newTestManager()

	// A text-input approval spends two settle delays inside the write.
	require.True(t, m.Start("Please type yes to continue", 0))
	time.Sleep(30 * time.Millisecond)

	start := time.Now()
	m.CancelCountdown()
	m.IsRunning()
	m.Approvals()
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 80*time.Millisecond, "control calls waited on the approval write")

	require.True(t, m.WaitIdle(2*time.Second))
	assert.Equal(t, "yes\r", pty.String())
}
