// Package limiter guards against runaway approval loops. It keeps two
// sliding 60-second windows: one of all approval timestamps (throughput)
// and one of (fingerprint, timestamp) pairs (same-prompt loop detection).
package limiter

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alehatsman/claude-autoapprove/internal/detect"
)

// Window is the sliding window over which approvals are counted.
const Window = 60 * time.Second

const (
	DefaultMaxSamePrompt = 5
	DefaultMaxPerMinute  = 500
)

// approvalRecord pairs a prompt fingerprint with the time its approval
// was initiated.
type approvalRecord struct {
	fingerprint detect.Fingerprint
	at          time.Time
}

// Stats summarizes recent limiter activity.
type Stats struct {
	TotalApprovals int
	UniquePrompts  int
}

// Limiter implements the two-phase check/record protocol: Check reports
// whether an approval may proceed, Record registers one that actually was
// initiated. Refused attempts are never recorded, so they do not inflate
// the windows.
type Limiter struct {
	mu            sync.Mutex
	maxSamePrompt int
	maxPerMinute  int
	timestamps    []time.Time
	records       []approvalRecord

	now func() time.Time // overridable for tests
}

// New creates a Limiter. Non-positive limits fall back to defaults.
func New(maxSamePrompt, maxPerMinute int) *Limiter {
	if maxSamePrompt <= 0 {
		maxSamePrompt = DefaultMaxSamePrompt
	}
	if maxPerMinute <= 0 {
		maxPerMinute = DefaultMaxPerMinute
	}
	return &Limiter{
		maxSamePrompt: maxSamePrompt,
		maxPerMinute:  maxPerMinute,
		timestamps:    make([]time.Time, 0),
		records:       make([]approvalRecord, 0),
		now:           time.Now,
	}
}

// purge drops entries older than the window. Caller holds mu.
func (l *Limiter) purge(now time.Time) {
	cutoff := now.Add(-Window)

	kept := l.timestamps[:0]
	for _, t := range l.timestamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.timestamps = kept

	keptRecords := l.records[:0]
	for _, r := range l.records {
		if r.at.After(cutoff) {
			keptRecords = append(keptRecords, r)
		}
	}
	l.records = keptRecords
}

// Check reports whether approving the prompt identified by fp is allowed.
// When refused, reason is a human-readable explanation suitable for the
// status bar. A refusal mutates nothing.
func (l *Limiter) Check(fp detect.Fingerprint) (allowed bool, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.purge(l.now())

	same := 0
	for _, r := range l.records {
		if r.fingerprint == fp {
			same++
		}
	}
	if same >= l.maxSamePrompt {
		reason = fmt.Sprintf("Same prompt approved %d times in 60s (max: %d)", same, l.maxSamePrompt)
		slog.Debug("same prompt loop detected", "fingerprint", fp.String(), "count", same)
		return false, reason
	}

	if len(l.timestamps) >= l.maxPerMinute {
		reason = fmt.Sprintf("Rate limit: %d approvals/min (max: %d)", len(l.timestamps), l.maxPerMinute)
		slog.Debug("global rate limit exceeded", "count", len(l.timestamps))
		return false, reason
	}

	return true, ""
}

// Record registers an initiated approval in both windows. Callers must
// only call it when an approval actually starts, not on mere detection.
func (l *Limiter) Record(fp detect.Fingerprint) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.timestamps = append(l.timestamps, now)
	l.records = append(l.records, approvalRecord{fingerprint: fp, at: now})
}

// RecordTimestamp registers an approval in the throughput window only.
// Used by the idle fallback, which approves without a classified prompt
// and therefore has no meaningful fingerprint to loop-count.
func (l *Limiter) RecordTimestamp() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.timestamps = append(l.timestamps, l.now())
}

// SetLimits replaces the limits at runtime. Existing window entries are
// kept; only the thresholds change.
func (l *Limiter) SetLimits(maxSamePrompt, maxPerMinute int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if maxSamePrompt > 0 {
		l.maxSamePrompt = maxSamePrompt
	}
	if maxPerMinute > 0 {
		l.maxPerMinute = maxPerMinute
	}
}

// Stats returns counts over the current window.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.purge(l.now())

	unique := make(map[detect.Fingerprint]struct{}, len(l.records))
	for _, r := range l.records {
		unique[r.fingerprint] = struct{}{}
	}
	return Stats{
		TotalApprovals: len(l.timestamps),
		UniquePrompts:  len(unique),
	}
}
