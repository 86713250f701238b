// Package logging configures the process-wide slog logger.
//
// Nothing may be logged to stdout or stderr while the wrapper runs: stdout
// carries the child's screen and stderr carries status bar rendering. In
// debug mode logs go to a per-PID file under the log directory; otherwise
// they are discarded.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Setup installs the default logger. The returned close function flushes
// and closes the log file; it is safe to call when debug is off.
func Setup(debug bool, dir string, retentionDays int) (func(), error) {
	if !debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})))
		return func() {}, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	if removed := CleanupOldLogs(dir, retentionDays); removed > 0 {
		// Logged after the handler is installed below.
		defer slog.Debug("removed old log files", "count", removed)
	}

	path := filepath.Join(dir, fmt.Sprintf("wrapper_%d.log", os.Getpid()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})))
	slog.Info("debug logging enabled", "file", path, "pid", os.Getpid())

	return func() { f.Close() }, nil
}

// CleanupOldLogs removes wrapper_*.log files older than maxAgeDays from
// dir and returns how many were deleted.
func CleanupOldLogs(dir string, maxAgeDays int) int {
	matches, err := filepath.Glob(filepath.Join(dir, "wrapper_*.log"))
	if err != nil {
		return 0
	}

	removed := 0
	maxAge := time.Duration(maxAgeDays) * 24 * time.Hour
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) > maxAge {
			if os.Remove(path) == nil {
				removed++
			}
		}
	}
	return removed
}
