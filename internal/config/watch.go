package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce coalesces the event bursts editors produce when saving.
const debounce = 100 * time.Millisecond

// Watcher reloads the config file when it changes on disk. Only validated
// configs are delivered; a broken edit keeps the previous settings live.
type Watcher struct {
	// Updates carries freshly loaded configurations. Capacity one; a stale
	// undelivered update is replaced by a newer one.
	Updates chan *Config

	path string
	fw   *fsnotify.Watcher
	stop chan struct{}
}

// Watch begins watching the config file at path. Watching the parent
// directory rather than the file itself survives the rename-replace
// pattern editors use.
func Watch(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		Updates: make(chan *Config, 1),
		path:    path,
		fw:      fw,
		stop:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	var pending *time.Timer
	var pendingC <-chan time.Time

	base := filepath.Base(w.path)
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if pending == nil {
				pending = time.NewTimer(debounce)
				pendingC = pending.C
			} else {
				pending.Reset(debounce)
			}

		case <-pendingC:
			pending = nil
			pendingC = nil
			w.reload()

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)

		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		slog.Warn("config reload failed", "path", w.path, "error", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		slog.Warn("config reload rejected", "path", w.path, "error", err)
		return
	}
	// Drop a stale undelivered update in favor of this one.
	select {
	case <-w.Updates:
	default:
	}
	w.Updates <- cfg
	slog.Debug("config reloaded", "path", w.path)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.stop)
	return w.fw.Close()
}
