package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"hypolab/internal/logging"
)

const defaultDebounce = 100 * time.Millisecond

// Watcher reloads a config file when it changes on disk and hands the
// validated result to a callback. Invalid edits are logged and skipped.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onReload func(*Config)

	mu         sync.Mutex
	lastChange time.Time
}

// NewWatcher watches the directory holding path so that editors replacing
// the file by rename are still seen.
func NewWatcher(path string, debounce time.Duration, onReload func(*Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return nil, err
	}
	dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	abs = filepath.Join(dir, filepath.Base(abs))
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{path: abs, watcher: w, debounce: debounce, onReload: onReload}, nil
}

// Run blocks until ctx is done, then closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) {
	log := logging.NewLogger("config-watcher")
	defer w.watcher.Close()
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 || filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !w.due() {
				continue
			}
			cfg, err := FromFile(w.path)
			if err != nil {
				log.WithError(err).Warn("ignoring invalid config change")
				continue
			}
			log.WithField("path", w.path).Info("config reloaded")
			if w.onReload != nil {
				w.onReload(cfg)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Error("watcher error")
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) due() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if time.Since(w.lastChange) < w.debounce {
		return false
	}
	w.lastChange = time.Now()
	return true
}
