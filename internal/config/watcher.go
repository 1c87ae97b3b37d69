package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/razy-dev/razy/internal/logging"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads the runtime configuration when the file changes and
// notifies subscribers. Route tables stay frozen across reloads; subscribers
// typically swap the site table only.
type Watcher struct {
	fs       *fsnotify.Watcher
	loader   *Loader
	path     string
	debounce time.Duration

	mu        sync.RWMutex
	current   *Config
	callbacks []func(*Config)
}

// NewWatcher creates a watcher and loads the initial configuration.
func NewWatcher(path string) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fs:       fs,
		loader:   NewLoader(),
		path:     path,
		debounce: defaultDebounce,
	}

	cfg, err := w.loader.Load(path)
	if err != nil {
		fs.Close()
		return nil, err
	}
	w.current = cfg
	return w, nil
}

// OnChange registers a callback invoked after each successful reload.
func (w *Watcher) OnChange(cb func(*Config)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, cb)
	w.mu.Unlock()
}

// Start begins watching. The parent directory is watched, not the file:
// editors and config management tools replace the file rather than writing
// in place.
func (w *Watcher) Start() error {
	if err := w.fs.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	var pending *time.Timer

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Collapse the burst of events a file replace produces.
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logging.Error("Config watcher error", zap.Error(err))
		}
	}
}

// reload parses and validates the file. A broken config keeps the last good
// one in place.
func (w *Watcher) reload() {
	cfg, err := w.loader.Load(w.path)
	if err != nil {
		logging.Error("Config reload failed, keeping previous", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = cfg
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	logging.Info("Configuration reloaded", zap.String("path", w.path))
	for _, cb := range callbacks {
		go cb(cfg)
	}
}

// GetConfig returns the last successfully loaded configuration.
func (w *Watcher) GetConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Stop closes the underlying filesystem watcher.
func (w *Watcher) Stop() error {
	return w.fs.Close()
}

// SetDebounce overrides the reload debounce window. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}
