package config

import (
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher watches a config file for writes and delivers a freshly parsed
// Config on each change. It never applies a reload itself — what happens
// with the new Config is up to the caller (cmd/sextsieve only logs it; the
// running miner keeps the configuration it started with).
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	path    string
}

// NewWatcher starts watching configPath's parent directory (editors
// typically rename-over-write, which fsnotify only sees as events on the
// containing directory, not the file itself).
func NewWatcher(configPath string, logger *zap.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := dirOf(configPath)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	return &Watcher{watcher: w, logger: logger, path: configPath}, nil
}

// Watch runs until the watcher is closed, calling onReload with a freshly
// loaded Config each time configPath itself changes. Parse errors are
// logged and skipped rather than delivered, so a transient bad edit never
// tears down the caller's loop.
func (w *Watcher) Watch(onReload func(*Config)) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Reload(w.path)
			if err != nil {
				w.logger.Warn("config reload failed, keeping previous config", zap.Error(err))
				continue
			}
			onReload(cfg)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
