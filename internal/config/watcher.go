package config

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher notices external edits to the config file on disk and invokes
// onChange with the reloaded config primitives. It never watches the hub
// list — that is admin-API-owned (spec.md §6) — only the primitives
// FromJSON decodes from the same document.
type Watcher struct {
	fsw      *fsnotify.Watcher
	path     string
	onChange func(Config)
	logger   *zap.Logger
}

// NewWatcher starts watching the directory containing path (fsnotify
// watches directories more reliably than bare files across editors that
// write-then-rename) and returns a Watcher ready to Run.
func NewWatcher(path string, onChange func(Config), logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{fsw: fsw, path: path, onChange: onChange, logger: logger}, nil
}

// Run blocks, reloading config on every write/create event targeting the
// watched file, until Close is called.
func (w *Watcher) Run() {
	absPath, _ := filepath.Abs(w.path)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			eventAbs, _ := filepath.Abs(event.Name)
			if eventAbs != absPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			raw, err := os.ReadFile(w.path)
			if err != nil {
				w.logger.Warn("config watcher: failed to read config file", zap.Error(err))
				continue
			}
			w.onChange(FromDocument(raw))
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
