package core

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher reloads the render config when its file changes on disk.
type ConfigWatcher struct {
	path     string
	fsnotify *fsnotify.Watcher
	onChange func(*RenderConfig)

	mu      sync.Mutex
	current *RenderConfig
	closed  bool
}

func NewConfigWatcher(path string, current *RenderConfig, onChange func(*RenderConfig)) (*ConfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Editors replace files instead of writing them, so watch the directory.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}
	return &ConfigWatcher{
		path:     filepath.Clean(path),
		fsnotify: w,
		onChange: onChange,
		current:  current,
	}, nil
}

// Run blocks until ctx is cancelled or Close is called.
func (cw *ConfigWatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return cw.Close()
		case e, ok := <-cw.fsnotify.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(e.Name) != cw.path {
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			cw.reload()
		case err, ok := <-cw.fsnotify.Errors:
			if !ok {
				return nil
			}
			LogError("config watcher: %s", err)
		}
	}
}

func (cw *ConfigWatcher) reload() {
	cfg, err := LoadConfig(cw.path)
	if err != nil {
		LogWarn("render config reload rejected: %s", err)
		return
	}
	cw.mu.Lock()
	cw.current = cfg
	cw.mu.Unlock()

	LogInfo("render config '%s' reloaded", cw.path)
	EventFire(EVENT_CODE_CONFIG_RELOADED, cw, EventContext{Payload: cfg})
	if cw.onChange != nil {
		cw.onChange(cfg)
	}
}

func (cw *ConfigWatcher) Current() *RenderConfig {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.current
}

func (cw *ConfigWatcher) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.closed {
		return errors.New("config watcher already closed")
	}
	cw.closed = true
	return cw.fsnotify.Close()
}
