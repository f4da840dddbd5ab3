package config

import (
	"os"
	"sync"

	"github.com/dshills/pterminal/internal/config/loader"
	"github.com/dshills/pterminal/internal/config/watcher"
	"github.com/dshills/pterminal/internal/logging"
)

// Reloader re-reads the config file when it changes and hands each good
// version to the registered callbacks. A file that fails to parse keeps the
// previous config in effect.
type Reloader struct {
	mu      sync.RWMutex
	path    string
	current *Config
	loader  *loader.Loader
	watcher *watcher.Watcher
	logger  *logging.Logger

	onReload []func(*Config)
	onError  []func(error)
}

// NewReloader watches path. cfg is the config currently in effect.
func NewReloader(path string, cfg *Config, logger *logging.Logger, opts ...watcher.Option) (*Reloader, error) {
	w, err := watcher.New(opts...)
	if err != nil {
		return nil, err
	}
	r := &Reloader{
		path:    path,
		current: cfg,
		loader:  loader.New(),
		watcher: w,
		logger:  logging.OrNop(logger).WithComponent("config"),
	}
	if err := w.Watch(path); err != nil {
		w.Close()
		return nil, err
	}
	w.OnChange(r.handle)
	w.OnError(func(err error) {
		r.logger.Warn("config watcher error", "err", err)
	})
	return r, nil
}

// OnReload registers a callback for each successfully reloaded config.
func (r *Reloader) OnReload(fn func(*Config)) {
	r.mu.Lock()
	r.onReload = append(r.onReload, fn)
	r.mu.Unlock()
}

// OnError registers a callback for reload failures.
func (r *Reloader) OnError(fn func(error)) {
	r.mu.Lock()
	r.onError = append(r.onError, fn)
	r.mu.Unlock()
}

// Current returns the config in effect.
func (r *Reloader) Current() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Close stops watching.
func (r *Reloader) Close() error {
	return r.watcher.Close()
}

// Reload re-reads the file now.
func (r *Reloader) Reload() error {
	cfg, err := LoadFile(r.loader, r.path)
	if err == nil {
		ApplyEnv(cfg, os.LookupEnv)
		err = cfg.Validate()
	}

	r.mu.Lock()
	if err == nil {
		r.current = cfg
	}
	reload := append([]func(*Config){}, r.onReload...)
	errs := append([]func(error){}, r.onError...)
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("config reload failed; keeping previous config", "path", r.path, "err", err)
		for _, fn := range errs {
			fn(err)
		}
		return err
	}
	r.logger.Info("config reloaded", "path", r.path)
	for _, fn := range reload {
		fn(cfg)
	}
	return nil
}

func (r *Reloader) handle(ev watcher.Event) {
	if ev.Op == watcher.OpRemove {
		r.logger.Debug("config file went away", "path", ev.Path, "op", ev.Op.String())
		return
	}
	_ = r.Reload()
}
