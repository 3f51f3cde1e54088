package config

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Holder exposes the current configuration to long-running components.
// Swaps are atomic so readers never see a partially applied config.
type Holder struct {
	current atomic.Value // *Config
}

// NewHolder creates a holder seeded with cfg.
func NewHolder(cfg *Config) *Holder {
	h := &Holder{}
	h.current.Store(cfg)
	return h
}

// Get returns the current configuration.
func (h *Holder) Get() *Config {
	return h.current.Load().(*Config)
}

// Set replaces the current configuration.
func (h *Holder) Set(cfg *Config) {
	h.current.Store(cfg)
}

// Watcher reloads the config file on change and publishes the result
// through a Holder. Only persona and prompt sections take effect
// without a restart; the loop reads them fresh on each iteration.
type Watcher struct {
	loader *Loader
	holder *Holder
}

// NewWatcher creates a watcher for loader's config path.
func NewWatcher(loader *Loader, holder *Holder) *Watcher {
	return &Watcher{loader: loader, holder: holder}
}

// Run watches the config file until ctx is cancelled. A missing file is
// tolerated; the directory is watched so the file can appear later.
func (w *Watcher) Run(ctx context.Context) error {
	configPath, err := w.loader.Path()
	if err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(configPath)); err != nil {
		return err
	}

	// Editors often emit several events per save. Debounce before
	// reloading so a half-written file is not parsed.
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Name != configPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(250 * time.Millisecond)
		case <-pending:
			pending = nil
			cfg, err := w.loader.Load()
			if err != nil {
				log.Warn().Err(err).Msg("Config reload failed, keeping previous config")
				continue
			}
			w.holder.Set(cfg)
			log.Info().Str("path", configPath).Msg("Config reloaded")
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Config watcher error")
		}
	}
}
