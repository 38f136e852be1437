package registry

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultWatchDebounce coalesces bursts of editor writes into one reload.
const DefaultWatchDebounce = 250 * time.Millisecond

// Watcher reloads a registry when its alias file changes on disk.
type Watcher struct {
	reg      *Registry
	path     string
	debounce time.Duration
	logger   zerolog.Logger
	onReload func(error)
}

// NewWatcher creates a watcher for path. The parent directory is watched so
// atomic-rename saves are observed.
func NewWatcher(reg *Registry, path string, logger zerolog.Logger) *Watcher {
	return &Watcher{
		reg:      reg,
		path:     filepath.Clean(path),
		debounce: DefaultWatchDebounce,
		logger:   logger.With().Str("component", "registry.watcher").Logger(),
	}
}

// OnReload registers a callback invoked after every reload attempt.
func (w *Watcher) OnReload(fn func(error)) *Watcher {
	w.onReload = fn
	return w
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.logger.Info().Str("path", w.path).Msg("registry.Watcher.Run watching")

	var pending <-chan time.Time
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("registry.Watcher.Run watcher error")
		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	err := w.reg.Reload()
	if err != nil {
		w.logger.Warn().Err(err).Str("path", w.path).Msg("registry.Watcher.reload failed, keeping previous table")
	} else {
		w.logger.Info().Str("path", w.path).Int("aliases", w.reg.Len()).Msg("registry.Watcher.reload ok")
	}
	if w.onReload != nil {
		w.onReload(err)
	}
}
