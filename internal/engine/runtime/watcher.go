package runtime

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// Reloader is implemented by Manager.
type Reloader interface {
	Reload(ctx context.Context) error
}

// ConfigWatcher reloads the engines when a configuration source changes.
// It watches the parent directory of each file source so editors that
// replace files atomically are still seen.
type ConfigWatcher struct {
	watcher  *fsnotify.Watcher
	reloader Reloader
	debounce time.Duration
	logger   *slog.Logger

	files map[string]bool // watched file paths
	dirs  map[string]bool // watched source directories

	trigger  chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	running bool
}

// NewConfigWatcher creates a watcher over the given sources. Sources may be
// files or directories. A debounce of zero uses the default.
func NewConfigWatcher(sources []string, reloader Reloader, debounce time.Duration, logger *slog.Logger) (*ConfigWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	cw := &ConfigWatcher{
		watcher:  w,
		reloader: reloader,
		debounce: debounce,
		logger:   logger,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	watched := make(map[string]bool)
	for _, src := range sources {
		src = strings.TrimSpace(src)
		if src == "" {
			continue
		}
		abs, err := filepath.Abs(src)
		if err != nil {
			continue
		}

		dir := filepath.Dir(abs)
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			dir = abs
			cw.dirs[abs] = true
		} else {
			cw.files[abs] = true
		}

		if watched[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			logger.Warn("cannot watch engine config", "path", dir, "error", err)
			continue
		}
		watched[dir] = true
	}

	return cw, nil
}

// Start runs the watch loops until ctx is done or Stop is called.
func (w *ConfigWatcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
}

// Stop ends watching. It is safe to call more than once.
func (w *ConfigWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()

		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	})
}

// relevant reports whether an event path belongs to a configured source.
func (w *ConfigWatcher) relevant(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if w.files[abs] {
		return true
	}
	if !w.dirs[filepath.Dir(abs)] {
		return false
	}
	ext := strings.ToLower(filepath.Ext(abs))
	return ext == ".yaml" || ext == ".yml"
}

func (w *ConfigWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}
			w.logger.Debug("engine config changed", "path", event.Name, "op", event.Op.String())
			select {
			case w.trigger <- struct{}{}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

// debounceLoop collapses bursts of changes into one reload.
func (w *ConfigWatcher) debounceLoop(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-w.trigger:
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			if err := w.reloader.Reload(ctx); err != nil {
				w.logger.Error("engine reload after config change failed", "error", err)
				continue
			}
			w.logger.Info("engines reloaded after config change")
		}
	}
}
