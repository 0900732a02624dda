package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/fulopkrisztian-prog/Mia/internal/mood"
)

// Watcher reports when a configured model file changes on disk. Bursts of
// events for the same file are coalesced.
type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]mood.Category
	onChange func(mood.Category)
	debounce time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	timers map[mood.Category]*time.Timer
}

// NewWatcher watches the directories holding paths. Directories are watched
// instead of files so editors that replace files are still seen.
func NewWatcher(paths map[mood.Category]string, debounce time.Duration, onChange func(mood.Category), logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create asset watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		files:    make(map[string]mood.Category),
		onChange: onChange,
		debounce: debounce,
		log:      logger,
		timers:   make(map[mood.Category]*time.Timer),
	}

	dirs := make(map[string]bool)
	for cat, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		w.files[abs] = cat
		dirs[filepath.Dir(abs)] = true
	}
	for d := range dirs {
		if err := fw.Add(d); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", d, err)
		}
	}
	return w, nil
}

// Run dispatches change notifications until ctx ends or the watcher closes.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stopTimers()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if cat, ok := w.files[abs]; ok {
				w.trigger(cat)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("Asset watcher error")
		}
	}
}

func (w *Watcher) trigger(cat mood.Category) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[cat]; ok {
		t.Stop()
	}
	w.timers[cat] = time.AfterFunc(w.debounce, func() {
		w.log.Info().Str("category", string(cat)).Msg("Model asset changed")
		w.onChange(cat)
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for cat, t := range w.timers {
		t.Stop()
		delete(w.timers, cat)
	}
}

// Close stops the watcher
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
