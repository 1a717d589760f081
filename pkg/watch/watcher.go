// Package watch reloads the network when its source file changes on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dd0wney/sewertrace/pkg/logging"
)

// DefaultDebounce coalesces the burst of events an editor save produces
const DefaultDebounce = 200 * time.Millisecond

// ChangeHandler is called once per debounced burst of changes
type ChangeHandler func(ctx context.Context, path string) error

// Watcher watches one file through its parent directory, so that editors
// replacing the file by rename are still noticed.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	handler  ChangeHandler
	debounce time.Duration
	logger   logging.Logger
}

type Option func(*Watcher)

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

func WithLogger(l logging.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a watcher for path. Call Run to start delivering changes.
func New(path string, handler ChangeHandler, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:     abs,
		watcher:  fw,
		handler:  handler,
		debounce: DefaultDebounce,
		logger:   logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(logging.Component("watch"), logging.Path(abs))
	return w, nil
}

// Run delivers changes until ctx is done, then closes the watcher.
// Handler errors are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("file event", logging.String("op", event.Op.String()))
			timer.Reset(w.debounce)

		case <-timer.C:
			if err := w.handler(ctx, w.path); err != nil {
				w.logger.Error("reload failed", logging.Error(err))
				continue
			}
			w.logger.Info("network reloaded")

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", logging.Error(err))
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}
