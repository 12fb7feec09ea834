// Package watcher signals when measurement files in data directories change.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/felixgeelhaar/scovctl/pkg/measurement"
)

// DefaultDebounce coalesces the burst of appends a test run produces.
const DefaultDebounce = 500 * time.Millisecond

type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger
}

// Option configures the watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce duration for file change events.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// New creates a new file watcher.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fsw,
		debounce: DefaultDebounce,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// WatchDir adds one data directory. Data directories are flat, so
// subdirectories are not followed. A missing directory yields an error
// wrapping fs.ErrNotExist.
func (w *Watcher) WatchDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return w.watcher.Add(dir)
}

// Events returns a channel that emits once per debounced burst of writes
// to measurement files. It is closed when ctx is done or the watcher is
// closed.
func (w *Watcher) Events(ctx context.Context) <-chan struct{} {
	out := make(chan struct{})

	go func() {
		defer close(out)

		var timer *time.Timer
		var timerCh <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !isWriteEvent(event.Op) || !isMeasurementFile(event.Name) {
					continue
				}

				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C

			case <-timerCh:
				select {
				case out <- struct{}{}:
				case <-ctx.Done():
					return
				}
				timerCh = nil

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watch error", slog.Any("error", err))
			}
		}
	}()

	return out
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func isWriteEvent(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) || op.Has(fsnotify.Create)
}

func isMeasurementFile(path string) bool {
	_, ok := measurement.ParseFileName(filepath.Base(path))
	return ok
}
