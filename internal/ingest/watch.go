package ingest

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"

	"github.com/viniciushammett/go-log-stream-detector/internal/logger"
)

// Watcher turns fsnotify Write/Create events under root into wake-ups so the
// session can poll before its next tick. Wake-ups coalesce; polls stay the
// source of truth.
type Watcher struct {
	w     *fsnotify.Watcher
	match func(string) bool
	wake  chan struct{}
	log   *logger.Logger
}

func NewWatcher(root string, match func(string) bool, log *logger.Logger) (*Watcher, error) {
	if log == nil {
		log = logger.Nop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	if err := w.Add(root); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", root, err)
	}
	return &Watcher{w: w, match: match, wake: make(chan struct{}, 1), log: log}, nil
}

func (w *Watcher) C() <-chan struct{} { return w.wake }

// Run forwards events until ctx is done, then closes the fsnotify watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.w.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if w.match != nil && !w.match(ev.Name) {
				continue
			}
			select {
			case w.wake <- struct{}{}:
			default:
			}
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("fsnotify")
		}
	}
}
