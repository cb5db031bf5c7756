// Package filewatcher streams dataset file changes from a directory.
package filewatcher

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"kpiscout/ports"
)

// FSNotifyWatcher implements ports.FileWatcher using fsnotify. Bursts of
// events for one path are collapsed into a single event once the path has
// been quiet for the debounce interval.
type FSNotifyWatcher struct {
	watcher  *fsnotify.Watcher
	accept   func(name string) bool
	debounce time.Duration
	logger   *zap.Logger

	closeOnce sync.Once
}

// NewFSNotifyWatcher creates a watcher. accept filters file names (nil
// accepts everything); hidden files and Office lock files are always skipped.
func NewFSNotifyWatcher(accept func(name string) bool, debounce time.Duration, logger *zap.Logger) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if accept == nil {
		accept = func(string) bool { return true }
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FSNotifyWatcher{watcher: w, accept: accept, debounce: debounce, logger: logger}, nil
}

type pendingEvent struct {
	typ  ports.FileEventType
	seen time.Time
}

// Watch starts monitoring dir. The channel closes when ctx is done or the
// watcher is closed.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	events := make(chan ports.FileEvent, 100)
	go w.loop(ctx, events)
	return events, nil
}

func (w *FSNotifyWatcher) loop(ctx context.Context, events chan<- ports.FileEvent) {
	defer close(events)

	tick := w.debounce / 2
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	pending := map[string]pendingEvent{}
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.watched(event.Name) {
				continue
			}
			typ, ok := eventType(event.Op)
			if !ok {
				continue
			}
			if prev, exists := pending[event.Name]; exists && prev.typ == ports.FileCreated && typ == ports.FileModified {
				typ = ports.FileCreated
			}
			pending[event.Name] = pendingEvent{typ: typ, seen: time.Now()}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		case now := <-ticker.C:
			for path, p := range pending {
				if now.Sub(p.seen) < w.debounce {
					continue
				}
				delete(pending, path)
				select {
				case events <- ports.FileEvent{Path: path, Type: p.typ}:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// Close stops the watcher
func (w *FSNotifyWatcher) Close() error {
	var err error
	w.closeOnce.Do(func() { err = w.watcher.Close() })
	return err
}

func (w *FSNotifyWatcher) watched(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	return w.accept(base)
}

func eventType(op fsnotify.Op) (ports.FileEventType, bool) {
	switch {
	case op&fsnotify.Create == fsnotify.Create:
		return ports.FileCreated, true
	case op&fsnotify.Write == fsnotify.Write:
		return ports.FileModified, true
	case op&fsnotify.Remove == fsnotify.Remove, op&fsnotify.Rename == fsnotify.Rename:
		return ports.FileDeleted, true
	}
	return 0, false
}
