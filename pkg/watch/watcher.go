// Package watch wraps fsnotify for the context manager: recursive directory
// registration, event debouncing, and explicit surfacing of watch overflow so
// the owner can recover with a full refresh instead of reconciling an unknown
// set of missed events.
package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op classifies a file event.
type Op uint8

const (
	OpCreate Op = iota
	OpModify
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpRemove:
		return "remove"
	}
	return "unknown"
}

// Event is a debounced file-system event.
type Event struct {
	Path string
	Op   Op
}

// Watcher monitors a directory tree for changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	root      string
	debounce  time.Duration

	// ShouldSkipDir, if set, prunes directories from registration.
	ShouldSkipDir func(path string) bool

	onEvent    func(Event)
	onOverflow func()

	mu      sync.Mutex
	pending map[string]pendingEvent
}

type pendingEvent struct {
	op   Op
	seen time.Time
}

// NewWatcher creates a watcher for the tree rooted at root.
func NewWatcher(root string, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		fsWatcher: fsWatcher,
		root:      root,
		debounce:  debounce,
		pending:   make(map[string]pendingEvent),
	}, nil
}

// OnEvent sets the debounced event callback.
func (w *Watcher) OnEvent(cb func(Event)) { w.onEvent = cb }

// OnOverflow sets the callback invoked when the OS event stream overflowed
// and events were dropped.
func (w *Watcher) OnOverflow(cb func()) { w.onOverflow = cb }

// register walks the tree and adds every non-skipped directory.
func (w *Watcher) register() error {
	return filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if w.ShouldSkipDir != nil && path != w.root && w.ShouldSkipDir(path) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

// Start begins watching and blocks until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.register(); err != nil {
		return err
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return w.fsWatcher.Close()

		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handle(ev)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) && w.onOverflow != nil {
				w.onOverflow()
			}

		case <-ticker.C:
			w.flush()
		}
	}
}

// Close stops the watcher immediately; the subscription is cancelled.
func (w *Watcher) Close() error {
	return w.fsWatcher.Close()
}

func classify(ev fsnotify.Event) (Op, bool) {
	switch {
	case ev.Has(fsnotify.Create):
		return OpCreate, true
	case ev.Has(fsnotify.Write):
		return OpModify, true
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return OpRemove, true
	}
	return 0, false
}

func (w *Watcher) handle(ev fsnotify.Event) {
	op, ok := classify(ev)
	if !ok {
		return
	}

	// Newly created directories join the watch set.
	if op == OpCreate {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if w.ShouldSkipDir == nil || !w.ShouldSkipDir(ev.Name) {
				_ = w.fsWatcher.Add(ev.Name)
			}
			return
		}
	}

	w.mu.Lock()
	w.pending[ev.Name] = pendingEvent{op: op, seen: time.Now()}
	w.mu.Unlock()
}

// flush delivers pending events older than the debounce window.
func (w *Watcher) flush() {
	if w.onEvent == nil {
		return
	}
	now := time.Now()
	var ready []Event

	w.mu.Lock()
	for path, pe := range w.pending {
		if now.Sub(pe.seen) >= w.debounce {
			ready = append(ready, Event{Path: path, Op: pe.op})
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, ev := range ready {
		w.onEvent(ev)
	}
}
