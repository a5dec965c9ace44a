package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/ZanzyTHEbar/virtual-discfs/vdfs/trees"
)

type watchEntry struct {
	path  string
	isDir bool
}

// FSNotifyWatcher implements trees.Monitor using fsnotify. Directories are
// watched for changes of their direct entries, files for changes of
// themselves. Renames are reported as a removal followed by an addition
// since fsnotify does not pair them.
type FSNotifyWatcher struct {
	watcher   *fsnotify.Watcher
	eventChan chan trees.MonitorEvent
	errorChan chan error
	debouncer *Debouncer
	config    WatcherConfig
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	byPath    map[string][]trees.Ref
	byRef     map[trees.Ref]watchEntry
	started   bool
	closed    bool
}

var _ trees.Monitor = (*FSNotifyWatcher)(nil)

// NewFSNotifyWatcher creates a new fsnotify-based watcher
func NewFSNotifyWatcher(config WatcherConfig) (*FSNotifyWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if config.QueueCapacity <= 0 {
		config.QueueCapacity = DefaultConfig().QueueCapacity
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &FSNotifyWatcher{
		watcher:   fsWatcher,
		eventChan: make(chan trees.MonitorEvent, config.QueueCapacity),
		errorChan: make(chan error, 10),
		config:    config,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		byPath:    make(map[string][]trees.Ref),
		byRef:     make(map[trees.Ref]watchEntry),
	}

	if config.DebounceDelay > 0 {
		w.debouncer = NewDebouncer(config.DebounceDelay, config.QueueCapacity)
	}

	return w, nil
}

// Start runs the event loop until ctx is done or Close is called.
func (w *FSNotifyWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("watcher closed")
	}

	if w.started {
		return nil
	}
	w.started = true

	w.cancel()
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.watchLoop(w.ctx)

	if w.debouncer != nil {
		w.wg.Add(1)
		go w.forwardDebounced(w.ctx)
	}

	w.logger.Info("fsnotify watcher started", "watched", len(w.byRef))
	return nil
}

// Watch starts reporting changes of uri under ref.
func (w *FSNotifyWatcher) Watch(ref trees.Ref, uri string, isDir bool) error {
	path, err := trees.URIPath(uri)
	if err != nil {
		return fmt.Errorf("cannot watch %s: %w", uri, err)
	}
	path = filepath.Clean(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("watcher closed")
	}

	if old, ok := w.byRef[ref]; ok {
		if old.path == path {
			return nil
		}
		w.unwatchLocked(ref)
	}

	if len(w.byPath[path]) == 0 {
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to add path %s: %w", path, err)
		}
	}
	w.byPath[path] = append(w.byPath[path], ref)
	w.byRef[ref] = watchEntry{path: path, isDir: isDir}
	w.logger.Debug("watching path", "path", path, "ref", ref.String(), "dir", isDir)
	return nil
}

// Unwatch stops reporting changes under ref.
func (w *FSNotifyWatcher) Unwatch(ref trees.Ref) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unwatchLocked(ref)
}

func (w *FSNotifyWatcher) unwatchLocked(ref trees.Ref) {
	entry, ok := w.byRef[ref]
	if !ok {
		return
	}
	delete(w.byRef, ref)

	refs := slices.DeleteFunc(w.byPath[entry.path], func(r trees.Ref) bool { return r == ref })
	if len(refs) > 0 {
		w.byPath[entry.path] = refs
		return
	}
	delete(w.byPath, entry.path)
	if w.closed {
		return
	}
	if err := w.watcher.Remove(entry.path); err != nil {
		// The path is usually already gone.
		w.logger.Debug("failed to remove path from watcher", "path", entry.path, "error", err)
	}
}

// Watched returns the number of watched refs.
func (w *FSNotifyWatcher) Watched() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.byRef)
}

// Events returns the event channel
func (w *FSNotifyWatcher) Events() <-chan trees.MonitorEvent {
	return w.eventChan
}

// Errors returns the error channel
func (w *FSNotifyWatcher) Errors() <-chan error {
	return w.errorChan
}

// Close stops watching and cleans up resources
func (w *FSNotifyWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.cancel()
	w.mu.Unlock()

	if w.debouncer != nil {
		w.debouncer.Close()
	}

	err := w.watcher.Close()
	if err != nil {
		w.logger.Warn("error closing fsnotify watcher", "error", err)
	}

	w.wg.Wait()

	close(w.eventChan)
	close(w.errorChan)

	w.logger.Info("fsnotify watcher closed")
	return err
}

// watchLoop is the main event processing loop
func (w *FSNotifyWatcher) watchLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			for _, e := range w.convertEvent(event) {
				w.dispatch(ctx, e)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}

			select {
			case w.errorChan <- err:
			case <-ctx.Done():
				return
			default:
				w.logger.Warn("error channel full, dropping error", "error", err)
			}
		}
	}
}

func (w *FSNotifyWatcher) dispatch(ctx context.Context, e trees.MonitorEvent) {
	if w.debouncer != nil {
		if e.Type == trees.FileModified {
			w.debouncer.Add(e)
			return
		}
		// A removal supersedes a pending modification.
		w.debouncer.Cancel(e.Ref, e.Name)
	}
	w.send(ctx, e)
}

func (w *FSNotifyWatcher) send(ctx context.Context, e trees.MonitorEvent) {
	select {
	case w.eventChan <- e:
	case <-ctx.Done():
	default:
		w.logger.Warn("event channel full, dropping event",
			"type", e.Type.String(), "ref", e.Ref.String(), "name", e.Name)
	}
}

// forwardDebounced moves settled modifications to the event channel.
func (w *FSNotifyWatcher) forwardDebounced(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-w.debouncer.Events():
			if !ok {
				return
			}
			w.send(ctx, e)
		}
	}
}

// convertEvent maps an fsnotify event to the refs it concerns. An entry of
// a watched directory is reported against the directory. A watched path
// whose parent is not watched reports against itself.
func (w *FSNotifyWatcher) convertEvent(event fsnotify.Event) []trees.MonitorEvent {
	var eventType trees.MonitorEventType

	switch {
	case event.Has(fsnotify.Create):
		eventType = trees.FileAdded
	case event.Has(fsnotify.Write):
		eventType = trees.FileModified
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		eventType = trees.FileRemoved
	default:
		return nil // chmod only
	}

	path := filepath.Clean(event.Name)

	w.mu.RLock()
	defer w.mu.RUnlock()

	if parents := w.dirRefs(filepath.Dir(path)); len(parents) > 0 && path != filepath.Dir(path) {
		name := filepath.Base(path)
		if eventType != trees.FileAdded {
			parents = parents[:1]
		}
		events := make([]trees.MonitorEvent, 0, len(parents))
		for _, ref := range parents {
			events = append(events, trees.MonitorEvent{Type: eventType, Ref: ref, Name: name})
		}
		return events
	}

	refs := w.byPath[path]
	if len(refs) == 0 || eventType == trees.FileAdded {
		return nil
	}
	if eventType == trees.FileModified && w.byRef[refs[0]].isDir {
		// Entries of the directory report against it by name.
		return nil
	}
	return []trees.MonitorEvent{{Type: eventType, Ref: refs[0]}}
}

func (w *FSNotifyWatcher) dirRefs(path string) []trees.Ref {
	var refs []trees.Ref
	for _, ref := range w.byPath[path] {
		if w.byRef[ref].isDir {
			refs = append(refs, ref)
		}
	}
	return refs
}
