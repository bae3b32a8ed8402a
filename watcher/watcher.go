package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultBufferSize bounds the events channel between fsnotify and the consumer.
const defaultBufferSize = 1024

// IgnoreChecker is used by the watcher to check if a path should be ignored.
type IgnoreChecker interface {
	ShouldIgnoreDir(absolutePath string) bool
	ShouldIgnore(absolutePath string) bool
}

// Options configures a Watcher.
type Options struct {
	Roots         []string
	IgnoreChecker IgnoreChecker
	BufferSize    int
	Logger        *slog.Logger
}

// Watcher provides recursive file system watching over one or more roots.
// Every non-ignored notification is forwarded as a RawEvent on Events().
type Watcher struct {
	fsWatcher     *fsnotify.Watcher
	ignoreChecker IgnoreChecker
	roots         []string
	events        chan RawEvent
	done          chan struct{}
	logger        *slog.Logger
	closeOnce     sync.Once
	now           func() time.Time
}

// NewWatcher creates a recursive watcher on every root in options.Roots.
// It registers all non-ignored subdirectories for watching.
func NewWatcher(options Options) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	bufferSize := options.BufferSize
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Watcher{
		fsWatcher:     fsWatcher,
		ignoreChecker: options.IgnoreChecker,
		roots:         options.Roots,
		events:        make(chan RawEvent, bufferSize),
		done:          make(chan struct{}),
		logger:        logger,
		now:           time.Now,
	}

	for _, root := range options.Roots {
		if _, err := os.Stat(root); err != nil {
			fsWatcher.Close()
			return nil, err
		}
		if err := w.addTree(root, false); err != nil {
			fsWatcher.Close()
			return nil, err
		}
	}

	return w, nil
}

// Roots returns the watched root directories.
func (w *Watcher) Roots() []string {
	return w.roots
}

// Events returns the channel that receives raw change events.
// It is closed when Start returns.
func (w *Watcher) Events() <-chan RawEvent {
	return w.events
}

// Start begins listening for file system events. Call this in a goroutine.
// It runs until the watcher is closed.
func (w *Watcher) Start() {
	defer close(w.events)
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// addTree walks dir and watches every non-ignored directory below it.
// When emit is set, entries found during the walk are reported as created:
// they may have appeared before the watch on dir was in place.
func (w *Watcher) addTree(dir string, emit bool) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Skip entries that can't be read
		}
		if !d.IsDir() {
			if emit && !w.ignored(path) {
				w.emit(path, Created)
			}
			return nil
		}
		if path != dir && w.ignoredDir(path) {
			return filepath.SkipDir
		}
		if watchErr := w.fsWatcher.Add(path); watchErr != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", watchErr)
		}
		if emit && path != dir {
			w.emit(path, Created)
		}
		return nil
	})
}

// handleEvent converts a single fsnotify event into a RawEvent.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	// A new directory needs its own watch, and anything already inside it
	// must be hinted because no events were seen for it.
	if event.Has(fsnotify.Create) {
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			if w.ignoredDir(path) {
				return
			}
			w.emit(path, Created)
			if err := w.addTree(path, true); err != nil {
				w.logger.Warn("failed to watch new directory", "path", path, "error", err)
			}
			return
		}
	}

	if w.ignored(path) {
		return
	}

	var kind Kind
	switch {
	case event.Has(fsnotify.Create):
		kind = Created
	case event.Has(fsnotify.Write), event.Has(fsnotify.Chmod):
		kind = Changed
	case event.Has(fsnotify.Remove):
		kind = Deleted
	case event.Has(fsnotify.Rename):
		// fsnotify reports only the old name; the new one arrives as Create.
		kind = RenamedFrom
	default:
		return
	}

	w.emit(path, kind)
}

func (w *Watcher) emit(path string, kind Kind) {
	w.logger.Debug("fs event", "path", path, "kind", kind)
	select {
	case w.events <- RawEvent{NativePath: path, Kind: kind, ObservedAt: w.now()}:
	case <-w.done:
	}
}

func (w *Watcher) ignored(path string) bool {
	return w.ignoreChecker != nil && w.ignoreChecker.ShouldIgnore(path)
}

func (w *Watcher) ignoredDir(path string) bool {
	return w.ignoreChecker != nil && w.ignoreChecker.ShouldIgnoreDir(path)
}

// Close stops the watcher and releases resources.
// A Start blocked on a full Events channel returns without delivering.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
	})
	return err
}
