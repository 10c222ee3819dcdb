package confloader

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/yndnr/quicksave-go/internal/telemetry/logger"
)

// Event describes one filesystem change seen by the Watcher.
type Event struct {
	Path string
	Op   string
}

// Watcher watches configuration files or directories for changes.
type Watcher struct {
	watcher   *fsnotify.Watcher
	callbacks []func(Event)
	files     map[string]bool
	mu        sync.RWMutex
	done      chan struct{}
	stopOnce  sync.Once
	logger    logger.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(l logger.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = l
	}
}

// NewWatcher creates a new file watcher.
func NewWatcher(opts ...WatcherOption) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	watcher := &Watcher{
		watcher: w,
		files:   make(map[string]bool),
		done:    make(chan struct{}),
		logger:  logger.Default(),
	}

	for _, opt := range opts {
		opt(watcher)
	}

	return watcher, nil
}

// Watch adds a single file. Its directory is watched so editor-style
// renames are caught, and only events for the file itself are delivered.
func (w *Watcher) Watch(path string) error {
	dir := filepath.Dir(path)
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Error("failed to watch directory", "path", dir, "error", err)
		return err
	}
	w.mu.Lock()
	w.files[filepath.Clean(path)] = true
	w.mu.Unlock()
	w.logger.Debug("watching file for changes", "path", dir, "file", filepath.Base(path))
	return nil
}

// WatchDir adds a directory; every event inside it is delivered.
func (w *Watcher) WatchDir(dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Error("failed to watch directory", "path", dir, "error", err)
		return err
	}
	w.mu.Lock()
	w.files[filepath.Clean(dir)+string(filepath.Separator)] = true
	w.mu.Unlock()
	w.logger.Debug("watching directory for changes", "path", dir)
	return nil
}

// OnChange registers a callback invoked with each relevant event.
func (w *Watcher) OnChange(callback func(Event)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start starts watching for changes.
// This function blocks until Stop() is called.
func (w *Watcher) Start() {
	w.logger.Debug("file watcher started")

	for {
		select {
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
			w.notifyCallbacks(Event{Path: event.Name, Op: event.Op.String()})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// StartAsync starts watching in a goroutine.
func (w *Watcher) StartAsync() {
	go w.Start()
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		if err != nil {
			w.logger.Error("failed to close watcher", "error", err)
		}
	})
	return err
}

func (w *Watcher) relevant(name string) bool {
	name = filepath.Clean(name)
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.files[name] {
		return true
	}
	return w.files[filepath.Dir(name)+string(filepath.Separator)]
}

func (w *Watcher) notifyCallbacks(ev Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, cb := range w.callbacks {
		cb(ev)
	}
}
