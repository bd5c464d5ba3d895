// Package watch reports changes made to document files by other processes.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultIgnoreFor is how long a path stays muted after MarkWritten.
const DefaultIgnoreFor = 500 * time.Millisecond

// Op is the kind of change observed.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Event is a change to a watched document file.
type Event struct {
	Name string
	Path string
	Op   Op
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger for watcher errors.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithIgnoreFor sets how long MarkWritten mutes a path.
func WithIgnoreFor(d time.Duration) Option {
	return func(w *Watcher) { w.ignoreFor = d }
}

// Watcher watches the parent directories of registered files and emits an
// Event for each change to one of those files that was not made by this
// process.
type Watcher struct {
	fs        *fsnotify.Watcher
	logger    *slog.Logger
	ignoreFor time.Duration
	now       func() time.Time

	events chan Event
	wg     sync.WaitGroup

	mu      sync.Mutex
	targets map[string]string
	muted   map[string]time.Time
	running bool
	stopped bool
	cancel  context.CancelFunc
}

// New creates a Watcher. Register files with Add, then call Start.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	w := &Watcher{
		fs:        fsw,
		logger:    slog.Default(),
		ignoreFor: DefaultIgnoreFor,
		now:       time.Now,
		events:    make(chan Event, 64),
		targets:   make(map[string]string),
		muted:     make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Add registers path under name. The parent directory is created if needed
// so the watch can be placed before the file exists.
func (w *Watcher) Add(name, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.mu.Lock()
	w.targets[abs] = name
	w.mu.Unlock()
	return nil
}

// MarkWritten mutes events for path for the ignore window. It matches the
// signature of coalesce.WithBeforeWrite so the path is muted before the
// rename lands.
func (w *Watcher) MarkWritten(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	w.mu.Lock()
	w.muted[abs] = w.now().Add(w.ignoreFor)
	w.mu.Unlock()
}

// Unmute lifts a mute set by MarkWritten, for writes that never happened.
func (w *Watcher) Unmute(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	w.mu.Lock()
	delete(w.muted, abs)
	w.mu.Unlock()
}

// Start begins delivering events until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.stopped {
		return fmt.Errorf("watcher already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop releases the underlying watcher and closes the Events channel.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	cancel := w.cancel
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	err := w.fs.Close()
	w.wg.Wait()
	close(w.events)
	return err
}

// Events returns the channel of external changes. It is closed by Stop.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			out, ok := w.convert(ev)
			if !ok {
				continue
			}
			select {
			case w.events <- out:
			case <-ctx.Done():
				return
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) convert(ev fsnotify.Event) (Event, bool) {
	var op Op
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpWrite
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		op = OpRemove
	default:
		return Event{}, false
	}

	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return Event{}, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	name, ok := w.targets[abs]
	if !ok {
		return Event{}, false
	}
	if until, muted := w.muted[abs]; muted {
		if w.now().Before(until) {
			return Event{}, false
		}
		delete(w.muted, abs)
	}
	return Event{Name: name, Path: abs, Op: op}, true
}
