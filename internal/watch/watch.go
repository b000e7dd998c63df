// Package watch reports debounced changes to script files and directories so
// that scripts can be re-run when they are edited.
//
// Files are watched through their parent directory, so editors that save by
// writing a temporary file and renaming it over the original are still seen.
// Changes arriving within the debounce delay of each other are delivered
// together as one batch, with the operations on each path merged.
package watch

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/luafs/internal/logging"
)

// Common errors returned by watcher operations.
var (
	ErrClosed       = errors.New("watcher is closed")
	ErrPathNotExist = errors.New("path does not exist")
)

// DefaultDelay is the debounce delay used when none is configured.
const DefaultDelay = 100 * time.Millisecond

// Op is a set of file system operations.
type Op uint32

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
)

// String returns a human-readable representation of the operation set.
func (op Op) String() string {
	names := []struct {
		op   Op
		name string
	}{
		{OpCreate, "CREATE"},
		{OpWrite, "WRITE"},
		{OpRemove, "REMOVE"},
		{OpRename, "RENAME"},
	}
	s := ""
	for _, n := range names {
		if op.Has(n.op) {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

// Has returns true if the operation includes the given op.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Event is one changed path and everything that happened to it during the
// debounce window.
type Event struct {
	Path string
	Op   Op
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDelay sets the debounce delay.
func WithDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithLogger sets the logger used for watcher errors.
func WithLogger(l *logging.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l.WithComponent("watch")
		}
	}
}

// Watcher delivers debounced batches of changes.
type Watcher struct {
	fsw    *fsnotify.Watcher
	delay  time.Duration
	logger *logging.Logger

	mu     sync.Mutex
	files  map[string]struct{} // individually watched files
	trees  map[string]struct{} // directories whose every entry is watched
	dirs   map[string]struct{} // directories registered with fsnotify
	closed bool

	batches  chan []Event
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// New creates a watcher and starts its event loop.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:     fsw,
		delay:   DefaultDelay,
		logger:  logging.Nop(),
		files:   make(map[string]struct{}),
		trees:   make(map[string]struct{}),
		dirs:    make(map[string]struct{}),
		batches: make(chan []Event, 1),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.closedWg.Add(1)
	go w.processLoop()

	return w, nil
}

// Add starts watching path. A directory reports changes to any of its
// immediate entries; a file reports only changes to itself.
func (w *Watcher) Add(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	dir := filepath.Dir(absPath)
	if info.IsDir() {
		dir = absPath
	}
	if _, ok := w.dirs[dir]; !ok {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
		w.dirs[dir] = struct{}{}
	}

	if info.IsDir() {
		w.trees[absPath] = struct{}{}
	} else {
		w.files[absPath] = struct{}{}
	}
	return nil
}

// Batches returns the channel of debounced changes. Each batch is sorted by
// path. The channel is closed by Close.
func (w *Watcher) Batches() <-chan []Event {
	return w.batches
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.closedWg.Wait()
	close(w.batches)

	return w.fsw.Close()
}

// processLoop collects fsnotify events until the debounce timer fires.
func (w *Watcher) processLoop() {
	defer w.closedWg.Done()

	pending := make(map[string]Op)
	timer := time.NewTimer(w.delay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.closeCh:
			return

		case fsEvent, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			op := convertOp(fsEvent.Op)
			if op == 0 || !w.matches(fsEvent.Name) {
				continue
			}
			pending[fsEvent.Name] |= op
			timer.Reset(w.delay)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error: %v", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := drain(pending)
			select {
			case w.batches <- batch:
			case <-w.closeCh:
				return
			}
		}
	}
}

func (w *Watcher) matches(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.files[name]; ok {
		return true
	}
	_, ok := w.trees[filepath.Dir(name)]
	return ok
}

// drain empties pending into a sorted batch.
func drain(pending map[string]Op) []Event {
	batch := make([]Event, 0, len(pending))
	for path, op := range pending {
		batch = append(batch, Event{Path: path, Op: op})
		delete(pending, path)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
	return batch
}

// convertOp converts fsnotify.Op to watch.Op. Chmod is ignored.
func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	return op
}
