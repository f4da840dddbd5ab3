// Package watcher reports debounced changes to individual files.
//
// It watches the directories that hold the files rather than the files
// themselves, so a file replaced by rename (as most editors save) keeps
// being reported, and a file that does not exist yet is seen when created.
package watcher

import (
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrWatcherClosed is returned by Watch after Close.
var ErrWatcherClosed = errors.New("watcher closed")

// DefaultDebounce coalesces the burst of events one save produces.
const DefaultDebounce = 100 * time.Millisecond

// Op is the net effect of a burst of changes to one file.
type Op uint8

const (
	OpWrite Op = iota + 1
	OpCreate
	OpRemove // removed or renamed away
)

func (op Op) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	}
	return "unknown"
}

// Event is one debounced change.
type Event struct {
	Path string // absolute
	Op   Op
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a change is reported. Zero
// reports every event immediately.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// Watcher reports changes to the files passed to Watch.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration

	mu       sync.Mutex
	onChange func(Event)
	onError  func(error)
	files    map[string]struct{}
	dirs     map[string]struct{}
	pending  map[string]*pending
	closed   bool

	wg sync.WaitGroup
}

type pending struct {
	op    Op
	timer *time.Timer
}

// New starts a watcher with no files.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:      fsw,
		debounce: DefaultDebounce,
		files:    make(map[string]struct{}),
		dirs:     make(map[string]struct{}),
		pending:  make(map[string]*pending),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// OnChange sets the change callback. It runs on the watcher's goroutines.
func (w *Watcher) OnChange(fn func(Event)) {
	w.mu.Lock()
	w.onChange = fn
	w.mu.Unlock()
}

// OnError sets the callback for errors reported by the OS.
func (w *Watcher) OnError(fn func(error)) {
	w.mu.Lock()
	w.onError = fn
	w.mu.Unlock()
}

// Watch adds path. Its directory must exist; the file need not.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWatcherClosed
	}
	if _, ok := w.dirs[dir]; !ok {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
		w.dirs[dir] = struct{}{}
	}
	w.files[abs] = struct{}{}
	return nil
}

// WatchedFiles returns the watched paths, sorted.
func (w *Watcher) WatchedFiles() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.files))
	for p := range w.files {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Close stops the watcher. Changes still inside their debounce window are
// dropped. Close is idempotent.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

// run ends when Close closes the fsnotify channels.
func (w *Watcher) run() {
	defer w.wg.Done()
	events, errs := w.fsw.Events, w.fsw.Errors
	for events != nil || errs != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			w.handle(ev)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.mu.Lock()
			fn := w.onError
			w.mu.Unlock()
			if fn != nil {
				call(func() { fn(err) })
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	var op Op
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		op = OpRemove
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpWrite
	default:
		return
	}
	path, err := filepath.Abs(ev.Name)
	if err != nil {
		return
	}

	w.mu.Lock()
	if _, ok := w.files[path]; !ok || w.closed {
		w.mu.Unlock()
		return
	}
	if w.debounce == 0 {
		w.mu.Unlock()
		w.emit(Event{Path: path, Op: op})
		return
	}
	if p, ok := w.pending[path]; ok {
		p.op = merge(p.op, op)
		p.timer.Reset(w.debounce)
	} else {
		w.pending[path] = &pending{op: op, timer: time.AfterFunc(w.debounce, func() { w.flush(path) })}
	}
	w.mu.Unlock()
}

// merge folds a new event into a pending one. A removal wins; a file that
// reappears after a removal counts as created.
func merge(prev, next Op) Op {
	switch {
	case next == OpRemove:
		return OpRemove
	case prev == OpRemove, next == OpCreate:
		return OpCreate
	}
	return prev
}

func (w *Watcher) flush(path string) {
	w.mu.Lock()
	p, ok := w.pending[path]
	delete(w.pending, path)
	closed := w.closed
	w.mu.Unlock()
	if ok && !closed {
		w.emit(Event{Path: path, Op: p.op})
	}
}

func (w *Watcher) emit(ev Event) {
	w.mu.Lock()
	fn := w.onChange
	w.mu.Unlock()
	if fn != nil {
		call(func() { fn(ev) })
	}
}

// call runs a callback, swallowing a panic so the watcher keeps running.
func call(fn func()) {
	defer func() { _ = recover() }()
	fn()
}
