// Package watcher mirrors filesystem activity under watched roots into the
// document pipeline: settled writes become ingests, deletions become removals.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// defaultDebounce is how long a file must stay quiet before it is ingested.
const defaultDebounce = 400 * time.Millisecond

// Sink receives the document changes the watcher observes. The pipeline
// satisfies it through a small adapter that maps paths to document IDs.
type Sink interface {
	IngestFile(ctx context.Context, path string) error
	RemoveFile(ctx context.Context, path string) error
}

// Config controls which files a Watcher reacts to.
type Config struct {
	Roots      []string
	Extensions []string // empty matches every file
	Recursive  bool
	Debounce   time.Duration
}

// Watcher feeds file activity under its roots into a Sink. Writes are
// debounced per path, so a file copied in several chunks is ingested once
// after it settles.
type Watcher struct {
	sink      Sink
	exts      []string
	recursive bool
	debounce  time.Duration
	logger    *zap.Logger
	initial   []string

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	roots   map[string][]string // root -> directories registered with fsnotify
	order   []string            // roots in add order
	pending map[string]*time.Timer
	ctx     context.Context

	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a watcher over cfg.Roots that feeds sink.
func New(sink Sink, cfg Config, opts ...Option) *Watcher {
	w := &Watcher{
		sink:      sink,
		exts:      cfg.Extensions,
		recursive: cfg.Recursive,
		debounce:  cfg.Debounce,
		logger:    zap.NewNop(),
		initial:   cfg.Roots,
		roots:     make(map[string][]string),
		pending:   make(map[string]*time.Timer),
		done:      make(chan struct{}),
	}
	if w.debounce <= 0 {
		w.debounce = defaultDebounce
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start registers the configured roots and begins dispatching events. It
// returns once watching is established; event handling runs until ctx is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.fsw != nil {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.fsw = fsw
	w.ctx = ctx
	for _, root := range w.initial {
		if err := w.watchRootLocked(root); err != nil {
			_ = fsw.Close()
			w.fsw = nil
			w.mu.Unlock()
			return err
		}
	}
	w.mu.Unlock()
	w.logger.Debug("watch started",
		zap.Strings("roots", w.Roots()),
		zap.Strings("extensions", w.exts),
		zap.Bool("recursive", w.recursive))
	go w.run(ctx, fsw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.dispatch(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Warn("watch error", zap.Error(err))
			}
		}
	}
}

// dispatch maps one fsnotify event onto sink semantics. Ops are bit flags;
// a create and a write can arrive in the same event, and a rename leaves
// the old path behind like a removal does.
func (w *Watcher) dispatch(ev fsnotify.Event) {
	path := ev.Name
	if !w.underRoot(path) {
		return
	}
	w.logger.Debug("watch event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if w.recursive {
				w.watchSubtree(path)
				w.scanTree(path)
			}
			return
		}
		if w.match(path) {
			w.settle(path)
		}
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.forget(path)
		if w.match(path) {
			w.removeFile(path)
		}
	}
}

// settle (re)arms the debounce timer for path; the ingest fires only after
// the file has stopped changing for the full debounce window.
func (w *Watcher) settle(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		if err := w.sink.IngestFile(w.context(), path); err != nil {
			w.logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
		}
	})
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) removeFile(path string) {
	if err := w.sink.RemoveFile(w.context(), path); err != nil {
		w.logger.Warn("watch remove failed", zap.String("path", path), zap.Error(err))
	}
}

func (w *Watcher) context() context.Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx != nil {
		return w.ctx
	}
	return context.Background()
}

func (w *Watcher) underRoot(path string) bool {
	clean := filepath.Clean(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, root := range w.order {
		if root == clean || inDir(root, clean) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *Watcher) match(path string) bool {
	if len(w.exts) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	for _, e := range w.exts {
		if strings.ToLower(strings.TrimPrefix(e, ".")) == ext {
			return true
		}
	}
	return false
}

// watchSubtree registers a directory created under an existing recursive
// root, attributing its directories to that root so Unwatch cleans them up.
func (w *Watcher) watchSubtree(dir string) {
	clean := filepath.Clean(dir)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw == nil {
		return
	}
	owner := ""
	for _, root := range w.order {
		if root == clean || inDir(root, clean) {
			owner = root
			break
		}
	}
	filepath.WalkDir(clean, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("watch add directory failed", zap.String("path", path), zap.Error(err))
			return nil
		}
		if owner != "" {
			w.roots[owner] = append(w.roots[owner], path)
		}
		return nil
	})
}

// Watch adds a root at runtime. With syncExisting, files already present
// under it are ingested in the background.
func (w *Watcher) Watch(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return nil
	}
	for _, r := range w.order {
		if r == abs {
			w.mu.Unlock()
			return nil
		}
	}
	if err := w.watchRootLocked(abs); err != nil {
		w.mu.Unlock()
		return err
	}
	w.mu.Unlock()
	w.logger.Debug("watch root added", zap.String("path", abs))
	if syncExisting {
		go w.scanTree(abs)
	}
	return nil
}

// watchRootLocked registers root with fsnotify, creating the directory if
// it does not exist yet.
func (w *Watcher) watchRootLocked(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := os.MkdirAll(root, 0755); err != nil {
			return err
		}
	}
	var dirs []string
	register := func(path string) error {
		if err := w.fsw.Add(path); err != nil {
			return err
		}
		dirs = append(dirs, path)
		return nil
	}
	if w.recursive {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			return register(path)
		})
		if err != nil {
			return err
		}
	} else if err := register(root); err != nil {
		return err
	}
	w.roots[root] = dirs
	w.order = append(w.order, root)
	return nil
}

// Unwatch stops watching root. Documents already ingested from it stay in
// the store.
func (w *Watcher) Unwatch(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw == nil {
		return nil
	}
	idx := -1
	for i, r := range w.order {
		if r == abs {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	for _, dir := range w.roots[abs] {
		_ = w.fsw.Remove(dir)
	}
	delete(w.roots, abs)
	w.order = append(w.order[:idx], w.order[idx+1:]...)
	w.logger.Debug("watch root removed", zap.String("path", abs))
	return nil
}

// Roots returns the watched roots in the order they were added.
func (w *Watcher) Roots() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.order...)
}

// Rescan ingests every matching file already present under the watched
// roots. Call it after Start to pick up files that predate the watch.
func (w *Watcher) Rescan() {
	for _, root := range w.Roots() {
		w.scanTree(root)
	}
}

func (w *Watcher) scanTree(root string) {
	root = filepath.Clean(root)
	ctx := w.context()
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !w.recursive && filepath.Clean(path) != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !w.match(path) {
			return nil
		}
		if err := w.sink.IngestFile(ctx, path); err != nil {
			w.logger.Warn("watch scan ingest failed", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

// Stop closes the fsnotify watcher and cancels pending ingests.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.fsw.Close()
	w.fsw = nil
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
