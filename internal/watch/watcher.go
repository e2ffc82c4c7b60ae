// Package watch implements the Workspace Watcher: it watches the
// workspace directory tree for changes made by tools other than the
// editor itself (`cargo fmt`, a code generator, a VCS checkout) and
// synthesizes `workspace/didChangeWatchedFiles`-shaped notifications
// fed into the Request Dispatcher exactly like a client-sent
// notification would be. It does not replace the client's own
// `didChange` messages.
//
// Grounded directly on the teacher's `pkg/index.Watcher`: an
// `fsnotify.Watcher`, a `pending map[string]time.Time` debounce map
// guarded by its own mutex, and a ticker-driven `processDebounced`
// loop, adapted here to watch `.rs`/`Cargo.toml` files instead of
// `.go` files and to emit dispatcher notifications instead of
// triggering a reindex.
package watch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ternarybob/arbor"
)

// skipDirs mirrors the teacher's shouldSkipDir list, generalized to a
// Cargo workspace's own build output and VCS directories.
var skipDirs = []string{"target", ".git", "node_modules"}

// ChangeKind mirrors the LSP FileChangeType enum.
type ChangeKind int

const (
	ChangeCreated ChangeKind = iota + 1
	ChangeModified
	ChangeDeleted
)

// Change is one externally observed file change, debounced.
type Change struct {
	Path string
	Kind ChangeKind
}

// Callback is invoked with the debounced batch of changes, on the
// watcher's own goroutine.
type Callback func([]Change)

// Watcher watches root for `.rs` and `Cargo.toml` changes.
type Watcher struct {
	root       string
	debounceMs int
	onChange   Callback
	log        arbor.ILogger

	fsw     *fsnotify.Watcher
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}

	pendingMu sync.Mutex
	pending   map[string]pendingEntry
}

type pendingEntry struct {
	kind ChangeKind
	ts   time.Time
}

// New returns a Watcher rooted at root; onChange fires after
// debounceMs of quiet for each batch of changed files.
func New(root string, debounceMs int, onChange Callback, log arbor.ILogger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:       root,
		debounceMs: debounceMs,
		onChange:   onChange,
		log:        log,
		fsw:        fsw,
		stopCh:     make(chan struct{}),
		pending:    make(map[string]pendingEntry),
	}, nil
}

// Start begins watching. Safe to call once.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addDirectories(); err != nil {
		return err
	}

	go w.processEvents()
	go w.processDebounced()
	return nil
}

// Stop halts the watcher goroutines and closes the underlying
// fsnotify watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	w.running = false
	close(w.stopCh)
	return w.fsw.Close()
}

func (w *Watcher) addDirectories() error {
	return filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(w.root, path)
		if shouldSkipDir(rel) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil && w.log != nil {
			w.log.Warn().Msg("watch: cannot watch " + path + ": " + err.Error())
		}
		return nil
	})
}

func shouldSkipDir(rel string) bool {
	for _, d := range skipDirs {
		if rel == d || strings.HasPrefix(rel, d+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func watchable(name string) bool {
	return strings.HasSuffix(name, ".rs") || filepath.Base(name) == "Cargo.toml"
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !watchable(event.Name) {
				continue
			}
			kind := classify(event.Op)
			if kind == 0 {
				continue
			}
			w.pendingMu.Lock()
			w.pending[event.Name] = pendingEntry{kind: kind, ts: time.Now()}
			w.pendingMu.Unlock()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.log != nil {
				w.log.Warn().Msg("watch: fsnotify error: " + err.Error())
			}
		}
	}
}

func classify(op fsnotify.Op) ChangeKind {
	switch {
	case op&fsnotify.Remove != 0 || op&fsnotify.Rename != 0:
		return ChangeDeleted
	case op&fsnotify.Create != 0:
		return ChangeCreated
	case op&fsnotify.Write != 0:
		return ChangeModified
	default:
		return 0
	}
}

func (w *Watcher) processDebounced() {
	interval := time.Duration(w.debounceMs) * time.Millisecond
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.flushStable(interval)
		}
	}
}

func (w *Watcher) flushStable(debounce time.Duration) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	now := time.Now()
	var batch []Change
	for path, entry := range w.pending {
		if now.Sub(entry.ts) < debounce {
			continue
		}
		delete(w.pending, path)
		batch = append(batch, Change{Path: path, Kind: entry.kind})
	}
	if len(batch) > 0 && w.onChange != nil {
		w.onChange(batch)
	}
}
