package fanout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/entailgraph/entailgraph/pkg/hypergraph/store"
)

// defaultDebounce coalesces the write-temp+rename pair a Store commit
// produces into a single hypergraph_update.
const defaultDebounce = 150 * time.Millisecond

// Watcher notifies a ConnectionManager whenever an approach's hypergraph.json
// changes on disk, regardless of who wrote it (the orchestrator's own tool
// dispatch, a restored history entry, or an external edit).
type Watcher struct {
	manager  *ConnectionManager
	debounce time.Duration
	fsw      *fsnotify.Watcher

	mu       sync.Mutex
	pending  map[string]*time.Timer // approach id -> pending debounce timer
	approach map[string]approachWatch
}

type approachWatch struct {
	id  string
	dir string
}

// NewWatcher constructs a Watcher publishing through manager. Call Watch for
// each approach directory to monitor, then Run to start the fsnotify loop.
func NewWatcher(manager *ConnectionManager) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		manager:  manager,
		debounce: defaultDebounce,
		fsw:      fsw,
		pending:  make(map[string]*time.Timer),
		approach: make(map[string]approachWatch),
	}, nil
}

// Watch begins monitoring one approach's directory for hypergraph.json
// changes, publishing hypergraph_update events under approachID.
func (w *Watcher) Watch(approachID, dir string) error {
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	w.mu.Lock()
	w.approach[dir] = approachWatch{id: approachID, dir: dir}
	w.mu.Unlock()
	return nil
}

// Run drains fsnotify events until ctx is cancelled, debouncing bursts per
// approach directory before publishing.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.onEvent(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Error("fsnotify error", "error", err)
		}
	}
}

func (w *Watcher) onEvent(ctx context.Context, ev fsnotify.Event) {
	dir := parentDir(ev.Name)
	w.mu.Lock()
	aw, ok := w.approach[dir]
	if !ok {
		w.mu.Unlock()
		return
	}
	if t, exists := w.pending[aw.id]; exists {
		t.Stop()
	}
	w.pending[aw.id] = time.AfterFunc(w.debounce, func() { w.flush(ctx, aw) })
	w.mu.Unlock()
}

// flush loads and validates the approach's current graph, then publishes a
// full post-validation hypergraph_update.
func (w *Watcher) flush(ctx context.Context, aw approachWatch) {
	w.mu.Lock()
	delete(w.pending, aw.id)
	w.mu.Unlock()

	s, err := store.Open(aw.dir)
	if err != nil {
		slog.Error("watcher open store", "approach", aw.id, "error", err)
		return
	}
	g, res, err := s.Load()
	if err != nil {
		slog.Error("watcher load graph", "approach", aw.id, "error", err)
		return
	}
	if !res.OK() {
		slog.Warn("watcher loaded invalid graph", "approach", aw.id, "fatal", len(res.Fatal))
	}

	w.manager.Publish(aw.id, Event{
		Type:          EventHypergraphUpdate,
		Timestamp:     time.Now().UTC(),
		Path:          aw.dir,
		Graph:         g,
		IsIncremental: false,
	})
}

func parentDir(path string) string {
	i := len(path) - 1
	for i >= 0 && path[i] != '/' {
		i--
	}
	if i < 0 {
		return path
	}
	return path[:i]
}
