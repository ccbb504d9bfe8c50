// Package workspace locates and lays out the on-disk directories the rest of
// the system operates on: a workspace directory containing one subdirectory
// per approach, each with its hypergraph.json, history/, simulations/,
// references/, and conversations/.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const (
	historyDirName      = "history"
	simulationsDirName  = "simulations"
	referencesDirName   = "references"
	conversationsDirName = "conversations"
	dirPerm             = 0o755
)

// Workspace is a directory holding zero or more approach subdirectories.
type Workspace struct {
	root string
}

// Open returns a Workspace rooted at dir, creating dir if it does not exist.
func Open(dir string) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	return &Workspace{root: abs}, nil
}

// Root returns the workspace's absolute root directory.
func (w *Workspace) Root() string { return w.root }

// Approach is one approach subdirectory's layout, fully created on disk.
type Approach struct {
	ID   string
	Dir  string
}

// HypergraphPath returns the path to this approach's hypergraph.json.
func (a Approach) HypergraphPath() string { return filepath.Join(a.Dir, "hypergraph.json") }

// HistoryDir returns this approach's history/ directory.
func (a Approach) HistoryDir() string { return filepath.Join(a.Dir, historyDirName) }

// SimulationsDir returns this approach's simulations/ directory.
func (a Approach) SimulationsDir() string { return filepath.Join(a.Dir, simulationsDirName) }

// ReferencesDir returns this approach's references/ directory.
func (a Approach) ReferencesDir() string { return filepath.Join(a.Dir, referencesDirName) }

// ConversationsDir returns this approach's conversations/ directory.
func (a Approach) ConversationsDir() string { return filepath.Join(a.Dir, conversationsDirName) }

// ConversationLogPath returns the path to one session's persisted log.
func (a Approach) ConversationLogPath(sessionID string) string {
	return filepath.Join(a.ConversationsDir(), sessionID+".json")
}

// EnsureApproach creates (or reopens) the full directory layout for an
// approach named id and returns it. Safe to call on an existing approach.
func (w *Workspace) EnsureApproach(id string) (Approach, error) {
	a := Approach{ID: id, Dir: filepath.Join(w.root, id)}
	for _, dir := range []string{a.Dir, a.HistoryDir(), a.SimulationsDir(), a.ReferencesDir(), a.ConversationsDir()} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return Approach{}, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return a, nil
}

// Approach returns the layout for an existing approach without creating
// anything, erroring if its hypergraph.json is missing.
func (w *Workspace) Approach(id string) (Approach, error) {
	a := Approach{ID: id, Dir: filepath.Join(w.root, id)}
	if _, err := os.Stat(a.HypergraphPath()); err != nil {
		return Approach{}, fmt.Errorf("approach %q: %w", id, err)
	}
	return a, nil
}

// List returns the ids of every approach in the workspace (any subdirectory
// containing a hypergraph.json), sorted.
func (w *Workspace) List() ([]string, error) {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return nil, fmt.Errorf("read workspace root: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(w.root, e.Name(), "hypergraph.json")); err == nil {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}
