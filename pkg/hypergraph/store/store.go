// Package store implements the Hypergraph Store: the only
// component permitted to read or write an approach's hypergraph.json. On-disk
// JSON is the source of truth — Store never caches a graph across calls, it
// reloads, mutates a clone, validates, recomputes cost, and atomically
// commits.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entailgraph/entailgraph/pkg/hypergraph"
	"github.com/entailgraph/entailgraph/pkg/hypergraph/cost"
	"github.com/entailgraph/entailgraph/pkg/hypergraph/validate"
)

const (
	graphFileName = "hypergraph.json"
	historyDirName = "history"
	filePerm = 0o644
	dirPerm  = 0o755
)

// Store mediates all reads and writes of one approach's hypergraph.json.
type Store struct {
	dir  string // approach root directory
	path string // dir/hypergraph.json
	mu   *sync.Mutex
}

// Open returns a Store bound to an existing approach directory. It does not
// read or create hypergraph.json; call Load or New for that.
func Open(approachDir string) (*Store, error) {
	abs, err := filepath.Abs(approachDir)
	if err != nil {
		return nil, fmt.Errorf("resolve approach dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, historyDirName), dirPerm); err != nil {
		return nil, fmt.Errorf("ensure history dir: %w", err)
	}
	return &Store{dir: abs, path: filepath.Join(abs, graphFileName), mu: lockFor(abs)}, nil
}

// New initializes a fresh hypergraph.json for a new approach. It fails if one
// already exists.
func New(approachDir, name, description string) (*Store, *hypergraph.Hypergraph, error) {
	s, err := Open(approachDir)
	if err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		return nil, nil, fmt.Errorf("%s: hypergraph.json already exists", approachDir)
	}
	g := hypergraph.New(name, description)
	if _, err := s.save(g); err != nil {
		return nil, nil, err
	}
	return s, g, nil
}

// Dir returns the approach's root directory, used by callers that need to
// resolve simulation-evidence paths or the conversations/ subdirectory.
func (s *Store) Dir() string { return s.dir }

// Load reads and returns the current graph, run through Validate so callers
// can surface warnings (load never fails on warnings, only on a corrupt file).
func (s *Store) Load() (*hypergraph.Hypergraph, validate.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.readLocked()
	if err != nil {
		return nil, validate.Result{}, err
	}
	return g, validate.Validate(g, validate.ApproachRoot(s.dir)), nil
}

// Save validates graph, recomputes epistemic costs, snapshots the prior
// version into history/, and atomically commits the new version. A fatal
// validation result aborts the write entirely.
func (s *Store) Save(g *hypergraph.Hypergraph) (validate.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(g)
}

// mutate is the shared path for every scoped mutator: it reloads the current
// on-disk graph, applies fn to a clone, and commits via save. fn returning an
// error aborts the mutation with no write.
func (s *Store) mutate(fn func(*hypergraph.Hypergraph) error) (*hypergraph.Hypergraph, validate.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.readLocked()
	if err != nil {
		return nil, validate.Result{}, err
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, validate.Result{}, err
	}
	res, err := s.save(next)
	if err != nil {
		return nil, res, err
	}
	return next, res, nil
}

// AddClaim inserts a new claim. Returns hypergraph.ErrDuplicateID if the id
// is already in use.
func (s *Store) AddClaim(claim *hypergraph.Claim) (*hypergraph.Hypergraph, validate.Result, error) {
	return s.mutate(func(g *hypergraph.Hypergraph) error {
		if _, exists := g.Claims[claim.ID]; exists {
			return fmt.Errorf("%w: claim %q", hypergraph.ErrDuplicateID, claim.ID)
		}
		c := *claim
		g.Claims[c.ID] = &c
		return nil
	})
}

// AddImplication inserts a new implication with entailment_status "unchecked"
// regardless of what the caller passes. Rejects a conclusion already claimed
// by another implication (invariant 3) and any premise set that would
// introduce a cycle (invariant 6) before it ever reaches the validator, so
// callers get the specific sentinel rather than a generic InvalidGraph.
func (s *Store) AddImplication(impl *hypergraph.Implication) (*hypergraph.Hypergraph, validate.Result, error) {
	return s.mutate(func(g *hypergraph.Hypergraph) error {
		if _, exists := g.Implications[impl.ID]; exists {
			return fmt.Errorf("%w: implication %q", hypergraph.ErrDuplicateID, impl.ID)
		}
		for id, other := range g.Implications {
			if other.Conclusion == impl.Conclusion {
				return fmt.Errorf("%w: claim %q is already concluded by implication %q", hypergraph.ErrConclusionAlreadyClaimed, impl.Conclusion, id)
			}
		}
		if reaches(g, impl.Conclusion, impl.Premises) {
			return fmt.Errorf("%w: implication %q from %v to %q", hypergraph.ErrCycleDetected, impl.ID, impl.Premises, impl.Conclusion)
		}
		im := *impl
		im.EntailmentStatus = hypergraph.EntailmentUnchecked
		im.EntailmentExplanation = hypergraph.EntailmentExplanation{}
		im.LastCheckedSignature = ""
		g.Implications[im.ID] = &im
		return nil
	})
}

// reaches reports whether, following existing premise -> conclusion edges,
// start can reach any claim in targets. Adding a new premise -> conclusion
// edge for each of targets would close a cycle exactly when conclusion
// (start) can already reach one of them.
func reaches(g *hypergraph.Hypergraph, start string, targets []string) bool {
	want := make(map[string]bool, len(targets))
	for _, t := range targets {
		want[t] = true
	}
	adj := make(map[string][]string)
	for _, im := range g.Implications {
		for _, p := range im.Premises {
			adj[p] = append(adj[p], im.Conclusion)
		}
	}
	seen := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if want[n] {
			return true
		}
		for _, next := range adj[n] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// AddEvidence appends evidence to an existing claim and bumps its
// last_evidence_modified timestamp.
func (s *Store) AddEvidence(claimID string, ev hypergraph.Evidence) (*hypergraph.Hypergraph, validate.Result, error) {
	return s.mutate(func(g *hypergraph.Hypergraph) error {
		c, ok := g.Claims[claimID]
		if !ok {
			return fmt.Errorf("%w: claim %q", hypergraph.ErrUnknownID, claimID)
		}
		c.Evidence = append(c.Evidence, ev)
		c.LastEvidenceModified = time.Now().UTC()
		return nil
	})
}

// SetClaimScore records a judge-produced score and reasoning. Only the
// Claim Evaluator is expected to call this — the orchestrator's
// tool surface never exposes a raw "set score" tool to the driving model.
func (s *Store) SetClaimScore(claimID string, scoreVal *float64, reasoning string) (*hypergraph.Hypergraph, validate.Result, error) {
	return s.mutate(func(g *hypergraph.Hypergraph) error {
		c, ok := g.Claims[claimID]
		if !ok {
			return fmt.Errorf("%w: claim %q", hypergraph.ErrUnknownID, claimID)
		}
		c.Score = scoreVal
		c.Reasoning = reasoning
		return nil
	})
}

// SetImplicationEntailment records a judge-produced entailment verdict. Only
// the Entailment Checker is expected to call this.
func (s *Store) SetImplicationEntailment(implID string, status hypergraph.EntailmentStatus, explanation hypergraph.EntailmentExplanation, signature string) (*hypergraph.Hypergraph, validate.Result, error) {
	return s.mutate(func(g *hypergraph.Hypergraph) error {
		im, ok := g.Implications[implID]
		if !ok {
			return fmt.Errorf("%w: implication %q", hypergraph.ErrUnknownID, implID)
		}
		im.EntailmentStatus = status
		im.EntailmentExplanation = explanation
		im.LastCheckedSignature = signature
		return nil
	})
}

// DeleteClaim removes a claim and every implication that premises or
// concludes it.
func (s *Store) DeleteClaim(claimID string) (*hypergraph.Hypergraph, validate.Result, error) {
	return s.mutate(func(g *hypergraph.Hypergraph) error {
		if _, ok := g.Claims[claimID]; !ok {
			return fmt.Errorf("%w: claim %q", hypergraph.ErrUnknownID, claimID)
		}
		delete(g.Claims, claimID)
		for id, im := range g.Implications {
			if im.Conclusion == claimID {
				delete(g.Implications, id)
				continue
			}
			for _, p := range im.Premises {
				if p == claimID {
					delete(g.Implications, id)
					break
				}
			}
		}
		return nil
	})
}

// readLocked reads hypergraph.json without acquiring s.mu; callers must
// already hold it.
func (s *Store) readLocked() (*hypergraph.Hypergraph, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	var g hypergraph.Hypergraph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", hypergraph.ErrInvalidGraph, s.path, err)
	}
	if g.Claims == nil {
		g.Claims = make(map[string]*hypergraph.Claim)
	}
	if g.Implications == nil {
		g.Implications = make(map[string]*hypergraph.Implication)
	}
	return &g, nil
}

// save validates, recomputes cost, snapshots the previous version to
// history/, and atomically commits. Callers must already hold s.mu.
func (s *Store) save(g *hypergraph.Hypergraph) (validate.Result, error) {
	res := validate.Validate(g, validate.ApproachRoot(s.dir))
	if !res.OK() {
		for _, f := range res.Fatal {
			switch f.Code {
			case "evidence_outside_approach", "evidence_unreadable", "evidence_bad_range", "evidence_code_mismatch":
				return res, fmt.Errorf("%w: %w: %d fatal finding(s)", hypergraph.ErrInvalidGraph, hypergraph.ErrEvidenceMismatch, len(res.Fatal))
			}
		}
		return res, fmt.Errorf("%w: %d fatal finding(s)", hypergraph.ErrInvalidGraph, len(res.Fatal))
	}

	propagated := cost.Propagate(g)
	for id, c := range g.Claims {
		pc := propagated.Claims[id]
		c.EvidenceEpistemicCost = hypergraph.CostValue(pc.EvidenceEpistemicCost)
		c.ExperimentalEpistemicCost = hypergraph.CostValue(pc.ExperimentalEpistemicCost)
		c.Cost = hypergraph.CostValue(pc.Cost)
		c.Unverified = pc.Unverified
	}

	g.Metadata.UpdatedAt = time.Now().UTC()
	g.Metadata.ValidationSummary = hypergraph.ValidationSummary{
		CheckedAt:    g.Metadata.UpdatedAt,
		FatalCount:   len(res.Fatal),
		WarningCount: len(res.Warnings),
	}
	g.Metadata.LastCheckedSignatures = make(map[string]string, len(g.Implications))
	for id, im := range g.Implications {
		if im.LastCheckedSignature != "" {
			g.Metadata.LastCheckedSignatures[id] = im.LastCheckedSignature
		}
	}

	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return res, fmt.Errorf("marshal graph: %w", err)
	}

	if err := s.snapshotLocked(); err != nil {
		return res, fmt.Errorf("snapshot history: %w", err)
	}
	if err := writeFileAtomic(s.path, data, filePerm); err != nil {
		return res, fmt.Errorf("write graph: %w", err)
	}
	return res, nil
}

// snapshotLocked copies the current on-disk hypergraph.json (if any) into
// history/ before it is overwritten, so HistoryList/Restore have something
// to restore to. The snapshot itself is written atomically, then synced, so
// a crash between snapshot and commit never leaves a half-written snapshot.
func (s *Store) snapshotLocked() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // nothing to snapshot yet (first-ever save)
		}
		return err
	}
	name := fmt.Sprintf("%s-%s.json", time.Now().UTC().Format("20060102T150405.000000000Z"), uuid.NewString())
	return writeFileAtomic(filepath.Join(s.dir, historyDirName, name), data, filePerm)
}

// HistoryEntry names one snapshot retained in history/.
type HistoryEntry struct {
	ID        string
	Timestamp time.Time
}

// HistoryList returns retained snapshots, most recent first.
func (s *Store) HistoryList() ([]HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(s.dir, historyDirName))
	if err != nil {
		return nil, fmt.Errorf("read history dir: %w", err)
	}
	out := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, HistoryEntry{ID: e.Name(), Timestamp: info.ModTime().UTC()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// Restore replaces the current graph with a previously snapshotted version,
// re-validating and re-costing it exactly as a fresh Save would. The restored version first snapshots the graph it
// replaces, so a restore is itself undoable.
func (s *Store) Restore(historyID string) (*hypergraph.Hypergraph, validate.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, historyDirName, historyID))
	if err != nil {
		return nil, validate.Result{}, fmt.Errorf("read history entry %q: %w", historyID, err)
	}
	var g hypergraph.Hypergraph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, validate.Result{}, fmt.Errorf("%w: history entry %q: %v", hypergraph.ErrInvalidGraph, historyID, err)
	}
	res, err := s.save(&g)
	if err != nil {
		return nil, res, err
	}
	return &g, res, nil
}
