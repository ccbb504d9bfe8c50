// Package validate implements the Schema & Invariant Validator: structural checks, type checks, and referential integrity over an
// in-memory hypergraph.Hypergraph.
package validate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/entailgraph/entailgraph/pkg/hypergraph"
)

// Finding is one validator-reported issue, fatal or warning.
type Finding struct {
	// Fatal findings block Store.Save; warnings do not.
	Fatal   bool
	Code    string
	Message string
}

func (f Finding) Error() string { return f.Message }

// Result is the outcome of a single Validate call.
type Result struct {
	Fatal    []Finding
	Warnings []Finding
}

func (r Result) OK() bool { return len(r.Fatal) == 0 }

// ApproachRoot is a hook so simulation-evidence file checks can be run
// relative to the approach directory without the validator importing the
// store/workspace packages (which would create an import cycle, since the
// store itself calls Validate on every Save).
type ApproachRoot string

// Validate runs every structural and referential-integrity check over graph.
// simRoot, if non-empty, anchors relative `source` paths for simulation
// evidence file content checks (paths that resolve outside
// simRoot are a fatal EvidenceMismatch, not a silent skip).
func Validate(graph *hypergraph.Hypergraph, simRoot ApproachRoot) Result {
	var res Result

	add := func(fatal bool, code, format string, args ...any) {
		f := Finding{Fatal: fatal, Code: code, Message: fmt.Sprintf(format, args...)}
		if fatal {
			res.Fatal = append(res.Fatal, f)
		} else {
			res.Warnings = append(res.Warnings, f)
		}
	}

	checkClaims(graph, add)
	checkImplications(graph, add)
	checkConclusionUniqueness(graph, add)
	checkAcyclic(graph, add)
	checkEvidenceContent(graph, simRoot, add)
	checkStaleEntailment(graph, add)

	sort.Slice(res.Fatal, func(i, j int) bool { return res.Fatal[i].Message < res.Fatal[j].Message })
	sort.Slice(res.Warnings, func(i, j int) bool { return res.Warnings[i].Message < res.Warnings[j].Message })
	return res
}

type adder func(fatal bool, code, format string, args ...any)

func checkClaims(graph *hypergraph.Hypergraph, add adder) {
	hypothesisCount := 0
	for id, c := range graph.Claims {
		if id != c.ID {
			add(true, "claim_id_mismatch", "claim map key %q does not match claim.ID %q", id, c.ID)
		}
		if id == hypergraph.HypothesisID {
			hypothesisCount++
		}
		if c.Text == "" {
			add(true, "claim_empty_text", "claim %q has empty text", id)
		}
		if c.Score != nil && (*c.Score < 0 || *c.Score > 10) {
			add(true, "score_out_of_range", "claim %q score %.3f out of range [0, 10]", id, *c.Score)
		}
		for i, ev := range c.Evidence {
			if err := ev.Validate(); err != nil {
				add(true, "evidence_shape", "claim %q evidence[%d]: %v", id, i, err)
			}
		}
	}
	if hypothesisCount > 1 {
		add(true, "multiple_hypothesis", "more than one claim uses the reserved id %q", hypergraph.HypothesisID)
	}
	if _, ok := graph.Claims[hypergraph.HypothesisID]; ok {
		for id, im := range graph.Implications {
			for _, p := range im.Premises {
				if p == hypergraph.HypothesisID {
					add(true, "hypothesis_as_premise", "implication %q uses the root hypothesis as a premise; the root must be the final conclusion", id)
				}
			}
		}
	}
}

func checkImplications(graph *hypergraph.Hypergraph, add adder) {
	for id, im := range graph.Implications {
		if id != im.ID {
			add(true, "implication_id_mismatch", "implication map key %q does not match implication.ID %q", id, im.ID)
		}
		if len(im.Premises) == 0 {
			add(true, "no_premises", "implication %q has no premises", id)
		}
		if im.Type != hypergraph.ConnectiveAND && im.Type != hypergraph.ConnectiveOR {
			add(true, "bad_connective", "implication %q has invalid connective %q", id, im.Type)
		}
		if _, ok := graph.Claims[im.Conclusion]; !ok {
			add(true, "unresolved_conclusion", "implication %q conclusion %q does not resolve to a claim", id, im.Conclusion)
		}
		seen := make(map[string]bool, len(im.Premises))
		for _, p := range im.Premises {
			if _, ok := graph.Claims[p]; !ok {
				add(true, "unresolved_premise", "implication %q premise %q does not resolve to a claim", id, p)
			}
			if seen[p] {
				add(true, "duplicate_premise", "implication %q lists premise %q more than once", id, p)
			}
			seen[p] = true
		}
		switch im.EntailmentStatus {
		case hypergraph.EntailmentUnchecked, hypergraph.EntailmentPassed, hypergraph.EntailmentFailed:
		default:
			add(true, "bad_entailment_status", "implication %q has invalid entailment_status %q", id, im.EntailmentStatus)
		}
	}
}

// checkConclusionUniqueness enforces invariant 3: each claim may appear as
// the conclusion of at most one implication.
func checkConclusionUniqueness(graph *hypergraph.Hypergraph, add adder) {
	byConclusion := make(map[string][]string)
	for id, im := range graph.Implications {
		byConclusion[im.Conclusion] = append(byConclusion[im.Conclusion], id)
	}
	for conclusion, implIDs := range byConclusion {
		if len(implIDs) > 1 {
			sort.Strings(implIDs)
			add(true, "conclusion_not_unique", "claim %q is concluded by %d implications: %s", conclusion, len(implIDs), strings.Join(implIDs, ", "))
		}
	}
}

// checkAcyclic runs Kahn's algorithm over the premise -> conclusion edges
// to confirm the implication graph has no cycles.
func checkAcyclic(graph *hypergraph.Hypergraph, add adder) {
	indegree := make(map[string]int, len(graph.Claims))
	adj := make(map[string][]string)
	for id := range graph.Claims {
		indegree[id] = 0
	}
	for _, im := range graph.Implications {
		if _, ok := graph.Claims[im.Conclusion]; !ok {
			continue // already reported as unresolved_conclusion
		}
		for _, p := range im.Premises {
			if _, ok := graph.Claims[p]; !ok {
				continue
			}
			adj[p] = append(adj[p], im.Conclusion)
			indegree[im.Conclusion]++
		}
	}

	queue := make([]string, 0, len(indegree))
	for id, d := range indegree {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)
	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adj[n] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited != len(graph.Claims) {
		add(true, "cycle_detected", "implication graph contains a cycle (only %d/%d claims are reachable in topological order)", visited, len(graph.Claims))
	}
}

// checkEvidenceContent verifies simulation evidence code byte-exactly
// matches the cited lines of its source file.
func checkEvidenceContent(graph *hypergraph.Hypergraph, simRoot ApproachRoot, add adder) {
	if simRoot == "" {
		return
	}
	for id, c := range graph.Claims {
		for i, ev := range c.Evidence {
			if ev.Kind != hypergraph.EvidenceSimulation {
				continue
			}
			abs := filepath.Join(string(simRoot), ev.Source)
			cleanRoot, _ := filepath.Abs(string(simRoot))
			cleanAbs, _ := filepath.Abs(abs)
			if !strings.HasPrefix(cleanAbs, cleanRoot+string(filepath.Separator)) && cleanAbs != cleanRoot {
				add(true, "evidence_outside_approach", "claim %q evidence[%d] source %q resolves outside the approach directory", id, i, ev.Source)
				continue
			}
			data, err := os.ReadFile(cleanAbs)
			if err != nil {
				add(true, "evidence_unreadable", "claim %q evidence[%d] source %q: %v", id, i, ev.Source, err)
				continue
			}
			lines := strings.Split(string(data), "\n")
			if ev.Lines.Start < 1 || ev.Lines.End > len(lines) || ev.Lines.Start > ev.Lines.End {
				add(true, "evidence_bad_range", "claim %q evidence[%d] line range %d-%d out of bounds for %q (%d lines)", id, i, ev.Lines.Start, ev.Lines.End, ev.Source, len(lines))
				continue
			}
			slice := strings.Join(lines[ev.Lines.Start-1:ev.Lines.End], "\n")
			if slice != ev.Code {
				add(true, "evidence_code_mismatch", "claim %q evidence[%d]: code does not byte-exactly match %s:%d-%d", id, i, ev.Source, ev.Lines.Start, ev.Lines.End)
			}
		}
	}
}

// checkStaleEntailment flags passed implications whose recorded signature
// no longer matches the current premise/conclusion texts.
func checkStaleEntailment(graph *hypergraph.Hypergraph, add adder) {
	for id, im := range graph.Implications {
		if im.EntailmentStatus != hypergraph.EntailmentPassed || im.LastCheckedSignature == "" {
			continue
		}
		current := Signature(graph, im)
		if current != im.LastCheckedSignature {
			add(false, "stale_entailment", "implication %q was checked against different claim text and may no longer be valid", id)
		}
	}
}

// Signature hashes (premises-texts, conclusion-text, connective) so drift
// can be detected after a previous check.
func Signature(graph *hypergraph.Hypergraph, im *hypergraph.Implication) string {
	h := sha256.New()
	for _, p := range im.Premises {
		if c, ok := graph.Claims[p]; ok {
			h.Write([]byte(c.Text))
		}
		h.Write([]byte{0})
	}
	if c, ok := graph.Claims[im.Conclusion]; ok {
		h.Write([]byte(c.Text))
	}
	h.Write([]byte(im.Type))
	return hex.EncodeToString(h.Sum(nil))
}
