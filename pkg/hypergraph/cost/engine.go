// Package cost implements the Cost Propagation Engine: a
// pure, deterministic function from a validated hypergraph to per-claim
// epistemic costs, evaluated leaves-first over a Kahn topological sort.
package cost

import (
	"math"

	"github.com/entailgraph/entailgraph/pkg/hypergraph"
)

// Claim holds the computed cost fields for one claim.
type Claim struct {
	EvidenceEpistemicCost     float64
	ExperimentalEpistemicCost float64
	Cost                      float64
	// Unverified is set when the claim's cost rests (even partially) on an
	// implication whose entailment_status is still "unchecked".
	Unverified bool
}

// Result is the per-claim output of Propagate, plus the root's total cost
// for convenience (absent if the graph has no "hypothesis" claim).
type Result struct {
	Claims   map[string]Claim
	RootCost float64
	HasRoot  bool
}

// Propagate computes costs for every claim in graph. It never mutates
// graph; callers (the store) are responsible for writing the results back
// onto hypergraph.Claim's cached fields, so recomputation is idempotent.
func Propagate(graph *hypergraph.Hypergraph) Result {
	conclusionOf := graph.ConclusionIndex()
	order := topoOrder(graph)

	out := make(map[string]Claim, len(graph.Claims))
	for _, id := range order {
		claim, ok := graph.Claims[id]
		if !ok {
			continue
		}
		ec, hasScore := evidenceCost(claim)

		impl, hasImpl := conclusionOf[id]
		var xc float64
		unverified := false
		if hasImpl {
			xc, unverified = experimentalCost(impl, out)
		}

		var total float64
		switch {
		case hasScore && hasImpl:
			total = math.Min(ec, xc)
		case hasImpl:
			total = xc
		case hasScore:
			total = ec
		default:
			total = math.Inf(1)
		}

		out[id] = Claim{
			EvidenceEpistemicCost:     ec,
			ExperimentalEpistemicCost: xc,
			Cost:                      total,
			Unverified:                unverified,
		}
	}

	res := Result{Claims: out}
	if root, ok := out[hypergraph.HypothesisID]; ok {
		res.HasRoot = true
		res.RootCost = root.Cost
	}
	return res
}

// evidenceCost computes −log2(score/10). The bool reports whether
// the claim carries a score at all (nil scores have no evidence cost, not
// merely an infinite one — the distinction matters when an implication also
// supplies an experimental cost).
func evidenceCost(claim *hypergraph.Claim) (float64, bool) {
	if claim.Score == nil {
		return math.Inf(1), false
	}
	s := *claim.Score
	switch {
	case s <= 0:
		return math.Inf(1), true
	case s >= 10:
		return 0, true
	default:
		return -math.Log2(s / 10), true
	}
}

// experimentalCost aggregates premise costs through impl's connective.
// already holds costs computed earlier in the topological order, so every
// premise is present (the DAG invariant guarantees premises precede their
// conclusion).
func experimentalCost(impl *hypergraph.Implication, already map[string]Claim) (float64, bool) {
	if impl.EntailmentStatus == hypergraph.EntailmentFailed {
		return math.Inf(1), false
	}
	unverified := impl.EntailmentStatus == hypergraph.EntailmentUnchecked

	switch impl.Type {
	case hypergraph.ConnectiveOR:
		min := math.Inf(1)
		for _, p := range impl.Premises {
			if pc, ok := already[p]; ok && pc.Cost < min {
				min = pc.Cost
			}
		}
		return min, unverified
	default: // AND
		sum := 0.0
		for _, p := range impl.Premises {
			if pc, ok := already[p]; ok {
				sum += pc.Cost
			} else {
				sum = math.Inf(1)
			}
		}
		return sum, unverified
	}
}

// topoOrder returns claim ids leaves-first (premises before the conclusion
// they feed), via Kahn's algorithm over the premise -> conclusion edges.
// Acyclicity is an invariant enforced by the validator before Propagate is
// ever called, so every claim is visited exactly once.
func topoOrder(graph *hypergraph.Hypergraph) []string {
	indegree := make(map[string]int, len(graph.Claims))
	adj := make(map[string][]string)
	for id := range graph.Claims {
		indegree[id] = 0
	}
	for _, im := range graph.Implications {
		if _, ok := graph.Claims[im.Conclusion]; !ok {
			continue
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

	order := make([]string, 0, len(graph.Claims))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, next := range adj[n] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	return order
}
