package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/entailgraph/entailgraph/pkg/checker"
	"github.com/entailgraph/entailgraph/pkg/evaluator"
	"github.com/entailgraph/entailgraph/pkg/hypergraph"
	"github.com/entailgraph/entailgraph/pkg/hypergraph/store"
	"github.com/entailgraph/entailgraph/pkg/llmprovider"
)

// Names of the seven tools the orchestrator exposes to the model.
const (
	ToolReadGraph       = "read_graph"
	ToolAddClaim        = "add_claim"
	ToolAddImplication  = "add_implication"
	ToolAddEvidence     = "add_evidence"
	ToolCheckEntailment = "check_entailment"
	ToolEvaluateClaim   = "evaluate_claim"
	ToolDeleteClaim     = "delete_claim"
)

// Result is the structured outcome of one tool dispatch, rendered back to
// the model as a tool-result message.
type Result struct {
	OK      bool   `json:"ok"`
	Summary string `json:"summary"`
	Data    any    `json:"data,omitempty"`
}

// Surface binds the seven tools to one approach's store and judges. One
// Surface per approach — it holds no session-specific state itself, so
// every session on that approach shares it.
type Surface struct {
	store     *store.Store
	checker   *checker.Checker
	evaluator *evaluator.Evaluator
}

// New binds a Surface to an approach's store and judges. c and/or e may be
// nil when their backend has no API key configured; the corresponding tool
// then reports itself disabled on dispatch instead of panicking.
func New(s *store.Store, c *checker.Checker, e *evaluator.Evaluator) *Surface {
	return &Surface{store: s, checker: c, evaluator: e}
}

// Definitions reflects the seven tools' input schemas once, for declaring to
// the provider.
func Definitions() ([]llmprovider.ToolDef, error) {
	defs := []struct {
		name, desc string
		schema     func() (any, error)
	}{
		{ToolReadGraph, "Return the current hypergraph for this approach.", schemaFunc[ReadGraphArgs]()},
		{ToolAddClaim, "Create a new claim with no score and no evidence.", schemaFunc[AddClaimArgs]()},
		{ToolAddImplication, "Create a new implication from premises to a conclusion. Fails if the conclusion already has one or would introduce a cycle.", schemaFunc[AddImplicationArgs]()},
		{ToolAddEvidence, "Append one evidence item to a claim.", schemaFunc[AddEvidenceArgs]()},
		{ToolCheckEntailment, "Run the entailment checker over selected (or stale) implications.", schemaFunc[CheckEntailmentArgs]()},
		{ToolEvaluateClaim, "Run the claim evaluator over a claim's attached evidence.", schemaFunc[EvaluateClaimArgs]()},
		{ToolDeleteClaim, "Delete a claim and every implication that references it.", schemaFunc[DeleteClaimArgs]()},
	}

	out := make([]llmprovider.ToolDef, 0, len(defs))
	for _, d := range defs {
		schema, err := d.schema()
		if err != nil {
			return nil, fmt.Errorf("reflect schema for %s: %w", d.name, err)
		}
		out = append(out, llmprovider.ToolDef{Name: d.name, Description: d.desc, Schema: schema})
	}
	return out, nil
}

func schemaFunc[T any]() func() (any, error) {
	return func() (any, error) { return llmprovider.SchemaFor[T]() }
}

// Dispatch executes one tool call by name against raw JSON arguments.
func (s *Surface) Dispatch(ctx context.Context, name string, rawArgs json.RawMessage) Result {
	switch name {
	case ToolReadGraph:
		return s.readGraph()
	case ToolAddClaim:
		return s.addClaim(rawArgs)
	case ToolAddImplication:
		return s.addImplication(rawArgs)
	case ToolAddEvidence:
		return s.addEvidence(rawArgs)
	case ToolCheckEntailment:
		return s.checkEntailment(ctx, rawArgs)
	case ToolEvaluateClaim:
		return s.evaluateClaim(ctx, rawArgs)
	case ToolDeleteClaim:
		return s.deleteClaim(rawArgs)
	default:
		return Result{OK: false, Summary: fmt.Sprintf("unknown tool %q", name)}
	}
}

func (s *Surface) readGraph() Result {
	g, res, err := s.store.Load()
	if err != nil {
		return Result{OK: false, Summary: err.Error()}
	}
	return Result{OK: true, Summary: "loaded current hypergraph", Data: map[string]any{"graph": g, "warnings": res.Warnings}}
}

func (s *Surface) addClaim(rawArgs json.RawMessage) Result {
	var args AddClaimArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return Result{OK: false, Summary: fmt.Sprintf("invalid add_claim arguments: %v", err)}
	}
	g, _, err := s.store.AddClaim(&hypergraph.Claim{ID: args.ID, Text: args.Text, Tags: args.Tags, Uncertainties: args.Uncertainties})
	if err != nil {
		return Result{OK: false, Summary: err.Error()}
	}
	return Result{OK: true, Summary: fmt.Sprintf("added claim %q", args.ID), Data: g.Claims[args.ID]}
}

func (s *Surface) addImplication(rawArgs json.RawMessage) Result {
	var args AddImplicationArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return Result{OK: false, Summary: fmt.Sprintf("invalid add_implication arguments: %v", err)}
	}
	connective := hypergraph.ConnectiveType(args.Type)
	if connective != hypergraph.ConnectiveAND && connective != hypergraph.ConnectiveOR {
		return Result{OK: false, Summary: fmt.Sprintf("type must be AND or OR, got %q", args.Type)}
	}
	g, _, err := s.store.AddImplication(&hypergraph.Implication{
		ID: args.ID, Premises: args.Premises, Conclusion: args.Conclusion, Type: connective, Reasoning: args.Reasoning,
	})
	if err != nil {
		return Result{OK: false, Summary: err.Error()}
	}
	return Result{OK: true, Summary: fmt.Sprintf("added implication %q", args.ID), Data: g.Implications[args.ID]}
}

func (s *Surface) addEvidence(rawArgs json.RawMessage) Result {
	var args AddEvidenceArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return Result{OK: false, Summary: fmt.Sprintf("invalid add_evidence arguments: %v", err)}
	}
	ev := hypergraph.Evidence{
		Kind: args.Kind, Source: args.Source, Lines: args.Lines, Code: args.Code,
		ReferenceText: args.ReferenceText, Equations: args.Equations, Program: args.Program,
	}
	if err := ev.Validate(); err != nil {
		return Result{OK: false, Summary: fmt.Sprintf("evidence shape invalid: %v", err)}
	}
	g, _, err := s.store.AddEvidence(args.ClaimID, ev)
	if err != nil {
		return Result{OK: false, Summary: err.Error()}
	}
	return Result{OK: true, Summary: fmt.Sprintf("added %s evidence to claim %q", args.Kind, args.ClaimID), Data: g.Claims[args.ClaimID]}
}

func (s *Surface) checkEntailment(ctx context.Context, rawArgs json.RawMessage) Result {
	if s.checker == nil {
		return Result{OK: false, Summary: "check_entailment is disabled: the checker backend has no API key configured"}
	}
	var args CheckEntailmentArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return Result{OK: false, Summary: fmt.Sprintf("invalid check_entailment arguments: %v", err)}
	}
	results, err := s.checker.CheckStale(ctx, s.store, args.Force, args.ImplicationIDs)
	if err != nil {
		return Result{OK: false, Summary: err.Error()}
	}
	return Result{OK: true, Summary: fmt.Sprintf("checked %d implication(s)", len(results)), Data: results}
}

func (s *Surface) evaluateClaim(ctx context.Context, rawArgs json.RawMessage) Result {
	if s.evaluator == nil {
		return Result{OK: false, Summary: "evaluate_claim is disabled: the evaluator backend has no API key configured"}
	}
	var args EvaluateClaimArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return Result{OK: false, Summary: fmt.Sprintf("invalid evaluate_claim arguments: %v", err)}
	}
	claim, err := s.evaluator.Evaluate(ctx, s.store, args.ClaimID)
	if err != nil {
		return Result{OK: false, Summary: err.Error()}
	}
	return Result{OK: true, Summary: fmt.Sprintf("scored claim %q", args.ClaimID), Data: claim}
}

func (s *Surface) deleteClaim(rawArgs json.RawMessage) Result {
	var args DeleteClaimArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return Result{OK: false, Summary: fmt.Sprintf("invalid delete_claim arguments: %v", err)}
	}
	g, _, err := s.store.DeleteClaim(args.ID)
	if err != nil {
		return Result{OK: false, Summary: err.Error()}
	}
	return Result{OK: true, Summary: fmt.Sprintf("deleted claim %q", args.ID), Data: map[string]any{"remaining_claims": len(g.Claims)}}
}
