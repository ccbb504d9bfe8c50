// Package evaluator implements the Claim Evaluator: an
// isolated judge LLM call that scores a claim from its attached evidence,
// never from the chat context that created it.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/entailgraph/entailgraph/pkg/hypergraph"
	"github.com/entailgraph/entailgraph/pkg/hypergraph/store"
	"github.com/entailgraph/entailgraph/pkg/llmprovider"
)

const toolName = "report_claim_score"

type scoreArgs struct {
	Score     float64 `json:"score" jsonschema:"required,description=A truth score in [0, 10] for the claim given its evidence.,minimum=0,maximum=10"`
	Reasoning string  `json:"reasoning" jsonschema:"required,description=Natural-language justification for the score, grounded in the evidence shown."`
}

// Evaluator scores claims from evidence and writes results back through the
// store, which re-runs cost propagation automatically on every save.
type Evaluator struct {
	provider llmprovider.Provider
	schema   any
}

func New(provider llmprovider.Provider) (*Evaluator, error) {
	schema, err := llmprovider.SchemaFor[scoreArgs]()
	if err != nil {
		return nil, fmt.Errorf("reflect claim score schema: %w", err)
	}
	return &Evaluator{provider: provider, schema: schema}, nil
}

// Evaluate scores claimID from its evidence and writes the result through s.
// A claim with no evidence is refused and scored 0 without a model call.
func (e *Evaluator) Evaluate(ctx context.Context, s *store.Store, claimID string) (*hypergraph.Claim, error) {
	g, _, err := s.Load()
	if err != nil {
		return nil, err
	}
	claim, ok := g.Claims[claimID]
	if !ok {
		return nil, fmt.Errorf("%w: claim %q", hypergraph.ErrUnknownID, claimID)
	}

	if len(claim.Evidence) == 0 {
		zero := 0.0
		updated, _, err := s.SetClaimScore(claimID, &zero, "no evidence attached; evaluator refuses to score")
		if err != nil {
			return nil, err
		}
		return updated.Claims[claimID], nil
	}

	prompt := renderPrompt(claim)
	args, err := e.judge(ctx, prompt)
	if err != nil {
		return nil, err
	}

	score := clamp(args.Score, 0, 10)
	updated, _, err := s.SetClaimScore(claimID, &score, args.Reasoning)
	if err != nil {
		return nil, err
	}
	return updated.Claims[claimID], nil
}

func renderPrompt(claim *hypergraph.Claim) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Claim: %s\n\nEvidence:\n", claim.Text)
	for i, ev := range claim.Evidence {
		switch ev.Kind {
		case hypergraph.EvidenceSimulation:
			fmt.Fprintf(&b, "%d. Simulation (%s:%d-%d):\n```\n%s\n```\n", i+1, ev.Source, ev.Lines.Start, ev.Lines.End, ev.Code)
		case hypergraph.EvidenceLiterature:
			fmt.Fprintf(&b, "%d. Literature (%s): %q\n", i+1, ev.Source, ev.ReferenceText)
		case hypergraph.EvidenceCalculation:
			fmt.Fprintf(&b, "%d. Calculation:\nEquations: %s\nProgram:\n```\n%s\n```\n", i+1, ev.Equations, ev.Program)
		}
	}
	b.WriteString("\nScore how well this evidence supports the claim, from 0 (unsupported) to 10 (conclusively supported).")
	return b.String()
}

func (e *Evaluator) judge(ctx context.Context, prompt string) (scoreArgs, error) {
	messages := []llmprovider.Message{
		{Role: llmprovider.RoleSystem, Content: "You are a skeptical evidence reviewer. Report your score only via the report_claim_score tool."},
		{Role: llmprovider.RoleUser, Content: prompt},
	}
	tool := llmprovider.ToolDef{Name: toolName, Description: "Report a structured claim score.", Schema: e.schema}

	raw, err := e.provider.ForceToolCall(ctx, messages, tool)
	if err != nil {
		return scoreArgs{}, fmt.Errorf("claim score judge call: %w", err)
	}
	var args scoreArgs
	if err := json.Unmarshal(raw, &args); err != nil || args.Score < 0 || args.Score > 10 {
		retryMessages := append(messages, llmprovider.Message{
			Role:    llmprovider.RoleUser,
			Content: "Your previous response was invalid or out of range. Call report_claim_score again with a score strictly between 0 and 10.",
		})
		raw, err = e.provider.ForceToolCall(ctx, retryMessages, tool)
		if err != nil {
			return scoreArgs{}, fmt.Errorf("claim score judge retry call: %w", err)
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return scoreArgs{}, fmt.Errorf("claim score judge returned unparseable output twice: %w", err)
		}
	}
	return args, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
