// Package agent implements the Agent Tool Surface: the exact
// seven operations the orchestrating model may invoke, and nothing else. It
// is the model's only way to affect the store — scores and entailment
// statuses are never settable directly through this surface.
package agent

import "github.com/entailgraph/entailgraph/pkg/hypergraph"

// ReadGraphArgs takes no parameters; the path is implicit in the session's
// bound approach.
type ReadGraphArgs struct{}

// AddClaimArgs creates a claim with no score and no evidence.
type AddClaimArgs struct {
	ID            string   `json:"id" jsonschema:"required,description=A stable, unique claim id."`
	Text          string   `json:"text" jsonschema:"required,description=The natural-language claim text."`
	Tags          []string `json:"tags" jsonschema:"description=Free-form labels for organizing claims."`
	Uncertainties []string `json:"uncertainties" jsonschema:"description=Known caveats or open questions about this claim."`
}

// AddImplicationArgs creates an implication; entailment_status always starts
// unchecked regardless of what the model passes here.
type AddImplicationArgs struct {
	ID         string   `json:"id" jsonschema:"required,description=A stable, unique implication id."`
	Premises   []string `json:"premises" jsonschema:"required,description=One or more premise claim ids."`
	Conclusion string   `json:"conclusion" jsonschema:"required,description=The claim id this implication concludes. Must not already be the conclusion of another implication."`
	Type       string   `json:"type" jsonschema:"required,description=The connective: AND or OR.,enum=AND,enum=OR"`
	Reasoning  string   `json:"reasoning" jsonschema:"required,description=Natural-language justification for why the premises should entail the conclusion."`
}

// AddEvidenceArgs appends one evidence item to a claim. Exactly one of the
// evidence shapes should be populated, selected by Kind — mirrors
// hypergraph.Evidence's tagged-variant shape directly so the schema the
// model sees matches the stored shape one-to-one.
type AddEvidenceArgs struct {
	ClaimID string                `json:"claim_id" jsonschema:"required,description=The claim this evidence supports."`
	Kind    hypergraph.EvidenceKind `json:"kind" jsonschema:"required,description=One of simulation, literature, calculation.,enum=simulation,enum=literature,enum=calculation"`

	Source string              `json:"source" jsonschema:"description=Relative path to source code (simulation) or a citation (literature)."`
	Lines  hypergraph.LineRange `json:"lines" jsonschema:"description=1-indexed inclusive line range into source, for simulation evidence."`
	Code   string              `json:"code" jsonschema:"description=The exact code snippet at the cited lines, for simulation evidence."`

	ReferenceText string `json:"reference_text" jsonschema:"description=The exact quoted text, for literature evidence."`

	Equations string `json:"equations" jsonschema:"description=A LaTeX equation string, for calculation evidence."`
	Program   string `json:"program" jsonschema:"description=A self-contained function body returning a numeric result, for calculation evidence."`
}

// CheckEntailmentArgs runs the Entailment Checker over selected implications,
// or by default those whose signature has drifted since the last check.
type CheckEntailmentArgs struct {
	Force          bool     `json:"force" jsonschema:"description=Recheck every implication, not only those with a stale signature."`
	ImplicationIDs []string `json:"implication_ids" jsonschema:"description=Specific implications to check. If empty, the checker selects stale ones itself."`
}

// EvaluateClaimArgs runs the Claim Evaluator over one claim's evidence.
type EvaluateClaimArgs struct {
	ClaimID string `json:"claim_id" jsonschema:"required,description=The claim to score from its attached evidence."`
}

// DeleteClaimArgs removes a claim and every implication that references it.
type DeleteClaimArgs struct {
	ID string `json:"id" jsonschema:"required,description=The claim id to delete."`
}
