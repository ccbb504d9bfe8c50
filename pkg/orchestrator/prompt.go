package orchestrator

import (
	"fmt"
	"strings"

	"github.com/entailgraph/entailgraph/pkg/llmprovider"
)

// systemPromptTemplate is the fixed framing every session's first message
// uses, interpolated with the approach's identity and its tool surface.
// Kept as a single const rather than a templating engine, composed the way
// a ReAct instruction body is written: one fixed block of rules.
const systemPromptTemplate = `You are the reasoning agent for the approach %q (%s).

Your job is to grow and validate an entailment hypergraph: a set of natural-
language claims connected by AND/OR implications, rooted at the claim id
"hypothesis". You may create claims and implications, attach evidence, and
invoke the entailment checker and claim evaluator as tools — but you can
never set a score or an entailment status yourself. Those are produced by
isolated judge calls triggered through check_entailment and evaluate_claim.

Available tools:
%s

Work incrementally: read the graph before acting, prefer extending existing
claims over duplicating them, and check entailment on every implication you
add.`

// BuildSystemPrompt renders systemPromptTemplate for one approach, listing
// every declared tool's name and description so the model's framing always
// matches the surface it is actually given.
func BuildSystemPrompt(approachID, approachPath string, tools []llmprovider.ToolDef) string {
	var b strings.Builder
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}
	return fmt.Sprintf(systemPromptTemplate, approachID, approachPath, strings.TrimRight(b.String(), "\n"))
}
