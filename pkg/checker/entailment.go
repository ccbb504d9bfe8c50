// Package checker implements the Entailment Checker: an
// isolated judge LLM call per implication that the orchestrating model can
// invoke as a tool but whose verdict it cannot dictate.
package checker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/entailgraph/entailgraph/pkg/hypergraph"
	"github.com/entailgraph/entailgraph/pkg/hypergraph/store"
	"github.com/entailgraph/entailgraph/pkg/hypergraph/validate"
	"github.com/entailgraph/entailgraph/pkg/llmprovider"
)

const toolName = "report_entailment_verdict"

// verdictArgs is the structured shape forced out of the judge model: fields
// for the same analysis sections a free-form judge response would contain,
// produced here as validated struct fields instead of regex-scraped text.
type verdictArgs struct {
	Analysis           string   `json:"analysis" jsonschema:"required,description=Step-by-step reasoning about whether the premises entail the conclusion."`
	EntailmentHolds    bool     `json:"entailment_holds" jsonschema:"required,description=True if the premises, taken together per the connective, entail the conclusion."`
	RedundantPremises  []string `json:"redundant_premises" jsonschema:"description=Premise ids that could be removed (AND only) without invalidating the entailment."`
	DegeneratePremises []string `json:"degenerate_premises" jsonschema:"description=Premise ids that the conclusion itself trivially implies back."`
	Suggestions        string   `json:"suggestions" jsonschema:"description=Concrete suggestions to fix any defect found."`
}

// Checker runs entailment judgments and writes verdicts back through the
// store's scoped mutator — never by direct field assignment from the chat
// loop.
type Checker struct {
	provider llmprovider.Provider
	schema   any
}

// New constructs a Checker, reflecting the verdict schema once up front so a
// bad schema target fails at startup rather than on first use.
func New(provider llmprovider.Provider) (*Checker, error) {
	schema, err := llmprovider.SchemaFor[verdictArgs]()
	if err != nil {
		return nil, fmt.Errorf("reflect entailment verdict schema: %w", err)
	}
	return &Checker{provider: provider, schema: schema}, nil
}

// CheckOne judges a single implication and writes its verdict through s.
// The judge prompt contains only the implication's own premises/conclusion
// text and connective — never the conversation that created it.
func (c *Checker) CheckOne(ctx context.Context, s *store.Store, g *hypergraph.Hypergraph, implID string) (*hypergraph.Implication, error) {
	im, ok := g.Implications[implID]
	if !ok {
		return nil, fmt.Errorf("%w: implication %q", hypergraph.ErrUnknownID, implID)
	}

	premiseTexts := make([]string, 0, len(im.Premises))
	for _, p := range im.Premises {
		if claim, ok := g.Claims[p]; ok {
			premiseTexts = append(premiseTexts, fmt.Sprintf("- (%s) %s", p, claim.Text))
		}
	}
	conclusionText := ""
	if claim, ok := g.Claims[im.Conclusion]; ok {
		conclusionText = claim.Text
	}

	prompt := fmt.Sprintf(
		"Connective: %s\nPremises:\n%s\nConclusion: %s\n\nDetermine whether the premises, combined per the connective, logically entail the conclusion. Identify any redundant premise (for AND, one whose removal still yields a valid entailment) and any degenerate premise (one the conclusion trivially implies back).",
		im.Type, strings.Join(premiseTexts, "\n"), conclusionText,
	)

	args, err := c.judge(ctx, prompt)
	if err != nil {
		return nil, err
	}

	status := hypergraph.EntailmentPassed
	if !args.EntailmentHolds || len(args.RedundantPremises) > 0 || len(args.DegeneratePremises) > 0 {
		status = hypergraph.EntailmentFailed
	}

	explanation := hypergraph.EntailmentExplanation{
		Analysis:           args.Analysis,
		Valid:              args.EntailmentHolds,
		RedundantPremises:  args.RedundantPremises,
		DegeneratePremises: args.DegeneratePremises,
		Suggestions:        args.Suggestions,
	}
	signature := validate.Signature(g, im)

	updated, _, err := s.SetImplicationEntailment(implID, status, explanation, signature)
	if err != nil {
		return nil, err
	}
	return updated.Implications[implID], nil
}

// CheckStale runs CheckOne over every implication whose recorded signature no
// longer matches its current premises/conclusion text, or every implication
// if force is true.
func (c *Checker) CheckStale(ctx context.Context, s *store.Store, force bool, only []string) ([]*hypergraph.Implication, error) {
	g, _, err := s.Load()
	if err != nil {
		return nil, err
	}

	var targets []string
	if len(only) > 0 {
		targets = only
	} else {
		for id, im := range g.Implications {
			if force || im.LastCheckedSignature != validate.Signature(g, im) {
				targets = append(targets, id)
			}
		}
	}

	results := make([]*hypergraph.Implication, 0, len(targets))
	for _, id := range targets {
		current, _, err := s.Load()
		if err != nil {
			return results, err
		}
		updated, err := c.CheckOne(ctx, s, current, id)
		if err != nil {
			return results, err
		}
		results = append(results, updated)
	}
	return results, nil
}

// judge forces the structured tool call and retries once with a stricter
// re-prompt on a parse failure.
func (c *Checker) judge(ctx context.Context, prompt string) (verdictArgs, error) {
	messages := []llmprovider.Message{
		{Role: llmprovider.RoleSystem, Content: "You are a strict logic referee. Report your verdict only via the report_entailment_verdict tool."},
		{Role: llmprovider.RoleUser, Content: prompt},
	}
	tool := llmprovider.ToolDef{Name: toolName, Description: "Report a structured entailment verdict.", Schema: c.schema}

	raw, err := c.provider.ForceToolCall(ctx, messages, tool)
	if err != nil {
		return verdictArgs{}, fmt.Errorf("entailment judge call: %w", err)
	}
	var args verdictArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		retryMessages := append(messages, llmprovider.Message{
			Role:    llmprovider.RoleUser,
			Content: "Your previous response was not valid structured output. Call report_entailment_verdict again with well-formed arguments.",
		})
		raw, err = c.provider.ForceToolCall(ctx, retryMessages, tool)
		if err != nil {
			return verdictArgs{}, fmt.Errorf("entailment judge retry call: %w", err)
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return verdictArgs{}, fmt.Errorf("entailment judge returned unparseable output twice: %w", err)
		}
	}
	return args, nil
}
