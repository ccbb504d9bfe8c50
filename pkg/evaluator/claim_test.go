package evaluator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entailgraph/entailgraph/pkg/hypergraph"
	"github.com/entailgraph/entailgraph/pkg/hypergraph/store"
	"github.com/entailgraph/entailgraph/pkg/llmprovider"
)

type fakeProvider struct {
	response json.RawMessage
	calls    int
}

func (f *fakeProvider) StreamChat(context.Context, []llmprovider.Message, []llmprovider.ToolDef) (<-chan llmprovider.StreamEvent, error) {
	panic("not used by evaluator tests")
}

func (f *fakeProvider) ForceToolCall(context.Context, []llmprovider.Message, llmprovider.ToolDef) (json.RawMessage, error) {
	f.calls++
	return f.response, nil
}

func newApproach(t *testing.T) *store.Store {
	t.Helper()
	s, _, err := store.New(t.TempDir(), "test approach", "")
	require.NoError(t, err)
	return s
}

// S5: claim with no evidence is refused and scored 0 without a model call.
func TestEvaluator_NoEvidenceScoresZeroWithoutModelCall(t *testing.T) {
	s := newApproach(t)
	_, _, err := s.AddClaim(&hypergraph.Claim{ID: "c1", Text: "A holds"})
	require.NoError(t, err)

	provider := &fakeProvider{}
	e, err := New(provider)
	require.NoError(t, err)

	claim, err := e.Evaluate(context.Background(), s, "c1")
	require.NoError(t, err)
	require.NotNil(t, claim.Score)
	assert.Equal(t, 0.0, *claim.Score)
	assert.Equal(t, 0, provider.calls)
}

// S5: well-documented literature evidence should score highly.
func TestEvaluator_ScoresFromLiteratureEvidence(t *testing.T) {
	s := newApproach(t)
	_, _, err := s.AddClaim(&hypergraph.Claim{ID: "c1", Text: "A holds"})
	require.NoError(t, err)
	_, _, err = s.AddEvidence("c1", hypergraph.Evidence{
		Kind: hypergraph.EvidenceLiterature, Source: "paper.pdf", ReferenceText: "A holds, well-documented",
	})
	require.NoError(t, err)

	resp, _ := json.Marshal(scoreArgs{Score: 9, Reasoning: "directly supported by the cited reference"})
	e, err := New(&fakeProvider{response: resp})
	require.NoError(t, err)

	claim, err := e.Evaluate(context.Background(), s, "c1")
	require.NoError(t, err)
	require.NotNil(t, claim.Score)
	assert.GreaterOrEqual(t, *claim.Score, 7.0)
	assert.NotEmpty(t, claim.Reasoning)
}

func TestEvaluator_ClampsOutOfRangeScore(t *testing.T) {
	s := newApproach(t)
	_, _, _ = s.AddClaim(&hypergraph.Claim{ID: "c1", Text: "A holds"})
	_, _, _ = s.AddEvidence("c1", hypergraph.Evidence{
		Kind: hypergraph.EvidenceCalculation, Equations: "x=1", Program: "return 1",
	})

	resp, _ := json.Marshal(scoreArgs{Score: 15, Reasoning: "overconfident judge"})
	e, err := New(&fakeProvider{response: resp})
	require.NoError(t, err)

	claim, err := e.Evaluate(context.Background(), s, "c1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, *claim.Score)
}

func TestEvaluator_UnknownClaimErrors(t *testing.T) {
	s := newApproach(t)
	e, err := New(&fakeProvider{})
	require.NoError(t, err)
	_, err = e.Evaluate(context.Background(), s, "ghost")
	require.ErrorIs(t, err, hypergraph.ErrUnknownID)
}
