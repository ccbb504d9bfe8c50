package automode

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entailgraph/entailgraph/pkg/fanout"
	"github.com/entailgraph/entailgraph/pkg/hypergraph"
	"github.com/entailgraph/entailgraph/pkg/hypergraph/store"
	"github.com/entailgraph/entailgraph/pkg/orchestrator"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []fanout.Event
}

func (r *recordingPublisher) Publish(_ string, ev fanout.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingPublisher) statesInOrder() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		if ev.Type == fanout.EventAutoStatus {
			out = append(out, ev.State)
		}
	}
	return out
}

// countingRunner counts invocations and, optionally, blocks until released —
// used to exercise Pause/Resume/Stop deterministically.
type countingRunner struct {
	calls int32
	block chan struct{}
}

func (r *countingRunner) RunTurn(ctx context.Context, s *orchestrator.Session, userText string) error {
	atomic.AddInt32(&r.calls, 1)
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, _, err := store.New(t.TempDir(), "approach", "root hypothesis")
	require.NoError(t, err)
	return s
}

func TestSelectNextAction_PrioritizesUncheckedImplicationFirst(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.AddClaim(&hypergraph.Claim{ID: hypergraph.HypothesisID, Text: "root"})
	require.NoError(t, err)
	_, _, err = s.AddClaim(&hypergraph.Claim{ID: "c1", Text: "A"})
	require.NoError(t, err)
	_, _, err = s.AddImplication(&hypergraph.Implication{ID: "i1", Premises: []string{"c1"}, Conclusion: hypergraph.HypothesisID, Type: hypergraph.ConnectiveAND})
	require.NoError(t, err)

	g, _, err := s.Load()
	require.NoError(t, err)

	action, ok := SelectNextAction(g)
	require.True(t, ok)
	assert.Equal(t, "check_entailment", action.Kind)
	assert.Equal(t, "i1", action.Target)
}

func TestSelectNextAction_FallsBackToFailedImplication(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.AddClaim(&hypergraph.Claim{ID: hypergraph.HypothesisID, Text: "root"})
	require.NoError(t, err)
	_, _, err = s.AddClaim(&hypergraph.Claim{ID: "c1", Text: "A"})
	require.NoError(t, err)
	_, _, err = s.AddImplication(&hypergraph.Implication{ID: "i1", Premises: []string{"c1"}, Conclusion: hypergraph.HypothesisID, Type: hypergraph.ConnectiveAND})
	require.NoError(t, err)
	_, _, err = s.SetImplicationEntailment("i1", hypergraph.EntailmentFailed, hypergraph.EntailmentExplanation{}, "sig")
	require.NoError(t, err)

	g, _, err := s.Load()
	require.NoError(t, err)

	action, ok := SelectNextAction(g)
	require.True(t, ok)
	assert.Equal(t, "repair_implication", action.Kind)
	assert.Equal(t, "i1", action.Target)
}

func TestSelectNextAction_PrefersEvidenceGatheringOverScoring(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.AddClaim(&hypergraph.Claim{ID: "no-evidence", Text: "A"})
	require.NoError(t, err)
	_, _, err = s.AddClaim(&hypergraph.Claim{ID: "scored-pending", Text: "B"})
	require.NoError(t, err)
	_, _, err = s.AddEvidence("scored-pending", hypergraph.Evidence{Kind: hypergraph.EvidenceCalculation, Equations: "E=mc^2", Program: "calc.py"})
	require.NoError(t, err)

	g, _, err := s.Load()
	require.NoError(t, err)

	action, ok := SelectNextAction(g)
	require.True(t, ok)
	assert.Equal(t, "gather_evidence", action.Kind)
	assert.Equal(t, "no-evidence", action.Target)
}

func TestSelectNextAction_PicksUnscoredClaimWithEvidence(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.AddClaim(&hypergraph.Claim{ID: "c1", Text: "A"})
	require.NoError(t, err)
	_, _, err = s.AddEvidence("c1", hypergraph.Evidence{Kind: hypergraph.EvidenceCalculation, Equations: "E=mc^2", Program: "calc.py"})
	require.NoError(t, err)

	g, _, err := s.Load()
	require.NoError(t, err)

	action, ok := SelectNextAction(g)
	require.True(t, ok)
	assert.Equal(t, "evaluate_claim", action.Kind)
	assert.Equal(t, "c1", action.Target)
}

func TestSelectNextAction_FixpointWhenHypothesisAlone(t *testing.T) {
	s := newTestStore(t)
	score := 7.0
	_, _, err := s.AddClaim(&hypergraph.Claim{ID: hypergraph.HypothesisID, Text: "root"})
	require.NoError(t, err)
	_, _, err = s.AddEvidence(hypergraph.HypothesisID, hypergraph.Evidence{Kind: hypergraph.EvidenceCalculation, Equations: "E=mc^2", Program: "calc.py"})
	require.NoError(t, err)
	_, _, err = s.SetClaimScore(hypergraph.HypothesisID, &score, "supported")
	require.NoError(t, err)
	g, _, err := s.Load()
	require.NoError(t, err)

	_, ok := SelectNextAction(g)
	assert.False(t, ok, "a graph with only a scored/complete hypothesis and no branches is a fixpoint")
}

func TestSupervisor_StopsAtMaxTurns(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.AddClaim(&hypergraph.Claim{ID: "c1", Text: "A"})
	require.NoError(t, err)

	runner := &countingRunner{}
	pub := &recordingPublisher{}
	cfg := Config{MaxTurns: 3, TurnTimeout: time.Second, OnFixpoint: FixpointIdle}
	sup := New("approach-1", s, runner, nil, pub, cfg)

	err = sup.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&runner.calls))
	assert.Equal(t, StateIdle, sup.State())
}

func TestSupervisor_StopsAtFixpointByDefault(t *testing.T) {
	s := newTestStore(t)
	runner := &countingRunner{}
	pub := &recordingPublisher{}
	cfg := Config{MaxTurns: 100, TurnTimeout: time.Second, OnFixpoint: FixpointStop}
	sup := New("approach-1", s, runner, nil, pub, cfg)

	err := sup.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&runner.calls), "an empty graph is already a fixpoint")
	assert.Equal(t, StateIdle, sup.State())
}

func TestSupervisor_RefusesToStartWithUnavailableBackends(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.AddClaim(&hypergraph.Claim{ID: "c1", Text: "A"})
	require.NoError(t, err)

	runner := &countingRunner{}
	pub := &recordingPublisher{}
	cfg := Config{MaxTurns: 10, TurnTimeout: time.Second, OnFixpoint: FixpointStop, Unavailable: []string{"checker"}}
	sup := New("approach-1", s, runner, nil, pub, cfg)

	err = sup.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checker")
	assert.Equal(t, int32(0), atomic.LoadInt32(&runner.calls), "no turn should run when a required backend is unavailable")
	assert.Equal(t, StateIdle, sup.State())
}

func TestSupervisor_PauseBlocksFurtherTurnsUntilResume(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.AddClaim(&hypergraph.Claim{ID: "c1", Text: "A"})
	require.NoError(t, err)

	runner := &countingRunner{}
	pub := &recordingPublisher{}
	cfg := Config{MaxTurns: 1000, TurnTimeout: time.Second, OnFixpoint: FixpointIdle}
	sup := New("approach-1", s, runner, nil, pub, cfg)

	done := make(chan error, 1)
	go func() { done <- sup.Start(context.Background()) }()

	require.Eventually(t, func() bool { return sup.State() == StateRunning }, time.Second, time.Millisecond)
	sup.Pause()
	require.Eventually(t, func() bool { return sup.State() == StatePaused }, time.Second, time.Millisecond)

	callsAtPause := atomic.LoadInt32(&runner.calls)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, callsAtPause, atomic.LoadInt32(&runner.calls), "no turns should run while paused")

	sup.Resume()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&runner.calls) > callsAtPause }, time.Second, time.Millisecond)

	sup.Stop()
	<-done
}

func TestSupervisor_StopEndsRunPromptly(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.AddClaim(&hypergraph.Claim{ID: "c1", Text: "A"})
	require.NoError(t, err)

	runner := &countingRunner{block: make(chan struct{})}
	pub := &recordingPublisher{}
	cfg := Config{MaxTurns: 1000, TurnTimeout: 5 * time.Second, OnFixpoint: FixpointIdle}
	sup := New("approach-1", s, runner, nil, pub, cfg)

	done := make(chan error, 1)
	go func() { done <- sup.Start(context.Background()) }()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&runner.calls) >= 1 }, time.Second, time.Millisecond)
	sup.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
	assert.Equal(t, StateIdle, sup.State())

	states := pub.statesInOrder()
	require.NotEmpty(t, states)
	assert.Equal(t, "idle", states[len(states)-1])
}
