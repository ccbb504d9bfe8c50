package automode

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entailgraph/entailgraph/pkg/hypergraph"
)

func TestPool_RejectsDuplicateStartForSameApproach(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.AddClaim(&hypergraph.Claim{ID: "c1", Text: "A"})
	require.NoError(t, err)

	pool := NewPool()
	cfg := Config{MaxTurns: 1000, TurnTimeout: time.Second, OnFixpoint: FixpointIdle}
	sup1 := New("approach-1", s, &countingRunner{}, nil, &recordingPublisher{}, cfg)
	sup2 := New("approach-1", s, &countingRunner{}, nil, &recordingPublisher{}, cfg)

	require.NoError(t, pool.Start(context.Background(), "approach-1", sup1))
	err = pool.Start(context.Background(), "approach-1", sup2)
	assert.Error(t, err)

	pool.StopAll()
}

func TestPool_PauseResumeStopDelegateToSupervisor(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.AddClaim(&hypergraph.Claim{ID: "c1", Text: "A"})
	require.NoError(t, err)

	pool := NewPool()
	cfg := Config{MaxTurns: 1000, TurnTimeout: time.Second, OnFixpoint: FixpointIdle}
	sup := New("approach-1", s, &countingRunner{}, nil, &recordingPublisher{}, cfg)

	require.NoError(t, pool.Start(context.Background(), "approach-1", sup))
	require.Eventually(t, func() bool { return sup.State() == StateRunning }, time.Second, time.Millisecond)

	assert.True(t, pool.Pause("approach-1"))
	require.Eventually(t, func() bool { return sup.State() == StatePaused }, time.Second, time.Millisecond)

	assert.True(t, pool.Resume("approach-1"))
	require.Eventually(t, func() bool { return sup.State() == StateRunning }, time.Second, time.Millisecond)

	assert.True(t, pool.Stop("approach-1"))
	require.Eventually(t, func() bool {
		_, ok := pool.Get("approach-1")
		return !ok
	}, time.Second, time.Millisecond)
}

func TestPool_ActionsOnUnknownApproachReturnFalse(t *testing.T) {
	pool := NewPool()
	assert.False(t, pool.Pause("ghost"))
	assert.False(t, pool.Resume("ghost"))
	assert.False(t, pool.Stop("ghost"))
	_, ok := pool.Get("ghost")
	assert.False(t, ok)
}
