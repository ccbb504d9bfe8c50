// Package automode implements the Auto Mode Supervisor: a
// bounded, pausable loop that repeatedly prompts the orchestrator to grow and
// validate one approach's hypergraph without further human input.
package automode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/entailgraph/entailgraph/pkg/fanout"
	"github.com/entailgraph/entailgraph/pkg/hypergraph"
	"github.com/entailgraph/entailgraph/pkg/hypergraph/store"
	"github.com/entailgraph/entailgraph/pkg/orchestrator"
)

// State is one of the Auto Mode Supervisor's state-machine states.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
)

// Fixpoint names what the supervisor does when no further action is
// selectable; resolved default: stop).
type Fixpoint string

const (
	FixpointStop Fixpoint = "stop"
	FixpointIdle Fixpoint = "idle"
)

// Config bounds one supervisor run.
type Config struct {
	MaxTurns    int
	TurnTimeout time.Duration
	OnFixpoint  Fixpoint

	// Unavailable names backends with no API key configured (e.g.
	// "checker", "evaluator"). SelectNextAction's priority order leans on
	// check_entailment and evaluate_claim succeeding, so Start refuses
	// immediately when this is non-empty instead of running a turn loop
	// that can never make progress.
	Unavailable []string
}

// DefaultConfig favors a bounded, terminating loop: a supervisor that
// silently idles forever is a worse default for a locally-run tool than one
// that stops and reports why.
var DefaultConfig = Config{MaxTurns: 40, TurnTimeout: 2 * time.Minute, OnFixpoint: FixpointStop}

// Runner is the orchestrator capability the supervisor drives turns through.
type Runner interface {
	RunTurn(ctx context.Context, s *orchestrator.Session, userText string) error
}

// Supervisor drives one approach's auto-mode run. One instance exists per
// approach; Pool admits at most one running instance per approach and does
// not limit how many approaches run at once.
type Supervisor struct {
	approachID string
	store      *store.Store
	runner     Runner
	session    *orchestrator.Session
	publisher  orchestrator.Publisher
	cfg        Config

	mu      sync.Mutex
	state   State
	turn    int
	pauseCh chan struct{}
	cancel  context.CancelFunc
}

// New constructs a Supervisor bound to one approach and session. The session
// is driven exactly as a human-typed turn would be — the supervisor has no
// separate tool surface of its own.
func New(approachID string, s *store.Store, runner Runner, session *orchestrator.Session, publisher orchestrator.Publisher, cfg Config) *Supervisor {
	return &Supervisor{approachID: approachID, store: s, runner: runner, session: session, publisher: publisher, cfg: cfg, state: StateIdle}
}

// State returns the supervisor's current state.
func (sup *Supervisor) State() State {
	sup.mu.Lock()
	defer sup.mu.Unlock()
	return sup.state
}

// Start runs the bounded turn loop until max_turns, a fixpoint, Stop, or an
// unrecoverable error. It blocks until the run
// ends; callers typically invoke it from its own goroutine.
func (sup *Supervisor) Start(ctx context.Context) error {
	sup.mu.Lock()
	if sup.state != StateIdle {
		sup.mu.Unlock()
		return fmt.Errorf("auto mode for approach %q is not idle", sup.approachID)
	}
	if len(sup.cfg.Unavailable) > 0 {
		sup.mu.Unlock()
		return fmt.Errorf("auto mode refuses to start for approach %q: missing api key for backend(s) %v", sup.approachID, sup.cfg.Unavailable)
	}
	runCtx, cancel := context.WithCancel(ctx)
	sup.cancel = cancel
	sup.state = StateRunning
	sup.pauseCh = make(chan struct{})
	sup.mu.Unlock()
	defer func() {
		sup.mu.Lock()
		sup.state = StateIdle
		sup.cancel = nil
		sup.mu.Unlock()
		sup.emitStatus(StateIdle)
	}()

	sup.emitStatus(StateRunning)

	for {
		sup.mu.Lock()
		turn := sup.turn
		sup.mu.Unlock()
		if turn >= sup.cfg.MaxTurns {
			return nil
		}

		if err := sup.waitUnlessPaused(runCtx); err != nil {
			return err
		}

		g, _, err := sup.store.Load()
		if err != nil {
			return fmt.Errorf("auto mode load graph: %w", err)
		}

		action, ok := SelectNextAction(g)
		if !ok {
			if sup.cfg.OnFixpoint == FixpointIdle {
				sup.setState(StatePaused)
				sup.emitStatus(StatePaused)
				continue
			}
			return nil
		}

		turnCtx, turnCancel := context.WithTimeout(runCtx, sup.cfg.TurnTimeout)
		err = sup.runner.RunTurn(turnCtx, sup.session, action.Prompt)
		turnCancel()
		if err != nil {
			if runCtx.Err() != nil {
				return nil // stopped/cancelled, not an error worth surfacing
			}
			return fmt.Errorf("auto mode turn failed: %w", err)
		}

		sup.mu.Lock()
		sup.turn++
		n := sup.turn
		sup.mu.Unlock()
		sup.publisher.Publish(sup.approachID, fanout.Event{
			Type: fanout.EventAutoTurn, Timestamp: time.Now().UTC(), TurnNumber: n, MaxTurns: sup.cfg.MaxTurns,
		})
	}
}

// waitUnlessPaused blocks while the supervisor is paused, returning early if
// the run context is cancelled.
func (sup *Supervisor) waitUnlessPaused(ctx context.Context) error {
	for {
		sup.mu.Lock()
		paused := sup.state == StatePaused
		ch := sup.pauseCh
		sup.mu.Unlock()
		if !paused {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

func (sup *Supervisor) setState(s State) {
	sup.mu.Lock()
	sup.state = s
	sup.mu.Unlock()
}

func (sup *Supervisor) emitStatus(s State) {
	sup.publisher.Publish(sup.approachID, fanout.Event{Type: fanout.EventAutoStatus, Timestamp: time.Now().UTC(), State: string(s)})
}

// Pause transitions running -> paused. A no-op if not running.
func (sup *Supervisor) Pause() {
	sup.mu.Lock()
	if sup.state != StateRunning {
		sup.mu.Unlock()
		return
	}
	sup.state = StatePaused
	sup.mu.Unlock()
	sup.emitStatus(StatePaused)
}

// Resume transitions paused -> running, waking the blocked run loop.
func (sup *Supervisor) Resume() {
	sup.mu.Lock()
	if sup.state != StatePaused {
		sup.mu.Unlock()
		return
	}
	sup.state = StateRunning
	ch := sup.pauseCh
	sup.pauseCh = make(chan struct{})
	sup.mu.Unlock()
	close(ch)
	sup.emitStatus(StateRunning)
}

// Stop cancels the run loop; Start returns once the in-flight turn (if any)
// observes cancellation.
func (sup *Supervisor) Stop() {
	sup.mu.Lock()
	cancel := sup.cancel
	paused := sup.state == StatePaused
	ch := sup.pauseCh
	sup.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if paused && ch != nil {
		// Wake the paused loop so it observes the cancellation promptly
		// instead of waiting for a Resume that will never come.
		select {
		case <-ch:
		default:
			close(ch)
		}
	}
}

// Action is one synthesized auto-mode turn: a goal-directed user-style
// prompt plus the graph element it targets, for logging/diagnostics.
type Action struct {
	Kind   string
	Target string
	Prompt string
}

// SelectNextAction implements the fixed priority order: unchecked
// implications -> failed implications -> leaf claims lacking evidence ->
// claims with evidence but no score -> unexplored branches off the root.
// Returns ok=false at a fixpoint (nothing left to do).
func SelectNextAction(g *hypergraph.Hypergraph) (Action, bool) {
	if _, id, ok := firstByID(g.Implications, func(im *hypergraph.Implication) bool {
		return im.EntailmentStatus == hypergraph.EntailmentUnchecked
	}); ok {
		return Action{
			Kind: "check_entailment", Target: id,
			Prompt: fmt.Sprintf("Run check_entailment on implication %q and report the result.", id),
		}, true
	}

	if _, id, ok := firstByID(g.Implications, func(im *hypergraph.Implication) bool {
		return im.EntailmentStatus == hypergraph.EntailmentFailed
	}); ok {
		return Action{
			Kind: "repair_implication", Target: id,
			Prompt: fmt.Sprintf("Implication %q failed entailment checking. Inspect its explanation, then either revise its premises/conclusion with add_implication or add the missing supporting claim.", id),
		}, true
	}

	if _, id, ok := firstClaimByID(g.Claims, func(c *hypergraph.Claim) bool {
		return len(c.Evidence) == 0 && !isImplicationConclusion(g, c.ID)
	}); ok {
		return Action{
			Kind: "gather_evidence", Target: id,
			Prompt: fmt.Sprintf("Claim %q has no evidence yet. Attach simulation, literature, or calculation evidence with add_evidence, then call evaluate_claim.", id),
		}, true
	}

	if _, id, ok := firstClaimByID(g.Claims, func(c *hypergraph.Claim) bool {
		return len(c.Evidence) > 0 && c.Score == nil
	}); ok {
		return Action{
			Kind: "evaluate_claim", Target: id,
			Prompt: fmt.Sprintf("Claim %q has evidence but no score. Call evaluate_claim on it.", id),
		}, true
	}

	if id, ok := unexploredBranch(g); ok {
		return Action{
			Kind: "explore", Target: id,
			Prompt: fmt.Sprintf("Claim %q has no supporting implication yet. Propose and add_implication a premise path toward it.", id),
		}, true
	}

	return Action{}, false
}

func firstByID(m map[string]*hypergraph.Implication, pred func(*hypergraph.Implication) bool) (*hypergraph.Implication, string, bool) {
	ids := sortedKeys(m)
	for _, id := range ids {
		if pred(m[id]) {
			return m[id], id, true
		}
	}
	return nil, "", false
}

func firstClaimByID(m map[string]*hypergraph.Claim, pred func(*hypergraph.Claim) bool) (*hypergraph.Claim, string, bool) {
	ids := sortedClaimKeys(m)
	for _, id := range ids {
		if pred(m[id]) {
			return m[id], id, true
		}
	}
	return nil, "", false
}

// isImplicationConclusion reports whether claimID already concludes some
// implication — such a claim is grown by exploring premises, not evidence.
func isImplicationConclusion(g *hypergraph.Hypergraph, claimID string) bool {
	for _, im := range g.Implications {
		if im.Conclusion == claimID {
			return true
		}
	}
	return false
}

// unexploredBranch finds a non-hypothesis claim that concludes no
// implication and is not itself a premise anywhere — a dead end off the
// root worth growing toward.
func unexploredBranch(g *hypergraph.Hypergraph) (string, bool) {
	isPremise := make(map[string]bool)
	for _, im := range g.Implications {
		for _, p := range im.Premises {
			isPremise[p] = true
		}
	}
	ids := sortedClaimKeys(g.Claims)
	for _, id := range ids {
		if id == hypergraph.HypothesisID {
			continue
		}
		if !isImplicationConclusion(g, id) && !isPremise[id] {
			return id, true
		}
	}
	return "", false
}

func sortedKeys(m map[string]*hypergraph.Implication) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sortStrings(out)
	return out
}

func sortedClaimKeys(m map[string]*hypergraph.Claim) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sortStrings(out)
	return out
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
