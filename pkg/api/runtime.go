package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/entailgraph/entailgraph/pkg/agent"
	"github.com/entailgraph/entailgraph/pkg/automode"
	"github.com/entailgraph/entailgraph/pkg/checker"
	"github.com/entailgraph/entailgraph/pkg/config"
	"github.com/entailgraph/entailgraph/pkg/evaluator"
	"github.com/entailgraph/entailgraph/pkg/fanout"
	"github.com/entailgraph/entailgraph/pkg/hypergraph/store"
	"github.com/entailgraph/entailgraph/pkg/llmprovider"
	"github.com/entailgraph/entailgraph/pkg/orchestrator"
	"github.com/entailgraph/entailgraph/pkg/workspace"
)

// approachRuntime bundles the per-approach components the API server wires
// together: one Store, one Agent Tool Surface bound to it, one judge pair,
// one Loop, and the live sessions chatting against it.
// One instance is built lazily per approach and kept for the life of the
// process.
type approachRuntime struct {
	approach workspace.Approach
	store    *store.Store
	surface  *agent.Surface
	loop     *orchestrator.Loop

	mu       sync.Mutex
	sessions map[string]*orchestrator.Session
}

// Runtime is the process-wide dependency graph the HTTP/WebSocket Server
// drives: workspace, configuration, model-provider clients, fan-out, and
// the lazily-built per-approach bundles.
type Runtime struct {
	ws  *workspace.Workspace
	cfg *config.Config

	connManager *fanout.ConnectionManager
	watcher     *fanout.Watcher
	autoPool    *automode.Pool

	orchestratorProvider llmprovider.Provider
	checkerClient        *checker.Checker
	evaluatorClient      *evaluator.Evaluator
	toolDefs             []llmprovider.ToolDef

	mu        sync.Mutex
	approches map[string]*approachRuntime
}

// NewRuntime wires the process-wide dependency graph: one provider client
// per configured backend, the Agent Tool Surface's reflected
// schemas, and an empty fan-out ConnectionManager. A checker or evaluator
// backend whose API key is unavailable (cfg.Available, set by
// config.Validator) is left unconstructed rather than failing the whole
// process to boot — the surface dispatches its tool as disabled instead.
// The orchestrator provider is always constructed.
func NewRuntime(ws *workspace.Workspace, cfg *config.Config) (*Runtime, error) {
	orchestratorProvider := llmprovider.New(apiKeyFor(cfg.Orchestrator), cfg.Orchestrator.BaseURL, cfg.Orchestrator.Model)

	var checkerClient *checker.Checker
	if cfg.Available.Checker {
		checkerProvider := llmprovider.New(apiKeyFor(cfg.Checker), cfg.Checker.BaseURL, cfg.Checker.Model)
		c, err := checker.New(checkerProvider)
		if err != nil {
			return nil, fmt.Errorf("construct entailment checker: %w", err)
		}
		checkerClient = c
	} else {
		slog.Warn("entailment checker disabled: api key not set", "api_key_env", cfg.Checker.APIKeyEnv)
	}

	var evaluatorClient *evaluator.Evaluator
	if cfg.Available.Evaluator {
		evaluatorProvider := llmprovider.New(apiKeyFor(cfg.Evaluator), cfg.Evaluator.BaseURL, cfg.Evaluator.Model)
		e, err := evaluator.New(evaluatorProvider)
		if err != nil {
			return nil, fmt.Errorf("construct claim evaluator: %w", err)
		}
		evaluatorClient = e
	} else {
		slog.Warn("claim evaluator disabled: api key not set", "api_key_env", cfg.Evaluator.APIKeyEnv)
	}

	toolDefs, err := agent.Definitions()
	if err != nil {
		return nil, fmt.Errorf("reflect agent tool definitions: %w", err)
	}

	connManager := fanout.NewConnectionManager()
	watcher, err := fanout.NewWatcher(connManager)
	if err != nil {
		return nil, fmt.Errorf("construct file watcher: %w", err)
	}

	return &Runtime{
		ws:                   ws,
		cfg:                  cfg,
		connManager:          connManager,
		watcher:              watcher,
		autoPool:             automode.NewPool(),
		orchestratorProvider: orchestratorProvider,
		checkerClient:        checkerClient,
		evaluatorClient:      evaluatorClient,
		toolDefs:             toolDefs,
		approches:            make(map[string]*approachRuntime),
	}, nil
}

func apiKeyFor(b config.LLMBackendConfig) string {
	if b.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(b.APIKeyEnv)
}

// approachRuntimeFor returns (building and caching if needed) the runtime
// bundle for an already-existing approach directory.
func (r *Runtime) approachRuntimeFor(id string) (*approachRuntime, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ar, ok := r.approches[id]; ok {
		return ar, nil
	}

	a, err := r.ws.Approach(id)
	if err != nil {
		return nil, err
	}
	s, err := store.Open(a.Dir)
	if err != nil {
		return nil, fmt.Errorf("open store for approach %q: %w", id, err)
	}

	surface := agent.New(s, r.checkerClient, r.evaluatorClient)
	loop, err := orchestrator.NewLoop(r.orchestratorProvider, surface, r.connManager, orchestrator.DefaultOptions)
	if err != nil {
		return nil, fmt.Errorf("construct orchestrator loop for approach %q: %w", id, err)
	}

	if err := r.watcher.Watch(id, a.Dir); err != nil {
		return nil, fmt.Errorf("watch approach %q: %w", id, err)
	}

	ar := &approachRuntime{approach: a, store: s, surface: surface, loop: loop, sessions: make(map[string]*orchestrator.Session)}
	r.approches[id] = ar
	return ar, nil
}

// RunWatcher drains file-change events until ctx is cancelled.
// Callers run this in its own goroutine alongside Server.Start.
func (r *Runtime) RunWatcher(ctx context.Context) error {
	return r.watcher.Run(ctx)
}

// sessionFor returns (rehydrating from the conversation log if needed) the
// named session on approach ar.
func (r *Runtime) sessionFor(ar *approachRuntime, sessionID string) (*orchestrator.Session, error) {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	if s, ok := ar.sessions[sessionID]; ok {
		return s, nil
	}
	systemPrompt := orchestrator.BuildSystemPrompt(ar.approach.ID, ar.approach.Dir, r.toolDefs)
	s, err := orchestrator.NewSession(ar.approach, sessionID, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("construct session %q: %w", sessionID, err)
	}
	ar.sessions[sessionID] = s
	return s, nil
}
