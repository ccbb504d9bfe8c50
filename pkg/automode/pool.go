package automode

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Pool manages one Supervisor per approach that currently has auto mode
// running, modeled on the worker-pool/cancel-registry idiom used for
// session processing elsewhere in this stack: a registry of cancel
// functions guarded by its own mutex, with Start/Stop as the only entry
// points callers need.
type Pool struct {
	mu          sync.Mutex
	supervisors map[string]*Supervisor
	wg          sync.WaitGroup
}

// NewPool constructs an empty pool.
func NewPool() *Pool {
	return &Pool{supervisors: make(map[string]*Supervisor)}
}

// Start begins an auto-mode run for approachID using sup, returning an error
// if that approach already has a run in flight. The run proceeds in its own
// goroutine; Pool.Stop or Supervisor.Stop end it.
func (p *Pool) Start(ctx context.Context, approachID string, sup *Supervisor) error {
	p.mu.Lock()
	if _, exists := p.supervisors[approachID]; exists {
		p.mu.Unlock()
		return fmt.Errorf("auto mode already running for approach %q", approachID)
	}
	p.supervisors[approachID] = sup
	p.mu.Unlock()

	slog.Info("auto mode started", "approach_id", approachID)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			p.mu.Lock()
			delete(p.supervisors, approachID)
			p.mu.Unlock()
		}()
		if err := sup.Start(ctx); err != nil {
			slog.Error("auto mode run ended with error", "approach_id", approachID, "error", err)
			return
		}
		slog.Info("auto mode run ended", "approach_id", approachID)
	}()
	return nil
}

// Get returns the running supervisor for approachID, if any.
func (p *Pool) Get(approachID string) (*Supervisor, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sup, ok := p.supervisors[approachID]
	return sup, ok
}

// Pause pauses the running supervisor for approachID. Returns false if none
// is running.
func (p *Pool) Pause(approachID string) bool {
	sup, ok := p.Get(approachID)
	if !ok {
		return false
	}
	sup.Pause()
	return true
}

// Resume resumes the paused supervisor for approachID. Returns false if none
// is running.
func (p *Pool) Resume(approachID string) bool {
	sup, ok := p.Get(approachID)
	if !ok {
		return false
	}
	sup.Resume()
	return true
}

// Stop stops the running supervisor for approachID. Returns false if none is
// running.
func (p *Pool) Stop(approachID string) bool {
	sup, ok := p.Get(approachID)
	if !ok {
		return false
	}
	sup.Stop()
	return true
}

// StopAll stops every running supervisor and waits for their goroutines to
// exit, for use during process shutdown.
func (p *Pool) StopAll() {
	p.mu.Lock()
	sups := make([]*Supervisor, 0, len(p.supervisors))
	for _, sup := range p.supervisors {
		sups = append(sups, sup)
	}
	p.mu.Unlock()

	for _, sup := range sups {
		sup.Stop()
	}
	p.wg.Wait()
}
