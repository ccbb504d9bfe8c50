package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/entailgraph/entailgraph/pkg/agent"
	"github.com/entailgraph/entailgraph/pkg/fanout"
	"github.com/entailgraph/entailgraph/pkg/llmprovider"
)

// Publisher is the subset of *fanout.ConnectionManager the loop depends on,
// narrowed to keep this package's dependency surface honest and to let tests
// substitute a recorder.
type Publisher interface {
	Publish(approachID string, ev fanout.Event)
}

// Options bounds one turn's resource usage.
type Options struct {
	MaxToolCallsPerTurn int
	TurnTimeout         time.Duration
	ToolTimeout         time.Duration
}

// DefaultOptions mirror reasonable interactive-chat bounds; callers load
// real values from config.
var DefaultOptions = Options{MaxToolCallsPerTurn: 25, TurnTimeout: 3 * time.Minute, ToolTimeout: 60 * time.Second}

// Loop drives one session's turns against a provider and tool surface.
type Loop struct {
	provider  llmprovider.Provider
	tools     *agent.Surface
	toolDefs  []llmprovider.ToolDef
	publisher Publisher
	opts      Options
}

// NewLoop constructs a Loop. Tool schemas are reflected once up front
// (mirrors checker.New/evaluator.New's fail-fast-on-bad-schema pattern).
func NewLoop(provider llmprovider.Provider, tools *agent.Surface, publisher Publisher, opts Options) (*Loop, error) {
	defs, err := agent.Definitions()
	if err != nil {
		return nil, fmt.Errorf("reflect tool definitions: %w", err)
	}
	return &Loop{provider: provider, tools: tools, toolDefs: defs, publisher: publisher, opts: opts}, nil
}

// RunTurn executes the five-step turn protocol for one user
// message, emitting typed events to the session's approach channel and
// persisting the completed (or cancelled) turn to the conversation log.
func (l *Loop) RunTurn(ctx context.Context, s *Session, userText string) error {
	turnCtx, cancel := context.WithTimeout(ctx, l.opts.TurnTimeout)
	defer cancel()
	if err := s.begin(cancel); err != nil {
		return err
	}
	defer s.end()

	s.messages = append(s.messages, llmprovider.Message{Role: llmprovider.RoleUser, Content: userText})

	turn := Turn{UserText: userText}
	toolCalls := 0

	for {
		events, err := l.provider.StreamChat(turnCtx, s.messages, l.toolDefs)
		if err != nil {
			l.emit(s, fanout.Event{Type: fanout.EventError, Message: err.Error()})
			turn.Cancelled = turnCtx.Err() != nil
			_ = s.persist(turn)
			return err
		}

		assistantMsg := llmprovider.Message{Role: llmprovider.RoleAssistant}
		var pendingToolCalls []llmprovider.ToolCall

	drain:
		for ev := range events {
			switch ev.Type {
			case llmprovider.EventText:
				assistantMsg.Content += ev.TextDelta
				turn.Parts = append(turn.Parts, Part{Kind: PartText, Text: ev.TextDelta})
				l.emit(s, fanout.Event{Type: fanout.EventText, Session: s.ID, Delta: ev.TextDelta})
			case llmprovider.EventToolCall:
				pendingToolCalls = append(pendingToolCalls, ev.ToolCall)
				turn.Parts = append(turn.Parts, Part{Kind: PartToolUse, ToolCallID: ev.ToolCall.ID, ToolName: ev.ToolCall.Name, ToolArgs: ev.ToolCall.Arguments})
				l.emit(s, fanout.Event{Type: fanout.EventToolUse, Session: s.ID, ToolName: ev.ToolCall.Name, Args: json.RawMessage(ev.ToolCall.Arguments)})
			case llmprovider.EventStop:
				break drain
			case llmprovider.EventError:
				turn.Cancelled = true
				_ = s.persist(turn)
				l.emit(s, fanout.Event{Type: fanout.EventError, Session: s.ID, Message: ev.Err.Error()})
				return ev.Err
			}
			if turnCtx.Err() != nil {
				break drain
			}
		}

		if turnCtx.Err() != nil {
			turn.Cancelled = true
			_ = s.persist(turn)
			l.emit(s, fanout.Event{Type: fanout.EventWarning, Session: s.ID, Message: "turn aborted"})
			return turnCtx.Err()
		}

		assistantMsg.ToolCalls = pendingToolCalls
		s.messages = append(s.messages, assistantMsg)

		// A stop with no pending tool calls is the model's final answer for
		// this turn.
		if len(pendingToolCalls) == 0 {
			break
		}

		budgetExceeded := false
		for _, call := range pendingToolCalls {
			if toolCalls >= l.opts.MaxToolCallsPerTurn {
				budgetExceeded = true
				l.emit(s, fanout.Event{Type: fanout.EventWarning, Session: s.ID, Message: "per-turn tool-call budget exceeded"})

				const summary = "skipped: tool-call budget exceeded"
				turn.Parts = append(turn.Parts, Part{Kind: PartToolResult, ToolCallID: call.ID, ToolName: call.Name, ToolOK: false, ToolSummary: summary})
				l.emit(s, fanout.Event{Type: fanout.EventToolResult, Session: s.ID, ToolName: call.Name, OK: boolPtr(false), Summary: summary})
				s.messages = append(s.messages, llmprovider.Message{
					Role: llmprovider.RoleTool, ToolCallID: call.ID, Name: call.Name, Content: resultContent(false, summary),
				})
				continue
			}
			toolCalls++

			toolCtx, toolCancel := context.WithTimeout(turnCtx, l.opts.ToolTimeout)
			result := l.tools.Dispatch(toolCtx, call.Name, json.RawMessage(call.Arguments))
			toolCancel()

			ok := result.OK
			turn.Parts = append(turn.Parts, Part{Kind: PartToolResult, ToolCallID: call.ID, ToolName: call.Name, ToolOK: ok, ToolSummary: result.Summary})
			l.emit(s, fanout.Event{Type: fanout.EventToolResult, Session: s.ID, ToolName: call.Name, OK: &ok, Summary: result.Summary})

			s.messages = append(s.messages, llmprovider.Message{
				Role: llmprovider.RoleTool, ToolCallID: call.ID, Name: call.Name, Content: resultContent(ok, result.Summary),
			})
		}

		// Every pending tool call now has a matching tool-role message in
		// s.messages, whether dispatched or skipped for budget — so ending
		// the turn here (instead of looping back for another StreamChat)
		// never leaves a dangling tool_call the provider would reject.
		if budgetExceeded {
			break
		}

		// Tool results are now in s.messages; loop back for the model's
		// continuation.
	}

	turn.EndedAt = time.Now().UTC()
	if err := s.persist(turn); err != nil {
		return err
	}
	l.emit(s, fanout.Event{Type: fanout.EventDone, Session: s.ID})
	return nil
}

func (l *Loop) emit(s *Session, ev fanout.Event) {
	ev.Timestamp = time.Now().UTC()
	l.publisher.Publish(s.ApproachID, ev)
}

func boolPtr(v bool) *bool { return &v }
