// Package orchestrator implements the Chat Loop: one
// conversation per (approach, session), streaming model turns through the
// Agent Tool Surface and persisting each turn to a per-session conversation
// log that can rehydrate the message history on resume.
package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/entailgraph/entailgraph/pkg/llmprovider"
	"github.com/entailgraph/entailgraph/pkg/workspace"
)

// PartKind discriminates one fragment of an assistant turn's response.
type PartKind string

const (
	PartText       PartKind = "text"
	PartToolUse    PartKind = "tool_use"
	PartToolResult PartKind = "tool_result"
)

// Part is one ordered fragment of an assistant's response to a user turn —
// an interleaved mix of text and tool-uses, exactly as produced during
// streaming.
type Part struct {
	Kind PartKind `json:"kind"`

	Text string `json:"text,omitempty"`

	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
	ToolArgs   string `json:"tool_args,omitempty"`

	ToolOK      bool   `json:"tool_ok,omitempty"`
	ToolSummary string `json:"tool_summary,omitempty"`
}

// Turn is one persisted (user text, response) pair.
type Turn struct {
	UserText  string    `json:"user_text"`
	Parts     []Part    `json:"parts"`
	EndedAt   time.Time `json:"ended_at"`
	Cancelled bool      `json:"cancelled"`
}

// Session holds one conversation's in-memory message history plus the
// concurrency guard that enforces the "one active turn per session"
// contract.
type Session struct {
	ID         string
	ApproachID string

	logPath string

	mu           sync.Mutex // guards turnInFlight, cancel and turns; messages belong to the in-flight turn
	turnInFlight bool
	messages     []llmprovider.Message
	turns        []Turn

	cancel func() // cancels the in-flight turn's context, nil when idle
}

// NewSession constructs a session bound to approach a, rehydrating its
// message history from a prior conversation log if one exists.
func NewSession(a workspace.Approach, sessionID, systemPrompt string) (*Session, error) {
	s := &Session{ID: sessionID, ApproachID: a.ID, logPath: a.ConversationLogPath(sessionID)}
	s.messages = []llmprovider.Message{{Role: llmprovider.RoleSystem, Content: systemPrompt}}

	turns, err := loadTurns(s.logPath)
	if err != nil {
		return nil, err
	}
	s.turns = turns
	for _, t := range turns {
		s.messages = append(s.messages, llmprovider.Message{Role: llmprovider.RoleUser, Content: t.UserText})
		s.messages = append(s.messages, replayParts(t.Parts)...)
	}
	return s, nil
}

// replayParts reconstructs the assistant/tool messages a turn's parts imply,
// so a rehydrated session's message list is indistinguishable from a live one.
func replayParts(parts []Part) []llmprovider.Message {
	var out []llmprovider.Message
	var assistantText string
	var pendingCalls []llmprovider.ToolCall
	flushAssistant := func() {
		if assistantText == "" && len(pendingCalls) == 0 {
			return
		}
		out = append(out, llmprovider.Message{Role: llmprovider.RoleAssistant, Content: assistantText, ToolCalls: pendingCalls})
		assistantText, pendingCalls = "", nil
	}
	for _, p := range parts {
		switch p.Kind {
		case PartText:
			assistantText += p.Text
		case PartToolUse:
			pendingCalls = append(pendingCalls, llmprovider.ToolCall{ID: p.ToolCallID, Name: p.ToolName, Arguments: p.ToolArgs})
		case PartToolResult:
			flushAssistant()
			out = append(out, llmprovider.Message{
				Role: llmprovider.RoleTool, ToolCallID: p.ToolCallID, Name: p.ToolName,
				Content: resultContent(p.ToolOK, p.ToolSummary),
			})
		}
	}
	flushAssistant()
	return out
}

func resultContent(ok bool, summary string) string {
	status := "ok"
	if !ok {
		status = "error"
	}
	return fmt.Sprintf("[%s] %s", status, summary)
}

// begin marks the session busy, returning an error if a turn is already in
// flight.
func (s *Session) begin(cancel func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.turnInFlight {
		return fmt.Errorf("session %s: a turn is already in progress", s.ID)
	}
	s.turnInFlight = true
	s.cancel = cancel
	return nil
}

func (s *Session) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turnInFlight = false
	s.cancel = nil
}

// Abort cancels the in-flight turn, if any. Returns false if the session was
// idle.
func (s *Session) Abort() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// persist appends turn to the in-memory turn list, then writes the full
// log back out. Conversation logs are small enough that
// this is not worth the append-only framing the store's history uses.
func (s *Session) persist(turn Turn) error {
	s.mu.Lock()
	s.turns = append(s.turns, turn)
	turns := make([]Turn, len(s.turns))
	copy(turns, s.turns)
	s.mu.Unlock()

	data, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal conversation log: %w", err)
	}
	if err := os.WriteFile(s.logPath, data, 0o644); err != nil {
		return fmt.Errorf("write conversation log %s: %w", s.logPath, err)
	}
	return nil
}

func loadTurns(path string) ([]Turn, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read conversation log %s: %w", path, err)
	}
	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("parse conversation log %s: %w", path, err)
	}
	return turns, nil
}
