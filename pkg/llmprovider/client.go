package llmprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// Client is a thin wrapper over go-openai serving both the orchestrator's
// streaming chat loop and the judges' forced single-shot tool completions.
type Client struct {
	raw   *openai.Client
	model string
}

// New returns a Client targeting model, optionally against a non-default
// base URL (for OpenAI-compatible providers).
func New(apiKey, baseURL, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{raw: openai.NewClientWithConfig(cfg), model: model}
}

// StreamChat starts a streaming chat completion and returns a channel of
// StreamEvent, closed when the stream ends. The
// channel is always closed exactly once, including on error. The final
// event is either EventStop or EventError, except when ctx is cancelled:
// the channel may then close without a final event.
func (c *Client) StreamChat(ctx context.Context, messages []Message, tools []ToolDef) (<-chan StreamEvent, error) {
	req := buildRequest(c.model, messages, tools)
	req.Stream = true

	stream, err := c.raw.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("start chat stream: %w", err)
	}

	events := make(chan StreamEvent, 16)
	go func() {
		defer close(events)
		defer stream.Close()

		type accum struct {
			id, name, args string
		}
		pending := make(map[int]*accum)
		var order []int

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				events <- StreamEvent{Type: EventStop}
				return
			}
			if err != nil {
				select {
				case events <- StreamEvent{Type: EventError, Err: fmt.Errorf("stream recv: %w", err)}:
				case <-ctx.Done():
				}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			choice := resp.Choices[0]

			if choice.Delta.Content != "" {
				if !emit(ctx, events, StreamEvent{Type: EventText, TextDelta: choice.Delta.Content}) {
					return
				}
			}

			for _, tc := range choice.Delta.ToolCalls {
				idx := 0
				if tc.Index != nil {
					idx = *tc.Index
				}
				a, ok := pending[idx]
				if !ok {
					a = &accum{}
					pending[idx] = a
					order = append(order, idx)
				}
				if tc.ID != "" {
					a.id = tc.ID
				}
				if tc.Function.Name != "" {
					a.name = tc.Function.Name
				}
				a.args += tc.Function.Arguments
			}

			if choice.FinishReason != "" {
				for _, idx := range order {
					a := pending[idx]
					call := StreamEvent{Type: EventToolCall, ToolCall: ToolCall{ID: a.id, Name: a.name, Arguments: a.args}}
					if !emit(ctx, events, call) {
						return
					}
				}
				events <- StreamEvent{Type: EventStop}
				return
			}
		}
	}()
	return events, nil
}

func emit(ctx context.Context, events chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// ForceToolCall runs a non-streaming completion with tool_choice pinned to
// tool.Name and returns its raw JSON arguments. Used for judge completions
// (entailment checking, claim evaluation) and other structured single-shot
// outputs that must not be left to the model's discretion.
func (c *Client) ForceToolCall(ctx context.Context, messages []Message, tool ToolDef) (json.RawMessage, error) {
	req := buildRequest(c.model, messages, []ToolDef{tool})
	req.ToolChoice = openai.ToolChoice{
		Type:     openai.ToolTypeFunction,
		Function: openai.ToolFunction{Name: tool.Name},
	}

	resp, err := c.raw.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("forced tool completion %q: %w", tool.Name, err)
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return nil, fmt.Errorf("provider returned no tool call for forced tool %q", tool.Name)
	}
	return json.RawMessage(resp.Choices[0].Message.ToolCalls[0].Function.Arguments), nil
}

func buildRequest(model string, messages []Message, tools []ToolDef) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		om := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		msgs = append(msgs, om)
	}

	req := openai.ChatCompletionRequest{Model: model, Messages: msgs}
	for _, t := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Schema,
			},
		})
	}
	return req
}
