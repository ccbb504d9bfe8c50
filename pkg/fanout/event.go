package fanout

import (
	"encoding/json"
	"time"
)

// EventType names one of the recognized client-facing event types.
type EventType string

const (
	EventHypergraphUpdate EventType = "hypergraph_update"
	EventText             EventType = "text"
	EventToolUse          EventType = "tool_use"
	EventToolResult       EventType = "tool_result"
	EventAutoTurn         EventType = "auto_turn"
	EventAutoStatus       EventType = "auto_status"
	EventWarning          EventType = "warning"
	EventError            EventType = "error"
	EventDone             EventType = "done"
)

// Event is one message on an approach's event stream. Seq is assigned by the
// RingBuffer on Append and is what catch-up requests key off of; it is not
// part of the public wire schema, so it round-trips only within this
// process.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Seq       int64     `json:"-"`

	Path          string `json:"path,omitempty"`
	Graph         any    `json:"graph,omitempty"`
	IsIncremental bool   `json:"is_incremental,omitempty"`

	Session string `json:"session,omitempty"`
	Delta   string `json:"delta,omitempty"`

	ToolName string `json:"tool_name,omitempty"`
	Args     any    `json:"args,omitempty"`
	OK       *bool  `json:"ok,omitempty"`
	Summary  string `json:"summary,omitempty"`

	TurnNumber int    `json:"turn_number,omitempty"`
	MaxTurns   int    `json:"max_turns,omitempty"`
	State      string `json:"state,omitempty"`

	Message string `json:"message,omitempty"`
}

// ClientMessage is an inbound message from a subscribed client: subscribe,
// unsubscribe, ping, or catchup.
type ClientMessage struct {
	Action  string `json:"action"`
	Channel string `json:"channel,omitempty"`
	LastSeq int64  `json:"last_seq,omitempty"`
}

func marshalEvent(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}
