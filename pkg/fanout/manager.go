// Package fanout implements the Watcher & Fan-out component:
// a per-process ConnectionManager broadcasting hypergraph_update and
// orchestrator events to subscribed WebSocket clients, one ordered stream per
// approach, plus a file watcher that detects on-disk hypergraph.json changes.
package fanout

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

const writeTimeout = 5 * time.Second

// catchupCapacity is how many recent events each approach's RingBuffer
// retains for reconnecting clients.
const catchupCapacity = 500

// ConnectionManager manages WebSocket connections and per-approach channel
// subscriptions. One instance runs per process.
type ConnectionManager struct {
	connections map[string]*Connection
	mu          sync.RWMutex

	channels  map[string]map[string]bool // approach id -> connection ids
	channelMu sync.RWMutex

	buffers   map[string]*RingBuffer // approach id -> catch-up buffer
	buffersMu sync.Mutex
}

// Connection represents one WebSocket client. subscriptions is touched only
// from the single goroutine running HandleConnection's read loop, so it
// needs no lock of its own.
type Connection struct {
	ID            string
	conn          *websocket.Conn
	subscriptions map[string]bool
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewConnectionManager constructs an empty manager.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*Connection),
		channels:    make(map[string]map[string]bool),
		buffers:     make(map[string]*RingBuffer),
	}
}

// bufferFor returns (creating if needed) the catch-up buffer for an approach.
func (m *ConnectionManager) bufferFor(approachID string) *RingBuffer {
	m.buffersMu.Lock()
	defer m.buffersMu.Unlock()
	b, ok := m.buffers[approachID]
	if !ok {
		b = NewRingBuffer(catchupCapacity)
		m.buffers[approachID] = b
	}
	return b
}

// Publish appends an event to approachID's buffer and broadcasts it to every
// subscriber, in the order Publish is called — this is the single ordering
// point that guarantees hypergraph_update broadcasts are delivered in the
// order the store committed them.
func (m *ConnectionManager) Publish(approachID string, ev Event) {
	stamped := m.bufferFor(approachID).Append(ev)
	payload, err := marshalEvent(stamped)
	if err != nil {
		slog.Error("marshal fan-out event", "approach", approachID, "error", err)
		return
	}
	m.broadcast(approachID, payload)
}

func (m *ConnectionManager) broadcast(channel string, payload []byte) {
	m.channelMu.RLock()
	subs, ok := m.channels[channel]
	if !ok {
		m.channelMu.RUnlock()
		return
	}
	ids := make([]string, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	m.channelMu.RUnlock()

	m.mu.RLock()
	conns := make([]*Connection, 0, len(ids))
	for _, id := range ids {
		if c, ok := m.connections[id]; ok {
			conns = append(conns, c)
		}
	}
	m.mu.RUnlock()

	for _, c := range conns {
		if err := m.sendRaw(c, payload); err != nil {
			slog.Warn("send to websocket client failed", "connection_id", c.ID, "error", err)
		}
	}
}

// HandleConnection manages one WebSocket connection's lifecycle. Blocks
// until the connection closes.
func (m *ConnectionManager) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(parentCtx)
	c := &Connection{ID: uuid.NewString(), conn: conn, subscriptions: make(map[string]bool), ctx: ctx, cancel: cancel}

	m.register(c)
	defer m.unregister(c)
	defer cancel()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("invalid websocket message", "connection_id", c.ID, "error", err)
			continue
		}
		m.handleClientMessage(ctx, c, msg)
	}
}

func (m *ConnectionManager) handleClientMessage(ctx context.Context, c *Connection, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		if msg.Channel == "" {
			return
		}
		m.subscribe(c, msg.Channel)
		m.sendCatchup(c, msg.Channel, 0)
	case "unsubscribe":
		m.unsubscribe(c, msg.Channel)
	case "catchup":
		m.sendCatchup(c, msg.Channel, msg.LastSeq)
	case "ping":
		m.sendJSON(c, map[string]string{"type": "pong"})
	}
}

func (m *ConnectionManager) subscribe(c *Connection, channel string) {
	m.channelMu.Lock()
	if _, ok := m.channels[channel]; !ok {
		m.channels[channel] = make(map[string]bool)
	}
	m.channels[channel][c.ID] = true
	m.channelMu.Unlock()
	c.subscriptions[channel] = true
}

func (m *ConnectionManager) unsubscribe(c *Connection, channel string) {
	m.channelMu.Lock()
	if subs, ok := m.channels[channel]; ok {
		delete(subs, c.ID)
		if len(subs) == 0 {
			delete(m.channels, channel)
		}
	}
	m.channelMu.Unlock()
	delete(c.subscriptions, channel)
}

// sendCatchup replays buffered events the client missed since lastSeq. An
// overflowing gap tells the client to fall back to a full REST reload rather
// than trust a partial replay.
func (m *ConnectionManager) sendCatchup(c *Connection, channel string, lastSeq int64) {
	events, overflow := m.bufferFor(channel).Since(lastSeq)
	if overflow {
		m.sendJSON(c, map[string]any{"type": "catchup_overflow", "channel": channel})
	}
	for _, ev := range events {
		payload, err := marshalEvent(ev)
		if err != nil {
			continue
		}
		if err := m.sendRaw(c, payload); err != nil {
			return
		}
	}
}

func (m *ConnectionManager) register(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[c.ID] = c
}

func (m *ConnectionManager) unregister(c *Connection) {
	for ch := range c.subscriptions {
		m.unsubscribe(c, ch)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connections, c.ID)
}

func (m *ConnectionManager) sendJSON(c *Connection, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = m.sendRaw(c, payload)
}

func (m *ConnectionManager) sendRaw(c *Connection, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, payload)
}

// ActiveConnections reports the number of currently connected clients.
func (m *ConnectionManager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// subscriberCount is used by tests to poll subscription state instead of sleeping.
func (m *ConnectionManager) subscriberCount(channel string) int {
	m.channelMu.RLock()
	defer m.channelMu.RUnlock()
	return len(m.channels[channel])
}
