package fanout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestManager(t *testing.T) (*ConnectionManager, *httptest.Server) {
	t.Helper()
	manager := NewConnectionManager()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		manager.HandleConnection(r.Context(), conn)
	}))
	t.Cleanup(server.Close)
	return manager, server
}

func connectWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + server.URL[len("http"):]
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func writeJSON(t *testing.T, conn *websocket.Conn, msg ClientMessage) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func waitForSubscriber(t *testing.T, m *ConnectionManager, channel string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.subscriberCount(channel) > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no subscriber registered for channel %q", channel)
}

func TestManager_SubscribeThenPublishDelivers(t *testing.T) {
	manager, server := setupTestManager(t)
	conn := connectWS(t, server)
	writeJSON(t, conn, ClientMessage{Action: "subscribe", Channel: "approach-1"})
	waitForSubscriber(t, manager, "approach-1")

	manager.Publish("approach-1", Event{Type: EventHypergraphUpdate, Timestamp: time.Now().UTC(), Path: "x"})

	msg := readJSON(t, conn)
	assert.Equal(t, "hypergraph_update", msg["type"])
}

func TestManager_UnsubscribedClientReceivesNothing(t *testing.T) {
	manager, _ := setupTestManager(t)
	manager.Publish("approach-1", Event{Type: EventText, Timestamp: time.Now().UTC()})
	assert.Equal(t, 0, manager.subscriberCount("approach-1"))
}

func TestManager_CatchupReplaysMissedEvents(t *testing.T) {
	manager, server := setupTestManager(t)

	// Publish before any client connects — these land in the ring buffer.
	manager.Publish("approach-1", Event{Type: EventText, Timestamp: time.Now().UTC(), Delta: "a"})
	manager.Publish("approach-1", Event{Type: EventText, Timestamp: time.Now().UTC(), Delta: "b"})

	conn := connectWS(t, server)
	writeJSON(t, conn, ClientMessage{Action: "catchup", Channel: "approach-1", LastSeq: 0})

	first1 := readJSON(t, conn)
	second := readJSON(t, conn)
	assert.Equal(t, "a", first1["delta"])
	assert.Equal(t, "b", second["delta"])
}

func TestManager_PingReceivesPong(t *testing.T) {
	_, server := setupTestManager(t)
	conn := connectWS(t, server)
	writeJSON(t, conn, ClientMessage{Action: "ping"})
	msg := readJSON(t, conn)
	assert.Equal(t, "pong", msg["type"])
}

func TestManager_UnsubscribeStopsDelivery(t *testing.T) {
	manager, server := setupTestManager(t)
	conn := connectWS(t, server)
	writeJSON(t, conn, ClientMessage{Action: "subscribe", Channel: "approach-1"})
	waitForSubscriber(t, manager, "approach-1")

	writeJSON(t, conn, ClientMessage{Action: "unsubscribe", Channel: "approach-1"})
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && manager.subscriberCount("approach-1") > 0 {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 0, manager.subscriberCount("approach-1"))
}
