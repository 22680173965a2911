package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tiiuae/uav_bridge/internal/types"
)

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients=%d want %d", h.Clients(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func read(t *testing.T, conn *websocket.Conn) types.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg types.Message
	if err := json.Unmarshal(b, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return msg
}

func TestHub_SendsLastSnapshotThenUpdates(t *testing.T) {
	h := NewHub("")
	server := httptest.NewServer(h)
	defer server.Close()

	h.Receive(types.CreateMessage(types.MessageVehicleState, "uav1", "*", types.VehicleState{Altitude: 10}))

	conn := dial(t, server)
	first := read(t, conn)
	if first.MessageType != types.MessageVehicleState {
		t.Fatalf("first=%+v", first)
	}
	if quick, _ := first.Message.(map[string]interface{}); quick["altitude"] != 10.0 {
		t.Fatalf("snapshot=%+v", first.Message)
	}

	waitClients(t, h, 1)
	h.Receive(types.CreateMessage(types.MessageCommandResult, "commands", "*", map[string]string{"id": "1"}))
	if next := read(t, conn); next.MessageType != types.MessageCommandResult {
		t.Fatalf("next=%+v", next)
	}
}

func TestHub_IgnoresOtherMessages(t *testing.T) {
	h := NewHub("")
	h.Receive(types.CreateMessage("something-else", "x", "*", nil))
	if h.last != nil {
		t.Fatalf("unexpected snapshot")
	}
}

func TestHub_ClientDisconnect(t *testing.T) {
	h := NewHub("")
	server := httptest.NewServer(h)
	defer server.Close()

	conn := dial(t, server)
	waitClients(t, h, 1)
	conn.Close()
	waitClients(t, h, 0)
}
