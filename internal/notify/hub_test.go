package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialTestHub(t *testing.T, hub *Hub, userID string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		hub.Register(userID, conn)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForConnected(t *testing.T, hub *Hub, userID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !hub.Connected(userID) {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublishReachesConnectedClient(t *testing.T) {
	hub := NewHub()
	conn := dialTestHub(t, hub, "user-1")
	waitForConnected(t, hub, "user-1")

	event := Event{NotificationID: "n1", Kind: "share", Title: "Account shared", CreatedAt: time.Now()}
	if !hub.Publish("user-1", event) {
		t.Fatal("Publish reported no delivery for a connected user")
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var received Event
	if err := json.Unmarshal(payload, &received); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if received.NotificationID != "n1" || received.Kind != "share" {
		t.Fatalf("unexpected event: %+v", received)
	}
}

func TestPublishToOfflineUser(t *testing.T) {
	hub := NewHub()
	if hub.Publish("ghost", Event{Title: "hello"}) {
		t.Fatal("Publish should report no delivery for offline user")
	}
	if hub.Connected("ghost") {
		t.Fatal("Connected should be false for offline user")
	}
}

func TestDisconnectUnregistersClient(t *testing.T) {
	hub := NewHub()
	conn := dialTestHub(t, hub, "user-1")
	waitForConnected(t, hub, "user-1")

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Connected("user-1") {
		if time.Now().After(deadline) {
			t.Fatal("client never unregistered after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
