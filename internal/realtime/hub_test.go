package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/avirajsharma-ops/DTPS-sub006/internal/identity"
)

func TestSendToUserDeliversToAllConnections(t *testing.T) {
	hub := NewHub(nil)
	userID := uuid.New()
	c1 := &client{userID: userID, send: make(chan []byte, 1)}
	c2 := &client{userID: userID, send: make(chan []byte, 1)}
	hub.register(c1)
	hub.register(c2)

	if err := hub.SendToUser(context.Background(), userID, "appointment.booked", map[string]string{"id": "a-1"}); err != nil {
		t.Fatalf("SendToUser returned error: %v", err)
	}

	for _, c := range []*client{c1, c2} {
		select {
		case raw := <-c.send:
			var ev Event
			if err := json.Unmarshal(raw, &ev); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			if ev.Type != "appointment.booked" {
				t.Errorf("type = %q, want appointment.booked", ev.Type)
			}
			if !strings.Contains(string(ev.Data), "a-1") {
				t.Errorf("data = %s", ev.Data)
			}
		default:
			t.Fatal("connection did not receive the event")
		}
	}
}

func TestSendToUserSkipsOtherUsers(t *testing.T) {
	hub := NewHub(nil)
	other := &client{userID: uuid.New(), send: make(chan []byte, 1)}
	hub.register(other)

	if err := hub.SendToUser(context.Background(), uuid.New(), "appointment.booked", nil); err != nil {
		t.Fatalf("SendToUser returned error: %v", err)
	}
	select {
	case <-other.send:
		t.Fatal("event leaked to another user's connection")
	default:
	}
}

func TestSendToUserSkipsFullBuffers(t *testing.T) {
	hub := NewHub(nil)
	userID := uuid.New()
	c := &client{userID: userID, send: make(chan []byte, 1)}
	hub.register(c)
	c.send <- []byte("backlog")

	done := make(chan struct{})
	go func() {
		hub.SendToUser(context.Background(), userID, "appointment.booked", nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SendToUser blocked on a full connection buffer")
	}
}

func TestUnregisterDropsConnection(t *testing.T) {
	hub := NewHub(nil)
	userID := uuid.New()
	c := &client{userID: userID, send: make(chan []byte, 1)}
	hub.register(c)
	if got := hub.ConnectionCount(userID); got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}

	hub.unregister(c)
	if got := hub.ConnectionCount(userID); got != 0 {
		t.Fatalf("count = %d, want 0", got)
	}
	if _, open := <-c.send; open {
		t.Error("send channel should be closed after unregister")
	}

	// A second unregister of the same client is a no-op.
	hub.unregister(c)
}

func TestHandlerRequiresCaller(t *testing.T) {
	hub := NewHub(nil)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	hub.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	req = req.WithContext(identity.WithCaller(req.Context(), identity.Caller{ID: "not-a-uuid", Role: identity.RoleClient}))
	rec = httptest.NewRecorder()
	hub.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for malformed caller id", rec.Code)
	}
}

func TestHandlerEndToEnd(t *testing.T) {
	hub := NewHub(nil)
	userID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(identity.WithCaller(r.Context(), identity.Caller{ID: userID.String(), Role: identity.RoleClient}))
		hub.Handler().ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	waitFor(t, func() bool { return hub.ConnectionCount(userID) == 1 })

	if err := hub.SendToUser(context.Background(), userID, "appointment.cancelled", map[string]string{"id": "a-9"}); err != nil {
		t.Fatalf("SendToUser returned error: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Type != "appointment.cancelled" {
		t.Errorf("type = %q, want appointment.cancelled", ev.Type)
	}

	conn.Close()
	waitFor(t, func() bool { return hub.ConnectionCount(userID) == 0 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
