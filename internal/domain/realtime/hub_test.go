package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/taskhub/taskhub-api/internal/pkg/jwt"
)

func waitEvent(t *testing.T, ch <-chan []byte) Event {
	t.Helper()
	select {
	case msg := <-ch:
		var event Event
		if err := json.Unmarshal(msg, &event); err != nil {
			t.Fatalf("unmarshal ws event: %v", err)
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return Event{}
}

func waitConnections(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ConnectionCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d connections, got %d", n, h.ConnectionCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublishDeliversToLocalConnection(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Shutdown()

	userID := uuid.New()
	conn := &Connection{UserID: userID, Send: make(chan []byte, 4)}
	hub.Register(conn)
	waitConnections(t, hub, 1)

	hub.Publish(context.Background(), userID, EventWalletUpdated, map[string]string{"balance_usd": "10"})
	hub.Publish(context.Background(), uuid.New(), EventWalletUpdated, nil)

	event := waitEvent(t, conn.Send)
	if event.Type != EventWalletUpdated {
		t.Fatalf("unexpected event %+v", event)
	}
	select {
	case <-conn.Send:
		t.Fatalf("event for another user was delivered")
	default:
	}
}

func TestPublishFansOutAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *redis.Client { return redis.NewClient(&redis.Options{Addr: mr.Addr()}) }

	a := NewHubWithInstanceID(newClient(), "a")
	b := NewHubWithInstanceID(newClient(), "b")
	go a.Run()
	go b.Run()
	defer a.Shutdown()
	defer b.Shutdown()

	userID := uuid.New()
	onB := &Connection{UserID: userID, Send: make(chan []byte, 4)}
	b.Register(onB)
	waitConnections(t, b, 1)

	a.Publish(context.Background(), userID, EventEscrowReleased, map[string]string{"escrow_id": "e1"})

	event := waitEvent(t, onB.Send)
	if event.Type != EventEscrowReleased {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestConnectRejectsMissingToken(t *testing.T) {
	svc := jwt.NewService("secret", time.Minute)
	h := NewHandler(NewHub(nil), svc, nil)

	rec := httptest.NewRecorder()
	h.Connect(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestConnectStreamsEvents(t *testing.T) {
	svc := jwt.NewService("secret", time.Minute)
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Shutdown()

	srv := httptest.NewServer(http.HandlerFunc(NewHandler(hub, svc, nil).Connect))
	defer srv.Close()

	userID := uuid.New()
	token, _ := svc.GenerateAccessToken(userID, "client")
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitConnections(t, hub, 1)

	hub.Publish(context.Background(), userID, EventDepositCompleted, map[string]string{"deposit_id": "d1"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read: %v", err)
	}
	if event.Type != EventDepositCompleted {
		t.Fatalf("unexpected event %+v", event)
	}
}
