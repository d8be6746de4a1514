package discord

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// gatewayHandshake drives one server-side connection through HELLO,
// IDENTIFY, and READY. Returns false if the client went away mid-way.
func gatewayHandshake(t *testing.T, conn *websocket.Conn) bool {
	t.Helper()

	hello := payload{Op: opHello, D: json.RawMessage(`{"heartbeat_interval":45000}`)}
	if err := conn.WriteJSON(hello); err != nil {
		return false
	}

	// Expect IDENTIFY.
	var identify struct {
		Op int `json:"op"`
		D  struct {
			Token   string `json:"token"`
			Intents int    `json:"intents"`
		} `json:"d"`
	}
	if err := conn.ReadJSON(&identify); err != nil {
		return false
	}
	if identify.Op != opIdentify {
		t.Errorf("expected identify op %d, got %d", opIdentify, identify.Op)
	}
	if identify.D.Token != "test-token" {
		t.Errorf("identify token = %q", identify.D.Token)
	}

	seq := int64(1)
	ready := payload{
		Op: opDispatch,
		T:  "READY",
		S:  &seq,
		D:  json.RawMessage(`{"user":{"id":"bot123","username":"herald","bot":true}}`),
	}
	return conn.WriteJSON(ready) == nil
}

// fakeGatewayServer runs a websocket server speaking just enough of the
// gateway protocol for Connect: HELLO, then after IDENTIFY arrives it
// sends READY followed by any queued dispatches.
func fakeGatewayServer(t *testing.T, dispatches []payload) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		if !gatewayHandshake(t, conn) {
			return
		}

		seq := int64(1)
		for i := range dispatches {
			s := seq + int64(i) + 1
			dispatches[i].S = &s
			if err := conn.WriteJSON(dispatches[i]); err != nil {
				return
			}
		}

		// Keep the connection open until the client disconnects,
		// answering nothing (heartbeats are fire-and-forget here).
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestGateway_ConnectAndReceive(t *testing.T) {
	msgEvent := payload{
		Op: opDispatch,
		T:  "MESSAGE_CREATE",
		D: json.RawMessage(`{
			"id": "555",
			"channel_id": "c1",
			"content": "<@bot123> hello",
			"timestamp": "2024-05-01T10:00:00+00:00",
			"author": {"id": "u1", "username": "alice"}
		}`),
	}
	srv := fakeGatewayServer(t, []payload{msgEvent})
	defer srv.Close()

	g := NewGateway("test-token", slog.Default())
	g.url = wsURL(srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := g.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer g.Close()

	if g.BotUser().ID != "bot123" {
		t.Errorf("BotUser.ID = %q, want bot123", g.BotUser().ID)
	}

	select {
	case msg := <-g.Messages():
		if msg.ID != "555" {
			t.Errorf("message ID = %q", msg.ID)
		}
		if msg.Author.Username != "alice" {
			t.Errorf("author = %q", msg.Author.Username)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message event")
	}
}

func TestGateway_ReconnectAfterDrop(t *testing.T) {
	msgEvent := payload{
		Op: opDispatch,
		T:  "MESSAGE_CREATE",
		D:  json.RawMessage(`{"id":"777","channel_id":"c1","author":{"id":"u1","username":"alice"}}`),
	}

	// First connection drops right after READY; the second delivers a
	// message and stays up.
	var mu sync.Mutex
	conns := 0
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		if !gatewayHandshake(t, conn) {
			return
		}

		mu.Lock()
		conns++
		n := conns
		mu.Unlock()

		if n == 1 {
			conn.Close()
			return
		}
		if err := conn.WriteJSON(msgEvent); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	g := NewGateway("test-token", slog.Default())
	g.url = wsURL(srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := g.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer g.Close()

	select {
	case <-g.Done():
	case <-ctx.Done():
		t.Fatal("timed out waiting for the dropped connection")
	}

	if err := g.Reconnect(ctx); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}

	// The pre-drop messages channel still carries events.
	select {
	case msg := <-g.Messages():
		if msg.ID != "777" {
			t.Errorf("message ID = %q", msg.ID)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message after reconnect")
	}

	mu.Lock()
	if conns != 2 {
		t.Errorf("server connections = %d, want 2", conns)
	}
	mu.Unlock()
}

func TestGateway_ReconnectAfterCloseFails(t *testing.T) {
	srv := fakeGatewayServer(t, nil)
	defer srv.Close()

	g := NewGateway("test-token", slog.Default())
	g.url = wsURL(srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := g.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := g.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := g.Reconnect(ctx); err == nil {
		t.Error("Reconnect after Close should fail")
	}
}

func TestGateway_IgnoresUnknownDispatch(t *testing.T) {
	unknown := payload{Op: opDispatch, T: "PRESENCE_UPDATE", D: json.RawMessage(`{}`)}
	msgEvent := payload{
		Op: opDispatch,
		T:  "MESSAGE_CREATE",
		D:  json.RawMessage(`{"id":"1","channel_id":"c1","author":{"id":"u1"}}`),
	}
	srv := fakeGatewayServer(t, []payload{unknown, msgEvent})
	defer srv.Close()

	g := NewGateway("test-token", slog.Default())
	g.url = wsURL(srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := g.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer g.Close()

	select {
	case msg := <-g.Messages():
		if msg.ID != "1" {
			t.Errorf("message ID = %q, unknown dispatch should be skipped", msg.ID)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for message event")
	}
}
