package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultGatewayURL is the Discord realtime gateway endpoint.
const DefaultGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

// Gateway opcodes. Only the ones this client speaks are defined.
const (
	opDispatch     = 0
	opHeartbeat    = 1
	opIdentify     = 2
	opHello        = 10
	opHeartbeatACK = 11
)

// intents requests guild metadata, guild and DM message events, and
// message content (a privileged intent the bot must have enabled).
const intents = 1<<0 | 1<<9 | 1<<12 | 1<<15

// payload is the generic gateway frame.
type payload struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	S  *int64          `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

// helloData is the opcode 10 payload.
type helloData struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

// readyData is the READY dispatch payload subset we use.
type readyData struct {
	User User `json:"user"`
}

// Gateway maintains a websocket connection to Discord and pushes
// MESSAGE_CREATE events to a buffered channel. It sends heartbeats on
// the interval the server announces in HELLO. A dropped connection ends
// the read loop and fires Done; Reconnect re-dials and re-identifies,
// keeping the messages channel intact across connections.
type Gateway struct {
	token  string
	url    string
	logger *slog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn
	done   chan struct{} // per-connection, closed when its read loop exits
	closed bool

	seq      atomic.Int64
	botUser  User
	messages chan *Message
}

// NewGateway creates a gateway client. Call Connect to establish the
// socket.
func NewGateway(token string, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		token:    token,
		url:      DefaultGatewayURL,
		logger:   logger.With("component", "gateway"),
		done:     make(chan struct{}),
		messages: make(chan *Message, 64),
	}
}

// Connect dials the gateway, identifies, and blocks until the READY
// dispatch arrives (or ctx is cancelled). On return the read and
// heartbeat goroutines are running.
func (g *Gateway) Connect(ctx context.Context) error {
	g.logger.Info("connecting to gateway", "url", g.url)
	return g.dial(ctx)
}

// Reconnect re-dials and re-identifies after a dropped connection. It
// fails once Close has been called. Events received on the new
// connection arrive on the same Messages channel.
func (g *Gateway) Reconnect(ctx context.Context) error {
	g.connMu.Lock()
	if g.closed {
		g.connMu.Unlock()
		return fmt.Errorf("gateway closed")
	}
	if g.conn != nil {
		g.conn.Close()
		g.conn = nil
	}
	g.connMu.Unlock()

	g.logger.Info("reconnecting to gateway", "url", g.url)
	return g.dial(ctx)
}

// dial performs one connection attempt: websocket dial, HELLO,
// IDENTIFY, then block until READY.
func (g *Gateway) dial(ctx context.Context) error {
	dialer := websocket.Dialer{
		ReadBufferSize:  1 << 20,
		WriteBufferSize: 64 * 1024,
	}
	conn, _, err := dialer.DialContext(ctx, g.url, nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}

	// HELLO arrives first and carries the heartbeat interval.
	var hello payload
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return fmt.Errorf("read hello: %w", err)
	}
	if hello.Op != opHello {
		conn.Close()
		return fmt.Errorf("expected hello opcode %d, got %d", opHello, hello.Op)
	}
	var hd helloData
	if err := json.Unmarshal(hello.D, &hd); err != nil {
		conn.Close()
		return fmt.Errorf("parse hello: %w", err)
	}

	identify := map[string]any{
		"op": opIdentify,
		"d": map[string]any{
			"token":   g.token,
			"intents": intents,
			"properties": map[string]string{
				"os":      runtime.GOOS,
				"browser": "herald",
				"device":  "herald",
			},
		},
	}
	if err := conn.WriteJSON(identify); err != nil {
		conn.Close()
		return fmt.Errorf("send identify: %w", err)
	}

	readyCh := make(chan struct{})
	done := make(chan struct{})

	g.connMu.Lock()
	if g.closed {
		g.connMu.Unlock()
		conn.Close()
		return fmt.Errorf("gateway closed")
	}
	g.conn = conn
	g.done = done
	g.connMu.Unlock()

	go g.readLoop(conn, readyCh, done)
	go g.heartbeatLoop(time.Duration(hd.HeartbeatInterval)*time.Millisecond, done)

	select {
	case <-readyCh:
	case <-done:
		return fmt.Errorf("gateway closed before ready")
	case <-ctx.Done():
		conn.Close()
		return ctx.Err()
	}

	g.logger.Info("gateway ready",
		"bot_id", g.botUser.ID,
		"bot_name", g.botUser.Username,
	)
	return nil
}

// Messages returns the channel of inbound MESSAGE_CREATE events. The
// channel is never closed; it carries events across reconnects.
func (g *Gateway) Messages() <-chan *Message {
	return g.messages
}

// Done returns a channel that closes when the current connection's read
// loop exits. After it fires, call Reconnect to establish a new
// connection (Done then reflects the new one).
func (g *Gateway) Done() <-chan struct{} {
	g.connMu.Lock()
	defer g.connMu.Unlock()
	return g.done
}

// BotUser returns the bot account captured from the READY dispatch.
// Only valid after Connect returns.
func (g *Gateway) BotUser() User {
	return g.botUser
}

// Close shuts the websocket connection down and prevents reconnects.
func (g *Gateway) Close() error {
	g.connMu.Lock()
	defer g.connMu.Unlock()
	g.closed = true
	if g.conn != nil {
		return g.conn.Close()
	}
	return nil
}

// writeJSON serializes writes, which the websocket package requires.
func (g *Gateway) writeJSON(v any) error {
	g.connMu.Lock()
	defer g.connMu.Unlock()
	if g.conn == nil {
		return fmt.Errorf("gateway not connected")
	}
	return g.conn.WriteJSON(v)
}

// readLoop reads frames from one connection until it drops, routing
// MESSAGE_CREATE dispatches to the messages channel. The channels are
// per-connection so a reconnected gateway starts a fresh loop.
func (g *Gateway) readLoop(conn *websocket.Conn, readyCh chan struct{}, done chan struct{}) {
	defer close(done)

	ready := false
	onReady := func(u User) {
		if ready {
			return
		}
		ready = true
		g.botUser = u
		close(readyCh)
	}

	for {
		var p payload
		if err := conn.ReadJSON(&p); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.logger.Info("gateway closed normally")
			} else {
				g.logger.Error("gateway read error", "error", err)
			}
			return
		}

		if p.S != nil {
			g.seq.Store(*p.S)
		}

		switch p.Op {
		case opDispatch:
			g.handleDispatch(&p, onReady)

		case opHeartbeat:
			// Server asked for an immediate heartbeat.
			if err := g.sendHeartbeat(); err != nil {
				g.logger.Warn("heartbeat send failed", "error", err)
			}

		case opHeartbeatACK:
			// Keepalive acknowledged, nothing to do.

		default:
			g.logger.Debug("unhandled gateway opcode", "op", p.Op)
		}
	}
}

// handleDispatch routes opcode 0 events by type.
func (g *Gateway) handleDispatch(p *payload, onReady func(User)) {
	switch p.T {
	case "READY":
		var rd readyData
		if err := json.Unmarshal(p.D, &rd); err != nil {
			g.logger.Error("parse ready", "error", err)
			return
		}
		onReady(rd.User)

	case "MESSAGE_CREATE":
		var msg Message
		if err := json.Unmarshal(p.D, &msg); err != nil {
			g.logger.Warn("malformed message event", "error", err)
			return
		}
		select {
		case g.messages <- &msg:
		default:
			g.logger.Warn("message channel full, dropping event",
				"channel_id", msg.ChannelID,
			)
		}

	default:
		g.logger.Debug("unhandled dispatch", "type", p.T)
	}
}

// heartbeatLoop sends a heartbeat on the server-provided interval until
// its connection ends.
func (g *Gateway) heartbeatLoop(interval time.Duration, done <-chan struct{}) {
	if interval <= 0 {
		interval = 41250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := g.sendHeartbeat(); err != nil {
				g.logger.Warn("heartbeat send failed", "error", err)
				return
			}
		}
	}
}

// sendHeartbeat sends opcode 1 with the last seen sequence number.
func (g *Gateway) sendHeartbeat() error {
	seq := g.seq.Load()
	var d any
	if seq > 0 {
		d = seq
	}
	return g.writeJSON(map[string]any{"op": opHeartbeat, "d": d})
}
