package api

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/entrepeneur4lyf/spark/internal/events"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
	wsWriteWait  = 10 * time.Second
)

// WebSocketMessage is the frame exchanged on /ws
type WebSocketMessage struct {
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	EventID string `json:"event_id,omitempty"`
}

// eventClient streams broker events to one WebSocket peer
type eventClient struct {
	conn   *websocket.Conn
	events <-chan events.Event[events.Notice]
	send   chan WebSocketMessage
	logger *log.Logger
}

// handleEventsWebSocket streams turn and store events. An optional
// session_id query parameter restricts the stream to one session and
// last_event_id resumes after an event the client already received.
func (s *Server) handleEventsWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.broker == nil {
		s.writeError(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var filters []events.EventFilter
	if id := r.URL.Query().Get("session_id"); id != "" {
		filters = append(filters, events.FilterBySessionID(id))
	}

	client := &eventClient{
		conn:   conn,
		events: s.broker.SubscribeAfter(ctx, r.URL.Query().Get("last_event_id"), filters...),
		send:   make(chan WebSocketMessage, 16),
		logger: s.logger,
	}
	s.logger.Debug("WebSocket client connected", "remote", r.RemoteAddr)

	go client.readPump(cancel)
	client.writePump(ctx)
	s.logger.Debug("WebSocket client disconnected", "remote", r.RemoteAddr)
}

// readPump handles incoming frames until the peer goes away
func (c *eventClient) readPump(cancel context.CancelFunc) {
	defer cancel()

	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		var msg WebSocketMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("WebSocket read error", "error", err)
			}
			return
		}

		reply := WebSocketMessage{Type: "error", Error: "Unknown message type", EventID: msg.EventID}
		if msg.Type == "ping" {
			reply = WebSocketMessage{Type: "pong", EventID: msg.EventID}
		}
		select {
		case c.send <- reply:
		default:
		}
	}
}

// writePump is the only writer on the connection
func (c *eventClient) writePump(ctx context.Context) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case ev, ok := <-c.events:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteJSON(WebSocketMessage{Type: string(ev.Type), Data: ev, EventID: ev.ID}); err != nil {
				c.logger.Debug("WebSocket write error", "error", err)
				return
			}

		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
