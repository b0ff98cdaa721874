package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/mpgame/mp-server/pkg/commsutil"
	"github.com/mpgame/mp-server/pkg/events"
	"github.com/mpgame/mp-server/pkg/rpc"
)

const (
	wsLogPrefix  = "server:ws"
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsConn is one upgraded client. Writes are serialized by writeMu.
type wsConn struct {
	conn    *websocket.Conn
	limiter *rate.Limiter
	writeMu sync.Mutex
	closed  chan struct{}
	once    sync.Once
}

func (c *wsConn) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (c *wsConn) close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

// wsEvent is the frame pushed to every client when a player event occurs.
type wsEvent struct {
	Event *events.PlayerEvent `json:"event"`
}

// Hub tracks WebSocket clients and broadcasts player events to them.
// It implements events.EventPublisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsConn]struct{}
}

var _ events.EventPublisher = (*Hub)(nil)

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*wsConn]struct{})}
}

// Publish sends event to every connected client. A client whose write fails
// is closed and dropped.
func (h *Hub) Publish(_ context.Context, event *events.PlayerEvent) error {
	data, err := commsutil.EncodePayload(wsEvent{Event: event})
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", wsLogPrefix, err)
	}

	h.mu.RLock()
	clients := make([]*wsConn, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			slog.Debug(fmt.Sprintf("%s - dropping client after failed event write: %v", wsLogPrefix, err))
			h.remove(c)
			c.close()
		}
	}
	return nil
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*wsConn]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

func (h *Hub) add(c *wsConn) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *wsConn) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.draining.Load() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug(fmt.Sprintf("%s - upgrade failed: %v", wsLogPrefix, err))
		return
	}

	c := &wsConn{
		conn:    conn,
		limiter: s.limiter.connLimiter(),
		closed:  make(chan struct{}),
	}
	s.hub.add(c)
	slog.Debug(fmt.Sprintf("%s - client connected from %s", wsLogPrefix, r.RemoteAddr))

	go s.keepAlive(c)
	s.readLoop(c)

	s.hub.remove(c)
	c.close()
	slog.Debug(fmt.Sprintf("%s - client %s disconnected", wsLogPrefix, r.RemoteAddr))
}

// readLoop reads request frames until the connection fails. Each request is
// dispatched on its own goroutine, so responses may arrive out of order.
func (s *Server) readLoop(c *wsConn) {
	c.conn.SetReadLimit(s.cfg.MaxBodyBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug(fmt.Sprintf("%s - read failed: %v", wsLogPrefix, err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var req rpc.Request
		if err := commsutil.DecodePayload(data, &req); err != nil {
			s.reply(c, rpc.NewErrorResponse("", rpc.CodeParseError, "parse error"))
			continue
		}
		if c.limiter != nil && !c.limiter.Allow() {
			s.reply(c, rpc.NewErrorResponse(req.ID, rpc.CodeRateLimited, "rate limit exceeded"))
			continue
		}

		if !s.inflight.acquire() {
			s.reply(c, unavailable(req.ID))
			continue
		}
		go func(req rpc.Request) {
			defer s.inflight.release()
			s.reply(c, s.dispatch(s.baseCtx, &req))
		}(req)
	}
}

func (s *Server) keepAlive(c *wsConn) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				c.close()
				return
			}
		}
	}
}

func (s *Server) reply(c *wsConn, resp *rpc.Response) {
	data, err := commsutil.EncodePayload(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", wsLogPrefix, err))
		return
	}
	if err := c.write(data); err != nil {
		slog.Debug(fmt.Sprintf("%s - failed to write response: %v", wsLogPrefix, err))
	}
}
