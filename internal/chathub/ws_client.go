package chathub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pairup/backend/internal/metrics"
	"pairup/backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// WebSocketClient implements Client over a gorilla websocket connection.
type WebSocketClient struct {
	ID      string
	Conn    *websocket.Conn
	Hub     *ManagerService
	Send    chan models.Envelope
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewWebSocketClient creates a client with an outbound buffer of bufSize events.
func NewWebSocketClient(id string, conn *websocket.Conn, hub *ManagerService, bufSize int, m *metrics.Metrics, logger *slog.Logger) *WebSocketClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketClient{
		ID:      id,
		Conn:    conn,
		Hub:     hub,
		Send:    make(chan models.Envelope, bufSize),
		Metrics: m,
		Logger:  logger,
	}
}

func (c *WebSocketClient) GetUserID() string { return c.ID }

// Emit encodes payload and queues it without blocking.
func (c *WebSocketClient) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.Metrics.IncDroppedSends()
		return ErrClientClosed
	}
	select {
	case c.Send <- models.Envelope{Event: event, Data: data}:
		return nil
	default:
		c.Metrics.IncDroppedSends()
		return ErrSendBufferFull
	}
}

// Run starts the read and write pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes the Send channel, which stops writePump. It is safe to call
// more than once.
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Logger.Warn("websocket read failed", "participant", c.ID, "err", err)
			}
			break
		}

		var env models.Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
			c.Logger.Debug("malformed frame", "participant", c.ID, "err", err)
			continue
		}

		if !c.Hub.Deliver(c, env) {
			return
		}
	}
}

// writePump writes queued events, one JSON text frame per event, and keeps
// the connection alive with pings.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(env); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
