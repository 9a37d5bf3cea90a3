package ws

import (
	"net/http"
	"time"

	"github.com/GriffinCanCode/webview-mcp/internal/events"
	"github.com/GriffinCanCode/webview-mcp/internal/infrastructure/monitoring"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024

	subscriberBuffer = 256
)

// Message is a control frame exchanged with stream clients.
type Message struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler streams correlation events to WebSocket clients
type Handler struct {
	hub     *events.Hub
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewHandler creates a new stream handler
func NewHandler(hub *events.Hub, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{hub: hub, metrics: metrics, logger: logger}
}

// HandleConnection upgrades the request and forwards hub events until the
// client disconnects or the hub closes.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	sub := h.hub.Subscribe(subscriberBuffer)
	h.metrics.IncStreamClients()
	h.logger.Debug("Stream client connected", zap.String("remote", conn.RemoteAddr().String()))

	defer func() {
		sub.Close()
		conn.Close()
		h.metrics.DecStreamClients()
		h.logger.Debug("Stream client disconnected", zap.String("remote", conn.RemoteAddr().String()))
	}()

	replies := make(chan Message, 8)
	done := make(chan struct{})
	go h.readPump(conn, replies, done)

	if err := h.write(conn, Message{Type: "system", Message: "Connected to webview-mcp event stream"}); err != nil {
		return
	}
	h.writePump(conn, sub, replies, done)
}

// readPump handles pongs and client pings. It closes done when the
// connection fails.
func (h *Handler) readPump(conn *websocket.Conn, replies chan<- Message, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := sonic.Unmarshal(data, &msg); err != nil {
			reply(replies, Message{Type: "error", Message: "invalid message"})
			continue
		}
		switch msg.Type {
		case "ping":
			reply(replies, Message{Type: "pong"})
		default:
			reply(replies, Message{Type: "error", Message: "unknown message type"})
		}
	}
}

// reply queues msg unless the writer is backed up.
func reply(replies chan<- Message, msg Message) {
	select {
	case replies <- msg:
	default:
	}
}

func (h *Handler) writePump(conn *websocket.Conn, sub *events.Subscription, replies <-chan Message, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := h.write(conn, ev); err != nil {
				return
			}
			h.metrics.IncStreamEvents()

		case msg := <-replies:
			if err := h.write(conn, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

func (h *Handler) write(conn *websocket.Conn, v interface{}) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to marshal stream message", zap.Error(err))
		return nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Debug("Failed to write stream message", zap.Error(err))
		return err
	}
	return nil
}
