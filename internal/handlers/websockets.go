package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"calibration_console/internal/logger"
	"calibration_console/internal/metrics"
	"calibration_console/internal/service"
	"calibration_console/internal/view"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMsgSize     = 1 << 12 // 4 KB
	clientSendSize = 32
)

// Message types on the view stream.
const (
	msgStatus    = "status"
	msgHistogram = "histogram"
	msgSession   = "session"
)

// Envelope used for WebSocket messages.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Browsers on the rig LAN connect directly; origin checks happen at the reverse proxy.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsClient struct {
	send chan []byte
}

// Hub fans rendered view models out to every connected browser. It implements
// service.Renderer.
type Hub struct {
	metrics *metrics.Metrics
	log     *logger.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	last    map[string][]byte // newest status and session message, replayed on connect
	closed  bool
}

var _ service.Renderer = (*Hub)(nil)

func NewHub(m *metrics.Metrics, log *logger.Logger) *Hub {
	return &Hub{
		metrics: m,
		log:     log,
		clients: map[*wsClient]struct{}{},
		last:    map[string][]byte{},
	}
}

func (h *Hub) RenderStatus(v view.StatusView) { h.broadcast(msgStatus, v) }

func (h *Hub) RenderHistogram(v view.HistogramView) { h.broadcast(msgHistogram, v) }

func (h *Hub) RenderSession(s service.SessionSnapshot) { h.broadcast(msgSession, s) }

// Clients returns the number of connected browsers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every browser and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		h.metrics.ViewClientDisconnected()
	}
}

func (h *Hub) broadcast(kind string, data any) {
	msg, err := json.Marshal(wsEnvelope{Type: kind, Data: data})
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_encode_failed", "type", kind, "err", err)
		}
		return
	}

	if kind != msgHistogram {
		h.mu.Lock()
		h.last[kind] = msg
		h.mu.Unlock()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			if h.log != nil {
				h.log.Debugw("ws_client_slow", "type", kind)
			}
		}
	}
}

func (h *Hub) register() *wsClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	c := &wsClient{send: make(chan []byte, clientSendSize)}
	for _, kind := range []string{msgSession, msgStatus} {
		if msg, ok := h.last[kind]; ok {
			c.send <- msg
		}
	}
	h.clients[c] = struct{}{}
	h.metrics.ViewClientConnected()
	return c
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.ViewClientDisconnected()
}

// @Summary      Browser view stream
// @Description  WebSocket of {type,data} envelopes; type is status, histogram or session.
// @Tags         monitoring
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	client := h.hub.register()
	if client == nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		return
	}
	defer h.hub.unregister(client)

	// Configure read limits and pong handler to extend read deadline.
	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Reader goroutine to handle control frames and detect disconnects.
	done := make(chan struct{})
	go h.startReader(conn, done)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case msg, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err)
				}
				return
			}
		}
	}
}

// startReader drains incoming messages to handle control frames and detect closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
	}
}
