package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"calibration_console/internal/models"
	"calibration_console/internal/service"
	"calibration_console/internal/view"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type envelope struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func startWSServer(t *testing.T) (*Handler, *websocket.Conn) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewHandler(&service.Service{}, nil, nil)
	r := gin.New()
	r.GET("/ws", h.wsConnect)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	u.Scheme = "ws"
	u.Path = "/ws"
	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return h, conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("hub has %d clients, want %d", hub.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

func TestWebSocket_BroadcastsRenderedViews(t *testing.T) {
	h, conn := startWSServer(t)
	hub := h.Hub()
	waitClients(t, hub, 1)

	hub.RenderStatus(view.StatusView{Uptime: "Uptime: 00:00:05", Samples: 10})
	env := readEnvelope(t, conn)
	if env.Type != "status" {
		t.Fatalf("type = %q, want status", env.Type)
	}
	var st view.StatusView
	if err := json.Unmarshal(env.Data, &st); err != nil || st.Samples != 10 {
		t.Fatalf("status = %+v err=%v", st, err)
	}

	hub.RenderHistogram(view.HistogramView{Process: "lowlight", RMS: 2})
	if env := readEnvelope(t, conn); env.Type != "histogram" {
		t.Fatalf("type = %q, want histogram", env.Type)
	}

	hub.RenderSession(service.SessionSnapshot{State: models.StateWaitUser, StateLabel: "WAIT_USER"})
	env = readEnvelope(t, conn)
	var sess service.SessionSnapshot
	if err := json.Unmarshal(env.Data, &sess); err != nil || env.Type != "session" || sess.State != models.StateWaitUser {
		t.Fatalf("session = %+v type=%q err=%v", sess, env.Type, err)
	}
}

func TestWebSocket_NewClientGetsLatestViews(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(&service.Service{}, nil, nil)
	h.Hub().RenderStatus(view.StatusView{Samples: 3})
	h.Hub().RenderSession(service.SessionSnapshot{SessionType: "standard"})

	r := gin.New()
	r.GET("/ws", h.wsConnect)
	srv := httptest.NewServer(r)
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	u.Scheme = "ws"
	conn, _, err := websocket.DefaultDialer.Dial(u.String()+"/ws", nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()

	if env := readEnvelope(t, conn); env.Type != "session" {
		t.Fatalf("first replay = %q, want session", env.Type)
	}
	if env := readEnvelope(t, conn); env.Type != "status" {
		t.Fatalf("second replay = %q, want status", env.Type)
	}
}

func TestWebSocket_DisconnectUnregisters(t *testing.T) {
	h, conn := startWSServer(t)
	waitClients(t, h.Hub(), 1)

	_ = conn.Close()
	waitClients(t, h.Hub(), 0)
}

func TestWebSocket_HubCloseDisconnectsClients(t *testing.T) {
	h, conn := startWSServer(t)
	waitClients(t, h.Hub(), 1)

	h.Hub().Close()
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected close after hub shutdown")
	}
	if h.Hub().register() != nil {
		t.Fatalf("closed hub accepted a client")
	}
}
