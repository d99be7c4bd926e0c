package rigclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"calibration_console/internal/logger"

	"github.com/gorilla/websocket"
)

var (
	// ErrNotConnected is returned by Emit while the session socket is down.
	ErrNotConnected = errors.New("rig socket not connected")
	// ErrSendQueueFull is returned by Emit when the outbound queue is saturated.
	ErrSendQueueFull = errors.New("rig socket send queue full")
)

const (
	sendQueueSize = 16
	writeWait     = 10 * time.Second
)

// Frame is the JSON shape of every message on the session socket.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// HandlerFunc receives the data of one inbound event.
type HandlerFunc func(data json.RawMessage)

// SocketConfig holds the endpoint and timing of the session socket.
type SocketConfig struct {
	Endpoint       string
	ReconnectDelay time.Duration
	MaxReconnect   time.Duration
	PingInterval   time.Duration
	Header         http.Header
}

// ConnectionStatus is a point-in-time view of the socket.
type ConnectionStatus struct {
	Connected    bool   `json:"connected"`
	Reconnecting bool   `json:"reconnecting"`
	LastError    string `json:"last_error,omitempty"`
}

// Socket keeps a persistent connection to the rig's session socket,
// reconnecting with exponential backoff.
type Socket struct {
	cfg    SocketConfig
	log    *logger.Logger
	dialer *websocket.Dialer

	mu           sync.Mutex
	conn         *websocket.Conn
	connected    bool
	reconnecting bool
	lastError    error
	send         chan []byte

	handlersMu sync.RWMutex
	handlers   map[string]HandlerFunc
	onConnect  []func()
	onDrop     []func()

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSocket builds a socket client. Call Start to begin connecting.
func NewSocket(cfg SocketConfig, log *logger.Logger) *Socket {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.MaxReconnect < cfg.ReconnectDelay {
		cfg.MaxReconnect = cfg.ReconnectDelay
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &Socket{
		cfg:      cfg,
		log:      log,
		dialer:   websocket.DefaultDialer,
		handlers: make(map[string]HandlerFunc),
		done:     make(chan struct{}),
	}
}

// Handle registers fn for inbound frames named event, replacing any
// previous handler. Safe to call before or after Start.
func (s *Socket) Handle(event string, fn HandlerFunc) {
	s.handlersMu.Lock()
	s.handlers[event] = fn
	s.handlersMu.Unlock()
}

// OnConnect registers fn to run after every successful (re)connection.
func (s *Socket) OnConnect(fn func()) {
	s.handlersMu.Lock()
	s.onConnect = append(s.onConnect, fn)
	s.handlersMu.Unlock()
}

// OnDisconnect registers fn to run after an established connection drops.
func (s *Socket) OnDisconnect(fn func()) {
	s.handlersMu.Lock()
	s.onDrop = append(s.onDrop, fn)
	s.handlersMu.Unlock()
}

// Start begins the connection loop in the background.
func (s *Socket) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.connectionLoop()
	}()
}

// Stop closes the connection and waits for the loops to exit.
func (s *Socket) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		if s.conn != nil {
			_ = s.conn.Close()
		}
		s.mu.Unlock()
	})
	s.wg.Wait()
}

// Status reports whether the socket is currently usable.
func (s *Socket) Status() ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := ConnectionStatus{Connected: s.connected, Reconnecting: s.reconnecting}
	if s.lastError != nil {
		st.LastError = s.lastError.Error()
	}
	return st
}

// Emit queues one frame for the rig. It never blocks and never retries.
func (s *Socket) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", event, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected || s.send == nil {
		return ErrNotConnected
	}
	select {
	case s.send <- frame:
		return nil
	default:
		return ErrSendQueueFull
	}
}

func (s *Socket) connectionLoop() {
	delay := s.cfg.ReconnectDelay

	for {
		select {
		case <-s.done:
			return
		default:
		}

		if err := s.connect(); err != nil {
			s.mu.Lock()
			s.connected = false
			s.reconnecting = true
			s.lastError = err
			s.mu.Unlock()

			if s.log != nil {
				s.log.Warnw("rig_socket_connect_failed", "err", err, "retry_in", delay)
			}

			select {
			case <-s.done:
				return
			case <-time.After(delay):
			}

			delay *= 2
			if delay > s.cfg.MaxReconnect {
				delay = s.cfg.MaxReconnect
			}
			continue
		}

		delay = s.cfg.ReconnectDelay
		s.runConnection()
	}
}

func (s *Socket) connect() error {
	conn, _, err := s.dialer.Dial(s.cfg.Endpoint, s.cfg.Header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.cfg.Endpoint, err)
	}

	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		_ = conn.Close()
		return errors.New("socket stopped")
	default:
	}
	s.conn = conn
	s.send = make(chan []byte, sendQueueSize)
	s.connected = true
	s.reconnecting = false
	s.lastError = nil
	s.mu.Unlock()

	if s.log != nil {
		s.log.Infow("rig_socket_connected", "endpoint", s.cfg.Endpoint)
	}

	s.handlersMu.RLock()
	hooks := append([]func(){}, s.onConnect...)
	s.handlersMu.RUnlock()
	for _, fn := range hooks {
		fn()
	}
	return nil
}

func (s *Socket) runConnection() {
	s.mu.Lock()
	conn := s.conn
	send := s.send
	s.mu.Unlock()

	closed := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer close(closed)
		s.readLoop(conn)
	}()

	go func() {
		defer wg.Done()
		s.writeLoop(conn, send, closed)
	}()

	wg.Wait()

	s.mu.Lock()
	s.connected = false
	s.send = nil
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	_ = conn.Close()

	if s.log != nil {
		s.log.Warnw("rig_socket_disconnected", "endpoint", s.cfg.Endpoint)
	}

	s.handlersMu.RLock()
	hooks := append([]func(){}, s.onDrop...)
	s.handlersMu.RUnlock()
	for _, fn := range hooks {
		fn()
	}
}

func (s *Socket) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && s.log != nil {
				s.log.Warnw("rig_socket_read_failed", "err", err)
			}
			return
		}
		s.dispatch(message)
	}
}

func (s *Socket) writeLoop(conn *websocket.Conn, send <-chan []byte, closed <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			_ = conn.Close()
			return
		case <-closed:
			return
		case message := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				if s.log != nil {
					s.log.Warnw("rig_socket_write_failed", "err", err)
				}
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				if s.log != nil {
					s.log.Warnw("rig_socket_ping_failed", "err", err)
				}
				_ = conn.Close()
				return
			}
		}
	}
}

func (s *Socket) dispatch(message []byte) {
	var frame Frame
	if err := json.Unmarshal(message, &frame); err != nil || frame.Event == "" {
		if s.log != nil {
			s.log.Warnw("rig_socket_bad_frame", "err", err, "size", len(message))
		}
		return
	}

	s.handlersMu.RLock()
	fn, ok := s.handlers[frame.Event]
	s.handlersMu.RUnlock()
	if !ok {
		if s.log != nil {
			s.log.Debugw("rig_socket_unhandled_event", "event", frame.Event)
		}
		return
	}
	fn(frame.Data)
}
