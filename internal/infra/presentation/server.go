package presentation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voicedesk/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxCommandSize = 4096
	clientQueue    = 64
)

// Controller is the host-side command surface the display drives.
type Controller interface {
	Start()
	Stop()
	SelectPromptVariant(id string)
	RequestConfig()
	State() domain.State
}

type ServerConfig struct {
	Addr           string
	AuthToken      string
	CommandsPerSec float64
	CommandBurst   int
}

// Server is the host end of the presentation boundary. It accepts display
// connections on /ws, forwards their commands to the Controller and
// broadcasts orchestrator events to all of them.
type Server struct {
	cfg      ServerConfig
	logger   *slog.Logger
	mux      *http.ServeMux
	server   *http.Server
	listener net.Listener
	upgrader websocket.Upgrader

	connectLimiter *RateLimiter
	commandLimiter *RateLimiter

	mu         sync.Mutex
	ctrl       Controller
	running    bool
	clients    map[*client]struct{}
	lastConfig *Event
	lastState  *Event
}

func NewServer(cfg ServerConfig, metrics http.Handler, logger *slog.Logger) *Server {
	s := &Server{
		cfg:            cfg,
		logger:         logger,
		mux:            http.NewServeMux(),
		connectLimiter: NewRateLimiter(1, 10),
		commandLimiter: NewRateLimiter(cfg.CommandsPerSec, cfg.CommandBurst),
		clients:        make(map[*client]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	s.mux.HandleFunc("GET /ws", s.connectLimiter.Middleware(s.handleWS))
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if metrics != nil {
		s.mux.Handle("GET /metrics", metrics)
	}
	return s
}

// Bind sets the controller commands are forwarded to. It must be called
// before the server starts accepting connections.
func (s *Server) Bind(ctrl Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl = ctrl
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Addr returns the listening address once Start has returned.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info("presentation server starting", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("presentation server error", "error", err)
		}
	}()

	s.running = true
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	srv := s.server
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
		if err := srv.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}
	return nil
}

func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.AuthToken == "" {
		return true
	}
	token := r.Header.Get("X-Auth-Token")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	return token == s.cfg.AuthToken
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		s.logger.Warn("unauthorized display connection", "remote_addr", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, clientQueue),
		done: make(chan struct{}),
	}
	s.register(c)
	s.logger.Info("display connected", "client", c.id, "remote_addr", r.RemoteAddr)

	go c.writePump(s.logger)
	s.readPump(c)

	s.unregister(c)
	s.logger.Info("display disconnected", "client", c.id)
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients[c] = struct{}{}
	for _, ev := range []*Event{s.lastConfig, s.lastState} {
		if ev == nil {
			continue
		}
		if data, err := json.Marshal(ev); err == nil {
			c.send <- data
		}
	}
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()

	s.commandLimiter.Forget(c.id)
	c.close()
}

func (s *Server) readPump(c *client) {
	c.conn.SetReadLimit(maxCommandSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("display connection lost", "client", c.id, "error", err)
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.logger.Warn("malformed display command", "client", c.id, "error", err)
			continue
		}

		if !s.commandLimiter.Allow(c.id) {
			s.logger.Warn("display command rate limited", "client", c.id, "command", cmd.Type)
			s.sendTo(c, &Event{
				Type:  EventError,
				Error: &ErrorInfo{Message: "rate limit exceeded"},
				Time:  time.Now(),
			})
			continue
		}

		s.dispatch(c, cmd)
	}
}

func (s *Server) dispatch(c *client, cmd Command) {
	s.mu.Lock()
	ctrl := s.ctrl
	s.mu.Unlock()
	if ctrl == nil {
		s.logger.Warn("display command before controller bound", "command", cmd.Type)
		return
	}

	s.logger.Debug("display command", "client", c.id, "command", cmd.Type, "variant", cmd.Variant)

	switch cmd.Type {
	case CommandStart:
		ctrl.Start()
	case CommandStop:
		ctrl.Stop()
	case CommandSelectVariant:
		ctrl.SelectPromptVariant(cmd.Variant)
	case CommandRequestConfig:
		ctrl.RequestConfig()
	default:
		s.logger.Warn("unknown display command", "client", c.id, "command", cmd.Type)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	running := s.running
	clients := len(s.clients)
	ctrl := s.ctrl
	s.mu.Unlock()

	state := domain.StateIdle
	if ctrl != nil {
		state = ctrl.State()
	}

	status := "ok"
	statusCode := http.StatusOK
	if !running || ctrl == nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"state":   state,
		"clients": clients,
	})
}

func (s *Server) sendTo(c *client, ev *Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("encoding event", "type", ev.Type, "error", err)
		return
	}
	if !c.enqueue(data) {
		s.logger.Warn("display client too slow, disconnecting", "client", c.id)
		c.close()
	}
}

func (s *Server) broadcast(ev *Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("encoding event", "type", ev.Type, "error", err)
		return
	}

	s.mu.Lock()
	switch ev.Type {
	case EventConfig:
		s.lastConfig = ev
	case EventState:
		s.lastState = ev
	}
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if !c.enqueue(data) {
			s.logger.Warn("display client too slow, disconnecting", "client", c.id)
			c.close()
		}
	}
}

func (s *Server) StateChanged(session domain.Session, reason domain.Reason) {
	s.broadcast(&Event{
		Type:    EventState,
		Session: session.ID,
		State:   session.State,
		Reason:  reason,
		Variant: session.Variant.ID,
		Time:    time.Now(),
	})
}

func (s *Server) TranscriptUpdated(sessionID, text string) {
	s.broadcast(&Event{Type: EventTranscript, Session: sessionID, Text: text, Time: time.Now()})
}

func (s *Server) ResponseReady(sessionID string, env domain.ResponseEnvelope) {
	s.broadcast(&Event{Type: EventResponse, Session: sessionID, Response: &env, Time: time.Now()})
}

func (s *Server) AudioReady(sessionID string, res *domain.AudioResource) {
	meta := *res
	meta.Data = nil
	s.broadcast(&Event{Type: EventAudio, Session: sessionID, Audio: &meta, Time: time.Now()})
}

func (s *Server) ErrorOccurred(sessionID string, err error) {
	s.broadcast(&Event{
		Type:    EventError,
		Session: sessionID,
		Error:   &ErrorInfo{Kind: domain.KindOf(err), Message: err.Error()},
		Time:    time.Now(),
	})
}

func (s *Server) ConfigUpdated(cfg domain.PromptConfig) {
	s.broadcast(&Event{Type: EventConfig, Config: &cfg, Time: time.Now()})
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func (c *client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

func (c *client) writePump(logger *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debug("writing to display", "client", c.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
