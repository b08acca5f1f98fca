package presentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrNotConnected = errors.New("not connected to host")

type ClientConfig struct {
	URL            string
	AuthToken      string
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Client is the display end of the presentation boundary. Run keeps it
// connected, reconnecting with exponential backoff whenever the host drops.
type Client struct {
	cfg    ClientConfig
	logger *slog.Logger
	events chan Event

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 250 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		events: make(chan Event, 64),
	}
}

func (c *Client) Events() <-chan Event {
	return c.events
}

func (c *Client) Send(cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("sending %s command: %w", cmd.Type, err)
	}
	return nil
}

func (c *Client) Run(ctx context.Context) error {
	backoff := c.cfg.InitialBackoff

	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("connecting to host", "url", c.cfg.URL, "error", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, c.cfg.MaxBackoff)
			continue
		}

		backoff = c.cfg.InitialBackoff
		c.setConn(conn)
		c.logger.Info("connected to host", "url", c.cfg.URL)
		c.emit(ctx, Event{Type: EventConnection, Text: "connected", Time: time.Now()})

		c.readLoop(ctx, conn)

		c.setConn(nil)
		c.emit(ctx, Event{Type: EventConnection, Text: "disconnected", Time: time.Now()})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("host connection lost", "url", c.cfg.URL)
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	header := http.Header{}
	if c.cfg.AuthToken != "" {
		header.Set("X-Auth-Token", c.cfg.AuthToken)
	}

	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing host (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dialing host: %w", err)
	}
	return conn, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("malformed host event", "error", err)
			continue
		}
		c.emit(ctx, ev)
	}
}

func (c *Client) emit(ctx context.Context, ev Event) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}
