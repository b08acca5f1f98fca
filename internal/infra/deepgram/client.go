package deepgram

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultBaseURL   = "https://api.deepgram.com/v1"
	defaultStreamURL = "wss://api.deepgram.com/v1/listen"
)

type Config struct {
	APIKey        string
	BaseURL       string
	StreamURL     string
	STTModel      string
	Language      string
	TTSModel      string
	TTSSampleRate int
}

// Client talks to Deepgram for both streaming recognition and speech
// synthesis. It holds no per-session state.
type Client struct {
	cfg        Config
	httpClient *http.Client
	dialer     websocket.Dialer
	logger     *slog.Logger
	newID      func() string
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.StreamURL == "" {
		cfg.StreamURL = defaultStreamURL
	}
	if cfg.STTModel == "" {
		cfg.STTModel = "nova-2"
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = "aura-asteria-en"
	}
	if cfg.TTSSampleRate == 0 {
		cfg.TTSSampleRate = 24000
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		dialer: websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			TLSClientConfig:  &tls.Config{MinVersion: tls.VersionTLS12},
		},
		logger: logger,
		newID:  uuid.NewString,
	}
}

func (c *Client) authHeader() string {
	return "Token " + c.cfg.APIKey
}
