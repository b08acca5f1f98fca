package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voicedesk/internal/application"
	"voicedesk/internal/domain"
)

const (
	writeWait        = 10 * time.Second
	closeGracePeriod = 2 * time.Second
	maxMessageSize   = 1 << 20
	frameQueueSize   = 64
)

var closeStreamMsg = []byte(`{"type":"CloseStream"}`)

type resultsMessage struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// Open dials the listen endpoint. The returned channel is ready as soon as
// Open returns.
func (c *Client) Open(ctx context.Context, format domain.AudioFormat) (application.StreamChannel, error) {
	endpoint, err := url.Parse(c.cfg.StreamURL)
	if err != nil {
		return nil, fmt.Errorf("parsing stream url: %w", err)
	}

	q := endpoint.Query()
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(format.SampleRate))
	q.Set("channels", strconv.Itoa(format.Channels))
	q.Set("interim_results", "true")
	q.Set("punctuate", "true")
	q.Set("model", c.cfg.STTModel)
	if c.cfg.Language != "" {
		q.Set("language", c.cfg.Language)
	}
	endpoint.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Authorization", c.authHeader())

	conn, resp, err := c.dialer.DialContext(ctx, endpoint.String(), headers)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, domain.ChannelError("dialing deepgram", fmt.Errorf("deepgram stream handshake %d: %w", resp.StatusCode, err))
		}
		return nil, domain.ChannelError("dialing deepgram", err)
	}
	conn.SetReadLimit(maxMessageSize)

	s := &stream{
		conn:   conn,
		frames: make(chan []byte, frameQueueSize),
		events: make(chan domain.RecognitionEvent, 32),
		done:   make(chan struct{}),
		ready:  true,
		logger: c.logger,
	}
	go s.writeLoop()
	go s.readLoop()

	c.logger.Debug("deepgram stream opened", "sample_rate", format.SampleRate, "model", c.cfg.STTModel)
	return s, nil
}

type stream struct {
	conn   *websocket.Conn
	frames chan []byte
	events chan domain.RecognitionEvent
	done   chan struct{}
	logger *slog.Logger

	mu         sync.Mutex
	ready      bool
	sendClosed bool
	closing    bool
	err        error
	dropped    int

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (s *stream) Send(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		s.dropped++
		return false
	}

	buf := make([]byte, len(frame))
	copy(buf, frame)

	select {
	case s.frames <- buf:
		return true
	default:
		s.dropped++
		return false
	}
}

func (s *stream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ready = false
	if !s.sendClosed {
		s.sendClosed = true
		close(s.frames)
	}
	return nil
}

func (s *stream) Events() <-chan domain.RecognitionEvent {
	return s.events
}

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close tears the connection down. It is safe to call more than once and
// from any goroutine.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.ready = false
		if !s.sendClosed {
			s.sendClosed = true
			close(s.frames)
		}
		dropped := s.dropped
		s.mu.Unlock()

		close(s.done)

		s.writeMu.Lock()
		_ = s.conn.SetWriteDeadline(time.Now().Add(closeGracePeriod))
		_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()

		if err := s.conn.Close(); err != nil {
			s.logger.Debug("closing deepgram connection", "error", err)
		}
		if dropped > 0 {
			s.logger.Debug("frames dropped on deepgram stream", "count", dropped)
		}
	})
	return nil
}

func (s *stream) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *stream) write(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(messageType, data)
}

// writeLoop sends queued frames in order, then CloseStream once the send
// side has been closed.
func (s *stream) writeLoop() {
	broken := false
	for frame := range s.frames {
		if broken {
			continue
		}
		if err := s.write(websocket.BinaryMessage, frame); err != nil {
			s.logger.Debug("writing audio frame", "error", err)
			broken = true
		}
	}

	if broken || s.isClosing() {
		return
	}
	if err := s.write(websocket.TextMessage, closeStreamMsg); err != nil {
		s.logger.Debug("writing close stream message", "error", err)
	}
}

func (s *stream) readLoop() {
	defer close(s.events)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.isClosing() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
			}
			return
		}

		for _, line := range bytes.Split(data, []byte("\n")) {
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}

			ev, ok, err := parseMessage(line)
			if err != nil {
				s.logger.Warn("dropping malformed stream message", "error", err)
				continue
			}
			if !ok {
				continue
			}

			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		}
	}
}

func parseMessage(line []byte) (domain.RecognitionEvent, bool, error) {
	var msg resultsMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		return domain.RecognitionEvent{}, false, fmt.Errorf("decoding stream message: %w", err)
	}
	if msg.Type != "" && msg.Type != "Results" {
		return domain.RecognitionEvent{}, false, nil
	}
	if len(msg.Channel.Alternatives) == 0 {
		return domain.RecognitionEvent{}, false, nil
	}
	return domain.RecognitionEvent{
		Text:    msg.Channel.Alternatives[0].Transcript,
		IsFinal: msg.IsFinal,
	}, true, nil
}
