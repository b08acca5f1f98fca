package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"voicedesk/internal/domain"
)

type speakRequest struct {
	Text string `json:"text"`
}

// Synthesize returns raw mono 16-bit PCM at the configured sample rate.
func (c *Client) Synthesize(ctx context.Context, text string) (*domain.AudioResource, error) {
	bodyBytes, err := json.Marshal(speakRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	q := url.Values{}
	q.Set("model", c.cfg.TTSModel)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(c.cfg.TTSSampleRate))
	q.Set("container", "none")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/speak?"+q.Encode(), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.authHeader())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("deepgram API error %d: %s", resp.StatusCode, string(respBody))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("deepgram speak: %w", domain.ErrEmptyResponse)
	}

	format := domain.AudioFormat{SampleRate: c.cfg.TTSSampleRate, Channels: 1, BitDepth: 16}
	return domain.NewAudioResource(c.newID(), format, audio), nil
}
