package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"voicedesk/internal/domain"
)

type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	model      string
	ttsModel   string
	voice      string
	newID      func() string
}

func NewClient(apiKey, model string) *Client {
	return NewClientWithURL(apiKey, model, "https://api.openai.com/v1")
}

func NewClientWithURL(apiKey, model, baseURL string) *Client {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		model:      model,
		ttsModel:   "gpt-4o-mini-tts",
		voice:      "alloy",
		newID:      uuid.NewString,
	}
}

// WithSpeech sets the model and voice used by Synthesize.
func (c *Client) WithSpeech(model, voice string) *Client {
	if model != "" {
		c.ttsModel = model
	}
	if voice != "" {
		c.voice = voice
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) Complete(ctx context.Context, transcript string, variant domain.PromptVariant) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: variant.Instruction},
			{Role: "user", Content: transcript},
		},
		Temperature: variant.Temperature,
		MaxTokens:   variant.MaxTokens,
	}

	var result chatResponse
	if err := c.post(ctx, "/chat/completions", reqBody, func(body io.Reader) error {
		return json.NewDecoder(body).Decode(&result)
	}); err != nil {
		return "", err
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("openai chat: %w", domain.ErrEmptyResponse)
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize requests raw PCM, which OpenAI returns as 24kHz mono 16-bit.
func (c *Client) Synthesize(ctx context.Context, text string) (*domain.AudioResource, error) {
	reqBody := speechRequest{
		Model:          c.ttsModel,
		Input:          text,
		Voice:          c.voice,
		ResponseFormat: "pcm",
	}

	var audio []byte
	if err := c.post(ctx, "/audio/speech", reqBody, func(body io.Reader) error {
		var err error
		audio, err = io.ReadAll(body)
		return err
	}); err != nil {
		return nil, err
	}

	if len(audio) == 0 {
		return nil, fmt.Errorf("openai speech: %w", domain.ErrEmptyResponse)
	}

	format := domain.AudioFormat{SampleRate: 24000, Channels: 1, BitDepth: 16}
	return domain.NewAudioResource(c.newID(), format, audio), nil
}

func (c *Client) post(ctx context.Context, path string, payload any, decode func(io.Reader) error) error {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("openai API error %d: %s", resp.StatusCode, string(respBody))
	}

	if err := decode(resp.Body); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
