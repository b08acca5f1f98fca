package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"voicedesk/internal/domain"
)

type Config struct {
	Deepgram     DeepgramConfig     `yaml:"deepgram"`
	Completion   CompletionConfig   `yaml:"completion"`
	OpenAI       OpenAIConfig       `yaml:"openai"`
	Anthropic    AnthropicConfig    `yaml:"anthropic"`
	Gemini       GeminiConfig       `yaml:"gemini"`
	Synthesis    SynthesisConfig    `yaml:"synthesis"`
	Prompts      PromptsConfig      `yaml:"prompts"`
	Session      SessionConfig      `yaml:"session"`
	Audio        AudioConfig        `yaml:"audio"`
	Presentation PresentationConfig `yaml:"presentation"`
	Prefs        PrefsConfig        `yaml:"prefs"`
	Log          LogConfig          `yaml:"log"`
}

type DeepgramConfig struct {
	APIKey        string `yaml:"api_key"`
	BaseURL       string `yaml:"base_url"`
	StreamURL     string `yaml:"stream_url"`
	STTModel      string `yaml:"stt_model"`
	Language      string `yaml:"language"`
	TTSModel      string `yaml:"tts_model"`
	TTSSampleRate int    `yaml:"tts_sample_rate"`
}

type CompletionConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type AnthropicConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type GeminiConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type SynthesisConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Voice    string `yaml:"voice"`
}

type PromptsConfig struct {
	Default  string                 `yaml:"default"`
	Markers  domain.Markers         `yaml:"markers"`
	Variants []domain.PromptVariant `yaml:"variants"`

	// temperatureSet[i] records whether variant i gave a temperature, so an
	// explicit 0 is kept.
	temperatureSet []bool
}

func (p *PromptsConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain PromptsConfig
	if err := node.Decode((*plain)(p)); err != nil {
		return err
	}

	var explicit struct {
		Variants []struct {
			Temperature *float64 `yaml:"temperature"`
		} `yaml:"variants"`
	}
	if err := node.Decode(&explicit); err != nil {
		return err
	}
	p.temperatureSet = make([]bool, len(explicit.Variants))
	for i, v := range explicit.Variants {
		p.temperatureSet[i] = v.Temperature != nil
	}
	return nil
}

func (p *PromptsConfig) hasTemperature(i int) bool {
	return i < len(p.temperatureSet) && p.temperatureSet[i]
}

type SessionConfig struct {
	FinalWait          time.Duration `yaml:"final_wait"`
	PlaybackRetryDelay time.Duration `yaml:"playback_retry_delay"`
}

type AudioConfig struct {
	Backend    string `yaml:"backend"`
	SampleRate int    `yaml:"sample_rate"`
	FrameSize  int    `yaml:"frame_size"`
	InputFile  string `yaml:"input_file"`
	OutputDir  string `yaml:"output_dir"`
	Archive    bool   `yaml:"archive"`
}

type PresentationConfig struct {
	Addr           string  `yaml:"addr"`
	AuthToken      string  `yaml:"auth_token"`
	CommandsPerSec float64 `yaml:"commands_per_sec"`
	CommandBurst   int     `yaml:"command_burst"`
}

type PrefsConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ConfigError reports configuration that makes startup impossible.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func (e *ConfigError) Unwrap() error {
	return domain.NewError(domain.KindConfig, "validating config", errors.New(strings.Join(e.Problems, "; ")))
}

// Load reads the YAML file at path after loading any .env files, expands
// environment references, applies defaults and validates the result. A
// missing config file is not an error: defaults plus environment are used.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := loadEnv(envFiles...); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyEnv()
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// applyEnv fills credentials from the conventional variables when the file
// leaves them empty.
func (c *Config) applyEnv() {
	if c.Deepgram.APIKey == "" {
		c.Deepgram.APIKey = os.Getenv("DEEPGRAM_API_KEY")
	}
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Anthropic.APIKey == "" {
		c.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
}

func (c *Config) setDefaults() {
	if c.Deepgram.BaseURL == "" {
		c.Deepgram.BaseURL = "https://api.deepgram.com/v1"
	}
	if c.Deepgram.StreamURL == "" {
		c.Deepgram.StreamURL = "wss://api.deepgram.com/v1/listen"
	}
	if c.Deepgram.STTModel == "" {
		c.Deepgram.STTModel = "nova-2"
	}
	if c.Deepgram.Language == "" {
		c.Deepgram.Language = "en-US"
	}
	if c.Deepgram.TTSModel == "" {
		c.Deepgram.TTSModel = "aura-asteria-en"
	}
	if c.Deepgram.TTSSampleRate == 0 {
		c.Deepgram.TTSSampleRate = 24000
	}
	if c.Completion.Provider == "" {
		c.Completion.Provider = "openai"
	}
	if c.Completion.Model == "" {
		c.Completion.Model = defaultModel(c.Completion.Provider)
	}
	if c.Completion.Temperature == nil {
		temperature := 0.7
		c.Completion.Temperature = &temperature
	}
	if c.Completion.MaxTokens == 0 {
		c.Completion.MaxTokens = 256
	}
	if c.Synthesis.Provider == "" {
		c.Synthesis.Provider = "deepgram"
	}
	if c.Synthesis.Provider == "openai" {
		if c.Synthesis.Model == "" {
			c.Synthesis.Model = "gpt-4o-mini-tts"
		}
		if c.Synthesis.Voice == "" {
			c.Synthesis.Voice = "alloy"
		}
	}
	if len(c.Prompts.Variants) == 0 {
		c.Prompts.Variants = DefaultPromptVariants()
	}
	if c.Prompts.Default == "" {
		c.Prompts.Default = "email"
	}
	if c.Prompts.Markers.Start == "" && c.Prompts.Markers.End == "" {
		c.Prompts.Markers = domain.DefaultMarkers()
	}
	for i := range c.Prompts.Variants {
		v := &c.Prompts.Variants[i]
		if v.Name == "" {
			v.Name = v.ID
		}
		if v.Label == "" {
			v.Label = v.Name
		}
		if v.Temperature == 0 && !c.Prompts.hasTemperature(i) {
			v.Temperature = *c.Completion.Temperature
		}
		if v.MaxTokens == 0 {
			v.MaxTokens = c.Completion.MaxTokens
		}
	}
	if c.Session.FinalWait == 0 {
		c.Session.FinalWait = time.Second
	}
	if c.Session.PlaybackRetryDelay == 0 {
		c.Session.PlaybackRetryDelay = 500 * time.Millisecond
	}
	if c.Audio.Backend == "" {
		c.Audio.Backend = "portaudio"
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.FrameSize == 0 {
		c.Audio.FrameSize = 1024
	}
	if c.Audio.OutputDir == "" {
		c.Audio.OutputDir = defaultOutputDir()
	}
	if c.Presentation.Addr == "" {
		c.Presentation.Addr = "127.0.0.1:7788"
	}
	if c.Presentation.CommandsPerSec == 0 {
		c.Presentation.CommandsPerSec = 5
	}
	if c.Presentation.CommandBurst == 0 {
		c.Presentation.CommandBurst = 10
	}
	if c.Prefs.Path == "" {
		c.Prefs.Path = defaultPrefsPath()
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func defaultModel(provider string) string {
	switch provider {
	case "anthropic":
		return "claude-sonnet-4-20250514"
	case "gemini":
		return "gemini-2.0-flash"
	default:
		return "gpt-4o-mini"
	}
}

// Validate reports every problem at once so a misconfigured install can be
// fixed in one pass.
func (c *Config) Validate() error {
	var problems []string

	if c.Deepgram.APIKey == "" {
		problems = append(problems, "deepgram.api_key is required (or set DEEPGRAM_API_KEY)")
	}

	switch c.Completion.Provider {
	case "openai":
		if c.OpenAI.APIKey == "" {
			problems = append(problems, "openai.api_key is required (or set OPENAI_API_KEY)")
		}
	case "anthropic":
		if c.Anthropic.APIKey == "" {
			problems = append(problems, "anthropic.api_key is required (or set ANTHROPIC_API_KEY)")
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			problems = append(problems, "gemini.api_key is required (or set GEMINI_API_KEY)")
		}
	default:
		problems = append(problems, fmt.Sprintf("completion.provider %q is not one of openai, anthropic, gemini", c.Completion.Provider))
	}

	switch c.Synthesis.Provider {
	case "deepgram":
	case "openai":
		if c.OpenAI.APIKey == "" && c.Completion.Provider != "openai" {
			problems = append(problems, "openai.api_key is required for openai synthesis")
		}
	default:
		problems = append(problems, fmt.Sprintf("synthesis.provider %q is not one of deepgram, openai", c.Synthesis.Provider))
	}

	switch c.Audio.Backend {
	case "portaudio", "malgo":
	case "file":
		if c.Audio.InputFile == "" {
			problems = append(problems, "audio.input_file is required for the file backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("audio.backend %q is not one of portaudio, malgo, file", c.Audio.Backend))
	}

	seen := make(map[string]bool)
	for _, v := range c.Prompts.Variants {
		if v.ID == "" {
			problems = append(problems, "every prompt variant needs an id")
			continue
		}
		if seen[v.ID] {
			problems = append(problems, fmt.Sprintf("duplicate prompt variant %q", v.ID))
		}
		seen[v.ID] = true
		if strings.TrimSpace(v.Instruction) == "" {
			problems = append(problems, fmt.Sprintf("prompt variant %q has no instruction", v.ID))
		}
	}
	if !seen[c.Prompts.Default] {
		problems = append(problems, fmt.Sprintf("prompts.default %q is not a configured variant", c.Prompts.Default))
	}

	if (c.Prompts.Markers.Start == "") != (c.Prompts.Markers.End == "") {
		problems = append(problems, "prompts.markers needs both start and end, or neither")
	}

	if c.Session.FinalWait < 0 {
		problems = append(problems, "session.final_wait must not be negative")
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}
