// Package bootstrap builds the application graph from configuration. It is
// the only place that knows which concrete adapters back each capability.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"voicedesk/config"
	"voicedesk/internal/application"
	"voicedesk/internal/domain"
	"voicedesk/internal/infra/anthropic"
	"voicedesk/internal/infra/audio"
	"voicedesk/internal/infra/deepgram"
	"voicedesk/internal/infra/gemini"
	"voicedesk/internal/infra/metrics"
	"voicedesk/internal/infra/openai"
	"voicedesk/internal/infra/prefs"
	"voicedesk/internal/infra/presentation"
)

// Services is the explicit application context: every long-lived component,
// constructed once.
type Services struct {
	Orchestrator *application.Orchestrator
	Server       *presentation.Server
	Metrics      *metrics.Recorder
	Prefs        *prefs.Store

	logger *slog.Logger
}

func Build(cfg *config.Config, logger *slog.Logger) (*Services, error) {
	prompts, err := application.NewPromptCatalog(cfg.Prompts.Variants, cfg.Prompts.Default)
	if err != nil {
		return nil, err
	}

	dg := deepgram.NewClient(deepgram.Config{
		APIKey:        cfg.Deepgram.APIKey,
		BaseURL:       cfg.Deepgram.BaseURL,
		StreamURL:     cfg.Deepgram.StreamURL,
		STTModel:      cfg.Deepgram.STTModel,
		Language:      cfg.Deepgram.Language,
		TTSModel:      cfg.Deepgram.TTSModel,
		TTSSampleRate: cfg.Deepgram.TTSSampleRate,
	}, logger.With("component", "deepgram"))

	var oa *openai.Client
	if cfg.OpenAI.APIKey != "" {
		oa = newOpenAI(cfg)
	}

	completer, err := createCompleter(cfg, oa)
	if err != nil {
		return nil, err
	}

	synthesizer, err := createSynthesizer(cfg, dg, oa)
	if err != nil {
		return nil, err
	}

	capture, player, err := createAudio(cfg.Audio, cfg.Session, logger.With("component", "audio"))
	if err != nil {
		return nil, err
	}

	store, err := prefs.Open(cfg.Prefs.Path)
	if err != nil {
		return nil, domain.ConfigError("opening preference store", err)
	}

	recorder := metrics.NewRecorder()

	server := presentation.NewServer(presentation.ServerConfig{
		Addr:           cfg.Presentation.Addr,
		AuthToken:      cfg.Presentation.AuthToken,
		CommandsPerSec: cfg.Presentation.CommandsPerSec,
		CommandBurst:   cfg.Presentation.CommandBurst,
	}, recorder.Handler(), logger.With("component", "presentation"))

	orch := application.NewOrchestrator(application.Dependencies{
		Capture:     capture,
		Transcriber: dg,
		Completer:   completer,
		Synthesizer: synthesizer,
		Player:      player,
		Prompts:     prompts,
		Prefs:       store,
		Sink:        server,
		Metrics:     recorder,
	}, application.OrchestratorConfig{
		FinalWait: cfg.Session.FinalWait,
		Markers:   cfg.Prompts.Markers,
		Format: domain.AudioFormat{
			SampleRate: cfg.Audio.SampleRate,
			Channels:   1,
			BitDepth:   16,
		},
	}, logger.With("component", "orchestrator"))

	server.Bind(orch)

	logger.Info("services built",
		"completion", cfg.Completion.Provider,
		"model", cfg.Completion.Model,
		"synthesis", cfg.Synthesis.Provider,
		"audio", capture.Name(),
		"player", player.Name(),
		"prefs", store.Path(),
	)

	return &Services{
		Orchestrator: orch,
		Server:       server,
		Metrics:      recorder,
		Prefs:        store,
		logger:       logger,
	}, nil
}

// Run serves the presentation boundary and drives the orchestrator until
// ctx is done.
func (s *Services) Run(ctx context.Context) error {
	defer func() {
		if err := s.Prefs.Close(); err != nil {
			s.logger.Warn("closing preference store", "error", err)
		}
	}()

	if err := s.Server.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Orchestrator.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return s.Server.Stop()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newOpenAI(cfg *config.Config) *openai.Client {
	baseURL := cfg.OpenAI.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := ""
	if cfg.Completion.Provider == "openai" {
		model = cfg.Completion.Model
	}
	return openai.NewClientWithURL(cfg.OpenAI.APIKey, model, baseURL).
		WithSpeech(cfg.Synthesis.Model, cfg.Synthesis.Voice)
}

func createCompleter(cfg *config.Config, oa *openai.Client) (application.Completer, error) {
	switch cfg.Completion.Provider {
	case "openai":
		if oa == nil {
			return nil, domain.ConfigError("creating completer", errors.New("openai.api_key is required"))
		}
		return oa, nil
	case "anthropic":
		if cfg.Anthropic.BaseURL != "" {
			return anthropic.NewClaudeClientWithURL(cfg.Anthropic.APIKey, cfg.Completion.Model, cfg.Anthropic.BaseURL), nil
		}
		return anthropic.NewClaudeClient(cfg.Anthropic.APIKey, cfg.Completion.Model), nil
	case "gemini":
		if cfg.Gemini.BaseURL != "" {
			return gemini.NewClientWithURL(cfg.Gemini.APIKey, cfg.Completion.Model, cfg.Gemini.BaseURL), nil
		}
		return gemini.NewClient(cfg.Gemini.APIKey, cfg.Completion.Model), nil
	}
	return nil, domain.ConfigError("creating completer", fmt.Errorf("unknown provider %q", cfg.Completion.Provider))
}

func createSynthesizer(cfg *config.Config, dg *deepgram.Client, oa *openai.Client) (application.Synthesizer, error) {
	switch cfg.Synthesis.Provider {
	case "deepgram":
		return dg, nil
	case "openai":
		if oa == nil {
			return nil, domain.ConfigError("creating synthesizer", errors.New("openai.api_key is required"))
		}
		return oa, nil
	}
	return nil, domain.ConfigError("creating synthesizer", fmt.Errorf("unknown provider %q", cfg.Synthesis.Provider))
}

func createAudio(cfg config.AudioConfig, session config.SessionConfig, logger *slog.Logger) (application.AudioCapture, application.AudioPlayer, error) {
	var (
		capture application.AudioCapture
		player  application.AudioPlayer
	)

	switch cfg.Backend {
	case "portaudio":
		capture = audio.NewMicrophone(cfg.FrameSize, logger)
		player = audio.NewSpeaker(cfg.FrameSize, logger)
	case "malgo":
		capture = audio.NewMalgoMicrophone(logger)
		player = audio.NewMalgoSpeaker(logger)
	case "file":
		capture = audio.NewFileCapture(cfg.InputFile, cfg.FrameSize, true, logger)
		player = audio.NewFileSink(cfg.OutputDir, logger)
	default:
		return nil, nil, domain.ConfigError("creating audio backend", fmt.Errorf("unknown backend %q", cfg.Backend))
	}

	if cfg.Archive && cfg.Backend != "file" {
		player = audio.NewArchivingPlayer(player, cfg.OutputDir, logger)
	}
	player = audio.NewRetryingPlayer(player, session.PlaybackRetryDelay, logger)

	return capture, player, nil
}
