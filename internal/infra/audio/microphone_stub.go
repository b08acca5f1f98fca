//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"errors"
	"log/slog"

	"voicedesk/internal/application"
	"voicedesk/internal/domain"
)

var errNoPortAudio = errors.New("portaudio backend not available: rebuild with -tags portaudio")

// Microphone stub when portaudio is not available
type Microphone struct {
	logger *slog.Logger
}

func NewMicrophone(_ int, logger *slog.Logger) *Microphone {
	return &Microphone{logger: logger}
}

func (m *Microphone) Name() string {
	return "portaudio"
}

func (m *Microphone) StartCapture(_ context.Context, _ domain.AudioFormat) (application.CaptureStream, error) {
	return nil, domain.DeviceError("opening input stream", errNoPortAudio)
}

// Speaker stub when portaudio is not available
type Speaker struct {
	logger *slog.Logger
}

func NewSpeaker(_ int, logger *slog.Logger) *Speaker {
	return &Speaker{logger: logger}
}

func (s *Speaker) Name() string {
	return "portaudio"
}

func (s *Speaker) Play(_ context.Context, _ *domain.AudioResource) error {
	return domain.PlaybackError("opening output stream", errNoPortAudio)
}
